package controllers

import (
	"errors"
	"strconv"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog"
	"github.com/sujit-baniya/flash"

	"github.com/ManuelReschke/ClipPass/app/repository"
	"github.com/ManuelReschke/ClipPass/internal/pkg/admin"
	"github.com/ManuelReschke/ClipPass/views/admin_views"
)

const adminPageSize = 50

// AdminController renders the generic admin list pages for every registered
// binding.
type AdminController struct {
	registry *admin.Registry
	source   admin.Source
	log      zerolog.Logger
}

// NewAdminController creates a new admin controller
func NewAdminController(registry *admin.Registry, source admin.Source, log zerolog.Logger) *AdminController {
	return &AdminController{registry: registry, source: source, log: log}
}

func renderAdmin(c *fiber.Ctx, title string, content templ.Component) error {
	page := admin_views.Layout(title, flashOf(c), content)
	handler := adaptor.HTTPHandler(templ.Handler(page))
	return handler(c)
}

func flashOf(c *fiber.Ctx) admin_views.Flash {
	fm := flash.Get(c)
	typ, _ := fm["type"].(string)
	msg, _ := fm["message"].(string)
	return admin_views.Flash{Type: typ, Message: msg}
}

// HandleAdminDashboard lists all bindings with their row counts.
func (ac *AdminController) HandleAdminDashboard(c *fiber.Ctx) error {
	sections := make([]admin_views.Section, 0, len(ac.registry.All()))
	for _, b := range ac.registry.All() {
		n, err := ac.source.Count(c.UserContext(), b)
		if err != nil {
			ac.log.Error().Err(err).Str("table", b.Table).Msg("admin count failed")
			n = -1
		}
		sections = append(sections, admin_views.Section{Name: b.Name, Title: b.Title, Count: n})
	}
	return renderAdmin(c, "Admin", admin_views.Dashboard(sections))
}

// HandleAdminList renders one page of rows of a binding.
func (ac *AdminController) HandleAdminList(c *fiber.Ctx) error {
	b, ok := ac.registry.Lookup(c.Params("name"))
	if !ok {
		return fiber.ErrNotFound
	}

	page := max(c.QueryInt("page", 1), 1)
	offset := (page - 1) * adminPageSize

	total, err := ac.source.Count(c.UserContext(), b)
	if err != nil {
		return err
	}
	rows, err := ac.source.List(c.UserContext(), b, offset, adminPageSize)
	if err != nil {
		return err
	}

	view := admin_views.ListPage{
		Name:    b.Name,
		Title:   b.Title,
		Columns: b.Columns,
		Rows:    rows,
		Total:   total,
		Page:    page,
	}
	if page > 1 {
		view.PrevPage = page - 1
	}
	if int64(offset+len(rows)) < total {
		view.NextPage = page + 1
	}
	return renderAdmin(c, b.Title, admin_views.List(view))
}

// HandleAdminDelete deletes a row and redirects back with a flash message.
func (ac *AdminController) HandleAdminDelete(c *fiber.Ctx) error {
	b, ok := ac.registry.Lookup(c.Params("name"))
	if !ok {
		return fiber.ErrNotFound
	}
	back := "/admin/" + b.Name

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		fm := fiber.Map{"type": "error", "message": "Invalid id"}
		return flash.WithError(c, fm).Redirect(back)
	}

	if err := ac.source.Delete(c.UserContext(), b, uint(id)); err != nil {
		msg := "Delete failed"
		if errors.Is(err, repository.ErrNotFound) {
			msg = "Entry not found"
		} else {
			ac.log.Error().Err(err).Str("table", b.Table).Uint64("id", id).Msg("admin delete failed")
		}
		fm := fiber.Map{"type": "error", "message": msg}
		return flash.WithError(c, fm).Redirect(back)
	}

	ac.log.Info().Str("table", b.Table).Uint64("id", id).Msg("admin deleted row")
	fm := fiber.Map{"type": "success", "message": b.Title + " #" + strconv.FormatUint(id, 10) + " deleted"}
	return flash.WithSuccess(c, fm).Redirect(back)
}
