package apiv1

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/ClipPass/app/repository"
	"github.com/ManuelReschke/ClipPass/internal/pkg/accessgate"
	"github.com/ManuelReschke/ClipPass/internal/pkg/activity"
	"github.com/ManuelReschke/ClipPass/internal/pkg/apperror"
	"github.com/ManuelReschke/ClipPass/internal/pkg/catalog"
	"github.com/ManuelReschke/ClipPass/internal/pkg/entitlements"
	"github.com/ManuelReschke/ClipPass/internal/pkg/identity"
	"github.com/ManuelReschke/ClipPass/internal/pkg/usercontext"
)

const maxPageSize = 100

// Services bundles the domain services the API delegates to.
type Services struct {
	Identity     *identity.Service
	Entitlements *entitlements.Engine
	Gate         *accessgate.Gate
	Activity     *activity.Service
	Catalog      *catalog.Service
}

// APIServer implements the ServerInterface
type APIServer struct {
	svc Services
	log zerolog.Logger
}

// NewAPIServer creates a new API server instance
func NewAPIServer(svc Services, log zerolog.Logger) *APIServer {
	return &APIServer{svc: svc, log: log}
}

func principal(c *fiber.Ctx) identity.Principal {
	uc := usercontext.GetUserContext(c)
	return identity.Principal{
		UserID:    uc.UserID,
		AccountID: uc.AccountID,
		Username:  uc.Username,
		IsAdmin:   uc.IsAdmin,
	}
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return &apperror.Error{Kind: apperror.KindValidation, Message: "Malformed request body."}
	}
	return nil
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

// PostSignup creates a user with its account and returns the first API key.
func (s *APIServer) PostSignup(c *fiber.Ctx) error {
	var in identity.SignupInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	res, err := s.svc.Identity.Signup(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(SignupResponse{
		ProfileResponse: presentProfile(res.Account),
		APIKey:          res.APIKey,
	})
}

func (s *APIServer) PostLogin(c *fiber.Ctx) error {
	var in identity.LoginInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	res, err := s.svc.Identity.Login(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *APIServer) GetProfile(c *fiber.Ctx) error {
	account, err := s.svc.Identity.Profile(c.UserContext(), principal(c))
	if err != nil {
		return err
	}
	return c.JSON(presentProfile(account))
}

func (s *APIServer) PutProfile(c *fiber.Ctx) error {
	var in identity.ProfileUpdate
	if err := parseBody(c, &in); err != nil {
		return err
	}
	account, err := s.svc.Identity.UpdateProfile(c.UserContext(), principal(c), in)
	if err != nil {
		return err
	}
	return c.JSON(presentProfile(account))
}

func (s *APIServer) DeleteProfile(c *fiber.Ctx) error {
	if err := s.svc.Identity.DeleteProfile(c.UserContext(), principal(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PostProfileBalance tops up the caller's balance.
func (s *APIServer) PostProfileBalance(c *fiber.Ctx) error {
	var in struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := parseBody(c, &in); err != nil {
		return err
	}
	account, err := s.svc.Identity.TopUp(c.UserContext(), principal(c), in.Amount)
	if err != nil {
		return err
	}
	return c.JSON(presentProfile(account))
}

// PostProfileAPIKey rotates the caller's API key. The raw key is only shown
// in this response.
func (s *APIServer) PostProfileAPIKey(c *fiber.Ctx) error {
	raw, key, err := s.svc.Identity.IssueAPIKey(c.UserContext(), principal(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(APIKeyResponse{APIKey: raw, Prefix: key.Prefix, CreatedAt: key.CreatedAt})
}

func (s *APIServer) DeleteProfileAPIKey(c *fiber.Ctx) error {
	if err := s.svc.Identity.RevokeAPIKey(c.UserContext(), principal(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *APIServer) ListUsers(c *fiber.Ctx) error {
	accounts, err := s.svc.Identity.ListUsers(c.UserContext(), principal(c))
	if err != nil {
		return err
	}
	return c.JSON(presentUsers(accounts))
}

// ListVideos lists videos of publishers the caller holds an active license for.
func (s *APIServer) ListVideos(c *fiber.Ctx) error {
	filter := repository.VideoFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Offset:   max(c.QueryInt("offset", 0), 0),
		Limit:    min(max(c.QueryInt("limit", 0), 0), maxPageSize),
	}
	videos, err := s.svc.Gate.ListVisible(c.UserContext(), principal(c).AccountID, filter)
	if err != nil {
		return err
	}
	return c.JSON(presentVideos(videos, false))
}

// GetVideo returns a viewable video and records a watch event.
func (s *APIServer) GetVideo(c *fiber.Ctx, id uint) error {
	video, err := s.svc.Gate.Retrieve(c.UserContext(), principal(c).AccountID, id)
	if err != nil {
		return err
	}
	return c.JSON(presentVideo(video, false))
}

func (s *APIServer) GetVideoViews(c *fiber.Ctx, id uint) error {
	n, err := s.svc.Activity.CountViews(c.UserContext(), principal(c).AccountID, id)
	if err != nil {
		return err
	}
	return c.JSON(ViewsResponse{Video: id, Views: n})
}

func (s *APIServer) ListVideoComments(c *fiber.Ctx, id uint) error {
	comments, err := s.svc.Activity.ListComments(c.UserContext(), principal(c).AccountID, id)
	if err != nil {
		return err
	}
	return c.JSON(comments)
}

func (s *APIServer) PostVideoComment(c *fiber.Ctx, id uint) error {
	var in commentRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	comment, err := s.svc.Activity.AddComment(c.UserContext(), principal(c).AccountID, id, in.Text)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

func (s *APIServer) ListVideoRatings(c *fiber.Ctx, id uint) error {
	ratings, err := s.svc.Activity.ListRatings(c.UserContext(), principal(c).AccountID, id)
	if err != nil {
		return err
	}
	return c.JSON(ratings)
}

func (s *APIServer) PostVideoRating(c *fiber.Ctx, id uint) error {
	var in ratingRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	score, err := activity.ParseScore(in.Rate)
	if err != nil {
		return err
	}
	rating, err := s.svc.Activity.AddRating(c.UserContext(), principal(c).AccountID, id, score)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rating)
}

func (s *APIServer) ListWatchHistory(c *fiber.Ctx) error {
	events, err := s.svc.Activity.History(c.UserContext(), principal(c).AccountID)
	if err != nil {
		return err
	}
	return c.JSON(events)
}

// ListLicenses lists licenses the caller can buy, i.e. everyone else's.
func (s *APIServer) ListLicenses(c *fiber.Ctx) error {
	licenses, err := s.svc.Catalog.ListPurchasable(c.UserContext(), principal(c).AccountID)
	if err != nil {
		return err
	}
	return c.JSON(presentLicenses(licenses, false))
}

func (s *APIServer) GetLicense(c *fiber.Ctx, id uint) error {
	license, err := s.svc.Catalog.GetPurchasable(c.UserContext(), principal(c).AccountID, id)
	if err != nil {
		return err
	}
	return c.JSON(presentLicense(license, false))
}

func (s *APIServer) PurchaseLicense(c *fiber.Ctx, id uint) error {
	return s.purchase(c, id)
}

func (s *APIServer) purchase(c *fiber.Ctx, licenseID uint) error {
	ent, err := s.svc.Entitlements.Purchase(c.UserContext(), principal(c).AccountID, licenseID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(presentSubscription(ent, s.svc.Entitlements.Today()))
}

func (s *APIServer) ListSubscriptions(c *fiber.Ctx) error {
	ents, err := s.svc.Entitlements.List(c.UserContext(), principal(c).AccountID)
	if err != nil {
		return err
	}
	return c.JSON(presentSubscriptions(ents, s.svc.Entitlements.Today()))
}

// PostSubscription purchases the license named in the body.
func (s *APIServer) PostSubscription(c *fiber.Ctx) error {
	var in purchaseRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if in.License == 0 {
		return apperror.Validation("license", "please fill license field.")
	}
	return s.purchase(c, in.License)
}

func (s *APIServer) GetSubscription(c *fiber.Ctx, id uint) error {
	ent, err := s.svc.Entitlements.Get(c.UserContext(), principal(c).AccountID, id)
	if err != nil {
		return err
	}
	return c.JSON(presentSubscription(ent, s.svc.Entitlements.Today()))
}

// PutSubscription renews the subscription on its license's current terms.
// The request body is ignored.
func (s *APIServer) PutSubscription(c *fiber.Ctx, id uint) error {
	ent, err := s.svc.Entitlements.Renew(c.UserContext(), principal(c).AccountID, id)
	if err != nil {
		return err
	}
	return c.JSON(presentSubscription(ent, s.svc.Entitlements.Today()))
}

func (s *APIServer) PatchSubscription(c *fiber.Ctx, id uint) error {
	return s.svc.Entitlements.Patch(c.UserContext(), principal(c).AccountID, id)
}

func (s *APIServer) DeleteSubscription(c *fiber.Ctx, id uint) error {
	if err := s.svc.Entitlements.Delete(c.UserContext(), principal(c).AccountID, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *APIServer) ListManagedVideos(c *fiber.Ctx) error {
	videos, err := s.svc.Catalog.ListOwnVideos(c.UserContext(), principal(c).AccountID)
	if err != nil {
		return err
	}
	return c.JSON(presentVideos(videos, true))
}

func (s *APIServer) PostManagedVideo(c *fiber.Ctx) error {
	var in catalog.VideoInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	video, err := s.svc.Catalog.CreateVideo(c.UserContext(), principal(c).AccountID, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(presentVideo(video, true))
}

func (s *APIServer) GetManagedVideo(c *fiber.Ctx, id uint) error {
	video, err := s.svc.Catalog.GetOwnVideo(c.UserContext(), principal(c).AccountID, id)
	if err != nil {
		return err
	}
	return c.JSON(presentVideo(video, true))
}

func (s *APIServer) PutManagedVideo(c *fiber.Ctx, id uint) error {
	var in catalog.VideoInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	video, err := s.svc.Catalog.UpdateVideo(c.UserContext(), principal(c).AccountID, id, in)
	if err != nil {
		return err
	}
	return c.JSON(presentVideo(video, true))
}

func (s *APIServer) DeleteManagedVideo(c *fiber.Ctx, id uint) error {
	if err := s.svc.Catalog.DeleteVideo(c.UserContext(), principal(c).AccountID, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *APIServer) ListManagedLicenses(c *fiber.Ctx) error {
	licenses, err := s.svc.Catalog.ListOwnLicenses(c.UserContext(), principal(c).AccountID)
	if err != nil {
		return err
	}
	return c.JSON(presentLicenses(licenses, true))
}

func (s *APIServer) PostManagedLicense(c *fiber.Ctx) error {
	var in catalog.LicenseInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	license, err := s.svc.Catalog.CreateLicense(c.UserContext(), principal(c).AccountID, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(presentLicense(license, true))
}

func (s *APIServer) GetManagedLicense(c *fiber.Ctx, id uint) error {
	license, err := s.svc.Catalog.GetOwnLicense(c.UserContext(), principal(c).AccountID, id)
	if err != nil {
		return err
	}
	return c.JSON(presentLicense(license, true))
}

func (s *APIServer) PutManagedLicense(c *fiber.Ctx, id uint) error {
	var in catalog.LicenseInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	license, err := s.svc.Catalog.UpdateLicense(c.UserContext(), principal(c).AccountID, id, in)
	if err != nil {
		return err
	}
	return c.JSON(presentLicense(license, true))
}

func (s *APIServer) DeleteManagedLicense(c *fiber.Ctx, id uint) error {
	if err := s.svc.Catalog.DeleteLicense(c.UserContext(), principal(c).AccountID, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.NotFound("Not found.")
	}
	return uint(id), nil
}
