package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	GetPing(c *fiber.Ctx) error
	PostSignup(c *fiber.Ctx) error
	PostLogin(c *fiber.Ctx) error

	GetProfile(c *fiber.Ctx) error
	PutProfile(c *fiber.Ctx) error
	DeleteProfile(c *fiber.Ctx) error
	PostProfileBalance(c *fiber.Ctx) error
	PostProfileAPIKey(c *fiber.Ctx) error
	DeleteProfileAPIKey(c *fiber.Ctx) error
	ListUsers(c *fiber.Ctx) error

	ListVideos(c *fiber.Ctx) error
	GetVideo(c *fiber.Ctx, id uint) error
	GetVideoViews(c *fiber.Ctx, id uint) error
	ListVideoComments(c *fiber.Ctx, id uint) error
	PostVideoComment(c *fiber.Ctx, id uint) error
	ListVideoRatings(c *fiber.Ctx, id uint) error
	PostVideoRating(c *fiber.Ctx, id uint) error
	ListWatchHistory(c *fiber.Ctx) error

	ListLicenses(c *fiber.Ctx) error
	GetLicense(c *fiber.Ctx, id uint) error
	PurchaseLicense(c *fiber.Ctx, id uint) error

	ListSubscriptions(c *fiber.Ctx) error
	PostSubscription(c *fiber.Ctx) error
	GetSubscription(c *fiber.Ctx, id uint) error
	PutSubscription(c *fiber.Ctx, id uint) error
	PatchSubscription(c *fiber.Ctx, id uint) error
	DeleteSubscription(c *fiber.Ctx, id uint) error

	ListManagedVideos(c *fiber.Ctx) error
	PostManagedVideo(c *fiber.Ctx) error
	GetManagedVideo(c *fiber.Ctx, id uint) error
	PutManagedVideo(c *fiber.Ctx, id uint) error
	DeleteManagedVideo(c *fiber.Ctx, id uint) error

	ListManagedLicenses(c *fiber.Ctx) error
	PostManagedLicense(c *fiber.Ctx) error
	GetManagedLicense(c *fiber.Ctx, id uint) error
	PutManagedLicense(c *fiber.Ctx, id uint) error
	DeleteManagedLicense(c *fiber.Ctx, id uint) error
}

// withID converts the :id path parameter before calling the handler.
func withID(h func(c *fiber.Ctx, id uint) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c.Params("id"))
		if err != nil {
			return err
		}
		return h(c, id)
	}
}

// RegisterHandlers mounts every operation on router. requireAuth guards all
// operations except ping, signup and login.
func RegisterHandlers(router fiber.Router, si ServerInterface, requireAuth fiber.Handler) {
	router.Get("/ping", si.GetPing)
	router.Post("/signup", si.PostSignup)
	router.Post("/login", si.PostLogin)

	auth := router.Group("", requireAuth)

	auth.Get("/profile", si.GetProfile)
	auth.Put("/profile", si.PutProfile)
	auth.Delete("/profile", si.DeleteProfile)
	auth.Post("/profile/balance", si.PostProfileBalance)
	auth.Post("/profile/api-key", si.PostProfileAPIKey)
	auth.Delete("/profile/api-key", si.DeleteProfileAPIKey)
	auth.Get("/users", si.ListUsers)

	auth.Get("/videos", si.ListVideos)
	auth.Get("/videos/:id", withID(si.GetVideo))
	auth.Get("/videos/:id/views", withID(si.GetVideoViews))
	auth.Get("/videos/:id/comments", withID(si.ListVideoComments))
	auth.Post("/videos/:id/comments", withID(si.PostVideoComment))
	auth.Get("/videos/:id/ratings", withID(si.ListVideoRatings))
	auth.Post("/videos/:id/ratings", withID(si.PostVideoRating))
	auth.Get("/watch-history", si.ListWatchHistory)

	auth.Get("/licenses", si.ListLicenses)
	auth.Get("/licenses/:id", withID(si.GetLicense))
	auth.Post("/licenses/:id/purchase", withID(si.PurchaseLicense))

	auth.Get("/subscriptions", si.ListSubscriptions)
	auth.Post("/subscriptions", si.PostSubscription)
	auth.Get("/subscriptions/:id", withID(si.GetSubscription))
	auth.Put("/subscriptions/:id", withID(si.PutSubscription))
	auth.Patch("/subscriptions/:id", withID(si.PatchSubscription))
	auth.Delete("/subscriptions/:id", withID(si.DeleteSubscription))

	auth.Get("/manage/videos", si.ListManagedVideos)
	auth.Post("/manage/videos", si.PostManagedVideo)
	auth.Get("/manage/videos/:id", withID(si.GetManagedVideo))
	auth.Put("/manage/videos/:id", withID(si.PutManagedVideo))
	auth.Delete("/manage/videos/:id", withID(si.DeleteManagedVideo))

	auth.Get("/manage/licenses", si.ListManagedLicenses)
	auth.Post("/manage/licenses", si.PostManagedLicense)
	auth.Get("/manage/licenses/:id", withID(si.GetManagedLicense))
	auth.Put("/manage/licenses/:id", withID(si.PutManagedLicense))
	auth.Delete("/manage/licenses/:id", withID(si.DeleteManagedLicense))
}
