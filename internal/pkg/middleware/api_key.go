package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ManuelReschke/ClipPass/app/models"
	"github.com/ManuelReschke/ClipPass/internal/pkg/apperror"
	"github.com/ManuelReschke/ClipPass/internal/pkg/identity"
	"github.com/ManuelReschke/ClipPass/internal/pkg/usercontext"
)

// Authenticator resolves request credentials to a principal.
type Authenticator interface {
	AuthenticateAPIKey(ctx context.Context, raw string) (identity.Principal, error)
	AuthenticateToken(ctx context.Context, token string) (identity.Principal, error)
}

// APIAuth authenticates requests carrying an API key (X-API-Key or a
// "cp_" bearer) or a login token (any other bearer). Requests without
// credentials pass through anonymous; RequireAuth rejects them later.
func APIAuth(authn Authenticator, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		credential := extractCredential(c)
		if credential == "" {
			return c.Next()
		}

		var (
			p   identity.Principal
			err error
		)
		if models.LooksLikeAPIKey(credential) {
			p, err = authn.AuthenticateAPIKey(c.UserContext(), credential)
		} else {
			p, err = authn.AuthenticateToken(c.UserContext(), credential)
		}
		if err != nil {
			var appErr *apperror.Error
			if errors.As(err, &appErr) && appErr.Kind == apperror.KindUnauthorized {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": string(appErr.Kind), "message": appErr.Message})
			}
			log.Error().Err(err).Str("path", c.Path()).Msg("credential verification failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Credential verification failed"})
		}

		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     p.UserID,
			AccountID:  p.AccountID,
			Username:   p.Username,
			IsLoggedIn: true,
			IsAdmin:    p.IsAdmin,
		})
		return c.Next()
	}
}

func extractCredential(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
