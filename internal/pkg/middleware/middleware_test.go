package middleware

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ClipPass/internal/pkg/apperror"
	"github.com/ManuelReschke/ClipPass/internal/pkg/identity"
	"github.com/ManuelReschke/ClipPass/internal/pkg/usercontext"
)

type stubAuthn struct {
	keys   map[string]identity.Principal
	tokens map[string]identity.Principal
	err    error
}

func (s stubAuthn) AuthenticateAPIKey(_ context.Context, raw string) (identity.Principal, error) {
	if s.err != nil {
		return identity.Principal{}, s.err
	}
	if p, ok := s.keys[raw]; ok {
		return p, nil
	}
	return identity.Principal{}, apperror.Unauthorized("Invalid API key")
}

func (s stubAuthn) AuthenticateToken(_ context.Context, token string) (identity.Principal, error) {
	if s.err != nil {
		return identity.Principal{}, s.err
	}
	if p, ok := s.tokens[token]; ok {
		return p, nil
	}
	return identity.Principal{}, apperror.Unauthorized("Invalid token")
}

func newTestApp(authn Authenticator) *fiber.App {
	app := fiber.New()
	app.Use(APIAuth(authn, zerolog.Nop()))
	app.Get("/open", func(c *fiber.Ctx) error {
		return c.SendString(usercontext.GetUsername(c))
	})
	app.Get("/private", RequireAuth, func(c *fiber.Ctx) error {
		return c.SendString(usercontext.GetUsername(c))
	})
	return app
}

func TestAPIAuth(t *testing.T) {
	authn := stubAuthn{
		keys:   map[string]identity.Principal{"cp_good": {UserID: 1, AccountID: 1, Username: "keyuser"}},
		tokens: map[string]identity.Principal{"jwt.good": {UserID: 2, AccountID: 2, Username: "tokenuser"}},
	}
	app := newTestApp(authn)

	tests := []struct {
		name       string
		path       string
		headers    map[string]string
		wantStatus int
		wantBody   string
	}{
		{"anonymous open route", "/open", nil, fiber.StatusOK, ""},
		{"anonymous private route", "/private", nil, fiber.StatusUnauthorized, ""},
		{"x-api-key header", "/private", map[string]string{"X-API-Key": "cp_good"}, fiber.StatusOK, "keyuser"},
		{"bearer api key", "/private", map[string]string{"Authorization": "Bearer cp_good"}, fiber.StatusOK, "keyuser"},
		{"bearer token", "/private", map[string]string{"Authorization": "bearer jwt.good"}, fiber.StatusOK, "tokenuser"},
		{"bad api key", "/open", map[string]string{"X-API-Key": "cp_bad"}, fiber.StatusUnauthorized, ""},
		{"bad token", "/private", map[string]string{"Authorization": "Bearer jwt.bad"}, fiber.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantBody != "" {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, tt.wantBody, string(body))
			}
		})
	}
}

func TestAPIAuth_InternalError(t *testing.T) {
	app := newTestApp(stubAuthn{err: assert.AnError})
	req := httptest.NewRequest("GET", "/open", nil)
	req.Header.Set("X-API-Key", "cp_any")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
