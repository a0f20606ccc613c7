package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"payroute/internal/models"
	"payroute/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func token(t *testing.T, role string, perms ...string) string {
	t.Helper()
	tok, err := utils.IssueOperatorToken(secret, 1, role, perms, time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok
}

func newApp() *fiber.App {
	app := fiber.New()
	auth := NewAuthMiddleware(secret)
	app.Get("/route", auth.Handler, HasPermission(models.PermissionPaymentRoute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/admin", auth.Handler, AdminOnly, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		header func(t *testing.T) string
		want   int
	}{
		{"missing header", "/route", func(*testing.T) string { return "" }, fiber.StatusUnauthorized},
		{"not bearer", "/route", func(*testing.T) string { return "Basic abc" }, fiber.StatusUnauthorized},
		{"garbage token", "/route", func(*testing.T) string { return "Bearer abc" }, fiber.StatusUnauthorized},
		{"service may route", "/route", func(t *testing.T) string { return token(t, "service") }, fiber.StatusOK},
		{"operator may not route", "/route", func(t *testing.T) string { return token(t, "operator") }, fiber.StatusForbidden},
		{"admin may route", "/route", func(t *testing.T) string { return token(t, "admin", models.PermissionPaymentRead) }, fiber.StatusOK},
		{"service is not admin", "/admin", func(t *testing.T) string { return token(t, "service") }, fiber.StatusForbidden},
		{"admin", "/admin", func(t *testing.T) string { return token(t, "admin") }, fiber.StatusOK},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if h := tt.header(t); h != "" {
				req.Header.Set("Authorization", h)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
