package handlers

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler(t *testing.T) {
	failing := func(c *fiber.Ctx) error { return errors.New("pq: password authentication failed") }

	tests := []struct {
		name     string
		debug    bool
		handler  fiber.Handler
		wantCode int
		wantBody string
	}{
		{"production hides detail", false, failing, 500, `{"error":"Internal server error"}`},
		{"debug adds detail", true, failing, 500, `{"error":"Internal server error","detail":"pq: password authentication failed"}`},
		{"fiber error keeps code", false, func(c *fiber.Ctx) error { return fiber.ErrNotFound }, 404, `{"error":"Not Found"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(tt.debug)})
			app.Get("/", tt.handler)

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			body, _ := io.ReadAll(resp.Body)
			assert.JSONEq(t, tt.wantBody, string(body))
		})
	}
}
