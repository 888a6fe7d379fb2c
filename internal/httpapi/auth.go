package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const apiKeyHeader = "x-api-key"

// apiKeyMiddleware enforces the shared-secret header on every route except
// the health probe. An empty configured key disables the check.
func (s *Server) apiKeyMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.opts.APIKey == "" {
			return next(c)
		}
		if c.Request().URL.Path == "/healthz" {
			return next(c)
		}

		provided := strings.TrimSpace(c.Request().Header.Get(apiKeyHeader))
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.opts.APIKey)) != 1 {
			return fail(c, http.StatusUnauthorized, "Invalid or missing API key", nil)
		}
		return next(c)
	}
}
