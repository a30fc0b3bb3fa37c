package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/ticket-booking-core/internal/model"
)

// AccessVerifier checks an access token offline and returns its principal.
type AccessVerifier interface {
	VerifyAccess(raw string) (model.Principal, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// attaches the resulting principal to the request context.  Handlers read it
// with PrincipalFrom and pass it explicitly into service calls.  No store
// lookup happens here; a revoked session keeps working until its access
// token expires.
func JWTAuth(v AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			p, err := v.VerifyAccess(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			setPrincipal(c, p)
			return next(c)
		}
	}
}

// OptionalJWT attaches a principal when a valid bearer token is present
// and otherwise lets the request through anonymously.
func OptionalJWT(v AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearer(c); ok {
				if p, err := v.VerifyAccess(raw); err == nil {
					setPrincipal(c, p)
				}
			}
			return next(c)
		}
	}
}

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}
