package middleware

// identity.go keeps the principal attached to the Echo context.  The user
// id and role are also stored under "user_id" and "role" for handlers that
// only need those.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-booking-core/internal/model"
)

const principalKey = "principal"

func setPrincipal(c echo.Context, p model.Principal) {
	c.Set(principalKey, p)
	c.Set("user_id", strconv.FormatUint(p.UserID, 10))
	c.Set("role", p.Role)
}

// PrincipalFrom returns the authenticated caller, if any.
func PrincipalFrom(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	return p, ok && p.UserID != 0
}

// currentUserID returns the caller's id for keying, or "anon".
func currentUserID(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok {
		return strconv.FormatUint(p.UserID, 10)
	}
	return "anon"
}
