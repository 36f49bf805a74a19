package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// currentUserID returns the authenticated subject or "anon" when the
// request carries no token.  Numeric subjects are rendered as integers.
func currentUserID(c echo.Context) string {
	switch v := c.Get(ctxUserID).(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return "anon"
}
