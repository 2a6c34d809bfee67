package middleware

// identity.go carries the authenticated technician through the echo
// context. Handlers read it with CurrentTechnician and pass it on to the
// tracking layer explicitly.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/techtrack/internal/model"
)

const technicianKey = "technician"

// SetTechnician stores t on the request context.
func SetTechnician(c echo.Context, t *model.Technician) {
	c.Set(technicianKey, t)
}

// CurrentTechnician returns the technician set by an auth middleware.
func CurrentTechnician(c echo.Context) (*model.Technician, bool) {
	t, ok := c.Get(technicianKey).(*model.Technician)
	return t, ok && t != nil
}

// technicianID is the rate limiter key part; "anon" before auth.
func technicianID(c echo.Context) string {
	if t, ok := CurrentTechnician(c); ok {
		return strconv.FormatUint(t.ID, 10)
	}
	return "anon"
}
