package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/techtrack/internal/model"
	"github.com/iliyamo/techtrack/internal/session"
)

// SurveyTokenHeader carries a survey link token; the "link" query
// parameter is accepted as well so links can be opened in a browser.
const SurveyTokenHeader = "X-Survey-Token"

// Resolver maps a credential to a technician. session.Resolver and
// session.LinkResolver both satisfy it.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (*model.Technician, error)
}

// FailureCounter is told about rejected credentials.
type FailureCounter interface {
	AuthFailed(reason string)
}

// TokenAuth requires a valid "Authorization: Bearer <token>" header.
func TokenAuth(sessions Resolver, log *zap.Logger, failures FailureCounter) echo.MiddlewareFunc {
	return SurveyOrSession(sessions, nil, log, failures)
}

// SurveyOrSession accepts a bearer session token or, when links is not
// nil, a survey link. The bearer token wins when both are present.
func SurveyOrSession(sessions, links Resolver, log *zap.Logger, failures FailureCounter) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			var (
				resolver Resolver
				cred     string
				reason   string
			)
			if raw, ok := bearer(c.Request()); ok {
				resolver, cred, reason = sessions, raw, "session"
			} else if links != nil {
				if link := surveyToken(c); link != "" {
					resolver, cred, reason = links, link, "survey_link"
				}
			}
			if resolver == nil {
				fail(failures, "missing")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing credentials"})
			}
			t, err := resolver.Resolve(ctx, cred)
			if err != nil {
				if errors.Is(err, session.ErrUnauthenticated) {
					fail(failures, reason)
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired credentials"})
				}
				log.Error("resolve credentials", zap.String("kind", reason), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "auth lookup failed"})
			}
			SetTechnician(c, t)
			return next(c)
		}
	}
}

func bearer(r *http.Request) (string, bool) {
	auth := r.Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

func surveyToken(c echo.Context) string {
	if v := strings.TrimSpace(c.Request().Header.Get(SurveyTokenHeader)); v != "" {
		return v
	}
	return strings.TrimSpace(c.QueryParam("link"))
}

func fail(f FailureCounter, reason string) {
	if f != nil {
		f.AuthFailed(reason)
	}
}
