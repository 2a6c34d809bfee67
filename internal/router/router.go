package router

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/techtrack/internal/config"
	"github.com/iliyamo/techtrack/internal/handler"
	"github.com/iliyamo/techtrack/internal/metrics"
	"github.com/iliyamo/techtrack/internal/middleware"
	"github.com/iliyamo/techtrack/internal/model"
)

// Deps carries everything the routes need. Metrics and Redis are
// optional.
type Deps struct {
	Cfg      config.Config
	DB       *sql.DB
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	Redis    *redis.Client
	Sessions middleware.Resolver
	Links    middleware.Resolver
	Auth     *handler.AuthHandler
	Survey   *handler.SurveyHandler
	Team     *handler.TeamHandler
	Admin    *handler.AdminHandler
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(d.Log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
	}
	e.Use(middleware.RequestLog(d.Log))

	RegisterRoutes(e, d)
	RegisterAuth(e, d)
	RegisterSurvey(e, d)
	RegisterTeam(e, d)
	RegisterAdmin(e, d)
	return e
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}
}

func (d Deps) limiter() echo.MiddlewareFunc {
	var counter middleware.LimitCounter
	if d.Metrics != nil {
		counter = d.Metrics
	}
	return middleware.NewTokenBucket(d.Cfg.RateLimit, d.Redis, d.Log, counter)
}

func (d Deps) failures() middleware.FailureCounter {
	if d.Metrics != nil {
		return d.Metrics
	}
	return nil
}

// RegisterAuth registers login, registration and session routes.
// Unauthenticated operations live under /v1/auth and are rate limited.
func RegisterAuth(e *echo.Echo, d Deps) {
	g := e.Group("/v1/auth", d.limiter())
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)

	auth := middleware.TokenAuth(d.Sessions, d.Log, d.failures())
	g.POST("/logout", d.Auth.Logout, auth)
	e.GET("/v1/me", d.Auth.Me, auth)
}

// RegisterSurvey registers the self-service form. It accepts a session
// token or a survey link.
func RegisterSurvey(e *echo.Echo, d Deps) {
	g := e.Group("/v1/survey", middleware.SurveyOrSession(d.Sessions, d.Links, d.Log, d.failures()))
	g.GET("/options", d.Survey.Options)
	g.POST("/tasks", d.Survey.Submit, d.limiter())
}

// RegisterTeam registers the team lead board.
func RegisterTeam(e *echo.Echo, d Deps) {
	g := e.Group("/v1/team",
		middleware.TokenAuth(d.Sessions, d.Log, d.failures()),
		middleware.RequireRole(model.RoleTeamLead, model.RoleAdmin),
	)
	g.GET("/tasks", d.Team.Roster)
	g.POST("/tasks", d.Team.Assign)
	g.POST("/rack-states", d.Team.CloseRackTask)
	g.POST("/survey-links", d.Team.SurveyLink)
}

// RegisterAdmin registers reference data administration and reports.
// Static segments take precedence over :kind in echo's router.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/v1/admin",
		middleware.TokenAuth(d.Sessions, d.Log, d.failures()),
		middleware.RequireRole(model.RoleAdmin),
	)
	a := d.Admin

	g.GET("/technicians", a.ListTechnicians)
	g.POST("/technicians", a.SaveTechnicians)
	g.DELETE("/technicians/:id", a.DeleteTechnician)

	g.GET("/racks", a.ListRacks)
	g.POST("/racks", a.SaveRacks)
	g.GET("/racks/snapshots", a.RackSnapshots)
	g.GET("/racks/states", a.RackStates)
	g.GET("/racks/:id/results", a.RackResults)

	g.GET("/reports/tasks", a.TaskReport)
	g.GET("/progress", a.ProgressReport)

	g.GET("/:kind", a.ListReferences)
	g.POST("/:kind", a.SaveReferences)
	g.DELETE("/:kind/:id", a.DeleteReference)
}

// errorHandler renders errors as {"error": message}.
func errorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		msg := "internal error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(status)
			}
		} else if log != nil {
			log.Error("unhandled error", zap.String("path", c.Request().URL.Path), zap.Error(err))
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, echo.Map{"error": msg})
		}
		if err != nil && log != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}
