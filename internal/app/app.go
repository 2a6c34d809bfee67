// Package app wires stores, tracking services and handlers into an
// echo instance.
package app

import (
	"database/sql"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/techtrack/internal/config"
	"github.com/iliyamo/techtrack/internal/handler"
	"github.com/iliyamo/techtrack/internal/metrics"
	"github.com/iliyamo/techtrack/internal/repository"
	"github.com/iliyamo/techtrack/internal/router"
	"github.com/iliyamo/techtrack/internal/session"
	"github.com/iliyamo/techtrack/internal/tracking"
)

// Options holds the optional collaborators.
type Options struct {
	Metrics *metrics.Metrics
	Redis   *redis.Client
	Events  tracking.EventPublisher
	Now     func() time.Time
}

// New builds the HTTP server for db.
func New(cfg config.Config, db *sql.DB, log *zap.Logger, opts Options) *echo.Echo {
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	techs := repository.NewTechnicianRepo(db)
	tokens := repository.NewTokenRepo(db)
	refs := repository.NewReferenceRepo(db)
	racks := repository.NewRackRepo(db)
	results := repository.NewRackResultRepo(db)
	tasks := repository.NewTaskRepo(db)
	states := repository.NewRackStateRepo(db)
	reports := repository.NewReportRepo(db)

	progress := tracking.NewProgress(results)
	recorder := &tracking.Recorder{
		Tasks:       tasks,
		Technicians: techs,
		Racks:       racks,
		References:  refs,
		Progress:    progress,
		Events:      opts.Events,
		Log:         log,
		Now:         now,
	}
	resolver := &tracking.Resolver{
		Tasks:    tasks,
		States:   states,
		Racks:    racks,
		Progress: progress,
		Location: cfg.Timezone,
	}
	board := &tracking.Board{
		Technicians: techs,
		Resolver:    resolver,
		Recorder:    recorder,
		States:      states,
		Racks:       racks,
		References:  refs,
		Progress:    progress,
		Now:         now,
	}

	var taskMetrics handler.TaskMetrics
	auth := handler.NewAuthHandler(cfg, techs, tokens, log)
	auth.Now = now
	if opts.Metrics != nil {
		taskMetrics = opts.Metrics
		auth.Metrics = opts.Metrics
	}

	return router.New(router.Deps{
		Cfg:      cfg,
		DB:       db,
		Log:      log,
		Metrics:  opts.Metrics,
		Redis:    opts.Redis,
		Sessions: &session.Resolver{Tokens: tokens, Technicians: techs, Now: now},
		Links:    &session.LinkResolver{Secret: cfg.SurveySecret, Technicians: techs, Now: now},
		Auth:     auth,
		Survey: &handler.SurveyHandler{
			References: refs,
			Racks:      racks,
			Recorder:   recorder,
			Resolver:   resolver,
			Metrics:    taskMetrics,
			Log:        log,
			Now:        now,
		},
		Team: &handler.TeamHandler{
			Cfg:         cfg,
			Board:       board,
			Technicians: techs,
			Metrics:     taskMetrics,
			Log:         log,
			Now:         now,
		},
		Admin: &handler.AdminHandler{
			Cfg:         cfg,
			References:  refs,
			Technicians: techs,
			Racks:       racks,
			Results:     results,
			Reporter:    &tracking.Reporter{Reports: reports, Location: cfg.Timezone},
			Resolver:    resolver,
			Progress:    progress,
			Log:         log,
			Now:         now,
		},
	})
}
