package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/techtrack/internal/app"
	"github.com/iliyamo/techtrack/internal/config"
	"github.com/iliyamo/techtrack/internal/database"
	"github.com/iliyamo/techtrack/internal/logger"
	"github.com/iliyamo/techtrack/internal/metrics"
	"github.com/iliyamo/techtrack/internal/queue"
	"github.com/iliyamo/techtrack/internal/repository"
	"github.com/iliyamo/techtrack/internal/service"
)

const tokenPurgeEvery = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func dbOptions(cfg config.DBConfig) database.Options {
	return database.Options{
		Driver: cfg.Driver,
		User:   cfg.User,
		Pass:   cfg.Pass,
		Host:   cfg.Host,
		Port:   cfg.Port,
		Name:   cfg.Name,
		Path:   cfg.Path,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(dbOptions(cfg.DB))
	if err != nil {
		log.Error("open database", zap.String("driver", cfg.DB.Driver), zap.Error(err))
		return err
	}
	defer db.Close()
	database.SetLogger(log)
	if err := database.Migrate(ctx, db, cfg.DB.Driver); err != nil {
		log.Error("migrate", zap.Error(err))
		return err
	}

	opts := app.Options{Redis: config.NewRedisClient(cfg.Redis)}
	if opts.Redis == nil && cfg.RateLimit.Enabled {
		log.Warn("redis unavailable, rate limiting disabled", zap.String("addr", cfg.Redis.Addr))
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = metrics.New(cfg.Metrics.Namespace)
	}
	if cfg.Queue.Enabled {
		opts.Events = service.NewPublisher(cfg.Queue.URL, log)
		sink, err := logger.NewFile(cfg.Logger, cfg.Queue.TaskLogPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.Sync() }()
		go func() {
			if err := queue.StartTaskConsumer(ctx, cfg.Queue.URL, log, sink); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("task consumer stopped", zap.Error(err))
			}
		}()
	}

	go purgeTokens(ctx, repository.NewTokenRepo(db), log)

	e := app.New(cfg, db, log, opts)
	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("timezone", cfg.TimezoneName))
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
		return err
	}
	if opts.Redis != nil {
		_ = opts.Redis.Close()
	}
	return nil
}

// purgeTokens deletes expired session tokens until ctx is done.
func purgeTokens(ctx context.Context, tokens *repository.TokenRepo, log *zap.Logger) {
	t := time.NewTicker(tokenPurgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := tokens.PurgeExpired(ctx, now.UTC())
			if err != nil {
				log.Warn("purge expired tokens", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("purged expired tokens", zap.Int64("count", n))
			}
		}
	}
}
