package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/barberia/backoffice/cmd/backoffice/cli"
	"github.com/barberia/backoffice/internal/app"
	"github.com/barberia/backoffice/internal/auth"
	"github.com/barberia/backoffice/internal/observability"
	"github.com/barberia/backoffice/internal/platform/cache"
	"github.com/barberia/backoffice/internal/platform/db"
)

const usage = `usage: backoffice <command>

commands:
  serve                         run the HTTP API (default)
  migrate                       apply pending database migrations
  create-user -username U -password P [-staff=true]
  jobs trigger <name>           enqueue inventory:low_stock_scan or dashboard:warmup
  jobs stats                    print default queue statistics
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping backoffice startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = migrate(ctx, cfg, logger)
	case "create-user":
		err = createUser(ctx, cfg, logger, args)
	case "jobs":
		err = jobsCommand(ctx, cfg, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(cmd, slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.DBOptions()...)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	deps := app.Deps{
		Config:  cfg,
		Logger:  logger,
		Pool:    pool,
		Redis:   redisClient,
		Metrics: observability.NewMetrics(),
	}
	services, err := app.NewServices(deps)
	if err != nil {
		return err
	}
	inspector := asynq.NewInspector(cfg.QueueRedis())
	defer func() { _ = inspector.Close() }()

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           services.Router(deps, inspector),
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.DBOptions()...)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	applied, err := db.Migrate(ctx, pool)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		logger.Info("schema up to date")
		return nil
	}
	for _, name := range applied {
		logger.Info("applied migration", slog.String("name", name))
	}
	return nil
}

func createUser(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	username := fs.String("username", "", "login name")
	password := fs.String("password", "", "plain text password")
	isStaff := fs.Bool("staff", true, "grant back-office access")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || len(*password) < 8 {
		return errors.New("create-user: username and a password of at least 8 characters are required")
	}
	hash, err := auth.HashPassword(*password)
	if err != nil {
		return err
	}
	pool, err := db.New(ctx, cfg.PGDSN, cfg.DBOptions()...)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	id, err := auth.NewRepository(pool).CreateUser(ctx, *username, hash, *isStaff)
	if err != nil {
		return err
	}
	logger.Info("staff user saved", slog.Int64("id", id), slog.String("username", *username))
	return nil
}

func jobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	c := cli.NewJobs(cfg.QueueRedis(), os.Stdout)
	defer func() { _ = c.Close() }()
	return c.Run(ctx, args)
}
