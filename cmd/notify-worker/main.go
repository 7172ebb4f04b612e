package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/carelink-health/agenda-platform/cmd/mainconfig"
	appbootstrap "github.com/carelink-health/agenda-platform/internal/app/bootstrap"
	appconfig "github.com/carelink-health/agenda-platform/internal/config"
	"github.com/carelink-health/agenda-platform/internal/groups"
	"github.com/carelink-health/agenda-platform/internal/notify"
	notifierworker "github.com/carelink-health/agenda-platform/internal/worker/notifier"
	"github.com/carelink-health/agenda-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel, cfg.Env)

	if err := run(cfg, logger); err != nil {
		logger.Error("notify worker exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	if cfg.UseMemoryQueue {
		return fmt.Errorf("notify worker cannot run when USE_MEMORY_QUEUE=true; the API drains the in-memory queue inline")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	queue := appbootstrap.BuildQueueClient(cfg, awsCfg, logger)
	emailSender := appbootstrap.BuildEmailSender(cfg, awsCfg, logger)
	notifySvc := notify.NewService(emailSender, logger)
	groupStore := groups.NewStore(pool)

	worker := notifierworker.New(queue, groupStore, notifySvc, logger).
		WithWaitSeconds(cfg.WorkerPollWaitSeconds)
	worker.Run(ctx)
	return nil
}
