package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carelink-health/agenda-platform/cmd/mainconfig"
	"github.com/carelink-health/agenda-platform/internal/api/router"
	appbootstrap "github.com/carelink-health/agenda-platform/internal/app/bootstrap"
	"github.com/carelink-health/agenda-platform/internal/appointments"
	appconfig "github.com/carelink-health/agenda-platform/internal/config"
	"github.com/carelink-health/agenda-platform/internal/events"
	"github.com/carelink-health/agenda-platform/internal/groups"
	"github.com/carelink-health/agenda-platform/internal/idlock"
	"github.com/carelink-health/agenda-platform/internal/notify"
	"github.com/carelink-health/agenda-platform/internal/observability/metrics"
	notifierworker "github.com/carelink-health/agenda-platform/internal/worker/notifier"
	"github.com/carelink-health/agenda-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel, cfg.Env)
	logger.Info("starting agenda-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	queue := appbootstrap.BuildQueueClient(cfg, awsCfg, logger)
	publisher := events.NewPublisher(queue, logger)

	redisClient := appbootstrap.BuildRedisClient(ctx, cfg, logger, true)
	locker := idlock.New(redisClient, cfg.LockTTL)
	if locker == nil {
		logger.Warn("redis lock disabled, relying on version checks only")
	}

	registry := prometheus.NewRegistry()
	agendaMetrics := metrics.NewAgendaMetrics(registry)

	appointmentStore := appointments.NewStore(pool)
	groupStore := groups.NewStore(pool)
	emailSender := appbootstrap.BuildEmailSender(cfg, awsCfg, logger)
	notifySvc := notify.NewService(emailSender, logger)

	service := appointments.NewService(appointmentStore, logger, appointments.ServiceOptions{
		Locker:           locker,
		Publisher:        publisher,
		Metrics:          agendaMetrics,
		RetryMaxAttempts: cfg.StoreRetryMaxAttempts,
		RetryBaseDelay:   cfg.StoreRetryBaseDelay,
	})

	// With the in-memory queue the notifier has to run inline, there is
	// no separate worker process to drain it.
	if _, inline := queue.(*events.MemoryQueue); inline {
		worker := notifierworker.New(queue, groupStore, notifySvc, logger).
			WithWaitSeconds(cfg.WorkerPollWaitSeconds)
		go worker.Run(ctx)
	}

	appointmentsHandler := appointments.NewHandler(service, logger)
	groupsHandler := groups.NewHandler(groupStore, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		AppointmentsHandler: appointmentsHandler,
		GroupsHandler:       groupsHandler,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
