// Package bootstrap wires runtime dependencies shared by the API and the
// notification worker.
package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/carelink-health/agenda-platform/internal/config"
	"github.com/carelink-health/agenda-platform/internal/events"
	"github.com/carelink-health/agenda-platform/internal/notify"
	"github.com/carelink-health/agenda-platform/pkg/logging"
)

// BuildRedisClient connects to Redis for the per-appointment writer
// lock. Returns nil when Redis is not configured or unreachable; the
// service then falls back to version checks alone.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildQueueClient selects the event transport: SQS in deployments, the
// in-memory queue for development and tests.
func BuildQueueClient(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) events.QueueClient {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.UseMemoryQueue || strings.TrimSpace(cfg.EventQueueURL) == "" {
		logger.Info("using in-memory event queue")
		return events.NewMemoryQueue(0)
	}
	return events.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.EventQueueURL)
}

// BuildEmailSender selects SES when a from-address is configured, the
// log-only sender otherwise.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.NotifyFromEmail) == "" {
		logger.Info("email notifications running in log-only mode")
		return notify.NewLogSender(logger)
	}
	return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
		FromEmail: cfg.NotifyFromEmail,
		FromName:  cfg.NotifyFromName,
	}, logger)
}
