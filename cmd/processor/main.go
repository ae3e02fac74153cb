package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/loyalty-engine/internal/config"
	gateway "github.com/nimasrn/loyalty-engine/internal/gateways"
	"github.com/nimasrn/loyalty-engine/internal/processor"
	"github.com/nimasrn/loyalty-engine/internal/queue"
	"github.com/nimasrn/loyalty-engine/pkg/logger"
	"github.com/nimasrn/loyalty-engine/pkg/prom"
	"github.com/nimasrn/loyalty-engine/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer logger.Sync()
	logger.Info("starting notification processor", "version", version, "commit", commit, "date", date)

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{cfg.RedisAddr},
		ClientName: cfg.AppName + "-processor",
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	client, err := gateway.NewClient(&gateway.Config{
		Providers: []gateway.ProviderConfig{
			{Name: "primary", URL: cfg.SmsProviderPrimaryUrl},
			{Name: "secondary", URL: cfg.SmsProviderSecondaryUrl},
		},
		SenderID:                cfg.SmsSenderID,
		Timeout:                 cfg.SmsTimeout,
		MaxRetries:              3,
		RetryDelay:              100 * time.Millisecond,
		MaxConns:                1000,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
	})
	if err != nil {
		logger.Error("failed to create sms gateway", "error", err)
		return
	}

	idempotencyConfig := processor.DefaultIdempotencyConfig()
	idempotencyConfig.MaxRetries = cfg.NotifyQueueMaxRetries
	idempotency := processor.NewIdempotencyService(redisAdap, idempotencyConfig)

	service, err := processor.NewProcessorService(redisAdap, processor.NewNotificationProcessor(client, idempotency), processor.ServiceConfig{
		Queue: queue.QueueConfig{
			Name:              cfg.NotifyQueueName,
			ConsumerGroup:     cfg.NotifyQueueConsumerGroup,
			ConsumerName:      cfg.NotifyQueueConsumerName,
			MaxRetries:        cfg.NotifyQueueMaxRetries,
			VisibilityTimeout: cfg.NotifyQueueVisibilityTimeout,
			PollInterval:      cfg.NotifyQueuePollInterval,
			BatchSize:         cfg.NotifyQueueBatchSize,
			MaxLen:            cfg.NotifyQueueMaxLen,
			EnableDLQ:         cfg.NotifyQueueEnableDLQ,
		},
		Consumers: cfg.NotifyQueueConsumers,
		Workers:   cfg.NotifyQueueWorkers,
	})
	if err != nil {
		logger.Error("failed to create the processor", "error", err)
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)

	if err := service.Start(); err != nil {
		logger.Error("failed to start processor", "error", err)
		service.Stop()
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	service.Stop()
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if path, ok := strings.CutPrefix(v, "--env="); ok {
			if _, err := os.Stat(path); err != nil {
				logger.Error("failed to open the passed env file", "path", path, "error", err)
				return ""
			}
			return path
		}
	}
	return ""
}
