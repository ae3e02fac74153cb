package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/loyalty-engine/internal/clock"
	"github.com/nimasrn/loyalty-engine/internal/config"
	"github.com/nimasrn/loyalty-engine/internal/handlers"
	"github.com/nimasrn/loyalty-engine/internal/notification"
	"github.com/nimasrn/loyalty-engine/internal/queue"
	"github.com/nimasrn/loyalty-engine/internal/repository"
	"github.com/nimasrn/loyalty-engine/internal/services"
	xhttp "github.com/nimasrn/loyalty-engine/pkg/http"
	"github.com/nimasrn/loyalty-engine/pkg/logger"
	"github.com/nimasrn/loyalty-engine/pkg/pg"
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
	logger.Info("starting loyalty api", "version", version, "commit", commit, "date", date)

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()

	// statements end before the request timeout answers 408
	db, err := pg.CreateReadWrite(pg.Config{
		User:             cfg.PostgresReadUser,
		Host:             cfg.PostgresReadHost,
		Port:             cfg.PostgresReadPort,
		Password:         cfg.PostgresReadPassword,
		Database:         cfg.PostgresReadDatabase,
		StatementTimeout: cfg.PostgresStatementTimeout,
	}, pg.Config{
		User:             cfg.PostgresWriteUser,
		Host:             cfg.PostgresWriteHost,
		Port:             cfg.PostgresWritePort,
		Password:         cfg.PostgresWritePassword,
		Database:         cfg.PostgresWriteDatabase,
		StatementTimeout: cfg.PostgresStatementTimeout,
	}, cfg.AppDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{cfg.RedisAddr},
		ClientName: cfg.AppName + "-api",
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	// the api only publishes; consumers live in the processor binary
	notifyQueue, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:          cfg.NotifyQueueName,
		ConsumerGroup: cfg.NotifyQueueConsumerGroup,
		ConsumerName:  cfg.NotifyQueueConsumerName + "-api",
		MaxRetries:    cfg.NotifyQueueMaxRetries,
		MaxLen:        cfg.NotifyQueueMaxLen,
		EnableDLQ:     cfg.NotifyQueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating notification queue", "error", err)
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

	clk := clock.New()
	codes := services.NewCodeGenerator(cfg.ReferralCodeLength)

	// repositories
	businessRepo := repository.NewBusinessRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	programRepo := repository.NewProgramRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	rewardRepo := repository.NewRewardRepository(db)

	// services
	membershipService := services.NewMembershipService(db, membershipRepo, customerRepo, programRepo, codes, clk)
	transactionService := services.NewTransactionService(db, businessRepo, customerRepo, programRepo, transactionRepo,
		membershipService, codes, notification.NewQueueNotifier(notifyQueue, clk), clk)
	referralService := services.NewReferralService(db, customerRepo, programRepo, referralRepo, transactionRepo, membershipService, codes)
	programService := services.NewProgramService(programRepo, businessRepo)
	businessService := services.NewBusinessService(businessRepo)
	customerService := services.NewCustomerService(customerRepo, transactionRepo)
	rewardService := services.NewRewardService(customerRepo, programRepo, rewardRepo)
	healthService := services.NewHealthService(db)

	opt := xhttp.DefaultServerOption.WithOverrides(
		cfg.HttpServerReadTimeout,
		cfg.HttpServerWriteTimeout,
		cfg.HttpServerReadBufferSize,
		cfg.HttpServerWriteBufferSize,
	)
	s := xhttp.NewServer(opt)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpServerRequestTimeout))

	// v1 handlers
	g := s.Router.Group("/api/v1")
	handlers.RegisterTransactionRoutes(g, handlers.NewTransactionHandler(transactionService))
	handlers.RegisterReferralRoutes(g, handlers.NewReferralHandler(referralService))
	handlers.RegisterProgramRoutes(g, handlers.NewProgramHandler(programService, businessService, membershipService, rewardService))
	handlers.RegisterCustomerRoutes(g, handlers.NewCustomerHandler(customerService, membershipService, rewardService))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(healthService))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(cfg.HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
			c <- syscall.SIGTERM
		}
	}()

	<-c
	s.Shutdown()
	if err := notifyQueue.Stop(5 * time.Second); err != nil {
		logger.Warn("notification queue did not stop cleanly", "error", err)
	}
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
