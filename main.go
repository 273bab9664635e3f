package main

import (
	"Quizrace/config"
	"Quizrace/controllers"
	_ "Quizrace/docs"
	"Quizrace/middleware"
	"Quizrace/routes"
	"Quizrace/scheduler"
	"Quizrace/services/engine"
	"Quizrace/services/notify"
	"Quizrace/services/questions"
	"Quizrace/services/redis"
	"Quizrace/services/socket_io"
	"Quizrace/services/store"
	"Quizrace/utils/clock"
	"Quizrace/utils/logger"
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

// @title Quizrace API
// @version 1.0
// @description Timed pay-to-play trivia rounds
// @BasePath /
func main() {
	defer logger.Sync()
	logger.Info("Setting up server...")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Error loading configuration: %v", err)
	}
	if cfg.Prod {
		gin.SetMode(gin.ReleaseMode)
	}

	gormDB, err := config.ConnectGORM(cfg)
	if err != nil {
		logger.Fatalf("Error connecting to PostgreSQL: %v", err)
	}
	// Only migrate in development or during deployment
	if cfg.MigratePostgres {
		logger.Info("Migrating PostgreSQL database...")
		if err := config.MigrateDatabase(gormDB); err != nil {
			logger.Warnf("Database migration failed: %v", err)
		}
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatalf("Error reading GORM PostgreSQL instance: %v", err)
	}
	defer sqlDB.Close()

	redisClient, err := config.Connect_redis(cfg)
	if err != nil {
		logger.Fatalf("Error connecting to Redis: %v", err)
	}
	defer redis.CloseRedis(redisClient)

	sio := socket_io.NewSocketServer()
	defer sio.Close()
	publisher := notify.Fanout{notify.NewRedisSink(redisClient), sio}
	if cfg.AMQPURL != "" {
		amqpSink, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			logger.Fatalf("Error connecting to RabbitMQ: %v", err)
		}
		defer amqpSink.Close()
		publisher = append(publisher, amqpSink)
	}

	eng, err := engine.New(engine.Options{
		Store:     store.NewGormStore(gormDB),
		Bank:      questions.NewGormBank(gormDB),
		Publisher: publisher,
		Policy:    cfg.FraudPolicy(),
		Now:       clock.System,
	})
	if err != nil {
		logger.Fatalf("Error building engine: %v", err)
	}

	sweeper := scheduler.New(eng, cfg.SweepTimeout)
	if err := sweeper.Start(cfg.SweepSpec); err != nil {
		logger.Fatalf("Error starting sweeper: %v", err)
	}
	defer sweeper.Stop()

	r := gin.Default()
	middleware.SetUpMiddleware(r, cfg.Key, cfg.Prod)
	routes.SetupRoutes(r, routes.Deps{
		Engine:               eng,
		History:              redisClient,
		PaymentWebhookSecret: cfg.PaymentWebhookSecret,
		AdminKeyHash:         cfg.AdminKeyHash,
		Health: []controllers.Dependency{
			{Name: "postgres", Check: sqlDB.PingContext},
			{Name: "redis", Check: redisClient.Ping},
		},
	})
	sio.Start(r, redisClient)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Infof("Server started on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error shutting down server: %v", err)
	}
}
