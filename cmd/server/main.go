package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/segyhp/booking-settlement/internal/cache"
	"github.com/segyhp/booking-settlement/internal/config"
	"github.com/segyhp/booking-settlement/internal/handler"
	"github.com/segyhp/booking-settlement/internal/logger"
	"github.com/segyhp/booking-settlement/internal/queue"
	"github.com/segyhp/booking-settlement/internal/repository"
	"github.com/segyhp/booking-settlement/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load configuration")
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Log

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize redis")
	}
	defer redisClient.Close()

	publisher := queue.NewPublisher(cfg.RabbitMQ)
	defer publisher.Close()

	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	bookingCache := cache.NewBookingCache(redisClient, cfg.GetBookingCacheTTL())

	settlementService := service.NewSettlementService(bookingRepo, paymentRepo, outboxRepo, bookingCache, publisher, cfg)
	settlementHandler := handler.NewSettlementHandler(settlementService)

	checks := map[string]handler.Check{
		"database": db.PingContext,
		"redis":    bookingCache.Ping,
	}
	if rabbit, ok := publisher.(*queue.RabbitPublisher); ok {
		checks["rabbitmq"] = rabbit.Ping
	}
	healthHandler := handler.NewHealthHandler(checks, cfg.GetHealthTimeout())

	router := handler.NewRouter(
		settlementHandler,
		healthHandler,
		handler.RateLimit(cfg.RateLimit.Requests, cfg.GetRateLimitPeriod()),
		log,
	)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}
