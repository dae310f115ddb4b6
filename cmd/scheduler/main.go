package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/segyhp/booking-settlement/internal/cache"
	"github.com/segyhp/booking-settlement/internal/config"
	"github.com/segyhp/booking-settlement/internal/jobs"
	"github.com/segyhp/booking-settlement/internal/logger"
	"github.com/segyhp/booking-settlement/internal/queue"
	"github.com/segyhp/booking-settlement/internal/repository"
	"github.com/segyhp/booking-settlement/internal/service"
)

// jobTimeout bounds one run of a scheduled job.
const jobTimeout = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load configuration")
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Log
	log.Info("Starting settlement scheduler...")

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize redis")
	}
	defer redisClient.Close()

	publisher := queue.NewPublisher(cfg.RabbitMQ)
	defer publisher.Close()

	settlementService := service.NewSettlementService(
		repository.NewBookingRepository(db),
		repository.NewPaymentRepository(db),
		repository.NewOutboxRepository(db),
		cache.NewBookingCache(redisClient, cfg.GetBookingCacheTTL()),
		publisher,
		cfg,
	)

	cronLog := jobs.CronLogger{Log: log}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(cfg.GetSchedulerLocation()),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	if _, err := c.AddJob(cfg.Scheduler.LateFeeCron, jobs.NewLateFeeJob(settlementService, log, jobTimeout)); err != nil {
		log.WithError(err).Fatal("Error scheduling late fee job")
	}
	if _, err := c.AddJob(cfg.Scheduler.PayoutCron, jobs.NewPayoutJob(settlementService, log, jobTimeout)); err != nil {
		log.WithError(err).Fatal("Error scheduling payout job")
	}
	if _, err := c.AddJob(cfg.Outbox.RelayCron, jobs.NewOutboxRelayJob(settlementService, log, jobTimeout)); err != nil {
		log.WithError(err).Fatal("Error scheduling outbox relay job")
	}

	c.Start()
	log.WithField("timezone", cfg.Scheduler.Timezone).Info("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Info("Scheduler stopped")
}
