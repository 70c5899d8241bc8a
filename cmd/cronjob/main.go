package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"carrental-backend/internal/config"
	"carrental-backend/internal/jobs"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository/postgres"
	"carrental-backend/internal/scheduler"
	"carrental-backend/internal/service"
	"carrental-backend/internal/ttl"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'sweep-deposit-expiry', 'sweep-overdue-confirmed', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Car Rental Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Redis backs the deposit timer; sweeps never register new keys.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Services
	policy := service.NewBookingPolicy(cfg.Booking)
	bookingSvc := service.NewBookingService(
		store.BookingRepository,
		store.AccountRepository,
		store.Cars,
		store.Numbers,
		ttl.NewTracker(rdb),
		service.NewEmailServiceFromConfig(cfg.SMTP),
		policy,
	)

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(jobs.NewSweeper(store.BookingRepository, bookingSvc, policy), cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if err := runJobOnce(jobRunner, *runOnce); err != nil {
			logger.Error("Job finished with failures", "job", *runOnce, "error", err)
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		log.Fatalf("Failed to register cron jobs: %v", err)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and reports per-booking failures
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) error {
	var reports []*jobs.SweepReport
	switch jobName {
	case "sweep-deposit-expiry":
		reports = append(reports, jobRunner.RunDepositExpiry())
	case "sweep-overdue-confirmed":
		reports = append(reports, jobRunner.RunOverdueConfirmed())
	case "all":
		reports = jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - sweep-deposit-expiry\n")
		fmt.Printf("  - sweep-overdue-confirmed\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}

	for _, report := range reports {
		fmt.Printf("%s: scanned=%d applied=%d skipped=%d failed=%d\n",
			report.Job, report.Scanned, report.Applied, report.Skipped, len(report.Failures))
	}
	for _, report := range reports {
		if err := report.Err(); err != nil {
			return err
		}
	}
	return nil
}
