package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"carrental-backend/internal/jobs"
	"carrental-backend/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a scheduler and registers both sweeps. It fails on an invalid cron spec.
func NewScheduler(jobRunner *jobs.JobRunner) (*Scheduler, error) {
	// UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	if err := s.registerJobs(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) registerJobs() error {
	cfg := s.jobs.Config().Scheduler

	if _, err := s.cron.AddFunc(cfg.SweepDepositExpiry, s.jobs.SweepDepositExpiry); err != nil {
		logger.Error("Failed to register SweepDepositExpiry job", "spec", cfg.SweepDepositExpiry, "error", err)
		return err
	}

	if _, err := s.cron.AddFunc(cfg.SweepOverdueConfirmed, s.jobs.SweepOverdueConfirmed); err != nil {
		logger.Error("Failed to register SweepOverdueConfirmed job", "spec", cfg.SweepOverdueConfirmed, "error", err)
		return err
	}

	logger.Info("All cron jobs registered successfully")
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// Entries lists the registered jobs with their next run time.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}
