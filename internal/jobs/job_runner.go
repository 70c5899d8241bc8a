package jobs

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"carrental-backend/internal/config"
	"carrental-backend/internal/logger"
)

var errPanicked = errors.New("job panicked")

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	sweeper *Sweeper
	config  *config.Config
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(sweeper *Sweeper, cfg *config.Config) *JobRunner {
	return &JobRunner{
		sweeper: sweeper,
		config:  cfg,
	}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) *SweepReport) (report *SweepReport) {
	runID := uuid.NewString()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "run_id", runID, "panic", r)
			report = &SweepReport{Job: jobName}
			report.fail("", errPanicked)
		}
	}()

	logger.Info("Starting job", "job", jobName, "run_id", runID)
	report = jobFunc(context.Background())
	logger.Info("Job completed", "job", jobName, "run_id", runID, "failures", len(report.Failures))
	return report
}

// SweepDepositExpiry is the cron entry point for the deposit-expiry backstop.
func (jr *JobRunner) SweepDepositExpiry() {
	jr.RunDepositExpiry()
}

// SweepOverdueConfirmed is the cron entry point for missed pick-ups.
func (jr *JobRunner) SweepOverdueConfirmed() {
	jr.RunOverdueConfirmed()
}

func (jr *JobRunner) RunDepositExpiry() *SweepReport {
	return jr.runWithRecovery("SweepDepositExpiry", jr.sweeper.SweepDepositExpiry)
}

func (jr *JobRunner) RunOverdueConfirmed() *SweepReport {
	return jr.runWithRecovery("SweepOverdueConfirmed", jr.sweeper.SweepOverdueConfirmed)
}

// RunAll runs both sweeps (for manual execution)
func (jr *JobRunner) RunAll() []*SweepReport {
	return []*SweepReport{
		jr.RunDepositExpiry(),
		jr.RunOverdueConfirmed(),
	}
}
