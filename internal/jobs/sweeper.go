package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/service"
)

// SweepFailure records a booking the sweep could not process.
type SweepFailure struct {
	BookingNumber string
	Err           error
}

// SweepReport summarizes one sweep run.
type SweepReport struct {
	Job      string
	Scanned  int
	Applied  int
	Skipped  int
	Failures []SweepFailure
}

// Err joins every per-booking failure, or returns nil for a clean run.
func (r *SweepReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		if f.BookingNumber == "" {
			errs = append(errs, f.Err)
			continue
		}
		errs = append(errs, fmt.Errorf("booking %s: %w", f.BookingNumber, f.Err))
	}
	return errors.Join(errs...)
}

func (r *SweepReport) fail(number string, err error) {
	r.Failures = append(r.Failures, SweepFailure{BookingNumber: number, Err: err})
}

// Sweeper is the scheduled backstop for time-based transitions the TTL events missed.
type Sweeper struct {
	bookingRepo repository.BookingRepository
	bookingSvc  service.BookingService
	policy      service.BookingPolicy
	now         func() time.Time
}

func NewSweeper(bookingRepo repository.BookingRepository, bookingSvc service.BookingService, policy service.BookingPolicy) *Sweeper {
	return &Sweeper{
		bookingRepo: bookingRepo,
		bookingSvc:  bookingSvc,
		policy:      policy,
		now:         time.Now,
	}
}

// SweepDepositExpiry cancels every PENDING_DEPOSIT booking whose deposit window has elapsed.
func (s *Sweeper) SweepDepositExpiry(ctx context.Context) *SweepReport {
	return s.sweep(ctx, "SweepDepositExpiry", domain.BookingStatusPendingDeposit,
		func(b *domain.Booking, now time.Time) bool {
			return b.DepositOverdue(now, s.policy.DepositWindow)
		},
		s.bookingSvc.CancelForExpiredDeposit,
	)
}

// SweepOverdueConfirmed cancels and refunds every CONFIRMED booking whose trip never started.
func (s *Sweeper) SweepOverdueConfirmed(ctx context.Context) *SweepReport {
	return s.sweep(ctx, "SweepOverdueConfirmed", domain.BookingStatusConfirmed,
		func(b *domain.Booking, now time.Time) bool {
			return b.PickUpOverdue(now, s.policy.PickUpGrace)
		},
		s.bookingSvc.CancelOverdueConfirmed,
	)
}

func (s *Sweeper) sweep(
	ctx context.Context,
	job string,
	status domain.BookingStatus,
	overdue func(b *domain.Booking, now time.Time) bool,
	cancel func(ctx context.Context, number string) (bool, error),
) *SweepReport {
	// A sweep always runs to completion once started.
	ctx = context.WithoutCancel(ctx)
	report := &SweepReport{Job: job}

	bookings, err := s.bookingRepo.ListByStatus(ctx, status)
	if err != nil {
		logger.Error("Sweep could not list bookings", "job", job, "status", status, "error", err)
		report.fail("", err)
		return report
	}

	now := s.now()
	for i := range bookings {
		b := &bookings[i]
		report.Scanned++
		if !overdue(b, now) {
			continue
		}

		applied, err := cancel(ctx, b.Number)
		switch {
		case errors.Is(err, domain.ErrInvalidState):
			report.Skipped++
		case err != nil:
			logger.Error("Sweep failed for booking", "job", job, "booking_number", b.Number, "error", err)
			report.fail(b.Number, err)
		case applied:
			report.Applied++
		default:
			report.Skipped++
		}
	}

	logger.Info("Sweep finished", "job", job, "scanned", report.Scanned, "applied", report.Applied,
		"skipped", report.Skipped, "failed", len(report.Failures))
	return report
}
