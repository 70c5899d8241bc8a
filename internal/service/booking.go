package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carrental-backend/internal/config"
	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

type bookingService struct {
	bookingRepo repository.BookingRepository
	accountRepo repository.AccountRepository
	carRepo     repository.CarRepository
	numbers     repository.NumberGenerator
	timer       DepositTimer
	emailSvc    EmailService
	policy      BookingPolicy
	now         func() time.Time
}

func NewBookingService(
	bookingRepo repository.BookingRepository,
	accountRepo repository.AccountRepository,
	carRepo repository.CarRepository,
	numbers repository.NumberGenerator,
	timer DepositTimer,
	emailSvc EmailService,
	policy BookingPolicy,
) BookingService {
	return &bookingService{
		bookingRepo: bookingRepo,
		accountRepo: accountRepo,
		carRepo:     carRepo,
		numbers:     numbers,
		timer:       timer,
		emailSvc:    emailSvc,
		policy:      policy,
		now:         time.Now,
	}
}

func (s *bookingService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.policy.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.policy.OperationTimeout)
}

func (s *bookingService) CreateBooking(ctx context.Context, b *domain.Booking) error {
	logger.EnterMethod("bookingService.CreateBooking", "renterID", b.RenterID, "carID", b.CarID)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := b.Validate(); err != nil {
		logger.ExitMethodWithError("bookingService.CreateBooking", err, "renterID", b.RenterID)
		return err
	}
	if _, err := s.carRepo.GetByID(ctx, b.CarID); err != nil {
		logger.ExitMethodWithError("bookingService.CreateBooking", err, "carID", b.CarID)
		return err
	}
	if _, err := s.accountRepo.GetByID(ctx, b.RenterID); err != nil {
		logger.ExitMethodWithError("bookingService.CreateBooking", err, "renterID", b.RenterID)
		return err
	}

	now := s.now()
	number, err := s.numbers.Next(ctx, now)
	if err != nil {
		logger.ExitMethodWithError("bookingService.CreateBooking", err, "renterID", b.RenterID)
		return err
	}
	b.Number = number
	b.Status = domain.BookingStatusPendingDeposit
	b.CreatedAt = now

	if err := s.bookingRepo.Create(ctx, b); err != nil {
		logger.ExitMethodWithError("bookingService.CreateBooking", err, "bookingNumber", number)
		return err
	}

	// The sweep cancels the booking if the timer never fires.
	if err := s.timer.Register(ctx, number, s.policy.DepositWindow); err != nil {
		logger.Warn("Deposit timer registration failed", "booking_number", number, "error", err)
	}

	logger.Info("Booking created", "booking_number", number, "status", b.Status, "deposit", b.Deposit)
	logger.ExitMethod("bookingService.CreateBooking", "bookingNumber", number)
	return nil
}

func (s *bookingService) GetBooking(ctx context.Context, number string) (*domain.Booking, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.bookingRepo.GetByNumber(ctx, number)
}

func (s *bookingService) PayDeposit(ctx context.Context, number string) (*domain.Transaction, error) {
	logger.EnterMethod("bookingService.PayDeposit", "bookingNumber", number)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	b, err := s.bookingRepo.GetByNumber(ctx, number)
	if err != nil {
		logger.ExitMethodWithError("bookingService.PayDeposit", err, "bookingNumber", number)
		return nil, err
	}
	if b.Status != domain.BookingStatusPendingDeposit {
		err := fmt.Errorf("pay deposit for booking %s in status %s: %w", number, b.Status, domain.ErrInvalidState)
		logger.ExitMethodWithError("bookingService.PayDeposit", err, "bookingNumber", number)
		return nil, err
	}
	if b.DepositOverdue(s.now(), s.policy.DepositWindow) {
		err := fmt.Errorf("pay deposit for booking %s: %w", number, domain.ErrDepositWindowClosed)
		logger.ExitMethodWithError("bookingService.PayDeposit", err, "bookingNumber", number)
		return nil, err
	}

	var posted *domain.Transaction
	effect := func(ctx context.Context, ledger repository.LedgerWriter) error {
		if b.Deposit == 0 {
			return nil
		}
		entry := newEntry(b, domain.TransactionTypePayDeposit, b.Deposit, fmt.Sprintf("Deposit for booking %s", b.Number))
		if err := ledger.PostTransaction(ctx, entry, b.RenterID); err != nil {
			return err
		}
		posted = entry
		return nil
	}

	if err := s.transition(ctx, b, domain.BookingStatusPendingDeposit, domain.BookingStatusConfirmed, effect); err != nil {
		logger.ExitMethodWithError("bookingService.PayDeposit", err, "bookingNumber", number)
		return nil, err
	}

	// The listener ignores expiries of confirmed bookings, so a stale key is harmless.
	if err := s.timer.Cancel(ctx, number); err != nil {
		logger.Warn("Deposit timer cancellation failed", "booking_number", number, "error", err)
	}

	logger.ExitMethod("bookingService.PayDeposit", "bookingNumber", number)
	return posted, nil
}

func (s *bookingService) CancelForExpiredDeposit(ctx context.Context, number string) (bool, error) {
	logger.EnterMethod("bookingService.CancelForExpiredDeposit", "bookingNumber", number)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	b, err := s.bookingRepo.GetByNumber(ctx, number)
	if err != nil {
		logger.ExitMethodWithError("bookingService.CancelForExpiredDeposit", err, "bookingNumber", number)
		return false, err
	}
	if b.Status != domain.BookingStatusPendingDeposit {
		logger.Debug("Deposit expiry ignored", "booking_number", number, "status", b.Status)
		return false, nil
	}

	applied, err := s.bookingRepo.UpdateStatus(ctx, number, domain.BookingStatusPendingDeposit, domain.BookingStatusCancelled, nil)
	if err != nil {
		logger.ExitMethodWithError("bookingService.CancelForExpiredDeposit", err, "bookingNumber", number)
		return false, err
	}
	if !applied {
		logger.Debug("Deposit expiry lost race", "booking_number", number)
		return false, nil
	}
	logger.Info("Booking status changed", "booking_number", number,
		"from", domain.BookingStatusPendingDeposit, "to", domain.BookingStatusCancelled)

	s.notifyCancellation(ctx, b, s.policy.DepositExpiredReason)

	logger.ExitMethod("bookingService.CancelForExpiredDeposit", "bookingNumber", number, "applied", true)
	return true, nil
}

func (s *bookingService) CancelOverdueConfirmed(ctx context.Context, number string) (bool, error) {
	logger.EnterMethod("bookingService.CancelOverdueConfirmed", "bookingNumber", number)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	b, err := s.bookingRepo.GetByNumber(ctx, number)
	if err != nil {
		logger.ExitMethodWithError("bookingService.CancelOverdueConfirmed", err, "bookingNumber", number)
		return false, err
	}
	if b.Status != domain.BookingStatusConfirmed {
		logger.Debug("Overdue cancellation ignored", "booking_number", number, "status", b.Status)
		return false, nil
	}
	if !b.PickUpOverdue(s.now(), s.policy.PickUpGrace) {
		err := fmt.Errorf("cancel booking %s: %w", number, domain.ErrNotOverdue)
		logger.ExitMethodWithError("bookingService.CancelOverdueConfirmed", err, "bookingNumber", number)
		return false, err
	}

	effect := func(ctx context.Context, ledger repository.LedgerWriter) error {
		if b.Deposit == 0 {
			return nil
		}
		entry := newEntry(b, domain.TransactionTypeRefundDeposit, b.Deposit, fmt.Sprintf("Deposit refund for booking %s", b.Number))
		return ledger.PostTransaction(ctx, entry, b.RenterID)
	}

	applied, err := s.bookingRepo.UpdateStatus(ctx, number, domain.BookingStatusConfirmed, domain.BookingStatusCancelled, effect)
	if err != nil {
		logger.ExitMethodWithError("bookingService.CancelOverdueConfirmed", err, "bookingNumber", number)
		return false, err
	}
	if !applied {
		logger.Debug("Overdue cancellation lost race", "booking_number", number)
		return false, nil
	}
	logger.Info("Booking status changed", "booking_number", number,
		"from", domain.BookingStatusConfirmed, "to", domain.BookingStatusCancelled, "refund", b.Deposit)

	s.notifyCancellation(ctx, b, s.policy.PickUpMissedReason)

	logger.ExitMethod("bookingService.CancelOverdueConfirmed", "bookingNumber", number, "applied", true)
	return true, nil
}

func (s *bookingService) StartTrip(ctx context.Context, number string) error {
	return s.advance(ctx, "bookingService.StartTrip", number, domain.BookingStatusConfirmed, domain.BookingStatusInProgress)
}

func (s *bookingService) FinishTrip(ctx context.Context, number string) error {
	return s.advance(ctx, "bookingService.FinishTrip", number, domain.BookingStatusInProgress, domain.BookingStatusPendingPayment)
}

func (s *bookingService) SettleFinalPayment(ctx context.Context, number string) ([]domain.Transaction, error) {
	logger.EnterMethod("bookingService.SettleFinalPayment", "bookingNumber", number)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	b, err := s.bookingRepo.GetByNumber(ctx, number)
	if err != nil {
		logger.ExitMethodWithError("bookingService.SettleFinalPayment", err, "bookingNumber", number)
		return nil, err
	}
	if b.PaymentType != domain.PaymentTypeWallet {
		err := fmt.Errorf("settle booking %s paid by %s: %w", number, b.PaymentType, domain.ErrWrongPaymentType)
		logger.ExitMethodWithError("bookingService.SettleFinalPayment", err, "bookingNumber", number)
		return nil, err
	}
	car, err := s.carRepo.GetByID(ctx, b.CarID)
	if err != nil {
		logger.ExitMethodWithError("bookingService.SettleFinalPayment", err, "bookingNumber", number)
		return nil, err
	}

	var posted []domain.Transaction
	effect := func(ctx context.Context, ledger repository.LedgerWriter) error {
		posted = posted[:0]
		remaining := b.BasePrice - b.Deposit
		switch {
		case remaining > 0:
			entry := newEntry(b, domain.TransactionTypeOffsetFinalPayment, remaining, fmt.Sprintf("Final payment for booking %s", b.Number))
			if err := ledger.PostTransaction(ctx, entry, b.RenterID); err != nil {
				return err
			}
			posted = append(posted, *entry)
		case remaining < 0:
			entry := newEntry(b, domain.TransactionTypeRefundDeposit, -remaining, fmt.Sprintf("Deposit surplus for booking %s", b.Number))
			if err := ledger.PostTransaction(ctx, entry, b.RenterID); err != nil {
				return err
			}
			posted = append(posted, *entry)
		}
		if b.BasePrice > 0 {
			entry := newEntry(b, domain.TransactionTypeReceivePayment, b.BasePrice, fmt.Sprintf("Payment received for booking %s", b.Number))
			if err := ledger.PostTransaction(ctx, entry, car.OwnerID); err != nil {
				return err
			}
			posted = append(posted, *entry)
		}
		return nil
	}

	if err := s.transition(ctx, b, domain.BookingStatusPendingPayment, domain.BookingStatusCompleted, effect); err != nil {
		logger.ExitMethodWithError("bookingService.SettleFinalPayment", err, "bookingNumber", number)
		return nil, err
	}

	logger.ExitMethod("bookingService.SettleFinalPayment", "bookingNumber", number, "postings", len(posted))
	return posted, nil
}

func (s *bookingService) Complete(ctx context.Context, number string) error {
	logger.EnterMethod("bookingService.Complete", "bookingNumber", number)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	b, err := s.bookingRepo.GetByNumber(ctx, number)
	if err != nil {
		logger.ExitMethodWithError("bookingService.Complete", err, "bookingNumber", number)
		return err
	}
	if b.PaymentType == domain.PaymentTypeWallet {
		err := fmt.Errorf("complete booking %s paid by wallet: %w", number, domain.ErrWrongPaymentType)
		logger.ExitMethodWithError("bookingService.Complete", err, "bookingNumber", number)
		return err
	}
	if err := s.transition(ctx, b, domain.BookingStatusPendingPayment, domain.BookingStatusCompleted, nil); err != nil {
		logger.ExitMethodWithError("bookingService.Complete", err, "bookingNumber", number)
		return err
	}

	logger.ExitMethod("bookingService.Complete", "bookingNumber", number)
	return nil
}

// advance applies a transition without wallet postings.
func (s *bookingService) advance(ctx context.Context, method, number string, from, to domain.BookingStatus) error {
	logger.EnterMethod(method, "bookingNumber", number)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	b, err := s.bookingRepo.GetByNumber(ctx, number)
	if err != nil {
		logger.ExitMethodWithError(method, err, "bookingNumber", number)
		return err
	}
	if err := s.transition(ctx, b, from, to, nil); err != nil {
		logger.ExitMethodWithError(method, err, "bookingNumber", number)
		return err
	}

	logger.ExitMethod(method, "bookingNumber", number)
	return nil
}

// transition moves b from one status to the next through the conditional update.
// A status mismatch, whether observed up front or lost to a concurrent writer, is ErrInvalidState.
func (s *bookingService) transition(ctx context.Context, b *domain.Booking, from, to domain.BookingStatus, effect repository.SideEffect) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("transition %s -> %s: %w", from, to, domain.ErrInvalidState)
	}
	if b.Status != from {
		return fmt.Errorf("booking %s is %s, expected %s: %w", b.Number, b.Status, from, domain.ErrInvalidState)
	}

	applied, err := s.bookingRepo.UpdateStatus(ctx, b.Number, from, to, effect)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("booking %s changed concurrently: %w", b.Number, domain.ErrInvalidState)
	}

	b.Status = to
	logger.Info("Booking status changed", "booking_number", b.Number, "from", from, "to", to)
	return nil
}

// notifyCancellation emails the renter. Failures are logged and never undo the cancellation.
func (s *bookingService) notifyCancellation(ctx context.Context, b *domain.Booking, reason string) {
	if err := s.sendCancellation(ctx, b, reason); err != nil {
		logger.Error("Cancellation notice failed", "booking_number", b.Number,
			"error", fmt.Errorf("%w: %v", domain.ErrNotification, err))
	}
}

func (s *bookingService) sendCancellation(ctx context.Context, b *domain.Booking, reason string) error {
	renter, err := s.accountRepo.GetByID(ctx, b.RenterID)
	if err != nil {
		return fmt.Errorf("load renter: %w", err)
	}
	carName := ""
	car, err := s.carRepo.GetByID(ctx, b.CarID)
	switch {
	case err == nil:
		carName = car.Name
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("load car: %w", err)
	}
	return s.emailSvc.SendCancellationNotice(ctx, renter.Email, renter.FullName, b.Number, carName, reason)
}

func newEntry(b *domain.Booking, txType domain.TransactionType, amount int64, message string) *domain.Transaction {
	number := b.Number
	return &domain.Transaction{
		Type:          txType,
		Amount:        amount,
		BookingNumber: &number,
		Message:       message,
	}
}

// NewBookingPolicy converts the booking configuration section.
func NewBookingPolicy(cfg config.BookingConfig) BookingPolicy {
	return BookingPolicy{
		DepositWindow:        cfg.DepositWindow(),
		PickUpGrace:          cfg.PickUpGrace(),
		OperationTimeout:     cfg.OperationTimeout(),
		DepositExpiredReason: cfg.DepositExpiredReason,
		PickUpMissedReason:   cfg.PickUpMissedReason,
	}
}
