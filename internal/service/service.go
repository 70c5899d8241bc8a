package service

import (
	"context"
	"time"

	"carrental-backend/internal/domain"
)

type BookingService interface {
	CreateBooking(ctx context.Context, booking *domain.Booking) error
	GetBooking(ctx context.Context, number string) (*domain.Booking, error)

	// PayDeposit debits the deposit from the renter and confirms the booking.
	PayDeposit(ctx context.Context, number string) (*domain.Transaction, error)
	// CancelForExpiredDeposit returns false without error when the booking already left PENDING_DEPOSIT.
	CancelForExpiredDeposit(ctx context.Context, number string) (bool, error)
	// CancelOverdueConfirmed refunds the deposit of a confirmed booking that was never picked up.
	CancelOverdueConfirmed(ctx context.Context, number string) (bool, error)

	StartTrip(ctx context.Context, number string) error
	FinishTrip(ctx context.Context, number string) error
	SettleFinalPayment(ctx context.Context, number string) ([]domain.Transaction, error)
	Complete(ctx context.Context, number string) error
}

type WalletService interface {
	GetWallet(ctx context.Context, accountID int32) (*domain.Wallet, []domain.Transaction, error)
}

type EmailService interface {
	SendCancellationNotice(ctx context.Context, email, name, bookingNumber, carName, reason string) error
}

// DepositTimer tracks the deposit window of a booking outside the record store.
type DepositTimer interface {
	Register(ctx context.Context, number string, ttl time.Duration) error
	Cancel(ctx context.Context, number string) error
}

// BookingPolicy holds the timing rules of the booking lifecycle.
type BookingPolicy struct {
	DepositWindow        time.Duration
	PickUpGrace          time.Duration
	OperationTimeout     time.Duration
	DepositExpiredReason string
	PickUpMissedReason   string
}
