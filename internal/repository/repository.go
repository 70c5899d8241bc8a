package repository

import (
	"context"
	"time"

	"carrental-backend/internal/domain"
)

// LedgerWriter posts wallet transactions. Implementations handed to a SideEffect
// are bound to the atomic unit of the surrounding status update.
type LedgerWriter interface {
	PostTransaction(ctx context.Context, entry *domain.Transaction, accountID int32) error
}

// SideEffect runs inside the same atomic unit as a booking status update. Returning
// an error rolls back both the postings and the status change.
type SideEffect func(ctx context.Context, ledger LedgerWriter) error

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByNumber(ctx context.Context, number string) (*domain.Booking, error)
	ListByStatus(ctx context.Context, status domain.BookingStatus) ([]domain.Booking, error)

	// UpdateStatus moves the booking from expected to next only if its persisted
	// status still equals expected, applying effect in the same atomic unit.
	// It returns false without error when the status no longer matched.
	UpdateStatus(ctx context.Context, number string, expected, next domain.BookingStatus, effect SideEffect) (bool, error)
}

type WalletRepository interface {
	GetByAccount(ctx context.Context, accountID int32) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, walletID int32) ([]domain.Transaction, error)
}

type AccountRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Account, error)
}

type CarRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Car, error)
}

// NumberGenerator hands out booking numbers of the form YYYYMMDD-NNNNNNNN.
type NumberGenerator interface {
	Next(ctx context.Context, at time.Time) (string, error)
}
