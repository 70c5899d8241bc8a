package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

func TestStore_UpdateStatusIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.AddAccount(domain.Account{ID: 1}, 100)
	s.AddAccount(domain.Account{ID: 2}, 0)
	require.NoError(t, s.Bookings.Create(ctx, &domain.Booking{Number: "20240601-00000001", Status: domain.BookingStatusPendingPayment}))

	// The second posting overdraws account 1 after the first already credited account 2.
	effect := func(ctx context.Context, ledger repository.LedgerWriter) error {
		if err := ledger.PostTransaction(ctx, &domain.Transaction{Type: domain.TransactionTypeReceivePayment, Amount: 50}, 2); err != nil {
			return err
		}
		return ledger.PostTransaction(ctx, &domain.Transaction{Type: domain.TransactionTypeOffsetFinalPayment, Amount: 150}, 1)
	}

	applied, err := s.Bookings.UpdateStatus(ctx, "20240601-00000001", domain.BookingStatusPendingPayment, domain.BookingStatusCompleted, effect)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.False(t, applied)

	b, err := s.Bookings.GetByNumber(ctx, "20240601-00000001")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPendingPayment, b.Status)
	w, err := s.Wallets.GetByAccount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.Balance)
	assert.Empty(t, s.Transactions())
}

func TestStore_UpdateStatusExpectedMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Bookings.Create(ctx, &domain.Booking{Number: "20240601-00000001", Status: domain.BookingStatusConfirmed}))

	called := false
	applied, err := s.Bookings.UpdateStatus(ctx, "20240601-00000001", domain.BookingStatusPendingDeposit, domain.BookingStatusCancelled,
		func(ctx context.Context, ledger repository.LedgerWriter) error {
			called = true
			return errors.New("unreachable")
		})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.False(t, called)

	_, err = s.Bookings.UpdateStatus(ctx, "20240601-99999999", domain.BookingStatusPendingDeposit, domain.BookingStatusCancelled, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_NumberGenerator(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	first, err := s.Numbers.Next(ctx, mustDate(t, "2024-06-01"))
	require.NoError(t, err)
	second, err := s.Numbers.Next(ctx, mustDate(t, "2024-06-02"))
	require.NoError(t, err)

	assert.Equal(t, "20240601-00000001", first)
	assert.Equal(t, "20240602-00000002", second)
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return d
}
