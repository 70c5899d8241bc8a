package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository/memory"
)

const (
	renterID = int32(1)
	ownerID  = int32(2)
	carID    = int32(10)

	depositExpiredReason = "The deposit was not paid within the allowed time"
	pickUpMissedReason   = "The car was not picked up within the pick-up window"
)

var createdAt = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
	timer *MockDepositTimer
	email *MockEmailService
	svc   *bookingService
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.AddAccount(domain.Account{ID: renterID, Email: "renter@example.com", FullName: "Renter"}, 1_000_000)
	store.AddAccount(domain.Account{ID: ownerID, Email: "owner@example.com", FullName: "Owner"}, 0)
	store.AddCar(domain.Car{ID: carID, OwnerID: ownerID, Name: "Civic", LicensePlate: "51A-12345"})

	f := &fixture{
		store: store,
		timer: new(MockDepositTimer),
		email: new(MockEmailService),
		clock: createdAt,
	}
	f.timer.On("Register", mock.Anything, mock.Anything, time.Hour).Return(nil).Maybe()
	f.timer.On("Cancel", mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := NewBookingService(store.Bookings, store.Accounts, store.Cars, store.Numbers, f.timer, f.email, BookingPolicy{
		DepositWindow:        time.Hour,
		PickUpGrace:          time.Hour,
		OperationTimeout:     5 * time.Second,
		DepositExpiredReason: depositExpiredReason,
		PickUpMissedReason:   pickUpMissedReason,
	}).(*bookingService)
	svc.now = func() time.Time { return f.clock }
	f.svc = svc
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = createdAt.Add(d)
}

func (f *fixture) createBooking(t *testing.T, paymentType domain.PaymentType, basePrice, deposit int64) *domain.Booking {
	t.Helper()
	b := &domain.Booking{
		CarID:          carID,
		RenterID:       renterID,
		PickUpTime:     createdAt.Add(24 * time.Hour),
		DropOffTime:    createdAt.Add(72 * time.Hour),
		PickUpLocation: "District 1",
		BasePrice:      basePrice,
		Deposit:        deposit,
		PaymentType:    paymentType,
		Driver:         domain.DriverInfo{FullName: "Renter", Phone: "0900000000"},
	}
	require.NoError(t, f.svc.CreateBooking(context.Background(), b))
	return b
}

func (f *fixture) balance(t *testing.T, accountID int32) int64 {
	t.Helper()
	w, err := f.store.Wallets.GetByAccount(context.Background(), accountID)
	require.NoError(t, err)
	return w.Balance
}

func (f *fixture) status(t *testing.T, number string) domain.BookingStatus {
	t.Helper()
	b, err := f.store.Bookings.GetByNumber(context.Background(), number)
	require.NoError(t, err)
	return b.Status
}

func TestBookingService_CreateBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t, domain.PaymentTypeWallet, 500000, 200000)

		assert.Equal(t, "20240601-00000001", b.Number)
		assert.Equal(t, domain.BookingStatusPendingDeposit, b.Status)
		assert.Equal(t, createdAt, b.CreatedAt)
		f.timer.AssertCalled(t, "Register", mock.Anything, "20240601-00000001", time.Hour)
	})

	t.Run("Drop-off before pick-up", func(t *testing.T) {
		f := newFixture(t)
		b := &domain.Booking{
			CarID:       carID,
			RenterID:    renterID,
			PickUpTime:  createdAt.Add(2 * time.Hour),
			DropOffTime: createdAt.Add(time.Hour),
			PaymentType: domain.PaymentTypeCash,
		}
		err := f.svc.CreateBooking(ctx, b)
		assert.ErrorIs(t, err, domain.ErrInvalidBooking)
		f.timer.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Unknown car", func(t *testing.T) {
		f := newFixture(t)
		b := &domain.Booking{
			CarID:       99,
			RenterID:    renterID,
			PickUpTime:  createdAt.Add(time.Hour),
			DropOffTime: createdAt.Add(2 * time.Hour),
			PaymentType: domain.PaymentTypeCash,
		}
		err := f.svc.CreateBooking(ctx, b)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Timer failure is not fatal", func(t *testing.T) {
		f := newFixture(t)
		f.timer.ExpectedCalls = nil
		f.timer.On("Register", mock.Anything, mock.Anything, time.Hour).Return(errors.New("redis down"))

		b := f.createBooking(t, domain.PaymentTypeWallet, 500000, 200000)
		assert.Equal(t, domain.BookingStatusPendingDeposit, f.status(t, b.Number))
	})
}

func TestBookingService_DepositExpiresBeforePayment(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t, domain.PaymentTypeWallet, 500000, 200000)
	require.Equal(t, "20240601-00000001", b.Number)

	f.email.On("SendCancellationNotice", mock.Anything, "renter@example.com", "Renter", b.Number, "Civic", depositExpiredReason).Return(nil).Once()

	f.advance(61 * time.Minute)
	NewExpiryHandler(f.svc).HandleExpired(context.Background(), "booking:20240601-00000001")

	assert.Equal(t, domain.BookingStatusCancelled, f.status(t, b.Number))
	assert.Empty(t, f.store.Transactions())
	assert.Equal(t, int64(1_000_000), f.balance(t, renterID))
	f.email.AssertNumberOfCalls(t, "SendCancellationNotice", 1)
}

func TestBookingService_DepositPaidThenLateExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.createBooking(t, domain.PaymentTypeWallet, 500000, 200000)

	f.advance(30 * time.Minute)
	tx, err := f.svc.PayDeposit(ctx, b.Number)
	require.NoError(t, err)
	require.NotNil(t, tx)

	assert.Equal(t, domain.TransactionTypePayDeposit, tx.Type)
	assert.Equal(t, int64(200000), tx.Amount)
	assert.Equal(t, domain.BookingStatusConfirmed, f.status(t, b.Number))
	assert.Equal(t, int64(800_000), f.balance(t, renterID))
	assert.Len(t, f.store.Transactions(), 1)
	f.timer.AssertCalled(t, "Cancel", mock.Anything, b.Number)

	f.advance(61 * time.Minute)
	NewExpiryHandler(f.svc).HandleExpired(ctx, "booking:"+b.Number)

	assert.Equal(t, domain.BookingStatusConfirmed, f.status(t, b.Number))
	assert.Len(t, f.store.Transactions(), 1)
	f.email.AssertNotCalled(t, "SendCancellationNotice", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingService_PayDeposit(t *testing.T) {
	ctx := context.Background()

	t.Run("Already paid", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t, domain.PaymentTypeWallet, 500000, 200000)

		_, err := f.svc.PayDeposit(ctx, b.Number)
		require.NoError(t, err)

		_, err = f.svc.PayDeposit(ctx, b.Number)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Len(t, f.store.Transactions(), 1)
		assert.Equal(t, int64(800_000), f.balance(t, renterID))
	})

	t.Run("Insufficient balance rolls back", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t, domain.PaymentTypeWallet, 5_000_000, 2_000_000)

		_, err := f.svc.PayDeposit(ctx, b.Number)
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		assert.Equal(t, domain.BookingStatusPendingDeposit, f.status(t, b.Number))
		assert.Empty(t, f.store.Transactions())
		f.timer.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
	})

	t.Run("Window closed", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t, domain.PaymentTypeWallet, 500000, 200000)

		f.advance(time.Hour)
		_, err := f.svc.PayDeposit(ctx, b.Number)
		assert.ErrorIs(t, err, domain.ErrDepositWindowClosed)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Equal(t, domain.BookingStatusPendingDeposit, f.status(t, b.Number))
	})

	t.Run("Zero deposit posts nothing", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t, domain.PaymentTypeCash, 500000, 0)

		tx, err := f.svc.PayDeposit(ctx, b.Number)
		require.NoError(t, err)
		assert.Nil(t, tx)
		assert.Equal(t, domain.BookingStatusConfirmed, f.status(t, b.Number))
		assert.Empty(t, f.store.Transactions())
	})

	t.Run("Unknown booking", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.PayDeposit(ctx, "20240601-99999999")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestBookingService_CancelForExpiredDeposit(t *testing.T) {
	ctx := context.Background()

	t.Run("Second call is a no-op", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t, domain.PaymentTypeWallet, 500000, 200000)
		f.email.On("SendCancellationNotice", mock.Anything, mock.Anything, mock.Anything, b.Number, mock.Anything, depositExpiredReason).Return(nil)

		applied, err := f.svc.CancelForExpiredDeposit(ctx, b.Number)
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = f.svc.CancelForExpiredDeposit(ctx, b.Number)
		require.NoError(t, err)
		assert.False(t, applied)

		assert.Equal(t, domain.BookingStatusCancelled, f.status(t, b.Number))
		assert.Empty(t, f.store.Transactions())
		f.email.AssertNumberOfCalls(t, "SendCancellationNotice", 1)
	})

	t.Run("Concurrent triggers apply once", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t, domain.PaymentTypeWallet, 500000, 200000)
		f.email.On("SendCancellationNotice", mock.Anything, mock.Anything, mock.Anything, b.Number, mock.Anything, depositExpiredReason).Return(nil)

		const triggers = 8
		var wg sync.WaitGroup
		results := make(chan bool, triggers)
		for i := 0; i < triggers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				applied, err := f.svc.CancelForExpiredDeposit(ctx, b.Number)
				assert.NoError(t, err)
				results <- applied
			}()
		}
		wg.Wait()
		close(results)

		appliedCount := 0
		for applied := range results {
			if applied {
				appliedCount++
			}
		}
		assert.Equal(t, 1, appliedCount)
		f.email.AssertNumberOfCalls(t, "SendCancellationNotice", 1)
	})

	t.Run("Notification failure keeps cancellation", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t, domain.PaymentTypeWallet, 500000, 200000)
		f.email.On("SendCancellationNotice", mock.Anything, mock.Anything, mock.Anything, b.Number, mock.Anything, mock.Anything).Return(errors.New("smtp unreachable"))

		applied, err := f.svc.CancelForExpiredDeposit(ctx, b.Number)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, domain.BookingStatusCancelled, f.status(t, b.Number))
	})

	t.Run("Unknown booking", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CancelForExpiredDeposit(ctx, "20240601-99999999")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestBookingService_CancelOverdueConfirmed(t *testing.T) {
	ctx := context.Background()

	t.Run("Refunds deposit once", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t, domain.PaymentTypeWallet, 500000, 200000)
		_, err := f.svc.PayDeposit(ctx, b.Number)
		require.NoError(t, err)
		before := f.balance(t, renterID)

		f.email.On("SendCancellationNotice", mock.Anything, "renter@example.com", "Renter", b.Number, "Civic", pickUpMissedReason).Return(nil).Once()

		f.advance(24*time.Hour + 61*time.Minute)
		applied, err := f.svc.CancelOverdueConfirmed(ctx, b.Number)
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = f.svc.CancelOverdueConfirmed(ctx, b.Number)
		require.NoError(t, err)
		assert.False(t, applied)

		assert.Equal(t, domain.BookingStatusCancelled, f.status(t, b.Number))
		assert.Equal(t, before+200000, f.balance(t, renterID))

		var refunds []domain.Transaction
		for _, tx := range f.store.Transactions() {
			if tx.Type == domain.TransactionTypeRefundDeposit {
				refunds = append(refunds, tx)
			}
		}
		require.Len(t, refunds, 1)
		assert.Equal(t, int64(200000), refunds[0].Amount)
		require.NotNil(t, refunds[0].BookingNumber)
		assert.Equal(t, b.Number, *refunds[0].BookingNumber)
		f.email.AssertNumberOfCalls(t, "SendCancellationNotice", 1)
	})

	t.Run("Inside grace window", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t, domain.PaymentTypeWallet, 500000, 200000)
		_, err := f.svc.PayDeposit(ctx, b.Number)
		require.NoError(t, err)

		f.advance(24*time.Hour + 30*time.Minute)
		applied, err := f.svc.CancelOverdueConfirmed(ctx, b.Number)
		assert.ErrorIs(t, err, domain.ErrNotOverdue)
		assert.False(t, applied)
		assert.Equal(t, domain.BookingStatusConfirmed, f.status(t, b.Number))
	})

	t.Run("Trip already started", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t, domain.PaymentTypeWallet, 500000, 200000)
		_, err := f.svc.PayDeposit(ctx, b.Number)
		require.NoError(t, err)
		require.NoError(t, f.svc.StartTrip(ctx, b.Number))

		f.advance(48 * time.Hour)
		applied, err := f.svc.CancelOverdueConfirmed(ctx, b.Number)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, domain.BookingStatusInProgress, f.status(t, b.Number))
	})
}

func TestBookingService_TripLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("Wallet settlement", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t, domain.PaymentTypeWallet, 500000, 200000)
		_, err := f.svc.PayDeposit(ctx, b.Number)
		require.NoError(t, err)
		require.NoError(t, f.svc.StartTrip(ctx, b.Number))
		require.NoError(t, f.svc.FinishTrip(ctx, b.Number))

		posted, err := f.svc.SettleFinalPayment(ctx, b.Number)
		require.NoError(t, err)
		require.Len(t, posted, 2)
		assert.Equal(t, domain.TransactionTypeOffsetFinalPayment, posted[0].Type)
		assert.Equal(t, int64(300000), posted[0].Amount)
		assert.Equal(t, domain.TransactionTypeReceivePayment, posted[1].Type)

		assert.Equal(t, domain.BookingStatusCompleted, f.status(t, b.Number))
		assert.Equal(t, int64(500_000), f.balance(t, renterID))
		assert.Equal(t, int64(500_000), f.balance(t, ownerID))
	})

	t.Run("Deposit exceeds price", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t, domain.PaymentTypeWallet, 150000, 200000)
		_, err := f.svc.PayDeposit(ctx, b.Number)
		require.NoError(t, err)
		require.NoError(t, f.svc.StartTrip(ctx, b.Number))
		require.NoError(t, f.svc.FinishTrip(ctx, b.Number))

		posted, err := f.svc.SettleFinalPayment(ctx, b.Number)
		require.NoError(t, err)
		require.Len(t, posted, 2)
		assert.Equal(t, domain.TransactionTypeRefundDeposit, posted[0].Type)
		assert.Equal(t, int64(50000), posted[0].Amount)
		assert.Equal(t, int64(850_000), f.balance(t, renterID))
		assert.Equal(t, int64(150_000), f.balance(t, ownerID))
	})

	t.Run("Cash completion", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t, domain.PaymentTypeCash, 500000, 0)
		_, err := f.svc.PayDeposit(ctx, b.Number)
		require.NoError(t, err)
		require.NoError(t, f.svc.StartTrip(ctx, b.Number))
		require.NoError(t, f.svc.FinishTrip(ctx, b.Number))

		_, err = f.svc.SettleFinalPayment(ctx, b.Number)
		assert.ErrorIs(t, err, domain.ErrWrongPaymentType)

		require.NoError(t, f.svc.Complete(ctx, b.Number))
		assert.Equal(t, domain.BookingStatusCompleted, f.status(t, b.Number))
		assert.Empty(t, f.store.Transactions())
	})

	t.Run("Out of order", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t, domain.PaymentTypeWallet, 500000, 200000)

		assert.ErrorIs(t, f.svc.StartTrip(ctx, b.Number), domain.ErrInvalidState)
		assert.ErrorIs(t, f.svc.FinishTrip(ctx, b.Number), domain.ErrInvalidState)
		assert.ErrorIs(t, f.svc.Complete(ctx, b.Number), domain.ErrWrongPaymentType)
		assert.Equal(t, domain.BookingStatusPendingDeposit, f.status(t, b.Number))
	})
}
