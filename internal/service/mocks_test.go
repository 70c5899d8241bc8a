package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"carrental-backend/internal/domain"
)

// MockEmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendCancellationNotice(ctx context.Context, email, name, bookingNumber, carName, reason string) error {
	args := m.Called(ctx, email, name, bookingNumber, carName, reason)
	return args.Error(0)
}

// MockDepositTimer
type MockDepositTimer struct {
	mock.Mock
}

func (m *MockDepositTimer) Register(ctx context.Context, number string, ttl time.Duration) error {
	args := m.Called(ctx, number, ttl)
	return args.Error(0)
}

func (m *MockDepositTimer) Cancel(ctx context.Context, number string) error {
	args := m.Called(ctx, number)
	return args.Error(0)
}

// MockBookingService
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) CreateBooking(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}
func (m *MockBookingService) GetBooking(ctx context.Context, number string) (*domain.Booking, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}
func (m *MockBookingService) PayDeposit(ctx context.Context, number string) (*domain.Transaction, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockBookingService) CancelForExpiredDeposit(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}
func (m *MockBookingService) CancelOverdueConfirmed(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}
func (m *MockBookingService) StartTrip(ctx context.Context, number string) error {
	return m.Called(ctx, number).Error(0)
}
func (m *MockBookingService) FinishTrip(ctx context.Context, number string) error {
	return m.Called(ctx, number).Error(0)
}
func (m *MockBookingService) SettleFinalPayment(ctx context.Context, number string) ([]domain.Transaction, error) {
	args := m.Called(ctx, number)
	return args.Get(0).([]domain.Transaction), args.Error(1)
}
func (m *MockBookingService) Complete(ctx context.Context, number string) error {
	return m.Called(ctx, number).Error(0)
}
