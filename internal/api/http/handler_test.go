package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository/memory"
	"carrental-backend/internal/security"
	"carrental-backend/internal/service"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	renterID   = int32(1)
	ownerID    = int32(2)
	strangerID = int32(3)
)

type noopTimer struct{}

func (noopTimer) Register(ctx context.Context, number string, ttl time.Duration) error { return nil }
func (noopTimer) Cancel(ctx context.Context, number string) error                     { return nil }

type noopEmail struct{}

func (noopEmail) SendCancellationNotice(ctx context.Context, email, name, bookingNumber, carName, reason string) error {
	return nil
}

type testServer struct {
	handler http.Handler
	store   *memory.Store
	tokens  security.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	store.AddAccount(domain.Account{ID: renterID, Email: "renter@example.com", FullName: "Renter"}, 1_000_000)
	store.AddAccount(domain.Account{ID: ownerID, Email: "owner@example.com", FullName: "Owner"}, 0)
	store.AddAccount(domain.Account{ID: strangerID, Email: "stranger@example.com", FullName: "Stranger"}, 0)
	store.AddCar(domain.Car{ID: 10, OwnerID: ownerID, Name: "Civic"})

	bookingSvc := service.NewBookingService(store.Bookings, store.Accounts, store.Cars, store.Numbers, noopTimer{}, noopEmail{}, service.BookingPolicy{
		DepositWindow:    time.Hour,
		PickUpGrace:      time.Hour,
		OperationTimeout: 5 * time.Second,
	})
	tm := security.NewTokenManager(testSecret)
	return &testServer{
		handler: NewRouter(bookingSvc, service.NewWalletService(store.Wallets), store.Cars, tm),
		store:   store,
		tokens:  tm,
	}
}

func (s *testServer) do(t *testing.T, accountID int32, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if accountID != 0 {
		token, err := s.tokens.GenerateAccessToken(accountID, "")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createBooking(t *testing.T, paymentType domain.PaymentType, deposit int64) domain.Booking {
	t.Helper()
	pickUp := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	rec := s.do(t, renterID, http.MethodPost, "/api/v1/bookings", map[string]any{
		"car_id":           10,
		"pick_up_time":     pickUp,
		"drop_off_time":    pickUp.Add(48 * time.Hour),
		"pick_up_location": "District 1",
		"base_price":       500000,
		"deposit":          deposit,
		"payment_type":     paymentType,
		"driver":           map[string]any{"full_name": "Renter"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var b domain.Booking
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&b))
	return b
}

func TestHealthz_IsPublic(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, 0, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, 0, http.MethodGet, "/api/v1/wallet", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookingHandler_CreateAndPayDeposit(t *testing.T) {
	s := newTestServer(t)
	b := s.createBooking(t, domain.PaymentTypeWallet, 200000)
	assert.Equal(t, domain.BookingStatusPendingDeposit, b.Status)
	assert.Equal(t, renterID, b.RenterID)

	path := fmt.Sprintf("/api/v1/bookings/%s/deposit", b.Number)

	rec := s.do(t, ownerID, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, renterID, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp depositResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, domain.BookingStatusConfirmed, resp.Booking.Status)
	require.NotNil(t, resp.Transaction)
	assert.Equal(t, int64(200000), resp.Transaction.Amount)

	rec = s.do(t, renterID, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, renterID, http.MethodGet, "/api/v1/wallet", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var wallet walletResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&wallet))
	assert.Equal(t, int64(800_000), wallet.Wallet.Balance)
	assert.Len(t, wallet.Transactions, 1)
}

func TestBookingHandler_GetBooking(t *testing.T) {
	s := newTestServer(t)
	b := s.createBooking(t, domain.PaymentTypeCash, 0)
	path := "/api/v1/bookings/" + b.Number

	assert.Equal(t, http.StatusOK, s.do(t, renterID, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, ownerID, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, strangerID, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, renterID, http.MethodGet, "/api/v1/bookings/20240601-99999999", nil).Code)
}

func TestBookingHandler_CreateValidation(t *testing.T) {
	s := newTestServer(t)
	pickUp := time.Now().Add(24 * time.Hour)

	rec := s.do(t, renterID, http.MethodPost, "/api/v1/bookings", map[string]any{
		"car_id":        10,
		"pick_up_time":  pickUp,
		"drop_off_time": pickUp.Add(-time.Hour),
		"payment_type":  domain.PaymentTypeCash,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewBufferString("{"))
	token, err := s.tokens.GenerateAccessToken(renterID, "")
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingHandler_CashLifecycle(t *testing.T) {
	s := newTestServer(t)
	b := s.createBooking(t, domain.PaymentTypeCash, 0)
	base := "/api/v1/bookings/" + b.Number

	require.Equal(t, http.StatusOK, s.do(t, renterID, http.MethodPost, base+"/deposit", nil).Code)
	require.Equal(t, http.StatusOK, s.do(t, ownerID, http.MethodPost, base+"/start", nil).Code)
	require.Equal(t, http.StatusOK, s.do(t, renterID, http.MethodPost, base+"/finish", nil).Code)

	assert.Equal(t, http.StatusConflict, s.do(t, renterID, http.MethodPost, base+"/settle", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, renterID, http.MethodPost, base+"/complete", nil).Code)

	rec := s.do(t, ownerID, http.MethodPost, base+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var done domain.Booking
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&done))
	assert.Equal(t, domain.BookingStatusCompleted, done.Status)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrNegativeDeposit, http.StatusBadRequest},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrInsufficientBalance, http.StatusPaymentRequired},
		{domain.ErrDepositWindowClosed, http.StatusConflict},
		{fmt.Errorf("update: %w", domain.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
