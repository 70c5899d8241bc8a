package service

import (
	"context"

	"carrental-backend/internal/logger"
	"carrental-backend/internal/ttl"
)

// ExpiryHandler turns TTL expiry notifications into deposit-expiry cancellations.
type ExpiryHandler struct {
	bookingSvc BookingService
}

func NewExpiryHandler(bookingSvc BookingService) *ExpiryHandler {
	return &ExpiryHandler{bookingSvc: bookingSvc}
}

// HandleExpired matches ttl.ExpiryFunc. Keys outside the booking namespace are dropped
// before any store access. Delivery is not retried; the deposit sweep covers lost events.
func (h *ExpiryHandler) HandleExpired(ctx context.Context, key string) {
	number, ok := ttl.ParseBookingKey(key)
	if !ok {
		logger.Debug("Ignoring expired key", "key", key)
		return
	}

	applied, err := h.bookingSvc.CancelForExpiredDeposit(ctx, number)
	if err != nil {
		logger.Error("Deposit expiry cancellation failed", "booking_number", number, "error", err)
		return
	}
	logger.Info("Deposit expiry handled", "booking_number", number, "applied", applied)
}
