package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidState        = errors.New("booking is not in the required state")
	ErrNotFound            = errors.New("record not found")
	ErrNotification        = errors.New("notification could not be sent")
	ErrStoreUnavailable    = errors.New("record store unavailable")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrForbidden           = errors.New("operation not permitted for this account")

	ErrInvalidBooking      = errors.New("invalid booking")
	ErrDropOffBeforePickUp = fmt.Errorf("%w: drop-off time must be after pick-up time", ErrInvalidBooking)
	ErrNegativeDeposit     = fmt.Errorf("%w: deposit must not be negative", ErrInvalidBooking)
	ErrNegativePrice       = fmt.Errorf("%w: base price must not be negative", ErrInvalidBooking)
	ErrUnknownPaymentType  = fmt.Errorf("%w: unknown payment type", ErrInvalidBooking)

	ErrDepositWindowClosed = fmt.Errorf("%w: deposit window has elapsed", ErrInvalidState)
	ErrNotOverdue          = fmt.Errorf("%w: pick-up window has not elapsed", ErrInvalidState)
	ErrWrongPaymentType    = fmt.Errorf("%w: payment type does not allow this settlement", ErrInvalidState)
)
