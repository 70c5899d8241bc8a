package domain

import "time"

type BookingStatus string

const (
	BookingStatusPendingDeposit BookingStatus = "PENDING_DEPOSIT"
	BookingStatusConfirmed      BookingStatus = "CONFIRMED"
	BookingStatusInProgress     BookingStatus = "IN_PROGRESS"
	BookingStatusPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingStatusCompleted      BookingStatus = "COMPLETED"
	BookingStatusCancelled      BookingStatus = "CANCELLED"
)

// bookingTransitions is the complete status graph. CANCELLED is only reachable
// before the trip starts.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPendingDeposit: {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed:      {BookingStatusInProgress, BookingStatusCancelled},
	BookingStatusInProgress:     {BookingStatusPendingPayment},
	BookingStatusPendingPayment: {BookingStatusCompleted},
}

// CanTransitionTo reports whether the status graph allows moving from s to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPendingDeposit, BookingStatusConfirmed, BookingStatusInProgress,
		BookingStatusPendingPayment, BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}

type PaymentType string

const (
	PaymentTypeWallet       PaymentType = "WALLET"
	PaymentTypeCash         PaymentType = "CASH"
	PaymentTypeBankTransfer PaymentType = "BANK_TRANSFER"
)

func (p PaymentType) IsValid() bool {
	return p == PaymentTypeWallet || p == PaymentTypeCash || p == PaymentTypeBankTransfer
}

// DriverInfo is carried with the booking for the car owner; the lifecycle never inspects it.
type DriverInfo struct {
	FullName      string    `json:"full_name"`
	Phone         string    `json:"phone"`
	NationalID    string    `json:"national_id"`
	DateOfBirth   time.Time `json:"date_of_birth"`
	Email         string    `json:"email"`
	LicenseNumber string    `json:"license_number"`
	Address       string    `json:"address"`
}

type Booking struct {
	Number         string        `json:"booking_number"`
	Status         BookingStatus `json:"status"`
	CarID          int32         `json:"car_id"`
	RenterID       int32         `json:"renter_id"`
	PickUpTime     time.Time     `json:"pick_up_time"`
	DropOffTime    time.Time     `json:"drop_off_time"`
	PickUpLocation string        `json:"pick_up_location"`
	BasePrice      int64         `json:"base_price"`
	Deposit        int64         `json:"deposit"`
	PaymentType    PaymentType   `json:"payment_type"`
	Driver         DriverInfo    `json:"driver"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Validate checks the invariants a booking must satisfy before it is persisted.
func (b *Booking) Validate() error {
	if !b.DropOffTime.After(b.PickUpTime) {
		return ErrDropOffBeforePickUp
	}
	if b.Deposit < 0 {
		return ErrNegativeDeposit
	}
	if b.BasePrice < 0 {
		return ErrNegativePrice
	}
	if !b.PaymentType.IsValid() {
		return ErrUnknownPaymentType
	}
	return nil
}

// DepositDeadline is the instant after which an unpaid booking is cancelled.
func (b *Booking) DepositDeadline(window time.Duration) time.Time {
	return b.CreatedAt.Add(window)
}

// DepositOverdue reports whether the deposit window has elapsed at now.
func (b *Booking) DepositOverdue(now time.Time, window time.Duration) bool {
	return b.Status == BookingStatusPendingDeposit && !now.Before(b.DepositDeadline(window))
}

// PickUpOverdue reports whether a confirmed booking was never picked up within grace of its pick-up time.
func (b *Booking) PickUpOverdue(now time.Time, grace time.Duration) bool {
	return b.Status == BookingStatusConfirmed && now.After(b.PickUpTime.Add(grace))
}
