package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/service"
)

type createBookingRequest struct {
	CarID          int32              `json:"car_id"`
	PickUpTime     time.Time          `json:"pick_up_time"`
	DropOffTime    time.Time          `json:"drop_off_time"`
	PickUpLocation string             `json:"pick_up_location"`
	BasePrice      int64              `json:"base_price"`
	Deposit        int64              `json:"deposit"`
	PaymentType    domain.PaymentType `json:"payment_type"`
	Driver         domain.DriverInfo  `json:"driver"`
}

type depositResponse struct {
	Booking     *domain.Booking     `json:"booking"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

type settleResponse struct {
	Booking      *domain.Booking      `json:"booking"`
	Transactions []domain.Transaction `json:"transactions"`
}

// party is who may drive a transition.
type party int

const (
	partyRenter party = 1 << iota
	partyOwner
)

type BookingHandler struct {
	bookingSvc service.BookingService
	carRepo    repository.CarRepository
}

func NewBookingHandler(bookingSvc service.BookingService, carRepo repository.CarRepository) *BookingHandler {
	return &BookingHandler{bookingSvc: bookingSvc, carRepo: carRepo}
}

func (h *BookingHandler) Register(r *mux.Router) {
	r.HandleFunc("/bookings", h.CreateBooking).Methods(http.MethodPost)
	r.HandleFunc("/bookings/{number}", h.GetBooking).Methods(http.MethodGet)
	r.HandleFunc("/bookings/{number}/deposit", h.PayDeposit).Methods(http.MethodPost)
	r.HandleFunc("/bookings/{number}/start", h.StartTrip).Methods(http.MethodPost)
	r.HandleFunc("/bookings/{number}/finish", h.FinishTrip).Methods(http.MethodPost)
	r.HandleFunc("/bookings/{number}/settle", h.SettleFinalPayment).Methods(http.MethodPost)
	r.HandleFunc("/bookings/{number}/complete", h.Complete).Methods(http.MethodPost)
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountIDFromContext(r.Context())

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed request body: %v", domain.ErrInvalidBooking, err))
		return
	}

	b := &domain.Booking{
		CarID:          req.CarID,
		RenterID:       accountID,
		PickUpTime:     req.PickUpTime,
		DropOffTime:    req.DropOffTime,
		PickUpLocation: req.PickUpLocation,
		BasePrice:      req.BasePrice,
		Deposit:        req.Deposit,
		PaymentType:    req.PaymentType,
		Driver:         req.Driver,
	}
	if err := h.bookingSvc.CreateBooking(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.authorize(r, partyRenter|partyOwner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BookingHandler) PayDeposit(w http.ResponseWriter, r *http.Request) {
	b, err := h.authorize(r, partyRenter)
	if err != nil {
		writeError(w, err)
		return
	}
	tx, err := h.bookingSvc.PayDeposit(r.Context(), b.Number)
	if err != nil {
		writeError(w, err)
		return
	}
	b.Status = domain.BookingStatusConfirmed
	writeJSON(w, http.StatusOK, depositResponse{Booking: b, Transaction: tx})
}

func (h *BookingHandler) StartTrip(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, partyRenter|partyOwner, h.bookingSvc.StartTrip, domain.BookingStatusInProgress)
}

func (h *BookingHandler) FinishTrip(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, partyRenter|partyOwner, h.bookingSvc.FinishTrip, domain.BookingStatusPendingPayment)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, partyOwner, h.bookingSvc.Complete, domain.BookingStatusCompleted)
}

func (h *BookingHandler) SettleFinalPayment(w http.ResponseWriter, r *http.Request) {
	b, err := h.authorize(r, partyRenter)
	if err != nil {
		writeError(w, err)
		return
	}
	txs, err := h.bookingSvc.SettleFinalPayment(r.Context(), b.Number)
	if err != nil {
		writeError(w, err)
		return
	}
	b.Status = domain.BookingStatusCompleted
	writeJSON(w, http.StatusOK, settleResponse{Booking: b, Transactions: txs})
}

func (h *BookingHandler) advance(w http.ResponseWriter, r *http.Request, allowed party, apply func(ctx context.Context, number string) error, next domain.BookingStatus) {
	b, err := h.authorize(r, allowed)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := apply(r.Context(), b.Number); err != nil {
		writeError(w, err)
		return
	}
	b.Status = next
	writeJSON(w, http.StatusOK, b)
}

// authorize loads the booking named in the route and checks the caller is one of the allowed parties.
func (h *BookingHandler) authorize(r *http.Request, allowed party) (*domain.Booking, error) {
	accountID, _ := AccountIDFromContext(r.Context())
	number := mux.Vars(r)["number"]

	b, err := h.bookingSvc.GetBooking(r.Context(), number)
	if err != nil {
		return nil, err
	}
	if allowed&partyRenter != 0 && b.RenterID == accountID {
		return b, nil
	}
	if allowed&partyOwner != 0 {
		car, err := h.carRepo.GetByID(r.Context(), b.CarID)
		if err != nil {
			return nil, err
		}
		if car.OwnerID == accountID {
			return b, nil
		}
	}
	return nil, fmt.Errorf("booking %s: %w", number, domain.ErrForbidden)
}
