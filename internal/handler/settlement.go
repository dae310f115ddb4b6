package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/segyhp/booking-settlement/internal/domain"
	"github.com/segyhp/booking-settlement/pkg/response"
)

// SettlementService is the booking settlement API the handlers expose.
type SettlementService interface {
	ValidateListingTerms(ctx context.Context, request *domain.ListingTermsRequest) (*domain.ListingTermsResponse, error)
	QuoteSplit(ctx context.Context, request *domain.SplitQuoteRequest) (*domain.SplitResponse, error)
	CreateBooking(ctx context.Context, request *domain.CreateBookingRequest) (*domain.CreateBookingResponse, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*domain.ScheduleResponse, error)
	ListPayments(ctx context.Context, id uuid.UUID) (*domain.PaymentsResponse, error)
	ConfirmBooking(ctx context.Context, id uuid.UUID) (*domain.TransitionResponse, error)
	RecordPayment(ctx context.Context, id uuid.UUID, request *domain.RecordPaymentRequest) (*domain.RecordPaymentResponse, error)
	QuoteRefund(ctx context.Context, id uuid.UUID) (*domain.RefundQuoteResponse, error)
	CancelBooking(ctx context.Context, id uuid.UUID, request *domain.CancelBookingRequest) (*domain.TransitionResponse, error)
	ProcessPayout(ctx context.Context, id uuid.UUID) (*domain.TransitionResponse, error)
	CompleteBooking(ctx context.Context, id uuid.UUID) (*domain.TransitionResponse, error)
}

type SettlementHandler struct {
	service   SettlementService
	validator *validator.Validate
}

func NewSettlementHandler(service SettlementService) *SettlementHandler {
	return &SettlementHandler{
		service:   service,
		validator: NewValidator(),
	}
}

// Register mounts the settlement routes on an /api/v1 subrouter.
func (h *SettlementHandler) Register(api *mux.Router) {
	api.HandleFunc("/policies/validate", h.ValidateListingTerms).Methods(http.MethodPost)
	api.HandleFunc("/quotes/split", h.QuoteSplit).Methods(http.MethodPost)

	api.HandleFunc("/bookings", h.CreateBooking).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{bookingId}", h.GetBooking).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{bookingId}/schedule", h.GetSchedule).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{bookingId}/payments", h.ListPayments).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{bookingId}/payments", h.RecordPayment).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{bookingId}/refund-quote", h.QuoteRefund).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{bookingId}/confirm", h.ConfirmBooking).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{bookingId}/cancel", h.CancelBooking).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{bookingId}/payout", h.ProcessPayout).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{bookingId}/complete", h.CompleteBooking).Methods(http.MethodPost)
}

func (h *SettlementHandler) ValidateListingTerms(w http.ResponseWriter, r *http.Request) {
	var request domain.ListingTermsRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.ValidateListingTerms(r.Context(), &request)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *SettlementHandler) QuoteSplit(w http.ResponseWriter, r *http.Request) {
	var request domain.SplitQuoteRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.QuoteSplit(r.Context(), &request)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *SettlementHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateBookingRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.CreateBooking(r.Context(), &request)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, result)
}

func (h *SettlementHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	booking, err := h.service.GetBooking(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, booking)
}

func (h *SettlementHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	result, err := h.service.GetSchedule(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *SettlementHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	result, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, result)
}

// RecordPayment answers 201 for a new payment and 200 when the gateway
// repeated a callback that was already recorded.
func (h *SettlementHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}
	var request domain.RecordPaymentRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.RecordPayment(r.Context(), id, &request)
	if err != nil {
		response.FromError(w, err)
		return
	}
	if result.Replayed {
		response.Success(w, result)
		return
	}
	response.Created(w, result)
}

func (h *SettlementHandler) QuoteRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	result, err := h.service.QuoteRefund(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *SettlementHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ConfirmBooking)
}

func (h *SettlementHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	var request domain.CancelBookingRequest
	if r.ContentLength != 0 && !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.CancelBooking(r.Context(), id, &request)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *SettlementHandler) ProcessPayout(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ProcessPayout)
}

func (h *SettlementHandler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CompleteBooking)
}

func (h *SettlementHandler) transition(w http.ResponseWriter, r *http.Request, fire func(context.Context, uuid.UUID) (*domain.TransitionResponse, error)) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	result, err := fire(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *SettlementHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid JSON payload", err)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return false
	}
	return true
}

func bookingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["bookingId"])
	if err != nil {
		response.BadRequest(w, "Invalid booking ID", err)
		return uuid.Nil, false
	}
	return id, true
}
