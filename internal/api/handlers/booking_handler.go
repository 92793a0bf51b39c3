package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/agrilink/marketplace-backend/internal/api/middleware"
	"github.com/agrilink/marketplace-backend/internal/application/services"
	"github.com/agrilink/marketplace-backend/internal/domain/entities"
	"github.com/agrilink/marketplace-backend/internal/domain/repositories"
)

var validate = validator.New()

// BookingService defines the booking operations used by the handler.
type BookingService interface {
	Create(ctx context.Context, actor entities.Actor, input services.CreateBookingInput) (*entities.Booking, error)
	Get(ctx context.Context, actor entities.Actor, id string) (*entities.Booking, error)
	List(ctx context.Context, actor entities.Actor, filter repositories.BookingFilter) ([]*entities.Booking, error)
	Transition(ctx context.Context, actor entities.Actor, id string, target entities.BookingStatus, note string) (*entities.Booking, error)
	Cancel(ctx context.Context, actor entities.Actor, id, reason string) (*entities.Booking, error)
	Delete(ctx context.Context, actor entities.Actor, id string) error
}

// BookingHandler handles booking requests
type BookingHandler struct {
	service BookingService
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(service BookingService) *BookingHandler {
	return &BookingHandler{
		service: service,
	}
}

type createBookingRequest struct {
	SellerID  string  `json:"seller_id" validate:"required"`
	Item      string  `json:"item" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gt=0"`
	SlotDate  string  `json:"slot_date" validate:"required,datetime=2006-01-02"`
	SlotLabel string  `json:"slot_label" validate:"required,oneof=morning afternoon evening"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CreateBooking handles POST /api/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := validate.Struct(payload); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	slotDate, err := time.Parse("2006-01-02", payload.SlotDate)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid slot date format (use YYYY-MM-DD)")
		return
	}

	booking, err := h.service.Create(r.Context(), actor, services.CreateBookingInput{
		SellerID:  payload.SellerID,
		Item:      payload.Item,
		Quantity:  payload.Quantity,
		UnitPrice: payload.UnitPrice,
		SlotDate:  slotDate,
		SlotLabel: payload.SlotLabel,
	})
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, booking)
}

// GetBooking handles GET /api/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	booking, err := h.service.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, booking)
}

// ListBookings handles GET /api/bookings
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	filter := repositories.BookingFilter{
		Status: entities.BookingStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	bookings, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// TransitionBooking handles POST /api/bookings/{id}/transition
func (h *BookingHandler) TransitionBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := validate.Struct(payload); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := h.service.Transition(r.Context(), actor, r.PathValue("id"), entities.BookingStatus(payload.Status), payload.Note)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, booking)
}

// CancelBooking handles POST /api/bookings/{id}/cancel
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := validate.Struct(payload); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := h.service.Cancel(r.Context(), actor, r.PathValue("id"), payload.Reason)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, booking)
}

// DeleteBooking handles DELETE /api/bookings/{id}
func (h *BookingHandler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.service.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		respondWithAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
