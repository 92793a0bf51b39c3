package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/agrilink/marketplace-backend/internal/api/middleware"
	"github.com/agrilink/marketplace-backend/internal/application/services"
	"github.com/agrilink/marketplace-backend/internal/domain/entities"
)

// RatingService defines the rating operations used by the handler.
type RatingService interface {
	Submit(ctx context.Context, actor entities.Actor, input services.SubmitRatingInput) (*entities.Rating, error)
	Edit(ctx context.Context, actor entities.Actor, ratingID, review string) (*entities.Rating, error)
	Delete(ctx context.Context, actor entities.Actor, ratingID string) error
	ListForSeller(ctx context.Context, sellerID string) ([]*entities.Rating, error)
}

// DealerRatingSummarizer provides the cached per-seller aggregate.
type DealerRatingSummarizer interface {
	Summary(ctx context.Context, sellerID string) (*entities.DealerRatingAggregate, error)
}

// RatingHandler handles rating requests
type RatingHandler struct {
	service    RatingService
	aggregator DealerRatingSummarizer
}

// NewRatingHandler creates a new rating handler
func NewRatingHandler(service RatingService, aggregator DealerRatingSummarizer) *RatingHandler {
	return &RatingHandler{
		service:    service,
		aggregator: aggregator,
	}
}

type submitRatingRequest struct {
	BookingID string `json:"booking_id" validate:"required"`
	Stars     int    `json:"stars" validate:"required"`
	Review    string `json:"review"`
}

type editRatingRequest struct {
	Review string `json:"review"`
}

// SubmitRating handles POST /api/ratings
func (h *RatingHandler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload submitRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := validate.Struct(payload); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	rating, err := h.service.Submit(r.Context(), actor, services.SubmitRatingInput{
		BookingID:      payload.BookingID,
		Stars:          payload.Stars,
		Review:         payload.Review,
		SubmitterNetID: clientIP(r),
	})
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, rating)
}

// EditRating handles PATCH /api/ratings/{id}
func (h *RatingHandler) EditRating(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload editRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	rating, err := h.service.Edit(r.Context(), actor, r.PathValue("id"), payload.Review)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, rating)
}

// DeleteRating handles DELETE /api/ratings/{id}
func (h *RatingHandler) DeleteRating(w http.ResponseWriter, r *http.Request) {
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

// GetDealerRatingSummary handles GET /api/dealers/{id}/rating-summary
func (h *RatingHandler) GetDealerRatingSummary(w http.ResponseWriter, r *http.Request) {
	sellerID := r.PathValue("id")
	if sellerID == "" {
		respondWithError(w, http.StatusBadRequest, "dealer ID is required")
		return
	}

	summary, err := h.aggregator.Summary(r.Context(), sellerID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

// ListDealerRatings handles GET /api/dealers/{id}/ratings
func (h *RatingHandler) ListDealerRatings(w http.ResponseWriter, r *http.Request) {
	sellerID := r.PathValue("id")
	if sellerID == "" {
		respondWithError(w, http.StatusBadRequest, "dealer ID is required")
		return
	}

	ratings, err := h.service.ListForSeller(r.Context(), sellerID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ratings": ratings,
		"count":   len(ratings),
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
