package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agrilink/marketplace-backend/internal/api/handlers"
	"github.com/agrilink/marketplace-backend/internal/application/services"
	"github.com/agrilink/marketplace-backend/internal/domain/entities"
	apperrors "github.com/agrilink/marketplace-backend/pkg/errors"
)

type stubRatingService struct {
	submitFn func(ctx context.Context, actor entities.Actor, input services.SubmitRatingInput) (*entities.Rating, error)
	editFn   func(ctx context.Context, actor entities.Actor, ratingID, review string) (*entities.Rating, error)
	deleteFn func(ctx context.Context, actor entities.Actor, ratingID string) error
	listFn   func(ctx context.Context, sellerID string) ([]*entities.Rating, error)
}

func (s *stubRatingService) Submit(ctx context.Context, actor entities.Actor, input services.SubmitRatingInput) (*entities.Rating, error) {
	return s.submitFn(ctx, actor, input)
}

func (s *stubRatingService) Edit(ctx context.Context, actor entities.Actor, ratingID, review string) (*entities.Rating, error) {
	return s.editFn(ctx, actor, ratingID, review)
}

func (s *stubRatingService) Delete(ctx context.Context, actor entities.Actor, ratingID string) error {
	return s.deleteFn(ctx, actor, ratingID)
}

func (s *stubRatingService) ListForSeller(ctx context.Context, sellerID string) ([]*entities.Rating, error) {
	return s.listFn(ctx, sellerID)
}

type stubSummarizer struct {
	summaryFn func(ctx context.Context, sellerID string) (*entities.DealerRatingAggregate, error)
}

func (s *stubSummarizer) Summary(ctx context.Context, sellerID string) (*entities.DealerRatingAggregate, error) {
	return s.summaryFn(ctx, sellerID)
}

func TestRatingHandler_SubmitRating(t *testing.T) {
	validBody := `{"booking_id": "bk-1", "stars": 4, "review": "Good grain."}`

	t.Run("submits rating with the caller's network identity", func(t *testing.T) {
		service := &stubRatingService{
			submitFn: func(_ context.Context, actor entities.Actor, input services.SubmitRatingInput) (*entities.Rating, error) {
				assert.Equal(t, "buyer-1", actor.ID)
				assert.Equal(t, "bk-1", input.BookingID)
				assert.Equal(t, "198.51.100.9", input.SubmitterNetID)
				return &entities.Rating{ID: "r-1", Stars: input.Stars}, nil
			},
		}
		handler := handlers.NewRatingHandler(service, &stubSummarizer{})

		req := authedRequest(http.MethodPost, "/api/ratings", []byte(validBody), testBuyer)
		req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")

		rec := httptest.NewRecorder()
		handler.SubmitRating(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("requires authentication", func(t *testing.T) {
		handler := handlers.NewRatingHandler(&stubRatingService{}, &stubSummarizer{})

		req := httptest.NewRequest(http.MethodPost, "/api/ratings", nil)
		rec := httptest.NewRecorder()
		handler.SubmitRating(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("maps rate limit to 429", func(t *testing.T) {
		service := &stubRatingService{
			submitFn: func(context.Context, entities.Actor, services.SubmitRatingInput) (*entities.Rating, error) {
				return nil, apperrors.NewRateLimitedError("at most 5 ratings per 24h0m0s")
			},
		}
		handler := handlers.NewRatingHandler(service, &stubSummarizer{})

		rec := httptest.NewRecorder()
		handler.SubmitRating(rec, authedRequest(http.MethodPost, "/api/ratings", []byte(validBody), testBuyer))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("maps duplicate booking rating to 409", func(t *testing.T) {
		service := &stubRatingService{
			submitFn: func(context.Context, entities.Actor, services.SubmitRatingInput) (*entities.Rating, error) {
				return nil, apperrors.NewConflictError("booking already rated")
			},
		}
		handler := handlers.NewRatingHandler(service, &stubSummarizer{})

		rec := httptest.NewRecorder()
		handler.SubmitRating(rec, authedRequest(http.MethodPost, "/api/ratings", []byte(validBody), testBuyer))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("maps incomplete booking to 409", func(t *testing.T) {
		service := &stubRatingService{
			submitFn: func(context.Context, entities.Actor, services.SubmitRatingInput) (*entities.Rating, error) {
				return nil, apperrors.NewInvalidStateError("only completed bookings may be rated")
			},
		}
		handler := handlers.NewRatingHandler(service, &stubSummarizer{})

		rec := httptest.NewRecorder()
		handler.SubmitRating(rec, authedRequest(http.MethodPost, "/api/ratings", []byte(validBody), testBuyer))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestRatingHandler_EditRating(t *testing.T) {
	service := &stubRatingService{
		editFn: func(_ context.Context, _ entities.Actor, ratingID, review string) (*entities.Rating, error) {
			assert.Equal(t, "r-1", ratingID)
			assert.Equal(t, "Updated text.", review)
			return &entities.Rating{ID: ratingID, Review: review}, nil
		},
	}
	handler := handlers.NewRatingHandler(service, &stubSummarizer{})

	req := authedRequest(http.MethodPatch, "/api/ratings/r-1", []byte(`{"review": "Updated text."}`), testBuyer)
	req.SetPathValue("id", "r-1")

	rec := httptest.NewRecorder()
	handler.EditRating(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRatingHandler_DeleteRating(t *testing.T) {
	service := &stubRatingService{
		deleteFn: func(_ context.Context, _ entities.Actor, ratingID string) error {
			assert.Equal(t, "r-1", ratingID)
			return nil
		},
	}
	handler := handlers.NewRatingHandler(service, &stubSummarizer{})

	req := authedRequest(http.MethodDelete, "/api/ratings/r-1", nil, testBuyer)
	req.SetPathValue("id", "r-1")

	rec := httptest.NewRecorder()
	handler.DeleteRating(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRatingHandler_GetDealerRatingSummary(t *testing.T) {
	summarizer := &stubSummarizer{
		summaryFn: func(_ context.Context, sellerID string) (*entities.DealerRatingAggregate, error) {
			assert.Equal(t, "seller-1", sellerID)
			return &entities.DealerRatingAggregate{
				SellerID:     sellerID,
				Average:      4.3,
				TotalCount:   7,
				Distribution: map[int]int{1: 0, 2: 0, 3: 1, 4: 3, 5: 3},
			}, nil
		},
	}
	handler := handlers.NewRatingHandler(&stubRatingService{}, summarizer)

	req := httptest.NewRequest(http.MethodGet, "/api/dealers/seller-1/rating-summary", nil)
	req.SetPathValue("id", "seller-1")

	rec := httptest.NewRecorder()
	handler.GetDealerRatingSummary(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var summary entities.DealerRatingAggregate
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 4.3, summary.Average)
}

func TestRatingHandler_ListDealerRatings(t *testing.T) {
	service := &stubRatingService{
		listFn: func(_ context.Context, sellerID string) ([]*entities.Rating, error) {
			return []*entities.Rating{{ID: "r-1"}, {ID: "r-2"}}, nil
		},
	}
	handler := handlers.NewRatingHandler(service, &stubSummarizer{})

	req := httptest.NewRequest(http.MethodGet, "/api/dealers/seller-1/ratings", nil)
	req.SetPathValue("id", "seller-1")

	rec := httptest.NewRecorder()
	handler.ListDealerRatings(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
}
