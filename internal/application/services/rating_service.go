package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agrilink/marketplace-backend/internal/domain/entities"
	"github.com/agrilink/marketplace-backend/internal/domain/repositories"
	"github.com/agrilink/marketplace-backend/internal/infrastructure/observability"
	"github.com/agrilink/marketplace-backend/pkg/config"
	apperrors "github.com/agrilink/marketplace-backend/pkg/errors"
)

// RatingService is the review integrity engine: eligibility checks bound to a
// completed booking, near-duplicate content moderation, per-submitter rate
// limiting, and synchronous aggregate recomputation.
type RatingService struct {
	repo       repositories.RatingRepository
	bookings   repositories.BookingRepository
	aggregator *RatingAggregator
	policy     config.ReviewPolicyConfig
}

// NewRatingService creates a new rating service
func NewRatingService(
	repo repositories.RatingRepository,
	bookings repositories.BookingRepository,
	aggregator *RatingAggregator,
	policy config.ReviewPolicyConfig,
) *RatingService {
	return &RatingService{
		repo:       repo,
		bookings:   bookings,
		aggregator: aggregator,
		policy:     policy,
	}
}

// SubmitRatingInput carries a buyer's rating submission. SubmitterNetID is
// the originating network identifier, used only for rate limiting.
type SubmitRatingInput struct {
	BookingID      string
	Stars          int
	Review         string
	SubmitterNetID string
}

// Submit creates the single rating a completed booking may carry.
//
// The score bound is checked before anything needing a lookup; the
// eligibility chain then runs in order, first failure winning: booking
// exists, caller is its buyer, booking is completed, no rating exists yet,
// and the submitter's sliding window has room. Duplicate review text is
// moderated (flagged), not rejected.
func (s *RatingService) Submit(ctx context.Context, actor entities.Actor, input SubmitRatingInput) (*entities.Rating, error) {
	if input.Stars < 1 || input.Stars > 5 {
		return nil, apperrors.NewValidationError("stars must be between 1 and 5")
	}
	if len(input.Review) > entities.MaxReviewLength {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("review must be at most %d characters", entities.MaxReviewLength))
	}

	booking, err := readWithRetry(ctx, "booking lookup", func() (*entities.Booking, error) {
		return s.bookings.GetByID(ctx, input.BookingID)
	})
	if err != nil {
		return nil, err
	}

	if booking.BuyerID != actor.ID {
		return nil, apperrors.NewForbiddenError("only the booking's buyer may rate it")
	}
	if booking.Status != entities.BookingStatusCompleted {
		return nil, apperrors.NewInvalidStateError("only completed bookings may be rated")
	}

	existing, err := readWithRetry(ctx, "rating lookup", func() (*entities.Rating, error) {
		return s.repo.GetByBookingID(ctx, input.BookingID)
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.NewConflictError("booking already rated")
	}

	windowStart := time.Now().UTC().Add(-s.policy.RateLimitWindow)
	submitted, err := readWithRetry(ctx, "rate limit check", func() (int, error) {
		return s.repo.CountBySubmitterSince(ctx, input.SubmitterNetID, windowStart)
	})
	if err != nil {
		return nil, err
	}
	if submitted >= s.policy.RateLimitMax {
		return nil, apperrors.NewRateLimitedError(
			fmt.Sprintf("at most %d ratings per %s", s.policy.RateLimitMax, s.policy.RateLimitWindow))
	}

	now := time.Now().UTC()
	rating := &entities.Rating{
		ID:             uuid.New().String(),
		BookingID:      booking.ID,
		SellerID:       booking.SellerID,
		BuyerID:        booking.BuyerID,
		Stars:          input.Stars,
		Review:         input.Review,
		Fingerprint:    entities.ReviewFingerprint(input.Review),
		FlagReason:     entities.FlagReasonNone,
		SubmitterNetID: input.SubmitterNetID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	flagged, err := s.isDuplicateText(ctx, booking.SellerID, input.Review, rating.Fingerprint, "")
	if err != nil {
		return nil, err
	}
	if flagged {
		rating.IsFlagged = true
		rating.FlagReason = entities.FlagReasonDuplicateText
		observability.CountRatingFlagged(ctx)
	}

	// The unique constraint on the booking reference decides concurrent
	// submissions; exactly one wins.
	if err := s.repo.Create(ctx, rating); err != nil {
		return nil, err
	}

	// Synchronous so the caller observes an aggregate consistent with the
	// rating just created.
	if _, err := s.aggregator.Recompute(ctx, booking.SellerID); err != nil {
		return nil, err
	}

	return rating, nil
}

// Edit replaces the review text of the author's own rating. The score is
// immutable. The new text re-runs duplicate detection, which may newly flag a
// previously clean rating, and the seller's aggregate is recomputed.
func (s *RatingService) Edit(ctx context.Context, actor entities.Actor, ratingID, review string) (*entities.Rating, error) {
	if len(review) > entities.MaxReviewLength {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("review must be at most %d characters", entities.MaxReviewLength))
	}

	rating, err := readWithRetry(ctx, "rating lookup", func() (*entities.Rating, error) {
		return s.repo.GetByID(ctx, ratingID)
	})
	if err != nil {
		return nil, err
	}

	if rating.BuyerID != actor.ID {
		return nil, apperrors.NewForbiddenError("only the author may edit a rating")
	}

	fingerprint := entities.ReviewFingerprint(review)

	isFlagged := rating.IsFlagged
	flagReason := rating.FlagReason
	if !rating.IsFlagged || rating.FlagReason == entities.FlagReasonDuplicateText {
		// Re-run duplicate detection against the new text. Flags raised by
		// moderation for other reasons are left alone.
		duplicate, err := s.isDuplicateText(ctx, rating.SellerID, review, fingerprint, rating.ID)
		if err != nil {
			return nil, err
		}
		if duplicate {
			isFlagged = true
			flagReason = entities.FlagReasonDuplicateText
			if !rating.IsFlagged {
				observability.CountRatingFlagged(ctx)
			}
		} else {
			isFlagged = false
			flagReason = entities.FlagReasonNone
		}
	}

	if err := s.repo.UpdateReview(ctx, rating.ID, review, fingerprint, isFlagged, flagReason); err != nil {
		return nil, err
	}

	if _, err := s.aggregator.Recompute(ctx, rating.SellerID); err != nil {
		return nil, err
	}

	rating.Review = review
	rating.Fingerprint = fingerprint
	rating.IsFlagged = isFlagged
	rating.FlagReason = flagReason
	rating.UpdatedAt = time.Now().UTC()

	return rating, nil
}

// Delete removes the author's own rating and recomputes the seller's
// aggregate.
func (s *RatingService) Delete(ctx context.Context, actor entities.Actor, ratingID string) error {
	rating, err := readWithRetry(ctx, "rating lookup", func() (*entities.Rating, error) {
		return s.repo.GetByID(ctx, ratingID)
	})
	if err != nil {
		return err
	}

	if rating.BuyerID != actor.ID {
		return apperrors.NewForbiddenError("only the author may delete a rating")
	}

	if err := s.repo.Delete(ctx, rating.ID); err != nil {
		return err
	}

	_, err = s.aggregator.Recompute(ctx, rating.SellerID)
	return err
}

// ListForSeller returns a seller's public (non-flagged) ratings.
func (s *RatingService) ListForSeller(ctx context.Context, sellerID string) ([]*entities.Rating, error) {
	return readWithRetry(ctx, "rating list", func() ([]*entities.Rating, error) {
		return s.repo.ListBySeller(ctx, sellerID, false)
	})
}

// isDuplicateText reports whether enough non-flagged peer ratings for the
// seller share the text's fingerprint to warrant a flag. Empty text never
// flags. The threshold is policy, not a derived constant.
func (s *RatingService) isDuplicateText(ctx context.Context, sellerID, review, fingerprint, excludeID string) (bool, error) {
	if entities.NormalizeReview(review) == "" {
		return false, nil
	}

	priors, err := readWithRetry(ctx, "duplicate check", func() (int, error) {
		return s.repo.CountSellerFingerprints(ctx, sellerID, fingerprint, excludeID)
	})
	if err != nil {
		return false, err
	}

	return priors >= s.policy.DuplicateFlagThreshold, nil
}
