package repositories

import (
	"context"
	"time"

	"github.com/agrilink/marketplace-backend/internal/domain/entities"
)

// RatingRepository defines the interface for rating operations.
//
// Implementations must enforce a uniqueness constraint on the booking
// reference: a booking has at most one rating, ever.
type RatingRepository interface {
	// Create inserts a rating. A uniqueness violation on the booking
	// reference surfaces as a Conflict error.
	Create(ctx context.Context, rating *entities.Rating) error

	// GetByID retrieves a rating by ID
	GetByID(ctx context.Context, id string) (*entities.Rating, error)

	// GetByBookingID returns the rating referencing the booking, or nil when
	// none exists.
	GetByBookingID(ctx context.Context, bookingID string) (*entities.Rating, error)

	// CountSellerFingerprints counts the non-flagged ratings for the seller
	// sharing the given content fingerprint, excluding excludeID (used when
	// re-checking an edited rating against its peers).
	CountSellerFingerprints(ctx context.Context, sellerID, fingerprint, excludeID string) (int, error)

	// CountBySubmitterSince counts ratings submitted from the network
	// identifier with createdAt within [since, now]. Flagged ratings count.
	CountBySubmitterSince(ctx context.Context, submitterNetID string, since time.Time) (int, error)

	// ListBySeller retrieves a seller's ratings, optionally including
	// flagged ones.
	ListBySeller(ctx context.Context, sellerID string, includeFlagged bool) ([]*entities.Rating, error)

	// UpdateReview replaces the review text, fingerprint, and moderation
	// flags of a rating. The numeric score is immutable and never updated.
	UpdateReview(ctx context.Context, id, review, fingerprint string, isFlagged bool, flagReason entities.FlagReason) error

	// Delete removes a rating
	Delete(ctx context.Context, id string) error
}
