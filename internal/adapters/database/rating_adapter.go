package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/agrilink/marketplace-backend/internal/domain/entities"
	"github.com/agrilink/marketplace-backend/internal/domain/repositories"
	"github.com/agrilink/marketplace-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/agrilink/marketplace-backend/pkg/errors"
)

var ratingColumns = []any{
	"id", "booking_id", "seller_id", "buyer_id", "stars", "review",
	"fingerprint", "is_flagged", "flag_reason", "submitter_net_id",
	"created_at", "updated_at",
}

// RatingAdapter implements the RatingRepository interface
type RatingAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewRatingAdapter creates a new rating adapter
func NewRatingAdapter(client *postgres.Client) repositories.RatingRepository {
	return &RatingAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a rating. The unique constraint on booking_id guarantees at
// most one rating per booking even under concurrent submissions.
func (a *RatingAdapter) Create(ctx context.Context, rating *entities.Rating) error {
	record := goqu.Record{
		"id":               rating.ID,
		"booking_id":       rating.BookingID,
		"seller_id":        rating.SellerID,
		"buyer_id":         rating.BuyerID,
		"stars":            rating.Stars,
		"review":           sql.NullString{String: rating.Review, Valid: rating.Review != ""},
		"fingerprint":      rating.Fingerprint,
		"is_flagged":       rating.IsFlagged,
		"flag_reason":      rating.FlagReason,
		"submitter_net_id": rating.SubmitterNetID,
		"created_at":       rating.CreatedAt,
		"updated_at":       rating.UpdatedAt,
	}

	query, args, err := a.db.Insert("ratings").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build rating insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err, RatingBookingConstraint) {
			return apperrors.NewConflictError("booking already rated")
		}
		return apperrors.NewInternalError("failed to create rating", err)
	}

	return nil
}

// GetByID retrieves a rating by ID
func (a *RatingAdapter) GetByID(ctx context.Context, id string) (*entities.Rating, error) {
	rating, err := a.getOne(ctx, goqu.Ex{"id": id})
	if err != nil {
		return nil, err
	}
	if rating == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("rating with id %s not found", id))
	}
	return rating, nil
}

// GetByBookingID returns the rating referencing the booking, or nil when none
// exists.
func (a *RatingAdapter) GetByBookingID(ctx context.Context, bookingID string) (*entities.Rating, error) {
	return a.getOne(ctx, goqu.Ex{"booking_id": bookingID})
}

// CountSellerFingerprints counts non-flagged ratings for the seller sharing
// the fingerprint, excluding excludeID when set.
func (a *RatingAdapter) CountSellerFingerprints(ctx context.Context, sellerID, fingerprint, excludeID string) (int, error) {
	where := goqu.Ex{
		"seller_id":   sellerID,
		"fingerprint": fingerprint,
		"is_flagged":  false,
	}

	ds := a.db.Select(goqu.COUNT("*")).From("ratings").Where(where)
	if excludeID != "" {
		ds = ds.Where(goqu.C("id").Neq(excludeID))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build fingerprint count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count fingerprints", err)
	}

	return count, nil
}

// CountBySubmitterSince counts ratings submitted from the network identifier
// within the trailing window. The count is recomputed from stored ratings per
// request; there is no separate counter state.
func (a *RatingAdapter) CountBySubmitterSince(ctx context.Context, submitterNetID string, since time.Time) (int, error) {
	query, args, err := a.db.Select(goqu.COUNT("*")).
		From("ratings").
		Where(
			goqu.C("submitter_net_id").Eq(submitterNetID),
			goqu.C("created_at").Gte(since),
		).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build submitter count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count submissions", err)
	}

	return count, nil
}

// ListBySeller retrieves a seller's ratings, optionally including flagged ones.
func (a *RatingAdapter) ListBySeller(ctx context.Context, sellerID string, includeFlagged bool) ([]*entities.Rating, error) {
	where := goqu.Ex{"seller_id": sellerID}
	if !includeFlagged {
		where["is_flagged"] = false
	}

	query, args, err := a.db.Select(ratingColumns...).
		From("ratings").
		Where(where).
		Order(goqu.C("created_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build rating list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list ratings", err)
	}
	defer rows.Close()

	var ratings []*entities.Rating
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan rating", err)
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to read ratings", err)
	}

	return ratings, nil
}

// UpdateReview replaces the review text, fingerprint, and moderation flags.
// Stars are immutable after creation and never touched here.
func (a *RatingAdapter) UpdateReview(ctx context.Context, id, review, fingerprint string, isFlagged bool, flagReason entities.FlagReason) error {
	query, args, err := a.db.Update("ratings").
		Set(goqu.Record{
			"review":      sql.NullString{String: review, Valid: review != ""},
			"fingerprint": fingerprint,
			"is_flagged":  isFlagged,
			"flag_reason": flagReason,
			"updated_at":  time.Now().UTC(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build review update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update review", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to read affected rows", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("rating with id %s not found", id))
	}

	return nil
}

// Delete removes a rating
func (a *RatingAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete("ratings").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build rating delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete rating", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to read affected rows", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("rating with id %s not found", id))
	}

	return nil
}

func (a *RatingAdapter) getOne(ctx context.Context, where goqu.Ex) (*entities.Rating, error) {
	query, args, err := a.db.Select(ratingColumns...).
		From("ratings").
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build rating query", err)
	}

	rating, err := scanRating(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get rating", err)
	}

	return rating, nil
}

func scanRating(row rowScanner) (*entities.Rating, error) {
	rating := &entities.Rating{}
	var review sql.NullString

	err := row.Scan(
		&rating.ID,
		&rating.BookingID,
		&rating.SellerID,
		&rating.BuyerID,
		&rating.Stars,
		&review,
		&rating.Fingerprint,
		&rating.IsFlagged,
		&rating.FlagReason,
		&rating.SubmitterNetID,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rating.Review = review.String
	return rating, nil
}
