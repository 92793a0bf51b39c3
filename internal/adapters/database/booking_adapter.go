package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/agrilink/marketplace-backend/internal/domain/entities"
	"github.com/agrilink/marketplace-backend/internal/domain/repositories"
	"github.com/agrilink/marketplace-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/agrilink/marketplace-backend/pkg/errors"
)

// SlotClaimConstraint is the partial unique index guarding the slot claim:
// (seller_id, slot_date, slot_label) over slot-holding statuses only.
const SlotClaimConstraint = "bookings_slot_claim_idx"

// RatingBookingConstraint is the unique constraint on ratings.booking_id.
const RatingBookingConstraint = "ratings_booking_id_key"

// RatingBookingFKConstraint is the foreign key from ratings.booking_id to
// bookings.id. A booking that still carries a rating cannot be deleted.
const RatingBookingFKConstraint = "ratings_booking_id_fkey"

var bookingColumns = []any{
	"id", "reference_code", "buyer_id", "seller_id", "item",
	"quantity", "unit_price", "total_price", "slot_date", "slot_label",
	"status", "cancel_reason", "cancelled_by", "cancelled_at", "completed_at",
	"created_at", "updated_at",
}

// BookingAdapter implements the BookingRepository interface
type BookingAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewBookingAdapter creates a new booking adapter
func NewBookingAdapter(client *postgres.Client) repositories.BookingRepository {
	return &BookingAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a booking and its initial history entry in one transaction.
// The slot-claim unique index closes the check-then-insert race: a concurrent
// claim for the same seller/date/slot surfaces here as a Conflict.
func (a *BookingAdapter) Create(ctx context.Context, booking *entities.Booking, entry entities.StatusHistoryEntry) error {
	record := goqu.Record{
		"id":             booking.ID,
		"reference_code": booking.ReferenceCode,
		"buyer_id":       booking.BuyerID,
		"seller_id":      booking.SellerID,
		"item":           booking.Item,
		"quantity":       booking.Quantity,
		"unit_price":     booking.UnitPrice,
		"total_price":    booking.TotalPrice,
		"slot_date":      booking.SlotDate,
		"slot_label":     booking.SlotLabel,
		"status":         booking.Status,
		"created_at":     booking.CreatedAt,
		"updated_at":     booking.UpdatedAt,
	}

	query, args, err := a.db.Insert("bookings").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build booking insert query", err)
	}

	historyQuery, historyArgs, err := a.historyInsertSQL(entry)
	if err != nil {
		return err
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err, SlotClaimConstraint) {
			return apperrors.NewConflictError("slot already claimed for this seller, date, and time window")
		}
		return apperrors.NewInternalError("failed to create booking", err)
	}

	if _, err := tx.ExecContext(ctx, historyQuery, historyArgs...); err != nil {
		return apperrors.NewInternalError("failed to append status history", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit booking", err)
	}

	return nil
}

// GetByID retrieves a booking by ID
func (a *BookingAdapter) GetByID(ctx context.Context, id string) (*entities.Booking, error) {
	query, args, err := a.db.Select(bookingColumns...).
		From("bookings").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	booking, err := scanBooking(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("booking with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get booking", err)
	}

	return booking, nil
}

// FindSlotHolder returns the booking holding the seller's slot for the
// calendar day containing date, or nil when the slot is free. The day bounds
// are computed once as a half-open interval; the end is derived from the
// start, never by mutating the same value twice.
func (a *BookingAdapter) FindSlotHolder(ctx context.Context, sellerID string, date time.Time, slotLabel string) (*entities.Booking, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	query, args, err := a.db.Select(bookingColumns...).
		From("bookings").
		Where(goqu.Ex{
			"seller_id":  sellerID,
			"slot_label": slotLabel,
			"status":     entities.SlotHoldingStatuses(),
		}).
		Where(
			goqu.C("slot_date").Gte(dayStart),
			goqu.C("slot_date").Lt(dayEnd),
		).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build slot query", err)
	}

	booking, err := scanBooking(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query slot holder", err)
	}

	return booking, nil
}

// UpdateStatus flips the status only if the current status still matches
// `from`, appending the history entry in the same transaction. A losing
// concurrent request matches no row and gets (false, nil).
func (a *BookingAdapter) UpdateStatus(ctx context.Context, id string, from, to entities.BookingStatus, update repositories.StatusUpdate) (bool, error) {
	record := goqu.Record{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if update.CancelReason != "" {
		record["cancel_reason"] = update.CancelReason
	}
	if update.CancelledBy != "" {
		record["cancelled_by"] = update.CancelledBy
	}
	if update.CancelledAt != nil {
		record["cancelled_at"] = *update.CancelledAt
	}
	if update.CompletedAt != nil {
		record["completed_at"] = *update.CompletedAt
	}

	query, args, err := a.db.Update("bookings").
		Set(record).
		Where(goqu.Ex{"id": id, "status": from}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build status update query", err)
	}

	historyQuery, historyArgs, err := a.historyInsertSQL(update.Entry)
	if err != nil {
		return false, err
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return false, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewInternalError("failed to update booking status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to read affected rows", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, historyQuery, historyArgs...); err != nil {
		return false, apperrors.NewInternalError("failed to append status history", err)
	}

	if err := tx.Commit(); err != nil {
		return false, apperrors.NewInternalError("failed to commit status update", err)
	}

	return true, nil
}

// GetHistory returns the booking's status history, oldest first.
func (a *BookingAdapter) GetHistory(ctx context.Context, bookingID string) ([]entities.StatusHistoryEntry, error) {
	query, args, err := a.db.Select("id", "booking_id", "status", "actor_id", "actor_role", "note", "created_at").
		From("booking_status_history").
		Where(goqu.Ex{"booking_id": bookingID}).
		Order(goqu.C("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build history query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query status history", err)
	}
	defer rows.Close()

	var history []entities.StatusHistoryEntry
	for rows.Next() {
		var entry entities.StatusHistoryEntry
		var note sql.NullString
		if err := rows.Scan(&entry.ID, &entry.BookingID, &entry.Status, &entry.ActorID, &entry.ActorRole, &note, &entry.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan history entry", err)
		}
		entry.Note = note.String
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to read status history", err)
	}

	return history, nil
}

// ListByBuyer retrieves bookings created by a buyer
func (a *BookingAdapter) ListByBuyer(ctx context.Context, buyerID string, filter repositories.BookingFilter) ([]*entities.Booking, error) {
	return a.list(ctx, goqu.Ex{"buyer_id": buyerID}, filter)
}

// ListBySeller retrieves bookings addressed to a seller
func (a *BookingAdapter) ListBySeller(ctx context.Context, sellerID string, filter repositories.BookingFilter) ([]*entities.Booking, error) {
	return a.list(ctx, goqu.Ex{"seller_id": sellerID}, filter)
}

// Delete removes a booking and its history
func (a *BookingAdapter) Delete(ctx context.Context, id string) error {
	historyQuery, historyArgs, err := a.db.Delete("booking_status_history").
		Where(goqu.Ex{"booking_id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build history delete query", err)
	}

	query, args, err := a.db.Delete("bookings").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build booking delete query", err)
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, historyQuery, historyArgs...); err != nil {
		return apperrors.NewInternalError("failed to delete status history", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err, RatingBookingFKConstraint) {
			return apperrors.NewInvalidStateError("booking has a rating; delete the rating first")
		}
		return apperrors.NewInternalError("failed to delete booking", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to read affected rows", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("booking with id %s not found", id))
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit booking delete", err)
	}

	return nil
}

func (a *BookingAdapter) list(ctx context.Context, where goqu.Ex, filter repositories.BookingFilter) ([]*entities.Booking, error) {
	if filter.Status != "" {
		where["status"] = filter.Status
	}

	ds := a.db.Select(bookingColumns...).
		From("bookings").
		Where(where).
		Order(goqu.C("created_at").Desc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list bookings", err)
	}
	defer rows.Close()

	var bookings []*entities.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan booking", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to read bookings", err)
	}

	return bookings, nil
}

func (a *BookingAdapter) historyInsertSQL(entry entities.StatusHistoryEntry) (string, []interface{}, error) {
	record := goqu.Record{
		"id":         entry.ID,
		"booking_id": entry.BookingID,
		"status":     entry.Status,
		"actor_id":   entry.ActorID,
		"actor_role": entry.ActorRole,
		"note":       sql.NullString{String: entry.Note, Valid: entry.Note != ""},
		"created_at": entry.CreatedAt,
	}

	query, args, err := a.db.Insert("booking_status_history").Rows(record).ToSQL()
	if err != nil {
		return "", nil, apperrors.NewInternalError("failed to build history insert query", err)
	}
	return query, args, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*entities.Booking, error) {
	booking := &entities.Booking{}
	var cancelReason, cancelledBy sql.NullString
	var cancelledAt, completedAt sql.NullTime

	err := row.Scan(
		&booking.ID,
		&booking.ReferenceCode,
		&booking.BuyerID,
		&booking.SellerID,
		&booking.Item,
		&booking.Quantity,
		&booking.UnitPrice,
		&booking.TotalPrice,
		&booking.SlotDate,
		&booking.SlotLabel,
		&booking.Status,
		&cancelReason,
		&cancelledBy,
		&cancelledAt,
		&completedAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	booking.CancelReason = cancelReason.String
	booking.CancelledBy = cancelledBy.String
	if cancelledAt.Valid {
		t := cancelledAt.Time
		booking.CancelledAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		booking.CompletedAt = &t
	}

	return booking, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation on the
// given constraint. An empty constraint matches any unique violation.
func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func isForeignKeyViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	if pqErr.Code != "23503" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
