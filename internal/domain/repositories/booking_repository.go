package repositories

import (
	"context"
	"time"

	"github.com/agrilink/marketplace-backend/internal/domain/entities"
)

// BookingRepository defines the interface for booking data operations.
//
// Implementations must enforce the slot-claim uniqueness constraint on
// (seller, slot date, slot label) for slot-holding statuses, and must apply
// status changes as atomic conditional updates.
type BookingRepository interface {
	// Create inserts a new booking together with its initial history entry.
	// A storage-level uniqueness violation on the slot claim surfaces as a
	// Conflict error.
	Create(ctx context.Context, booking *entities.Booking, entry entities.StatusHistoryEntry) error

	// GetByID retrieves a booking by ID
	GetByID(ctx context.Context, id string) (*entities.Booking, error)

	// FindSlotHolder returns the booking currently holding the seller's slot
	// for the calendar day containing date, or nil when the slot is free.
	// The day is compared as the half-open interval [startOfDay, startOfDay+24h).
	FindSlotHolder(ctx context.Context, sellerID string, date time.Time, slotLabel string) (*entities.Booking, error)

	// UpdateStatus applies "set status to `to` only if current status is
	// `from`" and appends the history entry in the same transaction.
	// It returns false with no error when the conditional matched no row,
	// meaning the precondition no longer holds.
	UpdateStatus(ctx context.Context, id string, from, to entities.BookingStatus, update StatusUpdate) (bool, error)

	// GetHistory returns the append-only status history, oldest first.
	GetHistory(ctx context.Context, bookingID string) ([]entities.StatusHistoryEntry, error)

	// ListByBuyer retrieves bookings created by a buyer
	ListByBuyer(ctx context.Context, buyerID string, filter BookingFilter) ([]*entities.Booking, error)

	// ListBySeller retrieves bookings addressed to a seller
	ListBySeller(ctx context.Context, sellerID string, filter BookingFilter) ([]*entities.Booking, error)

	// Delete removes a booking and its history
	Delete(ctx context.Context, id string) error
}

// StatusUpdate carries the history entry and the timestamp columns a
// transition writes alongside the status flip.
type StatusUpdate struct {
	Entry entities.StatusHistoryEntry

	CancelReason string
	CancelledBy  string
	CancelledAt  *time.Time
	CompletedAt  *time.Time
}

// BookingFilter defines filters for listing bookings
type BookingFilter struct {
	Status entities.BookingStatus
	Limit  int
	Offset int
}
