package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agrilink/marketplace-backend/internal/domain/entities"
	"github.com/agrilink/marketplace-backend/internal/domain/providers"
	"github.com/agrilink/marketplace-backend/internal/domain/repositories"
	"github.com/agrilink/marketplace-backend/internal/infrastructure/observability"
	apperrors "github.com/agrilink/marketplace-backend/pkg/errors"
)

// notifiedKeyTTLSeconds bounds how long an emission claim is remembered.
// Persistence retries land well inside this window.
const notifiedKeyTTLSeconds = 7 * 24 * 60 * 60

// BookingService orchestrates the booking lifecycle: slot conflict checking,
// the status machine, and the side-effect events owed to the notification
// collaborator.
type BookingService struct {
	repo     repositories.BookingRepository
	cache    providers.CacheProvider
	notifier providers.Notifier

	allowCompletedDeletion bool

	// Fallback emission guard when no shared cache is configured.
	localClaims sync.Map
}

// NewBookingService creates a new booking service. cache may be nil, in which
// case the event-emission idempotency guard falls back to process-local state.
func NewBookingService(
	repo repositories.BookingRepository,
	cache providers.CacheProvider,
	notifier providers.Notifier,
	allowCompletedDeletion bool,
) *BookingService {
	return &BookingService{
		repo:                   repo,
		cache:                  cache,
		notifier:               notifier,
		allowCompletedDeletion: allowCompletedDeletion,
	}
}

// CreateBookingInput carries the buyer's creation request. The total is never
// part of the input; it is always derived from quantity and unit price.
type CreateBookingInput struct {
	SellerID  string
	Item      string
	Quantity  float64
	UnitPrice float64
	SlotDate  time.Time
	SlotLabel string
}

// SlotConflict describes an occupied slot, including the holding booking's
// reference so callers can render a precise rejection.
type SlotConflict struct {
	ConflictingReference string                 `json:"conflicting_reference"`
	HolderStatus         entities.BookingStatus `json:"holder_status"`
	SlotDate             time.Time              `json:"slot_date"`
	SlotLabel            string                 `json:"slot_label"`
}

// CheckSlot reports whether the seller's slot for the given day and window is
// already claimed. A free slot returns (nil, nil); occupancy is a result, not
// an error.
func (s *BookingService) CheckSlot(ctx context.Context, sellerID string, date time.Time, slotLabel string) (*SlotConflict, error) {
	holder, err := readWithRetry(ctx, "slot lookup", func() (*entities.Booking, error) {
		return s.repo.FindSlotHolder(ctx, sellerID, date, slotLabel)
	})
	if err != nil {
		return nil, err
	}
	if holder == nil {
		return nil, nil
	}
	return &SlotConflict{
		ConflictingReference: holder.ReferenceCode,
		HolderStatus:         holder.Status,
		SlotDate:             holder.SlotDate,
		SlotLabel:            holder.SlotLabel,
	}, nil
}

// Create claims the seller's slot and initializes the booking in pending
// state. The pre-check supplies a precise conflict message; the storage-level
// slot-claim constraint is the authoritative guard against concurrent claims.
func (s *BookingService) Create(ctx context.Context, actor entities.Actor, input CreateBookingInput) (*entities.Booking, error) {
	if err := validateCreateInput(actor, input); err != nil {
		return nil, err
	}

	conflict, err := s.CheckSlot(ctx, input.SellerID, input.SlotDate, input.SlotLabel)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, slotConflictError(ctx, conflict)
	}

	now := time.Now().UTC()
	booking := &entities.Booking{
		ID:        uuid.New().String(),
		BuyerID:   actor.ID,
		SellerID:  input.SellerID,
		Item:      strings.TrimSpace(input.Item),
		Quantity:  input.Quantity,
		UnitPrice: input.UnitPrice,
		SlotDate:  input.SlotDate,
		SlotLabel: input.SlotLabel,
		Status:    entities.BookingStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	booking.ReferenceCode = referenceCode(booking.ID)
	booking.RecomputeTotal()

	entry := entities.StatusHistoryEntry{
		ID:        uuid.New().String(),
		BookingID: booking.ID,
		Status:    entities.BookingStatusPending,
		ActorID:   actor.ID,
		ActorRole: entities.PartyBuyer,
		CreatedAt: now,
	}

	if err := s.repo.Create(ctx, booking, entry); err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			// Lost the claim race after the pre-check passed. Re-fetch the
			// winner for a precise message; fall back to the generic one.
			if conflict, lookupErr := s.CheckSlot(ctx, input.SellerID, input.SlotDate, input.SlotLabel); lookupErr == nil && conflict != nil {
				return nil, slotConflictError(ctx, conflict)
			}
		}
		return nil, err
	}

	booking.History = []entities.StatusHistoryEntry{entry}

	s.emitOnce(ctx, booking, entities.BookingStatusPending, booking.SellerID)

	return booking, nil
}

// Get returns the booking with its status history. Only the parties and
// admins may read a booking.
func (s *BookingService) Get(ctx context.Context, actor entities.Actor, id string) (*entities.Booking, error) {
	booking, err := readWithRetry(ctx, "booking lookup", func() (*entities.Booking, error) {
		return s.repo.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	if booking.PartyOf(actor) == entities.PartyNone {
		return nil, apperrors.NewForbiddenError("not a party to this booking")
	}

	history, err := readWithRetry(ctx, "history lookup", func() ([]entities.StatusHistoryEntry, error) {
		return s.repo.GetHistory(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	booking.History = history

	return booking, nil
}

// List returns the caller's bookings: sellers see bookings addressed to them,
// everyone else sees bookings they created.
func (s *BookingService) List(ctx context.Context, actor entities.Actor, filter repositories.BookingFilter) ([]*entities.Booking, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown status %q", filter.Status))
	}

	return readWithRetry(ctx, "booking list", func() ([]*entities.Booking, error) {
		if actor.Role == entities.RoleSeller {
			return s.repo.ListBySeller(ctx, actor.ID, filter)
		}
		return s.repo.ListByBuyer(ctx, actor.ID, filter)
	})
}

// Transition moves the booking along one edge of the status machine. The
// party check runs before any transition logic; the flip itself is an atomic
// conditional update, so a losing concurrent request observes a stale
// precondition and gets InvalidTransition.
func (s *BookingService) Transition(ctx context.Context, actor entities.Actor, id string, target entities.BookingStatus, note string) (*entities.Booking, error) {
	if !target.IsValid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown status %q", target))
	}
	if target == entities.BookingStatusCancelled && strings.TrimSpace(note) == "" {
		return nil, apperrors.NewValidationError("cancellation requires a reason")
	}

	booking, err := readWithRetry(ctx, "booking lookup", func() (*entities.Booking, error) {
		return s.repo.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	party := booking.PartyOf(actor)
	if party == entities.PartyNone {
		return nil, apperrors.NewForbiddenError("not a party to this booking")
	}

	if !booking.Status.CanTransitionTo(target) {
		return nil, apperrors.NewInvalidTransitionError(
			fmt.Sprintf("cannot move booking from %s to %s", booking.Status, target))
	}
	if !booking.MayTransition(party, target) {
		return nil, apperrors.NewForbiddenError(
			fmt.Sprintf("%s may not move booking from %s to %s", party, booking.Status, target))
	}

	now := time.Now().UTC()
	update := repositories.StatusUpdate{
		Entry: entities.StatusHistoryEntry{
			ID:        uuid.New().String(),
			BookingID: booking.ID,
			Status:    target,
			ActorID:   actor.ID,
			ActorRole: party,
			Note:      strings.TrimSpace(note),
			CreatedAt: now,
		},
	}
	switch target {
	case entities.BookingStatusCancelled:
		update.CancelReason = strings.TrimSpace(note)
		update.CancelledBy = actor.ID
		update.CancelledAt = &now
	case entities.BookingStatusCompleted:
		update.CompletedAt = &now
	}

	applied, err := s.repo.UpdateStatus(ctx, booking.ID, booking.Status, target, update)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost a concurrent transition: the precondition no longer holds.
		return nil, apperrors.NewInvalidTransitionError(
			fmt.Sprintf("booking is no longer %s", booking.Status))
	}

	recipient := booking.OtherParty(party)
	if party == entities.PartyAdmin {
		recipient = recipientForAdminOverride(booking, target)
	}
	s.emitOnce(ctx, booking, target, recipient)

	return s.Get(ctx, actor, booking.ID)
}

// Cancel is the cancellation edge with its mandatory reason.
func (s *BookingService) Cancel(ctx context.Context, actor entities.Actor, id, reason string) (*entities.Booking, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.NewValidationError("cancellation requires a reason")
	}
	return s.Transition(ctx, actor, id, entities.BookingStatusCancelled, reason)
}

// Delete removes a settled booking. Only the owning buyer or an admin may
// delete; non-terminal bookings are never deletable, and completed ones only
// under the explicit policy flag (admins override the flag).
func (s *BookingService) Delete(ctx context.Context, actor entities.Actor, id string) error {
	booking, err := readWithRetry(ctx, "booking lookup", func() (*entities.Booking, error) {
		return s.repo.GetByID(ctx, id)
	})
	if err != nil {
		return err
	}

	party := booking.PartyOf(actor)
	if party != entities.PartyBuyer && party != entities.PartyAdmin {
		return apperrors.NewForbiddenError("only the owning buyer or an admin may delete a booking")
	}

	if !booking.Status.IsTerminal() {
		return apperrors.NewInvalidStateError("only settled bookings can be deleted")
	}
	if booking.Status == entities.BookingStatusCompleted && !s.allowCompletedDeletion && party != entities.PartyAdmin {
		return apperrors.NewInvalidStateError("completed bookings cannot be deleted")
	}

	return s.repo.Delete(ctx, booking.ID)
}

// emitOnce emits the side-effect event owed for the target status exactly
// once per (booking, status), surviving persistence retries. Emission is
// best-effort: failures are logged and never fail the state change.
func (s *BookingService) emitOnce(ctx context.Context, booking *entities.Booking, target entities.BookingStatus, recipientID string) {
	kind := entities.NotificationKindFor(target)
	if kind == "" || s.notifier == nil {
		return
	}

	key := fmt.Sprintf("booking:notified:%s:%s", booking.ID, target)
	if !s.claimEmission(ctx, key) {
		observability.CountEventDeduplicated(ctx)
		return
	}

	event := &entities.NotificationEvent{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Kind:        kind,
		Payload: map[string]string{
			"booking_id":     booking.ID,
			"reference_code": booking.ReferenceCode,
			"status":         string(target),
			"item":           booking.Item,
			"slot_date":      booking.SlotDate.Format("2006-01-02"),
			"slot_label":     booking.SlotLabel,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.notifier.Notify(ctx, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("booking_id", booking.ID).
			Str("kind", string(kind)).
			Msg("failed to emit notification event")
		return
	}
	observability.CountEventEmitted(ctx, string(kind))
}

func (s *BookingService) claimEmission(ctx context.Context, key string) bool {
	if s.cache == nil {
		_, loaded := s.localClaims.LoadOrStore(key, struct{}{})
		return !loaded
	}

	claimed, err := s.cache.SetNX(ctx, key, []byte("1"), notifiedKeyTTLSeconds)
	if err != nil {
		// An unreachable guard must not suppress the owed event.
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("key", key).
			Msg("emission guard unavailable, emitting anyway")
		return true
	}
	return claimed
}

func validateCreateInput(actor entities.Actor, input CreateBookingInput) error {
	switch {
	case input.SellerID == "":
		return apperrors.NewValidationError("seller is required")
	case input.SellerID == actor.ID:
		return apperrors.NewValidationError("cannot book your own listing")
	case strings.TrimSpace(input.Item) == "":
		return apperrors.NewValidationError("item is required")
	case input.Quantity <= 0:
		return apperrors.NewValidationError("quantity must be positive")
	case input.UnitPrice <= 0:
		return apperrors.NewValidationError("unit price must be positive")
	case input.SlotDate.IsZero():
		return apperrors.NewValidationError("slot date is required")
	case !entities.IsValidSlotLabel(input.SlotLabel):
		return apperrors.NewValidationError(fmt.Sprintf("unknown slot label %q", input.SlotLabel))
	}
	return nil
}

func slotConflictError(ctx context.Context, conflict *SlotConflict) error {
	observability.CountBookingConflict(ctx)
	return apperrors.NewConflictError(fmt.Sprintf(
		"slot %s/%s already claimed by booking %s",
		conflict.SlotDate.Format("2006-01-02"), conflict.SlotLabel, conflict.ConflictingReference))
}

// recipientForAdminOverride addresses events from admin-initiated transitions
// to the party the table says should hear about them.
func recipientForAdminOverride(booking *entities.Booking, target entities.BookingStatus) string {
	switch target {
	case entities.BookingStatusConfirmed, entities.BookingStatusRejected, entities.BookingStatusCompleted:
		return booking.BuyerID
	default:
		return booking.SellerID
	}
}

func referenceCode(id string) string {
	compact := strings.ReplaceAll(id, "-", "")
	if len(compact) > 8 {
		compact = compact[:8]
	}
	return "BK-" + strings.ToUpper(compact)
}
