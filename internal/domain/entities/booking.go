package entities

import (
	"time"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusRejected   BookingStatus = "rejected"
)

// Slot labels identify the coarse bookable windows of a calendar day.
const (
	SlotMorning   = "morning"
	SlotAfternoon = "afternoon"
	SlotEvening   = "evening"
)

// PartyRole is an actor's role relative to one specific booking, derived from
// the booking's stored party references rather than from the caller's claim.
type PartyRole string

const (
	PartyBuyer  PartyRole = "buyer"
	PartySeller PartyRole = "seller"
	PartyAdmin  PartyRole = "admin"
	PartyNone   PartyRole = ""
)

type transitionEdge struct {
	From BookingStatus
	To   BookingStatus
}

// transitionActors defines the status machine: which party may take each edge.
// Admins may take any edge in the table and are checked separately.
var transitionActors = map[transitionEdge][]PartyRole{
	{BookingStatusPending, BookingStatusConfirmed}:    {PartySeller},
	{BookingStatusPending, BookingStatusRejected}:     {PartySeller},
	{BookingStatusPending, BookingStatusCancelled}:    {PartyBuyer, PartySeller},
	{BookingStatusConfirmed, BookingStatusCancelled}:  {PartyBuyer, PartySeller},
	{BookingStatusConfirmed, BookingStatusInProgress}: {PartySeller},
	{BookingStatusConfirmed, BookingStatusCompleted}:  {PartySeller},
	{BookingStatusInProgress, BookingStatusCompleted}: {PartySeller},
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusInProgress,
		BookingStatusCompleted, BookingStatusCancelled, BookingStatusRejected:
		return true
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusRejected:
		return true
	}
	return false
}

// IsSlotHolding reports whether a booking in this status still claims its
// seller/date/slot window. Cancelled and rejected bookings free the slot
// immediately; a completed booking keeps its (past) window but is never a
// conflict for new claims.
func (s BookingStatus) IsSlotHolding() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusInProgress:
		return true
	}
	return false
}

// SlotHoldingStatuses returns the statuses that keep a slot claimed.
func SlotHoldingStatuses() []BookingStatus {
	return []BookingStatus{BookingStatusPending, BookingStatusConfirmed, BookingStatusInProgress}
}

// CanTransitionTo returns true if a transition from this status to the target
// is an edge of the machine. Transitions are strict edges: transitioning into
// the current status is not an edge.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	_, ok := transitionActors[transitionEdge{s, target}]
	return ok
}

// AllowedParties returns the party roles permitted to take the edge from s to
// target. The admin role is always permitted on edges that exist.
func (s BookingStatus) AllowedParties(target BookingStatus) []PartyRole {
	return transitionActors[transitionEdge{s, target}]
}

// IsValidSlotLabel reports whether label names a known time window.
func IsValidSlotLabel(label string) bool {
	switch label {
	case SlotMorning, SlotAfternoon, SlotEvening:
		return true
	}
	return false
}

// StatusHistoryEntry is one append-only record of a booking status change.
type StatusHistoryEntry struct {
	ID        string        `json:"id" db:"id"`
	BookingID string        `json:"booking_id" db:"booking_id"`
	Status    BookingStatus `json:"status" db:"status"`
	ActorID   string        `json:"actor_id" db:"actor_id"`
	ActorRole PartyRole     `json:"actor_role" db:"actor_role"`
	Note      string        `json:"note" db:"note"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// Booking represents a single proposed-then-executed exchange between a buyer
// and a seller for one seller/date/slot window.
type Booking struct {
	ID            string        `json:"id" db:"id"`
	ReferenceCode string        `json:"reference_code" db:"reference_code"`
	BuyerID       string        `json:"buyer_id" db:"buyer_id"`
	SellerID      string        `json:"seller_id" db:"seller_id"`
	Item          string        `json:"item" db:"item"`
	Quantity      float64       `json:"quantity" db:"quantity"`
	UnitPrice     float64       `json:"unit_price" db:"unit_price"`
	TotalPrice    float64       `json:"total_price" db:"total_price"`
	SlotDate      time.Time     `json:"slot_date" db:"slot_date"`
	SlotLabel     string        `json:"slot_label" db:"slot_label"`
	Status        BookingStatus `json:"status" db:"status"`
	CancelReason  string        `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CancelledBy   string        `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty" db:"completed_at"`

	History []StatusHistoryEntry `json:"history,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RecomputeTotal derives the total from quantity and unit price. The stored
// total is never trusted from the submitter.
func (b *Booking) RecomputeTotal() {
	b.TotalPrice = b.Quantity * b.UnitPrice
}

// PartyOf resolves the actor's role on this booking. Admins resolve to
// PartyAdmin regardless of party membership; everyone else is matched against
// the stored buyer and seller references.
func (b *Booking) PartyOf(actor Actor) PartyRole {
	if actor.IsAdmin() {
		return PartyAdmin
	}
	switch actor.ID {
	case b.BuyerID:
		return PartyBuyer
	case b.SellerID:
		return PartySeller
	}
	return PartyNone
}

// MayTransition reports whether the given party may take the edge from the
// booking's current status to target. It assumes the party was already
// resolved via PartyOf; PartyNone is never allowed.
func (b *Booking) MayTransition(party PartyRole, target BookingStatus) bool {
	if party == PartyNone {
		return false
	}
	allowed, ok := transitionActors[transitionEdge{b.Status, target}]
	if !ok {
		return false
	}
	if party == PartyAdmin {
		return true
	}
	for _, role := range allowed {
		if role == party {
			return true
		}
	}
	return false
}

// OtherParty returns the counterparty's user id for a party-initiated change,
// used to address side-effect events.
func (b *Booking) OtherParty(party PartyRole) string {
	if party == PartySeller {
		return b.BuyerID
	}
	return b.SellerID
}
