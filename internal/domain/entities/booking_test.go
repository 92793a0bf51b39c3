package entities_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agrilink/marketplace-backend/internal/domain/entities"
)

func TestBookingStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    entities.BookingStatus
		to      entities.BookingStatus
		allowed bool
	}{
		{entities.BookingStatusPending, entities.BookingStatusConfirmed, true},
		{entities.BookingStatusPending, entities.BookingStatusRejected, true},
		{entities.BookingStatusPending, entities.BookingStatusCancelled, true},
		{entities.BookingStatusPending, entities.BookingStatusInProgress, false},
		{entities.BookingStatusPending, entities.BookingStatusCompleted, false},
		{entities.BookingStatusConfirmed, entities.BookingStatusInProgress, true},
		{entities.BookingStatusConfirmed, entities.BookingStatusCompleted, true},
		{entities.BookingStatusConfirmed, entities.BookingStatusCancelled, true},
		{entities.BookingStatusConfirmed, entities.BookingStatusRejected, false},
		{entities.BookingStatusInProgress, entities.BookingStatusCompleted, true},
		{entities.BookingStatusInProgress, entities.BookingStatusCancelled, false},
		{entities.BookingStatusCompleted, entities.BookingStatusPending, false},
		{entities.BookingStatusCancelled, entities.BookingStatusPending, false},
		{entities.BookingStatusRejected, entities.BookingStatusConfirmed, false},
		// self-loops are not edges
		{entities.BookingStatusPending, entities.BookingStatusPending, false},
		{entities.BookingStatusConfirmed, entities.BookingStatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestBookingStatus_Classification(t *testing.T) {
	terminal := []entities.BookingStatus{
		entities.BookingStatusCompleted,
		entities.BookingStatusCancelled,
		entities.BookingStatusRejected,
	}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
		assert.False(t, s.IsSlotHolding(), "%s should not hold its slot", s)
	}

	holding := []entities.BookingStatus{
		entities.BookingStatusPending,
		entities.BookingStatusConfirmed,
		entities.BookingStatusInProgress,
	}
	for _, s := range holding {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
		assert.True(t, s.IsSlotHolding(), "%s should hold its slot", s)
	}

	assert.ElementsMatch(t, holding, entities.SlotHoldingStatuses())
	assert.False(t, entities.BookingStatus("shipped").IsValid())
}

func TestBooking_PartyOf(t *testing.T) {
	booking := &entities.Booking{BuyerID: "buyer-1", SellerID: "seller-1"}

	assert.Equal(t, entities.PartyBuyer, booking.PartyOf(entities.Actor{ID: "buyer-1", Role: entities.RoleBuyer}))
	assert.Equal(t, entities.PartySeller, booking.PartyOf(entities.Actor{ID: "seller-1", Role: entities.RoleSeller}))
	assert.Equal(t, entities.PartyNone, booking.PartyOf(entities.Actor{ID: "stranger", Role: entities.RoleBuyer}))

	// Admins resolve to PartyAdmin even when they are not a stored party.
	assert.Equal(t, entities.PartyAdmin, booking.PartyOf(entities.Actor{ID: "ops-1", Role: entities.RoleAdmin}))

	// A stored party with an admin role still resolves as admin.
	assert.Equal(t, entities.PartyAdmin, booking.PartyOf(entities.Actor{ID: "buyer-1", Role: entities.RoleAdmin}))
}

func TestBooking_MayTransition(t *testing.T) {
	pending := &entities.Booking{BuyerID: "b", SellerID: "s", Status: entities.BookingStatusPending}
	confirmed := &entities.Booking{BuyerID: "b", SellerID: "s", Status: entities.BookingStatusConfirmed}
	inProgress := &entities.Booking{BuyerID: "b", SellerID: "s", Status: entities.BookingStatusInProgress}

	t.Run("seller-only edges", func(t *testing.T) {
		assert.True(t, pending.MayTransition(entities.PartySeller, entities.BookingStatusConfirmed))
		assert.False(t, pending.MayTransition(entities.PartyBuyer, entities.BookingStatusConfirmed))
		assert.True(t, pending.MayTransition(entities.PartySeller, entities.BookingStatusRejected))
		assert.False(t, pending.MayTransition(entities.PartyBuyer, entities.BookingStatusRejected))
		assert.True(t, inProgress.MayTransition(entities.PartySeller, entities.BookingStatusCompleted))
		assert.False(t, inProgress.MayTransition(entities.PartyBuyer, entities.BookingStatusCompleted))
	})

	t.Run("either party may cancel", func(t *testing.T) {
		assert.True(t, pending.MayTransition(entities.PartyBuyer, entities.BookingStatusCancelled))
		assert.True(t, pending.MayTransition(entities.PartySeller, entities.BookingStatusCancelled))
		assert.True(t, confirmed.MayTransition(entities.PartyBuyer, entities.BookingStatusCancelled))
		assert.True(t, confirmed.MayTransition(entities.PartySeller, entities.BookingStatusCancelled))
	})

	t.Run("admin may take any existing edge", func(t *testing.T) {
		assert.True(t, pending.MayTransition(entities.PartyAdmin, entities.BookingStatusConfirmed))
		assert.True(t, confirmed.MayTransition(entities.PartyAdmin, entities.BookingStatusCompleted))
		// but not a non-edge
		assert.False(t, pending.MayTransition(entities.PartyAdmin, entities.BookingStatusCompleted))
	})

	t.Run("non-parties never transition", func(t *testing.T) {
		assert.False(t, pending.MayTransition(entities.PartyNone, entities.BookingStatusConfirmed))
		assert.False(t, pending.MayTransition(entities.PartyNone, entities.BookingStatusCancelled))
	})
}

func TestBooking_RecomputeTotal(t *testing.T) {
	booking := &entities.Booking{Quantity: 12, UnitPrice: 52000, TotalPrice: 1}
	booking.RecomputeTotal()
	assert.Equal(t, 624000.0, booking.TotalPrice)
}

func TestBooking_OtherParty(t *testing.T) {
	booking := &entities.Booking{BuyerID: "b", SellerID: "s"}
	assert.Equal(t, "b", booking.OtherParty(entities.PartySeller))
	assert.Equal(t, "s", booking.OtherParty(entities.PartyBuyer))
}

func TestIsValidSlotLabel(t *testing.T) {
	assert.True(t, entities.IsValidSlotLabel(entities.SlotMorning))
	assert.True(t, entities.IsValidSlotLabel(entities.SlotAfternoon))
	assert.True(t, entities.IsValidSlotLabel(entities.SlotEvening))
	assert.False(t, entities.IsValidSlotLabel("midnight"))
	assert.False(t, entities.IsValidSlotLabel(""))
}

func TestNotificationKindFor(t *testing.T) {
	assert.Equal(t, entities.NotificationBookingCreated, entities.NotificationKindFor(entities.BookingStatusPending))
	assert.Equal(t, entities.NotificationBookingConfirmed, entities.NotificationKindFor(entities.BookingStatusConfirmed))
	assert.Equal(t, entities.NotificationBookingRejected, entities.NotificationKindFor(entities.BookingStatusRejected))
	assert.Equal(t, entities.NotificationBookingCancelled, entities.NotificationKindFor(entities.BookingStatusCancelled))
	assert.Equal(t, entities.NotificationBookingCompleted, entities.NotificationKindFor(entities.BookingStatusCompleted))

	// Starting work is internal to the parties: no event is owed.
	assert.Empty(t, entities.NotificationKindFor(entities.BookingStatusInProgress))
}
