package entities

import "time"

// NotificationKind identifies the side-effect event emitted after a
// successful state change. Delivery channels are the notification
// collaborator's concern; the core only decides when and what to emit.
type NotificationKind string

const (
	NotificationBookingCreated   NotificationKind = "booking.created"
	NotificationBookingConfirmed NotificationKind = "booking.confirmed"
	NotificationBookingRejected  NotificationKind = "booking.rejected"
	NotificationBookingCancelled NotificationKind = "booking.cancelled"
	NotificationBookingCompleted NotificationKind = "booking.completed"
)

// NotificationEvent is the payload handed to the notification collaborator.
type NotificationEvent struct {
	ID          string            `json:"id"`
	RecipientID string            `json:"recipient_id"`
	Kind        NotificationKind  `json:"kind"`
	Payload     map[string]string `json:"payload"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NotificationKindFor maps a booking target status to the event kind owed for
// it. The in_progress edge mandates no event and maps to the empty kind.
func NotificationKindFor(status BookingStatus) NotificationKind {
	switch status {
	case BookingStatusPending:
		return NotificationBookingCreated
	case BookingStatusConfirmed:
		return NotificationBookingConfirmed
	case BookingStatusRejected:
		return NotificationBookingRejected
	case BookingStatusCancelled:
		return NotificationBookingCancelled
	case BookingStatusCompleted:
		return NotificationBookingCompleted
	}
	return ""
}
