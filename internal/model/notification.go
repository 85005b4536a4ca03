package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind selects the message template for a booking event.
type NotificationKind string

const (
	NotificationBookingCreated     NotificationKind = "booking.created"
	NotificationBookingCancelled   NotificationKind = "booking.cancelled"
	NotificationBookingCompleted   NotificationKind = "booking.completed"
	NotificationBookingRescheduled NotificationKind = "booking.rescheduled"
	NotificationBookingDeleted     NotificationKind = "booking.deleted"
)

// Notification is the payload carried on the notifications topic.
type Notification struct {
	ID         uuid.UUID         `json:"id"`
	Kind       NotificationKind  `json:"kind"`
	Recipients []string          `json:"recipients"`
	BookingID  uuid.UUID         `json:"booking_id"`
	Data       map[string]string `json:"data"`
	CreatedAt  time.Time         `json:"created_at"`
}
