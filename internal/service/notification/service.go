// Package notification announces booking events. The dispatcher writes an
// outbox record that the worker publishes; the consumer turns published
// notifications into emails. Nothing here can fail a booking.
package notification

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/logger"
)

// Notifier is what the booking lifecycle calls after a transition commits.
type Notifier interface {
	Notify(ctx context.Context, kind model.NotificationKind, booking *model.Booking, extra map[string]string)
}

type Dispatcher struct {
	store  repository.Store
	topic  string
	logger *logger.Logger
	now    func() time.Time
}

func NewDispatcher(store repository.Store, topic string, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		topic:  topic,
		logger: logger,
		now:    time.Now,
	}
}

// Notify is best effort: every failure is logged and swallowed.
func (d *Dispatcher) Notify(ctx context.Context, kind model.NotificationKind, booking *model.Booking, extra map[string]string) {
	if err := d.dispatch(ctx, kind, booking, extra); err != nil {
		d.logger.Warn("Notification dispatch failed",
			"kind", string(kind),
			"booking_id", booking.ID.String(),
			"error", err.Error())
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, kind model.NotificationKind, booking *model.Booking, extra map[string]string) error {
	n := &model.Notification{
		ID:         uuid.New(),
		Kind:       kind,
		Recipients: d.recipients(ctx, booking),
		BookingID:  booking.ID,
		Data:       templateData(booking, extra),
		CreatedAt:  d.now(),
	}
	if len(n.Recipients) == 0 {
		d.logger.Debug("Notification has no recipients", "kind", string(kind), "booking_id", booking.ID.String())
		return nil
	}

	event, err := model.NewOutboxEvent(d.topic, string(kind), booking.ID, n, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := d.store.Outbox().Create(ctx, event); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

// recipients are the customer and the business contact, when known.
func (d *Dispatcher) recipients(ctx context.Context, booking *model.Booking) []string {
	var out []string
	if booking.CustomerEmail != "" {
		out = append(out, booking.CustomerEmail)
	}
	business, err := d.store.Businesses().Get(ctx, booking.BusinessID)
	if err != nil {
		d.logger.Warn("Business lookup failed for notification",
			"business_id", booking.BusinessID.String(),
			"error", err.Error())
		return out
	}
	if business.ContactEmail != "" && business.ContactEmail != booking.CustomerEmail {
		out = append(out, business.ContactEmail)
	}
	return out
}

func templateData(b *model.Booking, extra map[string]string) map[string]string {
	data := map[string]string{
		"booking_id":       b.ID.String(),
		"date":             b.TimeSlot.Date.String(),
		"start_time":       b.TimeSlot.StartTime.String(),
		"end_time":         b.TimeSlot.EndTime.String(),
		"status":           string(b.Status),
		"payment_status":   string(b.PaymentStatus),
		"total_cost":       money(b.TotalCost),
		"deposit_amount":   money(b.DepositAmount),
		"remaining_amount": money(b.RemainingAmount),
	}
	if b.StaffID != nil {
		data["staff_id"] = *b.StaffID
	}
	if b.CancellationReason != nil {
		data["cancellation_reason"] = *b.CancellationReason
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
