package model

import (
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// TimeSlot is the date and [start, end) window a booking occupies.
type TimeSlot struct {
	Date      Date      `json:"date" bson:"date"`
	StartTime ClockTime `json:"start_time" bson:"start_time"`
	EndTime   ClockTime `json:"end_time" bson:"end_time"`
}

func (ts TimeSlot) Validate() error {
	if ts.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if ts.StartTime >= ts.EndTime {
		return fmt.Errorf("start time %s must be before end time %s", ts.StartTime, ts.EndTime)
	}
	return nil
}

// Overlaps reports whether ts and other share any instant on the same day.
// Adjacent windows (one ends when the other starts) do not overlap.
func (ts TimeSlot) Overlaps(other TimeSlot) bool {
	if ts.Date != other.Date {
		return false
	}
	startInside := ts.StartTime >= other.StartTime && ts.StartTime < other.EndTime
	endInside := ts.EndTime > other.StartTime && ts.EndTime <= other.EndTime
	contains := ts.StartTime <= other.StartTime && ts.EndTime >= other.EndTime
	containedBy := other.StartTime <= ts.StartTime && other.EndTime >= ts.EndTime
	return startInside || endInside || contains || containedBy
}

func (ts TimeSlot) String() string {
	return fmt.Sprintf("%s %s-%s", ts.Date, ts.StartTime, ts.EndTime)
}

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// IsActive is true for bookings that still hold their slot and staff time.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}

// ActiveStatuses are the statuses considered by staff conflict detection.
var ActiveStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusDepositPaid PaymentStatus = "deposit_paid"
	PaymentStatusFullyPaid   PaymentStatus = "fully_paid"
	PaymentStatusRefunded    PaymentStatus = "refunded"
)

// AdminPaymentStatus tracks the platform's payout to the business.
type AdminPaymentStatus string

const (
	AdminPaymentStatusPending        AdminPaymentStatus = "pending"
	AdminPaymentStatusPayoutEligible AdminPaymentStatus = "payout_eligible"
	AdminPaymentStatusCancelled      AdminPaymentStatus = "cancelled"
)

// ErrInvalidTransition is returned when a status change is not allowed from
// the booking's current state.
var ErrInvalidTransition = stderrors.New("invalid booking status transition")

// BookedAddOn is an add-on as priced at booking time.
type BookedAddOn struct {
	ID   uuid.UUID `json:"id" bson:"id"`
	Name string    `json:"name" bson:"name"`
	Cost float64   `json:"cost" bson:"cost"`
}

// Booking is the reservation record and the ledger of its money. The
// monetary fields are fixed at creation.
type Booking struct {
	ID                 uuid.UUID          `json:"id"`
	UserID             uuid.UUID          `json:"user_id"`
	BusinessID         uuid.UUID          `json:"business_id"`
	ServiceID          uuid.UUID          `json:"service_id"`
	SlotID             uuid.UUID          `json:"slot_id"`
	StaffID            *string            `json:"staff_id,omitempty"`
	TimeSlot           TimeSlot           `json:"time_slot"`
	AddOns             []BookedAddOn      `json:"add_ons"`
	TotalCost          float64            `json:"total_cost"`
	DepositAmount      float64            `json:"deposit_amount"`
	RemainingAmount    float64            `json:"remaining_amount"`
	PlatformFee        float64            `json:"platform_fee"`
	ServiceAmount      float64            `json:"service_amount"`
	Status             BookingStatus      `json:"status"`
	PaymentStatus      PaymentStatus      `json:"payment_status"`
	AdminPaymentStatus AdminPaymentStatus `json:"admin_payment_status"`
	CustomerEmail      string             `json:"customer_email,omitempty"`
	CustomerNotes      *string            `json:"customer_notes,omitempty"`
	BusinessNotes      *string            `json:"business_notes,omitempty"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	CancellationReason *string            `json:"cancellation_reason,omitempty"`
	CancelledBy        *uuid.UUID         `json:"cancelled_by,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// StaffRef returns the staff id or "" when none was requested.
func (b *Booking) StaffRef() string {
	if b.StaffID == nil {
		return ""
	}
	return *b.StaffID
}

// Cancel moves the booking to cancelled and forces a refund. It reports
// whether the booking was active before, which is when its slot must be
// released. Cancelling a cancelled booking is a no-op.
func (b *Booking) Cancel(now time.Time, reason *string, by *uuid.UUID) (bool, error) {
	switch b.Status {
	case BookingStatusCancelled:
		return false, nil
	case BookingStatusCompleted:
		return false, fmt.Errorf("%w: completed booking cannot be cancelled", ErrInvalidTransition)
	}
	b.Status = BookingStatusCancelled
	b.PaymentStatus = PaymentStatusRefunded
	b.AdminPaymentStatus = AdminPaymentStatusCancelled
	b.CancelledAt = &now
	b.CancellationReason = reason
	b.CancelledBy = by
	b.UpdatedAt = now
	return true, nil
}

// Complete marks the service as delivered and the booking as fully paid.
func (b *Booking) Complete(now time.Time) error {
	if !b.Status.IsActive() {
		return fmt.Errorf("%w: %s booking cannot be completed", ErrInvalidTransition, b.Status)
	}
	b.Status = BookingStatusCompleted
	b.PaymentStatus = PaymentStatusFullyPaid
	b.AdminPaymentStatus = AdminPaymentStatusPayoutEligible
	b.UpdatedAt = now
	return nil
}

// Confirm is allowed from pending; confirming a confirmed booking is a no-op.
func (b *Booking) Confirm(now time.Time) error {
	switch b.Status {
	case BookingStatusConfirmed:
		return nil
	case BookingStatusPending:
		b.Status = BookingStatusConfirmed
		b.UpdatedAt = now
		return nil
	}
	return fmt.Errorf("%w: %s booking cannot be confirmed", ErrInvalidTransition, b.Status)
}

// RecordDeposit moves the payment from pending to deposit_paid.
func (b *Booking) RecordDeposit(now time.Time) error {
	if !b.Status.IsActive() {
		return fmt.Errorf("%w: deposit on %s booking", ErrInvalidTransition, b.Status)
	}
	if b.PaymentStatus != PaymentStatusPending {
		return fmt.Errorf("%w: payment is already %s", ErrInvalidTransition, b.PaymentStatus)
	}
	b.PaymentStatus = PaymentStatusDepositPaid
	b.UpdatedAt = now
	return nil
}

// CreateBookingRequest is the customer's intent to book. TotalCost is
// accepted so that old clients keep working but it is never read.
type CreateBookingRequest struct {
	UserID        uuid.UUID `json:"user_id"`
	BusinessID    uuid.UUID `json:"business_id" validate:"required"`
	ServiceID     uuid.UUID `json:"service_id" validate:"required"`
	StaffID       *string   `json:"staff_id" validate:"omitempty,min=1,max=100"`
	TimeSlot      TimeSlot  `json:"time_slot"`
	AddOns        []string  `json:"add_ons" validate:"dive,required"`
	CustomerNotes *string   `json:"customer_notes" validate:"omitempty,max=2000"`
	CustomerEmail string    `json:"customer_email" validate:"omitempty,email"`
	TotalCost     *float64  `json:"total_cost,omitempty"`
}

type UpdateStatusRequest struct {
	Status             BookingStatus `json:"status" validate:"required,oneof=pending confirmed completed cancelled"`
	CancellationReason *string       `json:"cancellation_reason" validate:"omitempty,max=1000"`
	BusinessNotes      *string       `json:"business_notes" validate:"omitempty,max=2000"`
}

type RescheduleRequest struct {
	TimeSlot TimeSlot `json:"time_slot"`
}

// BookingFilter narrows listBookings. Zero fields do not filter.
type BookingFilter struct {
	BusinessID *uuid.UUID
	UserID     *uuid.UUID
	ServiceID  *uuid.UUID
	StaffID    *string
	Status     []BookingStatus
	From       *Date
	To         *Date
}

// Matches applies the filter in memory; stores with query support push the
// same conditions down.
func (f BookingFilter) Matches(b *Booking) bool {
	if f.BusinessID != nil && b.BusinessID != *f.BusinessID {
		return false
	}
	if f.UserID != nil && b.UserID != *f.UserID {
		return false
	}
	if f.ServiceID != nil && b.ServiceID != *f.ServiceID {
		return false
	}
	if f.StaffID != nil && b.StaffRef() != *f.StaffID {
		return false
	}
	if len(f.Status) > 0 {
		found := false
		for _, s := range f.Status {
			if b.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && b.TimeSlot.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && b.TimeSlot.Date.After(*f.To) {
		return false
	}
	return true
}

// SortBookings orders bookings by slot date then start time.
func SortBookings(bookings []*Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		a, b := bookings[i].TimeSlot, bookings[j].TimeSlot
		if c := a.Date.Compare(b.Date); c != 0 {
			return c < 0
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return bookings[i].CreatedAt.Before(bookings[j].CreatedAt)
	})
}
