package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type bookingRepository struct{ s *Store }

func (r *bookingRepository) Create(_ context.Context, booking *model.Booking) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	st.bookings[booking.ID] = cloneBooking(booking)
	id := booking.ID
	r.s.record(func() { delete(st.bookings, id) })
	return nil
}

func (r *bookingRepository) Get(_ context.Context, id uuid.UUID) (*model.Booking, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	b, ok := st.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (r *bookingRepository) Update(_ context.Context, booking *model.Booking) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	prev, ok := st.bookings[booking.ID]
	if !ok {
		return repository.ErrNotFound
	}
	in := cloneBooking(booking)
	next := cloneBooking(prev)
	next.SlotID = in.SlotID
	next.TimeSlot = in.TimeSlot
	next.Status = in.Status
	next.PaymentStatus = in.PaymentStatus
	next.AdminPaymentStatus = in.AdminPaymentStatus
	next.BusinessNotes = in.BusinessNotes
	next.CancelledAt = in.CancelledAt
	next.CancellationReason = in.CancellationReason
	next.CancelledBy = in.CancelledBy
	next.UpdatedAt = in.UpdatedAt
	st.bookings[booking.ID] = next
	r.s.record(func() { st.bookings[prev.ID] = prev })
	return nil
}

func (r *bookingRepository) Delete(_ context.Context, id uuid.UUID) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	prev, ok := st.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(st.bookings, id)
	r.s.record(func() { st.bookings[id] = prev })
	return nil
}

func (r *bookingRepository) List(_ context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := []*model.Booking{}
	for _, b := range st.bookings {
		if filter.Matches(b) {
			out = append(out, cloneBooking(b))
		}
	}
	model.SortBookings(out)
	return out, nil
}

func (r *bookingRepository) ActiveForStaff(ctx context.Context, businessID uuid.UUID, staffID string, date model.Date) ([]*model.Booking, error) {
	return r.List(ctx, model.BookingFilter{
		BusinessID: &businessID,
		StaffID:    &staffID,
		Status:     model.ActiveStatuses,
		From:       &date,
		To:         &date,
	})
}
