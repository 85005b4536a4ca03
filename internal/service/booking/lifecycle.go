package booking

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

// UpdateStatus applies a status transition. Customers may only cancel;
// confirming and completing belong to the business.
func (s *Service) UpdateStatus(ctx context.Context, callerID, bookingID uuid.UUID, req model.UpdateStatusRequest) (*model.Booking, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, errors.Validation(err.Error(), nil)
	}
	current, _, isOwner, err := s.load(ctx, callerID, bookingID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.BookingStatusCancelled && !isOwner {
		return nil, errors.Forbidden("only the business can change this booking's status")
	}
	if req.BusinessNotes != nil && !isOwner {
		return nil, errors.Forbidden("only the business can set business notes")
	}

	var (
		updated  *model.Booking
		released bool
		changed  bool
	)
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		b, err := tx.Bookings().Get(ctx, current.ID)
		if err != nil {
			return err
		}
		now := s.clock()
		before := b.Status
		switch req.Status {
		case model.BookingStatusCancelled:
			by := callerID
			released, err = b.Cancel(now, req.CancellationReason, &by)
		case model.BookingStatusCompleted:
			err = b.Complete(now)
		case model.BookingStatusConfirmed:
			err = b.Confirm(now)
		default:
			err = fmt.Errorf("%w: cannot move back to %s", model.ErrInvalidTransition, req.Status)
		}
		if err != nil {
			return transitionError(err)
		}
		if req.BusinessNotes != nil {
			b.BusinessNotes = req.BusinessNotes
			b.UpdatedAt = now
		}

		if released {
			if err := s.inventory.Release(ctx, tx, b.ServiceID, b.TimeSlot, b.ID); err != nil {
				return errors.Database(err)
			}
		}
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return errors.Database(err)
		}
		updated = b
		changed = b.Status != before
		return nil
	})
	if err != nil {
		return nil, s.txError(err, "update booking status", "booking_id", bookingID.String(), "status", string(req.Status))
	}

	if changed {
		s.metrics.BookingStatus.WithLabelValues(string(updated.Status)).Inc()
	}
	switch {
	case req.Status == model.BookingStatusCancelled && released:
		s.notifier.Notify(ctx, model.NotificationBookingCancelled, updated, nil)
	case req.Status == model.BookingStatusCompleted:
		s.notifier.Notify(ctx, model.NotificationBookingCompleted, updated, nil)
	}
	return updated, nil
}

// Cancel is UpdateStatus to cancelled.
func (s *Service) Cancel(ctx context.Context, callerID, bookingID uuid.UUID, reason *string) (*model.Booking, error) {
	return s.UpdateStatus(ctx, callerID, bookingID, model.UpdateStatusRequest{
		Status:             model.BookingStatusCancelled,
		CancellationReason: reason,
	})
}

// Reschedule moves an active booking onto the slot at ts. It is a
// cancel and recreate inside one transaction: the staff check skips the
// booking itself, the new slot is reserved under the same booking id and
// the old slot is released. Prices stay as booked.
func (s *Service) Reschedule(ctx context.Context, callerID, bookingID uuid.UUID, req model.RescheduleRequest) (*model.Booking, error) {
	ts := req.TimeSlot
	if err := ts.Validate(); err != nil {
		return nil, errors.Validation(err.Error(), nil)
	}
	current, _, _, err := s.load(ctx, callerID, bookingID)
	if err != nil {
		return nil, err
	}
	if !current.Status.IsActive() {
		return nil, transitionError(fmt.Errorf("%w: %s booking cannot be rescheduled", model.ErrInvalidTransition, current.Status))
	}
	if current.TimeSlot == ts {
		return current, nil
	}

	service, err := s.store.Services().Get(ctx, current.ServiceID)
	if err != nil {
		return nil, s.lookupError("service", err)
	}
	slot := service.FindSlot(ts)
	if slot == nil {
		return nil, errors.NotFound("slot", nil)
	}
	staffID := current.StaffRef()
	if staffID != "" && !slot.AllowsStaff(staffID) {
		return nil, errors.Validation(fmt.Sprintf("staff member %s is not available for this slot", staffID), nil)
	}

	previous := current.TimeSlot
	var updated *model.Booking
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		b, err := tx.Bookings().Get(ctx, current.ID)
		if err != nil {
			return err
		}
		if !b.Status.IsActive() {
			return transitionError(fmt.Errorf("%w: %s booking cannot be rescheduled", model.ErrInvalidTransition, b.Status))
		}
		if staffID != "" {
			if err := tx.LockStaff(ctx, b.BusinessID, staffID); err != nil {
				return errors.Database(err)
			}
			if err := s.conflicts.Check(ctx, tx, b.BusinessID, staffID, ts, b.ID); err != nil {
				return err
			}
		}
		if err := s.reserver.Reserve(ctx, tx, service.ID, slot.ID, b.ID); err != nil {
			return err
		}
		if err := s.inventory.Release(ctx, tx, b.ServiceID, b.TimeSlot, b.ID); err != nil {
			return errors.Database(err)
		}

		b.SlotID = slot.ID
		b.TimeSlot = slot.Window()
		b.UpdatedAt = s.clock()
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return errors.Database(err)
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, s.txError(err, "reschedule booking", "booking_id", bookingID.String(), "time_slot", ts.String())
	}

	s.notifier.Notify(ctx, model.NotificationBookingRescheduled, updated, map[string]string{
		"previous_date":       previous.Date.String(),
		"previous_start_time": previous.StartTime.String(),
		"previous_end_time":   previous.EndTime.String(),
	})
	return updated, nil
}

// Delete destroys the booking record after releasing its slot. Unlike
// cancel it keeps no audit trail.
func (s *Service) Delete(ctx context.Context, callerID, bookingID uuid.UUID) error {
	current, _, _, err := s.load(ctx, callerID, bookingID)
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		b, err := tx.Bookings().Get(ctx, current.ID)
		if err != nil {
			return err
		}
		if b.Status != model.BookingStatusCancelled {
			if err := s.inventory.Release(ctx, tx, b.ServiceID, b.TimeSlot, b.ID); err != nil {
				return errors.Database(err)
			}
		}
		if err := tx.Bookings().Delete(ctx, b.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return s.txError(err, "delete booking", "booking_id", bookingID.String())
	}

	s.logger.Info("Booking deleted", "booking_id", bookingID.String(), "caller_id", callerID.String())
	s.notifier.Notify(ctx, model.NotificationBookingDeleted, current, nil)
	return nil
}

// RecordDeposit marks the deposit as paid. Only the business confirms
// money it received.
func (s *Service) RecordDeposit(ctx context.Context, callerID, bookingID uuid.UUID) (*model.Booking, error) {
	_, _, isOwner, err := s.load(ctx, callerID, bookingID)
	if err != nil {
		return nil, err
	}
	if !isOwner {
		return nil, errors.Forbidden("only the business can record a deposit")
	}
	var updated *model.Booking
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		b, err := tx.Bookings().Get(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := b.RecordDeposit(s.clock()); err != nil {
			return transitionError(err)
		}
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return errors.Database(err)
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, s.txError(err, "record deposit", "booking_id", bookingID.String())
	}
	return updated, nil
}

func transitionError(err error) error {
	if stderrors.Is(err, model.ErrInvalidTransition) {
		return errors.Conflict(err.Error(), err)
	}
	return err
}
