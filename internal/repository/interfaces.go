package repository

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	pkgrepo "github.com/jwalitptl/booking-api/pkg/repository"
)

var (
	ErrNotFound = stderrors.New("record not found")

	// ErrSlotUnavailable means a conditional slot update matched nothing:
	// the slot is gone or someone else holds it.
	ErrSlotUnavailable = stderrors.New("slot unavailable")

	// ErrDuplicateSlot means a service already has a slot on that window.
	ErrDuplicateSlot = stderrors.New("slot window already exists")
)

// All repository interfaces in one file
type (
	BusinessRepository interface {
		Create(ctx context.Context, business *model.Business) error
		Get(ctx context.Context, id uuid.UUID) (*model.Business, error)
	}

	// ServiceRepository loads and stores services together with their
	// add-on catalog and slots.
	ServiceRepository interface {
		Create(ctx context.Context, service *model.Service) error
		Get(ctx context.Context, id uuid.UUID) (*model.Service, error)
		ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*model.Service, error)
		ReplaceAddOns(ctx context.Context, serviceID uuid.UUID, addOns []model.AddOn) error
	}

	// SlotRepository is the only path that flips a slot's occupancy.
	SlotRepository interface {
		// Add inserts slots of serviceID. A window the service already has, or
		// that appears twice in slots, yields ErrDuplicateSlot and nothing
		// is written.
		Add(ctx context.Context, serviceID uuid.UUID, slots []*model.Slot) error
		// Remove deletes a free slot. A booked slot yields ErrSlotUnavailable.
		Remove(ctx context.Context, serviceID, slotID uuid.UUID) error
		// Find returns the slot on ts regardless of occupancy.
		Find(ctx context.Context, serviceID uuid.UUID, ts model.TimeSlot) (*model.Slot, error)
		FindFree(ctx context.Context, serviceID uuid.UUID, ts model.TimeSlot) (*model.Slot, error)
		ListAvailable(ctx context.Context, serviceID uuid.UUID, date model.Date) ([]*model.Slot, error)
		// Reserve binds a free slot to bookingID in one conditional write.
		// It returns ErrSlotUnavailable when the slot is not free.
		Reserve(ctx context.Context, serviceID, slotID, bookingID uuid.UUID) error
		// Release frees the slot on ts held by bookingID. It reports whether a
		// slot matched; no match is not an error.
		Release(ctx context.Context, serviceID uuid.UUID, ts model.TimeSlot, bookingID uuid.UUID) (bool, error)
		// ListBookedBefore returns up to limit booked slots that come after
		// cursor, in walk order.
		ListBookedBefore(ctx context.Context, cursor SlotCursor, limit int) ([]*model.Slot, error)
	}

	BookingRepository interface {
		Create(ctx context.Context, booking *model.Booking) error
		Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		Update(ctx context.Context, booking *model.Booking) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error)
		// ActiveForStaff returns pending or confirmed bookings of staffID on
		// date across every service of businessID.
		ActiveForStaff(ctx context.Context, businessID uuid.UUID, staffID string, date model.Date) ([]*model.Booking, error)
	}

	OutboxRepository interface {
		pkgrepo.OutboxRepository
		Create(ctx context.Context, event *model.OutboxEvent) error
	}

	// Store groups the repositories of one storage driver.
	Store interface {
		Businesses() BusinessRepository
		Services() ServiceRepository
		Slots() SlotRepository
		Bookings() BookingRepository
		Outbox() OutboxRepository

		// WithTx runs fn in one transaction. fn must use the ctx and Store
		// it is given. Calling WithTx on a transactional Store joins it.
		WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
		// LockStaff serializes bookings of one staff member of a business
		// until the surrounding transaction ends.
		LockStaff(ctx context.Context, businessID uuid.UUID, staffID string) error

		Ping(ctx context.Context) error
		Close() error
	}
)
