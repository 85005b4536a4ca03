// Package memory is an in-process implementation of repository.Store. It
// keeps the same conditional update semantics as the SQL store and is used
// by tests and by the memory storage driver.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type state struct {
	mu sync.RWMutex
	// txMu serializes transactions; it is the memory analogue of the
	// staff advisory lock.
	txMu sync.Mutex

	businesses map[uuid.UUID]*model.Business
	services   map[uuid.UUID]*model.Service
	slots      map[uuid.UUID]*model.Slot
	bookings   map[uuid.UUID]*model.Booking
	outbox     map[uuid.UUID]*model.OutboxEvent
}

type journal struct {
	undo []func()
}

type Store struct {
	st *state
	tx *journal
}

func NewStore() *Store {
	return &Store{st: &state{
		businesses: make(map[uuid.UUID]*model.Business),
		services:   make(map[uuid.UUID]*model.Service),
		slots:      make(map[uuid.UUID]*model.Slot),
		bookings:   make(map[uuid.UUID]*model.Booking),
		outbox:     make(map[uuid.UUID]*model.OutboxEvent),
	}}
}

func (s *Store) Businesses() repository.BusinessRepository { return &businessRepository{s} }
func (s *Store) Services() repository.ServiceRepository    { return &serviceRepository{s} }
func (s *Store) Slots() repository.SlotRepository          { return &slotRepository{s} }
func (s *Store) Bookings() repository.BookingRepository    { return &bookingRepository{s} }
func (s *Store) Outbox() repository.OutboxRepository       { return &outboxRepository{s} }

// WithTx runs fn with exclusive access among transactions and undoes every
// write fn made if it returns an error or panics.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) (err error) {
	if s.tx != nil {
		return fn(ctx, s)
	}

	s.st.txMu.Lock()
	defer s.st.txMu.Unlock()

	txStore := &Store{st: s.st, tx: &journal{}}
	defer func() {
		if p := recover(); p != nil {
			txStore.rollback()
			panic(p)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, txStore); err != nil {
		txStore.rollback()
		return err
	}
	return nil
}

func (s *Store) LockStaff(context.Context, uuid.UUID, string) error {
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// record must be called with st.mu held.
func (s *Store) record(undo func()) {
	if s.tx != nil {
		s.tx.undo = append(s.tx.undo, undo)
	}
}

func (s *Store) rollback() {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	for i := len(s.tx.undo) - 1; i >= 0; i-- {
		s.tx.undo[i]()
	}
	s.tx.undo = nil
}

func cloneSlot(s *model.Slot) *model.Slot {
	c := *s
	c.StaffIDs = append([]string{}, s.StaffIDs...)
	if s.Price != nil {
		p := *s.Price
		c.Price = &p
	}
	if s.BookingID != nil {
		id := *s.BookingID
		c.BookingID = &id
	}
	return &c
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	c.AddOns = append([]model.BookedAddOn{}, b.AddOns...)
	c.StaffID = cloneString(b.StaffID)
	c.CustomerNotes = cloneString(b.CustomerNotes)
	c.BusinessNotes = cloneString(b.BusinessNotes)
	c.CancellationReason = cloneString(b.CancellationReason)
	if b.CancelledAt != nil {
		t := *b.CancelledAt
		c.CancelledAt = &t
	}
	if b.CancelledBy != nil {
		id := *b.CancelledBy
		c.CancelledBy = &id
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneService(svc *model.Service) *model.Service {
	c := *svc
	c.AddOns = append([]model.AddOn{}, svc.AddOns...)
	c.Slots = nil
	return &c
}
