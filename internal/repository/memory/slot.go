package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type slotRepository struct{ s *Store }

func (r *slotRepository) Add(_ context.Context, serviceID uuid.UUID, slots []*model.Slot) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.services[serviceID]; !ok {
		return repository.ErrNotFound
	}
	taken := make(map[model.TimeSlot]bool)
	for _, s := range st.slots {
		if s.ServiceID == serviceID {
			taken[s.Window()] = true
		}
	}
	for _, slot := range slots {
		if taken[slot.Window()] {
			return repository.ErrDuplicateSlot
		}
		taken[slot.Window()] = true
	}
	for _, slot := range slots {
		c := cloneSlot(slot)
		c.ServiceID = serviceID
		st.slots[c.ID] = c
		id := c.ID
		r.s.record(func() { delete(st.slots, id) })
	}
	return nil
}

func (r *slotRepository) Remove(_ context.Context, serviceID, slotID uuid.UUID) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	slot, ok := st.slots[slotID]
	if !ok || slot.ServiceID != serviceID {
		return repository.ErrNotFound
	}
	if slot.IsBooked {
		return repository.ErrSlotUnavailable
	}
	delete(st.slots, slotID)
	r.s.record(func() { st.slots[slotID] = slot })
	return nil
}

func (r *slotRepository) Find(_ context.Context, serviceID uuid.UUID, ts model.TimeSlot) (*model.Slot, error) {
	return r.findOne(func(s *model.Slot) bool {
		return s.ServiceID == serviceID && s.Matches(ts)
	})
}

func (r *slotRepository) FindFree(_ context.Context, serviceID uuid.UUID, ts model.TimeSlot) (*model.Slot, error) {
	return r.findOne(func(s *model.Slot) bool {
		return s.ServiceID == serviceID && s.Matches(ts) && !s.IsBooked
	})
}

func (r *slotRepository) findOne(keep func(*model.Slot) bool) (*model.Slot, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	found := st.slotsWhere(keep)
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return found[0], nil
}

func (r *slotRepository) ListAvailable(_ context.Context, serviceID uuid.UUID, date model.Date) ([]*model.Slot, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	return st.slotsWhere(func(s *model.Slot) bool {
		return s.ServiceID == serviceID && s.Date == date && !s.IsBooked
	}), nil
}

// Reserve checks and flips under the write lock, so exactly one of several
// concurrent callers for the same slot succeeds.
func (r *slotRepository) Reserve(_ context.Context, serviceID, slotID, bookingID uuid.UUID) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	slot, ok := st.slots[slotID]
	if !ok || slot.ServiceID != serviceID || slot.IsBooked {
		return repository.ErrSlotUnavailable
	}
	prevUpdated := slot.UpdatedAt
	slot.IsBooked = true
	slot.BookingID = &bookingID
	slot.UpdatedAt = time.Now()
	r.s.record(func() {
		slot.IsBooked = false
		slot.BookingID = nil
		slot.UpdatedAt = prevUpdated
	})
	return nil
}

func (r *slotRepository) Release(_ context.Context, serviceID uuid.UUID, ts model.TimeSlot, bookingID uuid.UUID) (bool, error) {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, slot := range st.slots {
		if slot.ServiceID != serviceID || !slot.Matches(ts) {
			continue
		}
		if slot.BookingID == nil || *slot.BookingID != bookingID {
			continue
		}
		prevBooking, prevUpdated := slot.BookingID, slot.UpdatedAt
		slot.IsBooked = false
		slot.BookingID = nil
		slot.UpdatedAt = time.Now()
		target := slot
		r.s.record(func() {
			target.IsBooked = true
			target.BookingID = prevBooking
			target.UpdatedAt = prevUpdated
		})
		return true, nil
	}
	return false, nil
}

func (r *slotRepository) ListBookedBefore(_ context.Context, cursor repository.SlotCursor, limit int) ([]*model.Slot, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := st.slotsWhere(func(s *model.Slot) bool {
		return s.IsBooked && cursor.Admits(s)
	})
	repository.SortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
