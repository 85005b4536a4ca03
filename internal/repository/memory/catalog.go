package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type businessRepository struct{ s *Store }

func (r *businessRepository) Create(_ context.Context, business *model.Business) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	c := *business
	st.businesses[c.ID] = &c
	r.s.record(func() { delete(st.businesses, c.ID) })
	return nil
}

func (r *businessRepository) Get(_ context.Context, id uuid.UUID) (*model.Business, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	b, ok := st.businesses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *b
	return &c, nil
}

type serviceRepository struct{ s *Store }

func (r *serviceRepository) Create(_ context.Context, service *model.Service) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	stored := cloneService(service)
	for i := range stored.AddOns {
		stored.AddOns[i].ServiceID = service.ID
	}
	st.services[service.ID] = stored
	r.s.record(func() { delete(st.services, service.ID) })

	for _, slot := range service.Slots {
		c := cloneSlot(slot)
		c.ServiceID = service.ID
		st.slots[c.ID] = c
		id := c.ID
		r.s.record(func() { delete(st.slots, id) })
	}
	return nil
}

func (r *serviceRepository) Get(_ context.Context, id uuid.UUID) (*model.Service, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	svc, ok := st.services[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneService(svc)
	c.Slots = st.slotsWhere(func(s *model.Slot) bool { return s.ServiceID == id })
	return c, nil
}

func (r *serviceRepository) ListByBusiness(_ context.Context, businessID uuid.UUID) ([]*model.Service, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	var out []*model.Service
	for _, svc := range st.services {
		if svc.BusinessID == businessID {
			out = append(out, cloneService(svc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *serviceRepository) ReplaceAddOns(_ context.Context, serviceID uuid.UUID, addOns []model.AddOn) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	svc, ok := st.services[serviceID]
	if !ok {
		return repository.ErrNotFound
	}
	prevAddOns, prevUpdated := svc.AddOns, svc.UpdatedAt
	svc.AddOns = append([]model.AddOn{}, addOns...)
	for i := range svc.AddOns {
		svc.AddOns[i].ServiceID = serviceID
	}
	svc.UpdatedAt = time.Now()
	r.s.record(func() { svc.AddOns, svc.UpdatedAt = prevAddOns, prevUpdated })
	return nil
}

// slotsWhere must be called with mu held.
func (st *state) slotsWhere(keep func(*model.Slot) bool) []*model.Slot {
	out := []*model.Slot{}
	for _, s := range st.slots {
		if keep(s) {
			out = append(out, cloneSlot(s))
		}
	}
	model.SortSlots(out)
	return out
}
