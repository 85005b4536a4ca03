// Package catalog is the business side of the inventory: businesses,
// services, their add-ons and slots.
package catalog

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/validator"
)

type Service struct {
	store     repository.Store
	validator validator.Validator
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(store repository.Store, logger *logger.Logger) *Service {
	return &Service{
		store:     store,
		validator: validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) CreateBusiness(ctx context.Context, ownerID uuid.UUID, req model.CreateBusinessRequest) (*model.Business, error) {
	if ownerID == uuid.Nil {
		return nil, errors.Unauthenticated(nil)
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, errors.Validation(err.Error(), nil)
	}
	business := &model.Business{
		Base:         model.NewBase(s.now()),
		OwnerID:      ownerID,
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
	}
	if err := s.store.Businesses().Create(ctx, business); err != nil {
		s.logger.Error(err, "Failed to create business")
		return nil, errors.Database(err)
	}
	return business, nil
}

func (s *Service) CreateService(ctx context.Context, callerID uuid.UUID, req model.CreateServiceRequest) (*model.Service, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, errors.Validation(err.Error(), nil)
	}
	if err := checkAddOnNames(req.AddOns); err != nil {
		return nil, err
	}
	if _, err := s.operatedBusiness(ctx, callerID, req.BusinessID); err != nil {
		return nil, err
	}

	now := s.now()
	service := &model.Service{
		Base:            model.NewBase(now),
		BusinessID:      req.BusinessID,
		Name:            req.Name,
		Description:     req.Description,
		BasePrice:       req.BasePrice,
		DurationMinutes: req.DurationMinutes,
		AddOns:          newAddOns(req.AddOns),
	}
	slots, err := buildSlots(service, req.Slots, now)
	if err != nil {
		return nil, err
	}
	service.Slots = slots

	if err := s.store.Services().Create(ctx, service); err != nil {
		if stderrors.Is(err, repository.ErrDuplicateSlot) {
			return nil, errors.Conflict("slot window already exists", err)
		}
		s.logger.Error(err, "Failed to create service", "business_id", req.BusinessID.String())
		return nil, errors.Database(err)
	}
	return service, nil
}

func (s *Service) GetService(ctx context.Context, serviceID uuid.UUID) (*model.Service, error) {
	service, err := s.store.Services().Get(ctx, serviceID)
	if err != nil {
		return nil, s.lookupError("service", err)
	}
	return service, nil
}

// ListAvailableSlots returns the free slots of a service on date, earliest
// first.
// ListServices returns a business's services, oldest first.
func (s *Service) ListServices(ctx context.Context, businessID uuid.UUID) ([]*model.Service, error) {
	if _, err := s.store.Businesses().Get(ctx, businessID); err != nil {
		return nil, s.lookupError("business", err)
	}
	services, err := s.store.Services().ListByBusiness(ctx, businessID)
	if err != nil {
		s.logger.Error(err, "Failed to list services", "business_id", businessID.String())
		return nil, errors.Database(err)
	}
	if services == nil {
		services = []*model.Service{}
	}
	return services, nil
}

func (s *Service) ListAvailableSlots(ctx context.Context, serviceID uuid.UUID, date model.Date) ([]*model.Slot, error) {
	if _, err := s.GetService(ctx, serviceID); err != nil {
		return nil, err
	}
	slots, err := s.store.Slots().ListAvailable(ctx, serviceID, date)
	if err != nil {
		s.logger.Error(err, "Failed to list slots", "service_id", serviceID.String())
		return nil, errors.Database(err)
	}
	model.SortSlots(slots)
	return slots, nil
}

func (s *Service) AddSlots(ctx context.Context, callerID, serviceID uuid.UUID, inputs []model.SlotInput) ([]*model.Slot, error) {
	if len(inputs) == 0 {
		return nil, errors.Validation("at least one slot is required", nil)
	}
	for i := range inputs {
		if err := s.validator.Validate(inputs[i]); err != nil {
			return nil, errors.Validation(err.Error(), nil)
		}
	}
	service, err := s.operatedService(ctx, callerID, serviceID)
	if err != nil {
		return nil, err
	}
	slots, err := buildSlots(service, inputs, s.now())
	if err != nil {
		return nil, err
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		return tx.Slots().Add(ctx, serviceID, slots)
	})
	if err != nil {
		switch {
		case stderrors.Is(err, repository.ErrNotFound):
			return nil, errors.NotFound("service", err)
		case stderrors.Is(err, repository.ErrDuplicateSlot):
			return nil, errors.Conflict("slot window already exists", err)
		}
		s.logger.Error(err, "Failed to add slots", "service_id", serviceID.String())
		return nil, errors.Database(err)
	}
	return slots, nil
}

// RemoveSlot deletes a free slot. Booked slots stay until their booking
// releases them.
func (s *Service) RemoveSlot(ctx context.Context, callerID, serviceID, slotID uuid.UUID) error {
	if _, err := s.operatedService(ctx, callerID, serviceID); err != nil {
		return err
	}
	err := s.store.Slots().Remove(ctx, serviceID, slotID)
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, repository.ErrNotFound):
		return errors.NotFound("slot", err)
	case stderrors.Is(err, repository.ErrSlotUnavailable):
		return errors.Conflict("a booked slot cannot be removed", err)
	default:
		s.logger.Error(err, "Failed to remove slot", "slot_id", slotID.String())
		return errors.Database(err)
	}
}

// SetAddOns replaces the add-on catalog. Existing bookings keep the add-on
// prices they were made with.
func (s *Service) SetAddOns(ctx context.Context, callerID, serviceID uuid.UUID, inputs []model.AddOnInput) (*model.Service, error) {
	for _, in := range inputs {
		if err := s.validator.Validate(in); err != nil {
			return nil, errors.Validation(err.Error(), nil)
		}
	}
	if err := checkAddOnNames(inputs); err != nil {
		return nil, err
	}
	service, err := s.operatedService(ctx, callerID, serviceID)
	if err != nil {
		return nil, err
	}
	addOns := newAddOns(inputs)
	if err := s.store.Services().ReplaceAddOns(ctx, serviceID, addOns); err != nil {
		s.logger.Error(err, "Failed to replace add-ons", "service_id", serviceID.String())
		return nil, errors.Database(err)
	}
	service.AddOns = addOns
	return service, nil
}

func (s *Service) operatedBusiness(ctx context.Context, callerID, businessID uuid.UUID) (*model.Business, error) {
	if callerID == uuid.Nil {
		return nil, errors.Unauthenticated(nil)
	}
	business, err := s.store.Businesses().Get(ctx, businessID)
	if err != nil {
		return nil, s.lookupError("business", err)
	}
	if !business.IsOperatedBy(callerID) {
		return nil, errors.Forbidden("not allowed to manage this business")
	}
	return business, nil
}

func (s *Service) operatedService(ctx context.Context, callerID, serviceID uuid.UUID) (*model.Service, error) {
	service, err := s.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.operatedBusiness(ctx, callerID, service.BusinessID); err != nil {
		return nil, err
	}
	return service, nil
}

func (s *Service) lookupError(what string, err error) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NotFound(what, err)
	}
	s.logger.Error(err, "Failed to load "+what)
	return errors.Database(err)
}

// buildSlots validates inputs against each other and against the slots
// service already has; two slots of one service never share a window.
func buildSlots(service *model.Service, inputs []model.SlotInput, now time.Time) ([]*model.Slot, error) {
	seen := make(map[model.TimeSlot]bool, len(inputs))
	for _, existing := range service.Slots {
		seen[existing.Window()] = true
	}
	slots := make([]*model.Slot, 0, len(inputs))
	for _, in := range inputs {
		if err := in.Validate(); err != nil {
			return nil, errors.Validation(err.Error(), nil)
		}
		slot := in.ToSlot(service.ID, now)
		if seen[slot.Window()] {
			return nil, errors.Conflict(fmt.Sprintf("slot %s already exists", slot.Window()), nil)
		}
		seen[slot.Window()] = true
		slots = append(slots, slot)
	}
	return slots, nil
}

// checkAddOnNames rejects duplicate names, which would make a lookup by
// name ambiguous.
func checkAddOnNames(inputs []model.AddOnInput) error {
	names := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if names[in.Name] {
			return errors.Validation(fmt.Sprintf("duplicate add-on %q", in.Name), nil)
		}
		names[in.Name] = true
	}
	return nil
}

func newAddOns(inputs []model.AddOnInput) []model.AddOn {
	out := make([]model.AddOn, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, model.AddOn{ID: uuid.New(), Name: in.Name, Cost: in.Cost})
	}
	return out
}
