// Package booking runs the booking lifecycle: creation against a slot,
// status and payment transitions, reschedule, delete and the read side.
package booking

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/service/conflict"
	"github.com/jwalitptl/booking-api/internal/service/inventory"
	"github.com/jwalitptl/booking-api/internal/service/notification"
	"github.com/jwalitptl/booking-api/internal/service/pricing"
	"github.com/jwalitptl/booking-api/internal/service/reservation"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
	"github.com/jwalitptl/booking-api/pkg/validator"
)

type Service struct {
	store     repository.Store
	pricing   *pricing.Calculator
	inventory *inventory.Inventory
	conflicts *conflict.Detector
	reserver  *reservation.Coordinator
	notifier  notification.Notifier
	validator validator.Validator
	logger    *logger.Logger
	metrics   *metrics.Metrics
	loc       *time.Location
	now       func() time.Time
}

type Config struct {
	DepositRate float64
	PlatformFee float64
	// Location stamps booking timestamps; nil means UTC.
	Location *time.Location
}

func NewService(
	store repository.Store,
	notifier notification.Notifier,
	cfg Config,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:     store,
		pricing:   pricing.NewCalculator(cfg.DepositRate, cfg.PlatformFee),
		inventory: inventory.New(logger, metrics),
		conflicts: conflict.NewDetector(logger, metrics),
		reserver:  reservation.NewCoordinator(logger, metrics),
		notifier:  notifier,
		validator: validator.New(),
		logger:    logger,
		metrics:   metrics,
		loc:       loc,
		now:       time.Now,
	}
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

// Create books the slot that sits exactly on req.TimeSlot. The staff check,
// reservation and insert share one transaction; the notification goes out
// after commit.
func (s *Service) Create(ctx context.Context, callerID uuid.UUID, req model.CreateBookingRequest) (*model.Booking, error) {
	// 1. identity
	if callerID == uuid.Nil {
		return nil, errors.Unauthenticated(nil)
	}
	if req.UserID != uuid.Nil && req.UserID != callerID {
		return nil, errors.Forbidden("bookings can only be made for yourself")
	}
	req.UserID = callerID
	if err := s.validate(req); err != nil {
		return nil, err
	}
	staffID := ""
	if req.StaffID != nil {
		staffID = *req.StaffID
	}

	// 2. service and slot
	service, err := s.store.Services().Get(ctx, req.ServiceID)
	if err != nil {
		return nil, s.lookupError("service", err)
	}
	if service.BusinessID != req.BusinessID {
		return nil, errors.Validation("service does not belong to this business", nil)
	}
	slot := service.FindSlot(req.TimeSlot)
	if slot == nil {
		return nil, errors.NotFound("slot", nil)
	}
	if staffID != "" && !slot.AllowsStaff(staffID) {
		return nil, errors.Validation(fmt.Sprintf("staff member %s is not available for this slot", staffID), nil)
	}
	addOns, err := resolveAddOns(service, req.AddOns)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	booking := &model.Booking{
		ID:                 uuid.New(),
		UserID:             callerID,
		BusinessID:         req.BusinessID,
		ServiceID:          service.ID,
		SlotID:             slot.ID,
		StaffID:            req.StaffID,
		TimeSlot:           slot.Window(),
		AddOns:             addOns,
		Status:             model.BookingStatusConfirmed,
		PaymentStatus:      model.PaymentStatusPending,
		AdminPaymentStatus: model.AdminPaymentStatusPending,
		CustomerEmail:      req.CustomerEmail,
		CustomerNotes:      req.CustomerNotes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		// 3. staff conflicts across the business
		if staffID != "" {
			if err := tx.LockStaff(ctx, booking.BusinessID, staffID); err != nil {
				return errors.Database(err)
			}
			if err := s.conflicts.Check(ctx, tx, booking.BusinessID, staffID, booking.TimeSlot, uuid.Nil); err != nil {
				return err
			}
		}

		// 4. server-side price; req.TotalCost is never read
		s.pricing.ForSlot(service, slot, addOns).Apply(booking)

		// 5. the conditional slot flip
		if err := s.reserver.Reserve(ctx, tx, service.ID, slot.ID, booking.ID); err != nil {
			return err
		}

		// 6. the booking under the id the slot now references
		if err := tx.Bookings().Create(ctx, booking); err != nil {
			return errors.Database(err)
		}
		return nil
	})
	if err != nil {
		return nil, s.txError(err, "create booking", "service_id", service.ID.String(), "booking_id", booking.ID.String())
	}

	s.metrics.BookingStatus.WithLabelValues(string(booking.Status)).Inc()
	s.logger.Info("Booking created",
		"booking_id", booking.ID.String(),
		"service_id", service.ID.String(),
		"slot_id", slot.ID.String())

	// 7. best effort
	s.notifier.Notify(ctx, model.NotificationBookingCreated, booking, nil)
	return booking, nil
}

func (s *Service) validate(req model.CreateBookingRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return errors.Validation(err.Error(), nil)
	}
	if err := req.TimeSlot.Validate(); err != nil {
		return errors.Validation(err.Error(), nil)
	}
	return nil
}

// resolveAddOns prices each requested add-on from the service catalog.
func resolveAddOns(service *model.Service, refs []string) ([]model.BookedAddOn, error) {
	out := make([]model.BookedAddOn, 0, len(refs))
	for _, ref := range refs {
		a, ok := service.AddOnByRef(ref)
		if !ok {
			return nil, errors.Validation(fmt.Sprintf("unknown add-on %q", ref), nil)
		}
		out = append(out, model.BookedAddOn{ID: a.ID, Name: a.Name, Cost: a.Cost})
	}
	return out, nil
}

func (s *Service) lookupError(what string, err error) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NotFound(what, err)
	}
	s.logger.Error(err, "Failed to load "+what)
	return errors.Database(err)
}

// txError passes AppErrors through and wraps anything else as a database
// failure, logging it with fields.
func (s *Service) txError(err error, op string, fields ...interface{}) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		if appErr.Code == errors.ErrDatabase || appErr.Code == errors.ErrInternal {
			s.logger.Error(err, "Failed to "+op, fields...)
		}
		return appErr
	}
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NotFound("booking", err)
	}
	s.logger.Error(err, "Failed to "+op, fields...)
	return errors.Database(err)
}

// authorize reports whether callerID is the customer or the operator of
// the booking's business; at least one must hold.
func (s *Service) authorize(ctx context.Context, callerID uuid.UUID, b *model.Booking) (isCustomer, isOwner bool, err error) {
	if callerID == uuid.Nil {
		return false, false, errors.Unauthenticated(nil)
	}
	isCustomer = b.UserID == callerID
	business, err := s.store.Businesses().Get(ctx, b.BusinessID)
	switch {
	case err == nil:
		isOwner = business.IsOperatedBy(callerID)
	case !stderrors.Is(err, repository.ErrNotFound):
		return false, false, s.lookupError("business", err)
	}
	if !isCustomer && !isOwner {
		return false, false, errors.Forbidden("not allowed to access this booking")
	}
	return isCustomer, isOwner, nil
}

func (s *Service) load(ctx context.Context, callerID, bookingID uuid.UUID) (*model.Booking, bool, bool, error) {
	b, err := s.store.Bookings().Get(ctx, bookingID)
	if err != nil {
		return nil, false, false, s.lookupError("booking", err)
	}
	isCustomer, isOwner, err := s.authorize(ctx, callerID, b)
	if err != nil {
		return nil, false, false, err
	}
	return b, isCustomer, isOwner, nil
}
