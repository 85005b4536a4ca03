package booking

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

// BookingView is a booking as returned to callers. Service and Business
// render as bare ids unless expanded.
type BookingView struct {
	*model.Booking
	Service  model.Ref[model.Service]  `json:"service"`
	Business model.Ref[model.Business] `json:"business"`
}

// Expand selects which references a projection resolves.
type Expand struct {
	Service  bool
	Business bool
}

// ParseExpand reads a comma separated list such as "service,business".
func ParseExpand(s string) Expand {
	var e Expand
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(part) {
		case "service":
			e.Service = true
		case "business":
			e.Business = true
		}
	}
	return e
}

// Get returns one booking to its customer or its business.
func (s *Service) Get(ctx context.Context, callerID, bookingID uuid.UUID, expand Expand) (*BookingView, error) {
	b, _, _, err := s.load(ctx, callerID, bookingID)
	if err != nil {
		return nil, err
	}
	views, err := s.project(ctx, []*model.Booking{b}, expand)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// List returns bookings ordered by slot date and start time. A filter on a
// business requires operating it; any other filter only sees the caller's
// own bookings.
func (s *Service) List(ctx context.Context, callerID uuid.UUID, filter model.BookingFilter, expand Expand) ([]*BookingView, error) {
	if callerID == uuid.Nil {
		return nil, errors.Unauthenticated(nil)
	}
	if filter.BusinessID != nil {
		business, err := s.store.Businesses().Get(ctx, *filter.BusinessID)
		if err != nil {
			return nil, s.lookupError("business", err)
		}
		if !business.IsOperatedBy(callerID) {
			return nil, errors.Forbidden("not allowed to list this business's bookings")
		}
	} else {
		if filter.UserID != nil && *filter.UserID != callerID {
			return nil, errors.Forbidden("not allowed to list another user's bookings")
		}
		filter.UserID = &callerID
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, errors.Validation("from must not be after to", nil)
	}

	bookings, err := s.store.Bookings().List(ctx, filter)
	if err != nil {
		s.logger.Error(err, "Failed to list bookings")
		return nil, errors.Database(err)
	}
	model.SortBookings(bookings)
	return s.project(ctx, bookings, expand)
}

// project wraps bookings in views, resolving each referenced service and
// business at most once.
func (s *Service) project(ctx context.Context, bookings []*model.Booking, expand Expand) ([]*BookingView, error) {
	services := map[uuid.UUID]*model.Service{}
	businesses := map[uuid.UUID]*model.Business{}

	views := make([]*BookingView, 0, len(bookings))
	for _, b := range bookings {
		view := &BookingView{
			Booking:  b,
			Service:  model.Unresolved[model.Service](b.ServiceID),
			Business: model.Unresolved[model.Business](b.BusinessID),
		}
		if expand.Service {
			svc, ok := services[b.ServiceID]
			if !ok {
				var err error
				svc, err = s.store.Services().Get(ctx, b.ServiceID)
				if err != nil && !stderrors.Is(err, repository.ErrNotFound) {
					return nil, s.lookupError("service", err)
				}
				if svc != nil {
					svc.Slots = nil
				}
				services[b.ServiceID] = svc
			}
			if svc != nil {
				view.Service = model.Resolved(b.ServiceID, svc)
			}
		}
		if expand.Business {
			business, ok := businesses[b.BusinessID]
			if !ok {
				var err error
				business, err = s.store.Businesses().Get(ctx, b.BusinessID)
				if err != nil && !stderrors.Is(err, repository.ErrNotFound) {
					return nil, s.lookupError("business", err)
				}
				businesses[b.BusinessID] = business
			}
			if business != nil {
				view.Business = model.Resolved(b.BusinessID, business)
			}
		}
		views = append(views, view)
	}
	return views, nil
}
