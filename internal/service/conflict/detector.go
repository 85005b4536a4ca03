// Package conflict finds overlapping active bookings of one staff member
// across every service of a business.
package conflict

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type Detector struct {
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewDetector(logger *logger.Logger, metrics *metrics.Metrics) *Detector {
	return &Detector{logger: logger, metrics: metrics}
}

// Find returns the first active booking of staffID in businessID that
// overlaps ts, skipping the booking with id exclude. It returns nil when the
// staff member is free.
func (d *Detector) Find(ctx context.Context, store repository.Store, businessID uuid.UUID, staffID string, ts model.TimeSlot, exclude uuid.UUID) (*model.Booking, error) {
	bookings, err := store.Bookings().ActiveForStaff(ctx, businessID, staffID, ts.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff bookings: %w", err)
	}
	for _, b := range bookings {
		if b.ID == exclude || !b.Status.IsActive() {
			continue
		}
		if ts.Overlaps(b.TimeSlot) {
			return b, nil
		}
	}
	return nil, nil
}

func (d *Detector) HasConflict(ctx context.Context, store repository.Store, businessID uuid.UUID, staffID string, ts model.TimeSlot) (bool, error) {
	b, err := d.Find(ctx, store, businessID, staffID, ts, uuid.Nil)
	return b != nil, err
}

// Check turns an overlap into a Conflict error naming the busy window.
func (d *Detector) Check(ctx context.Context, store repository.Store, businessID uuid.UUID, staffID string, ts model.TimeSlot, exclude uuid.UUID) error {
	existing, err := d.Find(ctx, store, businessID, staffID, ts, exclude)
	if err != nil {
		return errors.Database(err)
	}
	if existing == nil {
		return nil
	}
	d.metrics.StaffConflicts.Inc()
	d.logger.Info("Staff conflict",
		"business_id", businessID.String(),
		"staff_id", staffID,
		"requested", ts.String(),
		"existing_booking_id", existing.ID.String())
	return errors.Conflict(fmt.Sprintf("staff member %s already has a booking between %s and %s",
		staffID, existing.TimeSlot.StartTime, existing.TimeSlot.EndTime), nil)
}
