// Package inventory looks up and frees slots. Flipping a slot to booked is
// the reservation coordinator's job; this package only ever frees.
package inventory

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type Inventory struct {
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func New(logger *logger.Logger, metrics *metrics.Metrics) *Inventory {
	return &Inventory{logger: logger, metrics: metrics}
}

// FindFreeSlot returns the free slot exactly on ts, or nil when there is
// none.
func (inv *Inventory) FindFreeSlot(ctx context.Context, store repository.Store, serviceID uuid.UUID, ts model.TimeSlot) (*model.Slot, error) {
	slot, err := store.Slots().FindFree(ctx, serviceID, ts)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find free slot: %w", err)
	}
	return slot, nil
}

// Release frees the slot on ts held by bookingID. A missing match is logged
// and ignored: the business may have edited the slot after booking, and a
// second release for the same booking finds nothing to do.
func (inv *Inventory) Release(ctx context.Context, store repository.Store, serviceID uuid.UUID, ts model.TimeSlot, bookingID uuid.UUID) error {
	released, err := store.Slots().Release(ctx, serviceID, ts, bookingID)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	if !released {
		inv.metrics.SlotReleases.WithLabelValues("missing").Inc()
		inv.logger.Warn("No booked slot matched release",
			"service_id", serviceID.String(),
			"booking_id", bookingID.String(),
			"time_slot", ts.String())
		return nil
	}
	inv.metrics.SlotReleases.WithLabelValues("released").Inc()
	return nil
}
