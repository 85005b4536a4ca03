// Package reservation binds a free slot to a booking id in one conditional
// write. It is the only guard against double booking that holds under
// concurrency.
package reservation

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

// SlotTakenMessage is shown to a caller who lost the race for a slot.
const SlotTakenMessage = "this time slot was just booked, please choose another time"

type Coordinator struct {
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewCoordinator(logger *logger.Logger, metrics *metrics.Metrics) *Coordinator {
	return &Coordinator{logger: logger, metrics: metrics}
}

// Reserve flips slotID of serviceID to booked by bookingID. Losing the race
// is an expected outcome and comes back as a Conflict error.
func (c *Coordinator) Reserve(ctx context.Context, store repository.Store, serviceID, slotID, bookingID uuid.UUID) error {
	err := store.Slots().Reserve(ctx, serviceID, slotID, bookingID)
	switch {
	case err == nil:
		c.metrics.Reservations.WithLabelValues("won").Inc()
		return nil
	case stderrors.Is(err, repository.ErrSlotUnavailable):
		c.metrics.Reservations.WithLabelValues("lost").Inc()
		c.logger.Info("Lost slot race",
			"service_id", serviceID.String(),
			"slot_id", slotID.String(),
			"booking_id", bookingID.String())
		return errors.Conflict(SlotTakenMessage, err)
	default:
		c.metrics.Reservations.WithLabelValues("error").Inc()
		return errors.Database(err)
	}
}
