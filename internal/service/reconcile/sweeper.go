// Package reconcile frees slots that are marked booked but have no live
// booking behind them.
package reconcile

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/service/inventory"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type Config struct {
	// Grace keeps the sweep away from reservations still in flight.
	Grace     time.Duration
	BatchSize int
}

type Sweeper struct {
	store     repository.Store
	inventory *inventory.Inventory
	config    Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

const defaultBatchSize = 100

func NewSweeper(store repository.Store, config Config, logger *logger.Logger, metrics *metrics.Metrics) *Sweeper {
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	return &Sweeper{
		store:     store,
		inventory: inventory.New(logger, metrics),
		config:    config,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Sweep releases orphaned slots older than the grace period and returns how
// many it freed. A slot is orphaned when its booking is gone, cancelled, or
// now points at a different slot. Pages walk backwards in time, keyed on
// (updated_at, id), so neither healthy old bookings nor shared timestamps
// hide orphans.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cursor := repository.CursorBefore(s.now().Add(-s.config.Grace))
	repaired := 0
	for {
		slots, err := s.store.Slots().ListBookedBefore(ctx, cursor, s.config.BatchSize)
		if err != nil {
			return repaired, fmt.Errorf("failed to list booked slots: %w", err)
		}
		for _, slot := range slots {
			if s.repair(ctx, slot) {
				repaired++
			}
		}
		if len(slots) < s.config.BatchSize || ctx.Err() != nil {
			return repaired, nil
		}
		cursor = repository.CursorAfter(slots[len(slots)-1])
	}
}

func (s *Sweeper) repair(ctx context.Context, slot *model.Slot) bool {
	if slot.BookingID == nil {
		return false
	}
	orphan, reason, err := s.isOrphan(ctx, slot)
	if err != nil {
		s.logger.Error(err, "Failed to check slot", "slot_id", slot.ID.String())
		return false
	}
	if !orphan {
		return false
	}
	if err := s.inventory.Release(ctx, s.store, slot.ServiceID, slot.Window(), *slot.BookingID); err != nil {
		s.logger.Error(err, "Failed to release orphaned slot", "slot_id", slot.ID.String())
		return false
	}
	s.metrics.ReconcileRepairs.Inc()
	s.logger.Warn("Released orphaned slot",
		"slot_id", slot.ID.String(),
		"service_id", slot.ServiceID.String(),
		"booking_id", slot.BookingID.String(),
		"reason", reason)
	return true
}

func (s *Sweeper) isOrphan(ctx context.Context, slot *model.Slot) (bool, string, error) {
	b, err := s.store.Bookings().Get(ctx, *slot.BookingID)
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return true, "booking missing", nil
	case err != nil:
		return false, "", err
	case b.Status == model.BookingStatusCancelled:
		return true, "booking cancelled", nil
	case b.SlotID != slot.ID:
		return true, "booking moved", nil
	}
	return false, "", nil
}

// Run is the cron entry point.
func (s *Sweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error(err, "Reconcile sweep failed")
		return
	}
	s.logger.Info("Reconcile sweep finished", "released", n)
}
