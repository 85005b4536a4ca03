package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

func TestReserveOneWinner(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Now()
	svc := &model.Service{Base: model.NewBase(now), BusinessID: uuid.New()}
	slot := model.SlotInput{
		Date:      model.MustDate("2025-06-01"),
		StartTime: model.MustClock("10:00"),
		EndTime:   model.MustClock("11:00"),
	}.ToSlot(svc.ID, now)
	svc.Slots = []*model.Slot{slot}
	require.NoError(t, store.Services().Create(ctx, svc))

	m := metrics.NewNop()
	c := NewCoordinator(logger.Nop(), m)

	const n = 10
	results := make([]error, n)
	ids := make([]uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		ids[i] = uuid.New()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Reserve(ctx, store, svc.ID, slot.ID, ids[i])
		}(i)
	}
	wg.Wait()

	var winner uuid.UUID
	for i, err := range results {
		if err == nil {
			assert.Equal(t, uuid.Nil, winner, "more than one winner")
			winner = ids[i]
			continue
		}
		assert.True(t, errors.Is(err, errors.ErrConflict))
		assert.Contains(t, err.Error(), SlotTakenMessage)
	}
	require.NotEqual(t, uuid.Nil, winner)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reservations.WithLabelValues("won")))
	assert.Equal(t, float64(n-1), testutil.ToFloat64(m.Reservations.WithLabelValues("lost")))

	got, err := store.Slots().Find(ctx, svc.ID, slot.Window())
	require.NoError(t, err)
	assert.True(t, got.IsBooked)
	assert.Equal(t, winner, *got.BookingID)
}
