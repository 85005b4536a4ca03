package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

func seedService(t *testing.T, store *Store) (*model.Service, *model.Slot) {
	t.Helper()
	now := time.Now()
	svc := &model.Service{
		Base:       model.NewBase(now),
		BusinessID: uuid.New(),
		Name:       "Haircut",
		BasePrice:  40,
	}
	slot := model.SlotInput{
		Date:      model.MustDate("2025-06-01"),
		StartTime: model.MustClock("10:00"),
		EndTime:   model.MustClock("11:00"),
		StaffIDs:  []string{"alice"},
	}.ToSlot(svc.ID, now)
	svc.Slots = []*model.Slot{slot}
	require.NoError(t, store.Services().Create(context.Background(), svc))
	return svc, slot
}

func TestReserveHasExactlyOneWinner(t *testing.T) {
	store := NewStore()
	svc, slot := seedService(t, store)

	const attempts = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []uuid.UUID
		losers  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.New()
			err := store.Slots().Reserve(context.Background(), svc.ID, slot.ID, id)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, id)
				return
			}
			assert.ErrorIs(t, err, repository.ErrSlotUnavailable)
			losers++
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, attempts-1, losers)

	got, err := store.Slots().Find(context.Background(), svc.ID, slot.Window())
	require.NoError(t, err)
	assert.True(t, got.IsBooked)
	require.NotNil(t, got.BookingID)
	assert.Equal(t, winners[0], *got.BookingID)
}

func TestReleaseMatchesOnlyTheHolder(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	svc, slot := seedService(t, store)
	holder := uuid.New()
	require.NoError(t, store.Slots().Reserve(ctx, svc.ID, slot.ID, holder))

	released, err := store.Slots().Release(ctx, svc.ID, slot.Window(), uuid.New())
	require.NoError(t, err)
	assert.False(t, released)

	released, err = store.Slots().Release(ctx, svc.ID, slot.Window(), holder)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = store.Slots().Release(ctx, svc.ID, slot.Window(), holder)
	require.NoError(t, err)
	assert.False(t, released, "second release is a no-op")

	free, err := store.Slots().FindFree(ctx, svc.ID, slot.Window())
	require.NoError(t, err)
	assert.Nil(t, free.BookingID)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	svc, slot := seedService(t, store)
	bookingID := uuid.New()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		require.NoError(t, tx.Slots().Reserve(ctx, svc.ID, slot.ID, bookingID))
		require.NoError(t, tx.Bookings().Create(ctx, &model.Booking{ID: bookingID, ServiceID: svc.ID}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Bookings().Get(ctx, bookingID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	free, err := store.Slots().FindFree(ctx, svc.ID, slot.Window())
	require.NoError(t, err)
	assert.False(t, free.IsBooked)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	svc, slot := seedService(t, store)

	assert.Panics(t, func() {
		_ = store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
			_ = tx.Slots().Reserve(ctx, svc.ID, slot.ID, uuid.New())
			panic("crash between reserve and insert")
		})
	})

	_, err := store.Slots().FindFree(ctx, svc.ID, slot.Window())
	assert.NoError(t, err)
}

func TestRemoveRefusesBookedSlot(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	svc, slot := seedService(t, store)
	require.NoError(t, store.Slots().Reserve(ctx, svc.ID, slot.ID, uuid.New()))

	err := store.Slots().Remove(ctx, svc.ID, slot.ID)
	assert.ErrorIs(t, err, repository.ErrSlotUnavailable)

	err = store.Slots().Remove(ctx, svc.ID, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestActiveForStaffSpansServices(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	business := uuid.New()
	alice := "alice"
	date := model.MustDate("2025-06-01")
	mk := func(service uuid.UUID, status model.BookingStatus) *model.Booking {
		return &model.Booking{
			ID:         uuid.New(),
			BusinessID: business,
			ServiceID:  service,
			StaffID:    &alice,
			TimeSlot:   model.TimeSlot{Date: date, StartTime: model.MustClock("10:00"), EndTime: model.MustClock("11:00")},
			Status:     status,
		}
	}
	active := []*model.Booking{mk(uuid.New(), model.BookingStatusConfirmed), mk(uuid.New(), model.BookingStatusPending)}
	for _, b := range active {
		require.NoError(t, store.Bookings().Create(ctx, b))
	}
	require.NoError(t, store.Bookings().Create(ctx, mk(uuid.New(), model.BookingStatusCancelled)))

	got, err := store.Bookings().ActiveForStaff(ctx, business, alice, date)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = store.Bookings().ActiveForStaff(ctx, business, alice, model.MustDate("2025-06-02"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOutboxClaimAndRetry(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	event, err := model.NewOutboxEvent("topic", "booking.created", uuid.New(), map[string]string{"a": "b"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Outbox().Create(ctx, event))

	claimed, err := store.Outbox().ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	again, err := store.Outbox().ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again, "claimed events are leased")

	past := time.Now().Add(-time.Second)
	require.NoError(t, store.Outbox().MarkFailed(ctx, event.ID, "broker down", &past))
	retried, err := store.Outbox().ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, retried, 1)
	assert.Equal(t, 1, retried[0].RetryCount)

	require.NoError(t, store.Outbox().MarkProcessed(ctx, event.ID))
	n, err := store.Outbox().DeleteProcessedBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpdateDoesNotAliasCallerPointers(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	b := &model.Booking{ID: uuid.New(), Status: model.BookingStatusConfirmed}
	require.NoError(t, store.Bookings().Create(ctx, b))

	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	by := uuid.New()
	b.Status = model.BookingStatusCancelled
	b.CancelledAt = &at
	b.CancelledBy = &by
	require.NoError(t, store.Bookings().Update(ctx, b))

	at = at.Add(time.Hour)
	by = uuid.New()

	got, err := store.Bookings().Get(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CancelledAt)
	require.NotNil(t, got.CancelledBy)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), *got.CancelledAt)
	assert.NotEqual(t, by, *got.CancelledBy)
}

func TestAddRejectsTakenWindow(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	svc, slot := seedService(t, store)

	fresh := model.SlotInput{
		Date:      slot.Date,
		StartTime: model.MustClock("12:00"),
		EndTime:   model.MustClock("13:00"),
	}
	taken := model.SlotInput{Date: slot.Date, StartTime: slot.StartTime, EndTime: slot.EndTime}
	err := store.Slots().Add(ctx, svc.ID, []*model.Slot{fresh.ToSlot(svc.ID, time.Now()), taken.ToSlot(svc.ID, time.Now())})
	assert.ErrorIs(t, err, repository.ErrDuplicateSlot)

	_, err = store.Slots().FindFree(ctx, svc.ID, fresh.ToSlot(svc.ID, time.Now()).Window())
	assert.ErrorIs(t, err, repository.ErrNotFound, "nothing from the rejected batch is written")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Slots().Add(ctx, svc.ID, []*model.Slot{fresh.ToSlot(svc.ID, time.Now())})
		}()
	}
	wg.Wait()
	close(errs)
	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrDuplicateSlot)
	}
	assert.Equal(t, 1, ok)
}

func TestListBookedBeforeWalksTies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	touched := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := &model.Service{Base: model.NewBase(touched), BusinessID: uuid.New()}
	for _, start := range []string{"09:00", "10:00", "11:00"} {
		slot := model.SlotInput{
			Date:      model.MustDate("2025-06-01"),
			StartTime: model.MustClock(start),
			EndTime:   model.MustClock(start) + 60,
		}.ToSlot(svc.ID, touched)
		holder := uuid.New()
		slot.IsBooked, slot.BookingID = true, &holder
		svc.Slots = append(svc.Slots, slot)
	}
	require.NoError(t, store.Services().Create(ctx, svc))

	seen := map[uuid.UUID]bool{}
	cursor := repository.CursorBefore(touched.Add(time.Second))
	for {
		page, err := store.Slots().ListBookedBefore(ctx, cursor, 1)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		require.Len(t, page, 1)
		assert.False(t, seen[page[0].ID], "visited twice")
		seen[page[0].ID] = true
		cursor = repository.CursorAfter(page[0])
	}
	assert.Len(t, seen, 3)

	page, err := store.Slots().ListBookedBefore(ctx, repository.CursorBefore(touched), 10)
	require.NoError(t, err)
	assert.Empty(t, page, "cutoff is exclusive")
}
