package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

var window = model.TimeSlot{
	Date:      model.MustDate("2025-06-01"),
	StartTime: model.MustClock("10:00"),
	EndTime:   model.MustClock("11:00"),
}

func TestReserveFlipsFreeSlot(t *testing.T) {
	store, mock := newMockStore(t)
	serviceID, slotID, bookingID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`WHERE service_id = $1 AND id = $2 AND is_booked = FALSE`)).
		WithArgs(serviceID, slotID, bookingID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Slots().Reserve(context.Background(), serviceID, slotID, bookingID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveLostRaceIsSlotUnavailable(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`SET is_booked = TRUE, booking_id = $3`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Slots().Reserve(context.Background(), uuid.New(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseMatchesWindowAndBooking(t *testing.T) {
	store, mock := newMockStore(t)
	serviceID, bookingID := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`SET is_booked = FALSE, booking_id = NULL`)).
		WithArgs(serviceID, "2025-06-01", "10:00", "11:00", bookingID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`SET is_booked = FALSE, booking_id = NULL`)).
		WithArgs(serviceID, "2025-06-01", "10:00", "11:00", bookingID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	released, err := store.Slots().Release(context.Background(), serviceID, window, bookingID)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = store.Slots().Release(context.Background(), serviceID, window, bookingID)
	require.NoError(t, err)
	assert.False(t, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveBookedSlot(t *testing.T) {
	store, mock := newMockStore(t)
	serviceID, slotID := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM slots`)).
		WithArgs(serviceID, slotID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT is_booked FROM slots`)).
		WithArgs(serviceID, slotID).
		WillReturnRows(sqlmock.NewRows([]string{"is_booked"}).AddRow(true))

	err := store.Slots().Remove(context.Background(), serviceID, slotID)
	assert.ErrorIs(t, err, repository.ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindFreeScansRow(t *testing.T) {
	store, mock := newMockStore(t)
	serviceID, slotID := uuid.New(), uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "service_id", "slot_date", "start_time", "end_time", "price", "duration_minutes",
		"staff_ids", "is_booked", "booking_id", "created_at", "updated_at",
	}).AddRow(slotID.String(), serviceID.String(), "2025-06-01", "10:00", "11:00", 50.0, 60,
		"{alice,bob}", false, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`AND is_booked = FALSE`)).
		WithArgs(serviceID, "2025-06-01", "10:00", "11:00").
		WillReturnRows(rows)

	slot, err := store.Slots().FindFree(context.Background(), serviceID, window)
	require.NoError(t, err)
	assert.Equal(t, slotID, slot.ID)
	assert.Equal(t, window, slot.Window())
	require.NotNil(t, slot.Price)
	assert.Equal(t, 50.0, *slot.Price)
	assert.Equal(t, []string{"alice", "bob"}, slot.StaffIDs)
	assert.Nil(t, slot.BookingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Bookings().Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithTxCommitsAndLocksStaff(t *testing.T) {
	store, mock := newMockStore(t)
	businessID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs(businessID.String() + "/alice").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx repository.Store) error {
		return tx.LockStaff(ctx, businessID, "alice")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(context.Context, repository.Store) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockStaffOutsideTransaction(t *testing.T) {
	store, _ := newMockStore(t)
	assert.Error(t, store.LockStaff(context.Background(), uuid.New(), "alice"))
}

func TestClaimPendingUsesSkipLocked(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "aggregate_id", "event_type", "topic", "payload", "status", "error_message",
		"retry_count", "retry_at", "created_at", "updated_at", "processed_at",
	}).AddRow(id.String(), uuid.New().String(), "booking.created", "booking.notifications",
		[]byte(`{"kind":"booking.created"}`), "processing", nil, 0, nil, now, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE SKIP LOCKED`)).
		WithArgs(10, sqlmock.AnyArg()).
		WillReturnRows(rows)

	events, err := store.Outbox().ClaimPending(context.Background(), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.Equal(t, model.OutboxStatusProcessing, events[0].Status)
	assert.JSONEq(t, `{"kind":"booking.created"}`, string(events[0].Payload))
}

func TestAddSlotsUniqueViolationIsDuplicate(t *testing.T) {
	store, mock := newMockStore(t)
	serviceID := uuid.New()
	slot := model.SlotInput{Date: window.Date, StartTime: window.StartTime, EndTime: window.EndTime}.ToSlot(serviceID, time.Now())

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO slots`)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.Slots().Add(context.Background(), serviceID, []*model.Slot{slot})
	assert.ErrorIs(t, err, repository.ErrDuplicateSlot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBookedBeforeKeysOnTimestampAndID(t *testing.T) {
	store, mock := newMockStore(t)
	cutoff := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	last := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`(updated_at, id) < ($1, $2)`)).
		WithArgs(cutoff, last, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	cursor := repository.SlotCursor{UpdatedAt: cutoff, ID: last}
	slots, err := store.Slots().ListBookedBefore(context.Background(), cursor, 50)
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.NoError(t, mock.ExpectationsWereMet())
}
