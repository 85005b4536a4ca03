package notification

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/pkg/logger"
)

func newBooking(t *testing.T, store *memory.Store, contact string) *model.Booking {
	t.Helper()
	business := &model.Business{Base: model.NewBase(time.Now()), OwnerID: uuid.New(), Name: "Salon", ContactEmail: contact}
	require.NoError(t, store.Businesses().Create(context.Background(), business))
	reason := "ill"
	return &model.Booking{
		ID:         uuid.New(),
		BusinessID: business.ID,
		TimeSlot: model.TimeSlot{
			Date:      model.MustDate("2025-06-01"),
			StartTime: model.MustClock("10:00"),
			EndTime:   model.MustClock("11:00"),
		},
		TotalCost:          50,
		DepositAmount:      5,
		RemainingAmount:    45,
		Status:             model.BookingStatusCancelled,
		CustomerEmail:      "customer@example.test",
		CancellationReason: &reason,
	}
}

func TestDispatcherWritesOutboxEvent(t *testing.T) {
	store := memory.NewStore()
	d := NewDispatcher(store, "notifications", logger.Nop())
	b := newBooking(t, store, "desk@salon.test")

	d.Notify(context.Background(), model.NotificationBookingCancelled, b, map[string]string{"extra": "1"})

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "notifications", events[0].Topic)
	assert.Equal(t, string(model.NotificationBookingCancelled), events[0].EventType)
	assert.Equal(t, b.ID, events[0].AggregateID)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)

	var n model.Notification
	require.NoError(t, json.Unmarshal(events[0].Payload, &n))
	assert.Equal(t, []string{"customer@example.test", "desk@salon.test"}, n.Recipients)
	assert.Equal(t, "50.00", n.Data["total_cost"])
	assert.Equal(t, "5.00", n.Data["deposit_amount"])
	assert.Equal(t, "ill", n.Data["cancellation_reason"])
	assert.Equal(t, "1", n.Data["extra"])
}

func TestDispatcherSkipsWithoutRecipients(t *testing.T) {
	store := memory.NewStore()
	d := NewDispatcher(store, "notifications", logger.Nop())
	b := newBooking(t, store, "")
	b.CustomerEmail = ""

	d.Notify(context.Background(), model.NotificationBookingCreated, b, nil)
	assert.Empty(t, store.Events())
}

func TestDispatcherToleratesMissingBusiness(t *testing.T) {
	store := memory.NewStore()
	d := NewDispatcher(store, "notifications", logger.Nop())
	b := newBooking(t, store, "desk@salon.test")
	b.BusinessID = uuid.New()

	d.Notify(context.Background(), model.NotificationBookingCreated, b, nil)
	events := store.Events()
	require.Len(t, events, 1)
	var n model.Notification
	require.NoError(t, json.Unmarshal(events[0].Payload, &n))
	assert.Equal(t, []string{"customer@example.test"}, n.Recipients)
}

func TestRenderEveryKind(t *testing.T) {
	data := map[string]string{
		"booking_id": "b1", "date": "2025-06-01", "start_time": "10:00", "end_time": "11:00",
		"total_cost": "50.00", "deposit_amount": "5.00", "remaining_amount": "45.00",
		"previous_date": "2025-05-31", "previous_start_time": "09:00", "previous_end_time": "10:00",
	}
	kinds := []model.NotificationKind{
		model.NotificationBookingCreated,
		model.NotificationBookingCancelled,
		model.NotificationBookingCompleted,
		model.NotificationBookingRescheduled,
		model.NotificationBookingDeleted,
	}
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			subject, body, err := Render(&model.Notification{Kind: kind, Data: data})
			require.NoError(t, err)
			assert.NotEmpty(t, subject)
			assert.Contains(t, body, "b1")
		})
	}

	_, body, err := Render(&model.Notification{Kind: model.NotificationBookingCreated, Data: data})
	require.NoError(t, err)
	assert.Contains(t, body, "Deposit due: 5.00")

	_, _, err = Render(&model.Notification{Kind: "booking.unknown"})
	assert.Error(t, err)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to []string, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, subject)
	return nil
}

func TestConsumerHandle(t *testing.T) {
	mailer := &fakeMailer{}
	c := NewConsumer(nil, mailer, logger.Nop())
	payload, err := json.Marshal(model.Notification{
		Kind:       model.NotificationBookingCreated,
		Recipients: []string{"a@example.test"},
		Data:       map[string]string{"booking_id": "b1"},
	})
	require.NoError(t, err)

	require.NoError(t, c.Handle(context.Background(), payload))
	assert.Equal(t, []string{"Your booking is confirmed"}, mailer.sent)

	assert.Error(t, c.Handle(context.Background(), []byte("{")))

	mailer.err = stderrors.New("relay down")
	assert.Error(t, c.Handle(context.Background(), payload), "send failures are retried by the broker")
}
