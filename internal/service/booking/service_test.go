package booking

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

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []model.NotificationKind
	extra []map[string]string
}

func (n *recordingNotifier) Notify(_ context.Context, kind model.NotificationKind, _ *model.Booking, extra map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	n.extra = append(n.extra, extra)
}

func (n *recordingNotifier) Kinds() []model.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.NotificationKind(nil), n.kinds...)
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	notifier *recordingNotifier
	owner    uuid.UUID
	business *model.Business
	serviceA *model.Service
	serviceB *model.Service
	massage  model.AddOn
}

var day = model.MustDate("2025-06-01")

func window(start, end string) model.TimeSlot {
	return model.TimeSlot{Date: day, StartTime: model.MustClock(start), EndTime: model.MustClock(end)}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	store := memory.NewStore()
	f := &fixture{store: store, notifier: &recordingNotifier{}, owner: uuid.New()}

	f.business = &model.Business{Base: model.NewBase(now), OwnerID: f.owner, Name: "Salon", ContactEmail: "desk@salon.test"}
	require.NoError(t, store.Businesses().Create(ctx, f.business))

	price := 50.0
	f.massage = model.AddOn{ID: uuid.New(), Name: "Scalp Massage", Cost: 30}
	f.serviceA = &model.Service{Base: model.NewBase(now), BusinessID: f.business.ID, Name: "Cut", BasePrice: 20, AddOns: []model.AddOn{f.massage}}
	f.serviceA.Slots = []*model.Slot{
		model.SlotInput{Date: day, StartTime: model.MustClock("10:00"), EndTime: model.MustClock("11:00"), Price: &price, StaffIDs: []string{"alice"}}.ToSlot(f.serviceA.ID, now),
		model.SlotInput{Date: day, StartTime: model.MustClock("13:00"), EndTime: model.MustClock("14:00"), StaffIDs: []string{"alice"}}.ToSlot(f.serviceA.ID, now),
		model.SlotInput{Date: day, StartTime: model.MustClock("15:00"), EndTime: model.MustClock("16:00"), StaffIDs: []string{"bob"}}.ToSlot(f.serviceA.ID, now),
	}
	require.NoError(t, store.Services().Create(ctx, f.serviceA))

	f.serviceB = &model.Service{Base: model.NewBase(now), BusinessID: f.business.ID, Name: "Colour", BasePrice: 70}
	f.serviceB.Slots = []*model.Slot{
		model.SlotInput{Date: day, StartTime: model.MustClock("10:30"), EndTime: model.MustClock("11:30")}.ToSlot(f.serviceB.ID, now),
	}
	require.NoError(t, store.Services().Create(ctx, f.serviceB))

	f.svc = NewService(store, f.notifier, Config{DepositRate: 0.10, PlatformFee: 1.99}, logger.Nop(), metrics.NewNop())
	return f
}

func (f *fixture) request(service *model.Service, ts model.TimeSlot, staff string, addOns ...string) model.CreateBookingRequest {
	req := model.CreateBookingRequest{
		BusinessID:    f.business.ID,
		ServiceID:     service.ID,
		TimeSlot:      ts,
		AddOns:        addOns,
		CustomerEmail: "customer@example.test",
	}
	if staff != "" {
		req.StaffID = &staff
	}
	return req
}

func TestCreateConcurrentOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const n = 8

	var wg sync.WaitGroup
	bookings := make([]*model.Booking, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bookings[i], errs[i] = f.svc.Create(ctx, uuid.New(), f.request(f.serviceA, window("10:00", "11:00"), "alice"))
		}(i)
	}
	wg.Wait()

	var winner *model.Booking
	for i := range errs {
		if errs[i] == nil {
			require.Nil(t, winner, "more than one winner")
			winner = bookings[i]
			continue
		}
		assert.True(t, errors.Is(errs[i], errors.ErrConflict), errs[i].Error())
	}
	require.NotNil(t, winner)
	assert.Equal(t, 50.0, winner.TotalCost)
	assert.Equal(t, 5.0, winner.DepositAmount)
	assert.Equal(t, 45.0, winner.RemainingAmount)
	assert.Equal(t, model.BookingStatusConfirmed, winner.Status)
	assert.Equal(t, model.PaymentStatusPending, winner.PaymentStatus)

	slot, err := f.store.Slots().Find(ctx, f.serviceA.ID, window("10:00", "11:00"))
	require.NoError(t, err)
	assert.True(t, slot.IsBooked)
	assert.Equal(t, winner.ID, *slot.BookingID)
	assert.Equal(t, []model.NotificationKind{model.NotificationBookingCreated}, f.notifier.Kinds())
}

func TestCreateIgnoresClientTotal(t *testing.T) {
	f := newFixture(t)
	req := f.request(f.serviceA, window("10:00", "11:00"), "", "Scalp Massage")
	bogus := 1.0
	req.TotalCost = &bogus

	b, err := f.svc.Create(context.Background(), uuid.New(), req)
	require.NoError(t, err)
	assert.Equal(t, 80.0, b.TotalCost)
	assert.Equal(t, 8.0, b.DepositAmount)
	assert.Equal(t, 72.0, b.RemainingAmount)
	require.Len(t, b.AddOns, 1)
	assert.Equal(t, f.massage.ID, b.AddOns[0].ID)
}

func TestCreateUsesBasePriceWithoutSlotPrice(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.Create(context.Background(), uuid.New(), f.request(f.serviceA, window("13:00", "14:00"), "alice", f.massage.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, 50.0, b.TotalCost)
}

func TestCreateStaffConflictAcrossServices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, uuid.New(), f.request(f.serviceA, window("10:00", "11:00"), "alice"))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, uuid.New(), f.request(f.serviceB, window("10:30", "11:30"), "alice"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Contains(t, err.Error(), "staff member alice already has a booking between 10:00 and 11:00")

	free, err := f.store.Slots().FindFree(ctx, f.serviceB.ID, window("10:30", "11:30"))
	require.NoError(t, err, "inventory untouched on conflict")
	assert.False(t, free.IsBooked)

	_, err = f.svc.Create(ctx, uuid.New(), f.request(f.serviceB, window("10:30", "11:30"), "carol"))
	assert.NoError(t, err, "another staff member is free")
}

func TestCreateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	caller := uuid.New()

	tests := []struct {
		name   string
		caller uuid.UUID
		mutate func(*model.CreateBookingRequest)
		code   errors.ErrorCode
	}{
		{"anonymous", uuid.Nil, func(*model.CreateBookingRequest) {}, errors.ErrUnauthenticated},
		{"booking for someone else", caller, func(r *model.CreateBookingRequest) { r.UserID = uuid.New() }, errors.ErrForbidden},
		{"unknown service", caller, func(r *model.CreateBookingRequest) { r.ServiceID = uuid.New() }, errors.ErrNotFound},
		{"no slot at time", caller, func(r *model.CreateBookingRequest) { r.TimeSlot = window("18:00", "19:00") }, errors.ErrNotFound},
		{"inverted window", caller, func(r *model.CreateBookingRequest) { r.TimeSlot = window("11:00", "10:00") }, errors.ErrValidation},
		{"service of another business", caller, func(r *model.CreateBookingRequest) { r.BusinessID = uuid.New() }, errors.ErrValidation},
		{"unknown add-on", caller, func(r *model.CreateBookingRequest) { r.AddOns = []string{"Hot Towel"} }, errors.ErrValidation},
		{"staff not on slot", caller, func(r *model.CreateBookingRequest) { s := "bob"; r.StaffID = &s }, errors.ErrValidation},
		{"bad email", caller, func(r *model.CreateBookingRequest) { r.CustomerEmail = "nope" }, errors.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(f.serviceA, window("10:00", "11:00"), "alice")
			tt.mutate(&req)
			_, err := f.svc.Create(ctx, tt.caller, req)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err), err.Error())
		})
	}

	free, err := f.store.Slots().FindFree(ctx, f.serviceA.ID, window("10:00", "11:00"))
	require.NoError(t, err)
	assert.False(t, free.IsBooked)
}

func TestCancelReleasesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := uuid.New()
	b, err := f.svc.Create(ctx, customer, f.request(f.serviceA, window("10:00", "11:00"), "alice"))
	require.NoError(t, err)

	reason := "can't make it"
	cancelled, err := f.svc.Cancel(ctx, customer, b.ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, cancelled.Status)
	assert.Equal(t, model.PaymentStatusRefunded, cancelled.PaymentStatus)
	assert.Equal(t, model.AdminPaymentStatusCancelled, cancelled.AdminPaymentStatus)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, customer, *cancelled.CancelledBy)
	assert.Equal(t, 50.0, cancelled.TotalCost, "money fields are kept")

	slot, err := f.store.Slots().Find(ctx, f.serviceA.ID, window("10:00", "11:00"))
	require.NoError(t, err)
	assert.False(t, slot.IsBooked)
	assert.Nil(t, slot.BookingID)

	again, err := f.svc.Cancel(ctx, customer, b.ID, nil)
	require.NoError(t, err, "cancelling twice is a no-op")
	assert.Equal(t, model.BookingStatusCancelled, again.Status)
	assert.Equal(t, []model.NotificationKind{model.NotificationBookingCreated, model.NotificationBookingCancelled}, f.notifier.Kinds())

	_, err = f.svc.Create(ctx, uuid.New(), f.request(f.serviceA, window("10:00", "11:00"), "alice"))
	assert.NoError(t, err, "released slot is bookable again")
}

func TestCancelThenDeleteIsSafe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := uuid.New()
	b, err := f.svc.Create(ctx, customer, f.request(f.serviceA, window("10:00", "11:00"), "alice"))
	require.NoError(t, err)
	other, err := f.svc.Create(ctx, uuid.New(), f.request(f.serviceA, window("15:00", "16:00"), "bob"))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, customer, b.ID, nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, customer, b.ID))

	_, err = f.store.Bookings().Get(ctx, b.ID)
	assert.Error(t, err)
	slot, err := f.store.Slots().Find(ctx, f.serviceA.ID, window("15:00", "16:00"))
	require.NoError(t, err)
	assert.Equal(t, other.ID, *slot.BookingID, "other slots untouched")
}

func TestDeleteAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := uuid.New()
	b, err := f.svc.Create(ctx, customer, f.request(f.serviceA, window("10:00", "11:00"), "alice"))
	require.NoError(t, err)

	err = f.svc.Delete(ctx, uuid.New(), b.ID)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	err = f.svc.Delete(ctx, customer, uuid.New())
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	require.NoError(t, f.svc.Delete(ctx, f.owner, b.ID), "business operator may delete")
	free, err := f.store.Slots().FindFree(ctx, f.serviceA.ID, window("10:00", "11:00"))
	require.NoError(t, err)
	assert.Nil(t, free.BookingID)
}

func TestCompleteAndDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := uuid.New()
	b, err := f.svc.Create(ctx, customer, f.request(f.serviceA, window("10:00", "11:00"), "alice"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, customer, b.ID, model.UpdateStatusRequest{Status: model.BookingStatusCompleted})
	assert.True(t, errors.Is(err, errors.ErrForbidden), "customers cannot complete")

	_, err = f.svc.RecordDeposit(ctx, customer, b.ID)
	assert.True(t, errors.Is(err, errors.ErrForbidden), "customers cannot mark their own deposit paid")
	got, err := f.svc.Get(ctx, customer, b.ID, Expand{})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, got.PaymentStatus)

	paid, err := f.svc.RecordDeposit(ctx, f.owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusDepositPaid, paid.PaymentStatus)

	_, err = f.svc.RecordDeposit(ctx, f.owner, b.ID)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	notes := "used the blue dye"
	done, err := f.svc.UpdateStatus(ctx, f.owner, b.ID, model.UpdateStatusRequest{Status: model.BookingStatusCompleted, BusinessNotes: &notes})
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCompleted, done.Status)
	assert.Equal(t, model.PaymentStatusFullyPaid, done.PaymentStatus)
	assert.Equal(t, model.AdminPaymentStatusPayoutEligible, done.AdminPaymentStatus)
	assert.Equal(t, notes, *done.BusinessNotes)

	slot, err := f.store.Slots().Find(ctx, f.serviceA.ID, window("10:00", "11:00"))
	require.NoError(t, err)
	assert.True(t, slot.IsBooked, "completed bookings keep their slot")

	_, err = f.svc.Cancel(ctx, customer, b.ID, nil)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	_, err = f.svc.UpdateStatus(ctx, f.owner, b.ID, model.UpdateStatusRequest{Status: model.BookingStatusPending})
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestStatusMetricCountsOnlyTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := uuid.New()
	b, err := f.svc.Create(ctx, customer, f.request(f.serviceA, window("10:00", "11:00"), "alice"))
	require.NoError(t, err)
	confirmed := f.svc.metrics.BookingStatus.WithLabelValues(string(model.BookingStatusConfirmed))
	cancelled := f.svc.metrics.BookingStatus.WithLabelValues(string(model.BookingStatusCancelled))
	base := testutil.ToFloat64(confirmed)

	_, err = f.svc.UpdateStatus(ctx, f.owner, b.ID, model.UpdateStatusRequest{Status: model.BookingStatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, base, testutil.ToFloat64(confirmed), "re-confirming changes nothing")

	_, err = f.svc.Cancel(ctx, customer, b.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, customer, b.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(cancelled))
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := uuid.New()
	b, err := f.svc.Create(ctx, customer, f.request(f.serviceA, window("10:00", "11:00"), "alice"))
	require.NoError(t, err)

	moved, err := f.svc.Reschedule(ctx, customer, b.ID, model.RescheduleRequest{TimeSlot: window("13:00", "14:00")})
	require.NoError(t, err)
	assert.Equal(t, window("13:00", "14:00"), moved.TimeSlot)
	assert.Equal(t, 50.0, moved.TotalCost, "price is fixed at creation")

	old, err := f.store.Slots().Find(ctx, f.serviceA.ID, window("10:00", "11:00"))
	require.NoError(t, err)
	assert.False(t, old.IsBooked)
	next, err := f.store.Slots().Find(ctx, f.serviceA.ID, window("13:00", "14:00"))
	require.NoError(t, err)
	assert.Equal(t, b.ID, *next.BookingID)
	assert.Equal(t, next.ID, moved.SlotID)

	kinds := f.notifier.Kinds()
	assert.Equal(t, model.NotificationBookingRescheduled, kinds[len(kinds)-1])

	_, err = f.svc.Reschedule(ctx, customer, b.ID, model.RescheduleRequest{TimeSlot: window("15:00", "16:00")})
	assert.True(t, errors.Is(err, errors.ErrValidation), "bob's slot does not take alice")

	_, err = f.svc.Reschedule(ctx, customer, b.ID, model.RescheduleRequest{TimeSlot: window("08:00", "09:00")})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRescheduleOntoTakenSlotKeepsOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := uuid.New()
	b, err := f.svc.Create(ctx, customer, f.request(f.serviceA, window("10:00", "11:00"), ""))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, uuid.New(), f.request(f.serviceA, window("13:00", "14:00"), ""))
	require.NoError(t, err)

	_, err = f.svc.Reschedule(ctx, customer, b.ID, model.RescheduleRequest{TimeSlot: window("13:00", "14:00")})
	require.True(t, errors.Is(err, errors.ErrConflict))

	got, err := f.store.Bookings().Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, window("10:00", "11:00"), got.TimeSlot)
	slot, err := f.store.Slots().Find(ctx, f.serviceA.ID, window("10:00", "11:00"))
	require.NoError(t, err)
	assert.Equal(t, b.ID, *slot.BookingID)
}

func TestListAndProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := uuid.New()
	late, err := f.svc.Create(ctx, customer, f.request(f.serviceA, window("13:00", "14:00"), ""))
	require.NoError(t, err)
	early, err := f.svc.Create(ctx, customer, f.request(f.serviceA, window("10:00", "11:00"), ""))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, uuid.New(), f.request(f.serviceB, window("10:30", "11:30"), ""))
	require.NoError(t, err)

	mine, err := f.svc.List(ctx, customer, model.BookingFilter{}, Expand{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, early.ID, mine[0].ID)
	assert.Equal(t, late.ID, mine[1].ID)
	assert.False(t, mine[0].Service.IsResolved())

	all, err := f.svc.List(ctx, f.owner, model.BookingFilter{BusinessID: &f.business.ID}, ParseExpand("service,business"))
	require.NoError(t, err)
	require.Len(t, all, 3)
	svc, ok := all[0].Service.Get()
	require.True(t, ok)
	assert.Equal(t, "Cut", svc.Name)
	biz, ok := all[0].Business.Get()
	require.True(t, ok)
	assert.Equal(t, f.business.ID, biz.ID)

	_, err = f.svc.List(ctx, customer, model.BookingFilter{BusinessID: &f.business.ID}, Expand{})
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	stranger := uuid.New()
	_, err = f.svc.List(ctx, stranger, model.BookingFilter{UserID: &customer}, Expand{})
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	cancelled := []model.BookingStatus{model.BookingStatusCancelled}
	none, err := f.svc.List(ctx, customer, model.BookingFilter{Status: cancelled}, Expand{})
	require.NoError(t, err)
	assert.Empty(t, none)

	view, err := f.svc.Get(ctx, f.owner, early.ID, Expand{Service: true})
	require.NoError(t, err)
	assert.True(t, view.Service.IsResolved())
	_, err = f.svc.Get(ctx, stranger, early.ID, Expand{})
	assert.True(t, errors.Is(err, errors.ErrForbidden))
}
