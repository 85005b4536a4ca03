package mongo

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
)

// Ids, dates and clock times are stored as strings so that exact-match
// filters compare the same canonical text the API renders.

type businessDocument struct {
	ID           string `bson:"_id"`
	OwnerID      string `bson:"owner_id"`
	Name         string `bson:"name"`
	ContactEmail string `bson:"contact_email,omitempty"`
	CreatedAt    int64  `bson:"created_at"`
	UpdatedAt    int64  `bson:"updated_at"`
}

func newBusinessDocument(b *model.Business) businessDocument {
	return businessDocument{
		ID:           b.ID.String(),
		OwnerID:      b.OwnerID.String(),
		Name:         b.Name,
		ContactEmail: b.ContactEmail,
		CreatedAt:    b.CreatedAt.UnixMilli(),
		UpdatedAt:    b.UpdatedAt.UnixMilli(),
	}
}

func (d businessDocument) toModel() (*model.Business, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	owner, err := uuid.Parse(d.OwnerID)
	if err != nil {
		return nil, err
	}
	return &model.Business{
		Base:         model.Base{ID: id, CreatedAt: timestampToTime(d.CreatedAt), UpdatedAt: timestampToTime(d.UpdatedAt)},
		OwnerID:      owner,
		Name:         d.Name,
		ContactEmail: d.ContactEmail,
	}, nil
}

// serviceDocument embeds its slots; the slot array is the only place slot
// occupancy lives.
type serviceDocument struct {
	ID              string          `bson:"_id"`
	BusinessID      string          `bson:"business_id"`
	Name            string          `bson:"name"`
	Description     string          `bson:"description,omitempty"`
	BasePrice       float64         `bson:"base_price"`
	DurationMinutes int             `bson:"duration_minutes"`
	AddOns          []addOnDocument `bson:"add_ons"`
	Slots           []slotDocument  `bson:"slots"`
	CreatedAt       int64           `bson:"created_at"`
	UpdatedAt       int64           `bson:"updated_at"`
}

type addOnDocument struct {
	ID   string  `bson:"id"`
	Name string  `bson:"name"`
	Cost float64 `bson:"cost"`
}

type slotDocument struct {
	ID              string   `bson:"id"`
	Date            string   `bson:"date"`
	StartTime       string   `bson:"start_time"`
	EndTime         string   `bson:"end_time"`
	Price           *float64 `bson:"price,omitempty"`
	DurationMinutes int      `bson:"duration_minutes"`
	StaffIDs        []string `bson:"staff_ids"`
	IsBooked        bool     `bson:"is_booked"`
	BookingID       *string  `bson:"booking_id"`
	CreatedAt       int64    `bson:"created_at"`
	UpdatedAt       int64    `bson:"updated_at"`
}

func newServiceDocument(s *model.Service) serviceDocument {
	doc := serviceDocument{
		ID:              s.ID.String(),
		BusinessID:      s.BusinessID.String(),
		Name:            s.Name,
		Description:     s.Description,
		BasePrice:       s.BasePrice,
		DurationMinutes: s.DurationMinutes,
		AddOns:          newAddOnDocuments(s.AddOns),
		Slots:           make([]slotDocument, 0, len(s.Slots)),
		CreatedAt:       s.CreatedAt.UnixMilli(),
		UpdatedAt:       s.UpdatedAt.UnixMilli(),
	}
	for _, slot := range s.Slots {
		doc.Slots = append(doc.Slots, newSlotDocument(slot))
	}
	return doc
}

func newAddOnDocuments(addOns []model.AddOn) []addOnDocument {
	out := make([]addOnDocument, 0, len(addOns))
	for _, a := range addOns {
		out = append(out, addOnDocument{ID: a.ID.String(), Name: a.Name, Cost: a.Cost})
	}
	return out
}

func newSlotDocument(s *model.Slot) slotDocument {
	doc := slotDocument{
		ID:              s.ID.String(),
		Date:            s.Date.String(),
		StartTime:       s.StartTime.String(),
		EndTime:         s.EndTime.String(),
		Price:           s.Price,
		DurationMinutes: s.DurationMinutes,
		StaffIDs:        s.StaffIDs,
		IsBooked:        s.IsBooked,
		CreatedAt:       s.CreatedAt.UnixMilli(),
		UpdatedAt:       s.UpdatedAt.UnixMilli(),
	}
	if doc.StaffIDs == nil {
		doc.StaffIDs = []string{}
	}
	if s.BookingID != nil {
		id := s.BookingID.String()
		doc.BookingID = &id
	}
	return doc
}

func (d serviceDocument) toModel() (*model.Service, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	business, err := uuid.Parse(d.BusinessID)
	if err != nil {
		return nil, err
	}
	svc := &model.Service{
		Base:            model.Base{ID: id, CreatedAt: timestampToTime(d.CreatedAt), UpdatedAt: timestampToTime(d.UpdatedAt)},
		BusinessID:      business,
		Name:            d.Name,
		Description:     d.Description,
		BasePrice:       d.BasePrice,
		DurationMinutes: d.DurationMinutes,
		AddOns:          make([]model.AddOn, 0, len(d.AddOns)),
		Slots:           make([]*model.Slot, 0, len(d.Slots)),
	}
	for _, a := range d.AddOns {
		addOnID, err := uuid.Parse(a.ID)
		if err != nil {
			return nil, err
		}
		svc.AddOns = append(svc.AddOns, model.AddOn{ID: addOnID, ServiceID: id, Name: a.Name, Cost: a.Cost})
	}
	for _, sd := range d.Slots {
		slot, err := sd.toModel(id)
		if err != nil {
			return nil, err
		}
		svc.Slots = append(svc.Slots, slot)
	}
	model.SortSlots(svc.Slots)
	return svc, nil
}

func (d slotDocument) toModel(serviceID uuid.UUID) (*model.Slot, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	date, err := model.ParseDate(d.Date)
	if err != nil {
		return nil, err
	}
	start, err := model.ParseClock(d.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := model.ParseClock(d.EndTime)
	if err != nil {
		return nil, err
	}
	slot := &model.Slot{
		ID:              id,
		ServiceID:       serviceID,
		Date:            date,
		StartTime:       start,
		EndTime:         end,
		Price:           d.Price,
		DurationMinutes: d.DurationMinutes,
		StaffIDs:        d.StaffIDs,
		IsBooked:        d.IsBooked,
		CreatedAt:       timestampToTime(d.CreatedAt),
		UpdatedAt:       timestampToTime(d.UpdatedAt),
	}
	if d.BookingID != nil {
		bookingID, err := uuid.Parse(*d.BookingID)
		if err != nil {
			return nil, err
		}
		slot.BookingID = &bookingID
	}
	return slot, nil
}

type timeSlotDocument struct {
	Date      string `bson:"date"`
	StartTime string `bson:"start_time"`
	EndTime   string `bson:"end_time"`
}

func newTimeSlotDocument(ts model.TimeSlot) timeSlotDocument {
	return timeSlotDocument{Date: ts.Date.String(), StartTime: ts.StartTime.String(), EndTime: ts.EndTime.String()}
}

func (d timeSlotDocument) toModel() (model.TimeSlot, error) {
	var (
		ts  model.TimeSlot
		err error
	)
	if ts.Date, err = model.ParseDate(d.Date); err != nil {
		return ts, err
	}
	if ts.StartTime, err = model.ParseClock(d.StartTime); err != nil {
		return ts, err
	}
	if ts.EndTime, err = model.ParseClock(d.EndTime); err != nil {
		return ts, err
	}
	return ts, nil
}

type bookingDocument struct {
	ID                 string           `bson:"_id"`
	UserID             string           `bson:"user_id"`
	BusinessID         string           `bson:"business_id"`
	ServiceID          string           `bson:"service_id"`
	SlotID             string           `bson:"slot_id"`
	StaffID            *string          `bson:"staff_id"`
	TimeSlot           timeSlotDocument `bson:"time_slot"`
	AddOns             []addOnDocument  `bson:"add_ons"`
	TotalCost          float64          `bson:"total_cost"`
	DepositAmount      float64          `bson:"deposit_amount"`
	RemainingAmount    float64          `bson:"remaining_amount"`
	PlatformFee        float64          `bson:"platform_fee"`
	ServiceAmount      float64          `bson:"service_amount"`
	Status             string           `bson:"status"`
	PaymentStatus      string           `bson:"payment_status"`
	AdminPaymentStatus string           `bson:"admin_payment_status"`
	CustomerEmail      string           `bson:"customer_email,omitempty"`
	CustomerNotes      *string          `bson:"customer_notes,omitempty"`
	BusinessNotes      *string          `bson:"business_notes,omitempty"`
	CancelledAt        *int64           `bson:"cancelled_at,omitempty"`
	CancellationReason *string          `bson:"cancellation_reason,omitempty"`
	CancelledBy        *string          `bson:"cancelled_by,omitempty"`
	CreatedAt          int64            `bson:"created_at"`
	UpdatedAt          int64            `bson:"updated_at"`
}

func newBookingDocument(b *model.Booking) bookingDocument {
	doc := bookingDocument{
		ID:                 b.ID.String(),
		UserID:             b.UserID.String(),
		BusinessID:         b.BusinessID.String(),
		ServiceID:          b.ServiceID.String(),
		SlotID:             b.SlotID.String(),
		StaffID:            b.StaffID,
		TimeSlot:           newTimeSlotDocument(b.TimeSlot),
		AddOns:             make([]addOnDocument, 0, len(b.AddOns)),
		TotalCost:          b.TotalCost,
		DepositAmount:      b.DepositAmount,
		RemainingAmount:    b.RemainingAmount,
		PlatformFee:        b.PlatformFee,
		ServiceAmount:      b.ServiceAmount,
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		AdminPaymentStatus: string(b.AdminPaymentStatus),
		CustomerEmail:      b.CustomerEmail,
		CustomerNotes:      b.CustomerNotes,
		BusinessNotes:      b.BusinessNotes,
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt.UnixMilli(),
		UpdatedAt:          b.UpdatedAt.UnixMilli(),
	}
	for _, a := range b.AddOns {
		doc.AddOns = append(doc.AddOns, addOnDocument{ID: a.ID.String(), Name: a.Name, Cost: a.Cost})
	}
	if b.CancelledAt != nil {
		ms := b.CancelledAt.UnixMilli()
		doc.CancelledAt = &ms
	}
	if b.CancelledBy != nil {
		by := b.CancelledBy.String()
		doc.CancelledBy = &by
	}
	return doc
}

func (d bookingDocument) toModel() (*model.Booking, error) {
	ids := make([]uuid.UUID, 5)
	for i, raw := range []string{d.ID, d.UserID, d.BusinessID, d.ServiceID, d.SlotID} {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	ts, err := d.TimeSlot.toModel()
	if err != nil {
		return nil, err
	}
	addOns := make([]model.BookedAddOn, 0, len(d.AddOns))
	for _, a := range d.AddOns {
		id, err := uuid.Parse(a.ID)
		if err != nil {
			return nil, err
		}
		addOns = append(addOns, model.BookedAddOn{ID: id, Name: a.Name, Cost: a.Cost})
	}
	b := &model.Booking{
		ID:                 ids[0],
		UserID:             ids[1],
		BusinessID:         ids[2],
		ServiceID:          ids[3],
		SlotID:             ids[4],
		StaffID:            d.StaffID,
		TimeSlot:           ts,
		AddOns:             addOns,
		TotalCost:          d.TotalCost,
		DepositAmount:      d.DepositAmount,
		RemainingAmount:    d.RemainingAmount,
		PlatformFee:        d.PlatformFee,
		ServiceAmount:      d.ServiceAmount,
		Status:             model.BookingStatus(d.Status),
		PaymentStatus:      model.PaymentStatus(d.PaymentStatus),
		AdminPaymentStatus: model.AdminPaymentStatus(d.AdminPaymentStatus),
		CustomerEmail:      d.CustomerEmail,
		CustomerNotes:      d.CustomerNotes,
		BusinessNotes:      d.BusinessNotes,
		CancellationReason: d.CancellationReason,
		CreatedAt:          timestampToTime(d.CreatedAt),
		UpdatedAt:          timestampToTime(d.UpdatedAt),
	}
	if d.CancelledAt != nil {
		t := timestampToTime(*d.CancelledAt)
		b.CancelledAt = &t
	}
	if d.CancelledBy != nil {
		by, err := uuid.Parse(*d.CancelledBy)
		if err != nil {
			return nil, err
		}
		b.CancelledBy = &by
	}
	return b, nil
}

type outboxDocument struct {
	ID           string     `bson:"_id"`
	AggregateID  string     `bson:"aggregate_id"`
	EventType    string     `bson:"event_type"`
	Topic        string     `bson:"topic"`
	Payload      string     `bson:"payload"`
	Status       string     `bson:"status"`
	ErrorMessage *string    `bson:"error_message,omitempty"`
	RetryCount   int        `bson:"retry_count"`
	RetryAt      *time.Time `bson:"retry_at"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
	ProcessedAt  *time.Time `bson:"processed_at,omitempty"`
}

func newOutboxDocument(e *model.OutboxEvent) outboxDocument {
	return outboxDocument{
		ID:           e.ID.String(),
		AggregateID:  e.AggregateID.String(),
		EventType:    e.EventType,
		Topic:        e.Topic,
		Payload:      string(e.Payload),
		Status:       string(model.OutboxStatusPending),
		ErrorMessage: e.ErrorMessage,
		RetryCount:   e.RetryCount,
		RetryAt:      e.RetryAt,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func (d outboxDocument) toModel() (*model.OutboxEvent, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	aggregate, err := uuid.Parse(d.AggregateID)
	if err != nil {
		return nil, err
	}
	return &model.OutboxEvent{
		ID:           id,
		AggregateID:  aggregate,
		EventType:    d.EventType,
		Topic:        d.Topic,
		Payload:      []byte(d.Payload),
		Status:       model.OutboxStatus(d.Status),
		ErrorMessage: d.ErrorMessage,
		RetryCount:   d.RetryCount,
		RetryAt:      d.RetryAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		ProcessedAt:  d.ProcessedAt,
	}, nil
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
