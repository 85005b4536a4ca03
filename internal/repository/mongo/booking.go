package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type bookingRepository struct {
	col *mongo.Collection
}

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if _, err := r.col.InsertOne(ctx, newBookingDocument(booking)); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return doc.toModel()
}

// Update writes the fields a lifecycle transition or reschedule may change.
func (r *bookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	doc := newBookingDocument(booking)
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$set": bson.M{
			"slot_id":              doc.SlotID,
			"time_slot":            doc.TimeSlot,
			"status":               doc.Status,
			"payment_status":       doc.PaymentStatus,
			"admin_payment_status": doc.AdminPaymentStatus,
			"business_notes":       doc.BusinessNotes,
			"cancelled_at":         doc.CancelledAt,
			"cancellation_reason":  doc.CancellationReason,
			"cancelled_by":         doc.CancelledBy,
			"updated_at":           doc.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *bookingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *bookingRepository) List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "time_slot.date", Value: 1},
		{Key: "time_slot.start_time", Value: 1},
		{Key: "created_at", Value: 1},
	})
	cur, err := r.col.Find(ctx, bookingQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find bookings: %w", err)
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}
	out := make([]*model.Booking, 0, len(docs))
	for _, d := range docs {
		b, err := d.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *bookingRepository) ActiveForStaff(ctx context.Context, businessID uuid.UUID, staffID string, date model.Date) ([]*model.Booking, error) {
	return r.List(ctx, model.BookingFilter{
		BusinessID: &businessID,
		StaffID:    &staffID,
		Status:     model.ActiveStatuses,
		From:       &date,
		To:         &date,
	})
}

// bookingQuery pushes a BookingFilter down. Dates are zero-padded
// YYYY-MM-DD strings, so range filters compare correctly as strings.
func bookingQuery(f model.BookingFilter) bson.M {
	q := bson.M{}
	if f.BusinessID != nil {
		q["business_id"] = f.BusinessID.String()
	}
	if f.UserID != nil {
		q["user_id"] = f.UserID.String()
	}
	if f.ServiceID != nil {
		q["service_id"] = f.ServiceID.String()
	}
	if f.StaffID != nil {
		q["staff_id"] = *f.StaffID
	}
	if len(f.Status) > 0 {
		statuses := make([]string, 0, len(f.Status))
		for _, s := range f.Status {
			statuses = append(statuses, string(s))
		}
		q["status"] = bson.M{"$in": statuses}
	}
	dateRange := bson.M{}
	if f.From != nil {
		dateRange["$gte"] = f.From.String()
	}
	if f.To != nil {
		dateRange["$lte"] = f.To.String()
	}
	if len(dateRange) > 0 {
		q["time_slot.date"] = dateRange
	}
	return q
}
