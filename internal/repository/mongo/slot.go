package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type slotRepository struct {
	col *mongo.Collection
}

func (r *slotRepository) Add(ctx context.Context, serviceID uuid.UUID, slots []*model.Slot) error {
	docs := make([]slotDocument, 0, len(slots))
	windows := make(bson.A, 0, len(slots))
	seen := make(map[model.TimeSlot]bool, len(slots))
	for _, s := range slots {
		if seen[s.Window()] {
			return repository.ErrDuplicateSlot
		}
		seen[s.Window()] = true
		doc := newSlotDocument(s)
		docs = append(docs, doc)
		windows = append(windows, bson.M{"date": doc.Date, "start_time": doc.StartTime, "end_time": doc.EndTime})
	}
	if len(docs) == 0 {
		return nil
	}
	// The window check and the push are one document update, so two
	// concurrent adds of the same window cannot both match.
	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"_id":   serviceID.String(),
			"slots": bson.M{"$not": bson.M{"$elemMatch": bson.M{"$or": windows}}},
		},
		bson.M{
			"$push": bson.M{"slots": bson.M{"$each": docs}},
			"$set":  bson.M{"updated_at": time.Now().UnixMilli()},
		},
	)
	if err != nil {
		return fmt.Errorf("add slots: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": serviceID.String()})
	if err != nil {
		return fmt.Errorf("add slots: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrDuplicateSlot
}

func (r *slotRepository) Remove(ctx context.Context, serviceID, slotID uuid.UUID) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"_id":   serviceID.String(),
			"slots": bson.M{"$elemMatch": bson.M{"id": slotID.String(), "is_booked": false}},
		},
		bson.M{"$pull": bson.M{"slots": bson.M{"id": slotID.String()}}},
	)
	if err != nil {
		return fmt.Errorf("remove slot: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": serviceID.String(), "slots.id": slotID.String()})
	if err != nil {
		return fmt.Errorf("remove slot: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrSlotUnavailable
}

func (r *slotRepository) Find(ctx context.Context, serviceID uuid.UUID, ts model.TimeSlot) (*model.Slot, error) {
	return r.findOne(ctx, serviceID, func(s *model.Slot) bool { return s.Matches(ts) })
}

func (r *slotRepository) FindFree(ctx context.Context, serviceID uuid.UUID, ts model.TimeSlot) (*model.Slot, error) {
	return r.findOne(ctx, serviceID, func(s *model.Slot) bool { return s.Matches(ts) && !s.IsBooked })
}

func (r *slotRepository) findOne(ctx context.Context, serviceID uuid.UUID, keep func(*model.Slot) bool) (*model.Slot, error) {
	svc, err := findService(ctx, r.col, serviceID)
	if err != nil {
		return nil, err
	}
	for _, s := range svc.Slots {
		if keep(s) {
			return s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *slotRepository) ListAvailable(ctx context.Context, serviceID uuid.UUID, date model.Date) ([]*model.Slot, error) {
	svc, err := findService(ctx, r.col, serviceID)
	if err != nil {
		return nil, err
	}
	out := []*model.Slot{}
	for _, s := range svc.Slots {
		if s.Date == date && !s.IsBooked {
			out = append(out, s)
		}
	}
	return out, nil
}

// Reserve matches the service and a free slot element in one filter and
// flips that element through the positional operator.
func (r *slotRepository) Reserve(ctx context.Context, serviceID, slotID, bookingID uuid.UUID) error {
	now := time.Now().UnixMilli()
	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"_id":   serviceID.String(),
			"slots": bson.M{"$elemMatch": bson.M{"id": slotID.String(), "is_booked": false}},
		},
		bson.M{"$set": bson.M{
			"slots.$.is_booked":  true,
			"slots.$.booking_id": bookingID.String(),
			"slots.$.updated_at": now,
		}},
	)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrSlotUnavailable
	}
	return nil
}

func (r *slotRepository) Release(ctx context.Context, serviceID uuid.UUID, ts model.TimeSlot, bookingID uuid.UUID) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"_id": serviceID.String(),
			"slots": bson.M{"$elemMatch": bson.M{
				"date":       ts.Date.String(),
				"start_time": ts.StartTime.String(),
				"end_time":   ts.EndTime.String(),
				"booking_id": bookingID.String(),
			}},
		},
		bson.M{"$set": bson.M{
			"slots.$.is_booked":  false,
			"slots.$.booking_id": nil,
			"slots.$.updated_at": time.Now().UnixMilli(),
		}},
	)
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *slotRepository) ListBookedBefore(ctx context.Context, cursor repository.SlotCursor, limit int) ([]*model.Slot, error) {
	ms := cursor.UpdatedAt.UnixMilli()
	cur, err := r.col.Find(ctx,
		bson.M{"slots": bson.M{"$elemMatch": bson.M{"is_booked": true, "updated_at": bson.M{"$lte": ms}}}},
		options.Find().SetProjection(bson.M{"_id": 1, "slots": 1, "business_id": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("find booked slots: %w", err)
	}
	defer cur.Close(ctx)

	out := []*model.Slot{}
	for cur.Next(ctx) {
		var doc serviceDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode service: %w", err)
		}
		serviceID, err := uuid.Parse(doc.ID)
		if err != nil {
			return nil, err
		}
		for _, sd := range doc.Slots {
			if !sd.IsBooked || sd.UpdatedAt > ms {
				continue
			}
			slot, err := sd.toModel(serviceID)
			if err != nil {
				return nil, err
			}
			if cursor.Admits(slot) {
				out = append(out, slot)
			}
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	repository.SortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
