package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type outboxRepository struct {
	col *mongo.Collection
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	if _, err := r.col.InsertOne(ctx, newOutboxDocument(event)); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// ClaimPending leases events one at a time with FindOneAndUpdate, which is
// atomic per document, so concurrent processors never claim the same event.
func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	var out []*model.OutboxEvent
	for len(out) < limit {
		now := time.Now().UTC()
		filter := bson.M{"$or": bson.A{
			bson.M{
				"status": string(model.OutboxStatusPending),
				"$or": bson.A{
					bson.M{"retry_at": nil},
					bson.M{"retry_at": bson.M{"$lte": now}},
				},
			},
			bson.M{
				"status":     string(model.OutboxStatusProcessing),
				"updated_at": bson.M{"$lt": now.Add(-lease)},
			},
		}}
		update := bson.M{"$set": bson.M{"status": string(model.OutboxStatusProcessing), "updated_at": now}}
		opts := options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "created_at", Value: 1}}).
			SetReturnDocument(options.After)

		var doc outboxDocument
		err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("claim outbox event: %w", err)
		}
		event, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.update(ctx, id, bson.M{
		"$set":   bson.M{"status": string(model.OutboxStatusProcessed), "processed_at": now, "updated_at": now},
		"$unset": bson.M{"error_message": ""},
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	status := model.OutboxStatusFailed
	if retryAt != nil {
		status = model.OutboxStatusPending
	}
	return r.update(ctx, id, bson.M{
		"$set": bson.M{
			"status":        string(status),
			"error_message": errMsg,
			"retry_at":      retryAt,
			"updated_at":    time.Now().UTC(),
		},
		"$inc": bson.M{"retry_count": 1},
	})
}

func (r *outboxRepository) update(ctx context.Context, id uuid.UUID, update bson.M) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id.String()}, update)
	if err != nil {
		return fmt.Errorf("update outbox event: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{
		"status":       string(model.OutboxStatusProcessed),
		"processed_at": bson.M{"$lt": before.UTC()},
	})
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return res.DeletedCount, nil
}
