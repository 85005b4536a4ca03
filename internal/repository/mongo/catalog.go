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

type businessRepository struct {
	col *mongo.Collection
}

func (r *businessRepository) Create(ctx context.Context, business *model.Business) error {
	if _, err := r.col.InsertOne(ctx, newBusinessDocument(business)); err != nil {
		return fmt.Errorf("insert business: %w", err)
	}
	return nil
}

func (r *businessRepository) Get(ctx context.Context, id uuid.UUID) (*model.Business, error) {
	var doc businessDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return doc.toModel()
}

type serviceRepository struct {
	col *mongo.Collection
}

func (r *serviceRepository) Create(ctx context.Context, service *model.Service) error {
	if _, err := r.col.InsertOne(ctx, newServiceDocument(service)); err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

func (r *serviceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	return findService(ctx, r.col, id)
}

func (r *serviceRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*model.Service, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetProjection(bson.M{"slots": 0})
	cur, err := r.col.Find(ctx, bson.M{"business_id": businessID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("find services: %w", err)
	}
	var docs []serviceDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode services: %w", err)
	}
	out := make([]*model.Service, 0, len(docs))
	for _, d := range docs {
		svc, err := d.toModel()
		if err != nil {
			return nil, err
		}
		svc.Slots = nil
		out = append(out, svc)
	}
	return out, nil
}

func (r *serviceRepository) ReplaceAddOns(ctx context.Context, serviceID uuid.UUID, addOns []model.AddOn) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": serviceID.String()},
		bson.M{"$set": bson.M{
			"add_ons":    newAddOnDocuments(addOns),
			"updated_at": time.Now().UnixMilli(),
		}},
	)
	if err != nil {
		return fmt.Errorf("replace add-ons: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func findService(ctx context.Context, col *mongo.Collection, id uuid.UUID) (*model.Service, error) {
	var doc serviceDocument
	if err := col.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return doc.toModel()
}
