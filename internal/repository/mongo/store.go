// Package mongo stores services with their slots embedded in one document,
// so a reservation is a single positional conditional update on the
// service. Multi-document writes run in session transactions, which need a
// replica set.
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

	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/repository"
)

const (
	colBusinesses = "businesses"
	colServices   = "services"
	colBookings   = "bookings"
	colOutbox     = "outbox_events"
	colStaffLocks = "staff_locks"
)

var errLockOutsideTx = errors.New("mongo: staff lock requires a transaction")

type Client struct {
	DB *mongo.Database
}

func New(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(cfg.URI).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := m.Ping(ctx, nil); err != nil {
		_ = m.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Client{DB: m.Database(cfg.Database)}, nil
}

// EnsureIndexes creates the indexes the queries below rely on.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colServices: {
			{Keys: bson.D{{Key: "business_id", Value: 1}}},
			{Keys: bson.D{{Key: "slots.id", Value: 1}}},
			{Keys: bson.D{{Key: "slots.is_booked", Value: 1}, {Key: "slots.updated_at", Value: 1}}},
		},
		colBookings: {
			{Keys: bson.D{
				{Key: "business_id", Value: 1},
				{Key: "staff_id", Value: 1},
				{Key: "time_slot.date", Value: 1},
				{Key: "status", Value: 1},
			}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "time_slot.date", Value: 1}}},
		},
		colOutbox: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}
	for col, models := range indexes {
		if _, err := c.DB.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", col, err)
		}
	}
	return nil
}

// Store implements repository.Store. A Store returned to a WithTx callback
// has inTx set; its repositories must be called with the session context
// the callback received.
type Store struct {
	client *Client
	inTx   bool
}

func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func (s *Store) col(name string) *mongo.Collection {
	return s.client.DB.Collection(name)
}

func (s *Store) Businesses() repository.BusinessRepository {
	return &businessRepository{col: s.col(colBusinesses)}
}

func (s *Store) Services() repository.ServiceRepository {
	return &serviceRepository{col: s.col(colServices)}
}

func (s *Store) Slots() repository.SlotRepository {
	return &slotRepository{col: s.col(colServices)}
}

func (s *Store) Bookings() repository.BookingRepository {
	return &bookingRepository{col: s.col(colBookings)}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{col: s.col(colOutbox)}
}

// WithTx runs fn inside a session transaction. The driver retries fn on
// transient transaction errors, including write conflicts on the staff lock
// document, so fn must not have side effects outside the store.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	session, err := s.client.DB.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(s.client.DB.ReadConcern()).
		SetWriteConcern(s.client.DB.WriteConcern())
	tx := &Store{client: s.client, inTx: true}
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, tx)
	}, txOpts)
	return err
}

// LockStaff bumps a per business+staff counter inside the transaction. Two
// transactions locking the same staff member conflict on that document and
// one of them is retried after the other commits.
func (s *Store) LockStaff(ctx context.Context, businessID uuid.UUID, staffID string) error {
	if !s.inTx {
		return errLockOutsideTx
	}
	_, err := s.col(colStaffLocks).UpdateOne(ctx,
		bson.M{"_id": businessID.String() + "/" + staffID},
		bson.M{"$inc": bson.M{"seq": 1}, "$currentDate": bson.M{"locked_at": true}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("lock staff %s: %w", staffID, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.DB.Client().Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.DB.Client().Disconnect(ctx)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return err
}
