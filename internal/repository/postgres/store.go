package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/booking-api/internal/repository"
)

// Store implements repository.Store on PostgreSQL. A Store returned to a
// WithTx callback runs every query on that transaction.
type Store struct {
	db   *sqlx.DB
	q    sqlx.ExtContext
	inTx bool
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Businesses() repository.BusinessRepository {
	return &businessRepository{q: s.q}
}

func (s *Store) Services() repository.ServiceRepository {
	return &serviceRepository{q: s.q}
}

func (s *Store) Slots() repository.SlotRepository {
	return &slotRepository{q: s.q}
}

func (s *Store) Bookings() repository.BookingRepository {
	return &bookingRepository{q: s.q}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{q: s.q}
}

// WithTx executes a function within a transaction
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &Store{db: s.db, q: tx, inTx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LockStaff takes a transaction scoped advisory lock on business+staff.
func (s *Store) LockStaff(ctx context.Context, businessID uuid.UUID, staffID string) error {
	if !s.inTx {
		return fmt.Errorf("staff lock requires a transaction")
	}
	_, err := s.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, businessID.String()+"/"+staffID)
	if err != nil {
		return fmt.Errorf("failed to lock staff schedule: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func notFound(err error, what string) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
