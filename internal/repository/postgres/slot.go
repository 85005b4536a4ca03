package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

const slotColumns = `id, service_id, slot_date, start_time, end_time, price, duration_minutes,
		staff_ids, is_booked, booking_id, created_at, updated_at`

type slotRow struct {
	ID              uuid.UUID       `db:"id"`
	ServiceID       uuid.UUID       `db:"service_id"`
	Date            model.Date      `db:"slot_date"`
	StartTime       model.ClockTime `db:"start_time"`
	EndTime         model.ClockTime `db:"end_time"`
	Price           sql.NullFloat64 `db:"price"`
	DurationMinutes int             `db:"duration_minutes"`
	StaffIDs        pq.StringArray  `db:"staff_ids"`
	IsBooked        bool            `db:"is_booked"`
	BookingID       uuid.NullUUID   `db:"booking_id"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (r slotRow) toModel() *model.Slot {
	s := &model.Slot{
		ID:              r.ID,
		ServiceID:       r.ServiceID,
		Date:            r.Date,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		DurationMinutes: r.DurationMinutes,
		StaffIDs:        []string(r.StaffIDs),
		IsBooked:        r.IsBooked,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if s.StaffIDs == nil {
		s.StaffIDs = []string{}
	}
	if r.Price.Valid {
		price := r.Price.Float64
		s.Price = &price
	}
	if r.BookingID.Valid {
		id := r.BookingID.UUID
		s.BookingID = &id
	}
	return s
}

type slotRepository struct {
	q sqlx.ExtContext
}

func (r *slotRepository) Add(ctx context.Context, serviceID uuid.UUID, slots []*model.Slot) error {
	return insertSlots(ctx, r.q, serviceID, slots)
}

func (r *slotRepository) Remove(ctx context.Context, serviceID, slotID uuid.UUID) error {
	result, err := r.q.ExecContext(ctx,
		`DELETE FROM slots WHERE service_id = $1 AND id = $2 AND is_booked = FALSE`,
		serviceID, slotID)
	if err != nil {
		return fmt.Errorf("failed to remove slot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var booked bool
	err = sqlx.GetContext(ctx, r.q, &booked,
		`SELECT is_booked FROM slots WHERE service_id = $1 AND id = $2`, serviceID, slotID)
	if err != nil {
		return notFound(err, "slot")
	}
	return repository.ErrSlotUnavailable
}

func (r *slotRepository) Find(ctx context.Context, serviceID uuid.UUID, ts model.TimeSlot) (*model.Slot, error) {
	return r.findOne(ctx, `WHERE service_id = $1 AND slot_date = $2 AND start_time = $3 AND end_time = $4`,
		serviceID, ts.Date, ts.StartTime, ts.EndTime)
}

func (r *slotRepository) FindFree(ctx context.Context, serviceID uuid.UUID, ts model.TimeSlot) (*model.Slot, error) {
	return r.findOne(ctx, `WHERE service_id = $1 AND slot_date = $2 AND start_time = $3 AND end_time = $4 AND is_booked = FALSE`,
		serviceID, ts.Date, ts.StartTime, ts.EndTime)
}

func (r *slotRepository) findOne(ctx context.Context, where string, args ...interface{}) (*model.Slot, error) {
	slots, err := selectSlots(ctx, r.q, where, args...)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, repository.ErrNotFound
	}
	return slots[0], nil
}

func (r *slotRepository) ListAvailable(ctx context.Context, serviceID uuid.UUID, date model.Date) ([]*model.Slot, error) {
	return selectSlots(ctx, r.q, `WHERE service_id = $1 AND slot_date = $2 AND is_booked = FALSE`, serviceID, date)
}

// Reserve is the conditional flip: the WHERE clause and the SET are applied
// by one UPDATE, so of two concurrent callers only one sees a row change.
func (r *slotRepository) Reserve(ctx context.Context, serviceID, slotID, bookingID uuid.UUID) error {
	query := `
		UPDATE slots
		SET is_booked = TRUE, booking_id = $3, updated_at = NOW()
		WHERE service_id = $1 AND id = $2 AND is_booked = FALSE
	`
	result, err := r.q.ExecContext(ctx, query, serviceID, slotID, bookingID)
	if err != nil {
		return fmt.Errorf("failed to reserve slot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrSlotUnavailable
	}
	return nil
}

func (r *slotRepository) Release(ctx context.Context, serviceID uuid.UUID, ts model.TimeSlot, bookingID uuid.UUID) (bool, error) {
	query := `
		UPDATE slots
		SET is_booked = FALSE, booking_id = NULL, updated_at = NOW()
		WHERE service_id = $1 AND slot_date = $2 AND start_time = $3 AND end_time = $4
		AND booking_id = $5
	`
	result, err := r.q.ExecContext(ctx, query, serviceID, ts.Date, ts.StartTime, ts.EndTime, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to release slot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *slotRepository) ListBookedBefore(ctx context.Context, cursor repository.SlotCursor, limit int) ([]*model.Slot, error) {
	slots, err := selectSlots(ctx, r.q, `WHERE is_booked = TRUE AND (updated_at, id) < ($1, $2)
		ORDER BY updated_at DESC, id DESC LIMIT $3`, cursor.UpdatedAt, cursor.ID, limit)
	if err != nil {
		return nil, err
	}
	repository.SortNewestFirst(slots)
	return slots, nil
}

func selectSlots(ctx context.Context, q sqlx.QueryerContext, where string, args ...interface{}) ([]*model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots ` + where
	var rows []slotRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select slots: %w", err)
	}
	slots := make([]*model.Slot, 0, len(rows))
	for _, row := range rows {
		slots = append(slots, row.toModel())
	}
	model.SortSlots(slots)
	return slots, nil
}

func insertSlots(ctx context.Context, q sqlx.ExecerContext, serviceID uuid.UUID, slots []*model.Slot) error {
	query := `
		INSERT INTO slots (
			id, service_id, slot_date, start_time, end_time, price, duration_minutes,
			staff_ids, is_booked, booking_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, NULL, $9, $10)
	`
	for _, s := range slots {
		_, err := q.ExecContext(ctx, query,
			s.ID,
			serviceID,
			s.Date,
			s.StartTime,
			s.EndTime,
			s.Price,
			s.DurationMinutes,
			pq.Array(s.StaffIDs),
			s.CreatedAt,
			s.UpdatedAt,
		)
		if err != nil {
			var pqErr *pq.Error
			if stderrors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
				return repository.ErrDuplicateSlot
			}
			return fmt.Errorf("failed to insert slot %s: %w", s.Window(), err)
		}
	}
	return nil
}
