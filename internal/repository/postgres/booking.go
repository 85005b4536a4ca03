package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

const bookingColumns = `id, user_id, business_id, service_id, slot_id, staff_id,
		booking_date, start_time, end_time, add_ons,
		total_cost, deposit_amount, remaining_amount, platform_fee, service_amount,
		status, payment_status, admin_payment_status,
		customer_email, customer_notes, business_notes,
		cancelled_at, cancellation_reason, cancelled_by, created_at, updated_at`

// addOnList is stored as JSONB.
type addOnList []model.BookedAddOn

func (a addOnList) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]model.BookedAddOn(a))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (a *addOnList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*a = addOnList{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into add-ons", src)
	}
	return json.Unmarshal(raw, (*[]model.BookedAddOn)(a))
}

type bookingRow struct {
	ID                 uuid.UUID       `db:"id"`
	UserID             uuid.UUID       `db:"user_id"`
	BusinessID         uuid.UUID       `db:"business_id"`
	ServiceID          uuid.UUID       `db:"service_id"`
	SlotID             uuid.UUID       `db:"slot_id"`
	StaffID            sql.NullString  `db:"staff_id"`
	Date               model.Date      `db:"booking_date"`
	StartTime          model.ClockTime `db:"start_time"`
	EndTime            model.ClockTime `db:"end_time"`
	AddOns             addOnList       `db:"add_ons"`
	TotalCost          float64         `db:"total_cost"`
	DepositAmount      float64         `db:"deposit_amount"`
	RemainingAmount    float64         `db:"remaining_amount"`
	PlatformFee        float64         `db:"platform_fee"`
	ServiceAmount      float64         `db:"service_amount"`
	Status             string          `db:"status"`
	PaymentStatus      string          `db:"payment_status"`
	AdminPaymentStatus string          `db:"admin_payment_status"`
	CustomerEmail      string          `db:"customer_email"`
	CustomerNotes      sql.NullString  `db:"customer_notes"`
	BusinessNotes      sql.NullString  `db:"business_notes"`
	CancelledAt        sql.NullTime    `db:"cancelled_at"`
	CancellationReason sql.NullString  `db:"cancellation_reason"`
	CancelledBy        uuid.NullUUID   `db:"cancelled_by"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (r bookingRow) toModel() *model.Booking {
	b := &model.Booking{
		ID:                 r.ID,
		UserID:             r.UserID,
		BusinessID:         r.BusinessID,
		ServiceID:          r.ServiceID,
		SlotID:             r.SlotID,
		StaffID:            nullString(r.StaffID),
		TimeSlot:           model.TimeSlot{Date: r.Date, StartTime: r.StartTime, EndTime: r.EndTime},
		AddOns:             []model.BookedAddOn(r.AddOns),
		TotalCost:          r.TotalCost,
		DepositAmount:      r.DepositAmount,
		RemainingAmount:    r.RemainingAmount,
		PlatformFee:        r.PlatformFee,
		ServiceAmount:      r.ServiceAmount,
		Status:             model.BookingStatus(r.Status),
		PaymentStatus:      model.PaymentStatus(r.PaymentStatus),
		AdminPaymentStatus: model.AdminPaymentStatus(r.AdminPaymentStatus),
		CustomerEmail:      r.CustomerEmail,
		CustomerNotes:      nullString(r.CustomerNotes),
		BusinessNotes:      nullString(r.BusinessNotes),
		CancellationReason: nullString(r.CancellationReason),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if b.AddOns == nil {
		b.AddOns = []model.BookedAddOn{}
	}
	if r.CancelledAt.Valid {
		t := r.CancelledAt.Time
		b.CancelledAt = &t
	}
	if r.CancelledBy.Valid {
		id := r.CancelledBy.UUID
		b.CancelledBy = &id
	}
	return b
}

type bookingRepository struct {
	q sqlx.ExtContext
}

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
	`
	_, err := r.q.ExecContext(ctx, query,
		booking.ID,
		booking.UserID,
		booking.BusinessID,
		booking.ServiceID,
		booking.SlotID,
		booking.StaffID,
		booking.TimeSlot.Date,
		booking.TimeSlot.StartTime,
		booking.TimeSlot.EndTime,
		addOnList(booking.AddOns),
		booking.TotalCost,
		booking.DepositAmount,
		booking.RemainingAmount,
		booking.PlatformFee,
		booking.ServiceAmount,
		string(booking.Status),
		string(booking.PaymentStatus),
		string(booking.AdminPaymentStatus),
		booking.CustomerEmail,
		booking.CustomerNotes,
		booking.BusinessNotes,
		booking.CancelledAt,
		booking.CancellationReason,
		booking.CancelledBy,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var row bookingRow
	err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "booking")
	}
	return row.toModel(), nil
}

// Update writes the mutable part of a booking. Money and ownership columns
// are never rewritten.
func (r *bookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	query := `
		UPDATE bookings
		SET slot_id = $1, booking_date = $2, start_time = $3, end_time = $4,
			status = $5, payment_status = $6, admin_payment_status = $7,
			business_notes = $8, cancelled_at = $9, cancellation_reason = $10,
			cancelled_by = $11, updated_at = $12
		WHERE id = $13
	`
	result, err := r.q.ExecContext(ctx, query,
		booking.SlotID,
		booking.TimeSlot.Date,
		booking.TimeSlot.StartTime,
		booking.TimeSlot.EndTime,
		string(booking.Status),
		string(booking.PaymentStatus),
		string(booking.AdminPaymentStatus),
		booking.BusinessNotes,
		booking.CancelledAt,
		booking.CancellationReason,
		booking.CancelledBy,
		booking.UpdatedAt,
		booking.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *bookingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *bookingRepository) List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.BusinessID != nil {
		add("business_id = $%d", *filter.BusinessID)
	}
	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.ServiceID != nil {
		add("service_id = $%d", *filter.ServiceID)
	}
	if filter.StaffID != nil {
		add("staff_id = $%d", *filter.StaffID)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", pq.Array(statuses))
	}
	if filter.From != nil {
		add("booking_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("booking_date <= $%d", *filter.To)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY booking_date ASC, start_time ASC, created_at ASC`

	return r.selectBookings(ctx, query, args...)
}

func (r *bookingRepository) ActiveForStaff(ctx context.Context, businessID uuid.UUID, staffID string, date model.Date) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE business_id = $1 AND staff_id = $2 AND booking_date = $3
		AND status IN ('pending', 'confirmed')
		ORDER BY start_time ASC`
	return r.selectBookings(ctx, query, businessID, staffID, date)
}

func (r *bookingRepository) selectBookings(ctx context.Context, query string, args ...interface{}) ([]*model.Booking, error) {
	var rows []bookingRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	bookings := make([]*model.Booking, 0, len(rows))
	for _, row := range rows {
		bookings = append(bookings, row.toModel())
	}
	return bookings, nil
}
