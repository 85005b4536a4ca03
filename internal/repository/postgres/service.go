package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/booking-api/internal/model"
)

type serviceRepository struct {
	q sqlx.ExtContext
}

// Create inserts the service with its add-ons and slots. Callers run it in
// a transaction so a service never exists half written.
func (r *serviceRepository) Create(ctx context.Context, service *model.Service) error {
	query := `
		INSERT INTO services (
			id, business_id, name, description, base_price, duration_minutes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.q.ExecContext(ctx, query,
		service.ID,
		service.BusinessID,
		service.Name,
		service.Description,
		service.BasePrice,
		service.DurationMinutes,
		service.CreatedAt,
		service.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if err := insertAddOns(ctx, r.q, service.ID, service.AddOns); err != nil {
		return err
	}
	return insertSlots(ctx, r.q, service.ID, service.Slots)
}

func (r *serviceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	query := `
		SELECT id, business_id, name, description, base_price, duration_minutes,
			   created_at, updated_at
		FROM services
		WHERE id = $1
	`
	var service model.Service
	if err := sqlx.GetContext(ctx, r.q, &service, query, id); err != nil {
		return nil, notFound(err, "service")
	}

	addOns, err := r.listAddOns(ctx, id)
	if err != nil {
		return nil, err
	}
	service.AddOns = addOns

	slots, err := selectSlots(ctx, r.q, `WHERE service_id = $1`, id)
	if err != nil {
		return nil, err
	}
	service.Slots = slots
	return &service, nil
}

func (r *serviceRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*model.Service, error) {
	query := `
		SELECT id, business_id, name, description, base_price, duration_minutes,
			   created_at, updated_at
		FROM services
		WHERE business_id = $1
		ORDER BY created_at ASC
	`
	var services []*model.Service
	if err := sqlx.SelectContext(ctx, r.q, &services, query, businessID); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	for _, s := range services {
		addOns, err := r.listAddOns(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		s.AddOns = addOns
	}
	return services, nil
}

func (r *serviceRepository) ReplaceAddOns(ctx context.Context, serviceID uuid.UUID, addOns []model.AddOn) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM service_add_ons WHERE service_id = $1`, serviceID); err != nil {
		return fmt.Errorf("failed to clear add-ons: %w", err)
	}
	if err := insertAddOns(ctx, r.q, serviceID, addOns); err != nil {
		return err
	}
	_, err := r.q.ExecContext(ctx, `UPDATE services SET updated_at = NOW() WHERE id = $1`, serviceID)
	if err != nil {
		return fmt.Errorf("failed to touch service: %w", err)
	}
	return nil
}

func (r *serviceRepository) listAddOns(ctx context.Context, serviceID uuid.UUID) ([]model.AddOn, error) {
	query := `
		SELECT id, service_id, name, cost
		FROM service_add_ons
		WHERE service_id = $1
		ORDER BY position ASC
	`
	addOns := []model.AddOn{}
	if err := sqlx.SelectContext(ctx, r.q, &addOns, query, serviceID); err != nil {
		return nil, fmt.Errorf("failed to list add-ons: %w", err)
	}
	return addOns, nil
}

func insertAddOns(ctx context.Context, q sqlx.ExecerContext, serviceID uuid.UUID, addOns []model.AddOn) error {
	query := `
		INSERT INTO service_add_ons (id, service_id, name, cost, position)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i, a := range addOns {
		if _, err := q.ExecContext(ctx, query, a.ID, serviceID, a.Name, a.Cost, i); err != nil {
			return fmt.Errorf("failed to insert add-on %q: %w", a.Name, err)
		}
	}
	return nil
}
