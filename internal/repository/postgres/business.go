package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/booking-api/internal/model"
)

type businessRepository struct {
	q sqlx.ExtContext
}

func (r *businessRepository) Create(ctx context.Context, business *model.Business) error {
	query := `
		INSERT INTO businesses (id, owner_id, name, contact_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.q.ExecContext(ctx, query,
		business.ID,
		business.OwnerID,
		business.Name,
		business.ContactEmail,
		business.CreatedAt,
		business.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create business: %w", err)
	}
	return nil
}

func (r *businessRepository) Get(ctx context.Context, id uuid.UUID) (*model.Business, error) {
	query := `
		SELECT id, owner_id, name, contact_email, created_at, updated_at
		FROM businesses
		WHERE id = $1
	`
	var business model.Business
	if err := sqlx.GetContext(ctx, r.q, &business, query, id); err != nil {
		return nil, notFound(err, "business")
	}
	return &business, nil
}
