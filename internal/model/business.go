package model

import "github.com/google/uuid"

// Business is a service provider (salon, groomer, ...). OwnerID is the user
// allowed to operate its catalog and bookings.
type Business struct {
	Base
	OwnerID      uuid.UUID `db:"owner_id" json:"owner_id"`
	Name         string    `db:"name" json:"name"`
	ContactEmail string    `db:"contact_email" json:"contact_email,omitempty"`
}

func (b *Business) IsOperatedBy(userID uuid.UUID) bool {
	return b != nil && userID != uuid.Nil && b.OwnerID == userID
}

type CreateBusinessRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
}
