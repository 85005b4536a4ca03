package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
)

// OutboxRepository is the part of the outbox store the worker needs.
type OutboxRepository interface {
	// ClaimPending moves up to limit due events to processing and returns
	// them. Events stuck in processing longer than lease are claimed again.
	ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	// MarkFailed records errMsg. A nil retryAt makes the failure final.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
