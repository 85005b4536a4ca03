package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type outboxRepository struct{ s *Store }

func (r *outboxRepository) Create(_ context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	c := *event
	c.Status = model.OutboxStatusPending
	st.outbox[c.ID] = &c
	r.s.record(func() { delete(st.outbox, c.ID) })
	return nil
}

func (r *outboxRepository) ClaimPending(_ context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	var due []*model.OutboxEvent
	for _, e := range st.outbox {
		pending := e.Status == model.OutboxStatusPending && (e.RetryAt == nil || !e.RetryAt.After(now))
		stale := e.Status == model.OutboxStatusProcessing && e.UpdatedAt.Before(now.Add(-lease))
		if pending || stale {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	out := make([]*model.OutboxEvent, 0, len(due))
	for _, e := range due {
		e.Status = model.OutboxStatusProcessing
		e.UpdatedAt = now
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

func (r *outboxRepository) MarkProcessed(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(e *model.OutboxEvent, now time.Time) {
		e.Status = model.OutboxStatusProcessed
		e.ErrorMessage = nil
		e.ProcessedAt = &now
	})
}

func (r *outboxRepository) MarkFailed(_ context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	return r.update(id, func(e *model.OutboxEvent, _ time.Time) {
		e.Status = model.OutboxStatusFailed
		if retryAt != nil {
			e.Status = model.OutboxStatusPending
		}
		e.ErrorMessage = &errMsg
		e.RetryAt = retryAt
		e.RetryCount++
	})
}

func (r *outboxRepository) update(id uuid.UUID, fn func(*model.OutboxEvent, time.Time)) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	fn(e, now)
	e.UpdatedAt = now
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	var n int64
	for id, e := range st.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(st.outbox, id)
			n++
		}
	}
	return n, nil
}

// Events returns a snapshot of every outbox event, oldest first.
func (s *Store) Events() []*model.OutboxEvent {
	st := s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*model.OutboxEvent, 0, len(st.outbox))
	for _, e := range st.outbox {
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
