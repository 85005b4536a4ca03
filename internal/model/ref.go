package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Ref is a reference to T that is either just an id or the resolved value.
// It renders as a bare id string when unresolved and as the object otherwise.
type Ref[T any] struct {
	ID    uuid.UUID
	value *T
}

func Unresolved[T any](id uuid.UUID) Ref[T] {
	return Ref[T]{ID: id}
}

func Resolved[T any](id uuid.UUID, v *T) Ref[T] {
	return Ref[T]{ID: id, value: v}
}

// Get returns the resolved value, if any.
func (r Ref[T]) Get() (*T, bool) {
	return r.value, r.value != nil
}

func (r Ref[T]) IsResolved() bool {
	return r.value != nil
}

func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.value != nil {
		return json.Marshal(r.value)
	}
	return json.Marshal(r.ID)
}
