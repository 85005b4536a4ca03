package repository

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
)

// SlotCursor is a position in a newest-first walk over booked slots. The
// walk is ordered by UpdatedAt then ID, both descending, so slots sharing a
// timestamp are still visited exactly once.
type SlotCursor struct {
	UpdatedAt time.Time
	ID        uuid.UUID
}

// CursorBefore starts a walk at the slots touched strictly before t.
func CursorBefore(t time.Time) SlotCursor {
	return SlotCursor{UpdatedAt: t}
}

// CursorAfter positions a walk just past s.
func CursorAfter(s *model.Slot) SlotCursor {
	return SlotCursor{UpdatedAt: s.UpdatedAt, ID: s.ID}
}

// Admits reports whether s comes after the cursor in the walk.
func (c SlotCursor) Admits(s *model.Slot) bool {
	if !s.UpdatedAt.Equal(c.UpdatedAt) {
		return s.UpdatedAt.Before(c.UpdatedAt)
	}
	return bytes.Compare(s.ID[:], c.ID[:]) < 0
}

// SortNewestFirst puts slots in walk order.
func SortNewestFirst(slots []*model.Slot) {
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) > 0
	})
}
