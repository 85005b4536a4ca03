package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Service owns its slots and add-on catalog. BasePrice is only a fallback
// for slots that carry no price of their own.
type Service struct {
	Base
	BusinessID      uuid.UUID `db:"business_id" json:"business_id"`
	Name            string    `db:"name" json:"name"`
	Description     string    `db:"description" json:"description,omitempty"`
	BasePrice       float64   `db:"base_price" json:"base_price"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	AddOns          []AddOn   `db:"-" json:"add_ons"`
	Slots           []*Slot   `db:"-" json:"slots,omitempty"`
}

// AddOn is an optional extra priced by the business.
type AddOn struct {
	ID        uuid.UUID `db:"id" json:"id" bson:"id"`
	ServiceID uuid.UUID `db:"service_id" json:"-" bson:"-"`
	Name      string    `db:"name" json:"name" bson:"name"`
	Cost      float64   `db:"cost" json:"cost" bson:"cost"`
}

// Slot is one bookable window of a service. IsBooked is true exactly when
// BookingID is set.
type Slot struct {
	ID              uuid.UUID  `json:"id"`
	ServiceID       uuid.UUID  `json:"service_id"`
	Date            Date       `json:"date"`
	StartTime       ClockTime  `json:"start_time"`
	EndTime         ClockTime  `json:"end_time"`
	Price           *float64   `json:"price,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	StaffIDs        []string   `json:"staff_ids"`
	IsBooked        bool       `json:"is_booked"`
	BookingID       *uuid.UUID `json:"booking_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Window returns the slot's date and time range.
func (s *Slot) Window() TimeSlot {
	return TimeSlot{Date: s.Date, StartTime: s.StartTime, EndTime: s.EndTime}
}

// Matches reports whether the slot sits exactly on ts.
func (s *Slot) Matches(ts TimeSlot) bool {
	return s.Date == ts.Date && s.StartTime == ts.StartTime && s.EndTime == ts.EndTime
}

// AllowsStaff is true when the slot names no staff or includes staffID.
func (s *Slot) AllowsStaff(staffID string) bool {
	if len(s.StaffIDs) == 0 {
		return true
	}
	for _, id := range s.StaffIDs {
		if id == staffID {
			return true
		}
	}
	return false
}

// EffectivePrice is the slot price, falling back to the service base price.
func (s *Slot) EffectivePrice(service *Service) float64 {
	if s.Price != nil {
		return *s.Price
	}
	if service == nil {
		return 0
	}
	return service.BasePrice
}

// FindSlot returns the slot on ts regardless of its occupancy.
func (s *Service) FindSlot(ts TimeSlot) *Slot {
	for _, slot := range s.Slots {
		if slot.Matches(ts) {
			return slot
		}
	}
	return nil
}

// AddOnByRef resolves an add-on by id or, failing that, by name.
func (s *Service) AddOnByRef(ref string) (AddOn, bool) {
	if id, err := uuid.Parse(ref); err == nil {
		for _, a := range s.AddOns {
			if a.ID == id {
				return a, true
			}
		}
	}
	for _, a := range s.AddOns {
		if a.Name == ref {
			return a, true
		}
	}
	return AddOn{}, false
}

// SortSlots orders slots by date then start time.
func SortSlots(slots []*Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if c := slots[i].Date.Compare(slots[j].Date); c != 0 {
			return c < 0
		}
		return slots[i].StartTime < slots[j].StartTime
	})
}

type SlotInput struct {
	Date            Date      `json:"date"`
	StartTime       ClockTime `json:"start_time"`
	EndTime         ClockTime `json:"end_time"`
	Price           *float64  `json:"price" validate:"omitempty,gte=0"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,gt=0"`
	StaffIDs        []string  `json:"staff_ids" validate:"dive,required"`
}

func (in SlotInput) Validate() error {
	if in.Date.IsZero() {
		return fmt.Errorf("slot date is required")
	}
	if in.StartTime >= in.EndTime {
		return fmt.Errorf("slot on %s: start %s must be before end %s", in.Date, in.StartTime, in.EndTime)
	}
	return nil
}

// ToSlot materialises the input as a free slot of serviceID.
func (in SlotInput) ToSlot(serviceID uuid.UUID, now time.Time) *Slot {
	duration := in.DurationMinutes
	if duration == 0 {
		duration = int(in.EndTime - in.StartTime)
	}
	staff := in.StaffIDs
	if staff == nil {
		staff = []string{}
	}
	return &Slot{
		ID:              uuid.New(),
		ServiceID:       serviceID,
		Date:            in.Date,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		Price:           in.Price,
		DurationMinutes: duration,
		StaffIDs:        staff,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

type AddOnInput struct {
	Name string  `json:"name" validate:"required,max=120"`
	Cost float64 `json:"cost" validate:"gte=0"`
}

type CreateServiceRequest struct {
	BusinessID      uuid.UUID    `json:"business_id" validate:"required"`
	Name            string       `json:"name" validate:"required,max=200"`
	Description     string       `json:"description" validate:"max=2000"`
	BasePrice       float64      `json:"base_price" validate:"gte=0"`
	DurationMinutes int          `json:"duration_minutes" validate:"gte=0"`
	AddOns          []AddOnInput `json:"add_ons" validate:"dive"`
	Slots           []SlotInput  `json:"slots" validate:"dive"`
}
