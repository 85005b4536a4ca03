// Package pricing derives the money fields of a booking from server-held
// prices. Client-submitted totals never reach it.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/booking-api/internal/model"
)

const (
	DefaultDepositRate = 0.10
	DefaultPlatformFee = 1.99
)

// Quote is the authoritative breakdown of one booking.
type Quote struct {
	TotalCost       float64 `json:"total_cost"`
	DepositAmount   float64 `json:"deposit_amount"`
	RemainingAmount float64 `json:"remaining_amount"`
	PlatformFee     float64 `json:"platform_fee"`
	ServiceAmount   float64 `json:"service_amount"`
}

type Calculator struct {
	depositRate decimal.Decimal
	platformFee decimal.Decimal
}

func NewCalculator(depositRate, platformFee float64) *Calculator {
	return &Calculator{
		depositRate: decimal.NewFromFloat(depositRate),
		platformFee: decimal.NewFromFloat(platformFee),
	}
}

// Compute prices a slot plus add-ons. The deposit is rounded half-up to
// cents and the remainder is its exact complement.
func (c *Calculator) Compute(slotPrice float64, addOns []model.BookedAddOn) Quote {
	total := decimal.NewFromFloat(slotPrice)
	for _, a := range addOns {
		total = total.Add(decimal.NewFromFloat(a.Cost))
	}
	total = total.Round(2)
	deposit := total.Mul(c.depositRate).Round(2)

	return Quote{
		TotalCost:       total.InexactFloat64(),
		DepositAmount:   deposit.InexactFloat64(),
		RemainingAmount: total.Sub(deposit).InexactFloat64(),
		PlatformFee:     c.platformFee.InexactFloat64(),
		ServiceAmount:   total.Sub(c.platformFee).InexactFloat64(),
	}
}

// ForSlot prices slot within service using the slot's own price when set.
func (c *Calculator) ForSlot(service *model.Service, slot *model.Slot, addOns []model.BookedAddOn) Quote {
	return c.Compute(slot.EffectivePrice(service), addOns)
}

// Apply copies the quote onto b.
func (q Quote) Apply(b *model.Booking) {
	b.TotalCost = q.TotalCost
	b.DepositAmount = q.DepositAmount
	b.RemainingAmount = q.RemainingAmount
	b.PlatformFee = q.PlatformFee
	b.ServiceAmount = q.ServiceAmount
}
