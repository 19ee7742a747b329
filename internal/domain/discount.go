package domain

import (
	"math"
	"time"
)

type DiscountKind string

const (
	DiscountKindPercentage DiscountKind = "percentage"
	DiscountKindFixed      DiscountKind = "fixed"
)

type Discount struct {
	ID          string
	Code        string
	Kind        DiscountKind
	// Value is a percentage in [0,100] for percentage discounts and an
	// amount in cents for fixed discounts.
	Value       float64
	Active      bool
	ValidFrom   time.Time
	ValidUntil  *time.Time
	Description string
	Redemptions int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WithinWindow reports whether the discount's validity window covers now.
// A zero ValidFrom means valid immediately, a nil ValidUntil means no end.
func (d *Discount) WithinWindow(now time.Time) bool {
	if !d.ValidFrom.IsZero() && now.Before(d.ValidFrom) {
		return false
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return false
	}
	return true
}

// Apply computes the discount against a subtotal in cents. Amounts round
// half-up to the nearest cent; fixed discounts are clamped to the subtotal
// so the total never goes negative.
func (d *Discount) Apply(subtotalCents int64) (discountCents, finalCents int64) {
	switch d.Kind {
	case DiscountKindPercentage:
		discountCents = int64(math.Floor(float64(subtotalCents)*d.Value/100 + 0.5))
	case DiscountKindFixed:
		discountCents = int64(math.Floor(d.Value + 0.5))
	}
	if discountCents > subtotalCents {
		discountCents = subtotalCents
	}
	if discountCents < 0 {
		discountCents = 0
	}
	return discountCents, subtotalCents - discountCents
}
