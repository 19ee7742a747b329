package domain

import (
	"strings"
	"time"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "PENDING"
	ReservationStatusPaid      ReservationStatus = "PAID"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
)

// Terminal reports whether the status admits no further transitions.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationStatusPaid || s == ReservationStatusCancelled || s == ReservationStatusExpired
}

type Attendee struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName is the case-normalized name used for duplicate detection
// within a reservation.
func (a Attendee) FullName() string {
	return strings.ToLower(strings.TrimSpace(a.FirstName)) + " " + strings.ToLower(strings.TrimSpace(a.LastName))
}

type Reservation struct {
	ID               string
	TicketNumber     string
	EventID          string
	BuyerID          string
	Quantity         int
	Attendees        []Attendee
	UnitPriceCents   int64
	DiscountCode     string
	DiscountCents    int64
	TotalCents       int64
	Status           ReservationStatus
	ExpiresAt        *time.Time
	PaymentSessionID string
	PaymentRef       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Expired reports whether a pending reservation is past its hold deadline.
// Terminal reservations never report expired; their expires_at is historical.
func (r *Reservation) Expired(now time.Time) bool {
	return r.Status == ReservationStatusPending && r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}
