package domain

import "time"

type Event struct {
	ID             string
	Title          string
	Description    string
	OccursAt       time.Time
	UnitPriceCents int64
	Capacity       int
	Reserved       int
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Available is the number of tickets still sellable.
func (e *Event) Available() int {
	if e.Reserved >= e.Capacity {
		return 0
	}
	return e.Capacity - e.Reserved
}

func (e *Event) SoldOut() bool {
	return e.Reserved >= e.Capacity
}
