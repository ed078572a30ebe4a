package domain

import (
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	SeatFree SeatStatus = "FREE"
	SeatHeld SeatStatus = "HELD"
	SeatSold SeatStatus = "SOLD"
)

// Seat is one slot of a seat map. HeldBy is empty when the seat is FREE and
// HoldUntil is only set while the seat is HELD.
type Seat struct {
	Status    SeatStatus `json:"status"`
	HeldBy    string     `json:"held_by,omitempty"`
	HoldUntil *time.Time `json:"hold_until,omitempty"`
}

type SeatMap struct {
	EventID uuid.UUID       `json:"event_id"`
	VenueID uuid.UUID       `json:"venue_id"`
	Rows    int             `json:"rows"`
	Cols    int             `json:"cols"`
	Seats   map[string]Seat `json:"seats"`
}

type EventStatus string

const (
	EventDraft  EventStatus = "DRAFT"
	EventActive EventStatus = "ACTIVE"
	EventClosed EventStatus = "CLOSED"
)

// Event is the slice of catalog data the seating engine reads.
type Event struct {
	ID         uuid.UUID
	VenueID    uuid.UUID
	Status     EventStatus
	MaxPerUser int
	Capacity   int
}

func (e Event) Bookable() bool {
	return e.Status == EventActive
}

// Lease is the claim implied by a HELD seat.
type Lease struct {
	EventID uuid.UUID
	SeatID  string
	Holder  string
	Until   time.Time
}

type Stats struct {
	Free  int `json:"free"`
	Held  int `json:"held"`
	Sold  int `json:"sold"`
	Total int `json:"total"`
}

type SeatEventType string

const (
	SeatsHeld      SeatEventType = "seats.held"
	SeatsReleased  SeatEventType = "seats.released"
	SeatsConfirmed SeatEventType = "seats.confirmed"
	SeatsExpired   SeatEventType = "seats.expired"
)

// SeatEvent describes a committed change to a seat map.
type SeatEvent struct {
	Type      SeatEventType `json:"type"`
	EventID   uuid.UUID     `json:"event_id"`
	Holder    string        `json:"holder,omitempty"`
	Seats     []string      `json:"seats"`
	HoldUntil *time.Time    `json:"hold_until,omitempty"`
	At        time.Time     `json:"at"`
}
