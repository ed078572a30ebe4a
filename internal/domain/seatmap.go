package domain

import (
	"sort"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

const (
	MaxRows = 26
	MaxCols = 100
)

// SeatIDs generates the seat keys for a rows x cols venue: row letters A..Z
// crossed with column numbers 1..cols, row-major.
func SeatIDs(rows, cols int) []string {
	ids := make([]string, 0, rows*cols)
	for r := 0; r < rows; r++ {
		letter := string(rune('A' + r))
		for c := 1; c <= cols; c++ {
			ids = append(ids, letter+strconv.Itoa(c))
		}
	}
	return ids
}

func NewSeatMap(eventID, venueID uuid.UUID, rows, cols int) (*SeatMap, error) {
	if eventID == uuid.Nil {
		return nil, errors.Wrap(ErrInvalidInput, "event id is required")
	}
	if rows < 1 || rows > MaxRows {
		return nil, errors.Wrapf(ErrInvalidInput, "rows must be between 1 and %d, got %d", MaxRows, rows)
	}
	if cols < 1 || cols > MaxCols {
		return nil, errors.Wrapf(ErrInvalidInput, "cols must be between 1 and %d, got %d", MaxCols, cols)
	}

	seats := make(map[string]Seat, rows*cols)
	for _, id := range SeatIDs(rows, cols) {
		seats[id] = Seat{Status: SeatFree}
	}
	return &SeatMap{
		EventID: eventID,
		VenueID: venueID,
		Rows:    rows,
		Cols:    cols,
		Seats:   seats,
	}, nil
}

// View returns a copy of the map in which every logically expired hold is
// presented as FREE.
func (m *SeatMap) View(now time.Time) *SeatMap {
	out := *m
	out.Seats = make(map[string]Seat, len(m.Seats))
	for id, s := range m.Seats {
		out.Seats[id] = s.Effective(now)
	}
	return &out
}

// ExpiredSeats lists the seats stored as HELD whose lease has lapsed.
func (m *SeatMap) ExpiredSeats(now time.Time) []string {
	var ids []string
	for id, s := range m.Seats {
		if s.Expired(now) {
			ids = append(ids, id)
		}
	}
	SortSeatIDs(ids)
	return ids
}

func (m *SeatMap) Stats(now time.Time) Stats {
	var st Stats
	for _, s := range m.Seats {
		st.Total++
		switch s.Effective(now).Status {
		case SeatFree:
			st.Free++
		case SeatHeld:
			st.Held++
		case SeatSold:
			st.Sold++
		}
	}
	return st
}

// CountActive counts seats committed to holder: sold ones and unexpired holds.
func (m *SeatMap) CountActive(holder string, now time.Time) int {
	n := 0
	for _, s := range m.Seats {
		if s.ActiveFor(holder, now) {
			n++
		}
	}
	return n
}

// SortSeatIDs orders seat ids by row letter, then numerically by column.
func SortSeatIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		ri, ci := splitSeatID(ids[i])
		rj, cj := splitSeatID(ids[j])
		if ri != rj {
			return ri < rj
		}
		if ci != cj {
			return ci < cj
		}
		return ids[i] < ids[j]
	})
}

func splitSeatID(id string) (string, int) {
	if id == "" {
		return "", 0
	}
	n, err := strconv.Atoi(id[1:])
	if err != nil {
		return id, 0
	}
	return id[:1], n
}
