package domain_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/seatmap-engine/internal/domain"
)

func TestSeatIDs(t *testing.T) {
	got := domain.SeatIDs(2, 3)
	want := []string{"A1", "A2", "A3", "B1", "B2", "B3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNewSeatMap(t *testing.T) {
	tests := []struct {
		name    string
		rows    int
		cols    int
		wantErr bool
	}{
		{"single seat", 1, 1, false},
		{"max geometry", domain.MaxRows, domain.MaxCols, false},
		{"zero rows", 0, 4, true},
		{"too many rows", 27, 4, true},
		{"zero cols", 2, 0, true},
		{"too many cols", 2, domain.MaxCols + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := domain.NewSeatMap(uuid.New(), uuid.New(), tt.rows, tt.cols)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Fatalf("expected invalid input, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(m.Seats) != tt.rows*tt.cols {
				t.Errorf("expected %d seats, got %d", tt.rows*tt.cols, len(m.Seats))
			}
			for id, s := range m.Seats {
				if s.Status != domain.SeatFree || s.HeldBy != "" || s.HoldUntil != nil {
					t.Errorf("seat %s not created free: %+v", id, s)
				}
			}
		})
	}

	if _, err := domain.NewSeatMap(uuid.Nil, uuid.New(), 1, 1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input for nil event id, got %v", err)
	}
}

func TestSeatMap_LazyExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)

	m, err := domain.NewSeatMap(uuid.New(), uuid.New(), 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	m.Seats["A1"] = domain.Seat{Status: domain.SeatHeld, HeldBy: "u1", HoldUntil: &past}
	m.Seats["A2"] = domain.Seat{Status: domain.SeatHeld, HeldBy: "u1", HoldUntil: &future}
	m.Seats["B1"] = domain.Seat{Status: domain.SeatSold, HeldBy: "u1"}

	view := m.View(now)
	if view.Seats["A1"].Status != domain.SeatFree || view.Seats["A1"].HeldBy != "" || view.Seats["A1"].HoldUntil != nil {
		t.Errorf("expected expired hold to be presented free, got %+v", view.Seats["A1"])
	}
	if view.Seats["A2"].Status != domain.SeatHeld {
		t.Errorf("expected live hold to stay held, got %+v", view.Seats["A2"])
	}
	if m.Seats["A1"].Status != domain.SeatHeld {
		t.Error("view must not modify the stored map")
	}

	if got := m.ExpiredSeats(now); !reflect.DeepEqual(got, []string{"A1"}) {
		t.Errorf("expected [A1] expired, got %v", got)
	}

	want := domain.Stats{Free: 2, Held: 1, Sold: 1, Total: 4}
	if got := m.Stats(now); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	if got := m.CountActive("u1", now); got != 2 {
		t.Errorf("expected 2 active seats for u1, got %d", got)
	}
	if got := m.CountActive("u2", now); got != 0 {
		t.Errorf("expected 0 active seats for u2, got %d", got)
	}
}

func TestSeat_Acquirable(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Millisecond)
	tests := []struct {
		name string
		seat domain.Seat
		want bool
	}{
		{"free", domain.Seat{Status: domain.SeatFree}, true},
		{"expired hold", domain.Seat{Status: domain.SeatHeld, HeldBy: "u", HoldUntil: &past}, true},
		{"live hold", domain.Seat{Status: domain.SeatHeld, HeldBy: "u", HoldUntil: &now}, false},
		{"sold", domain.Seat{Status: domain.SeatSold, HeldBy: "u"}, false},
	}
	for _, tt := range tests {
		if got := tt.seat.Acquirable(now); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestSortSeatIDs(t *testing.T) {
	ids := []string{"B1", "A10", "A2", "A1"}
	domain.SortSeatIDs(ids)
	want := []string{"A1", "A2", "A10", "B1"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("expected %v, got %v", want, ids)
	}
}

func TestDedupe(t *testing.T) {
	got := domain.Dedupe([]string{"A1", "A2", "A1", "B1"})
	want := []string{"A1", "A2", "B1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestErrorMatching(t *testing.T) {
	var err error = &domain.SeatUnavailableError{SeatIDs: []string{"A1"}}
	if !errors.Is(err, domain.ErrSeatUnavailable) {
		t.Error("expected seat unavailable error to match sentinel")
	}
	err = &domain.QuotaExceededError{Current: 2, Requested: 1, Max: 2}
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Error("expected quota error to match sentinel")
	}
	var qe *domain.QuotaExceededError
	if !errors.As(err, &qe) || qe.Max != 2 {
		t.Errorf("expected quota error details, got %v", err)
	}
}
