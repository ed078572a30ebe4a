package domain

import "time"

// Expired reports whether the seat is stored as HELD but its lease lapsed.
// Expired seats are logically FREE. Holds, sweeps and reads share this
// predicate.
func (s Seat) Expired(now time.Time) bool {
	return s.Status == SeatHeld && s.HoldUntil != nil && s.HoldUntil.Before(now)
}

func (s Seat) Acquirable(now time.Time) bool {
	return s.Status == SeatFree || s.Expired(now)
}

func (s Seat) Effective(now time.Time) Seat {
	if s.Expired(now) {
		return Seat{Status: SeatFree}
	}
	return s
}

func (s Seat) ActiveFor(holder string, now time.Time) bool {
	if s.HeldBy != holder {
		return false
	}
	switch s.Status {
	case SeatSold:
		return true
	case SeatHeld:
		return !s.Expired(now)
	}
	return false
}

// Dedupe drops repeated seat ids, keeping the first occurrence.
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
