package seating_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/seatmap-engine/internal/domain"
)

var errStoreDown = errors.New("store unavailable")

// memStore applies each seat transition under one mutex, which gives the
// same per-seat atomicity as a conditional document update.
type memStore struct {
	mu   sync.Mutex
	maps map[uuid.UUID]*domain.SeatMap

	failAcquire map[string]error
	failExpire  error
	expireCalls int
	acquires    int
}

func newMemStore() *memStore {
	return &memStore{maps: map[uuid.UUID]*domain.SeatMap{}, failAcquire: map[string]error{}}
}

func (s *memStore) Create(_ context.Context, m *domain.SeatMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.maps[m.EventID]; ok {
		return domain.ErrDuplicateSeatMap
	}
	cp := *m
	cp.Seats = make(map[string]domain.Seat, len(m.Seats))
	for id, seat := range m.Seats {
		cp.Seats[id] = seat
	}
	s.maps[m.EventID] = &cp
	return nil
}

func (s *memStore) Get(_ context.Context, eventID uuid.UUID) (*domain.SeatMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.maps[eventID]
	if !ok {
		return nil, domain.ErrSeatMapNotFound
	}
	cp := *m
	cp.Seats = make(map[string]domain.Seat, len(m.Seats))
	for id, seat := range m.Seats {
		cp.Seats[id] = seat
	}
	return &cp, nil
}

func (s *memStore) EventIDs(context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.maps))
	for id := range s.maps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (s *memStore) Acquire(_ context.Context, lease domain.Lease, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquires++
	if err := s.failAcquire[lease.SeatID]; err != nil {
		return false, err
	}
	seat, ok := s.seat(lease.EventID, lease.SeatID)
	if !ok || !seat.Acquirable(now) {
		return false, nil
	}
	until := lease.Until
	s.put(lease.EventID, lease.SeatID, domain.Seat{Status: domain.SeatHeld, HeldBy: lease.Holder, HoldUntil: &until})
	return true, nil
}

func (s *memStore) Revert(_ context.Context, lease domain.Lease) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seat(lease.EventID, lease.SeatID)
	if !ok || seat.Status != domain.SeatHeld || seat.HeldBy != lease.Holder || seat.HoldUntil == nil || !seat.HoldUntil.Equal(lease.Until) {
		return false, nil
	}
	s.put(lease.EventID, lease.SeatID, domain.Seat{Status: domain.SeatFree})
	return true, nil
}

func (s *memStore) Release(_ context.Context, eventID uuid.UUID, seatID, holder string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seat(eventID, seatID)
	if !ok || seat.Status != domain.SeatHeld || seat.HeldBy != holder {
		return false, nil
	}
	s.put(eventID, seatID, domain.Seat{Status: domain.SeatFree})
	return true, nil
}

func (s *memStore) Confirm(_ context.Context, eventID uuid.UUID, seatID, holder string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seat(eventID, seatID)
	if !ok || seat.Status != domain.SeatHeld || seat.HeldBy != holder {
		return false, nil
	}
	s.put(eventID, seatID, domain.Seat{Status: domain.SeatSold, HeldBy: holder})
	return true, nil
}

func (s *memStore) ExpireHolds(ctx context.Context, eventID uuid.UUID, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.failExpire != nil {
		return nil, s.failExpire
	}
	m, ok := s.maps[eventID]
	if !ok {
		return nil, domain.ErrSeatMapNotFound
	}
	ids := m.ExpiredSeats(now)
	for _, id := range ids {
		m.Seats[id] = domain.Seat{Status: domain.SeatFree}
	}
	return ids, nil
}

func (s *memStore) seat(eventID uuid.UUID, seatID string) (domain.Seat, bool) {
	m, ok := s.maps[eventID]
	if !ok {
		return domain.Seat{}, false
	}
	seat, ok := m.Seats[seatID]
	return seat, ok
}

func (s *memStore) put(eventID uuid.UUID, seatID string, seat domain.Seat) {
	s.maps[eventID].Seats[seatID] = seat
}

func (s *memStore) stored(eventID uuid.UUID, seatID string) domain.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, _ := s.seat(eventID, seatID)
	return seat
}

type fakeCatalog struct {
	events map[uuid.UUID]*domain.Event
}

func (c *fakeCatalog) GetEvent(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	ev, ok := c.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return ev, nil
}

type captureRecorder struct {
	mu     sync.Mutex
	events []domain.SeatEvent
	err    error
}

func (r *captureRecorder) Record(_ context.Context, ev domain.SeatEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *captureRecorder) types() []domain.SeatEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SeatEventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (s *memStore) expireCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expireCalls
}

func (s *memStore) setFailExpire(err error) {
	s.mu.Lock()
	s.failExpire = err
	s.mu.Unlock()
}
