package seating

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/seatmap-engine/internal/clock"
	"github.com/robertarktes/seatmap-engine/internal/domain"
	"github.com/robertarktes/seatmap-engine/internal/observability"
)

const rollbackTimeout = 5 * time.Second

type batchState int

const (
	stateAttempting batchState = iota
	stateAllAcquired
	stateRollingBack
	stateRolledBack
)

func (s batchState) String() string {
	switch s {
	case stateAttempting:
		return "attempting"
	case stateAllAcquired:
		return "all_acquired"
	case stateRollingBack:
		return "rolling_back"
	case stateRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// holdBatch tracks one Hold call: attempting -> all_acquired, or
// attempting -> rolling_back -> rolled_back.
type holdBatch struct {
	eventID  uuid.UUID
	holder   string
	until    time.Time
	state    batchState
	acquired []string
	failed   []string
}

func (b *holdBatch) lease(seatID string) domain.Lease {
	return domain.Lease{EventID: b.eventID, SeatID: seatID, Holder: b.holder, Until: b.until}
}

type HoldResult struct {
	Seats     []string  `json:"seats"`
	HoldUntil time.Time `json:"hold_until"`
}

// LeaseManager acquires, releases and confirms seat leases using single-seat
// conditional writes only.
type LeaseManager struct {
	store  Store
	clock  clock.Clock
	logger observability.Logger
}

func NewLeaseManager(store Store, clk clock.Clock, logger observability.Logger) *LeaseManager {
	return &LeaseManager{store: store, clock: clk, logger: logger}
}

// Hold acquires every seat in seatIDs for holder or none of them. When any
// seat cannot be acquired the seats taken by this call are reverted and a
// *domain.SeatUnavailableError lists the failed ones.
func (m *LeaseManager) Hold(ctx context.Context, eventID uuid.UUID, holder string, seatIDs []string, d time.Duration) (*HoldResult, error) {
	if len(seatIDs) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "no seats requested")
	}
	if d <= 0 {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "lease duration must be positive, got %s", d)
	}

	now := m.clock.Now()
	b := &holdBatch{
		eventID: eventID,
		holder:  holder,
		until:   now.Add(d),
		state:   stateAttempting,
	}

	for _, id := range seatIDs {
		ok, err := m.store.Acquire(ctx, b.lease(id), now)
		if err != nil {
			observability.HoldOutcomes.WithLabelValues("error").Inc()
			m.rollback(ctx, b)
			return nil, errors.Wrapf(err, "acquire seat %s", id)
		}
		if ok {
			b.acquired = append(b.acquired, id)
		} else {
			b.failed = append(b.failed, id)
		}
	}

	if len(b.failed) > 0 {
		observability.HoldOutcomes.WithLabelValues("unavailable").Inc()
		m.rollback(ctx, b)
		return nil, &domain.SeatUnavailableError{SeatIDs: b.failed}
	}

	b.state = stateAllAcquired
	observability.HoldOutcomes.WithLabelValues("acquired").Inc()
	return &HoldResult{Seats: b.acquired, HoldUntil: b.until}, nil
}

// rollback reverts the seats acquired so far. It runs detached from the
// caller's cancellation; a seat that cannot be reverted stays HELD until its
// lease lapses and the sweeper reclaims it.
func (m *LeaseManager) rollback(ctx context.Context, b *holdBatch) {
	if len(b.acquired) == 0 {
		b.state = stateRolledBack
		return
	}
	b.state = stateRollingBack

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	log := m.logger.WithFields(map[string]interface{}{
		"event_id": b.eventID.String(),
		"holder":   b.holder,
	})
	for _, id := range b.acquired {
		ok, err := m.store.Revert(ctx, b.lease(id))
		switch {
		case err != nil:
			observability.HoldRollbacks.WithLabelValues("error").Inc()
			log.WithError(err).WithField("seat_id", id).Error("rollback failed, seat left to expire")
		case !ok:
			observability.HoldRollbacks.WithLabelValues("lost").Inc()
			log.WithField("seat_id", id).Warn("rollback found seat no longer held by this lease")
		default:
			observability.HoldRollbacks.WithLabelValues("reverted").Inc()
		}
	}
	b.state = stateRolledBack
	log.WithField("seats", b.acquired).Debug("hold batch rolled back")
}

// Release frees the seats holder owns. Seats not held by holder are skipped.
func (m *LeaseManager) Release(ctx context.Context, eventID uuid.UUID, holder string, seatIDs []string) ([]string, error) {
	released := []string{}
	for _, id := range seatIDs {
		ok, err := m.store.Release(ctx, eventID, id, holder)
		if err != nil {
			return released, errors.Wrapf(err, "release seat %s", id)
		}
		if ok {
			released = append(released, id)
		}
	}
	return released, nil
}

// Confirm sells the seats holder still holds. The lease deadline is not
// re-checked: a hold that lapsed but was not yet reclaimed can still be
// confirmed by its holder.
func (m *LeaseManager) Confirm(ctx context.Context, eventID uuid.UUID, holder string, seatIDs []string) ([]string, error) {
	confirmed := []string{}
	for _, id := range seatIDs {
		ok, err := m.store.Confirm(ctx, eventID, id, holder)
		if err != nil {
			return confirmed, errors.Wrapf(err, "confirm seat %s", id)
		}
		if ok {
			confirmed = append(confirmed, id)
		}
	}
	return confirmed, nil
}
