// Package seating implements seat reservation on top of per-seat conditional
// writes: batched holds with rollback, per-user quotas, and lease expiry.
package seating

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/seatmap-engine/internal/domain"
)

// Store persists one seat map per event. Every seat transition is a single
// atomic compare-and-set on that seat; the boolean result reports whether
// the predicate matched and the write was applied.
type Store interface {
	// Create inserts a new seat map. domain.ErrDuplicateSeatMap if one exists.
	Create(ctx context.Context, m *domain.SeatMap) error
	// Get returns the stored map. domain.ErrSeatMapNotFound if absent.
	Get(ctx context.Context, eventID uuid.UUID) (*domain.SeatMap, error)
	EventIDs(ctx context.Context) ([]uuid.UUID, error)

	// Acquire sets the seat HELD by lease.Holder until lease.Until if it is
	// FREE or HELD with a deadline before now.
	Acquire(ctx context.Context, lease domain.Lease, now time.Time) (bool, error)
	// Revert frees a seat only while it still carries exactly this lease.
	Revert(ctx context.Context, lease domain.Lease) (bool, error)
	// Release frees a HELD seat owned by holder, expired or not.
	Release(ctx context.Context, eventID uuid.UUID, seatID, holder string) (bool, error)
	// Confirm turns a HELD seat owned by holder into SOLD.
	Confirm(ctx context.Context, eventID uuid.UUID, seatID, holder string) (bool, error)
	// ExpireHolds frees, in one update of the event's document, every seat
	// that is HELD with a deadline before now and returns their ids.
	ExpireHolds(ctx context.Context, eventID uuid.UUID, now time.Time) ([]string, error)
}

type Catalog interface {
	GetEvent(ctx context.Context, eventID uuid.UUID) (*domain.Event, error)
}

// Recorder receives committed seat changes (outbox, audit trail).
type Recorder interface {
	Record(ctx context.Context, ev domain.SeatEvent) error
}

// Recorders fans an event out to every recorder and combines their errors.
type Recorders []Recorder

func (rs Recorders) Record(ctx context.Context, ev domain.SeatEvent) error {
	var errs error
	for _, r := range rs {
		if err := r.Record(ctx, ev); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, domain.SeatEvent) error { return nil }
