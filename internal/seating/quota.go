package seating

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/seatmap-engine/internal/domain"
)

// QuotaEnforcer limits how many seats one holder may occupy per event. The
// check reads the map before the hold is attempted, so two concurrent holds
// by the same holder can both pass and overshoot the limit by one batch.
type QuotaEnforcer struct {
	store Store
}

func NewQuotaEnforcer(store Store) *QuotaEnforcer {
	return &QuotaEnforcer{store: store}
}

// CurrentCount returns the seats sold to holder plus its unexpired holds.
func (q *QuotaEnforcer) CurrentCount(ctx context.Context, eventID uuid.UUID, holder string, now time.Time) (int, error) {
	m, err := q.store.Get(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return m.CountActive(holder, now), nil
}

// CheckHeadroom fails with *domain.QuotaExceededError when holder would
// exceed maxPerUser. A maxPerUser of zero rejects every hold.
func (q *QuotaEnforcer) CheckHeadroom(ctx context.Context, eventID uuid.UUID, holder string, requested, maxPerUser int, now time.Time) error {
	current, err := q.CurrentCount(ctx, eventID, holder, now)
	if err != nil {
		return err
	}
	if current+requested > maxPerUser {
		return &domain.QuotaExceededError{Current: current, Requested: requested, Max: maxPerUser}
	}
	return nil
}
