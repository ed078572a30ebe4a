package seating

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/seatmap-engine/internal/clock"
	"github.com/robertarktes/seatmap-engine/internal/domain"
	"github.com/robertarktes/seatmap-engine/internal/observability"
)

const DefaultSweepInterval = 30 * time.Second

var ErrSweeperRunning = errors.New("sweeper already running")

// Sweeper reclaims expired holds in storage. It frees only seats matching
// the same expiry predicate Hold uses, so it is safe alongside Hold,
// Release and Confirm and against other sweepers.
type Sweeper struct {
	store    Store
	clock    clock.Clock
	recorder Recorder
	logger   observability.Logger
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(store Store, clk clock.Clock, recorder Recorder, logger observability.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Sweeper{
		store:    store,
		clock:    clk,
		recorder: recorder,
		logger:   logger.WithField("component", "sweeper"),
		interval: interval,
	}
}

// SweepEvent reclaims the expired holds of one event.
func (s *Sweeper) SweepEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	now := s.clock.Now()
	seats, err := s.store.ExpireHolds(ctx, eventID, now)
	if err != nil {
		return 0, errors.Wrapf(err, "sweep event %s", eventID)
	}
	if len(seats) == 0 {
		return 0, nil
	}

	observability.SeatsReclaimed.Add(float64(len(seats)))
	ev := domain.SeatEvent{Type: domain.SeatsExpired, EventID: eventID, Seats: seats, At: now}
	if err := s.recorder.Record(ctx, ev); err != nil {
		s.logger.WithError(err).WithField("event_id", eventID.String()).Warn("failed to record expired seats")
	}
	return len(seats), nil
}

// SweepAll visits every seat map. A failing event is logged and skipped;
// the combined error is returned after the pass completes.
func (s *Sweeper) SweepAll(ctx context.Context) (int, error) {
	ids, err := s.store.EventIDs(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list seat maps")
	}

	total := 0
	var errs error
	for _, id := range ids {
		if ctx.Err() != nil {
			return total, errors.CombineErrors(errs, ctx.Err())
		}
		n, err := s.SweepEvent(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("event_id", id.String()).Error("failed to sweep event")
			errs = errors.CombineErrors(errs, err)
			continue
		}
		total += n
	}
	return total, errs
}

// Run sweeps immediately and then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.WithField("interval", s.interval.String()).Info("sweeper started")
	defer s.logger.Info("sweeper stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.pass(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) pass(ctx context.Context) {
	start := time.Now()
	n, err := s.SweepAll(ctx)
	observability.SweepDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		observability.SweepFailures.Inc()
		s.logger.WithError(err).Error("sweep pass failed")
	}
	if n > 0 {
		s.logger.WithField("reclaimed", n).Info("expired holds reclaimed")
	}
}

// Start runs the sweep loop in the background until Stop is called or ctx
// is done.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrSweeperRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return nil
}

// Stop cancels a started loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
