package seating

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/seatmap-engine/internal/clock"
	"github.com/robertarktes/seatmap-engine/internal/domain"
	"github.com/robertarktes/seatmap-engine/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("seating")

// eagerSweepTimeout bounds the shared sweep run on behalf of readers; it is
// detached from any single reader's context.
const eagerSweepTimeout = 5 * time.Second

type Config struct {
	DefaultLease  time.Duration
	MinLease      time.Duration
	MaxLease      time.Duration
	SweepInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.DefaultLease <= 0 {
		c.DefaultLease = 10 * time.Minute
	}
	if c.MinLease <= 0 {
		c.MinLease = 15 * time.Second
	}
	if c.MaxLease <= 0 || c.MaxLease < c.MinLease {
		c.MaxLease = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
}

// Engine is the entry point used by the order workflow and presentation
// layer.
type Engine struct {
	store    Store
	catalog  Catalog
	leases   *LeaseManager
	quota    *QuotaEnforcer
	sweeper  *Sweeper
	sweeps   singleflight.Group
	recorder Recorder
	clock    clock.Clock
	logger   observability.Logger
	cfg      Config
}

func NewEngine(store Store, catalog Catalog, recorder Recorder, clk clock.Clock, logger observability.Logger, cfg Config) *Engine {
	cfg.setDefaults()
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Engine{
		store:    store,
		catalog:  catalog,
		leases:   NewLeaseManager(store, clk, logger),
		quota:    NewQuotaEnforcer(store),
		sweeper:  NewSweeper(store, clk, recorder, logger, cfg.SweepInterval),
		recorder: recorder,
		clock:    clk,
		logger:   logger,
		cfg:      cfg,
	}
}

// Sweeper returns the background sweeper sharing the engine's store, for the
// host process to start and stop.
func (e *Engine) Sweeper() *Sweeper {
	return e.sweeper
}

// MaxLease is the upper lease bound after defaults are applied.
func (e *Engine) MaxLease() time.Duration {
	return e.cfg.MaxLease
}

func (e *Engine) CreateSeatMap(ctx context.Context, eventID, venueID uuid.UUID, rows, cols int) (*domain.SeatMap, error) {
	ctx, span := e.startSpan(ctx, "seating.CreateSeatMap", eventID)
	defer span.End()

	m, err := domain.NewSeatMap(eventID, venueID, rows, cols)
	if err != nil {
		return nil, spanError(span, err)
	}
	if err := e.store.Create(ctx, m); err != nil {
		return nil, spanError(span, err)
	}
	e.logger.WithFields(map[string]interface{}{
		"event_id": eventID.String(),
		"rows":     rows,
		"cols":     cols,
	}).Info("seat map created")
	return m, nil
}

// GetSeatMap returns the map with lapsed holds shown as FREE. When any are
// found the event is swept so storage catches up before the next interval;
// concurrent readers of one event share a single sweep.
func (e *Engine) GetSeatMap(ctx context.Context, eventID uuid.UUID) (*domain.SeatMap, error) {
	ctx, span := e.startSpan(ctx, "seating.GetSeatMap", eventID)
	defer span.End()

	m, err := e.store.Get(ctx, eventID)
	if err != nil {
		return nil, spanError(span, err)
	}
	now := e.clock.Now()
	if len(m.ExpiredSeats(now)) > 0 {
		_, err, _ := e.sweeps.Do(eventID.String(), func() (interface{}, error) {
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eagerSweepTimeout)
			defer cancel()
			return e.sweeper.SweepEvent(sctx, eventID)
		})
		if err != nil {
			e.logger.WithError(err).WithField("event_id", eventID.String()).Warn("eager sweep failed")
		}
	}
	return m.View(now), nil
}

func (e *Engine) Stats(ctx context.Context, eventID uuid.UUID) (domain.Stats, error) {
	ctx, span := e.startSpan(ctx, "seating.Stats", eventID)
	defer span.End()

	m, err := e.store.Get(ctx, eventID)
	if err != nil {
		return domain.Stats{}, spanError(span, err)
	}
	return m.Stats(e.clock.Now()), nil
}

func (e *Engine) CurrentCount(ctx context.Context, eventID uuid.UUID, holder string) (int, error) {
	return e.quota.CurrentCount(ctx, eventID, holder, e.clock.Now())
}

// Hold reserves seatIDs for holder for lease (the configured default when
// zero, clamped to the configured bounds). The event must be ACTIVE and the
// holder must stay within the event's per-user limit.
func (e *Engine) Hold(ctx context.Context, eventID uuid.UUID, holder string, seatIDs []string, lease time.Duration) (*HoldResult, error) {
	ctx, span := e.startSpan(ctx, "seating.Hold", eventID)
	defer span.End()

	if holder == "" {
		return nil, spanError(span, errors.Wrap(domain.ErrInvalidInput, "holder is required"))
	}
	seats := domain.Dedupe(seatIDs)
	if len(seats) == 0 {
		return nil, spanError(span, errors.Wrap(domain.ErrInvalidInput, "no seats requested"))
	}
	span.SetAttributes(attribute.Int("seats.requested", len(seats)))

	event, err := e.catalog.GetEvent(ctx, eventID)
	if err != nil {
		return nil, spanError(span, err)
	}
	if !event.Bookable() {
		return nil, spanError(span, errors.Wrapf(domain.ErrEventNotBookable, "event %s is %s", eventID, event.Status))
	}

	if err := e.quota.CheckHeadroom(ctx, eventID, holder, len(seats), event.MaxPerUser, e.clock.Now()); err != nil {
		return nil, spanError(span, err)
	}

	res, err := e.leases.Hold(ctx, eventID, holder, seats, e.clampLease(lease))
	if err != nil {
		return nil, spanError(span, err)
	}

	until := res.HoldUntil
	e.record(ctx, domain.SeatEvent{
		Type:      domain.SeatsHeld,
		EventID:   eventID,
		Holder:    holder,
		Seats:     res.Seats,
		HoldUntil: &until,
		At:        e.clock.Now(),
	})
	return res, nil
}

// Release frees the listed seats held by holder and returns the ones that
// were actually released.
func (e *Engine) Release(ctx context.Context, eventID uuid.UUID, holder string, seatIDs []string) ([]string, error) {
	ctx, span := e.startSpan(ctx, "seating.Release", eventID)
	defer span.End()

	released, err := e.leases.Release(ctx, eventID, holder, domain.Dedupe(seatIDs))
	if len(released) > 0 {
		e.record(ctx, domain.SeatEvent{Type: domain.SeatsReleased, EventID: eventID, Holder: holder, Seats: released, At: e.clock.Now()})
	}
	if err != nil {
		return released, spanError(span, err)
	}
	return released, nil
}

// Confirm sells the listed seats still held by holder. Seats missing from the
// result were not confirmed and must be treated as failed by the caller.
func (e *Engine) Confirm(ctx context.Context, eventID uuid.UUID, holder string, seatIDs []string) ([]string, error) {
	ctx, span := e.startSpan(ctx, "seating.Confirm", eventID)
	defer span.End()

	confirmed, err := e.leases.Confirm(ctx, eventID, holder, domain.Dedupe(seatIDs))
	if len(confirmed) > 0 {
		e.record(ctx, domain.SeatEvent{Type: domain.SeatsConfirmed, EventID: eventID, Holder: holder, Seats: confirmed, At: e.clock.Now()})
	}
	if err != nil {
		return confirmed, spanError(span, err)
	}
	return confirmed, nil
}

func (e *Engine) clampLease(d time.Duration) time.Duration {
	if d <= 0 {
		d = e.cfg.DefaultLease
	}
	if d < e.cfg.MinLease {
		return e.cfg.MinLease
	}
	if d > e.cfg.MaxLease {
		return e.cfg.MaxLease
	}
	return d
}

func (e *Engine) record(ctx context.Context, ev domain.SeatEvent) {
	if err := e.recorder.Record(ctx, ev); err != nil {
		e.logger.WithError(err).WithFields(map[string]interface{}{
			"event_id": ev.EventID.String(),
			"type":     string(ev.Type),
		}).Warn("failed to record seat event")
	}
}

func (e *Engine) startSpan(ctx context.Context, name string, eventID uuid.UUID) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("event.id", eventID.String())))
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
