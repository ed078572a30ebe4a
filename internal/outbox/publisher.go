package outbox

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/seatmap-engine/internal/adapters/crdb"
	"github.com/robertarktes/seatmap-engine/internal/clock"
	"github.com/robertarktes/seatmap-engine/internal/observability"
)

const (
	DefaultInterval  = 5 * time.Second
	DefaultBatchSize = 50
	maxPublishTries  = 3
)

type Source interface {
	GetUnpublishedOutbox(ctx context.Context, limit int) ([]crdb.OutboxRecord, error)
	MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
}

type Sink interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// Publisher relays pending outbox records to the broker. Delivery is at
// least once: a record published but not marked is sent again.
type Publisher struct {
	source    Source
	sink      Sink
	clock     clock.Clock
	logger    observability.Logger
	interval  time.Duration
	batchSize int
	backoff   time.Duration
}

func NewPublisher(source Source, sink Sink, clk clock.Clock, logger observability.Logger, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Publisher{
		source:    source,
		sink:      sink,
		clock:     clk,
		logger:    logger,
		interval:  interval,
		batchSize: DefaultBatchSize,
		backoff:   200 * time.Millisecond,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	p.logger.WithField("interval", p.interval.String()).Info("outbox publisher started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox publisher stopped")
			return
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.WithError(err).Error("outbox batch failed")
			}
		}
	}
}

// PublishBatch relays one batch in creation order and stops at the first
// record that cannot be delivered, so ordering per aggregate is kept.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	records, err := p.source.GetUnpublishedOutbox(ctx, p.batchSize)
	if err != nil {
		return 0, errors.Wrap(err, "load outbox")
	}

	published := 0
	for _, rec := range records {
		observability.OutboxLag.Set(p.clock.Now().Sub(rec.CreatedAt).Seconds())

		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Timestamp:   rec.CreatedAt,
			Type:        rec.EventType,
			Body:        rec.Payload,
		}
		if err := p.publish(ctx, rec.EventType, msg); err != nil {
			return published, errors.Wrapf(err, "publish outbox record %s", rec.ID)
		}
		if err := p.source.MarkPublished(ctx, rec.ID, p.clock.Now()); err != nil {
			return published, errors.Wrapf(err, "mark outbox record %s", rec.ID)
		}
		published++
	}
	if len(records) == 0 {
		observability.OutboxLag.Set(0)
	}
	return published, nil
}

func (p *Publisher) publish(ctx context.Context, key string, msg amqp.Publishing) error {
	var err error
	for attempt := 0; attempt < maxPublishTries; attempt++ {
		if attempt > 0 {
			observability.RabbitPublishRetries.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff << (attempt - 1)):
			}
		}
		if err = p.sink.Publish(ctx, key, msg); err == nil {
			return nil
		}
		p.logger.WithError(err).WithField("attempt", attempt+1).Warn("publish failed")
	}
	return err
}
