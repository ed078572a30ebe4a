// Package confirmations turns confirmation requests published by the order
// workflow into seat confirmations.
package confirmations

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/seatmap-engine/internal/domain"
	"github.com/robertarktes/seatmap-engine/internal/observability"
)

var ErrDeliveriesClosed = errors.New("deliveries channel closed")

// DefaultRetryDelay is the pause before a failed request is requeued.
const DefaultRetryDelay = 2 * time.Second

type Confirmer interface {
	Confirm(ctx context.Context, eventID uuid.UUID, holder string, seatIDs []string) ([]string, error)
}

type Request struct {
	EventID uuid.UUID `json:"event_id"`
	UserID  string    `json:"user_id"`
	Seats   []string  `json:"seats"`
}

func (r Request) validate() error {
	if r.EventID == uuid.Nil {
		return errors.Wrap(domain.ErrInvalidInput, "event_id is required")
	}
	if r.UserID == "" {
		return errors.Wrap(domain.ErrInvalidInput, "user_id is required")
	}
	if len(r.Seats) == 0 {
		return errors.Wrap(domain.ErrInvalidInput, "seats are required")
	}
	return nil
}

type Worker struct {
	confirmer  Confirmer
	logger     observability.Logger
	retryDelay time.Duration
}

// NewWorker builds a worker; a non-positive retryDelay uses DefaultRetryDelay.
func NewWorker(confirmer Confirmer, logger observability.Logger, retryDelay time.Duration) *Worker {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &Worker{confirmer: confirmer, logger: logger, retryDelay: retryDelay}
}

// Run handles deliveries until ctx is done or the channel closes.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	w.logger.Info("confirmation worker started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDeliveriesClosed
			}
			w.Handle(ctx, d)
		}
	}
}

// Handle acks a processed request. Malformed requests are dropped and
// failures are requeued after retryDelay, or at once when ctx is done;
// Confirm is idempotent so redelivery is safe.
func (w *Worker) Handle(ctx context.Context, d amqp.Delivery) {
	log := w.logger.WithField("message_id", d.MessageId)

	var req Request
	if err := json.Unmarshal(d.Body, &req); err != nil {
		log.WithError(err).Warn("dropping malformed confirmation request")
		w.nack(log, d, false)
		return
	}
	if err := req.validate(); err != nil {
		log.WithError(err).Warn("dropping invalid confirmation request")
		w.nack(log, d, false)
		return
	}

	log = log.WithFields(map[string]interface{}{
		"event_id": req.EventID.String(),
		"user_id":  req.UserID,
	})
	confirmed, err := w.confirmer.Confirm(ctx, req.EventID, req.UserID, req.Seats)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			log.WithError(err).Warn("dropping rejected confirmation request")
			w.nack(log, d, false)
			return
		}
		log.WithError(err).WithField("retry_in", w.retryDelay.String()).Error("confirmation failed, requeueing")
		w.backoff(ctx)
		w.nack(log, d, true)
		return
	}

	if len(confirmed) < len(domain.Dedupe(req.Seats)) {
		log.WithField("confirmed", confirmed).Warn("some seats were no longer held")
	}
	if err := d.Ack(false); err != nil {
		log.WithError(err).Error("failed to ack confirmation request")
	}
}

func (w *Worker) backoff(ctx context.Context) {
	t := time.NewTimer(w.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *Worker) nack(log observability.Logger, d amqp.Delivery, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		log.WithError(err).Error("failed to nack confirmation request")
	}
}
