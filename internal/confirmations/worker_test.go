package confirmations

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/seatmap-engine/internal/domain"
	"github.com/robertarktes/seatmap-engine/internal/observability"
	"github.com/sirupsen/logrus"
)

type ackResult struct {
	acked   bool
	nacked  bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	results map[uint64]ackResult
}

func newFakeAcknowledger() *fakeAcknowledger {
	return &fakeAcknowledger{results: map[uint64]ackResult{}}
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[tag] = ackResult{acked: true}
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[tag] = ackResult{nacked: true, requeue: requeue}
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcknowledger) result(tag uint64) ackResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.results[tag]
}

type fakeConfirmer struct {
	calls     []Request
	confirmed []string
	err       error
}

func (c *fakeConfirmer) Confirm(_ context.Context, eventID uuid.UUID, holder string, seatIDs []string) ([]string, error) {
	c.calls = append(c.calls, Request{EventID: eventID, UserID: holder, Seats: seatIDs})
	return c.confirmed, c.err
}

func delivery(t *testing.T, ack amqp.Acknowledger, tag uint64, body interface{}) amqp.Delivery {
	t.Helper()
	var raw []byte
	switch b := body.(type) {
	case []byte:
		raw = b
	default:
		var err error
		raw, err = json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
	}
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, MessageId: uuid.NewString(), Body: raw}
}

func testLogger() observability.Logger {
	return observability.NewLoggerTo(io.Discard, logrus.DebugLevel)
}

func TestWorker_Handle(t *testing.T) {
	eventID := uuid.New()
	valid := Request{EventID: eventID, UserID: "u1", Seats: []string{"A1", "A2"}}

	tests := []struct {
		name      string
		body      interface{}
		confirmed []string
		err       error
		want      ackResult
		wantCalls int
	}{
		{"confirmed", valid, []string{"A1", "A2"}, nil, ackResult{acked: true}, 1},
		{"partially confirmed", valid, []string{"A1"}, nil, ackResult{acked: true}, 1},
		{"malformed json", []byte("{not json"), nil, nil, ackResult{nacked: true}, 0},
		{"missing user", Request{EventID: eventID, Seats: []string{"A1"}}, nil, nil, ackResult{nacked: true}, 0},
		{"missing seats", Request{EventID: eventID, UserID: "u1"}, nil, nil, ackResult{nacked: true}, 0},
		{"store failure", valid, nil, errors.New("store down"), ackResult{nacked: true, requeue: true}, 1},
		{"rejected input", valid, nil, errors.Wrap(domain.ErrInvalidInput, "bad"), ackResult{nacked: true}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := newFakeAcknowledger()
			confirmer := &fakeConfirmer{confirmed: tt.confirmed, err: tt.err}
			w := NewWorker(confirmer, testLogger(), time.Millisecond)

			w.Handle(context.Background(), delivery(t, ack, 7, tt.body))

			if got := ack.result(7); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
			if len(confirmer.calls) != tt.wantCalls {
				t.Fatalf("expected %d confirm calls, got %d", tt.wantCalls, len(confirmer.calls))
			}
			if tt.wantCalls > 0 && confirmer.calls[0].UserID != "u1" {
				t.Errorf("expected holder u1, got %q", confirmer.calls[0].UserID)
			}
		})
	}
}

func TestWorker_Run(t *testing.T) {
	ack := newFakeAcknowledger()
	confirmer := &fakeConfirmer{confirmed: []string{"A1"}}
	w := NewWorker(confirmer, testLogger(), time.Millisecond)

	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- delivery(t, ack, 1, Request{EventID: uuid.New(), UserID: "u1", Seats: []string{"A1"}})
	deliveries <- delivery(t, ack, 2, []byte("garbage"))
	close(deliveries)

	err := w.Run(context.Background(), deliveries)
	if !errors.Is(err, ErrDeliveriesClosed) {
		t.Fatalf("expected deliveries closed, got %v", err)
	}
	if !ack.result(1).acked {
		t.Error("expected first delivery to be acked")
	}
	if r := ack.result(2); !r.nacked || r.requeue {
		t.Errorf("expected second delivery to be dropped, got %+v", r)
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	w := NewWorker(&fakeConfirmer{}, testLogger(), 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, make(chan amqp.Delivery)) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_RequeueWaitsForRetryDelay(t *testing.T) {
	ack := newFakeAcknowledger()
	w := NewWorker(&fakeConfirmer{err: errors.New("store down")}, testLogger(), 50*time.Millisecond)
	body := Request{EventID: uuid.New(), UserID: "u1", Seats: []string{"A1"}}

	began := time.Now()
	w.Handle(context.Background(), delivery(t, ack, 3, body))

	if elapsed := time.Since(began); elapsed < 50*time.Millisecond {
		t.Errorf("expected requeue after the retry delay, got %s", elapsed)
	}
	if r := ack.result(3); !r.nacked || !r.requeue {
		t.Errorf("expected nack with requeue, got %+v", r)
	}
}

func TestWorker_RequeueSkipsDelayOnCancel(t *testing.T) {
	ack := newFakeAcknowledger()
	w := NewWorker(&fakeConfirmer{err: errors.New("store down")}, testLogger(), time.Hour)
	d := delivery(t, ack, 4, Request{EventID: uuid.New(), UserID: "u1", Seats: []string{"A1"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		w.Handle(ctx, d)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handle did not return after cancel")
	}
	if r := ack.result(4); !r.nacked || !r.requeue {
		t.Errorf("expected nack with requeue, got %+v", r)
	}
}
