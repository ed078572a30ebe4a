// Package idempotency replays stored responses for retried requests that
// carry the same Idempotency-Key.
package idempotency

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	redisadapter "github.com/robertarktes/seatmap-engine/internal/adapters/redis"
)

const (
	MinKeyLength = 16
	MaxKeyLength = 128
)

var ErrInvalidKey = errors.New("invalid Idempotency-Key")

type Store interface {
	Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error)
	Set(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error
}

type Idempotency struct {
	store Store
	ttl   time.Duration
}

func NewIdempotency(store Store, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl}
}

type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// ValidateKey checks a client-supplied key.
func ValidateKey(key string) error {
	if len(key) < MinKeyLength || len(key) > MaxKeyLength {
		return errors.Wrapf(ErrInvalidKey, "length must be between %d and %d", MinKeyLength, MaxKeyLength)
	}
	if strings.ContainsAny(key, " \t\r\n") {
		return errors.Wrap(ErrInvalidKey, "must not contain whitespace")
	}
	return nil
}

// Scope namespaces key by caller and route so two callers or two endpoints
// never share a stored response.
func Scope(principal, method, path, key string) string {
	return strings.Join([]string{principal, method, path, key}, "|")
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	stored, err := i.store.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "load idempotent response")
	}
	if stored == nil {
		return nil, nil
	}
	return &Response{Status: stored.Status, ContentType: stored.ContentType, Body: stored.Result}, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	err := i.store.Set(ctx, key, redisadapter.IdempResponse{
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Result:      resp.Body,
	}, i.ttl)
	return errors.Wrap(err, "store idempotent response")
}
