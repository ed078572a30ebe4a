package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/seatmap-engine/internal/domain"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"
)

// Repository serves the event catalog and the outbox from CockroachDB.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var ev domain.Event
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, venue_id, status, max_per_user, capacity
		FROM events WHERE id = $1
	`, id).Scan(&ev.ID, &ev.VenueID, &status, &ev.MaxPerUser, &ev.Capacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrEventNotFound, "event %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get event")
	}
	ev.Status = domain.EventStatus(status)
	return &ev, nil
}

func (r *Repository) CreateEvent(ctx context.Context, ev domain.Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO events (id, venue_id, status, max_per_user, capacity)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ID, ev.VenueID, string(ev.Status), ev.MaxPerUser, ev.Capacity)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == UniqueViolationCode {
		return errors.Wrapf(domain.ErrConflict, "event %s", ev.ID)
	}
	return errors.Wrap(err, "create event")
}

func (r *Repository) SetEventStatus(ctx context.Context, id uuid.UUID, status domain.EventStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE events SET status = $2 WHERE id = $1
	`, id, string(status))
	if err != nil {
		return errors.Wrap(err, "update event status")
	}
	if result.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrEventNotFound, "event %s", id)
	}
	return nil
}

// DeleteEvent removes an event that never left DRAFT.
func (r *Repository) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM events WHERE id = $1 AND status = 'DRAFT'
	`, id)
	if err != nil {
		return errors.Wrap(err, "delete event")
	}
	if result.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrEventNotFound, "draft event %s", id)
	}
	return nil
}
