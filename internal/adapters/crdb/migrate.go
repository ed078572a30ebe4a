package crdb

import (
	"context"
	_ "embed"

	"github.com/cockroachdb/errors"
)

//go:embed schema.sql
var schema string

// Migrate creates the catalog and outbox tables if they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return errors.Wrap(err, "apply schema")
}
