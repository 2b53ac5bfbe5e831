package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

// querier is the subset of *sql.DB and *sql.Tx the table code reads through.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn in one write transaction. The DSN makes every BEGIN
// immediate, so the checks fn performs and its writes see one snapshot and
// no other writer can commit in between. fn's error rolls everything back.
func (b *Backend) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// exists reports whether query returns a row.
func exists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// count runs a SELECT COUNT(*) query.
func count(ctx context.Context, q querier, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func asValidationError(err error) (*types.ValidationError, bool) {
	var verr *types.ValidationError
	ok := errors.As(err, &verr)
	return verr, ok
}

// txResolver resolves entity references inside the writer's transaction.
type txResolver struct {
	q querier
}

// EntityType returns the entity type name of the entity with id, or
// types.ErrNotFound.
func (r txResolver) EntityType(ctx context.Context, id string) (string, error) {
	var typeName string
	err := r.q.QueryRowContext(ctx,
		"SELECT entity_type_name FROM typed_entities WHERE entity_id = ?", id,
	).Scan(&typeName)
	if errors.Is(err, sql.ErrNoRows) {
		return "", types.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up entity %s: %w", id, err)
	}
	return typeName, nil
}
