package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rfowler1994/project-archivist/internal/validate"
	"github.com/rfowler1994/project-archivist/pkg/types"
)

const entityColumns = `entity_id, entity_type_name, title, body, custom_fields, source_entity_id, source_entity_type,
	version, created_at, updated_at`

// CreateEntity validates e against the live fields of its type and stores it
// with Version 1. Reference lookups and the insert share one transaction.
//
// The JSONL file is written after the commit. An error from that write does
// not roll the entity back: it stays in the database, the table is left
// dirty, and the next entity write or Detach persists it. Callers should
// look the entity up rather than retry the create.
func (b *Backend) CreateEntity(ctx context.Context, e types.NewEntity) (_ *types.TypedEntity, err error) {
	start := time.Now()
	defer func() { b.observe("create_entity", start, err) }()

	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	typeName := types.NormalizeName(e.EntityTypeName)
	unlock := b.locks.rlock(typeName)
	defer unlock()

	id, err := newID()
	if err != nil {
		return nil, err
	}
	now := b.timestamp()

	var created *types.TypedEntity
	err = b.inTx(ctx, func(tx *sql.Tx) error {
		// An unknown type outranks a blank title.
		if _, err := getEntityType(ctx, tx, typeName); err != nil {
			return err
		}
		if strings.TrimSpace(e.Title) == "" {
			return fmt.Errorf("%w: title must not be blank", types.ErrInvalidName)
		}
		data, err := b.validateData(ctx, tx, typeName, e.CustomFieldsData)
		if err != nil {
			return err
		}
		var srcID, srcType *string
		if e.Provenance != nil && !e.Provenance.IsZero() {
			srcID, srcType = &e.Provenance.SourceEntityID, &e.Provenance.SourceEntityType
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO typed_entities ("+entityColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)",
			id, typeName, e.Title, e.Body, data, srcID, srcType, formatTime(now), formatTime(now))
		if err != nil {
			return fmt.Errorf("inserting entity: %w", err)
		}
		created, err = getEntity(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := b.committed(ctx, tableTypedEntities); err != nil {
		return nil, err
	}

	b.logger.Debug("entity created", "op", "create_entity", "entity_type", typeName, "id", id)
	return created, nil
}

// UpdateEntity replaces the title, body, and custom fields of an entity whose
// stored version equals u.Version, re-validating against the live schema.
// A stale version returns ErrConflictingUpdate; the caller re-reads and
// retries. As with CreateEntity, a JSONL write error after the commit leaves
// the update in place; re-reading shows the new version.
func (b *Backend) UpdateEntity(ctx context.Context, u types.EntityUpdate) (_ *types.TypedEntity, err error) {
	start := time.Now()
	defer func() { b.observe("update_entity", start, err) }()

	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if u.ID == "" {
		return nil, types.ErrInvalidID
	}
	if strings.TrimSpace(u.Title) == "" {
		return nil, fmt.Errorf("%w: title must not be blank", types.ErrInvalidName)
	}

	// The type decides which lock to take; it is re-checked once the
	// transaction holds the write lock.
	current, err := getEntity(ctx, b.db, u.ID)
	if err != nil {
		return nil, err
	}
	unlock := b.locks.rlock(current.EntityTypeName)
	defer unlock()

	var updated *types.TypedEntity
	err = b.inTx(ctx, func(tx *sql.Tx) error {
		stored, err := getEntity(ctx, tx, u.ID)
		if err != nil {
			return err
		}
		if stored.EntityTypeName != current.EntityTypeName {
			return fmt.Errorf("%w: entity %s changed type during update", types.ErrConflictingUpdate, u.ID)
		}
		if stored.Version != u.Version {
			return fmt.Errorf("%w: entity %s is at version %d, update was based on %d",
				types.ErrConflictingUpdate, u.ID, stored.Version, u.Version)
		}

		data, err := b.validateData(ctx, tx, stored.EntityTypeName, u.CustomFieldsData)
		if err != nil {
			return err
		}

		updatedAt := b.timestamp()
		if updatedAt.Before(stored.UpdatedAt) {
			updatedAt = stored.UpdatedAt
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE typed_entities SET title = ?, body = ?, custom_fields = ?, version = version + 1, updated_at = ?
			 WHERE entity_id = ? AND version = ?`,
			u.Title, u.Body, data, formatTime(updatedAt), u.ID, u.Version)
		if err != nil {
			return fmt.Errorf("updating entity: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			return fmt.Errorf("%w: entity %s was modified concurrently", types.ErrConflictingUpdate, u.ID)
		}
		updated, err = getEntity(ctx, tx, u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := b.committed(ctx, tableTypedEntities); err != nil {
		return nil, err
	}

	b.logger.Debug("entity updated", "op", "update_entity", "entity_type", updated.EntityTypeName,
		"id", updated.ID, "version", updated.Version)
	return updated, nil
}

// DeleteEntity removes an entity. Entities that reference it keep their
// values; the dangling reference is reported on their next write.
func (b *Backend) DeleteEntity(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { b.observe("delete_entity", start, err) }()

	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	if id == "" {
		return types.ErrInvalidID
	}

	var typeName string
	err = b.inTx(ctx, func(tx *sql.Tx) error {
		stored, err := getEntity(ctx, tx, id)
		if err != nil {
			return err
		}
		typeName = stored.EntityTypeName
		if _, err := tx.ExecContext(ctx, "DELETE FROM typed_entities WHERE entity_id = ?", id); err != nil {
			return fmt.Errorf("deleting entity: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := b.committed(ctx, tableTypedEntities); err != nil {
		return err
	}

	b.logger.Debug("entity deleted", "op", "delete_entity", "entity_type", typeName, "id", id)
	return nil
}

// GetEntity returns the stored entity without re-validating it.
func (b *Backend) GetEntity(ctx context.Context, id string) (*types.TypedEntity, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if id == "" {
		return nil, types.ErrInvalidID
	}
	return getEntity(ctx, b.db, id)
}

// ListEntitiesOfType returns every entity of a type ordered by CreatedAt then
// ID.
func (b *Backend) ListEntitiesOfType(ctx context.Context, typeName string) ([]*types.TypedEntity, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	typeName = types.NormalizeName(typeName)
	if _, err := getEntityType(ctx, b.db, typeName); err != nil {
		return nil, err
	}
	return queryEntities(ctx, b.db,
		"SELECT "+entityColumns+" FROM typed_entities WHERE entity_type_name = ? ORDER BY created_at, entity_id",
		typeName)
}

// ListEntitiesBySource returns the entities whose provenance names
// sourceEntityID, ordered by CreatedAt then ID.
func (b *Backend) ListEntitiesBySource(ctx context.Context, sourceEntityID string) ([]*types.TypedEntity, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if sourceEntityID == "" {
		return nil, types.ErrInvalidID
	}
	return queryEntities(ctx, b.db,
		"SELECT "+entityColumns+" FROM typed_entities WHERE source_entity_id = ? ORDER BY created_at, entity_id",
		sourceEntityID)
}

// validateData checks candidate against the fields of typeName as seen by tx
// and returns the JSON document to store.
func (b *Backend) validateData(ctx context.Context, tx *sql.Tx, typeName string, candidate map[string]any) (string, error) {
	if _, err := getEntityType(ctx, tx, typeName); err != nil {
		return "", err
	}
	fields, err := listFields(ctx, tx, typeName)
	if err != nil {
		return "", err
	}
	res, err := validate.Validate(ctx, fields, candidate, txResolver{q: tx})
	if err != nil {
		return "", err
	}
	doc, err := encodeObject(res.Data)
	if err != nil {
		return "", fmt.Errorf("encoding custom fields: %w", err)
	}
	return doc, nil
}

func getEntity(ctx context.Context, q querier, id string) (*types.TypedEntity, error) {
	row := q.QueryRowContext(ctx, "SELECT "+entityColumns+" FROM typed_entities WHERE entity_id = ?", id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: entity %s", types.ErrNotFound, id)
	}
	return e, err
}

func queryEntities(ctx context.Context, q querier, query string, args ...any) ([]*types.TypedEntity, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	out := []*types.TypedEntity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return out, nil
}

func scanEntity(s rowScanner) (*types.TypedEntity, error) {
	var e types.TypedEntity
	var fields, createdAt, updatedAt string
	var srcID, srcType sql.NullString
	if err := s.Scan(&e.ID, &e.EntityTypeName, &e.Title, &e.Body, &fields, &srcID, &srcType,
		&e.Version, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning entity: %w", err)
	}

	data, err := decodeObject([]byte(fields))
	if err != nil {
		return nil, fmt.Errorf("entity %s custom_fields: %w", e.ID, err)
	}
	e.CustomFieldsData = data
	if srcID.Valid || srcType.Valid {
		e.Provenance = &types.Provenance{SourceEntityID: srcID.String, SourceEntityType: srcType.String}
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &e, nil
}
