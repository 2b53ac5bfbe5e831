package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const entityTypeColumns = "type_id, name, description, created_at"

// DefineEntityType creates an entity type. The name is trimmed and NFC
// normalized; uniqueness is exact and case-sensitive.
func (b *Backend) DefineEntityType(ctx context.Context, name, description string) (_ *types.EntityTypeDefinition, err error) {
	start := time.Now()
	defer func() { b.observe("define_entity_type", start, err) }()

	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	name = types.NormalizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: entity type name must not be blank", types.ErrInvalidName)
	}
	unlock := b.locks.lock(name)
	defer unlock()

	id, err := newID()
	if err != nil {
		return nil, err
	}
	et := &types.EntityTypeDefinition{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   b.timestamp(),
	}

	err = b.inTx(ctx, func(tx *sql.Tx) error {
		taken, err := exists(ctx, tx, "SELECT 1 FROM entity_types WHERE name = ?", name)
		if err != nil {
			return fmt.Errorf("checking entity type name: %w", err)
		}
		if taken {
			return fmt.Errorf("%w: %q", types.ErrDuplicateName, name)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO entity_types (type_id, name, description, created_at) VALUES (?, ?, ?, ?)",
			et.ID, et.Name, et.Description, formatTime(et.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting entity type: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := b.committed(ctx, tableEntityTypes); err != nil {
		return nil, err
	}

	b.logger.Debug("entity type defined", "op", "define_entity_type", "entity_type", name, "id", id)
	return et, nil
}

// GetEntityType returns the named entity type or ErrUnknownEntityType.
func (b *Backend) GetEntityType(ctx context.Context, name string) (*types.EntityTypeDefinition, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return getEntityType(ctx, b.db, types.NormalizeName(name))
}

// ListEntityTypes returns every entity type ordered by name.
func (b *Backend) ListEntityTypes(ctx context.Context) ([]*types.EntityTypeDefinition, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := b.db.QueryContext(ctx, "SELECT "+entityTypeColumns+" FROM entity_types ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing entity types: %w", err)
	}
	defer rows.Close()

	out := []*types.EntityTypeDefinition{}
	for rows.Next() {
		et, err := scanEntityType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, et)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity types: %w", err)
	}
	return out, nil
}

// DeleteEntityType removes an entity type that nothing depends on. Returns
// ErrTypeInUse while the type has fields, another type's reference field
// targets it, or entities of the type exist.
func (b *Backend) DeleteEntityType(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { b.observe("delete_entity_type", start, err) }()

	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	name = types.NormalizeName(name)
	unlock := b.locks.lock(name)
	defer unlock()

	err = b.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getEntityType(ctx, tx, name); err != nil {
			return err
		}

		fields, err := count(ctx, tx, "SELECT COUNT(*) FROM field_definitions WHERE entity_type_name = ?", name)
		if err != nil {
			return fmt.Errorf("counting fields: %w", err)
		}
		if fields > 0 {
			return fmt.Errorf("%w: %q has %d field definitions", types.ErrTypeInUse, name, fields)
		}

		targeting, err := count(ctx, tx,
			`SELECT COUNT(*) FROM field_definitions
			 WHERE field_type IN (?, ?) AND json_extract(configuration, '$.targetType') = ?`,
			string(types.FieldTypeEntityReference), string(types.FieldTypeEntityReferenceList), name)
		if err != nil {
			return fmt.Errorf("counting reference fields: %w", err)
		}
		if targeting > 0 {
			return fmt.Errorf("%w: %q is the target of %d reference fields", types.ErrTypeInUse, name, targeting)
		}

		entities, err := count(ctx, tx, "SELECT COUNT(*) FROM typed_entities WHERE entity_type_name = ?", name)
		if err != nil {
			return fmt.Errorf("counting entities: %w", err)
		}
		if entities > 0 {
			return fmt.Errorf("%w: %q has %d entities", types.ErrTypeInUse, name, entities)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM entity_types WHERE name = ?", name); err != nil {
			return fmt.Errorf("deleting entity type: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := b.committed(ctx, tableEntityTypes); err != nil {
		return err
	}

	b.logger.Debug("entity type deleted", "op", "delete_entity_type", "entity_type", name)
	return nil
}

// RenameEntityType renames a type in one transaction. Fields and entities
// follow through the cascading foreign key; reference fields targeting the
// old name are rewritten to the new one.
func (b *Backend) RenameEntityType(ctx context.Context, oldName, newName string) (_ *types.EntityTypeDefinition, err error) {
	start := time.Now()
	defer func() { b.observe("rename_entity_type", start, err) }()

	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	oldName = types.NormalizeName(oldName)
	newName = types.NormalizeName(newName)
	if newName == "" {
		return nil, fmt.Errorf("%w: entity type name must not be blank", types.ErrInvalidName)
	}
	unlock := b.locks.lock(oldName, newName)
	defer unlock()

	var renamed *types.EntityTypeDefinition
	err = b.inTx(ctx, func(tx *sql.Tx) error {
		et, err := getEntityType(ctx, tx, oldName)
		if err != nil {
			return err
		}
		if oldName == newName {
			renamed = et
			return nil
		}
		taken, err := exists(ctx, tx, "SELECT 1 FROM entity_types WHERE name = ?", newName)
		if err != nil {
			return fmt.Errorf("checking entity type name: %w", err)
		}
		if taken {
			return fmt.Errorf("%w: %q", types.ErrDuplicateName, newName)
		}

		if _, err := tx.ExecContext(ctx, "UPDATE entity_types SET name = ? WHERE name = ?", newName, oldName); err != nil {
			return fmt.Errorf("renaming entity type: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE field_definitions SET configuration = json_set(configuration, '$.targetType', ?)
			 WHERE field_type IN (?, ?) AND json_extract(configuration, '$.targetType') = ?`,
			newName, string(types.FieldTypeEntityReference), string(types.FieldTypeEntityReferenceList), oldName)
		if err != nil {
			return fmt.Errorf("retargeting reference fields: %w", err)
		}

		et.Name = newName
		renamed = et
		return nil
	})
	if err != nil {
		return nil, err
	}
	if oldName != newName {
		if err := b.committed(ctx, tableEntityTypes, tableFieldDefinitions, tableTypedEntities); err != nil {
			return nil, err
		}
	}

	b.logger.Debug("entity type renamed", "op", "rename_entity_type", "entity_type", newName, "previous", oldName)
	return renamed, nil
}

func getEntityType(ctx context.Context, q querier, name string) (*types.EntityTypeDefinition, error) {
	row := q.QueryRowContext(ctx, "SELECT "+entityTypeColumns+" FROM entity_types WHERE name = ?", name)
	et, err := scanEntityType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownEntityType, name)
	}
	return et, err
}

func scanEntityType(s rowScanner) (*types.EntityTypeDefinition, error) {
	var et types.EntityTypeDefinition
	var createdAt string
	if err := s.Scan(&et.ID, &et.Name, &et.Description, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning entity type: %w", err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	et.CreatedAt = t
	return &et, nil
}
