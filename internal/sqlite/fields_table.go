package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

const fieldColumns = "field_id, entity_type_name, field_name, field_type, configuration, display_order, is_required, created_at"

// fieldInput is a FieldSpec after normalization and configuration checks.
type fieldInput struct {
	typeName  string
	fieldName string
	fieldType types.FieldType
	config    types.FieldConfig
	configDoc string
}

// prepareField normalizes spec and checks everything that does not need the
// database.
func prepareField(spec types.FieldSpec) (*fieldInput, error) {
	in := &fieldInput{
		typeName:  types.NormalizeName(spec.EntityTypeName),
		fieldName: types.NormalizeName(spec.FieldName),
	}
	if in.fieldName == "" {
		return nil, fmt.Errorf("%w: field name must not be blank", types.ErrInvalidName)
	}

	ft := spec.FieldType
	if !ft.Valid() {
		parsed, err := types.ParseFieldType(string(ft))
		if err != nil {
			return nil, err
		}
		ft = parsed
	}
	cfg, err := types.ParseFieldConfig(ft, spec.Configuration)
	if err != nil {
		return nil, err
	}
	doc, err := encodeObject(cfg.Map())
	if err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}
	in.fieldType, in.config, in.configDoc = ft, cfg, doc
	return in, nil
}

// checkTarget verifies that a reference field's target type exists.
func checkTarget(ctx context.Context, q querier, cfg types.FieldConfig) error {
	target, ok := types.ConfigTargetType(cfg)
	if !ok {
		return nil
	}
	found, err := exists(ctx, q, "SELECT 1 FROM entity_types WHERE name = ?", target)
	if err != nil {
		return fmt.Errorf("checking target type: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: target type %q does not exist", types.ErrInvalidConfiguration, target)
	}
	return nil
}

// DefineField adds a field to an entity type. Field names are unique per type
// without regard to case.
func (b *Backend) DefineField(ctx context.Context, spec types.FieldSpec) (_ *types.FieldDefinition, err error) {
	start := time.Now()
	defer func() { b.observe("define_field", start, err) }()

	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	in, err := prepareField(spec)
	if err != nil {
		return nil, err
	}
	unlock := b.locks.lock(in.typeName)
	defer unlock()

	id, err := newID()
	if err != nil {
		return nil, err
	}
	fd := &types.FieldDefinition{
		ID:             id,
		EntityTypeName: in.typeName,
		FieldName:      in.fieldName,
		FieldType:      in.fieldType,
		Configuration:  in.config,
		DisplayOrder:   spec.DisplayOrder,
		IsRequired:     spec.IsRequired,
		CreatedAt:      b.timestamp(),
	}

	err = b.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getEntityType(ctx, tx, in.typeName); err != nil {
			return err
		}
		if err := checkTarget(ctx, tx, in.config); err != nil {
			return err
		}
		taken, err := exists(ctx, tx,
			"SELECT 1 FROM field_definitions WHERE entity_type_name = ? AND field_key = ?",
			in.typeName, types.FieldKey(in.fieldName))
		if err != nil {
			return fmt.Errorf("checking field name: %w", err)
		}
		if taken {
			return fmt.Errorf("%w: %q on %q", types.ErrDuplicateField, in.fieldName, in.typeName)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO field_definitions
			 (field_id, entity_type_name, field_name, field_key, field_type, configuration, display_order, is_required, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			fd.ID, fd.EntityTypeName, fd.FieldName, types.FieldKey(fd.FieldName), string(fd.FieldType), in.configDoc,
			fd.DisplayOrder, fd.IsRequired, formatTime(fd.CreatedAt))
		if err != nil {
			return fmt.Errorf("inserting field: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := b.committed(ctx, tableFieldDefinitions); err != nil {
		return nil, err
	}

	b.logger.Debug("field defined", "op", "define_field", "entity_type", in.typeName, "field", in.fieldName, "id", id)
	return fd, nil
}

// UpdateField changes the type, configuration, display order, and required
// flag of an existing field. The name is immutable. Stored entity values are
// left alone and meet the new definition on their next write.
func (b *Backend) UpdateField(ctx context.Context, spec types.FieldSpec) (_ *types.FieldDefinition, err error) {
	start := time.Now()
	defer func() { b.observe("update_field", start, err) }()

	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	in, err := prepareField(spec)
	if err != nil {
		return nil, err
	}
	unlock := b.locks.lock(in.typeName)
	defer unlock()

	var fd *types.FieldDefinition
	err = b.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getEntityType(ctx, tx, in.typeName); err != nil {
			return err
		}
		current, err := getField(ctx, tx, in.typeName, in.fieldName)
		if err != nil {
			return err
		}
		if err := checkTarget(ctx, tx, in.config); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE field_definitions SET field_type = ?, configuration = ?, display_order = ?, is_required = ?
			 WHERE field_id = ?`,
			string(in.fieldType), in.configDoc, spec.DisplayOrder, spec.IsRequired, current.ID)
		if err != nil {
			return fmt.Errorf("updating field: %w", err)
		}
		current.FieldType = in.fieldType
		current.Configuration = in.config
		current.DisplayOrder = spec.DisplayOrder
		current.IsRequired = spec.IsRequired
		fd = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := b.committed(ctx, tableFieldDefinitions); err != nil {
		return nil, err
	}

	b.logger.Debug("field updated", "op", "update_field", "entity_type", in.typeName, "field", fd.FieldName, "id", fd.ID)
	return fd, nil
}

// ListFields returns the fields of a type ordered by DisplayOrder then ID.
func (b *Backend) ListFields(ctx context.Context, typeName string) ([]*types.FieldDefinition, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	typeName = types.NormalizeName(typeName)
	if _, err := getEntityType(ctx, b.db, typeName); err != nil {
		return nil, err
	}
	return listFields(ctx, b.db, typeName)
}

// DeleteField removes a field definition. Values stored under the field's
// name stay in every entity and are ignored from then on.
func (b *Backend) DeleteField(ctx context.Context, typeName, fieldName string) (err error) {
	start := time.Now()
	defer func() { b.observe("delete_field", start, err) }()

	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	typeName = types.NormalizeName(typeName)
	unlock := b.locks.lock(typeName)
	defer unlock()

	err = b.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getEntityType(ctx, tx, typeName); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"DELETE FROM field_definitions WHERE entity_type_name = ? AND field_key = ?",
			typeName, types.FieldKey(fieldName))
		if err != nil {
			return fmt.Errorf("deleting field: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("deleting field: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: field %q on %q", types.ErrNotFound, fieldName, typeName)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := b.committed(ctx, tableFieldDefinitions); err != nil {
		return err
	}

	b.logger.Debug("field deleted", "op", "delete_field", "entity_type", typeName, "field", fieldName)
	return nil
}

func listFields(ctx context.Context, q querier, typeName string) ([]*types.FieldDefinition, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+fieldColumns+" FROM field_definitions WHERE entity_type_name = ? ORDER BY display_order, field_id",
		typeName)
	if err != nil {
		return nil, fmt.Errorf("listing fields: %w", err)
	}
	defer rows.Close()

	out := []*types.FieldDefinition{}
	for rows.Next() {
		fd, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fields: %w", err)
	}
	return out, nil
}

func getField(ctx context.Context, q querier, typeName, fieldName string) (*types.FieldDefinition, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+fieldColumns+" FROM field_definitions WHERE entity_type_name = ? AND field_key = ?",
		typeName, types.FieldKey(fieldName))
	fd, err := scanField(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: field %q on %q", types.ErrNotFound, fieldName, typeName)
	}
	return fd, err
}

func scanField(s rowScanner) (*types.FieldDefinition, error) {
	var fd types.FieldDefinition
	var fieldType, cfg, createdAt string
	if err := s.Scan(&fd.ID, &fd.EntityTypeName, &fd.FieldName, &fieldType, &cfg,
		&fd.DisplayOrder, &fd.IsRequired, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning field: %w", err)
	}
	fd.FieldType = types.FieldType(fieldType)
	c, err := parseConfiguration(fd.FieldType, []byte(cfg))
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fd.ID, err)
	}
	fd.Configuration = c
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	fd.CreatedAt = t
	return &fd, nil
}
