package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

// errSkipRecord marks a JSONL record that is readable JSON but not a usable
// row. The loader logs and drops such records.
var errSkipRecord = errors.New("unusable record")

// recordLoader inserts one decoded JSONL record.
type recordLoader func(ctx context.Context, tx *sql.Tx, rec json.RawMessage) error

var recordLoaders = map[string]recordLoader{
	tableEntityTypes:      loadEntityType,
	tableFieldDefinitions: loadFieldDefinition,
	tableTypedEntities:    loadTypedEntity,
}

// loadAllJSONL reads each table's JSONL file from dataDir into the freshly
// created database in one transaction. Malformed lines, records that fail to
// decode, and rows that violate a constraint (such as a field whose entity
// type is missing) are skipped with a warning. Unknown JSON fields are ignored.
func loadAllJSONL(ctx context.Context, db *sql.DB, dataDir string, logger *slog.Logger) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range tablesInLoadOrder {
		file := jsonlFile(table)
		records, skipped, err := readJSONL(filepath.Join(dataDir, file))
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}
		load := recordLoaders[table]
		loaded := 0
		for i, rec := range records {
			if err := load(ctx, tx, rec); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				skipped++
				logger.Warn("skipping JSONL record", "file", file, "record", i, "error", err)
				continue
			}
			loaded++
		}
		logger.Debug("loaded JSONL", "file", file, "records", loaded, "skipped", skipped)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

func loadEntityType(ctx context.Context, tx *sql.Tx, rec json.RawMessage) error {
	var r entityTypeJSON
	if err := json.Unmarshal(rec, &r); err != nil {
		return err
	}
	name := types.NormalizeName(r.Name)
	if r.TypeID == "" || name == "" {
		return fmt.Errorf("%w: entity type needs type_id and name", errSkipRecord)
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: created_at: %v", errSkipRecord, err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO entity_types (type_id, name, description, created_at) VALUES (?, ?, ?, ?)",
		r.TypeID, name, r.Description, formatTime(createdAt),
	)
	return err
}

func loadFieldDefinition(ctx context.Context, tx *sql.Tx, rec json.RawMessage) error {
	var r fieldDefinitionJSON
	if err := json.Unmarshal(rec, &r); err != nil {
		return err
	}
	name := types.NormalizeName(r.FieldName)
	if r.FieldID == "" || name == "" {
		return fmt.Errorf("%w: field needs field_id and field_name", errSkipRecord)
	}
	ft, err := types.ParseFieldType(r.FieldType)
	if err != nil {
		return fmt.Errorf("%w: %v", errSkipRecord, err)
	}
	cfg, err := parseConfiguration(ft, r.Configuration)
	if err != nil {
		return fmt.Errorf("%w: %v", errSkipRecord, err)
	}
	cfgJSON, err := encodeObject(cfg.Map())
	if err != nil {
		return err
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: created_at: %v", errSkipRecord, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO field_definitions
		 (field_id, entity_type_name, field_name, field_key, field_type, configuration, display_order, is_required, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.FieldID, types.NormalizeName(r.EntityTypeName), name, types.FieldKey(name), string(ft), cfgJSON,
		r.DisplayOrder, r.IsRequired, formatTime(createdAt),
	)
	return err
}

func loadTypedEntity(ctx context.Context, tx *sql.Tx, rec json.RawMessage) error {
	var r typedEntityJSON
	if err := json.Unmarshal(rec, &r); err != nil {
		return err
	}
	if r.EntityID == "" {
		return fmt.Errorf("%w: entity needs entity_id", errSkipRecord)
	}
	fields, err := decodeObject(r.CustomFields)
	if err != nil {
		return fmt.Errorf("%w: custom_fields: %v", errSkipRecord, err)
	}
	fieldsJSON, err := encodeObject(fields)
	if err != nil {
		return err
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: created_at: %v", errSkipRecord, err)
	}
	updatedAt, err := parseTime(r.UpdatedAt)
	if err != nil || updatedAt.Before(createdAt) {
		updatedAt = createdAt
	}
	version := r.Version
	if version < 1 {
		version = 1
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO typed_entities
		 (entity_id, entity_type_name, title, body, custom_fields, source_entity_id, source_entity_type, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.EntityID, types.NormalizeName(r.EntityTypeName), r.Title, r.Body, fieldsJSON,
		r.SourceEntityID, r.SourceEntityType, version, formatTime(createdAt), formatTime(updatedAt),
	)
	return err
}
