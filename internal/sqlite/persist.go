package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

// tableDumper reads a whole table as JSONL records.
type tableDumper func(ctx context.Context, db *sql.DB) ([]any, error)

var tableDumpers = map[string]tableDumper{
	tableEntityTypes:      dumpEntityTypes,
	tableFieldDefinitions: dumpFieldDefinitions,
	tableTypedEntities:    dumpTypedEntities,
}

// committed schedules JSONL persistence for tables after a successful commit.
// With the immediate strategy the files are written before it returns; with
// on_close the tables are marked dirty until Detach; with batch they are
// flushed once batchSize writes have accumulated or the batch timer fires.
// The caller must hold the attach read lock.
func (b *Backend) committed(ctx context.Context, tables ...string) error {
	// The commit already happened; the caller giving up must not leave the
	// JSONL files behind the database.
	ctx = context.WithoutCancel(ctx)

	switch b.syncStrategy {
	case types.SyncOnClose:
		b.syncMu.Lock()
		for _, t := range tables {
			b.dirty[t] = true
		}
		b.syncMu.Unlock()
		return nil

	case types.SyncBatch:
		b.syncMu.Lock()
		for _, t := range tables {
			b.dirty[t] = true
		}
		b.pending++
		if b.pending < b.batchSize {
			b.syncMu.Unlock()
			return nil
		}
		flush := b.takeDirtyLocked()
		b.syncMu.Unlock()
		return b.persistOrMarkDirty(ctx, flush...)

	default:
		return b.persistOrMarkDirty(ctx, tables...)
	}
}

// persistOrMarkDirty persists tables and, when that fails, puts them back in
// the dirty set so a later flush or Detach writes the committed rows.
func (b *Backend) persistOrMarkDirty(ctx context.Context, tables ...string) error {
	err := b.persistTables(ctx, tables...)
	if err == nil {
		return nil
	}
	b.syncMu.Lock()
	for _, t := range tables {
		b.dirty[t] = true
	}
	b.syncMu.Unlock()
	return fmt.Errorf("committed but not persisted: %w", err)
}

// flushDirty persists every table with unpersisted commits.
func (b *Backend) flushDirty() error {
	b.syncMu.Lock()
	flush := b.takeDirtyLocked()
	b.syncMu.Unlock()
	return b.persistOrMarkDirty(context.Background(), flush...)
}

// takeDirtyLocked empties the dirty set and returns its tables in a stable
// order. The caller must hold syncMu.
func (b *Backend) takeDirtyLocked() []string {
	tables := make([]string, 0, len(b.dirty))
	for t := range b.dirty {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	b.dirty = make(map[string]bool)
	b.pending = 0
	return tables
}

// persistTables snapshots each table and rewrites its JSONL file. Tables are
// written concurrently; snapshots are serialized across callers so a file is
// never replaced by an older snapshot.
func (b *Backend) persistTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	b.persistMu.Lock()
	defer b.persistMu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, table := range tables {
		g.Go(func() error {
			records, err := tableDumpers[table](ctx, b.db)
			if err != nil {
				return fmt.Errorf("snapshot %s: %w", table, err)
			}
			if err := writeJSONL(filepath.Join(b.dataDir, jsonlFile(table)), records); err != nil {
				return fmt.Errorf("persist %s: %w", jsonlFile(table), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// startBatchTimer starts the periodic flush for the batch strategy.
func (b *Backend) startBatchTimer() {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()

	if b.batchTimer != nil {
		return
	}
	b.batchTimer = time.AfterFunc(b.batchInterval, b.onBatchTimer)
}

func (b *Backend) onBatchTimer() {
	release, err := b.acquire()
	if err != nil {
		return
	}
	defer release()

	if err := b.flushDirty(); err != nil {
		b.logger.Error("batch flush failed", "error", err)
	}

	b.syncMu.Lock()
	if b.batchTimer != nil {
		b.batchTimer.Reset(b.batchInterval)
	}
	b.syncMu.Unlock()
}

// stopBatchTimer stops the batch interval timer if running.
func (b *Backend) stopBatchTimer() {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()

	if b.batchTimer != nil {
		b.batchTimer.Stop()
		b.batchTimer = nil
	}
}

func dumpEntityTypes(ctx context.Context, db *sql.DB) ([]any, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT type_id, name, description, created_at FROM entity_types ORDER BY created_at, type_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var r entityTypeJSON
		if err := rows.Scan(&r.TypeID, &r.Name, &r.Description, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func dumpFieldDefinitions(ctx context.Context, db *sql.DB) ([]any, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT field_id, entity_type_name, field_name, field_type, configuration, display_order, is_required, created_at
		 FROM field_definitions ORDER BY entity_type_name, display_order, field_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var r fieldDefinitionJSON
		var cfg string
		if err := rows.Scan(&r.FieldID, &r.EntityTypeName, &r.FieldName, &r.FieldType, &cfg,
			&r.DisplayOrder, &r.IsRequired, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Configuration = []byte(cfg)
		out = append(out, r)
	}
	return out, rows.Err()
}

func dumpTypedEntities(ctx context.Context, db *sql.DB) ([]any, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT entity_id, entity_type_name, title, body, custom_fields, source_entity_id, source_entity_type,
		        version, created_at, updated_at
		 FROM typed_entities ORDER BY created_at, entity_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var r typedEntityJSON
		var fields string
		var srcID, srcType sql.NullString
		if err := rows.Scan(&r.EntityID, &r.EntityTypeName, &r.Title, &r.Body, &fields, &srcID, &srcType,
			&r.Version, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.CustomFields = []byte(fields)
		if srcID.Valid {
			r.SourceEntityID = &srcID.String
		}
		if srcType.Valid {
			r.SourceEntityType = &srcType.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
