// Package sqlite implements the archive backend on SQLite, with one JSONL
// file per table as the source of truth. The database is rebuilt from the
// JSONL files on every Attach and serves as the query engine; committed
// writes are mirrored back to JSONL according to the sync strategy.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rfowler1994/project-archivist/internal/metrics"
	"github.com/rfowler1994/project-archivist/pkg/types"
)

const dbFile = "archivist.db"

// busyTimeoutMillis bounds how long a writer waits for the database lock.
const busyTimeoutMillis = 5000

var _ types.Archive = (*Backend)(nil)

// Backend implements types.Archive.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	dataDir  string
	db       *sql.DB

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	locks   *typeLocks

	// Sync strategy state
	syncStrategy  string
	batchSize     int
	batchInterval time.Duration
	syncMu        sync.Mutex      // guards dirty, pending, batchTimer
	dirty         map[string]bool // tables with unpersisted commits
	pending       int             // writes since the last batch flush
	batchTimer    *time.Timer
	persistMu     sync.Mutex // serializes JSONL snapshots
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics sets the metrics sink. The default registers on a private
// registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Backend) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		logger: slog.Default(),
		now:    time.Now,
		locks:  newTypeLocks(),
		dirty:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics == nil {
		b.metrics = metrics.New(nil)
	}
	return b
}

// Attach validates config, creates DataDir if needed, rebuilds the SQLite
// database from the JSONL files, and starts the batch timer when the batch
// strategy is configured. Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	// JSONL is authoritative; start from an empty database.
	dbPath := filepath.Join(dataDir, dbFile)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale database: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return err
	}
	if err := ensureJSONLFiles(dataDir); err != nil {
		db.Close()
		return err
	}
	if err := loadAllJSONL(context.Background(), db, dataDir, b.logger); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	b.db = db
	b.config = config
	b.dataDir = dataDir
	b.syncStrategy = config.SQLiteConfig.GetSyncStrategy()
	b.batchSize = config.SQLiteConfig.GetBatchSize()
	b.batchInterval = time.Duration(config.SQLiteConfig.GetBatchInterval()) * time.Second
	b.dirty = make(map[string]bool)
	b.pending = 0
	b.attached = true

	if b.syncStrategy == types.SyncBatch {
		b.startBatchTimer()
	}

	b.logger.Info("archive attached", "data_dir", dataDir, "sync_strategy", b.syncStrategy)
	return nil
}

// Detach flushes pending JSONL writes and closes the database. After Detach,
// all operations return ErrArchiveDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	b.stopBatchTimer()
	if err := b.flushDirty(); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	b.db = nil
	b.attached = false

	b.logger.Info("archive detached", "data_dir", b.dataDir)
	return nil
}

// dsn enables foreign keys and WAL on every pooled connection, bounds lock
// waits, and makes every transaction take the write lock at BEGIN.
func dsn(path string) string {
	return fmt.Sprintf(
		"%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_txlock=immediate",
		path, busyTimeoutMillis,
	)
}

func createSchema(db *sql.DB) error {
	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	for _, stmt := range indexDDL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

// acquire takes the attach read lock for the duration of one operation.
// The returned release must be called when the operation ends.
func (b *Backend) acquire() (release func(), err error) {
	b.mu.RLock()
	if !b.attached {
		b.mu.RUnlock()
		return nil, types.ErrArchiveDetached
	}
	return b.mu.RUnlock, nil
}

// timestamp returns the current time in UTC without a monotonic reading.
func (b *Backend) timestamp() time.Time {
	return b.now().UTC()
}

// newID generates a new UUID v7.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating UUID v7: %w", err)
	}
	return id.String(), nil
}

// observe records the outcome of a write.
func (b *Backend) observe(op string, start time.Time, err error) {
	b.metrics.ObserveWrite(op, err, time.Since(start))
	if verr, ok := asValidationError(err); ok {
		b.logger.Info("write rejected", "op", op, "rules", verr.Rules())
	}
}
