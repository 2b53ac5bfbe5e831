// Package sqlite provides the public API for the SQLite archive backend.
// This package exposes the factory function for creating SQLite backends
// while keeping implementation details internal.
package sqlite

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rfowler1994/project-archivist/internal/metrics"
	"github.com/rfowler1994/project-archivist/internal/sqlite"
	"github.com/rfowler1994/project-archivist/pkg/types"
)

// Option configures a backend created by NewBackend.
type Option = sqlite.Option

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return sqlite.WithLogger(l)
}

// WithRegisterer registers the backend's Prometheus metrics on reg instead of
// a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return sqlite.WithMetrics(metrics.New(reg))
}

// WithClock replaces time.Now for entity and schema timestamps.
func WithClock(now func() time.Time) Option {
	return sqlite.WithClock(now)
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	archive := sqlite.NewBackend(sqlite.WithLogger(logger))
//	err := archive.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".archivist-db",
//	})
//	defer archive.Detach()
func NewBackend(opts ...Option) types.Archive {
	return sqlite.NewBackend(opts...)
}
