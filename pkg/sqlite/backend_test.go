package sqlite

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

func TestNewBackend_Options(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	archive := NewBackend(
		WithLogger(slog.New(slog.DiscardHandler)),
		WithRegisterer(reg),
		WithClock(func() time.Time { return fixed }),
	)
	require.NoError(t, archive.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { _ = archive.Detach() })

	def, err := archive.DefineEntityType(ctx, "task", "")
	require.NoError(t, err)
	assert.True(t, def.CreatedAt.Equal(fixed))

	_, err = archive.DefineEntityType(ctx, "task", "")
	assert.ErrorIs(t, err, types.ErrDuplicateName)

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "archivist_writes_total"))
}

func TestNewBackend_Detached(t *testing.T) {
	archive := NewBackend()

	_, err := archive.ListEntityTypes(context.Background())
	assert.ErrorIs(t, err, types.ErrArchiveDetached)
}
