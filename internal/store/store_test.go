package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/config"
)

func TestOpen_SQLiteDriver(t *testing.T) {
	st, err := Open(context.Background(), config.StoreConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "open.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	assert.IsType(t, &SQLiteStore{}, st)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestOpen_DefaultsToSQLite(t *testing.T) {
	st, err := Open(context.Background(), config.StoreConfig{
		Path: filepath.Join(t.TempDir(), "default.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	assert.IsType(t, &SQLiteStore{}, st)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
