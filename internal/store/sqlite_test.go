package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
)

func newSQLiteStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "sft_registry.db")
	s := newSQLiteStore(t, path)

	used, records, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Empty(t, records)

	for _, rec := range sampleRecords() {
		require.NoError(t, s.Append(ctx, rec))
	}
	require.NoError(t, s.Close())

	reopened := newSQLiteStore(t, path)
	used, records, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{4821, 3000, 9999}, used)
	assert.Equal(t, sampleRecords(), records)
}

func TestSQLiteStoreRejectsDuplicateNumber(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t, filepath.Join(t.TempDir(), "sft_registry.db"))

	rec := sampleRecords()[0]
	require.NoError(t, s.Append(ctx, rec))

	rec.ApplicationName = "Other"
	err := s.Append(ctx, rec)
	assert.ErrorIs(t, err, registry.ErrAlreadyUsed)

	report, err := s.Rebuild(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Records)
	assert.False(t, report.Changed())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(Options{
		Backend:     BackendFiles,
		RecordsPath: filepath.Join(dir, "r.xlsx"),
		MemoryPath:  filepath.Join(dir, "m.json"),
	})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, b)
	require.NoError(t, b.Close())

	b, err = Open(Options{Backend: BackendSQLite, SQLitePath: filepath.Join(dir, "r.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, b)
	require.NoError(t, b.Close())

	_, err = Open(Options{Backend: "postgres"})
	assert.Error(t, err)
}
