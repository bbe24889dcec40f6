package varcache

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roeimichael/VarProject/internal/contracts"
)

func sampleRecords() []Record {
	return []Record{
		{Symbol: "KO", VaR: 12000.5, Quality: contracts.QualityGood},
		{Symbol: "AAPL", VaR: 25000, Quality: contracts.QualityMid},
		{Symbol: "TSLA", VaR: 61000.25, Quality: contracts.QualityBad},
	}
}

func TestCSVStore_RoundTripAndAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "alltickers.csv")
	store := NewCSVStore(path)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleRecords()))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), got)

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alltickers.csv", entries[0].Name())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Symbol,Var,Qual\nKO,12000.5,GOOD\nAAPL,25000,MID\nTSLA,61000.25,BAD\n", string(data))
}

func TestWriteFileAtomic_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	ctx := context.Background()

	t.Run("new file is world readable", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "alltickers.csv")
		require.NoError(t, NewCSVStore(path).Save(ctx, sampleRecords()))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	})

	t.Run("existing mode is kept", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "alltickers.csv")
		require.NoError(t, os.WriteFile(path, []byte("Symbol,Var,Qual\n"), 0o600))
		require.NoError(t, os.Chmod(path, 0o640))

		require.NoError(t, NewCSVStore(path).Save(ctx, sampleRecords()))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	})

	t.Run("msgpack store too", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "alltickers.msgpack")
		require.NoError(t, NewMsgpackStore(path).Save(ctx, sampleRecords()))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	})
}

func TestCSVStore_MissingFileIsEmpty(t *testing.T) {
	store := NewCSVStore(filepath.Join(t.TempDir(), "none.csv"))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCSVStore_ToleratesExtraColumnsAndBlankQual(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alltickers.csv")
	content := "Symbol,Name,Var,Qual\nmsft,Microsoft,150.5,\nXOM,Exxon,90,nan\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := NewCSVStore(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "msft", got[0].Symbol)
	assert.Equal(t, 150.5, got[0].VaR)
	assert.Equal(t, contracts.QualityUnknown, got[0].Quality)
	assert.Equal(t, contracts.QualityUnknown, got[1].Quality)
}

func TestCSVStore_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"missing Var column", "Symbol,Qual\nAAPL,GOOD\n", ColumnVaR},
		{"missing Qual column", "Symbol,Var\nAAPL,1\n", ColumnQual},
		{"bad number", "Symbol,Var,Qual\nAAPL,abc,GOOD\n", ColumnVaR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "alltickers.csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := NewCSVStore(path).Load(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, contracts.ErrCacheCorrupt)

			var ce *contracts.CacheCorruptError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCSVStore_LoadThroughCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alltickers.csv")
	require.NoError(t, os.WriteFile(path, []byte("Symbol,Var,Qual\nB,2,\nA,1,\nC,3,\n"), 0o644))

	c, err := Load(context.Background(), NewCSVStore(path), zerolog.Nop())
	require.NoError(t, err)
	assertPartition(t, c.Records())

	// Disk agrees with memory after Load
	onDisk, err := NewCSVStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, c.Records(), onDisk)
}

func TestMsgpackStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alltickers.msgpack")
	store := NewMsgpackStore(path)
	ctx := context.Background()

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, store.Save(ctx, sampleRecords()))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), got)
}

func TestMsgpackStore_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alltickers.msgpack")
	require.NoError(t, os.WriteFile(path, []byte{0xc1, 0x00, 0xff}, 0o644))

	_, err := NewMsgpackStore(path).Load(context.Background())
	assert.ErrorIs(t, err, contracts.ErrCacheCorrupt)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleRecords()))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), got)

	// Save replaces the population
	require.NoError(t, store.Save(ctx, sampleRecords()[:1]))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alltickers.db")
	store, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	c := New(store, zerolog.Nop())
	require.NoError(t, c.Insert(ctx, "SPY", 15000))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := Load(ctx, reopened, zerolog.Nop())
	require.NoError(t, err)
	rec, ok := loaded.Lookup("spy")
	require.True(t, ok)
	assert.Equal(t, 15000.0, rec.VaR)
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS risk`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS risk.ticker_var (
		symbol TEXT PRIMARY KEY, var DOUBLE PRECISION NOT NULL, qual TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL, updated_at TIMESTAMPTZ NOT NULL DEFAULT now())`)
	require.NoError(t, err)

	store := NewPostgresStore(pool)
	require.NoError(t, store.Save(ctx, sampleRecords()))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), got)
}

func TestOpenStoreAndPathFor(t *testing.T) {
	dir := t.TempDir()

	s, closeFn, err := OpenStore(BackendCSV, filepath.Join(dir, "a.csv"), nil)
	require.NoError(t, err)
	assert.IsType(t, &CSVStore{}, s)
	assert.NoError(t, closeFn())

	s, closeFn, err = OpenStore(BackendSQLite, PathFor(BackendSQLite, filepath.Join(dir, "a.csv")), nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite:"+filepath.Join(dir, "a.db"), s.Describe())
	assert.NoError(t, closeFn())

	_, _, err = OpenStore(BackendPostgres, "", nil)
	assert.Error(t, err)
	_, _, err = OpenStore("bolt", "", nil)
	assert.Error(t, err)

	assert.Equal(t, "data/alltickers.msgpack", PathFor(BackendMsgpack, "data/alltickers.csv"))
	assert.Equal(t, "data/alltickers.csv", PathFor(BackendCSV, "data/alltickers.csv"))
	assert.Equal(t, "cache.bin", PathFor(BackendMsgpack, "cache.bin"))
}
