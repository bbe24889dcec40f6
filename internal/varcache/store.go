package varcache

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Backend names accepted by OpenStore (CACHE_BACKEND)
const (
	BackendCSV      = "csv"
	BackendMsgpack  = "msgpack"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// OpenStore builds the store for a backend name.
// path is ignored for postgres; pool is ignored for the file backends.
// The returned close func releases store resources and is never nil.
func OpenStore(backend, path string, pool *pgxpool.Pool) (Store, func() error, error) {
	noop := func() error { return nil }

	switch backend {
	case BackendCSV, "":
		return NewCSVStore(path), noop, nil
	case BackendMsgpack:
		return NewMsgpackStore(path), noop, nil
	case BackendSQLite:
		s, err := OpenSQLiteStore(path)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case BackendPostgres:
		if pool == nil {
			return nil, noop, fmt.Errorf("postgres cache backend requires a database pool")
		}
		return NewPostgresStore(pool), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// PathFor swaps a .csv cache path to the extension of a file backend,
// so ALL_TICKERS_PATH can stay at its default when switching backends
func PathFor(backend, path string) string {
	ext := ""
	switch backend {
	case BackendMsgpack:
		ext = ".msgpack"
	case BackendSQLite:
		ext = ".db"
	default:
		return path
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return strings.TrimSuffix(path, filepath.Ext(path)) + ext
	}
	return path
}
