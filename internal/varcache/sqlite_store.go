package varcache

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/roeimichael/VarProject/internal/contracts"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ticker_risk (
	symbol   TEXT PRIMARY KEY,
	var      REAL NOT NULL,
	qual     TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL
)`

// SQLiteStore keeps the cache in a single SQLite table
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens (or creates) the database file at path.
// ":memory:" gives a private in-memory database.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	// One writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ticker_risk table: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Describe names the backing file
func (s *SQLiteStore) Describe() string {
	return "sqlite:" + s.path
}

// Load reads the table in stored rank order
func (s *SQLiteStore) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, var, qual FROM ticker_risk ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query ticker_risk: %w", err)
	}
	defer rows.Close()

	var records []Record
	for row := 1; rows.Next(); row++ {
		var (
			r    Record
			v    sql.NullFloat64
			qual string
		)
		if err := rows.Scan(&r.Symbol, &v, &qual); err != nil {
			return nil, &contracts.CacheCorruptError{Source: s.Describe(), Row: row, Reason: err.Error()}
		}
		if !v.Valid {
			return nil, &contracts.CacheCorruptError{Source: s.Describe(), Row: row, Field: ColumnVaR, Reason: "null"}
		}
		r.VaR = v.Float64
		r.Quality = contracts.ParseQualityTier(qual)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Save replaces the whole table inside one transaction
func (s *SQLiteStore) Save(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ticker_risk`); err != nil {
		return fmt.Errorf("clear ticker_risk: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ticker_risk (symbol, var, qual, position) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Symbol, r.VaR, string(r.Quality), i); err != nil {
			return fmt.Errorf("insert %s: %w", r.Symbol, err)
		}
	}

	return tx.Commit()
}
