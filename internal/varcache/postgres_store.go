package varcache

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roeimichael/VarProject/internal/contracts"
)

// PostgresStore keeps the cache in risk.ticker_var
// The table is created by database.DB.EnsureSchema.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Describe names the backing table
func (s *PostgresStore) Describe() string {
	return "postgres:risk.ticker_var"
}

// Load reads the table in stored rank order
func (s *PostgresStore) Load(ctx context.Context) ([]Record, error) {
	query := `
		SELECT symbol, var, qual
		FROM risk.ticker_var
		ORDER BY position ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query risk.ticker_var: %w", err)
	}
	defer rows.Close()

	var records []Record
	for row := 1; rows.Next(); row++ {
		var (
			r    Record
			qual string
		)
		if err := rows.Scan(&r.Symbol, &r.VaR, &qual); err != nil {
			return nil, &contracts.CacheCorruptError{Source: s.Describe(), Row: row, Reason: err.Error()}
		}
		r.Quality = contracts.ParseQualityTier(qual)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Save replaces the table contents in one transaction using COPY
func (s *PostgresStore) Save(ctx context.Context, records []Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM risk.ticker_var`); err != nil {
		return fmt.Errorf("clear risk.ticker_var: %w", err)
	}

	rows := make([][]interface{}, len(records))
	for i, r := range records {
		rows[i] = []interface{}{r.Symbol, r.VaR, string(r.Quality), int32(i)}
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"risk", "ticker_var"},
		[]string{"symbol", "var", "qual", "position"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("copy into risk.ticker_var: %w", err)
	}

	return tx.Commit(ctx)
}
