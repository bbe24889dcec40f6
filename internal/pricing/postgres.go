package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roeimichael/VarProject/internal/contracts"
)

// PostgresProvider reads daily closes from data.daily_prices
// ⭐ SSOT: the table is filled by an external loader, read-only here
type PostgresProvider struct {
	pool *pgxpool.Pool
}

// NewPostgresProvider creates a provider over an existing pool
func NewPostgresProvider(pool *pgxpool.Pool) *PostgresProvider {
	return &PostgresProvider{pool: pool}
}

// Name identifies the provider in logs and metrics
func (p *PostgresProvider) Name() string {
	return "postgres"
}

// FetchPrices returns closes for symbol within [from, to], oldest first
func (p *PostgresProvider) FetchPrices(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	query := `
		SELECT trade_date, close_price
		FROM data.daily_prices
		WHERE symbol = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := p.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return contracts.PriceSeries{}, fmt.Errorf("%w: query %s: %v", contracts.ErrProvider, symbol, err)
	}
	defer rows.Close()

	series := contracts.PriceSeries{Symbol: symbol}
	for rows.Next() {
		var pt contracts.PricePoint
		if err := rows.Scan(&pt.Date, &pt.Close); err != nil {
			return contracts.PriceSeries{}, fmt.Errorf("%w: scan %s: %v", contracts.ErrProvider, symbol, err)
		}
		series.Points = append(series.Points, pt)
	}
	if err := rows.Err(); err != nil {
		return contracts.PriceSeries{}, fmt.Errorf("%w: rows %s: %v", contracts.ErrProvider, symbol, err)
	}

	if len(series.Points) == 0 {
		return series, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	return series, nil
}
