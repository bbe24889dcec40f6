package contracts

import (
	"context"
	"time"
)

// PriceSeriesProvider supplies daily close history for one instrument
// ⭐ SSOT: the only way the core reaches market data
// Implementations wrap their failures with ErrProvider.
type PriceSeriesProvider interface {
	FetchPrices(ctx context.Context, symbol string, from, to time.Time) (PriceSeries, error)
}

// PriceSeriesProviderFunc adapts a function to PriceSeriesProvider
type PriceSeriesProviderFunc func(ctx context.Context, symbol string, from, to time.Time) (PriceSeries, error)

// FetchPrices calls f
func (f PriceSeriesProviderFunc) FetchPrices(ctx context.Context, symbol string, from, to time.Time) (PriceSeries, error) {
	return f(ctx, symbol, from, to)
}
