package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roeimichael/VarProject/internal/contracts"
	"github.com/roeimichael/VarProject/internal/metrics"
)

// ErrNoData means the provider answered but had no bars for the symbol.
// It matches contracts.ErrProvider.
var ErrNoData = fmt.Errorf("%w: no price data", contracts.ErrProvider)

// Named is implemented by providers that label their logs and metrics
type Named interface {
	Name() string
}

func nameOf(p contracts.PriceSeriesProvider) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return "custom"
}

// isProviderFault reports whether err says something about the upstream's
// health, as opposed to the symbol or the caller
func isProviderFault(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNoData) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// =============================================================================
// Instrumented
// =============================================================================

// InstrumentedProvider records fetch latency per provider
type InstrumentedProvider struct {
	next    contracts.PriceSeriesProvider
	metrics *metrics.Registry
	name    string
}

// Instrument wraps next with latency metrics
func Instrument(next contracts.PriceSeriesProvider, m *metrics.Registry) *InstrumentedProvider {
	return &InstrumentedProvider{next: next, metrics: m, name: nameOf(next)}
}

// Name returns the wrapped provider's name
func (p *InstrumentedProvider) Name() string {
	return p.name
}

// FetchPrices times the wrapped call
func (p *InstrumentedProvider) FetchPrices(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	start := time.Now()
	series, err := p.next.FetchPrices(ctx, symbol, from, to)
	p.metrics.ObservePriceFetch(p.name, time.Since(start), err)
	return series, err
}
