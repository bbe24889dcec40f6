package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/roeimichael/VarProject/internal/contracts"
	"github.com/roeimichael/VarProject/internal/metrics"
)

// BreakerConfig configures the provider circuit breaker
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32        // trips after this many upstream failures in a row
	Timeout             time.Duration // open → half-open
	MaxRequests         uint32        // probes allowed while half-open
}

// BreakerProvider stops calling an upstream that keeps failing.
// Unknown symbols and cancellations do not count as failures.
type BreakerProvider struct {
	next    contracts.PriceSeriesProvider
	breaker *gobreaker.CircuitBreaker
	name    string
}

// WithBreaker wraps next in a circuit breaker
func WithBreaker(next contracts.PriceSeriesProvider, cfg BreakerConfig, m *metrics.Registry, log zerolog.Logger) *BreakerProvider {
	if cfg.Name == "" {
		cfg.Name = nameOf(next)
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}

	log = log.With().Str("component", "breaker").Str("name", cfg.Name).Logger()
	m.SetBreakerState(cfg.Name, int(gobreaker.StateClosed))

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return !isProviderFault(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.SetBreakerState(name, int(to))
			log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("price provider breaker state changed")
		},
	}

	return &BreakerProvider{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    nameOf(next),
	}
}

// Name returns the wrapped provider's name
func (p *BreakerProvider) Name() string {
	return p.name
}

// State returns the current breaker state
func (p *BreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}

// FetchPrices calls through the breaker
func (p *BreakerProvider) FetchPrices(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.next.FetchPrices(ctx, symbol, from, to)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return contracts.PriceSeries{}, fmt.Errorf("%w: %s: %v", contracts.ErrProvider, p.name, err)
	}
	if err != nil {
		return contracts.PriceSeries{}, err
	}
	return out.(contracts.PriceSeries), nil
}
