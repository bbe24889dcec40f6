package pricing

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/roeimichael/VarProject/internal/contracts"
	"github.com/roeimichael/VarProject/pkg/redis"
)

// LimitedProvider throttles calls to an upstream with an in-process token
// bucket and, when Redis is enabled, a sliding window shared by every
// process using the same Redis
type LimitedProvider struct {
	next      contracts.PriceSeriesProvider
	local     *rate.Limiter
	shared    *redis.RateLimiter
	sharedCfg redis.RateLimitConfig
}

// WithRateLimit wraps next. shared may be nil.
func WithRateLimit(next contracts.PriceSeriesProvider, perSecond float64, burst int, shared *redis.RateLimiter) *LimitedProvider {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &LimitedProvider{
		next:      next,
		local:     rate.NewLimiter(rate.Limit(perSecond), burst),
		shared:    shared,
		sharedCfg: redis.PerSecond(nameOf(next), perSecond),
	}
}

// Name returns the wrapped provider's name
func (p *LimitedProvider) Name() string {
	return nameOf(p.next)
}

// FetchPrices waits for both limiters, then calls through
func (p *LimitedProvider) FetchPrices(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	if err := p.local.Wait(ctx); err != nil {
		return contracts.PriceSeries{}, fmt.Errorf("rate limit wait: %w", err)
	}
	if p.shared != nil {
		if err := p.shared.Wait(ctx, p.sharedCfg); err != nil {
			return contracts.PriceSeries{}, fmt.Errorf("shared rate limit wait: %w", err)
		}
	}
	return p.next.FetchPrices(ctx, symbol, from, to)
}
