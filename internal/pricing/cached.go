package pricing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/roeimichael/VarProject/internal/contracts"
	"github.com/roeimichael/VarProject/pkg/redis"
)

// CachedProvider keeps fetched series in Redis for a TTL.
// Redis failures degrade to a direct fetch.
type CachedProvider struct {
	next  contracts.PriceSeriesProvider
	cache *redis.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

// WithCache wraps next with a Redis read-through cache
func WithCache(next contracts.PriceSeriesProvider, cache *redis.Cache, ttl time.Duration, log zerolog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &CachedProvider{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   log.With().Str("component", "price_cache").Logger(),
	}
}

// Name returns the wrapped provider's name
func (p *CachedProvider) Name() string {
	return nameOf(p.next)
}

// FetchPrices serves from Redis when a series for the same start date is cached
func (p *CachedProvider) FetchPrices(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	key := redis.PriceSeriesKey(symbol, from)

	var cached contracts.PriceSeries
	found, err := p.cache.Get(ctx, key, &cached)
	if err != nil {
		p.log.Warn().Err(err).Str("symbol", symbol).Msg("price cache read failed")
	}
	if found && cached.Len() > 0 {
		return trimTo(cached, to), nil
	}

	series, err := p.next.FetchPrices(ctx, symbol, from, to)
	if err != nil {
		return series, err
	}

	if err := p.cache.Set(ctx, key, series, p.ttl); err != nil {
		p.log.Warn().Err(err).Str("symbol", symbol).Msg("price cache write failed")
	}
	return series, nil
}

func trimTo(series contracts.PriceSeries, to time.Time) contracts.PriceSeries {
	end := len(series.Points)
	for end > 0 && series.Points[end-1].Date.After(to) {
		end--
	}
	series.Points = series.Points[:end]
	return series
}
