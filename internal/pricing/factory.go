package pricing

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/roeimichael/VarProject/internal/contracts"
	"github.com/roeimichael/VarProject/internal/metrics"
	"github.com/roeimichael/VarProject/pkg/config"
	"github.com/roeimichael/VarProject/pkg/redis"
)

// Deps are the shared resources a provider chain may use.
// Zero values disable the feature that needs them.
type Deps struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *metrics.Registry
	Log     zerolog.Logger
}

// NewFromConfig assembles the provider chain:
// Redis cache → metrics → breaker → rate limit → upstream.
// The breaker and limiter only wrap the network upstream.
func NewFromConfig(cfg config.PriceConfig, deps Deps) (contracts.PriceSeriesProvider, error) {
	var provider contracts.PriceSeriesProvider

	switch cfg.Provider {
	case "yahoo", "":
		var shared *redis.RateLimiter
		if deps.Redis.Enabled() {
			shared = redis.NewRateLimiter(deps.Redis, "varwatch")
		}
		provider = NewYahooProvider(deps.Log)
		provider = WithRateLimit(provider, cfg.RateLimit, cfg.RateBurst, shared)
		provider = WithBreaker(provider, BreakerConfig{
			Name:                "yahoo",
			ConsecutiveFailures: cfg.BreakerFailures,
			Timeout:             cfg.BreakerTimeout,
		}, deps.Metrics, deps.Log)
	case "postgres":
		if deps.Pool == nil {
			return nil, fmt.Errorf("postgres price provider requires a database pool")
		}
		provider = NewPostgresProvider(deps.Pool)
	default:
		return nil, fmt.Errorf("unknown price provider %q", cfg.Provider)
	}

	provider = Instrument(provider, deps.Metrics)

	if deps.Redis.Enabled() {
		provider = WithCache(provider, redis.NewCache(deps.Redis, "varwatch"), cfg.CacheTTL, deps.Log)
	}

	return provider, nil
}
