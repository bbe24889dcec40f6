package pricing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roeimichael/VarProject/internal/contracts"
	"github.com/roeimichael/VarProject/internal/metrics"
	"github.com/roeimichael/VarProject/pkg/config"
	"github.com/roeimichael/VarProject/pkg/redis"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func series(symbol string, closes ...float64) contracts.PriceSeries {
	ps := contracts.PriceSeries{Symbol: symbol}
	for i, c := range closes {
		ps.Points = append(ps.Points, contracts.PricePoint{Date: day0.AddDate(0, 0, i), Close: c})
	}
	return ps
}

// countingProvider returns err when set, otherwise a fixed series
type countingProvider struct {
	calls atomic.Int32
	err   error
}

func (p *countingProvider) Name() string { return "fake" }

func (p *countingProvider) FetchPrices(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	p.calls.Add(1)
	if p.err != nil {
		return contracts.PriceSeries{}, p.err
	}
	return series(symbol, 100, 101, 102), nil
}

func TestPeriodFor(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		from time.Time
		want string
	}{
		{now.AddDate(0, -6, 0), "1y"},
		{now.AddDate(-2, 0, 1), "2y"},
		{now.AddDate(-4, 0, 0), "5y"},
		{time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), "10y"},
		{time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), "max"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, periodFor(tt.from, now), "from %v", tt.from)
	}
}

func TestErrNoDataIsProviderError(t *testing.T) {
	assert.True(t, errors.Is(ErrNoData, contracts.ErrProvider))
	assert.False(t, isProviderFault(ErrNoData))
	assert.False(t, isProviderFault(context.Canceled))
	assert.True(t, isProviderFault(errors.New("503")))
}

func TestBreakerTripsOnUpstreamFailures(t *testing.T) {
	upstream := &countingProvider{err: errors.New("upstream 503")}
	m := metrics.New()
	p := WithBreaker(upstream, BreakerConfig{ConsecutiveFailures: 3, Timeout: time.Hour}, m, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := p.FetchPrices(ctx, "AAPL", day0, day0)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())

	_, err := p.FetchPrices(ctx, "AAPL", day0, day0)
	assert.ErrorIs(t, err, contracts.ErrProvider)
	assert.Equal(t, int32(3), upstream.calls.Load(), "open breaker must not call upstream")
}

func TestBreakerIgnoresUnknownSymbols(t *testing.T) {
	upstream := &countingProvider{err: ErrNoData}
	p := WithBreaker(upstream, BreakerConfig{ConsecutiveFailures: 2, Timeout: time.Hour}, nil, zerolog.Nop())

	for i := 0; i < 5; i++ {
		_, err := p.FetchPrices(context.Background(), "NOPE", day0, day0)
		assert.ErrorIs(t, err, ErrNoData)
	}
	assert.Equal(t, gobreaker.StateClosed, p.State())
	assert.Equal(t, int32(5), upstream.calls.Load())
}

func TestBreakerPassesSeries(t *testing.T) {
	p := WithBreaker(&countingProvider{}, BreakerConfig{}, nil, zerolog.Nop())

	got, err := p.FetchPrices(context.Background(), "MSFT", day0, day0)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 101, 102}, got.Closes())
	assert.Equal(t, "fake", p.Name())
}

func TestRateLimitHonoursContext(t *testing.T) {
	upstream := &countingProvider{}
	p := WithRateLimit(upstream, 0.001, 1, nil)

	// Burst of one passes immediately
	_, err := p.FetchPrices(context.Background(), "A", day0, day0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.FetchPrices(ctx, "B", day0, day0)
	require.Error(t, err)
	assert.Equal(t, int32(1), upstream.calls.Load())
}

func TestCachedProviderWithRedisDisabled(t *testing.T) {
	upstream := &countingProvider{}
	client, err := redis.New(&config.Config{})
	require.NoError(t, err)

	p := WithCache(upstream, redis.NewCache(client, "test"), 0, zerolog.Nop())
	for i := 0; i < 2; i++ {
		_, err := p.FetchPrices(context.Background(), "KO", day0, day0.AddDate(0, 0, 5))
		require.NoError(t, err)
	}
	// Disabled cache always falls through
	assert.Equal(t, int32(2), upstream.calls.Load())
}

func TestTrimTo(t *testing.T) {
	ps := series("X", 1, 2, 3, 4)
	got := trimTo(ps, day0.AddDate(0, 0, 1))
	assert.Equal(t, []float64{1, 2}, got.Closes())
}

func TestInstrumentRecordsLatency(t *testing.T) {
	m := metrics.New()
	p := Instrument(&countingProvider{}, m)

	_, err := p.FetchPrices(context.Background(), "A", day0, day0)
	require.NoError(t, err)
	assert.Equal(t, "fake", p.Name())

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if f.GetName() == "varwatch_price_fetch_duration_seconds" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestNewFromConfig(t *testing.T) {
	client, _ := redis.New(&config.Config{})

	p, err := NewFromConfig(config.PriceConfig{Provider: "yahoo", RateLimit: 2, RateBurst: 2}, Deps{Redis: client, Log: zerolog.Nop()})
	require.NoError(t, err)
	assert.IsType(t, &InstrumentedProvider{}, p)

	_, err = NewFromConfig(config.PriceConfig{Provider: "postgres"}, Deps{Redis: client})
	assert.Error(t, err)

	_, err = NewFromConfig(config.PriceConfig{Provider: "stooq"}, Deps{Redis: client})
	assert.Error(t, err)
}
