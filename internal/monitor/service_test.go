package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roeimichael/VarProject/internal/audit"
	"github.com/roeimichael/VarProject/internal/contracts"
	"github.com/roeimichael/VarProject/internal/enrich"
	"github.com/roeimichael/VarProject/internal/limitsconfig"
	"github.com/roeimichael/VarProject/internal/metrics"
	"github.com/roeimichael/VarProject/internal/risk"
	"github.com/roeimichael/VarProject/internal/varcache"
	"github.com/roeimichael/VarProject/pkg/config"
)

type memStore struct {
	mu      sync.Mutex
	records []varcache.Record
}

func (m *memStore) Load(ctx context.Context) ([]varcache.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]varcache.Record(nil), m.records...), nil
}

func (m *memStore) Save(ctx context.Context, records []varcache.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]varcache.Record(nil), records...)
	return nil
}

func (m *memStore) Describe() string { return "mem" }

type fakeRecorder struct {
	runs []*audit.RunRecord
	err  error
}

func (r *fakeRecorder) SaveRun(ctx context.Context, run *audit.RunRecord) error {
	if r.err != nil {
		return r.err
	}
	r.runs = append(r.runs, run)
	return nil
}

type fakePublisher struct {
	msgs []interface{}
}

func (p *fakePublisher) Broadcast(v interface{}) error {
	p.msgs = append(p.msgs, v)
	return nil
}

var downProvider = contracts.PriceSeriesProviderFunc(func(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	return contracts.PriceSeries{}, fmt.Errorf("%w: offline", contracts.ErrProvider)
})

func defaultProfile() *limitsconfig.Profile {
	return limitsconfig.FromConfig(config.LimitsConfig{
		SectorPercentageLimit:   0.2,
		MaxPositionPercentage:   0.05,
		MaxPortfolioSize:        20,
		MaxPortfolioExposure:    1.3,
		AllowedBadPositions:     0,
		AllowedRatioGoodToTotal: 0.4,
	})
}

func newService(t *testing.T, rec Recorder, pub Publisher) *Service {
	t.Helper()
	store := &memStore{records: []varcache.Record{
		{Symbol: "AAPL", VaR: 100, Quality: contracts.QualityGood},
		{Symbol: "MSFT", VaR: 200, Quality: contracts.QualityMid},
		{Symbol: "TSLA", VaR: 300, Quality: contracts.QualityBad},
	}}
	cache, err := varcache.Load(context.Background(), store, zerolog.Nop())
	require.NoError(t, err)

	m := metrics.New()
	enricher := enrich.New(cache, downProvider, risk.DefaultEstimator(), enrich.Config{
		InitialInvestment: 1_000_000,
		LookbackStart:     time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
	}, m, zerolog.Nop())

	svc, err := NewService(Deps{
		Cache:     cache,
		Enricher:  enricher,
		Profile:   defaultProfile(),
		Recorder:  rec,
		Publisher: pub,
		Metrics:   m,
		Log:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc
}

func TestRun_PositionSizeExample(t *testing.T) {
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	svc := newService(t, rec, pub)

	report, err := svc.Run(context.Background(), []contracts.Holding{
		{Symbol: "aapl", Side: contracts.SideLong, PortfolioPercentage: 0.06, Sector: "Tech"},
		{Symbol: "MSFT", Side: contracts.SideLong, PortfolioPercentage: 0.06, Sector: "Tech"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"position of ticker AAPL is too big with size of 0.06",
		"position of ticker MSFT is too big with size of 0.06",
	}, report.Lines)
	assert.Contains(t, report.Digest, "|  position of ticker AAPL is too big with size of 0.06  |")
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, limitsconfig.EnvProfileID, report.ProfileID)
	assert.Len(t, report.LimitsHash, 64)
	assert.Equal(t, 2, report.CacheHits)
	assert.Empty(t, report.Failures)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, report.RunID, rec.runs[0].RunID)
	assert.Equal(t, 2, rec.runs[0].Holdings)
	require.Len(t, pub.msgs, 1)
	assert.Same(t, report, pub.msgs[0])

	latest, ok, err := svc.Latest(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, report.RunID, latest.RunID)
}

func TestRun_UnknownSymbolDegrades(t *testing.T) {
	svc := newService(t, nil, nil)

	report, err := svc.Run(context.Background(), []contracts.Holding{
		{Symbol: "AAPL", Side: contracts.SideLong, PortfolioPercentage: 0.03, Sector: "Tech"},
		{Symbol: "NEWCO", Side: contracts.SideShort, PortfolioPercentage: 0.02, Sector: "Energy"},
	})
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "NEWCO", report.Failures[0].Symbol)
	assert.Equal(t, enrich.StageFetch, report.Failures[0].Stage)
	assert.Contains(t, report.Failures[0].Error, "offline")
	assert.Equal(t, contracts.QualityUnknown, report.Holdings[1].Quality)
	assert.Empty(t, report.Findings)
	assert.Equal(t, "|  all risk limits respected  |\n", report.Digest)
}

func TestRun_SchemaError(t *testing.T) {
	rec := &fakeRecorder{}
	svc := newService(t, rec, nil)

	_, err := svc.Run(context.Background(), []contracts.Holding{
		{Symbol: "AAPL", Side: contracts.SideLong, PortfolioPercentage: 0.03},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrSchema)

	var se *contracts.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Sector", se.Field)
	assert.Empty(t, rec.runs)

	_, ok, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRun_RecorderFailureDoesNotFailRun(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	svc := newService(t, rec, nil)

	report, err := svc.Run(context.Background(), []contracts.Holding{
		{Symbol: "TSLA", Side: contracts.SideLong, PortfolioPercentage: 0.01, Sector: "Auto"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"there are 1 stocks with bad quality VaR in portfolio (allowed 0)"}, report.Lines)
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(Deps{})
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	svc := newService(t, nil, nil)
	bad := defaultProfile()
	bad.Limits.MinGoodRatio = 2
	_, err = NewService(Deps{Cache: svc.Cache(), Enricher: svc.enricher, Profile: bad})
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)
}
