package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roeimichael/VarProject/internal/contracts"
)

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	r.CacheHit()
	r.CacheMiss()
	r.ObserveEvaluation(time.Second, nil, nil)
	r.ObservePriceFetch("yahoo", time.Second, errors.New("x"))
	r.EnrichFailure("fetch")
	r.SetBreakerState("yahoo", 2)
	r.SetSubscribers(3)
	r.SetCacheCounts(nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestRegistryRecords(t *testing.T) {
	r := New()

	r.CacheHit()
	r.CacheHit()
	r.CacheMiss()
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues("miss")))

	r.ObserveEvaluation(250*time.Millisecond, nil, []contracts.Finding{
		{RuleID: "position_size"}, {RuleID: "position_size"}, {RuleID: "quality_bad"},
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Evaluations.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Findings.WithLabelValues("position_size")))

	r.SetCacheCounts(map[contracts.QualityTier]int{contracts.QualityGood: 4, contracts.QualityBad: 1})
	assert.Equal(t, 4.0, testutil.ToFloat64(r.CacheRecords.WithLabelValues("GOOD")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.CacheRecords.WithLabelValues("MID")))

	r.SetBreakerState("yahoo", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.BreakerState.WithLabelValues("yahoo")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.CacheMiss()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `varwatch_cache_lookups_total{result="miss"} 1`))
}
