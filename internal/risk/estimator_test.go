package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roeimichael/VarProject/internal/contracts"
)

// pricesFromReturns compounds returns onto a starting price of 100
func pricesFromReturns(returns []float64) []float64 {
	prices := make([]float64, len(returns)+1)
	prices[0] = 100
	for i, r := range returns {
		prices[i+1] = prices[i] * (1 + r)
	}
	return prices
}

func alternating(step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = step
		} else {
			out[i] = -step
		}
	}
	return out
}

func TestEstimate_KnownValue(t *testing.T) {
	e := DefaultEstimator()

	// mean 0, sample stdev sqrt(0.0008/7); VaR = 1e6 * 1.644854 * 0.010690
	got, err := e.Estimate(1_000_000, []float64{1}, pricesFromReturns(alternating(0.01, 8)))
	require.NoError(t, err)
	assert.InDelta(t, 17584.22, got, 0.5)
}

func TestEstimate_Deterministic(t *testing.T) {
	e := DefaultEstimator()
	prices := []float64{100, 102, 101, 105, 103, 104, 99, 100}

	first, err := e.Estimate(1_000_000, []float64{1}, prices)
	require.NoError(t, err)
	second, err := e.Estimate(1_000_000, []float64{1}, prices)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEstimate_MonotonicInVolatility(t *testing.T) {
	e := DefaultEstimator()

	prev := 0.0
	for _, step := range []float64{0.005, 0.01, 0.02, 0.04} {
		got, err := e.Estimate(1_000_000, []float64{1}, pricesFromReturns(alternating(step, 20)))
		require.NoError(t, err)
		assert.Greater(t, got, prev, "step %v", step)
		prev = got
	}
}

func TestEstimate_Degenerate(t *testing.T) {
	e := DefaultEstimator()

	tests := []struct {
		name   string
		prices []float64
		want   float64
		delta  float64
	}{
		{"flat prices", []float64{50, 50, 50, 50}, 0, 1e-9},
		{"single falling return", []float64{100, 95}, 50_000, 1e-6},
		{"single rising return", []float64{100, 110}, 0, 1e-9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Estimate(1_000_000, []float64{1}, tt.prices)
			require.NoError(t, err)
			assert.False(t, math.IsNaN(got))
			assert.InDelta(t, tt.want, got, tt.delta)
		})
	}
}

func TestEstimate_Errors(t *testing.T) {
	e := DefaultEstimator()

	tests := []struct {
		name       string
		investment float64
		weights    []float64
		prices     [][]float64
		want       error
	}{
		{"single price", 1000, []float64{1}, [][]float64{{100}}, contracts.ErrInsufficientData},
		{"empty series", 1000, []float64{1}, [][]float64{{}}, contracts.ErrInsufficientData},
		{"zero prior price", 1000, []float64{1}, [][]float64{{0, 10, 11}}, contracts.ErrNumerical},
		{"weight mismatch", 1000, []float64{0.5, 0.5}, [][]float64{{1, 2, 3}}, contracts.ErrInvalidInput},
		{"zero investment", 0, []float64{1}, [][]float64{{1, 2, 3}}, contracts.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Estimate(tt.investment, tt.weights, tt.prices...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestEstimate_InvalidConfidence(t *testing.T) {
	_, err := NewEstimator(1.5).Estimate(1000, []float64{1}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)
}

func TestEstimate_BasketAlignsOnRecentObservations(t *testing.T) {
	e := DefaultEstimator()
	short := pricesFromReturns(alternating(0.01, 8))
	long := append([]float64{500, 1, 900}, short...)

	single, err := e.Estimate(1_000_000, []float64{1}, short)
	require.NoError(t, err)

	// Identical tails with weights summing to one reproduce the single-asset VaR
	basket, err := e.Estimate(1_000_000, []float64{0.5, 0.5}, short, long)
	require.NoError(t, err)
	assert.InDelta(t, single, basket, 1e-6)
}

func TestSimpleReturns(t *testing.T) {
	r, err := SimpleReturns([]float64{100, 110, 99})
	require.NoError(t, err)
	require.Len(t, r, 2)
	assert.InDelta(t, 0.1, r[0], 1e-12)
	assert.InDelta(t, -0.1, r[1], 1e-12)
}
