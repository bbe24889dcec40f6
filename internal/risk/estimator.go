package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roeimichael/VarProject/internal/contracts"
)

// =============================================================================
// Parametric VaR (normal assumption)
// =============================================================================

// DefaultConfidence is the one-day confidence level used for every ticker
const DefaultConfidence = 0.95

// Estimator computes one-day parametric VaR in currency units
// ⭐ SSOT: VaR is a positive loss amount (VaR=17500 → 17,500 at risk on the initial investment)
// Pure calculator: no I/O, no state beyond the confidence level.
type Estimator struct {
	Confidence float64
}

// NewEstimator creates an estimator at the given confidence level
func NewEstimator(confidence float64) *Estimator {
	return &Estimator{Confidence: confidence}
}

// DefaultEstimator creates an estimator at 95% confidence
func DefaultEstimator() *Estimator {
	return NewEstimator(DefaultConfidence)
}

// Estimate returns the parametric VaR of a weighted basket of instruments.
// prices holds one close series per weight, oldest first. Series of unequal
// length are aligned on their most recent observations.
//
// A degenerate portfolio deviation (zero, or undefined with a single return)
// collapses the distribution to its mean: VaR = I * max(0, -mean).
func (e *Estimator) Estimate(initialInvestment float64, weights []float64, prices ...[]float64) (float64, error) {
	if e.Confidence <= 0 || e.Confidence >= 1 {
		return 0, fmt.Errorf("%w: confidence %v must be in (0,1)", contracts.ErrInvalidInput, e.Confidence)
	}
	if initialInvestment <= 0 || math.IsNaN(initialInvestment) || math.IsInf(initialInvestment, 0) {
		return 0, fmt.Errorf("%w: initial investment must be > 0", contracts.ErrInvalidInput)
	}
	if len(weights) == 0 || len(weights) != len(prices) {
		return 0, fmt.Errorf("%w: %d weights for %d price series", contracts.ErrInvalidInput, len(weights), len(prices))
	}

	returns, err := alignedReturns(prices)
	if err != nil {
		return 0, err
	}

	nObs := len(returns[0])
	nAssets := len(returns)

	// Observations in rows, instruments in columns
	data := mat.NewDense(nObs, nAssets, nil)
	means := make([]float64, nAssets)
	for j, r := range returns {
		data.SetCol(j, r)
		means[j] = stat.Mean(r, nil)
	}

	w := mat.NewVecDense(nAssets, append([]float64(nil), weights...))
	portMean := mat.Dot(w, mat.NewVecDense(nAssets, means))

	// Sample covariance is undefined for a single return
	if nObs < 2 {
		return initialInvestment * math.Max(0, -portMean), nil
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)
	portVariance := mat.Inner(w, &cov, w)

	if portVariance <= 0 || math.IsNaN(portVariance) || math.IsInf(portVariance, 0) {
		return initialInvestment * math.Max(0, -portMean), nil
	}

	meanInvestment := (1 + portMean) * initialInvestment
	stdevInvestment := initialInvestment * math.Sqrt(portVariance)

	cutoff := distuv.Normal{Mu: meanInvestment, Sigma: stdevInvestment}.Quantile(1 - e.Confidence)
	varValue := initialInvestment - cutoff

	if math.IsNaN(varValue) || math.IsInf(varValue, 0) {
		return 0, fmt.Errorf("%w: VaR is not finite", contracts.ErrNumerical)
	}
	return varValue, nil
}

// alignedReturns converts every series to simple returns, truncated to the
// shortest series
func alignedReturns(prices [][]float64) ([][]float64, error) {
	minLen := math.MaxInt
	for _, p := range prices {
		if len(p) < minLen {
			minLen = len(p)
		}
	}
	if minLen < 2 {
		return nil, fmt.Errorf("%w: need at least 2 prices, got %d", contracts.ErrInsufficientData, minLen)
	}

	out := make([][]float64, len(prices))
	for i, p := range prices {
		r, err := SimpleReturns(p[len(p)-minLen:])
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// SimpleReturns returns period-over-period changes (P1 - P0) / P0
func SimpleReturns(prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 prices, got %d", contracts.ErrInsufficientData, len(prices))
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		r := prices[i]/prices[i-1] - 1
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("%w: return at index %d is not finite (prior price %v)", contracts.ErrNumerical, i, prices[i-1])
		}
		returns[i-1] = r
	}
	return returns, nil
}
