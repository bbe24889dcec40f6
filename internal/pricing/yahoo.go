package pricing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/roeimichael/VarProject/internal/contracts"
)

// YahooProvider fetches daily closes from Yahoo Finance
type YahooProvider struct {
	log zerolog.Logger
	now func() time.Time
}

// NewYahooProvider creates a Yahoo Finance provider
func NewYahooProvider(log zerolog.Logger) *YahooProvider {
	return &YahooProvider{
		log: log.With().Str("provider", "yahoo").Logger(),
		now: time.Now,
	}
}

// Name identifies the provider in logs and metrics
func (p *YahooProvider) Name() string {
	return "yahoo"
}

// FetchPrices returns adjusted daily closes in [from, to], oldest first.
// The chart API is queried by period, so the smallest period covering
// from is requested and the bars are filtered locally.
func (p *YahooProvider) FetchPrices(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return contracts.PriceSeries{}, err
	}

	t, err := ticker.New(symbol)
	if err != nil {
		return contracts.PriceSeries{}, fmt.Errorf("%w: create ticker %s: %v", contracts.ErrProvider, symbol, err)
	}
	defer t.Close()

	params := models.HistoryParams{
		Period:     periodFor(from, p.now()),
		Interval:   "1d",
		AutoAdjust: true,
	}

	bars, err := t.History(params)
	if err != nil {
		return contracts.PriceSeries{}, fmt.Errorf("%w: history %s: %v", contracts.ErrProvider, symbol, err)
	}

	series := contracts.PriceSeries{Symbol: symbol, Points: make([]contracts.PricePoint, 0, len(bars))}
	for _, bar := range bars {
		if bar.Date.Before(from) || bar.Date.After(to) {
			continue
		}
		// Yahoo reports missing sessions as zero closes
		if bar.Close <= 0 || math.IsNaN(bar.Close) {
			continue
		}
		series.Points = append(series.Points, contracts.PricePoint{Date: bar.Date, Close: bar.Close})
	}

	if len(series.Points) == 0 {
		return series, fmt.Errorf("%w: %s between %s and %s", ErrNoData, symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	p.log.Debug().
		Str("symbol", symbol).
		Int("bars", len(series.Points)).
		Msg("fetched price history")

	return series, nil
}

// periodFor picks the shortest chart period reaching back to from
func periodFor(from, now time.Time) string {
	age := now.Sub(from)
	const year = 365 * 24 * time.Hour

	switch {
	case age <= year:
		return "1y"
	case age <= 2*year:
		return "2y"
	case age <= 5*year:
		return "5y"
	case age <= 10*year:
		return "10y"
	default:
		return "max"
	}
}
