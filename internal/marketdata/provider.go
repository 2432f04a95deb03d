// Package marketdata fetches daily price history and fundamentals.
package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"etrade-trader/internal/models"
	"etrade-trader/internal/store"
)

// Provider supplies the historical and fundamental data the pipeline scores
// against. Live quotes come from the broker, not from here.
type Provider interface {
	// GetDailyHistory returns at least `days` daily candles in chronological
	// order when the symbol has that much history.
	GetDailyHistory(ctx context.Context, symbol string, days int) ([]models.Candle, error)

	// GetFundamentals returns the fundamental snapshot for a symbol. Missing
	// metrics are nil, never zero.
	GetFundamentals(ctx context.Context, symbol string) (*models.FundamentalsSnapshot, error)
}

// CachedProvider wraps a Provider with the SQLite candle cache. History is
// refetched only when the newest cached candle is older than maxAge;
// fundamentals always pass through.
type CachedProvider struct {
	inner  Provider
	cache  *store.SQLiteStore
	maxAge time.Duration
	logger zerolog.Logger
}

// NewCachedProvider wraps inner with the candle cache.
func NewCachedProvider(inner Provider, cache *store.SQLiteStore, maxAge time.Duration, logger zerolog.Logger) *CachedProvider {
	return &CachedProvider{
		inner:  inner,
		cache:  cache,
		maxAge: maxAge,
		logger: logger,
	}
}

// GetDailyHistory serves from the cache when fresh enough, otherwise fetches
// and backfills. Cache failures degrade to a direct fetch.
func (p *CachedProvider) GetDailyHistory(ctx context.Context, symbol string, days int) ([]models.Candle, error) {
	// Pad calendar days over trading days to cover weekends and holidays.
	from := time.Now().AddDate(0, 0, -(days*7/5 + 10))

	newest, err := p.cache.CandleFreshness(ctx, symbol)
	if err == nil && !newest.IsZero() && time.Since(newest) < p.maxAge {
		candles, cerr := p.cache.GetCandles(ctx, symbol, from)
		if cerr == nil && len(candles) >= days {
			return candles[len(candles)-days:], nil
		}
	}

	candles, err := p.inner.GetDailyHistory(ctx, symbol, days)
	if err != nil {
		return nil, err
	}

	if serr := p.cache.SaveCandles(ctx, symbol, candles); serr != nil {
		p.logger.Warn().Err(serr).Str("symbol", symbol).Msg("Candle cache write failed")
	}
	return candles, nil
}

// GetFundamentals passes through to the underlying provider.
func (p *CachedProvider) GetFundamentals(ctx context.Context, symbol string) (*models.FundamentalsSnapshot, error) {
	return p.inner.GetFundamentals(ctx, symbol)
}
