// Package window computes the rolling price window and its trading zones.
package window

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"etrade-trader/internal/config"
	apperrors "etrade-trader/internal/errors"
	"etrade-trader/internal/models"
)

// tradingDaysPerYear is used to annualize the daily-return volatility.
const tradingDaysPerYear = 252

// Calculator derives a PriceWindow from daily closes. The band center is the
// median over the lookback, chosen over the mean for outlier robustness.
type Calculator struct {
	cfg config.WindowConfig
}

// NewCalculator creates a Calculator.
func NewCalculator(cfg config.WindowConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Compute derives the window for one symbol from chronological daily candles.
// currentPrice overrides the latest close when positive (live quote wins over
// a possibly stale close). Returns ErrInsufficientHistory when fewer than
// lookback closes are available; the caller must skip the symbol for the
// cycle, never substitute a default window.
func (c *Calculator) Compute(symbol string, candles []models.Candle, currentPrice float64) (*models.PriceWindow, error) {
	if len(candles) < c.cfg.LookbackDays {
		return nil, apperrors.NewDataError("window", symbol, "not enough closes", apperrors.ErrInsufficientHistory)
	}

	closes := make([]float64, c.cfg.LookbackDays)
	for i, candle := range candles[len(candles)-c.cfg.LookbackDays:] {
		closes[i] = candle.Close
	}

	center := median(closes)
	upper := center * (1 + c.cfg.HalfWidth)
	lower := center * (1 - c.cfg.HalfWidth)

	if currentPrice <= 0 {
		currentPrice = closes[len(closes)-1]
	}

	// Position within the band: 0.0 at the lower bound, 1.0 at the upper.
	// Unclamped: a broken band reads as <0 or >1.
	position := 0.5
	if width := upper - lower; width > 0 {
		position = (currentPrice - lower) / width
	}

	mean := stat.Mean(closes, nil)
	stdev := stat.StdDev(closes, nil)
	zScore := 0.0
	if stdev > 0 {
		zScore = (currentPrice - mean) / stdev
	}

	return &models.PriceWindow{
		Symbol:       symbol,
		Center:       center,
		Upper:        upper,
		Lower:        lower,
		CurrentPrice: currentPrice,
		Position:     position,
		ZScore:       zScore,
		Volatility:   annualizedVolatility(closes),
	}, nil
}

// Zone maps a window position onto its trading zone.
func (c *Calculator) Zone(position float64) models.Zone {
	switch {
	case position < c.cfg.StrongBuyThreshold:
		return models.ZoneStrongBuy
	case position < c.cfg.BuyThreshold:
		return models.ZoneBuy
	case position > c.cfg.StrongSellThreshold:
		return models.ZoneStrongSell
	case position > c.cfg.SellThreshold:
		return models.ZoneSell
	default:
		return models.ZoneHold
	}
}

// ComputeAll computes windows for every symbol with history. Symbols with
// insufficient history are silently absent from the result; other symbols
// proceed unaffected.
func (c *Calculator) ComputeAll(historical map[string][]models.Candle, livePrices map[string]float64) map[string]*models.PriceWindow {
	windows := make(map[string]*models.PriceWindow, len(historical))
	for sym, candles := range historical {
		w, err := c.Compute(sym, candles, livePrices[sym])
		if err != nil {
			continue
		}
		windows[sym] = w
	}
	return windows
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func annualizedVolatility(closes []float64) float64 {
	if len(closes) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
		}
	}
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear)
}
