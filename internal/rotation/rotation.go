// Package rotation computes contrarian sector allocation weights.
//
// The worst-performing sector over the trailing period receives the highest
// weight. Output weights are clamped to the configured bounds and are not
// renormalized afterwards, so they need not sum to 1.
package rotation

import (
	"sort"

	"etrade-trader/internal/config"
	"etrade-trader/internal/models"
	"etrade-trader/internal/universe"
)

// Allocator computes inverse-performance sector weights.
type Allocator struct {
	cfg config.RotationConfig
}

// NewAllocator creates an Allocator.
func NewAllocator(cfg config.RotationConfig) *Allocator {
	return &Allocator{cfg: cfg}
}

// SectorPerformance averages each symbol's fractional price change over the
// trailing period across the members of its sector. Symbols without enough
// history contribute nothing; a sector with no usable members reads as 0.
func (a *Allocator) SectorPerformance(historical map[string][]models.Candle) map[string]float64 {
	returns := make(map[string][]float64)

	for sym, candles := range historical {
		sector := universe.SectorOf(sym)
		if sector == "" || len(candles) < 2 {
			continue
		}

		window := candles
		if len(window) > a.cfg.PerformancePeriodDays {
			window = window[len(window)-a.cfg.PerformancePeriodDays:]
		}
		first := window[0].Close
		last := window[len(window)-1].Close
		if first <= 0 {
			continue
		}
		returns[sector] = append(returns[sector], (last-first)/first)
	}

	perf := make(map[string]float64)
	for _, sector := range universe.SectorNames() {
		rs := returns[sector]
		if len(rs) == 0 {
			perf[sector] = 0
			continue
		}
		sum := 0.0
		for _, r := range rs {
			sum += r
		}
		perf[sector] = sum / float64(len(rs))
	}
	return perf
}

// Allocations converts sector performances into target weights:
// negate returns so the worst performer ranks highest, shift to positive,
// normalize, then clamp each weight to [min, max]. Ties break on stable
// sector-name ordering because the iteration below is over sorted names.
func (a *Allocator) Allocations(performances map[string]float64) map[string]float64 {
	names := sortedSectors(performances)
	if len(names) == 0 {
		names = universe.SectorNames()
		equal := clampWeight(1.0/float64(len(names)), a.cfg)
		alloc := make(map[string]float64, len(names))
		for _, s := range names {
			alloc[s] = equal
		}
		return alloc
	}

	inverted := make(map[string]float64, len(names))
	minVal := 0.0
	for i, s := range names {
		inverted[s] = -performances[s]
		if i == 0 || inverted[s] < minVal {
			minVal = inverted[s]
		}
	}

	// Shift so every value is strictly positive before normalizing.
	total := 0.0
	shifted := make(map[string]float64, len(names))
	for _, s := range names {
		shifted[s] = inverted[s] - minVal + 0.01
		total += shifted[s]
	}

	alloc := make(map[string]float64, len(names))
	for _, s := range names {
		alloc[s] = clampWeight(shifted[s]/total, a.cfg)
	}
	return alloc
}

func clampWeight(w float64, cfg config.RotationConfig) float64 {
	if w < cfg.MinAllocation {
		return cfg.MinAllocation
	}
	if w > cfg.MaxAllocation {
		return cfg.MaxAllocation
	}
	return w
}

func sortedSectors(performances map[string]float64) []string {
	names := make([]string, 0, len(performances))
	for s := range performances {
		names = append(names, s)
	}
	sort.Strings(names)
	return names
}
