// Package scoring computes fundamental value scores for universe symbols.
package scoring

import (
	"math"

	"etrade-trader/internal/config"
	"etrade-trader/internal/models"
)

// Neutral is the sub-score substituted for any missing fundamental field.
// A deliberate default, not an inferred value.
const Neutral = 50.0

// Scorer turns a FundamentalsSnapshot into a 0-100 value score using six
// weighted bracketed sub-scores.
type Scorer struct {
	cfg config.ScoringConfig
}

// NewScorer creates a Scorer with the given weights and gate threshold.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the weighted value score, rounded and clamped to [0, 100].
func (s *Scorer) Score(f *models.FundamentalsSnapshot) int {
	weighted := s.cfg.WeightPE*scorePE(f.PE) +
		s.cfg.WeightEPSGrowth*scoreEPSGrowth(f.EPSGrowth) +
		s.cfg.WeightRevenueGrowth*scoreRevenueGrowth(f.RevenueGrowth) +
		s.cfg.WeightProfitMargin*scoreProfitMargin(f.ProfitMargin) +
		s.cfg.WeightDebtEquity*scoreDebtEquity(f.DebtEquity) +
		s.cfg.WeightFairValueGap*scoreFairValueGap(f.CurrentPrice, f.AnalystTarget)

	score := int(math.Round(weighted))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// PassesGate reports whether a score clears the fundamental gate. The gate is
// a hard veto on buying, independent of all other signals.
func (s *Scorer) PassesGate(score int) bool {
	return score >= s.cfg.GateThreshold
}

// ScoreAll scores every symbol in the snapshot map.
func (s *Scorer) ScoreAll(fundamentals map[string]*models.FundamentalsSnapshot) map[string]int {
	scores := make(map[string]int, len(fundamentals))
	for sym, f := range fundamentals {
		scores[sym] = s.Score(f)
	}
	return scores
}

// Lower PE is better. Bracket scoring, not linear.
func scorePE(pe *float64) float64 {
	if pe == nil || *pe <= 0 {
		return Neutral
	}
	switch v := *pe; {
	case v < 10:
		return 100
	case v < 15:
		return 85
	case v < 20:
		return 70
	case v < 25:
		return 55
	case v < 30:
		return 40
	case v < 40:
		return 25
	default:
		return 10
	}
}

// Higher EPS growth is better. Input is decimal (0.15 = 15%).
func scoreEPSGrowth(growth *float64) float64 {
	if growth == nil {
		return Neutral
	}
	switch pct := *growth * 100; {
	case pct > 30:
		return 100
	case pct > 20:
		return 85
	case pct > 10:
		return 70
	case pct > 5:
		return 60
	case pct > 0:
		return 45
	case pct > -10:
		return 30
	default:
		return 10
	}
}

// Higher revenue growth is better. Decimal input.
func scoreRevenueGrowth(growth *float64) float64 {
	if growth == nil {
		return Neutral
	}
	switch pct := *growth * 100; {
	case pct > 25:
		return 100
	case pct > 15:
		return 85
	case pct > 10:
		return 70
	case pct > 5:
		return 55
	case pct > 0:
		return 40
	case pct > -5:
		return 25
	default:
		return 10
	}
}

// Higher margin is better. Decimal input.
func scoreProfitMargin(margin *float64) float64 {
	if margin == nil {
		return Neutral
	}
	switch pct := *margin * 100; {
	case pct > 30:
		return 100
	case pct > 20:
		return 85
	case pct > 15:
		return 70
	case pct > 10:
		return 55
	case pct > 5:
		return 40
	case pct > 0:
		return 25
	default:
		return 10
	}
}

// Lower debt/equity is better. Input is a percentage (50 = 50%).
func scoreDebtEquity(de *float64) float64 {
	if de == nil {
		return Neutral
	}
	switch v := *de; {
	case v < 20:
		return 100
	case v < 50:
		return 85
	case v < 80:
		return 70
	case v < 120:
		return 55
	case v < 180:
		return 40
	case v < 250:
		return 25
	default:
		return 10
	}
}

// Bigger gap below the analyst target means more upside.
func scoreFairValueGap(currentPrice, analystTarget *float64) float64 {
	if currentPrice == nil || analystTarget == nil || *analystTarget <= 0 {
		return Neutral
	}
	gapPct := (*analystTarget - *currentPrice) / *analystTarget * 100
	switch {
	case gapPct > 30:
		return 100
	case gapPct > 20:
		return 85
	case gapPct > 10:
		return 70
	case gapPct > 5:
		return 55
	case gapPct > 0:
		return 40
	case gapPct > -10:
		return 25
	default:
		return 10
	}
}
