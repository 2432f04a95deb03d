package scoring

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"etrade-trader/internal/config"
	"etrade-trader/internal/models"
)

func testScorer() *Scorer {
	return NewScorer(config.Default().Scoring)
}

func f(v float64) *float64 { return &v }

func TestScoreAllFieldsMissing(t *testing.T) {
	scorer := testScorer()
	score := scorer.Score(&models.FundamentalsSnapshot{Symbol: "AAPL"})
	// Every sub-score defaults to neutral, and the weights sum to 1.
	assert.Equal(t, 50, score)
}

func TestScoreStrongFundamentals(t *testing.T) {
	scorer := testScorer()
	snap := &models.FundamentalsSnapshot{
		Symbol:        "XOM",
		PE:            f(8),    // deep value bracket
		EPSGrowth:     f(0.30), // strong growth
		RevenueGrowth: f(0.25),
		ProfitMargin:  f(0.30),
		DebtEquity:    f(20),
		CurrentPrice:  f(80),
		AnalystTarget: f(120), // 50% upside
	}
	score := scorer.Score(snap)
	assert.GreaterOrEqual(t, score, 85, "strong fundamentals should score high")
	assert.True(t, scorer.PassesGate(score))
}

func TestScoreWeakFundamentals(t *testing.T) {
	scorer := testScorer()
	snap := &models.FundamentalsSnapshot{
		Symbol:        "WEAK",
		PE:            f(80),
		EPSGrowth:     f(-0.40),
		RevenueGrowth: f(-0.30),
		ProfitMargin:  f(-0.10),
		DebtEquity:    f(300),
		CurrentPrice:  f(100),
		AnalystTarget: f(70), // 30% downside
	}
	score := scorer.Score(snap)
	assert.Less(t, score, 30, "weak fundamentals should score low")
	assert.False(t, scorer.PassesGate(score))
}

func TestGateBoundary(t *testing.T) {
	scorer := testScorer()
	assert.False(t, scorer.PassesGate(39))
	assert.True(t, scorer.PassesGate(40))
}

func TestScoreNegativePEScoresNeutral(t *testing.T) {
	scorer := testScorer()
	negPE := scorer.Score(&models.FundamentalsSnapshot{PE: f(-5)})
	noPE := scorer.Score(&models.FundamentalsSnapshot{})
	assert.Equal(t, noPE, negPE, "non-positive PE is treated as missing")
}

func TestScoreAll(t *testing.T) {
	scorer := testScorer()
	scores := scorer.ScoreAll(map[string]*models.FundamentalsSnapshot{
		"AAPL": {Symbol: "AAPL"},
		"XOM":  {Symbol: "XOM", PE: f(8)},
	})
	assert.Len(t, scores, 2)
	assert.Equal(t, 50, scores["AAPL"])
}

// Score stays in [0, 100] for any combination of inputs, including absurd
// ones. The clamp is the last defense; sub-scores should already be bounded.
func TestScoreRangeProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	scorer := testScorer()

	optional := func(g gopter.Gen) gopter.Gen {
		return gen.PtrOf(g)
	}

	properties.Property("score is always within [0, 100]", prop.ForAll(
		func(pe, eps, rev, margin, de, target, price *float64) bool {
			score := scorer.Score(&models.FundamentalsSnapshot{
				Symbol:        "TEST",
				PE:            pe,
				EPSGrowth:     eps,
				RevenueGrowth: rev,
				ProfitMargin:  margin,
				DebtEquity:    de,
				AnalystTarget: target,
				CurrentPrice:  price,
			})
			return score >= 0 && score <= 100
		},
		optional(gen.Float64Range(-1000, 1000)),
		optional(gen.Float64Range(-10, 10)),
		optional(gen.Float64Range(-10, 10)),
		optional(gen.Float64Range(-5, 5)),
		optional(gen.Float64Range(-500, 5000)),
		optional(gen.Float64Range(0, 10000)),
		optional(gen.Float64Range(0, 10000)),
	))

	properties.TestingRun(t)
}
