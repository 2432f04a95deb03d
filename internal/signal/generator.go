// Package signal combines scores, windows, and risk flags into ranked trade
// decisions.
package signal

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"etrade-trader/internal/config"
	"etrade-trader/internal/logging"
	"etrade-trader/internal/models"
	"etrade-trader/internal/scoring"
	"etrade-trader/internal/universe"
	"etrade-trader/internal/window"
)

// Input is everything known about one symbol at decision time.
type Input struct {
	Symbol string
	Score  int
	Window *models.PriceWindow
	Held   bool
	Flags  models.RiskFlags
}

// Generator applies the decision rules. Rules are evaluated in a fixed order
// and the first match wins: sell rules for held positions run before the buy
// vetoes, so a collapsed score always exits regardless of the gate.
type Generator struct {
	scorer *scoring.Scorer
	window *window.Calculator
	cfg    config.RiskConfig
	logger zerolog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(scorer *scoring.Scorer, calc *window.Calculator, cfg config.RiskConfig, logger zerolog.Logger) *Generator {
	return &Generator{
		scorer: scorer,
		window: calc,
		cfg:    cfg,
		logger: logger,
	}
}

// Generate produces one Signal per input, ordered for execution: sells before
// buys, strong before weak, ties broken by symbol so cycles are reproducible.
func (g *Generator) Generate(inputs []Input) []models.Signal {
	signals := make([]models.Signal, 0, len(inputs))
	for _, in := range inputs {
		sig := g.decide(in)
		if sig.Action != models.ActionNone {
			logging.LogSignal(g.logger, sig.Symbol, string(sig.Action), sig.Score, sig.WindowPos, sig.Reason)
		} else {
			g.logger.Debug().
				Str("symbol", sig.Symbol).
				Int("score", sig.Score).
				Str("reason", sig.Reason).
				Msg("No action")
		}
		signals = append(signals, sig)
	}

	sort.SliceStable(signals, func(i, j int) bool {
		pi, pj := signals[i].Action.ExecutionPriority(), signals[j].Action.ExecutionPriority()
		if pi != pj {
			return pi > pj
		}
		return signals[i].Symbol < signals[j].Symbol
	})
	return signals
}

func (g *Generator) decide(in Input) models.Signal {
	zone := g.window.Zone(in.Window.Position)
	sig := models.Signal{
		Symbol:    in.Symbol,
		Score:     in.Score,
		WindowPos: in.Window.Position,
		Zone:      zone,
		Sector:    universe.SectorOf(in.Symbol),
	}

	// Exit rules for held positions come first. A collapsed score is an
	// unconditional exit; the price window cannot save it.
	if in.Held {
		if in.Score < g.cfg.CollapseScoreThreshold {
			sig.Action = models.ActionStrongSell
			sig.Reason = fmt.Sprintf("score %d collapsed below %d", in.Score, g.cfg.CollapseScoreThreshold)
			return sig
		}
		if in.Score < g.cfg.SellScoreThreshold {
			switch zone {
			case models.ZoneStrongSell:
				sig.Action = models.ActionStrongSell
				sig.Reason = fmt.Sprintf("score %d with window %.2f in strong sell zone", in.Score, in.Window.Position)
				return sig
			case models.ZoneSell:
				sig.Action = models.ActionSell
				sig.Reason = fmt.Sprintf("score %d with window %.2f in sell zone", in.Score, in.Window.Position)
				return sig
			}
		}
		// Held and not exiting: never add to an open position.
		sig.Action = models.ActionNone
		sig.Reason = "holding"
		return sig
	}

	// Buy vetoes. Each produces NONE with a reason; vetoes never downgrade
	// to a weaker buy.
	if !g.scorer.PassesGate(in.Score) {
		sig.Action = models.ActionNone
		sig.Reason = fmt.Sprintf("score %d below fundamental gate", in.Score)
		return sig
	}
	if in.Flags.WashSaleBlocked {
		sig.Action = models.ActionNone
		sig.Reason = "wash-sale block active"
		return sig
	}
	if in.Flags.MaxPositionsReached {
		sig.Action = models.ActionNone
		sig.Reason = "position limit reached"
		return sig
	}

	switch {
	case in.Score >= g.cfg.StrongBuyScoreThreshold && zone == models.ZoneStrongBuy:
		sig.Action = models.ActionStrongBuy
		sig.Reason = fmt.Sprintf("score %d with window %.2f in strong buy zone", in.Score, in.Window.Position)
	case in.Score >= g.cfg.BuyScoreThreshold && (zone == models.ZoneBuy || zone == models.ZoneStrongBuy):
		sig.Action = models.ActionBuy
		sig.Reason = fmt.Sprintf("score %d with window %.2f in buy zone", in.Score, in.Window.Position)
	default:
		sig.Action = models.ActionNone
		sig.Reason = "no entry conditions met"
	}
	return sig
}

// Actionable filters to the signals the engine will execute.
func Actionable(signals []models.Signal) []models.Signal {
	out := make([]models.Signal, 0, len(signals))
	for _, s := range signals {
		if s.Action != models.ActionNone {
			out = append(out, s)
		}
	}
	return out
}
