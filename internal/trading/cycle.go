package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"etrade-trader/internal/broker"
	"etrade-trader/internal/config"
	"etrade-trader/internal/logging"
	"etrade-trader/internal/marketdata"
	"etrade-trader/internal/models"
	"etrade-trader/internal/portfolio"
	"etrade-trader/internal/risk"
	"etrade-trader/internal/rotation"
	"etrade-trader/internal/scoring"
	"etrade-trader/internal/signal"
	"etrade-trader/internal/store"
	"etrade-trader/internal/universe"
	"etrade-trader/internal/window"
)

// CycleRunner drives one full decision cycle: fetch, score, decide, execute,
// persist. One cycle is one pass over the whole universe; there is no
// per-symbol scheduling.
type CycleRunner struct {
	cfg       *config.Config
	broker    broker.Broker
	data      marketdata.Provider
	scorer    *scoring.Scorer
	window    *window.Calculator
	allocator *rotation.Allocator
	generator *signal.Generator
	engine    *ExecutionEngine
	portfolio *portfolio.Tracker
	risk      *risk.Manager
	cache     *store.SQLiteStore
	logger    zerolog.Logger
	cycle     int64
}

// NewCycleRunner wires the full pipeline.
func NewCycleRunner(cfg *config.Config, b broker.Broker, data marketdata.Provider,
	scorer *scoring.Scorer, calc *window.Calculator, allocator *rotation.Allocator,
	generator *signal.Generator, engine *ExecutionEngine, pf *portfolio.Tracker,
	rm *risk.Manager, cache *store.SQLiteStore, logger zerolog.Logger) *CycleRunner {
	return &CycleRunner{
		cfg:       cfg,
		broker:    b,
		data:      data,
		scorer:    scorer,
		window:    calc,
		allocator: allocator,
		generator: generator,
		engine:    engine,
		portfolio: pf,
		risk:      rm,
		cache:     cache,
		logger:    logger,
	}
}

// Run executes one cycle at the given time. Data failures for individual
// symbols drop those symbols from the cycle; the rest proceed. The returned
// summary is also recorded in the audit history.
func (r *CycleRunner) Run(ctx context.Context, now time.Time) (*models.CycleSummary, error) {
	r.cycle++
	started := time.Now()
	log := logging.WithCycle(r.logger, r.cycle)
	log.Info().Msg("Cycle starting")

	// Release settled proceeds first so today's buys can use them.
	if err := r.risk.Settlements.Settle(now); err != nil {
		return nil, err
	}

	symbols := universe.AllSymbols()

	quotes, err := r.broker.GetQuotes(ctx, symbols)
	if err != nil {
		return r.finish(ctx, started, now, &models.CycleSummary{
			Skipped: true, SkipReason: "quote fetch failed: " + err.Error(),
		}, err)
	}

	livePrices := make(map[string]float64, len(quotes))
	for sym, q := range quotes {
		if q.LastPrice > 0 {
			livePrices[sym] = q.LastPrice
		}
	}

	fundamentals := r.fetchFundamentals(ctx, symbols, livePrices, log)
	scores := r.scorer.ScoreAll(fundamentals)

	historical := r.fetchHistory(ctx, symbols, log)
	windows := r.window.ComputeAll(historical, livePrices)

	performances := r.allocator.SectorPerformance(historical)
	allocations := r.allocator.Allocations(performances)

	r.portfolio.UpdateMarketValues(livePrices)

	inputs := make([]signal.Input, 0, len(symbols))
	for _, sym := range symbols {
		score, hasScore := scores[sym]
		win, hasWindow := windows[sym]
		if !hasScore || !hasWindow {
			continue
		}
		held := r.portfolio.IsHeld(sym)
		inputs = append(inputs, signal.Input{
			Symbol: sym,
			Score:  score,
			Window: win,
			Held:   held,
			Flags:  r.risk.Flags(sym, held, r.portfolio.NumPositions(), now),
		})
	}

	signals := r.generator.Generate(inputs)
	actionable := signal.Actionable(signals)

	result, execErr := r.engine.Execute(ctx, actionable, livePrices, allocations, now)

	if err := r.portfolio.Save(); err != nil {
		log.Error().Err(err).Msg("Failed to persist portfolio after cycle")
	}

	summary := &models.CycleSummary{
		SymbolsScored: len(inputs),
		Signals:       len(actionable),
		Executed:      result.Executed,
		Rejected:      result.Rejected,
	}
	return r.finish(ctx, started, now, summary, execErr)
}

func (r *CycleRunner) finish(ctx context.Context, started, now time.Time,
	summary *models.CycleSummary, err error) (*models.CycleSummary, error) {
	summary.Cycle = r.cycle
	summary.StartedAt = started
	summary.Duration = time.Since(started)
	summary.Cash = r.portfolio.Cash()
	summary.TotalValue = r.portfolio.TotalValue()

	if r.cache != nil {
		if rerr := r.cache.RecordCycle(ctx, summary); rerr != nil {
			r.logger.Warn().Err(rerr).Msg("Failed to record cycle history")
		}
	}

	logging.LogCycle(r.logger, summary.Cycle, summary.Signals, summary.Executed,
		summary.Cash, summary.TotalValue)
	return summary, err
}

// Scan runs the decision pipeline without executing anything. Used by the
// one-shot scan command to preview what a cycle would do.
func (r *CycleRunner) Scan(ctx context.Context, now time.Time) ([]models.Signal, error) {
	symbols := universe.AllSymbols()

	quotes, err := r.broker.GetQuotes(ctx, symbols)
	if err != nil {
		return nil, err
	}
	livePrices := make(map[string]float64, len(quotes))
	for sym, q := range quotes {
		if q.LastPrice > 0 {
			livePrices[sym] = q.LastPrice
		}
	}

	fundamentals := r.fetchFundamentals(ctx, symbols, livePrices, r.logger)
	scores := r.scorer.ScoreAll(fundamentals)
	historical := r.fetchHistory(ctx, symbols, r.logger)
	windows := r.window.ComputeAll(historical, livePrices)
	r.portfolio.UpdateMarketValues(livePrices)

	inputs := make([]signal.Input, 0, len(symbols))
	for _, sym := range symbols {
		score, hasScore := scores[sym]
		win, hasWindow := windows[sym]
		if !hasScore || !hasWindow {
			continue
		}
		held := r.portfolio.IsHeld(sym)
		inputs = append(inputs, signal.Input{
			Symbol: sym,
			Score:  score,
			Window: win,
			Held:   held,
			Flags:  r.risk.Flags(sym, held, r.portfolio.NumPositions(), now),
		})
	}
	return r.generator.Generate(inputs), nil
}

// fetchFundamentals collects snapshots for every symbol, overriding each
// snapshot's price with the live quote so the fair-value gap is computed
// against current prices rather than the provider's delayed ones.
func (r *CycleRunner) fetchFundamentals(ctx context.Context, symbols []string,
	livePrices map[string]float64, log zerolog.Logger) map[string]*models.FundamentalsSnapshot {
	fundamentals := make(map[string]*models.FundamentalsSnapshot, len(symbols))
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		snap, err := r.data.GetFundamentals(ctx, sym)
		if err != nil {
			symLog := logging.WithSymbol(log, sym)
			symLog.Warn().Err(err).Msg("Fundamentals unavailable, skipping symbol")
			continue
		}
		if price, ok := livePrices[sym]; ok {
			p := price
			snap.CurrentPrice = &p
		}
		fundamentals[sym] = snap
	}
	return fundamentals
}

// fetchHistory collects enough daily candles to serve both the price window
// and the sector-performance period.
func (r *CycleRunner) fetchHistory(ctx context.Context, symbols []string,
	log zerolog.Logger) map[string][]models.Candle {
	days := r.cfg.Window.LookbackDays
	if r.cfg.Rotation.PerformancePeriodDays > days {
		days = r.cfg.Rotation.PerformancePeriodDays
	}

	historical := make(map[string][]models.Candle, len(symbols))
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		candles, err := r.data.GetDailyHistory(ctx, sym, days)
		if err != nil {
			symLog := logging.WithSymbol(log, sym)
			symLog.Warn().Err(err).Msg("History unavailable, skipping symbol")
			continue
		}
		historical[sym] = candles
	}
	return historical
}
