// Package integration runs the full decision pipeline end to end against
// scripted market data: no network, no brokerage, real everything else.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etrade-trader/internal/broker"
	"etrade-trader/internal/config"
	"etrade-trader/internal/models"
	"etrade-trader/internal/portfolio"
	"etrade-trader/internal/risk"
	"etrade-trader/internal/rotation"
	"etrade-trader/internal/scoring"
	"etrade-trader/internal/signal"
	"etrade-trader/internal/store"
	"etrade-trader/internal/trading"
	"etrade-trader/internal/window"
)

// scriptedData serves fixed candles, quotes, and fundamentals that the test
// mutates between cycles.
type scriptedData struct {
	candles      map[string][]models.Candle
	prices       map[string]float64
	fundamentals map[string]*models.FundamentalsSnapshot
}

func (d *scriptedData) GetDailyHistory(ctx context.Context, symbol string, days int) ([]models.Candle, error) {
	return d.candles[symbol], nil
}

func (d *scriptedData) GetFundamentals(ctx context.Context, symbol string) (*models.FundamentalsSnapshot, error) {
	f, ok := d.fundamentals[symbol]
	if !ok {
		return &models.FundamentalsSnapshot{Symbol: symbol, Timestamp: time.Now()}, nil
	}
	snap := *f
	return &snap, nil
}

func (d *scriptedData) GetQuotes(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	quotes := make(map[string]models.Quote)
	for _, sym := range symbols {
		if price, ok := d.prices[sym]; ok {
			quotes[sym] = models.Quote{Symbol: sym, LastPrice: price, Timestamp: time.Now()}
		}
	}
	return quotes, nil
}

func flatCandles(close float64, days int) []models.Candle {
	base := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, days)
	for i := range candles {
		candles[i] = models.Candle{Timestamp: base.AddDate(0, 0, i), Close: close}
	}
	return candles
}

func fp(v float64) *float64 { return &v }

func strongFundamentals(symbol string) *models.FundamentalsSnapshot {
	return &models.FundamentalsSnapshot{
		Symbol:        symbol,
		PE:            fp(8),
		EPSGrowth:     fp(0.35),
		RevenueGrowth: fp(0.30),
		ProfitMargin:  fp(0.35),
		DebtEquity:    fp(15),
		AnalystTarget: fp(150),
	}
}

func collapsedFundamentals(symbol string) *models.FundamentalsSnapshot {
	return &models.FundamentalsSnapshot{
		Symbol:        symbol,
		PE:            fp(90),
		EPSGrowth:     fp(-0.50),
		RevenueGrowth: fp(-0.40),
		ProfitMargin:  fp(-0.20),
		DebtEquity:    fp(400),
		AnalystTarget: fp(60),
	}
}

type harness struct {
	runner    *trading.CycleRunner
	portfolio *portfolio.Tracker
	risk      *risk.Manager
	store     *store.StateStore
	data      *scriptedData
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Default()

	st, err := store.NewStateStore(t.TempDir())
	require.NoError(t, err)
	pf, err := portfolio.NewTracker(st, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, pf.RebuildFromTrades(cfg.Trading.InitialCash))

	washSales, err := risk.NewWashSaleTracker(st, cfg.Risk, zerolog.Nop())
	require.NoError(t, err)
	settlements, err := risk.NewSettlementTracker(st, zerolog.Nop())
	require.NoError(t, err)
	riskMgr := risk.NewManager(washSales, settlements, cfg.Risk)

	data := &scriptedData{
		candles: map[string][]models.Candle{
			"AAPL": flatCandles(100, 60),
			"XOM":  flatCandles(80, 60),
			"NEM":  flatCandles(50, 60),
		},
		prices: map[string]float64{
			"AAPL": 96, // low in the band
			"XOM":  80, // mid band
			"NEM":  50, // mid band
		},
		fundamentals: map[string]*models.FundamentalsSnapshot{
			"AAPL": strongFundamentals("AAPL"),
		},
	}

	pb := broker.NewPaperBroker(cfg.Trading.InitialCash, data, zerolog.Nop())
	accounts, _ := pb.ListAccounts(context.Background())

	scorer := scoring.NewScorer(cfg.Scoring)
	calc := window.NewCalculator(cfg.Window)
	allocator := rotation.NewAllocator(cfg.Rotation)
	generator := signal.NewGenerator(scorer, calc, cfg.Risk, zerolog.Nop())
	engine := trading.NewExecutionEngine(pb, &accounts[0], pf, riskMgr, st, cfg.Risk, true, zerolog.Nop())
	runner := trading.NewCycleRunner(cfg, pb, data, scorer, calc, allocator,
		generator, engine, pf, riskMgr, nil, zerolog.Nop())

	return &harness{
		runner:    runner,
		portfolio: pf,
		risk:      riskMgr,
		store:     st,
		data:      data,
	}
}

func TestFullTradingLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	day1 := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC) // Monday

	// Cycle 1: AAPL has strong fundamentals and sits low in its band.
	summary, err := h.runner.Run(ctx, day1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Executed, "only AAPL is actionable")

	pos, held := h.portfolio.Position("AAPL")
	require.True(t, held)
	assert.Positive(t, pos.Quantity)
	assert.False(t, h.portfolio.IsHeld("XOM"), "neutral fundamentals stay out")
	assert.False(t, h.portfolio.IsHeld("NEM"))

	// The 5% per-position cap bounds the cost.
	assert.LessOrEqual(t, float64(pos.Quantity)*96, 100000*0.05+1e-6)

	// Cycle 2: AAPL's fundamentals collapse and the price drops. The loss
	// sale must start a wash-sale block and leave proceeds unsettled.
	h.data.fundamentals["AAPL"] = collapsedFundamentals("AAPL")
	h.data.prices["AAPL"] = 90
	qty := pos.Quantity

	summary, err = h.runner.Run(ctx, day1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Executed)

	assert.False(t, h.portfolio.IsHeld("AAPL"), "collapse closes the full position")
	assert.True(t, h.risk.WashSales.IsBlocked("AAPL", day1))
	assert.InDelta(t, float64(qty)*90, h.risk.Settlements.PendingTotal(), 1e-9)

	// Cycle 3: fundamentals recover, but the wash-sale block must veto the
	// repurchase.
	h.data.fundamentals["AAPL"] = strongFundamentals("AAPL")
	h.data.prices["AAPL"] = 96

	summary, err = h.runner.Run(ctx, day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, summary.Executed)
	assert.False(t, h.portfolio.IsHeld("AAPL"))

	// Cycle 4: 31 days later the block has expired; AAPL is bought again.
	day32 := day1.AddDate(0, 0, 31)
	summary, err = h.runner.Run(ctx, day32)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Executed)
	assert.True(t, h.portfolio.IsHeld("AAPL"))

	// The trade log holds the full history in order.
	trades, err := h.store.LoadTrades()
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, models.OrderSideBuy, trades[0].Action)
	assert.Equal(t, models.OrderSideSell, trades[1].Action)
	assert.Equal(t, models.OrderSideBuy, trades[2].Action)
	for _, trade := range trades {
		assert.True(t, trade.IsPaper)
		assert.Equal(t, "AAPL", trade.Symbol)
	}
}

func TestStateSurvivesRestartMidLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	day1 := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	_, err := h.runner.Run(ctx, day1)
	require.NoError(t, err)

	// Rebuild everything from the same data directory, as a process restart
	// would.
	pf, err := portfolio.NewTracker(h.store, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, pf.IsHeld("AAPL"), "snapshot restored the open position")

	cfg := config.Default()
	require.NoError(t, pf.RebuildFromTrades(cfg.Trading.InitialCash))
	assert.True(t, pf.IsHeld("AAPL"), "trade-log replay agrees with the snapshot")
	snap := pf.Snapshot()
	origSnap := h.portfolio.Snapshot()
	assert.InDelta(t, origSnap.Cash, snap.Cash, 1e-6)
}
