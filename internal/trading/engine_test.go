package trading

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
	"etrade-trader/internal/store"
)

type engineFixture struct {
	engine    *ExecutionEngine
	portfolio *portfolio.Tracker
	risk      *risk.Manager
	store     *store.StateStore
	broker    *broker.PaperBroker
}

func newEngineFixture(t *testing.T, initialCash float64) *engineFixture {
	t.Helper()
	return newEngineFixtureWithConfig(t, initialCash, config.Default())
}

func newEngineFixtureWithConfig(t *testing.T, initialCash float64, cfg *config.Config) *engineFixture {
	t.Helper()

	st, err := store.NewStateStore(t.TempDir())
	require.NoError(t, err)
	pf, err := portfolio.NewTracker(st, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, pf.RebuildFromTrades(initialCash))

	washSales, err := risk.NewWashSaleTracker(st, cfg.Risk, zerolog.Nop())
	require.NoError(t, err)
	settlements, err := risk.NewSettlementTracker(st, zerolog.Nop())
	require.NoError(t, err)
	riskMgr := risk.NewManager(washSales, settlements, cfg.Risk)

	pb := broker.NewPaperBroker(initialCash, nil, zerolog.Nop())
	pb.SeedFromSnapshot(pf.Snapshot())
	accounts, _ := pb.ListAccounts(context.Background())

	return &engineFixture{
		engine:    NewExecutionEngine(pb, &accounts[0], pf, riskMgr, st, cfg.Risk, true, zerolog.Nop()),
		portfolio: pf,
		risk:      riskMgr,
		store:     st,
		broker:    pb,
	}
}

var monday = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func buySignal(symbol string) models.Signal {
	return models.Signal{Symbol: symbol, Action: models.ActionBuy, Score: 65, Sector: "Tech", Reason: "test buy"}
}

func sellSignal(symbol string) models.Signal {
	return models.Signal{Symbol: symbol, Action: models.ActionSell, Score: 45, Sector: "Tech", Reason: "test sell"}
}

func TestExecuteBuyRecordsTradeAndMutatesPortfolio(t *testing.T) {
	fx := newEngineFixture(t, 100000)

	result, err := fx.engine.Execute(context.Background(),
		[]models.Signal{buySignal("AAPL")},
		map[string]float64{"AAPL": 100},
		map[string]float64{"Tech": 0.30},
		monday)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Executed)

	// 5% cap binds: 5000 / 100 = 50 shares.
	pos, held := fx.portfolio.Position("AAPL")
	require.True(t, held)
	assert.Equal(t, 50, pos.Quantity)
	assert.InDelta(t, 95000.0, fx.portfolio.Cash(), 1e-9)

	trades, err := fx.store.LoadTrades()
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, models.OrderSideBuy, trades[0].Action)
	assert.Equal(t, 50, trades[0].Quantity)
	assert.True(t, trades[0].IsPaper)
}

func TestExecuteBuySizedToZeroIsNoOp(t *testing.T) {
	fx := newEngineFixture(t, 100000)

	result, err := fx.engine.Execute(context.Background(),
		[]models.Signal{buySignal("AAPL")},
		map[string]float64{"AAPL": 6000}, // price above the whole budget
		map[string]float64{"Tech": 0.30},
		monday)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Executed, "a zero-size buy completes without trading")

	assert.False(t, fx.portfolio.IsHeld("AAPL"))
	trades, err := fx.store.LoadTrades()
	require.NoError(t, err)
	assert.Empty(t, trades, "no trade record for a skipped buy")
}

func TestExecuteBuysStopAtPositionLimitWithinOneCycle(t *testing.T) {
	cfg := config.Default()
	cfg.Risk.MaxPositions = 2
	fx := newEngineFixtureWithConfig(t, 100000, cfg)

	// One position is already open before the cycle.
	_, err := fx.engine.Execute(context.Background(),
		[]models.Signal{buySignal("GOOG")},
		map[string]float64{"GOOG": 100},
		map[string]float64{"Tech": 0.30},
		monday)
	require.NoError(t, err)
	require.Equal(t, 1, fx.portfolio.NumPositions())

	// Four buys were all admitted against the pre-cycle count of 1. Only one
	// may fill; the rest must be skipped once the book is full.
	result, err := fx.engine.Execute(context.Background(),
		[]models.Signal{buySignal("AAPL"), buySignal("MSFT"), buySignal("NVDA"), buySignal("ORCL")},
		map[string]float64{"AAPL": 100, "MSFT": 100, "NVDA": 100, "ORCL": 100},
		map[string]float64{"Tech": 0.30},
		monday)
	require.NoError(t, err)
	assert.Zero(t, result.Rejected, "a limit skip is a no-op, not a failure")

	assert.LessOrEqual(t, fx.portfolio.NumPositions(), 2)
	assert.True(t, fx.portfolio.IsHeld("AAPL"), "the first buy in order fills the last slot")
	assert.False(t, fx.portfolio.IsHeld("MSFT"))
	assert.False(t, fx.portfolio.IsHeld("NVDA"))
	assert.False(t, fx.portfolio.IsHeld("ORCL"))

	trades, err := fx.store.LoadTrades()
	require.NoError(t, err)
	assert.Len(t, trades, 2, "no trade records past the cap")
}

func TestExecuteSellClosesFullPositionAndRecordsRiskState(t *testing.T) {
	fx := newEngineFixture(t, 100000)

	// Open a position, then sell it at a qualifying loss.
	_, err := fx.engine.Execute(context.Background(),
		[]models.Signal{buySignal("AAPL")},
		map[string]float64{"AAPL": 100},
		map[string]float64{"Tech": 0.30},
		monday)
	require.NoError(t, err)

	result, err := fx.engine.Execute(context.Background(),
		[]models.Signal{sellSignal("AAPL")},
		map[string]float64{"AAPL": 90}, // 50 shares * $10 loss = $500
		map[string]float64{"Tech": 0.30},
		monday)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Executed)

	assert.False(t, fx.portfolio.IsHeld("AAPL"), "sells always close the full position")
	assert.True(t, fx.risk.WashSales.IsBlocked("AAPL", monday), "loss sale starts a wash-sale block")

	// Proceeds are pending until the next business day.
	available := fx.risk.Settlements.AvailableCash(fx.portfolio.Cash(), monday)
	assert.InDelta(t, fx.portfolio.Cash()-4500, available, 1e-9)
}

func TestExecuteMissingPriceRejectsSignal(t *testing.T) {
	fx := newEngineFixture(t, 100000)

	result, err := fx.engine.Execute(context.Background(),
		[]models.Signal{buySignal("AAPL")},
		map[string]float64{},
		map[string]float64{"Tech": 0.30},
		monday)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rejected)
	assert.Zero(t, result.Executed)
}

func TestExecuteSellWithoutPositionRejects(t *testing.T) {
	fx := newEngineFixture(t, 100000)

	result, err := fx.engine.Execute(context.Background(),
		[]models.Signal{sellSignal("AAPL")},
		map[string]float64{"AAPL": 100},
		map[string]float64{"Tech": 0.30},
		monday)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rejected)
}

func TestExecuteHonorsCancellationBetweenSymbols(t *testing.T) {
	fx := newEngineFixture(t, 100000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := fx.engine.Execute(ctx,
		[]models.Signal{buySignal("AAPL"), buySignal("MSFT")},
		map[string]float64{"AAPL": 100, "MSFT": 100},
		map[string]float64{"Tech": 0.30},
		monday)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.Executed)
}

func TestExecuteSettledCashLimitsNextBuy(t *testing.T) {
	fx := newEngineFixture(t, 10000)

	// Buy then sell the whole position the same day: nearly all cash is now
	// unsettled proceeds.
	_, err := fx.engine.Execute(context.Background(),
		[]models.Signal{buySignal("AAPL")},
		map[string]float64{"AAPL": 10},
		map[string]float64{"Tech": 0.55},
		monday)
	require.NoError(t, err)
	_, err = fx.engine.Execute(context.Background(),
		[]models.Signal{sellSignal("AAPL")},
		map[string]float64{"AAPL": 10},
		map[string]float64{"Tech": 0.55},
		monday)
	require.NoError(t, err)

	cashBefore := fx.portfolio.Cash()
	result, err := fx.engine.Execute(context.Background(),
		[]models.Signal{buySignal("MSFT")},
		map[string]float64{"MSFT": 10},
		map[string]float64{"Tech": 0.55},
		monday)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Executed)

	// The buy could only use cash that was already settled.
	spent := cashBefore - fx.portfolio.Cash()
	settled := fx.risk.Settlements.AvailableCash(cashBefore, monday)
	assert.LessOrEqual(t, spent, settled+1e-6)
}
