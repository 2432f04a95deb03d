package portfolio

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etrade-trader/internal/models"
	"etrade-trader/internal/store"
)

func newTestTracker(t *testing.T) (*Tracker, *store.StateStore) {
	t.Helper()
	st, err := store.NewStateStore(t.TempDir())
	require.NoError(t, err)
	tracker, err := NewTracker(st, zerolog.Nop())
	require.NoError(t, err)
	return tracker, st
}

func TestApplyBuyAveragesCost(t *testing.T) {
	tracker, _ := newTestTracker(t)
	tracker.cash = 10000

	tracker.ApplyBuy("AAPL", 10, 100)
	tracker.ApplyBuy("AAPL", 10, 120)

	pos, held := tracker.Position("AAPL")
	require.True(t, held)
	assert.Equal(t, 20, pos.Quantity)
	assert.InDelta(t, 110.0, pos.AvgCost, 1e-9)
	assert.InDelta(t, 10000-1000-1200, tracker.Cash(), 1e-9)
}

func TestApplySellClosesPosition(t *testing.T) {
	tracker, _ := newTestTracker(t)
	tracker.cash = 5000

	tracker.ApplyBuy("XOM", 10, 100)
	tracker.ApplySell("XOM", 10, 110)

	assert.False(t, tracker.IsHeld("XOM"))
	assert.InDelta(t, 5000-1000+1100, tracker.Cash(), 1e-9)
	assert.Zero(t, tracker.NumPositions())
}

func TestRebuildFromTrades(t *testing.T) {
	tracker, st := newTestTracker(t)

	trades := []models.TradeRecord{
		{Timestamp: time.Now(), Action: models.OrderSideBuy, Symbol: "AAPL", Quantity: 10, Price: 100, Total: 1000},
		{Timestamp: time.Now(), Action: models.OrderSideBuy, Symbol: "XOM", Quantity: 5, Price: 80, Total: 400},
		{Timestamp: time.Now(), Action: models.OrderSideSell, Symbol: "AAPL", Quantity: 10, Price: 90, Total: 900},
	}
	for i := range trades {
		require.NoError(t, st.AppendTrade(&trades[i]))
	}

	require.NoError(t, tracker.RebuildFromTrades(10000))

	assert.False(t, tracker.IsHeld("AAPL"), "fully sold position is gone")
	pos, held := tracker.Position("XOM")
	require.True(t, held)
	assert.Equal(t, 5, pos.Quantity)
	assert.InDelta(t, 10000-1000-400+900, tracker.Cash(), 1e-9)
	assert.InDelta(t, tracker.Cash()+5*80, tracker.TotalValue(), 1e-9, "holdings marked at cost")
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st, err := store.NewStateStore(dir)
	require.NoError(t, err)

	tracker, err := NewTracker(st, zerolog.Nop())
	require.NoError(t, err)
	tracker.cash = 7500
	tracker.ApplyBuy("NEM", 20, 45)
	require.NoError(t, tracker.Save())

	reloaded, err := NewTracker(st, zerolog.Nop())
	require.NoError(t, err)
	assert.InDelta(t, tracker.Cash(), reloaded.Cash(), 1e-9)
	pos, held := reloaded.Position("NEM")
	require.True(t, held)
	assert.Equal(t, 20, pos.Quantity)
}

func TestUpdateMarketValues(t *testing.T) {
	tracker, _ := newTestTracker(t)
	tracker.cash = 1000
	tracker.ApplyBuy("AAPL", 10, 100) // cash now 0

	tracker.UpdateMarketValues(map[string]float64{"AAPL": 150})
	assert.InDelta(t, 1500.0, tracker.TotalValue(), 1e-9)

	// Missing quote falls back to cost basis.
	tracker.UpdateMarketValues(map[string]float64{})
	assert.InDelta(t, 1000.0, tracker.TotalValue(), 1e-9)
}

func TestSnapshotIsACopy(t *testing.T) {
	tracker, _ := newTestTracker(t)
	tracker.ApplyBuy("RIO", 5, 60)

	snap := tracker.Snapshot()
	snap.Holdings["RIO"] = models.Position{Symbol: "RIO", Quantity: 999, AvgCost: 1}

	pos, _ := tracker.Position("RIO")
	assert.Equal(t, 5, pos.Quantity, "mutating the snapshot must not touch the tracker")
}
