package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etrade-trader/internal/models"
)

func newTestStore(t *testing.T) *StateStore {
	t.Helper()
	st, err := NewStateStore(t.TempDir())
	require.NoError(t, err)
	return st
}

func TestTradeLogAppendOrder(t *testing.T) {
	st := newTestStore(t)

	for i, sym := range []string{"AAPL", "XOM", "NEM"} {
		require.NoError(t, st.AppendTrade(&models.TradeRecord{
			Timestamp: time.Now(),
			Action:    models.OrderSideBuy,
			Symbol:    sym,
			Quantity:  i + 1,
			Price:     100,
			IsPaper:   true,
		}))
	}

	trades, err := st.LoadTrades()
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "AAPL", trades[0].Symbol)
	assert.Equal(t, "NEM", trades[2].Symbol)
	assert.Equal(t, 3, trades[2].Quantity)
}

func TestLoadTradesMissingFileIsEmpty(t *testing.T) {
	st := newTestStore(t)
	trades, err := st.LoadTrades()
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestWashSalesRoundTrip(t *testing.T) {
	st := newTestStore(t)

	entries := map[string]models.WashSaleEntry{
		"AAPL": {Symbol: "AAPL", BlockUntil: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), Loss: 250},
	}
	require.NoError(t, st.SaveWashSales(entries))

	loaded, err := st.LoadWashSales()
	require.NoError(t, err)
	require.Contains(t, loaded, "AAPL")
	assert.Equal(t, 250.0, loaded["AAPL"].Loss)
	assert.True(t, loaded["AAPL"].BlockUntil.Equal(entries["AAPL"].BlockUntil))
}

func TestSettlementsRoundTrip(t *testing.T) {
	st := newTestStore(t)

	entries := []models.SettlementEntry{
		{Symbol: "XOM", Amount: 1200, SettlesOn: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, st.SaveSettlements(entries))

	loaded, err := st.LoadSettlements()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 1200.0, loaded[0].Amount)
}

func TestPortfolioNilWhenNeverSaved(t *testing.T) {
	st := newTestStore(t)
	snapshot, err := st.LoadPortfolio()
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestPortfolioReplaceOnWrite(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.SavePortfolio(&models.PortfolioSnapshot{Cash: 1000}))
	require.NoError(t, st.SavePortfolio(&models.PortfolioSnapshot{
		Cash: 2000,
		Holdings: map[string]models.Position{
			"NEM": {Symbol: "NEM", Quantity: 10, AvgCost: 45},
		},
	}))

	loaded, err := st.LoadPortfolio()
	require.NoError(t, err)
	assert.Equal(t, 2000.0, loaded.Cash, "later save fully replaces the earlier one")
	assert.Len(t, loaded.Holdings, 1)
}
