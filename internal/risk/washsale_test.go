package risk

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etrade-trader/internal/config"
	"etrade-trader/internal/store"
)

func newTestTracker(t *testing.T) *WashSaleTracker {
	t.Helper()
	st, err := store.NewStateStore(t.TempDir())
	require.NoError(t, err)
	tracker, err := NewWashSaleTracker(st, config.Default().Risk, zerolog.Nop())
	require.NoError(t, err)
	return tracker
}

var saleDay = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

func TestQualifyingLossBlocksRepurchase(t *testing.T) {
	tracker := newTestTracker(t)

	// 10 shares sold $15 under cost: $150 realized loss.
	require.NoError(t, tracker.RecordSale("AAPL", 100, 85, 10, saleDay))

	assert.True(t, tracker.IsBlocked("AAPL", saleDay), "blocked on the sale day itself")
	assert.True(t, tracker.IsBlocked("AAPL", saleDay.AddDate(0, 0, 1)))
	assert.True(t, tracker.IsBlocked("AAPL", saleDay.AddDate(0, 0, 29)), "last blocked day")
	assert.False(t, tracker.IsBlocked("AAPL", saleDay.AddDate(0, 0, 30)), "permitted again 30 days after")
}

func TestLossBelowThresholdDoesNotBlock(t *testing.T) {
	tracker := newTestTracker(t)

	// $99.90 loss, just under the $100 threshold.
	require.NoError(t, tracker.RecordSale("MSFT", 100, 90.01, 10, saleDay))
	assert.False(t, tracker.IsBlocked("MSFT", saleDay))
}

func TestExactThresholdLossBlocks(t *testing.T) {
	tracker := newTestTracker(t)

	require.NoError(t, tracker.RecordSale("NVDA", 100, 90, 10, saleDay))
	assert.True(t, tracker.IsBlocked("NVDA", saleDay), "a loss of exactly the threshold qualifies")
}

func TestProfitableSaleDoesNotBlock(t *testing.T) {
	tracker := newTestTracker(t)

	require.NoError(t, tracker.RecordSale("XOM", 90, 120, 10, saleDay))
	assert.False(t, tracker.IsBlocked("XOM", saleDay))
}

func TestBlockSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	st, err := store.NewStateStore(dir)
	require.NoError(t, err)
	cfg := config.Default().Risk

	tracker, err := NewWashSaleTracker(st, cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, tracker.RecordSale("GOLD", 50, 30, 20, saleDay))

	reloaded, err := NewWashSaleTracker(st, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, reloaded.IsBlocked("GOLD", saleDay.AddDate(0, 0, 10)))
}

func TestExpiredEntriesPruned(t *testing.T) {
	tracker := newTestTracker(t)
	require.NoError(t, tracker.RecordSale("FCX", 40, 20, 10, saleDay))

	later := saleDay.AddDate(0, 0, 45)
	assert.False(t, tracker.IsBlocked("FCX", later))
	assert.Empty(t, tracker.BlockedSymbols(later))
}

func TestIntradaySaleTimeIgnored(t *testing.T) {
	tracker := newTestTracker(t)
	lateSale := time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC)
	require.NoError(t, tracker.RecordSale("RIO", 100, 80, 10, lateSale))

	// Same calendar day, earlier clock time: still blocked. Windows are
	// defined over dates, not instants.
	earlier := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	assert.True(t, tracker.IsBlocked("RIO", earlier))
	assert.False(t, tracker.IsBlocked("RIO", time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC)))
}
