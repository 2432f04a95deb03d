package broker

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "etrade-trader/internal/errors"
	"etrade-trader/internal/models"
)

func newPaper(t *testing.T) *PaperBroker {
	t.Helper()
	return NewPaperBroker(10000, nil, zerolog.Nop())
}

func previewAndPlace(t *testing.T, b *PaperBroker, req *models.OrderRequest) *models.OrderResult {
	t.Helper()
	ctx := context.Background()
	accounts, err := b.ListAccounts(ctx)
	require.NoError(t, err)

	preview, err := b.PreviewOrder(ctx, &accounts[0], req)
	require.NoError(t, err)
	result, err := b.PlaceOrder(ctx, &accounts[0], preview)
	require.NoError(t, err)
	return result
}

func TestPaperBuyFillsAtLimit(t *testing.T) {
	b := newPaper(t)
	result := previewAndPlace(t, b, &models.OrderRequest{
		Symbol: "AAPL", Side: models.OrderSideBuy, Quantity: 10, LimitPrice: 100,
	})

	assert.Equal(t, "EXECUTED", result.Status)
	assert.Equal(t, 100.0, result.FillPrice)
	assert.NotEmpty(t, result.OrderID)

	balance, err := b.GetBalance(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, balance.CashBuyingPower)
	assert.Equal(t, 10000.0, balance.TotalAccountValue, "cost basis preserves total value")
}

func TestPaperBuyRejectsOverspend(t *testing.T) {
	b := newPaper(t)
	ctx := context.Background()
	accounts, _ := b.ListAccounts(ctx)

	_, err := b.PreviewOrder(ctx, &accounts[0], &models.OrderRequest{
		Symbol: "AAPL", Side: models.OrderSideBuy, Quantity: 200, LimitPrice: 100,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientFunds))
}

func TestPaperSellRoundTrip(t *testing.T) {
	b := newPaper(t)
	previewAndPlace(t, b, &models.OrderRequest{
		Symbol: "XOM", Side: models.OrderSideBuy, Quantity: 10, LimitPrice: 100,
	})
	previewAndPlace(t, b, &models.OrderRequest{
		Symbol: "XOM", Side: models.OrderSideSell, Quantity: 10, LimitPrice: 110,
	})

	positions, err := b.GetPortfolio(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, positions)

	balance, _ := b.GetBalance(context.Background(), nil)
	assert.Equal(t, 10100.0, balance.CashBuyingPower)
}

func TestPaperSellRejectsWithoutPosition(t *testing.T) {
	b := newPaper(t)
	ctx := context.Background()
	accounts, _ := b.ListAccounts(ctx)

	_, err := b.PreviewOrder(ctx, &accounts[0], &models.OrderRequest{
		Symbol: "NEM", Side: models.OrderSideSell, Quantity: 5, LimitPrice: 50,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrPositionNotFound))
}

func TestPaperRepeatedBuysAverageCost(t *testing.T) {
	b := newPaper(t)
	previewAndPlace(t, b, &models.OrderRequest{
		Symbol: "NEM", Side: models.OrderSideBuy, Quantity: 10, LimitPrice: 40,
	})
	previewAndPlace(t, b, &models.OrderRequest{
		Symbol: "NEM", Side: models.OrderSideBuy, Quantity: 10, LimitPrice: 60,
	})

	positions, err := b.GetPortfolio(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 20, positions[0].Quantity)
	assert.InDelta(t, 50.0, positions[0].PricePaid, 1e-9)
}

func TestPaperSeedFromSnapshot(t *testing.T) {
	b := newPaper(t)
	b.SeedFromSnapshot(&models.PortfolioSnapshot{
		Cash: 5000,
		Holdings: map[string]models.Position{
			"AAPL": {Symbol: "AAPL", Quantity: 10, AvgCost: 100},
		},
		TotalValue: 6000,
	})

	balance, _ := b.GetBalance(context.Background(), nil)
	assert.Equal(t, 5000.0, balance.CashBuyingPower)

	// The seeded position can be sold straight away.
	previewAndPlace(t, b, &models.OrderRequest{
		Symbol: "AAPL", Side: models.OrderSideSell, Quantity: 10, LimitPrice: 105,
	})
	balance, _ = b.GetBalance(context.Background(), nil)
	assert.Equal(t, 6050.0, balance.CashBuyingPower)
}
