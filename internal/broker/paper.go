package broker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	apperrors "etrade-trader/internal/errors"
	"etrade-trader/internal/models"
)

// QuoteSource supplies quotes to the paper broker. In production it is backed
// by the market-data provider; tests inject a fixture.
type QuoteSource interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]models.Quote, error)
}

// PaperBroker simulates order execution without touching a brokerage. Orders
// fill immediately and in full at the limit price. Balance and holdings live
// in memory; the portfolio tracker owns the durable copy.
type PaperBroker struct {
	logger      zerolog.Logger
	quoteSource QuoteSource
	cash        float64
	totalValue  float64
	holdings    map[string]models.Position
	orderSeq    int
}

// NewPaperBroker creates a simulated broker seeded with the given cash
// balance.
func NewPaperBroker(initialCash float64, quotes QuoteSource, logger zerolog.Logger) *PaperBroker {
	return &PaperBroker{
		logger:      logger,
		quoteSource: quotes,
		cash:        initialCash,
		totalValue:  initialCash,
		holdings:    make(map[string]models.Position),
	}
}

// SeedFromSnapshot aligns the simulated account with a persisted portfolio
// snapshot, so restarts resume rather than reset.
func (b *PaperBroker) SeedFromSnapshot(snapshot *models.PortfolioSnapshot) {
	if snapshot == nil {
		return
	}
	b.cash = snapshot.Cash
	b.totalValue = snapshot.TotalValue
	b.holdings = make(map[string]models.Position, len(snapshot.Holdings))
	for sym, pos := range snapshot.Holdings {
		b.holdings[sym] = pos
	}
}

// Authenticate is a no-op for the simulated broker.
func (b *PaperBroker) Authenticate(ctx context.Context) error {
	b.logger.Info().Msg("Paper broker ready (no authentication required)")
	return nil
}

// RenewToken is a no-op for the simulated broker.
func (b *PaperBroker) RenewToken(ctx context.Context) error {
	return nil
}

// IsAuthenticated always reports true for the simulated broker.
func (b *PaperBroker) IsAuthenticated() bool {
	return true
}

// ListAccounts returns the single synthetic paper account.
func (b *PaperBroker) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return []models.Account{
		{
			AccountID:       "PAPER-0001",
			AccountIDKey:    "paper",
			Description:     "Paper Trading Account",
			InstitutionType: "BROKERAGE",
			Status:          "ACTIVE",
		},
	}, nil
}

// GetBalance returns the simulated cash and total value.
func (b *PaperBroker) GetBalance(ctx context.Context, account *models.Account) (*models.Balance, error) {
	return &models.Balance{
		CashBuyingPower:   b.cash,
		TotalAccountValue: b.totalValue,
	}, nil
}

// GetPortfolio returns the simulated holdings marked at cost.
func (b *PaperBroker) GetPortfolio(ctx context.Context, account *models.Account) ([]models.BrokeragePosition, error) {
	positions := make([]models.BrokeragePosition, 0, len(b.holdings))
	for _, pos := range b.holdings {
		positions = append(positions, models.BrokeragePosition{
			Symbol:      pos.Symbol,
			Quantity:    pos.Quantity,
			PricePaid:   pos.AvgCost,
			MarketValue: float64(pos.Quantity) * pos.AvgCost,
		})
	}
	return positions, nil
}

// GetQuotes delegates to the configured quote source. Simulated execution
// still runs on real market data.
func (b *PaperBroker) GetQuotes(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	if b.quoteSource == nil {
		return nil, apperrors.NewDataError("quote", "", "no quote source configured", nil)
	}
	return b.quoteSource.GetQuotes(ctx, symbols)
}

// PreviewOrder validates the request and returns a synthetic preview.
func (b *PaperBroker) PreviewOrder(ctx context.Context, account *models.Account, req *models.OrderRequest) (*models.OrderPreview, error) {
	if req.Quantity <= 0 || req.LimitPrice <= 0 {
		return nil, apperrors.NewOrderError(req.Symbol, string(req.Side), "non-positive quantity or price", apperrors.ErrInvalidOrder)
	}
	cost := float64(req.Quantity) * req.LimitPrice
	if req.Side == models.OrderSideBuy && cost > b.cash {
		return nil, apperrors.NewOrderError(req.Symbol, string(req.Side),
			fmt.Sprintf("cost %.2f exceeds cash %.2f", cost, b.cash), apperrors.ErrInsufficientFunds)
	}
	if req.Side == models.OrderSideSell {
		pos, held := b.holdings[req.Symbol]
		if !held || pos.Quantity < req.Quantity {
			return nil, apperrors.NewOrderError(req.Symbol, string(req.Side), "quantity exceeds position", apperrors.ErrPositionNotFound)
		}
	}
	return &models.OrderPreview{
		PreviewID:     fmt.Sprintf("paper-preview-%d", rand.Int63()),
		ClientOrderID: fmt.Sprintf("%d", 1000000000+rand.Int63n(9000000000)),
		Request:       *req,
		EstimatedCost: cost,
	}, nil
}

// PlaceOrder fills the previewed order immediately at the limit price.
func (b *PaperBroker) PlaceOrder(ctx context.Context, account *models.Account, preview *models.OrderPreview) (*models.OrderResult, error) {
	req := preview.Request
	cost := float64(req.Quantity) * req.LimitPrice

	switch req.Side {
	case models.OrderSideBuy:
		if cost > b.cash {
			return nil, apperrors.NewOrderError(req.Symbol, string(req.Side), "insufficient cash at fill", apperrors.ErrInsufficientFunds)
		}
		b.cash -= cost
		pos, held := b.holdings[req.Symbol]
		if held {
			totalQty := pos.Quantity + req.Quantity
			pos.AvgCost = (pos.AvgCost*float64(pos.Quantity) + cost) / float64(totalQty)
			pos.Quantity = totalQty
		} else {
			pos = models.Position{Symbol: req.Symbol, Quantity: req.Quantity, AvgCost: req.LimitPrice}
		}
		b.holdings[req.Symbol] = pos
	case models.OrderSideSell:
		pos, held := b.holdings[req.Symbol]
		if !held || pos.Quantity < req.Quantity {
			return nil, apperrors.NewOrderError(req.Symbol, string(req.Side), "position gone at fill", apperrors.ErrPositionNotFound)
		}
		b.cash += cost
		pos.Quantity -= req.Quantity
		if pos.Quantity <= 0 {
			delete(b.holdings, req.Symbol)
		} else {
			b.holdings[req.Symbol] = pos
		}
	default:
		return nil, apperrors.NewOrderError(req.Symbol, string(req.Side), "unknown side", apperrors.ErrInvalidOrder)
	}

	b.orderSeq++
	b.recomputeTotal()

	b.logger.Debug().
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Int("quantity", req.Quantity).
		Float64("price", req.LimitPrice).
		Msg("Paper order filled")

	return &models.OrderResult{
		OrderID:   fmt.Sprintf("paper-%06d", b.orderSeq),
		Status:    "EXECUTED",
		FillPrice: req.LimitPrice,
		PlacedAt:  time.Now(),
	}, nil
}

// CancelOrder is a no-op: paper orders fill instantly and are never open.
func (b *PaperBroker) CancelOrder(ctx context.Context, account *models.Account, orderID string) error {
	return nil
}

func (b *PaperBroker) recomputeTotal() {
	holdingsValue := 0.0
	for _, pos := range b.holdings {
		holdingsValue += float64(pos.Quantity) * pos.AvgCost
	}
	b.totalValue = b.cash + holdingsValue
}
