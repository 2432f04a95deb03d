// Package broker provides brokerage integration interfaces and implementations.
package broker

import (
	"context"

	"etrade-trader/internal/models"
)

// Broker is the capability set required by the trading engine. One
// implementation is selected at startup; code never branches on the concrete
// type per call.
type Broker interface {
	// Session
	Authenticate(ctx context.Context) error
	RenewToken(ctx context.Context) error
	IsAuthenticated() bool

	// Account
	ListAccounts(ctx context.Context) ([]models.Account, error)
	GetBalance(ctx context.Context, account *models.Account) (*models.Balance, error)
	GetPortfolio(ctx context.Context, account *models.Account) ([]models.BrokeragePosition, error)

	// Market data
	GetQuotes(ctx context.Context, symbols []string) (map[string]models.Quote, error)

	// Orders. LIMIT orders only: PreviewOrder must be called first and its
	// result handed to PlaceOrder.
	PreviewOrder(ctx context.Context, account *models.Account, req *models.OrderRequest) (*models.OrderPreview, error)
	PlaceOrder(ctx context.Context, account *models.Account, preview *models.OrderPreview) (*models.OrderResult, error)
	CancelOrder(ctx context.Context, account *models.Account, orderID string) error
}
