// Package portfolio tracks holdings, cash, and total value across cycles.
//
// The Tracker is a single mutable aggregate with no internal locking. It is
// owned by the execution engine: nothing else mutates it, and all access is
// serialized by the single-threaded cycle pipeline.
package portfolio

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"etrade-trader/internal/broker"
	apperrors "etrade-trader/internal/errors"
	"etrade-trader/internal/models"
	"etrade-trader/internal/store"
)

// Tracker holds the portfolio state.
type Tracker struct {
	store      *store.StateStore
	logger     zerolog.Logger
	cash       float64
	holdings   map[string]models.Position
	totalValue float64
	lastSync   time.Time
}

// NewTracker loads the persisted snapshot if one exists.
func NewTracker(st *store.StateStore, logger zerolog.Logger) (*Tracker, error) {
	t := &Tracker{
		store:    st,
		logger:   logger,
		holdings: make(map[string]models.Position),
	}
	snapshot, err := st.LoadPortfolio()
	if err != nil {
		return nil, err
	}
	if snapshot != nil {
		t.cash = snapshot.Cash
		t.totalValue = snapshot.TotalValue
		t.lastSync = snapshot.LastSync
		if snapshot.Holdings != nil {
			t.holdings = snapshot.Holdings
		}
	}
	return t, nil
}

// RebuildFromTrades replays the append-only trade log against the initial
// cash balance. In simulated mode the log is the sole source of truth.
func (t *Tracker) RebuildFromTrades(initialCash float64) error {
	trades, err := t.store.LoadTrades()
	if err != nil {
		return err
	}

	t.cash = initialCash
	t.holdings = make(map[string]models.Position)

	for _, trade := range trades {
		switch trade.Action {
		case models.OrderSideBuy:
			t.applyBuy(trade.Symbol, trade.Quantity, trade.Price)
		case models.OrderSideSell:
			t.applySell(trade.Symbol, trade.Quantity, trade.Price)
		}
	}

	// Without live quotes, mark holdings at cost.
	holdingsValue := 0.0
	for _, pos := range t.holdings {
		holdingsValue += float64(pos.Quantity) * pos.AvgCost
	}
	t.totalValue = t.cash + holdingsValue
	t.lastSync = time.Now()

	t.logger.Info().
		Int("positions", len(t.holdings)).
		Float64("cash", t.cash).
		Float64("total_value", t.totalValue).
		Msg("Portfolio rebuilt from trade log")

	return t.Save()
}

// SyncFromBroker replaces local state with the brokerage's view of the
// account (LIVE mode).
func (t *Tracker) SyncFromBroker(ctx context.Context, b broker.Broker, account *models.Account) error {
	balance, err := b.GetBalance(ctx, account)
	if err != nil {
		return apperrors.Wrap(err, "syncing balance")
	}
	positions, err := b.GetPortfolio(ctx, account)
	if err != nil {
		return apperrors.Wrap(err, "syncing portfolio")
	}

	t.cash = balance.CashBuyingPower
	t.totalValue = balance.TotalAccountValue
	t.holdings = make(map[string]models.Position, len(positions))
	for _, pos := range positions {
		if pos.Symbol == "" || pos.Quantity == 0 {
			continue
		}
		t.holdings[pos.Symbol] = models.Position{
			Symbol:   pos.Symbol,
			Quantity: pos.Quantity,
			AvgCost:  pos.PricePaid,
		}
	}
	t.lastSync = time.Now()

	t.logger.Info().
		Int("positions", len(t.holdings)).
		Float64("cash", t.cash).
		Float64("total_value", t.totalValue).
		Msg("Portfolio synced from brokerage")

	return t.Save()
}

// ApplyBuy records a filled buy. Called only by the execution engine.
func (t *Tracker) ApplyBuy(symbol string, quantity int, price float64) {
	t.applyBuy(symbol, quantity, price)
}

// ApplySell records a filled sell. Called only by the execution engine.
func (t *Tracker) ApplySell(symbol string, quantity int, price float64) {
	t.applySell(symbol, quantity, price)
}

func (t *Tracker) applyBuy(symbol string, quantity int, price float64) {
	cost := float64(quantity) * price
	t.cash -= cost
	pos, held := t.holdings[symbol]
	if !held {
		t.holdings[symbol] = models.Position{Symbol: symbol, Quantity: quantity, AvgCost: price}
		return
	}
	totalQty := pos.Quantity + quantity
	pos.AvgCost = (pos.AvgCost*float64(pos.Quantity) + cost) / float64(totalQty)
	pos.Quantity = totalQty
	t.holdings[symbol] = pos
}

func (t *Tracker) applySell(symbol string, quantity int, price float64) {
	t.cash += float64(quantity) * price
	pos, held := t.holdings[symbol]
	if !held {
		return
	}
	pos.Quantity -= quantity
	if pos.Quantity <= 0 {
		delete(t.holdings, symbol)
		return
	}
	t.holdings[symbol] = pos
}

// UpdateMarketValues recomputes total value from live prices, falling back
// to cost basis for symbols without a quote.
func (t *Tracker) UpdateMarketValues(livePrices map[string]float64) {
	holdingsValue := 0.0
	for sym, pos := range t.holdings {
		price, ok := livePrices[sym]
		if !ok || price <= 0 {
			price = pos.AvgCost
		}
		holdingsValue += float64(pos.Quantity) * price
	}
	t.totalValue = t.cash + holdingsValue
}

// Save persists the current snapshot (replace-on-write).
func (t *Tracker) Save() error {
	t.lastSync = time.Now()
	return t.store.SavePortfolio(t.Snapshot())
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() *models.PortfolioSnapshot {
	holdings := make(map[string]models.Position, len(t.holdings))
	for sym, pos := range t.holdings {
		holdings[sym] = pos
	}
	return &models.PortfolioSnapshot{
		Cash:       t.cash,
		Holdings:   holdings,
		TotalValue: t.totalValue,
		LastSync:   t.lastSync,
	}
}

// Cash returns the raw cash balance. Buys must not be sized against this
// directly; use the settlement tracker's AvailableCash.
func (t *Tracker) Cash() float64 {
	return t.cash
}

// TotalValue returns cash plus mark-to-market holdings value.
func (t *Tracker) TotalValue() float64 {
	return t.totalValue
}

// Position returns the open position for a symbol, if any.
func (t *Tracker) Position(symbol string) (models.Position, bool) {
	pos, ok := t.holdings[symbol]
	return pos, ok
}

// IsHeld reports whether the symbol has an open position.
func (t *Tracker) IsHeld(symbol string) bool {
	_, ok := t.holdings[symbol]
	return ok
}

// NumPositions returns the count of open positions.
func (t *Tracker) NumPositions() int {
	return len(t.holdings)
}

// HeldSymbols returns the symbols with open positions.
func (t *Tracker) HeldSymbols() map[string]bool {
	held := make(map[string]bool, len(t.holdings))
	for sym := range t.holdings {
		held[sym] = true
	}
	return held
}
