// Package trading executes ranked signals against a brokerage backend and
// keeps the risk and portfolio state consistent with every fill.
package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"etrade-trader/internal/broker"
	"etrade-trader/internal/config"
	apperrors "etrade-trader/internal/errors"
	"etrade-trader/internal/logging"
	"etrade-trader/internal/models"
	"etrade-trader/internal/portfolio"
	"etrade-trader/internal/risk"
	"etrade-trader/internal/store"
	"etrade-trader/internal/universe"
)

// ExecutionEngine turns actionable signals into orders. Signals execute
// serially in their given order; each symbol is atomic: the fill, the
// portfolio mutation, the risk-state updates, and the trade-log append
// either all complete or the symbol is skipped whole.
type ExecutionEngine struct {
	broker    broker.Broker
	account   *models.Account
	portfolio *portfolio.Tracker
	risk      *risk.Manager
	store     *store.StateStore
	logger    zerolog.Logger
	isPaper   bool
	cfg       config.RiskConfig
}

// ExecutionResult summarizes one cycle's executions.
type ExecutionResult struct {
	Executed int
	Rejected int
}

// NewExecutionEngine creates an engine bound to one backend and account.
func NewExecutionEngine(b broker.Broker, account *models.Account, pf *portfolio.Tracker,
	rm *risk.Manager, st *store.StateStore, cfg config.RiskConfig, isPaper bool, logger zerolog.Logger) *ExecutionEngine {
	return &ExecutionEngine{
		broker:    b,
		account:   account,
		portfolio: pf,
		risk:      rm,
		store:     st,
		logger:    logger,
		isPaper:   isPaper,
		cfg:       cfg,
	}
}

// Execute runs the actionable signals in order, checking for cancellation
// between symbols. An order failure rejects that symbol and moves on; a
// persistence failure halts the remaining signals, because continuing with
// unrecorded state is worse than an incomplete cycle.
func (e *ExecutionEngine) Execute(ctx context.Context, signals []models.Signal,
	prices map[string]float64, allocations map[string]float64, now time.Time) (ExecutionResult, error) {
	var result ExecutionResult

	for _, sig := range signals {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		price, ok := prices[sig.Symbol]
		if !ok || price <= 0 {
			e.logger.Warn().Str("symbol", sig.Symbol).Msg("No usable price, skipping signal")
			result.Rejected++
			continue
		}

		var err error
		switch sig.Action {
		case models.ActionSell, models.ActionStrongSell:
			err = e.executeSell(ctx, sig, price, now)
		case models.ActionBuy, models.ActionStrongBuy:
			err = e.executeBuy(ctx, sig, price, allocations, now)
		default:
			continue
		}

		switch {
		case err == nil:
			result.Executed++
		case apperrors.Is(err, errPersistence):
			// State on disk no longer matches memory; stop the cycle.
			return result, err
		default:
			e.logger.Error().Err(err).
				Str("symbol", sig.Symbol).
				Str("action", string(sig.Action)).
				Msg("Signal execution failed")
			result.Rejected++
		}
	}
	return result, nil
}

var errPersistence = apperrors.ErrStateCorrupt

// executeSell closes the full position for the symbol.
func (e *ExecutionEngine) executeSell(ctx context.Context, sig models.Signal, price float64, now time.Time) error {
	pos, held := e.portfolio.Position(sig.Symbol)
	if !held || pos.Quantity <= 0 {
		return apperrors.NewOrderError(sig.Symbol, string(models.OrderSideSell), "no open position", apperrors.ErrPositionNotFound)
	}

	result, err := e.placeOrder(ctx, &models.OrderRequest{
		Symbol:     sig.Symbol,
		Side:       models.OrderSideSell,
		Quantity:   pos.Quantity,
		LimitPrice: price,
		Reason:     sig.Reason,
	})
	if err != nil {
		return err
	}

	e.portfolio.ApplySell(sig.Symbol, pos.Quantity, result.FillPrice)

	proceeds := float64(pos.Quantity) * result.FillPrice
	if err := e.risk.WashSales.RecordSale(sig.Symbol, pos.AvgCost, result.FillPrice, pos.Quantity, now); err != nil {
		return apperrors.Wrap(errPersistence, "recording wash sale")
	}
	if err := e.risk.Settlements.RecordSaleProceeds(sig.Symbol, proceeds, now); err != nil {
		return apperrors.Wrap(errPersistence, "recording settlement")
	}

	return e.recordTrade(&models.TradeRecord{
		Timestamp: now,
		Action:    models.OrderSideSell,
		Symbol:    sig.Symbol,
		Quantity:  pos.Quantity,
		Price:     result.FillPrice,
		Total:     proceeds,
		Sector:    sig.Sector,
		Reason:    sig.Reason,
		OrderID:   result.OrderID,
		IsPaper:   e.isPaper,
	})
}

// executeBuy opens a new position sized by sector allocation, subject to the
// per-position cap and settled cash.
func (e *ExecutionEngine) executeBuy(ctx context.Context, sig models.Signal, price float64,
	allocations map[string]float64, now time.Time) error {
	sector := sig.Sector
	if sector == "" {
		sector = universe.SectorOf(sig.Symbol)
	}

	// Signals were admitted against the pre-cycle position count; earlier
	// buys in this cycle may have filled the book since. Re-check at fill
	// time so the cap holds no matter how many buys one cycle admits.
	if !e.portfolio.IsHeld(sig.Symbol) && e.portfolio.NumPositions() >= e.risk.MaxPositions() {
		e.logger.Debug().
			Str("symbol", sig.Symbol).
			Int("open_positions", e.portfolio.NumPositions()).
			Msg("Position limit reached mid-cycle, skipping buy")
		return nil
	}

	availableCash := e.risk.Settlements.AvailableCash(e.portfolio.Cash(), now)
	quantity := ComputePositionSize(
		e.portfolio.TotalValue(), allocations[sector], e.cfg.MaxPositionPercent, availableCash, price)
	if quantity <= 0 {
		e.logger.Debug().
			Str("symbol", sig.Symbol).
			Float64("available_cash", availableCash).
			Float64("price", price).
			Msg("Buy sized to zero, skipping")
		return nil
	}

	result, err := e.placeOrder(ctx, &models.OrderRequest{
		Symbol:     sig.Symbol,
		Side:       models.OrderSideBuy,
		Quantity:   quantity,
		LimitPrice: price,
		Reason:     sig.Reason,
	})
	if err != nil {
		return err
	}

	e.portfolio.ApplyBuy(sig.Symbol, quantity, result.FillPrice)

	return e.recordTrade(&models.TradeRecord{
		Timestamp: now,
		Action:    models.OrderSideBuy,
		Symbol:    sig.Symbol,
		Quantity:  quantity,
		Price:     result.FillPrice,
		Total:     float64(quantity) * result.FillPrice,
		Sector:    sector,
		Reason:    sig.Reason,
		OrderID:   result.OrderID,
		IsPaper:   e.isPaper,
	})
}

// placeOrder runs the two-step preview-then-place protocol. A failure at
// either step fails the symbol for this cycle; the next cycle re-evaluates
// from scratch rather than retrying a stale order.
func (e *ExecutionEngine) placeOrder(ctx context.Context, req *models.OrderRequest) (*models.OrderResult, error) {
	preview, err := e.broker.PreviewOrder(ctx, e.account, req)
	if err != nil {
		return nil, err
	}
	result, err := e.broker.PlaceOrder(ctx, e.account, preview)
	if err != nil {
		return nil, err
	}

	logging.LogTrade(e.logger, req.Symbol, string(req.Side), req.Quantity, result.FillPrice, req.Reason)
	return result, nil
}

func (e *ExecutionEngine) recordTrade(record *models.TradeRecord) error {
	if err := e.store.AppendTrade(record); err != nil {
		return apperrors.Wrap(errPersistence, "appending trade record")
	}
	if err := e.portfolio.Save(); err != nil {
		return apperrors.Wrap(errPersistence, "saving portfolio snapshot")
	}
	return nil
}
