// Package risk tracks the stateful constraints that span trading days:
// wash-sale blocks and T+1 settlement. Both trackers persist synchronously
// on every mutation, before the triggering trade is considered complete.
package risk

import (
	"time"

	"github.com/rs/zerolog"

	"etrade-trader/internal/config"
	"etrade-trader/internal/models"
	"etrade-trader/internal/store"
)

// WashSaleTracker blocks repurchase of symbols sold at a qualifying loss.
//
// A sale at a loss of at least the configured threshold blocks buys for the
// symbol on the sale day and the following blockDays-1 calendar days; buys
// are permitted again exactly blockDays days after the sale.
type WashSaleTracker struct {
	store   *store.StateStore
	cfg     config.RiskConfig
	logger  zerolog.Logger
	entries map[string]models.WashSaleEntry
}

// NewWashSaleTracker loads the persisted wash-sale list.
func NewWashSaleTracker(st *store.StateStore, cfg config.RiskConfig, logger zerolog.Logger) (*WashSaleTracker, error) {
	entries, err := st.LoadWashSales()
	if err != nil {
		return nil, err
	}
	return &WashSaleTracker{
		store:   st,
		cfg:     cfg,
		logger:  logger,
		entries: entries,
	}, nil
}

// RecordSale evaluates a realized sale and inserts a block entry when the
// loss meets the threshold. The entry is persisted before returning.
func (t *WashSaleTracker) RecordSale(symbol string, avgCost, salePrice float64, quantity int, saleDate time.Time) error {
	realized := (salePrice - avgCost) * float64(quantity)
	if realized > -t.cfg.WashSaleLossThreshold {
		return nil
	}

	entry := models.WashSaleEntry{
		Symbol:     symbol,
		BlockUntil: dateOnly(saleDate).AddDate(0, 0, t.cfg.WashSaleBlockDays),
		Loss:       -realized,
	}
	t.entries[symbol] = entry

	t.logger.Info().
		Str("symbol", symbol).
		Float64("loss", entry.Loss).
		Time("block_until", entry.BlockUntil).
		Msg("Wash sale block recorded")

	return t.store.SaveWashSales(t.entries)
}

// IsBlocked reports whether buys of the symbol are forbidden on the given
// day. Naturally expired entries are pruned lazily.
func (t *WashSaleTracker) IsBlocked(symbol string, today time.Time) bool {
	t.prune(today)
	entry, ok := t.entries[symbol]
	if !ok {
		return false
	}
	return dateOnly(today).Before(entry.BlockUntil)
}

// BlockedSymbols returns the currently blocked symbols.
func (t *WashSaleTracker) BlockedSymbols(today time.Time) []string {
	t.prune(today)
	symbols := make([]string, 0, len(t.entries))
	for sym := range t.entries {
		symbols = append(symbols, sym)
	}
	return symbols
}

// prune drops expired entries. Idempotent; persistence only happens when an
// entry was actually removed.
func (t *WashSaleTracker) prune(today time.Time) {
	day := dateOnly(today)
	changed := false
	for sym, entry := range t.entries {
		if !day.Before(entry.BlockUntil) {
			delete(t.entries, sym)
			changed = true
		}
	}
	if changed {
		if err := t.store.SaveWashSales(t.entries); err != nil {
			t.logger.Error().Err(err).Msg("Failed to persist pruned wash-sale list")
		}
	}
}

// dateOnly truncates a timestamp to its calendar day in UTC. Risk windows
// are defined over dates, not instants.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
