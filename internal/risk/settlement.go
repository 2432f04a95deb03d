package risk

import (
	"time"

	"github.com/rs/zerolog"

	"etrade-trader/internal/models"
	"etrade-trader/internal/store"
)

// SettlementTracker enforces T+1 settlement: proceeds from a sale become
// usable cash on the next business day, never the same day. Buys must be
// sized against AvailableCash, never the raw cash balance.
type SettlementTracker struct {
	store   *store.StateStore
	logger  zerolog.Logger
	pending []models.SettlementEntry
}

// NewSettlementTracker loads the persisted pending settlements.
func NewSettlementTracker(st *store.StateStore, logger zerolog.Logger) (*SettlementTracker, error) {
	pending, err := st.LoadSettlements()
	if err != nil {
		return nil, err
	}
	return &SettlementTracker{
		store:   st,
		logger:  logger,
		pending: pending,
	}, nil
}

// RecordSaleProceeds registers proceeds settling on the next business day
// after the sale. The entry is persisted before returning.
func (t *SettlementTracker) RecordSaleProceeds(symbol string, amount float64, saleDate time.Time) error {
	entry := models.SettlementEntry{
		Symbol:    symbol,
		Amount:    amount,
		SettlesOn: NextBusinessDay(saleDate),
	}
	t.pending = append(t.pending, entry)

	t.logger.Info().
		Str("symbol", symbol).
		Float64("amount", amount).
		Time("settles_on", entry.SettlesOn).
		Msg("Settlement pending")

	return t.store.SaveSettlements(t.pending)
}

// AvailableCash returns cash usable for new buys on the given day: the cash
// balance minus every pending amount that has not yet settled.
func (t *SettlementTracker) AvailableCash(cashOnHand float64, today time.Time) float64 {
	day := dateOnly(today)
	unavailable := 0.0
	for _, entry := range t.pending {
		if entry.SettlesOn.After(day) {
			unavailable += entry.Amount
		}
	}
	return cashOnHand - unavailable
}

// Settle drops entries whose settlement date has arrived. Idempotent;
// persistence only happens when something settled.
func (t *SettlementTracker) Settle(today time.Time) error {
	day := dateOnly(today)
	remaining := t.pending[:0]
	settled := 0
	for _, entry := range t.pending {
		if entry.SettlesOn.After(day) {
			remaining = append(remaining, entry)
		} else {
			settled++
		}
	}
	if settled == 0 {
		return nil
	}
	t.pending = remaining
	return t.store.SaveSettlements(t.pending)
}

// PendingTotal returns the sum of all unsettled amounts.
func (t *SettlementTracker) PendingTotal() float64 {
	total := 0.0
	for _, entry := range t.pending {
		total += entry.Amount
	}
	return total
}

// NextBusinessDay returns the next weekday after the given date.
func NextBusinessDay(t time.Time) time.Time {
	day := dateOnly(t).AddDate(0, 0, 1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}
