package risk

import (
	"time"

	"etrade-trader/internal/config"
	"etrade-trader/internal/models"
)

// Manager composes the wash-sale and settlement trackers into the per-symbol
// risk flags consumed by the signal generator.
type Manager struct {
	WashSales   *WashSaleTracker
	Settlements *SettlementTracker
	cfg         config.RiskConfig
}

// NewManager creates a Manager over already-loaded trackers.
func NewManager(washSales *WashSaleTracker, settlements *SettlementTracker, cfg config.RiskConfig) *Manager {
	return &Manager{
		WashSales:   washSales,
		Settlements: settlements,
		cfg:         cfg,
	}
}

// Flags evaluates the risk constraints for one symbol. The position limit
// only binds symbols not already held: adding to an existing position does
// not open a new slot.
func (m *Manager) Flags(symbol string, held bool, openPositions int, today time.Time) models.RiskFlags {
	return models.RiskFlags{
		WashSaleBlocked:     m.WashSales.IsBlocked(symbol, today),
		MaxPositionsReached: openPositions >= m.cfg.MaxPositions && !held,
	}
}

// MaxPositions returns the configured open-position limit.
func (m *Manager) MaxPositions() int {
	return m.cfg.MaxPositions
}
