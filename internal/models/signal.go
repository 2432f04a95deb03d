package models

// Action is the decision produced for one symbol in one cycle.
type Action string

const (
	ActionNone       Action = "NONE"
	ActionBuy        Action = "BUY"
	ActionStrongBuy  Action = "STRONG_BUY"
	ActionSell       Action = "SELL"
	ActionStrongSell Action = "STRONG_SELL"
)

// ExecutionPriority orders actions for execution within a cycle. Sells come
// before buys so capital is freed and settlement entries recorded before new
// purchases are sized. This ordering is a contract, not an optimization.
func (a Action) ExecutionPriority() int {
	switch a {
	case ActionStrongSell:
		return 4
	case ActionStrongBuy:
		return 3
	case ActionSell:
		return 2
	case ActionBuy:
		return 1
	default:
		return 0
	}
}

// Zone classifies a window position into a trading zone.
type Zone string

const (
	ZoneStrongBuy  Zone = "STRONG_BUY"
	ZoneBuy        Zone = "BUY"
	ZoneHold       Zone = "HOLD"
	ZoneSell       Zone = "SELL"
	ZoneStrongSell Zone = "STRONG_SELL"
)

// PriceWindow is the per-cycle rolling-window result for one symbol.
// Position is unclamped: values outside [0,1] mean the price has broken the
// band.
type PriceWindow struct {
	Symbol       string
	Center       float64 // median close over the lookback
	Upper        float64 // Center * (1 + half-width)
	Lower        float64 // Center * (1 - half-width)
	CurrentPrice float64
	Position     float64
	ZScore       float64
	Volatility   float64 // annualized stdev of daily returns
}

// SectorPerformance holds the trailing average return for one sector.
type SectorPerformance struct {
	Sector string
	Return float64
}

// RiskFlags is the composed risk check result for one symbol. Derived per
// cycle, never persisted.
type RiskFlags struct {
	WashSaleBlocked     bool
	MaxPositionsReached bool
}

// Signal is the ranked decision for one symbol.
type Signal struct {
	Symbol     string
	Action     Action
	Score      int
	WindowPos  float64
	Zone       Zone
	Sector     string
	Reason     string
}
