package models

import "time"

// TradeRecord is one entry of the append-only trade log. Records are never
// mutated after append; in simulated mode the log is the sole source of truth
// for rebuilding portfolio state.
type TradeRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Action    OrderSide `json:"action"`
	Symbol    string    `json:"symbol"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	Total     float64   `json:"total"`
	Sector    string    `json:"sector"`
	Reason    string    `json:"reason"`
	OrderID   string    `json:"order_id,omitempty"`
	IsPaper   bool      `json:"is_paper"`
}

// Position is an open holding. Every symbol has zero or one Position.
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity int     `json:"quantity"`
	AvgCost  float64 `json:"avg_cost"`
}

// PortfolioSnapshot is the replace-on-write persisted portfolio state.
type PortfolioSnapshot struct {
	Cash       float64             `json:"cash"`
	Holdings   map[string]Position `json:"holdings"`
	TotalValue float64             `json:"total_value"`
	LastSync   time.Time           `json:"last_sync"`
}

// WashSaleEntry blocks repurchase of a symbol after a realized loss.
// The block covers [sale date, BlockUntil); buys are permitted again on
// BlockUntil itself.
type WashSaleEntry struct {
	Symbol     string    `json:"symbol"`
	BlockUntil time.Time `json:"block_until"`
	Loss       float64   `json:"loss"`
}

// SettlementEntry is an unsettled sale credit. The amount counts against
// available cash until SettlesOn.
type SettlementEntry struct {
	Symbol    string    `json:"symbol"`
	Amount    float64   `json:"amount"`
	SettlesOn time.Time `json:"settles_on"`
}

// OrderRequest describes one LIMIT equity order. Market orders are never
// issued.
type OrderRequest struct {
	Symbol     string
	Side       OrderSide
	Quantity   int
	LimitPrice float64
	Reason     string
}

// OrderPreview is the brokerage preview of an order, required before placing.
type OrderPreview struct {
	PreviewID     string
	ClientOrderID string
	Request       OrderRequest
	EstimatedCost float64
}

// OrderResult is the outcome of a placed order.
type OrderResult struct {
	OrderID   string
	Status    string
	FillPrice float64
	PlacedAt  time.Time
}

// CycleSummary records the outcome of one scheduler cycle for the audit
// history.
type CycleSummary struct {
	Cycle         int64
	StartedAt     time.Time
	Duration      time.Duration
	Skipped       bool
	SkipReason    string
	SymbolsScored int
	Signals       int
	Executed      int
	Rejected      int
	Cash          float64
	TotalValue    float64
}
