// Package models provides domain models for the trading application.
package models

import (
	"time"
)

// Environment selects the brokerage endpoint.
type Environment string

const (
	EnvProduction Environment = "production"
	EnvSandbox    Environment = "sandbox"
)

// Mode selects the execution backend.
type Mode string

const (
	ModeSimulated Mode = "SIMULATED"
	ModeLive      Mode = "LIVE"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Candle represents daily OHLCV data.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Quote represents a live market quote.
type Quote struct {
	Symbol        string
	LastPrice     float64
	Bid           float64
	Ask           float64
	Volume        int64
	EPS           float64
	PE            float64
	Beta          float64
	MarketCap     float64
	Week52High    float64
	Week52Low     float64
	PreviousClose float64
	Timestamp     time.Time
}

// FundamentalsSnapshot holds the fundamental metrics for one symbol at one
// cycle. Fields are pointers because providers routinely omit them; a nil
// field scores neutral rather than failing the computation.
type FundamentalsSnapshot struct {
	Symbol        string
	PE            *float64 // trailing or forward price-to-earnings
	EPSGrowth     *float64 // decimal, 0.15 = 15%
	RevenueGrowth *float64 // decimal
	ProfitMargin  *float64 // decimal
	DebtEquity    *float64 // percentage, 50 = 50%
	AnalystTarget *float64
	CurrentPrice  *float64
	Timestamp     time.Time
}

// Account represents a brokerage account.
type Account struct {
	AccountID       string
	AccountIDKey    string
	Description     string
	InstitutionType string
	Status          string
}

// Balance represents account balance figures.
type Balance struct {
	CashBuyingPower   float64
	TotalAccountValue float64
}

// BrokeragePosition is a holding as reported by the brokerage portfolio
// endpoint, before being folded into the local portfolio state.
type BrokeragePosition struct {
	Symbol      string
	Quantity    int
	PricePaid   float64
	MarketValue float64
	TotalGain   float64
}
