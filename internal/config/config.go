// Package config provides configuration management for the trading application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Trading     TradingConfig  `mapstructure:"trading"`
	Scoring     ScoringConfig  `mapstructure:"scoring"`
	Window      WindowConfig   `mapstructure:"window"`
	Rotation    RotationConfig `mapstructure:"rotation"`
	Risk        RiskConfig     `mapstructure:"risk"`
	Schedule    ScheduleConfig `mapstructure:"schedule"`
	Credentials Credentials    `mapstructure:"-"` // Loaded separately
}

// TradingConfig holds trading-related configuration.
type TradingConfig struct {
	Mode        string  `mapstructure:"mode"`        // "SIMULATED", "LIVE"
	Environment string  `mapstructure:"environment"` // "production", "sandbox"
	AccountID   string  `mapstructure:"account_id"`  // LIVE mode account selector
	InitialCash float64 `mapstructure:"initial_cash"`
	DataDir     string  `mapstructure:"data_dir"`
}

// ScoringConfig holds value-scorer weights and the fundamental gate.
// Weights must sum to 1.0.
type ScoringConfig struct {
	WeightPE            float64 `mapstructure:"weight_pe"`
	WeightEPSGrowth     float64 `mapstructure:"weight_eps_growth"`
	WeightRevenueGrowth float64 `mapstructure:"weight_revenue_growth"`
	WeightProfitMargin  float64 `mapstructure:"weight_profit_margin"`
	WeightDebtEquity    float64 `mapstructure:"weight_debt_equity"`
	WeightFairValueGap  float64 `mapstructure:"weight_fair_value_gap"`
	GateThreshold       int     `mapstructure:"gate_threshold"`
}

// WindowConfig holds trading-window parameters.
type WindowConfig struct {
	LookbackDays        int     `mapstructure:"lookback_days"`
	HalfWidth           float64 `mapstructure:"half_width"`
	StrongBuyThreshold  float64 `mapstructure:"strong_buy_threshold"`
	BuyThreshold        float64 `mapstructure:"buy_threshold"`
	SellThreshold       float64 `mapstructure:"sell_threshold"`
	StrongSellThreshold float64 `mapstructure:"strong_sell_threshold"`
}

// RotationConfig holds sector-rotation parameters.
type RotationConfig struct {
	PerformancePeriodDays int     `mapstructure:"performance_period_days"`
	MinAllocation         float64 `mapstructure:"min_allocation"`
	MaxAllocation         float64 `mapstructure:"max_allocation"`
}

// RiskConfig holds risk management configuration.
type RiskConfig struct {
	MaxPositions           int     `mapstructure:"max_positions"`
	MaxPositionPercent     float64 `mapstructure:"max_position_percent"`
	WashSaleLossThreshold  float64 `mapstructure:"wash_sale_loss_threshold"`
	WashSaleBlockDays      int     `mapstructure:"wash_sale_block_days"`
	BuyScoreThreshold      int     `mapstructure:"buy_score_threshold"`
	StrongBuyScoreThreshold int    `mapstructure:"strong_buy_score_threshold"`
	SellScoreThreshold     int     `mapstructure:"sell_score_threshold"`
	CollapseScoreThreshold int     `mapstructure:"collapse_score_threshold"`
}

// ScheduleConfig holds the polling schedule and session parameters.
type ScheduleConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	TokenRenewAfter  time.Duration `mapstructure:"token_renew_after"`
	QuoteBatchSize   int           `mapstructure:"quote_batch_size"`
	MarketOpenHour   int           `mapstructure:"market_open_hour"`
	MarketOpenMinute int           `mapstructure:"market_open_minute"`
	MarketCloseHour  int           `mapstructure:"market_close_hour"`
}

// Credentials holds API credentials.
type Credentials struct {
	ETrade ETradeCredentials `mapstructure:"etrade"`
}

// ETradeCredentials holds E*TRADE OAuth1 consumer credentials.
type ETradeCredentials struct {
	ConsumerKey    string `mapstructure:"consumer_key"`
	ConsumerSecret string `mapstructure:"consumer_secret"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/etrade-trader"
	}
	return filepath.Join(home, ".config", "etrade-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if cfg.Trading.DataDir == "" {
		cfg.Trading.DataDir = filepath.Join(configDir, "data")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config populated with defaults only, without touching the
// filesystem. Used by tests and the paper-mode quick start.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("trading.mode", "SIMULATED")
	v.SetDefault("trading.environment", "sandbox")
	v.SetDefault("trading.initial_cash", 100000.0)

	v.SetDefault("scoring.weight_pe", 0.25)
	v.SetDefault("scoring.weight_eps_growth", 0.25)
	v.SetDefault("scoring.weight_revenue_growth", 0.15)
	v.SetDefault("scoring.weight_profit_margin", 0.10)
	v.SetDefault("scoring.weight_debt_equity", 0.10)
	v.SetDefault("scoring.weight_fair_value_gap", 0.15)
	v.SetDefault("scoring.gate_threshold", 40)

	v.SetDefault("window.lookback_days", 60)
	v.SetDefault("window.half_width", 0.05)
	v.SetDefault("window.strong_buy_threshold", 0.20)
	v.SetDefault("window.buy_threshold", 0.35)
	v.SetDefault("window.sell_threshold", 0.65)
	v.SetDefault("window.strong_sell_threshold", 0.80)

	v.SetDefault("rotation.performance_period_days", 60)
	v.SetDefault("rotation.min_allocation", 0.15)
	v.SetDefault("rotation.max_allocation", 0.55)

	v.SetDefault("risk.max_positions", 20)
	v.SetDefault("risk.max_position_percent", 0.05)
	v.SetDefault("risk.wash_sale_loss_threshold", 100.0)
	v.SetDefault("risk.wash_sale_block_days", 30)
	v.SetDefault("risk.buy_score_threshold", 60)
	v.SetDefault("risk.strong_buy_score_threshold", 70)
	v.SetDefault("risk.sell_score_threshold", 50)
	v.SetDefault("risk.collapse_score_threshold", 30)

	v.SetDefault("schedule.poll_interval", 10*time.Minute)
	v.SetDefault("schedule.token_renew_after", 90*time.Minute)
	v.SetDefault("schedule.quote_batch_size", 25)
	v.SetDefault("schedule.market_open_hour", 9)
	v.SetDefault("schedule.market_open_minute", 30)
	v.SetDefault("schedule.market_close_hour", 16)
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if werr := writeTemplateConfig(configDir); werr != nil {
				return werr
			}
			return v.Unmarshal(target)
		}
		return err
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return writeTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ETRADE_CONSUMER_KEY"); v != "" {
		cfg.Credentials.ETrade.ConsumerKey = v
	}
	if v := os.Getenv("ETRADE_CONSUMER_SECRET"); v != "" {
		cfg.Credentials.ETrade.ConsumerSecret = v
	}
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.Mode != "SIMULATED" && c.Trading.Mode != "LIVE" {
		return fmt.Errorf("invalid trading mode: %s (must be 'SIMULATED' or 'LIVE')", c.Trading.Mode)
	}
	if c.Trading.Environment != "production" && c.Trading.Environment != "sandbox" {
		return fmt.Errorf("invalid environment: %s (must be 'production' or 'sandbox')", c.Trading.Environment)
	}

	weightSum := c.Scoring.WeightPE + c.Scoring.WeightEPSGrowth + c.Scoring.WeightRevenueGrowth +
		c.Scoring.WeightProfitMargin + c.Scoring.WeightDebtEquity + c.Scoring.WeightFairValueGap
	if weightSum < 0.999 || weightSum > 1.001 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.3f", weightSum)
	}

	if c.Window.LookbackDays < 2 {
		return fmt.Errorf("window lookback_days must be at least 2")
	}
	if c.Window.HalfWidth <= 0 || c.Window.HalfWidth >= 1 {
		return fmt.Errorf("window half_width must be in (0, 1)")
	}

	if c.Rotation.MinAllocation < 0 || c.Rotation.MaxAllocation > 1 ||
		c.Rotation.MinAllocation > c.Rotation.MaxAllocation {
		return fmt.Errorf("rotation allocations must satisfy 0 <= min <= max <= 1")
	}

	if c.Risk.MaxPositions <= 0 {
		return fmt.Errorf("risk max_positions must be positive")
	}
	if c.Risk.MaxPositionPercent <= 0 || c.Risk.MaxPositionPercent > 1 {
		return fmt.Errorf("risk max_position_percent must be in (0, 1]")
	}

	if c.Schedule.PollInterval <= 0 {
		return fmt.Errorf("schedule poll_interval must be positive")
	}

	return nil
}

// IsSimulated returns true if the simulated execution backend is selected.
func (c *Config) IsSimulated() bool {
	return c.Trading.Mode == "SIMULATED"
}

// IsSandbox returns true if the sandbox brokerage endpoint is selected.
func (c *Config) IsSandbox() bool {
	return c.Trading.Environment == "sandbox"
}
