package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# E*TRADE Value Trader Configuration

[trading]
# Execution backend: "SIMULATED" or "LIVE"
mode = "SIMULATED"
# Brokerage endpoint: "production" or "sandbox"
environment = "sandbox"
# Account ID to trade against in LIVE mode
account_id = ""
# Starting cash for the simulated ledger
initial_cash = 100000.0

[scoring]
# Sub-score weights, must sum to 1.0
weight_pe = 0.25
weight_eps_growth = 0.25
weight_revenue_growth = 0.15
weight_profit_margin = 0.10
weight_debt_equity = 0.10
weight_fair_value_gap = 0.15
# Minimum value score required to buy
gate_threshold = 40

[window]
# Trading days of history used for the rolling window
lookback_days = 60
# Half-width of the band around the median (0.05 = 10% total band)
half_width = 0.05
strong_buy_threshold = 0.20
buy_threshold = 0.35
sell_threshold = 0.65
strong_sell_threshold = 0.80

[rotation]
# Days of trailing returns used for sector performance
performance_period_days = 60
# Per-sector allocation weight bounds
min_allocation = 0.15
max_allocation = 0.55

[risk]
max_positions = 20
# Hard cap per symbol as a fraction of total portfolio value
max_position_percent = 0.05
# Minimum realized loss in dollars that triggers a wash-sale block
wash_sale_loss_threshold = 100.0
wash_sale_block_days = 30
buy_score_threshold = 60
strong_buy_score_threshold = 70
sell_score_threshold = 50
collapse_score_threshold = 30

[schedule]
poll_interval = "10m"
token_renew_after = "90m"
quote_batch_size = 25
market_open_hour = 9
market_open_minute = 30
market_close_hour = 16
`

const credentialsTemplate = `# E*TRADE Value Trader Credentials
# Obtain consumer key/secret from https://developer.etrade.com

[etrade]
consumer_key = ""
consumer_secret = ""
`

func writeTemplateConfig(configDir string) error {
	return writeTemplate(configDir, "config.toml", configTemplate)
}

func writeTemplateCredentials(configDir string) error {
	return writeTemplate(configDir, "credentials.toml", credentialsTemplate)
}

func writeTemplate(configDir, name, content string) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	path := filepath.Join(configDir, name)
	if _, err := os.Stat(path); err == nil {
		return nil // never overwrite an existing file
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}
	return nil
}
