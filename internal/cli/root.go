// Package cli provides the command-line interface for the trading application.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"etrade-trader/internal/config"
	"etrade-trader/internal/logging"
)

// Version information
const (
	Version = "0.1.0"
)

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "Value-driven equity trading engine for E*TRADE",
		Long: `A decision engine that trades a fixed 50-symbol universe on fundamental
value scores, rolling price windows, and contrarian sector rotation.

Runs fully simulated against real market data by default. LIVE mode places
real LIMIT orders through the E*TRADE API and requires explicit opt-in.

Use 'trader help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/etrade-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newAuthCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newPortfolioCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("etrade-trader v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Trading")
	output.Printf("  Mode:          %s\n", cfg.Trading.Mode)
	output.Printf("  Environment:   %s\n", cfg.Trading.Environment)
	output.Printf("  Initial Cash:  $%.2f\n", cfg.Trading.InitialCash)
	output.Println()

	output.Bold("Scoring")
	output.Printf("  Gate Threshold:  %d\n", cfg.Scoring.GateThreshold)
	output.Println()

	output.Bold("Window")
	output.Printf("  Lookback Days:   %d\n", cfg.Window.LookbackDays)
	output.Printf("  Half Width:      %.2f\n", cfg.Window.HalfWidth)
	output.Println()

	output.Bold("Risk")
	output.Printf("  Max Positions:   %d\n", cfg.Risk.MaxPositions)
	output.Printf("  Max Position %%:  %.1f%%\n", cfg.Risk.MaxPositionPercent*100)
	output.Printf("  Wash Sale:       $%.0f loss, %d day block\n",
		cfg.Risk.WashSaleLossThreshold, cfg.Risk.WashSaleBlockDays)
	output.Println()

	output.Bold("Schedule")
	output.Printf("  Poll Interval:   %s\n", cfg.Schedule.PollInterval)
	output.Printf("  Market Hours:    %02d:%02d-%02d:00 ET\n",
		cfg.Schedule.MarketOpenHour, cfg.Schedule.MarketOpenMinute, cfg.Schedule.MarketCloseHour)
}
