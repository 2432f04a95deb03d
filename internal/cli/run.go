package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"etrade-trader/internal/scheduler"
)

func newRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the polling trading loop",
		Long: `Start the scheduler: every poll interval during market hours, fetch
data for the universe, generate signals, and execute them.

SIMULATED mode (the default) logs trades locally without placing orders.
LIVE mode places real LIMIT orders and must be selected explicitly.`,
		Example: `  trader run
  trader run --mode LIVE --sandbox
  trader run --interval 5m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
				app.Config.Trading.Mode = mode
			}
			if sandbox, _ := cmd.Flags().GetBool("sandbox"); sandbox {
				app.Config.Trading.Environment = "sandbox"
			}
			if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
				app.Config.Schedule.PollInterval = interval
			}
			if err := app.Config.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pipeline, err := buildPipeline(ctx, app)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			if pipeline.Live {
				output.Warning("LIVE mode: real orders will be placed on account %s", pipeline.Account.AccountID)
			} else {
				output.Info("Simulated mode: trades are logged locally, no orders placed")
			}
			output.Printf("Polling every %s during market hours. Ctrl-C to stop.\n",
				app.Config.Schedule.PollInterval)

			sched := scheduler.New(app.Config, pipeline.Broker, pipeline.Runner, pipeline.Live, app.Logger)
			err = sched.Run(ctx)
			if errors.Is(err, context.Canceled) {
				output.Println()
				output.Success("Shut down cleanly")
				return nil
			}
			return err
		},
	}

	cmd.Flags().String("mode", "", "trading mode: SIMULATED or LIVE")
	cmd.Flags().Bool("sandbox", false, "use the sandbox brokerage environment")
	cmd.Flags().Duration("interval", 0, "override the poll interval (e.g. 5m)")

	return cmd
}
