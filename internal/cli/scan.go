package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"etrade-trader/internal/models"
)

func newScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Score the universe and show signals without trading",
		Long: `Run one full decision pass over the universe: fetch quotes, fundamentals,
and history, compute scores and price windows, and print the resulting
signals. Nothing is executed and no state is modified.`,
		Example: `  trader scan
  trader scan --all
  trader scan --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			showAll, _ := cmd.Flags().GetBool("all")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			pipeline, err := buildPipeline(ctx, app)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			output.Info("Scanning %s universe...", app.Config.Trading.Mode)
			signals, err := pipeline.Runner.Scan(ctx, time.Now())
			if err != nil {
				return err
			}

			if !showAll {
				filtered := signals[:0]
				for _, s := range signals {
					if s.Action != models.ActionNone {
						filtered = append(filtered, s)
					}
				}
				signals = filtered
			}

			if output.IsJSON() {
				return output.JSON(signals)
			}

			if len(signals) == 0 {
				output.Dim("No actionable signals")
				return nil
			}

			table := NewTable(output, "SYMBOL", "ACTION", "SCORE", "WINDOW", "ZONE", "SECTOR", "REASON")
			for _, s := range signals {
				table.AddRow(
					s.Symbol,
					output.Action(string(s.Action)),
					fmt.Sprintf("%d", s.Score),
					fmt.Sprintf("%.2f", s.WindowPos),
					string(s.Zone),
					s.Sector,
					s.Reason,
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "include NONE signals")
	return cmd
}
