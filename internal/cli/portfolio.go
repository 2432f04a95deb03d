package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"etrade-trader/internal/portfolio"
	"etrade-trader/internal/risk"
	"etrade-trader/internal/store"
	"etrade-trader/internal/universe"
)

func newPortfolioCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Show the current portfolio state",
		Long: `Print the persisted portfolio snapshot: cash, open positions, pending
settlements, and active wash-sale blocks. Reads local state only; no
brokerage calls are made.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			st, err := store.NewStateStore(app.Config.Trading.DataDir)
			if err != nil {
				return err
			}
			pf, err := portfolio.NewTracker(st, app.Logger)
			if err != nil {
				return err
			}
			settlements, err := risk.NewSettlementTracker(st, app.Logger)
			if err != nil {
				return err
			}
			washSales, err := risk.NewWashSaleTracker(st, app.Config.Risk, app.Logger)
			if err != nil {
				return err
			}

			snapshot := pf.Snapshot()
			if output.IsJSON() {
				return output.JSON(snapshot)
			}

			output.Bold("Portfolio")
			output.Printf("  Cash:         $%.2f\n", snapshot.Cash)
			output.Printf("  Total Value:  $%.2f\n", snapshot.TotalValue)
			output.Printf("  Positions:    %d / %d\n", len(snapshot.Holdings), app.Config.Risk.MaxPositions)
			if pending := settlements.PendingTotal(); pending > 0 {
				output.Printf("  Unsettled:    $%.2f\n", pending)
			}
			output.Println()

			if len(snapshot.Holdings) == 0 {
				output.Dim("No open positions")
				return nil
			}

			symbols := make([]string, 0, len(snapshot.Holdings))
			for sym := range snapshot.Holdings {
				symbols = append(symbols, sym)
			}
			sort.Strings(symbols)

			table := NewTable(output, "SYMBOL", "SECTOR", "QTY", "AVG COST", "COST BASIS")
			for _, sym := range symbols {
				pos := snapshot.Holdings[sym]
				table.AddRow(
					sym,
					universe.SectorOf(sym),
					fmt.Sprintf("%d", pos.Quantity),
					fmt.Sprintf("$%.2f", pos.AvgCost),
					fmt.Sprintf("$%.2f", float64(pos.Quantity)*pos.AvgCost),
				)
			}
			table.Render()

			if blocked := washSales.BlockedSymbols(time.Now()); len(blocked) > 0 {
				sort.Strings(blocked)
				output.Println()
				output.Warning("Wash-sale blocked: %v", blocked)
			}
			return nil
		},
	}
}
