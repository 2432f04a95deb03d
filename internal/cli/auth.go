package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"etrade-trader/internal/broker"
	apperrors "etrade-trader/internal/errors"
)

func newAuthCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with E*TRADE",
		Long: `Run the OAuth authorization flow against the E*TRADE API.

Prints an authorization URL; after approving access in a browser, paste the
verification code back into the prompt. Consumer key and secret come from
credentials.toml or the ETRADE_CONSUMER_KEY/ETRADE_CONSUMER_SECRET
environment variables.`,
		Example: `  trader auth
  trader auth --sandbox`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			creds := app.Config.Credentials.ETrade
			if creds.ConsumerKey == "" || creds.ConsumerSecret == "" {
				output.Error("No E*TRADE consumer credentials configured")
				output.Println("Add them to credentials.toml or set ETRADE_CONSUMER_KEY / ETRADE_CONSUMER_SECRET.")
				return apperrors.ErrConfigInvalid
			}

			sandbox, _ := cmd.Flags().GetBool("sandbox")
			if !sandbox {
				sandbox = app.Config.IsSandbox()
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			b := broker.NewETradeBroker(broker.ETradeConfig{
				ConsumerKey:    creds.ConsumerKey,
				ConsumerSecret: creds.ConsumerSecret,
				Sandbox:        sandbox,
				Verifier:       promptVerifier,
				Logger:         app.Logger,
			})
			if err := b.Authenticate(ctx); err != nil {
				output.Error("Authentication failed: %v", err)
				return err
			}

			output.Success("✓ Authenticated")

			accounts, err := b.ListAccounts(ctx)
			if err != nil {
				output.Warning("Could not list accounts: %v", err)
				return nil
			}

			table := NewTable(output, "ACCOUNT", "DESCRIPTION", "TYPE", "STATUS")
			for _, a := range accounts {
				table.AddRow(a.AccountID, a.Description, a.InstitutionType, a.Status)
			}
			output.Println()
			table.Render()
			return nil
		},
	}

	cmd.Flags().Bool("sandbox", false, "authenticate against the sandbox environment")
	return cmd
}
