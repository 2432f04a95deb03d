package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"etrade-trader/internal/broker"
	"etrade-trader/internal/config"
	apperrors "etrade-trader/internal/errors"
	"etrade-trader/internal/marketdata"
	"etrade-trader/internal/models"
	"etrade-trader/internal/portfolio"
	"etrade-trader/internal/risk"
	"etrade-trader/internal/rotation"
	"etrade-trader/internal/scoring"
	"etrade-trader/internal/signal"
	"etrade-trader/internal/store"
	"etrade-trader/internal/trading"
	"etrade-trader/internal/window"
)

// App holds the application dependencies shared across commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// Pipeline is the fully wired trading stack for one run.
type Pipeline struct {
	Broker    broker.Broker
	Account   *models.Account
	Portfolio *portfolio.Tracker
	Risk      *risk.Manager
	Runner    *trading.CycleRunner
	Store     *store.StateStore
	Cache     *store.SQLiteStore
	Live      bool
}

// Close releases pipeline resources.
func (p *Pipeline) Close() {
	if p.Cache != nil {
		p.Cache.Close()
	}
}

// buildPipeline wires the trading stack for the configured mode. LIVE mode
// authenticates against the brokerage and syncs the portfolio from the
// account; SIMULATED mode rebuilds state from the local trade log.
func buildPipeline(ctx context.Context, app *App) (*Pipeline, error) {
	cfg := app.Config
	logger := app.Logger

	st, err := store.NewStateStore(cfg.Trading.DataDir)
	if err != nil {
		return nil, err
	}

	cache, err := store.NewSQLiteStore(filepath.Join(cfg.Trading.DataDir, "trader.db"))
	if err != nil {
		logger.Warn().Err(err).Msg("Candle cache unavailable, history will be refetched each cycle")
		cache = nil
	}

	pf, err := portfolio.NewTracker(st, logger)
	if err != nil {
		return nil, err
	}

	washSales, err := risk.NewWashSaleTracker(st, cfg.Risk, logger)
	if err != nil {
		return nil, err
	}
	settlements, err := risk.NewSettlementTracker(st, logger)
	if err != nil {
		return nil, err
	}
	riskMgr := risk.NewManager(washSales, settlements, cfg.Risk)

	yahoo := marketdata.NewYahooProvider(logger)
	var data marketdata.Provider = yahoo
	if cache != nil {
		data = marketdata.NewCachedProvider(yahoo, cache, 12*time.Hour, logger)
	}

	var (
		b       broker.Broker
		account *models.Account
	)
	live := !cfg.IsSimulated()
	if live {
		eb := broker.NewETradeBroker(broker.ETradeConfig{
			ConsumerKey:    cfg.Credentials.ETrade.ConsumerKey,
			ConsumerSecret: cfg.Credentials.ETrade.ConsumerSecret,
			Sandbox:        cfg.IsSandbox(),
			Verifier:       promptVerifier,
			Logger:         logger,
		})
		if err := eb.Authenticate(ctx); err != nil {
			return nil, err
		}
		b = eb

		account, err = selectAccount(ctx, b, cfg.Trading.AccountID)
		if err != nil {
			return nil, err
		}
		if err := pf.SyncFromBroker(ctx, b, account); err != nil {
			return nil, err
		}
	} else {
		pb := broker.NewPaperBroker(cfg.Trading.InitialCash, yahoo, logger)
		if err := pf.RebuildFromTrades(cfg.Trading.InitialCash); err != nil {
			return nil, err
		}
		pb.SeedFromSnapshot(pf.Snapshot())
		b = pb

		accounts, _ := pb.ListAccounts(ctx)
		account = &accounts[0]
	}

	scorer := scoring.NewScorer(cfg.Scoring)
	calc := window.NewCalculator(cfg.Window)
	allocator := rotation.NewAllocator(cfg.Rotation)
	generator := signal.NewGenerator(scorer, calc, cfg.Risk, logger)
	engine := trading.NewExecutionEngine(b, account, pf, riskMgr, st, cfg.Risk, !live, logger)
	runner := trading.NewCycleRunner(cfg, b, data, scorer, calc, allocator,
		generator, engine, pf, riskMgr, cache, logger)

	return &Pipeline{
		Broker:    b,
		Account:   account,
		Portfolio: pf,
		Risk:      riskMgr,
		Runner:    runner,
		Store:     st,
		Cache:     cache,
		Live:      live,
	}, nil
}

// selectAccount picks the configured account, or the single active one when
// no selector is configured.
func selectAccount(ctx context.Context, b broker.Broker, accountID string) (*models.Account, error) {
	accounts, err := b.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, apperrors.ErrNoAccount
	}

	if accountID == "" {
		return &accounts[0], nil
	}
	for i := range accounts {
		if accounts[i].AccountID == accountID {
			return &accounts[i], nil
		}
	}
	return nil, fmt.Errorf("account %s: %w", accountID, apperrors.ErrNoAccount)
}

// promptVerifier asks the user to authorize the application and paste the
// verification code.
func promptVerifier(authorizeURL string) (string, error) {
	fmt.Println("Authorize this application at:")
	fmt.Println()
	fmt.Println("  " + authorizeURL)
	fmt.Println()
	fmt.Print("Enter the verification code: ")

	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(code), nil
}
