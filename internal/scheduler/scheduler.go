// Package scheduler runs the polling loop that drives trading cycles.
//
// The loop is an explicit state machine rather than a cron: the interval is
// fixed, a cycle never overlaps the next, and cancellation is only honored
// at defined points (between cycles and between executed symbols), so an
// in-flight order is always carried to completion.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"etrade-trader/internal/broker"
	"etrade-trader/internal/config"
	apperrors "etrade-trader/internal/errors"
	"etrade-trader/internal/trading"
	"etrade-trader/pkg/utils"
)

// State is the scheduler's current phase.
type State int

const (
	StateIdle State = iota
	StateRunningCycle
	StateSleeping
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunningCycle:
		return "RUNNING_CYCLE"
	case StateSleeping:
		return "SLEEPING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	default:
		return "UNKNOWN"
	}
}

// Scheduler polls at a fixed interval, gating cycles on market hours and
// keeping the brokerage session alive between them.
type Scheduler struct {
	cfg       *config.Config
	broker    broker.Broker
	runner    *trading.CycleRunner
	hours     utils.MarketHours
	logger    zerolog.Logger
	state     State
	lastRenew time.Time
	authedDay time.Time
	live      bool
}

// New creates a Scheduler. live selects the strict session policy: renewal
// failures are fatal instead of retried.
func New(cfg *config.Config, b broker.Broker, runner *trading.CycleRunner, live bool, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		broker: b,
		runner: runner,
		hours: utils.MarketHours{
			OpenHour:   cfg.Schedule.MarketOpenHour,
			OpenMinute: cfg.Schedule.MarketOpenMinute,
			CloseHour:  cfg.Schedule.MarketCloseHour,
		},
		logger: logger,
		state:  StateIdle,
		live:   live,
	}
}

// State returns the current scheduler state.
func (s *Scheduler) State() State {
	return s.state
}

// Run blocks until ctx is cancelled. Each iteration: maintain the session,
// run one cycle if the market is open, then sleep out the interval. A cycle
// in progress when cancellation arrives finishes its current symbol before
// the loop exits.
func (s *Scheduler) Run(ctx context.Context) error {
	s.lastRenew = time.Now()
	s.authedDay = time.Now()

	s.logger.Info().
		Dur("interval", s.cfg.Schedule.PollInterval).
		Bool("live", s.live).
		Msg("Scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.state = StateShuttingDown
			s.logger.Info().Msg("Scheduler shutting down")
			return ctx.Err()
		default:
		}

		now := time.Now()

		sessionOK, err := s.maintainSession(ctx, now)
		if err != nil {
			if s.live {
				s.state = StateShuttingDown
				return err
			}
			s.logger.Warn().Err(err).Msg("Session maintenance failed, continuing in simulation")
			sessionOK = true
		}

		if !sessionOK {
			// No valid session; skip scoring and execution entirely and try
			// again next tick.
		} else if s.hours.IsMarketOpen(now) {
			s.state = StateRunningCycle
			if _, err := s.runner.Run(ctx, now); err != nil {
				if ctx.Err() != nil {
					s.state = StateShuttingDown
					return ctx.Err()
				}
				s.logger.Error().Err(err).Msg("Cycle failed")
			}
		} else {
			s.logger.Debug().
				Time("next_open", s.hours.NextOpen(now)).
				Msg("Market closed, skipping cycle")
		}

		s.state = StateSleeping
		if err := s.sleep(ctx, s.cfg.Schedule.PollInterval); err != nil {
			s.state = StateShuttingDown
			s.logger.Info().Msg("Scheduler shutting down")
			return err
		}
		s.state = StateIdle
	}
}

// maintainSession keeps the access token alive. It renews on the renewal
// interval, and reports false once the midnight Eastern boundary passes: the
// brokerage invalidates tokens there, and the authorization flow needs a
// human at a prompt, so the loop must never re-authenticate inline. Cycles
// are skipped until a plain renewal succeeds or the operator runs the auth
// command and restarts.
func (s *Scheduler) maintainSession(ctx context.Context, now time.Time) (bool, error) {
	if !utils.SameEasternDay(s.authedDay, now) {
		if !s.live {
			// Paper sessions hold no brokerage token; just roll the day.
			s.authedDay = now
			s.lastRenew = now
			return true, nil
		}
		if err := s.broker.RenewToken(ctx); err != nil {
			s.logger.Warn().Err(err).
				Time("authed_day", s.authedDay).
				Msg("Session lapsed at the daily boundary, skipping cycles until re-authentication")
			return false, nil
		}
		s.authedDay = now
		s.lastRenew = now
		return true, nil
	}

	if now.Sub(s.lastRenew) < s.cfg.Schedule.TokenRenewAfter {
		return true, nil
	}

	err := utils.Retry(ctx, utils.DefaultRetryConfig(), func() error {
		return s.broker.RenewToken(ctx)
	})
	if err != nil {
		return false, apperrors.Wrap(err, "renewing session token")
	}
	s.lastRenew = now
	return true, nil
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
