// Package retention purges closed sessions whose end time has aged past
// the configured period.
package retention

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/adhocore/gronx"

	"github.com/adambraimbridge/webchat/pkg/config"
	"github.com/adambraimbridge/webchat/pkg/eventlog"
	"github.com/adambraimbridge/webchat/pkg/logger"
	"github.com/adambraimbridge/webchat/pkg/models"
	"github.com/adambraimbridge/webchat/pkg/state"
)

var storedEff *config.EffectiveConfigResult

// SetEffectiveConfig stores the effective config so tests (or admin
// triggers) can invoke retention runs on-demand.
func SetEffectiveConfig(eff config.EffectiveConfigResult) {
	storedEff = &eff
}

// RunImmediate triggers a single retention run using the stored effective
// config.
func RunImmediate() error {
	if storedEff == nil {
		return fmt.Errorf("no effective config registered for retention run")
	}
	return runOnce(context.Background(), *storedEff)
}

// Start starts the retention scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, eff config.EffectiveConfigResult) (context.CancelFunc, error) {
	ret := eff.Config.Retention

	if !ret.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	if state.PathsVar.Retention != "" {
		if err := os.MkdirAll(state.PathsVar.Retention, 0o700); err != nil {
			logger.Error("retention_path_create_failed", "path", state.PathsVar.Retention, "error", err.Error())
			return nil, err
		}
	}

	// default daily @02:00
	cronExpr := ret.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", ret.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", ret.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", ret.Period.Duration().String())
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, eff, cronExpr)
	return cancel, nil
}

// runScheduler computes the next tick for the configured cron expression
// and sleeps until that time.
func runScheduler(ctx context.Context, eff config.EffectiveConfigResult, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err.Error())
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			if err := runOnce(ctx, eff); err != nil {
				logger.Error("retention_run_error", "error", err.Error())
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// runOnce purges closed sessions older than the retention period.
func runOnce(ctx context.Context, eff config.EffectiveConfigResult) error {
	ret := eff.Config.Retention
	period := ret.Period.Duration()
	if period <= 0 {
		return fmt.Errorf("retention period not set")
	}
	if min := ret.MinPeriod.Duration(); min > 0 && period < min {
		return fmt.Errorf("retention period %s below minimum %s", period, min)
	}
	cutoff := time.Now().Add(-period).UnixMilli()

	snaps, err := eventlog.ListSessions()
	if err != nil {
		return err
	}
	purged := 0
	for _, snap := range snaps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if snap.Status != models.StatusClosed {
			continue
		}
		if snap.Time == 0 || snap.Time > cutoff {
			continue
		}
		if ret.DryRun {
			logger.Info("retention_would_purge", "session", snap.SessionID)
			continue
		}
		if err := eventlog.PurgeSession(snap.SessionID); err != nil {
			logger.Error("retention_purge_failed", "session", snap.SessionID, "error", err.Error())
			continue
		}
		purged++
		if ret.BatchSize > 0 && purged%ret.BatchSize == 0 {
			sleep := ret.BatchSleep.Duration()
			if sleep <= 0 {
				sleep = 100 * time.Millisecond
			}
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	logger.Info("retention_run_complete", "purged", purged, "sessions", len(snaps))
	return nil
}
