// Package retention keeps the local session cache bounded: on a cron
// schedule it deletes cached profile snapshots and conversation watermarks
// older than the configured period.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"heartlink/pkg/config"
	"heartlink/pkg/logger"
	"heartlink/pkg/session"
)

const defaultCron = "0 3 * * *"
const defaultPeriod = 30 * 24 * time.Hour

// Start launches the sweep scheduler when enabled and returns a cancel
// func. Invalid cron expressions fail fast.
func Start(ctx context.Context, cfg config.RetentionConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = defaultCron
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}
	period := cfg.Period.Std(defaultPeriod)

	logger.Info("retention_enabled", "cron", cronExpr, "period", period.String(), "dry_run", cfg.DryRun)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, period, cfg.DryRun)
	return cancel, nil
}

// runScheduler sleeps until each next cron tick and sweeps.
func runScheduler(ctx context.Context, cronExpr string, period time.Duration, dryRun bool) {
	for {
		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_next_tick_failed", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		case <-time.After(next.Sub(now)):
		}
		if err := RunOnce(period, dryRun); err != nil {
			logger.Error("retention_sweep_failed", "error", err)
		}
	}
}

// RunOnce performs one sweep immediately. Exposed for tests and admin
// triggers.
func RunOnce(period time.Duration, dryRun bool) error {
	if !session.Ready() {
		return fmt.Errorf("session store not open")
	}
	cutoff := time.Now().UTC().Add(-period)
	n, err := session.SweepOlderThan(cutoff, dryRun)
	if err != nil {
		return err
	}
	logger.Info("retention_sweep_done", "removed", n, "cutoff", cutoff.Format(time.RFC3339), "dry_run", dryRun)
	return nil
}
