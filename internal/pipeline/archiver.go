package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
	"github.com/alanyoungcy/prophyt-api/internal/notify"
)

// Archiver moves old oracle price history to cold storage on a schedule.
type Archiver struct {
	blob          domain.Archiver
	assets        []string
	retentionDays int
	alerter       Alerter
	logger        *slog.Logger
	now           func() time.Time
}

// NewArchiver creates an Archiver for the given assets. alerter may be nil.
func NewArchiver(blob domain.Archiver, assets []string, retentionDays int, alerter Alerter, logger *slog.Logger) *Archiver {
	return &Archiver{
		blob:          blob,
		assets:        assets,
		retentionDays: retentionDays,
		alerter:       alerter,
		logger:        logger.With(slog.String("component", "archiver")),
		now:           time.Now,
	}
}

// Run executes a single archive pass. Every asset is attempted; the first
// error is returned after all assets have been processed.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := a.now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	var firstErr error
	var total int64
	for _, asset := range a.assets {
		n, err := a.blob.ArchivePriceHistory(ctx, asset, cutoff)
		if err != nil {
			a.logger.Error("archive price history failed",
				slog.String("asset", asset),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("archiving %s history before %v: %w", asset, cutoff, err)
			}
			continue
		}
		total += n
		a.logger.Info("archived price history", slog.String("asset", asset), slog.Int64("rows", n))
	}

	a.logger.Info("archive run complete", slog.Int64("rows_archived", total))
	return firstErr
}

// RunCron runs the archiver on a five-field UTC cron schedule until ctx is
// cancelled. Failed runs are logged and alerted; the schedule continues.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	if err := ValidateCron(cronExpr); err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
	}
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, a.now())
		if err != nil {
			return fmt.Errorf("scheduling %q: %w", cronExpr, err)
		}

		wait := time.Until(next)
		a.logger.Debug("archiver waiting for next run", slog.Time("next_run", next), slog.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil && a.alerter != nil {
				if nerr := a.alerter.Notify(ctx, notify.Alert{
					Event:    notify.EventArchiveFailed,
					Severity: notify.SeverityWarning,
					Title:    "Price history archive failed",
					Message:  err.Error(),
				}); nerr != nil {
					a.logger.Warn("alert delivery failed", slog.String("error", nerr.Error()))
				}
			}
		}
	}
}
