package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/bidhub/internal/domain"
)

// ColdArchiverConfig holds the cold-storage export parameters.
type ColdArchiverConfig struct {
	RetentionDays int
	ExportLimit   int // max rows per run
}

// ColdArchiver moves bids older than the retention window from the
// relational store to object storage as JSON Lines, then deletes the
// exported rows. It runs on a cron schedule, entirely outside the hot
// path.
type ColdArchiver struct {
	archive domain.BidArchive
	blob    domain.BlobWriter
	cfg     ColdArchiverConfig
	logger  *slog.Logger
}

// NewColdArchiver creates a ColdArchiver.
func NewColdArchiver(archive domain.BidArchive, blob domain.BlobWriter, cfg ColdArchiverConfig, logger *slog.Logger) *ColdArchiver {
	return &ColdArchiver{
		archive: archive,
		blob:    blob,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "cold_archive")),
	}
}

// Run executes a single export run. It uploads the export before deleting
// anything, so a failed upload leaves every row in place for the next run.
func (a *ColdArchiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.RetentionDays)

	events, err := a.archive.ListOlderThan(ctx, cutoff, a.cfg.ExportLimit)
	if err != nil {
		return fmt.Errorf("listing bids before %v: %w", cutoff, err)
	}
	if len(events) == 0 {
		a.logger.Info("nothing to export", slog.Time("cutoff", cutoff))
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encoding bid %s: %w", e.EventID, err)
		}
	}

	// The export is bounded by ExportLimit; only rows actually exported
	// may be deleted. The delete is strictly-before, so clamping to the
	// last exported timestamp keeps unexported rows that share it; they
	// go out with the next run, and the re-exported boundary rows are
	// harmless duplicates in object storage.
	deleteCutoff := cutoff
	if len(events) == a.cfg.ExportLimit {
		if last := events[len(events)-1].Timestamp; last.Before(deleteCutoff) {
			deleteCutoff = last
		}
	}

	path := fmt.Sprintf("bids/%s/bids-%s.jsonl",
		cutoff.Format("2006/01"),
		time.Now().UTC().Format("20060102T150405Z"),
	)
	if err := a.blob.Put(ctx, path, &buf, "application/x-ndjson"); err != nil {
		return fmt.Errorf("uploading export %s: %w", path, err)
	}

	deleted, err := a.archive.DeleteOlderThan(ctx, deleteCutoff)
	if err != nil {
		return fmt.Errorf("deleting exported bids before %v: %w", deleteCutoff, err)
	}

	a.logger.Info("export complete",
		slog.String("path", path),
		slog.Int("exported", len(events)),
		slog.Int64("deleted", deleted),
	)
	return nil
}

// RunCron runs the archiver on a cron schedule until the context is
// cancelled. It supports cron expressions in the standard 5-field format:
// "minute hour day-of-month month day-of-week".
//
// Example: "0 3 * * *" runs at 3:00 AM every day.
func (a *ColdArchiver) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("cold archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
		}

		a.logger.Info("waiting for next cron trigger", slog.Time("next_run", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("cold archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("export run failed", slog.String("error", err.Error()))
			}
		}
	}
}
