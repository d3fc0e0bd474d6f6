// Package archive contains the background consumers that move accepted
// bids out of the hot path: the worker draining the bid log into the
// relational store, and the cold archiver exporting old rows to object
// storage.
package archive

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/bidhub/internal/domain"
)

// WorkerConfig holds the archival worker parameters.
type WorkerConfig struct {
	BatchSize int
	Block     time.Duration // bounded wait per log read
	RetryMin  time.Duration // initial backoff after a failed batch write
	RetryMax  time.Duration // backoff ceiling
}

// Worker is the single long-lived consumer of the bid log. It reads
// batches with a bounded blocking wait, writes them to the relational
// store, and advances the persisted cursor only after a successful write.
// Delivery is at-least-once; the store's insert path tolerates replays.
//
// The worker holds no lock the bidding path needs: a stalled or crashed
// worker never delays resolution or broadcast.
type Worker struct {
	log     domain.BidLog
	archive domain.BidArchive
	cfg     WorkerConfig
	logger  *slog.Logger
}

// NewWorker creates a Worker consuming the given log into the given
// archive.
func NewWorker(log domain.BidLog, archive domain.BidArchive, cfg WorkerConfig, logger *slog.Logger) *Worker {
	return &Worker{
		log:     log,
		archive: archive,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "archive")),
	}
}

// Run consumes the bid log until the context is cancelled. It resumes from
// the persisted cursor, so a restarted worker catches up on everything
// accepted while it was down. On cancellation the in-flight batch is
// abandoned without advancing the cursor.
func (w *Worker) Run(ctx context.Context) error {
	cursor, err := w.log.Cursor(ctx)
	if err != nil {
		return err
	}

	w.logger.Info("worker started", slog.String("cursor", cursor))

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		bids, err := w.log.Read(ctx, cursor, w.cfg.BatchSize, w.cfg.Block)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("log read failed", slog.String("error", err.Error()))
			if !sleepCtx(ctx, w.cfg.RetryMin) {
				return ctx.Err()
			}
			continue
		}

		// Bounded wait elapsed with nothing new. Not an error.
		if len(bids) == 0 {
			continue
		}

		events := make([]domain.BidEvent, len(bids))
		for i, b := range bids {
			events[i] = b.Event
		}
		last := bids[len(bids)-1].StreamID

		if err := w.persistBatch(ctx, events); err != nil {
			return err
		}

		if err := w.log.SetCursor(ctx, last); err != nil {
			// The batch is durable; a stale persisted cursor only means
			// replays, which the insert path absorbs.
			w.logger.Error("cursor update failed",
				slog.String("cursor", last),
				slog.String("error", err.Error()),
			)
		} else if err := w.log.TrimProcessed(ctx, last); err != nil {
			// Housekeeping only: nothing below the cursor is unarchived,
			// so a failed trim just delays eviction to the next batch.
			w.logger.Warn("log trim failed",
				slog.String("cursor", last),
				slog.String("error", err.Error()),
			)
		}
		cursor = last

		w.logger.Info("archived bids",
			slog.Int("count", len(events)),
			slog.String("cursor", cursor),
		)
	}
}

// persistBatch writes one batch, retrying with exponential backoff until it
// succeeds or the context is cancelled. The cursor is never advanced past a
// batch that failed to persist.
func (w *Worker) persistBatch(ctx context.Context, events []domain.BidEvent) error {
	backoff := w.cfg.RetryMin
	for {
		err := w.archive.InsertBatch(ctx, events)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		w.logger.Warn("batch write failed, retrying",
			slog.Int("count", len(events)),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		if !sleepCtx(ctx, backoff) {
			return ctx.Err()
		}
		backoff *= 2
		if backoff > w.cfg.RetryMax {
			backoff = w.cfg.RetryMax
		}
	}
}

// sleepCtx waits for d or until the context is cancelled. It reports
// whether the full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
