package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bidhub/internal/domain"
)

// fakeLog serves a fixed set of entries the way the stream does: Read
// returns everything strictly after lastID, and an empty read emulates the
// bounded blocking wait. Stream IDs are single-digit so lexical order
// matches stream order.
type fakeLog struct {
	mu      sync.Mutex
	entries []domain.LoggedBid
	cursor  string
	trimmed string
	trimErr error
	readErr error // returned once, then cleared
}

func (l *fakeLog) Read(ctx context.Context, lastID string, count int, block time.Duration) ([]domain.LoggedBid, error) {
	l.mu.Lock()
	if l.readErr != nil {
		err := l.readErr
		l.readErr = nil
		l.mu.Unlock()
		return nil, err
	}

	var out []domain.LoggedBid
	for _, e := range l.entries {
		if e.StreamID > lastID {
			out = append(out, e)
		}
		if len(out) == count {
			break
		}
	}
	l.mu.Unlock()

	if len(out) == 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
			return nil, nil
		}
	}
	return out, nil
}

func (l *fakeLog) Cursor(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cursor == "" {
		return "0-0", nil
	}
	return l.cursor, nil
}

func (l *fakeLog) SetCursor(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cursor = id
	return nil
}

func (l *fakeLog) TrimProcessed(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.trimErr != nil {
		return l.trimErr
	}
	var kept []domain.LoggedBid
	for _, e := range l.entries {
		if e.StreamID >= id {
			kept = append(kept, e)
		}
	}
	l.entries = kept
	l.trimmed = id
	return nil
}

func (l *fakeLog) persistedCursor() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

func (l *fakeLog) trimmedTo() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trimmed
}

// fakeArchive records inserted events, deduplicating on event ID the way
// the relational insert does, and can fail a set number of calls first.
type fakeArchive struct {
	mu       sync.Mutex
	events   map[string]domain.BidEvent
	attempts int
	failures int
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{events: make(map[string]domain.BidEvent)}
}

func (a *fakeArchive) InsertBatch(ctx context.Context, events []domain.BidEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts++
	if a.failures > 0 {
		a.failures--
		return errors.New("connection refused")
	}
	for _, e := range events {
		a.events[e.EventID] = e
	}
	return nil
}

func (a *fakeArchive) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.BidEvent, error) {
	return nil, nil
}

func (a *fakeArchive) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (a *fakeArchive) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

func (a *fakeArchive) attemptCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts
}

func loggedBid(streamID, eventID string, amount float64) domain.LoggedBid {
	return domain.LoggedBid{
		StreamID: streamID,
		Event: domain.BidEvent{
			EventID:   eventID,
			AuctionID: "a1",
			Amount:    amount,
			Bidder:    "alice",
			Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func workerCfg() WorkerConfig {
	return WorkerConfig{
		BatchSize: 2,
		Block:     time.Millisecond,
		RetryMin:  time.Millisecond,
		RetryMax:  5 * time.Millisecond,
	}
}

func runWorker(t *testing.T, w *Worker) (cancel func()) {
	t.Helper()

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := w.Run(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("worker exited with %v", err)
		}
	}()

	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not stop")
		}
	}
}

func TestWorkerArchivesInBatches(t *testing.T) {
	log := &fakeLog{entries: []domain.LoggedBid{
		loggedBid("1-0", "e1", 100),
		loggedBid("2-0", "e2", 110),
		loggedBid("3-0", "e3", 120),
	}}
	archive := newFakeArchive()
	w := NewWorker(log, archive, workerCfg(), testLogger())

	stop := runWorker(t, w)
	defer stop()

	require.Eventually(t, func() bool {
		return archive.count() == 3 && log.persistedCursor() == "3-0"
	}, 5*time.Second, time.Millisecond)

	// Archived entries are evicted from the log, trailing the persisted
	// cursor so nothing unarchived is ever trimmed.
	require.Eventually(t, func() bool {
		return log.trimmedTo() == "3-0"
	}, 5*time.Second, time.Millisecond)
}

func TestWorkerTrimFailureDoesNotStopArchival(t *testing.T) {
	log := &fakeLog{
		trimErr: errors.New("connection reset"),
		entries: []domain.LoggedBid{
			loggedBid("1-0", "e1", 100),
			loggedBid("2-0", "e2", 110),
			loggedBid("3-0", "e3", 120),
		},
	}
	archive := newFakeArchive()
	w := NewWorker(log, archive, workerCfg(), testLogger())

	stop := runWorker(t, w)
	defer stop()

	// Trimming is housekeeping; batches keep flowing and the cursor keeps
	// advancing even when every trim fails.
	require.Eventually(t, func() bool {
		return archive.count() == 3 && log.persistedCursor() == "3-0"
	}, 5*time.Second, time.Millisecond)
	require.Empty(t, log.trimmedTo())
}

func TestWorkerResumesFromCursor(t *testing.T) {
	log := &fakeLog{
		cursor: "2-0",
		entries: []domain.LoggedBid{
			loggedBid("1-0", "e1", 100),
			loggedBid("2-0", "e2", 110),
			loggedBid("3-0", "e3", 120),
			loggedBid("4-0", "e4", 130),
		},
	}
	archive := newFakeArchive()
	w := NewWorker(log, archive, workerCfg(), testLogger())

	stop := runWorker(t, w)
	defer stop()

	require.Eventually(t, func() bool {
		return log.persistedCursor() == "4-0"
	}, 5*time.Second, time.Millisecond)

	// Everything at or before the cursor was archived in a previous life
	// and must not be re-read.
	require.Equal(t, 2, archive.count())
	archive.mu.Lock()
	_, sawOld := archive.events["e1"]
	_, sawNew := archive.events["e3"]
	archive.mu.Unlock()
	require.False(t, sawOld)
	require.True(t, sawNew)
}

func TestWorkerRetriesFailedBatchWithoutAdvancing(t *testing.T) {
	log := &fakeLog{entries: []domain.LoggedBid{
		loggedBid("1-0", "e1", 100),
	}}
	archive := newFakeArchive()
	archive.failures = 3
	w := NewWorker(log, archive, workerCfg(), testLogger())

	stop := runWorker(t, w)
	defer stop()

	require.Eventually(t, func() bool {
		return archive.count() == 1 && log.persistedCursor() == "1-0"
	}, 5*time.Second, time.Millisecond)

	require.GreaterOrEqual(t, archive.attemptCount(), 4, "three failures then one success")
}

func TestWorkerSurvivesReadErrors(t *testing.T) {
	log := &fakeLog{
		readErr: errors.New("connection reset"),
		entries: []domain.LoggedBid{
			loggedBid("1-0", "e1", 100),
		},
	}
	archive := newFakeArchive()
	w := NewWorker(log, archive, workerCfg(), testLogger())

	stop := runWorker(t, w)
	defer stop()

	require.Eventually(t, func() bool {
		return archive.count() == 1
	}, 5*time.Second, time.Millisecond)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	log := &fakeLog{}
	w := NewWorker(log, newFakeArchive(), workerCfg(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
