// Package queue implements the single-slot FIFO work queue: ordered
// enqueue, strictly serial dequeue/processing (at most one item
// in-flight), bounded retries. Grounded on the teacher's buffered-
// channel-plus-goroutine concurrency primitive (cmd/ingest's scan()),
// but replacing its worker-pool fan-out with one worker, per spec.md
// §4.11's single-slot invariant.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// ItemKind discriminates the two work item shapes named in spec.md §4.11.
type ItemKind int

const (
	KindFolderScanAndTag ItemKind = iota
	KindTagAlbum
)

// Item is one unit of work.
type Item struct {
	Kind          ItemKind
	Path          string // for KindFolderScanAndTag
	AlbumID       string // for KindTagAlbum
	ReleaseID     string
	UserInitiated bool
	RetryCount    int
}

// Handler processes one item, returning its outcome so the queue knows
// whether to retry. needsReview/skipped outcomes are terminal and must
// not be retried even on a subsequent transient error.
type Handler func(ctx context.Context, item Item) Outcome

// Outcome is the post-processing result of one item.
type Outcome struct {
	Terminal bool  // true for needs_review/skipped/tagged: never retry
	Err      error // non-nil means failure; retried unless Terminal
}

// RetryPersister is called whenever an item's RetryCount is bumped, so
// the caller can persist Album.RetryCount (spec.md §3 invariant 6).
type RetryPersister func(item Item)

// MaxRetries bounds retry attempts, mirroring model.MaxRetries.
const MaxRetries = 3

// Queue is a single-slot FIFO: many producers may enqueue, exactly one
// worker goroutine dequeues and processes items strictly in order.
type Queue struct {
	items   chan Item
	handler Handler
	persist RetryPersister

	processing atomic.Bool
	depth      atomic.Int64

	shutdown chan struct{}
	done     chan struct{}
}

// sentinel unblocks the worker on shutdown.
var sentinel = Item{Kind: -1}

// New builds a Queue with the given buffer capacity.
func New(capacity int, handler Handler, persist RetryPersister) *Queue {
	return &Queue{
		items:    make(chan Item, capacity),
		handler:  handler,
		persist:  persist,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Enqueue adds an item to the back of the FIFO.
func (q *Queue) Enqueue(item Item) {
	q.depth.Add(1)
	q.items <- item
}

// QueueDepth returns the number of items not yet fully processed.
func (q *Queue) QueueDepth() int64 { return q.depth.Load() }

// IsProcessing reports whether an item is currently being handled.
func (q *Queue) IsProcessing() bool { return q.processing.Load() }

// Run drives the single worker loop until ctx is cancelled or Shutdown
// is called. It must be run in its own goroutine.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case item := <-q.items:
			if item.Kind == sentinel.Kind {
				return
			}
			q.process(ctx, item)
		case <-q.shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (q *Queue) process(ctx context.Context, item Item) {
	q.processing.Store(true)
	defer func() {
		q.processing.Store(false)
		q.depth.Add(-1)
	}()

	outcome := q.handler(ctx, item)
	if outcome.Err == nil || outcome.Terminal {
		if outcome.Err != nil {
			slog.Warn("queue: item reached terminal non-retryable state", "err", outcome.Err)
		}
		return
	}

	if item.RetryCount >= MaxRetries {
		slog.Warn("queue: item dropped after max retries", "retries", item.RetryCount, "err", outcome.Err)
		return
	}

	item.RetryCount++
	if q.persist != nil {
		q.persist(item)
	}
	slog.Debug("queue: retrying item", "retry_count", item.RetryCount, "err", outcome.Err)
	q.Enqueue(item)
}

// Shutdown stops the worker at the next queue boundary. Safe to call
// once; the caller should then wait on Done (or a timeout).
func (q *Queue) Shutdown() {
	select {
	case q.items <- sentinel:
	default:
		close(q.shutdown)
	}
}

// Done is closed once Run has returned.
func (q *Queue) Done() <-chan struct{} { return q.done }

// String implements fmt.Stringer for ItemKind, used in logging.
func (k ItemKind) String() string {
	switch k {
	case KindFolderScanAndTag:
		return "FolderScanAndTag"
	case KindTagAlbum:
		return "TagAlbum"
	default:
		return fmt.Sprintf("ItemKind(%d)", int(k))
	}
}
