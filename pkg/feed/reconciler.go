package feed

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/tradekit/stratrunner/pkg/models"
)

const (
	// DefaultPollInterval is how often the reconciler polls the snapshot endpoint
	DefaultPollInterval = time.Second

	// DefaultGraceDelay is how long a vanished entry stays rendered
	DefaultGraceDelay = 1500 * time.Millisecond

	// DefaultMaxEntries caps the rendered feed length
	DefaultMaxEntries = 20
)

// Options configures a Reconciler. Zero values take the defaults above.
type Options struct {
	PollInterval time.Duration
	GraceDelay   time.Duration
	MaxEntries   int
}

// Reconciler polls the batch snapshot endpoint for a tracked set of
// executions and maintains a merged feed of their events. Each entry moves
// through visible -> exiting -> removed: an event that disappears between
// polls is flagged exiting and kept rendered until its grace timer fires.
// A removed id that somehow reappears is treated as brand-new.
type Reconciler struct {
	client SnapshotClient
	opts   Options

	mu       sync.Mutex
	tracked  []string
	entries  map[string]Entry       // by event id
	order    []string               // event ids, newest first
	timers   map[string]*time.Timer // pending exit timers by event id
	running  bool                   // any tracked execution running, per latest poll
	closed   bool
	stopPoll chan struct{}
}

// NewReconciler creates a reconciler over the given snapshot client. Call
// Start to begin polling, or drive it manually with Poll.
func NewReconciler(client SnapshotClient, opts Options) *Reconciler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.GraceDelay <= 0 {
		opts.GraceDelay = DefaultGraceDelay
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}

	return &Reconciler{
		client:  client,
		opts:    opts,
		entries: make(map[string]Entry),
		timers:  make(map[string]*time.Timer),
	}
}

// SetTracked replaces the tracked execution id set. An empty set stops the
// poll loop and clears all pending timers.
func (r *Reconciler) SetTracked(executionIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracked = append([]string(nil), executionIDs...)
	if len(r.tracked) == 0 {
		r.teardownLocked()
	}
}

// Start launches the poll loop. It returns immediately; polling continues
// until Close is called, the context is cancelled, or the tracked set
// becomes empty.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.closed || r.stopPoll != nil {
		r.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	r.stopPoll = stop
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(r.opts.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				// One poll at a time: a slow fetch delays the next tick
				// rather than overlapping it.
				if err := r.Poll(ctx); err != nil {
					log.Printf("Feed poll failed: %v", err)
				}
			}
		}
	}()
}

// Poll performs one reconciliation tick: fetch, merge, and schedule exit
// timers for entries that vanished since the previous tick.
func (r *Reconciler) Poll(ctx context.Context) error {
	r.mu.Lock()
	if r.closed || len(r.tracked) == 0 {
		r.mu.Unlock()
		return nil
	}
	ids := append([]string(nil), r.tracked...)
	r.mu.Unlock()

	snapshots, err := r.client.FetchSnapshots(ctx, ids)
	if err != nil {
		return err
	}

	// Flatten to one tagged event list, newest first, capped.
	fresh := make([]Entry, 0)
	anyRunning := false
	for _, snap := range snapshots {
		if snap.Status == models.ExecutionRunning {
			anyRunning = true
		}
		for _, event := range snap.Events {
			fresh = append(fresh, Entry{ExecutionID: snap.ExecutionID, Event: event})
		}
	}
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].Event.Timestamp.After(fresh[j].Event.Timestamp)
	})
	if len(fresh) > r.opts.MaxEntries {
		fresh = fresh[:r.opts.MaxEntries]
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	r.running = anyRunning

	present := make(map[string]bool, len(fresh))
	for _, entry := range fresh {
		present[entry.Event.ID] = true
	}

	// Entries absent this tick transition to exiting and get a one-shot
	// removal timer; an entry already exiting keeps its original timer.
	for id, entry := range r.entries {
		if present[id] || entry.Exiting {
			continue
		}
		entry.Exiting = true
		r.entries[id] = entry
		if _, pending := r.timers[id]; !pending {
			eventID := id
			r.timers[eventID] = time.AfterFunc(r.opts.GraceDelay, func() {
				r.remove(eventID)
			})
		}
	}

	// Fresh entries are (re)written as visible. An id that was exiting or
	// already removed comes back as a brand-new visible entry.
	for _, entry := range fresh {
		if timer, pending := r.timers[entry.Event.ID]; pending {
			timer.Stop()
			delete(r.timers, entry.Event.ID)
		}
		r.entries[entry.Event.ID] = entry
	}

	r.reorderLocked()
	return nil
}

// Entries returns the rendered feed: this tick's events plus exiting entries
// whose grace period has not elapsed, newest first.
func (r *Reconciler) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// IsAnyRunning reports whether any tracked execution had status running in
// the latest snapshot.
func (r *Reconciler) IsAnyRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Close stops the poll loop and cancels all pending exit timers.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.teardownLocked()
}

// remove hard-deletes an entry once its grace timer fires.
func (r *Reconciler) remove(eventID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, eventID)
	delete(r.timers, eventID)
	r.reorderLocked()
}

// reorderLocked rebuilds the rendered order, newest first.
func (r *Reconciler) reorderLocked() {
	r.order = r.order[:0]
	for id := range r.entries {
		r.order = append(r.order, id)
	}
	sort.SliceStable(r.order, func(i, j int) bool {
		ei, ej := r.entries[r.order[i]], r.entries[r.order[j]]
		if ei.Event.Timestamp.Equal(ej.Event.Timestamp) {
			return ei.Event.ID < ej.Event.ID
		}
		return ei.Event.Timestamp.After(ej.Event.Timestamp)
	})
}

// teardownLocked stops polling and clears timers. Caller holds the lock.
func (r *Reconciler) teardownLocked() {
	if r.stopPoll != nil {
		close(r.stopPoll)
		r.stopPoll = nil
	}
	for id, timer := range r.timers {
		timer.Stop()
		delete(r.timers, id)
	}
}
