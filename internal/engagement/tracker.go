package engagement

import (
	"context"
	"sync"
	"time"
)

// dwellThreshold is the number of accumulated ticks after which a view
// counts as a click.
const dwellThreshold = 10

// Recorder is the slice of the catalog the tracker feeds.
type Recorder interface {
	RecordClick(ctx context.Context, itemID string)
	RecordAddToCart(ctx context.Context, itemID string)
}

type dwell struct {
	cancel chan struct{}
}

// Tracker runs a per-item dwell timer while an item detail view is open.
// Ten accumulated seconds record exactly one click; cancelling earlier
// records nothing (no partial credit).
type Tracker struct {
	recorder Recorder
	interval time.Duration

	mu     sync.Mutex
	timers map[string]*dwell
}

func New(recorder Recorder) *Tracker {
	return NewWithInterval(recorder, time.Second)
}

// NewWithInterval exists so tests can tick faster than wall-clock seconds.
func NewWithInterval(recorder Recorder, interval time.Duration) *Tracker {
	return &Tracker{
		recorder: recorder,
		interval: interval,
		timers:   map[string]*dwell{},
	}
}

// StartView begins the dwell timer for itemID. Starting again while a timer
// is active restarts it from zero.
func (t *Tracker) StartView(itemID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if d, ok := t.timers[itemID]; ok {
		close(d.cancel)
	}
	d := &dwell{cancel: make(chan struct{})}
	t.timers[itemID] = d
	go t.run(itemID, d)
}

// StopView cancels the timer for itemID, discarding accumulated dwell time.
// No-op when no timer is active.
func (t *Tracker) StopView(itemID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if d, ok := t.timers[itemID]; ok {
		close(d.cancel)
		delete(t.timers, itemID)
	}
}

// AddToCart forwards immediately; the counter write is best-effort inside
// the recorder.
func (t *Tracker) AddToCart(itemID string) {
	t.recorder.RecordAddToCart(context.Background(), itemID)
}

// Close cancels every active timer.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, d := range t.timers {
		close(d.cancel)
		delete(t.timers, id)
	}
}

func (t *Tracker) run(itemID string, d *dwell) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	elapsed := 0
	for {
		select {
		case <-d.cancel:
			return
		case <-ticker.C:
			elapsed++
			if elapsed < dwellThreshold {
				continue
			}
			if t.finish(itemID, d) {
				t.recorder.RecordClick(context.Background(), itemID)
			}
			return
		}
	}
}

// finish removes the timer entry, but only if it still belongs to this run;
// a restart may have replaced it.
func (t *Tracker) finish(itemID string, d *dwell) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.timers[itemID]; ok && cur == d {
		delete(t.timers, itemID)
		return true
	}
	return false
}
