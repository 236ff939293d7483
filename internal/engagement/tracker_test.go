package engagement

import (
	"context"
	"sync"
	"testing"
	"time"
)

type countingRecorder struct {
	mu     sync.Mutex
	clicks map[string]int
	carts  map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{clicks: map[string]int{}, carts: map[string]int{}}
}

func (r *countingRecorder) RecordClick(ctx context.Context, itemID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clicks[itemID]++
}

func (r *countingRecorder) RecordAddToCart(ctx context.Context, itemID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[itemID]++
}

func (r *countingRecorder) clickCount(itemID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clicks[itemID]
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func TestDwellThresholdRecordsExactlyOneClick(t *testing.T) {
	t.Parallel()
	rec := newCountingRecorder()
	tr := NewWithInterval(rec, time.Millisecond)
	defer tr.Close()

	tr.StartView("item1")

	if !waitFor(t, 2*time.Second, func() bool { return rec.clickCount("item1") == 1 }) {
		t.Fatalf("click never recorded, count = %d", rec.clickCount("item1"))
	}

	// the timer is done; no further clicks may arrive
	time.Sleep(50 * time.Millisecond)
	if got := rec.clickCount("item1"); got != 1 {
		t.Errorf("clicks = %d, want exactly 1", got)
	}
}

func TestStopBeforeThresholdRecordsNothing(t *testing.T) {
	t.Parallel()
	rec := newCountingRecorder()
	tr := NewWithInterval(rec, 50*time.Millisecond)
	defer tr.Close()

	tr.StartView("item1")
	tr.StopView("item1")

	time.Sleep(150 * time.Millisecond)
	if got := rec.clickCount("item1"); got != 0 {
		t.Errorf("clicks = %d, want 0 after early stop", got)
	}
}

func TestStopViewIsIdleNoOp(t *testing.T) {
	t.Parallel()
	rec := newCountingRecorder()
	tr := New(rec)
	defer tr.Close()

	tr.StopView("never-started") // must not panic
}

func TestRestartResetsDwell(t *testing.T) {
	t.Parallel()
	rec := newCountingRecorder()
	tr := NewWithInterval(rec, time.Millisecond)
	defer tr.Close()

	// restarting keeps a single live timer; only one click may ever land
	tr.StartView("item1")
	tr.StartView("item1")
	tr.StartView("item1")

	if !waitFor(t, 2*time.Second, func() bool { return rec.clickCount("item1") == 1 }) {
		t.Fatalf("click never recorded")
	}
	time.Sleep(50 * time.Millisecond)
	if got := rec.clickCount("item1"); got != 1 {
		t.Errorf("clicks = %d, want exactly 1 after restarts", got)
	}
}

func TestIndependentItems(t *testing.T) {
	t.Parallel()
	rec := newCountingRecorder()
	tr := NewWithInterval(rec, time.Millisecond)
	defer tr.Close()

	tr.StartView("a")
	tr.StartView("b")
	tr.StopView("b")

	if !waitFor(t, 2*time.Second, func() bool { return rec.clickCount("a") == 1 }) {
		t.Fatalf("item a click never recorded")
	}
	if got := rec.clickCount("b"); got != 0 {
		t.Errorf("stopped item b got %d clicks", got)
	}
}

func TestAddToCartForwardsImmediately(t *testing.T) {
	t.Parallel()
	rec := newCountingRecorder()
	tr := New(rec)
	defer tr.Close()

	tr.AddToCart("item1")
	tr.AddToCart("item1")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.carts["item1"] != 2 {
		t.Errorf("carts = %d, want 2", rec.carts["item1"])
	}
}

func TestCloseCancelsAllTimers(t *testing.T) {
	t.Parallel()
	rec := newCountingRecorder()
	tr := NewWithInterval(rec, 20*time.Millisecond)

	tr.StartView("a")
	tr.StartView("b")
	tr.Close()

	time.Sleep(300 * time.Millisecond)
	if rec.clickCount("a") != 0 || rec.clickCount("b") != 0 {
		t.Errorf("timers survived Close: %d/%d", rec.clickCount("a"), rec.clickCount("b"))
	}
}
