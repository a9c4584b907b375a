package funnelpages

import (
	"sync"
	"testing"
	"time"
)

// saveRecorder is a SaveFunc that records every call.
type saveRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (sr *saveRecorder) save(pageID, html string) (int, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.calls = append(sr.calls, html)
	return len(sr.calls), nil
}

func (sr *saveRecorder) snapshot() []string {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return append([]string(nil), sr.calls...)
}

func TestAutosaverCoalescesBurst(t *testing.T) {
	sr := &saveRecorder{}
	a := NewAutosaver(sr.save, 30*time.Millisecond, nil)
	defer a.Close()

	a.Queue("page-1", "draft 1")
	a.Queue("page-1", "draft 2")
	a.Queue("page-1", "draft 3")

	time.Sleep(120 * time.Millisecond)

	calls := sr.snapshot()
	if len(calls) != 1 {
		t.Fatalf("saves = %d, want 1 for a coalesced burst", len(calls))
	}
	if calls[0] != "draft 3" {
		t.Errorf("saved content = %q, want the latest draft", calls[0])
	}
}

func TestAutosaverSeparateBurstsSeparateSaves(t *testing.T) {
	sr := &saveRecorder{}
	a := NewAutosaver(sr.save, 20*time.Millisecond, nil)
	defer a.Close()

	a.Queue("page-1", "first burst")
	time.Sleep(80 * time.Millisecond)
	a.Queue("page-1", "second burst")
	time.Sleep(80 * time.Millisecond)

	calls := sr.snapshot()
	if len(calls) != 2 {
		t.Fatalf("saves = %d, want 2", len(calls))
	}
}

func TestAutosaverTracksPagesIndependently(t *testing.T) {
	sr := &saveRecorder{}
	a := NewAutosaver(sr.save, 30*time.Millisecond, nil)
	defer a.Close()

	a.Queue("page-a", "content a")
	a.Queue("page-b", "content b")
	time.Sleep(120 * time.Millisecond)

	if calls := sr.snapshot(); len(calls) != 2 {
		t.Errorf("saves = %d, want one per page", len(calls))
	}
}

func TestAutosaverFlush(t *testing.T) {
	sr := &saveRecorder{}
	a := NewAutosaver(sr.save, time.Hour, nil)
	defer a.Close()

	a.Queue("page-1", "pending")
	a.Flush("page-1")

	calls := sr.snapshot()
	if len(calls) != 1 || calls[0] != "pending" {
		t.Fatalf("calls = %v, want immediate save of pending content", calls)
	}

	// Flushing with nothing pending is a no-op.
	a.Flush("page-1")
	if calls := sr.snapshot(); len(calls) != 1 {
		t.Errorf("saves = %d after empty flush, want 1", len(calls))
	}
}

func TestAutosaverCloseFlushesPending(t *testing.T) {
	sr := &saveRecorder{}
	a := NewAutosaver(sr.save, time.Hour, nil)

	a.Queue("page-1", "unsaved work")
	a.Close()

	calls := sr.snapshot()
	if len(calls) != 1 || calls[0] != "unsaved work" {
		t.Fatalf("calls = %v, want pending content flushed on close", calls)
	}

	a.Queue("page-1", "after close")
	time.Sleep(30 * time.Millisecond)
	if calls := sr.snapshot(); len(calls) != 1 {
		t.Error("closed autosaver accepted new work")
	}
}

func TestAutosaverReportsOutcome(t *testing.T) {
	var mu sync.Mutex
	var gotPage string
	var gotVersion int

	sr := &saveRecorder{}
	a := NewAutosaver(sr.save, time.Hour, func(pageID string, version int, err error) {
		mu.Lock()
		defer mu.Unlock()
		gotPage = pageID
		gotVersion = version
	})
	defer a.Close()

	a.Queue("page-1", "content")
	a.Flush("page-1")

	mu.Lock()
	defer mu.Unlock()
	if gotPage != "page-1" || gotVersion != 1 {
		t.Errorf("onSave got (%q, %d), want (page-1, 1)", gotPage, gotVersion)
	}
}
