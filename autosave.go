package funnelpages

import (
	"sync"
	"time"
)

// DefaultAutosaveQuiet is the debounce window: content mutations within it
// coalesce into a single persisted version.
const DefaultAutosaveQuiet = 3 * time.Second

// SaveFunc persists coalesced content for a page and returns the new
// version number. Each invocation produces exactly one version.
type SaveFunc func(pageID, html string) (int, error)

// Autosaver debounces content mutations per page. A burst of Queue calls
// within the quiet window results in one SaveFunc call carrying the latest
// content. The outcome of every flush is reported through onSave so the
// editor can drive its save indicator.
type Autosaver struct {
	mu      sync.Mutex
	save    SaveFunc
	quiet   time.Duration
	onSave  func(pageID string, version int, err error)
	pending map[string]*pendingSave
	closed  bool
}

type pendingSave struct {
	html  string
	timer *time.Timer
}

// NewAutosaver creates an Autosaver. A zero quiet window falls back to
// DefaultAutosaveQuiet. onSave may be nil.
func NewAutosaver(save SaveFunc, quiet time.Duration, onSave func(pageID string, version int, err error)) *Autosaver {
	if quiet <= 0 {
		quiet = DefaultAutosaveQuiet
	}
	return &Autosaver{
		save:    save,
		quiet:   quiet,
		onSave:  onSave,
		pending: make(map[string]*pendingSave),
	}
}

// Queue records a content mutation. The save fires once the page has been
// quiet for the full window; newer content replaces older content in the
// pending slot.
func (a *Autosaver) Queue(pageID, html string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if p, ok := a.pending[pageID]; ok {
		p.html = html
		p.timer.Reset(a.quiet)
		return
	}
	p := &pendingSave{html: html}
	p.timer = time.AfterFunc(a.quiet, func() { a.flush(pageID) })
	a.pending[pageID] = p
}

// Flush persists any pending content for the page immediately.
func (a *Autosaver) Flush(pageID string) {
	a.mu.Lock()
	p, ok := a.pending[pageID]
	if ok {
		p.timer.Stop()
	}
	a.mu.Unlock()
	if ok {
		a.flush(pageID)
	}
}

func (a *Autosaver) flush(pageID string) {
	a.mu.Lock()
	p, ok := a.pending[pageID]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.pending, pageID)
	html := p.html
	a.mu.Unlock()

	version, err := a.save(pageID, html)
	if a.onSave != nil {
		a.onSave(pageID, version, err)
	}
}

// Close cancels all timers and persists anything still pending. A closed
// Autosaver ignores further Queue calls.
func (a *Autosaver) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	var ids []string
	for id, p := range a.pending {
		p.timer.Stop()
		ids = append(ids, id)
	}
	a.mu.Unlock()

	for _, id := range ids {
		a.flush(id)
	}
}
