package funnelpages

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultPreviewTimeout bounds how long a render cycle waits for the
// embedded frame's load signal.
const DefaultPreviewTimeout = 10 * time.Second

// HandleStore holds live sandbox resource handles: opaque tokens mapping to
// wrapped preview documents, served over HTTP for as long as their render
// cycle is live and revoked when it is superseded or torn down. Serving does
// not consume a handle; the frame may reload it. The Go-side analog of
// object URLs.
type HandleStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewHandleStore creates an empty handle store.
func NewHandleStore() *HandleStore {
	return &HandleStore{entries: make(map[string][]byte)}
}

// Put registers doc under a fresh opaque handle and returns the handle.
func (hs *HandleStore) Put(doc string) string {
	id := uuid.NewString()
	hs.mu.Lock()
	hs.entries[id] = []byte(doc)
	hs.mu.Unlock()
	return id
}

// Get returns the document for a live handle.
func (hs *HandleStore) Get(id string) ([]byte, bool) {
	hs.mu.Lock()
	doc, ok := hs.entries[id]
	hs.mu.Unlock()
	return doc, ok
}

// Revoke releases a handle. Revoking an unknown handle is a no-op.
func (hs *HandleStore) Revoke(id string) {
	hs.mu.Lock()
	delete(hs.entries, id)
	hs.mu.Unlock()
}

// Len reports the number of live handles.
func (hs *HandleStore) Len() int {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return len(hs.entries)
}

// RenderState is a snapshot of the renderer's current cycle.
type RenderState struct {
	Token    int
	Device   DeviceMode
	Loading  bool
	Warnings []string
	Err      error
	// Handle is the live resource handle. After a validation failure it
	// still points at the last successfully submitted document, so the
	// previous preview stays visible behind the error overlay.
	Handle string
}

// Renderer drives sandboxed preview cycles for a single page. Render
// requests are totally ordered by their caller-supplied token: the most
// recently initiated render wins and stale completions are discarded.
// At most one resource handle is live per renderer at any time.
type Renderer struct {
	mu      sync.Mutex
	pageID  string
	handles *HandleStore
	timeout time.Duration
	state   RenderState
	timer   *time.Timer
	closed  bool
}

// NewRenderer creates a renderer for pageID backed by the given handle
// store. A zero timeout falls back to DefaultPreviewTimeout.
func NewRenderer(pageID string, handles *HandleStore, timeout time.Duration) *Renderer {
	if timeout <= 0 {
		timeout = DefaultPreviewTimeout
	}
	return &Renderer{pageID: pageID, handles: handles, timeout: timeout}
}

// Render starts a new render cycle. Empty html renders the built-in
// placeholder without validation; anything else is validated first and a
// validation failure blocks this cycle while leaving the previous handle
// live. The returned snapshot reflects the state right after submission.
func (r *Renderer) Render(html string, device DeviceMode, token int) RenderState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || token <= r.state.Token {
		return r.snapshot()
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}

	r.state.Token = token
	r.state.Device = device
	r.state.Err = nil
	r.state.Warnings = nil

	doc := html
	if html == "" {
		doc = placeholderDocument()
	} else {
		warnings, err := ValidateDocument(html)
		if err != nil {
			var pe *PageError
			if errors.As(err, &pe) {
				pe.PageID = r.pageID
			}
			r.state.Err = err
			r.state.Loading = false
			return r.snapshot()
		}
		r.state.Warnings = warnings
	}

	prev := r.state.Handle
	r.state.Handle = r.handles.Put(WrapForSandbox(doc))
	if prev != "" {
		r.handles.Revoke(prev)
	}
	r.state.Loading = true

	r.timer = time.AfterFunc(r.timeout, func() { r.expire(token) })
	return r.snapshot()
}

// expire marks the cycle as timed out unless it already resolved or was
// superseded by a newer token.
func (r *Renderer) expire(token int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.state.Token != token || !r.state.Loading {
		return
	}
	r.state.Loading = false
	r.state.Err = pageErr(KindRenderTimeout, r.pageID, "", nil)
}

// SignalLoaded resolves the active cycle. Signals for stale tokens, or
// arriving after the timeout fired, are ignored.
func (r *Renderer) SignalLoaded(token int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.state.Token != token || !r.state.Loading {
		return
	}
	r.state.Loading = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// SignalFailed reports a frame-level load error for the active cycle.
func (r *Renderer) SignalFailed(token int, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.state.Token != token || !r.state.Loading {
		return
	}
	r.state.Loading = false
	r.state.Err = pageErr(KindRenderFailure, r.pageID, "", cause)
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// State returns a snapshot of the current cycle.
func (r *Renderer) State() RenderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Close cancels any pending timer and revokes the live handle. Late load
// signals after Close are no-ops.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.state.Handle != "" {
		r.handles.Revoke(r.state.Handle)
		r.state.Handle = ""
	}
	r.state.Loading = false
}

func (r *Renderer) snapshot() RenderState {
	s := r.state
	if len(r.state.Warnings) > 0 {
		s.Warnings = append([]string(nil), r.state.Warnings...)
	}
	return s
}
