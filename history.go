package funnelpages

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
)

// RestorePhase tracks the restore flow of a History client.
type RestorePhase int

const (
	RestoreIdle RestorePhase = iota
	RestoreConfirmPending
	RestoreRestoring
)

// History is the editor-side client for one page's version API. It holds
// the last successfully loaded listing and the restore state machine:
// Idle -> ConfirmPending (restore intent) -> Restoring (confirm) -> Idle.
// A fetch failure never clears a previously loaded list, and concurrent
// restores are rejected rather than interleaved.
type History struct {
	mu       sync.Mutex
	base     string
	hc       *http.Client
	pageType PageType
	pageID   string

	list   VersionList
	loaded bool
	phase  RestorePhase
	target string
}

// NewHistory creates a History client for pageID talking to the API at
// baseURL. A nil client falls back to http.DefaultClient.
func NewHistory(baseURL string, hc *http.Client, pt PageType, pageID string) *History {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &History{base: baseURL, hc: hc, pageType: pt, pageID: pageID}
}

func (h *History) versionsURL(page int) string {
	u := h.base + "/pages/" + string(h.pageType) + "/" + h.pageID + "/versions"
	if page > 0 {
		u += "?page=" + strconv.Itoa(page)
	}
	return u
}

// Load fetches one page of the version listing. On failure the previously
// loaded listing is retained and a FetchError is returned; retry is the
// caller's decision.
func (h *History) Load(ctx context.Context, page int) (VersionList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.versionsURL(page), nil)
	if err != nil {
		return VersionList{}, fetchErr(h.pageID, err)
	}
	resp, err := h.hc.Do(req)
	if err != nil {
		return VersionList{}, fetchErr(h.pageID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return VersionList{}, fetchErr(h.pageID, fmt.Errorf("list versions: status %d", resp.StatusCode))
	}
	var list VersionList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return VersionList{}, fetchErr(h.pageID, err)
	}
	h.mu.Lock()
	h.list = list
	h.loaded = true
	h.mu.Unlock()
	return list, nil
}

// Current returns the last successfully loaded listing, if any.
func (h *History) Current() (VersionList, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.list, h.loaded
}

// Phase returns the restore state machine's current phase.
func (h *History) Phase() RestorePhase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

// Content fetches the full HTML of one version without committing to a
// restore.
func (h *History) Content(ctx context.Context, versionID string) (string, error) {
	url := h.versionsURL(0) + "/" + versionID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fetchErr(h.pageID, err)
	}
	resp, err := h.hc.Do(req)
	if err != nil {
		return "", fetchErr(h.pageID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", pageErr(KindNotFound, h.pageID, versionID, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fetchErr(h.pageID, fmt.Errorf("get version: status %d", resp.StatusCode))
	}
	var body struct {
		Version Version `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fetchErr(h.pageID, err)
	}
	return body.Version.HTML, nil
}

// BeginRestore records a restore intent for versionID, moving the state
// machine to ConfirmPending. An intent while a restore is in flight is
// rejected. A second intent while one is pending simply retargets it.
func (h *History) BeginRestore(versionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.phase == RestoreRestoring {
		return restoreErr(h.pageID, versionID, fmt.Errorf("restore already in flight"))
	}
	h.phase = RestoreConfirmPending
	h.target = versionID
	return nil
}

// CancelRestore abandons a pending restore intent with no side effects.
func (h *History) CancelRestore() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.phase == RestoreConfirmPending {
		h.phase = RestoreIdle
		h.target = ""
	}
}

// ConfirmRestore executes the pending restore. On success it returns the
// restored HTML and its new version number so the caller can update the
// editor and the preview in one step. On failure the page's server-side
// content is unchanged and no new content is applied locally.
func (h *History) ConfirmRestore(ctx context.Context) (string, int, error) {
	h.mu.Lock()
	if h.phase != RestoreConfirmPending {
		h.mu.Unlock()
		return "", 0, restoreErr(h.pageID, "", fmt.Errorf("no restore pending"))
	}
	versionID := h.target
	h.phase = RestoreRestoring
	h.mu.Unlock()

	html, version, err := h.doRestore(ctx, versionID)

	h.mu.Lock()
	h.phase = RestoreIdle
	h.target = ""
	h.mu.Unlock()
	return html, version, err
}

func (h *History) doRestore(ctx context.Context, versionID string) (string, int, error) {
	url := h.versionsURL(0) + "/" + versionID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", 0, restoreErr(h.pageID, versionID, err)
	}
	resp, err := h.hc.Do(req)
	if err != nil {
		return "", 0, restoreErr(h.pageID, versionID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", 0, pageErr(KindNotFound, h.pageID, versionID, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, restoreErr(h.pageID, versionID, fmt.Errorf("restore: status %d", resp.StatusCode))
	}
	var body struct {
		Page struct {
			HTML    string `json:"html_content"`
			Version int    `json:"version"`
		} `json:"page"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, restoreErr(h.pageID, versionID, err)
	}
	return body.Page.HTML, body.Page.Version, nil
}
