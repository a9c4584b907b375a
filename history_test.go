package funnelpages

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// historyServer stubs the version API for one page.
type historyServer struct {
	list     VersionList
	failList bool
	versions map[string]Version
	restored Version
	// restoreGate, when set, blocks restore handling until closed.
	restoreGate chan struct{}
}

func (hs *historyServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/versions"):
			if hs.failList {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(hs.list)
		case r.Method == http.MethodGet:
			id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			v, ok := hs.versions[id]
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(map[string]Version{"version": v})
		case r.Method == http.MethodPost:
			if hs.restoreGate != nil {
				<-hs.restoreGate
			}
			id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			if _, ok := hs.versions[id]; !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(map[string]map[string]any{
				"page": {
					"html_content": hs.restored.HTML,
					"version":      hs.restored.Number,
				},
			})
		default:
			http.NotFound(w, r)
		}
	})
}

func setupHistory(t *testing.T, hs *historyServer) *History {
	t.Helper()
	srv := httptest.NewServer(hs.handler())
	t.Cleanup(srv.Close)
	return NewHistory(srv.URL, srv.Client(), PageRegistration, "page-1")
}

func testListing() VersionList {
	return VersionList{
		Versions: []VersionSummary{
			{ID: "v3", Number: 3, Title: "Third"},
			{ID: "v2", Number: 2, Title: "Second"},
			{ID: "v1", Number: 1, Title: "First"},
		},
		Pagination: Pagination{Page: 1, PageSize: 20, Total: 3, TotalPages: 1},
	}
}

func TestHistoryLoad(t *testing.T) {
	h := setupHistory(t, &historyServer{list: testListing()})

	list, err := h.Load(context.Background(), 1)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(list.Versions) != 3 {
		t.Fatalf("versions = %d, want 3", len(list.Versions))
	}
	if list.Versions[0].Number != 3 {
		t.Errorf("first version = %d, want most recent", list.Versions[0].Number)
	}

	cur, ok := h.Current()
	if !ok {
		t.Fatal("Current should report a loaded listing")
	}
	if cur.Pagination.Total != 3 {
		t.Errorf("cached total = %d, want 3", cur.Pagination.Total)
	}
}

func TestHistoryLoadFailureRetainsListing(t *testing.T) {
	stub := &historyServer{list: testListing()}
	h := setupHistory(t, stub)

	if _, err := h.Load(context.Background(), 1); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	stub.failList = true
	_, err := h.Load(context.Background(), 1)
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if !IsKind(err, KindFetchError) {
		t.Errorf("error = %v, want fetch_error", err)
	}

	// The earlier listing is still available for display.
	cur, ok := h.Current()
	if !ok || len(cur.Versions) != 3 {
		t.Error("failed reload must not clear the previous listing")
	}
}

func TestHistoryContent(t *testing.T) {
	h := setupHistory(t, &historyServer{
		versions: map[string]Version{
			"v2": {ID: "v2", Number: 2, HTML: "<html><body>two</body></html>"},
		},
	})

	html, err := h.Content(context.Background(), "v2")
	if err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	if html != "<html><body>two</body></html>" {
		t.Errorf("content = %q", html)
	}

	_, err = h.Content(context.Background(), "missing")
	if !IsKind(err, KindNotFound) {
		t.Errorf("missing version: error = %v, want not_found", err)
	}
}

func TestHistoryRestoreFlow(t *testing.T) {
	h := setupHistory(t, &historyServer{
		versions: map[string]Version{"v1": {ID: "v1", Number: 1}},
		restored: Version{Number: 5, HTML: "<html><body>one</body></html>"},
	})

	if h.Phase() != RestoreIdle {
		t.Fatal("new history should be idle")
	}
	if err := h.BeginRestore("v1"); err != nil {
		t.Fatalf("BeginRestore failed: %v", err)
	}
	if h.Phase() != RestoreConfirmPending {
		t.Fatal("intent should move phase to confirm-pending")
	}

	html, version, err := h.ConfirmRestore(context.Background())
	if err != nil {
		t.Fatalf("ConfirmRestore failed: %v", err)
	}
	if version != 5 {
		t.Errorf("restored version = %d, want 5", version)
	}
	if html != "<html><body>one</body></html>" {
		t.Errorf("restored html = %q", html)
	}
	if h.Phase() != RestoreIdle {
		t.Error("phase should return to idle after restore")
	}
}

func TestHistoryCancelRestore(t *testing.T) {
	h := setupHistory(t, &historyServer{})

	if err := h.BeginRestore("v1"); err != nil {
		t.Fatalf("BeginRestore failed: %v", err)
	}
	h.CancelRestore()
	if h.Phase() != RestoreIdle {
		t.Error("cancel should return phase to idle")
	}

	if _, _, err := h.ConfirmRestore(context.Background()); err == nil {
		t.Error("confirm after cancel should fail")
	}
}

func TestHistoryRetargetPendingRestore(t *testing.T) {
	h := setupHistory(t, &historyServer{
		versions: map[string]Version{
			"v1": {ID: "v1", Number: 1},
			"v2": {ID: "v2", Number: 2},
		},
		restored: Version{Number: 7, HTML: "<html><body>two</body></html>"},
	})

	if err := h.BeginRestore("v1"); err != nil {
		t.Fatalf("BeginRestore failed: %v", err)
	}
	// A second intent before confirmation simply replaces the target.
	if err := h.BeginRestore("v2"); err != nil {
		t.Fatalf("retarget failed: %v", err)
	}
	if _, version, err := h.ConfirmRestore(context.Background()); err != nil || version != 7 {
		t.Errorf("ConfirmRestore = (%d, %v), want (7, nil)", version, err)
	}
}

func TestHistoryRejectsConcurrentRestore(t *testing.T) {
	gate := make(chan struct{})
	h := setupHistory(t, &historyServer{
		versions:    map[string]Version{"v1": {ID: "v1", Number: 1}},
		restored:    Version{Number: 4},
		restoreGate: gate,
	})

	if err := h.BeginRestore("v1"); err != nil {
		t.Fatalf("BeginRestore failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := h.ConfirmRestore(context.Background())
		done <- err
	}()

	// Wait for the in-flight restore to take effect, then try a second one.
	deadline := time.After(2 * time.Second)
	for h.Phase() != RestoreRestoring {
		select {
		case <-deadline:
			t.Fatal("restore never entered in-flight phase")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if err := h.BeginRestore("v1"); err == nil {
		t.Error("second restore intent during an in-flight restore should be rejected")
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first restore failed: %v", err)
	}
}

func TestHistoryRestoreMissingVersion(t *testing.T) {
	h := setupHistory(t, &historyServer{versions: map[string]Version{}})

	if err := h.BeginRestore("missing"); err != nil {
		t.Fatalf("BeginRestore failed: %v", err)
	}
	_, _, err := h.ConfirmRestore(context.Background())
	if !IsKind(err, KindNotFound) {
		t.Errorf("error = %v, want not_found", err)
	}
	if h.Phase() != RestoreIdle {
		t.Error("phase should return to idle after a failed restore")
	}
}
