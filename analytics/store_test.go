package analytics

import (
	"path/filepath"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "analytics.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettings(t *testing.T) {
	s := setupTestStore(t)

	val, err := s.GetSetting("missing")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if val != "" {
		t.Errorf("missing setting = %q, want empty", val)
	}

	if err := s.SetSetting("hash_salt", "abc"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := s.SetSetting("hash_salt", "def"); err != nil {
		t.Fatalf("SetSetting upsert failed: %v", err)
	}
	val, err = s.GetSetting("hash_salt")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if val != "def" {
		t.Errorf("setting = %q, want def", val)
	}
}

func TestSaveVisitAndStats(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now()

	visits := []*Visit{
		{VisitorID: "a", IPHash: "h1", PageID: "p1", PageType: "registration", Device: "desktop", Timestamp: now},
		{VisitorID: "a", IPHash: "h1", PageID: "p2", PageType: "watch", Device: "desktop", Timestamp: now},
		{VisitorID: "b", IPHash: "h2", PageID: "p1", PageType: "registration", Device: "mobile", Referrer: "https://example.com", Timestamp: now},
	}
	for _, v := range visits {
		if err := s.SaveVisit(v); err != nil {
			t.Fatalf("SaveVisit failed: %v", err)
		}
	}

	stats, err := s.GetStats(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalViews != 3 {
		t.Errorf("TotalViews = %d, want 3", stats.TotalViews)
	}
	if stats.UniqueVisitors != 2 {
		t.Errorf("UniqueVisitors = %d, want 2", stats.UniqueVisitors)
	}
	if len(stats.PageStats) != 2 {
		t.Fatalf("PageStats = %v, want 2 pages", stats.PageStats)
	}
	// Funnel breakdown orders by views, registration page first here.
	if stats.PageStats[0].PageID != "p1" || stats.PageStats[0].Views != 2 {
		t.Errorf("top page = %+v, want p1 with 2 views", stats.PageStats[0])
	}
	if len(stats.ReferrerStats) != 1 || stats.ReferrerStats[0].Name != "https://example.com" {
		t.Errorf("ReferrerStats = %v", stats.ReferrerStats)
	}
	if len(stats.DeviceStats) != 2 {
		t.Errorf("DeviceStats = %v, want desktop and mobile", stats.DeviceStats)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now()

	old := &Visit{VisitorID: "a", IPHash: "h", PageID: "p1", PageType: "watch", Device: "desktop", Timestamp: now.AddDate(0, 0, -400)}
	recent := &Visit{VisitorID: "b", IPHash: "h", PageID: "p1", PageType: "watch", Device: "desktop", Timestamp: now}
	if err := s.SaveVisit(old); err != nil {
		t.Fatalf("SaveVisit failed: %v", err)
	}
	if err := s.SaveVisit(recent); err != nil {
		t.Fatalf("SaveVisit failed: %v", err)
	}

	n, err := s.DeleteOlderThan(now.AddDate(0, 0, -365))
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	stats, err := s.GetStats(now.AddDate(0, 0, -500), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalViews != 1 {
		t.Errorf("TotalViews after cleanup = %d, want 1", stats.TotalViews)
	}
}

func TestInitSaltPersists(t *testing.T) {
	s := setupTestStore(t)

	if err := InitSalt(s); err != nil {
		t.Fatalf("InitSalt failed: %v", err)
	}
	val, err := s.GetSetting("hash_salt")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if val == "" && getSalt() == "" {
		t.Error("salt should be generated and persisted")
	}

	a := VisitorID("198.51.100.1", "agent")
	b := VisitorID("198.51.100.1", "agent")
	c := VisitorID("198.51.100.2", "agent")
	if a != b {
		t.Error("same input should fingerprint identically")
	}
	if a == c {
		t.Error("different IPs should fingerprint differently")
	}
	if a == "198.51.100.1" || len(a) != 64 {
		t.Errorf("fingerprint should be a sha256 hex digest, got %q", a)
	}
}

func TestParseDevice(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", "desktop"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148", "mobile"},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) Mobile", "mobile"},
		{"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)", "tablet"},
		{"", "desktop"},
	}
	for _, tt := range tests {
		if got := ParseDevice(tt.ua); got != tt.want {
			t.Errorf("ParseDevice(%q) = %q, want %q", tt.ua, got, tt.want)
		}
	}
}

func TestValidateCollectRequest(t *testing.T) {
	valid := CollectRequest{PageID: "p1", PageType: "registration"}
	if err := validateCollectRequest(&valid); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	for name, req := range map[string]CollectRequest{
		"empty page id":     {PageType: "watch"},
		"unknown page type": {PageID: "p1", PageType: "landing"},
	} {
		r := req
		if err := validateCollectRequest(&r); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
