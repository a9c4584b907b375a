// Package analytics provides privacy-first funnel page analytics.
// Visitors are identified by a salted hash of IP and user agent; raw
// addresses are never stored.
package analytics

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// salt holds the per-installation random salt for hashing, protected by
// sync.Once.
var salt struct {
	once  sync.Once
	value string
}

// InitSalt loads or generates a persistent salt for visitor hashing.
// Must be called once at startup before any requests are served.
func InitSalt(store *Store) error {
	var initErr error
	salt.once.Do(func() {
		s, err := store.GetSetting("hash_salt")
		if err != nil {
			initErr = fmt.Errorf("read hash salt: %w", err)
			return
		}
		if s == "" {
			b := make([]byte, 32)
			if _, err := rand.Read(b); err != nil {
				initErr = fmt.Errorf("generate salt: %w", err)
				return
			}
			s = hex.EncodeToString(b)
			if err := store.SetSetting("hash_salt", s); err != nil {
				initErr = fmt.Errorf("store hash salt: %w", err)
				return
			}
		}
		salt.value = s
	})
	return initErr
}

func getSalt() string {
	return salt.value
}

// Visit represents a single funnel page view.
type Visit struct {
	ID        int64     `json:"-"`
	VisitorID string    `json:"visitor_id"` // Anonymous fingerprint hash
	IPHash    string    `json:"-"`          // Hashed IP address
	PageID    string    `json:"page_id"`
	PageType  string    `json:"page_type"` // registration, watch, enrollment
	Device    string    `json:"device"`    // desktop, tablet, mobile
	Referrer  string    `json:"referrer"`
	Timestamp time.Time `json:"timestamp"`
}

// PageStat represents view counts for one funnel page.
type PageStat struct {
	PageID   string `json:"page_id"`
	PageType string `json:"page_type"`
	Views    int    `json:"views"`
}

// DimensionStat represents a dimension breakdown (device, referrer).
type DimensionStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DailyView represents views per day.
type DailyView struct {
	Date  string `json:"date"`
	Views int    `json:"views"`
}

// Stats holds aggregated analytics for a period. The per-page breakdown is
// what funnel builders read: views falling from registration to enrollment
// show where visitors drop off.
type Stats struct {
	Period         string          `json:"period"`
	UniqueVisitors int             `json:"unique_visitors"`
	TotalViews     int             `json:"total_views"`
	PageStats      []PageStat      `json:"pages"`
	DeviceStats    []DimensionStat `json:"devices"`
	ReferrerStats  []DimensionStat `json:"referrers"`
	DailyViews     []DailyView     `json:"daily_views"`
}

// HashIP creates a salted SHA-256 hash of an IP address.
func HashIP(ip string) string {
	h := sha256.New()
	h.Write([]byte(getSalt() + ip))
	return hex.EncodeToString(h.Sum(nil))
}

// VisitorID creates a salted fingerprint from IP and user agent.
func VisitorID(ip, userAgent string) string {
	h := sha256.New()
	h.Write([]byte(getSalt() + ip + "|" + userAgent))
	return hex.EncodeToString(h.Sum(nil))
}

// ParseDevice buckets a user agent into desktop, tablet, or mobile.
func ParseDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return "mobile"
	}
	return "desktop"
}
