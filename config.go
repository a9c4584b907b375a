package funnelpages

import "time"

// Config holds all configuration for a funnelpages deployment.
type Config struct {
	Name string // Deployment name (default "Funnel")
	URL  string // Canonical URL (default "http://localhost:3000")

	Addr         string // Listen address (default ":3000")
	DatabasePath string // SQLite path (default "data/pages.db")

	AnalyticsEnabled      bool   // Enable page analytics (default false)
	AnalyticsDatabasePath string // Analytics SQLite path (default "data/analytics.db")

	EditorPassword string // Required: editor login password
	SessionSecret  string // Required: session encryption secret
	CookieSecure   bool   // Set true for HTTPS

	PageCacheTTL   time.Duration // Published-page cache TTL (default 5min)
	PreviewTimeout time.Duration // Preview load timeout (default 10s)
	AutosaveQuiet  time.Duration // Autosave debounce window (default 3s)
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "Funnel"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/pages.db"
	}
	if c.AnalyticsDatabasePath == "" {
		c.AnalyticsDatabasePath = "data/analytics.db"
	}
	if c.PageCacheTTL == 0 {
		c.PageCacheTTL = 5 * time.Minute
	}
	if c.PreviewTimeout == 0 {
		c.PreviewTimeout = DefaultPreviewTimeout
	}
	if c.AutosaveQuiet == 0 {
		c.AutosaveQuiet = DefaultAutosaveQuiet
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}
