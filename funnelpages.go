// Package funnelpages is the page preview and version history service for
// the Growth Mastery funnel builder, built with Go, Echo, and templ.
// It persists funnel page documents (registration, watch, enrollment) with
// an append-only version history, renders untrusted page HTML through a
// CSP-locked sandbox, and serves published pages.
//
// Users provide their own templ components via the ViewFuncs struct; the
// service owns handler logic, middleware, and database operations.
package funnelpages

import (
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/Pixl8studio/growth-mastery-sub007/analytics"
)

// ViewFuncs holds user-provided templ components that the service calls
// when rendering editor pages. This is the inversion-of-control mechanism
// that lets users own and customize all templates.
type ViewFuncs struct {
	Dashboard    func(pages []PageDocument, csrfToken string) templ.Component
	EditorShell  func(page PageDocument, csrfToken string) templ.Component
	VersionPanel func(page PageDocument, list VersionList, csrfToken string) templ.Component
	Login        func(showError bool, csrfToken string) templ.Component
	AssetList    func(assets []Asset, csrfToken string) templ.Component
	NotFound     func() templ.Component
	ServerError  func() templ.Component
}

// App is the central funnelpages application. It wires together the store,
// caches, preview renderers, handlers, middleware, and user templates.
type App struct {
	Config  Config
	Echo    *echo.Echo
	Store   *Store
	Cache   *PageCache
	Handles *HandleStore
	Views   ViewFuncs

	autosave       *Autosaver
	loginLimiter   *LoginLimiter
	analyticsStore *analytics.Store
	customRoutes   []func(*App)
	staticDir      string

	previewMu sync.Mutex
	previews  map[string]*Renderer
}

// New creates a new funnelpages App with the given configuration and views.
func New(cfg Config, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		Handles:   NewHandleStore(),
		staticDir: "public",
		previews:  make(map[string]*Renderer),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Start initializes the database, caches, middleware, routes, and starts
// the server.
func (a *App) Start() error {
	if a.Config.EditorPassword == "" {
		return fmt.Errorf("funnelpages: EditorPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("funnelpages: SessionSecret is required")
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("funnelpages: init store: %w", err)
	}
	a.Store = store

	a.Cache = NewPageCache(a.Store, a.Config.PageCacheTTL)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	a.autosave = NewAutosaver(
		func(pageID, html string) (int, error) {
			return a.Store.SavePageContent(pageID, html, "Auto-saved")
		},
		a.Config.AutosaveQuiet,
		func(pageID string, version int, err error) {
			if err != nil {
				a.Echo.Logger.Errorf("autosave page=%s: %v", pageID, err)
				return
			}
			a.Cache.Invalidate()
		},
	)

	if a.Config.AnalyticsEnabled {
		analyticsStore, err := analytics.NewStore(a.Config.AnalyticsDatabasePath)
		if err != nil {
			return fmt.Errorf("funnelpages: init analytics: %w", err)
		}
		a.analyticsStore = analyticsStore
		if err := analytics.InitSalt(analyticsStore); err != nil {
			return fmt.Errorf("funnelpages: init analytics salt: %w", err)
		}
		stopCleanup := analyticsStore.StartCleanupScheduler(365, 24*time.Hour)
		defer stopCleanup()
	}

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}

	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded service assets fall through to the user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/preview.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))

	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	// Public delivery of published funnel pages.
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/funnel/:pageType/:pageId", a.handleFunnelPage)

	// Editor UI.
	e.GET("/editor/", a.handleEditorHome)
	e.POST("/editor/login/", a.handleEditorLogin)
	e.POST("/editor/logout/", handleEditorLogout)
	e.GET("/editor/:pageType/:pageId/", a.handleEditorShell)
	e.GET("/editor/:pageType/:pageId/versions/", a.handleVersionPanel)
	e.GET("/editor/assets/", a.handleAssetList)
	e.POST("/editor/assets/upload/", a.handleAssetUpload)
	e.DELETE("/editor/assets/:filename/", a.handleAssetDelete)

	// Pages API.
	e.POST("/pages/:pageType", a.handleCreatePage)
	e.GET("/pages/:pageType/:pageId", a.handleGetPage)
	e.PUT("/pages/:pageType/:pageId", a.handleSavePage)
	e.POST("/pages/:pageType/:pageId/publish", a.handlePublishPage)
	e.GET("/pages/:pageType/:pageId/versions", a.handleListVersions)
	e.GET("/pages/:pageType/:pageId/versions/:versionId", a.handleGetVersion)
	e.POST("/pages/:pageType/:pageId/versions/:versionId", a.handleRestoreVersion)

	// Preview plumbing.
	e.POST("/preview/:pageId", a.handlePreviewSubmit)
	e.GET("/preview/:pageId/state", a.handlePreviewState)
	e.POST("/preview/:pageId/loaded", a.handlePreviewLoaded)
	e.POST("/preview/:pageId/failed", a.handlePreviewFailed)
	e.DELETE("/preview/:pageId", a.handlePreviewTeardown)
	e.GET("/preview/resources/:handle", a.handlePreviewResource)

	// Analytics.
	if a.Config.AnalyticsEnabled && a.analyticsStore != nil {
		h := analytics.NewHandler(a.analyticsStore)
		authMiddleware := func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				if !IsEditor(c) {
					return c.Redirect(http.StatusSeeOther, "/editor/")
				}
				return next(c)
			}
		}
		h.RegisterRoutes(e, authMiddleware)
	}
}

// renderer returns the preview renderer for pageID, creating it on first
// use.
func (a *App) renderer(pageID string) *Renderer {
	a.previewMu.Lock()
	defer a.previewMu.Unlock()
	r, ok := a.previews[pageID]
	if !ok {
		r = NewRenderer(pageID, a.Handles, a.Config.PreviewTimeout)
		a.previews[pageID] = r
	}
	return r
}

// closeRenderer tears down a page's renderer, cancelling its timer and
// revoking its handle.
func (a *App) closeRenderer(pageID string) {
	a.previewMu.Lock()
	r, ok := a.previews[pageID]
	delete(a.previews, pageID)
	a.previewMu.Unlock()
	if ok {
		r.Close()
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.autosave != nil {
		a.autosave.Close()
	}
	a.previewMu.Lock()
	renderers := make([]*Renderer, 0, len(a.previews))
	for _, r := range a.previews {
		renderers = append(renderers, r)
	}
	a.previews = make(map[string]*Renderer)
	a.previewMu.Unlock()
	for _, r := range renderers {
		r.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if a.analyticsStore != nil {
		a.analyticsStore.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if
// empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally
// exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("funnelpages: required environment variable %s is not set", key)
	}
	return v
}
