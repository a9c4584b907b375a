package funnelpages

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"
)

// jsonError writes the structured error body shared by all API endpoints.
func jsonError(c echo.Context, status int, kind ErrKind, msg string) error {
	return c.JSON(status, map[string]string{
		"error":   string(kind),
		"message": msg,
	})
}

// pageParams pulls and checks the :pageType/:pageId pair. pageType is an
// opaque discriminator; only membership is checked. On a false result the
// caller writes the error response and stops.
func pageParams(c echo.Context) (PageType, string, bool) {
	pt := PageType(c.Param("pageType"))
	if !pt.Valid() {
		return "", "", false
	}
	return pt, c.Param("pageId"), true
}

type createPageRequest struct {
	HTML  string `json:"html_content"`
	Theme Theme  `json:"theme"`
}

func (a *App) handleCreatePage(c echo.Context) error {
	if !IsEditor(c) {
		return jsonError(c, http.StatusUnauthorized, KindFetchError, "login required")
	}
	pt := PageType(c.Param("pageType"))
	if !pt.Valid() {
		return jsonError(c, http.StatusBadRequest, KindFetchError, "unknown page type")
	}
	var req createPageRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, KindFetchError, "invalid body")
	}
	doc, err := a.Store.CreatePage(pt, req.HTML, req.Theme)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{"page": doc})
}

func (a *App) handleGetPage(c echo.Context) error {
	pt, pageID, ok := pageParams(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, KindFetchError, "unknown page type")
	}
	doc, err := a.Store.GetPage(pageID)
	if err != nil {
		if err == sql.ErrNoRows {
			return jsonError(c, http.StatusNotFound, KindNotFound, "page not found")
		}
		return err
	}
	if doc.Type != pt {
		return jsonError(c, http.StatusNotFound, KindNotFound, "page not found")
	}
	return c.JSON(http.StatusOK, map[string]any{"page": doc})
}

type savePageRequest struct {
	HTML       string `json:"html_content"`
	ChangeNote string `json:"change_note"`
	Debounce   bool   `json:"debounce"`
}

// handleSavePage persists page content. A direct save creates exactly one
// new version; a debounced save queues the content so a burst of rapid
// edits coalesces into a single version once the page goes quiet.
func (a *App) handleSavePage(c echo.Context) error {
	if !IsEditor(c) {
		return jsonError(c, http.StatusUnauthorized, KindFetchError, "login required")
	}
	_, pageID, ok := pageParams(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, KindFetchError, "unknown page type")
	}
	var req savePageRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, KindFetchError, "invalid body")
	}
	if req.Debounce {
		a.autosave.Queue(pageID, req.HTML)
		return c.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
	}
	note := SanitizeNote(req.ChangeNote)
	if note == "" {
		note = "Manual save"
	}
	version, err := a.Store.SavePageContent(pageID, req.HTML, note)
	if err != nil {
		if err == sql.ErrNoRows {
			return jsonError(c, http.StatusNotFound, KindNotFound, "page not found")
		}
		return err
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, map[string]any{
		"page": map[string]any{"id": pageID, "version": version},
	})
}

type publishRequest struct {
	Published bool `json:"published"`
}

func (a *App) handlePublishPage(c echo.Context) error {
	if !IsEditor(c) {
		return jsonError(c, http.StatusUnauthorized, KindFetchError, "login required")
	}
	_, pageID, ok := pageParams(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, KindFetchError, "unknown page type")
	}
	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, KindFetchError, "invalid body")
	}
	if err := a.Store.SetPublished(pageID, req.Published); err != nil {
		if err == ErrNotFound {
			return jsonError(c, http.StatusNotFound, KindNotFound, "page not found")
		}
		return err
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, map[string]any{
		"page": map[string]any{"id": pageID, "published": req.Published},
	})
}

func (a *App) handleListVersions(c echo.Context) error {
	_, pageID, ok := pageParams(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, KindFetchError, "unknown page type")
	}
	page := 1
	if raw := c.QueryParam("page"); raw != "" {
		n, err := parsePositive(raw)
		if err != nil {
			return jsonError(c, http.StatusBadRequest, KindFetchError, "page must be a positive integer")
		}
		page = n
	}
	list, err := a.Store.ListVersions(pageID, page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (a *App) handleGetVersion(c echo.Context) error {
	_, pageID, ok := pageParams(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, KindFetchError, "unknown page type")
	}
	v, err := a.Store.GetVersion(pageID, c.Param("versionId"))
	if err != nil {
		if err == sql.ErrNoRows {
			return jsonError(c, http.StatusNotFound, KindNotFound, "version not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"version": v})
}

func (a *App) handleRestoreVersion(c echo.Context) error {
	if !IsEditor(c) {
		return jsonError(c, http.StatusUnauthorized, KindFetchError, "login required")
	}
	_, pageID, ok := pageParams(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, KindFetchError, "unknown page type")
	}
	restored, err := a.Store.RestoreVersion(pageID, c.Param("versionId"))
	if err != nil {
		if err == sql.ErrNoRows {
			return jsonError(c, http.StatusNotFound, KindNotFound, "version not found")
		}
		c.Logger().Errorf("restore failed: %v", err)
		return jsonError(c, http.StatusInternalServerError, KindRestoreFailed, "restore failed")
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, map[string]any{
		"page": map[string]any{
			"html_content": restored.HTML,
			"version":      restored.Number,
		},
	})
}

type previewSubmitRequest struct {
	HTML   string     `json:"html_content"`
	Device DeviceMode `json:"device"`
	Token  int        `json:"token"`
}

// previewStateJSON shapes a RenderState for API consumers.
func previewStateJSON(s RenderState) map[string]any {
	out := map[string]any{
		"token":    s.Token,
		"device":   s.Device,
		"width":    s.Device.Width(),
		"loading":  s.Loading,
		"warnings": s.Warnings,
	}
	if s.Handle != "" {
		out["resource_url"] = "/preview/resources/" + s.Handle
	}
	if s.Err != nil {
		if pe, ok := s.Err.(*PageError); ok {
			out["error"] = string(pe.Kind)
		} else {
			out["error"] = s.Err.Error()
		}
	}
	return out
}

func (a *App) handlePreviewSubmit(c echo.Context) error {
	if !IsEditor(c) {
		return jsonError(c, http.StatusUnauthorized, KindFetchError, "login required")
	}
	var req previewSubmitRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, KindFetchError, "invalid body")
	}
	state := a.renderer(c.Param("pageId")).Render(req.HTML, req.Device, req.Token)
	return c.JSON(http.StatusOK, previewStateJSON(state))
}

func (a *App) handlePreviewState(c echo.Context) error {
	return c.JSON(http.StatusOK, previewStateJSON(a.renderer(c.Param("pageId")).State()))
}

type previewSignalRequest struct {
	Token   int    `json:"token"`
	Message string `json:"message"`
}

func (a *App) handlePreviewLoaded(c echo.Context) error {
	var req previewSignalRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, KindFetchError, "invalid body")
	}
	a.renderer(c.Param("pageId")).SignalLoaded(req.Token)
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handlePreviewFailed(c echo.Context) error {
	var req previewSignalRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, KindFetchError, "invalid body")
	}
	var cause error
	if req.Message != "" {
		cause = echo.NewHTTPError(http.StatusBadGateway, req.Message)
	}
	a.renderer(c.Param("pageId")).SignalFailed(req.Token, cause)
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handlePreviewTeardown(c echo.Context) error {
	if !IsEditor(c) {
		return jsonError(c, http.StatusUnauthorized, KindFetchError, "login required")
	}
	a.closeRenderer(c.Param("pageId"))
	return c.NoContent(http.StatusNoContent)
}

// handlePreviewResource serves a wrapped sandbox document. The response
// carries a CSP sandbox header so the document runs without same-origin
// privileges even though it is served from this host.
func (a *App) handlePreviewResource(c echo.Context) error {
	doc, ok := a.Handles.Get(c.Param("handle"))
	if !ok {
		return c.NoContent(http.StatusNotFound)
	}
	c.Response().Header().Set("Content-Security-Policy", sandboxHeaderCSP)
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.HTMLBlob(http.StatusOK, doc)
}

// handleFunnelPage serves a published page over the trusted-markup path.
// Stored content went through the generation pipeline's sanitation, so it
// is written verbatim; this path never serves unvalidated preview input.
func (a *App) handleFunnelPage(c echo.Context) error {
	pt, pageID, ok := pageParams(c)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	doc, err := a.Cache.GetPublished(pt, pageID)
	if err != nil {
		if err == ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return err
	}
	return RenderTrusted(c, http.StatusOK, TrustVerbatim(injectThemeStyle(doc.HTML, doc.Theme)))
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

func (a *App) handleRobots(c echo.Context) error {
	return c.File(a.staticDir + "/robots.txt")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		if a.Views.NotFound != nil {
			_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
			return
		}
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		if a.Views.ServerError != nil {
			_ = RenderStatus(c, code, a.Views.ServerError())
			return
		}
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
