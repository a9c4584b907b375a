package funnelpages

import (
	"crypto/subtle"
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (a *App) handleEditorHome(c echo.Context) error {
	if !IsEditor(c) {
		return Render(c, a.Views.Login(false, CsrfToken(c)))
	}
	pages, err := a.Store.ListPages()
	if err != nil {
		return err
	}
	return Render(c, a.Views.Dashboard(pages, CsrfToken(c)))
}

func (a *App) handleEditorLogin(c echo.Context) error {
	if !a.loginLimiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.EditorPassword)) == 1 {
		if err := setEditorSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/editor/")
	}
	return Render(c, a.Views.Login(true, CsrfToken(c)))
}

func handleEditorLogout(c echo.Context) error {
	if err := clearEditorSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/editor/")
}

// handleEditorShell renders the editing surface for one page: the content
// editor, device-mode switcher, and preview frame mount point.
func (a *App) handleEditorShell(c echo.Context) error {
	if !IsEditor(c) {
		return c.Redirect(http.StatusSeeOther, "/editor/")
	}
	pt := PageType(c.Param("pageType"))
	if !pt.Valid() {
		return c.NoContent(http.StatusNotFound)
	}
	doc, err := a.Store.GetPage(c.Param("pageId"))
	if err != nil {
		if err == sql.ErrNoRows {
			return c.NoContent(http.StatusNotFound)
		}
		return err
	}
	if doc.Type != pt {
		return c.NoContent(http.StatusNotFound)
	}
	return Render(c, a.Views.EditorShell(doc, CsrfToken(c)))
}

// handleVersionPanel renders the version history side panel, served as an
// HX partial so the editor can refresh it after every save and restore.
func (a *App) handleVersionPanel(c echo.Context) error {
	if !IsEditor(c) {
		return c.Redirect(http.StatusSeeOther, "/editor/")
	}
	pt := PageType(c.Param("pageType"))
	if !pt.Valid() {
		return c.NoContent(http.StatusNotFound)
	}
	doc, err := a.Store.GetPage(c.Param("pageId"))
	if err != nil {
		if err == sql.ErrNoRows {
			return c.NoContent(http.StatusNotFound)
		}
		return err
	}
	page := 1
	if raw := c.QueryParam("page"); raw != "" {
		if n, err := parsePositive(raw); err == nil {
			page = n
		}
	}
	list, err := a.Store.ListVersions(doc.ID, page)
	if err != nil {
		return err
	}
	return Render(c, a.Views.VersionPanel(doc, list, CsrfToken(c)))
}
