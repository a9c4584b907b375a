package funnelpages

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// TrustedHTML marks markup that already passed the generation pipeline's
// sanitation and may be written to a response verbatim. It can only be
// constructed through TrustVerbatim or TrustSanitized, which keeps the
// published-page path visibly separate from the sandboxed preview path:
// preview content never becomes TrustedHTML.
type TrustedHTML struct {
	s string
}

// TrustVerbatim wraps markup from the persistence layer. Callers assert the
// content went through the generation pipeline's sanitation before storage.
func TrustVerbatim(html string) TrustedHTML {
	return TrustedHTML{s: html}
}

var ugcPolicy = bluemonday.UGCPolicy()

// TrustSanitized runs markup of unknown provenance through the UGC policy
// before wrapping it.
func TrustSanitized(html string) TrustedHTML {
	return TrustedHTML{s: ugcPolicy.Sanitize(html)}
}

// RenderTrusted writes trusted markup as an HTML response.
func RenderTrusted(c echo.Context, code int, html TrustedHTML) error {
	return c.HTML(code, html.s)
}

var notePolicy = bluemonday.StrictPolicy()

// SanitizeNote strips all markup from a user-supplied change description
// before it is stored or rendered in the version panel.
func SanitizeNote(note string) string {
	return notePolicy.Sanitize(note)
}
