package funnelpages

import (
	"regexp"
	"strings"
)

// previewCSP locks down every sandboxed preview document. Generated pages
// embed interactive inline handlers, so inline script and style must stay
// allowed; connect-src 'none' blocks exfiltration via fetch/XHR/WebSocket
// and frame-ancestors 'none' denies framing by any parent.
const previewCSP = "default-src 'self' data: blob:; " +
	"script-src 'self' 'unsafe-inline' data: blob:; " +
	"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; " +
	"font-src 'self' data: https://fonts.gstatic.com; " +
	"img-src * data: blob:; " +
	"connect-src 'none'; " +
	"frame-ancestors 'none'"

// sandboxHeaderCSP is sent on the resource response itself. The sandbox
// directive strips same-origin privileges from the document while still
// permitting script execution, mirroring an iframe sandbox="allow-scripts".
const sandboxHeaderCSP = "sandbox allow-scripts"

const cspMeta = `<meta http-equiv="Content-Security-Policy" content="` + previewCSP + `">`

var (
	reHeadOpen = regexp.MustCompile(`(?i)<head[^>]*>`)
	reHTMLOpen = regexp.MustCompile(`(?i)<html[^>]*>`)
)

// WrapForSandbox injects the preview CSP meta tag into the document's head,
// creating a head right after the html open tag when the document has none.
// The rest of the document is preserved byte for byte.
func WrapForSandbox(doc string) string {
	if strings.Contains(doc, cspMeta) {
		return doc
	}
	if loc := reHeadOpen.FindStringIndex(doc); loc != nil {
		return doc[:loc[1]] + cspMeta + doc[loc[1]:]
	}
	if loc := reHTMLOpen.FindStringIndex(doc); loc != nil {
		return doc[:loc[1]] + "<head>" + cspMeta + "</head>" + doc[loc[1]:]
	}
	return cspMeta + doc
}
