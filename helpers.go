package funnelpages

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NewID returns a new lexicographically sortable identifier for pages and
// versions.
func NewID() string {
	return ulid.Make().String()
}

// DocumentTitle extracts the <title> text from an HTML document for display
// in the version panel. Returns "" when the document has no title or cannot
// be parsed.
func DocumentTitle(doc string) string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	return findTitle(root)
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// ThemeCSS renders the theme's four colors as a CSS custom-property block
// for injection into generated markup.
func ThemeCSS(t Theme) string {
	return fmt.Sprintf(":root{--color-primary:%s;--color-secondary:%s;--color-background:%s;--color-text:%s;}",
		t.Primary, t.Secondary, t.Background, t.Text)
}

// injectThemeStyle inserts the page theme as a style block at the top of the
// document head, so generated markup referencing the custom properties picks
// up the stored colors. A zero theme leaves the document untouched.
func injectThemeStyle(doc string, t Theme) string {
	if t == (Theme{}) {
		return doc
	}
	style := "<style>" + ThemeCSS(t) + "</style>"
	if loc := reHeadOpen.FindStringIndex(doc); loc != nil {
		return doc[:loc[1]] + style + doc[loc[1]:]
	}
	if loc := reHTMLOpen.FindStringIndex(doc); loc != nil {
		return doc[:loc[1]] + "<head>" + style + "</head>" + doc[loc[1]:]
	}
	return style + doc
}

// Slugify converts a name to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// parsePositive parses a 1-based page number.
func parsePositive(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("must be >= 1, got %d", n)
	}
	return n, nil
}

// FilterEmpty removes empty/whitespace-only strings from a slice.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
