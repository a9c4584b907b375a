// Command funnelpages runs the funnel page preview and version service.
// All deployment settings come from environment variables.
package main

import (
	"context"
	"fmt"
	"html"
	"io"
	"log"
	"os"

	"github.com/a-h/templ"

	funnelpages "github.com/Pixl8studio/growth-mastery-sub007"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("funnelpages %s\n", version)
			return
		case "help", "-h", "--help":
			printUsage()
			return
		}
	}

	cfg := funnelpages.Config{
		Name:             funnelpages.EnvOr("SITE_NAME", "Funnel"),
		URL:              funnelpages.EnvOr("SITE_URL", "http://localhost:3000"),
		Addr:             funnelpages.EnvOr("LISTEN_ADDR", ":3000"),
		DatabasePath:     funnelpages.EnvOr("DATABASE_PATH", "data/pages.db"),
		AnalyticsEnabled: os.Getenv("ANALYTICS_ENABLED") == "true",
		EditorPassword:   funnelpages.MustEnv("EDITOR_PASSWORD"),
		SessionSecret:    funnelpages.MustEnv("SESSION_SECRET"),
		CookieSecure:     os.Getenv("COOKIE_SECURE") == "true",
	}

	app := funnelpages.New(cfg, defaultViews())
	defer app.Close()

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

func printUsage() {
	fmt.Println(`funnelpages - funnel page preview and version history service

Usage:
  funnelpages            Start the server
  funnelpages version    Print the version
  funnelpages help       Show this help message

Environment:
  SITE_NAME, SITE_URL, LISTEN_ADDR, DATABASE_PATH, ANALYTICS_ENABLED,
  EDITOR_PASSWORD (required), SESSION_SECRET (required), COOKIE_SECURE`)
}

// raw returns a component writing s verbatim.
func raw(s string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

// defaultViews provides plain built-in templates. Deployments embed this
// package and supply their own templ components instead.
func defaultViews() funnelpages.ViewFuncs {
	return funnelpages.ViewFuncs{
		Dashboard: func(pages []funnelpages.PageDocument, csrfToken string) templ.Component {
			return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
				if _, err := io.WriteString(w, "<html><body><h1>Pages</h1><ul>"); err != nil {
					return err
				}
				for _, p := range pages {
					link := fmt.Sprintf(`<li><a href="/editor/%s/%s/">%s %s</a> v%d</li>`,
						p.Type, p.ID, html.EscapeString(string(p.Type)), html.EscapeString(p.ID), p.Version)
					if _, err := io.WriteString(w, link); err != nil {
						return err
					}
				}
				_, err := io.WriteString(w, "</ul></body></html>")
				return err
			})
		},
		EditorShell: func(page funnelpages.PageDocument, csrfToken string) templ.Component {
			return raw(fmt.Sprintf(
				`<html><body><h1>%s</h1><iframe id="preview-frame" data-page-id="%s"></iframe><script src="/public/preview.js"></script></body></html>`,
				html.EscapeString(string(page.Type)), html.EscapeString(page.ID)))
		},
		VersionPanel: func(page funnelpages.PageDocument, list funnelpages.VersionList, csrfToken string) templ.Component {
			return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
				if _, err := io.WriteString(w, "<ul>"); err != nil {
					return err
				}
				for _, v := range list.Versions {
					item := fmt.Sprintf("<li>v%d %s</li>", v.Number, html.EscapeString(v.ChangeNote))
					if _, err := io.WriteString(w, item); err != nil {
						return err
					}
				}
				_, err := io.WriteString(w, "</ul>")
				return err
			})
		},
		Login: func(showError bool, csrfToken string) templ.Component {
			msg := ""
			if showError {
				msg = "<p>Wrong password.</p>"
			}
			return raw(fmt.Sprintf(
				`<html><body>%s<form method="post" action="/editor/login/"><input type="hidden" name="_csrf" value="%s"><input type="password" name="password"><button>Log in</button></form></body></html>`,
				msg, html.EscapeString(csrfToken)))
		},
		AssetList: func(assets []funnelpages.Asset, csrfToken string) templ.Component {
			return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
				if _, err := io.WriteString(w, "<ul>"); err != nil {
					return err
				}
				for _, a := range assets {
					item := fmt.Sprintf("<li>%s (%dx%d)</li>", html.EscapeString(a.Filename), a.Width, a.Height)
					if _, err := io.WriteString(w, item); err != nil {
						return err
					}
				}
				_, err := io.WriteString(w, "</ul>")
				return err
			})
		},
		NotFound:    func() templ.Component { return raw("<html><body><h1>Not found</h1></body></html>") },
		ServerError: func() templ.Component { return raw("<html><body><h1>Something went wrong</h1></body></html>") },
	}
}
