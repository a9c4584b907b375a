package funnelpages

import "embed"

// EmbeddedAssets contains static assets shipped with the service:
// the preview placeholder document and the load-signal beacon script.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS

// placeholderDocument is rendered when the editor submits empty content.
// It skips validation and carries no error state.
func placeholderDocument() string {
	data, err := EmbeddedAssets.ReadFile("embedded/placeholder.html")
	if err != nil {
		// The asset is compiled in; reaching this means a broken build.
		return "<html><head></head><body><p>No content yet.</p></body></html>"
	}
	return string(data)
}
