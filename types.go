package funnelpages

import "time"

// PageType discriminates the three funnel page kinds. It is carried through
// storage and URLs but never interpreted beyond membership checks.
type PageType string

const (
	PageRegistration PageType = "registration"
	PageWatch        PageType = "watch"
	PageEnrollment   PageType = "enrollment"
)

// Valid reports whether t is one of the known funnel page kinds.
func (t PageType) Valid() bool {
	switch t {
	case PageRegistration, PageWatch, PageEnrollment:
		return true
	}
	return false
}

// Theme holds the four colors used to parameterize generated markup.
// It is carried alongside page content but never validated here.
type Theme struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Background string `json:"background"`
	Text       string `json:"text"`
}

// PageDocument is the mutable artifact being edited: a complete HTML
// document plus its theme and publication state. Version is the highest
// version number recorded for the page so far.
type PageDocument struct {
	ID        string    `json:"id"`
	Type      PageType  `json:"page_type"`
	HTML      string    `json:"html_content"`
	Theme     Theme     `json:"theme"`
	Version   int       `json:"version"`
	Published bool      `json:"published"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Version is an immutable snapshot of a page's HTML content. HTML is
// populated lazily: list views carry summaries only, detail and restore
// views include it.
type Version struct {
	ID         string    `json:"id"`
	PageID     string    `json:"page_id"`
	Number     int       `json:"version_number"`
	Title      string    `json:"title"`
	ChangeNote string    `json:"change_note"`
	CreatedAt  time.Time `json:"created_at"`
	HTML       string    `json:"html_content,omitempty"`
}

// VersionSummary is the list-view projection of a Version, without content.
type VersionSummary struct {
	ID         string    `json:"id"`
	Number     int       `json:"version_number"`
	Title      string    `json:"title"`
	ChangeNote string    `json:"change_note"`
	CreatedAt  time.Time `json:"created_at"`
}

// Pagination describes one page of a version listing. Pages are 1-indexed
// and PageSize is fixed by the store, not the caller.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// VersionList is one page of a page's history, most recent version first.
type VersionList struct {
	Versions   []VersionSummary `json:"versions"`
	Pagination Pagination       `json:"pagination"`
}

// DeviceMode selects the preview viewport.
type DeviceMode string

const (
	DeviceDesktop DeviceMode = "desktop"
	DeviceTablet  DeviceMode = "tablet"
	DeviceMobile  DeviceMode = "mobile"
)

const (
	tabletWidth = 768
	mobileWidth = 375
)

// Width returns the fixed pixel width for the mode, or 0 for a fluid
// (full-width) desktop preview. Unknown modes fall back to desktop.
func (m DeviceMode) Width() int {
	switch m {
	case DeviceTablet:
		return tabletWidth
	case DeviceMobile:
		return mobileWidth
	}
	return 0
}

// Asset is an uploaded page image, stored resized and re-encoded as JPEG.
type Asset struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Size         int    `json:"size"`
	UploadedAt   string `json:"uploaded_at"`
}
