package funnelpages

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// versionPageSize is the fixed page size for version listings. Callers
// cannot change it.
const versionPageSize = 20

// Store wraps a SQLite database and provides operations for funnel pages,
// their version history, and uploaded assets.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL for concurrent read/write access, busy_timeout so writers wait
	// instead of failing with SQLITE_BUSY, synchronous=NORMAL is safe
	// under WAL; larger cache and mmap reduce disk I/O.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
		PRAGMA mmap_size=268435456;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS pages (
    id TEXT PRIMARY KEY,
    page_type TEXT NOT NULL,
    html_content TEXT NOT NULL,
    theme_primary TEXT NOT NULL DEFAULT '',
    theme_secondary TEXT NOT NULL DEFAULT '',
    theme_background TEXT NOT NULL DEFAULT '',
    theme_text TEXT NOT NULL DEFAULT '',
    current_version INTEGER NOT NULL DEFAULT 0,
    published INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS page_versions (
    id TEXT PRIMARY KEY,
    page_id TEXT NOT NULL REFERENCES pages(id),
    version_number INTEGER NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    change_note TEXT NOT NULL DEFAULT '',
    html_content TEXT NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE(page_id, version_number)
);

CREATE INDEX IF NOT EXISTS idx_page_versions_page
    ON page_versions(page_id, version_number DESC);

CREATE TABLE IF NOT EXISTS assets (
    filename TEXT PRIMARY KEY,
    original_name TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    size INTEGER NOT NULL,
    uploaded_at TEXT NOT NULL
);
`)
	return err
}

// CreatePage inserts a new funnel page and records its initial content as
// version 1.
func (s *Store) CreatePage(pt PageType, html string, theme Theme) (PageDocument, error) {
	now := time.Now().UTC()
	doc := PageDocument{
		ID:        NewID(),
		Type:      pt,
		HTML:      html,
		Theme:     theme,
		Version:   1,
		UpdatedAt: now,
	}
	tx, err := s.db.Begin()
	if err != nil {
		return PageDocument{}, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO pages
		(id, page_type, html_content, theme_primary, theme_secondary, theme_background, theme_text, current_version, published, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, 0, ?)`,
		doc.ID, string(pt), html, theme.Primary, theme.Secondary, theme.Background, theme.Text,
		now.Format(time.RFC3339)); err != nil {
		return PageDocument{}, err
	}
	if err := insertVersion(tx, doc.ID, 1, html, "Initial version", now); err != nil {
		return PageDocument{}, err
	}
	if err := tx.Commit(); err != nil {
		return PageDocument{}, err
	}
	return doc, nil
}

func insertVersion(tx *sql.Tx, pageID string, number int, html, note string, at time.Time) error {
	_, err := tx.Exec(`INSERT INTO page_versions
		(id, page_id, version_number, title, change_note, html_content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		NewID(), pageID, number, DocumentTitle(html), note, html, at.Format(time.RFC3339))
	return err
}

// GetPage returns a page by id.
func (s *Store) GetPage(id string) (PageDocument, error) {
	var doc PageDocument
	var pt, updated string
	var published int
	err := s.db.QueryRow(`SELECT page_type, html_content, theme_primary, theme_secondary, theme_background, theme_text, current_version, published, updated_at
		FROM pages WHERE id = ?`, id).
		Scan(&pt, &doc.HTML, &doc.Theme.Primary, &doc.Theme.Secondary, &doc.Theme.Background, &doc.Theme.Text,
			&doc.Version, &published, &updated)
	if err != nil {
		return PageDocument{}, err
	}
	doc.ID = id
	doc.Type = PageType(pt)
	doc.Published = published == 1
	doc.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return doc, nil
}

// SavePageContent persists new content for a page, creating exactly one new
// version, and returns the new version number.
func (s *Store) SavePageContent(pageID, html, note string) (int, error) {
	now := time.Now().UTC()
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var current int
	if err := tx.QueryRow(`SELECT current_version FROM pages WHERE id = ?`, pageID).Scan(&current); err != nil {
		return 0, err
	}
	next := current + 1
	if err := insertVersion(tx, pageID, next, html, note, now); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`UPDATE pages SET html_content = ?, current_version = ?, updated_at = ? WHERE id = ?`,
		html, next, now.Format(time.RFC3339), pageID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

// UpdateTheme replaces the four theme colors on a page. Themes are not
// versioned; only content snapshots are.
func (s *Store) UpdateTheme(pageID string, theme Theme) error {
	res, err := s.db.Exec(`UPDATE pages SET theme_primary = ?, theme_secondary = ?, theme_background = ?, theme_text = ? WHERE id = ?`,
		theme.Primary, theme.Secondary, theme.Background, theme.Text, pageID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPublished toggles a page's publication state.
func (s *Store) SetPublished(pageID string, published bool) error {
	p := 0
	if published {
		p = 1
	}
	res, err := s.db.Exec(`UPDATE pages SET published = ? WHERE id = ?`, p, pageID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPublishedPages returns all published pages ordered by last update.
func (s *Store) ListPublishedPages() ([]PageDocument, error) {
	rows, err := s.db.Query(`SELECT id, page_type, html_content, theme_primary, theme_secondary, theme_background, theme_text, current_version, updated_at
		FROM pages WHERE published = 1 ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []PageDocument
	for rows.Next() {
		var doc PageDocument
		var pt, updated string
		if err := rows.Scan(&doc.ID, &pt, &doc.HTML, &doc.Theme.Primary, &doc.Theme.Secondary,
			&doc.Theme.Background, &doc.Theme.Text, &doc.Version, &updated); err != nil {
			return nil, err
		}
		doc.Type = PageType(pt)
		doc.Published = true
		doc.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		pages = append(pages, doc)
	}
	return pages, rows.Err()
}

// ListPages returns every page without content, newest first, for the
// editor dashboard.
func (s *Store) ListPages() ([]PageDocument, error) {
	rows, err := s.db.Query(`SELECT id, page_type, current_version, published, updated_at
		FROM pages ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []PageDocument
	for rows.Next() {
		var doc PageDocument
		var pt, updated string
		var published int
		if err := rows.Scan(&doc.ID, &pt, &doc.Version, &published, &updated); err != nil {
			return nil, err
		}
		doc.Type = PageType(pt)
		doc.Published = published == 1
		doc.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		pages = append(pages, doc)
	}
	return pages, rows.Err()
}

// ListVersions returns one page of a page's history, strictly descending by
// version number. Pages are 1-indexed; a page beyond the last is clamped to
// the last page so the result is deterministic.
func (s *Store) ListVersions(pageID string, page int) (VersionList, error) {
	if page < 1 {
		return VersionList{}, fmt.Errorf("funnelpages: page must be >= 1, got %d", page)
	}
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM page_versions WHERE page_id = ?`, pageID).Scan(&total); err != nil {
		return VersionList{}, err
	}
	totalPages := (total + versionPageSize - 1) / versionPageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}

	rows, err := s.db.Query(`SELECT id, version_number, title, change_note, created_at
		FROM page_versions WHERE page_id = ?
		ORDER BY version_number DESC LIMIT ? OFFSET ?`,
		pageID, versionPageSize, (page-1)*versionPageSize)
	if err != nil {
		return VersionList{}, err
	}
	defer rows.Close()

	list := VersionList{
		Versions: []VersionSummary{},
		Pagination: Pagination{
			Page:       page,
			PageSize:   versionPageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	}
	for rows.Next() {
		var v VersionSummary
		var created string
		if err := rows.Scan(&v.ID, &v.Number, &v.Title, &v.ChangeNote, &created); err != nil {
			return VersionList{}, err
		}
		v.CreatedAt, _ = time.Parse(time.RFC3339, created)
		list.Versions = append(list.Versions, v)
	}
	return list, rows.Err()
}

// GetVersion returns a single version including its full content.
func (s *Store) GetVersion(pageID, versionID string) (Version, error) {
	var v Version
	var created string
	err := s.db.QueryRow(`SELECT version_number, title, change_note, html_content, created_at
		FROM page_versions WHERE page_id = ? AND id = ?`, pageID, versionID).
		Scan(&v.Number, &v.Title, &v.ChangeNote, &v.HTML, &created)
	if err != nil {
		return Version{}, err
	}
	v.ID = versionID
	v.PageID = pageID
	v.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return v, nil
}

// RestoreVersion makes an old version's content current again. In one
// transaction it snapshots the page's current content as a new version
// (so the replaced state is never lost), then records the restored content
// as a further new version and points the page at it. Net effect: two
// versions appended, final version number = pre-restore max + 2. On any
// failure the page is left untouched.
func (s *Store) RestoreVersion(pageID, versionID string) (Version, error) {
	now := time.Now().UTC()
	tx, err := s.db.Begin()
	if err != nil {
		return Version{}, restoreErr(pageID, versionID, err)
	}
	defer tx.Rollback()

	var currentHTML string
	var current int
	if err := tx.QueryRow(`SELECT html_content, current_version FROM pages WHERE id = ?`, pageID).
		Scan(&currentHTML, &current); err != nil {
		if err == sql.ErrNoRows {
			return Version{}, err
		}
		return Version{}, restoreErr(pageID, versionID, err)
	}

	var targetHTML string
	var targetNumber int
	if err := tx.QueryRow(`SELECT html_content, version_number FROM page_versions WHERE page_id = ? AND id = ?`,
		pageID, versionID).Scan(&targetHTML, &targetNumber); err != nil {
		if err == sql.ErrNoRows {
			return Version{}, err
		}
		return Version{}, restoreErr(pageID, versionID, err)
	}

	snapshot := current + 1
	restored := current + 2
	if err := insertVersion(tx, pageID, snapshot, currentHTML, "Auto-saved before restore", now); err != nil {
		return Version{}, restoreErr(pageID, versionID, err)
	}
	note := fmt.Sprintf("Restored from version %d", targetNumber)
	if err := insertVersion(tx, pageID, restored, targetHTML, note, now); err != nil {
		return Version{}, restoreErr(pageID, versionID, err)
	}
	if _, err := tx.Exec(`UPDATE pages SET html_content = ?, current_version = ?, updated_at = ? WHERE id = ?`,
		targetHTML, restored, now.Format(time.RFC3339), pageID); err != nil {
		return Version{}, restoreErr(pageID, versionID, err)
	}
	if err := tx.Commit(); err != nil {
		return Version{}, restoreErr(pageID, versionID, err)
	}
	return Version{
		PageID:     pageID,
		Number:     restored,
		Title:      DocumentTitle(targetHTML),
		ChangeNote: note,
		CreatedAt:  now,
		HTML:       targetHTML,
	}, nil
}

// SaveAsset upserts asset metadata.
func (s *Store) SaveAsset(a Asset) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO assets (filename, original_name, width, height, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.Filename, a.OriginalName, a.Width, a.Height, a.Size, a.UploadedAt)
	return err
}

// ListAssets returns all uploaded assets, newest first.
func (s *Store) ListAssets() ([]Asset, error) {
	rows, err := s.db.Query(`SELECT filename, original_name, width, height, size, uploaded_at
		FROM assets ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.Filename, &a.OriginalName, &a.Width, &a.Height, &a.Size, &a.UploadedAt); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// DeleteAsset removes asset metadata by filename.
func (s *Store) DeleteAsset(filename string) error {
	_, err := s.db.Exec(`DELETE FROM assets WHERE filename = ?`, filename)
	return err
}
