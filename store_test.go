package funnelpages

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "pages.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

const testDoc = `<html><head><title>Launch Page</title></head><body><div>Hi</div></body></html>`

func createTestPage(t *testing.T, s *Store, html string) PageDocument {
	t.Helper()
	doc, err := s.CreatePage(PageRegistration, html, Theme{
		Primary:    "#6d28d9",
		Secondary:  "#a78bfa",
		Background: "#ffffff",
		Text:       "#111827",
	})
	if err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}
	return doc
}

func TestCreatePageRecordsInitialVersion(t *testing.T) {
	s := setupTestStore(t)
	doc := createTestPage(t, s, testDoc)

	if doc.ID == "" {
		t.Fatal("page id should not be empty")
	}
	if doc.Version != 1 {
		t.Errorf("Version = %d, want 1", doc.Version)
	}

	list, err := s.ListVersions(doc.ID, 1)
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if len(list.Versions) != 1 {
		t.Fatalf("version count = %d, want 1", len(list.Versions))
	}
	if list.Versions[0].Number != 1 {
		t.Errorf("first version number = %d, want 1", list.Versions[0].Number)
	}
	if list.Versions[0].Title != "Launch Page" {
		t.Errorf("Title = %q, want %q", list.Versions[0].Title, "Launch Page")
	}
}

func TestGetPage(t *testing.T) {
	s := setupTestStore(t)
	doc := createTestPage(t, s, testDoc)

	got, err := s.GetPage(doc.ID)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if got.HTML != testDoc {
		t.Errorf("HTML = %q, want %q", got.HTML, testDoc)
	}
	if got.Type != PageRegistration {
		t.Errorf("Type = %q, want %q", got.Type, PageRegistration)
	}
	if got.Theme.Primary != "#6d28d9" {
		t.Errorf("Theme.Primary = %q, want #6d28d9", got.Theme.Primary)
	}
	if got.Published {
		t.Error("new page should not be published")
	}
}

func TestGetPageNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetPage("nonexistent")
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestSavePageContentCreatesExactlyOneVersion(t *testing.T) {
	s := setupTestStore(t)
	doc := createTestPage(t, s, testDoc)

	updated := `<html><head><title>Edited</title></head><body><p>New</p></body></html>`
	version, err := s.SavePageContent(doc.ID, updated, "Edited headline")
	if err != nil {
		t.Fatalf("SavePageContent failed: %v", err)
	}
	if version != 2 {
		t.Errorf("new version = %d, want 2", version)
	}

	got, err := s.GetPage(doc.ID)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if got.HTML != updated {
		t.Errorf("page content not updated")
	}
	if got.Version != 2 {
		t.Errorf("page current version = %d, want 2", got.Version)
	}

	list, err := s.ListVersions(doc.ID, 1)
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if list.Pagination.Total != 2 {
		t.Errorf("total versions = %d, want 2", list.Pagination.Total)
	}
	// Most recent first.
	if list.Versions[0].Number != 2 || list.Versions[1].Number != 1 {
		t.Errorf("ordering = [%d %d], want [2 1]", list.Versions[0].Number, list.Versions[1].Number)
	}
	if list.Versions[0].ChangeNote != "Edited headline" {
		t.Errorf("ChangeNote = %q, want %q", list.Versions[0].ChangeNote, "Edited headline")
	}
}

func TestListVersionsPagination(t *testing.T) {
	s := setupTestStore(t)
	doc := createTestPage(t, s, testDoc)

	// 24 more saves on top of the initial version: 25 total, 2 pages of 20.
	for i := 0; i < 24; i++ {
		if _, err := s.SavePageContent(doc.ID, testDoc, ""); err != nil {
			t.Fatalf("SavePageContent failed: %v", err)
		}
	}

	page1, err := s.ListVersions(doc.ID, 1)
	if err != nil {
		t.Fatalf("ListVersions(1) failed: %v", err)
	}
	if len(page1.Versions) != 20 {
		t.Errorf("page 1 count = %d, want 20", len(page1.Versions))
	}
	if page1.Pagination.Total != 25 || page1.Pagination.TotalPages != 2 {
		t.Errorf("pagination = %+v, want total 25 totalPages 2", page1.Pagination)
	}
	if page1.Versions[0].Number != 25 {
		t.Errorf("first item = v%d, want v25 (current)", page1.Versions[0].Number)
	}

	page2, err := s.ListVersions(doc.ID, 2)
	if err != nil {
		t.Fatalf("ListVersions(2) failed: %v", err)
	}
	if len(page2.Versions) != 5 {
		t.Errorf("page 2 count = %d, want 5", len(page2.Versions))
	}
	if page2.Versions[len(page2.Versions)-1].Number != 1 {
		t.Errorf("last item = v%d, want v1", page2.Versions[len(page2.Versions)-1].Number)
	}
}

func TestListVersionsClampsBeyondLastPage(t *testing.T) {
	s := setupTestStore(t)
	doc := createTestPage(t, s, testDoc)

	list, err := s.ListVersions(doc.ID, 99)
	if err != nil {
		t.Fatalf("ListVersions(99) failed: %v", err)
	}
	if list.Pagination.Page != 1 {
		t.Errorf("clamped page = %d, want 1", list.Pagination.Page)
	}
	if len(list.Versions) != 1 {
		t.Errorf("clamped result count = %d, want 1", len(list.Versions))
	}
}

func TestListVersionsRejectsNonPositivePage(t *testing.T) {
	s := setupTestStore(t)
	doc := createTestPage(t, s, testDoc)

	if _, err := s.ListVersions(doc.ID, 0); err == nil {
		t.Error("expected error for page 0")
	}
	if _, err := s.ListVersions(doc.ID, -3); err == nil {
		t.Error("expected error for negative page")
	}
}

func TestGetVersionIncludesContent(t *testing.T) {
	s := setupTestStore(t)
	doc := createTestPage(t, s, testDoc)

	list, err := s.ListVersions(doc.ID, 1)
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	v, err := s.GetVersion(doc.ID, list.Versions[0].ID)
	if err != nil {
		t.Fatalf("GetVersion failed: %v", err)
	}
	if v.HTML != testDoc {
		t.Errorf("version content = %q, want stored document", v.HTML)
	}
	if v.Number != 1 {
		t.Errorf("version number = %d, want 1", v.Number)
	}
}

func TestGetVersionNotFound(t *testing.T) {
	s := setupTestStore(t)
	doc := createTestPage(t, s, testDoc)

	_, err := s.GetVersion(doc.ID, "missing-version")
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestRestoreVersionRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	original := `<html><head><title>v1</title></head><body>one</body></html>`
	doc := createTestPage(t, s, original)

	second := `<html><head><title>v2</title></head><body>two</body></html>`
	third := `<html><head><title>v3</title></head><body>three</body></html>`
	if _, err := s.SavePageContent(doc.ID, second, ""); err != nil {
		t.Fatalf("SavePageContent failed: %v", err)
	}
	if _, err := s.SavePageContent(doc.ID, third, ""); err != nil {
		t.Fatalf("SavePageContent failed: %v", err)
	}

	// Find v1 and restore it while current is v3.
	list, err := s.ListVersions(doc.ID, 1)
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	var v1ID string
	for _, v := range list.Versions {
		if v.Number == 1 {
			v1ID = v.ID
		}
	}
	if v1ID == "" {
		t.Fatal("v1 not found in listing")
	}

	restored, err := s.RestoreVersion(doc.ID, v1ID)
	if err != nil {
		t.Fatalf("RestoreVersion failed: %v", err)
	}
	// Snapshot-before-overwrite policy: two versions appended, final
	// number is pre-restore max + 2.
	if restored.Number != 5 {
		t.Errorf("restored version number = %d, want 5", restored.Number)
	}
	if restored.HTML != original {
		t.Errorf("restored content = %q, want v1 content", restored.HTML)
	}

	got, err := s.GetPage(doc.ID)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if got.HTML != original {
		t.Error("page content should equal restored v1 content")
	}
	if got.Version != 5 {
		t.Errorf("page version = %d, want 5", got.Version)
	}

	// The pre-restore snapshot (v4, holding v3's content) strictly
	// precedes the restored-state version (v5).
	list, err = s.ListVersions(doc.ID, 1)
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if list.Versions[0].Number != 5 || list.Versions[1].Number != 4 {
		t.Fatalf("top of listing = [%d %d], want [5 4]",
			list.Versions[0].Number, list.Versions[1].Number)
	}
	v4, err := s.GetVersion(doc.ID, list.Versions[1].ID)
	if err != nil {
		t.Fatalf("GetVersion(v4) failed: %v", err)
	}
	if v4.HTML != third {
		t.Error("pre-restore snapshot should hold the replaced (v3) content")
	}
}

func TestRestoreVersionMissingTargetLeavesPageUntouched(t *testing.T) {
	s := setupTestStore(t)
	doc := createTestPage(t, s, testDoc)

	_, err := s.RestoreVersion(doc.ID, "missing-version")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}

	got, err := s.GetPage(doc.ID)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if got.Version != 1 || got.HTML != testDoc {
		t.Error("failed restore must not mutate the page")
	}
	list, err := s.ListVersions(doc.ID, 1)
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if list.Pagination.Total != 1 {
		t.Errorf("version count after failed restore = %d, want 1", list.Pagination.Total)
	}
}

func TestPublishedPages(t *testing.T) {
	s := setupTestStore(t)
	doc := createTestPage(t, s, testDoc)

	pages, err := s.ListPublishedPages()
	if err != nil {
		t.Fatalf("ListPublishedPages failed: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("published count = %d, want 0", len(pages))
	}

	if err := s.SetPublished(doc.ID, true); err != nil {
		t.Fatalf("SetPublished failed: %v", err)
	}
	pages, err = s.ListPublishedPages()
	if err != nil {
		t.Fatalf("ListPublishedPages failed: %v", err)
	}
	if len(pages) != 1 || pages[0].ID != doc.ID {
		t.Errorf("published pages = %v, want the one page", pages)
	}

	if err := s.SetPublished("nonexistent", true); err != ErrNotFound {
		t.Errorf("SetPublished on missing page: got %v, want ErrNotFound", err)
	}
}

func TestAssets(t *testing.T) {
	s := setupTestStore(t)

	a := Asset{
		Filename:     "hero.jpg",
		OriginalName: "Hero Image.png",
		Width:        1600,
		Height:       900,
		Size:         12345,
		UploadedAt:   "2026-08-30T10:00:00Z",
	}
	if err := s.SaveAsset(a); err != nil {
		t.Fatalf("SaveAsset failed: %v", err)
	}
	assets, err := s.ListAssets()
	if err != nil {
		t.Fatalf("ListAssets failed: %v", err)
	}
	if len(assets) != 1 || assets[0].Filename != "hero.jpg" {
		t.Errorf("assets = %v, want [hero.jpg]", assets)
	}
	if err := s.DeleteAsset("hero.jpg"); err != nil {
		t.Fatalf("DeleteAsset failed: %v", err)
	}
	assets, err = s.ListAssets()
	if err != nil {
		t.Fatalf("ListAssets failed: %v", err)
	}
	if len(assets) != 0 {
		t.Errorf("assets after delete = %v, want empty", assets)
	}
}
