package index

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/mcmassia/nexusdrive/internal/apperr"
	"github.com/mcmassia/nexusdrive/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "nexus-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func object(id, title string, links ...string) *models.KnowledgeObject {
	return &models.KnowledgeObject{
		ID:      id,
		Title:   title,
		Type:    "page",
		Content: "<p>" + title + " body</p>",
		Metadata: []models.Property{
			{Key: "tags", Label: "Tags", Type: models.PropertyMultiselect, Value: models.List("go", "test")},
			{Key: "status", Label: "Status", Type: models.PropertyText, Value: models.Text("open")},
		},
		Tags:         []string{"go", "test"},
		Links:        links,
		LastModified: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"objects", "links", "type_schemas", "kv"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestSaveAndGetObject(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := db.SaveObject(ctx, object("a", "Alpha", "b")); err != nil {
		t.Fatalf("SaveObject: %v", err)
	}
	got, err := db.GetObject(ctx, "a")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if got.Title != "Alpha" || got.Type != "page" {
		t.Errorf("object = %+v", got)
	}
	if len(got.Metadata) != 2 || !got.Metadata[0].Value.IsList() || got.Metadata[1].Value.String() != "open" {
		t.Errorf("metadata = %+v", got.Metadata)
	}
	if len(got.Links) != 1 || got.Links[0] != "b" {
		t.Errorf("links = %v", got.Links)
	}
	if !got.LastModified.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("last modified = %v", got.LastModified)
	}
	cs, _ := db.GetChecksum(ctx, "a")
	if cs == "" {
		t.Error("checksum not stored")
	}
}

func TestGetObject_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetObject(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBacklinks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.SaveObject(ctx, object("a", "A", "b"))
	_ = db.SaveObject(ctx, object("c", "C", "b"))

	bl, err := db.Backlinks(ctx, "b")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 2 {
		t.Fatalf("expected 2 backlinks, got %d", len(bl))
	}
}

func TestDeleteObject(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.SaveObject(ctx, object("del", "Del", "target"))

	if err := db.DeleteObject(ctx, "del"); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	if _, err := db.GetObject(ctx, "del"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("deleted object still readable: %v", err)
	}
	bl, _ := db.Backlinks(ctx, "target")
	if len(bl) != 0 {
		t.Errorf("expected 0 backlinks after delete, got %d", len(bl))
	}
	if err := db.DeleteObject(ctx, "del"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestSaveUpdatesExisting(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.SaveObject(ctx, object("up", "Old", "x"))
	updated := object("up", "New", "y")
	updated.Content = "<p>changed</p>"
	_ = db.SaveObject(ctx, updated)

	got, _ := db.GetObject(ctx, "up")
	if got.Title != "New" {
		t.Errorf("title = %q, want %q", got.Title, "New")
	}
	bl, _ := db.Backlinks(ctx, "x")
	if len(bl) != 0 {
		t.Error("old link should be removed on save")
	}
	bl, _ = db.Backlinks(ctx, "y")
	if len(bl) != 1 {
		t.Error("new link should exist")
	}
}

func TestListObjects_FilterAndPage(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.SaveObject(ctx, object("1", "Bravo"))
	_ = db.SaveObject(ctx, object("2", "alpha"))
	book := object("3", "Charlie")
	book.Type = "book"
	book.Tags = []string{"reading"}
	_ = db.SaveObject(ctx, book)

	rows, total, err := db.ListObjects(ctx, ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	if total != 3 || len(rows) != 2 || rows[0].Title != "alpha" {
		t.Errorf("total = %d rows = %+v", total, rows)
	}

	rows, total, _ = db.ListObjects(ctx, ListFilter{Type: "book"})
	if total != 1 || rows[0].ID != "3" {
		t.Errorf("type filter: total = %d rows = %+v", total, rows)
	}

	rows, total, _ = db.ListObjects(ctx, ListFilter{Tag: "go"})
	if total != 2 || len(rows) != 2 {
		t.Errorf("tag filter: total = %d rows = %+v", total, rows)
	}
}

func TestAllTitles(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.SaveObject(ctx, object("1", "One"))
	_ = db.SaveObject(ctx, object("2", "Two"))

	titles, err := db.AllTitles(ctx)
	if err != nil {
		t.Fatalf("AllTitles: %v", err)
	}
	if _, ok := titles["One"]; !ok || len(titles) != 2 {
		t.Errorf("titles = %v", titles)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	obj := object("s", "Search Me")
	obj.Content = "<p>uniqueword <b>appears</b> here</p>"
	_ = db.SaveObject(ctx, obj)

	results, err := db.Search(ctx, "uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "s" {
		t.Errorf("search results = %+v, want 1 hit for s", results)
	}
}

func TestSchemas_CRUD(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.GetSchema(ctx, "book"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	s := &models.TypeSchema{Type: "book", Color: "a1b2c3", Properties: []models.PropertyDefinition{
		{Key: "author", Label: "Author", Type: models.PropertyText},
		{Key: "date", Label: "Date", Type: models.PropertyDate},
	}}
	if err := db.SaveSchema(ctx, s); err != nil {
		t.Fatalf("SaveSchema: %v", err)
	}
	got, err := db.GetSchema(ctx, "book")
	if err != nil {
		t.Fatalf("GetSchema: %v", err)
	}
	if got.Color != "a1b2c3" || len(got.Properties) != 2 || got.Properties[1].Type != models.PropertyDate {
		t.Errorf("schema = %+v", got)
	}

	all, _ := db.ListSchemas(ctx)
	if len(all) != 1 {
		t.Errorf("list = %d schemas, want 1", len(all))
	}
	if err := db.DeleteSchema(ctx, "book"); err != nil {
		t.Fatalf("DeleteSchema: %v", err)
	}
	if err := db.DeleteSchema(ctx, "book"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestManifest_Lifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.LoadManifest(ctx); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	first := &models.ImportManifest{Timestamp: 1, Types: []string{"book"}, IDs: []string{"a"}}
	second := &models.ImportManifest{Timestamp: 2, Types: []string{}, IDs: []string{"b", "c"}, Assets: []string{"p_1.png"}}
	_ = db.SaveManifest(ctx, first)
	if err := db.SaveManifest(ctx, second); err != nil {
		t.Fatalf("SaveManifest: %v", err)
	}
	got, err := db.LoadManifest(ctx)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if got.Timestamp != 2 || len(got.IDs) != 2 || got.Assets[0] != "p_1.png" {
		t.Errorf("manifest = %+v, want the second one", got)
	}
	if err := db.DeleteManifest(ctx); err != nil {
		t.Fatalf("DeleteManifest: %v", err)
	}
	if _, err := db.LoadManifest(ctx); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("manifest survived delete: %v", err)
	}
}

func TestReconcile_PrunesDanglingLinks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.SaveObject(ctx, object("a", "A", "b", "gone"))
	_ = db.SaveObject(ctx, object("b", "B"))
	_, _ = db.conn.Exec(`UPDATE objects SET checksum = 'stale' WHERE id = 'a'`)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	if err := Reconcile(ctx, db, logger); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	got, _ := db.GetObject(ctx, "a")
	if len(got.Links) != 1 || got.Links[0] != "b" {
		t.Errorf("links = %v, want [b]", got.Links)
	}
	if cs, _ := db.GetChecksum(ctx, "a"); cs == "stale" {
		t.Error("stale checksum not refreshed")
	}
}
