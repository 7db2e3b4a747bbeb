package store

import (
	"context"
	"path/filepath"
	"testing"

	"richsync/core"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "richsync.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateLoadEmpty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	doc, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.StorageText != "" || len(doc.Images) != 0 {
		t.Errorf("new document not empty: %+v", doc)
	}
}

func TestSavePreservesImageOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	doc := &core.Document{
		ID:          id,
		StorageText: "[IMG:20] before [IMG:10]",
		Images: []core.ImageRecord{
			{ID: 20, Name: "b.png", URL: "http://files.local/b.png", ServerPath: "/srv/b.png"},
			{ID: 10, Name: "a.png", URL: "http://files.local/a.png", ServerPath: "/srv/a.png"},
		},
	}
	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.StorageText != doc.StorageText {
		t.Errorf("storage text = %q, want %q", loaded.StorageText, doc.StorageText)
	}
	if len(loaded.Images) != 2 || loaded.Images[0].ID != 20 || loaded.Images[1].ID != 10 {
		t.Errorf("image order not preserved: %+v", loaded.Images)
	}
	if loaded.Images[0].Name != "b.png" || loaded.Images[0].ServerPath != "/srv/b.png" {
		t.Errorf("image fields not preserved: %+v", loaded.Images[0])
	}
}

func TestSaveRewritesImageRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first := &core.Document{
		ID:          id,
		StorageText: "[IMG:1] [IMG:2]",
		Images: []core.ImageRecord{
			{ID: 1, Name: "one.png", URL: "http://files.local/one.png"},
			{ID: 2, Name: "two.png", URL: "http://files.local/two.png"},
		},
	}
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	// A later save with one image removed must not leave the stale row.
	second := &core.Document{
		ID:          id,
		StorageText: "[IMG:2]",
		Images:      []core.ImageRecord{{ID: 2, Name: "two.png", URL: "http://files.local/two.png"}},
	}
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	loaded, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Images) != 1 || loaded.Images[0].ID != 2 {
		t.Errorf("stale image rows survived: %+v", loaded.Images)
	}
}

func TestLoadMissingDocument(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Load(context.Background(), 404); err == nil {
		t.Fatal("Load of missing document succeeded")
	}
}

func TestList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Create(ctx); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	docs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 3 {
		t.Errorf("List returned %d documents, want 3", len(docs))
	}
}
