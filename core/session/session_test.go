package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"richsync/core"
)

// fakeStore is an in-memory document store.
type fakeStore struct {
	docs    map[int64]core.Document
	saveErr error
	saved   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[int64]core.Document{}}
}

func (f *fakeStore) Load(_ context.Context, id int64) (*core.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %d not found", id)
	}
	return &doc, nil
}

func (f *fakeStore) Save(_ context.Context, doc *core.Document) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved++
	f.docs[doc.ID] = *doc
	return nil
}

func (f *fakeStore) Create(_ context.Context) (int64, error) {
	id := int64(len(f.docs) + 1)
	f.docs[id] = core.Document{ID: id}
	return id, nil
}

func (f *fakeStore) List(_ context.Context) ([]core.Document, error) {
	return nil, nil
}

// fakeUploader resolves uploads to predictable URLs, failing for names
// listed in failFor.
type fakeUploader struct {
	failFor map[string]bool
	calls   int
}

func (f *fakeUploader) Upload(_ context.Context, name string, _ []byte) (core.UploadResult, error) {
	f.calls++
	if f.failFor[name] {
		return core.UploadResult{}, errors.New("upload service unavailable")
	}
	return core.UploadResult{
		URL:        "http://files.local/" + name,
		ServerPath: "/srv/uploads/" + name,
	}, nil
}

func TestLoadDecodesAndNormalizes(t *testing.T) {
	store := newFakeStore()
	store.docs[1] = core.Document{
		ID:          1,
		StorageText: "Hello <b>world</b> [IMG:7]",
		Images:      []core.ImageRecord{{ID: 7, Name: "cat.png", URL: "http://files.local/cat.png"}},
	}

	s := New(store, &fakeUploader{}, nil)
	if err := s.Load(context.Background(), 1); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if s.State() != StateEditing {
		t.Errorf("state = %s, want editing", s.State())
	}
	content := s.Content()
	if !strings.Contains(content, "<strong>world</strong>") {
		t.Errorf("display form not normalized: %q", content)
	}
	if !strings.Contains(content, `data-image-id="7"`) {
		t.Errorf("display form missing decoded image: %q", content)
	}
}

func TestSetContentRenormalizes(t *testing.T) {
	store := newFakeStore()
	store.docs[1] = core.Document{ID: 1}
	s := New(store, &fakeUploader{}, nil)
	if err := s.Load(context.Background(), 1); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := s.SetContent("<b><b>typed</b></b>"); err != nil {
		t.Fatalf("SetContent: %v", err)
	}
	if got := s.Content(); got != "<strong>typed</strong>" {
		t.Errorf("Content = %q, want %q", got, "<strong>typed</strong>")
	}
}

func TestOperationsRejectedOutsideEditing(t *testing.T) {
	s := New(newFakeStore(), &fakeUploader{}, nil)
	// Still in Loading: nothing has been loaded yet.
	if err := s.SetContent("x"); err == nil {
		t.Error("SetContent accepted in loading state")
	}
	if _, err := s.InsertImage("x.png", []byte("x")); err == nil {
		t.Error("InsertImage accepted in loading state")
	}
	if _, err := s.Save(context.Background()); err == nil {
		t.Error("Save accepted in loading state")
	}
}

func TestSaveUploadsAndReconciles(t *testing.T) {
	store := newFakeStore()
	store.docs[1] = core.Document{ID: 1}
	uploader := &fakeUploader{}
	s := New(store, uploader, nil)
	if err := s.Load(context.Background(), 1); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := s.SetContent("quarterly numbers: "); err != nil {
		t.Fatalf("SetContent: %v", err)
	}
	id, err := s.InsertImage("chart.png", []byte("pngbytes"))
	if err != nil {
		t.Fatalf("InsertImage: %v", err)
	}

	result, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
	if uploader.calls != 1 {
		t.Errorf("uploader called %d times, want 1", uploader.calls)
	}

	doc := result.Document
	if !strings.Contains(doc.StorageText, core.Token(id)) {
		t.Errorf("storage text missing token for inserted image: %q", doc.StorageText)
	}
	if len(doc.Images) != 1 {
		t.Fatalf("persisted %d images, want 1", len(doc.Images))
	}
	img := doc.Images[0]
	if img.ID != id || img.URL != "http://files.local/chart.png" {
		t.Errorf("persisted record = %+v", img)
	}
	if img.Pending() {
		t.Error("persisted record still pending after upload")
	}
	if s.State() != StateEditing {
		t.Errorf("state after save = %s, want editing", s.State())
	}
}

func TestSaveDropsImageDeletedBeforeSave(t *testing.T) {
	store := newFakeStore()
	store.docs[1] = core.Document{ID: 1}
	s := New(store, &fakeUploader{}, nil)
	if err := s.Load(context.Background(), 1); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := s.InsertImage("temp.png", []byte("x")); err != nil {
		t.Fatalf("InsertImage: %v", err)
	}
	// The user deletes the image element before saving.
	if err := s.SetContent("kept text only"); err != nil {
		t.Fatalf("SetContent: %v", err)
	}

	result, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if strings.Contains(result.Document.StorageText, "[IMG:") {
		t.Errorf("storage text still has a token: %q", result.Document.StorageText)
	}
	if len(result.Document.Images) != 0 {
		t.Errorf("orphaned record persisted: %+v", result.Document.Images)
	}
	if len(s.Images()) != 0 {
		t.Errorf("orphaned record retained in session: %+v", s.Images())
	}
}

func TestSaveKeepsPendingOnUploadFailure(t *testing.T) {
	store := newFakeStore()
	store.docs[1] = core.Document{ID: 1}
	uploader := &fakeUploader{failFor: map[string]bool{"bad.png": true}}
	s := New(store, uploader, nil)
	if err := s.Load(context.Background(), 1); err != nil {
		t.Fatalf("Load: %v", err)
	}

	goodID, err := s.InsertImage("good.png", []byte("g"))
	if err != nil {
		t.Fatalf("InsertImage: %v", err)
	}
	badID, err := s.InsertImage("bad.png", []byte("b"))
	if err != nil {
		t.Fatalf("InsertImage: %v", err)
	}

	result, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	// One failed upload does not block the save; it surfaces a warning.
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "bad.png") {
		t.Errorf("warnings = %v, want one mentioning bad.png", result.Warnings)
	}

	// The failed image's token stays in the text, but only the resolved
	// record is persisted.
	if !strings.Contains(result.Document.StorageText, core.Token(badID)) {
		t.Errorf("failed image's token dropped from text: %q", result.Document.StorageText)
	}
	if len(result.Document.Images) != 1 || result.Document.Images[0].ID != goodID {
		t.Errorf("persisted images = %+v, want only %d", result.Document.Images, goodID)
	}

	// The pending record stays in the session so the next save retries it.
	var stillPending bool
	for _, img := range s.Images() {
		if img.ID == badID && img.Pending() {
			stillPending = true
		}
	}
	if !stillPending {
		t.Error("failed record not retained as pending in session")
	}

	// Retry: the next save uploads it successfully.
	uploader.failFor = nil
	result, err = s.Save(context.Background())
	if err != nil {
		t.Fatalf("retry Save: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("retry warnings = %v", result.Warnings)
	}
	if len(result.Document.Images) != 2 {
		t.Errorf("retry persisted %d images, want 2", len(result.Document.Images))
	}
}

func TestSaveAbortsWhenStoreUnavailable(t *testing.T) {
	store := newFakeStore()
	store.docs[1] = core.Document{ID: 1}
	s := New(store, &fakeUploader{}, nil)
	if err := s.Load(context.Background(), 1); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.SetContent("<strong>unsaved edits</strong>"); err != nil {
		t.Fatalf("SetContent: %v", err)
	}

	store.saveErr = errors.New("store unavailable")
	if _, err := s.Save(context.Background()); err == nil {
		t.Fatal("Save succeeded against an unavailable store")
	}

	// The display form is retained so the user does not lose edits, and the
	// session is editable again.
	if got := s.Content(); got != "<strong>unsaved edits</strong>" {
		t.Errorf("display form lost after failed save: %q", got)
	}
	if s.State() != StateEditing {
		t.Errorf("state after failed save = %s, want editing", s.State())
	}
	if store.saved != 0 {
		t.Errorf("store saved %d documents during failure", store.saved)
	}
}

func TestFailedSaveKeepsFullRecordSet(t *testing.T) {
	store := newFakeStore()
	store.docs[1] = core.Document{
		ID:          1,
		StorageText: "intro [IMG:7]",
		Images:      []core.ImageRecord{{ID: 7, Name: "cat.png", URL: "http://files.local/cat.png"}},
	}
	s := New(store, &fakeUploader{}, nil)
	if err := s.Load(context.Background(), 1); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// The user deletes the image element, then the save fails: the record
	// must stay in the session, because nothing was pruned durably yet.
	if err := s.SetContent("intro only"); err != nil {
		t.Fatalf("SetContent: %v", err)
	}
	store.saveErr = errors.New("store unavailable")
	if _, err := s.Save(context.Background()); err == nil {
		t.Fatal("Save succeeded against an unavailable store")
	}
	if imgs := s.Images(); len(imgs) != 1 || imgs[0].ID != 7 {
		t.Errorf("session records after failed save = %+v, want the loaded record", imgs)
	}

	// Once the store accepts the text, the orphaned record is dropped.
	store.saveErr = nil
	result, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("retry Save: %v", err)
	}
	if len(result.Document.Images) != 0 {
		t.Errorf("orphaned record persisted: %+v", result.Document.Images)
	}
	if len(s.Images()) != 0 {
		t.Errorf("orphaned record retained after successful save: %+v", s.Images())
	}
}
