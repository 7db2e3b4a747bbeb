// Package session implements the Editing Session, the one stateful piece of
// the synchronization engine. It owns the live display form for a single
// document and delegates all hard logic to the normalizer, the placeholder
// codec, and the attachment reconciler.
//
// The session is a three-state machine: Loading → Editing → Saving. A save
// either uploads-then-submits as one sequence or fails as a whole; on any
// outcome the session returns to Editing with the display form intact.
// Single editor, single goroutine: the session has no internal locking.
package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"richsync/core"
	"richsync/core/normalize"
	"richsync/core/placeholder"
	"richsync/core/reconcile"
)

// State identifies the session's position in its lifecycle.
type State int

const (
	StateLoading State = iota
	StateEditing
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateEditing:
		return "editing"
	case StateSaving:
		return "saving"
	}
	return "unknown"
}

// SaveResult reports what a successful save persisted, plus per-file
// warnings for uploads that failed and will be retried on the next save.
type SaveResult struct {
	Document core.Document
	Warnings []string
}

// Session owns the display form of one open document.
type Session struct {
	store    core.Store
	uploader core.Uploader
	codec    *placeholder.Codec
	norm     core.Normalizer
	rec      core.Reconciler
	log      *zap.Logger

	documentID int64
	state      State
	display    string
	images     []core.ImageRecord
}

// New creates a Session over the given collaborators.
// A nil logger disables logging.
func New(store core.Store, uploader core.Uploader, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		store:    store,
		uploader: uploader,
		codec:    placeholder.New(),
		norm:     normalize.New(),
		rec:      reconcile.New(),
		log:      log,
		state:    StateLoading,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Content returns the current display form.
func (s *Session) Content() string { return s.display }

// Images returns a copy of the session's image records.
func (s *Session) Images() []core.ImageRecord {
	out := make([]core.ImageRecord, len(s.images))
	copy(out, s.images)
	return out
}

// Load fetches the document, decodes its storage form, and presents the
// normalized display form. Transitions the session to Editing.
func (s *Session) Load(ctx context.Context, documentID int64) error {
	doc, err := s.store.Load(ctx, documentID)
	if err != nil {
		return fmt.Errorf("loading document %d: %w", documentID, err)
	}

	s.documentID = doc.ID
	s.images = append([]core.ImageRecord(nil), doc.Images...)
	s.display = s.norm.Normalize(s.codec.Decode(doc.StorageText, doc.Images))
	s.state = StateEditing

	s.log.Debug("document loaded",
		zap.Int64("document_id", doc.ID),
		zap.Int("images", len(doc.Images)))
	return nil
}

// SetContent replaces the display form with the normalized markup. Called on
// every content-change event to keep the editing surface clean.
func (s *Session) SetContent(markup string) error {
	if s.state != StateEditing {
		return fmt.Errorf("content change in %s state", s.state)
	}
	s.display = s.norm.Normalize(markup)
	return nil
}

// InsertImage mints a pending image record for just-captured bytes and
// appends the matching inline element to the display form. The record has
// no durable URL until the next save uploads it.
func (s *Session) InsertImage(name string, data []byte) (int64, error) {
	if s.state != StateEditing {
		return 0, fmt.Errorf("image insert in %s state", s.state)
	}

	id := s.codec.MintID()
	s.images = append(s.images, core.ImageRecord{
		ID:          id,
		Name:        name,
		SourceBytes: data,
	})

	src := fmt.Sprintf("data:%s;base64,%s", imageMime(name), base64.StdEncoding.EncodeToString(data))
	elem := fmt.Sprintf(`<img src="%s" data-image-id="%d" alt="%s">`, src, id, html.EscapeString(name))
	s.display = s.norm.Normalize(s.display + elem)

	s.log.Debug("image inserted", zap.Int64("image_id", id), zap.String("name", name))
	return id, nil
}

// Save encodes the display form, uploads every still-pending image as a
// batch, reconciles the attachment set against the encoded text, and
// submits the result to the store.
//
// One failed upload does not block the others: its record stays pending,
// its token stays in the text, and a warning is returned; the user retries
// by saving again. A store failure aborts the save as a whole with the
// display form untouched.
func (s *Session) Save(ctx context.Context) (*SaveResult, error) {
	if s.state != StateEditing {
		return nil, fmt.Errorf("save in %s state", s.state)
	}
	s.state = StateSaving
	defer func() { s.state = StateEditing }()

	storageText, minted := s.codec.Encode(s.display)
	s.images = append(s.images, minted...)

	// Upload results are recorded immediately: the files exist on the
	// server whether or not this save completes.
	warnings := s.uploadPending(ctx)

	reconciled := s.rec.Reconcile(storageText, s.images)

	// Only url-bearing records are persisted; records whose upload failed
	// stay pending in the session for the next save.
	resolved := make([]core.ImageRecord, 0, len(reconciled))
	for _, img := range reconciled {
		if !img.Pending() {
			resolved = append(resolved, img)
		}
	}

	doc := core.Document{ID: s.documentID, StorageText: storageText, Images: resolved}
	if err := s.store.Save(ctx, &doc); err != nil {
		// The session keeps its full record set on failure, orphans
		// included; pruning happens only once the store accepts the text.
		return nil, fmt.Errorf("saving document %d: %w", s.documentID, err)
	}
	s.images = reconciled

	s.log.Info("document saved",
		zap.Int64("document_id", s.documentID),
		zap.Int("images", len(resolved)),
		zap.Int("pending", len(reconciled)-len(resolved)))
	return &SaveResult{Document: doc, Warnings: warnings}, nil
}

// uploadPending uploads every record that has captured bytes but no durable
// URL yet. Failures are collected as warnings, not errors.
func (s *Session) uploadPending(ctx context.Context) []string {
	var warnings []string
	for i := range s.images {
		img := &s.images[i]
		if !img.Pending() || len(img.SourceBytes) == 0 {
			continue
		}
		res, err := s.uploader.Upload(ctx, img.Name, img.SourceBytes)
		if err != nil {
			s.log.Warn("image upload failed",
				zap.Int64("image_id", img.ID),
				zap.String("name", img.Name),
				zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("upload of %s failed: %v", img.Name, err))
			continue
		}
		img.URL = res.URL
		img.ServerPath = res.ServerPath
		img.SourceBytes = nil
	}
	return warnings
}

// imageMime guesses a media type from the filename extension, for building
// the embedded data: source of a freshly inserted image.
func imageMime(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
