// Package api exposes the document CRUD surface over HTTP.
// Handlers stay thin: loading, saving, and the editing pipeline all go
// through an editing session per request, so the engine's semantics are
// identical whether a document is edited over HTTP or in process.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"richsync/core"
	"richsync/core/normalize"
	"richsync/core/placeholder"
	"richsync/core/session"
)

// Server wires the document store and upload service behind the REST routes.
type Server struct {
	store    core.Store
	uploader core.Uploader
	codec    core.Codec
	norm     core.Normalizer
	log      *zap.Logger
}

// NewServer creates a Server. A nil logger disables logging.
func NewServer(store core.Store, uploader core.Uploader, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		store:    store,
		uploader: uploader,
		codec:    placeholder.New(),
		norm:     normalize.New(),
		log:      log,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogger)

	docs := r.PathPrefix("/api/documents").Subrouter()
	docs.HandleFunc("", s.handleCreate).Methods(http.MethodPost)
	docs.HandleFunc("", s.handleList).Methods(http.MethodGet)
	docs.HandleFunc("/{id:[0-9]+}", s.handleGet).Methods(http.MethodGet)
	docs.HandleFunc("/{id:[0-9]+}/display", s.handleDisplay).Methods(http.MethodGet)
	docs.HandleFunc("/{id:[0-9]+}", s.handleSave).Methods(http.MethodPut)
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, err := s.store.Create(r.Context())
	if err != nil {
		s.log.Error("create failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not create document")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.List(r.Context())
	if err != nil {
		s.log.Error("list failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not list documents")
		return
	}
	if docs == nil {
		docs = []core.Document{}
	}
	respondJSON(w, http.StatusOK, docs)
}

// handleGet returns the persisted storage form: text with tokens plus the
// ordered image records.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// handleDisplay returns the decoded, normalized display form: what an
// editing surface presents when the document is opened.
func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	display := s.norm.Normalize(s.codec.Decode(doc.StorageText, doc.Images))
	respondJSON(w, http.StatusOK, map[string]string{"display_markup": display})
}

// saveRequest is the PUT body: the editor's current display form.
// Freshly pasted images arrive embedded as data: sources inside the markup.
type saveRequest struct {
	DisplayMarkup string `json:"display_markup"`
}

// saveResponse reports what was persisted plus per-image upload warnings.
type saveResponse struct {
	Document core.Document `json:"document"`
	Warnings []string      `json:"warnings,omitempty"`
}

// handleSave runs the full save pipeline: load, replace the display form,
// encode, upload pending images, reconcile, persist.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess := session.New(s.store, s.uploader, s.log)
	if err := sess.Load(r.Context(), id); err != nil {
		respondError(w, http.StatusNotFound, "document not found")
		return
	}
	if err := sess.SetContent(req.DisplayMarkup); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	result, err := sess.Save(r.Context())
	if err != nil {
		s.log.Error("save failed", zap.Int64("document_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not save document")
		return
	}
	respondJSON(w, http.StatusOK, saveResponse{Document: result.Document, Warnings: result.Warnings})
}

func (s *Server) loadDocument(w http.ResponseWriter, r *http.Request) (*core.Document, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	doc, err := s.store.Load(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "document not found")
		return nil, false
	}
	return doc, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid document id")
		return 0, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
