package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/regulatech/oraclo/internal/classify"
	"github.com/regulatech/oraclo/internal/core"
	"github.com/regulatech/oraclo/internal/ingest"
	"github.com/regulatech/oraclo/internal/models"
)

type DocumentHandler struct {
	store      core.DocumentStore
	regs       core.RegulationStore
	validator  *ingest.Validator
	organizer  *ingest.Organizer
	pipeline   *ingest.Pipeline
	classifier *classify.Classifier
	archive    core.ObjectClient // nil when no mirror is configured
	log        *zap.Logger
}

func NewDocumentHandler(
	store core.DocumentStore,
	regs core.RegulationStore,
	validator *ingest.Validator,
	organizer *ingest.Organizer,
	pipeline *ingest.Pipeline,
	classifier *classify.Classifier,
	archive core.ObjectClient,
	log *zap.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		store:      store,
		regs:       regs,
		validator:  validator,
		organizer:  organizer,
		pipeline:   pipeline,
		classifier: classifier,
		archive:    archive,
		log:        log,
	}
}

// Upload is the ingestion boundary: multipart file plus optional title
// and category. The temp copy is validated, organized into the
// document tree, and run through the pipeline. Duplicate content maps
// to 409, invalid files to 400; capability failures return 500 along
// with the ERROR document's id so the audit trail is reachable.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	title := r.FormValue("title")
	category := r.FormValue("category")

	tmpPath, err := saveTemp(file, header.Filename)
	if err != nil {
		h.log.Error("save upload failed", zap.Error(err))
		http.Error(w, "could not store upload", http.StatusInternalServerError)
		return
	}
	defer os.Remove(tmpPath)

	if err := h.validator.Validate(tmpPath); err != nil {
		var invalid *core.InvalidFileError
		if errors.As(err, &invalid) {
			http.Error(w, invalid.Reason, http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dest, err := h.organizer.Organize(tmpPath, category)
	if err != nil {
		h.log.Error("organize failed", zap.Error(err))
		http.Error(w, "could not organize file", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	doc, err := h.pipeline.Process(ctx, dest, title)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrDuplicateDocument):
			http.Error(w, "document already processed", http.StatusConflict)
		case errors.Is(err, core.ErrNotFound):
			http.Error(w, "file not found", http.StatusNotFound)
		default:
			// The ERROR document is kept as an audit trail.
			http.Error(w, fmt.Sprintf("processing failed: %v", err), http.StatusInternalServerError)
		}
		return
	}

	h.mirror(dest, header.Header.Get("Content-Type"))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(doc)
}

// mirror uploads the organized copy to the archive bucket, best effort.
func (h *DocumentHandler) mirror(dest, contentType string) {
	if h.archive == nil {
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		h.log.Warn("archive read failed", zap.String("path", dest), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	key := strings.TrimLeft(filepath.ToSlash(dest), "./")
	if _, err := h.archive.UploadFile(ctx, key, data, contentType); err != nil {
		h.log.Warn("archive upload failed", zap.String("key", key), zap.Error(err))
	}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := core.DocumentFilter{
		Type:   models.DocumentType(r.URL.Query().Get("type")),
		Status: models.DocumentStatus(r.URL.Query().Get("status")),
		Query:  r.URL.Query().Get("q"),
	}

	docs, err := h.store.ListDocuments(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(docs)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}

	regulations, err := h.regs.ListRegulationsByDocument(r.Context(), doc.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"document":    doc,
		"regulations": regulations,
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteDocument(r.Context(), doc.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Classify runs the regulation classifier over a processed document.
// Absence of a regulation is a normal outcome, not an error.
func (h *DocumentHandler) Classify(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if doc.Status != models.StatusProcessed {
		http.Error(w, "document is not processed", http.StatusConflict)
		return
	}

	reg := h.classifier.Classify(r.Context(), doc)

	w.Header().Set("Content-Type", "application/json")
	if reg == nil {
		json.NewEncoder(w).Encode(map[string]any{"regulation": nil})
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"regulation": reg})
}

func (h *DocumentHandler) Regulations(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}

	regulations, err := h.regs.ListRegulationsByDocument(r.Context(), doc.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(regulations)
}

func (h *DocumentHandler) lookup(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	id := chi.URLParam(r, "id")
	doc, err := h.store.GetDocumentByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	if doc == nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return nil, false
	}
	return doc, true
}

// saveTemp writes the uploaded stream to a temp file carrying the
// original extension, which type detection and organizing rely on.
func saveTemp(file io.Reader, filename string) (string, error) {
	ext := filepath.Ext(filepath.Base(filename))
	tmp, err := os.CreateTemp("", "oraclo-upload-*"+ext)
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
