package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/regulatech/oraclo/internal/chat"
	"github.com/regulatech/oraclo/internal/core"
	"github.com/regulatech/oraclo/internal/ingest"
	"github.com/regulatech/oraclo/internal/models"
)

type ChatHandler struct {
	store    core.DocumentStore
	embedder core.EmbeddingProvider
	llm      core.LLMProvider
	chunker  *ingest.Chunker
	cfg      chat.Config
	log      *zap.Logger
}

func NewChatHandler(store core.DocumentStore, embedder core.EmbeddingProvider, llm core.LLMProvider, chunker *ingest.Chunker, cfg chat.Config, log *zap.Logger) *ChatHandler {
	return &ChatHandler{store: store, embedder: embedder, llm: llm, chunker: chunker, cfg: cfg, log: log}
}

type queryRequest struct {
	Question    string          `json:"question"`
	DocumentIDs []string        `json:"document_ids"`
	History     []chat.Exchange `json:"history"`
}

// Query answers a question over processed documents. With document_ids
// the search is scoped to those documents; otherwise every processed
// document is in scope. History is caller-supplied, nothing is kept
// between requests.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question required", http.StatusBadRequest)
		return
	}

	docs, err := h.store.ListDocuments(r.Context(), core.DocumentFilter{
		Status: models.StatusProcessed,
		IDs:    req.DocumentIDs,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	session := chat.NewSession(h.embedder, h.llm, h.chunker, h.cfg, h.log)
	if err := session.Build(r.Context(), docs); err != nil {
		h.log.Error("chat index build failed", zap.Error(err))
		http.Error(w, "could not index documents", http.StatusInternalServerError)
		return
	}

	answer, err := session.Ask(r.Context(), req.Question, req.History)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyIndex) {
			http.Error(w, "no processed documents to search", http.StatusNotFound)
			return
		}
		h.log.Error("chat query failed", zap.Error(err))
		http.Error(w, "could not answer question", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(answer)
}
