package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/regulatech/oraclo/internal/core"
	"github.com/regulatech/oraclo/internal/models"
)

type RegulationHandler struct {
	regs core.RegulationStore
	docs core.DocumentStore
}

func NewRegulationHandler(regs core.RegulationStore, docs core.DocumentStore) *RegulationHandler {
	return &RegulationHandler{regs: regs, docs: docs}
}

func (h *RegulationHandler) List(w http.ResponseWriter, r *http.Request) {
	regulations, err := h.regs.ListRegulations(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(regulations)
}

type createRegulationRequest struct {
	Title          string `json:"title"`
	RegulationType string `json:"regulation_type"`
	DocumentID     string `json:"document_id"`
	EffectiveDate  string `json:"effective_date"`
	Status         string `json:"status"`
}

// Create registers a regulation by hand, for instruments the classifier
// missed. Every regulation stays anchored to its source document.
func (h *RegulationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRegulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "title required", http.StatusBadRequest)
		return
	}
	if !models.ValidRegulationType(req.RegulationType) {
		http.Error(w, "invalid regulation_type", http.StatusBadRequest)
		return
	}
	if req.Status != "" && !models.ValidRegulationStatus(req.Status) {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	if req.DocumentID == "" {
		http.Error(w, "document_id required", http.StatusBadRequest)
		return
	}
	doc, err := h.docs.GetDocumentByID(r.Context(), req.DocumentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	reg := &models.Regulation{
		ID:             uuid.NewString(),
		Title:          req.Title,
		RegulationType: models.RegulationType(req.RegulationType),
		DocumentID:     req.DocumentID,
		Status:         models.RegulationActive,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if req.Status != "" {
		reg.Status = models.RegulationStatus(req.Status)
	}
	if req.EffectiveDate != "" {
		d, err := time.Parse("2006-01-02", req.EffectiveDate)
		if err != nil {
			http.Error(w, "invalid effective_date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		reg.EffectiveDate = &d
	}

	if err := h.regs.CreateRegulation(r.Context(), reg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(reg)
}
