// Package classify labels processed documents as regulatory
// instruments. Classification is a separately invoked enrichment:
// nothing here runs as part of ingestion, and no failure in here ever
// aborts it.
package classify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/regulatech/oraclo/internal/core"
	"github.com/regulatech/oraclo/internal/models"
)

const systemPrompt = `You are an expert analyst of telecommunications-sector regulations.
Decide whether the document excerpt is a regulatory instrument and, if so, extract its metadata.
Respond with a single JSON object and nothing else:
{
  "is_regulation": true|false,
  "title": "official title of the instrument",
  "type": "LAW" | "DECREE" | "RESOLUTION" | "NORMATIVE" | "POLICY",
  "effective_date": "YYYY-MM-DD" (omit if unknown),
  "status": "ACTIVE" | "INACTIVE" | "PENDING" | "REVOKED" (omit if unknown)
}
When is_regulation is false, the other fields may be omitted.`

// analysis is the JSON contract expected from the model. is_regulation
// plus, when true, a title and a valid type are required; anything
// else counts as a classification failure.
type analysis struct {
	IsRegulation  bool   `json:"is_regulation"`
	Title         string `json:"title"`
	Type          string `json:"type"`
	EffectiveDate string `json:"effective_date"`
	Status        string `json:"status"`
}

type Classifier struct {
	store         core.RegulationStore
	llm           core.LLMProvider
	contentBudget int
	log           *zap.Logger
}

// NewClassifier builds a classifier that sends at most contentBudget
// characters of document content to the model.
func NewClassifier(store core.RegulationStore, llm core.LLMProvider, contentBudget int, log *zap.Logger) *Classifier {
	if contentBudget <= 0 {
		contentBudget = 2000
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{store: store, llm: llm, contentBudget: contentBudget, log: log}
}

// Classify asks the model whether doc is a regulation and persists one
// Regulation row on a positive answer. It returns nil both when the
// document is not a regulation and when anything goes wrong: a
// malformed model response is logged and degrades to "no regulation
// produced", never an error for the caller.
func (c *Classifier) Classify(ctx context.Context, doc *models.Document) *models.Regulation {
	if doc == nil || doc.Content == "" {
		return nil
	}

	excerpt := doc.Content
	if len(excerpt) > c.contentBudget {
		excerpt = excerpt[:c.contentBudget]
	}

	response, err := c.llm.Generate(ctx, systemPrompt, "Documento: "+excerpt)
	if err != nil {
		c.log.Error("classification request failed", zap.String("document_id", doc.ID), zap.Error(err))
		return nil
	}

	result, ok := c.parse(response)
	if !ok {
		c.log.Warn("unparseable classification response", zap.String("document_id", doc.ID))
		return nil
	}
	if !result.IsRegulation {
		return nil
	}

	reg := &models.Regulation{
		ID:             uuid.NewString(),
		Title:          result.Title,
		RegulationType: models.RegulationType(result.Type),
		DocumentID:     doc.ID,
		Status:         models.RegulationActive,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if result.Status != "" && models.ValidRegulationStatus(result.Status) {
		reg.Status = models.RegulationStatus(result.Status)
	}
	if result.EffectiveDate != "" {
		if d, err := time.Parse("2006-01-02", result.EffectiveDate); err == nil {
			reg.EffectiveDate = &d
		}
	}

	if err := c.store.CreateRegulation(ctx, reg); err != nil {
		c.log.Error("persist regulation failed", zap.String("document_id", doc.ID), zap.Error(err))
		return nil
	}

	c.log.Info("regulation identified",
		zap.String("document_id", doc.ID),
		zap.String("regulation_id", reg.ID),
		zap.String("type", string(reg.RegulationType)),
	)
	return reg
}

// parse decodes the model response, tolerating markdown code fences,
// and enforces the required fields.
func (c *Classifier) parse(response string) (*analysis, bool) {
	raw := stripCodeFence(response)

	var result analysis
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, false
	}
	if result.IsRegulation {
		if result.Title == "" || !models.ValidRegulationType(result.Type) {
			return nil, false
		}
	}
	return &result, true
}

// stripCodeFence unwraps ```json ... ``` style answers the model
// sometimes produces despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
