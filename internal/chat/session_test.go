package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regulatech/oraclo/internal/ingest"
	"github.com/regulatech/oraclo/internal/models"
)

// topicEmbedder maps text to one of three fixed directions based on
// keywords, making retrieval deterministic.
type topicEmbedder struct{}

func (topicEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		switch {
		case strings.Contains(text, "spectrum"):
			vecs[i] = []float32{1, 0, 0}
		case strings.Contains(text, "tariff"):
			vecs[i] = []float32{0, 1, 0}
		default:
			vecs[i] = []float32{0, 0, 1}
		}
	}
	return vecs, nil
}

func (topicEmbedder) ModelName() string { return "topic-embedder" }

type promptCapturingLLM struct {
	answer     string
	lastPrompt string
}

func (p *promptCapturingLLM) Generate(_ context.Context, _, userPrompt string) (string, error) {
	p.lastPrompt = userPrompt
	return p.answer, nil
}

func processedDoc(id, title, content string) models.Document {
	return models.Document{
		ID:      id,
		Title:   title,
		Content: content,
		Status:  models.StatusProcessed,
	}
}

func newTestSession(llm *promptCapturingLLM) *Session {
	return NewSession(topicEmbedder{}, llm, ingest.NewChunker(1000, 0), Config{TopK: 2, FetchK: 4}, nil)
}

func TestAskEmptyIndex(t *testing.T) {
	s := newTestSession(&promptCapturingLLM{})

	_, err := s.Ask(context.Background(), "anything", nil)
	assert.True(t, errors.Is(err, ErrEmptyIndex))
}

func TestBuildSkipsUnprocessedDocuments(t *testing.T) {
	s := newTestSession(&promptCapturingLLM{})

	pending := processedDoc("d1", "Pending", "spectrum text")
	pending.Status = models.StatusPending
	empty := processedDoc("d2", "Empty", "")

	require.NoError(t, s.Build(context.Background(), []models.Document{pending, empty}))

	_, err := s.Ask(context.Background(), "spectrum", nil)
	assert.True(t, errors.Is(err, ErrEmptyIndex))
}

func TestAskRetrievesRelevantSource(t *testing.T) {
	llm := &promptCapturingLLM{answer: "Auctions are held annually."}
	s := newTestSession(llm)

	docs := []models.Document{
		processedDoc("d1", "Spectrum Plan", "Rules for spectrum auctions in the 3.5 GHz band."),
		processedDoc("d2", "Tariff Order", "The tariff schedule applies to fixed telephony."),
	}
	require.NoError(t, s.Build(context.Background(), docs))

	answer, err := s.Ask(context.Background(), "How are spectrum auctions run?", nil)
	require.NoError(t, err)

	assert.Equal(t, "Auctions are held annually.", answer.Text)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "d1", answer.Sources[0].DocumentID)
	assert.Equal(t, "Spectrum Plan", answer.Sources[0].Title)

	assert.Contains(t, llm.lastPrompt, "Rules for spectrum auctions")
	assert.Contains(t, llm.lastPrompt, "How are spectrum auctions run?")
}

func TestAskThreadsHistoryIntoPrompt(t *testing.T) {
	llm := &promptCapturingLLM{answer: "ok"}
	s := newTestSession(llm)

	require.NoError(t, s.Build(context.Background(), []models.Document{
		processedDoc("d1", "Doc", "spectrum usage rights"),
	}))

	history := []Exchange{{Question: "What band?", Answer: "3.5 GHz."}}
	_, err := s.Ask(context.Background(), "And the duration?", history)
	require.NoError(t, err)

	assert.Contains(t, llm.lastPrompt, "Q: What band?")
	assert.Contains(t, llm.lastPrompt, "A: 3.5 GHz.")
}

func TestAskDeduplicatesSources(t *testing.T) {
	llm := &promptCapturingLLM{answer: "ok"}
	// Small chunks so one document yields several index entries.
	s := NewSession(topicEmbedder{}, llm, ingest.NewChunker(30, 0), Config{TopK: 3, FetchK: 6}, nil)

	content := "spectrum part one. spectrum part two. spectrum part three."
	require.NoError(t, s.Build(context.Background(), []models.Document{
		processedDoc("d1", "Only Doc", content),
	}))

	answer, err := s.Ask(context.Background(), "spectrum?", nil)
	require.NoError(t, err)
	assert.Len(t, answer.Sources, 1)
}
