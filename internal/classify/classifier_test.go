package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regulatech/oraclo/internal/models"
)

type fakeLLM struct {
	response string
	err      error

	lastUserPrompt string
}

func (f *fakeLLM) Generate(_ context.Context, _, userPrompt string) (string, error) {
	f.lastUserPrompt = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeRegulationStore struct {
	created []*models.Regulation
	err     error
}

func (f *fakeRegulationStore) CreateRegulation(_ context.Context, reg *models.Regulation) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, reg)
	return nil
}

func (f *fakeRegulationStore) ListRegulations(_ context.Context) ([]models.Regulation, error) {
	return nil, nil
}

func (f *fakeRegulationStore) ListRegulationsByDocument(_ context.Context, _ string) ([]models.Regulation, error) {
	return nil, nil
}

func processedDoc(content string) *models.Document {
	return &models.Document{
		ID:      "doc-1",
		Title:   "upload.pdf",
		Content: content,
		Status:  models.StatusProcessed,
	}
}

func TestClassifyPersistsRegulation(t *testing.T) {
	store := &fakeRegulationStore{}
	llm := &fakeLLM{response: `{
		"is_regulation": true,
		"title": "Resolução nº 740",
		"type": "RESOLUTION",
		"effective_date": "2021-01-04",
		"status": "ACTIVE"
	}`}
	c := NewClassifier(store, llm, 2000, nil)

	reg := c.Classify(context.Background(), processedDoc("Dispõe sobre requisitos de segurança cibernética."))

	require.NotNil(t, reg)
	assert.Equal(t, "Resolução nº 740", reg.Title)
	assert.Equal(t, models.RegulationType("RESOLUTION"), reg.RegulationType)
	assert.Equal(t, "doc-1", reg.DocumentID)
	require.NotNil(t, reg.EffectiveDate)
	assert.Equal(t, time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC), *reg.EffectiveDate)
	require.Len(t, store.created, 1)
	assert.Equal(t, reg, store.created[0])
}

func TestClassifyHandlesCodeFencedResponse(t *testing.T) {
	store := &fakeRegulationStore{}
	llm := &fakeLLM{response: "```json\n{\"is_regulation\": true, \"title\": \"Lei 9.472\", \"type\": \"LAW\"}\n```"}
	c := NewClassifier(store, llm, 2000, nil)

	reg := c.Classify(context.Background(), processedDoc("Lei Geral de Telecomunicações."))

	require.NotNil(t, reg)
	assert.Equal(t, "Lei 9.472", reg.Title)
	assert.Equal(t, models.RegulationActive, reg.Status)
}

func TestClassifyNotARegulation(t *testing.T) {
	store := &fakeRegulationStore{}
	llm := &fakeLLM{response: `{"is_regulation": false}`}
	c := NewClassifier(store, llm, 2000, nil)

	reg := c.Classify(context.Background(), processedDoc("Meeting minutes."))

	assert.Nil(t, reg)
	assert.Empty(t, store.created)
}

func TestClassifyMalformedResponse(t *testing.T) {
	store := &fakeRegulationStore{}
	llm := &fakeLLM{response: "I think this is probably a regulation."}
	c := NewClassifier(store, llm, 2000, nil)

	assert.Nil(t, c.Classify(context.Background(), processedDoc("text")))
	assert.Empty(t, store.created)
}

func TestClassifyMissingRequiredFields(t *testing.T) {
	store := &fakeRegulationStore{}
	// is_regulation true but no title.
	llm := &fakeLLM{response: `{"is_regulation": true, "type": "LAW"}`}
	c := NewClassifier(store, llm, 2000, nil)

	assert.Nil(t, c.Classify(context.Background(), processedDoc("text")))
	assert.Empty(t, store.created)
}

func TestClassifyInvalidType(t *testing.T) {
	store := &fakeRegulationStore{}
	llm := &fakeLLM{response: `{"is_regulation": true, "title": "X", "type": "MEMO"}`}
	c := NewClassifier(store, llm, 2000, nil)

	assert.Nil(t, c.Classify(context.Background(), processedDoc("text")))
	assert.Empty(t, store.created)
}

func TestClassifyLLMFailure(t *testing.T) {
	store := &fakeRegulationStore{}
	llm := &fakeLLM{err: errors.New("model unavailable")}
	c := NewClassifier(store, llm, 2000, nil)

	assert.Nil(t, c.Classify(context.Background(), processedDoc("text")))
	assert.Empty(t, store.created)
}

func TestClassifyStoreFailure(t *testing.T) {
	store := &fakeRegulationStore{err: errors.New("db down")}
	llm := &fakeLLM{response: `{"is_regulation": true, "title": "X", "type": "LAW"}`}
	c := NewClassifier(store, llm, 2000, nil)

	assert.Nil(t, c.Classify(context.Background(), processedDoc("text")))
}

func TestClassifyEmptyContent(t *testing.T) {
	llm := &fakeLLM{response: `{"is_regulation": true, "title": "X", "type": "LAW"}`}
	c := NewClassifier(&fakeRegulationStore{}, llm, 2000, nil)

	assert.Nil(t, c.Classify(context.Background(), processedDoc("")))
	assert.Empty(t, llm.lastUserPrompt)
}

func TestClassifyTruncatesContent(t *testing.T) {
	store := &fakeRegulationStore{}
	llm := &fakeLLM{response: `{"is_regulation": false}`}
	c := NewClassifier(store, llm, 50, nil)

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	c.Classify(context.Background(), processedDoc(string(long)))

	assert.LessOrEqual(t, len(llm.lastUserPrompt), 50+len("Documento: "))
}
