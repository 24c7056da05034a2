package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regulatech/oraclo/internal/core"
	"github.com/regulatech/oraclo/internal/models"
)

// fakeStore is an in-memory DocumentStore that enforces hash
// uniqueness the way the Postgres client does.
type fakeStore struct {
	mu         sync.Mutex
	docs       map[string]*models.Document
	hashes     map[string]bool
	embeddings map[string][]models.DocumentEmbedding

	failComplete bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:       map[string]*models.Document{},
		hashes:     map[string]bool{},
		embeddings: map[string][]models.DocumentEmbedding{},
	}
}

func (s *fakeStore) CreateDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.FileHash != "" && s.hashes[doc.FileHash] {
		return fmt.Errorf("%w: hash %s", core.ErrDuplicateDocument, doc.FileHash)
	}
	s.hashes[doc.FileHash] = true
	copied := *doc
	s.docs[doc.ID] = &copied
	return nil
}

func (s *fakeStore) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

func (s *fakeStore) ListDocuments(_ context.Context, _ core.DocumentFilter) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, *doc)
	}
	return out, nil
}

func (s *fakeStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	delete(s.embeddings, id)
	return nil
}

func (s *fakeStore) CompleteDocument(_ context.Context, id, content string, meta models.Metadata, embeddings []models.DocumentEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failComplete {
		return errors.New("storage unavailable")
	}
	doc, ok := s.docs[id]
	if !ok {
		return core.ErrNotFound
	}
	doc.Content = content
	doc.Metadata = meta
	doc.Status = models.StatusProcessed
	s.embeddings[id] = embeddings
	return nil
}

func (s *fakeStore) MarkDocumentError(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return core.ErrNotFound
	}
	doc.Status = models.StatusError
	if doc.Metadata == nil {
		doc.Metadata = models.Metadata{}
	}
	doc.Metadata["error"] = reason
	return nil
}

func (s *fakeStore) GetEmbeddingsByDocument(_ context.Context, documentID string) ([]models.DocumentEmbedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embeddings[documentID], nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (e *fakeExtractor) Extract(_ context.Context, _ string, _ models.DocumentType) (*core.Extraction, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &core.Extraction{Text: e.text, PageCount: 1, Language: "pt"}, nil
}

type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(len(texts[i])), 1, 0}
	}
	return vecs, nil
}

func (e *fakeEmbedder) ModelName() string { return "fake-embedder" }

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestPipeline(store core.DocumentStore, ext core.ContentExtractor, emb core.EmbeddingProvider, workers int) *Pipeline {
	return NewPipeline(store, ext, emb, PipelineConfig{
		ChunkSize:    100,
		ChunkOverlap: 20,
		EmbedBatch:   2,
		Workers:      workers,
	}, nil)
}

func TestPipelineProcessSuccess(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, &fakeExtractor{text: "A short regulatory text."}, &fakeEmbedder{}, 1)

	doc, err := p.Process(context.Background(), writeSource(t, "raw bytes"), "Notice 42")
	require.NoError(t, err)

	assert.Equal(t, "Notice 42", doc.Title)
	assert.Equal(t, models.StatusProcessed, doc.Status)
	assert.Equal(t, "A short regulatory text.", doc.Content)
	assert.Equal(t, models.TypeTXT, doc.DocumentType)
	assert.Equal(t, 1, doc.Metadata["page_count"])

	embeddings, err := store.GetEmbeddingsByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, embeddings, 1)
	assert.Equal(t, "fake-embedder", embeddings[0].ModelName)
	assert.Equal(t, doc.ID, embeddings[0].DocumentID)
}

func TestPipelineProcessDefaultsTitleToFilename(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, &fakeExtractor{text: "text"}, &fakeEmbedder{}, 1)

	doc, err := p.Process(context.Background(), writeSource(t, "raw"), "")
	require.NoError(t, err)
	assert.Equal(t, "doc.txt", doc.Title)
}

func TestPipelineRejectsDuplicateContent(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, &fakeExtractor{text: "text"}, &fakeEmbedder{}, 1)

	dir := t.TempDir()
	first := filepath.Join(dir, "a.txt")
	second := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(first, []byte("identical bytes"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("identical bytes"), 0o644))

	_, err := p.Process(context.Background(), first, "")
	require.NoError(t, err)

	_, err = p.Process(context.Background(), second, "")
	assert.True(t, errors.Is(err, core.ErrDuplicateDocument))

	// The duplicate left no second record behind.
	docs, err := store.ListDocuments(context.Background(), core.DocumentFilter{})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestPipelineMissingFile(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, &fakeExtractor{text: "text"}, &fakeEmbedder{}, 1)

	_, err := p.Process(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"), "")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestPipelineExtractionFailureLeavesErrorRecord(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, &fakeExtractor{err: errors.New("corrupt stream")}, &fakeEmbedder{}, 1)

	_, err := p.Process(context.Background(), writeSource(t, "raw"), "")

	var exErr *core.ExtractionError
	require.True(t, errors.As(err, &exErr))

	docs, listErr := store.ListDocuments(context.Background(), core.DocumentFilter{})
	require.NoError(t, listErr)
	require.Len(t, docs, 1)
	assert.Equal(t, models.StatusError, docs[0].Status)
	assert.Contains(t, docs[0].Metadata["error"], "corrupt stream")

	embeddings, _ := store.GetEmbeddingsByDocument(context.Background(), docs[0].ID)
	assert.Empty(t, embeddings)
}

func TestPipelineEmbeddingFailureLeavesErrorRecord(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, &fakeExtractor{text: "some text"}, &fakeEmbedder{err: errors.New("quota exceeded")}, 1)

	_, err := p.Process(context.Background(), writeSource(t, "raw"), "")

	var embErr *core.EmbeddingError
	require.True(t, errors.As(err, &embErr))

	docs, _ := store.ListDocuments(context.Background(), core.DocumentFilter{})
	require.Len(t, docs, 1)
	assert.Equal(t, models.StatusError, docs[0].Status)
}

func TestPipelinePersistFailureFlipsToError(t *testing.T) {
	store := newFakeStore()
	store.failComplete = true
	p := newTestPipeline(store, &fakeExtractor{text: "some text"}, &fakeEmbedder{}, 1)

	_, err := p.Process(context.Background(), writeSource(t, "raw"), "")
	require.Error(t, err)

	docs, _ := store.ListDocuments(context.Background(), core.DocumentFilter{})
	require.Len(t, docs, 1)
	assert.Equal(t, models.StatusError, docs[0].Status)
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, &fakeExtractor{text: "text"}, &fakeEmbedder{}, 2)

	good := writeSource(t, "good content")
	missing := filepath.Join(t.TempDir(), "absent.txt")

	docs := p.ProcessBatch(context.Background(), []string{good, missing})

	require.Len(t, docs, 1)
	assert.Equal(t, models.StatusProcessed, docs[0].Status)
}
