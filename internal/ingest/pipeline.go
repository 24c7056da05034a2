package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/regulatech/oraclo/internal/core"
	"github.com/regulatech/oraclo/internal/models"
)

// typeByExtension is the fixed extension-to-type mapping. Unrecognized
// extensions map to OTHER, never to an error.
var typeByExtension = map[string]models.DocumentType{
	".pdf":  models.TypePDF,
	".docx": models.TypeDOCX,
	".txt":  models.TypeTXT,
	".jpg":  models.TypeImage,
	".jpeg": models.TypeImage,
	".png":  models.TypeImage,
	".html": models.TypeHTML,
}

// PipelineConfig tunes ingestion.
//
// ChunkSize:    target characters per chunk.
// ChunkOverlap: characters shared between consecutive chunks (< ChunkSize).
// EmbedBatch:   chunks embedded per provider call.
// Workers:      parallelism for ProcessBatch; 1 means sequential.
type PipelineConfig struct {
	ChunkSize    int
	ChunkOverlap int
	EmbedBatch   int
	Workers      int
}

// Pipeline orchestrates ingestion: hash/dedup, type detection,
// extraction, chunking, embedding, and persistence. One document per
// Process call; the store guarantees that either the document lands in
// PROCESSED state with all its embeddings, or in ERROR state with none.
type Pipeline struct {
	store     core.DocumentStore
	extractor core.ContentExtractor
	embedder  core.EmbeddingProvider
	chunker   *Chunker
	cfg       PipelineConfig
	log       *zap.Logger
}

func NewPipeline(store core.DocumentStore, extractor core.ContentExtractor, embedder core.EmbeddingProvider, cfg PipelineConfig, log *zap.Logger) *Pipeline {
	if cfg.EmbedBatch <= 0 {
		cfg.EmbedBatch = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		store:     store,
		extractor: extractor,
		embedder:  embedder,
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:       cfg,
		log:       log,
	}
}

// Process ingests a single file and returns the resulting document.
//
// Expected failures surface as core.ErrNotFound (missing source, no
// record created) and core.ErrDuplicateDocument (hash already known,
// no record created). Capability failures after record creation flip
// the document to ERROR with the reason in metadata, then return the
// wrapped fault; the record stays behind as an audit trail.
func (p *Pipeline) Process(ctx context.Context, filePath, title string) (*models.Document, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, filePath)
	}

	hash, err := hashFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("hash file: %w", err)
	}

	if title == "" {
		title = filepath.Base(filePath)
	}

	now := time.Now()
	doc := &models.Document{
		ID:           uuid.NewString(),
		Title:        title,
		FilePath:     filePath,
		DocumentType: detectDocumentType(filePath),
		Status:       models.StatusProcessing,
		FileHash:     hash,
		Metadata:     models.Metadata{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The record is created before any expensive extraction so that
	// in-flight state is observable; the store's unique constraint on
	// file_hash resolves concurrent duplicates atomically.
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	extraction, err := p.extractor.Extract(ctx, filePath, doc.DocumentType)
	if err != nil {
		return nil, p.fail(ctx, doc, &core.ExtractionError{Path: filePath, Err: err})
	}

	chunks := p.chunker.Split(extraction.Text)

	embeddings, err := p.embedChunks(ctx, doc.ID, chunks)
	if err != nil {
		return nil, p.fail(ctx, doc, err)
	}

	meta := models.Metadata{
		"page_count": extraction.PageCount,
		"has_images": extraction.HasImages,
		"has_tables": extraction.HasTables,
		"language":   extraction.Language,
	}

	if err := p.store.CompleteDocument(ctx, doc.ID, extraction.Text, meta, embeddings); err != nil {
		return nil, p.fail(ctx, doc, fmt.Errorf("persist result: %w", err))
	}

	doc.Content = extraction.Text
	doc.Metadata = meta
	doc.Status = models.StatusProcessed

	p.log.Info("document processed",
		zap.String("document_id", doc.ID),
		zap.String("type", string(doc.DocumentType)),
		zap.Int("chunks", len(chunks)),
	)
	return doc, nil
}

// ProcessBatch ingests each path independently. A failing path is
// logged and excluded from the result; it never aborts the rest.
// Workers > 1 opts into parallel ingestion; items share no state.
func (p *Pipeline) ProcessBatch(ctx context.Context, paths []string) []*models.Document {
	results := make([]*models.Document, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, path := range paths {
		g.Go(func() error {
			doc, err := p.Process(gctx, path, "")
			if err != nil {
				p.log.Error("batch item failed", zap.String("path", path), zap.Error(err))
				return nil
			}
			mu.Lock()
			results[i] = doc
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*models.Document, 0, len(paths))
	for _, doc := range results {
		if doc != nil {
			out = append(out, doc)
		}
	}
	return out
}

// embedChunks embeds chunks in batches and builds the rows persisted
// alongside the document.
func (p *Pipeline) embedChunks(ctx context.Context, docID string, chunks []string) ([]models.DocumentEmbedding, error) {
	embeddings := make([]models.DocumentEmbedding, 0, len(chunks))

	for start := 0; start < len(chunks); start += p.cfg.EmbedBatch {
		end := start + p.cfg.EmbedBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vecs, err := p.embedder.EmbedTexts(ctx, batch)
		if err != nil {
			return nil, &core.EmbeddingError{Err: err}
		}
		if len(vecs) != len(batch) {
			return nil, &core.EmbeddingError{Err: fmt.Errorf("size mismatch: got %d vectors for %d chunks", len(vecs), len(batch))}
		}

		for _, vec := range vecs {
			embeddings = append(embeddings, models.DocumentEmbedding{
				ID:         uuid.NewString(),
				DocumentID: docID,
				Vector:     vec,
				ModelName:  p.embedder.ModelName(),
				CreatedAt:  time.Now(),
			})
		}
	}

	return embeddings, nil
}

// fail records the failure on the document and hands the original
// error back to the caller.
func (p *Pipeline) fail(ctx context.Context, doc *models.Document, cause error) error {
	if err := p.store.MarkDocumentError(ctx, doc.ID, cause.Error()); err != nil {
		p.log.Error("mark document error failed", zap.String("document_id", doc.ID), zap.Error(err))
	}
	p.log.Error("document processing failed",
		zap.String("document_id", doc.ID),
		zap.String("path", doc.FilePath),
		zap.Error(cause),
	)
	return cause
}

// hashFile streams the file through SHA-256 in fixed-size blocks so
// memory stays bounded regardless of file size.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 4096)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func detectDocumentType(path string) models.DocumentType {
	if t, ok := typeByExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return models.TypeOther
}
