// Package chat answers natural-language questions over processed
// documents. A Session builds an ephemeral in-memory retrieval index;
// conversation memory is whatever history the caller resupplies per
// call, and nothing persists server-side between requests.
package chat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/regulatech/oraclo/internal/core"
	"github.com/regulatech/oraclo/internal/ingest"
	"github.com/regulatech/oraclo/internal/models"
)

// ErrEmptyIndex means no processed document contributed any text to
// search over.
var ErrEmptyIndex = errors.New("no processed documents to search")

const answerSystemPrompt = `You are an assistant for a telecommunications regulator.
Answer using only the provided document context. If the context does not contain the answer, say you cannot find it in the documents.`

// Config tunes retrieval: FetchK candidates are scored, then reranked
// down to TopK for the prompt.
type Config struct {
	TopK   int
	FetchK int
}

// Exchange is one prior question/answer pair supplied by the caller.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Source identifies a document that contributed retrieved context.
type Source struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
}

// Answer is the model's reply plus the distinct source documents.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []Source `json:"sources"`
}

type indexEntry struct {
	docID  string
	title  string
	text   string
	vector []float32
}

// Session holds the ephemeral index for one round of questioning.
type Session struct {
	embedder core.EmbeddingProvider
	llm      core.LLMProvider
	chunker  *ingest.Chunker
	cfg      Config
	log      *zap.Logger

	entries []indexEntry
}

func NewSession(embedder core.EmbeddingProvider, llm core.LLMProvider, chunker *ingest.Chunker, cfg Config, log *zap.Logger) *Session {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.FetchK < cfg.TopK {
		cfg.FetchK = cfg.TopK * 2
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{embedder: embedder, llm: llm, chunker: chunker, cfg: cfg, log: log}
}

// Build chunks and embeds the given documents into the index.
// Documents without extracted content are skipped. Embedding runs with
// bounded parallelism across documents.
func (s *Session) Build(ctx context.Context, docs []models.Document) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, doc := range docs {
		if doc.Status != models.StatusProcessed || doc.Content == "" {
			continue
		}
		g.Go(func() error {
			chunks := s.chunker.Split(doc.Content)
			if len(chunks) == 0 {
				return nil
			}
			vecs, err := s.embedder.EmbedTexts(gctx, chunks)
			if err != nil {
				return fmt.Errorf("embed document %s: %w", doc.ID, err)
			}
			if len(vecs) != len(chunks) {
				return fmt.Errorf("embed document %s: got %d vectors for %d chunks", doc.ID, len(vecs), len(chunks))
			}

			mu.Lock()
			for i, chunk := range chunks {
				s.entries = append(s.entries, indexEntry{
					docID:  doc.ID,
					title:  doc.Title,
					text:   chunk,
					vector: vecs[i],
				})
			}
			mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

// Ask retrieves the most relevant chunks for question and has the LLM
// answer from them, threading through any caller-supplied history.
func (s *Session) Ask(ctx context.Context, question string, history []Exchange) (*Answer, error) {
	if len(s.entries) == 0 {
		return nil, ErrEmptyIndex
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) == 0 {
		return nil, errors.New("embed question: empty result")
	}

	selected := s.retrieve(vecs[0])

	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, ex := range history {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", ex.Question, ex.Answer)
		}
		b.WriteString("\n")
	}
	b.WriteString("Context:\n")
	for _, e := range selected {
		fmt.Fprintf(&b, "[%s]\n%s\n---\n", e.title, e.text)
	}
	fmt.Fprintf(&b, "\nQuestion: %s", question)

	text, err := s.llm.Generate(ctx, answerSystemPrompt, b.String())
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	var sources []Source
	seen := map[string]bool{}
	for _, e := range selected {
		if !seen[e.docID] {
			seen[e.docID] = true
			sources = append(sources, Source{DocumentID: e.docID, Title: e.title})
		}
	}

	return &Answer{Text: text, Sources: sources}, nil
}

// retrieve scores every entry against the query, keeps the FetchK most
// similar, then reranks down to TopK with maximal marginal relevance so
// near-duplicate chunks don't crowd out coverage.
func (s *Session) retrieve(query []float32) []indexEntry {
	type scored struct {
		entry indexEntry
		sim   float64
	}

	candidates := make([]scored, 0, len(s.entries))
	for _, e := range s.entries {
		candidates = append(candidates, scored{entry: e, sim: cosine(query, e.vector)})
	}
	// Partial selection sort: only the FetchK best matter.
	limit := s.cfg.FetchK
	if limit > len(candidates) {
		limit = len(candidates)
	}
	for i := 0; i < limit; i++ {
		best := i
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].sim > candidates[best].sim {
				best = j
			}
		}
		candidates[i], candidates[best] = candidates[best], candidates[i]
	}
	candidates = candidates[:limit]

	// MMR: balance similarity to the query against redundancy with
	// chunks already picked.
	const lambda = 0.5
	var picked []scored
	for len(picked) < s.cfg.TopK && len(candidates) > 0 {
		bestIdx, bestScore := -1, math.Inf(-1)
		for i, c := range candidates {
			redundancy := 0.0
			for _, p := range picked {
				if sim := cosine(c.entry.vector, p.entry.vector); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*c.sim - (1-lambda)*redundancy
			if score > bestScore {
				bestIdx, bestScore = i, score
			}
		}
		picked = append(picked, candidates[bestIdx])
		candidates = append(candidates[:bestIdx], candidates[bestIdx+1:]...)
	}

	out := make([]indexEntry, len(picked))
	for i, p := range picked {
		out[i] = p.entry
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
