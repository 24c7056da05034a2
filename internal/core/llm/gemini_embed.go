package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/regulatech/oraclo/internal/core"
	"github.com/regulatech/oraclo/pkg/retry"
)

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)

type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
	retryCfg  retry.Config
}

func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string, log *zap.Logger) (*GeminiEmbedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	cfg := retry.DefaultConfig()
	cfg.Logger = log
	return &GeminiEmbedder{client: cl, modelName: modelName, retryCfg: cfg}, nil
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// ModelName reports the identifier stored alongside every vector.
func (g *GeminiEmbedder) ModelName() string { return g.modelName }

// EmbedTexts batches all texts in one request via BatchEmbedContents,
// retrying transient API failures.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := g.client.EmbeddingModel(g.modelName)

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := retry.DoWithResult(ctx, g.retryCfg, func() (*genai.BatchEmbedContentsResponse, error) {
		return em.BatchEmbedContents(ctx, batch)
	})
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}
