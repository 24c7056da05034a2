package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/regulatech/oraclo/internal/chat"
	"github.com/regulatech/oraclo/internal/classify"
	"github.com/regulatech/oraclo/internal/config"
	"github.com/regulatech/oraclo/internal/core"
	db "github.com/regulatech/oraclo/internal/core/database"
	"github.com/regulatech/oraclo/internal/core/extract"
	"github.com/regulatech/oraclo/internal/core/llm"
	"github.com/regulatech/oraclo/internal/core/objectclient"
	"github.com/regulatech/oraclo/internal/ingest"
)

// App owns every long-lived collaborator: database, AI providers, the
// ingestion pipeline and the HTTP server built over them.
type App struct {
	DBClient   *db.DatabaseClient
	Pipeline   *ingest.Pipeline
	Classifier *classify.Classifier
	Server     *Server

	log *zap.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}
	log.Info("database initialized and bootstrapped")

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel, log)
	if err != nil {
		return nil, fmt.Errorf("embedder init: %w", err)
	}

	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel, log)
	if err != nil {
		return nil, fmt.Errorf("llm init: %w", err)
	}

	extractor := extract.NewDocconvExtractor(cfg.DefaultLanguage)

	validator := ingest.NewValidator(cfg.MaxFileSize)
	organizer, err := ingest.NewOrganizer(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("storage dir init: %w", err)
	}

	pipeline := ingest.NewPipeline(dbClient, extractor, embedder, ingest.PipelineConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		EmbedBatch:   cfg.EmbedBatch,
		Workers:      cfg.BatchWorkers,
	}, log)

	classifier := classify.NewClassifier(dbClient, llmProvider, cfg.ClassifyContentBudget, log)

	// The archive mirror only comes up when credentials are configured.
	var archive core.ObjectClient
	if cfg.AwsAccessKey != "" && cfg.AwsSecretKey != "" {
		s3Client, err := objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			return nil, fmt.Errorf("archive init: %w", err)
		}
		archive = s3Client
		log.Info("s3 archive mirror enabled", zap.String("bucket", cfg.BucketName))
	}

	chatCfg := chat.Config{TopK: cfg.TopK, FetchK: cfg.FetchK}
	chunker := ingest.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)

	server := NewServer(cfg, dbClient, validator, organizer, pipeline, classifier, embedder, llmProvider, chunker, chatCfg, archive, log)

	return &App{
		DBClient:   dbClient,
		Pipeline:   pipeline,
		Classifier: classifier,
		Server:     server,
		log:        log,
	}, nil
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
