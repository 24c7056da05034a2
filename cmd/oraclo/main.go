// Command oraclo is the operator CLI: batch document ingestion and
// regulation classification without going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/regulatech/oraclo/internal/classify"
	"github.com/regulatech/oraclo/internal/config"
	db "github.com/regulatech/oraclo/internal/core/database"
	"github.com/regulatech/oraclo/internal/core/extract"
	"github.com/regulatech/oraclo/internal/core/llm"
	"github.com/regulatech/oraclo/internal/ingest"
	"github.com/regulatech/oraclo/pkg/logger"
)

var (
	ingestCategory string
	ingestWorkers  int
)

var rootCmd = &cobra.Command{
	Use:   "oraclo",
	Short: "Document management for telecom regulation",
	Long: `Oraclo ingests regulatory documents, extracts and embeds their
content, and classifies regulatory instruments.`,
	SilenceUsage: true,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Validate, organize and process documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [document-id]",
	Short: "Run the regulation classifier over a processed document",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassify,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCategory, "category", "", "category directory for organized files")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "parallel workers (0 = use BATCH_WORKERS)")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(classifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runtime bundles the collaborators both subcommands need.
type runtime struct {
	cfg        *config.Config
	log        *zap.Logger
	db         *db.DatabaseClient
	pipeline   *ingest.Pipeline
	classifier *classify.Classifier
	validator  *ingest.Validator
	organizer  *ingest.Organizer
}

func bootstrap(ctx context.Context) (*runtime, error) {
	cfg := config.LoadConfig()

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}

	dbClient, err := db.NewDatabaseClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}

	embedder, err := llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel, zlog)
	if err != nil {
		return nil, fmt.Errorf("embedder init: %w", err)
	}

	llmProvider, err := llm.NewGeminiLLM(ctx, cfg.AIAPIKey, cfg.GenModel, zlog)
	if err != nil {
		return nil, fmt.Errorf("llm init: %w", err)
	}

	organizer, err := ingest.NewOrganizer(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("storage dir init: %w", err)
	}

	workers := cfg.BatchWorkers
	if ingestWorkers > 0 {
		workers = ingestWorkers
	}

	pipeline := ingest.NewPipeline(dbClient, extract.NewDocconvExtractor(cfg.DefaultLanguage), embedder, ingest.PipelineConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		EmbedBatch:   cfg.EmbedBatch,
		Workers:      workers,
	}, zlog)

	return &runtime{
		cfg:        cfg,
		log:        zlog,
		db:         dbClient,
		pipeline:   pipeline,
		classifier: classify.NewClassifier(dbClient, llmProvider, cfg.ClassifyContentBudget, zlog),
		validator:  ingest.NewValidator(cfg.MaxFileSize),
		organizer:  organizer,
	}, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	// Validate and organize up front so the batch only contains files
	// that belong in the document tree.
	var organized []string
	for _, path := range args {
		if err := rt.validator.Validate(path); err != nil {
			rt.log.Warn("skipping invalid file", zap.String("path", path), zap.Error(err))
			continue
		}
		dest, err := rt.organizer.Organize(path, ingestCategory)
		if err != nil {
			rt.log.Warn("skipping file, organize failed", zap.String("path", path), zap.Error(err))
			continue
		}
		organized = append(organized, dest)
	}
	if len(organized) == 0 {
		return errors.New("no valid files to ingest")
	}

	docs := rt.pipeline.ProcessBatch(ctx, organized)
	cmd.Printf("processed %d of %d files\n", len(docs), len(args))
	for _, doc := range docs {
		cmd.Printf("  %s  %s\n", doc.ID, doc.Title)
	}
	if len(docs) < len(organized) {
		return fmt.Errorf("%d files failed, see logs", len(organized)-len(docs))
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	doc, err := rt.db.GetDocumentByID(ctx, args[0])
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document %s not found", args[0])
	}

	reg := rt.classifier.Classify(ctx, doc)
	if reg == nil {
		cmd.Println("not identified as a regulation")
		return nil
	}

	out, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}
