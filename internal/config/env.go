package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	Port        string
	JWTSecret   string

	AIAPIKey   string
	EmbedModel string
	GenModel   string

	// Ingestion tuning.
	StorageDir   string
	MaxFileSize  int64 // bytes
	ChunkSize    int   // target characters per chunk
	ChunkOverlap int   // characters shared between consecutive chunks
	EmbedBatch   int   // chunks embedded per provider call
	BatchWorkers int   // parallelism for batch ingestion (1 = sequential)

	// QA retrieval tuning.
	TopK   int
	FetchK int

	// Classifier.
	ClassifyContentBudget int
	DefaultLanguage       string

	// Optional S3 archive mirror.
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	LogLevel  string
	LogFormat string
}

// LoadConfig loads the environment variables and returns config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		AIAPIKey:   getEnv("GEMINI_API_KEY", ""),
		EmbedModel: getEnv("EMBED_MODEL", "text-embedding-004"),
		GenModel:   getEnv("GEN_MODEL", "gemini-1.5-flash"),

		StorageDir:   getEnv("STORAGE_DIR", "./data/documents"),
		MaxFileSize:  getEnvInt64("MAX_FILE_SIZE", 100*1024*1024),
		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		EmbedBatch:   getEnvInt("EMBED_BATCH", 16),
		BatchWorkers: getEnvInt("BATCH_WORKERS", 1),

		TopK:   getEnvInt("TOP_K", 5),
		FetchK: getEnvInt("FETCH_K", 10),

		ClassifyContentBudget: getEnvInt("CLASSIFY_CONTENT_BUDGET", 2000),
		DefaultLanguage:       getEnv("DEFAULT_LANGUAGE", "pt"),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "oraclo-archive"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		log.Fatalf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvInt64(key string, def int64) int64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
