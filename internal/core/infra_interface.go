package core

import (
	"context"

	"github.com/regulatech/oraclo/internal/models"
)

// DocumentFilter narrows ListDocuments. Zero values mean "no filter".
type DocumentFilter struct {
	Type   models.DocumentType
	Status models.DocumentStatus
	Query  string // matched against title and content
	IDs    []string
}

// DocumentStore is the persistence surface the ingestion pipeline and
// QA session depend on. CreateDocument must enforce hash uniqueness
// atomically and return ErrDuplicateDocument on violation.
// CompleteDocument commits content, metadata, PROCESSED status and all
// embeddings in a single transaction so that failed runs never leave
// partial embeddings behind.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	CompleteDocument(ctx context.Context, id, content string, meta models.Metadata, embeddings []models.DocumentEmbedding) error
	MarkDocumentError(ctx context.Context, id, reason string) error

	GetEmbeddingsByDocument(ctx context.Context, documentID string) ([]models.DocumentEmbedding, error)
}

// CategoryStore persists the user-managed category tree.
type CategoryStore interface {
	CreateCategory(ctx context.Context, cat *models.DocumentCategory) error
	ListCategories(ctx context.Context) ([]models.DocumentCategory, error)
	DeleteCategory(ctx context.Context, id string) error
}

// RegulationStore persists regulations, whether classifier-produced or
// manually created.
type RegulationStore interface {
	CreateRegulation(ctx context.Context, reg *models.Regulation) error
	ListRegulations(ctx context.Context) ([]models.Regulation, error)
	ListRegulationsByDocument(ctx context.Context, documentID string) ([]models.Regulation, error)
}

// UserStore persists accounts for the auth layer.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// DbClient is the full persistence capability implemented by the
// Postgres client. Services depend on the narrow slices above, not on
// this aggregate.
type DbClient interface {
	DocumentStore
	CategoryStore
	RegulationStore
	UserStore

	Close() error
}

// EmbeddingProvider maps text chunks to fixed-length vectors.
// ModelName identifies the producing model and is stored alongside
// every vector.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// LLMProvider generates text from a system instruction plus a user
// prompt. Callers asking for structured output must tolerate the model
// occasionally failing to produce it.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Extraction is the normalized result of content extraction.
type Extraction struct {
	Text      string
	PageCount int
	HasImages bool
	HasTables bool
	Language  string
}

// ContentExtractor turns a raw file into normalized text plus
// structural metadata. The declared type hints the parsing strategy.
type ContentExtractor interface {
	Extract(ctx context.Context, path string, docType models.DocumentType) (*Extraction, error)
}

// ObjectClient mirrors organized files to object storage. It is an
// optional collaborator; the pipeline itself never depends on it.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	GetFile(ctx context.Context, key string) ([]byte, error)
	DeleteFile(ctx context.Context, key string) error
}
