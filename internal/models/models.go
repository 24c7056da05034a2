package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DocumentType classifies a document by its source format.
type DocumentType string

const (
	TypePDF   DocumentType = "PDF"
	TypeDOCX  DocumentType = "DOCX"
	TypeTXT   DocumentType = "TXT"
	TypeImage DocumentType = "IMAGE"
	TypeHTML  DocumentType = "HTML"
	TypeOther DocumentType = "OTHER"
)

// DocumentStatus tracks a document through the ingestion lifecycle.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "PENDING"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusProcessed  DocumentStatus = "PROCESSED"
	StatusError      DocumentStatus = "ERROR"
)

// RegulationType identifies the kind of regulatory instrument.
type RegulationType string

const (
	RegulationLaw        RegulationType = "LAW"
	RegulationDecree     RegulationType = "DECREE"
	RegulationResolution RegulationType = "RESOLUTION"
	RegulationNormative  RegulationType = "NORMATIVE"
	RegulationPolicy     RegulationType = "POLICY"
)

// ValidRegulationType reports whether s names a known regulation type.
func ValidRegulationType(s string) bool {
	switch RegulationType(s) {
	case RegulationLaw, RegulationDecree, RegulationResolution, RegulationNormative, RegulationPolicy:
		return true
	}
	return false
}

// RegulationStatus tracks whether a regulation is currently in force.
type RegulationStatus string

const (
	RegulationActive   RegulationStatus = "ACTIVE"
	RegulationInactive RegulationStatus = "INACTIVE"
	RegulationPending  RegulationStatus = "PENDING"
	RegulationRevoked  RegulationStatus = "REVOKED"
)

// ValidRegulationStatus reports whether s names a known regulation status.
func ValidRegulationStatus(s string) bool {
	switch RegulationStatus(s) {
	case RegulationActive, RegulationInactive, RegulationPending, RegulationRevoked:
		return true
	}
	return false
}

// Metadata is a free-form key-value map stored as jsonb.
type Metadata map[string]any

// Value implements driver.Valuer for jsonb columns.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for jsonb columns.
func (m *Metadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("metadata: cannot scan %T", src)
	}
}

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Document is the root aggregate: one uploaded file plus everything
// the pipeline derived from it. FileHash is the SHA-256 hex digest of
// the raw bytes and is unique when non-empty (dedup key).
type Document struct {
	ID           string         `db:"id" json:"id"`
	Title        string         `db:"title" json:"title"`
	FilePath     string         `db:"file_path" json:"file_path"`
	Content      string         `db:"content" json:"content"`
	DocumentType DocumentType   `db:"document_type" json:"document_type"`
	Status       DocumentStatus `db:"status" json:"status"`
	FileHash     string         `db:"file_hash" json:"file_hash"`
	Metadata     Metadata       `db:"metadata" json:"metadata"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// DocumentEmbedding holds one chunk vector for a document.
// Rows are written once during ingestion and only removed when the
// parent document is deleted.
type DocumentEmbedding struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Vector     []float32 `db:"vector" json:"vector"` // pgvector column
	ModelName  string    `db:"model_name" json:"model_name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DocumentCategory forms a tree of user-assigned labels, independent
// of the ingestion lifecycle.
type DocumentCategory struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	ParentID    *string   `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Regulation records a regulatory instrument identified inside a
// document, either manually or by the classifier.
type Regulation struct {
	ID             string           `db:"id" json:"id"`
	Title          string           `db:"title" json:"title"`
	RegulationType RegulationType   `db:"regulation_type" json:"regulation_type"`
	DocumentID     string           `db:"document_id" json:"document_id"`
	EffectiveDate  *time.Time       `db:"effective_date" json:"effective_date,omitempty"`
	Status         RegulationStatus `db:"status" json:"status"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}
