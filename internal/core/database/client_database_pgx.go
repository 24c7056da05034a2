package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/regulatech/oraclo/internal/config"
	"github.com/regulatech/oraclo/internal/core"
	"github.com/regulatech/oraclo/internal/models"
)

var _ core.DbClient = (*DatabaseClient)(nil)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, constraint)
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()), COALESCE($6, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.FirstName, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Documents

// CreateDocument inserts the row created at the start of ingestion.
// The partial unique index on file_hash is the dedup authority: a
// violation maps to core.ErrDuplicateDocument, so a race between two
// identical uploads resolves to one success and one duplicate.
func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, title, file_path, content, document_type, status, file_hash, metadata, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), COALESCE($10, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.Title, doc.FilePath, doc.Content, doc.DocumentType, doc.Status,
		doc.FileHash, doc.Metadata, doc.CreatedAt, doc.UpdatedAt)
	if isUniqueViolation(err, "documents_file_hash_key") {
		return fmt.Errorf("%w: hash %s", core.ErrDuplicateDocument, doc.FileHash)
	}
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, title, file_path, content, document_type, status, file_hash, metadata, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.Title, &d.FilePath, &d.Content, &d.DocumentType, &d.Status,
		&d.FileHash, &d.Metadata, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) ListDocuments(ctx context.Context, filter core.DocumentFilter) ([]models.Document, error) {
	q := `
		SELECT id, title, file_path, content, document_type, status, file_hash, metadata, created_at, updated_at
		FROM documents
	`
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Type != "" {
		where = append(where, "document_type = "+arg(filter.Type))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}
	if filter.Query != "" {
		p := arg("%" + filter.Query + "%")
		where = append(where, fmt.Sprintf("(title ILIKE %s OR content ILIKE %s)", p, p))
	}
	if len(filter.IDs) > 0 {
		ph := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			ph[i] = arg(id)
		}
		where = append(where, "id IN ("+strings.Join(ph, ", ")+")")
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC"

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.Title, &d.FilePath, &d.Content, &d.DocumentType, &d.Status,
			&d.FileHash, &d.Metadata, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDocument removes the document; embeddings and regulations go
// with it via ON DELETE CASCADE.
func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

// CompleteDocument commits the successful end of a pipeline run in one
// transaction: extracted content, metadata, PROCESSED status and every
// embedding row. Either all of it lands or none of it does.
func (c *DatabaseClient) CompleteDocument(ctx context.Context, id, content string, meta models.Metadata, embeddings []models.DocumentEmbedding) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const updateQ = `
		UPDATE documents
		SET content = $2, metadata = $3, status = $4, updated_at = now()
		WHERE id = $1
	`
	res, err := tx.ExecContext(ctx, updateQ, id, content, meta, models.StatusProcessed)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("document not found: %s", id)
	}

	const insertQ = `
		INSERT INTO document_embeddings (id, document_id, vector, model_name, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`
	stmt, err := tx.PrepareContext(ctx, insertQ)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range embeddings {
		e := &embeddings[i]
		vec := pgvector.NewVector(e.Vector)
		if _, err := stmt.ExecContext(ctx, e.ID, e.DocumentID, vec, e.ModelName, e.CreatedAt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// MarkDocumentError flips a document to ERROR, recording the failure
// reason in its metadata so the record serves as an audit trail.
func (c *DatabaseClient) MarkDocumentError(ctx context.Context, id, reason string) error {
	const q = `
		UPDATE documents
		SET status = $2, metadata = jsonb_build_object('error', $3::text), updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, models.StatusError, reason)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) GetEmbeddingsByDocument(ctx context.Context, documentID string) ([]models.DocumentEmbedding, error) {
	const q = `
		SELECT id, document_id, vector, model_name, created_at
		FROM document_embeddings
		WHERE document_id = $1
		ORDER BY created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentEmbedding
	for rows.Next() {
		var (
			e   models.DocumentEmbedding
			vec pgvector.Vector
		)
		if err := rows.Scan(&e.ID, &e.DocumentID, &vec, &e.ModelName, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Vector = vec.Slice()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Categories

func (c *DatabaseClient) CreateCategory(ctx context.Context, cat *models.DocumentCategory) error {
	if cat == nil {
		return errors.New("nil category")
	}
	const q = `
		INSERT INTO document_categories (id, name, description, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()), COALESCE($6, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		cat.ID, cat.Name, cat.Description, cat.ParentID, cat.CreatedAt, cat.UpdatedAt)
	if isUniqueViolation(err, "document_categories_name_key") {
		return fmt.Errorf("category %q already exists", cat.Name)
	}
	return err
}

func (c *DatabaseClient) ListCategories(ctx context.Context) ([]models.DocumentCategory, error) {
	const q = `
		SELECT id, name, description, parent_id, created_at, updated_at
		FROM document_categories
		ORDER BY name ASC
	`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentCategory
	for rows.Next() {
		var cat models.DocumentCategory
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Description, &cat.ParentID, &cat.CreatedAt, &cat.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, rows.Err()
}

// DeleteCategory removes a category; children cascade with it.
func (c *DatabaseClient) DeleteCategory(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM document_categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("category not found: %s", id)
	}
	return nil
}

// Regulations

func (c *DatabaseClient) CreateRegulation(ctx context.Context, reg *models.Regulation) error {
	if reg == nil {
		return errors.New("nil regulation")
	}
	const q = `
		INSERT INTO regulations (id, title, regulation_type, document_id, effective_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()), COALESCE($8, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		reg.ID, reg.Title, reg.RegulationType, reg.DocumentID, reg.EffectiveDate,
		reg.Status, reg.CreatedAt, reg.UpdatedAt)
	return err
}

func (c *DatabaseClient) ListRegulations(ctx context.Context) ([]models.Regulation, error) {
	const q = `
		SELECT id, title, regulation_type, document_id, effective_date, status, created_at, updated_at
		FROM regulations
		ORDER BY effective_date DESC NULLS LAST, created_at DESC
	`
	return c.queryRegulations(ctx, q)
}

func (c *DatabaseClient) ListRegulationsByDocument(ctx context.Context, documentID string) ([]models.Regulation, error) {
	const q = `
		SELECT id, title, regulation_type, document_id, effective_date, status, created_at, updated_at
		FROM regulations
		WHERE document_id = $1
		ORDER BY effective_date DESC NULLS LAST, created_at DESC
	`
	return c.queryRegulations(ctx, q, documentID)
}

func (c *DatabaseClient) queryRegulations(ctx context.Context, q string, args ...any) ([]models.Regulation, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Regulation
	for rows.Next() {
		var r models.Regulation
		if err := rows.Scan(&r.ID, &r.Title, &r.RegulationType, &r.DocumentID, &r.EffectiveDate, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
