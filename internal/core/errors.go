package core

import (
	"errors"
	"fmt"
)

// Expected outcomes. Callers match these with errors.Is and branch
// without parsing messages.
var (
	// ErrNotFound means the source file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrDuplicateDocument means a document with the same content hash
	// already exists. The store maps its unique-constraint violation to
	// this sentinel, so concurrent uploads of identical bytes resolve to
	// exactly one success.
	ErrDuplicateDocument = errors.New("duplicate document")
)

// InvalidFileError reports a file rejected by validation before any
// record was created.
type InvalidFileError struct {
	Reason string
}

func (e *InvalidFileError) Error() string {
	return "invalid file: " + e.Reason
}

// ExtractionError wraps a content-extraction capability failure.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError wraps an embedding capability failure.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }
