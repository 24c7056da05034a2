package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/regulatech/oraclo/internal/core"
)

// allowedMimetypes maps a detected MIME type to the file extensions
// permitted to carry it.
var allowedMimetypes = map[string][]string{
	"application/pdf":    {".pdf"},
	"application/msword": {".doc"},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {".docx"},
	"text/plain":               {".txt"},
	"image/jpeg":               {".jpg", ".jpeg"},
	"image/png":                {".png"},
	"application/vnd.ms-excel": {".xls"},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {".xlsx"},
	"text/html": {".html", ".htm"},
}

// Validator rejects files before they enter the pipeline: missing,
// oversize, disallowed content type, extension/content mismatch, or
// unreadable. It has no side effects.
type Validator struct {
	maxFileSize int64
	allowed     map[string][]string
}

func NewValidator(maxFileSize int64) *Validator {
	return &Validator{maxFileSize: maxFileSize, allowed: allowedMimetypes}
}

// Validate returns nil for an acceptable file and *core.InvalidFileError
// with a reason otherwise. Unexpected I/O failures become validation
// failures too; nothing is raised to the caller.
func (v *Validator) Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &core.InvalidFileError{Reason: "file not found"}
		}
		return &core.InvalidFileError{Reason: fmt.Sprintf("stat failed: %v", err)}
	}

	if info.Size() > v.maxFileSize {
		return &core.InvalidFileError{
			Reason: fmt.Sprintf("file too large: maximum allowed is %dMB", v.maxFileSize/1024/1024),
		}
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return &core.InvalidFileError{Reason: fmt.Sprintf("content type detection failed: %v", err)}
	}

	extensions, ok := v.allowedFor(mtype)
	if !ok {
		return &core.InvalidFileError{Reason: fmt.Sprintf("file type not allowed: %s", mtype.String())}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(extensions, ext) {
		return &core.InvalidFileError{Reason: "file extension does not match content type"}
	}

	if err := checkReadable(path); err != nil {
		return &core.InvalidFileError{Reason: fmt.Sprintf("file corrupted or unreadable: %v", err)}
	}

	return nil
}

// allowedFor matches the detected type against the allow-list.
// mimetype.Is handles aliases and charset parameters.
func (v *Validator) allowedFor(mtype *mimetype.MIME) ([]string, bool) {
	for mime, extensions := range v.allowed {
		if mtype.Is(mime) {
			return extensions, true
		}
	}
	return nil, false
}

// checkReadable does a bounded read from the start of the file.
func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, 1024)
	if _, err := f.Read(buf); err != nil && err != io.EOF {
		return err
	}
	return nil
}
