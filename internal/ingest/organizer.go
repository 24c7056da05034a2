package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/regulatech/oraclo/internal/core"
)

// Organizer relocates accepted uploads into a deterministic layout:
//
//	<base>/<year>/<month>/<category>/<slug>_<timestamp><ext>
//
// The timestamp has second granularity; two same-named uploads within
// the same second overwrite each other, which is tolerable because
// byte-identical content is already rejected upstream by hash dedup.
type Organizer struct {
	baseDir string
}

func NewOrganizer(baseDir string) (*Organizer, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base dir: %w", err)
	}
	return &Organizer{baseDir: baseDir}, nil
}

// GeneratePath derives the destination for an original filename and
// category, creating intermediate directories. Re-creating existing
// directories is not an error.
func (o *Organizer) GeneratePath(originalName, category string) (string, error) {
	if category == "" {
		category = "general"
	}

	now := time.Now()
	dir := filepath.Join(o.baseDir, fmt.Sprintf("%d", now.Year()), fmt.Sprintf("%02d", now.Month()), category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create category dir: %w", err)
	}

	ext := filepath.Ext(originalName)
	base := strings.TrimSuffix(filepath.Base(originalName), ext)
	name := fmt.Sprintf("%s_%s%s", slugify(base), now.Format("20060102_150405"), ext)

	return filepath.Join(dir, name), nil
}

// Organize copies source into the derived destination and returns the
// destination path. The source file is preserved.
func (o *Organizer) Organize(source, category string) (string, error) {
	src, err := os.Open(source)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", core.ErrNotFound, source)
		}
		return "", fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	dest, err := o.GeneratePath(filepath.Base(source), category)
	if err != nil {
		return "", err
	}

	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copy file: %w", err)
	}

	return dest, nil
}

// slugify lowercases the name and keeps only alphanumerics and
// hyphens, collapsing runs of anything else into single hyphens.
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "document"
	}
	return out
}
