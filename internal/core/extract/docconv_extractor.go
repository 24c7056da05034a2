// Package extract implements the content-extraction capability with
// sajari/docconv, which handles PDF (pdftotext + OCR), DOCX, plain
// text, images (tesseract) and HTML behind one Convert call.
package extract

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"code.sajari.com/docconv"

	"github.com/regulatech/oraclo/internal/core"
	"github.com/regulatech/oraclo/internal/models"
)

var _ core.ContentExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor converts files to normalized text plus structural
// metadata. defaultLanguage fills the language field when conversion
// metadata carries none.
type DocconvExtractor struct {
	defaultLanguage string
}

func NewDocconvExtractor(defaultLanguage string) *DocconvExtractor {
	if defaultLanguage == "" {
		defaultLanguage = "pt"
	}
	return &DocconvExtractor{defaultLanguage: defaultLanguage}
}

func (e *DocconvExtractor) Extract(ctx context.Context, path string, docType models.DocumentType) (*core.Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	res, err := docconv.Convert(f, docconv.MimeTypeByExtension(path), true)
	if err != nil {
		return nil, fmt.Errorf("docconv: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(res.Body)
	if text == "" {
		return nil, fmt.Errorf("docconv: no text extracted from %s", path)
	}

	return &core.Extraction{
		Text:      text,
		PageCount: pageCount(res.Meta),
		HasImages: docType == models.TypeImage,
		HasTables: hasTables(text),
		Language:  e.language(res.Meta),
	}, nil
}

func pageCount(meta map[string]string) int {
	for _, key := range []string{"PageCount", "Pages"} {
		if v, ok := meta[key]; ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				return n
			}
		}
	}
	return 1
}

func (e *DocconvExtractor) language(meta map[string]string) string {
	if v, ok := meta["Language"]; ok && v != "" {
		return v
	}
	return e.defaultLanguage
}

// hasTables is a cheap structural heuristic: several lines that look
// like delimited rows (tabs or pipe-separated cells).
func hasTables(text string) bool {
	rows := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.Count(line, "\t") >= 2 || strings.Count(line, "|") >= 2 {
			rows++
			if rows >= 3 {
				return true
			}
		}
	}
	return false
}
