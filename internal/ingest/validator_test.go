package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regulatech/oraclo/internal/core"
)

// Minimal valid PNG header plus IHDR, enough for content detection.
var pngBytes = []byte{
	0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x02, 0x00, 0x00, 0x00,
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestValidatorAcceptsPlainText(t *testing.T) {
	v := NewValidator(1024 * 1024)
	path := writeFile(t, "notice.txt", []byte("A public consultation on spectrum allocation."))

	assert.NoError(t, v.Validate(path))
}

func TestValidatorAcceptsPNG(t *testing.T) {
	v := NewValidator(1024 * 1024)
	path := writeFile(t, "scan.png", pngBytes)

	assert.NoError(t, v.Validate(path))
}

func TestValidatorRejectsMissingFile(t *testing.T) {
	v := NewValidator(1024 * 1024)

	err := v.Validate(filepath.Join(t.TempDir(), "nope.pdf"))

	var invalid *core.InvalidFileError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "file not found", invalid.Reason)
}

func TestValidatorRejectsOversizeFile(t *testing.T) {
	v := NewValidator(10)
	path := writeFile(t, "big.txt", []byte("this file is larger than ten bytes"))

	err := v.Validate(path)

	var invalid *core.InvalidFileError
	require.True(t, errors.As(err, &invalid))
	assert.Contains(t, invalid.Reason, "file too large")
}

func TestValidatorRejectsExtensionMismatch(t *testing.T) {
	v := NewValidator(1024 * 1024)
	// PNG content wearing a .txt extension.
	path := writeFile(t, "disguised.txt", pngBytes)

	err := v.Validate(path)

	var invalid *core.InvalidFileError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "file extension does not match content type", invalid.Reason)
}

func TestValidatorRejectsDisallowedType(t *testing.T) {
	v := NewValidator(1024 * 1024)
	// A zip archive is not in the allow-list.
	path := writeFile(t, "archive.zip", []byte{'P', 'K', 0x03, 0x04, 0x14, 0x00, 0x00, 0x00, 0x00, 0x00})

	err := v.Validate(path)

	var invalid *core.InvalidFileError
	require.True(t, errors.As(err, &invalid))
	assert.Contains(t, invalid.Reason, "file type not allowed")
}
