package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regulatech/oraclo/internal/core"
)

func TestOrganizerCopiesIntoDatedLayout(t *testing.T) {
	base := t.TempDir()
	org, err := NewOrganizer(base)
	require.NoError(t, err)

	source := filepath.Join(t.TempDir(), "Resolução Nº 42.txt")
	require.NoError(t, os.WriteFile(source, []byte("conteúdo"), 0o644))

	dest, err := org.Organize(source, "resolutions")
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "conteúdo", string(data))

	// Source is preserved.
	_, err = os.Stat(source)
	assert.NoError(t, err)

	now := time.Now()
	wantDir := filepath.Join(base, fmt.Sprintf("%d", now.Year()), fmt.Sprintf("%02d", now.Month()), "resolutions")
	assert.Equal(t, wantDir, filepath.Dir(dest))

	name := filepath.Base(dest)
	assert.Regexp(t, `^resolu-o-n-42_\d{8}_\d{6}\.txt$`, name)
}

func TestOrganizerDefaultsCategory(t *testing.T) {
	org, err := NewOrganizer(t.TempDir())
	require.NoError(t, err)

	source := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(source, []byte("x"), 0o644))

	dest, err := org.Organize(source, "")
	require.NoError(t, err)
	assert.Equal(t, "general", filepath.Base(filepath.Dir(dest)))
}

func TestOrganizerMissingSource(t *testing.T) {
	org, err := NewOrganizer(t.TempDir())
	require.NoError(t, err)

	_, err = org.Organize(filepath.Join(t.TempDir(), "absent.pdf"), "")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Lei Geral de Telecomunicações": "lei-geral-de-telecomunica-es",
		"  spaced   out  ":              "spaced-out",
		"UPPER_case.file":               "upper-case-file",
		"!!!":                           "document",
		"":                              "document",
	}
	for in, want := range cases {
		assert.Equal(t, want, slugify(in), "slugify(%q)", in)
	}
}
