package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindModelFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.persons", "a.BOOKS", "notes.txt", "sub/c.library", "sub/deeper/d.persons"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("<x/>"), 0o644))
	}

	files, err := FindModelFiles(dir, []string{"persons", "books", "library"})
	require.NoError(t, err)

	rel := make([]string, len(files))
	for i, f := range files {
		r, err := filepath.Rel(dir, f)
		require.NoError(t, err)
		rel[i] = filepath.ToSlash(r)
	}
	assert.Equal(t, []string{"a.BOOKS", "b.persons", "sub/c.library", "sub/deeper/d.persons"}, rel)
}

func TestFindModelFiles_MissingDir(t *testing.T) {
	_, err := FindModelFiles(filepath.Join(t.TempDir(), "nope"), []string{"persons"})
	assert.Error(t, err)
}
