package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelStore_RoundTrip(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.SaveInput("b1", []Document{
		{Name: "My.persons", Data: []byte("<a/>")},
		{Name: "Db.books", Data: []byte("<b/>")},
	}))
	require.NoError(t, s.SaveOutput("b1", []Document{{Name: "My.persons", Data: []byte("<c/>")}}))

	in, err := s.LoadInput("b1")
	require.NoError(t, err)
	assert.Equal(t, []Document{
		{Name: "Db.books", Data: []byte("<b/>")},
		{Name: "My.persons", Data: []byte("<a/>")},
	}, in)

	out, err := s.LoadOutput("b1")
	require.NoError(t, err)
	assert.Equal(t, []Document{{Name: "My.persons", Data: []byte("<c/>")}}, out)

	ids, err := s.Batches()
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, ids)

	require.NoError(t, s.Remove("b1"))
	ids, err = s.Batches()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestModelStore_RejectsUnsafeNames(t *testing.T) {
	s := NewMemoryStore()

	for _, name := range []string{"", "..", "../escape.persons", `dir\file.books`} {
		assert.Error(t, s.SaveInput("b1", []Document{{Name: name}}), name)
	}
	assert.Error(t, s.SaveInput("../b1", nil))
	_, err := s.LoadOutput("a/b")
	assert.Error(t, err)
}

func TestModelStore_LoadMissingBatch(t *testing.T) {
	_, err := NewMemoryStore().LoadInput("nope")
	assert.Error(t, err)
}

func TestNewDiskStore(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "models")
	s, err := NewDiskStore(folder)
	require.NoError(t, err)

	require.NoError(t, s.SaveOutput("b2", []Document{{Name: "Main.library", Data: []byte("<l/>")}}))

	data, err := os.ReadFile(filepath.Join(folder, "b2", "output", "Main.library"))
	require.NoError(t, err)
	assert.Equal(t, "<l/>", string(data))
}

func TestNewModelStore_ReadOnly(t *testing.T) {
	s := NewModelStore(afero.NewReadOnlyFs(afero.NewMemMapFs()))
	assert.Error(t, s.SaveInput("b1", []Document{{Name: "a.books"}}))
}
