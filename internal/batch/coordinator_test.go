package batch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conduit-lang/modelmig/internal/metamodel"
	"github.com/conduit-lang/modelmig/internal/migerr"
	"github.com/conduit-lang/modelmig/internal/steps"
)

func newCoordinator(t *testing.T, opts ...Option) *Coordinator {
	t.Helper()
	registry, err := metamodel.Default()
	require.NoError(t, err)
	return NewCoordinator(registry, append([]Option{WithLogger(zap.NewNop())}, opts...)...)
}

func readFiles(t *testing.T, dir string, names ...string) []File {
	t.Helper()
	files := make([]File, len(names))
	for i, name := range names {
		data, err := os.ReadFile(filepath.Join("testdata", dir, name))
		require.NoError(t, err)
		files[i] = File{Name: name, Data: data}
	}
	return files
}

func byName(files []File) map[string]string {
	out := make(map[string]string, len(files))
	for _, f := range files {
		out[f.Name] = string(f.Data)
	}
	return out
}

func names(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func TestMigrateBatch_Golden(t *testing.T) {
	c := newCoordinator(t)
	input := readFiles(t, "input", "Main.library", "My.persons", "Db.books")

	outcome, err := c.MigrateBatch(input)
	require.NoError(t, err)

	// referenced kinds first, input order within a tier
	assert.Equal(t, []string{"My.persons", "Db.books", "Main.library"}, names(outcome.Files))

	for _, f := range outcome.Files {
		want, err := os.ReadFile(filepath.Join("testdata", "expected", f.Name))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(f.Data), f.Name)
	}

	require.Len(t, outcome.Reports, 3)
	assert.Equal(t, Report{
		Filename:      "Main.library",
		Kind:          "library",
		SourceVersion: "1.0",
		TargetVersion: "2.0",
		Tier:          1,
		Steps:         4,
	}, outcome.Reports[2])
}

func TestMigrateBatch_OrderInvariant(t *testing.T) {
	c := newCoordinator(t)
	orders := [][]string{
		{"My.persons", "Db.books", "Main.library"},
		{"Main.library", "Db.books", "My.persons"},
		{"Db.books", "Main.library", "My.persons"},
	}

	var first map[string]string
	for _, order := range orders {
		outcome, err := c.MigrateBatch(readFiles(t, "input", order...))
		require.NoError(t, err)
		got := byName(outcome.Files)
		if first == nil {
			first = got
			continue
		}
		assert.Equal(t, first, got, "order %v", order)
	}
}

func TestMigrateBatch_Deterministic(t *testing.T) {
	input := readFiles(t, "input", "My.persons", "Db.books", "Main.library")

	a, err := newCoordinator(t, WithWorkers(1)).MigrateBatch(input)
	require.NoError(t, err)
	b, err := newCoordinator(t, WithWorkers(8)).MigrateBatch(input)
	require.NoError(t, err)

	assert.Equal(t, a.Files, b.Files)
}

func TestMigrateBatch_Idempotent(t *testing.T) {
	c := newCoordinator(t)
	first, err := c.MigrateBatch(readFiles(t, "input", "My.persons", "Db.books", "Main.library"))
	require.NoError(t, err)

	second, err := c.MigrateBatch(first.Files)
	require.NoError(t, err)

	assert.Equal(t, first.Files, second.Files)
	for _, r := range second.Reports {
		assert.True(t, r.Noop, r.Filename)
		assert.Zero(t, r.Steps, r.Filename)
	}
}

func TestMigrateBatch_MissingReferencedDocument(t *testing.T) {
	c := newCoordinator(t)

	_, err := c.MigrateBatch(readFiles(t, "input", "Main.library"))
	require.Error(t, err)

	var batchErr *migerr.BatchMigrationError
	require.True(t, errors.As(err, &batchErr))
	require.Len(t, batchErr.Errors, 1)

	var unresolved *migerr.UnresolvedReferenceError
	require.True(t, errors.As(batchErr.Errors[0], &unresolved))
	assert.Equal(t, "Main.library", unresolved.Filename)
	assert.Equal(t, "Db.books#//@entries.1", unresolved.Key)
	assert.Equal(t, "books", unresolved.Kind)

	failures := batchErr.Failures()
	assert.Equal(t, "unresolved_reference", failures[0].Code)
	assert.Equal(t, "2:remap_reference", failures[0].Step)
}

func TestMigrateBatch_CollectsEveryFailure(t *testing.T) {
	c := newCoordinator(t)
	input := []File{
		{Name: "x.invoices", Data: []byte(`<inv:Invoices xmlns:inv="http://www.example.org/invoices/1.0"/>`)},
		{Name: "Odd.persons", Data: []byte(`<personlist:List xmlns:personlist="http://www.example.org/personlist/1.0"><members firstname="A" lastname="B" gender="OTHER"/></personlist:List>`)},
		{Name: "Broken.persons", Data: []byte(`<personlist:List xmlns:personlist="http://www.example.org/personlist/1.0">`)},
		{Name: "NoNs.books", Data: []byte(`<BookDatabase/>`)},
		{Name: "Old.books", Data: []byte(`<books:BookDatabase xmlns:books="http://www.example.org/books/0.1"/>`)},
	}
	input = append(input, readFiles(t, "input", "My.persons")...)

	_, err := c.MigrateBatch(input)
	var batchErr *migerr.BatchMigrationError
	require.True(t, errors.As(err, &batchErr))

	var codes []string
	for _, f := range batchErr.Failures() {
		codes = append(codes, f.Filename+":"+f.Code)
	}
	assert.Equal(t, []string{
		"Broken.persons:malformed_document",
		"NoNs.books:missing_namespace",
		"Odd.persons:no_matching_variant",
		"Old.books:unknown_schema",
		"x.invoices:unknown_schema",
	}, codes)
	assert.Equal(t, migerr.CodeBatchFailed, migerr.CodeOf(err))
}

func TestMigrateBatch_ReportsDependentsOfFailedDocuments(t *testing.T) {
	c := newCoordinator(t)
	input := append(readFiles(t, "input", "Main.library"),
		File{Name: "Db.books", Data: []byte(`<books:BookDatabase xmlns:books="http://www.example.org/books/1.0"><entries/></books:BookDatabas>`)})

	_, err := c.MigrateBatch(input)
	var batchErr *migerr.BatchMigrationError
	require.True(t, errors.As(err, &batchErr))
	require.Len(t, batchErr.Errors, 2)

	failures := batchErr.Failures()
	assert.Equal(t, "Db.books", failures[0].Filename)
	assert.Equal(t, migerr.CodeMalformedDocument, failures[0].Code)
	assert.Equal(t, "Main.library", failures[1].Filename)
	assert.Equal(t, migerr.CodeUnresolvedReference, failures[1].Code)
}

const shelfCatalogue = `
kind: shelf
extensions: [shelf]
namespace: http://www.example.org/shelf
references: [volumes]
target: "2.0"
hops:
  - from: "1.0"
    to: "2.0"
    steps:
      - op: namespace
        version: "2.0"
      - op: remap_reference
        match: //items
        attribute: volume
        kind: volumes
`

const volumesCatalogue = `
kind: volumes
extensions: [volumes]
namespace: http://www.example.org/volumes
target: "2.0"
hops:
  - from: "1.0"
    to: "2.0"
    steps:
      - op: namespace
        version: "2.0"
      - op: assign_identifier
        match: //entries
        attribute: id
      - op: merge
        match: //entries
        from: [title, year]
        to: label
`

func TestMigrateBatch_StepFailureDoesNotHideDependentErrors(t *testing.T) {
	registry, err := metamodel.Load(fstest.MapFS{
		"shelf.yaml":   {Data: []byte(shelfCatalogue)},
		"volumes.yaml": {Data: []byte(volumesCatalogue)},
	})
	require.NoError(t, err)
	c := NewCoordinator(registry)

	input := []File{
		{Name: "Bad.volumes", Data: []byte(`<v:Volumes xmlns:v="http://www.example.org/volumes/1.0"><entries title="Dune"/></v:Volumes>`)},
		{Name: "Lib.shelf", Data: []byte(`<s:Shelf xmlns:s="http://www.example.org/shelf/1.0"><items volume="Absent.volumes#//@entries.0"/></s:Shelf>`)},
	}

	_, err = c.MigrateBatch(input)
	var batchErr *migerr.BatchMigrationError
	require.True(t, errors.As(err, &batchErr))

	var codes []string
	for _, f := range batchErr.Failures() {
		codes = append(codes, f.Filename+":"+f.Code)
	}
	assert.Equal(t, []string{
		"Bad.volumes:missing_attribute",
		"Lib.shelf:unresolved_reference",
	}, codes)

	var unresolved *migerr.UnresolvedReferenceError
	require.True(t, errors.As(batchErr.Errors[1], &unresolved))
	assert.Equal(t, "Absent.volumes#//@entries.0", unresolved.Key)
}

func TestMigrateBatch_RejectsDuplicateFilenames(t *testing.T) {
	c := newCoordinator(t)
	input := readFiles(t, "input", "My.persons", "Db.books", "My.persons")

	_, err := c.MigrateBatch(input)
	var batchErr *migerr.BatchMigrationError
	require.True(t, errors.As(err, &batchErr))
	require.Len(t, batchErr.Errors, 1)

	var dup *migerr.DuplicateDocumentError
	require.True(t, errors.As(batchErr.Errors[0], &dup))
	assert.Equal(t, "My.persons", dup.Filename)
	assert.Equal(t, 2, dup.Count)
}

func TestMigrateBatch_Empty(t *testing.T) {
	outcome, err := newCoordinator(t).MigrateBatch(nil)
	require.NoError(t, err)
	assert.Empty(t, outcome.Files)
}

func TestIndex(t *testing.T) {
	x := NewIndex()
	x.Add(
		steps.Mapping{Kind: "books", Old: "A.books#//@entries.0", New: "A.books#1"},
		steps.Mapping{Kind: "books", Old: "B.books#//@entries.0", New: "B.books#2"},
	)

	v, ok := x.Resolve("books", "B.books#//@entries.0")
	assert.True(t, ok)
	assert.Equal(t, "B.books#2", v)

	_, ok = x.Resolve("library", "A.books#//@entries.0")
	assert.False(t, ok)
	assert.Equal(t, 2, x.Len())
}
