package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conduit-lang/modelmig/internal/archive"
	"github.com/conduit-lang/modelmig/internal/audit"
	"github.com/conduit-lang/modelmig/internal/batch"
	"github.com/conduit-lang/modelmig/internal/cache"
	"github.com/conduit-lang/modelmig/internal/config"
	"github.com/conduit-lang/modelmig/internal/metamodel"
	"github.com/conduit-lang/modelmig/internal/migerr"
	"github.com/conduit-lang/modelmig/internal/storage"
)

type recorder struct {
	mu   sync.Mutex
	runs []audit.Run
}

func (r *recorder) Record(_ context.Context, runs []audit.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, runs...)
	return nil
}

var batchFiles = []batch.File{
	{Name: "Main.library", Data: []byte(`<library:Library xmlns:library="http://www.example.org/library/1.0"><shelves label="A"><items book="Db.books#//@entries.0"/></shelves></library:Library>`)},
	{Name: "Db.books", Data: []byte(`<books:BookDatabase xmlns:books="http://www.example.org/books/1.0"><entries title="Dune" year="1965"/></books:BookDatabase>`)},
	{Name: "My.persons", Data: []byte(`<personlist:List xmlns:personlist="http://www.example.org/personlist/1.0"><members firstname="John" lastname="Doe"/></personlist:List>`)},
}

func newService(t *testing.T) (*Service, *recorder, *storage.ModelStore, cache.Cache) {
	t.Helper()
	registry, err := metamodel.Default()
	require.NoError(t, err)

	rec := &recorder{}
	store := storage.NewMemoryStore()
	c := cache.NewMemoryCache(cache.DefaultConfig())
	t.Cleanup(func() { c.Close() })

	svc := New(registry, Options{
		Cache:    c,
		CacheTTL: time.Minute,
		Store:    store,
		Recorder: rec,
		Logger:   zap.NewNop(),
	})
	return svc, rec, store, c
}

func TestService_Migrate(t *testing.T) {
	svc, rec, store, c := newService(t)
	ctx := context.Background()

	data, err := svc.Migrate(ctx, "b1", batchFiles)
	require.NoError(t, err)

	files, err := archive.Read(data)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "Db.books", files[0].Name)
	assert.Equal(t, "My.persons", files[1].Name)
	assert.Equal(t, "Main.library", files[2].Name)
	assert.Contains(t, string(files[2].Data), `book="Db.books#36e60bf0-a1bb-5d9d-ad98-40cc8611e940"`)

	in, err := store.LoadInput("b1")
	require.NoError(t, err)
	assert.Len(t, in, 3)
	out, err := store.LoadOutput("b1")
	require.NoError(t, err)
	assert.Len(t, out, 3)

	require.Len(t, rec.runs, 3)
	for _, run := range rec.runs {
		assert.Equal(t, "b1", run.BatchID)
		assert.Equal(t, audit.StatusMigrated, run.Status)
		assert.Equal(t, "2.0", run.TargetVersion)
	}

	cached, err := c.Get(ctx, BatchKey(svc.registry.Fingerprint(), batchFiles))
	require.NoError(t, err)
	assert.Equal(t, data, cached)

	// a resubmitted batch is served from the cache
	again, err := svc.Migrate(ctx, "b2", batchFiles)
	require.NoError(t, err)
	assert.Equal(t, data, again)
	assert.Len(t, rec.runs, 3)
}

func TestService_MigrateFailure(t *testing.T) {
	svc, rec, _, _ := newService(t)

	_, err := svc.Migrate(context.Background(), "b3", batchFiles[:1])
	var batchErr *migerr.BatchMigrationError
	require.True(t, errors.As(err, &batchErr))

	require.Len(t, rec.runs, 1)
	assert.Equal(t, "Main.library", rec.runs[0].Filename)
	assert.Equal(t, audit.StatusFailed, rec.runs[0].Status)
	assert.Equal(t, migerr.CodeUnresolvedReference, rec.runs[0].Code)
}

func TestService_WithoutCollaborators(t *testing.T) {
	registry, err := metamodel.Default()
	require.NoError(t, err)
	svc := New(registry, Options{})

	data, err := svc.Migrate(context.Background(), "b4", batchFiles)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Len(t, svc.Catalogue(), 3)
	assert.NoError(t, svc.Close())
}

func TestBatchKey(t *testing.T) {
	a := []batch.File{{Name: "a.books", Data: []byte("x")}, {Name: "b.books", Data: []byte("y")}}
	b := []batch.File{{Name: "b.books", Data: []byte("y")}, {Name: "a.books", Data: []byte("x")}}
	c := []batch.File{{Name: "a.books", Data: []byte("xb.books")}}

	assert.Equal(t, BatchKey("f1", a), BatchKey("f1", a))
	assert.NotEqual(t, BatchKey("f1", a), BatchKey("f2", a))
	assert.NotEqual(t, BatchKey("f1", a), BatchKey("f1", b))
	assert.NotEqual(t, BatchKey("f1", a), BatchKey("f1", c))
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Migration: config.MigrationConfig{Workers: 2},
		Storage:   config.StorageConfig{Backend: config.BackendDisk, ModelFolder: filepath.Join(dir, "models")},
		Cache:     config.CacheConfig{Backend: config.BackendMemory, TTL: time.Minute, Prefix: "t:"},
		Audit:     config.AuditConfig{Driver: "sqlite3", DSN: filepath.Join(dir, "audit.db")},
	}

	svc, err := FromConfig(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Migrate(context.Background(), "b5", batchFiles)
	require.NoError(t, err)

	tracker, err := audit.Open("sqlite3", filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	defer tracker.Close()
	runs, err := tracker.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestFromConfig_BadCatalogue(t *testing.T) {
	cfg := &config.Config{Migration: config.MigrationConfig{CatalogueDir: filepath.Join(t.TempDir(), "missing")}}
	_, err := FromConfig(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
