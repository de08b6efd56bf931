// Package storage keeps the uploaded and migrated documents of each batch in the
// model folder.
package storage

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

const (
	inputDir  = "input"
	outputDir = "output"
)

// Document is a stored file
type Document struct {
	Name string
	Data []byte
}

// ModelStore persists batches as <batch-id>/input/<file> and <batch-id>/output/<file>
type ModelStore struct {
	fs afero.Fs
}

// NewModelStore creates a store on an arbitrary filesystem
func NewModelStore(fs afero.Fs) *ModelStore {
	return &ModelStore{fs: fs}
}

// NewDiskStore creates a store rooted at folder, creating it if needed
func NewDiskStore(folder string) (*ModelStore, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model folder: %w", err)
	}
	return NewModelStore(afero.NewBasePathFs(afero.NewOsFs(), folder)), nil
}

// NewMemoryStore creates a store that lives in memory
func NewMemoryStore() *ModelStore {
	return NewModelStore(afero.NewMemMapFs())
}

// SaveInput stores the uploaded documents of a batch
func (s *ModelStore) SaveInput(batchID string, docs []Document) error {
	return s.save(batchID, inputDir, docs)
}

// SaveOutput stores the migrated documents of a batch
func (s *ModelStore) SaveOutput(batchID string, docs []Document) error {
	return s.save(batchID, outputDir, docs)
}

// LoadInput reads back the uploaded documents of a batch, sorted by name
func (s *ModelStore) LoadInput(batchID string) ([]Document, error) {
	return s.load(batchID, inputDir)
}

// LoadOutput reads back the migrated documents of a batch, sorted by name
func (s *ModelStore) LoadOutput(batchID string) ([]Document, error) {
	return s.load(batchID, outputDir)
}

// Batches lists the stored batch ids in sorted order
func (s *ModelStore) Batches() ([]string, error) {
	exists, err := afero.DirExists(s.fs, "/")
	if err != nil || !exists {
		return nil, err
	}
	infos, err := afero.ReadDir(s.fs, "/")
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	var ids []string
	for _, info := range infos {
		if info.IsDir() {
			ids = append(ids, info.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Remove deletes every file of a batch
func (s *ModelStore) Remove(batchID string) error {
	if err := checkName(batchID); err != nil {
		return err
	}
	return s.fs.RemoveAll(path.Join("/", batchID))
}

func (s *ModelStore) save(batchID, sub string, docs []Document) error {
	if err := checkName(batchID); err != nil {
		return err
	}
	dir := path.Join("/", batchID, sub)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	for _, d := range docs {
		if err := checkName(d.Name); err != nil {
			return err
		}
		if err := afero.WriteFile(s.fs, path.Join(dir, d.Name), d.Data, 0o644); err != nil {
			return fmt.Errorf("failed to store %s: %w", d.Name, err)
		}
	}
	return nil
}

func (s *ModelStore) load(batchID, sub string) ([]Document, error) {
	if err := checkName(batchID); err != nil {
		return nil, err
	}
	dir := path.Join("/", batchID, sub)
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var docs []Document
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		data, err := afero.ReadFile(s.fs, path.Join(dir, info.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", info.Name(), err)
		}
		docs = append(docs, Document{Name: info.Name(), Data: data})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// checkName rejects names that would escape their directory
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid storage name %q", name)
	}
	return nil
}
