package metamodel

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
)

//go:embed catalogue/*.yaml
var embedded embed.FS

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the registry built from the embedded catalogue. It is loaded
// once per process.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(embedded, "catalogue")
		if err != nil {
			defaultErr = err
			return
		}
		defaultRegistry, defaultErr = Load(sub)
	})
	return defaultRegistry, defaultErr
}

// LoadDir builds a registry from the catalogue files in dir
func LoadDir(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalogue: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalogue %s is not a directory", dir)
	}
	return Load(os.DirFS(dir))
}

// Load builds a registry from every *.yaml and *.yml file at the root of fsys
func Load(fsys fs.FS) (*Registry, error) {
	var names []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := fs.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to list catalogue: %w", err)
		}
		names = append(names, matches...)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("catalogue contains no kind files")
	}
	sort.Strings(names)

	sources := make(map[string][]byte, len(names))
	files := make([]*kindFile, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		kf, err := decodeKindFile(name, data)
		if err != nil {
			return nil, err
		}
		sources[name] = data
		files = append(files, kf)
	}

	r, err := NewRegistry(files)
	if err != nil {
		return nil, fmt.Errorf("invalid catalogue: %w", err)
	}
	r.fingerprint = computeFingerprint(sources)
	return r, nil
}
