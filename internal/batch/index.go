package batch

import (
	"github.com/conduit-lang/modelmig/internal/steps"
)

type indexKey struct {
	kind string
	old  string
}

// Index maps identifiers of migrated documents, per kind, to their new form.
// The coordinator writes it only between tiers; during a tier it is read-only and
// shared by every worker without locking.
type Index struct {
	entries map[indexKey]string
}

// NewIndex creates an empty cross-reference index
func NewIndex() *Index {
	return &Index{entries: make(map[indexKey]string)}
}

// Resolve looks up the new identifier of an old one
func (x *Index) Resolve(kind, key string) (string, bool) {
	v, ok := x.entries[indexKey{kind: kind, old: key}]
	return v, ok
}

// Add merges recorded mappings into the index
func (x *Index) Add(mappings ...steps.Mapping) {
	for _, m := range mappings {
		x.entries[indexKey{kind: m.Kind, old: m.Old}] = m.New
	}
}

// Len returns the number of entries
func (x *Index) Len() int {
	return len(x.entries)
}
