// Package steps provides the atomic tree rewrites migration pipelines are built from.
//
// A step rewrites exactly one document. Steps never share mutable state across
// documents: the only batch-scoped input is the read-only Resolver, and the only
// output besides the rewritten tree is the list of identifier mappings a step records
// on its Context.
package steps

import (
	"github.com/conduit-lang/modelmig/internal/tree"
)

// Step is one atomic rewrite of a document tree
type Step interface {
	// Name identifies the operation, e.g. "rename_attribute"
	Name() string
	// Apply rewrites c.Doc in place
	Apply(c *Context) error
	// String describes the configured step
	String() string
}

// ElementRewrite is a step that can also be applied to a single element.
// Retype cases use element rewrites to reshape the element they retyped.
type ElementRewrite interface {
	Step
	Rewrite(c *Context, el *tree.Element) error
}

// Resolver looks up identifiers recorded by documents of a referenced kind
type Resolver interface {
	Resolve(kind, key string) (string, bool)
}

// Mapping translates an identifier of a referenced document to its migrated form
type Mapping struct {
	Kind string
	Old  string
	New  string
}

// Context carries the document being migrated and its batch-scoped collaborators
type Context struct {
	Doc  *tree.Document
	Refs Resolver

	mappings []Mapping
}

// NewContext creates a step context for doc. refs may be nil when the document's
// kind references no other kind.
func NewContext(doc *tree.Document, refs Resolver) *Context {
	return &Context{Doc: doc, Refs: refs}
}

// Record adds an identifier mapping produced while migrating the document
func (c *Context) Record(kind, oldKey, newKey string) {
	c.mappings = append(c.mappings, Mapping{Kind: kind, Old: oldKey, New: newKey})
}

// Mappings returns the mappings recorded so far
func (c *Context) Mappings() []Mapping {
	return c.mappings
}

// forEach applies rewrite to every element selected by match
func forEach(c *Context, match tree.Path, rewrite func(*tree.Element) error) error {
	for _, el := range c.Doc.Select(match) {
		if err := rewrite(el); err != nil {
			return err
		}
	}
	return nil
}
