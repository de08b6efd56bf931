package steps

import (
	"fmt"

	"github.com/conduit-lang/modelmig/internal/tree"
)

// RenameNamespace moves the document to a new schema namespace and version.
// An empty URI keeps the current namespace base and only bumps the version.
type RenameNamespace struct {
	URI     string
	Version string
}

// Name returns the operation name
func (s *RenameNamespace) Name() string { return "rename_namespace" }

func (s *RenameNamespace) String() string {
	if s.URI == "" {
		return fmt.Sprintf("rename_namespace version %s", s.Version)
	}
	return fmt.Sprintf("rename_namespace %s", tree.JoinNamespace(s.URI, s.Version))
}

// Apply replaces namespace and version together
func (s *RenameNamespace) Apply(c *Context) error {
	uri := s.URI
	if uri == "" {
		uri = c.Doc.Namespace
	}
	c.Doc.SetSchema(uri, s.Version)
	return nil
}

// RenameElement changes the tag of matched elements.
// A tag without prefix keeps the element's current prefix.
type RenameElement struct {
	Match tree.Path
	Tag   string
}

// Name returns the operation name
func (s *RenameElement) Name() string { return "rename_element" }

func (s *RenameElement) String() string {
	return fmt.Sprintf("rename_element %s -> %s", s.Match, s.Tag)
}

// Apply renames every matched element
func (s *RenameElement) Apply(c *Context) error {
	return forEach(c, s.Match, func(el *tree.Element) error {
		return s.Rewrite(c, el)
	})
}

// Rewrite renames el
func (s *RenameElement) Rewrite(c *Context, el *tree.Element) error {
	prefix, local := tree.SplitName(s.Tag)
	if prefix == "" {
		prefix = el.Prefix()
	}
	if prefix == "" {
		el.Tag = local
	} else {
		el.Tag = prefix + ":" + local
	}
	return nil
}
