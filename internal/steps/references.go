package steps

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/conduit-lang/modelmig/internal/migerr"
	"github.com/conduit-lang/modelmig/internal/tree"
)

// DefaultIdentifierAttribute is the attribute AssignIdentifier writes by default
const DefaultIdentifierAttribute = "id"

// QualifiedKey builds the batch-wide key of an identifier inside a document
func QualifiedKey(filename, local string) string {
	return filename + "#" + local
}

// AssignIdentifier gives every matched element a stable identifier and records the
// translation from the element's positional reference to the new identifier.
//
// The identifier is a name-based (SHA-1) UUID of the document's namespace, filename
// and either the element's positional fragment or, when Key is set, the value of the
// Key attribute. Migrating the same document twice yields the same identifiers.
type AssignIdentifier struct {
	Match     tree.Path
	Attribute string
	Key       string
}

// Name returns the operation name
func (s *AssignIdentifier) Name() string { return "assign_identifier" }

func (s *AssignIdentifier) String() string {
	source := "position"
	if s.Key != "" {
		source = s.Key
	}
	return fmt.Sprintf("assign_identifier %s %s from %s", s.Match, s.attribute(), source)
}

// Apply assigns identifiers to every matched element
func (s *AssignIdentifier) Apply(c *Context) error {
	return forEach(c, s.Match, func(el *tree.Element) error {
		return s.Rewrite(c, el)
	})
}

// Rewrite assigns an identifier to el
func (s *AssignIdentifier) Rewrite(c *Context, el *tree.Element) error {
	fragment := el.Fragment()
	name := fragment
	if s.Key != "" {
		v, ok := el.Attr(s.Key)
		if !ok {
			return &migerr.MissingAttributeError{
				Filename:  c.Doc.Filename,
				Path:      el.Path(),
				Attribute: s.Key,
			}
		}
		name = s.Key + "=" + v
	}

	seed := c.Doc.Namespace + "/" + QualifiedKey(c.Doc.Filename, name)
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()

	attr := s.attribute()
	if el.HasAttr(attr) {
		el.SetAttr(attr, id)
	} else {
		el.InsertAttr(0, attr, id)
	}

	c.Record(c.Doc.Kind, QualifiedKey(c.Doc.Filename, fragment), QualifiedKey(c.Doc.Filename, id))
	return nil
}

func (s *AssignIdentifier) attribute() string {
	if s.Attribute == "" {
		return DefaultIdentifierAttribute
	}
	return s.Attribute
}

// RemapReference rewrites references to documents of another kind using the
// identifiers those documents recorded.
//
// The attribute may hold several whitespace-separated references; each one must
// resolve. Elements without the attribute are skipped.
type RemapReference struct {
	Match     tree.Path
	Attribute string
	Kind      string
}

// Name returns the operation name
func (s *RemapReference) Name() string { return "remap_reference" }

func (s *RemapReference) String() string {
	return fmt.Sprintf("remap_reference %s @%s -> %s", s.Match, s.Attribute, s.Kind)
}

// Apply remaps the references of every matched element
func (s *RemapReference) Apply(c *Context) error {
	return forEach(c, s.Match, func(el *tree.Element) error {
		return s.Rewrite(c, el)
	})
}

// Rewrite remaps the references held by el
func (s *RemapReference) Rewrite(c *Context, el *tree.Element) error {
	value, ok := el.Attr(s.Attribute)
	if !ok {
		return nil
	}

	keys := strings.Fields(value)
	remapped := make([]string, len(keys))
	for i, key := range keys {
		var resolved string
		var found bool
		if c.Refs != nil {
			resolved, found = c.Refs.Resolve(s.Kind, key)
		}
		if !found {
			return &migerr.UnresolvedReferenceError{
				Filename:  c.Doc.Filename,
				Path:      el.Path(),
				Attribute: s.Attribute,
				Kind:      s.Kind,
				Key:       key,
			}
		}
		remapped[i] = resolved
	}
	el.SetAttr(s.Attribute, strings.Join(remapped, " "))
	return nil
}
