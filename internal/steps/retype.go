package steps

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/modelmig/internal/migerr"
	"github.com/conduit-lang/modelmig/internal/tree"
)

const (
	// XSINamespace is the XML Schema instance namespace
	XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"
	// DefaultTypeAttribute carries the type tag of a retyped element
	DefaultTypeAttribute = "xsi:type"
)

// Case is one guarded variant of a Retype step
type Case struct {
	When    Predicate
	Type    string
	Rewrite []ElementRewrite
}

// Retype assigns each matched element the type of the first case whose guard holds,
// then applies that case's rewrites to the element.
//
// An element no case matches fails the step with a NoMatchingVariantError; there is
// no fallthrough variant.
type Retype struct {
	Match         tree.Path
	Cases         []Case
	TypeAttribute string
}

// Name returns the operation name
func (s *Retype) Name() string { return "retype" }

func (s *Retype) String() string {
	parts := make([]string, len(s.Cases))
	for i, c := range s.Cases {
		parts[i] = fmt.Sprintf("%s => %s", c.When, c.Type)
	}
	return fmt.Sprintf("retype %s {%s}", s.Match, strings.Join(parts, "; "))
}

// Apply retypes every matched element
func (s *Retype) Apply(c *Context) error {
	return forEach(c, s.Match, func(el *tree.Element) error {
		return s.Rewrite(c, el)
	})
}

// Rewrite retypes el
func (s *Retype) Rewrite(c *Context, el *tree.Element) error {
	variant, ok := s.dispatch(el)
	if !ok {
		snapshot := make([]migerr.Attr, len(el.Attrs))
		for i, a := range el.Attrs {
			snapshot[i] = migerr.Attr{Name: a.Name, Value: a.Value}
		}
		return &migerr.NoMatchingVariantError{
			Filename:   c.Doc.Filename,
			Path:       el.Path(),
			Attributes: snapshot,
		}
	}

	attr := s.typeAttribute()
	if prefix, _ := tree.SplitName(attr); prefix == "xsi" {
		c.Doc.DeclareNamespace("xsi", XSINamespace)
	}
	el.InsertAttr(0, attr, s.typeTag(c.Doc, variant.Type))

	for _, rw := range variant.Rewrite {
		if err := rw.Rewrite(c, el); err != nil {
			return err
		}
	}
	return nil
}

// dispatch evaluates the cases top to bottom against the element as it is now
func (s *Retype) dispatch(el *tree.Element) (Case, bool) {
	for _, c := range s.Cases {
		if c.When.Match(el) {
			return c, true
		}
	}
	return Case{}, false
}

func (s *Retype) typeAttribute() string {
	if s.TypeAttribute == "" {
		return DefaultTypeAttribute
	}
	return s.TypeAttribute
}

// typeTag qualifies a bare type name with the document's schema prefix
func (s *Retype) typeTag(doc *tree.Document, typ string) string {
	if strings.Contains(typ, ":") || doc.Prefix == "" {
		return typ
	}
	return doc.Prefix + ":" + typ
}
