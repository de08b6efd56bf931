package steps

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/modelmig/internal/migerr"
	"github.com/conduit-lang/modelmig/internal/tree"
)

// RenameAttribute renames an attribute in place, keeping its position.
// Elements without the attribute are left untouched.
type RenameAttribute struct {
	Match tree.Path
	From  string
	To    string
}

// Name returns the operation name
func (s *RenameAttribute) Name() string { return "rename_attribute" }

func (s *RenameAttribute) String() string {
	return fmt.Sprintf("rename_attribute %s %s -> %s", s.Match, s.From, s.To)
}

// Apply renames the attribute on every matched element
func (s *RenameAttribute) Apply(c *Context) error {
	return forEach(c, s.Match, func(el *tree.Element) error {
		return s.Rewrite(c, el)
	})
}

// Rewrite renames the attribute on el
func (s *RenameAttribute) Rewrite(c *Context, el *tree.Element) error {
	el.RenameAttr(s.From, s.To)
	return nil
}

// DropAttribute removes an attribute. Missing attributes are ignored.
type DropAttribute struct {
	Match     tree.Path
	Attribute string
}

// Name returns the operation name
func (s *DropAttribute) Name() string { return "drop_attribute" }

func (s *DropAttribute) String() string {
	return fmt.Sprintf("drop_attribute %s %s", s.Match, s.Attribute)
}

// Apply removes the attribute from every matched element
func (s *DropAttribute) Apply(c *Context) error {
	return forEach(c, s.Match, func(el *tree.Element) error {
		return s.Rewrite(c, el)
	})
}

// Rewrite removes the attribute from el
func (s *DropAttribute) Rewrite(c *Context, el *tree.Element) error {
	el.RemoveAttr(s.Attribute)
	return nil
}

// Combiner folds source attribute values, in the order listed, into one value
type Combiner func(values []string, separator string) string

var combiners = map[string]Combiner{
	"join": func(values []string, separator string) string {
		return strings.Join(values, separator)
	},
	"concat": func(values []string, _ string) string {
		return strings.Join(values, "")
	},
}

// LookupCombiner returns the named combining function
func LookupCombiner(name string) (Combiner, bool) {
	fn, ok := combiners[name]
	return fn, ok
}

// CombinerNames lists the registered combining functions
func CombinerNames() []string {
	names := make([]string, 0, len(combiners))
	for name := range combiners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MergeAttributes replaces the source attributes by a single combined attribute.
//
// Every source must be present. The target takes the position of the first source
// attribute on the element; an existing attribute named like the target is replaced.
type MergeAttributes struct {
	Match       tree.Path
	From        []string
	To          string
	Combine     Combiner
	CombineName string
	Separator   string
}

// Name returns the operation name
func (s *MergeAttributes) Name() string { return "merge_attributes" }

func (s *MergeAttributes) String() string {
	return fmt.Sprintf("merge_attributes %s [%s] -> %s (%s %q)", s.Match,
		strings.Join(s.From, ", "), s.To, s.CombineName, s.Separator)
}

// Apply merges the attributes of every matched element
func (s *MergeAttributes) Apply(c *Context) error {
	return forEach(c, s.Match, func(el *tree.Element) error {
		return s.Rewrite(c, el)
	})
}

// Rewrite merges the attributes of el
func (s *MergeAttributes) Rewrite(c *Context, el *tree.Element) error {
	values := make([]string, len(s.From))
	sources := make(map[string]bool, len(s.From))
	for i, name := range s.From {
		v, ok := el.Attr(name)
		if !ok {
			return &migerr.MissingAttributeError{
				Filename:  c.Doc.Filename,
				Path:      el.Path(),
				Attribute: name,
			}
		}
		values[i] = v
		sources[name] = true
	}

	combine := s.Combine
	if combine == nil {
		combine = combiners["join"]
	}
	merged := tree.Attr{Name: s.To, Value: combine(values, s.Separator)}

	attrs := make([]tree.Attr, 0, len(el.Attrs))
	placed := false
	for _, a := range el.Attrs {
		switch {
		case sources[a.Name]:
			if !placed {
				attrs = append(attrs, merged)
				placed = true
			}
		case a.Name == s.To:
			// replaced by the merged value
		default:
			attrs = append(attrs, a)
		}
	}
	el.Attrs = attrs
	return nil
}
