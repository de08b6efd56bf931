// Package tree provides the in-memory model of a parsed instance document
package tree

import (
	"fmt"
	"strings"
)

// Attr is a single attribute of an element
type Attr struct {
	Name  string
	Value string
}

// Element is a node of a document tree.
//
// Tag and attribute names are kept as written in the source, including their
// namespace prefix. Children are owned by their parent; the parent link is only
// used for lookups.
type Element struct {
	Tag      string
	Attrs    []Attr
	Children []*Element
	Text     string

	parent *Element
}

// NewElement creates a detached element
func NewElement(tag string, attrs ...Attr) *Element {
	return &Element{Tag: tag, Attrs: attrs}
}

// Parent returns the enclosing element, or nil for a root
func (e *Element) Parent() *Element {
	return e.parent
}

// Prefix returns the namespace prefix of the tag
func (e *Element) Prefix() string {
	prefix, _ := SplitName(e.Tag)
	return prefix
}

// Local returns the tag without its namespace prefix
func (e *Element) Local() string {
	_, local := SplitName(e.Tag)
	return local
}

// AppendChild adds child as the last child of e
func (e *Element) AppendChild(child *Element) {
	child.parent = e
	e.Children = append(e.Children, child)
}

// AttrIndex returns the position of the named attribute or -1
func (e *Element) AttrIndex(name string) int {
	for i, a := range e.Attrs {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// Attr returns the value of the named attribute
func (e *Element) Attr(name string) (string, bool) {
	if i := e.AttrIndex(name); i >= 0 {
		return e.Attrs[i].Value, true
	}
	return "", false
}

// HasAttr reports whether the named attribute is present
func (e *Element) HasAttr(name string) bool {
	return e.AttrIndex(name) >= 0
}

// SetAttr updates the attribute in place or appends it
func (e *Element) SetAttr(name, value string) {
	if i := e.AttrIndex(name); i >= 0 {
		e.Attrs[i].Value = value
		return
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
}

// InsertAttr places the attribute at index, removing any previous occurrence first.
// The index is clamped to the attribute list bounds.
func (e *Element) InsertAttr(index int, name, value string) {
	e.RemoveAttr(name)
	if index < 0 {
		index = 0
	}
	if index > len(e.Attrs) {
		index = len(e.Attrs)
	}
	e.Attrs = append(e.Attrs, Attr{})
	copy(e.Attrs[index+1:], e.Attrs[index:])
	e.Attrs[index] = Attr{Name: name, Value: value}
}

// RemoveAttr deletes the named attribute and reports whether it existed
func (e *Element) RemoveAttr(name string) bool {
	i := e.AttrIndex(name)
	if i < 0 {
		return false
	}
	e.Attrs = append(e.Attrs[:i], e.Attrs[i+1:]...)
	return true
}

// RenameAttr renames an attribute in place, keeping its position.
// An existing attribute named newName is replaced.
func (e *Element) RenameAttr(oldName, newName string) bool {
	i := e.AttrIndex(oldName)
	if i < 0 {
		return false
	}
	if oldName == newName {
		return true
	}
	if j := e.AttrIndex(newName); j >= 0 {
		e.Attrs = append(e.Attrs[:j], e.Attrs[j+1:]...)
		if j < i {
			i--
		}
	}
	e.Attrs[i].Name = newName
	return true
}

// Snapshot returns a copy of the attribute list
func (e *Element) Snapshot() []Attr {
	return append([]Attr(nil), e.Attrs...)
}

// Clone deep-copies the element and its subtree. The copy is detached.
func (e *Element) Clone() *Element {
	c := &Element{
		Tag:   e.Tag,
		Attrs: append([]Attr(nil), e.Attrs...),
		Text:  e.Text,
	}
	if len(e.Children) > 0 {
		c.Children = make([]*Element, len(e.Children))
		for i, child := range e.Children {
			cc := child.Clone()
			cc.parent = c
			c.Children[i] = cc
		}
	}
	return c
}

// Walk visits e and its descendants in document order.
// Returning a non-nil error stops the walk.
func (e *Element) Walk(fn func(*Element) error) error {
	if err := fn(e); err != nil {
		return err
	}
	for _, child := range e.Children {
		if err := child.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// LookupNamespace resolves a prefix through the in-scope xmlns declarations
func (e *Element) LookupNamespace(prefix string) (string, bool) {
	name := XMLNSAttr(prefix)
	for cur := e; cur != nil; cur = cur.parent {
		if v, ok := cur.Attr(name); ok {
			return v, true
		}
	}
	return "", false
}

// Namespace returns the namespace URI the element's tag belongs to
func (e *Element) Namespace() string {
	uri, _ := e.LookupNamespace(e.Prefix())
	return uri
}

// siblingIndex is the 0-based position of e among its parent's children with the same tag
func (e *Element) siblingIndex() int {
	if e.parent == nil {
		return 0
	}
	n := 0
	for _, s := range e.parent.Children {
		if s == e {
			return n
		}
		if s.Tag == e.Tag {
			n++
		}
	}
	return n
}

// Path returns a readable location such as /List/members[2] (1-based positions)
func (e *Element) Path() string {
	var parts []string
	for cur := e; cur != nil; cur = cur.parent {
		if cur.parent == nil {
			parts = append(parts, cur.Local())
			continue
		}
		parts = append(parts, fmt.Sprintf("%s[%d]", cur.Local(), cur.siblingIndex()+1))
	}
	reverse(parts)
	return "/" + strings.Join(parts, "/")
}

// Fragment returns the positional URI fragment of e, e.g. //@entries.0/@items.2.
// The root element's fragment is "/".
func (e *Element) Fragment() string {
	if e.parent == nil {
		return "/"
	}
	var parts []string
	for cur := e; cur.parent != nil; cur = cur.parent {
		parts = append(parts, fmt.Sprintf("@%s.%d", cur.Local(), cur.siblingIndex()))
	}
	reverse(parts)
	return "//" + strings.Join(parts, "/")
}

// SplitName splits a qualified name into prefix and local part
func SplitName(name string) (prefix, local string) {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// XMLNSAttr returns the attribute name declaring prefix
func XMLNSAttr(prefix string) string {
	if prefix == "" {
		return "xmlns"
	}
	return "xmlns:" + prefix
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
