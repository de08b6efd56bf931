package tree

import (
	"path"
	"regexp"
	"strings"
)

// DefaultDeclaration is emitted when the source had no XML declaration
const DefaultDeclaration = `version="1.0" encoding="UTF-8"`

// versionSegment matches the trailing version segment of a schema namespace URI
var versionSegment = regexp.MustCompile(`^v?[0-9]+(\.[0-9]+)*$`)

// Document is a parsed instance document
type Document struct {
	// Filename identifies the document within its batch
	Filename string
	// Kind is the schema family, resolved by the loader
	Kind string
	// Namespace is the schema namespace URI without its version segment
	Namespace string
	// Version is the schema version segment
	Version string
	// Prefix is the namespace prefix of the root element
	Prefix string
	// Declaration is the content of the <?xml ...?> declaration
	Declaration string
	// Root owns the element tree
	Root *Element
}

// Extension returns the filename extension without the leading dot
func (d *Document) Extension() string {
	return strings.TrimPrefix(path.Ext(d.Filename), ".")
}

// SchemaURI returns the full namespace URI of the schema
func (d *Document) SchemaURI() string {
	return JoinNamespace(d.Namespace, d.Version)
}

// SetSchema replaces the namespace and version of the document.
// The root declaration and the document fields change together.
func (d *Document) SetSchema(namespace, version string) {
	d.Namespace = namespace
	d.Version = version
	d.Root.SetAttr(XMLNSAttr(d.Prefix), JoinNamespace(namespace, version))
}

// DeclareNamespace makes sure the root declares prefix. A new declaration is placed
// before the schema declaration. It returns the URI in effect for prefix.
func (d *Document) DeclareNamespace(prefix, uri string) string {
	name := XMLNSAttr(prefix)
	if existing, ok := d.Root.Attr(name); ok {
		return existing
	}
	at := d.Root.AttrIndex(XMLNSAttr(d.Prefix))
	if at < 0 {
		at = len(d.Root.Attrs)
	}
	d.Root.InsertAttr(at, name, uri)
	return uri
}

// Clone deep-copies the document
func (d *Document) Clone() *Document {
	c := *d
	if d.Root != nil {
		c.Root = d.Root.Clone()
	}
	return &c
}

// Walk visits every element in document order
func (d *Document) Walk(fn func(*Element) error) error {
	if d.Root == nil {
		return nil
	}
	return d.Root.Walk(fn)
}

// SplitNamespace separates a schema URI into base and version.
// ok is false when the last path segment is not a version.
func SplitNamespace(uri string) (base, version string, ok bool) {
	uri = strings.TrimRight(uri, "/")
	i := strings.LastIndexByte(uri, '/')
	if i <= 0 || i == len(uri)-1 {
		return "", "", false
	}
	seg := uri[i+1:]
	if !versionSegment.MatchString(seg) {
		return "", "", false
	}
	return uri[:i], seg, true
}

// JoinNamespace builds a schema URI from base and version
func JoinNamespace(base, version string) string {
	if version == "" {
		return base
	}
	return base + "/" + version
}

// IsVersion reports whether s is a valid schema version segment
func IsVersion(s string) bool {
	return versionSegment.MatchString(s)
}
