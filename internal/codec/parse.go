// Package codec parses instance documents into trees and renders them back in
// canonical form.
package codec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/conduit-lang/modelmig/internal/migerr"
	"github.com/conduit-lang/modelmig/internal/tree"
)

// KindResolver maps a file extension and schema namespace to a document kind.
// It returns "" when neither identifies a registered kind.
type KindResolver interface {
	KindOf(extension, namespace string) string
}

// Parse reads data as an XML instance document.
//
// The root element must declare the namespace of its own prefix, and that namespace
// must end in a version segment. kinds may be nil, in which case Kind stays empty.
func Parse(filename string, data []byte, kinds KindResolver) (*tree.Document, error) {
	p := &parser{
		filename: filename,
		dec:      xml.NewDecoder(bytes.NewReader(data)),
	}
	p.dec.Strict = true
	p.dec.CharsetReader = charsetReader

	doc, err := p.parse()
	if err != nil {
		return nil, err
	}

	prefix := doc.Root.Prefix()
	uri, ok := doc.Root.Attr(tree.XMLNSAttr(prefix))
	if !ok {
		return nil, &migerr.MissingNamespaceError{
			Filename: filename,
			Element:  doc.Root.Tag,
			Reason:   fmt.Sprintf("no declaration for prefix %q", prefix),
		}
	}
	base, version, ok := tree.SplitNamespace(uri)
	if !ok {
		return nil, &migerr.MissingNamespaceError{
			Filename: filename,
			Element:  doc.Root.Tag,
			Reason:   fmt.Sprintf("namespace %q carries no version segment", uri),
		}
	}
	doc.Prefix = prefix
	doc.Namespace = base
	doc.Version = version

	if err := hoistDeclarations(doc); err != nil {
		return nil, err
	}

	if kinds != nil {
		doc.Kind = kinds.KindOf(doc.Extension(), base)
	}
	return doc, nil
}

type parser struct {
	filename string
	dec      *xml.Decoder
	stack    []*tree.Element
	text     []*strings.Builder
}

func (p *parser) parse() (*tree.Document, error) {
	doc := &tree.Document{Filename: p.filename}

	for {
		tok, err := p.dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, p.malformed(err)
		}

		switch t := tok.(type) {
		case xml.ProcInst:
			if t.Target == "xml" && doc.Root == nil && len(p.stack) == 0 {
				doc.Declaration = strings.TrimSpace(string(t.Inst))
			}

		case xml.StartElement:
			if doc.Root != nil && len(p.stack) == 0 {
				return nil, p.malformed(errors.New("more than one root element"))
			}
			el, err := p.element(t)
			if err != nil {
				return nil, err
			}
			if len(p.stack) == 0 {
				doc.Root = el
			} else {
				p.stack[len(p.stack)-1].AppendChild(el)
			}
			p.stack = append(p.stack, el)
			p.text = append(p.text, &strings.Builder{})

		case xml.EndElement:
			if len(p.stack) == 0 {
				return nil, p.malformed(fmt.Errorf("unexpected end element </%s>", qualified(t.Name)))
			}
			top := p.stack[len(p.stack)-1]
			if name := qualified(t.Name); name != top.Tag {
				return nil, p.malformed(fmt.Errorf("element <%s> closed by </%s>", top.Tag, name))
			}
			if text := strings.TrimSpace(p.text[len(p.text)-1].String()); text != "" {
				top.Text = text
			}
			p.stack = p.stack[:len(p.stack)-1]
			p.text = p.text[:len(p.text)-1]

		case xml.CharData:
			if len(p.stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, p.malformed(errors.New("character data outside the root element"))
				}
				continue
			}
			p.text[len(p.text)-1].Write(t)
		}
	}

	if len(p.stack) > 0 {
		return nil, p.malformed(fmt.Errorf("unexpected end of input inside <%s>", p.stack[len(p.stack)-1].Tag))
	}
	if doc.Root == nil {
		return nil, p.malformed(errors.New("no root element"))
	}
	return doc, nil
}

func (p *parser) element(t xml.StartElement) (*tree.Element, error) {
	el := tree.NewElement(qualified(t.Name))
	if len(t.Attr) > 0 {
		el.Attrs = make([]tree.Attr, 0, len(t.Attr))
	}
	for _, a := range t.Attr {
		name := qualified(a.Name)
		if el.HasAttr(name) {
			return nil, p.malformed(fmt.Errorf("duplicate attribute %q on <%s>", name, el.Tag))
		}
		el.Attrs = append(el.Attrs, tree.Attr{Name: name, Value: a.Value})
	}
	return el, nil
}

// hoistDeclarations moves namespace declarations of descendants onto the root so
// every prefix is declared once. A prefix bound to two different URIs is rejected.
func hoistDeclarations(doc *tree.Document) error {
	return doc.Walk(func(el *tree.Element) error {
		if el == doc.Root {
			return nil
		}
		kept := el.Attrs[:0]
		for _, a := range el.Attrs {
			prefix, ok := declaredPrefix(a.Name)
			if !ok {
				kept = append(kept, a)
				continue
			}
			if uri := doc.DeclareNamespace(prefix, a.Value); uri != a.Value {
				return &migerr.MalformedDocumentError{
					Filename: doc.Filename,
					Err: fmt.Errorf("%s on <%s> binds %q but the root declares %q",
						a.Name, el.Tag, a.Value, uri),
				}
			}
		}
		el.Attrs = kept
		return nil
	})
}

// declaredPrefix reports whether name is a namespace declaration and which
// prefix it declares
func declaredPrefix(name string) (string, bool) {
	if name == "xmlns" {
		return "", true
	}
	if p, local := tree.SplitName(name); p == "xmlns" {
		return local, true
	}
	return "", false
}

func (p *parser) malformed(err error) error {
	line, _ := p.dec.InputPos()
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		line = syntaxErr.Line
		err = errors.New(syntaxErr.Msg)
	}
	return &migerr.MalformedDocumentError{Filename: p.filename, Line: line, Err: err}
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// charsetReader decodes non-UTF-8 inputs. ASCII is a subset of UTF-8 and is passed
// through unchanged.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	if isUTF8Compatible(label) {
		return input, nil
	}
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

func isUTF8Compatible(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8", "ascii", "us-ascii":
		return true
	}
	return false
}
