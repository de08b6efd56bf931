package codec

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/conduit-lang/modelmig/internal/tree"
)

const (
	indentUnit       = "  "
	attrContinuation = "    "
)

var encodingDecl = regexp.MustCompile(`encoding\s*=\s*["']([^"']*)["']`)

// Serialize renders doc in canonical form:
//
//   - the XML declaration of the source, or a UTF-8 default
//   - two spaces of indentation per depth
//   - the first attribute on the tag line, every further attribute on its own line
//     indented four spaces past the tag
//   - childless elements self-close; text-only elements stay on one line
//   - exactly one trailing newline
func Serialize(doc *tree.Document) []byte {
	decl := doc.Declaration
	if decl == "" {
		decl = tree.DefaultDeclaration
	}

	w := &writer{asciiOnly: !isUTF8(declaredEncoding(decl))}
	w.buf.WriteString("<?xml ")
	w.buf.WriteString(decl)
	w.buf.WriteString("?>\n")
	if doc.Root != nil {
		w.element(doc.Root, 0)
	}
	return w.buf.Bytes()
}

type writer struct {
	buf       bytes.Buffer
	asciiOnly bool
}

func (w *writer) element(e *tree.Element, depth int) {
	indent := strings.Repeat(indentUnit, depth)

	w.buf.WriteString(indent)
	w.buf.WriteByte('<')
	w.buf.WriteString(e.Tag)
	for i, a := range e.Attrs {
		if i == 0 {
			w.buf.WriteByte(' ')
		} else {
			w.buf.WriteByte('\n')
			w.buf.WriteString(indent)
			w.buf.WriteString(attrContinuation)
		}
		w.buf.WriteString(a.Name)
		w.buf.WriteString(`="`)
		w.escape(a.Value, true)
		w.buf.WriteByte('"')
	}

	switch {
	case len(e.Children) == 0 && e.Text == "":
		w.buf.WriteString("/>\n")
		return
	case len(e.Children) == 0:
		w.buf.WriteByte('>')
		w.escape(e.Text, false)
		w.closeTag(e)
		return
	}

	w.buf.WriteString(">\n")
	if e.Text != "" {
		w.buf.WriteString(indent)
		w.buf.WriteString(indentUnit)
		w.escape(e.Text, false)
		w.buf.WriteByte('\n')
	}
	for _, child := range e.Children {
		w.element(child, depth+1)
	}
	w.buf.WriteString(indent)
	w.closeTag(e)
}

func (w *writer) closeTag(e *tree.Element) {
	w.buf.WriteString("</")
	w.buf.WriteString(e.Tag)
	w.buf.WriteString(">\n")
}

func (w *writer) escape(s string, attr bool) {
	for _, r := range s {
		switch {
		case r == '&':
			w.buf.WriteString("&amp;")
		case r == '<':
			w.buf.WriteString("&lt;")
		case r == '>':
			w.buf.WriteString("&gt;")
		case r == '"' && attr:
			w.buf.WriteString("&quot;")
		case r == '\n' && attr:
			w.buf.WriteString("&#xA;")
		case r == '\r':
			w.buf.WriteString("&#xD;")
		case r == '\t' && attr:
			w.buf.WriteString("&#x9;")
		case r >= utf8.RuneSelf && w.asciiOnly:
			fmt.Fprintf(&w.buf, "&#x%X;", r)
		default:
			w.buf.WriteRune(r)
		}
	}
}

func declaredEncoding(decl string) string {
	if m := encodingDecl.FindStringSubmatch(decl); m != nil {
		return m[1]
	}
	return ""
}

func isUTF8(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}
