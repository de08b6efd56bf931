package tree

import (
	"fmt"
	"strings"
)

// Path is a compiled element path pattern.
//
//	/List/members   absolute, from the root
//	//members       any element whose trailing tags are "members"
//	shelves/items   same as //shelves/items
//	//*             every element
//
// Segments compare against local names; prefixes are ignored.
type Path struct {
	raw      string
	absolute bool
	segments []string
}

// ParsePath compiles a path pattern
func ParsePath(pattern string) (Path, error) {
	p := Path{raw: pattern}
	rest := strings.TrimSpace(pattern)
	switch {
	case strings.HasPrefix(rest, "//"):
		rest = rest[2:]
	case strings.HasPrefix(rest, "/"):
		p.absolute = true
		rest = rest[1:]
	}
	if rest == "" {
		return Path{}, fmt.Errorf("empty element path %q", pattern)
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg == "" {
			return Path{}, fmt.Errorf("element path %q has an empty segment", pattern)
		}
		_, local := SplitName(seg)
		p.segments = append(p.segments, local)
	}
	return p, nil
}

// MustParsePath is like ParsePath but panics on error
func MustParsePath(pattern string) Path {
	p, err := ParsePath(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the pattern as written
func (p Path) String() string {
	return p.raw
}

// IsZero reports whether the path was never set
func (p Path) IsZero() bool {
	return len(p.segments) == 0
}

// Match reports whether e is selected by the pattern
func (p Path) Match(e *Element) bool {
	if p.IsZero() {
		return false
	}
	// chain holds local names from e up to the root
	var chain []string
	for cur := e; cur != nil; cur = cur.parent {
		chain = append(chain, cur.Local())
	}
	if p.absolute && len(chain) != len(p.segments) {
		return false
	}
	if len(chain) < len(p.segments) {
		return false
	}
	for i := 0; i < len(p.segments); i++ {
		seg := p.segments[len(p.segments)-1-i]
		if seg != "*" && seg != chain[i] {
			return false
		}
	}
	return true
}

// Select returns every element matched by p in document order.
// The result is a snapshot, so callers may rewrite the matched elements freely.
func (d *Document) Select(p Path) []*Element {
	var out []*Element
	_ = d.Walk(func(e *Element) error {
		if p.Match(e) {
			out = append(out, e)
		}
		return nil
	})
	return out
}
