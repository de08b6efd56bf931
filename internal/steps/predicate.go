package steps

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/modelmig/internal/tree"
)

// Predicate is a guard over the current attributes of an element
type Predicate interface {
	Match(el *tree.Element) bool
	String() string
}

// Always matches every element
type Always struct{}

// Match returns true
func (Always) Match(*tree.Element) bool { return true }

// String renders the predicate
func (Always) String() string { return "always" }

// Absent matches elements without the attribute
type Absent struct {
	Attribute string
}

// Match reports whether el lacks the attribute
func (p Absent) Match(el *tree.Element) bool { return !el.HasAttr(p.Attribute) }

// String renders the predicate
func (p Absent) String() string { return "absent(" + p.Attribute + ")" }

// Present matches elements carrying the attribute, whatever its value
type Present struct {
	Attribute string
}

// Match reports whether el carries the attribute
func (p Present) Match(el *tree.Element) bool { return el.HasAttr(p.Attribute) }

// String renders the predicate
func (p Present) String() string { return "present(" + p.Attribute + ")" }

// Equals matches elements whose attribute has exactly the given value
type Equals struct {
	Attribute string
	Value     string
}

// Match reports whether the attribute of el equals Value
func (p Equals) Match(el *tree.Element) bool {
	v, ok := el.Attr(p.Attribute)
	return ok && v == p.Value
}

// String renders the predicate
func (p Equals) String() string { return fmt.Sprintf("%s == %q", p.Attribute, p.Value) }

// OneOf matches elements whose attribute value is in Values
type OneOf struct {
	Attribute string
	Values    []string
}

// Match reports whether the attribute of el is one of Values
func (p OneOf) Match(el *tree.Element) bool {
	v, ok := el.Attr(p.Attribute)
	if !ok {
		return false
	}
	for _, want := range p.Values {
		if v == want {
			return true
		}
	}
	return false
}

// String renders the predicate
func (p OneOf) String() string {
	return fmt.Sprintf("%s in [%s]", p.Attribute, strings.Join(p.Values, ", "))
}

// Not negates a predicate
type Not struct {
	P Predicate
}

// Match reports whether the wrapped predicate does not match
func (p Not) Match(el *tree.Element) bool { return !p.P.Match(el) }

// String renders the predicate
func (p Not) String() string { return "not(" + p.P.String() + ")" }

// AnyOf matches when at least one predicate matches
type AnyOf []Predicate

// Match reports whether any predicate matches el
func (p AnyOf) Match(el *tree.Element) bool {
	for _, q := range p {
		if q.Match(el) {
			return true
		}
	}
	return false
}

// String renders the predicate
func (p AnyOf) String() string { return joinPredicates("any", p) }

// AllOf matches when every predicate matches
type AllOf []Predicate

// Match reports whether every predicate matches el
func (p AllOf) Match(el *tree.Element) bool {
	for _, q := range p {
		if !q.Match(el) {
			return false
		}
	}
	return true
}

// String renders the predicate
func (p AllOf) String() string { return joinPredicates("all", p) }

func joinPredicates(op string, ps []Predicate) string {
	parts := make([]string, len(ps))
	for i, q := range ps {
		parts[i] = q.String()
	}
	return op + "(" + strings.Join(parts, ", ") + ")"
}
