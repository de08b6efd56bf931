package metamodel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/modelmig/internal/steps"
	"github.com/conduit-lang/modelmig/internal/tree"
)

// kindFile is the on-disk form of one catalogue entry
type kindFile struct {
	Kind       string    `yaml:"kind"`
	Extensions []string  `yaml:"extensions"`
	Namespace  string    `yaml:"namespace"`
	Aliases    []string  `yaml:"aliases"`
	References []string  `yaml:"references"`
	Target     string    `yaml:"target"`
	Hops       []hopFile `yaml:"hops"`
	Source     string    `yaml:"-"`
}

type hopFile struct {
	From  string     `yaml:"from"`
	To    string     `yaml:"to"`
	Steps []stepFile `yaml:"steps"`
}

type stepFile struct {
	Op            string     `yaml:"op"`
	Match         string     `yaml:"match"`
	URI           string     `yaml:"uri"`
	Version       string     `yaml:"version"`
	From          stringList `yaml:"from"`
	To            string     `yaml:"to"`
	Attribute     string     `yaml:"attribute"`
	Key           string     `yaml:"key"`
	Kind          string     `yaml:"kind"`
	Tag           string     `yaml:"tag"`
	Combine       string     `yaml:"combine"`
	Separator     string     `yaml:"separator"`
	TypeAttribute string     `yaml:"type_attribute"`
	Cases         []caseFile `yaml:"cases"`
}

type caseFile struct {
	When    yaml.Node  `yaml:"when"`
	Type    string     `yaml:"type"`
	Rewrite []stepFile `yaml:"rewrite"`
}

// stringList accepts either a scalar or a sequence of scalars
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = stringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

// decodeKindFile strictly decodes a single catalogue document
func decodeKindFile(name string, data []byte) (*kindFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var kf kindFile
	if err := dec.Decode(&kf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty catalogue file", name)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	kf.Source = name
	return &kf, nil
}

// compileStep turns a catalogue step into an executable step. Steps nested in a
// retype case are compiled with nested set and must be element rewrites.
func compileStep(sf stepFile, nested bool) (steps.Step, error) {
	match, err := compileMatch(sf, nested)
	if err != nil {
		return nil, err
	}

	switch sf.Op {
	case "namespace":
		if nested {
			return nil, fmt.Errorf("namespace cannot be used inside a retype case")
		}
		if sf.Version == "" {
			return nil, fmt.Errorf("namespace: version is required")
		}
		return &steps.RenameNamespace{URI: strings.TrimSuffix(sf.URI, "/"), Version: sf.Version}, nil

	case "rename":
		if len(sf.From) != 1 || sf.From[0] == "" || sf.To == "" {
			return nil, fmt.Errorf("rename: exactly one from attribute and a to attribute are required")
		}
		return &steps.RenameAttribute{Match: match, From: sf.From[0], To: sf.To}, nil

	case "drop":
		if sf.Attribute == "" {
			return nil, fmt.Errorf("drop: attribute is required")
		}
		return &steps.DropAttribute{Match: match, Attribute: sf.Attribute}, nil

	case "merge":
		if len(sf.From) == 0 || sf.To == "" {
			return nil, fmt.Errorf("merge: from and to are required")
		}
		seen := make(map[string]bool, len(sf.From))
		for _, name := range sf.From {
			if seen[name] {
				return nil, fmt.Errorf("merge: attribute %s listed twice", name)
			}
			seen[name] = true
		}
		name := sf.Combine
		if name == "" {
			name = "join"
		}
		combine, ok := steps.LookupCombiner(name)
		if !ok {
			return nil, fmt.Errorf("merge: unknown combine function %q (known: %s)",
				name, strings.Join(steps.CombinerNames(), ", "))
		}
		return &steps.MergeAttributes{
			Match:       match,
			From:        append([]string(nil), sf.From...),
			To:          sf.To,
			Combine:     combine,
			CombineName: name,
			Separator:   sf.Separator,
		}, nil

	case "retype":
		if nested {
			return nil, fmt.Errorf("retype cannot be nested")
		}
		if len(sf.Cases) == 0 {
			return nil, fmt.Errorf("retype: at least one case is required")
		}
		step := &steps.Retype{Match: match, TypeAttribute: sf.TypeAttribute}
		for i, cf := range sf.Cases {
			c, err := compileCase(cf)
			if err != nil {
				return nil, fmt.Errorf("retype case %d: %w", i+1, err)
			}
			step.Cases = append(step.Cases, c)
		}
		return step, nil

	case "rename_element":
		if sf.Tag == "" {
			return nil, fmt.Errorf("rename_element: tag is required")
		}
		return &steps.RenameElement{Match: match, Tag: sf.Tag}, nil

	case "assign_identifier":
		return &steps.AssignIdentifier{Match: match, Attribute: sf.Attribute, Key: sf.Key}, nil

	case "remap_reference":
		if sf.Attribute == "" || sf.Kind == "" {
			return nil, fmt.Errorf("remap_reference: attribute and kind are required")
		}
		return &steps.RemapReference{Match: match, Attribute: sf.Attribute, Kind: sf.Kind}, nil

	case "":
		return nil, fmt.Errorf("step without op")
	default:
		return nil, fmt.Errorf("unknown step op %q", sf.Op)
	}
}

func compileMatch(sf stepFile, nested bool) (tree.Path, error) {
	if sf.Match == "" {
		if nested || sf.Op == "namespace" {
			return tree.Path{}, nil
		}
		return tree.Path{}, fmt.Errorf("%s: match is required", sf.Op)
	}
	if nested {
		return tree.Path{}, fmt.Errorf("%s: match is not allowed inside a retype case", sf.Op)
	}
	return tree.ParsePath(sf.Match)
}

func compileCase(cf caseFile) (steps.Case, error) {
	if cf.Type == "" {
		return steps.Case{}, fmt.Errorf("type is required")
	}
	when, err := compilePredicate(&cf.When)
	if err != nil {
		return steps.Case{}, err
	}

	c := steps.Case{When: when, Type: cf.Type}
	for i, sf := range cf.Rewrite {
		step, err := compileStep(sf, true)
		if err != nil {
			return steps.Case{}, fmt.Errorf("rewrite %d: %w", i+1, err)
		}
		rw, ok := step.(steps.ElementRewrite)
		if !ok {
			return steps.Case{}, fmt.Errorf("rewrite %d: %s cannot rewrite a single element", i+1, step.Name())
		}
		c.Rewrite = append(c.Rewrite, rw)
	}
	return c, nil
}

// compilePredicate reads a guard. A missing guard or the scalar "always" matches
// every element; otherwise the node is a single-key mapping naming the operator.
func compilePredicate(node *yaml.Node) (steps.Predicate, error) {
	switch node.Kind {
	case 0:
		return steps.Always{}, nil
	case yaml.ScalarNode:
		if node.Value == "always" {
			return steps.Always{}, nil
		}
		return nil, fmt.Errorf("line %d: unknown predicate %q", node.Line, node.Value)
	case yaml.MappingNode:
	default:
		return nil, fmt.Errorf("line %d: predicate must be a mapping", node.Line)
	}

	if len(node.Content) != 2 {
		return nil, fmt.Errorf("line %d: predicate must have exactly one operator", node.Line)
	}
	op, arg := node.Content[0].Value, node.Content[1]

	switch op {
	case "any", "all":
		if arg.Kind != yaml.SequenceNode || len(arg.Content) == 0 {
			return nil, fmt.Errorf("line %d: %s expects a non-empty list", arg.Line, op)
		}
		ps := make([]steps.Predicate, len(arg.Content))
		for i, item := range arg.Content {
			p, err := compilePredicate(item)
			if err != nil {
				return nil, err
			}
			ps[i] = p
		}
		if op == "any" {
			return steps.AnyOf(ps), nil
		}
		return steps.AllOf(ps), nil

	case "not":
		p, err := compilePredicate(arg)
		if err != nil {
			return nil, err
		}
		return steps.Not{P: p}, nil

	case "absent", "present":
		if arg.Kind != yaml.ScalarNode || arg.Value == "" {
			return nil, fmt.Errorf("line %d: %s expects an attribute name", arg.Line, op)
		}
		if op == "absent" {
			return steps.Absent{Attribute: arg.Value}, nil
		}
		return steps.Present{Attribute: arg.Value}, nil

	case "equals":
		var values map[string]string
		if err := arg.Decode(&values); err != nil || len(values) != 1 {
			return nil, fmt.Errorf("line %d: equals expects a single attribute: value pair", arg.Line)
		}
		for attr, value := range values {
			return steps.Equals{Attribute: attr, Value: value}, nil
		}

	case "one_of":
		var values map[string][]string
		if err := arg.Decode(&values); err != nil || len(values) != 1 {
			return nil, fmt.Errorf("line %d: one_of expects a single attribute: [values] pair", arg.Line)
		}
		for attr, list := range values {
			return steps.OneOf{Attribute: attr, Values: list}, nil
		}
	}

	return nil, fmt.Errorf("line %d: unknown predicate operator %q", node.Line, op)
}
