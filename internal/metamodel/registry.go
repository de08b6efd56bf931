// Package metamodel provides the registry of document kinds and the migration
// pipelines that bring each kind to its current schema version.
package metamodel

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/conduit-lang/modelmig/internal/migerr"
	"github.com/conduit-lang/modelmig/internal/steps"
	"github.com/conduit-lang/modelmig/internal/tree"
)

// Pipeline is the ordered chain of steps that migrates documents of one kind from
// a source schema version to the kind's target
type Pipeline struct {
	Kind            string
	SourceNamespace string
	SourceVersion   string
	TargetNamespace string
	TargetVersion   string
	Steps           []steps.Step
}

// Empty reports whether the pipeline has nothing to do
func (p *Pipeline) Empty() bool {
	return len(p.Steps) == 0
}

// Hop is one version increment declared in the catalogue
type Hop struct {
	From  string
	To    string
	Steps []steps.Step
}

// Kind describes a registered document family
type Kind struct {
	Name       string
	Extensions []string
	Namespace  string
	Aliases    []string
	References []string
	Target     string
	Hops       []*Hop
	Source     string

	// pipelines keyed by source version, composed at load time
	pipelines map[string][]steps.Step
}

// Registry holds the registered kinds. It is built once and never mutated, so it is
// safe for concurrent use without locking.
type Registry struct {
	kinds       map[string]*Kind
	byExtension map[string]*Kind
	byNamespace map[string]*Kind
	graph       *DependencyGraph
	tiers       [][]string
	fingerprint string
}

// NewRegistry validates the catalogue entries and composes their pipelines
func NewRegistry(files []*kindFile) (*Registry, error) {
	r := &Registry{
		kinds:       make(map[string]*Kind, len(files)),
		byExtension: make(map[string]*Kind),
		byNamespace: make(map[string]*Kind),
	}

	var errs error
	for _, kf := range files {
		kind, err := compileKind(kf)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", kf.Source, err))
			continue
		}
		if err := r.register(kind); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", kf.Source, err))
		}
	}
	if errs != nil {
		return nil, errs
	}

	references := make(map[string][]string, len(r.kinds))
	for name, kind := range r.kinds {
		for _, ref := range kind.References {
			if _, ok := r.kinds[ref]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("%s: kind %s references unknown kind %s", kind.Source, name, ref))
			}
		}
		references[name] = kind.References
	}
	if errs != nil {
		return nil, errs
	}

	r.graph = NewDependencyGraph(references)
	tiers, err := r.graph.Levels()
	if err != nil {
		return nil, err
	}
	r.tiers = tiers
	return r, nil
}

func (r *Registry) register(kind *Kind) error {
	if _, exists := r.kinds[kind.Name]; exists {
		return fmt.Errorf("kind %s is already registered", kind.Name)
	}
	for _, ext := range kind.Extensions {
		if other, exists := r.byExtension[ext]; exists {
			return fmt.Errorf("extension .%s is already registered by kind %s", ext, other.Name)
		}
	}
	for _, ns := range append([]string{kind.Namespace}, kind.Aliases...) {
		if other, exists := r.byNamespace[ns]; exists {
			return fmt.Errorf("namespace %s is already registered by kind %s", ns, other.Name)
		}
	}

	r.kinds[kind.Name] = kind
	for _, ext := range kind.Extensions {
		r.byExtension[ext] = kind
	}
	r.byNamespace[kind.Namespace] = kind
	for _, ns := range kind.Aliases {
		r.byNamespace[ns] = kind
	}
	return nil
}

// compileKind validates one catalogue entry and composes its pipelines
func compileKind(kf *kindFile) (*Kind, error) {
	if kf.Kind == "" {
		return nil, fmt.Errorf("kind name is required")
	}
	if kf.Namespace == "" {
		return nil, fmt.Errorf("kind %s: namespace is required", kf.Kind)
	}
	if !tree.IsVersion(kf.Target) {
		return nil, fmt.Errorf("kind %s: invalid target version %q", kf.Kind, kf.Target)
	}

	kind := &Kind{
		Name:       kf.Kind,
		Namespace:  strings.TrimSuffix(kf.Namespace, "/"),
		References: append([]string(nil), kf.References...),
		Target:     kf.Target,
		Source:     kf.Source,
		pipelines:  make(map[string][]steps.Step),
	}
	for _, ext := range kf.Extensions {
		kind.Extensions = append(kind.Extensions, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}
	for _, alias := range kf.Aliases {
		kind.Aliases = append(kind.Aliases, strings.TrimSuffix(alias, "/"))
	}
	sort.Strings(kind.References)

	byFrom := make(map[string]*Hop, len(kf.Hops))
	for i, hf := range kf.Hops {
		hop, err := compileHop(kind, hf)
		if err != nil {
			return nil, fmt.Errorf("kind %s hop %d: %w", kind.Name, i+1, err)
		}
		if _, exists := byFrom[hop.From]; exists {
			return nil, fmt.Errorf("kind %s: more than one hop from version %s", kind.Name, hop.From)
		}
		byFrom[hop.From] = hop
		kind.Hops = append(kind.Hops, hop)
	}

	for _, hop := range kind.Hops {
		var chain []steps.Step
		visited := make(map[string]bool)
		version := hop.From
		for version != kind.Target {
			if visited[version] {
				return nil, fmt.Errorf("kind %s: hops starting at %s loop back to %s", kind.Name, hop.From, version)
			}
			visited[version] = true
			next, ok := byFrom[version]
			if !ok {
				return nil, fmt.Errorf("kind %s: hops starting at %s never reach target %s", kind.Name, hop.From, kind.Target)
			}
			chain = append(chain, next.Steps...)
			version = next.To
		}
		kind.pipelines[hop.From] = chain
	}
	return kind, nil
}

func compileHop(kind *Kind, hf hopFile) (*Hop, error) {
	if !tree.IsVersion(hf.From) || !tree.IsVersion(hf.To) {
		return nil, fmt.Errorf("invalid versions %q -> %q", hf.From, hf.To)
	}
	if hf.From == hf.To {
		return nil, fmt.Errorf("hop from %s to itself", hf.From)
	}
	if hf.From == kind.Target {
		return nil, fmt.Errorf("hop starts at target version %s", hf.From)
	}

	hop := &Hop{From: hf.From, To: hf.To}
	landed := false
	for i, sf := range hf.Steps {
		step, err := compileStep(sf, false)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		switch s := step.(type) {
		case *steps.RenameNamespace:
			if s.URI != "" && s.URI != kind.Namespace && hf.To == kind.Target {
				return nil, fmt.Errorf("step %d: final hop must move to namespace %s", i+1, kind.Namespace)
			}
			landed = s.Version == hf.To
		case *steps.RemapReference:
			if !contains(kind.References, s.Kind) {
				return nil, fmt.Errorf("step %d: remap_reference to kind %s which %s does not reference", i+1, s.Kind, kind.Name)
			}
		}
		hop.Steps = append(hop.Steps, step)
	}
	if !landed {
		return nil, fmt.Errorf("hop %s -> %s has no namespace step landing on version %s", hf.From, hf.To, hf.To)
	}
	return hop, nil
}

// ResolvePipeline returns the pipeline that migrates documents of the given kind,
// namespace and version to the kind's target
func (r *Registry) ResolvePipeline(kind, namespace, version string) (*Pipeline, error) {
	unknown := &migerr.UnknownSchemaError{Kind: kind, Namespace: namespace, Version: version}

	k, ok := r.kinds[kind]
	if !ok {
		return nil, unknown
	}
	if namespace != k.Namespace && !contains(k.Aliases, namespace) {
		return nil, unknown
	}

	p := &Pipeline{
		Kind:            k.Name,
		SourceNamespace: namespace,
		SourceVersion:   version,
		TargetNamespace: k.Namespace,
		TargetVersion:   k.Target,
	}
	if namespace == k.Namespace && version == k.Target {
		return p, nil
	}

	chain, ok := k.pipelines[version]
	if !ok {
		return nil, unknown
	}
	p.Steps = chain
	return p, nil
}

// TargetOf returns the namespace and version documents of kind are migrated to
func (r *Registry) TargetOf(kind string) (namespace, version string, ok bool) {
	k, exists := r.kinds[kind]
	if !exists {
		return "", "", false
	}
	return k.Namespace, k.Target, true
}

// KindOf identifies the kind of a document from its file extension and root
// namespace base. The namespace wins when both are registered; an empty string
// means neither is known.
func (r *Registry) KindOf(ext, namespace string) string {
	if k, ok := r.byNamespace[namespace]; ok {
		return k.Name
	}
	if k, ok := r.byExtension[strings.ToLower(ext)]; ok {
		return k.Name
	}
	return ""
}

// Tiers returns the kinds grouped by dependency level. Documents of a tier may only
// reference documents of earlier tiers.
func (r *Registry) Tiers() [][]string {
	return r.tiers
}

// TierOf returns the dependency level of a kind
func (r *Registry) TierOf(kind string) (int, bool) {
	for i, tier := range r.tiers {
		if contains(tier, kind) {
			return i, true
		}
	}
	return 0, false
}

// Kinds returns the registered kind names in sorted order
func (r *Registry) Kinds() []string {
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fingerprint identifies the catalogue contents the registry was built from
func (r *Registry) Fingerprint() string {
	return r.fingerprint
}

// KindInfo summarises a registered kind
type KindInfo struct {
	Name         string    `json:"name"`
	Extensions   []string  `json:"extensions"`
	Namespace    string    `json:"namespace"`
	Aliases      []string  `json:"aliases,omitempty"`
	References   []string  `json:"references,omitempty"`
	ReferencedBy []string  `json:"referenced_by,omitempty"`
	Target       string    `json:"target"`
	Tier         int       `json:"tier"`
	Hops         []HopInfo `json:"hops"`
}

// HopInfo summarises one version increment
type HopInfo struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Steps []string `json:"steps"`
}

// Describe summarises the registered kinds in name order
func (r *Registry) Describe() []KindInfo {
	infos := make([]KindInfo, 0, len(r.kinds))
	for _, name := range r.Kinds() {
		k := r.kinds[name]
		tier, _ := r.TierOf(name)
		info := KindInfo{
			Name:         k.Name,
			Extensions:   k.Extensions,
			Namespace:    k.Namespace,
			Aliases:      k.Aliases,
			References:   r.graph.GetDependencies(name),
			ReferencedBy: r.graph.GetDependents(name),
			Target:       k.Target,
			Tier:         tier,
			Hops:         []HopInfo{},
		}
		for _, hop := range k.Hops {
			hi := HopInfo{From: hop.From, To: hop.To, Steps: make([]string, len(hop.Steps))}
			for i, s := range hop.Steps {
				hi.Steps[i] = s.String()
			}
			info.Hops = append(info.Hops, hi)
		}
		infos = append(infos, info)
	}
	return infos
}

func computeFingerprint(sources map[string][]byte) string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		fmt.Fprintf(h, "%s\x00%d\x00", name, len(sources[name]))
		h.Write(sources[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
