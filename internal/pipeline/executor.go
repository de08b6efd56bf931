// Package pipeline runs migration pipelines against single documents
package pipeline

import (
	"github.com/conduit-lang/modelmig/internal/metamodel"
	"github.com/conduit-lang/modelmig/internal/migerr"
	"github.com/conduit-lang/modelmig/internal/steps"
	"github.com/conduit-lang/modelmig/internal/tree"
)

// Result is the outcome of migrating one document
type Result struct {
	// Document is the migrated document, or the input itself when it was already at target
	Document *tree.Document
	// Mappings are the identifier translations recorded by the steps
	Mappings []steps.Mapping
	// Applied is the number of steps run
	Applied int
	// Noop is set when the document was already at its target
	Noop bool
}

// Executor applies pipelines to documents. It holds no state and is safe for
// concurrent use.
type Executor struct{}

// NewExecutor creates a new pipeline executor
func NewExecutor() *Executor {
	return &Executor{}
}

// Run migrates doc through p. The input document is never modified: steps run on a
// deep copy. refs resolves references to documents of other kinds and may be nil.
//
// Step failures are returned as *migerr.StepError wrapping the step's own error. A
// pipeline that completes without bringing the document to its target fails with
// *migerr.TargetMismatchError.
func (e *Executor) Run(doc *tree.Document, p *metamodel.Pipeline, refs steps.Resolver) (*Result, error) {
	if atTarget(doc, p) {
		return &Result{Document: doc, Noop: true}, nil
	}

	out := doc.Clone()
	c := steps.NewContext(out, refs)
	for i, step := range p.Steps {
		if err := step.Apply(c); err != nil {
			return nil, &migerr.StepError{
				Filename: doc.Filename,
				Index:    i,
				Step:     step.Name(),
				Err:      err,
			}
		}
	}

	if !atTarget(out, p) {
		return nil, &migerr.TargetMismatchError{
			Filename:      doc.Filename,
			Kind:          p.Kind,
			WantNamespace: p.TargetNamespace,
			WantVersion:   p.TargetVersion,
			GotNamespace:  out.Namespace,
			GotVersion:    out.Version,
		}
	}

	return &Result{
		Document: out,
		Mappings: c.Mappings(),
		Applied:  len(p.Steps),
	}, nil
}

func atTarget(doc *tree.Document, p *metamodel.Pipeline) bool {
	return doc.Namespace == p.TargetNamespace && doc.Version == p.TargetVersion
}
