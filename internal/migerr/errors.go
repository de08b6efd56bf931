// Package migerr defines the error taxonomy of the migration engine.
//
// Every error raised while loading, resolving or migrating a document is one of the
// typed errors below. Callers inspect them with errors.As; the Code of an error is a
// stable machine-readable identifier used by the HTTP layer and the audit trail.
package migerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error codes
const (
	CodeMalformedDocument   = "malformed_document"
	CodeMissingNamespace    = "missing_namespace"
	CodeUnknownSchema       = "unknown_schema"
	CodeNoMatchingVariant   = "no_matching_variant"
	CodeMissingAttribute    = "missing_attribute"
	CodeUnresolvedReference = "unresolved_reference"
	CodeDuplicateDocument   = "duplicate_document"
	CodeTargetMismatch      = "target_mismatch"
	CodeBatchFailed         = "batch_migration_failed"
	CodeInternal            = "internal_error"
)

// Coded is implemented by every error in this package
type Coded interface {
	error
	Code() string
}

// Attr is a name/value pair captured in error snapshots
type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MalformedDocumentError reports bytes that are not well-formed XML
type MalformedDocumentError struct {
	Filename string
	Line     int
	Err      error
}

func (e *MalformedDocumentError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: malformed document at line %d: %v", e.Filename, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: malformed document: %v", e.Filename, e.Err)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// Code returns the error code
func (e *MalformedDocumentError) Code() string { return CodeMalformedDocument }

// MissingNamespaceError reports a root element without a recognizable schema namespace
type MissingNamespaceError struct {
	Filename string
	Element  string
	Reason   string
}

func (e *MissingNamespaceError) Error() string {
	return fmt.Sprintf("%s: root element <%s> has no schema namespace: %s", e.Filename, e.Element, e.Reason)
}

// Code returns the error code
func (e *MissingNamespaceError) Code() string { return CodeMissingNamespace }

// UnknownSchemaError reports a document for which no pipeline is registered
type UnknownSchemaError struct {
	Filename  string
	Kind      string
	Namespace string
	Version   string
}

func (e *UnknownSchemaError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "<unknown kind>"
	}
	msg := fmt.Sprintf("no migration registered for %s (namespace %q, version %q)", kind, e.Namespace, e.Version)
	if e.Filename != "" {
		return e.Filename + ": " + msg
	}
	return msg
}

// Code returns the error code
func (e *UnknownSchemaError) Code() string { return CodeUnknownSchema }

// NoMatchingVariantError reports an element no retype case applies to
type NoMatchingVariantError struct {
	Filename   string
	Path       string
	Attributes []Attr
}

func (e *NoMatchingVariantError) Error() string {
	return fmt.Sprintf("%s: no variant matches element %s %s", e.Filename, e.Path, formatAttrs(e.Attributes))
}

// Code returns the error code
func (e *NoMatchingVariantError) Code() string { return CodeNoMatchingVariant }

// MissingAttributeError reports an attribute a step requires but the element lacks
type MissingAttributeError struct {
	Filename  string
	Path      string
	Attribute string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("%s: element %s is missing required attribute %q", e.Filename, e.Path, e.Attribute)
}

// Code returns the error code
func (e *MissingAttributeError) Code() string { return CodeMissingAttribute }

// UnresolvedReferenceError reports a reference absent from the cross-reference index
type UnresolvedReferenceError struct {
	Filename  string
	Path      string
	Attribute string
	Kind      string
	Key       string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("%s: element %s attribute %q references unknown %s identifier %q",
		e.Filename, e.Path, e.Attribute, e.Kind, e.Key)
}

// Code returns the error code
func (e *UnresolvedReferenceError) Code() string { return CodeUnresolvedReference }

// DuplicateDocumentError reports a filename submitted more than once in a batch
type DuplicateDocumentError struct {
	Filename string
	Count    int
}

func (e *DuplicateDocumentError) Error() string {
	return fmt.Sprintf("%s: submitted %d times in the same batch", e.Filename, e.Count)
}

// Code returns the error code
func (e *DuplicateDocumentError) Code() string { return CodeDuplicateDocument }

// TargetMismatchError reports a pipeline that finished without reaching its target
type TargetMismatchError struct {
	Filename      string
	Kind          string
	WantNamespace string
	WantVersion   string
	GotNamespace  string
	GotVersion    string
}

func (e *TargetMismatchError) Error() string {
	return fmt.Sprintf("%s: %s pipeline ended at %s/%s, expected %s/%s", e.Filename, e.Kind,
		e.GotNamespace, e.GotVersion, e.WantNamespace, e.WantVersion)
}

// Code returns the error code
func (e *TargetMismatchError) Code() string { return CodeTargetMismatch }

// StepError wraps a failure with the pipeline step that raised it
type StepError struct {
	Filename string
	Index    int
	Step     string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Code returns the code of the wrapped error
func (e *StepError) Code() string { return CodeOf(e.Err) }

// BatchMigrationError aggregates every per-document failure of a batch
type BatchMigrationError struct {
	Errors []error
}

// NewBatchMigrationError sorts errs by filename and message and wraps them.
// It returns nil when errs is empty.
func NewBatchMigrationError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	sorted := append([]error(nil), errs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		fi, fj := FilenameOf(sorted[i]), FilenameOf(sorted[j])
		if fi != fj {
			return fi < fj
		}
		return sorted[i].Error() < sorted[j].Error()
	})
	return &BatchMigrationError{Errors: sorted}
}

func (e *BatchMigrationError) Error() string {
	if len(e.Errors) == 1 {
		return "batch migration failed: " + e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "batch migration failed with %d errors:", len(e.Errors))
	for _, err := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *BatchMigrationError) Unwrap() []error { return e.Errors }

// Code returns the error code
func (e *BatchMigrationError) Code() string { return CodeBatchFailed }

// Failure is the flattened, serializable view of one per-document error
type Failure struct {
	Filename string `json:"filename"`
	Code     string `json:"code"`
	Step     string `json:"step,omitempty"`
	Message  string `json:"message"`
}

// Failures flattens the aggregated errors
func (e *BatchMigrationError) Failures() []Failure {
	out := make([]Failure, 0, len(e.Errors))
	for _, err := range e.Errors {
		f := Failure{
			Filename: FilenameOf(err),
			Code:     CodeOf(err),
			Message:  err.Error(),
		}
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			f.Step = fmt.Sprintf("%d:%s", stepErr.Index+1, stepErr.Step)
		}
		out = append(out, f)
	}
	return out
}

// CodeOf returns the code of the outermost coded error in err's chain
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var coded Coded
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return CodeInternal
}

// FilenameOf returns the document filename carried by err, if any. A batch error
// spans several documents and carries none.
func FilenameOf(err error) string {
	var batchErr *BatchMigrationError
	if errors.As(err, &batchErr) {
		return ""
	}
	var (
		malformed  *MalformedDocumentError
		missingNS  *MissingNamespaceError
		unknown    *UnknownSchemaError
		variant    *NoMatchingVariantError
		missingAtt *MissingAttributeError
		unresolved *UnresolvedReferenceError
		duplicate  *DuplicateDocumentError
		mismatch   *TargetMismatchError
		step       *StepError
	)
	switch {
	case errors.As(err, &step) && step.Filename != "":
		return step.Filename
	case errors.As(err, &malformed):
		return malformed.Filename
	case errors.As(err, &missingNS):
		return missingNS.Filename
	case errors.As(err, &unknown):
		return unknown.Filename
	case errors.As(err, &variant):
		return variant.Filename
	case errors.As(err, &missingAtt):
		return missingAtt.Filename
	case errors.As(err, &unresolved):
		return unresolved.Filename
	case errors.As(err, &duplicate):
		return duplicate.Filename
	case errors.As(err, &mismatch):
		return mismatch.Filename
	}
	return ""
}

func formatAttrs(attrs []Attr) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, fmt.Sprintf("%s=%q", a.Name, a.Value))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
