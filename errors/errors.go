package errors

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// Phase indicates where in the pipeline the error occurred
type Phase string

const (
	PhaseConfig    Phase = "config"    // configuration loading
	PhaseLoad      Phase = "load"      // surface decoding
	PhaseImport    Phase = "import"    // WIT to surface conversion
	PhaseNormalize Phase = "normalize" // surface to interface model
	PhaseResolve   Phase = "resolve"   // name and type resolution
	PhaseValidate  Phase = "validate"  // signature validation
	PhaseGenerate  Phase = "generate"  // artifact emission
	PhaseRuntime   Phase = "runtime"   // runtime contract model
)

// Class is the user-facing error taxonomy
type Class string

const (
	ClassDeclaration Class = "DeclarationError"
	ClassResolution  Class = "TypeResolutionError"
	ClassSignature   Class = "SignatureError"
	ClassInternal    Class = "InternalInvariantViolation"
	ClassOther       Class = "Error"
)

// Kind categorizes the error
type Kind string

const (
	KindDuplicateName     Kind = "duplicate_name"
	KindMalformedItem     Kind = "malformed_item"
	KindMissingSide       Kind = "missing_side"
	KindDuplicateSide     Kind = "duplicate_side"
	KindUnresolvedType    Kind = "unresolved_type"
	KindOpaqueByValue     Kind = "opaque_by_value"
	KindInvalidFieldType  Kind = "invalid_field_type"
	KindInvalidElement    Kind = "invalid_element_type"
	KindRecursiveType     Kind = "recursive_type"
	KindInvalidLayout     Kind = "invalid_layout"
	KindFallibility       Kind = "fallibility_mismatch"
	KindUnsupportedPass   Kind = "unsupported_passing"
	KindInternalInvariant Kind = "internal_invariant"
	KindInvalidInput      Kind = "invalid_input"
	KindUnsupported       Kind = "unsupported"
	KindAllocation        Kind = "allocation"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindDoubleFree        Kind = "double_free"
	KindNotFound          Kind = "not_found"
)

var kindClasses = map[Kind]Class{
	KindDuplicateName:     ClassDeclaration,
	KindMalformedItem:     ClassDeclaration,
	KindMissingSide:       ClassDeclaration,
	KindDuplicateSide:     ClassDeclaration,
	KindUnresolvedType:    ClassResolution,
	KindOpaqueByValue:     ClassResolution,
	KindInvalidFieldType:  ClassResolution,
	KindInvalidElement:    ClassResolution,
	KindRecursiveType:     ClassResolution,
	KindInvalidLayout:     ClassResolution,
	KindFallibility:       ClassSignature,
	KindUnsupportedPass:   ClassSignature,
	KindInternalInvariant: ClassInternal,
}

// Class returns the taxonomy class the kind belongs to.
func (k Kind) Class() Class {
	if c, ok := kindClasses[k]; ok {
		return c
	}
	return ClassOther
}

// Location is a position in the declaration surface. Line and Column are
// 1-based; a zero Line means the position is unknown.
type Location struct {
	File   string
	Line   int
	Column int
}

// IsZero reports whether the location carries no information
func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0
}

func (l Location) String() string {
	if l.IsZero() {
		return ""
	}
	var b strings.Builder
	if l.File != "" {
		b.WriteString(l.File)
	} else {
		b.WriteString("<input>")
	}
	if l.Line > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(l.Line))
		if l.Column > 0 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(l.Column))
		}
	}
	return b.String()
}

// Error is the structured error type used throughout the module
type Error struct {
	Cause    error
	Phase    Phase
	Kind     Kind
	Location Location
	Detail   string
	Path     []string
}

// Class returns the taxonomy class of the error
func (e *Error) Class() Class {
	return e.Kind.Class()
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if !e.Location.IsZero() {
		b.WriteString(e.Location.String())
		b.WriteString(": ")
	}

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the item path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// At sets the source location
func (b *Builder) At(loc Location) *Builder {
	b.err.Location = loc
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// DuplicateName creates a duplicate declaration error
func DuplicateName(loc Location, scope, name string, first Location) *Error {
	detail := fmt.Sprintf("%s %q is declared more than once", scope, name)
	if !first.IsZero() {
		detail += fmt.Sprintf(" (first declared at %s)", first)
	}
	return &Error{
		Phase:    PhaseNormalize,
		Kind:     KindDuplicateName,
		Location: loc,
		Path:     []string{name},
		Detail:   detail,
	}
}

// Malformed creates a malformed item error
func Malformed(loc Location, path []string, detail string, args ...any) *Error {
	return &Error{
		Phase:    PhaseNormalize,
		Kind:     KindMalformedItem,
		Location: loc,
		Path:     path,
		Detail:   fmt.Sprintf(detail, args...),
	}
}

// Unresolved creates an unresolved type name error
func Unresolved(loc Location, path []string, name string) *Error {
	return &Error{
		Phase:    PhaseResolve,
		Kind:     KindUnresolvedType,
		Location: loc,
		Path:     path,
		Detail:   fmt.Sprintf("unknown type %q", name),
	}
}

// OpaqueByValue creates an opaque-by-value error
func OpaqueByValue(loc Location, path []string, name string) *Error {
	return &Error{
		Phase:    PhaseResolve,
		Kind:     KindOpaqueByValue,
		Location: loc,
		Path:     path,
		Detail:   fmt.Sprintf("opaque type %q cannot cross the boundary by value; use a reference or an owning pointer", name),
	}
}

// Signature creates a signature validation error
func Signature(kind Kind, loc Location, path []string, detail string, args ...any) *Error {
	return &Error{
		Phase:    PhaseValidate,
		Kind:     kind,
		Location: loc,
		Path:     path,
		Detail:   fmt.Sprintf(detail, args...),
	}
}

// Internal creates an internal invariant violation. These indicate a defect
// in the generator and are never caused by user input.
func Internal(phase Phase, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInternalInvariant,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// Unsupported creates an unsupported construct error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// Append combines errors into one, skipping nils.
func Append(err error, errs ...error) error {
	for _, e := range errs {
		err = multierr.Append(err, e)
	}
	return err
}

// All flattens a combined error into its structured diagnostics. Errors that
// are not *Error are wrapped with ClassOther.
func All(err error) []*Error {
	if err == nil {
		return nil
	}
	var out []*Error
	for _, e := range multierr.Errors(err) {
		if se, ok := e.(*Error); ok {
			out = append(out, se)
			continue
		}
		out = append(out, &Error{Phase: PhaseGenerate, Kind: KindInvalidInput, Cause: e})
	}
	return out
}

// HasClass reports whether any diagnostic in err belongs to class c.
func HasClass(err error, c Class) bool {
	for _, e := range All(err) {
		if e.Class() == c {
			return true
		}
	}
	return false
}
