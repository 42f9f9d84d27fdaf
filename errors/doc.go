// Package errors provides structured error types for the bridge compiler.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Every Kind maps to one Class of the user-facing taxonomy:
//
//	DeclarationError            duplicate names, malformed items, side tags
//	TypeResolutionError         unresolved names, opaque by value, bad fields/elements
//	SignatureError              fallibility mismatch, unsupported passing modes
//	InternalInvariantViolation  generator defects, never user input
//
// The Error type carries the source location, item path, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindUnresolvedType).
//		At(loc).
//		Path("Point", "origin").
//		Detail("unknown type %q", "Vec3").
//		Build()
//
// Several diagnostics found in one pass are combined with Append and
// recovered with All. All errors support errors.Is/As.
package errors
