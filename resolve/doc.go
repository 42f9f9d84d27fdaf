// Package resolve binds names in a normalized module and enforces the
// cross-language rules.
//
// Resolution runs in one pass over the module in declaration order and
// collects every error it finds instead of stopping at the first one. Checks
// that depend on a reference being resolved are skipped for references that
// failed to resolve, so one unknown name yields one diagnostic.
//
// The result is a new model.Resolved; the input module is not modified.
// It carries:
//
//   - the module with every Named reference replaced by its binding
//   - a fresh type index for the run
//   - shared struct layouts and side-supplied opaque layouts
//   - the deduplicated container instantiations, sorted by family and
//     canonical element name so output never depends on discovery order
package resolve
