// Package managed renders the managed (Rust) side of a bridge.
//
// The artifact is one module file meant to be mounted next to the code it
// binds, for example as mod bridge; in the crate module that defines the
// managed-origin types and functions. It starts with the runtime module rt
// holding the fixed representations of every container family, followed by
// the shared types, the raw declarations of native symbols, safe wrappers
// over them, and the exported symbols native code calls.
//
// Raw symbols carry the ABI prefix and '$' separators, which Rust
// identifiers cannot; declarations use link_name and definitions use
// export_name with a '__' spelled identifier.
package managed
