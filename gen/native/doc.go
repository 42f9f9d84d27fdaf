// Package native renders the native (C++) side of a bridge.
//
// The artifact is a single header. Declarations are always visible; the
// exported trampolines, deleters, and natively implemented container
// operations are compiled in exactly one translation unit that defines the
// implementation macro named in the banner before including it:
//
//	#define BRIDGE01_DEMO_IMPLEMENTATION
//	#include "demo.bridge.h"
//
// Section order is fixed: banner, standard includes, user includes, runtime
// prelude, forward declarations and handle classes, items, container glue,
// call stubs, layout assertions, implementation.
//
// Native-origin functions are implemented by user code with the declared
// signature and signal failure by throwing. Their exported trampolines are
// noexcept; a fallible trampoline catches and reports the exception's
// what() text, an infallible one lets the runtime terminate the process.
package native
