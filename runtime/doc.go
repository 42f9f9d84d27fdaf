// Package runtime executes the built-in container contracts against a
// linear memory shared by both sides of a bridge.
//
// A Runtime owns one heap per side inside the shared memory and a table of
// function pointers for destructor callbacks. Container operations read and
// write handles at the offsets the abi package defines, so a handle built
// here has exactly the bytes the generated C++ and Rust code would see.
//
// # Ownership
//
// Sequence and string storage always belongs to the managed heap. Objects
// behind owning-unique and owning-shared handles belong to the side that
// implements their type and are destroyed through the callback stored in
// the handle or control block, never by the other side's allocator. Heaps
// record double frees and foreign frees as faults; Check reports them.
//
// # Calls
//
// CallFallible converts a failure into an Outcome carrying the message text,
// and OutcomeResult turns it back into a *Failure on the calling side.
// CallInfallible terminates the process on failure.
//
// # Memory
//
// SliceMemory is a plain in-process memory. WrapMemory adapts the exported
// memory of a wazero module instance.
package runtime
