// Package abi is the built-in bridge type library: the fixed, ABI-stable
// contracts both generated artifacts and the runtime model read from.
//
// # Container Families
//
//	Family     Handle fields (pointer width each)   Operations
//	────────────────────────────────────────────────────────────────────
//	unique     ptr, drop                            new get release drop
//	shared     ptr, ctrl                            new clone get drop
//	string     ptr, cap, len                        new from_raw_parts len get push drop
//	vec<T>     ptr, cap, len                        new from_raw_parts len get push drop
//	option<T>  present(u8), payload@align(T)        drop
//
// The shared control block is {count: atomic u64, drop, ptr}. The count
// width, offset, and atomicity are part of the contract, so either side may
// clone or drop a handle.
//
// # Instantiation
//
// A Glue value substitutes an element into a family contract:
//
//	c := abi.ContractFor(abi.DynSequence, abi.DefaultTarget)
//	g := abi.Instantiate(c, mangler, "i32", abi.I32.Layout(t), "", abi.SideManaged)
//	g.Symbol(abi.OpLen) // "bridge01$vec$i32$len"
//
// Only the element size, alignment, and destructor callback differ between
// instantiations of one family.
//
// # Primitives
//
// Prim enumerates the primitives whose representation both sides agree on.
// Which of them a generation run accepts is configuration.
package abi
