// Package model is the interface model: the typed intermediate representation
// of bridge declarations shared by the normalizer, the resolver, and both
// generators.
//
// Item and TypeRef are closed sum types. Their variants implement an
// unexported marker method, so every consumer matches them with an
// exhaustive type switch and a new variant is a compile-visible change.
//
//	Item:    *OpaqueType | *SharedStruct | *Enum | *ExternBlock
//	TypeRef: Primitive | OpaqueRef | SharedStructRef | EnumRef |
//	         Container | Borrow | Named | ErrorCarrying
//
// Named and ErrorCarrying only exist before resolution. A Resolved model
// never contains them.
//
// Models are immutable once built: the resolver produces a new Module
// rather than annotating the normalizer's output.
package model
