// Package bridgegen compiles one bridge declaration into the two artifacts
// that let C++ and Rust call each other: a C++ header for the native side
// and a Rust module for the managed side.
//
// # Pipeline
//
//	surface (YAML or WIT)
//	  → normalize   structured surface to interface model
//	  → resolve     names, container instantiations, layouts, signature rules
//	  → gen/native  C++ header          ┐ run in parallel over the same
//	  → gen/managed Rust module         ┘ read-only resolved model
//
// Either both artifacts are produced or none is: any diagnostic aborts the
// run, and every diagnostic found in a phase is reported together.
//
// # Packages
//
//	bridgegen/       Generate entry points
//	├── surface/     declaration tree and YAML decoding
//	├── witimport/   WIT definitions to surface
//	├── config/      TOML settings: ABI version, namespace, primitives, layouts
//	├── model/       interface model and resolved model
//	├── normalize/   surface to model
//	├── resolve/     resolution and validation
//	├── abi/         container contracts, layouts, symbol mangling
//	├── gen/         artifact generators
//	├── runtime/     executable model of the container contracts
//	├── report/      diagnostic rendering
//	└── errors/      structured diagnostics
//
// # Quick Start
//
//	f, err := surface.LoadFile("engine.yaml")
//	if err != nil {
//		return err
//	}
//	art, err := bridgegen.Generate(ctx, f, bridgegen.Options{})
//	if err != nil {
//		report.Write(os.Stderr, err)
//		return err
//	}
//	os.WriteFile("engine_bridge.h", []byte(art.Native), 0o644)
//	os.WriteFile("engine_bridge.rs", []byte(art.Managed), 0o644)
//
// # Determinism
//
// Output depends only on the declaration and the configuration. Items are
// emitted in declaration order and container instantiations in sorted
// order, so repeated runs produce byte-identical artifacts.
package bridgegen
