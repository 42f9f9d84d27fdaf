// Package gentest builds resolved models for generator tests.
package gentest

import (
	"testing"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/model"
	"github.com/wippyai/bridgegen/normalize"
	"github.com/wippyai/bridgegen/resolve"
	"github.com/wippyai/bridgegen/surface"
)

// Demo exercises every item kind, both sides, and every container family.
const Demo = `
module: demo
items:
  - kind: struct
    name: Point
    fields:
      - {name: x, type: f64}
      - {name: y, type: f64}
  - kind: struct
    name: Tagged
    fields:
      - {name: tag, type: u8}
      - {name: at, type: Point}
      - {name: label, type: {name: Option, args: [String]}}
  - kind: enum
    name: Mode
    variants: [Fast, Slow]
  - kind: extern
    side: native
    includes: ["demo/engine.h"]
    types: [Engine]
    functions:
      - name: new_engine
        params: [{name: mode, type: Mode}]
        returns: {name: Unique, args: [Engine]}
      - name: feed
        params:
          - {name: self, type: {ref: Engine, mut: true}, mode: receiver}
          - {name: data, type: {name: Vec, args: [u8]}}
        fallible: true
        returns: usize
      - name: share
        params: [{name: e, type: {name: Unique, args: [Engine]}}]
        returns: {name: Shared, args: [Engine]}
  - kind: extern
    side: managed
    types: [Sink]
    functions:
      - name: collect
        params:
          - {name: sink, type: {ref: Sink}}
          - {name: points, type: {name: Vec, args: [Point]}}
        returns: {name: Vec, args: [{name: Vec, args: [u8]}]}
      - name: describe
        params: [{name: p, type: {ref: Point}}]
        fallible: true
        returns: String
`

// Methods declares receiver functions on types of both origins, fallible
// and infallible, with const and mutable receivers.
const Methods = `
module: demo
items:
  - kind: struct
    name: P
    fields:
      - {name: x, type: i32}
  - kind: extern
    side: managed
    types: [Blob]
    functions:
      - name: peek
        params:
          - {name: self, type: {ref: Blob}, mode: receiver}
          - {name: p, type: P}
        returns: {name: Option, args: [u8]}
      - name: poke
        params:
          - {name: self, type: {ref: Blob, mut: true}, mode: receiver}
          - {name: data, type: {name: Vec, args: [u8]}}
        fallible: true
      - name: len
        params: [{name: self, type: {ref: P}, mode: receiver}]
        returns: usize
      - name: drop
        params: [{name: self, type: {ref: P, mut: true}, mode: receiver}]
  - kind: extern
    side: native
    types: [Codec]
    functions:
      - name: encode
        params:
          - {name: self, type: {ref: Codec}, mode: receiver}
          - {name: text, type: String}
        returns: {name: Vec, args: [u8]}
      - name: reset
        params: [{name: self, type: {ref: Codec, mut: true}, mode: receiver}]
        fallible: true
      - name: len
        params: []
        returns: usize
`

// Mangler is the symbol scheme Resolve uses.
var Mangler = abi.Mangler{Prefix: "bridge01", Namespace: []string{"demo"}}

// Resolve parses, normalizes, and resolves src, failing the test on any
// diagnostic.
func Resolve(t testing.TB, src string) *model.Resolved {
	t.Helper()
	f, err := surface.Parse([]byte(src), "test.yaml")
	if err != nil {
		t.Fatalf("surface.Parse() error = %v", err)
	}
	m, err := normalize.Normalize(f, nil)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	r, err := resolve.Resolve(m, resolve.Options{Target: abi.DefaultTarget, Mangler: Mangler})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return r
}
