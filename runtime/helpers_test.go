package runtime

import (
	"testing"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/model"
	"github.com/wippyai/bridgegen/normalize"
	"github.com/wippyai/bridgegen/resolve"
	"github.com/wippyai/bridgegen/surface"
)

const bridgeSrc = `
module: demo
items:
  - kind: struct
    name: Point
    fields:
      - {name: x, type: f64}
      - {name: y, type: f64}
  - kind: extern
    side: native
    types: [Engine]
    functions:
      - name: open
        params: [{name: path, type: String}]
        fallible: true
        returns: {name: Unique, args: [Engine]}
      - name: share
        params: [{name: e, type: {name: Unique, args: [Engine]}}]
        returns: {name: Shared, args: [Engine]}
  - kind: extern
    side: managed
    functions:
      - name: chunks
        params: [{name: points, type: {name: Vec, args: [Point]}}]
        returns: {name: Vec, args: [{name: Vec, args: [u8]}]}
      - name: label
        returns: {name: Option, args: [String]}
`

var testTarget32 = abi.Target{PointerWidth: 4}

var testMangler = abi.Mangler{Prefix: "bridge01", Namespace: []string{"demo"}}

func resolved(t *testing.T, target abi.Target) *model.Resolved {
	t.Helper()
	f, err := surface.Parse([]byte(bridgeSrc), "bridge.yaml")
	if err != nil {
		t.Fatalf("surface.Parse() error = %v", err)
	}
	m, err := normalize.Normalize(f, nil)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	r, err := resolve.Resolve(m, resolve.Options{
		Target:  target,
		Mangler: testMangler,
		Layouts: abi.Layouts{"Engine": {Size: 16, Align: 8}},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return r
}

// newRuntime loads the test bridge into a fresh runtime. An infallible
// failure fails the test instead of exiting.
func newRuntime(t *testing.T, target abi.Target) *Runtime {
	t.Helper()
	rt, err := New(NewSliceMemory(1<<16), Options{
		Target:    target,
		Mangler:   testMangler,
		Terminate: func(msg string) { t.Fatalf("terminated: %s", msg) },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := rt.Load(resolved(t, target)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return rt
}

func glue(t *testing.T, rt *Runtime, key string) abi.Glue {
	t.Helper()
	g, ok := rt.Glue(key)
	if !ok {
		t.Fatalf("no instantiation %q", key)
	}
	return g
}

func handle(t *testing.T, rt *Runtime, side abi.Side, g abi.Glue) uint32 {
	t.Helper()
	h, err := rt.Handle(side, g.Handle)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	return h
}

// balanced fails the test if any allocation is still live or any heap
// recorded a fault.
func balanced(t *testing.T, rt *Runtime) {
	t.Helper()
	if err := rt.Check(); err != nil {
		t.Errorf("heap faults: %v", err)
	}
	for _, side := range []abi.Side{abi.SideManaged, abi.SideNative} {
		s := rt.Heap(side).Stats()
		if s.Live != 0 || s.Allocs != s.Frees {
			t.Errorf("%s heap: %+v, want every allocation freed", side, s)
		}
	}
}
