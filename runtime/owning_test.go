package runtime

import (
	"sync"
	"testing"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
)

func TestUnique(t *testing.T) {
	rt, err := New(NewSliceMemory(1<<16), Options{Mangler: testMangler})
	if err != nil {
		t.Fatal(err)
	}
	native := rt.Heap(abi.SideNative)

	// The native side's destructor, defined before the model is loaded.
	var destroyed []uint32
	if _, err := rt.Define(testMangler.Deleter("Engine"), func(ptr uint32) error {
		destroyed = append(destroyed, ptr)
		native.Free(ptr, 16, 8)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := rt.Load(resolved(t, abi.DefaultTarget)); err != nil {
		t.Fatal(err)
	}
	g := glue(t, rt, "unique_Engine")

	h := handle(t, rt, abi.SideManaged, g)
	ptr, err := rt.UniqueNew(g, h, make([]byte, 16))
	if err != nil {
		t.Fatal(err)
	}
	if !native.Owns(ptr) {
		t.Errorf("engine at %#x is not on the native heap", ptr)
	}
	if got, _ := rt.UniqueGet(g, h); got != ptr {
		t.Errorf("UniqueGet() = %#x, want %#x", got, ptr)
	}

	if err := rt.UniqueDrop(g, h); err != nil {
		t.Fatal(err)
	}
	if len(destroyed) != 1 || destroyed[0] != ptr {
		t.Fatalf("destroyed = %v, want [%#x]", destroyed, ptr)
	}
	if err := rt.UniqueDrop(g, h); err != nil || len(destroyed) != 1 {
		t.Errorf("second drop: err = %v, destroyed = %v", err, destroyed)
	}

	// Release hands the pointer back without destroying it.
	ptr, _ = rt.UniqueNew(g, h, nil)
	released, err := rt.UniqueRelease(g, h)
	if err != nil || released != ptr {
		t.Fatalf("UniqueRelease() = %#x, %v", released, err)
	}
	if err := rt.UniqueDrop(g, h); err != nil || len(destroyed) != 1 {
		t.Errorf("drop after release: err = %v, destroyed = %v", err, destroyed)
	}
	if err := rt.Symbols().CallNamed(g.ElemDrop, released); err != nil {
		t.Fatal(err)
	}

	rt.FreeHandle(abi.SideManaged, h, g.Handle)
	balanced(t, rt)
}

func TestSharedAliasing(t *testing.T) {
	rt := newRuntime(t, abi.DefaultTarget)
	g := glue(t, rt, "shared_Engine")
	mem := rt.Memory()

	// The native side creates the object; the managed side takes a second
	// reference to it.
	native := handle(t, rt, abi.SideNative, g)
	ptr, err := rt.SharedNew(g, native, make([]byte, 16))
	if err != nil {
		t.Fatal(err)
	}
	managed := handle(t, rt, abi.SideManaged, g)
	if err := rt.SharedClone(g, managed, native); err != nil {
		t.Fatal(err)
	}
	if n, _ := rt.SharedCount(g, native); n != 2 {
		t.Fatalf("count after clone = %d, want 2", n)
	}

	a, _ := rt.SharedGet(g, native)
	b, _ := rt.SharedGet(g, managed)
	if a != ptr || b != ptr {
		t.Fatalf("handles point at %#x and %#x, want %#x", a, b, ptr)
	}
	if err := mem.WriteU64(b, 0xfeed); err != nil {
		t.Fatal(err)
	}
	if v, _ := mem.ReadU64(a); v != 0xfeed {
		t.Errorf("native side reads %#x, want the managed write", v)
	}

	liveBefore := rt.Heap(abi.SideNative).Stats().Live
	if err := rt.SharedDrop(g, native); err != nil {
		t.Fatal(err)
	}
	if live := rt.Heap(abi.SideNative).Stats().Live; live != liveBefore {
		t.Errorf("object released while the managed reference is alive")
	}
	if n, _ := rt.SharedCount(g, managed); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	if v, _ := mem.ReadU64(b); v != 0xfeed {
		t.Errorf("managed side reads %#x after the native drop", v)
	}

	if err := rt.SharedDrop(g, managed); err != nil {
		t.Fatal(err)
	}
	rt.FreeHandle(abi.SideNative, native, g.Handle)
	rt.FreeHandle(abi.SideManaged, managed, g.Handle)
	balanced(t, rt)
}

func TestSharedConcurrent(t *testing.T) {
	rt := newRuntime(t, abi.DefaultTarget)
	g := glue(t, rt, "shared_Engine")

	root := handle(t, rt, abi.SideNative, g)
	if _, err := rt.SharedNew(g, root, nil); err != nil {
		t.Fatal(err)
	}

	const workers, rounds = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		side := abi.SideManaged
		if w%2 == 0 {
			side = abi.SideNative
		}
		wg.Add(1)
		go func(side abi.Side) {
			defer wg.Done()
			h, err := rt.Handle(side, g.Handle)
			if err != nil {
				t.Error(err)
				return
			}
			defer rt.FreeHandle(side, h, g.Handle)
			for i := 0; i < rounds; i++ {
				if err := rt.SharedClone(g, h, root); err != nil {
					t.Error(err)
					return
				}
				if err := rt.SharedDrop(g, h); err != nil {
					t.Error(err)
					return
				}
			}
		}(side)
	}
	wg.Wait()

	if n, _ := rt.SharedCount(g, root); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	if err := rt.SharedDrop(g, root); err != nil {
		t.Fatal(err)
	}
	rt.FreeHandle(abi.SideNative, root, g.Handle)
	balanced(t, rt)
}

func TestSharedBitwiseCopyDetected(t *testing.T) {
	rt := newRuntime(t, abi.DefaultTarget)
	g := glue(t, rt, "shared_Engine")

	a := handle(t, rt, abi.SideNative, g)
	if _, err := rt.SharedNew(g, a, nil); err != nil {
		t.Fatal(err)
	}
	// A copy that skipped clone shares the control block without counting.
	b := handle(t, rt, abi.SideManaged, g)
	raw, _ := rt.Memory().Read(a, g.Handle.Size)
	if err := rt.Memory().Write(b, append([]byte(nil), raw...)); err != nil {
		t.Fatal(err)
	}

	if err := rt.SharedDrop(g, a); err != nil {
		t.Fatal(err)
	}
	err := rt.SharedDrop(g, b)
	if se, ok := err.(*errors.Error); !ok || se.Kind != errors.KindDoubleFree {
		t.Errorf("second drop error = %v, want %s", err, errors.KindDoubleFree)
	}
}
