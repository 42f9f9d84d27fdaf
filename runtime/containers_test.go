package runtime

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
)

func TestVecRoundTrip(t *testing.T) {
	for _, target := range []abi.Target{abi.DefaultTarget, testTarget32} {
		t.Run(target.Pointer().String(), func(t *testing.T) {
			rt := newRuntime(t, target)
			g := glue(t, rt, "vec_u8")

			// Built by the managed side, read by the native side.
			h := handle(t, rt, abi.SideNative, g)
			if err := rt.VecNew(g, h); err != nil {
				t.Fatal(err)
			}
			for i := 0; i < 100; i++ {
				if err := rt.VecPush(g, h, []byte{byte(i)}); err != nil {
					t.Fatalf("VecPush(%d) error = %v", i, err)
				}
			}
			n, err := rt.VecLen(g, h)
			if err != nil || n != 100 {
				t.Fatalf("VecLen() = %d, %v", n, err)
			}
			for _, i := range []uint32{0, 37, 99} {
				at, err := rt.VecGet(g, h, i)
				if err != nil {
					t.Fatal(err)
				}
				if v, _ := rt.Memory().ReadU8(at); uint32(v) != i {
					t.Errorf("element %d = %d", i, v)
				}
			}
			if _, err := rt.VecGet(g, h, 100); err == nil {
				t.Error("VecGet past the end succeeded")
			} else if se := err.(*errors.Error); se.Kind != errors.KindOutOfBounds {
				t.Errorf("VecGet past the end error = %v", err)
			}

			// Growth 4, 8, ..., 128 allocates six blocks and frees five.
			if s := rt.Heap(abi.SideManaged).Stats(); s.Allocs != 6 || s.Live != 1 {
				t.Errorf("managed heap after pushes = %+v", s)
			}
			if s := rt.Heap(abi.SideNative).Stats(); s.Allocs != 1 {
				t.Errorf("native heap = %+v, want only the handle", s)
			}

			if err := rt.VecDrop(g, h); err != nil {
				t.Fatal(err)
			}
			if n, _ := rt.VecLen(g, h); n != 0 {
				t.Errorf("VecLen after drop = %d", n)
			}
			rt.FreeHandle(abi.SideNative, h, g.Handle)
			balanced(t, rt)
		})
	}
}

func TestVecOfStructs(t *testing.T) {
	rt := newRuntime(t, abi.DefaultTarget)
	g := glue(t, rt, "vec_Point")
	if g.ElemLayout != (abi.Layout{Size: 16, Align: 8}) {
		t.Fatalf("Point layout = %v", g.ElemLayout)
	}

	h := handle(t, rt, abi.SideManaged, g)
	point := func(x, y float64) []byte {
		b := make([]byte, 16)
		binary.LittleEndian.PutUint64(b, math.Float64bits(x))
		binary.LittleEndian.PutUint64(b[8:], math.Float64bits(y))
		return b
	}
	for i := 0; i < 5; i++ {
		if err := rt.VecPush(g, h, point(float64(i), -float64(i))); err != nil {
			t.Fatal(err)
		}
	}
	if err := rt.VecPush(g, h, []byte{1, 2, 3}); err == nil {
		t.Error("VecPush of a short element succeeded")
	}
	at, _ := rt.VecGet(g, h, 3)
	y, _ := rt.Memory().ReadU64(at + 8)
	if math.Float64frombits(y) != -3 {
		t.Errorf("points[3].y = %v", math.Float64frombits(y))
	}
	if err := rt.VecDrop(g, h); err != nil {
		t.Fatal(err)
	}
	rt.FreeHandle(abi.SideManaged, h, g.Handle)
	balanced(t, rt)
}

func TestNestedVecDrop(t *testing.T) {
	rt := newRuntime(t, abi.DefaultTarget)
	outer := glue(t, rt, "vec_vec_u8")
	inner := glue(t, rt, "vec_u8")
	if outer.ElemDrop != inner.Symbol(abi.OpDrop) {
		t.Fatalf("outer element drop = %q, want %q", outer.ElemDrop, inner.Symbol(abi.OpDrop))
	}

	h := handle(t, rt, abi.SideManaged, outer)
	tmp := handle(t, rt, abi.SideManaged, inner)
	for i := 0; i < 3; i++ {
		if err := rt.VecNew(inner, tmp); err != nil {
			t.Fatal(err)
		}
		for j := 0; j <= i; j++ {
			if err := rt.VecPush(inner, tmp, []byte{byte(j)}); err != nil {
				t.Fatal(err)
			}
		}
		// Pushing moves the inner handle into the outer storage.
		raw, _ := rt.Memory().Read(tmp, inner.Handle.Size)
		if err := rt.VecPush(outer, h, append([]byte(nil), raw...)); err != nil {
			t.Fatal(err)
		}
	}
	rt.FreeHandle(abi.SideManaged, tmp, inner.Handle)

	at, _ := rt.VecGet(outer, h, 2)
	if n, _ := rt.VecLen(inner, at); n != 3 {
		t.Errorf("inner[2] length = %d", n)
	}

	if err := rt.VecDrop(outer, h); err != nil {
		t.Fatal(err)
	}
	rt.FreeHandle(abi.SideManaged, h, outer.Handle)
	balanced(t, rt)
}

func TestVecFromRawParts(t *testing.T) {
	rt := newRuntime(t, abi.DefaultTarget)
	g := glue(t, rt, "vec_u8")
	h := handle(t, rt, abi.SideNative, g)
	managed := rt.Heap(abi.SideManaged)
	native := rt.Heap(abi.SideNative)

	ptr, _ := managed.Alloc(8, 1)
	foreign, _ := native.Alloc(8, 1)

	tests := []struct {
		name             string
		ptr, cap, length uint32
		wantErr          bool
	}{
		{"managed storage", ptr, 8, 5, false},
		{"length beyond capacity", ptr, 8, 9, true},
		{"capacity mismatch", ptr, 4, 2, true},
		{"native storage", foreign, 8, 1, true},
		{"null with capacity", 0, 8, 0, true},
		{"empty", 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rt.VecFromRawParts(g, h, tt.ptr, tt.cap, tt.length)
			if (err != nil) != tt.wantErr {
				t.Errorf("VecFromRawParts() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := rt.VecFromRawParts(g, h, ptr, 8, 5); err != nil {
		t.Fatal(err)
	}
	if err := rt.VecDrop(g, h); err != nil {
		t.Fatal(err)
	}
	native.Free(foreign, 8, 1)
	rt.FreeHandle(abi.SideNative, h, g.Handle)
	balanced(t, rt)
}

func TestString(t *testing.T) {
	rt := newRuntime(t, testTarget32)
	g := rt.StringGlue()
	for _, s := range []string{"", "a", "héllo wörld", string(make([]byte, 300))} {
		h := handle(t, rt, abi.SideNative, g)
		if err := rt.StringFrom(h, s); err != nil {
			t.Fatal(err)
		}
		got, err := rt.ReadString(h)
		if err != nil || got != s {
			t.Errorf("ReadString() = %q, %v, want %q", got, err, s)
		}
		if err := rt.Drop(g, h); err != nil {
			t.Fatal(err)
		}
		rt.FreeHandle(abi.SideNative, h, g.Handle)
	}
	balanced(t, rt)
}

func TestOption(t *testing.T) {
	rt := newRuntime(t, abi.DefaultTarget)
	g := glue(t, rt, "option_string")
	if g.PayloadOffset != 8 || g.Handle != (abi.Layout{Size: 32, Align: 8}) {
		t.Fatalf("option_string payload at %d, handle %v", g.PayloadOffset, g.Handle)
	}

	h := handle(t, rt, abi.SideManaged, g)
	if _, present, err := rt.OptionGet(g, h); err != nil || present {
		t.Fatalf("fresh optional present = %v, %v", present, err)
	}

	s := handle(t, rt, abi.SideManaged, rt.StringGlue())
	if err := rt.StringFrom(s, "label"); err != nil {
		t.Fatal(err)
	}
	raw, _ := rt.Memory().Read(s, rt.StringGlue().Handle.Size)
	if err := rt.OptionSet(g, h, append([]byte(nil), raw...)); err != nil {
		t.Fatal(err)
	}
	rt.FreeHandle(abi.SideManaged, s, rt.StringGlue().Handle)

	at, present, err := rt.OptionGet(g, h)
	if err != nil || !present {
		t.Fatalf("OptionGet() present = %v, %v", present, err)
	}
	if got, _ := rt.ReadString(at); got != "label" {
		t.Errorf("payload = %q", got)
	}

	// Dropping the optional drops the string it holds.
	if err := rt.OptionDrop(g, h); err != nil {
		t.Fatal(err)
	}
	if _, present, _ := rt.OptionGet(g, h); present {
		t.Error("optional still present after drop")
	}
	rt.FreeHandle(abi.SideManaged, h, g.Handle)
	balanced(t, rt)
}

func TestKindMismatch(t *testing.T) {
	rt := newRuntime(t, abi.DefaultTarget)
	g := glue(t, rt, "unique_Engine")
	err := rt.VecNew(g, 64)
	if !errors.HasClass(err, errors.ClassInternal) {
		t.Errorf("VecNew on a unique handle error = %v, want an internal invariant violation", err)
	}
}
