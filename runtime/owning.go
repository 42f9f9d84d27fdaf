package runtime

import (
	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
)

// releaseSymbol names the control block release callback of a shared
// instantiation. It is internal to the implementing side and never linked.
func releaseSymbol(g abi.Glue) string {
	return "release_" + g.Key()
}

func (rt *Runtime) registerShared(g abi.Glue) error {
	name := releaseSymbol(g)
	if rt.symbols.Defined(name) {
		return nil
	}
	cb := abi.ControlBlockFor(rt.target)
	heap := rt.heaps[g.Impl]
	_, err := rt.symbols.Define(name, func(ctrl uint32) error {
		ptr, err := rt.readWord(ctrl + cb.Field("ptr").Offset)
		if err != nil {
			return err
		}
		err = rt.dropElem(g, ptr)
		heap.Free(ctrl, cb.Layout.Size, cb.Layout.Align)
		return err
	})
	return err
}

// allocElem places value on the implementing side's heap.
func (rt *Runtime) allocElem(g abi.Glue, value []byte) (uint32, error) {
	if len(value) != 0 && uint32(len(value)) != g.ElemLayout.Size {
		return 0, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).Path(g.Key()).
			Detail("value is %d bytes, want %d", len(value), g.ElemLayout.Size).Build()
	}
	ptr, err := rt.heaps[g.Impl].Alloc(g.ElemLayout.Size, g.ElemLayout.Align)
	if err != nil {
		return 0, err
	}
	if len(value) > 0 {
		if err := rt.mem.Write(ptr, value); err != nil {
			return 0, err
		}
	}
	return ptr, nil
}

func (rt *Runtime) destructor(g abi.Glue) (uint32, error) {
	idx, ok := rt.symbols.Index(g.ElemDrop)
	if !ok {
		return 0, errors.NotFound(errors.PhaseRuntime, "destructor", g.ElemDrop)
	}
	return idx, nil
}

// UniqueNew allocates value on the implementing side and stores the owning
// handle at h. The handle's drop callback is that side's destructor.
func (rt *Runtime) UniqueNew(g abi.Glue, h uint32, value []byte) (uint32, error) {
	if err := rt.checkKind(g, abi.OwningUnique); err != nil {
		return 0, err
	}
	drop, err := rt.destructor(g)
	if err != nil {
		return 0, err
	}
	ptr, err := rt.allocElem(g, value)
	if err != nil {
		return 0, err
	}
	if err := rt.writeField(g, h, "ptr", ptr); err != nil {
		return 0, err
	}
	return ptr, rt.writeField(g, h, "drop", drop)
}

// UniqueGet returns the owned pointer without giving up ownership.
func (rt *Runtime) UniqueGet(g abi.Glue, h uint32) (uint32, error) {
	if err := rt.checkKind(g, abi.OwningUnique); err != nil {
		return 0, err
	}
	return rt.readField(g, h, "ptr")
}

// UniqueRelease gives up ownership: the handle is reset and the pointer
// returned to the caller, who becomes responsible for it.
func (rt *Runtime) UniqueRelease(g abi.Glue, h uint32) (uint32, error) {
	ptr, err := rt.UniqueGet(g, h)
	if err != nil {
		return 0, err
	}
	return ptr, rt.zero(h, g.Handle)
}

// UniqueDrop destroys the owned object through the stored callback. A
// released or empty handle drops nothing.
func (rt *Runtime) UniqueDrop(g abi.Glue, h uint32) error {
	ptr, err := rt.UniqueGet(g, h)
	if err != nil {
		return err
	}
	drop, err := rt.readField(g, h, "drop")
	if err != nil {
		return err
	}
	if err := rt.zero(h, g.Handle); err != nil {
		return err
	}
	if ptr == 0 {
		return nil
	}
	return rt.symbols.Call(drop, ptr)
}

// SharedNew allocates value and a control block with a count of one on the
// implementing side and stores the handle at h.
func (rt *Runtime) SharedNew(g abi.Glue, h uint32, value []byte) (uint32, error) {
	if err := rt.checkKind(g, abi.OwningShared); err != nil {
		return 0, err
	}
	if err := rt.registerShared(g); err != nil {
		return 0, err
	}
	release, _ := rt.symbols.Index(releaseSymbol(g))
	if _, err := rt.destructor(g); err != nil {
		return 0, err
	}

	ptr, err := rt.allocElem(g, value)
	if err != nil {
		return 0, err
	}
	cb := abi.ControlBlockFor(rt.target)
	ctrl, err := rt.heaps[g.Impl].Alloc(cb.Layout.Size, cb.Layout.Align)
	if err != nil {
		return 0, err
	}
	if err := rt.mem.WriteU64(ctrl+cb.Field("count").Offset, 1); err != nil {
		return 0, err
	}
	if err := rt.writeWord(ctrl+cb.Field("drop").Offset, release); err != nil {
		return 0, err
	}
	if err := rt.writeWord(ctrl+cb.Field("ptr").Offset, ptr); err != nil {
		return 0, err
	}

	if err := rt.writeField(g, h, "ptr", ptr); err != nil {
		return 0, err
	}
	return ptr, rt.writeField(g, h, "ctrl", ctrl)
}

// SharedGet returns the shared pointer.
func (rt *Runtime) SharedGet(g abi.Glue, h uint32) (uint32, error) {
	if err := rt.checkKind(g, abi.OwningShared); err != nil {
		return 0, err
	}
	return rt.readField(g, h, "ptr")
}

// SharedCount returns the current reference count, zero for an empty
// handle.
func (rt *Runtime) SharedCount(g abi.Glue, h uint32) (uint64, error) {
	if err := rt.checkKind(g, abi.OwningShared); err != nil {
		return 0, err
	}
	ctrl, err := rt.readField(g, h, "ctrl")
	if err != nil || ctrl == 0 {
		return 0, err
	}
	rt.count.Lock()
	defer rt.count.Unlock()
	return rt.mem.ReadU64(ctrl + abi.ControlBlockFor(rt.target).Field("count").Offset)
}

// SharedClone increments the count and stores a second handle to the same
// object at dst.
func (rt *Runtime) SharedClone(g abi.Glue, dst, src uint32) error {
	if err := rt.checkKind(g, abi.OwningShared); err != nil {
		return err
	}
	ctrl, err := rt.readField(g, src, "ctrl")
	if err != nil {
		return err
	}
	if ctrl != 0 {
		if _, err := rt.addCount(g, ctrl, 1); err != nil {
			return err
		}
	}
	handle, err := rt.mem.Read(src, g.Handle.Size)
	if err != nil {
		return err
	}
	return rt.mem.Write(dst, append([]byte(nil), handle...))
}

// SharedDrop decrements the count and, when it reaches zero, releases the
// object and its control block through the control block's callback.
func (rt *Runtime) SharedDrop(g abi.Glue, h uint32) error {
	if err := rt.checkKind(g, abi.OwningShared); err != nil {
		return err
	}
	ctrl, err := rt.readField(g, h, "ctrl")
	if err != nil {
		return err
	}
	if err := rt.zero(h, g.Handle); err != nil {
		return err
	}
	if ctrl == 0 {
		return nil
	}
	n, err := rt.addCount(g, ctrl, -1)
	if err != nil || n != 0 {
		return err
	}
	release, err := rt.readWord(ctrl + abi.ControlBlockFor(rt.target).Field("drop").Offset)
	if err != nil {
		return err
	}
	return rt.symbols.Call(release, ctrl)
}

func (rt *Runtime) addCount(g abi.Glue, ctrl uint32, delta int) (uint64, error) {
	at := ctrl + abi.ControlBlockFor(rt.target).Field("count").Offset
	rt.count.Lock()
	defer rt.count.Unlock()
	n, err := rt.mem.ReadU64(at)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errors.New(errors.PhaseRuntime, errors.KindDoubleFree).Path(g.Key()).
			Detail("reference count of control block %#x is already zero", ctrl).Build()
	}
	if delta < 0 {
		n--
	} else {
		n++
	}
	return n, rt.mem.WriteU64(at, n)
}
