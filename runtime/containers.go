package runtime

import (
	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
)

const minCapacity = 4

func (rt *Runtime) checkKind(g abi.Glue, kinds ...abi.ContainerKind) error {
	for _, k := range kinds {
		if g.Kind == k {
			return nil
		}
	}
	return errors.Internal(errors.PhaseRuntime, "%s operation applied to a %s handle", kinds[0], g.Kind)
}

// stride is the distance between consecutive elements.
func stride(g abi.Glue) uint32 {
	return abi.AlignTo(g.ElemLayout.Size, g.ElemLayout.Align)
}

func storage(g abi.Glue, capacity uint32) (size, align uint32) {
	return capacity * stride(g), g.ElemLayout.Align
}

// VecNew initializes the handle at h as an empty sequence.
func (rt *Runtime) VecNew(g abi.Glue, h uint32) error {
	if err := rt.checkKind(g, abi.DynSequence, abi.DynString); err != nil {
		return err
	}
	return rt.zero(h, g.Handle)
}

// VecFromRawParts adopts storage the managed allocator handed out.
func (rt *Runtime) VecFromRawParts(g abi.Glue, h, ptr, capacity, length uint32) error {
	if err := rt.checkKind(g, abi.DynSequence, abi.DynString); err != nil {
		return err
	}
	if length > capacity {
		return errors.New(errors.PhaseRuntime, errors.KindInvalidInput).Path(g.Key()).
			Detail("length %d exceeds capacity %d", length, capacity).Build()
	}
	if ptr == 0 && capacity != 0 {
		return errors.New(errors.PhaseRuntime, errors.KindInvalidInput).Path(g.Key()).
			Detail("null storage with capacity %d", capacity).Build()
	}
	if ptr != 0 {
		want, _ := storage(g, capacity)
		if want == 0 {
			want = 1
		}
		got, ok := rt.heaps[abi.SideManaged].Size(ptr)
		if !ok || got != want {
			return errors.New(errors.PhaseRuntime, errors.KindInvalidInput).Path(g.Key()).
				Detail("storage %#x is not a managed allocation of %d bytes", ptr, want).Build()
		}
	}
	if err := rt.writeField(g, h, "ptr", ptr); err != nil {
		return err
	}
	if err := rt.writeField(g, h, "cap", capacity); err != nil {
		return err
	}
	return rt.writeField(g, h, "len", length)
}

// VecLen returns the number of elements.
func (rt *Runtime) VecLen(g abi.Glue, h uint32) (uint32, error) {
	if err := rt.checkKind(g, abi.DynSequence, abi.DynString); err != nil {
		return 0, err
	}
	return rt.readField(g, h, "len")
}

// VecGet returns the address of element i.
func (rt *Runtime) VecGet(g abi.Glue, h, i uint32) (uint32, error) {
	n, err := rt.VecLen(g, h)
	if err != nil {
		return 0, err
	}
	if i >= n {
		return 0, errors.OutOfBounds(errors.PhaseRuntime, []string{g.Key()}, int(i), int(n))
	}
	ptr, err := rt.readField(g, h, "ptr")
	if err != nil {
		return 0, err
	}
	return ptr + i*stride(g), nil
}

// VecPush appends one element, growing the storage on the managed heap.
func (rt *Runtime) VecPush(g abi.Glue, h uint32, elem []byte) error {
	if err := rt.checkKind(g, abi.DynSequence, abi.DynString); err != nil {
		return err
	}
	if uint32(len(elem)) != g.ElemLayout.Size {
		return errors.New(errors.PhaseRuntime, errors.KindInvalidInput).Path(g.Key()).
			Detail("element is %d bytes, want %d", len(elem), g.ElemLayout.Size).Build()
	}

	ptr, err := rt.readField(g, h, "ptr")
	if err != nil {
		return err
	}
	capacity, err := rt.readField(g, h, "cap")
	if err != nil {
		return err
	}
	length, err := rt.readField(g, h, "len")
	if err != nil {
		return err
	}

	if length == capacity {
		grown := 2 * capacity
		if grown < minCapacity {
			grown = minCapacity
		}
		if ptr, err = rt.grow(g, ptr, capacity, length, grown); err != nil {
			return err
		}
		capacity = grown
		if err := rt.writeField(g, h, "ptr", ptr); err != nil {
			return err
		}
		if err := rt.writeField(g, h, "cap", capacity); err != nil {
			return err
		}
	}

	if err := rt.mem.Write(ptr+length*stride(g), elem); err != nil {
		return err
	}
	return rt.writeField(g, h, "len", length+1)
}

func (rt *Runtime) grow(g abi.Glue, ptr, capacity, length, grown uint32) (uint32, error) {
	heap := rt.heaps[abi.SideManaged]
	size, align := storage(g, grown)
	next, err := heap.Alloc(size, align)
	if err != nil {
		return 0, err
	}
	if ptr == 0 {
		return next, nil
	}
	if n := length * stride(g); n > 0 {
		old, err := rt.mem.Read(ptr, n)
		if err != nil {
			return 0, err
		}
		if err := rt.mem.Write(next, append([]byte(nil), old...)); err != nil {
			return 0, err
		}
	}
	oldSize, oldAlign := storage(g, capacity)
	heap.Free(ptr, oldSize, oldAlign)
	return next, nil
}

// VecBytes copies the raw element bytes out of the sequence.
func (rt *Runtime) VecBytes(g abi.Glue, h uint32) ([]byte, error) {
	n, err := rt.VecLen(g, h)
	if err != nil || n == 0 {
		return nil, err
	}
	ptr, err := rt.readField(g, h, "ptr")
	if err != nil {
		return nil, err
	}
	data, err := rt.mem.Read(ptr, n*stride(g))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}

// VecDrop destroys every element, frees the storage, and resets the handle.
func (rt *Runtime) VecDrop(g abi.Glue, h uint32) error {
	ptr, err := rt.readField(g, h, "ptr")
	if err != nil {
		return err
	}
	capacity, err := rt.readField(g, h, "cap")
	if err != nil {
		return err
	}
	length, err := rt.readField(g, h, "len")
	if err != nil {
		return err
	}

	var errs error
	for i := uint32(0); i < length; i++ {
		errs = errors.Append(errs, rt.dropElem(g, ptr+i*stride(g)))
	}
	if ptr != 0 {
		size, align := storage(g, capacity)
		rt.heaps[abi.SideManaged].Free(ptr, size, align)
	}
	return errors.Append(errs, rt.zero(h, g.Handle))
}

// StringFrom initializes the handle at h with a copy of s.
func (rt *Runtime) StringFrom(h uint32, s string) error {
	g := rt.str
	if len(s) == 0 {
		return rt.VecNew(g, h)
	}
	n := uint32(len(s))
	ptr, err := rt.heaps[abi.SideManaged].Alloc(n, 1)
	if err != nil {
		return err
	}
	if err := rt.mem.Write(ptr, []byte(s)); err != nil {
		return err
	}
	return rt.VecFromRawParts(g, h, ptr, n, n)
}

// ReadString copies the string at h out of memory.
func (rt *Runtime) ReadString(h uint32) (string, error) {
	b, err := rt.VecBytes(rt.str, h)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// OptionSet stores payload in the optional at h and marks it present.
func (rt *Runtime) OptionSet(g abi.Glue, h uint32, payload []byte) error {
	if err := rt.checkKind(g, abi.Optional); err != nil {
		return err
	}
	if uint32(len(payload)) != g.ElemLayout.Size {
		return errors.New(errors.PhaseRuntime, errors.KindInvalidInput).Path(g.Key()).
			Detail("payload is %d bytes, want %d", len(payload), g.ElemLayout.Size).Build()
	}
	if err := rt.mem.Write(h+g.PayloadOffset, payload); err != nil {
		return err
	}
	return rt.mem.WriteU8(h, 1)
}

// OptionGet returns the payload address and whether it is present.
func (rt *Runtime) OptionGet(g abi.Glue, h uint32) (uint32, bool, error) {
	if err := rt.checkKind(g, abi.Optional); err != nil {
		return 0, false, err
	}
	present, err := rt.mem.ReadU8(h)
	if err != nil {
		return 0, false, err
	}
	return h + g.PayloadOffset, present != 0, nil
}

// OptionDrop destroys a present payload and clears the optional.
func (rt *Runtime) OptionDrop(g abi.Glue, h uint32) error {
	at, present, err := rt.OptionGet(g, h)
	if err != nil {
		return err
	}
	if present {
		err = rt.dropElem(g, at)
	}
	return errors.Append(err, rt.zero(h, g.Handle))
}
