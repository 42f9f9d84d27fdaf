package runtime

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
	"github.com/wippyai/bridgegen/model"
)

// Options configures a Runtime.
type Options struct {
	Target  abi.Target
	Mangler abi.Mangler
	// HeapSize is the size of each side's heap. Zero splits the memory
	// evenly, which requires a Memory that implements MemorySizer.
	HeapSize uint32
	// Terminate ends the process when an infallible call fails. Nil uses
	// the default, which reports the message and exits with status 134.
	Terminate func(msg string)
}

// Runtime runs the container contracts over one shared memory with a heap
// per side. It is safe for concurrent use.
type Runtime struct {
	mem       Memory
	target    abi.Target
	mangler   abi.Mangler
	heaps     map[abi.Side]*Heap
	symbols   *SymbolTable
	terminate func(msg string)

	mu    sync.RWMutex
	glues map[string]abi.Glue
	str   abi.Glue

	// count serializes reference count read-modify-writes; it stands in for
	// the atomic instruction each side executes on the control block.
	count sync.Mutex
}

// New returns a runtime over mem.
func New(mem Memory, opts Options) (*Runtime, error) {
	if mem == nil {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "nil memory")
	}
	if opts.Target.PointerWidth == 0 {
		opts.Target = abi.DefaultTarget
	}
	if w := opts.Target.PointerWidth; w != 4 && w != 8 {
		return nil, errors.InvalidInput(errors.PhaseRuntime, fmt.Sprintf("unsupported pointer width %d", w))
	}

	const base = 8
	size := opts.HeapSize
	if size == 0 {
		sizer, ok := mem.(MemorySizer)
		if !ok {
			return nil, errors.InvalidInput(errors.PhaseRuntime, "heap size is required for memory of unknown size")
		}
		if sizer.Size() <= base {
			return nil, errors.InvalidInput(errors.PhaseRuntime, "memory too small")
		}
		size = (sizer.Size() - base) / 2
	}
	if sizer, ok := mem.(MemorySizer); ok && uint64(base)+2*uint64(size) > uint64(sizer.Size()) {
		return nil, errors.InvalidInput(errors.PhaseRuntime, fmt.Sprintf("two heaps of %d bytes do not fit in %d bytes", size, sizer.Size()))
	}

	rt := &Runtime{
		mem:     mem,
		target:  opts.Target,
		mangler: opts.Mangler,
		heaps: map[abi.Side]*Heap{
			abi.SideManaged: NewHeap(abi.SideManaged, base, base+size),
			abi.SideNative:  NewHeap(abi.SideNative, base+size, base+2*size),
		},
		symbols:   NewSymbolTable(),
		terminate: opts.Terminate,
		glues:     make(map[string]abi.Glue),
	}
	if rt.terminate == nil {
		rt.terminate = defaultTerminate
	}

	rt.str = abi.Instantiate(abi.ContractFor(abi.DynString, rt.target), rt.mangler, "", abi.Layout{}, "", abi.SideManaged)
	if err := rt.Register(rt.str); err != nil {
		return nil, err
	}
	return rt, nil
}

func defaultTerminate(msg string) {
	Logger().Error("infallible bridge call failed", zap.String("message", msg))
	fmt.Fprintf(os.Stderr, "bridge: infallible call failed: %s\n", msg)
	os.Exit(134)
}

// Load registers every instantiation of a resolved model.
func (rt *Runtime) Load(r *model.Resolved) error {
	if r == nil {
		return errors.InvalidInput(errors.PhaseRuntime, "nil model")
	}
	var errs error
	for _, g := range r.Instantiations {
		if _, ok := rt.Glue(g.Key()); ok {
			continue
		}
		errs = errors.Append(errs, rt.Register(g))
	}
	Logger().Debug("loaded instantiations",
		zap.String("module", r.Module.Name),
		zap.Int("instantiations", len(r.Instantiations)))
	return errs
}

// Register defines the drop operation of g and, for owning families, a
// default destructor for its element that frees it from the implementing
// side's heap. Destructors defined beforehand are kept.
func (rt *Runtime) Register(g abi.Glue) error {
	rt.mu.Lock()
	rt.glues[g.Key()] = g
	rt.mu.Unlock()

	if sym := g.Symbol(abi.OpDrop); sym != "" && !rt.symbols.Defined(sym) {
		if _, err := rt.symbols.Define(sym, func(h uint32) error { return rt.Drop(g, h) }); err != nil {
			return err
		}
	}
	if g.Kind.Indirect() && g.ElemDrop != "" && !rt.symbols.Defined(g.ElemDrop) {
		heap := rt.Heap(g.Impl)
		layout := g.ElemLayout
		if _, err := rt.symbols.Define(g.ElemDrop, func(ptr uint32) error {
			heap.Free(ptr, layout.Size, layout.Align)
			return nil
		}); err != nil {
			return err
		}
	}
	if g.Kind == abi.OwningShared {
		return rt.registerShared(g)
	}
	return nil
}

// Glue returns a registered instantiation by key.
func (rt *Runtime) Glue(key string) (abi.Glue, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	g, ok := rt.glues[key]
	return g, ok
}

// StringGlue returns the dynamic string instantiation.
func (rt *Runtime) StringGlue() abi.Glue {
	return rt.str
}

// Memory returns the shared memory.
func (rt *Runtime) Memory() Memory {
	return rt.mem
}

// Target returns the target the contracts are laid out for.
func (rt *Runtime) Target() abi.Target {
	return rt.target
}

// Heap returns the allocator of side.
func (rt *Runtime) Heap(side abi.Side) *Heap {
	return rt.heaps[side]
}

// Symbols returns the function pointer table.
func (rt *Runtime) Symbols() *SymbolTable {
	return rt.symbols
}

// Define binds a destructor or other callback; see SymbolTable.Define.
func (rt *Runtime) Define(name string, fn Func) (uint32, error) {
	return rt.symbols.Define(name, fn)
}

// Check returns every heap fault recorded so far.
func (rt *Runtime) Check() error {
	return errors.Append(rt.heaps[abi.SideManaged].Err(), rt.heaps[abi.SideNative].Err())
}

// Live returns the number of live allocations across both heaps.
func (rt *Runtime) Live() int {
	return rt.heaps[abi.SideManaged].Stats().Live + rt.heaps[abi.SideNative].Stats().Live
}

// Handle allocates zeroed storage for a handle of layout l on side's heap.
func (rt *Runtime) Handle(side abi.Side, l abi.Layout) (uint32, error) {
	h, err := rt.heaps[side].Alloc(l.Size, l.Align)
	if err != nil {
		return 0, err
	}
	if err := rt.mem.Write(h, make([]byte, l.Size)); err != nil {
		return 0, err
	}
	return h, nil
}

// FreeHandle releases handle storage obtained from Handle.
func (rt *Runtime) FreeHandle(side abi.Side, h uint32, l abi.Layout) {
	rt.heaps[side].Free(h, l.Size, l.Align)
}

func (rt *Runtime) readWord(addr uint32) (uint32, error) {
	if rt.target.PointerWidth == 4 {
		return rt.mem.ReadU32(addr)
	}
	v, err := rt.mem.ReadU64(addr)
	if err != nil {
		return 0, err
	}
	if v>>32 != 0 {
		return 0, errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
			Detail("word at %#x holds %#x, beyond the address space", addr, v).Build()
	}
	return uint32(v), nil
}

func (rt *Runtime) writeWord(addr, v uint32) error {
	if rt.target.PointerWidth == 4 {
		return rt.mem.WriteU32(addr, v)
	}
	return rt.mem.WriteU64(addr, uint64(v))
}

func (rt *Runtime) field(g abi.Glue, name string) abi.Field {
	return abi.ContractFor(g.Kind, rt.target).Field(name)
}

func (rt *Runtime) readField(g abi.Glue, h uint32, name string) (uint32, error) {
	return rt.readWord(h + rt.field(g, name).Offset)
}

func (rt *Runtime) writeField(g abi.Glue, h uint32, name string, v uint32) error {
	return rt.writeWord(h+rt.field(g, name).Offset, v)
}

func (rt *Runtime) zero(h uint32, l abi.Layout) error {
	return rt.mem.Write(h, make([]byte, l.Size))
}

// Drop runs the drop operation of g on the handle at h.
func (rt *Runtime) Drop(g abi.Glue, h uint32) error {
	switch g.Kind {
	case abi.DynString, abi.DynSequence:
		return rt.VecDrop(g, h)
	case abi.Optional:
		return rt.OptionDrop(g, h)
	case abi.OwningUnique:
		return rt.UniqueDrop(g, h)
	case abi.OwningShared:
		return rt.SharedDrop(g, h)
	default:
		return errors.Internal(errors.PhaseRuntime, "drop of unknown container kind %d", g.Kind)
	}
}

// dropElem runs the element destructor of g at addr, if it has one.
func (rt *Runtime) dropElem(g abi.Glue, addr uint32) error {
	if g.ElemDrop == "" {
		return nil
	}
	return rt.symbols.CallNamed(g.ElemDrop, addr)
}
