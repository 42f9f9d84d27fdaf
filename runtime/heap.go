package runtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
)

type block struct {
	size  uint32
	align uint32
}

// Stats counts a heap's traffic.
type Stats struct {
	Allocs int
	Frees  int
	Live   int
	// Bytes is the number of live bytes.
	Bytes uint32
}

// Heap is one side's allocator over a region of the shared memory. It
// counts every allocation and records frees it cannot honour (double frees,
// frees of memory it never handed out, frees with the wrong size) as faults
// instead of corrupting its state.
type Heap struct {
	side  abi.Side
	base  uint32
	limit uint32

	mu     sync.Mutex
	next   uint32
	live   map[uint32]block
	freed  map[uint32]bool
	free   map[block][]uint32
	stats  Stats
	faults error
}

// NewHeap returns an empty heap for side over [base, limit).
func NewHeap(side abi.Side, base, limit uint32) *Heap {
	if base == 0 {
		base = 8
	}
	return &Heap{
		side:  side,
		base:  base,
		limit: limit,
		next:  base,
		live:  make(map[uint32]block),
		freed: make(map[uint32]bool),
		free:  make(map[block][]uint32),
	}
}

// Side returns the side the heap allocates for.
func (h *Heap) Side() abi.Side {
	return h.side
}

// Owns reports whether ptr lies inside the heap's region.
func (h *Heap) Owns(ptr uint32) bool {
	return ptr >= h.base && ptr < h.limit
}

// Alloc returns size bytes aligned to align. Zero-sized requests still
// return a distinct address.
func (h *Heap) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.InvalidInput(errors.PhaseRuntime, "alignment is not a power of two")
	}
	if size == 0 {
		size = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	b := block{size: size, align: align}
	var ptr uint32
	if reuse := h.free[b]; len(reuse) > 0 {
		ptr = reuse[len(reuse)-1]
		h.free[b] = reuse[:len(reuse)-1]
	} else {
		start := abi.AlignTo(h.next, align)
		if uint64(start)+uint64(size) > uint64(h.limit) {
			return 0, errors.AllocationFailed(errors.PhaseRuntime, size, align)
		}
		ptr = start
		h.next = start + size
	}

	delete(h.freed, ptr)
	h.live[ptr] = b
	h.stats.Allocs++
	h.stats.Live++
	h.stats.Bytes += size
	return ptr, nil
}

// Free releases ptr. The size and alignment must match the allocation.
func (h *Heap) Free(ptr, size, align uint32) {
	if align == 0 {
		align = 1
	}
	if size == 0 {
		size = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	want := block{size: size, align: align}
	b, ok := h.live[ptr]
	switch {
	case ok && b == want:
	case ok:
		h.fault(errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Detail("%s heap: free of %#x with size %d align %d, allocated with size %d align %d",
				h.side, ptr, size, align, b.size, b.align).Build())
		return
	case h.freed[ptr]:
		h.fault(errors.New(errors.PhaseRuntime, errors.KindDoubleFree).
			Detail("%s heap: %#x freed twice", h.side, ptr).Build())
		return
	default:
		h.fault(errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Detail("%s heap: free of %#x, which it did not allocate", h.side, ptr).Build())
		return
	}

	delete(h.live, ptr)
	h.freed[ptr] = true
	h.free[b] = append(h.free[b], ptr)
	h.stats.Frees++
	h.stats.Live--
	h.stats.Bytes -= size
}

func (h *Heap) fault(err *errors.Error) {
	Logger().Debug("heap fault", zap.String("side", h.side.String()), zap.String("detail", err.Detail))
	h.faults = errors.Append(h.faults, err)
}

// Size returns the size of the live allocation at ptr.
func (h *Heap) Size(ptr uint32) (uint32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.live[ptr]
	return b.size, ok
}

// Stats returns a snapshot of the heap counters.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// Err returns every fault recorded so far, combined.
func (h *Heap) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.faults
}
