// Package genimmix implements a generational, Immix-style tracing
// garbage collector: block/line-granularity heap partitioning, bump
// allocation, a single-bit generational write barrier, parallel marking
// over fixed-size grey packets, and branch-free line sweeping.
//
// This package is the mutator-facing surface; internal/gc holds the
// collector itself.
package genimmix

import "github.com/aykevl/genimmix/internal/gc"

// TypeDescriptor describes one allocatable shape to the collector: which
// words of an instance hold references, and (for object arrays) that its
// length is runtime-determined. A mutator registers every shape it uses
// before allocating it.
type TypeDescriptor = gc.TypeDescriptor

// ParseRefMap decodes a sentinel-terminated list of word offsets (as
// produced by a compiler's reflection data) into the RefOffsets a
// TypeDescriptor expects.
func ParseRefMap(raw []int64) []uintptr { return gc.ParseRefMap(raw) }

// Stats is a point-in-time snapshot of the heap's side-channel counters.
// Nothing here feeds back into collection decisions.
type Stats = gc.StatsSnapshot

// Heap is one collector instance: one arena, one set of allocators, one
// marker. Build it with NewHeap and close it with Close when done.
type Heap struct {
	h *gc.Heap
}

// NewHeap builds a fresh collector instance sized by opts.InitialHeapSize.
func NewHeap(opts Options) (*Heap, error) {
	h, err := gc.NewHeap(opts)
	if err != nil {
		return nil, err
	}
	return &Heap{h: h}, nil
}

// Close releases the heap's backing memory. The Heap must not be used
// afterwards.
func (heap *Heap) Close() error { return heap.h.Close() }

// RegisterType makes td resolvable from object headers. Register every
// type before allocating an instance of it.
func (heap *Heap) RegisterType(td *TypeDescriptor) { heap.h.RegisterType(td) }

// SetStackBottom records the deepest stack address conservative root
// scanning should consider reachable. Go offers no portable register-spill
// or stack-walk primitive, so the caller is responsible for supplying the
// word range to scan (see Collect's stackWords parameter) from outside
// this package, typically via a small assembly or cgo shim.
func (heap *Heap) SetStackBottom(addr uintptr) { heap.h.SetStackBottom(addr) }

// SetModules installs the flat module-root buffer: every global variable
// slot across the program's loaded modules that might hold a reference.
func (heap *Heap) SetModules(modules []uintptr) { heap.h.SetModules(modules) }

// Alloc allocates a non-array object of td's shape through the young bump
// allocator. Returns ErrNeedGC if the young generation's budget is
// exhausted; the caller should run a young Collect and retry.
func (heap *Heap) Alloc(td *TypeDescriptor) (uintptr, error) { return heap.h.Alloc(td) }

// AllocLarge allocates an object array of length elements through the
// large-object allocator, which may span multiple blocks.
func (heap *Heap) AllocLarge(td *TypeDescriptor, length uintptr) (uintptr, error) {
	return heap.h.AllocLarge(td, length)
}

// AllocPretenured allocates directly into the old generation, skipping
// the usual young-to-old promotion path. Intended for objects the
// mutator knows ahead of time will outlive several young collections.
func (heap *Heap) AllocPretenured(td *TypeDescriptor, length uintptr) (uintptr, error) {
	return heap.h.AllocPretenured(td, length)
}

// Collect runs one complete collection: conservative root scan (over
// stackWords, the caller-supplied stack word range, plus the installed
// module roots), remembered-set-accelerated cross-generation tracing,
// parallel marking to quiescence, and sweeping. collectingOld selects a
// full old-generation collection instead of a young one.
func (heap *Heap) Collect(collectingOld bool, stackWords []uintptr) {
	heap.h.Collect(collectingOld, stackWords)
}

// Stats returns a snapshot of the heap's side-channel counters.
func (heap *Heap) Stats() Stats { return heap.h.Stats() }

// ErrNeedGC is returned by an allocation that could not find space and
// needs a collection before it can be retried.
var ErrNeedGC = gc.ErrNeedGC

// ErrOOM is the out-of-memory sentinel, distinct from ErrNeedGC. No
// allocation method of Heap returns it: a request that cannot be met is
// reported as ErrNeedGC, also after a collection, and the heap does not
// grow beyond InitialHeapSize.
var ErrOOM = gc.ErrOOM
