package gc

import (
	"fmt"
	"log/slog"
	"sync"
)

// Heap is the explicit, process-wide collector context. Stack bottom,
// module roots and all mutable state are fields here rather than hidden
// package-level statics, so every core function takes the context it
// needs by reference. One Heap is one collector instance.
type Heap struct {
	opts Options

	arena *arena
	base  uintptr
	size  uintptr

	allocUnit     uintptr
	lineSize      uintptr
	blockSize     uintptr
	linesPerBlock int
	unitsPerLine  int
	unitsPerBlock int
	numBlocks     int

	objMeta  objectMeta
	lineMeta lineMeta
	blkMeta  blockMeta

	blocks  *blockAllocator
	small   *smallAllocator
	large   *largeAllocator
	packets *packetPool
	mk      *marker

	// roots: the only coupling to the mutator beyond allocation.
	stackBottom uintptr
	modules     []uintptr

	objectArrayTypeID uint32

	// typeRegistry keeps every registered TypeDescriptor reachable from
	// ordinary Go memory. Object headers in the arena store only a type
	// id (not a pointer): the arena is plain bytes invisible to Go's own
	// garbage collector, so a raw Go pointer stashed there would not
	// keep its target alive.
	typeRegistry map[uint32]*TypeDescriptor

	stats Stats

	log *slog.Logger

	// mu serializes collections: Collect holds it for its whole run. The
	// allocators do not take it; the core assumes a single mutator thread
	// stopped for the duration of a collection.
	mu sync.Mutex
}

// NewHeap builds a fresh collector instance sized by opts.InitialHeapSize,
// with every block free and every allocator idle.
func NewHeap(opts Options) (*Heap, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	h := &Heap{
		opts:         opts,
		allocUnit:    uintptr(opts.AllocAlignWords) * WordSize,
		lineSize:     uintptr(opts.LineSize),
		blockSize:    uintptr(opts.BlockSize),
		log:          newLogger(),
		typeRegistry: make(map[uint32]*TypeDescriptor),
	}
	h.linesPerBlock = int(h.blockSize / h.lineSize)
	h.unitsPerLine = int(h.lineSize / h.allocUnit)
	h.unitsPerBlock = int(h.blockSize / h.allocUnit)

	size := uintptr(opts.InitialHeapSize.Bytes())
	a, err := newArena(size)
	if err != nil {
		return nil, err
	}
	h.arena = a
	h.size = size
	if size > 0 {
		h.base = arenaBase(a)
	}
	h.numBlocks = int(size / h.blockSize)

	h.objMeta = make(objectMeta, h.numBlocks*h.unitsPerBlock)
	h.lineMeta = make(lineMeta, h.numBlocks*h.linesPerBlock)
	h.blkMeta = make(blockMeta, h.numBlocks)
	for i := range h.blkMeta {
		h.blkMeta.reset(i, blockFree)
	}

	h.blocks = newBlockAllocator(h)
	h.small = newSmallAllocator(h)
	h.large = newLargeAllocator(h)
	h.packets = newPacketPool(packetPoolSize(h.numBlocks))
	h.mk = newMarker(h)

	h.log.Info("heap initialized",
		"size", opts.InitialHeapSize.String(),
		"blocks", h.numBlocks,
		"blockSize", h.blockSize,
		"lineSize", h.lineSize)

	return h, nil
}

// Close releases the arena. The Heap must not be used afterwards.
func (h *Heap) Close() error {
	if h.arena == nil {
		return nil
	}
	return h.arena.release()
}

// IsInHeap reports whether addr falls within the arena's byte range.
func (h *Heap) IsInHeap(addr uintptr) bool {
	return addr >= h.base && addr < h.base+h.size
}

func (h *Heap) blockIndex(addr uintptr) int {
	return int((addr - h.base) / h.blockSize)
}

func (h *Heap) blockAddr(idx int) uintptr {
	return h.base + uintptr(idx)*h.blockSize
}

func (h *Heap) lineIndex(addr uintptr) int {
	return int((addr - h.base) / h.lineSize)
}

func (h *Heap) lineAddr(idx int) uintptr {
	return h.base + uintptr(idx)*h.lineSize
}

func (h *Heap) lineIndexInBlock(addr uintptr) int {
	return h.lineIndex(addr) % h.linesPerBlock
}

func (h *Heap) unitIndex(addr uintptr) int {
	return int((addr - h.base) / h.allocUnit)
}

func (h *Heap) unitAddr(idx int) uintptr {
	return h.base + uintptr(idx)*h.allocUnit
}

// SetStackBottom records the deepest stack address to scan for the
// current mutator. Go offers no portable register-spill/stack-walk
// trampoline the way an ahead-of-time-compiled target does; callers that
// want real conservative stack scanning must supply the word range
// themselves (see Heap.Collect), typically captured by a small assembly or
// cgo shim outside this package.
func (h *Heap) SetStackBottom(addr uintptr) { h.stackBottom = addr }

// SetModules installs the flat module-root buffer.
func (h *Heap) SetModules(modules []uintptr) { h.modules = modules }

// SetObjectArrayTypeID records the descriptor id that identifies
// object-array types.
func (h *Heap) SetObjectArrayTypeID(id uint32) { h.objectArrayTypeID = id }

// RegisterType makes td resolvable by id from object headers. Descriptors
// must be registered before any allocation using them.
func (h *Heap) RegisterType(td *TypeDescriptor) {
	h.typeRegistry[td.ID] = td
	if td.IsArray {
		h.objectArrayTypeID = td.ID
	}
}

func (h *Heap) lookupType(id uint32) *TypeDescriptor {
	td := h.typeRegistry[id]
	assertf(td != nil, "unregistered type id %d", id)
	return td
}

func (h *Heap) String() string {
	return fmt.Sprintf("Heap{blocks=%d blockSize=%d lineSize=%d}", h.numBlocks, h.blockSize, h.lineSize)
}
