package gc

import "sync"

// minChunk is the minimum granularity of a large-object allocation,
// chosen as one line so the free-list bucket index formula (size/minChunk
// - 1) stays small relative to a block.
func (h *Heap) minChunk() uintptr { return h.lineSize }

// largeChunk is one free chunk in the large allocator's free lists: a
// byte range, still addressed in the arena via its object-meta head.
type largeChunk struct {
	addr uintptr
	size uintptr
}

// largeAllocator manages allocations spanning one or more blocks:
// size-bucketed free lists for sub-block chunks, backed by the block
// allocator for anything a full block or larger.
type largeAllocator struct {
	h *Heap

	mu        sync.Mutex
	freeLists [][]largeChunk // bucket index = size/minChunk - 1
}

func newLargeAllocator(h *Heap) *largeAllocator {
	buckets := int(h.blockSize/h.minChunk()) + 1
	return &largeAllocator{h: h, freeLists: make([][]largeChunk, buckets)}
}

func (la *largeAllocator) bucketFor(size uintptr) int {
	b := int(size/la.h.minChunk()) - 1
	if b < 0 {
		b = 0
	}
	if b >= len(la.freeLists) {
		b = len(la.freeLists) - 1
	}
	return b
}

// Alloc implements the large-object allocation algorithm: round up to
// minChunk, serve from a size-bucketed free list when the request fits
// under a block, otherwise ask the block allocator for a superblock.
func (la *largeAllocator) Alloc(size uintptr, pretenure bool) (uintptr, error) {
	h := la.h
	size = alignUp(size, h.minChunk())

	if size < h.blockSize {
		if chunk, ok := la.popFreeChunk(size); ok {
			la.maybeSplit(chunk, size)
			addr := chunk.addr
			zeroRange(addr, size)
			la.setHeadMeta(addr, pretenure)
			return addr, nil
		}
	}

	blocks := int(alignUp(size, h.blockSize) / h.blockSize)
	head, ok := h.blocks.getFreeSuperblock(blocks)
	if !ok {
		return 0, ErrNeedGC
	}
	headAddr := h.blockAddr(head)
	if pretenure {
		h.blkMeta.forceOld(head, h.opts.MaxYoungAge)
		promoted := int64(1)
		if blocks > 1 {
			h.blkMeta.forceOld(head+blocks-1, h.opts.MaxYoungAge)
			promoted++
		}
		h.blocks.promote(promoted)
	}
	total := uintptr(blocks) * h.blockSize
	if total-size >= h.minChunk() {
		tailAddr := headAddr + size
		la.pushFreeChunk(largeChunk{addr: tailAddr, size: total - size})
		h.objMeta.set(h.unitIndex(tailAddr), omPlaceholder)
	}
	zeroRange(headAddr, size)
	la.setHeadMeta(headAddr, pretenure)
	return headAddr, nil
}

func (la *largeAllocator) setHeadMeta(addr uintptr, pretenure bool) {
	state := omAllocated
	if pretenure {
		state = omMarked
	}
	la.h.objMeta.set(la.h.unitIndex(addr), state)
}

func (la *largeAllocator) popFreeChunk(minSize uintptr) (largeChunk, bool) {
	la.mu.Lock()
	defer la.mu.Unlock()
	for b := la.bucketFor(minSize); b < len(la.freeLists); b++ {
		list := la.freeLists[b]
		for i, c := range list {
			if c.size >= minSize {
				la.freeLists[b] = append(list[:i], list[i+1:]...)
				return c, true
			}
		}
	}
	return largeChunk{}, false
}

func (la *largeAllocator) pushFreeChunk(c largeChunk) {
	la.mu.Lock()
	defer la.mu.Unlock()
	b := la.bucketFor(c.size)
	la.freeLists[b] = append(la.freeLists[b], c)
}

// maybeSplit splits the tail off a popped chunk that overshoots the
// request by at least minChunk, pushing the tail back as a fresh
// placeholder chunk.
func (la *largeAllocator) maybeSplit(chunk largeChunk, used uintptr) {
	remaining := chunk.size - used
	if remaining < la.h.minChunk() {
		return
	}
	tailAddr := chunk.addr + used
	la.pushFreeChunk(largeChunk{addr: tailAddr, size: remaining})
	la.h.objMeta.set(la.h.unitIndex(tailAddr), omPlaceholder)
}

// sweepSuperblock walks a superblock's constituent blocks independently,
// so a live head does not pin a dead tail and vice versa. headIdx is the
// block index of the superblock's first block; blocks is its span.
func (la *largeAllocator) sweepSuperblock(headIdx, blocks int, collectingOld bool) {
	h := la.h
	headAddr := h.blockAddr(headIdx)
	headUnit := h.unitIndex(headAddr)
	// Survivors of this cycle are in the opposite polarity from the
	// live-before-mark state: marked after a young trace, allocated after an
	// old one.
	headAlive := omIsAlive(h.objMeta.get(headUnit), !collectingOld)

	if !headAlive {
		h.objMeta.set(headUnit, omFree)
		if blocks > 1 {
			h.blocks.addFreeBlocks(headIdx, blocks-1)
		}
		tailIdx := headIdx + blocks - 1
		la.sweepTailBlock(tailIdx, collectingOld)
		return
	}

	h.objMeta.set(headUnit, sweepSurvivorState(collectingOld, h.objMeta.get(headUnit)))
	if blocks > 1 {
		la.sweepTailBlock(headIdx+blocks-1, collectingOld)
	}
}

// sweepTailBlock scans every minChunk-aligned candidate chunk start in
// the last block of a superblock; if none is live, the block returns to
// the block allocator.
func (la *largeAllocator) sweepTailBlock(idx int, collectingOld bool) {
	h := la.h
	base := h.blockAddr(idx)
	anyLive := false
	for off := uintptr(0); off+h.minChunk() <= h.blockSize; off += h.minChunk() {
		addr := base + off
		unit := h.unitIndex(addr)
		b := h.objMeta.get(unit)
		if omIsPlaceholder(b) || omIsFree(b) {
			continue
		}
		if omIsAlive(b, !collectingOld) {
			anyLive = true
			h.objMeta.set(unit, sweepSurvivorState(collectingOld, b))
		} else {
			h.objMeta.set(unit, omFree)
		}
	}
	if !anyLive {
		h.blocks.addFreeBlocks(idx, 1)
	}
}

func sweepSurvivorState(collectingOld bool, b byte) byte {
	if collectingOld {
		return sweepOldByte(b)
	}
	return sweepYoungByte(b)
}
