package gc

// bumpCursor is a (cursor, limit) pair over a single owned block, plus
// which block it currently owns. Zero value means "no block owned yet".
type bumpCursor struct {
	cursor, limit uintptr
	blockIdx      int
	hasBlock      bool
}

// smallAllocator is the bump-pointer front end: a young cursor, an
// optional pretenured-old cursor, and an overflow cursor for
// larger-than-line allocations that still fit a single small block.
type smallAllocator struct {
	h *Heap

	young      bumpCursor
	pretenured bumpCursor
	overflow   bumpCursor
}

func newSmallAllocator(h *Heap) *smallAllocator {
	return &smallAllocator{h: h}
}

// Alloc is the fast path: bump the young cursor, falling through to
// overflow for objects bigger than a line. When the cursor's block is used
// up it returns ErrNeedGC if the young-block budget is spent, and otherwise
// refills once from a recyclable or fresh block and retries.
func (a *smallAllocator) Alloc(size uintptr) (uintptr, error) {
	size = alignUp(size, a.h.allocUnit)

	if size > a.h.lineSize {
		return a.allocOverflow(size)
	}

	if addr, ok := a.bump(&a.young, size); ok {
		a.setObjectMeta(addr, size, omAllocated)
		return addr, nil
	}

	young, _, _ := a.h.blocks.counts()
	if uint32(young) >= a.h.opts.MaxYoungBlocks {
		return 0, ErrNeedGC
	}
	if !a.refillYoung() {
		return 0, ErrNeedGC
	}
	if addr, ok := a.bump(&a.young, size); ok {
		a.setObjectMeta(addr, size, omAllocated)
		return addr, nil
	}
	return 0, ErrNeedGC
}

// AllocPretenured is the pretenuring path: the pretenured cursor bumping
// directly into blocks flagged old from birth. Objects
// allocated here start life already marked, since the young tracer never
// revisits old allocations.
func (a *smallAllocator) AllocPretenured(size uintptr) (uintptr, error) {
	size = alignUp(size, a.h.allocUnit)
	if size > a.h.lineSize {
		return 0, ErrNeedGC
	}
	if addr, ok := a.bump(&a.pretenured, size); ok {
		a.setObjectMeta(addr, size, omMarked)
		return addr, nil
	}
	if !a.refillPretenured() {
		return 0, ErrNeedGC
	}
	if addr, ok := a.bump(&a.pretenured, size); ok {
		a.setObjectMeta(addr, size, omMarked)
		return addr, nil
	}
	return 0, ErrNeedGC
}

// allocOverflow serves requests bigger than a line. It uses fresh free
// blocks only, never the recyclable pool.
func (a *smallAllocator) allocOverflow(size uintptr) (uintptr, error) {
	if addr, ok := a.bump(&a.overflow, size); ok {
		a.setObjectMeta(addr, size, omAllocated)
		return addr, nil
	}
	idx, ok := a.h.blocks.getFreeBlock()
	if !ok {
		return 0, ErrNeedGC
	}
	a.overflow = bumpCursor{
		cursor:   a.h.blockAddr(idx),
		limit:    a.h.blockAddr(idx) + a.h.blockSize,
		blockIdx: idx,
		hasBlock: true,
	}
	if addr, ok := a.bump(&a.overflow, size); ok {
		a.setObjectMeta(addr, size, omAllocated)
		return addr, nil
	}
	return 0, ErrNeedGC
}

// bump is the shared fast-path check: does the cursor have room?
func (a *smallAllocator) bump(c *bumpCursor, size uintptr) (uintptr, bool) {
	if !c.hasBlock || c.cursor+size > c.limit {
		return 0, false
	}
	addr := c.cursor
	zeroRange(addr, size)
	c.cursor += size
	return addr, true
}

func zeroRange(addr, size uintptr) {
	b := bytesAt(addr, size)
	for i := range b {
		b[i] = 0
	}
}

// setObjectMeta marks the first allocation unit of a fresh object with
// state; subsequent units stay free, since a live object's meta occupies
// only its first allocation unit.
func (a *smallAllocator) setObjectMeta(addr, size uintptr, state byte) {
	idx := a.h.unitIndex(addr)
	a.h.objMeta.set(idx, state)
	units := int(size / a.h.allocUnit)
	for i := 1; i < units; i++ {
		a.h.objMeta.set(idx+i, omFree)
	}
}

// refillYoung tries the young recyclable pool first (rescanning line
// marks for a free run instead of threading one at sweep time), then
// falls back to a brand-new free block.
func (a *smallAllocator) refillYoung() bool {
	if idx, ok := a.h.blocks.getRecyclableBlock(false); ok {
		if cursor, limit, ok := a.h.findFreeRun(idx, 0); ok {
			a.young = bumpCursor{cursor: cursor, limit: limit, blockIdx: idx, hasBlock: true}
			return true
		}
		// Degenerate: no free run despite being recyclable. Treat the
		// block as fully used and fall through to a fresh block.
	}
	idx, ok := a.h.blocks.getFreeBlock()
	if !ok {
		return false
	}
	a.young = bumpCursor{
		cursor:   a.h.blockAddr(idx),
		limit:    a.h.blockAddr(idx) + a.h.blockSize,
		blockIdx: idx,
		hasBlock: true,
	}
	return true
}

func (a *smallAllocator) refillPretenured() bool {
	if idx, ok := a.h.blocks.getRecyclableBlock(true); ok {
		if cursor, limit, ok := a.h.findFreeRun(idx, 0); ok {
			a.pretenured = bumpCursor{cursor: cursor, limit: limit, blockIdx: idx, hasBlock: true}
			return true
		}
	}
	idx, ok := a.h.blocks.getFreeBlock()
	if !ok {
		return false
	}
	a.h.blkMeta.reset(idx, blockUnavailable)
	a.h.blkMeta.forceOld(idx, a.h.opts.MaxYoungAge)
	a.h.blocks.promote(1)
	a.pretenured = bumpCursor{
		cursor:   a.h.blockAddr(idx),
		limit:    a.h.blockAddr(idx) + a.h.blockSize,
		blockIdx: idx,
		hasBlock: true,
	}
	return true
}

// findFreeRun scans line meta within block idx, starting at line
// fromLine, for the next contiguous run of unmarked (free) lines. Returns
// the byte range of that run.
func (h *Heap) findFreeRun(idx, fromLine int) (cursor, limit uintptr, ok bool) {
	base := h.blockIndex0(idx)
	line := fromLine
	for line < h.linesPerBlock && h.lineMeta.isMarked(base+line) {
		line++
	}
	if line >= h.linesPerBlock {
		return 0, 0, false
	}
	start := line
	for line < h.linesPerBlock && !h.lineMeta.isMarked(base+line) {
		line++
	}
	return h.blockAddr(idx) + uintptr(start)*h.lineSize, h.blockAddr(idx) + uintptr(line)*h.lineSize, true
}

// blockIndex0 returns the global line-meta index of line 0 of block idx.
func (h *Heap) blockIndex0(idx int) int { return idx * h.linesPerBlock }

// ownsBlock reports whether one of the small allocator's live bump cursors
// currently owns block idx: the sweeper must not recycle such a block out
// from under an in-progress cursor.
func (a *smallAllocator) ownsBlock(idx int) bool {
	return (a.young.hasBlock && a.young.blockIdx == idx) ||
		(a.pretenured.hasBlock && a.pretenured.blockIdx == idx) ||
		(a.overflow.hasBlock && a.overflow.blockIdx == idx)
}
