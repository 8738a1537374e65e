package gc

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// sweepAll sweeps every block belonging to the generation this collection
// just traced: young blocks for a young collection, old blocks for an old
// collection. Blocks outside that scope are left untouched — their
// object/line meta reflects whichever collection swept them last, which
// is exactly the state the bump allocator and the other generation's
// remembered-set bookkeeping expect between now and the next time that
// generation is collected. Work is handed out from a shared atomic cursor
// in fixed-size batches, so distributing blocks takes no lock; releasing
// or recycling a block still goes through the block allocator's mutex.
func (h *Heap) sweepAll(collectingOld bool) {
	workers := resolveWorkerCount(h.opts.MarkerWorkers)
	if max := runtime.GOMAXPROCS(0); workers > max {
		workers = max
	}

	const batch = 16
	var cursor atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				start := int(cursor.Add(batch)) - batch
				if start >= h.numBlocks {
					return
				}
				end := start + batch
				if end > h.numBlocks {
					end = h.numBlocks
				}
				for idx := start; idx < end; idx++ {
					h.sweepBlock(idx, collectingOld)
				}
			}
		}()
	}
	wg.Wait()
}

// sweepBlock applies the per-block dispatch: free space and the other
// generation's blocks are skipped, a superblock is delegated to the large
// allocator, and an ordinary block is swept by whichever of the three
// object-meta transforms applies (dead, still-young survivor, or
// newly-promoted survivor).
func (h *Heap) sweepBlock(idx int, collectingOld bool) {
	maxAge := uint8(h.opts.MaxYoungAge)

	switch h.blkMeta.state(idx) {
	case blockFree:
		return
	case blockSuperblockTail:
		return // handled together with its head, below
	case blockSuperblockStart:
		h.sweepSuperblockAt(idx, collectingOld, maxAge)
		return
	}

	if h.blkMeta.isOld(idx, maxAge) != collectingOld {
		return
	}

	if !h.blkMeta.isMarked(idx) {
		h.freeDeadBlock(idx)
		return
	}
	h.blkMeta.unmark(idx)

	switch {
	case collectingOld:
		sweepObjectRange(h.objMeta, idx*h.unitsPerBlock, h.unitsPerBlock, sweepOldChunk8, sweepOldByte)
	case h.blkMeta.incrementAge(idx, maxAge):
		sweepObjectRange(h.objMeta, idx*h.unitsPerBlock, h.unitsPerBlock, sweepNewOldChunk8, sweepNewOldByte)
		h.blocks.promote(1)
	default:
		sweepObjectRange(h.objMeta, idx*h.unitsPerBlock, h.unitsPerBlock, sweepYoungChunk8, sweepYoungByte)
	}

	h.recycleIfPartial(idx, h.blkMeta.isOld(idx, maxAge))
}

// sweepSuperblockAt handles a superblock's head block: delegates the
// actual chunk/head/tail liveness decisions to the large allocator, then
// reconciles the age bookkeeping the ordinary per-block path applies.
// Large objects carry no per-line marks and their block mark bit is never
// set by markContaining, so there is nothing to unmark here.
func (h *Heap) sweepSuperblockAt(headIdx int, collectingOld bool, maxAge uint8) {
	if h.blkMeta.isOld(headIdx, maxAge) != collectingOld {
		return
	}
	blocks := int(h.blkMeta.superblockSize(headIdx))

	h.large.sweepSuperblock(headIdx, blocks, collectingOld)

	if h.blkMeta.state(headIdx) != blockSuperblockStart {
		return // head died; already returned to the block allocator
	}
	if !collectingOld && h.blkMeta.incrementAge(headIdx, maxAge) {
		h.blocks.promote(1)
	}
}

// freeDeadBlock resets a fully-dead block's object and line meta and
// returns it to the block allocator's free list.
func (h *Heap) freeDeadBlock(idx int) {
	base := idx * h.unitsPerBlock
	for i := 0; i < h.unitsPerBlock; i++ {
		h.objMeta.set(base+i, omFree)
	}
	lbase := h.blockIndex0(idx)
	for l := 0; l < h.linesPerBlock; l++ {
		h.lineMeta.clear(lbase + l)
	}
	h.blocks.addFreeBlocks(idx, 1)
}

// recycleIfPartial checks a just-swept survivor block for a free line and,
// if it has one and isn't currently owned by a live bump cursor, hands it
// to the block allocator's recyclable pool for the matching generation.
// A block with no free line, or one still owned by a cursor, is left as
// blockUnavailable.
func (h *Heap) recycleIfPartial(idx int, old bool) {
	if h.small.ownsBlock(idx) {
		return
	}
	base := h.blockIndex0(idx)
	for l := 0; l < h.linesPerBlock; l++ {
		if !h.lineMeta.isMarked(base + l) {
			h.blocks.addRecyclable(idx, old)
			return
		}
	}
	h.blkMeta.setState(idx, blockUnavailable)
}

// clearLineMarks wipes the line mark bits of every block in this
// collection's generation scope before tracing starts. Line marks persist
// between collections (the recyclable-block bump allocator relies on them
// staying valid right up to the next sweep), so they must be reset here,
// immediately before the new trace sets fresh ones, rather than after the
// sweep that just produced them.
func (h *Heap) clearLineMarks(collectingOld bool) {
	maxAge := uint8(h.opts.MaxYoungAge)
	for idx := 0; idx < h.numBlocks; idx++ {
		switch h.blkMeta.state(idx) {
		case blockFree, blockSuperblockStart, blockSuperblockTail:
			continue
		}
		if h.blkMeta.isOld(idx, maxAge) != collectingOld {
			continue
		}
		base := h.blockIndex0(idx)
		for l := 0; l < h.linesPerBlock; l++ {
			h.lineMeta.clear(base + l)
		}
	}
}

// sweepObjectRange applies chunkFn across meta[base:base+count] eight
// bytes at a time, falling back to byteFn for any remainder. The 8-byte
// word is built and torn back down by hand rather than via an unsafe
// cast, so the lane layout chunkFn assumes is independent of host
// endianness.
func sweepObjectRange(meta objectMeta, base, count int, chunkFn func(uint64) uint64, byteFn func(byte) byte) {
	i := 0
	for ; i+8 <= count; i += 8 {
		var word uint64
		for j := 0; j < 8; j++ {
			word |= uint64(meta[base+i+j]) << (8 * j)
		}
		word = chunkFn(word)
		for j := 0; j < 8; j++ {
			meta[base+i+j] = byte(word >> (8 * j))
		}
	}
	for ; i < count; i++ {
		meta[base+i] = byteFn(meta[base+i])
	}
}
