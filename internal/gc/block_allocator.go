package gc

import "sync"

// blockAllocator owns the pool of fixed-size blocks: a free list plus the
// young/old block counters. The invariant it maintains: young-block count
// plus old-block count equals the number of non-free blocks handed out;
// the free-list length plus these equals the total block count.
// Single-producer during init; during sweep, multiple sweeper goroutines
// call addFreeBlocks concurrently, so the free list is mutex-serialized.
type blockAllocator struct {
	h *Heap

	mu    sync.Mutex
	free  []int32 // block indices, stack discipline (LIFO reuse is cache-friendlier)
	total int

	// recyclableYoung/recyclableOld hold blocks that survived a sweep
	// with at least one free line: candidates for bump-allocator reuse
	// before reaching for a brand-new block. No threaded free-line list
	// is built; a refill rescans line marks instead (see findFreeRun).
	recyclableYoung []int32
	recyclableOld   []int32

	youngBlocks int64
	oldBlocks   int64
}

func newBlockAllocator(h *Heap) *blockAllocator {
	ba := &blockAllocator{h: h, total: h.numBlocks}
	ba.free = make([]int32, h.numBlocks)
	for i := 0; i < h.numBlocks; i++ {
		ba.free[i] = int32(i)
	}
	return ba
}

// getFreeBlock pops one free block, marks it unavailable (the allocator's
// "in use" state until the small/large allocator assigns it a role), and
// returns its index plus whether one was available.
func (ba *blockAllocator) getFreeBlock() (int, bool) {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	n := len(ba.free)
	if n == 0 {
		return 0, false
	}
	idx := int(ba.free[n-1])
	ba.free = ba.free[:n-1]
	ba.h.blkMeta.reset(idx, blockUnavailable)
	ba.youngBlocks++
	return idx, true
}

// getFreeSuperblock returns the head of n contiguous free blocks, or
// false if the free list holds no such run. The free list has no
// ordering guarantee across collections, so this scans for a contiguous
// span rather than assuming one; callers needing guaranteed contiguity
// for large spans should keep the initial heap mostly unfragmented (the
// allocator does not defragment, matching the Non-goals around
// compaction).
func (ba *blockAllocator) getFreeSuperblock(n int) (int, bool) {
	if n <= 1 {
		idx, ok := ba.getFreeBlock()
		if !ok {
			return 0, false
		}
		ba.h.blkMeta.setSuperblock(idx, 1)
		return idx, true
	}

	ba.mu.Lock()
	defer ba.mu.Unlock()

	present := make(map[int32]bool, len(ba.free))
	for _, idx := range ba.free {
		present[idx] = true
	}
	for _, start := range ba.free {
		ok := true
		for off := 0; off < n; off++ {
			if !present[start+int32(off)] {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		ba.removeFreeLocked(int(start), n)
		for off := 0; off < n; off++ {
			blk := int(start) + off
			if off == 0 {
				ba.h.blkMeta.reset(blk, blockSuperblockStart)
				ba.h.blkMeta.setSuperblock(blk, uint32(n))
			} else {
				ba.h.blkMeta.reset(blk, blockSuperblockTail)
				ba.h.blkMeta.setSuperblockHead(blk, int(start))
			}
		}
		ba.youngBlocks += int64(n)
		return int(start), true
	}
	return 0, false
}

func (ba *blockAllocator) removeFreeLocked(start, n int) {
	remove := make(map[int32]bool, n)
	for off := 0; off < n; off++ {
		remove[int32(start+off)] = true
	}
	out := ba.free[:0]
	for _, idx := range ba.free {
		if !remove[idx] {
			out = append(out, idx)
		}
	}
	ba.free = out
}

// addFreeBlocks releases n contiguous blocks starting at head back to the
// free list, decrementing the young/old counters by whichever bucket
// each released block belonged to.
func (ba *blockAllocator) addFreeBlocks(head, n int) {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	for i := 0; i < n; i++ {
		idx := head + i
		wasOld := ba.h.blkMeta.isOld(idx, ba.h.opts.MaxYoungAge)
		ba.h.blkMeta.reset(idx, blockFree)
		ba.free = append(ba.free, int32(idx))
		if wasOld {
			ba.oldBlocks--
		} else {
			ba.youngBlocks--
		}
	}
}

// promote moves the accounting for count blocks from young to old, called
// by the sweeper when a block's age reaches MaxYoungAge and by the
// allocators when they pretenure a freshly acquired block.
func (ba *blockAllocator) promote(count int64) {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	ba.youngBlocks -= count
	ba.oldBlocks += count
}

// addRecyclable pushes a surviving block onto the young or old recyclable
// pool for reuse by the bump allocator.
func (ba *blockAllocator) addRecyclable(idx int, old bool) {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	ba.h.blkMeta.setState(idx, blockRecyclable)
	if old {
		ba.recyclableOld = append(ba.recyclableOld, int32(idx))
	} else {
		ba.recyclableYoung = append(ba.recyclableYoung, int32(idx))
	}
}

// getRecyclableBlock pops a recyclable block for the requested
// generation, marking it unavailable (now owned by a cursor).
func (ba *blockAllocator) getRecyclableBlock(old bool) (int, bool) {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	pool := &ba.recyclableYoung
	if old {
		pool = &ba.recyclableOld
	}
	n := len(*pool)
	if n == 0 {
		return 0, false
	}
	idx := int((*pool)[n-1])
	*pool = (*pool)[:n-1]
	ba.h.blkMeta.setState(idx, blockUnavailable)
	return idx, true
}

func (ba *blockAllocator) freeCount() int {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	return len(ba.free)
}

func (ba *blockAllocator) counts() (young, old, free int64) {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	return ba.youngBlocks, ba.oldBlocks, int64(len(ba.free))
}
