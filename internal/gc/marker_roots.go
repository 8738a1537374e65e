package gc

// Conservative root scanning. Go gives no portable way to spill registers
// and walk a goroutine stack from inside an ordinary package, so this
// takes an explicit word range (or explicit word slice, for module data)
// from the caller instead of walking anything itself. A small assembly or
// cgo shim that captures the live stack pointer and calls Heap.Collect with
// it sits outside this package.

// objectExtent returns an object's size in bytes given its header's
// address, used to bound a conservative hit against the object it
// resolves to.
func (h *Heap) objectExtent(addr uintptr) uintptr {
	td := h.objectType(addr)
	var length uintptr
	if td.IsArray {
		length = h.arrayLength(addr)
	}
	return objectWords(td, length) * WordSize
}

// resolveConservative maps an arbitrary in-heap address to the start of
// the object it falls within, or 0 if it lands in free space. Small
// objects are addressed at allocUnit granularity; large objects (whole
// blocks handed to the large allocator) at minChunk granularity. Only the
// first unit of an object carries real object-meta state, so both cases
// walk backward from addr's own unit until they find a non-free byte,
// then check addr actually falls inside that candidate's extent. An
// address in a superblock's tail block that no chunk of that block covers
// resolves to the superblock's head, under the same extent check.
func (h *Heap) resolveConservative(addr uintptr) uintptr {
	if !h.IsInHeap(addr) {
		return 0
	}
	blockIdx := h.blockIndex(addr)
	switch h.blkMeta.state(blockIdx) {
	case blockSuperblockTail:
		if obj := h.scanBackward(addr, blockIdx, h.minChunk()); obj != 0 {
			return obj
		}
		headIdx := h.blkMeta.headOf(blockIdx)
		if headIdx < 0 {
			return 0
		}
		head := h.blockAddr(headIdx)
		if addr < head+h.objectExtent(head) {
			return head
		}
		return 0
	case blockSuperblockStart:
		return h.scanBackward(addr, blockIdx, h.minChunk())
	default:
		return h.scanBackward(addr, blockIdx, h.allocUnit)
	}
}

func (h *Heap) scanBackward(addr uintptr, blockIdx int, step uintptr) uintptr {
	blockStart := h.blockAddr(blockIdx)
	cand := blockStart + ((addr-blockStart)/step)*step
	for cand >= blockStart {
		b := h.objMeta.get(h.unitIndex(cand))
		if !omIsFree(b) && !omIsPlaceholder(b) {
			if addr < cand+h.objectExtent(cand) {
				return cand
			}
			return 0
		}
		if cand < blockStart+step {
			break
		}
		cand -= step
	}
	return 0
}

// scanWords treats every word in words as a possibly-a-pointer value:
// conservative roots never distinguish an integer that happens to look
// like an address from a real reference, so every hit is resolved and
// marked, trading some floating garbage for never missing a live object.
func (mk *marker) scanWords(w *markWorker, words []uintptr) {
	h := mk.h
	for _, v := range words {
		if v%WordSize != 0 || !h.IsInHeap(v) {
			continue
		}
		obj := h.resolveConservative(v)
		if obj == 0 {
			continue
		}
		mk.tryMark(w, obj)
	}
}

// scanRoots seeds a collection from the mutator's conservative roots: an
// explicit stack word range and the flat module-root buffer. Call this
// once per collection, before draining the remembered set of the
// opposite generation, with a worker whose out packet is flushed
// afterward like any other.
func (h *Heap) scanRoots(w *markWorker, stackWords []uintptr) {
	w.mk.scanWords(w, stackWords)
	w.mk.scanWords(w, h.modules)
}
