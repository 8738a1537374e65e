package gc

import (
	"sync"
	"sync/atomic"
)

// marker runs one collection: conservative root discovery, parallel
// tracing through grey packets, and remembered-set maintenance. One
// marker is built fresh for each Heap and reused across collections; its
// collectingOld flag is set at the start of each Collect call.
type marker struct {
	h *Heap

	collectingOld bool

	accMu            sync.Mutex
	accOld, accYoung *greyPacket

	// refrangeCount is a test hook exposing how many refrange packets
	// the last collection produced.
	refrangeCount atomic.Uint64
}

func newMarker(h *Heap) *marker {
	return &marker{h: h}
}

// markWorker is a single goroutine's view of the grey-packet protocol: an
// in packet it drains and an out packet it fills, following the
// two-packet-per-worker discipline.
type markWorker struct {
	mk  *marker
	out *greyPacket
}

func (mk *marker) newWorker() *markWorker {
	return &markWorker{mk: mk, out: mk.h.packets.takeEmpty()}
}

// push appends obj to w.out, publishing and replacing it with a fresh
// packet when full.
func (w *markWorker) push(obj uintptr) {
	if !w.out.push(obj) {
		w.mk.h.packets.publishFull(w.out)
		w.out = w.mk.h.packets.takeEmpty()
		w.out.push(obj)
	}
}

// flush publishes a non-empty out packet, called when a worker's drive
// loop is about to exit.
func (w *markWorker) flush() {
	if !w.out.empty() {
		w.mk.h.packets.publishFull(w.out)
		w.out = nil
		return
	}
	w.mk.h.packets.release(w.out)
	w.out = nil
}

// heldAccumulators reports how many of the two remembered-set accumulator
// packets are currently checked out of the empty list (0, 1, or 2).
func (mk *marker) heldAccumulators() int {
	mk.accMu.Lock()
	defer mk.accMu.Unlock()
	n := 0
	if mk.accOld != nil {
		n++
	}
	if mk.accYoung != nil {
		n++
	}
	return n
}

// tryMark marks obj live-this-cycle if it is currently in the
// live-before-mark state for the running collection mode, and pushes it
// to w.out for later tracing. Returns false if obj was out of range or
// already visited this cycle (the polarity flip doubles as a visited
// flag: once marked, an object's meta no longer satisfies omIsAlive for
// this mode, so a second encounter is a no-op).
func (mk *marker) tryMark(w *markWorker, obj uintptr) bool {
	h := mk.h
	if !h.IsInHeap(obj) || obj%WordSize != 0 {
		return false
	}
	unit := h.unitIndex(obj)
	b := h.objMeta.get(unit)
	if !omIsAlive(b, mk.collectingOld) {
		return false
	}
	h.objMeta.set(unit, omMark(b, mk.collectingOld))
	mk.markContaining(obj)
	w.push(obj)
	return true
}

// markContaining sets the block mark bit and, for small (non-superblock)
// objects, every line mark bit the object overlaps. Large objects carry
// no per-line marks: their liveness is tracked purely through object
// meta, read directly by the large-allocator sweep.
func (mk *marker) markContaining(obj uintptr) {
	h := mk.h
	blockIdx := h.blockIndex(obj)
	switch h.blkMeta.state(blockIdx) {
	case blockSuperblockStart, blockSuperblockTail:
		return
	}
	h.blkMeta.markAtomic(blockIdx)

	td := h.objectType(obj)
	var length uintptr
	if td.IsArray {
		length = h.arrayLength(obj)
	}
	size := objectWords(td, length) * WordSize
	startLine := h.lineIndex(obj)
	endLine := h.lineIndex(obj + size - 1)
	for l := startLine; l <= endLine; l++ {
		h.lineMeta.markAtomic(l)
	}
}

// traceObject processes one grey object popped from an `in` packet: walks
// its reference fields, marking and pushing live children, splitting a
// large array's tail into refrange packets, and finally updates the
// remembered-set bit. Returns a work count: the number of children it
// newly marked plus the length of every batch it handed off as a refrange
// packet, used by the caller to decide whether to split the remainder of
// `in`.
func (mk *marker) traceObject(w *markWorker, obj uintptr) int {
	h := mk.h
	td := h.objectType(obj)

	var hasPointerToOld, hasPointerToYoung bool
	examine := func(fieldIdx int) {
		fieldAddr := h.fieldAddr(obj, td, fieldIdx)
		ref := wordAt(fieldAddr)
		if ref == 0 || !h.IsInHeap(ref) {
			return
		}
		if h.blkMeta.willBeOld(h.blockIndex(ref), h.opts.MaxYoungAge) {
			hasPointerToOld = true
		} else {
			hasPointerToYoung = true
		}
	}

	work := 0
	if td.IsArray {
		length := h.arrayLength(obj)
		if length > uintptr(h.opts.ArraySplitThreshold) {
			batch := uintptr(h.opts.ArraySplitBatch)
			var i uintptr
			for ; i+batch <= length; i += batch {
				for j := uintptr(0); j < batch; j++ {
					examine(int(i + j))
				}
				mk.publishRefrange(h.fieldAddr(obj, td, int(i)), obj, batch)
				work += int(batch)
			}
			for ; i < length; i++ {
				examine(int(i))
				if mk.tryMarkField(w, h.fieldAddr(obj, td, int(i))) {
					work++
				}
			}
		} else {
			for i := uintptr(0); i < length; i++ {
				examine(int(i))
				if mk.tryMarkField(w, h.fieldAddr(obj, td, int(i))) {
					work++
				}
			}
		}
	} else {
		for i := range td.RefOffsets {
			examine(i)
			if mk.tryMarkField(w, h.fieldAddr(obj, td, i)) {
				work++
			}
		}
	}

	mk.updateRemembered(obj, hasPointerToOld, hasPointerToYoung)
	return work
}

func (mk *marker) tryMarkField(w *markWorker, fieldAddr uintptr) bool {
	ref := wordAt(fieldAddr)
	if ref == 0 {
		return false
	}
	return mk.tryMark(w, ref)
}

// traceRefrange processes one refrange packet: marks and pushes every
// element of its batch, then the packet is recycled empty.
func (mk *marker) traceRefrange(w *markWorker, p *greyPacket) {
	for i := uintptr(0); i < p.batchLen; i++ {
		mk.tryMarkField(w, p.fieldsBase+i*WordSize)
	}
}

// publishRefrange packages one full array batch as a refrange packet and
// publishes it directly to the full list, so another worker can trace the
// batch independently.
func (mk *marker) publishRefrange(fieldsBase, owner uintptr, batchLen uintptr) {
	p := mk.h.packets.takeEmpty()
	p.reset(packetRefrange)
	p.fieldsBase = fieldsBase
	p.owner = owner
	p.batchLen = batchLen
	mk.h.packets.publishFull(p)
	mk.refrangeCount.Add(1)
}

// updateRemembered applies the three-way remembered-set decision once per
// traced object: remember it for the old-to-young direction, the
// young-to-old direction, or drop the bit if neither applies any more.
func (mk *marker) updateRemembered(obj uintptr, hasPointerToOld, hasPointerToYoung bool) {
	h := mk.h
	unit := h.unitIndex(obj)
	b := h.objMeta.get(unit)
	already := omIsRemembered(b)
	willBeOld := h.blkMeta.willBeOld(h.blockIndex(obj), h.opts.MaxYoungAge)

	switch {
	case willBeOld && hasPointerToYoung:
		if !already {
			h.objMeta.set(unit, omSetRemembered(b))
			mk.remember(true, obj)
		}
	case !willBeOld && hasPointerToOld:
		if !already {
			h.objMeta.set(unit, omSetRemembered(b))
			mk.remember(false, obj)
		}
	default:
		if already {
			h.objMeta.set(unit, omSetUnremembered(b))
		}
	}
}

// remember appends obj to the running accumulator packet for the given
// generation, publishing and rotating it for a fresh one on overflow.
func (mk *marker) remember(old bool, obj uintptr) {
	mk.accMu.Lock()
	defer mk.accMu.Unlock()
	slot := &mk.accYoung
	if old {
		slot = &mk.accOld
	}
	if *slot == nil {
		*slot = mk.h.packets.takeEmpty()
	}
	if !(*slot).push(obj) {
		mk.h.packets.publishRemembered(old, *slot)
		*slot = mk.h.packets.takeEmpty()
		(*slot).push(obj)
	}
}

// flushRemembered publishes any partially-filled accumulator packets at
// the end of a collection so their contents are visible to the next
// opposite-generation collection.
func (mk *marker) flushRemembered() {
	mk.accMu.Lock()
	defer mk.accMu.Unlock()
	if mk.accOld != nil && !mk.accOld.empty() {
		mk.h.packets.publishRemembered(true, mk.accOld)
		mk.accOld = nil
	}
	if mk.accYoung != nil && !mk.accYoung.empty() {
		mk.h.packets.publishRemembered(false, mk.accYoung)
		mk.accYoung = nil
	}
}
