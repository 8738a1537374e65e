package gc

import "sync/atomic"

// Stats is a side-channel heap snapshot outside the core's correctness
// surface: nothing here participates in a GC invariant, it exists purely
// for observability.
type Stats struct {
	mallocs atomic.Uint64
	frees   atomic.Uint64

	liveBytes atomic.Int64

	youngBlocks atomic.Int64
	oldBlocks   atomic.Int64
	freeBlocks  atomic.Int64

	rememberedOldSize   atomic.Int64
	rememberedYoungSize atomic.Int64

	collections      atomic.Uint64
	youngCollections atomic.Uint64
	oldCollections   atomic.Uint64

	refrangePackets atomic.Uint64
}

// StatsSnapshot is an immutable copy of Stats safe to read without
// further synchronization.
type StatsSnapshot struct {
	Mallocs, Frees                                uint64
	LiveBytes                                     int64
	YoungBlocks, OldBlocks, FreeBlocks            int64
	RememberedOldSize, RememberedYoungSize        int64
	Collections, YoungCollections, OldCollections uint64
	RefrangePackets                               uint64
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Mallocs:             s.mallocs.Load(),
		Frees:               s.frees.Load(),
		LiveBytes:           s.liveBytes.Load(),
		YoungBlocks:         s.youngBlocks.Load(),
		OldBlocks:           s.oldBlocks.Load(),
		FreeBlocks:          s.freeBlocks.Load(),
		RememberedOldSize:   s.rememberedOldSize.Load(),
		RememberedYoungSize: s.rememberedYoungSize.Load(),
		Collections:         s.collections.Load(),
		YoungCollections:    s.youngCollections.Load(),
		OldCollections:      s.oldCollections.Load(),
		RefrangePackets:     s.refrangePackets.Load(),
	}
}

// Stats returns a point-in-time snapshot of the heap's side-channel
// counters.
func (h *Heap) Stats() StatsSnapshot { return h.stats.snapshot() }

// refreshStats recomputes the side-channel gauges from authoritative
// state after a collection: block counts from the block allocator,
// remembered-list sizes from the packet pool, live bytes from a direct
// scan of object meta. None of this feeds back into collection decisions.
func (h *Heap) refreshStats() {
	young, old, free := h.blocks.counts()
	h.stats.youngBlocks.Store(young)
	h.stats.oldBlocks.Store(old)
	h.stats.freeBlocks.Store(free)

	h.stats.rememberedOldSize.Store(int64(h.packets.rememberedLen(true)))
	h.stats.rememberedYoungSize.Store(int64(h.packets.rememberedLen(false)))

	var live int64
	for i, b := range h.objMeta {
		if omIsAllocated(b) || omIsMarked(b) {
			live += int64(h.objectExtent(h.unitAddr(i)))
		}
	}
	h.stats.liveBytes.Store(live)
}
