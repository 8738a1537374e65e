package gc

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// resolveWorkerCount applies the documented MarkerWorkers zero-means-
// GOMAXPROCS convention, shared by the marker pool and the sweeper so
// both size their parallelism the same way.
func resolveWorkerCount(configured int) int {
	if configured > 0 {
		return configured
	}
	return runtime.GOMAXPROCS(0)
}

// quiescent reports whether every packet not parked on a remembered list
// or checked out by a live worker is back in the empty list. active is
// the current number of running marker workers, each of which holds
// exactly one out packet from newWorker until flush; heldAccumulators
// adds the 0, 1, or 2 remembered-set accumulator packets currently
// checked out, since a packet a worker is actively filling is neither
// empty nor full.
func (mk *marker) quiescent(active int) bool {
	pp := mk.h.packets
	parked := pp.rememberedLen(true) + pp.rememberedLen(false)
	held := active + mk.heldAccumulators()
	return pp.emptyLen() == pp.total()-parked-held
}

// seedRemembered re-traces the complementary generation's remembered
// objects as roots: a young collection drains rememberedOld (old objects
// holding pointers into the young generation), an old collection drains
// rememberedYoung. Each object's remembered bit is cleared before
// re-tracing so traceObject's own updateRemembered call makes a fresh
// decision from the current field contents, re-appending the object to a
// remembered list only if it still qualifies.
func (mk *marker) seedRemembered(w *markWorker) {
	h := mk.h
	drainOld := !mk.collectingOld
	for {
		p, ok := h.packets.drainRemembered(drainOld)
		if !ok {
			break
		}
		for i := 0; i < p.count; i++ {
			obj := p.refs[i]
			unit := h.unitIndex(obj)
			h.objMeta.set(unit, omSetUnremembered(h.objMeta.get(unit)))
			mk.traceObject(w, obj)
		}
		p.reset(packetReflist)
		h.packets.release(p)
	}
}

// drive is one worker's loop: take a full packet, trace it, release it
// empty, repeat until no full packet is available and the pool as a whole
// has gone quiescent. A reflist packet that exceeds MarkMaxWorkPerPacket
// worth of tracing mid-packet has its unprocessed tail split off and
// republished, so a backlog on one packet doesn't stall behind a single
// worker.
func (mk *marker) drive(w *markWorker, pool *markerPool) {
	h := mk.h
	maxWork := h.opts.MarkMaxWorkPerPacket
	for {
		select {
		case <-pool.stop:
			return
		default:
		}

		p, ok := h.packets.takeFull()
		if !ok {
			if mk.quiescent(int(pool.active.Load())) {
				return
			}
			runtime.Gosched()
			continue
		}

		switch p.kind {
		case packetRefrange:
			mk.traceRefrange(w, p)
		case packetReflist:
			work := 0
			i := 0
			for ; i < p.count; i++ {
				work += mk.traceObject(w, p.refs[i])
				if maxWork > 0 && work >= int(maxWork) && i+1 < p.count {
					tail := h.packets.takeEmpty()
					p.splitTail(tail, i+1)
					h.packets.publishFull(tail)
					break
				}
			}
		}
		// Publish the children found while tracing p before p itself goes
		// back to the empty list, so quiescence is never observed while
		// grey objects sit in an unpublished out packet.
		if !w.out.empty() {
			h.packets.publishFull(w.out)
			w.out = h.packets.takeEmpty()
		}
		p.reset(packetReflist)
		h.packets.release(p)
	}
}

// markerPool runs a scalable set of drive loops for one collection: a
// fixed base of opts.MarkerWorkers goroutines, topped up by a monitor that
// adds workers (capped at twice the configured count, and never past
// GOMAXPROCS) while the full list keeps outpacing the active worker count,
// and never shrinks mid-collection since load balancing is the marker's
// job, not the pool's.
type markerPool struct {
	mk       *marker
	stop     chan struct{}
	wg       sync.WaitGroup
	active   atomic.Int32
	capacity int32
}

func newMarkerPool(mk *marker) *markerPool {
	base := resolveWorkerCount(mk.h.opts.MarkerWorkers)
	capacity := int32(base * 2)
	if max := int32(runtime.GOMAXPROCS(0)); capacity > max {
		capacity = max
	}
	return &markerPool{mk: mk, stop: make(chan struct{}), capacity: capacity}
}

func (p *markerPool) spawn() {
	p.wg.Add(1)
	p.active.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.active.Add(-1)
		w := p.mk.newWorker()
		p.mk.drive(w, p)
		w.flush()
	}()
}

// run launches the base pool, seeds extra workers while the full list
// backlog exceeds the active count, and blocks until every worker has
// observed quiescence and returned.
func (p *markerPool) run() {
	base := resolveWorkerCount(p.mk.h.opts.MarkerWorkers)
	for i := 0; i < base; i++ {
		p.spawn()
	}

	for {
		if p.mk.quiescent(int(p.active.Load())) {
			close(p.stop)
			break
		}
		if p.active.Load() < p.capacity && p.mk.h.packets.full.len(p.mk.h.packets) > int(p.active.Load()) {
			p.spawn()
		}
		runtime.Gosched()
	}
	p.wg.Wait()
}

// Collect runs one complete collection: seed roots and the complementary
// remembered set, run the marker pool to quiescence, flush any partially
// filled accumulator packets, then sweep every block for the mode just
// run. stackWords is the caller-supplied conservative stack range (see
// scanRoots); collectingOld selects a young or old collection.
func (h *Heap) Collect(collectingOld bool, stackWords []uintptr) {
	h.mu.Lock()
	defer h.mu.Unlock()

	mk := h.mk
	mk.collectingOld = collectingOld
	mk.refrangeCount.Store(0)
	h.clearLineMarks(collectingOld)

	seed := mk.newWorker()
	h.scanRoots(seed, stackWords)
	mk.seedRemembered(seed)
	seed.flush()

	newMarkerPool(mk).run()
	mk.flushRemembered()

	h.sweepAll(collectingOld)
	h.verifySweepIntegrity(collectingOld)
	h.refreshStats()

	if collectingOld {
		h.stats.oldCollections.Add(1)
	} else {
		h.stats.youngCollections.Add(1)
	}
	h.stats.collections.Add(1)
	h.stats.refrangePackets.Store(mk.refrangeCount.Load())

	h.log.Info("collection finished",
		"old", collectingOld,
		"liveBytes", h.stats.liveBytes.Load())
}
