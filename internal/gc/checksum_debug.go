//go:build gcdebug

package gc

import "github.com/sigurn/crc16"

var checksumTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// checksumBlock returns a CRC16 over one block's object-meta bytes, used
// only as a debug-build integrity check that a sweep pass left no byte
// behind in a state the allocator or next mark phase doesn't expect.
func (h *Heap) checksumBlock(idx int) uint16 {
	base := idx * h.unitsPerBlock
	return crc16.Checksum(h.objMeta[base:base+h.unitsPerBlock], checksumTable)
}

// verifySweepIntegrity recomputes each swept block's checksum and logs any
// block whose object meta contains a byte state sweeping should never
// produce: a stray `marked` byte in a young-swept block, or a stray
// `allocated` byte in an old-swept block.
func (h *Heap) verifySweepIntegrity(collectingOld bool) {
	maxAge := uint8(h.opts.MaxYoungAge)
	for idx := 0; idx < h.numBlocks; idx++ {
		switch h.blkMeta.state(idx) {
		case blockFree, blockSuperblockStart, blockSuperblockTail:
			continue
		}
		if h.blkMeta.isOld(idx, maxAge) != collectingOld {
			continue
		}
		base := idx * h.unitsPerBlock
		for i := 0; i < h.unitsPerBlock; i++ {
			b := h.objMeta[base+i]
			if collectingOld && omIsAllocated(b) {
				h.log.Warn("stray allocated byte after old sweep", "block", idx, "unit", i)
			}
			if !collectingOld && omIsMarked(b) {
				h.log.Warn("stray marked byte after young sweep", "block", idx, "unit", i)
			}
		}
		sum := h.checksumBlock(idx)
		h.log.Debug("block checksum", "block", idx, "crc16", sum)
	}
}
