package gc

import "sync/atomic"

type blockState uint8

const (
	blockFree blockState = iota
	blockRecyclable
	blockUnavailable
	blockSuperblockStart
	blockSuperblockTail
)

func (s blockState) String() string {
	switch s {
	case blockFree:
		return "free"
	case blockRecyclable:
		return "recyclable"
	case blockUnavailable:
		return "unavailable"
	case blockSuperblockStart:
		return "superblock-start"
	case blockSuperblockTail:
		return "superblock-tail"
	default:
		return "invalid"
	}
}

// noFreeLine marks that a block has no threaded free-line head: this
// implementation sweeps by head-rescan instead of threading free-line
// runs, so the field stays at this sentinel.
const noFreeLine = ^uint16(0)

// blockMetaEntry is one block's record: state tag, mark bit, age, a
// first-free-line index (unused by the head-rescan sweep path this
// implementation takes), and the span of a superblock this block heads.
type blockMetaEntry struct {
	state blockState
	mark  atomic.Bool
	age   uint8

	firstFreeLine uint16

	// superblockBlocks is the number of contiguous blocks in the
	// superblock headed by this entry; valid only when state is
	// blockSuperblockStart.
	superblockBlocks uint32

	// superblockHead is the block index of this block's superblock head,
	// valid only when state is blockSuperblockTail. Lets a conservative
	// root scan that lands in a superblock's tail block resolve back to
	// the head in O(1) instead of walking backward block by block.
	superblockHead int32
}

type blockMeta []blockMetaEntry

func (m blockMeta) reset(idx int, state blockState) {
	e := &m[idx]
	e.state = state
	e.mark.Store(false)
	e.age = 0
	e.firstFreeLine = noFreeLine
	e.superblockBlocks = 0
	e.superblockHead = -1
}

func (m blockMeta) markAtomic(idx int) { m[idx].mark.Store(true) }

func (m blockMeta) isMarked(idx int) bool { return m[idx].mark.Load() }

func (m blockMeta) unmark(idx int) { m[idx].mark.Store(false) }

func (m blockMeta) state(idx int) blockState { return m[idx].state }

func (m blockMeta) setState(idx int, s blockState) { m[idx].state = s }

func (m blockMeta) age(idx int) uint8 { return m[idx].age }

// isOld reports whether the block at idx has reached maxYoungAge: a block
// is old iff its age has reached that threshold.
func (m blockMeta) isOld(idx int, maxYoungAge uint8) bool {
	return m[idx].age >= maxYoungAge
}

// willBeOld reports whether the block is already old or will be promoted
// by the collection currently running (age == maxYoungAge-1), used by
// remembered-set bookkeeping during tracing.
func (m blockMeta) willBeOld(idx int, maxYoungAge uint8) bool {
	return m[idx].age >= maxYoungAge-1
}

// incrementAge bumps the age of a surviving young block by one,
// returning true if it has now reached maxYoungAge (promoted to old).
func (m blockMeta) incrementAge(idx int, maxYoungAge uint8) bool {
	e := &m[idx]
	if e.age < maxYoungAge {
		e.age++
	}
	return e.age >= maxYoungAge
}

// forceOld sets a block's age directly to maxYoungAge, used to pretenure
// a freshly acquired block: it is flagged old from birth.
func (m blockMeta) forceOld(idx int, maxYoungAge uint8) { m[idx].age = maxYoungAge }

func (m blockMeta) superblockSize(idx int) uint32 { return m[idx].superblockBlocks }

func (m blockMeta) setSuperblock(idx int, blocks uint32) {
	m[idx].state = blockSuperblockStart
	m[idx].superblockBlocks = blocks
}

// setSuperblockHead records that idx is a tail block of the superblock
// headed at headIdx.
func (m blockMeta) setSuperblockHead(idx, headIdx int) {
	m[idx].superblockHead = int32(headIdx)
}

// headOf resolves a superblock-tail block back to its head's index.
func (m blockMeta) headOf(idx int) int { return int(m[idx].superblockHead) }
