package gc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreyPacketPushAndFull(t *testing.T) {
	var p greyPacket
	p.reset(packetReflist)
	require.True(t, p.empty())
	for i := 0; i < packetCapacity; i++ {
		require.True(t, p.push(uintptr(i+1)), "push %d should succeed under capacity", i)
	}
	assert.True(t, p.full())
	assert.False(t, p.push(999), "push past capacity should fail")
	assert.Equal(t, packetCapacity, p.count)
}

func TestGreyPacketSplitHalf(t *testing.T) {
	var p, dst greyPacket
	p.reset(packetReflist)
	for i := 0; i < 10; i++ {
		p.push(uintptr(i))
	}
	p.splitHalf(&dst)
	require.Equal(t, 5, p.count)
	require.Equal(t, 5, dst.count)
	for i := 0; i < 5; i++ {
		assert.Equal(t, uintptr(i), p.refs[i])
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, uintptr(i+5), dst.refs[i])
	}
}

func TestGreyPacketSplitTailLeavesPrefix(t *testing.T) {
	var p, dst greyPacket
	p.reset(packetReflist)
	for i := 0; i < 20; i++ {
		p.push(uintptr(i))
	}
	p.splitTail(&dst, 7)
	require.Equal(t, 7, p.count)
	require.Equal(t, 13, dst.count)
	for i := 0; i < 13; i++ {
		assert.Equal(t, uintptr(i+7), dst.refs[i])
	}
}

func TestPacketStackPushPopOrder(t *testing.T) {
	pool := &packetPool{packets: make([]greyPacket, 4)}
	for i := range pool.packets {
		pool.packets[i].next = nilPacket
	}
	s := newPacketStack()
	assert.Equal(t, 0, s.len(pool))

	s.push(pool, 0)
	s.push(pool, 1)
	s.push(pool, 2)
	require.Equal(t, 3, s.len(pool))

	// LIFO order.
	idx, ok := s.pop(pool)
	require.True(t, ok)
	assert.Equal(t, int32(2), idx)

	idx, ok = s.pop(pool)
	require.True(t, ok)
	assert.Equal(t, int32(1), idx)

	idx, ok = s.pop(pool)
	require.True(t, ok)
	assert.Equal(t, int32(0), idx)

	_, ok = s.pop(pool)
	assert.False(t, ok, "popping an empty stack should report false")
}

func TestPacketPoolTakeEmptyResetsKind(t *testing.T) {
	pp := newPacketPool(4)
	p := pp.takeEmpty()
	require.NotNil(t, p)
	assert.Equal(t, packetReflist, p.kind)
	assert.True(t, p.empty())

	p.push(42)
	pp.publishFull(p)

	got, ok := pp.takeFull()
	require.True(t, ok)
	assert.Equal(t, uintptr(42), got.refs[0])

	pp.release(got)
	assert.Equal(t, 4, pp.emptyLen())
}

func TestPacketPoolRememberedLists(t *testing.T) {
	pp := newPacketPool(4)
	p := pp.takeEmpty()
	p.push(7)
	pp.publishRemembered(true, p)

	assert.Equal(t, 1, pp.rememberedLen(true))
	assert.Equal(t, 0, pp.rememberedLen(false))

	got, ok := pp.drainRemembered(true)
	require.True(t, ok)
	assert.Equal(t, uintptr(7), got.refs[0])
	assert.Equal(t, 0, pp.rememberedLen(true))

	_, ok = pp.drainRemembered(false)
	assert.False(t, ok)
}

// TestPacketPoolConcurrentTakeFullIsExclusive checks the core safety
// property the Treiber stack exists for: under concurrent publishFull and
// takeFull, every published packet is handed to exactly one taker, never
// zero and never more than one.
func TestPacketPoolConcurrentTakeFullIsExclusive(t *testing.T) {
	const n = 2000
	pp := newPacketPool(n + 8)

	for i := 0; i < n; i++ {
		p := pp.takeEmpty()
		p.push(uintptr(i))
		pp.publishFull(p)
	}

	seen := make([]int32, n)
	var mu sync.Mutex
	var wg sync.WaitGroup
	workers := 8
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				p, ok := pp.takeFull()
				if !ok {
					return
				}
				v := p.refs[0]
				mu.Lock()
				seen[v]++
				mu.Unlock()
				pp.release(p)
			}
		}()
	}
	wg.Wait()

	for i, c := range seen {
		if c != 1 {
			t.Fatalf("packet %d taken %d times, want exactly 1", i, c)
		}
	}
}
