package gc

import "testing"

func TestObjectMetaStatePredicates(t *testing.T) {
	cases := []struct {
		b                                    byte
		free, placeholder, allocated, marked bool
	}{
		{omFree, true, false, false, false},
		{omPlaceholder, false, true, false, false},
		{omAllocated, false, false, true, false},
		{omMarked, false, false, false, true},
		{omAllocated | omRemembered, false, false, true, false},
	}
	for _, c := range cases {
		if got := omIsFree(c.b); got != c.free {
			t.Errorf("omIsFree(%#x) = %v, want %v", c.b, got, c.free)
		}
		if got := omIsPlaceholder(c.b); got != c.placeholder {
			t.Errorf("omIsPlaceholder(%#x) = %v, want %v", c.b, got, c.placeholder)
		}
		if got := omIsAllocated(c.b); got != c.allocated {
			t.Errorf("omIsAllocated(%#x) = %v, want %v", c.b, got, c.allocated)
		}
		if got := omIsMarked(c.b); got != c.marked {
			t.Errorf("omIsMarked(%#x) = %v, want %v", c.b, got, c.marked)
		}
	}
}

func TestObjectMetaRememberedBitIsOrthogonal(t *testing.T) {
	b := omSetRemembered(omAllocated)
	if !omIsAllocated(b) {
		t.Fatalf("setting remembered changed the state nibble: %#x", b)
	}
	if !omIsRemembered(b) {
		t.Fatalf("omSetRemembered did not set the remembered bit")
	}
	b = omSetUnremembered(b)
	if omIsRemembered(b) {
		t.Fatalf("omSetUnremembered left the remembered bit set")
	}
	if !omIsAllocated(b) {
		t.Fatalf("omSetUnremembered changed the state nibble: %#x", b)
	}
}

func TestObjectMetaAliveAndMarkPolarity(t *testing.T) {
	// Young collection: allocated is alive, marking flips to marked.
	if !omIsAlive(omAllocated, false) {
		t.Fatalf("allocated object should be alive for a young collection")
	}
	if omIsAlive(omMarked, false) {
		t.Fatalf("marked object should not be alive for a young collection")
	}
	if got := omMark(omAllocated, false); !omIsMarked(got) {
		t.Fatalf("omMark(allocated, young) = %#x, want marked", got)
	}

	// Old collection: marked is alive, marking flips to allocated.
	if !omIsAlive(omMarked, true) {
		t.Fatalf("marked object should be alive for an old collection")
	}
	if omIsAlive(omAllocated, true) {
		t.Fatalf("allocated object should not be alive for an old collection")
	}
	if got := omMark(omMarked, true); !omIsAllocated(got) {
		t.Fatalf("omMark(marked, old) = %#x, want allocated", got)
	}

	// The flip doubles as a visited-this-cycle flag: marking twice in the
	// same mode makes the object no longer "alive" for a second visit.
	marked := omMark(omAllocated, false)
	if omIsAlive(marked, false) {
		t.Fatalf("a freshly marked object should fail the alive check for the same cycle")
	}
}

func TestObjectMetaMarkPreservesRemembered(t *testing.T) {
	b := omSetRemembered(omAllocated)
	got := omMark(b, false)
	if !omIsRemembered(got) {
		t.Fatalf("omMark dropped the remembered bit: %#x", got)
	}
	if !omIsMarked(got) {
		t.Fatalf("omMark(remembered allocated, young) = %#x, want marked", got)
	}
}

func TestSweepByteFunctions(t *testing.T) {
	t.Run("young", func(t *testing.T) {
		if got := sweepYoungByte(omMarked); got != omAllocated {
			t.Errorf("sweepYoungByte(marked) = %#x, want allocated", got)
		}
		if got := sweepYoungByte(omMarked | omRemembered); got != omAllocated|omRemembered {
			t.Errorf("sweepYoungByte(marked|remembered) = %#x, want allocated|remembered", got)
		}
		if got := sweepYoungByte(omAllocated); got != omFree {
			t.Errorf("sweepYoungByte(allocated) = %#x, want free (unvisited this cycle means dead)", got)
		}
		if got := sweepYoungByte(omFree); got != omFree {
			t.Errorf("sweepYoungByte(free) = %#x, want free", got)
		}
	})
	t.Run("old", func(t *testing.T) {
		if got := sweepOldByte(omAllocated); got != omMarked {
			t.Errorf("sweepOldByte(allocated) = %#x, want marked", got)
		}
		if got := sweepOldByte(omAllocated | omRemembered); got != omMarked|omRemembered {
			t.Errorf("sweepOldByte(allocated|remembered) = %#x, want marked|remembered", got)
		}
		if got := sweepOldByte(omMarked); got != omFree {
			t.Errorf("sweepOldByte(marked) = %#x, want free", got)
		}
	})
	t.Run("newOld", func(t *testing.T) {
		if got := sweepNewOldByte(omMarked | omRemembered); got != omMarked|omRemembered {
			t.Errorf("sweepNewOldByte(marked|remembered) = %#x, want unchanged", got)
		}
		if got := sweepNewOldByte(omAllocated); got != omFree {
			t.Errorf("sweepNewOldByte(allocated) = %#x, want free", got)
		}
	})
}

// TestSweepChunk8MatchesByteForm exhaustively checks every possible
// object-meta byte value against the scalar sweep functions, packed eight
// to a word, since the SWAR chunk forms must agree with the scalar forms
// for every lane independent of its neighbors.
func TestSweepChunk8MatchesByteForm(t *testing.T) {
	allValues := func() []byte {
		var vs []byte
		for _, state := range []byte{omFree, omPlaceholder, omAllocated, omMarked} {
			vs = append(vs, state, state|omRemembered)
		}
		return vs
	}()

	check := func(t *testing.T, name string, chunkFn func(uint64) uint64, byteFn func(byte) byte) {
		for _, v := range allValues {
			var word uint64
			for lane := 0; lane < 8; lane++ {
				word |= uint64(v) << (8 * lane)
			}
			got := chunkFn(word)
			want := uint64(byteFn(v))
			var wantWord uint64
			for lane := 0; lane < 8; lane++ {
				wantWord |= want << (8 * lane)
			}
			if got != wantWord {
				t.Errorf("%s: byte %#x broadcast across 8 lanes: got %#016x, want %#016x", name, v, got, wantWord)
			}
		}
	}

	check(t, "sweepYoungChunk8", sweepYoungChunk8, sweepYoungByte)
	check(t, "sweepOldChunk8", sweepOldChunk8, sweepOldByte)
	check(t, "sweepNewOldChunk8", sweepNewOldChunk8, sweepNewOldByte)
}

// TestSweepChunk8LanesAreIndependent checks that a chunk function applied
// to a word mixing different byte values per lane produces exactly the
// per-lane scalar result in every lane, not just when all lanes match.
func TestSweepChunk8LanesAreIndependent(t *testing.T) {
	lanes := []byte{omFree, omMarked, omMarked | omRemembered, omAllocated, omAllocated | omRemembered, omMarked, omFree, omMarked | omRemembered}
	var word uint64
	for i, v := range lanes {
		word |= uint64(v) << (8 * i)
	}
	got := sweepYoungChunk8(word)
	for i, v := range lanes {
		gotLane := byte(got >> (8 * i))
		wantLane := sweepYoungByte(v)
		if gotLane != wantLane {
			t.Errorf("lane %d: sweepYoungChunk8 produced %#x, want %#x (from byte %#x)", i, gotLane, wantLane, v)
		}
	}
}
