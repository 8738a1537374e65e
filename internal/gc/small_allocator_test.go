package gc

import "testing"

func TestSmallAllocatorOwnsBlock(t *testing.T) {
	a := &smallAllocator{
		young:      bumpCursor{blockIdx: 3, hasBlock: true},
		pretenured: bumpCursor{blockIdx: 7, hasBlock: true},
		overflow:   bumpCursor{hasBlock: false},
	}

	if !a.ownsBlock(3) {
		t.Errorf("ownsBlock(3) = false, want true (young cursor owns it)")
	}
	if !a.ownsBlock(7) {
		t.Errorf("ownsBlock(7) = false, want true (pretenured cursor owns it)")
	}
	if a.ownsBlock(9) {
		t.Errorf("ownsBlock(9) = true, want false (no cursor owns it)")
	}
}

func TestSmallAllocatorOwnsBlockIgnoresCursorsWithoutABlock(t *testing.T) {
	a := &smallAllocator{
		young: bumpCursor{blockIdx: 0, hasBlock: false},
	}
	// blockIdx zero-value collides with a real block index 0; hasBlock
	// false must still mean "not owned".
	if a.ownsBlock(0) {
		t.Errorf("ownsBlock(0) = true, want false when hasBlock is false")
	}
}

func TestSmallAllocatorOwnsBlockOverflowCursor(t *testing.T) {
	a := &smallAllocator{
		overflow: bumpCursor{blockIdx: 11, hasBlock: true},
	}
	if !a.ownsBlock(11) {
		t.Errorf("ownsBlock(11) = false, want true (overflow cursor owns it)")
	}
}
