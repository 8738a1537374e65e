package gc

// Object headers in the arena store a type id (one word), not a raw
// pointer: see typeRegistry in context.go. Array objects follow the id
// with a length word.

func (h *Heap) writeHeader(addr uintptr, td *TypeDescriptor, length uintptr) {
	setWordAt(addr, uintptr(td.ID))
	if td.IsArray {
		setWordAt(addr+WordSize, length)
	}
}

func (h *Heap) headerTypeID(addr uintptr) uint32 { return uint32(wordAt(addr)) }

func (h *Heap) objectType(addr uintptr) *TypeDescriptor { return h.lookupType(h.headerTypeID(addr)) }

func (h *Heap) arrayLength(addr uintptr) uintptr { return wordAt(addr + WordSize) }

// fieldAddr computes the address of one reference field of obj, given its
// descriptor. For an object array, fieldIdx ranges over [0, length); for
// a plain object it indexes td.RefOffsets.
func (h *Heap) fieldAddr(obj uintptr, td *TypeDescriptor, fieldIdx int) uintptr {
	if td.IsArray {
		return obj + arrayHeaderWords*WordSize + uintptr(fieldIdx)*WordSize
	}
	return obj + objectHeaderWords*WordSize + td.RefOffsets[fieldIdx]*WordSize
}

// Alloc allocates a non-array object of td's shape through the small
// bump allocator.
func (h *Heap) Alloc(td *TypeDescriptor) (uintptr, error) {
	size := objectWords(td, 0) * WordSize
	addr, err := h.small.Alloc(size)
	if err != nil {
		return 0, err
	}
	h.writeHeader(addr, td, 0)
	h.stats.mallocs.Add(1)
	return addr, nil
}

// AllocLarge allocates an object-array (or any value the caller knows is
// large) through the large-object allocator, which may span multiple
// blocks.
func (h *Heap) AllocLarge(td *TypeDescriptor, length uintptr) (uintptr, error) {
	size := objectWords(td, length) * WordSize
	addr, err := h.large.Alloc(size, false)
	if err != nil {
		return 0, err
	}
	h.writeHeader(addr, td, length)
	h.stats.mallocs.Add(1)
	return addr, nil
}

// AllocPretenured allocates directly into an old block, skipping
// promotion. Routes through the small or large allocator depending on
// shape and size, mirroring the ordinary routing rule.
func (h *Heap) AllocPretenured(td *TypeDescriptor, length uintptr) (uintptr, error) {
	size := objectWords(td, length) * WordSize
	var addr uintptr
	var err error
	if td.IsArray || size > h.lineSize {
		addr, err = h.large.Alloc(size, true)
	} else {
		addr, err = h.small.AllocPretenured(size)
	}
	if err != nil {
		return 0, err
	}
	h.writeHeader(addr, td, length)
	h.stats.mallocs.Add(1)
	return addr, nil
}
