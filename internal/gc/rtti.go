package gc

// sentinelFieldOffset terminates a runtime reference map, mirroring the
// extern layout { type_id, ..., reference_map: offset[] terminated by -1 }.
const sentinelFieldOffset = -1

// TypeDescriptor is the runtime type descriptor the mutator supplies for
// every allocation: a type id, the is-array discriminator, and (for
// non-arrays) the reference map of field offsets in words from the
// object's payload start plus the object's total payload size. Descriptors
// are owned by the mutator and only read by the collector; the collector
// never allocates or frees them.
type TypeDescriptor struct {
	ID uint32

	// IsArray marks an object-array type: length-prefixed, length
	// reference fields of word width, no RefOffsets/PayloadWords.
	IsArray bool

	// RefOffsets lists, in words from the payload start, every field
	// that holds a strong reference. Unused for array types.
	RefOffsets []uintptr

	// PayloadWords is the total size in words of a non-array instance's
	// payload (the fields following the rtti header word, reference and
	// non-reference alike). Unused for array types, where the payload
	// size is length words.
	PayloadWords uintptr
}

// ParseRefMap decodes a sentinel-terminated reference map as the runtime
// extern layout would present it (offset[] terminated by -1), for
// descriptors assembled from an external, C-shaped source.
func ParseRefMap(raw []int64) []uintptr {
	offsets := make([]uintptr, 0, len(raw))
	for _, v := range raw {
		if v == sentinelFieldOffset {
			break
		}
		offsets = append(offsets, uintptr(v))
	}
	return offsets
}

// objectHeaderWords is the number of words occupied by a non-array
// object's header: just the rtti word (a type id, see alloc.go).
const objectHeaderWords = 1

// arrayHeaderWords is the number of words occupied by an array object's
// header: the rtti word followed by the length.
const arrayHeaderWords = 2

// payloadWords returns the number of words of field storage following an
// object's header, given its descriptor and (for arrays) its length.
func payloadWords(td *TypeDescriptor, length uintptr) uintptr {
	if td.IsArray {
		return length
	}
	return td.PayloadWords
}

// objectWords returns the total size in words of an instance of td,
// header included.
func objectWords(td *TypeDescriptor, length uintptr) uintptr {
	if td.IsArray {
		return arrayHeaderWords + length
	}
	return objectHeaderWords + td.PayloadWords
}
