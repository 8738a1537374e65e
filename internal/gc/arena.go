package gc

import "unsafe"

// bytesAt views size bytes starting at addr as a byte slice. addr must lie
// within a live arena for the duration of use.
func bytesAt(addr, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}

// wordAt reads the word at addr.
func wordAt(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

// setWordAt writes a word at addr.
func setWordAt(addr uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v
}

// arenaBase returns the address of the first byte of the arena's backing
// storage. Every heap address is computed as an offset from this value.
func arenaBase(a *arena) uintptr {
	if len(a.bytes) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&a.bytes[0]))
}

// packetPoolSize picks a total grey-packet count proportional to the
// block count: enough that a collection over a fully-live heap does not
// stall waiting for an empty packet, without provisioning per-object.
// Grounded on Marker.c's static MAX_CHUNKS_PER_WORKER-style proportional
// sizing rather than a fixed constant.
func packetPoolSize(numBlocks int) int {
	n := numBlocks * 2
	if n < 64 {
		n = 64
	}
	return n
}
