//go:build unix

package gc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// arena is a fixed-address byte range backing the heap, obtained via
// unix.Mmap so the collector does real pointer arithmetic against a flat
// range rather than a Go slice the runtime might move. Acquiring and
// releasing it is the only place this package talks to the OS; beyond
// that the core never maps, protects or unmaps memory again.
type arena struct {
	bytes []byte
}

func newArena(size uintptr) (*arena, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("gc: mmap %d bytes: %w", size, err)
	}
	return &arena{bytes: data}, nil
}

func (a *arena) release() error {
	if a.bytes == nil {
		return nil
	}
	err := unix.Munmap(a.bytes)
	a.bytes = nil
	return err
}
