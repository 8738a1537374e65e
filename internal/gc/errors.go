package gc

import "errors"

// ErrNeedGC is returned by the allocator's fast path when the young
// budget (or a free-list lookup) is exhausted. Callers retry once after
// triggering a collection.
var ErrNeedGC = errors.New("gc: need collection")

// ErrOOM is the out-of-memory sentinel. None of the allocators in this
// package return it: every shortfall, including one that persists after a
// collection, is reported as ErrNeedGC.
var ErrOOM = errors.New("gc: out of memory")
