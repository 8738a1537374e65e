package genimmix

import "github.com/aykevl/genimmix/internal/gc"

// Options tunes the collector's geometry and policy. Load it from YAML
// with LoadOptions, or start from DefaultOptions and override fields
// directly; NewHeap validates whatever it is given.
type Options = gc.Options

// DefaultOptions returns the collector's built-in tuning: a 128-byte line,
// a 32 KiB block, a two-word allocation unit, MaxYoungAge 2, an array split
// threshold of 1024 with batches of 256, and a 4 MiB initial heap.
func DefaultOptions() Options { return gc.DefaultOptions() }

// LoadOptions reads YAML from path over DefaultOptions, then applies any
// GENIMMIX_* environment overrides, validates the result and returns it
// together with any validation error.
func LoadOptions(path string) (Options, error) { return gc.LoadOptions(path) }
