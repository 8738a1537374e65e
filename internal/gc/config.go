package gc

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v2"
)

// Options holds every tunable named in the external interface: heap
// granularity, array-splitting thresholds, promotion age, pretenuring and
// heap growth bounds. Zero-value Options is not usable; start from
// DefaultOptions.
type Options struct {
	LineSize  uint32 `yaml:"line_size"`
	BlockSize uint32 `yaml:"block_size"`

	// AllocAlignWords is A, the allocation unit's size in words (A*W bytes).
	AllocAlignWords uint32 `yaml:"alloc_align_words"`

	ArraySplitThreshold  uint32 `yaml:"array_split_threshold"`
	ArraySplitBatch      uint32 `yaml:"array_split_batch"`
	MarkMaxWorkPerPacket uint32 `yaml:"mark_max_work_per_packet"`

	MaxYoungAge    uint8  `yaml:"max_young_age"`
	MaxYoungBlocks uint32 `yaml:"max_young_blocks"`

	PretenureObject    bool     `yaml:"pretenure_object"`
	PretenureThreshold byteSize `yaml:"pretenure_threshold"`

	InitialHeapSize byteSize `yaml:"initial_heap_size"`
	MaxHeapSize     byteSize `yaml:"max_heap_size"`

	// MarkerWorkers is the number of marker goroutines run per
	// collection. Zero means use GOMAXPROCS.
	MarkerWorkers int `yaml:"marker_workers"`
}

// byteSize wraps bytesize.ByteSize with YAML (de)serialization through its
// human-readable string form ("64MiB"), so heap sizes round-trip through
// units instead of raw byte counts.
type byteSize bytesize.ByteSize

func (b byteSize) Bytes() uint64 { return uint64(bytesize.ByteSize(b)) }

func (b byteSize) String() string { return bytesize.ByteSize(b).String() }

func (b *byteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := bytesize.Parse(s)
	if err != nil {
		return fmt.Errorf("gc: invalid byte size %q: %w", s, err)
	}
	*b = byteSize(parsed)
	return nil
}

func (b byteSize) MarshalYAML() (interface{}, error) {
	return bytesize.ByteSize(b).String(), nil
}

// DefaultOptions returns the tunables matching the seed-scenario constants:
// W=8, LINE_SIZE=128, BLOCK_SIZE=32KiB, A=2, MAX_YOUNG_AGE=2,
// ARRAY_SPLIT_THRESHOLD=1024, ARRAY_SPLIT_BATCH=256.
func DefaultOptions() Options {
	return Options{
		LineSize:             128,
		BlockSize:            32 * 1024,
		AllocAlignWords:      2,
		ArraySplitThreshold:  1024,
		ArraySplitBatch:      256,
		MarkMaxWorkPerPacket: 4096,
		MaxYoungAge:          2,
		MaxYoungBlocks:       1024,
		PretenureObject:      false,
		PretenureThreshold:   byteSize(8 * 1024),
		InitialHeapSize:      byteSize(4 * 1024 * 1024),
		MaxHeapSize:          byteSize(512 * 1024 * 1024),
		MarkerWorkers:        0,
	}
}

// LoadOptions reads YAML tunables from path, applying them over
// DefaultOptions, then applies GENIMMIX_* environment overrides.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Options{}, fmt.Errorf("gc: reading options file: %w", err)
		}
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return Options{}, fmt.Errorf("gc: parsing options file: %w", err)
		}
	}
	if err := opts.applyEnv(); err != nil {
		return Options{}, err
	}
	return opts, opts.Validate()
}

// envPrefix is the namespace for tunable environment overrides.
const envPrefix = "GENIMMIX_"

func (o *Options) applyEnv() error {
	fields := map[string]func(string) error{
		"LINE_SIZE":                uint32Setter(&o.LineSize),
		"BLOCK_SIZE":               uint32Setter(&o.BlockSize),
		"ALLOC_ALIGN_WORDS":        uint32Setter(&o.AllocAlignWords),
		"ARRAY_SPLIT_THRESHOLD":    uint32Setter(&o.ArraySplitThreshold),
		"ARRAY_SPLIT_BATCH":        uint32Setter(&o.ArraySplitBatch),
		"MARK_MAX_WORK_PER_PACKET": uint32Setter(&o.MarkMaxWorkPerPacket),
		"MAX_YOUNG_BLOCKS":         uint32Setter(&o.MaxYoungBlocks),
		"MARKER_WORKERS":           intSetter(&o.MarkerWorkers),
	}
	for suffix, set := range fields {
		v, ok := os.LookupEnv(envPrefix + suffix)
		if !ok {
			continue
		}
		if err := set(v); err != nil {
			return fmt.Errorf("gc: %s%s: %w", envPrefix, suffix, err)
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "MAX_YOUNG_AGE"); ok {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return fmt.Errorf("gc: %sMAX_YOUNG_AGE: %w", envPrefix, err)
		}
		o.MaxYoungAge = uint8(n)
	}
	if v, ok := os.LookupEnv(envPrefix + "PRETENURE_OBJECT"); ok {
		o.PretenureObject = parseBool(v)
	}
	for suffix, dst := range map[string]*byteSize{
		"PRETENURE_THRESHOLD": &o.PretenureThreshold,
		"INITIAL_HEAP_SIZE":   &o.InitialHeapSize,
		"MAX_HEAP_SIZE":       &o.MaxHeapSize,
	} {
		v, ok := os.LookupEnv(envPrefix + suffix)
		if !ok {
			continue
		}
		parsed, err := bytesize.Parse(v)
		if err != nil {
			return fmt.Errorf("gc: %s%s: %w", envPrefix, suffix, err)
		}
		*dst = byteSize(parsed)
	}
	return nil
}

func uint32Setter(dst *uint32) func(string) error {
	return func(s string) error {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return err
		}
		*dst = uint32(n)
		return nil
	}
}

func intSetter(dst *int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Validate checks the structural constraints on the granularity
// tunables: powers of two with A*W ≤ LINE_SIZE ≤ BLOCK_SIZE.
func (o Options) Validate() error {
	allocUnit := uintptr(o.AllocAlignWords) * WordSize
	lineSize := uintptr(o.LineSize)
	blockSize := uintptr(o.BlockSize)

	if !isPowerOfTwo(lineSize) {
		return fmt.Errorf("gc: line size %d is not a power of two", o.LineSize)
	}
	if !isPowerOfTwo(blockSize) {
		return fmt.Errorf("gc: block size %d is not a power of two", o.BlockSize)
	}
	if allocUnit > lineSize {
		return fmt.Errorf("gc: alloc unit %d exceeds line size %d", allocUnit, o.LineSize)
	}
	if lineSize > blockSize {
		return fmt.Errorf("gc: line size %d exceeds block size %d", o.LineSize, o.BlockSize)
	}
	if blockSize%lineSize != 0 {
		return fmt.Errorf("gc: block size %d not a multiple of line size %d", o.BlockSize, o.LineSize)
	}
	if o.ArraySplitBatch == 0 {
		return fmt.Errorf("gc: array split batch must be non-zero")
	}
	if o.MaxYoungAge == 0 {
		return fmt.Errorf("gc: max young age must be at least 1")
	}
	if o.InitialHeapSize.Bytes() == 0 {
		return fmt.Errorf("gc: initial heap size must be non-zero")
	}
	if o.InitialHeapSize.Bytes() > o.MaxHeapSize.Bytes() {
		return fmt.Errorf("gc: initial heap size %s exceeds max heap size %s", o.InitialHeapSize, o.MaxHeapSize)
	}
	if o.InitialHeapSize.Bytes()%uint64(blockSize) != 0 {
		return fmt.Errorf("gc: initial heap size %s is not a multiple of block size %d", o.InitialHeapSize, o.BlockSize)
	}
	return nil
}
