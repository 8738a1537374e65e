package gc

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
}

func TestOptionsValidateRejectsNonPowerOfTwoSizes(t *testing.T) {
	o := DefaultOptions()
	o.LineSize = 100
	assert.Error(t, o.Validate())

	o = DefaultOptions()
	o.BlockSize = 100
	assert.Error(t, o.Validate())
}

func TestOptionsValidateRejectsBadGranularityOrdering(t *testing.T) {
	o := DefaultOptions()
	o.AllocAlignWords = 1000 // alloc unit now exceeds line size
	assert.Error(t, o.Validate())

	o = DefaultOptions()
	o.LineSize = o.BlockSize * 2 // line now exceeds block
	assert.Error(t, o.Validate())

	o = DefaultOptions()
	o.BlockSize = o.LineSize*4 + 1 // not a multiple of line size
	assert.Error(t, o.Validate())
}

func TestOptionsValidateRejectsBadHeapBounds(t *testing.T) {
	o := DefaultOptions()
	o.InitialHeapSize = 0
	assert.Error(t, o.Validate())

	o = DefaultOptions()
	o.InitialHeapSize = o.MaxHeapSize + byteSize(o.BlockSize)
	assert.Error(t, o.Validate())

	o = DefaultOptions()
	o.InitialHeapSize = byteSize(uint64(o.BlockSize) + 1)
	assert.Error(t, o.Validate(), "initial heap size not a multiple of block size should fail")
}

func TestOptionsValidateRejectsZeroTunables(t *testing.T) {
	o := DefaultOptions()
	o.ArraySplitBatch = 0
	assert.Error(t, o.Validate())

	o = DefaultOptions()
	o.MaxYoungAge = 0
	assert.Error(t, o.Validate())
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"1", "true", "True", "yes", "on", " on "} {
		assert.True(t, parseBool(s), "parseBool(%q) should be true", s)
	}
	for _, s := range []string{"0", "false", "no", "off", "garbage", ""} {
		assert.False(t, parseBool(s), "parseBool(%q) should be false", s)
	}
}

func TestOptionsApplyEnvOverrides(t *testing.T) {
	t.Setenv("GENIMMIX_LINE_SIZE", "256")
	t.Setenv("GENIMMIX_MARKER_WORKERS", "4")
	t.Setenv("GENIMMIX_MAX_YOUNG_AGE", "3")
	t.Setenv("GENIMMIX_PRETENURE_OBJECT", "true")
	t.Setenv("GENIMMIX_MAX_HEAP_SIZE", "64MiB")

	o := DefaultOptions()
	require.NoError(t, o.applyEnv())

	assert.EqualValues(t, 256, o.LineSize)
	assert.Equal(t, 4, o.MarkerWorkers)
	assert.EqualValues(t, 3, o.MaxYoungAge)
	assert.True(t, o.PretenureObject)
	assert.Equal(t, uint64(64*1024*1024), o.MaxHeapSize.Bytes())
}

func TestLoadOptionsWithoutFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("GENIMMIX_MARKER_WORKERS", "2")
	o, err := LoadOptions("")
	require.NoError(t, err)
	assert.Equal(t, 2, o.MarkerWorkers)
	assert.Equal(t, DefaultOptions().LineSize, o.LineSize)
}

func TestLoadOptionsFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/options.yaml"
	yaml := "line_size: 128\nblock_size: 32768\nalloc_align_words: 2\nmax_young_age: 4\ninitial_heap_size: \"4MiB\"\nmax_heap_size: \"128MiB\"\narray_split_batch: 256\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	o, err := LoadOptions(path)
	require.NoError(t, err)
	assert.EqualValues(t, 4, o.MaxYoungAge)
	assert.Equal(t, uint64(128*1024*1024), o.MaxHeapSize.Bytes())
}

func TestByteSizeMarshalUnmarshalRoundTrip(t *testing.T) {
	var b byteSize
	err := b.UnmarshalYAML(func(v interface{}) error {
		*(v.(*string)) = "16MiB"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(16*1024*1024), b.Bytes())

	// Marshaling goes through the human-readable form, not a raw byte
	// count, so round-tripping it back through UnmarshalYAML must land
	// on the same byte count it started with.
	out, err := b.MarshalYAML()
	require.NoError(t, err)
	str, ok := out.(string)
	require.True(t, ok, "MarshalYAML should produce a string")

	var roundTripped byteSize
	err = roundTripped.UnmarshalYAML(func(v interface{}) error {
		*(v.(*string)) = str
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, b.Bytes(), roundTripped.Bytes())
}

func TestByteSizeUnmarshalRejectsInvalidString(t *testing.T) {
	var b byteSize
	err := b.UnmarshalYAML(func(v interface{}) error {
		*(v.(*string)) = "not-a-size"
		return nil
	})
	assert.Error(t, err)
}
