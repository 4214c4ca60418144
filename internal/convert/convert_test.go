package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSliceNameResolveOriginal(t *testing.T) {
	n := SliceName{Original: "IM0007.dcm", Index: 7}
	assert.Equal(t, "IM0007.dcm", n.Resolve(4, ".dcm"))
}

func TestSliceNameResolveStripsDirectories(t *testing.T) {
	n := SliceName{Original: "../outside/IM0007.dcm", Index: 7}
	assert.Equal(t, "IM0007.dcm", n.Resolve(4, ".dcm"))
}

func TestSliceNameResolvePositional(t *testing.T) {
	n := SliceName{Index: 7}
	assert.Equal(t, "slice_0007.dcm", n.Resolve(4, ".dcm"))
	assert.Equal(t, "slice_00007.ima", n.Resolve(5, ".ima"))
}

func TestSliceNamesPositionalIgnoresOriginals(t *testing.T) {
	names := sliceNames(NamePositional, []string{"a.dcm", "b.dcm"}, 2)
	for i, n := range names {
		assert.Empty(t, n.Original, "slice %d", i)
		assert.Equal(t, i, n.Index)
	}
}

func TestSliceNamesOriginalFallsBackWhenUnrecorded(t *testing.T) {
	names := sliceNames(NameOriginal, nil, 2)
	assert.Equal(t, "slice_0000.dcm", names[0].Resolve(positionalWidth(2), positionalExt(nil)))
	assert.Equal(t, "slice_0001.dcm", names[1].Resolve(positionalWidth(2), positionalExt(nil)))
}

func TestPositionalWidthGrowsWithSeriesLength(t *testing.T) {
	assert.Equal(t, 4, positionalWidth(3))
	assert.Equal(t, 4, positionalWidth(9999))
	assert.Equal(t, 5, positionalWidth(10000))
}

func TestPositionalExt(t *testing.T) {
	assert.Equal(t, ".ima", positionalExt([]string{"scan.ima"}))
	assert.Equal(t, ".dcm", positionalExt([]string{"noext"}))
	assert.Equal(t, ".dcm", positionalExt(nil))
}
