package zarrstore

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsinham/dicomzarr/internal/compress"
	"github.com/mrsinham/dicomzarr/internal/volume"
)

func testVolume(t *testing.T, dtype volume.DType) *volume.Volume {
	t.Helper()
	vol, err := volume.New([3]int{3, 8, 8}, dtype)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := range vol.Data {
		vol.Data[i] = byte(rng.Intn(64))
	}
	return vol
}

func TestWriteReadRoundTrip(t *testing.T) {
	configs := map[string]Config{
		"zstd":       {Codec: compress.CodecZstd, Level: 1, Shuffle: ShuffleByte},
		"lz4":        {Codec: compress.CodecLZ4, Shuffle: ShuffleByte},
		"none":       {Codec: compress.CodecNone, Shuffle: ShuffleNone},
		"no shuffle": {Codec: compress.CodecZstd, Level: 3, Shuffle: ShuffleNone},
	}
	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "series.zarr")
			want := testVolume(t, volume.Uint16)

			require.NoError(t, Write(context.Background(), path, want, cfg))

			got, err := Read(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, want.Shape, got.Shape)
			assert.Equal(t, want.DType, got.DType)
			assert.Equal(t, want.Data, got.Data)
		})
	}
}

func TestWriteReadUint8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.zarr")
	want := testVolume(t, volume.Uint8)

	require.NoError(t, Write(context.Background(), path, want, DefaultConfig()))

	got, err := Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, want.Data, got.Data)
}

func TestWriteReplacesExistingStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.zarr")
	stale := filepath.Join(path, "9.0.0")
	require.NoError(t, os.MkdirAll(path, 0755))
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0644))

	require.NoError(t, Write(context.Background(), path, testVolume(t, volume.Uint8), DefaultConfig()))

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteRejectsBadShuffle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.zarr")
	cfg := Config{Codec: compress.CodecZstd, Level: 1, Shuffle: "bit"}

	assert.Error(t, Write(context.Background(), path, testVolume(t, volume.Uint8), cfg))
}

func TestZarrayRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.zarr")
	require.NoError(t, Write(context.Background(), path, testVolume(t, volume.Uint16), DefaultConfig()))

	data, err := os.ReadFile(filepath.Join(path, ".zarray"))
	require.NoError(t, err)

	var meta Metadata
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, 2, meta.ZarrFormat)
	assert.Equal(t, []int{3, 8, 8}, meta.Shape)
	assert.Equal(t, []int{1, 8, 8}, meta.Chunks)
	assert.Equal(t, "<u2", meta.DType)
	assert.Equal(t, "C", meta.Order)
	require.NotNil(t, meta.Compressor)
	assert.Equal(t, "zstd", meta.Compressor.ID)
	assert.Equal(t, 1, meta.Compressor.Level)
	require.Len(t, meta.Filters, 1)
	assert.Equal(t, "shuffle", meta.Filters[0].ID)
	assert.Equal(t, 2, meta.Filters[0].ElementSize)
}

func TestReadMissingChunkIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.zarr")
	require.NoError(t, Write(context.Background(), path, testVolume(t, volume.Uint8), DefaultConfig()))
	require.NoError(t, os.Remove(filepath.Join(path, "1.0.0")))

	_, err := Read(context.Background(), path)
	assert.Error(t, err)
}

func TestReadRejectsWrongFormatVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.zarr")
	require.NoError(t, os.MkdirAll(path, 0755))
	meta := []byte(`{"zarr_format": 3, "shape": [1, 2, 2], "chunks": [1, 2, 2], "dtype": "<u1", "order": "C"}`)
	require.NoError(t, os.WriteFile(filepath.Join(path, ".zarray"), meta, 0644))

	_, err := Read(context.Background(), path)
	assert.Error(t, err)
}

func TestReadRejectsMultiSliceChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.zarr")
	require.NoError(t, os.MkdirAll(path, 0755))
	meta := []byte(`{"zarr_format": 2, "shape": [4, 2, 2], "chunks": [2, 2, 2], "dtype": "<u1", "order": "C"}`)
	require.NoError(t, os.WriteFile(filepath.Join(path, ".zarray"), meta, 0644))

	_, err := Read(context.Background(), path)
	assert.Error(t, err)
}

func TestParseMetadataRejectsDimensionMismatch(t *testing.T) {
	_, err := ParseMetadata([]byte(`{"zarr_format": 2, "shape": [4, 2, 2], "chunks": [1, 2], "dtype": "<u1"}`))
	assert.Error(t, err)
}

func TestChunkKey(t *testing.T) {
	assert.Equal(t, "0", chunkKey(nil))
	assert.Equal(t, "7", chunkKey([]int{7}))
	assert.Equal(t, "3.0.0", chunkKey([]int{3, 0, 0}))
}
