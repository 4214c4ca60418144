// Package zarrstore persists volumes as Zarr v2 directory stores, chunked
// one chunk per slice so single planes stay independently addressable.
package zarrstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gocloud.dev/blob/fileblob"

	"github.com/mrsinham/dicomzarr/internal/compress"
	"github.com/mrsinham/dicomzarr/internal/volume"
)

// Shuffle filter modes accepted by Config.Shuffle.
const (
	ShuffleNone = "none"
	ShuffleByte = "byte"
)

// Config selects how chunk bytes are encoded. It is passed through to the
// .zarray record unchanged; the store does not interpret levels beyond
// handing them to the codec.
type Config struct {
	Codec   string
	Level   int
	Shuffle string
}

// DefaultConfig mirrors the settings the converter has always used: zstd at
// level 1 with the byte shuffle filter.
func DefaultConfig() Config {
	return Config{Codec: compress.CodecZstd, Level: 1, Shuffle: ShuffleByte}
}

func (c Config) validate() error {
	switch c.Shuffle {
	case "", ShuffleNone, ShuffleByte:
	default:
		return fmt.Errorf("unsupported shuffle mode %q", c.Shuffle)
	}
	return nil
}

// Write persists the volume as a Zarr v2 store rooted at path. An existing
// store at path is replaced wholesale, matching how a failed previous run is
// cleaned up before retrying.
func Write(ctx context.Context, path string, vol *volume.Volume, cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	codec, err := compress.New(cfg.Codec, cfg.Level)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("clear existing store: %w", err)
	}

	bucket, err := fileblob.OpenBucket(path, &fileblob.Options{CreateDir: true})
	if err != nil {
		return fmt.Errorf("open store bucket: %w", err)
	}
	defer bucket.Close()

	itemSize := vol.DType.ItemSize()
	meta := Metadata{
		ZarrFormat: 2,
		Shape:      []int{vol.Shape[0], vol.Shape[1], vol.Shape[2]},
		Chunks:     []int{1, vol.Shape[1], vol.Shape[2]},
		DType:      string(vol.DType),
		FillValue:  0,
		Order:      "C",
	}
	if cfg.Codec != compress.CodecNone && cfg.Codec != "" {
		meta.Compressor = &CompressorConfig{ID: cfg.Codec, Level: cfg.Level}
	}
	if cfg.Shuffle == ShuffleByte {
		meta.Filters = []FilterConfig{{ID: "shuffle", ElementSize: itemSize}}
	}

	metaBytes, err := json.MarshalIndent(&meta, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal .zarray: %w", err)
	}
	if err := bucket.WriteAll(ctx, ".zarray", metaBytes, nil); err != nil {
		return fmt.Errorf("write .zarray: %w", err)
	}

	for i := 0; i < vol.Slices(); i++ {
		plane, err := vol.SliceBytes(i)
		if err != nil {
			return err
		}
		if cfg.Shuffle == ShuffleByte {
			plane = compress.Shuffle(plane, itemSize)
		}
		encoded, err := codec.Compress(plane)
		if err != nil {
			return fmt.Errorf("compress chunk %d: %w", i, err)
		}
		key := chunkKey([]int{i, 0, 0})
		if err := bucket.WriteAll(ctx, key, encoded, nil); err != nil {
			return fmt.Errorf("write chunk %s: %w", key, err)
		}
	}
	return nil
}

// Read loads a store written by Write back into a volume. The returned
// volume carries no geometry; the caller attaches it from the sidecar.
//
// Unlike a general Zarr reader, a missing chunk is an error here rather than
// fill-value data: the writer emits every chunk, so absence means the store
// is incomplete.
func Read(ctx context.Context, path string) (*volume.Volume, error) {
	bucket, err := fileblob.OpenBucket(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open store bucket: %w", err)
	}
	defer bucket.Close()

	metaBytes, err := bucket.ReadAll(ctx, ".zarray")
	if err != nil {
		return nil, fmt.Errorf("read .zarray: %w", err)
	}
	meta, err := ParseMetadata(metaBytes)
	if err != nil {
		return nil, err
	}
	if len(meta.Shape) != 3 {
		return nil, fmt.Errorf("store is %d-dimensional, expected 3", len(meta.Shape))
	}
	if meta.Chunks[0] != 1 || meta.Chunks[1] != meta.Shape[1] || meta.Chunks[2] != meta.Shape[2] {
		return nil, fmt.Errorf("unsupported chunk layout %v for shape %v, expected one chunk per slice",
			meta.Chunks, meta.Shape)
	}

	dtype, err := volume.ParseDType(meta.DType)
	if err != nil {
		return nil, err
	}

	codecName := compress.CodecNone
	codecLevel := 0
	if meta.Compressor != nil {
		codecName = meta.Compressor.ID
		codecLevel = meta.Compressor.Level
	}
	codec, err := compress.New(codecName, codecLevel)
	if err != nil {
		return nil, err
	}

	shuffleSize := 0
	for _, f := range meta.Filters {
		if f.ID != "shuffle" {
			return nil, fmt.Errorf("unsupported filter %q", f.ID)
		}
		shuffleSize = f.ElementSize
	}

	vol, err := volume.New([3]int{meta.Shape[0], meta.Shape[1], meta.Shape[2]}, dtype)
	if err != nil {
		return nil, err
	}

	for i := 0; i < vol.Slices(); i++ {
		key := chunkKey([]int{i, 0, 0})
		encoded, err := bucket.ReadAll(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read chunk %s: %w", key, err)
		}
		plane, err := codec.Decompress(encoded)
		if err != nil {
			return nil, fmt.Errorf("decompress chunk %s: %w", key, err)
		}
		if shuffleSize > 1 {
			plane = compress.Unshuffle(plane, shuffleSize)
		}
		if err := vol.SetSliceBytes(i, plane); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", key, err)
		}
	}
	return vol, nil
}
