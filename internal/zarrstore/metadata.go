package zarrstore

import (
	"encoding/json"
	"fmt"
)

// CompressorConfig is the numcodecs compressor entry of the .zarray record.
type CompressorConfig struct {
	ID    string `json:"id"`
	Level int    `json:"level,omitempty"`
}

// FilterConfig is one numcodecs filter entry. Only the byte shuffle filter
// is written and recognized.
type FilterConfig struct {
	ID          string `json:"id"`
	ElementSize int    `json:"elementsize,omitempty"`
}

// Metadata is the Zarr v2 .zarray record.
type Metadata struct {
	ZarrFormat int               `json:"zarr_format"`
	Shape      []int             `json:"shape"`
	Chunks     []int             `json:"chunks"`
	DType      string            `json:"dtype"`
	Compressor *CompressorConfig `json:"compressor"`
	Filters    []FilterConfig    `json:"filters"`
	FillValue  interface{}       `json:"fill_value"`
	Order      string            `json:"order"`
}

// ParseMetadata decodes and sanity-checks a .zarray record.
func ParseMetadata(data []byte) (*Metadata, error) {
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode .zarray: %w", err)
	}
	if meta.ZarrFormat != 2 {
		return nil, fmt.Errorf("unsupported zarr_format %d, expected 2", meta.ZarrFormat)
	}
	if len(meta.Shape) != len(meta.Chunks) {
		return nil, fmt.Errorf(".zarray shape and chunks disagree on dimensionality: %d vs %d",
			len(meta.Shape), len(meta.Chunks))
	}
	if meta.Order != "" && meta.Order != "C" {
		return nil, fmt.Errorf("unsupported chunk order %q, expected C", meta.Order)
	}
	return &meta, nil
}
