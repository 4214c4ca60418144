// Package sidecar serializes the series metadata record that travels next to
// the array store: geometry, shared attributes, per-slice attribute deltas,
// original filenames and the stored array shape and dtype.
//
// The JSON field names and numeric precision are a compatibility contract;
// integers round-trip exactly and floats keep their full double precision
// (encoding/json emits the shortest representation that round-trips).
// Encoding the same input twice produces byte-identical records because JSON
// object keys marshal in sorted order.
package sidecar

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mrsinham/dicomzarr/internal/geometry"
	"github.com/mrsinham/dicomzarr/internal/tagmodel"
	"github.com/mrsinham/dicomzarr/internal/volume"
)

// FormatVersion is bumped only when the record layout changes incompatibly.
const FormatVersion = 1

// FormatError reports a malformed, truncated or inconsistent sidecar record.
// Decoding is all-or-nothing: a FormatError means nothing of the record was
// applied.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("sidecar %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Sidecar is the per-series metadata record. It is created once at encode
// time and treated as an immutable value until decode.
type Sidecar struct {
	FormatVersion int               `json:"format_version"`
	Geometry      geometry.Geometry `json:"geometry"`
	Shape         [3]int            `json:"shape"`
	DType         string            `json:"dtype"`
	Shared        tagmodel.Dict     `json:"shared_tags"`
	Deltas        tagmodel.Deltas   `json:"slice_tags,omitempty"`
	// Filenames holds the original base name of every slice file, in slice
	// order. Empty when the source names were not recorded; reconstruction
	// then falls back to positional names.
	Filenames []string `json:"filenames,omitempty"`
}

// Validate checks the internal consistency of a record.
func (s *Sidecar) Validate() error {
	if s.FormatVersion != FormatVersion {
		return fmt.Errorf("unsupported format_version %d, want %d", s.FormatVersion, FormatVersion)
	}
	for i, dim := range s.Shape {
		if dim <= 0 {
			return fmt.Errorf("shape dimension %d is %d, must be > 0", i, dim)
		}
	}
	if _, err := volume.ParseDType(s.DType); err != nil {
		return err
	}
	if len(s.Deltas) != 0 && len(s.Deltas) != s.Shape[0] {
		return fmt.Errorf("slice_tags has %d entries, shape records %d slices", len(s.Deltas), s.Shape[0])
	}
	if len(s.Filenames) != 0 && len(s.Filenames) != s.Shape[0] {
		return fmt.Errorf("filenames has %d entries, shape records %d slices", len(s.Filenames), s.Shape[0])
	}
	return s.Geometry.Validate()
}

// Write serializes the record to path. The record is validated first so a
// broken encode never leaves a well-formed but inconsistent sidecar behind.
func Write(path string, s *Sidecar) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("refusing to write invalid sidecar: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// Read deserializes and validates the record at path. Malformed or truncated
// input yields a *FormatError and no partial record.
func Read(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	if err := s.Validate(); err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	return &s, nil
}
