// Package volume defines the in-memory 3-D sample array shared by the
// encode and decode paths: a flat little-endian buffer in C order with the
// slice axis outermost, plus its geometric transform.
package volume

import (
	"fmt"
	"strconv"

	"github.com/mrsinham/dicomzarr/internal/geometry"
)

// DType identifies the sample type using the NumPy type-string convention
// the array store records ("<u2" is little-endian uint16).
type DType string

const (
	Uint8  DType = "<u1"
	Uint16 DType = "<u2"
)

// ItemSize returns the sample size in bytes, or 0 for an unknown dtype.
func (d DType) ItemSize() int {
	switch d {
	case Uint8:
		return 1
	case Uint16:
		return 2
	}
	return 0
}

// BitsAllocated returns the DICOM BitsAllocated value matching the dtype.
func (d DType) BitsAllocated() int {
	return d.ItemSize() * 8
}

// ParseDType validates a NumPy-style type string against the supported
// sample types. Big-endian and non-integer kinds are rejected.
func ParseDType(s string) (DType, error) {
	if len(s) < 3 {
		return "", fmt.Errorf("invalid dtype %q", s)
	}
	if s[0] == '>' {
		return "", fmt.Errorf("big-endian dtype %q is unsupported", s)
	}
	kind := s[1]
	size, err := strconv.Atoi(s[2:])
	if err != nil {
		return "", fmt.Errorf("invalid size in dtype %q", s)
	}
	if kind != 'u' {
		return "", fmt.Errorf("unsupported dtype kind %q in %q", string(kind), s)
	}
	switch size {
	case 1:
		return Uint8, nil
	case 2:
		return Uint16, nil
	}
	return "", fmt.Errorf("unsupported dtype %q", s)
}

// Volume is a 3-D sample array with its transform. Shape is
// (slices, rows, cols); Data holds the samples little-endian in C order.
type Volume struct {
	Geometry geometry.Geometry
	Shape    [3]int
	DType    DType
	Data     []byte
}

// New allocates a zeroed volume of the given shape and dtype.
func New(shape [3]int, dtype DType) (*Volume, error) {
	itemSize := dtype.ItemSize()
	if itemSize == 0 {
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}
	for i, dim := range shape {
		if dim <= 0 {
			return nil, fmt.Errorf("shape dimension %d is %d, must be > 0", i, dim)
		}
	}
	return &Volume{
		Shape: shape,
		DType: dtype,
		Data:  make([]byte, shape[0]*shape[1]*shape[2]*itemSize),
	}, nil
}

// Slices returns the slice-axis extent.
func (v *Volume) Slices() int { return v.Shape[0] }

// Rows returns the in-plane row count.
func (v *Volume) Rows() int { return v.Shape[1] }

// Cols returns the in-plane column count.
func (v *Volume) Cols() int { return v.Shape[2] }

// SliceSize returns the byte length of one 2-D plane.
func (v *Volume) SliceSize() int {
	return v.Shape[1] * v.Shape[2] * v.DType.ItemSize()
}

// SliceBytes returns the raw samples of plane i as a sub-slice of Data.
func (v *Volume) SliceBytes(i int) ([]byte, error) {
	if i < 0 || i >= v.Shape[0] {
		return nil, fmt.Errorf("slice index %d out of range [0,%d)", i, v.Shape[0])
	}
	size := v.SliceSize()
	return v.Data[i*size : (i+1)*size], nil
}

// SetSliceBytes copies samples into plane i. The buffer length must equal
// SliceSize exactly.
func (v *Volume) SetSliceBytes(i int, data []byte) error {
	if i < 0 || i >= v.Shape[0] {
		return fmt.Errorf("slice index %d out of range [0,%d)", i, v.Shape[0])
	}
	size := v.SliceSize()
	if len(data) != size {
		return fmt.Errorf("slice %d has %d bytes, want %d", i, len(data), size)
	}
	copy(v.Data[i*size:(i+1)*size], data)
	return nil
}
