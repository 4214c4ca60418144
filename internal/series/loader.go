// Package series loads directories of DICOM slice files into ordered
// series and writes single slices back out. It is the boundary to the
// slice-format codec (suyashkumar/dicom); everything beyond this package
// works on sample buffers and attribute dictionaries.
package series

import (
	"encoding/binary"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/dicomzarr/internal/geometry"
	"github.com/mrsinham/dicomzarr/internal/tagmodel"
	"github.com/mrsinham/dicomzarr/internal/volume"
)

// LoadError reports an unusable input series: empty directories, unreadable
// files, or slices that disagree on shape or sample type. It is fatal for
// the series but never for the batch.
type LoadError struct {
	Dir string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load series %s: %v", e.Dir, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Slice is one decoded slice file: its samples, its attribute dictionary
// and the fields the loader needs for ordering.
type Slice struct {
	Filename string // base name of the source file
	Pixels   []byte // little-endian samples, row-major
	Tags     tagmodel.Dict

	position    [3]float64
	hasPosition bool
	instance    int
	hasInstance bool
}

// Series is an ordered slice series with uniform shape and sample type.
type Series struct {
	Dir    string
	Rows   int
	Cols   int
	DType  volume.DType
	Slices []*Slice
}

// Load reads every slice file under dir and assembles the ordered series.
// Slices are ordered by their position along the volume normal when every
// slice carries a position, falling back to instance number, then to the
// lexicographic file order.
func Load(dir string) (*Series, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{Dir: dir, Err: err}
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == "DICOMDIR" || name[0] == '.' {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, &LoadError{Dir: dir, Err: fmt.Errorf("directory contains no slice files")}
	}

	s := &Series{Dir: dir}
	for _, name := range names {
		slice, rows, cols, dtype, err := loadSlice(filepath.Join(dir, name))
		if err != nil {
			return nil, &LoadError{Dir: dir, Err: fmt.Errorf("%s: %w", name, err)}
		}
		if len(s.Slices) == 0 {
			s.Rows, s.Cols, s.DType = rows, cols, dtype
		} else if rows != s.Rows || cols != s.Cols {
			return nil, &LoadError{Dir: dir, Err: fmt.Errorf(
				"%s is %dx%d, series is %dx%d", name, rows, cols, s.Rows, s.Cols)}
		} else if dtype != s.DType {
			return nil, &LoadError{Dir: dir, Err: fmt.Errorf(
				"%s has sample type %s, series has %s", name, dtype, s.DType)}
		}
		s.Slices = append(s.Slices, slice)
	}

	s.sortSlices()
	return s, nil
}

func loadSlice(path string) (*Slice, int, int, volume.DType, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, 0, 0, "", fmt.Errorf("parse: %w", err)
	}

	slice := &Slice{
		Filename: filepath.Base(path),
		Tags:     tagmodel.Dict{},
	}
	for _, elem := range ds.Elements {
		if key, attr, ok := captureElement(elem); ok {
			slice.Tags[key] = attr
		}
	}

	rows, ok := intValue(slice.Tags, tag.Rows)
	if !ok {
		return nil, 0, 0, "", fmt.Errorf("missing Rows tag")
	}
	cols, ok := intValue(slice.Tags, tag.Columns)
	if !ok {
		return nil, 0, 0, "", fmt.Errorf("missing Columns tag")
	}

	pixelElem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, 0, 0, "", fmt.Errorf("missing PixelData: %w", err)
	}
	info, ok := pixelElem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, 0, 0, "", fmt.Errorf("unexpected PixelData payload %T", pixelElem.Value.GetValue())
	}
	if info.IsEncapsulated {
		return nil, 0, 0, "", fmt.Errorf("encapsulated (compressed) pixel data is unsupported")
	}
	if len(info.Frames) != 1 {
		return nil, 0, 0, "", fmt.Errorf("expected 1 frame per slice file, got %d", len(info.Frames))
	}

	pixels, dtype, err := frameBytes(info.Frames[0], rows, cols)
	if err != nil {
		return nil, 0, 0, "", err
	}
	slice.Pixels = pixels

	if pos, ok := floatValues(slice.Tags, tag.ImagePositionPatient); ok && len(pos) == 3 {
		slice.position = [3]float64{pos[0], pos[1], pos[2]}
		slice.hasPosition = true
	}
	if n, ok := intValue(slice.Tags, tag.InstanceNumber); ok {
		slice.instance = n
		slice.hasInstance = true
	}

	return slice, rows, cols, dtype, nil
}

// frameBytes flattens a native frame into little-endian sample bytes.
func frameBytes(fr *frame.Frame, rows, cols int) ([]byte, volume.DType, error) {
	n := rows * cols
	switch nf := fr.NativeData.(type) {
	case *frame.NativeFrame[uint8]:
		if len(nf.RawData) != n {
			return nil, "", fmt.Errorf("frame has %d samples, want %d", len(nf.RawData), n)
		}
		out := make([]byte, n)
		copy(out, nf.RawData)
		return out, volume.Uint8, nil
	case *frame.NativeFrame[uint16]:
		if len(nf.RawData) != n {
			return nil, "", fmt.Errorf("frame has %d samples, want %d", len(nf.RawData), n)
		}
		out := make([]byte, 2*n)
		for i, v := range nf.RawData {
			binary.LittleEndian.PutUint16(out[2*i:], v)
		}
		return out, volume.Uint16, nil
	}

	// Parser versions differ on the concrete frame instantiation; the image
	// accessor is stable across them.
	img, err := fr.GetImage()
	if err != nil {
		return nil, "", fmt.Errorf("decode frame: %w", err)
	}
	switch im := img.(type) {
	case *image.Gray:
		if len(im.Pix) != n {
			return nil, "", fmt.Errorf("frame image has %d samples, want %d", len(im.Pix), n)
		}
		out := make([]byte, n)
		copy(out, im.Pix)
		return out, volume.Uint8, nil
	case *image.Gray16:
		if len(im.Pix) != 2*n {
			return nil, "", fmt.Errorf("frame image has %d bytes, want %d", len(im.Pix), 2*n)
		}
		out := make([]byte, 2*n)
		for i := 0; i < n; i++ {
			// Gray16 stores big-endian samples.
			v := uint16(im.Pix[2*i])<<8 | uint16(im.Pix[2*i+1])
			binary.LittleEndian.PutUint16(out[2*i:], v)
		}
		return out, volume.Uint16, nil
	default:
		return nil, "", fmt.Errorf("unsupported frame image %T", img)
	}
}

// sortSlices orders slices by position along the volume normal, falling
// back to instance number, then keeps the lexicographic file order.
// The filename breaks ties so the order is always total.
func (s *Series) sortSlices() {
	allPositioned := true
	allInstanced := true
	for _, sl := range s.Slices {
		if !sl.hasPosition {
			allPositioned = false
		}
		if !sl.hasInstance {
			allInstanced = false
		}
	}

	switch {
	case allPositioned && len(s.Slices) > 1:
		normal := s.normal()
		sort.SliceStable(s.Slices, func(i, j int) bool {
			pi := project(s.Slices[i].position, normal)
			pj := project(s.Slices[j].position, normal)
			if pi != pj {
				return pi < pj
			}
			return s.Slices[i].Filename < s.Slices[j].Filename
		})
	case allInstanced:
		sort.SliceStable(s.Slices, func(i, j int) bool {
			if s.Slices[i].instance != s.Slices[j].instance {
				return s.Slices[i].instance < s.Slices[j].instance
			}
			return s.Slices[i].Filename < s.Slices[j].Filename
		})
	}
}

// normal derives the slice normal from the first slice's orientation, or
// the z axis when no orientation is recorded.
func (s *Series) normal() [3]float64 {
	if iop, ok := floatValues(s.Slices[0].Tags, tag.ImageOrientationPatient); ok && len(iop) == 6 {
		row := [3]float64{iop[0], iop[1], iop[2]}
		col := [3]float64{iop[3], iop[4], iop[5]}
		return [3]float64{
			row[1]*col[2] - row[2]*col[1],
			row[2]*col[0] - row[0]*col[2],
			row[0]*col[1] - row[1]*col[0],
		}
	}
	return [3]float64{0, 0, 1}
}

func project(p, n [3]float64) float64 {
	return p[0]*n[0] + p[1]*n[1] + p[2]*n[2]
}

// Dicts returns the per-slice attribute dictionaries in slice order.
func (s *Series) Dicts() []tagmodel.Dict {
	out := make([]tagmodel.Dict, len(s.Slices))
	for i, sl := range s.Slices {
		out[i] = sl.Tags
	}
	return out
}

// Filenames returns the original base names in slice order.
func (s *Series) Filenames() []string {
	out := make([]string, len(s.Slices))
	for i, sl := range s.Slices {
		out[i] = sl.Filename
	}
	return out
}

// Geometry extracts the volumetric transform from the series tags.
func (s *Series) Geometry() (geometry.Geometry, error) {
	p := geometry.SeriesParams{Slices: len(s.Slices)}

	first := s.Slices[0].Tags
	if iop, ok := floatValues(first, tag.ImageOrientationPatient); ok && len(iop) == 6 {
		copy(p.Orientation[:], iop)
		p.HasOrientation = true
	}
	if ps, ok := floatValues(first, tag.PixelSpacing); ok && len(ps) == 2 {
		p.PixelSpacing = [2]float64{ps[0], ps[1]}
		p.HasPixelSpacing = true
	}
	if v, ok := floatValues(first, tag.SpacingBetweenSlices); ok && len(v) == 1 {
		p.SpacingBetweenSlices = v[0]
	}
	if v, ok := floatValues(first, tag.SliceThickness); ok && len(v) == 1 {
		p.SliceThickness = v[0]
	}

	allPositioned := true
	for _, sl := range s.Slices {
		if !sl.hasPosition {
			allPositioned = false
			break
		}
	}
	if allPositioned {
		p.Positions = make([][3]float64, len(s.Slices))
		for i, sl := range s.Slices {
			p.Positions[i] = sl.position
		}
	}

	return geometry.Extract(p)
}

// Volume assembles the series into a 3-D sample array with its transform
// attached.
func (s *Series) Volume() (*volume.Volume, error) {
	vol, err := volume.New([3]int{len(s.Slices), s.Rows, s.Cols}, s.DType)
	if err != nil {
		return nil, err
	}
	for i, sl := range s.Slices {
		if err := vol.SetSliceBytes(i, sl.Pixels); err != nil {
			return nil, err
		}
	}
	g, err := s.Geometry()
	if err != nil {
		return nil, err
	}
	vol.Geometry = g
	return vol, nil
}
