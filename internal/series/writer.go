package series

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"os"
	"sort"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/dicomzarr/internal/tagmodel"
	"github.com/mrsinham/dicomzarr/internal/volume"
)

// Defaults injected into rebuilt slices when the attribute dictionary does
// not carry them. Explicit VR little endian keeps the output parseable by
// any reader; secondary capture is the class for samples without richer
// provenance.
const (
	defaultTransferSyntax = "1.2.840.10008.1.2.1"
	defaultSOPClass       = "1.2.840.10008.5.1.4.1.1.7"
)

// WriteParams describes one reconstructed slice: its samples, its attribute
// dictionary and the pixel module values the dataset must agree with.
type WriteParams struct {
	Rows     int
	Cols     int
	DType    volume.DType
	Pixels   []byte // little-endian samples, row-major
	Tags     tagmodel.Dict
	Position [3]float64 // patient position of this slice
	HasPos   bool
	Index    int // slice index, seeds the generated instance UID
}

// WriteSlice rebuilds a single slice file at path from the dictionary and
// sample plane. Dictionary attributes are written as-is; pixel module tags
// and missing identity tags are synthesized so the file stands alone.
func WriteSlice(path string, p WriteParams) error {
	if want := p.Rows * p.Cols * p.DType.ItemSize(); len(p.Pixels) != want {
		return fmt.Errorf("slice plane is %d bytes, want %d", len(p.Pixels), want)
	}

	elements, err := datasetElements(p)
	if err != nil {
		return err
	}

	pixelInfo, err := pixelDataInfo(p)
	if err != nil {
		return err
	}
	pixelElem, err := dicom.NewElement(tag.PixelData, pixelInfo)
	if err != nil {
		return fmt.Errorf("build pixel data element: %w", err)
	}
	elements = append(elements, pixelElem)

	sort.SliceStable(elements, func(i, j int) bool {
		if elements[i].Tag.Group != elements[j].Tag.Group {
			return elements[i].Tag.Group < elements[j].Tag.Group
		}
		return elements[i].Tag.Element < elements[j].Tag.Element
	})

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := dicom.Write(f, dicom.Dataset{Elements: elements}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// datasetElements rebuilds the attribute elements and fills in whatever the
// dictionary lacks for a standalone file.
func datasetElements(p WriteParams) ([]*dicom.Element, error) {
	elements := make([]*dicom.Element, 0, len(p.Tags)+16)
	for _, key := range p.Tags.SortedKeys() {
		elem, err := restoreElement(key, p.Tags[key])
		if err != nil {
			return nil, err
		}
		elements = append(elements, elem)
	}

	has := func(t tag.Tag) bool {
		_, ok := p.Tags[keyFor(t)]
		return ok
	}
	add := func(t tag.Tag, value interface{}) error {
		elem, err := dicom.NewElement(t, value)
		if err != nil {
			return fmt.Errorf("build element %s: %w", keyFor(t), err)
		}
		elements = append(elements, elem)
		return nil
	}

	type injected struct {
		t     tag.Tag
		value interface{}
	}
	defaults := []injected{
		{tag.TransferSyntaxUID, []string{defaultTransferSyntax}},
		{tag.SOPClassUID, []string{defaultSOPClass}},
		{tag.SOPInstanceUID, []string{deterministicUID(p.Tags, p.Index)}},
		{tag.Rows, []int{p.Rows}},
		{tag.Columns, []int{p.Cols}},
		{tag.BitsAllocated, []int{p.DType.BitsAllocated()}},
		{tag.BitsStored, []int{p.DType.BitsAllocated()}},
		{tag.HighBit, []int{p.DType.BitsAllocated() - 1}},
		{tag.PixelRepresentation, []int{0}},
		{tag.SamplesPerPixel, []int{1}},
		{tag.PhotometricInterpretation, []string{"MONOCHROME2"}},
	}
	for _, d := range defaults {
		if has(d.t) {
			continue
		}
		if err := add(d.t, d.value); err != nil {
			return nil, err
		}
	}

	if p.HasPos && !has(tag.ImagePositionPatient) {
		err := add(tag.ImagePositionPatient, []string{
			formatDecimal(p.Position[0]),
			formatDecimal(p.Position[1]),
			formatDecimal(p.Position[2]),
		})
		if err != nil {
			return nil, err
		}
	}

	return elements, nil
}

func pixelDataInfo(p WriteParams) (dicom.PixelDataInfo, error) {
	n := p.Rows * p.Cols
	var nativeData frame.INativeFrame
	switch p.DType {
	case volume.Uint8:
		nf := frame.NewNativeFrame[uint8](8, p.Rows, p.Cols, n, 1)
		copy(nf.RawData, p.Pixels)
		nativeData = nf
	case volume.Uint16:
		nf := frame.NewNativeFrame[uint16](16, p.Rows, p.Cols, n, 1)
		for i := range nf.RawData {
			nf.RawData[i] = binary.LittleEndian.Uint16(p.Pixels[2*i:])
		}
		nativeData = nf
	default:
		return dicom.PixelDataInfo{}, fmt.Errorf("unsupported sample type %s", p.DType)
	}

	return dicom.PixelDataInfo{
		Frames: []*frame.Frame{
			{
				Encapsulated: false,
				NativeData:   nativeData,
			},
		},
	}, nil
}

// deterministicUID derives a stable instance UID from the slice dictionary
// and index, so re-running a reconstruction reproduces identical files.
func deterministicUID(d tagmodel.Dict, index int) string {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "slice_%d", index)
	for _, key := range d.SortedKeys() {
		attr := d[key]
		_, _ = fmt.Fprintf(h, "|%s=%s", key, attr.Values)
	}
	return fmt.Sprintf("2.25.%d", h.Sum64())
}

// formatDecimal renders a coordinate as a DICOM decimal string within the
// 16-byte DS limit.
func formatDecimal(f float64) string {
	s := fmt.Sprintf("%.10g", f)
	if len(s) > 16 {
		s = fmt.Sprintf("%.8g", f)
	}
	return s
}
