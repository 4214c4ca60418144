package convert

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/mrsinham/dicomzarr/internal/volume"
)

// previewMaxDim bounds the longer preview edge.
const previewMaxDim = 512

// WritePreview renders the middle slice of the volume as an 8-bit grayscale
// PNG at path, downscaled so the longer edge stays within 512 pixels. 16-bit
// samples are windowed to the slice's own min..max range.
func WritePreview(vol *volume.Volume, path string) error {
	mid := vol.Slices() / 2
	plane, err := vol.SliceBytes(mid)
	if err != nil {
		return err
	}

	src := image.NewGray(image.Rect(0, 0, vol.Cols(), vol.Rows()))
	switch vol.DType {
	case volume.Uint8:
		copy(src.Pix, plane)
	case volume.Uint16:
		n := vol.Rows() * vol.Cols()
		lo, hi := uint16(0xffff), uint16(0)
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint16(plane[2*i:])
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		span := int(hi) - int(lo)
		if span == 0 {
			span = 1
		}
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint16(plane[2*i:])
			src.Pix[i] = uint8((int(v) - int(lo)) * 255 / span)
		}
	default:
		return fmt.Errorf("unsupported sample type %s", vol.DType)
	}

	dst := src
	if w, h := previewSize(vol.Cols(), vol.Rows()); w != vol.Cols() || h != vol.Rows() {
		dst = image.NewGray(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := png.Encode(f, dst); err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	return nil
}

func previewSize(w, h int) (int, int) {
	longer := w
	if h > longer {
		longer = h
	}
	if longer <= previewMaxDim {
		return w, h
	}
	return w * previewMaxDim / longer, h * previewMaxDim / longer
}
