// Package convert orchestrates the round trip: a slice series becomes a
// compressed array store plus a metadata sidecar, and the pair becomes an
// equivalent slice series again.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mrsinham/dicomzarr/internal/series"
	"github.com/mrsinham/dicomzarr/internal/sidecar"
	"github.com/mrsinham/dicomzarr/internal/tagmodel"
	"github.com/mrsinham/dicomzarr/internal/volume"
	"github.com/mrsinham/dicomzarr/internal/zarrstore"
)

// Verification tolerances for the geometric transform. Origin and spacing
// compare relatively, direction cosines absolutely.
const (
	OriginSpacingTolerance = 1e-9
	DirectionTolerance     = 1e-6
)

// ShapeMismatchError reports an array store whose shape or sample type
// disagrees with its sidecar. Reconstruction fails before writing any file.
type ShapeMismatchError struct {
	SidecarShape [3]int
	StoreShape   [3]int
	SidecarDType string
	StoreDType   string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("store shape %v dtype %s disagrees with sidecar shape %v dtype %s",
		e.StoreShape, e.StoreDType, e.SidecarShape, e.SidecarDType)
}

// EncodeSeries converts the slice series under inputDir into an array store
// at storePath and its sidecar at sidecarPath.
func EncodeSeries(ctx context.Context, inputDir, storePath, sidecarPath string, cfg zarrstore.Config) error {
	s, err := series.Load(inputDir)
	if err != nil {
		return err
	}

	vol, err := s.Volume()
	if err != nil {
		return err
	}

	shared, deltas := tagmodel.Collect(s.Dicts())

	if err := zarrstore.Write(ctx, storePath, vol, cfg); err != nil {
		return err
	}

	sc := &sidecar.Sidecar{
		FormatVersion: sidecar.FormatVersion,
		Geometry:      vol.Geometry,
		Shape:         vol.Shape,
		DType:         string(vol.DType),
		Shared:        shared,
		Deltas:        deltas,
		Filenames:     s.Filenames(),
	}
	return sidecar.Write(sidecarPath, sc)
}

// NameStyle selects how reconstructed slice files are named.
type NameStyle int

const (
	// NameOriginal reuses the filenames recorded in the sidecar, falling
	// back to positional names when none were recorded.
	NameOriginal NameStyle = iota
	// NamePositional always generates zero-padded positional names.
	NamePositional
)

// SliceName is the name of one output slice: either the recorded original
// name or a positional index, resolved to a concrete filename only at the
// point of emission.
type SliceName struct {
	Original string // recorded original name, empty when none was recorded
	Index    int
}

// Resolve renders the name as a filename. Positional names are zero-padded
// to width digits and carry ext, so their lexicographic order matches slice
// order.
func (n SliceName) Resolve(width int, ext string) string {
	if n.Original != "" {
		return filepath.Base(n.Original)
	}
	return fmt.Sprintf("slice_%0*d%s", width, n.Index, ext)
}

// sliceNames builds the output name for every slice of one reconstruction.
func sliceNames(style NameStyle, originals []string, slices int) []SliceName {
	names := make([]SliceName, slices)
	for i := range names {
		names[i].Index = i
		if style == NameOriginal && i < len(originals) {
			names[i].Original = originals[i]
		}
	}
	return names
}

// positionalWidth is the digit width of positional slice names: at least 4,
// growing with the series length.
func positionalWidth(slices int) int {
	if w := len(strconv.Itoa(slices)); w > 4 {
		return w
	}
	return 4
}

// positionalExt infers the extension for positional names from the recorded
// originals, defaulting to ".dcm".
func positionalExt(originals []string) string {
	if len(originals) > 0 {
		if ext := filepath.Ext(originals[0]); ext != "" {
			return ext
		}
	}
	return ".dcm"
}

// reconstructorState tracks the strictly sequential phases of one
// reconstruction run.
type reconstructorState int

const (
	stateIdle reconstructorState = iota
	stateArrayLoaded
	stateGeometryApplied
	stateSlicesEmitted
	stateDone
)

// Reconstructor rebuilds a slice series from an array store and its sidecar.
// A Reconstructor runs exactly once; it owns the volume it builds and
// discards it after emitting slices.
type Reconstructor struct {
	StorePath   string
	SidecarPath string
	OutputDir   string
	Naming      NameStyle

	state reconstructorState
	sc    *sidecar.Sidecar
	vol   *volume.Volume
}

// Run performs the full reconstruction and returns the written file paths in
// slice order. The store is checked against the sidecar before any file is
// written; an existing OutputDir is replaced.
func (r *Reconstructor) Run(ctx context.Context) ([]string, error) {
	if r.state != stateIdle {
		return nil, fmt.Errorf("reconstructor has already run")
	}
	if err := r.loadArray(ctx); err != nil {
		return nil, err
	}
	if err := r.applyGeometry(); err != nil {
		return nil, err
	}
	paths, err := r.emitSlices()
	if err != nil {
		return nil, err
	}
	r.vol = nil
	r.state = stateDone
	return paths, nil
}

func (r *Reconstructor) loadArray(ctx context.Context) error {
	sc, err := sidecar.Read(r.SidecarPath)
	if err != nil {
		return err
	}
	vol, err := zarrstore.Read(ctx, r.StorePath)
	if err != nil {
		return err
	}
	if vol.Shape != sc.Shape || string(vol.DType) != sc.DType {
		return &ShapeMismatchError{
			SidecarShape: sc.Shape,
			StoreShape:   vol.Shape,
			SidecarDType: sc.DType,
			StoreDType:   string(vol.DType),
		}
	}
	r.sc, r.vol = sc, vol
	r.state = stateArrayLoaded
	return nil
}

func (r *Reconstructor) applyGeometry() error {
	if err := r.sc.Geometry.Validate(); err != nil {
		return err
	}
	r.vol.Geometry = r.sc.Geometry
	r.state = stateGeometryApplied
	return nil
}

func (r *Reconstructor) emitSlices() ([]string, error) {
	dicts := tagmodel.Restore(r.sc.Shared, r.sc.Deltas, r.vol.Slices())
	names := sliceNames(r.Naming, r.sc.Filenames, r.vol.Slices())
	width := positionalWidth(r.vol.Slices())
	ext := positionalExt(r.sc.Filenames)

	if err := os.RemoveAll(r.OutputDir); err != nil {
		return nil, fmt.Errorf("clear output directory: %w", err)
	}
	if err := os.MkdirAll(r.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	paths := make([]string, 0, r.vol.Slices())
	for i := 0; i < r.vol.Slices(); i++ {
		plane, err := r.vol.SliceBytes(i)
		if err != nil {
			return nil, err
		}
		params := series.WriteParams{
			Rows:     r.vol.Rows(),
			Cols:     r.vol.Cols(),
			DType:    r.vol.DType,
			Pixels:   plane,
			Tags:     dicts[i],
			Position: r.vol.Geometry.SlicePosition(i),
			HasPos:   true,
			Index:    i,
		}
		path := filepath.Join(r.OutputDir, names[i].Resolve(width, ext))
		if err := series.WriteSlice(path, params); err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	r.state = stateSlicesEmitted
	return paths, nil
}

// Reconstruct rebuilds the slice series described by the store at storePath
// and the sidecar at sidecarPath into outputDir, returning the written file
// paths in slice order.
func Reconstruct(ctx context.Context, storePath, sidecarPath, outputDir string, style NameStyle) ([]string, error) {
	r := &Reconstructor{
		StorePath:   storePath,
		SidecarPath: sidecarPath,
		OutputDir:   outputDir,
		Naming:      style,
	}
	return r.Run(ctx)
}

// Options configures one round trip.
type Options struct {
	Store  zarrstore.Config
	Naming NameStyle
	// Verify compares the reconstruction against the source after the round
	// trip.
	Verify bool
	// PreviewPath, when non-empty, receives a PNG rendering of the volume's
	// middle slice.
	PreviewPath string
}

// RunSeries performs the full round trip for one series: encode, reconstruct
// and, when opts.Verify is set, compare the reconstruction against the
// source.
func RunSeries(ctx context.Context, inputDir, storePath, sidecarPath, outputDir string, opts Options) error {
	if err := EncodeSeries(ctx, inputDir, storePath, sidecarPath, opts.Store); err != nil {
		return err
	}
	if opts.PreviewPath != "" {
		vol, err := zarrstore.Read(ctx, storePath)
		if err != nil {
			return err
		}
		if err := WritePreview(vol, opts.PreviewPath); err != nil {
			return err
		}
	}
	if _, err := Reconstruct(ctx, storePath, sidecarPath, outputDir, opts.Naming); err != nil {
		return err
	}
	if opts.Verify {
		return VerifySeries(inputDir, outputDir)
	}
	return nil
}
