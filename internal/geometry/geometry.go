// Package geometry models the volumetric transform of a slice series:
// origin, voxel spacing and the direction-cosine matrix, in the LPS
// patient coordinate system.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// OrthonormalTolerance is the maximum deviation allowed when checking that
// the direction matrix is orthonormal (relative, per matrix entry).
const OrthonormalTolerance = 1e-6

// Error reports an invalid volumetric transform. Extraction never repairs a
// broken transform silently; it fails with an Error so the round-trip
// verification stays meaningful.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "geometry: " + e.Reason
}

// Geometry is the volumetric transform attached to a volume.
//
// Direction is stored row-major; column j holds the unit direction cosines
// of volume axis j (x, y, slice normal) expressed in patient coordinates.
type Geometry struct {
	Origin    [3]float64    `json:"origin"`
	Spacing   [3]float64    `json:"spacing"`
	Direction [3][3]float64 `json:"direction"`
}

// SeriesParams carries the geometric tags of an ordered slice series,
// already parsed to numbers by the series loader.
type SeriesParams struct {
	// Positions holds the patient-space position of each slice, in slice
	// order. May be empty when the source carries no position tags.
	Positions [][3]float64
	// Orientation holds the six direction cosines of the in-plane axes
	// (row direction then column direction).
	Orientation [6]float64
	// HasOrientation is false when the source carries no orientation tag;
	// the identity orientation is assumed in that case.
	HasOrientation bool
	// PixelSpacing is the in-plane spacing: row spacing then column spacing.
	PixelSpacing [2]float64
	// HasPixelSpacing is false when the source carries no pixel spacing tag;
	// unit spacing is assumed in that case. A tag that is present with a
	// non-positive component is an Error, never silently corrected.
	HasPixelSpacing bool
	// SpacingBetweenSlices and SliceThickness are fallbacks for the slice
	// axis spacing when fewer than two positions are known.
	SpacingBetweenSlices float64
	SliceThickness       float64
	// Slices is the series length.
	Slices int
}

// Extract builds the volume Geometry from series parameters.
//
// The slice-axis direction is derived from the first and last slice
// positions when available, otherwise from the cross product of the in-plane
// axes. Slice spacing prefers measured inter-slice distance, then
// SpacingBetweenSlices, then SliceThickness, then 1.0.
func Extract(p SeriesParams) (Geometry, error) {
	if p.Slices <= 0 {
		return Geometry{}, &Error{Reason: "series has no slices"}
	}

	var g Geometry

	row := [3]float64{1, 0, 0}
	col := [3]float64{0, 1, 0}
	if p.HasOrientation {
		row = [3]float64{p.Orientation[0], p.Orientation[1], p.Orientation[2]}
		col = [3]float64{p.Orientation[3], p.Orientation[4], p.Orientation[5]}
	}
	normal := cross(row, col)

	if len(p.Positions) > 0 {
		g.Origin = p.Positions[0]
	}

	// Slice-axis direction and spacing from measured positions when we have
	// at least two of them.
	sliceSpacing := 0.0
	if len(p.Positions) >= 2 {
		last := p.Positions[len(p.Positions)-1]
		span := [3]float64{
			last[0] - p.Positions[0][0],
			last[1] - p.Positions[0][1],
			last[2] - p.Positions[0][2],
		}
		dist := norm(span)
		if dist > 0 {
			sliceSpacing = dist / float64(len(p.Positions)-1)
			normal = [3]float64{span[0] / dist, span[1] / dist, span[2] / dist}
		}
	}
	if sliceSpacing <= 0 {
		switch {
		case p.SpacingBetweenSlices > 0:
			sliceSpacing = p.SpacingBetweenSlices
		case p.SliceThickness > 0:
			sliceSpacing = p.SliceThickness
		default:
			sliceSpacing = 1.0
		}
	}

	// DICOM PixelSpacing is (row spacing, column spacing); volume spacing is
	// (x, y, z) so the pair is swapped.
	g.Spacing = [3]float64{p.PixelSpacing[1], p.PixelSpacing[0], sliceSpacing}
	if p.HasPixelSpacing {
		for i := 0; i < 2; i++ {
			if g.Spacing[i] <= 0 {
				return Geometry{}, &Error{Reason: fmt.Sprintf(
					"pixel spacing component %d is %v, must be > 0", i, g.Spacing[i])}
			}
		}
	} else {
		g.Spacing[0], g.Spacing[1] = 1.0, 1.0
	}

	for i := 0; i < 3; i++ {
		g.Direction[i][0] = row[i]
		g.Direction[i][1] = col[i]
		g.Direction[i][2] = normal[i]
	}

	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

// Validate checks the geometric invariants: strictly positive spacing and an
// orthonormal direction matrix within OrthonormalTolerance.
func (g Geometry) Validate() error {
	for i, s := range g.Spacing {
		if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return &Error{Reason: fmt.Sprintf("spacing component %d is %v, must be > 0", i, s)}
		}
	}

	d := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d.Set(i, j, g.Direction[i][j])
		}
	}

	// D is orthonormal iff Dᵀ·D equals the identity.
	var dtd mat.Dense
	dtd.Mul(d.T(), d)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(dtd.At(i, j)-want) > OrthonormalTolerance {
				return &Error{Reason: fmt.Sprintf(
					"direction matrix is not orthonormal: (DᵀD)[%d][%d] = %.9f, want %.0f ± %g",
					i, j, dtd.At(i, j), want, OrthonormalTolerance)}
			}
		}
	}
	return nil
}

// SlicePosition returns the patient-space position of slice i: the origin
// translated along the slice normal by i spacings.
func (g Geometry) SlicePosition(i int) [3]float64 {
	var pos [3]float64
	for axis := 0; axis < 3; axis++ {
		pos[axis] = g.Origin[axis] + float64(i)*g.Spacing[2]*g.Direction[axis][2]
	}
	return pos
}

// AlmostEqual reports whether two geometries match within the given
// tolerances: originSpacingTol bounds the relative error on origin and
// spacing, directionTol the absolute error on direction matrix entries.
func (g Geometry) AlmostEqual(other Geometry, originSpacingTol, directionTol float64) bool {
	for i := 0; i < 3; i++ {
		if !withinRelative(g.Origin[i], other.Origin[i], originSpacingTol) {
			return false
		}
		if !withinRelative(g.Spacing[i], other.Spacing[i], originSpacingTol) {
			return false
		}
		for j := 0; j < 3; j++ {
			if math.Abs(g.Direction[i][j]-other.Direction[i][j]) > directionTol {
				return false
			}
		}
	}
	return true
}

func withinRelative(a, b, tol float64) bool {
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale < 1 {
		scale = 1
	}
	return diff <= tol*scale
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func norm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
