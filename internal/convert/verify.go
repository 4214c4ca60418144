package convert

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/mrsinham/dicomzarr/internal/series"
)

// VerifyError reports a reconstruction that is not equivalent to its source
// series. Reason names the first difference found.
type VerifyError struct {
	Reason string
}

func (e *VerifyError) Error() string {
	return "verification failed: " + e.Reason
}

// VerifySeries checks that the reconstructed series under reconDir is
// equivalent to the source series under origDir: identical samples, identical
// attribute values for every source attribute, and a matching geometric
// transform within tolerance.
//
// The reconstruction may carry attributes the source lacked (generated
// identity tags); those do not fail verification.
func VerifySeries(origDir, reconDir string) error {
	orig, err := series.Load(origDir)
	if err != nil {
		return err
	}
	recon, err := series.Load(reconDir)
	if err != nil {
		return err
	}

	if len(recon.Slices) != len(orig.Slices) {
		return &VerifyError{Reason: fmt.Sprintf(
			"reconstruction has %d slices, source has %d", len(recon.Slices), len(orig.Slices))}
	}
	if recon.Rows != orig.Rows || recon.Cols != orig.Cols {
		return &VerifyError{Reason: fmt.Sprintf(
			"reconstruction is %dx%d, source is %dx%d", recon.Rows, recon.Cols, orig.Rows, orig.Cols)}
	}
	if recon.DType != orig.DType {
		return &VerifyError{Reason: fmt.Sprintf(
			"reconstruction sample type %s, source %s", recon.DType, orig.DType)}
	}

	for i := range orig.Slices {
		if got, want := xxhash.Sum64(recon.Slices[i].Pixels), xxhash.Sum64(orig.Slices[i].Pixels); got != want {
			return &VerifyError{Reason: fmt.Sprintf(
				"slice %d samples differ: digest %016x, source %016x", i, got, want)}
		}
		for key, attr := range orig.Slices[i].Tags {
			reconAttr, ok := recon.Slices[i].Tags[key]
			if !ok {
				return &VerifyError{Reason: fmt.Sprintf(
					"slice %d is missing attribute %s", i, key)}
			}
			if !attr.Equal(reconAttr) {
				return &VerifyError{Reason: fmt.Sprintf(
					"slice %d attribute %s differs: %v, source %v", i, key, reconAttr.Values, attr.Values)}
			}
		}
	}

	origGeo, err := orig.Geometry()
	if err != nil {
		return err
	}
	reconGeo, err := recon.Geometry()
	if err != nil {
		return err
	}
	if !origGeo.AlmostEqual(reconGeo, OriginSpacingTolerance, DirectionTolerance) {
		return &VerifyError{Reason: fmt.Sprintf(
			"geometric transform differs beyond tolerance: %+v, source %+v", reconGeo, origGeo)}
	}
	return nil
}
