package sidecar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsinham/dicomzarr/internal/geometry"
	"github.com/mrsinham/dicomzarr/internal/tagmodel"
)

func testSidecar() *Sidecar {
	instance2 := tagmodel.Attribute{VR: "IS", Kind: tagmodel.KindInt, Values: []string{"2"}}
	instance1 := tagmodel.Attribute{VR: "IS", Kind: tagmodel.KindInt, Values: []string{"1"}}
	return &Sidecar{
		FormatVersion: FormatVersion,
		Geometry: geometry.Geometry{
			Origin:  [3]float64{-100, -100, 0},
			Spacing: [3]float64{1, 1, 2.5},
			Direction: [3][3]float64{
				{1, 0, 0},
				{0, 1, 0},
				{0, 0, 1},
			},
		},
		Shape: [3]int{2, 4, 4},
		DType: "<u2",
		Shared: tagmodel.Dict{
			"0010|0020": {VR: "LO", Kind: tagmodel.KindString, Values: []string{"P1"}},
		},
		Deltas: tagmodel.Deltas{
			{"0020|0013": &instance1},
			{"0020|0013": &instance2},
		},
		Filenames: []string{"a.dcm", "b.dcm"},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.json")
	want := testSidecar()

	require.NoError(t, Write(path, want))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")

	require.NoError(t, Write(a, testSidecar()))
	require.NoError(t, Write(b, testSidecar()))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestWriteRefusesInvalidRecord(t *testing.T) {
	s := testSidecar()
	s.Shape[1] = 0

	err := Write(filepath.Join(t.TempDir(), "bad.json"), s)
	assert.Error(t, err)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.json"))

	var ferr *FormatError
	require.ErrorAs(t, err, &ferr)
}

func TestReadMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncated.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"format_version": 1, "geo`), 0644))

	_, err := Read(path)

	var ferr *FormatError
	require.ErrorAs(t, err, &ferr)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Sidecar)
	}{
		{"wrong version", func(s *Sidecar) { s.FormatVersion = 99 }},
		{"zero shape", func(s *Sidecar) { s.Shape[0] = 0 }},
		{"bad dtype", func(s *Sidecar) { s.DType = "<f8" }},
		{"delta count mismatch", func(s *Sidecar) { s.Deltas = s.Deltas[:1] }},
		{"filename count mismatch", func(s *Sidecar) { s.Filenames = s.Filenames[:1] }},
		{"broken geometry", func(s *Sidecar) { s.Geometry.Spacing[2] = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := testSidecar()
			tc.mutate(s)
			assert.Error(t, s.Validate())
		})
	}

	assert.NoError(t, testSidecar().Validate())
}

func TestValidateAllowsOmittedOptionalFields(t *testing.T) {
	s := testSidecar()
	s.Deltas = nil
	s.Filenames = nil

	assert.NoError(t, s.Validate())
}
