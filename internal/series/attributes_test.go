package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/dicomzarr/internal/tagmodel"
)

func TestKeyForAndParseKey(t *testing.T) {
	key := keyFor(tag.PatientID)
	assert.Equal(t, "0010|0020", key)

	parsed, err := parseKey(key)
	require.NoError(t, err)
	assert.Equal(t, tag.PatientID, parsed)
}

func TestParseKeyRejectsMalformedKeys(t *testing.T) {
	for _, key := range []string{"", "0010", "0010|", "zzzz|0020", "0010|0020|0030"} {
		_, err := parseKey(key)
		assert.Error(t, err, "key %q should be rejected", key)
	}
}

func TestCaptureElementStringValue(t *testing.T) {
	elem, err := dicom.NewElement(tag.PatientID, []string{"P1"})
	require.NoError(t, err)

	key, attr, ok := captureElement(elem)
	require.True(t, ok)
	assert.Equal(t, "0010|0020", key)
	assert.Equal(t, tagmodel.KindString, attr.Kind)
	assert.Equal(t, []string{"P1"}, attr.Values)
}

func TestCaptureElementIntValue(t *testing.T) {
	elem, err := dicom.NewElement(tag.Rows, []int{512})
	require.NoError(t, err)

	key, attr, ok := captureElement(elem)
	require.True(t, ok)
	assert.Equal(t, "0028|0010", key)
	assert.Equal(t, tagmodel.KindInt, attr.Kind)
	assert.Equal(t, []string{"512"}, attr.Values)
}

func TestCaptureElementSkipsFileMetaExceptTransferSyntax(t *testing.T) {
	ts, err := dicom.NewElement(tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"})
	require.NoError(t, err)
	key, _, ok := captureElement(ts)
	require.True(t, ok)
	assert.Equal(t, TransferSyntaxKey, key)

	other, err := dicom.NewElement(tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.4"})
	require.NoError(t, err)
	_, _, ok = captureElement(other)
	assert.False(t, ok)
}

func TestRestoreElementRoundTrip(t *testing.T) {
	cases := []struct {
		tg    tag.Tag
		value interface{}
	}{
		{tag.PatientID, []string{"P1"}},
		{tag.Rows, []int{256}},
		{tag.ImagePositionPatient, []string{"-100.5", "-100.5", "12.5"}},
	}
	for _, tc := range cases {
		elem, err := dicom.NewElement(tc.tg, tc.value)
		require.NoError(t, err)

		key, attr, ok := captureElement(elem)
		require.True(t, ok)

		restored, err := restoreElement(key, attr)
		require.NoError(t, err)
		assert.Equal(t, tc.tg, restored.Tag)
		assert.Equal(t, tc.value, restored.Value.GetValue())
	}
}

func TestRestoreElementRejectsBadValues(t *testing.T) {
	_, err := restoreElement("0028|0010", tagmodel.Attribute{Kind: tagmodel.KindInt, Values: []string{"abc"}})
	assert.Error(t, err)

	_, err = restoreElement("0028|0010", tagmodel.Attribute{Kind: "blob", Values: []string{"1"}})
	assert.Error(t, err)
}

func TestDictHelpers(t *testing.T) {
	d := tagmodel.Dict{
		"0010|0020": {VR: "LO", Kind: tagmodel.KindString, Values: []string{"P1"}},
		"0028|0030": {VR: "DS", Kind: tagmodel.KindString, Values: []string{"0.5", " 0.75"}},
		"0028|0010": {VR: "US", Kind: tagmodel.KindInt, Values: []string{"512"}},
	}

	assert.Equal(t, "P1", firstString(d, tag.PatientID))
	assert.Equal(t, "", firstString(d, tag.PatientName))

	spacing, ok := floatValues(d, tag.PixelSpacing)
	require.True(t, ok)
	assert.Equal(t, []float64{0.5, 0.75}, spacing)

	rows, ok := intValue(d, tag.Rows)
	require.True(t, ok)
	assert.Equal(t, 512, rows)

	_, ok = intValue(d, tag.Columns)
	assert.False(t, ok)
}
