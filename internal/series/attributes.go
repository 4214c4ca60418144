package series

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/dicomzarr/internal/tagmodel"
)

// TransferSyntaxKey is the attribute key of the transfer syntax element,
// the only file-meta element captured into the attribute dictionary.
const TransferSyntaxKey = "0002|0010"

// keyFor renders a DICOM tag as the "gggg|eeee" attribute key used
// throughout the sidecar.
func keyFor(t tag.Tag) string {
	return fmt.Sprintf("%04x|%04x", t.Group, t.Element)
}

// parseKey is the inverse of keyFor.
func parseKey(key string) (tag.Tag, error) {
	parts := strings.Split(key, "|")
	if len(parts) != 2 {
		return tag.Tag{}, fmt.Errorf("malformed tag key %q", key)
	}
	group, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("malformed tag key %q: %w", key, err)
	}
	element, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("malformed tag key %q: %w", key, err)
	}
	return tag.Tag{Group: uint16(group), Element: uint16(element)}, nil
}

// captureElement converts a dataset element into a dictionary attribute.
// It returns ok=false for elements the dictionary does not carry: pixel
// data, sequences, raw byte payloads, file-meta bookkeeping and private
// tags absent from the standard dictionary (which could not be rebuilt on
// the way back out).
func captureElement(e *dicom.Element) (string, tagmodel.Attribute, bool) {
	t := e.Tag
	if t == tag.PixelData {
		return "", tagmodel.Attribute{}, false
	}
	// File-meta group: only the transfer syntax is meaningful to keep; the
	// writer regenerates the rest.
	if t.Group == 0x0002 && t != tag.TransferSyntaxUID {
		return "", tagmodel.Attribute{}, false
	}
	if _, err := tag.Find(t); err != nil {
		return "", tagmodel.Attribute{}, false
	}

	attr := tagmodel.Attribute{VR: e.RawValueRepresentation}
	switch v := e.Value.GetValue().(type) {
	case []string:
		attr.Kind = tagmodel.KindString
		attr.Values = append([]string(nil), v...)
	case []int:
		attr.Kind = tagmodel.KindInt
		attr.Values = make([]string, len(v))
		for i, n := range v {
			attr.Values[i] = strconv.Itoa(n)
		}
	case []float64:
		attr.Kind = tagmodel.KindFloat
		attr.Values = make([]string, len(v))
		for i, f := range v {
			attr.Values[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
	default:
		// Sequences and byte payloads are out of the dictionary's scope.
		return "", tagmodel.Attribute{}, false
	}
	return keyFor(t), attr, true
}

// restoreElement rebuilds a dataset element from a dictionary attribute,
// producing the same Go value kind the parser originally yielded.
func restoreElement(key string, attr tagmodel.Attribute) (*dicom.Element, error) {
	t, err := parseKey(key)
	if err != nil {
		return nil, err
	}

	var value interface{}
	switch attr.Kind {
	case tagmodel.KindString:
		value = append([]string(nil), attr.Values...)
	case tagmodel.KindInt:
		ints := make([]int, len(attr.Values))
		for i, s := range attr.Values {
			n, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("tag %s: bad integer %q: %w", key, s, err)
			}
			ints[i] = n
		}
		value = ints
	case tagmodel.KindFloat:
		floats := make([]float64, len(attr.Values))
		for i, s := range attr.Values {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("tag %s: bad float %q: %w", key, s, err)
			}
			floats[i] = f
		}
		value = floats
	default:
		return nil, fmt.Errorf("tag %s: unknown value kind %q", key, attr.Kind)
	}

	elem, err := dicom.NewElement(t, value)
	if err != nil {
		return nil, fmt.Errorf("rebuild element %s: %w", key, err)
	}
	return elem, nil
}

// firstString returns the first value of a string-kind attribute, or "".
func firstString(d tagmodel.Dict, t tag.Tag) string {
	attr, ok := d[keyFor(t)]
	if !ok || len(attr.Values) == 0 {
		return ""
	}
	return attr.Values[0]
}

// floatValues parses the values of an attribute as floats. DICOM decimal
// strings and native float elements both pass through here.
func floatValues(d tagmodel.Dict, t tag.Tag) ([]float64, bool) {
	attr, ok := d[keyFor(t)]
	if !ok || len(attr.Values) == 0 {
		return nil, false
	}
	out := make([]float64, len(attr.Values))
	for i, s := range attr.Values {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// intValue parses the first value of an attribute as an integer.
func intValue(d tagmodel.Dict, t tag.Tag) (int, bool) {
	attr, ok := d[keyFor(t)]
	if !ok || len(attr.Values) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(attr.Values[0]))
	if err != nil {
		return 0, false
	}
	return n, true
}
