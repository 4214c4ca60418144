// Package tagmodel is the canonical representation of per-slice descriptive
// attributes: string-keyed dictionaries partitioned into the subset shared by
// every slice and the per-slice deltas of everything that varies.
package tagmodel

import "sort"

// Attribute is one attribute value: its value representation, the Go value
// kind the slice codec produced it as, and the values rendered as strings.
// Integers render exactly; floats render with the shortest representation
// that round-trips to the same float64.
type Attribute struct {
	VR     string   `json:"vr"`
	Kind   string   `json:"kind"`
	Values []string `json:"value"`
}

// Value kinds carried by Attribute.Kind.
const (
	KindString = "str"
	KindInt    = "int"
	KindFloat  = "float"
)

// Equal reports exact attribute equality.
func (a Attribute) Equal(b Attribute) bool {
	if a.VR != b.VR || a.Kind != b.Kind || len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			return false
		}
	}
	return true
}

// Dict is one slice's attribute dictionary, keyed by the tag key the slice
// codec assigns (group|element hex for DICOM tags).
type Dict map[string]Attribute

// Clone returns a shallow-value copy of the dictionary.
func (d Dict) Clone() Dict {
	out := make(Dict, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Equal reports order-independent dictionary equality.
func (d Dict) Equal(other Dict) bool {
	if len(d) != len(other) {
		return false
	}
	for k, v := range d {
		ov, ok := other[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// SortedKeys returns the keys in lexicographic order, the canonical
// iteration order everywhere in this package.
func (d Dict) SortedKeys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Delta is one slice's view of the varying attributes. Every varying key is
// present in every delta; a nil value records that the slice lacks the
// attribute, so absence survives the round trip explicitly instead of being
// inferred.
type Delta map[string]*Attribute

// Deltas holds one Delta per slice, in slice order.
type Deltas []Delta

// Collect partitions per-slice dictionaries into the attributes shared by
// all slices and the per-slice deltas of every attribute that varies.
//
// A key is shared iff it is present with an identical value in every slice.
// Keys missing from some slices, or disagreeing between slices, are varying;
// disagreement is never an error, only a reclassification. Collect is a pure
// function: the input dictionaries are not modified.
func Collect(slices []Dict) (Dict, Deltas) {
	shared := Dict{}
	if len(slices) == 0 {
		return shared, nil
	}

	// Union of keys across all slices. Keys absent from the first slice can
	// never be shared but must still be tracked as varying.
	union := map[string]struct{}{}
	for _, d := range slices {
		for k := range d {
			union[k] = struct{}{}
		}
	}

	varying := make([]string, 0)
	for k := range union {
		first, inAll := slices[0][k]
		if inAll {
			for _, d := range slices[1:] {
				v, ok := d[k]
				if !ok || !v.Equal(first) {
					inAll = false
					break
				}
			}
		}
		if inAll {
			shared[k] = first
		} else {
			varying = append(varying, k)
		}
	}
	sort.Strings(varying)

	if len(varying) == 0 {
		return shared, nil
	}

	deltas := make(Deltas, len(slices))
	for i, d := range slices {
		delta := make(Delta, len(varying))
		for _, k := range varying {
			if v, ok := d[k]; ok {
				attr := v
				delta[k] = &attr
			} else {
				delta[k] = nil
			}
		}
		deltas[i] = delta
	}
	return shared, deltas
}

// Restore is the exact inverse of Collect: it rebuilds the full per-slice
// dictionaries as shared ∪ delta, with the delta taking precedence on key
// collision. n is the series length, needed because an all-shared series has
// no deltas at all.
func Restore(shared Dict, deltas Deltas, n int) []Dict {
	if len(deltas) > 0 {
		n = len(deltas)
	}
	out := make([]Dict, n)
	for i := range out {
		d := shared.Clone()
		if i < len(deltas) {
			for k, v := range deltas[i] {
				if v == nil {
					delete(d, k)
				} else {
					d[k] = *v
				}
			}
		}
		out[i] = d
	}
	return out
}
