package zarrstore

import (
	"strconv"
	"strings"
)

// chunkKey builds the Zarr v2 object key for a chunk from its grid indices,
// e.g. indices (3, 0, 0) become "3.0.0".
func chunkKey(indices []int) string {
	if len(indices) == 0 {
		return "0"
	}
	if len(indices) == 1 {
		return strconv.Itoa(indices[0])
	}
	var sb strings.Builder
	for i, idx := range indices {
		if i > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(strconv.Itoa(idx))
	}
	return sb.String()
}
