// Package compress provides the chunk codecs the array store writes with:
// zstd, lz4 block and a pass-through, plus the numcodecs-compatible byte
// shuffle filter. Codecs are small stateless values safe for reuse across
// chunks of one series.
package compress

import "fmt"

// Codec names recognized by New.
const (
	CodecZstd = "zstd"
	CodecLZ4  = "lz4"
	CodecNone = "none"
)

// Codec compresses and decompresses one chunk at a time.
//
// Returned slices are newly allocated and owned by the caller; inputs are
// never modified.
type Codec interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// New creates a codec by name. The level only affects codecs that support
// one; lz4 block and the pass-through ignore it.
func New(name string, level int) (Codec, error) {
	switch name {
	case CodecZstd:
		return NewZstdCodec(level)
	case CodecLZ4:
		return NewLZ4Codec(), nil
	case CodecNone, "":
		return NoopCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported codec %q", name)
	}
}
