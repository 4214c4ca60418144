package compress

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// lz4CompressorPool pools lz4.Compressor instances; the compressor keeps
// internal state that benefits from reuse.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4Codec compresses chunks as a single lz4 block prefixed with the
// original length as a little-endian uint32, the framing numcodecs uses, so
// stores stay readable by the Python side.
type LZ4Codec struct{}

// NewLZ4Codec creates an lz4 block codec.
func NewLZ4Codec() LZ4Codec {
	return LZ4Codec{}
}

// Compress compresses data into a size-prefixed lz4 block.
func (LZ4Codec) Compress(data []byte) ([]byte, error) {
	dst := make([]byte, 4+lz4.CompressBlockBound(len(data)))
	binary.LittleEndian.PutUint32(dst, uint32(len(data)))

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst[4:])
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	if n == 0 && len(data) > 0 {
		// CompressBlock signals incompressible data with n == 0; emit a
		// literal-only block so the output stays a valid lz4 stream.
		return append(dst[:4], literalBlock(data)...), nil
	}
	return dst[:4+n], nil
}

// literalBlock encodes data as a single lz4 sequence of literals with no
// match part.
func literalBlock(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/255+2)
	n := len(data)
	if n < 15 {
		out = append(out, byte(n)<<4)
	} else {
		out = append(out, 0xF0)
		n -= 15
		for n >= 255 {
			out = append(out, 255)
			n -= 255
		}
		out = append(out, byte(n))
	}
	return append(out, data...)
}

// Decompress decompresses a size-prefixed lz4 block.
func (LZ4Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("lz4 block too short: %d bytes", len(data))
	}
	size := binary.LittleEndian.Uint32(data)
	const maxSize = 1 << 30
	if size > maxSize {
		return nil, fmt.Errorf("lz4 block declares unreasonable size %d", size)
	}
	out := make([]byte, size)
	n, err := lz4.UncompressBlock(data[4:], out)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompression failed: %w", err)
	}
	if n != int(size) {
		return nil, fmt.Errorf("lz4 block decompressed to %d bytes, header says %d", n, size)
	}
	return out, nil
}
