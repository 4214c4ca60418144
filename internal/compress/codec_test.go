package compress

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayload(n int) []byte {
	rng := rand.New(rand.NewSource(42))
	data := make([]byte, n)
	for i := range data {
		// Low-entropy values so every codec actually shrinks the payload.
		data[i] = byte(rng.Intn(16))
	}
	return data
}

func TestCodecRoundTrip(t *testing.T) {
	payload := testPayload(64 * 1024)

	for _, name := range []string{CodecZstd, CodecLZ4, CodecNone} {
		t.Run(name, func(t *testing.T) {
			codec, err := New(name, 1)
			require.NoError(t, err)

			compressed, err := codec.Compress(payload)
			require.NoError(t, err)

			decompressed, err := codec.Decompress(compressed)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(payload, decompressed))
		})
	}
}

func TestCodecRoundTripEmpty(t *testing.T) {
	for _, name := range []string{CodecZstd, CodecLZ4, CodecNone} {
		t.Run(name, func(t *testing.T) {
			codec, err := New(name, 1)
			require.NoError(t, err)

			compressed, err := codec.Compress(nil)
			require.NoError(t, err)

			decompressed, err := codec.Decompress(compressed)
			require.NoError(t, err)
			assert.Empty(t, decompressed)
		})
	}
}

func TestNewUnknownCodec(t *testing.T) {
	_, err := New("brotli", 1)
	assert.Error(t, err)
}

func TestNewEmptyNameIsPassThrough(t *testing.T) {
	codec, err := New("", 0)
	require.NoError(t, err)

	payload := []byte("unchanged")
	out, err := codec.Compress(payload)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestZstdCompressesRepetitiveData(t *testing.T) {
	codec, err := New(CodecZstd, 1)
	require.NoError(t, err)

	payload := testPayload(256 * 1024)
	compressed, err := codec.Compress(payload)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(payload))
}

func TestLZ4SizePrefix(t *testing.T) {
	codec := NewLZ4Codec()
	payload := testPayload(4096)

	compressed, err := codec.Compress(payload)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(compressed), 4)
	assert.Equal(t, uint32(len(payload)), binary.LittleEndian.Uint32(compressed))
}

func TestLZ4RejectsTruncatedBlock(t *testing.T) {
	codec := NewLZ4Codec()

	_, err := codec.Decompress([]byte{1, 2})
	assert.Error(t, err)
}

func TestLZ4RejectsUnreasonableSize(t *testing.T) {
	codec := NewLZ4Codec()

	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header, 1<<31)
	_, err := codec.Decompress(header)
	assert.Error(t, err)
}

func TestShuffleRoundTrip(t *testing.T) {
	data := testPayload(1024)

	for _, size := range []int{1, 2, 4} {
		shuffled := Shuffle(data, size)
		assert.Equal(t, data, Unshuffle(shuffled, size), "element size %d", size)
	}
}

func TestShuffleByteLayout(t *testing.T) {
	// Two uint16 elements: low bytes first, then high bytes.
	data := []byte{0x01, 0x10, 0x02, 0x20}

	assert.Equal(t, []byte{0x01, 0x02, 0x10, 0x20}, Shuffle(data, 2))
}

func TestShufflePartialElementIsCopied(t *testing.T) {
	data := []byte{1, 2, 3}

	shuffled := Shuffle(data, 2)
	assert.Equal(t, data, shuffled)

	// The copy must be independent of the input.
	shuffled[0] = 9
	assert.Equal(t, byte(1), data[0])
}
