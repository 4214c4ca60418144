package compress

// NoopCodec passes chunks through unchanged, for stores written without a
// compressor.
type NoopCodec struct{}

// Compress returns a copy of data.
func (NoopCodec) Compress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Decompress returns a copy of data.
func (NoopCodec) Decompress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
