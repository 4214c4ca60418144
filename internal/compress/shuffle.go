package compress

// Shuffle reorders data byte-planewise: all first bytes of every element,
// then all second bytes, and so on. This is the numcodecs "shuffle" filter;
// it groups similar-magnitude bytes together so the compressor behind it
// sees longer runs. Element sizes of 0 or 1, or a trailing partial element,
// leave the data unchanged.
func Shuffle(data []byte, elementSize int) []byte {
	out := make([]byte, len(data))
	if elementSize <= 1 || len(data)%elementSize != 0 {
		copy(out, data)
		return out
	}
	count := len(data) / elementSize
	for i := 0; i < count; i++ {
		for b := 0; b < elementSize; b++ {
			out[b*count+i] = data[i*elementSize+b]
		}
	}
	return out
}

// Unshuffle inverts Shuffle.
func Unshuffle(data []byte, elementSize int) []byte {
	out := make([]byte, len(data))
	if elementSize <= 1 || len(data)%elementSize != 0 {
		copy(out, data)
		return out
	}
	count := len(data) / elementSize
	for i := 0; i < count; i++ {
		for b := 0; b < elementSize; b++ {
			out[i*elementSize+b] = data[b*count+i]
		}
	}
	return out
}
