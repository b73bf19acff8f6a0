package protocol

// Chunks splits an encoded frame into write-sized pieces. The returned
// slices alias data; they cover it exactly, in order, with no overlap.
// The device's buffer model assumes ordered, non-overlapping delivery, so
// the caller writes them in sequence with one in flight at a time.
func Chunks(data []byte, size int) [][]byte {
	if size <= 0 || len(data) == 0 {
		return nil
	}

	n := (len(data) + size - 1) / size
	out := make([][]byte, 0, n)
	for off := 0; off < len(data); off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[off:end])
	}
	return out
}
