package hitomi

import "encoding/binary"

// Listing indexes (nozomi files) are flat arrays of big-endian uint32
// gallery IDs, newest first. Pagination slices them with HTTP Range
// requests instead of downloading whole files.

// nozomiRange converts an item window to the inclusive byte range of the
// underlying uint32 array.
func nozomiRange(start, count int) (from, to int64) {
	from = int64(start) * 4
	to = from + int64(count)*4 - 1
	return from, to
}

// decodeNozomi parses gallery IDs from raw index bytes. A trailing
// partial word is ignored.
func decodeNozomi(data []byte) []int {
	ids := make([]int, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		ids = append(ids, int(binary.BigEndian.Uint32(data[i:])))
	}
	return ids
}
