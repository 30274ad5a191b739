package protocol

// MaxVarintLen is the maximum encoded size of a uint64 varint.
const MaxVarintLen = 10

// DecodeUvarint decodes an unsigned varint from the start of buf.
// It returns the value and the number of bytes consumed. A negative count
// means failure: -1 for an incomplete varint, -2 for overflow.
func DecodeUvarint(buf []byte) (uint64, int) {
	var v uint64
	var shift uint

	for i, b := range buf {
		if i >= MaxVarintLen {
			return 0, -2
		}
		v |= uint64(b&0x7F) << shift
		if b < 0x80 {
			return v, i + 1
		}
		shift += 7
	}
	return 0, -1
}

// UvarintLen returns the number of bytes needed to encode v.
func UvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		n++
		v >>= 7
	}
	return n
}
