package decoding

// BytesToInt interprets b as little-endian unsigned integer (LSB comes first).
// Only the first four bytes are taken into account.
func BytesToInt(b []byte) uint32 {
	var v uint32
	for i := 0; i < len(b) && i < 4; i++ {
		v |= uint32(b[i]) << (uint(i) * 8)
	}
	return v
}

// modMultiplier decodes the 3 byte light encoding, where the first byte is the
// modulo and the remaining two bytes are the (little-endian) multiplier.
func modMultiplier(b []byte) float64 {
	if len(b) == 0 {
		return 0
	}
	return float64(BytesToInt(b[1:]))*255 + float64(b[0])
}
