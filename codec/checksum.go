package codec

// checksum computes the FIX CheckSum(10) value: the modulo-256 sum of every
// byte up to (but not including) the CheckSum field itself; formatChecksum
// renders it as three zero-padded decimal digits. Mirrors the byte-accumulation style of
// the teacher's RMCP+ header checksums (subtract-and-wrap over a byte
// range) rather than pulling in a CRC library neither the wire format nor
// the teacher calls for.
func checksum(data []byte) uint8 {
	var sum uint8
	for _, b := range data {
		sum += b
	}
	return sum
}

// appendChecksumField appends "10=NNN\x01" for the given running sum to buf.
func appendChecksumField(buf []byte, sum uint8, sep byte) []byte {
	buf = append(buf, '1', '0', '=')
	buf = append(buf, formatChecksum(sum)...)
	buf = append(buf, sep)
	return buf
}

func formatChecksum(sum uint8) []byte {
	out := make([]byte, 3)
	out[0] = '0' + byte(sum/100)
	out[1] = '0' + byte((sum/10)%10)
	out[2] = '0' + byte(sum%10)
	return out
}
