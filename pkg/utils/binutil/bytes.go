package binutil

// WriteUint16 writes v big-endian into buf.
func WriteUint16(buf []byte, v uint16) {
	buf[0] = byte(v >> 8)
	buf[1] = byte(v)
}

func WriteUint16LittleEndian(buf []byte, v uint16) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
}

// ParseUint16 reads a big-endian uint16 from buf.
func ParseUint16(buf []byte) uint16 {
	return uint16(buf[0])<<8 + uint16(buf[1])
}

func ParseUint16LittleEndian(buf []byte) uint16 {
	return uint16(buf[1])<<8 + uint16(buf[0])
}

// WordsFromBytes splits a register payload into 16-bit words. Each register
// travels high byte first.
func WordsFromBytes(buf []byte) []uint16 {
	words := make([]uint16, 0, len(buf)/2)
	for i := 0; i+1 < len(buf); i += 2 {
		words = append(words, ParseUint16(buf[i:]))
	}
	return words
}

// BytesFromWords is the inverse of WordsFromBytes.
func BytesFromWords(words []uint16) []byte {
	buf := make([]byte, len(words)*2)
	for i, w := range words {
		WriteUint16(buf[i*2:], w)
	}
	return buf
}

// ExpandBits unpacks a bit-packed coil/discrete payload into count words of
// 0 or 1. The first status is the least significant bit of the first byte.
func ExpandBits(buf []byte, count int) []uint16 {
	words := make([]uint16, 0, count)
	for i := 0; i < count; i++ {
		if i/8 >= len(buf) {
			break
		}
		words = append(words, uint16(buf[i/8]>>(uint(i)%8)&0x01))
	}
	return words
}

// U32FromWords assembles two registers, first word most significant.
func U32FromWords(hi, lo uint16) uint32 {
	return uint32(hi)<<16 | uint32(lo)
}

// U64FromWords assembles four registers, first word most significant.
func U64FromWords(w0, w1, w2, w3 uint16) uint64 {
	return uint64(w0)<<48 | uint64(w1)<<32 | uint64(w2)<<16 | uint64(w3)
}
