package cipclient

import "encoding/binary"

// EncodeString produces the wire form of a STRING tag value:
// length_u16 followed by the UTF-8 bytes, even-padded with a trailing
// zero byte when the byte length is odd.
func EncodeString(s string) []byte {
	b := []byte(s)
	out := make([]byte, 0, 2+len(b)+1)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(b)))
	out = append(out, b...)
	if len(b)%2 != 0 {
		out = append(out, 0x00)
	}
	return out
}

// DecodeString parses a STRING tag payload. A declared length
// exceeding the available payload is clamped; a payload under 2 bytes
// decodes as the empty string.
func DecodeString(data []byte) string {
	if len(data) < 2 {
		return ""
	}
	n := int(binary.LittleEndian.Uint16(data[:2]))
	avail := data[2:]
	if n > len(avail) {
		n = len(avail)
	}
	return string(avail[:n])
}
