package cip

import (
	"encoding/binary"
	"fmt"

	"github.com/plcgo/goenip/addr"
)

type LogicalType byte
type LogicalFormat byte
type SegmentType byte

// Segment type and logical-segment format bits, ODVA Vol1 C-1.
const (
	segTypeLogical SegmentType = 0b001

	logicalClassID     LogicalType = 0x0
	logicalInstanceID  LogicalType = 0b1
	logicalAttributeID LogicalType = 0b100
	logicalSpecial     LogicalType = 0b101
	logicalServiceID   LogicalType = 0b110

	logicalFormat8  LogicalFormat = 0b0
	logicalFormat16 LogicalFormat = 0b1
	logicalFormat32 LogicalFormat = 0b10
)

// EPath is an encoded CIP request path.
type EPath []byte

// WordLen reports the path length in 16-bit words, the one-byte
// path-size field that precedes every CIP path.
func (p EPath) WordLen() byte {
	return byte(len(p) / 2)
}

// PathBuilder is a fluent encoder for EPaths. The zero value is not
// usable; start from NewPath().
type PathBuilder struct {
	err    error
	path   EPath
	padded bool
}

// NewPath starts a padded EPath builder, the form required by every
// service this client issues.
func NewPath() *PathBuilder {
	return &PathBuilder{padded: true}
}

func (b *PathBuilder) add(p EPath, err error) *PathBuilder {
	if b.err != nil {
		return b
	}
	if err != nil {
		b.err = err
		return b
	}
	b.path = append(b.path, p...)
	return b
}

func (b *PathBuilder) Class(id byte) *PathBuilder {
	return b.add(logicalSegment(logicalClassID, logicalFormat8, []byte{id}, b.padded))
}

func (b *PathBuilder) Instance(id byte) *PathBuilder {
	return b.add(logicalSegment(logicalInstanceID, logicalFormat8, []byte{id}, b.padded))
}

func (b *PathBuilder) Instance16(id uint16) *PathBuilder {
	return b.add(logicalSegment(logicalInstanceID, logicalFormat16, binary.LittleEndian.AppendUint16(nil, id), b.padded))
}

func (b *PathBuilder) Instance32(id uint32) *PathBuilder {
	return b.add(logicalSegment(logicalInstanceID, logicalFormat32, binary.LittleEndian.AppendUint32(nil, id), b.padded))
}

func (b *PathBuilder) Attribute(id byte) *PathBuilder {
	return b.add(logicalSegment(logicalAttributeID, logicalFormat8, []byte{id}, b.padded))
}

// Symbol appends an extended-symbol path for a (possibly dotted,
// possibly indexed) tag name. The name/index grammar lives in the
// addr package so there is exactly one parser for it.
func (b *PathBuilder) Symbol(tag string) *PathBuilder {
	parsed, err := addr.Parse(tag)
	if err != nil {
		b.err = err
		return b
	}
	for _, seg := range parsed.Segments {
		b = b.add(symbolicSegment([]byte(seg.Name)))
		for _, idx := range seg.Indices {
			b = b.add(memberSegment(idx))
		}
	}
	return b
}

// Build finalizes the path, padding to an even length if needed.
func (b *PathBuilder) Build() (EPath, error) {
	if b.err != nil {
		return nil, b.err
	}
	out := append(EPath{}, b.path...)
	if b.padded && len(out)%2 != 0 {
		out = append(out, 0x00)
	}
	return out, nil
}

// logicalSegment encodes a Logical Segment. Padding applies only to
// 16- and 32-bit formats (a single 0x00 byte before the value) and
// must be decided at construction time since it changes the encoded
// length.
func logicalSegment(lt LogicalType, lf LogicalFormat, value []byte, padded bool) (EPath, error) {
	if lt == logicalSpecial {
		return append(EPath{0x34}, value...), nil
	}
	if lt == logicalServiceID {
		return append(EPath{0x38}, value...), nil
	}

	switch lf {
	case logicalFormat8:
		if len(value) != 1 {
			return nil, fmt.Errorf("cip: 8-bit logical segment requires 1 byte, got %d", len(value))
		}
	case logicalFormat16:
		if len(value) != 2 {
			return nil, fmt.Errorf("cip: 16-bit logical segment requires 2 bytes, got %d", len(value))
		}
	case logicalFormat32:
		if len(value) != 4 {
			return nil, fmt.Errorf("cip: 32-bit logical segment requires 4 bytes, got %d", len(value))
		}
	default:
		return nil, fmt.Errorf("cip: unsupported logical format %v", lf)
	}

	capHint := 1 + len(value)
	if padded && lf != logicalFormat8 {
		capHint++
	}
	out := make([]byte, 1, capHint)
	out[0] |= (byte(segTypeLogical) & 0b111) << 5
	out[0] |= (byte(lt) & 0b111) << 2
	out[0] |= byte(lf) & 0b11

	if padded && lf != logicalFormat8 {
		out = append(out, 0x00)
	}
	out = append(out, value...)
	return EPath(out), nil
}

// memberSegment encodes an array index / member segment, widening the
// encoding (and inserting the required pad byte) as the index grows.
func memberSegment(index uint32) (EPath, error) {
	switch {
	case index <= 0xFF:
		return EPath{0x28, byte(index)}, nil
	case index <= 0xFFFF:
		return EPath{0x29, 0x00, byte(index), byte(index >> 8)}, nil
	default:
		return EPath{0x2A, 0x00, byte(index), byte(index >> 8), byte(index >> 16), byte(index >> 24)}, nil
	}
}

// symbolicSegment encodes an Extended Symbol segment: 0x91, length
// byte, ASCII bytes, even-padded.
func symbolicSegment(name []byte) (EPath, error) {
	if len(name) == 0 {
		return nil, fmt.Errorf("cip: empty symbol segment")
	}
	if len(name) > 255 {
		return nil, fmt.Errorf("cip: symbol segment too long, max 255 bytes, got %d", len(name))
	}
	out := make([]byte, 0, 2+len(name)+1)
	out = append(out, 0x91, byte(len(name)))
	out = append(out, name...)
	if len(out)%2 != 0 {
		out = append(out, 0x00)
	}
	return EPath(out), nil
}
