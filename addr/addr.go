// Package addr parses the caller-visible tag address grammar into the
// pieces the rest of the client needs: dotted name segments, a trailing
// array index, and an optional bit selector reached through the "i="
// prefix. It performs no I/O and never touches the network.
package addr

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one dot-separated component of an address, together with
// any bracketed indices that followed it (e.g. "Arr[3][1]" is one
// segment with two indices).
type Segment struct {
	Name    string
	Indices []uint32
}

// BitAccess describes a bit selector reached through the "i=" prefix:
// the host tag address and the zero-based bit offset within it.
type BitAccess struct {
	HostAddress string
	BitIndex    uint32
}

// TagAddress is the parsed form of a caller-supplied address string.
type TagAddress struct {
	Segments  []Segment
	BitAccess *BitAccess
}

// Parse splits a caller address into dotted segments and, when the
// address begins with "i=", a bit selector. Malformed bracket content
// never fails Parse outright; it only fails when the "i=" prefix is
// present and no bit selector can be found, since that form requires
// structural validity (spec: "bit-access with no bit selector").
func Parse(input string) (TagAddress, error) {
	if ba, ok := ParseBitAccess(input); ok {
		segs, err := splitSegments(ba.HostAddress)
		if err != nil {
			return TagAddress{}, err
		}
		return TagAddress{Segments: segs, BitAccess: &ba}, nil
	}
	if strings.HasPrefix(input, "i=") {
		return TagAddress{}, fmt.Errorf("addr: invalid bit-access address %q: no bit selector", input)
	}
	segs, err := splitSegments(input)
	if err != nil {
		return TagAddress{}, err
	}
	return TagAddress{Segments: segs}, nil
}

func splitSegments(s string) ([]Segment, error) {
	if s == "" {
		return nil, fmt.Errorf("addr: empty address")
	}
	var segs []Segment
	for _, part := range splitDotted(s) {
		name, indices := splitBrackets(part)
		if name == "" {
			return nil, fmt.Errorf("addr: empty segment name in %q", s)
		}
		segs = append(segs, Segment{Name: name, Indices: indices})
	}
	return segs, nil
}

// splitDotted splits on '.' but never inside brackets, so "Arr[1].Tag"
// splits into "Arr[1]" and "Tag" while "Program:Main" (no brackets,
// no dot) stays whole.
func splitDotted(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '.':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// splitBrackets pulls trailing "[N]" groups off of s, returning the
// bare name and the indices in left-to-right order. A bracket group
// that doesn't parse as a non-negative integer is left attached to the
// name instead of causing an error, so the caller falls back to
// treating the whole thing as a scalar name.
func splitBrackets(s string) (string, []uint32) {
	var indices []uint32
	name := s
	for {
		open := strings.LastIndexByte(name, '[')
		if open == -1 || !strings.HasSuffix(name, "]") {
			break
		}
		numStr := name[open+1 : len(name)-1]
		n, err := strconv.ParseUint(numStr, 10, 32)
		if err != nil {
			break
		}
		indices = append([]uint32{uint32(n)}, indices...)
		name = name[:open]
	}
	return name, indices
}

// ParseBit extracts a trailing "[N]" from address and reports whether
// one was present. It returns ok=false (never an error) for malformed
// bracket content, a negative-looking index, no brackets at all, or an
// empty name before the brackets — callers then treat the address as
// a scalar name.
func ParseBit(address string) (base string, bitIndex uint32, ok bool) {
	if !strings.HasSuffix(address, "]") {
		return address, 0, false
	}
	open := strings.LastIndexByte(address, '[')
	if open == -1 {
		return address, 0, false
	}
	numStr := address[open+1 : len(address)-1]
	n, err := strconv.ParseUint(numStr, 10, 32)
	if err != nil {
		return address, 0, false
	}
	base = address[:open]
	if base == "" || base == address {
		return address, 0, false
	}
	return base, uint32(n), true
}

// ParseArrayStart extracts the first "[N]" in address, returning the
// name with that bracket group removed and the starting index. If no
// bracket group is present the start index is 0 and base is address
// unchanged.
func ParseArrayStart(address string) (base string, start uint32) {
	open := strings.IndexByte(address, '[')
	if open == -1 {
		return address, 0
	}
	closeIdx := strings.IndexByte(address[open:], ']')
	if closeIdx == -1 {
		return address, 0
	}
	closeIdx += open
	numStr := address[open+1 : closeIdx]
	n, err := strconv.ParseUint(numStr, 10, 32)
	if err != nil {
		return address, 0
	}
	base = address[:open] + address[closeIdx+1:]
	return base, uint32(n)
}

// ParseBitAccess succeeds iff address begins with "i=". The remainder
// is parsed for a trailing bracketed index ("NAME[N]") or, failing
// that, a trailing dotted index ("NAME.N" where N is entirely
// digits). Neither form present means ok=false; the caller is
// responsible for surfacing InvalidAddress in that case.
func ParseBitAccess(address string) (BitAccess, bool) {
	if !strings.HasPrefix(address, "i=") {
		return BitAccess{}, false
	}
	rest := address[2:]

	if base, bit, ok := ParseBit(rest); ok {
		return BitAccess{HostAddress: base, BitIndex: bit}, true
	}

	dot := strings.LastIndexByte(rest, '.')
	if dot != -1 && dot < len(rest)-1 {
		numStr := rest[dot+1:]
		if n, err := strconv.ParseUint(numStr, 10, 32); err == nil {
			return BitAccess{HostAddress: rest[:dot], BitIndex: uint32(n)}, true
		}
	}

	return BitAccess{}, false
}

// NormalizeArrayName returns base unchanged if it already contains a
// bracketed index, otherwise appends "[start]".
func NormalizeArrayName(base string, start uint32) string {
	if strings.Contains(base, "[") {
		return base
	}
	return fmt.Sprintf("%s[%d]", base, start)
}
