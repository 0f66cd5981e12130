package cipclient

import (
	"context"

	"github.com/plcgo/goenip/cip"
)

// readBits reads requestedLen bits starting at bitIndex on hostAddress,
// LSB-first within each byte, per the bit access algorithm: the host
// element's type code determines its bit width, which in turn
// determines which elements must be read to cover the requested range.
func (c *Client) readBits(ctx context.Context, hostAddress string, bitIndex uint32, requestedLen int) ([]bool, error) {
	if requestedLen <= 0 {
		return nil, nil
	}
	probe, typeCode, _, err := c.readElements(ctx, hostAddress, 1)
	if err != nil {
		return nil, err
	}
	bitWidth := cip.BitWidth(typeCode)
	_ = probe

	elementOffset := bitIndex / uint32(bitWidth)
	intraBit := bitIndex % uint32(bitWidth)
	spanBits := intraBit + uint32(requestedLen)
	elementsNeeded := (spanBits + uint32(bitWidth) - 1) / uint32(bitWidth)

	data, _, _, err := c.readElements(ctx, elementAt(hostAddress, elementOffset), uint16(elementsNeeded))
	if err != nil {
		return nil, err
	}

	out := make([]bool, requestedLen)
	for i := 0; i < requestedLen; i++ {
		bitPos := intraBit + uint32(i)
		byteIdx := bitPos / 8
		bitInByte := bitPos % 8
		if int(byteIdx) >= len(data) {
			break
		}
		out[i] = data[byteIdx]&(1<<bitInByte) != 0
	}
	return out, nil
}

// writeBit toggles exactly one bit of one host element via
// read-modify-write, preserving every other bit.
func (c *Client) writeBit(ctx context.Context, hostAddress string, bitIndex uint32, v bool) error {
	_, typeCode, _, err := c.readElements(ctx, hostAddress, 1)
	if err != nil {
		return err
	}
	bitWidth := cip.BitWidth(typeCode)
	elementOffset := bitIndex / uint32(bitWidth)
	intraBit := bitIndex % uint32(bitWidth)

	elemAddr := elementAt(hostAddress, elementOffset)
	hostData, hostType, _, err := c.readElements(ctx, elemAddr, 1)
	if err != nil {
		return err
	}
	raw := append([]byte(nil), hostData...)
	byteIdx := int(intraBit / 8)
	bitInByte := uint(intraBit % 8)
	if byteIdx >= len(raw) {
		return cip.TruncatedResponse(nil).WithAddress(hostAddress)
	}
	if v {
		raw[byteIdx] |= 1 << bitInByte
	} else {
		raw[byteIdx] &^= 1 << bitInByte
	}

	if hostType == cip.TypeBOOL && len(raw)%2 != 0 {
		raw = append(raw, 0x00)
	}
	return c.writeElements(ctx, elemAddr, hostType, 1, raw)
}

// elementAt appends an array index to a base address. Element 0 keeps
// the base address unchanged (bare name or already-indexed form).
func elementAt(base string, offset uint32) string {
	if offset == 0 {
		return base
	}
	return base + "[" + itoa(offset) + "]"
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
