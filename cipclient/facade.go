package cipclient

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/plcgo/goenip/addr"
	"github.com/plcgo/goenip/cip"
)

// pathFor builds the symbolic EPath for address, or returns an
// InvalidAddress error if the grammar rejects it.
func pathFor(address string) (cip.EPath, error) {
	path, err := cip.NewPath().Symbol(address).Build()
	if err != nil {
		return nil, cip.InvalidAddress(address, err)
	}
	return path, nil
}

func (c *Client) readElements(ctx context.Context, address string, count uint16) ([]byte, cip.TypeCode, bool, error) {
	path, err := pathFor(address)
	if err != nil {
		return nil, 0, false, err
	}
	req := cip.BuildReadTagRequest(path, count)
	start := time.Now()
	frame, err := c.transact(ctx, req)
	if err != nil {
		c.observeRead(address, err, start)
		if cerr, ok := err.(*cip.Error); ok {
			return nil, 0, false, cerr.WithAddress(address)
		}
		return nil, 0, false, err
	}
	data, typeCode, hasMore, err := cip.DecodeReadResponse(frame)
	c.observeRead(address, err, start)
	if err != nil {
		if cerr, ok := err.(*cip.Error); ok {
			return nil, 0, false, cerr.WithAddress(address)
		}
		return nil, 0, false, err
	}
	return data, typeCode, hasMore, nil
}

func (c *Client) writeElements(ctx context.Context, address string, typeCode cip.TypeCode, count uint16, value []byte) error {
	path, err := pathFor(address)
	if err != nil {
		return err
	}
	req := cip.BuildWriteTagRequest(path, typeCode, count, value)
	start := time.Now()
	frame, err := c.transact(ctx, req)
	if err != nil {
		werr := err
		c.observeWrite(address, werr, start)
		if cerr, ok := werr.(*cip.Error); ok {
			return cerr.WithAddress(address)
		}
		return werr
	}
	err = cip.DecodeWriteResponse(frame)
	c.observeWrite(address, err, start)
	if cerr, ok := err.(*cip.Error); ok {
		return cerr.WithAddress(address)
	}
	return err
}

func (c *Client) observeRead(address string, err error, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveRead(address, err, time.Since(start))
	}
}

func (c *Client) observeWrite(address string, err error, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveWrite(address, err, time.Since(start))
	}
}

// ReadFloat reads a scalar REAL tag.
func (c *Client) ReadFloat(ctx context.Context, address string) (float32, error) {
	data, _, _, err := c.readElements(ctx, address, 1)
	if err != nil {
		return 0, err
	}
	if len(data) < 4 {
		return 0, cip.TruncatedResponse(nil).WithAddress(address)
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(data[:4])), nil
}

// WriteFloat writes a scalar REAL tag.
func (c *Client) WriteFloat(ctx context.Context, address string, v float32) error {
	value := make([]byte, 4)
	binary.LittleEndian.PutUint32(value, math.Float32bits(v))
	return c.writeElements(ctx, address, cip.TypeREAL, 1, value)
}

// ReadFloatArray reads count REAL elements starting at address,
// chunked per the 124-element read policy.
func (c *Client) ReadFloatArray(ctx context.Context, address string, count int) ([]float32, error) {
	raw, err := c.readChunked(ctx, address, count, 4)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

// WriteFloatArray writes xs starting at address, chunked per the
// 490-element adaptive-shrink write policy.
func (c *Client) WriteFloatArray(ctx context.Context, address string, xs []float32) error {
	raw := make([]byte, len(xs)*4)
	for i, v := range xs {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return c.writeChunked(ctx, address, raw, 4, cip.TypeREAL)
}

// ReadDINTArray reads count 32-bit signed integers.
func (c *Client) ReadDINTArray(ctx context.Context, address string, count int) ([]int32, error) {
	raw, err := c.readChunked(ctx, address, count, 4)
	if err != nil {
		return nil, err
	}
	out := make([]int32, len(raw)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

// WriteDINTArray writes xs starting at address.
func (c *Client) WriteDINTArray(ctx context.Context, address string, xs []int32) error {
	raw := make([]byte, len(xs)*4)
	for i, v := range xs {
		binary.LittleEndian.PutUint32(raw[i*4:], uint32(v))
	}
	return c.writeChunked(ctx, address, raw, 4, cip.TypeDINT)
}

// WriteBool writes a scalar BOOL tag, or routes to the bit access
// engine when address carries an explicit bit selector.
func (c *Client) WriteBool(ctx context.Context, address string, v bool) error {
	parsed, err := addr.Parse(address)
	if err != nil {
		return cip.InvalidAddress(address, err)
	}
	if parsed.BitAccess != nil {
		return c.writeBit(ctx, parsed.BitAccess.HostAddress, parsed.BitAccess.BitIndex, v)
	}
	if base, idx, ok := addr.ParseBit(address); ok {
		return c.writeBit(ctx, base, idx, v)
	}
	return c.writeElements(ctx, address, cip.TypeBOOL, 1, cip.BoolPayload(v))
}

// ReadBoolArray reads count boolean values from address. When address
// is bit-access or unindexed, the returned data is interpreted as
// bit-packed; when address ends with "[N]" (plain array form), each
// returned byte is one boolean element.
func (c *Client) ReadBoolArray(ctx context.Context, address string, count int) ([]bool, error) {
	parsed, err := addr.Parse(address)
	if err != nil {
		return nil, cip.InvalidAddress(address, err)
	}
	if parsed.BitAccess != nil {
		return c.readBits(ctx, parsed.BitAccess.HostAddress, parsed.BitAccess.BitIndex, count)
	}
	if _, _, ok := addr.ParseBit(address); !ok {
		return c.readBits(ctx, address, 0, count)
	}
	data, _, _, err := c.readElements(ctx, address, uint16(count))
	if err != nil {
		return nil, err
	}
	out := make([]bool, 0, len(data))
	for _, b := range data {
		out = append(out, b != 0)
	}
	return out, nil
}

// WriteBoolArray writes a BOOL array in one service, one byte (0xFF or
// 0x00) per element, with a trailing pad byte if the element count is
// odd.
func (c *Client) WriteBoolArray(ctx context.Context, address string, xs []bool) error {
	value := make([]byte, 0, len(xs)+1)
	for _, v := range xs {
		if v {
			value = append(value, 0xFF)
		} else {
			value = append(value, 0x00)
		}
	}
	if len(xs)%2 != 0 {
		value = append(value, 0x00)
	}
	return c.writeElements(ctx, address, cip.TypeBOOL, uint16(len(xs)), value)
}

// ReadStringArray reads count STRING elements. A single unindexed
// scalar read is used when count == 1 and address is not already
// indexed; otherwise one request per element.
func (c *Client) ReadStringArray(ctx context.Context, address string, count int) ([]string, error) {
	if count <= 1 {
		if _, _, ok := addr.ParseBit(address); !ok {
			data, _, _, err := c.readElements(ctx, address, 1)
			if err != nil {
				return nil, err
			}
			return []string{DecodeString(data)}, nil
		}
	}
	base, start := addr.ParseArrayStart(address)
	out := make([]string, count)
	for i := 0; i < count; i++ {
		elemAddr := addr.NormalizeArrayName(base, start+uint32(i))
		data, _, _, err := c.readElements(ctx, elemAddr, 1)
		if err != nil {
			return nil, err
		}
		out[i] = DecodeString(data)
	}
	return out, nil
}

// WriteString writes a scalar STRING tag.
func (c *Client) WriteString(ctx context.Context, address string, s string) error {
	return c.writeElements(ctx, address, cip.TypeSTRING, 1, EncodeString(s))
}

// WriteStringArray writes one request per string element.
func (c *Client) WriteStringArray(ctx context.Context, address string, xs []string) error {
	base, start := addr.ParseArrayStart(address)
	for i, s := range xs {
		elemAddr := addr.NormalizeArrayName(base, start+uint32(i))
		if err := c.writeElements(ctx, elemAddr, cip.TypeSTRING, 1, EncodeString(s)); err != nil {
			return err
		}
	}
	return nil
}
