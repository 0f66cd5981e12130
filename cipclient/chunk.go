package cipclient

import (
	"context"

	"github.com/plcgo/goenip/addr"
	"github.com/plcgo/goenip/cip"
)

// readChunkMax is the largest element count requested per Read Tag
// service for 4-byte elements.
const readChunkMax = 124

// writeChunkStart is the initial element count attempted per Write
// Tag service for 4-byte elements before any adaptive shrink.
const writeChunkStart = 490

// readChunked reads count elements of elemSize bytes starting at
// address, issuing sequential chunk reads of at most readChunkMax
// elements and concatenating the results.
func (c *Client) readChunked(ctx context.Context, address string, count int, elemSize int) ([]byte, error) {
	base, start := addr.ParseArrayStart(address)
	out := make([]byte, 0, count*elemSize)
	copied := 0
	for copied < count {
		remaining := count - copied
		chunkLen := remaining
		if chunkLen > readChunkMax {
			chunkLen = readChunkMax
		}
		chunkAddr := addr.NormalizeArrayName(base, start+uint32(copied))
		data, _, _, err := c.readElements(ctx, chunkAddr, uint16(chunkLen))
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
		copied += chunkLen
	}
	return out, nil
}

// writeChunked writes raw (already little-endian-encoded) element
// bytes starting at address, beginning with writeChunkStart elements
// per service and halving (minimum 1) whenever the transport reports
// a retryable "too large" encapsulation error. Once a chunk size
// succeeds, later chunks in the same call never exceed it.
func (c *Client) writeChunked(ctx context.Context, address string, raw []byte, elemSize int, typeCode cip.TypeCode) error {
	base, start := addr.ParseArrayStart(address)
	totalElems := len(raw) / elemSize
	written := 0
	chunkSize := writeChunkStart

	for written < totalElems {
		remaining := totalElems - written
		attempt := chunkSize
		if attempt > remaining {
			attempt = remaining
		}

		for {
			chunkAddr := addr.NormalizeArrayName(base, start+uint32(written))
			value := raw[written*elemSize : (written+attempt)*elemSize]
			err := c.writeElements(ctx, chunkAddr, typeCode, uint16(attempt), value)
			if err == nil {
				break
			}
			cerr, ok := err.(*cip.Error)
			if !ok || cerr.Kind != cip.KindEncapsulation || !cip.IsRetryableEncapsulation(cerr.Code) {
				return err
			}
			if attempt <= 1 {
				return err
			}
			attempt /= 2
			if attempt < 1 {
				attempt = 1
			}
		}

		written += attempt
		chunkSize = attempt // sticky ceiling: never try larger than what just succeeded
	}
	return nil
}
