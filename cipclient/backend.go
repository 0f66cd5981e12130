package cipclient

import (
	"context"

	"github.com/plcgo/goenip/cip"
	"github.com/plcgo/goenip/tagio"
)

// ReadTag implements tagio.Backend by issuing a raw Read Tag service
// call and returning the decoded type code and payload verbatim,
// without interpreting it as any particular Go type. Typed callers
// should prefer the ReadFloat/ReadDINTArray/etc. methods above; this
// exists for callers (the telemetry poller, the HTTP API) that only
// know the address string at runtime.
func (c *Client) ReadTag(ctx context.Context, address string, count int) (tagio.Value, error) {
	data, typeCode, _, err := c.readElements(ctx, address, uint16(count))
	if err != nil {
		return tagio.Value{}, err
	}
	return tagio.Value{TypeCode: uint16(typeCode), Data: data}, nil
}

// WriteTag implements tagio.Backend.
func (c *Client) WriteTag(ctx context.Context, address string, value tagio.Value) error {
	return c.writeElements(ctx, address, cip.TypeCode(value.TypeCode), 1, value.Data)
}

var _ tagio.Backend = (*Client)(nil)
