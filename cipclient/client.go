// Package cipclient is the typed tag façade: it turns address strings
// and Go values into CIP Read/Write Tag service calls over an eip
// session, handling route-path wrapping, chunked array transfer, bit
// access, and string encoding along the way.
package cipclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/plcgo/goenip/cip"
	"github.com/plcgo/goenip/eip"
	"github.com/plcgo/goenip/logx"
)

// Client is a tag-level handle to one PLC target. A Client owns
// exactly one eip.Session; concurrent callers serialize on that
// session's internal mutex.
type Client struct {
	session   *eip.Session
	routePath []byte
	timeout   time.Duration
	log       logx.Logger
	metrics   MetricsRecorder
	breaker   Breaker
}

// MetricsRecorder receives counts for read/write attempts and
// outcomes. The domain-stack metrics package implements this; tests
// and callers that don't care about metrics can leave it nil.
type MetricsRecorder interface {
	ObserveRead(address string, err error, d time.Duration)
	ObserveWrite(address string, err error, d time.Duration)
}

// Breaker wraps a reconnect attempt so repeated failures against an
// unreachable target fail fast instead of retrying the full dial
// timeout on every call. The domain-stack reconnect package
// implements this with sony/gobreaker; nil means no breaker.
type Breaker interface {
	Execute(func() error) error
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithRoutePath sets the backplane route path from a token string,
// e.g. "1,0" or "0x01;0x00". Tokens are decimal or 0x-prefixed hex
// byte values. An empty or malformed path falls back to the default
// [1, 0].
func WithRoutePath(path string) Option {
	return func(c *Client) { c.routePath = parseRoutePath(path) }
}

// WithTimeout sets the per-request timeout (default 5s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger injects a logger used for warnings and errors; never
// called from a hot loop.
func WithLogger(l logx.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics attaches a MetricsRecorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBreaker attaches a circuit breaker around session reconnects.
func WithBreaker(b Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// New builds a Client targeting ip ("host" or "host:port"; port
// defaults to 44818). It does not connect until the first operation.
func New(ip string, opts ...Option) (*Client, error) {
	if ip == "" {
		return nil, fmt.Errorf("cipclient.New: empty ip")
	}
	if !strings.Contains(ip, ":") {
		ip = ip + ":44818"
	}

	c := &Client{
		routePath: []byte{0x01, 0x00},
		timeout:   5 * time.Second,
		log:       logx.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.session = eip.New(ip, eip.WithTimeout(c.timeout), eip.WithLogger(c.log))
	return c, nil
}

func parseRoutePath(path string) []byte {
	path = strings.TrimSpace(path)
	if path == "" {
		return []byte{0x01, 0x00}
	}
	fields := strings.FieldsFunc(path, func(r rune) bool { return r == ',' || r == ';' })
	if len(fields) == 0 {
		return []byte{0x01, 0x00}
	}
	out := make([]byte, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		base := 10
		if strings.HasPrefix(strings.ToLower(f), "0x") {
			base = 16
			f = f[2:]
		}
		n, err := strconv.ParseUint(f, base, 16)
		if err != nil || n > 255 {
			return []byte{0x01, 0x00}
		}
		out = append(out, byte(n))
	}
	return out
}

// Close tears down the underlying session (best-effort UnRegisterSession).
func (c *Client) Close() error {
	return c.session.Close()
}

// transact sends a CIP service body and returns the raw reply frame,
// wrapping it in Unconnected Send against the configured route path.
// Only the session's reconnect step runs through the optional
// breaker; an ordinary read/write failure on an otherwise-healthy
// connection never counts toward tripping it. A refusal from the
// breaker itself surfaces as ConnectFailed.
func (c *Client) transact(ctx context.Context, cipBody []byte) ([]byte, error) {
	if c.breaker != nil {
		if err := c.breaker.Execute(func() error { return c.session.EnsureConnected(ctx) }); err != nil {
			if _, ok := err.(*cip.Error); !ok {
				err = cip.ConnectFailed(err)
			}
			return nil, err
		}
	}
	wrapped := cip.BuildUnconnectedSend(cipBody, c.routePath)
	return c.session.Transact(ctx, wrapped)
}
