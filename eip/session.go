// Package eip owns the TCP/44818 encapsulation session: dialing,
// RegisterSession/UnRegisterSession, and framing SendRRData requests
// and responses. It has no knowledge of tag semantics; cipclient calls
// down into it with already-built CIP service bodies from the cip
// package and gets back the raw reply frame to decode.
package eip

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/plcgo/goenip/cip"
	"github.com/plcgo/goenip/logx"
)

// Session owns one encapsulation session to a single target. All
// exported methods are safe for concurrent use; requests are
// serialized internally because CIP explicit messaging over a single
// TCP session is inherently single-flight (one outstanding request at
// a time, matched by arrival order, not by sender context).
type Session struct {
	addr    string
	dialer  net.Dialer
	timeout time.Duration
	log     logx.Logger

	mu            sync.Mutex
	conn          net.Conn
	sessionHandle uint32
	nextContext   uint64
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithTimeout sets the per-request read/write deadline. Zero means no
// deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithLogger injects a logger; the default discards all output.
func WithLogger(l logx.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds a Session targeting addr ("host:44818"). It does not dial
// until Connect, EnsureConnected or the first Transact is called.
func New(addr string, opts ...Option) *Session {
	s := &Session{
		addr:    addr,
		timeout: 5 * time.Second,
		log:     logx.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connected reports whether a session handle is currently held.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && s.sessionHandle != 0
}

// Connect dials the target and performs RegisterSession. Calling
// Connect while already connected is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

// EnsureConnected is Connect under another name for callers (the
// reconnect circuit breaker) that want to wrap only the dial/
// RegisterSession step, not the request/reply path Transact also
// covers. It is a no-op, and so always cheap and successful, whenever
// the session is already connected.
func (s *Session) EnsureConnected(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

func (s *Session) connectLocked(ctx context.Context) error {
	if s.conn != nil && s.sessionHandle != 0 {
		return nil
	}
	conn, err := s.dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return cip.ConnectFailed(err)
	}
	s.conn = conn

	handle, err := s.registerSessionLocked(ctx)
	if err != nil {
		// transact already tore the connection down on a transport
		// error; this is a no-op in that case and only does real work
		// when RegisterSession transacted fine but returned a non-zero
		// status or no session handle.
		s.closeLocked()
		return err
	}
	s.sessionHandle = handle
	s.log.Infof("eip: session %d registered with %s", handle, s.addr)
	return nil
}

func (s *Session) registerSessionLocked(ctx context.Context) (uint32, error) {
	ctxID := s.nextContextLocked()
	req := cip.BuildRegisterSessionRequest(ctxID)
	frame, err := s.transact(ctx, req)
	if err != nil {
		return 0, err
	}
	return cip.ParseRegisterSessionResponse(frame)
}

// Close performs a best-effort UnRegisterSession and closes the
// connection. It is safe to call on an already-closed Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if s.conn == nil {
		return nil
	}
	if s.sessionHandle != 0 {
		req := cip.BuildUnRegisterSessionRequest(s.sessionHandle, s.nextContextLocked())
		s.applyDeadlineLocked()
		_, _ = s.conn.Write(req) // best effort; no reply expected
	}
	err := s.conn.Close()
	s.conn = nil
	s.sessionHandle = 0
	return err
}

// reconnectLocked tears down and re-establishes the session. Used
// after a retryable encapsulation error.
func (s *Session) reconnectLocked(ctx context.Context) error {
	_ = s.closeLocked()
	return s.connectLocked(ctx)
}

// Transact sends a CIP service body wrapped in SendRRData and returns
// the raw response frame (24-byte encap header included) for the
// caller to decode with cip.DecodeReadResponse / DecodeWriteResponse.
// On a retryable encapsulation status (cip.IsRetryableEncapsulation) it
// reconnects exactly once and retries the same request.
func (s *Session) Transact(ctx context.Context, cipBody []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connectLocked(ctx); err != nil {
		return nil, err
	}

	req := cip.BuildSendRRDataRequest(s.sessionHandle, s.nextContextLocked(), cipBody)
	frame, err := s.transact(ctx, req)
	if err != nil {
		return nil, err
	}

	_, _, status, err := cip.ParseEncapHeader(frame)
	if err != nil {
		return nil, err
	}
	if status != 0 {
		if cip.IsRetryableEncapsulation(status) {
			s.log.Warnf("eip: encapsulation status 0x%X, reconnecting once", status)
			if rerr := s.reconnectLocked(ctx); rerr != nil {
				return nil, rerr
			}
			req = cip.BuildSendRRDataRequest(s.sessionHandle, s.nextContextLocked(), cipBody)
			frame, err = s.transact(ctx, req)
			if err != nil {
				return nil, err
			}
			_, _, status, err = cip.ParseEncapHeader(frame)
			if err != nil {
				return nil, err
			}
			if status != 0 {
				return nil, cip.EncapsulationError(status)
			}
		} else {
			return nil, cip.EncapsulationError(status)
		}
	}
	return frame, nil
}

// transact writes req and reads back one full encapsulation frame,
// honoring both the configured per-request timeout and ctx. The
// connection must already be established. Any failure -- a plain
// socket error, the timeout firing, or ctx being cancelled -- tears
// the session down, per the same-as-timeout cancellation policy: the
// next call always starts from a fresh connectLocked.
func (s *Session) transact(ctx context.Context, req []byte) ([]byte, error) {
	if s.conn == nil {
		return nil, cip.ConnectionClosed(nil)
	}
	conn := s.conn
	s.applyDeadlineLocked()
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}

	type result struct {
		frame []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		frame, err := doTransact(conn, req)
		done <- result{frame, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			s.closeLocked()
			return nil, r.err
		}
		return r.frame, nil
	case <-ctx.Done():
		// Force the in-flight read/write to unblock, then wait for the
		// goroutine to actually stop touching conn before tearing the
		// session down -- SetDeadline is safe to call concurrently with
		// a blocked Read/Write, but closeLocked mutating s.conn is not.
		conn.SetDeadline(time.Now())
		<-done
		s.closeLocked()
		return nil, cip.Cancelled(ctx.Err())
	}
}

// doTransact performs the blocking write/read pair against conn. It
// never touches Session state so it can run on a goroutine the caller
// races against ctx.Done() without synchronization beyond conn itself.
func doTransact(conn net.Conn, req []byte) ([]byte, error) {
	if _, err := conn.Write(req); err != nil {
		return nil, classifyIOError(err)
	}

	header := make([]byte, 24)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, classifyIOError(err)
	}
	dataLen := binary.LittleEndian.Uint16(header[2:4])
	body := make([]byte, dataLen)
	if dataLen > 0 {
		if _, err := io.ReadFull(conn, body); err != nil {
			return nil, classifyIOError(err)
		}
	}
	return append(header, body...), nil
}

func (s *Session) applyDeadlineLocked() {
	if s.conn == nil || s.timeout <= 0 {
		return
	}
	s.conn.SetDeadline(time.Now().Add(s.timeout))
}

func (s *Session) nextContextLocked() uint64 {
	return atomic.AddUint64(&s.nextContext, 1)
}

func classifyIOError(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return cip.Timeout(err)
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return cip.ConnectionClosed(err)
	}
	return fmt.Errorf("eip: transport: %w", err)
}
