package cip

import "fmt"

// Kind is the error taxonomy callers are expected to switch on,
// rather than matching on error text.
type Kind int

const (
	KindInvalidAddress Kind = iota
	KindTimeout
	KindCancelled
	KindConnectFailed
	KindConnectionClosed
	KindEncapsulation
	KindReadFailed
	KindWriteFailed
	KindTruncatedResponse
	KindUnsupportedService
)

func (k Kind) String() string {
	switch k {
	case KindInvalidAddress:
		return "InvalidAddress"
	case KindTimeout:
		return "Timeout"
	case KindCancelled:
		return "Cancelled"
	case KindConnectFailed:
		return "ConnectFailed"
	case KindConnectionClosed:
		return "ConnectionClosed"
	case KindEncapsulation:
		return "EncapsulationError"
	case KindReadFailed:
		return "ReadFailed"
	case KindWriteFailed:
		return "WriteFailed"
	case KindTruncatedResponse:
		return "TruncatedResponse"
	case KindUnsupportedService:
		return "UnsupportedService"
	default:
		return "Unknown"
	}
}

// Error is the single typed failure surfaced to callers of this
// client. Code carries the encapsulation status or CIP general status
// for the Kinds that have one; Address carries the tag address the
// failing operation was acting on, when known.
type Error struct {
	Kind    Kind
	Code    uint32
	Address string
	err     error
}

func (e *Error) Error() string {
	if e.Address != "" {
		if e.err != nil {
			return fmt.Sprintf("%s (0x%X) for %q: %v", e.Kind, e.Code, e.Address, e.err)
		}
		return fmt.Sprintf("%s (0x%X) for %q", e.Kind, e.Code, e.Address)
	}
	if e.err != nil {
		return fmt.Sprintf("%s (0x%X): %v", e.Kind, e.Code, e.err)
	}
	return fmt.Sprintf("%s (0x%X)", e.Kind, e.Code)
}

func (e *Error) Unwrap() error { return e.err }

func newErr(kind Kind, code uint32, cause error) *Error {
	return &Error{Kind: kind, Code: code, err: cause}
}

func InvalidAddress(address string, cause error) *Error {
	return &Error{Kind: KindInvalidAddress, Address: address, err: cause}
}

func Timeout(cause error) *Error              { return newErr(KindTimeout, 0, cause) }
func Cancelled(cause error) *Error            { return newErr(KindCancelled, 0, cause) }
func ConnectFailed(cause error) *Error        { return newErr(KindConnectFailed, 0, cause) }
func ConnectionClosed(cause error) *Error      { return newErr(KindConnectionClosed, 0, cause) }
func TruncatedResponse(cause error) *Error    { return newErr(KindTruncatedResponse, 0, cause) }
func UnsupportedService(service byte) *Error {
	return newErr(KindUnsupportedService, uint32(service), nil)
}

// EncapsulationError wraps a non-zero encapsulation status.
func EncapsulationError(status uint32) *Error {
	return &Error{Kind: KindEncapsulation, Code: status}
}

// ReadFailed wraps a CIP general status (plus optional extended
// status folded into Code's low 16 bits when present) for a failed
// read.
func ReadFailed(status byte, extStatus uint16) *Error {
	return &Error{Kind: KindReadFailed, Code: uint32(status)<<16 | uint32(extStatus)}
}

// WriteFailed is the write-side counterpart of ReadFailed.
func WriteFailed(status byte, extStatus uint16) *Error {
	return &Error{Kind: KindWriteFailed, Code: uint32(status)<<16 | uint32(extStatus)}
}

// IsRetryableEncapsulation reports whether an encapsulation status
// code belongs to the "stale/oversize" class that triggers exactly
// one reconnect-and-retry. The set is fixed at {3, 101} per the
// resolved open question in the design notes; it is not widened
// speculatively.
func IsRetryableEncapsulation(status uint32) bool {
	return status == 3 || status == 101
}

// WithAddress attaches an address to an existing error for
// propagation policy ("errors for each surfaced failure with the
// originating address attached").
func (e *Error) WithAddress(address string) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Address = address
	return &cp
}
