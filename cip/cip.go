package cip

import "encoding/binary"

// Encapsulation commands used by this client (ODVA Vol2 Table 2-3.2).
const (
	CmdRegisterSession   uint16 = 0x65
	CmdUnRegisterSession uint16 = 0x66
	CmdSendRRData        uint16 = 0x6F
)

// CPF item type IDs.
const (
	itemNullAddress     uint16 = 0x0000
	itemUnconnectedData uint16 = 0x00B2
)

// CIP service codes this client emits and recognizes in replies.
const (
	ServiceReadTag         byte = 0x4C
	ServiceWriteTag        byte = 0x4D
	ServiceUnconnectedSend byte = 0x52

	replyMask = 0x80
)

// Reply service bytes observed on success.
const (
	ReplyReadTag        = ServiceReadTag | replyMask  // 0xCC
	ReplyWriteTag       = ServiceWriteTag | replyMask // 0xCD
	replyWriteWithType  = 0xCE
	replyWriteFragment  = 0xD3
	replyMultiService   = 0x8A
)

// BuildEncapHeader serializes the 24-byte encapsulation header followed
// by data, little-endian throughout.
func BuildEncapHeader(command uint16, sessionHandle uint32, context uint64, data []byte) []byte {
	out := make([]byte, 0, 24+len(data))
	out = binary.LittleEndian.AppendUint16(out, command)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(data)))
	out = binary.LittleEndian.AppendUint32(out, sessionHandle)
	out = binary.LittleEndian.AppendUint32(out, 0) // status, always 0 on a request
	ctx := make([]byte, 8)
	binary.LittleEndian.PutUint64(ctx, context)
	out = append(out, ctx...)
	out = binary.LittleEndian.AppendUint32(out, 0) // options
	out = append(out, data...)
	return out
}

// BuildRegisterSessionRequest builds a RegisterSession request frame.
// protocol_version=1, options=0, per spec.
func BuildRegisterSessionRequest(context uint64) []byte {
	body := []byte{0x01, 0x00, 0x00, 0x00}
	return BuildEncapHeader(CmdRegisterSession, 0, context, body)
}

// BuildUnRegisterSessionRequest builds a best-effort session teardown frame.
func BuildUnRegisterSessionRequest(sessionHandle uint32, context uint64) []byte {
	return BuildEncapHeader(CmdUnRegisterSession, sessionHandle, context, nil)
}

// BuildSendRRDataRequest wraps a CIP message in the SendRRData command:
// interface_handle=0, timeout=10, two CPF items (Null Address,
// Unconnected Data carrying cipBody).
func BuildSendRRDataRequest(sessionHandle uint32, context uint64, cipBody []byte) []byte {
	body := make([]byte, 0, 8+4+4+len(cipBody))
	body = binary.LittleEndian.AppendUint32(body, 0)  // interface handle
	body = binary.LittleEndian.AppendUint16(body, 10) // timeout
	body = binary.LittleEndian.AppendUint16(body, 2)  // item count

	body = binary.LittleEndian.AppendUint16(body, itemNullAddress)
	body = binary.LittleEndian.AppendUint16(body, 0)

	body = binary.LittleEndian.AppendUint16(body, itemUnconnectedData)
	body = binary.LittleEndian.AppendUint16(body, uint16(len(cipBody)))
	body = append(body, cipBody...)

	return BuildEncapHeader(CmdSendRRData, sessionHandle, context, body)
}

// BuildUnconnectedSend wraps an embedded CIP request (service bytes
// already including its own path) for delivery through the Connection
// Manager, per spec: service 0x52, path 0x20 0x06 0x24 0x01, priority
// tick 0x0A, timeout ticks 0x00F0, message length, message bytes
// (even-padded), route path word count, route path bytes.
func BuildUnconnectedSend(embedded []byte, routePath []byte) []byte {
	out := make([]byte, 0, 8+len(embedded)+2+len(routePath))
	out = append(out, ServiceUnconnectedSend)
	out = append(out, 0x02)                   // path size in words
	out = append(out, 0x20, 0x06, 0x24, 0x01) // Connection Manager, class 6 instance 1
	out = append(out, 0x0A)                   // priority / time tick
	out = append(out, 0xF0, 0x00)             // timeout ticks (u16, little-endian)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(embedded)))
	out = append(out, embedded...)
	if len(embedded)%2 != 0 {
		out = append(out, 0x00)
	}
	out = append(out, byte(len(routePath)/2))
	out = append(out, routePath...)
	return out
}

// BuildReadTagRequest builds the Read Tag (0x4C) service body.
func BuildReadTagRequest(path EPath, elementCount uint16) []byte {
	out := make([]byte, 0, 2+len(path)+2)
	out = append(out, ServiceReadTag)
	out = append(out, path.WordLen())
	out = append(out, path...)
	out = binary.LittleEndian.AppendUint16(out, elementCount)
	return out
}

// BuildWriteTagRequest builds the Write Tag (0x4D) service body. A
// single trailing pad byte is emitted iff writing one BOOL element
// with an odd-length value, matching the spec's padding rule.
func BuildWriteTagRequest(path EPath, typeCode TypeCode, elementCount uint16, value []byte) []byte {
	out := make([]byte, 0, 2+len(path)+4+len(value)+1)
	out = append(out, ServiceWriteTag)
	out = append(out, path.WordLen())
	out = append(out, path...)
	out = binary.LittleEndian.AppendUint16(out, uint16(typeCode))
	out = binary.LittleEndian.AppendUint16(out, elementCount)
	out = append(out, value...)
	if typeCode == TypeBOOL && elementCount == 1 && len(value)%2 != 0 {
		out = append(out, 0x00)
	}
	return out
}

// BoolPayload returns the two-byte pattern the Write Tag service uses
// for a scalar BOOL value: {0xFF,0xFF} for true, {0,0} for false.
func BoolPayload(v bool) []byte {
	if v {
		return []byte{0xFF, 0xFF}
	}
	return []byte{0x00, 0x00}
}
