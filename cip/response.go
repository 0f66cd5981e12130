package cip

import "encoding/binary"

// ParseEncapHeader validates and decodes the 24-byte encapsulation
// header at the start of frame. It returns the declared status
// regardless of value; callers decide whether a non-zero status is
// fatal or retryable via IsRetryableEncapsulation.
func ParseEncapHeader(frame []byte) (command uint16, sessionHandle uint32, status uint32, err error) {
	if len(frame) < 24 {
		return 0, 0, 0, TruncatedResponse(nil)
	}
	command = binary.LittleEndian.Uint16(frame[0:2])
	sessionHandle = binary.LittleEndian.Uint32(frame[4:8])
	status = binary.LittleEndian.Uint32(frame[8:12])
	return command, sessionHandle, status, nil
}

// ParseRegisterSessionResponse extracts the session handle assigned
// by RegisterSession. A non-zero encapsulation status is returned as
// an EncapsulationError, and a zero session handle is treated as
// failure.
func ParseRegisterSessionResponse(frame []byte) (uint32, error) {
	_, session, status, err := ParseEncapHeader(frame)
	if err != nil {
		return 0, err
	}
	if status != 0 {
		return 0, EncapsulationError(status)
	}
	if session == 0 {
		return 0, ConnectFailed(nil)
	}
	return session, nil
}

// Fixed byte offsets into the raw response frame (24-byte encap
// header + SendRRData body containing exactly one Null Address item
// and one Unconnected Data item with no additional status words).
const (
	offUnconnectedItemLen = 38
	offReplyService       = 40
	offGeneralStatus      = 42
	offAddlStatusSize     = 43
	offTypeCode           = 44
	offData               = 46
)

// DecodeWriteResponse validates a Write Tag reply. Length must be at
// least 43 bytes; the reply service must be one of the recognized
// write-reply bytes; general status must be 0.
func DecodeWriteResponse(frame []byte) error {
	if len(frame) < 43 {
		return TruncatedResponse(nil)
	}
	replyService := frame[offReplyService]
	status := frame[offGeneralStatus]

	switch replyService {
	case ReplyWriteTag, replyWriteWithType, replyWriteFragment:
	default:
		return UnsupportedService(replyService)
	}

	if status != 0 {
		return WriteFailed(status, extendedStatus(frame))
	}
	return nil
}

// DecodeReadResponse validates and extracts the payload of a Read Tag
// reply: (data, type_code, has_more).
func DecodeReadResponse(frame []byte) (data []byte, typeCode TypeCode, hasMore bool, err error) {
	if len(frame) < 44 {
		return nil, 0, false, TruncatedResponse(nil)
	}
	replyService := frame[offReplyService]
	if replyService == replyMultiService {
		return nil, 0, false, UnsupportedService(replyService)
	}
	if replyService != ReplyReadTag {
		return nil, 0, false, UnsupportedService(replyService)
	}

	status := frame[offGeneralStatus]
	switch status {
	case 0:
		// complete
	case 6:
		hasMore = true
	default:
		return nil, 0, false, ReadFailed(status, extendedStatus(frame))
	}

	if len(frame) < offTypeCode+2 {
		return nil, 0, false, TruncatedResponse(nil)
	}
	typeCode = TypeCode(binary.LittleEndian.Uint16(frame[offTypeCode : offTypeCode+2]))

	if len(frame) < offUnconnectedItemLen+2 {
		return nil, 0, false, TruncatedResponse(nil)
	}
	itemLen := int(binary.LittleEndian.Uint16(frame[offUnconnectedItemLen : offUnconnectedItemLen+2]))
	dataLen := itemLen - 6
	if dataLen < 0 {
		dataLen = 0
	}
	end := offData + dataLen
	if end > len(frame) {
		end = len(frame)
	}
	if offData > len(frame) {
		return nil, typeCode, hasMore, nil
	}
	return frame[offData:end], typeCode, hasMore, nil
}

// extendedStatus pulls the first extended status word, if present,
// out of a decoded error reply. On an error reply there is no type
// code field; the first additional status word occupies the bytes
// that would otherwise hold it.
func extendedStatus(frame []byte) uint16 {
	if len(frame) <= offAddlStatusSize {
		return 0
	}
	addlSize := frame[offAddlStatusSize]
	if addlSize < 1 || len(frame) < offTypeCode+2 {
		return 0
	}
	return binary.LittleEndian.Uint16(frame[offTypeCode : offTypeCode+2])
}
