package packet

import "fmt"

// Packet error codes. Metadata bounds, closed-set membership and
// envelope-level failures all surface as a PacketError carrying one of
// these.
const (
	ErrCodeFieldTooLong       = "FIELD_TOO_LONG"
	ErrCodeUnknownMsgType     = "UNKNOWN_MSG_TYPE"
	ErrCodeUnknownCompression = "UNKNOWN_COMPRESSION"
	ErrCodeCompressionFailed  = "COMPRESSION_FAILED"
	ErrCodeCannotEncodeError  = "CANNOT_ENCODE_ERROR"
	ErrCodeChecksumMismatch   = "CHECKSUM_MISMATCH"
	ErrCodeBadEnvelope        = "BAD_ENVELOPE"
	ErrCodeTooLarge           = "TOO_LARGE"
	ErrCodePartMismatch       = "PART_MISMATCH"
)

// PacketError reports a packet-level defect.
type PacketError struct {
	Code   string
	Detail string
	cause  error
}

func (e *PacketError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("packet error %s: %s: %v", e.Code, e.Detail, e.cause)
	}
	return fmt.Sprintf("packet error %s: %s", e.Code, e.Detail)
}

func (e *PacketError) Unwrap() error { return e.cause }

func newPacketError(code, format string, args ...interface{}) *PacketError {
	return &PacketError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

func wrapPacketError(code, detail string, cause error) *PacketError {
	return &PacketError{Code: code, Detail: detail, cause: cause}
}
