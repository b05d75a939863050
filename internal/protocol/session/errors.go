package session

import (
	"errors"

	"github.com/danmuck/wsocket/internal/compress"
)

var (
	ErrSysFrame         = errors.New("session: malformed or unknown frame")
	ErrReasonTooLong    = errors.New("session: close reason too long")
	ErrUnexpected       = errors.New("session: unexpected error")
	ErrKeepAliveTimeout = errors.New("session: keep-alive timeout")
	ErrCompress         = compress.ErrCompress
	ErrDecompress       = compress.ErrDecompress
	ErrPayloadTooLong   = errors.New("session: payload too long")
	ErrMessageEmpty     = errors.New("session: message empty")
)

// ErrorCode is the stable numeric form of a session error.
type ErrorCode int

const (
	CodeSuccess ErrorCode = iota
	CodeSysFrame
	CodeReasonTooLong
	CodeUnexpected
	CodeKeepAliveTimeout
	CodeCompress
	CodeDecompress
	CodePayloadTooLong
	CodeMessageEmpty
)

func (c ErrorCode) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeSysFrame:
		return "sys_frame"
	case CodeReasonTooLong:
		return "reason_too_long"
	case CodeKeepAliveTimeout:
		return "keepalive_timeout"
	case CodeCompress:
		return "compress"
	case CodeDecompress:
		return "decompress"
	case CodePayloadTooLong:
		return "payload_too_long"
	case CodeMessageEmpty:
		return "message_empty"
	default:
		return "unexpected"
	}
}

// CodeOf classifies err. Errors outside the taxonomy map to CodeUnexpected.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeSuccess
	case errors.Is(err, ErrSysFrame):
		return CodeSysFrame
	case errors.Is(err, ErrReasonTooLong):
		return CodeReasonTooLong
	case errors.Is(err, ErrKeepAliveTimeout):
		return CodeKeepAliveTimeout
	case errors.Is(err, ErrCompress):
		return CodeCompress
	case errors.Is(err, ErrDecompress):
		return CodeDecompress
	case errors.Is(err, ErrPayloadTooLong):
		return CodePayloadTooLong
	case errors.Is(err, ErrMessageEmpty):
		return CodeMessageEmpty
	default:
		return CodeUnexpected
	}
}
