package frame

import "fmt"

// Opcode is the 4-bit frame type.
type Opcode uint8

// Numbering follows RFC 6455; System takes the continuation slot.
const (
	OpcodeSystem Opcode = 0x0
	OpcodeText   Opcode = 0x1
	OpcodeBinary Opcode = 0x2
	OpcodeClose  Opcode = 0x8
	OpcodePing   Opcode = 0x9
	OpcodePong   Opcode = 0xA
)

// Known reports whether c is one of the six defined opcodes.
func (c Opcode) Known() bool {
	switch c {
	case OpcodeSystem, OpcodeText, OpcodeBinary, OpcodeClose, OpcodePing, OpcodePong:
		return true
	default:
		return false
	}
}

// IsControl reports whether frames of this type carry protocol traffic rather than application data.
func (c Opcode) IsControl() bool {
	return c == OpcodeSystem || c >= OpcodeClose
}

func (c Opcode) String() string {
	switch c {
	case OpcodeSystem:
		return "system"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return fmt.Sprintf("opcode(0x%X)", uint8(c))
	}
}

// CloseCode is the 2-byte status carried at the front of a Close payload.
type CloseCode uint16

// Close codes defined in RFC 6455, section 7.4.1.
const (
	CloseNormal          CloseCode = 1000
	CloseGoingAway       CloseCode = 1001
	CloseProtocolError   CloseCode = 1002
	CloseUnsupportedData CloseCode = 1003
	CloseNoStatus        CloseCode = 1005
	CloseAbnormal        CloseCode = 1006
	CloseInvalidPayload  CloseCode = 1007
	ClosePolicyViolation CloseCode = 1008
	CloseMessageTooBig   CloseCode = 1009
	CloseMandatoryExt    CloseCode = 1010
	CloseInternalError   CloseCode = 1011
	CloseServiceRestart  CloseCode = 1012
	CloseTryAgainLater   CloseCode = 1013
)

// Known reports whether c is one of the codes listed above.
func (c CloseCode) Known() bool { return c.Message() != "" }

// Message returns the default reason text sent with c.
func (c CloseCode) Message() string {
	switch c {
	case CloseNormal:
		return "normal closure"
	case CloseGoingAway:
		return "going away"
	case CloseProtocolError:
		return "protocol error"
	case CloseUnsupportedData:
		return "unsupported data"
	case CloseNoStatus:
		return "no status received"
	case CloseAbnormal:
		return "abnormal closure"
	case CloseInvalidPayload:
		return "invalid payload data"
	case ClosePolicyViolation:
		return "policy violation"
	case CloseMessageTooBig:
		return "message too big"
	case CloseMandatoryExt:
		return "mandatory extension"
	case CloseInternalError:
		return "internal error"
	case CloseServiceRestart:
		return "service restart"
	case CloseTryAgainLater:
		return "try again later"
	default:
		return ""
	}
}
