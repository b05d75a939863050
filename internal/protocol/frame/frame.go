package frame

import (
	"encoding/binary"
	"errors"
	"math"
)

/*
	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-------+-+-------------+-------------------------------+
	|F|C|R|R| opcode|0| Payload len |    Extended payload length    |
	|I|M|S|S|  (4)  | |     (7)     |             (16/64)           |
	|N|P|V|V|       | |             |   (if payload len==126/127)   |
	+-+-+-+-+-------+-+-------------+ - - - - - - - - - - - - - - - +
	|     Extended payload length continued, if payload len == 127  |
	+---------------------------------------------------------------+
*/

const (
	MinHeaderLen = 2
	MaxHeaderLen = 10

	// ShortPayload is the largest length stored inline in the 7-bit field.
	ShortPayload = 125

	// MaxPayloadLimit is the largest payload a whole frame can hold in one addressable buffer.
	MaxPayloadLimit = math.MaxInt - MaxHeaderLen

	len16Sentinel = 126
	len64Sentinel = 127

	finBit        = 0x80
	compressedBit = 0x40
	rsv2Bit       = 0x20
	rsv3Bit       = 0x10
	opcodeMask    = 0x0F
	lenMask       = 0x7F
	reservedLen   = 0x80
)

var (
	ErrNeedMoreData    = errors.New("frame: need more data")
	ErrMalformedHeader = errors.New("frame: malformed header")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrPayloadMismatch = errors.New("frame: payload length mismatch")
)

// Header is the decoded 2, 4 or 10 byte frame prefix.
type Header struct {
	Fin        bool
	Compressed bool
	Rsv2       bool
	Rsv3       bool
	Opcode     Opcode
	Length     uint64
}

// Frame is one header plus a borrowed view of exactly Header.Length payload bytes.
// Payload aliases the receive buffer and is only valid during the callback that received it.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains inbound frame sizes.
type Limits struct {
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 16 * 1024 * 1024,
	}
}

// Size returns the encoded header length for h.Length.
func (h Header) Size() int {
	switch {
	case h.Length <= ShortPayload:
		return 2
	case h.Length <= math.MaxUint16:
		return 4
	default:
		return 10
	}
}

// Encode returns the minimal-width wire form of h.
func (h Header) Encode() []byte {
	return h.AppendTo(make([]byte, 0, h.Size()))
}

// AppendTo appends the minimal-width wire form of h to dst.
func (h Header) AppendTo(dst []byte) []byte {
	var b0 byte
	if h.Fin {
		b0 |= finBit
	}
	if h.Compressed {
		b0 |= compressedBit
	}
	if h.Rsv2 {
		b0 |= rsv2Bit
	}
	if h.Rsv3 {
		b0 |= rsv3Bit
	}
	b0 |= byte(h.Opcode) & opcodeMask

	switch {
	case h.Length <= ShortPayload:
		return append(dst, b0, byte(h.Length))
	case h.Length <= math.MaxUint16:
		dst = append(dst, b0, len16Sentinel)
		return binary.BigEndian.AppendUint16(dst, uint16(h.Length))
	default:
		dst = append(dst, b0, len64Sentinel)
		return binary.BigEndian.AppendUint64(dst, h.Length)
	}
}

// Decode reads one header from the front of b and reports how many bytes it used.
// ErrNeedMoreData is returned, with nothing consumed, until the whole header is present.
func Decode(b []byte) (Header, int, error) {
	if len(b) < MinHeaderLen {
		return Header{}, 0, ErrNeedMoreData
	}
	b0, b1 := b[0], b[1]
	if b1&reservedLen != 0 {
		return Header{}, 0, ErrMalformedHeader
	}

	h := Header{
		Fin:        b0&finBit != 0,
		Compressed: b0&compressedBit != 0,
		Rsv2:       b0&rsv2Bit != 0,
		Rsv3:       b0&rsv3Bit != 0,
		Opcode:     Opcode(b0 & opcodeMask),
	}

	switch l := b1 & lenMask; l {
	case len16Sentinel:
		if len(b) < 4 {
			return Header{}, 0, ErrNeedMoreData
		}
		h.Length = uint64(binary.BigEndian.Uint16(b[2:4]))
		if h.Length <= ShortPayload {
			return Header{}, 0, ErrMalformedHeader
		}
		return h, 4, nil
	case len64Sentinel:
		if len(b) < 10 {
			return Header{}, 0, ErrNeedMoreData
		}
		h.Length = binary.BigEndian.Uint64(b[2:10])
		if h.Length <= math.MaxUint16 {
			return Header{}, 0, ErrMalformedHeader
		}
		return h, 10, nil
	default:
		h.Length = uint64(l)
		return h, 2, nil
	}
}

// AppendFrame appends header and payload to dst. h.Length is taken from len(payload).
func AppendFrame(dst []byte, h Header, payload []byte) []byte {
	h.Length = uint64(len(payload))
	dst = h.AppendTo(dst)
	return append(dst, payload...)
}

// Encode serializes f into a fresh buffer after checking the declared length.
func Encode(f Frame) ([]byte, error) {
	if f.Header.Length != uint64(len(f.Payload)) {
		return nil, ErrPayloadMismatch
	}
	buf := make([]byte, 0, f.Header.Size()+len(f.Payload))
	return AppendFrame(buf, f.Header, f.Payload), nil
}
