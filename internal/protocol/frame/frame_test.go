package frame

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestHeaderEncodeKnownVectors(t *testing.T) {
	cases := []struct {
		name   string
		header Header
		want   []byte
	}{
		{
			name:   "inline 127 rolls to u16",
			header: Header{Fin: true, Compressed: true, Opcode: OpcodePong, Length: 127},
			want:   []byte{0b1100_1010, 126, 0x00, 0x7F},
		},
		{
			name:   "u16 256",
			header: Header{Fin: true, Compressed: true, Opcode: OpcodePong, Length: 256},
			want:   []byte{0b1100_1010, 126, 0x01, 0x00},
		},
		{
			name:   "u16 264",
			header: Header{Fin: true, Compressed: true, Opcode: OpcodePong, Length: 264},
			want:   []byte{0b1100_1010, 126, 0x01, 0x08},
		},
		{
			name:   "u64 55169595",
			header: Header{Fin: true, Compressed: true, Opcode: OpcodePong, Length: 55169595},
			want:   []byte{0b1100_1010, 127, 0, 0, 0, 0, 0x03, 0x49, 0xD2, 0x3B},
		},
		{
			name:   "u64 max",
			header: Header{Fin: true, Compressed: true, Opcode: OpcodePong, Length: math.MaxUint64},
			want:   []byte{0b1100_1010, 127, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
		},
		{
			name:   "reserved bits and close opcode",
			header: Header{Fin: true, Rsv2: true, Rsv3: true, Opcode: OpcodeClose, Length: 124},
			want:   []byte{0b1011_1000, 124},
		},
		{
			name:   "non final system frame",
			header: Header{Opcode: OpcodeSystem, Length: 5},
			want:   []byte{0x00, 5},
		},
	}
	for _, tc := range cases {
		got := tc.header.Encode()
		if !bytes.Equal(got, tc.want) {
			t.Fatalf("%s: encode got=%08b want=%08b", tc.name, got, tc.want)
		}
		if tc.header.Size() != len(tc.want) {
			t.Fatalf("%s: size got=%d want=%d", tc.name, tc.header.Size(), len(tc.want))
		}
		decoded, n, err := Decode(got)
		if err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if n != len(tc.want) || decoded != tc.header {
			t.Fatalf("%s: decode got=%+v n=%d want=%+v", tc.name, decoded, n, tc.header)
		}
	}
}

func TestDecodeCloseHeaderBits(t *testing.T) {
	h, n, err := Decode([]byte{0b1100_1000, 0b0000_0101})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 2 || !h.Fin || !h.Compressed || h.Rsv2 || h.Rsv3 || h.Opcode != OpcodeClose || h.Length != 5 {
		t.Fatalf("unexpected header=%+v n=%d", h, n)
	}
}

func TestLengthRoundTripUsesMinimalSentinel(t *testing.T) {
	lengths := []uint64{
		0, 1, 124, 125,
		126, 127, 255, 256, 1000, math.MaxUint16 - 1, math.MaxUint16,
		math.MaxUint16 + 1, 1 << 32, math.MaxInt64, math.MaxUint64 - 1, math.MaxUint64,
	}
	for _, l := range lengths {
		enc := Header{Fin: true, Opcode: OpcodeBinary, Length: l}.Encode()
		wantSize := 10
		switch {
		case l <= ShortPayload:
			wantSize = 2
		case l <= math.MaxUint16:
			wantSize = 4
		}
		if len(enc) != wantSize {
			t.Fatalf("length=%d encoded size=%d want=%d", l, len(enc), wantSize)
		}
		h, n, err := Decode(enc)
		if err != nil {
			t.Fatalf("length=%d decode: %v", l, err)
		}
		if h.Length != l || n != wantSize {
			t.Fatalf("length=%d decoded=%d n=%d", l, h.Length, n)
		}
		if !bytes.Equal(h.Encode(), enc) {
			t.Fatalf("length=%d re-encode mismatch", l)
		}
	}
}

func TestDecodeTruncatedHeaderNeedsMoreData(t *testing.T) {
	for _, l := range []uint64{3, 300, 1 << 20} {
		enc := Header{Fin: true, Opcode: OpcodeText, Length: l}.Encode()
		for cut := 0; cut < len(enc); cut++ {
			_, n, err := Decode(enc[:cut])
			if !errors.Is(err, ErrNeedMoreData) {
				t.Fatalf("length=%d cut=%d expected ErrNeedMoreData, got %v", l, cut, err)
			}
			if n != 0 {
				t.Fatalf("length=%d cut=%d consumed=%d", l, cut, n)
			}
		}
	}
}

func TestDecodeRejectsNonMinimalLength(t *testing.T) {
	cases := [][]byte{
		{0x81, 126, 0x00, 0x7D},
		{0x81, 127, 0, 0, 0, 0, 0, 0, 0xFF, 0xFF},
		{0x81, 0x80 | 5},
	}
	for i, raw := range cases {
		if _, _, err := Decode(raw); !errors.Is(err, ErrMalformedHeader) {
			t.Fatalf("case %d: expected ErrMalformedHeader, got %v", i, err)
		}
	}
}

func TestDecodeUnknownOpcodeIsNotACodecError(t *testing.T) {
	h, _, err := Decode([]byte{0x83, 0})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Opcode.Known() {
		t.Fatalf("opcode 0x3 should be unknown")
	}
}

func TestEncodeFrameChecksLength(t *testing.T) {
	payload := []byte("hello")
	out, err := Encode(Frame{Header: Header{Fin: true, Opcode: OpcodeSystem, Length: 5}, Payload: payload})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(out, append([]byte{0x80, 5}, payload...)) {
		t.Fatalf("unexpected frame bytes %v", out)
	}
	_, err = Encode(Frame{Header: Header{Length: 4}, Payload: payload})
	if !errors.Is(err, ErrPayloadMismatch) {
		t.Fatalf("expected ErrPayloadMismatch, got %v", err)
	}
}

func TestCloseCodeMessages(t *testing.T) {
	if CloseNormal.Message() != "normal closure" {
		t.Fatalf("unexpected normal message %q", CloseNormal.Message())
	}
	if CloseCode(4000).Message() != "" || CloseCode(4000).Known() {
		t.Fatalf("private codes carry no default reason")
	}
	if !CloseTryAgainLater.Known() || CloseCode(0xFFFF) < CloseNormal {
		t.Fatalf("close codes must span the full 16-bit range")
	}
}
