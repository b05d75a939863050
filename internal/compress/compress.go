// Package compress owns payload codecs and the registry used to negotiate them.
//
// Ownership boundary:
// - codec contract and wire type identifiers
// - registry and advertisement parsing
// - klauspost/compress backed codecs
package compress

import (
	"errors"
	"fmt"
)

// Type is the wire-visible codec identifier.
type Type uint8

const (
	None Type = iota
	Zstd
	S2
	Deflate
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case S2:
		return "s2"
	case Deflate:
		return "deflate"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

var (
	ErrCompress       = errors.New("compress: compress failed")
	ErrDecompress     = errors.New("compress: decompress failed")
	ErrUnknownCodec   = errors.New("compress: unknown codec")
	ErrInvalidCodec   = errors.New("compress: invalid codec")
	ErrDuplicateCodec = errors.New("compress: duplicate codec")
)

// Codec transforms payloads for one connection. Returned slices alias the
// codec's working buffers and stay valid until the next call on the same codec.
type Codec interface {
	Name() string
	Type() Type
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// Factory builds independent codec instances.
type Factory interface {
	Name() string
	Type() Type
	New() (Codec, error)
}

// Options tunes the bundled codecs.
type Options struct {
	// Level is codec specific; zero picks each codec's default.
	Level int
	// MaxDecodedSize bounds decompressed output.
	MaxDecodedSize int
}

func DefaultOptions() Options {
	return Options{
		MaxDecodedSize: 16 * 1024 * 1024,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxDecodedSize <= 0 {
		o.MaxDecodedSize = DefaultOptions().MaxDecodedSize
	}
	return o
}

type factory struct {
	name  string
	typ   Type
	build func() (Codec, error)
}

func (f factory) Name() string        { return f.name }
func (f factory) Type() Type          { return f.typ }
func (f factory) New() (Codec, error) { return f.build() }

// NewFactory wraps a constructor as a Factory.
func NewFactory(name string, typ Type, build func() (Codec, error)) Factory {
	return factory{name: name, typ: typ, build: build}
}

func compressErr(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCompress, name, err)
}

func decompressErr(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDecompress, name, err)
}
