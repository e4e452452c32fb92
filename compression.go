package plinkbgen

import (
	"fmt"

	"github.com/carbocation/pfx"
)

// Compression indicates how (and whether) the per-variant probability block
// is compressed. The numeric values are the codes stored in the file header
// flag word.
type Compression uint32

const (
	CompressionDisabled Compression = iota
	CompressionZLIB
	CompressionZStandard
)

func (c Compression) String() string {
	switch c {
	case CompressionDisabled:
		return "none"
	case CompressionZLIB:
		return "zlib"
	case CompressionZStandard:
		return "zstd"
	}

	return "Illegal selection"
}

// ParseCompression maps a configuration string onto a Compression value.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionDisabled, nil
	case "zlib", "z":
		return CompressionZLIB, nil
	case "zstd":
		return CompressionZStandard, nil
	}

	return CompressionDisabled, pfx.Err(fmt.Errorf("%w: unknown compression %q", ErrConfiguration, s))
}

// Compressor compresses one buffer at a time. Implementations are selected at
// encoder construction and reused for every block; they are not safe for
// concurrent use.
type Compressor interface {
	Compress(src []byte) ([]byte, error)
}

// NewCompressor returns the Compressor for the given selection, or nil for
// CompressionDisabled.
func NewCompressor(c Compression) (Compressor, error) {
	switch c {
	case CompressionDisabled:
		return nil, nil
	case CompressionZLIB:
		return newZLIBCompressor(), nil
	case CompressionZStandard:
		return newZStandardCompressor()
	}

	return nil, pfx.Err(fmt.Errorf("%w: unsupported compression code %d", ErrConfiguration, c))
}
