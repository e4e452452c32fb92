package plinkbgen

import (
	"bytes"
	"io"

	"github.com/carbocation/pfx"
	"github.com/klauspost/compress/zlib"
)

type zlibCompressor struct {
	buf bytes.Buffer
}

func newZLIBCompressor() *zlibCompressor {
	return &zlibCompressor{}
}

func (c *zlibCompressor) Compress(src []byte) ([]byte, error) {
	c.buf.Reset()

	zw := zlib.NewWriter(&c.buf)
	if _, err := zw.Write(src); err != nil {
		return nil, pfx.Err(err)
	}
	if err := zw.Close(); err != nil {
		return nil, pfx.Err(err)
	}

	// The caller may retain the result past the next Compress call.
	out := make([]byte, c.buf.Len())
	copy(out, c.buf.Bytes())

	return out, nil
}

// DecompressZLIB inflates a zlib stream.
func DecompressZLIB(src []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}
