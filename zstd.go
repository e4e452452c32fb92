package plinkbgen

import (
	"github.com/carbocation/pfx"
	"github.com/klauspost/compress/zstd"
)

type zstdCompressor struct {
	enc *zstd.Encoder
}

func newZStandardCompressor() (*zstdCompressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, pfx.Err(err)
	}

	return &zstdCompressor{enc: enc}, nil
}

// Compress returns src compressed as a single zstd frame. The encoder is
// stateless across calls, so the result depends only on src.
func (c *zstdCompressor) Compress(src []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, nil), nil
}

// DecompressZStandard decompresses a zstd frame. If dst is non-nil it is used
// as the destination buffer when large enough.
func DecompressZStandard(dst, src []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(src, dst[:0])
	if err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}
