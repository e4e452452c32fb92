package plinkbgen

import (
	"encoding/binary"
	"fmt"

	"github.com/carbocation/pfx"
)

// BlockCodec frames one byte buffer as a self-delimiting block, compressing
// it when a Compressor was selected. With compression disabled the frame is
//
//	uncompressed_size (4 bytes LE) || payload
//
// and with compression enabled
//
//	total_size (4 bytes LE) || uncompressed_size (4 bytes LE) || compressed
//
// where total_size counts the compressed bytes plus the 4-byte
// uncompressed_size field. A compression failure is fatal; the block is
// never silently written uncompressed instead.
type BlockCodec struct {
	compression Compression
	compressor  Compressor

	// Running byte totals across all blocks encoded so far.
	BytesIn  uint64
	BytesOut uint64
}

// NewBlockCodec selects the compressor for the given Compression value.
func NewBlockCodec(c Compression) (*BlockCodec, error) {
	compressor, err := NewCompressor(c)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return &BlockCodec{compression: c, compressor: compressor}, nil
}

// Compression reports the algorithm code the codec was constructed with.
func (bc *BlockCodec) Compression() Compression {
	return bc.compression
}

// Encode frames payload as one block.
func (bc *BlockCodec) Encode(payload []byte) ([]byte, error) {
	bc.BytesIn += uint64(len(payload))

	if bc.compressor == nil {
		frame := make([]byte, 4+len(payload))
		binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
		copy(frame[4:], payload)
		bc.BytesOut += uint64(len(frame))

		return frame, nil
	}

	compressed, err := bc.compressor.Compress(payload)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%w: %s block compression failed: %v", ErrResource, bc.compression, err))
	}

	frame := make([]byte, 8+len(compressed))
	binary.LittleEndian.PutUint32(frame, uint32(len(compressed))+4)
	binary.LittleEndian.PutUint32(frame[4:], uint32(len(payload)))
	copy(frame[8:], compressed)
	bc.BytesOut += uint64(len(frame))

	return frame, nil
}
