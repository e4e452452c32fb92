package plinkbgen

import (
	"io"

	"github.com/carbocation/pfx"
)

// GenotypeCode is a fixed-width 2-bit genotype class in the packed matrix
// file. The numeric order is fixed by the target format.
type GenotypeCode uint8

const (
	GenotypeHomRef GenotypeCode = iota
	GenotypeHet
	GenotypeHomAlt
	GenotypeMissing
)

// bitWriter packs 2-bit genotype codes into bytes, four codes per byte, the
// first code in the least-significant bit pair. The only state is the current
// partial byte.
type bitWriter struct {
	writer io.Writer
	byte   byte
	offset byte

	scratch [1]byte
}

func newBitWriter(w io.Writer) *bitWriter {
	return &bitWriter{writer: w}
}

// WriteCode appends one 2-bit code. A full byte is flushed immediately.
func (w *bitWriter) WriteCode(code GenotypeCode) error {
	w.byte |= byte(code&3) << (2 * w.offset)
	w.offset++

	if w.offset == 4 {
		return w.flushByte()
	}

	return nil
}

// Flush writes out a partial byte, zero-filling the unused bit pairs. For any
// N codes written, exactly ceil(N/4) bytes reach the underlying writer.
func (w *bitWriter) Flush() error {
	if w.offset == 0 {
		return nil
	}

	return w.flushByte()
}

func (w *bitWriter) flushByte() error {
	w.scratch[0] = w.byte
	if _, err := w.writer.Write(w.scratch[:]); err != nil {
		return pfx.Err(err)
	}
	w.byte = 0
	w.offset = 0

	return nil
}

// unpackCodes is the inverse 2-bit extraction: it recovers the first n codes
// from packed data, ignoring padding bits.
func unpackCodes(data []byte, n int) []GenotypeCode {
	codes := make([]GenotypeCode, 0, n)
	for i := 0; i < n; i++ {
		b := data[i/4]
		codes = append(codes, GenotypeCode((b>>(2*(i%4)))&3))
	}

	return codes
}
