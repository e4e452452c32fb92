package plinkbgen

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/carbocation/pfx"
)

// VariantReader iterates over the variant blocks of a probabilistic-format
// file, decoding each block's metadata record and probability payload. It is
// the read-back counterpart of the Encoder and is what the tests use to
// verify byte-exact output.
type VariantReader struct {
	VariantsSeen  uint32
	b             *BGEN
	currentOffset int64
	err           error

	// Cached values
	buffer []byte
}

func (b *BGEN) NewVariantReader() *VariantReader {
	vr := &VariantReader{
		currentOffset: int64(b.VariantsStart),
		b:             b,
	}

	return vr
}

func (vr *VariantReader) Error() error {
	return vr.err
}

// Read returns the next variant, or nil at end of file.
func (vr *VariantReader) Read() *Variant {
	v, newOffset, err := vr.parseVariantAtOffset(vr.currentOffset)
	if err != nil {
		if err == io.EOF {
			return nil
		}
		vr.err = pfx.Err(err)

		return nil
	}

	vr.VariantsSeen++
	vr.currentOffset = newOffset

	return v
}

// ReadAt parses the variant block starting at offset without advancing the
// reader's position, serving random access through the variant index.
func (vr *VariantReader) ReadAt(offset int64) *Variant {
	v, _, err := vr.parseVariantAtOffset(offset)
	if err != nil {
		vr.err = pfx.Err(err)

		return nil
	}

	return v
}

func (vr *VariantReader) parseVariantAtOffset(offset int64) (*Variant, int64, error) {
	v := &Variant{}

	var err error
	if v.ID, offset, err = vr.readString16(offset); err != nil {
		return nil, 0, err
	}
	if v.RSID, offset, err = vr.readString16(offset); err != nil {
		return nil, 0, err
	}
	if v.Chromosome, offset, err = vr.readString16(offset); err != nil {
		return nil, 0, err
	}

	if err = vr.readNBytesAtOffset(6, offset); err != nil {
		return nil, 0, err
	}
	v.Position = binary.LittleEndian.Uint32(vr.buffer[:4])
	v.NAlleles = binary.LittleEndian.Uint16(vr.buffer[4:6])
	offset += 6

	for i := uint16(0); i < v.NAlleles; i++ {
		if err = vr.readNBytesAtOffset(4, offset); err != nil {
			return nil, 0, err
		}
		offset += 4
		alleleLength := int(binary.LittleEndian.Uint32(vr.buffer[:4]))

		if err = vr.readNBytesAtOffset(alleleLength, offset); err != nil {
			return nil, 0, err
		}
		offset += int64(alleleLength)
		v.Alleles = append(v.Alleles, Allele(vr.buffer[:alleleLength]))
	}

	payload, offset, err := vr.readFramedBlock(offset)
	if err != nil {
		return nil, 0, err
	}

	if v.Probabilities, err = parseProbabilityPayload(payload); err != nil {
		return nil, 0, err
	}

	return v, offset, nil
}

// readFramedBlock consumes one length-prefixed block, decompressing it when
// the file header says the blocks are compressed.
func (vr *VariantReader) readFramedBlock(offset int64) ([]byte, int64, error) {
	if err := vr.readNBytesAtOffset(4, offset); err != nil {
		return nil, 0, err
	}
	offset += 4
	firstWord := binary.LittleEndian.Uint32(vr.buffer[:4])

	if Compression(vr.b.FlagCompression) == CompressionDisabled {
		// The first word is the uncompressed payload length.
		if err := vr.readNBytesAtOffset(int(firstWord), offset); err != nil {
			return nil, 0, err
		}
		payload := make([]byte, firstWord)
		copy(payload, vr.buffer[:firstWord])

		return payload, offset + int64(firstWord), nil
	}

	// The first word is the total block size including the 4-byte
	// uncompressed-length field that follows.
	if err := vr.readNBytesAtOffset(4, offset); err != nil {
		return nil, 0, err
	}
	offset += 4
	rawLen := binary.LittleEndian.Uint32(vr.buffer[:4])

	compressedLen := int(firstWord) - 4
	if err := vr.readNBytesAtOffset(compressedLen, offset); err != nil {
		return nil, 0, err
	}
	offset += int64(compressedLen)

	var payload []byte
	var err error
	switch Compression(vr.b.FlagCompression) {
	case CompressionZLIB:
		payload, err = DecompressZLIB(vr.buffer[:compressedLen])
	case CompressionZStandard:
		payload, err = DecompressZStandard(nil, vr.buffer[:compressedLen])
	default:
		err = fmt.Errorf("unsupported compression code %d", vr.b.FlagCompression)
	}
	if err != nil {
		return nil, 0, pfx.Err(err)
	}
	if len(payload) != int(rawLen) {
		return nil, 0, pfx.Err(fmt.Errorf("block advertises %d uncompressed bytes but inflated to %d", rawLen, len(payload)))
	}

	return payload, offset, nil
}

// parseProbabilityPayload decodes one uncompressed variant payload: sample
// count, allele count, min/max ploidy at offsets 6 and 7, per-sample ploidy
// bytes (top bit marks missing data), the phased flag, the probability bit
// width, and the probability slots.
func parseProbabilityPayload(payload []byte) (*Probability, error) {
	if len(payload) < 10 {
		return nil, pfx.Err(fmt.Errorf("payload of %d bytes is shorter than the fixed fields", len(payload)))
	}

	p := &Probability{
		NSamples:      binary.LittleEndian.Uint32(payload),
		NAlleles:      binary.LittleEndian.Uint16(payload[4:]),
		MinimumPloidy: payload[6],
		MaximumPloidy: payload[7],
	}

	n := int(p.NSamples)
	if len(payload) < 10+n {
		return nil, pfx.Err(fmt.Errorf("payload of %d bytes cannot hold %d ploidy bytes", len(payload), n))
	}
	ploidyBytes := payload[8 : 8+n]
	p.Phased = payload[8+n] == 1
	p.NProbabilityBits = payload[9+n]

	if p.NProbabilityBits != probabilityBits {
		return nil, pfx.Err(fmt.Errorf("unsupported probability width %d bits", p.NProbabilityBits))
	}

	probs := payload[10+n:]
	for _, pb := range ploidyBytes {
		sp := &SampleProbability{
			Missing: pb&ploidyMissingBit != 0,
			Ploidy:  pb &^ ploidyMissingBit,
		}

		nSlots := NumUnphasedSlots(int(sp.Ploidy), int(p.NAlleles))
		if p.Phased {
			nSlots = NumPhasedSlots(int(sp.Ploidy), int(p.NAlleles))
		}
		if len(probs) < nSlots {
			return nil, pfx.Err(fmt.Errorf("payload truncated: %d probability bytes left, sample needs %d", len(probs), nSlots))
		}
		for _, b := range probs[:nSlots] {
			sp.Probabilities = append(sp.Probabilities, float64(b)/math.MaxUint8)
		}
		probs = probs[nSlots:]

		p.SampleProbabilities = append(p.SampleProbabilities, sp)
	}

	return p, nil
}

// readString16 reads one 2-byte-length-prefixed string.
func (vr *VariantReader) readString16(offset int64) (string, int64, error) {
	if err := vr.readNBytesAtOffset(2, offset); err != nil {
		return "", 0, err
	}
	offset += 2
	stringSize := int(binary.LittleEndian.Uint16(vr.buffer[:2]))

	if err := vr.readNBytesAtOffset(stringSize, offset); err != nil {
		return "", 0, err
	}

	return string(vr.buffer[:stringSize]), offset + int64(stringSize), nil
}

func (vr *VariantReader) readNBytesAtOffset(N int, offset int64) error {
	if vr.buffer == nil || len(vr.buffer) < N {
		vr.buffer = make([]byte, N)
	}

	_, err := vr.b.File.ReadAt(vr.buffer[:N], offset)
	return err
}
