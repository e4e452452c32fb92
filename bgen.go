package plinkbgen

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/carbocation/pfx"
)

// MagicNumber is the tag every probabilistic-format file carries at
// offsetMagicNumber.
const MagicNumber = "bgen"

// Fixed header offsets. The variant-count and sample-count words are written
// as zero at construction and back-patched when the stream ends, so a file
// whose totals still read zero was never finalized.
const (
	offsetVariant        = 0
	offsetHeaderLength   = 4
	offsetNumberVariants = 8
	offsetNumberSamples  = 12
	offsetMagicNumber    = 16
	offsetFlags          = 20

	headerLength = 20
)

// Flag word layout: the low two bits hold the compression algorithm code and
// bit 3 is set when a sample-identifier block follows the header.
const flagSampleIDsBit = 3

// BGEN is a read-back handle onto a probabilistic-format file, used to verify
// encoder output and to serve downstream random access.
type BGEN struct {
	FilePath         string
	File             *os.File
	NVariants        uint32
	NSamples         uint32
	FlagCompression  uint32
	FlagHasSampleIDs uint32
	SamplesStart     uint32
	VariantsStart    uint32
}

// Open attempts to read a probabilistic-format file located at path. If
// successful, this returns a new BGEN object. Otherwise, it returns an error.
func Open(path string) (*BGEN, error) {
	b := &BGEN{
		FilePath: path,
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	b.File = file

	if err := populateBGENHeader(b); err != nil {
		file.Close()
		return nil, pfx.Err(err)
	}

	return b, nil
}

// Close releases the underlying file.
func (b *BGEN) Close() error {
	if b.File == nil {
		return nil
	}

	return b.File.Close()
}

func populateBGENHeader(b *BGEN) error {
	buffer := make([]byte, 4)

	if err := b.parseAtOffsetWithBuffer(offsetVariant, buffer); err != nil {
		return pfx.Err(err)
	}
	// First variant is at variant_offset + 4.
	b.VariantsStart = binary.LittleEndian.Uint32(buffer) + 4

	if err := b.parseAtOffsetWithBuffer(offsetHeaderLength, buffer); err != nil {
		return pfx.Err(err)
	}
	hdrLen := int64(binary.LittleEndian.Uint32(buffer))

	b.SamplesStart = uint32(hdrLen + 4)

	if err := b.parseAtOffsetWithBuffer(offsetNumberVariants, buffer); err != nil {
		return pfx.Err(err)
	}
	b.NVariants = binary.LittleEndian.Uint32(buffer)

	if err := b.parseAtOffsetWithBuffer(offsetNumberSamples, buffer); err != nil {
		return pfx.Err(err)
	}
	b.NSamples = binary.LittleEndian.Uint32(buffer)

	if err := b.parseAtOffsetWithBuffer(offsetMagicNumber, buffer); err != nil {
		return pfx.Err(err)
	}
	if MagicNumber != string(buffer) {
		return pfx.Err(fmt.Errorf("the header value at offset %d is expected to resolve to the magic number %s (%v when printed as a byte slice), but instead resolved to byte slice %v", offsetMagicNumber, MagicNumber, []byte(MagicNumber), buffer))
	}

	if err := b.parseAtOffsetWithBuffer(hdrLen, buffer); err != nil {
		return pfx.Err(err)
	}
	flags := binary.LittleEndian.Uint32(buffer)
	b.FlagCompression = flags & 3
	b.FlagHasSampleIDs = (flags >> flagSampleIDsBit) & 1

	return nil
}

func (b *BGEN) parseAtOffsetWithBuffer(offset int64, buffer []byte) error {
	_, err := b.File.ReadAt(buffer, offset)
	if err != nil {
		return pfx.Err(err)
	}

	return nil
}

// encodeBGENHeader renders the 24 fixed header bytes. sampleBlockLen is the
// byte length of the sample-identifier block that follows the header, zero
// when none is written. The totals are zero until back-patched.
func encodeBGENHeader(sampleBlockLen uint32, compression Compression, hasSampleIDs bool) []byte {
	hdr := make([]byte, headerLength+4)

	binary.LittleEndian.PutUint32(hdr[offsetVariant:], headerLength+sampleBlockLen)
	binary.LittleEndian.PutUint32(hdr[offsetHeaderLength:], headerLength)
	copy(hdr[offsetMagicNumber:], MagicNumber)

	flags := uint32(compression) & 3
	if hasSampleIDs {
		flags |= 1 << flagSampleIDsBit
	}
	binary.LittleEndian.PutUint32(hdr[offsetFlags:], flags)

	return hdr
}
