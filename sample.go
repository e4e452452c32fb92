package plinkbgen

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/carbocation/pfx"
)

type Sample struct {
	SampleID string
}

// ReadSampleList reads sample identifiers from a text file, one per line.
// Blank lines and lines starting with # are skipped.
func ReadSampleList(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	var samples []Sample
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		samples = append(samples, Sample{SampleID: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	return samples, nil
}

// encodeSampleBlock renders the sample-identifier block that sits between the
// header and the first variant: block length, sample count, then each
// identifier with a 2-byte length prefix.
func encodeSampleBlock(samples []Sample) []byte {
	size := 8
	for _, s := range samples {
		size += 2 + len(s.SampleID)
	}

	block := make([]byte, 8, size)
	binary.LittleEndian.PutUint32(block, uint32(size))
	binary.LittleEndian.PutUint32(block[4:], uint32(len(samples)))

	var scratch [2]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint16(scratch[:], uint16(len(s.SampleID)))
		block = append(block, scratch[:]...)
		block = append(block, s.SampleID...)
	}

	return block
}

// ReadSamples reads the sample-identifier block back out of a
// probabilistic-format file.
func ReadSamples(b *BGEN) ([]Sample, error) {
	if b.File == nil {
		return nil, pfx.Err(fmt.Errorf("b.File is nil"))
	}

	if b.FlagHasSampleIDs == 0 {
		return nil, pfx.Err(fmt.Errorf("this file indicates that it does not have sample IDs"))
	}

	samples := make([]Sample, 0, b.NSamples)

	bufferLength := make([]byte, 2)
	bufferID := make([]byte, 2)
	// SamplesStart is at the block length word, SamplesStart+4 at the sample
	// count.
	offset := int64(b.SamplesStart + 8)

	nSamples := int(b.NSamples)
	var sampleTextSize uint16
	for i := 0; i < nSamples; i++ {
		if err := b.parseAtOffsetWithBuffer(offset, bufferLength); err != nil {
			return nil, pfx.Err(err)
		}
		offset += 2

		sampleTextSize = binary.LittleEndian.Uint16(bufferLength)

		// resize the sample buffer to the size dictated by the result of bufferLength
		if int(sampleTextSize) > cap(bufferID) {
			bufferID = make([]byte, sampleTextSize)
		}
		bufferID = bufferID[:sampleTextSize]
		if err := b.parseAtOffsetWithBuffer(offset, bufferID); err != nil {
			return nil, pfx.Err(err)
		}

		// Copy the buffer into a string so that the buffer can be reused
		samples = append(samples, Sample{SampleID: string(bufferID)})
		offset += int64(sampleTextSize)
	}

	return samples, nil
}
