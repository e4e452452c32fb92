package plinkbgen

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
)

// DefaultFieldTypes registers the field shapes the encoder consumes: the
// phase-bearing GT vector, the REF/ALT labels, and the optional phred-scaled
// likelihoods.
func DefaultFieldTypes() FieldTypeMap {
	return FieldTypeMap{
		fieldGT:  {Kind: FieldInt, Dimensions: 1, Phased: true},
		fieldRef: {Kind: FieldString, Dimensions: 1},
		fieldAlt: {Kind: FieldString, Dimensions: 1},
		fieldPL:  {Kind: FieldInt, Dimensions: 1},
	}
}

// ReplaySource drives a VariantCallProcessor from a tab-separated call
// stream, standing in for the query engine. Two record shapes:
//
//	variant <contig> <start> <end>
//	call <row> <sample> <gt> <ref> <alt> [pl]
//
// where gt looks like "0|1" or "0/1" ("." for missing) and pl is a
// comma-separated likelihood list. Calls belong to the most recent variant
// line; rows must arrive in increasing order, exactly as the engine would
// deliver them.
type ReplaySource struct {
	r io.Reader
}

func NewReplaySource(r io.Reader) *ReplaySource {
	return &ReplaySource{r: r}
}

// Run replays the stream into p in a single pass.
func (s *ReplaySource) Run(p VariantCallProcessor) error {
	return s.RunRange(p, RowRange{Low: 0, High: int64(^uint64(0) >> 1)})
}

// RunRange replays the stream, delivering only the calls whose row index
// falls inside rows. This is how one rank sees its slice of a shared stream.
func (s *ReplaySource) RunRange(p VariantCallProcessor, rows RowRange) error {
	scanner := bufio.NewScanner(s.r)

	var interval GenomicInterval
	var haveInterval bool
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cols := strings.Split(line, "\t")
		switch cols[0] {
		case "variant":
			if len(cols) != 4 {
				return pfx.Err(fmt.Errorf("line %d: variant record needs 4 columns, got %d", lineNo, len(cols)))
			}
			start, err := strconv.ParseUint(cols[2], 10, 64)
			if err != nil {
				return pfx.Err(fmt.Errorf("line %d: %v", lineNo, err))
			}
			end, err := strconv.ParseUint(cols[3], 10, 64)
			if err != nil {
				return pfx.Err(fmt.Errorf("line %d: %v", lineNo, err))
			}
			interval = GenomicInterval{Contig: cols[1], Start: start, End: end}
			haveInterval = true
			if err := p.ProcessInterval(interval); err != nil {
				return pfx.Err(err)
			}

		case "call":
			if !haveInterval {
				return pfx.Err(fmt.Errorf("line %d: call before any variant record", lineNo))
			}
			if len(cols) < 6 {
				return pfx.Err(fmt.Errorf("line %d: call record needs at least 6 columns, got %d", lineNo, len(cols)))
			}
			row, err := strconv.ParseInt(cols[1], 10, 64)
			if err != nil {
				return pfx.Err(fmt.Errorf("line %d: %v", lineNo, err))
			}
			if row < rows.Low || row > rows.High {
				continue
			}

			fields, err := buildCallFields(cols)
			if err != nil {
				return pfx.Err(fmt.Errorf("line %d: %v", lineNo, err))
			}

			coords := [2]int64{row, int64(interval.Start)}
			if err := p.ProcessCall(cols[2], coords, interval, fields); err != nil {
				return pfx.Err(err)
			}

		default:
			return pfx.Err(fmt.Errorf("line %d: unknown record type %q", lineNo, cols[0]))
		}
	}
	if err := scanner.Err(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// buildCallFields renders the textual call columns into the borrowed-buffer
// field representation the processor contract uses.
func buildCallFields(cols []string) ([]GenomicField, error) {
	gtBuf, nGT, err := encodeGTField(cols[3])
	if err != nil {
		return nil, err
	}

	fields := []GenomicField{
		NewGenomicField(fieldGT, gtBuf, nGT),
		NewGenomicField(fieldRef, []byte(cols[4]), 1),
		NewGenomicField(fieldAlt, []byte(cols[5]), 1),
	}

	if len(cols) > 6 && cols[6] != "" {
		parts := strings.Split(cols[6], ",")
		buf := make([]byte, 4*len(parts))
		for i, part := range parts {
			v, err := strconv.ParseInt(part, 10, 32)
			if err != nil {
				return nil, err
			}
			binary.LittleEndian.PutUint32(buf[i*4:], uint32(int32(v)))
		}
		fields = append(fields, NewGenomicField(fieldPL, buf, len(parts)))
	}

	return fields, nil
}

// encodeGTField turns "0|1" style genotype text into the interleaved
// allele/phase int32 vector: alleles at even offsets, phase indicators at
// odd ones.
func encodeGTField(gt string) ([]byte, int, error) {
	if gt == "" || gt == "." {
		return nil, 0, nil
	}

	var values []int32
	phased := strings.Contains(gt, "|")
	sep := "/"
	if phased {
		sep = "|"
	}

	for i, tok := range strings.Split(gt, sep) {
		if i > 0 {
			if phased {
				values = append(values, 1)
			} else {
				values = append(values, 0)
			}
		}
		if tok == "." {
			values = append(values, -1)
			continue
		}
		v, err := strconv.ParseInt(tok, 10, 32)
		if err != nil {
			return nil, 0, err
		}
		values = append(values, int32(v))
	}

	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}

	return buf, len(values), nil
}
