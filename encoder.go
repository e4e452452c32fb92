package plinkbgen

import (
	"encoding/binary"
	"fmt"
	"log"
	"strings"

	"github.com/carbocation/pfx"
)

// probabilityBits is the fixed width of one probability slot. The payload
// advertises it so readers stay generic.
const probabilityBits = 8

// ploidyMissingBit marks a synthesized or uncalled sample in its per-sample
// ploidy byte.
const ploidyMissingBit = 0x80

// defaultPloidy sizes missing-cell fill before a column has seen any call.
const defaultPloidy = 2

// columnState is the per-column accumulation of one open variant. It is reset
// on every interval transition; min/max ploidy start at sentinel extremes and
// reflect only the current column's calls.
type columnState struct {
	interval GenomicInterval
	id       string

	alleles []Allele
	phased  bool
	sawCall bool

	minPloidy uint8
	maxPloidy uint8

	// One ploidy byte per row in the declared range, missing bit included.
	ploidyBytes []byte
	// Accumulated 8-bit probability slots, framed at column close.
	probBytes []byte
	// Text allele pairs for the matrix row, one entry per row.
	tpedPairs []string

	lastRow int64
}

// Encoder is the stream transducer: it consumes the ordered call stream via
// the VariantCallProcessor protocol and produces the five output files. One
// Encoder serves one pass over one rank's row/column ranges; it shares no
// state with other ranks. It is not safe for concurrent use, matching the
// single-threaded callback contract.
type Encoder struct {
	cfg   ExportConfig
	types FieldTypeMap
	rows  RowRange

	compression Compression
	files       *OutputFileSet
	codec       *BlockCodec
	bed         *bitWriter

	state encodeState
	col   columnState

	samples     []Sample // from the sample list, may be nil
	sampleNames []string // collected from the scan, indexed by row-rows.Low

	nVariants uint32

	// Byte position of the next probabilistic-file write, and the per-variant
	// spans recorded for the optional index.
	bgenOffset int64
	spans      []variantSpan
}

type variantSpan struct {
	variant Variant
	start   int64
	size    int64
}

// NewEncoder opens the output file set and writes the fixed headers with
// placeholder totals. The returned Encoder is in the HeaderWritten state,
// ready to be driven by the query engine.
func NewEncoder(cfg ExportConfig, types FieldTypeMap, rows RowRange) (*Encoder, error) {
	if rows.Count() < 1 {
		return nil, pfx.Err(fmt.Errorf("%w: row range [%d,%d] is empty", ErrConfiguration, rows.Low, rows.High))
	}

	compression, err := ParseCompression(cfg.Compression)
	if err != nil {
		return nil, pfx.Err(err)
	}

	e := &Encoder{
		cfg:         cfg,
		types:       types,
		rows:        rows,
		compression: compression,
		state:       stateIdle,
		sampleNames: make([]string, rows.Count()),
	}

	if cfg.SampleList != "" {
		samples, err := ReadSampleList(cfg.SampleList)
		if err != nil {
			return nil, pfx.Err(err)
		}
		if int64(len(samples)) != rows.Count() {
			return nil, pfx.Err(fmt.Errorf("%w: sample list holds %d identifiers for a row range of %d", ErrConfiguration, len(samples), rows.Count()))
		}
		e.samples = samples
	}

	e.codec, err = NewBlockCodec(compression)
	if err != nil {
		return nil, pfx.Err(err)
	}

	e.files, err = OpenOutputFileSet(cfg.OutputPrefix)
	if err != nil {
		return nil, pfx.Err(err)
	}
	e.bed = newBitWriter(e.files.BedWriter())

	if err := e.writeHeader(); err != nil {
		e.files.Close()
		return nil, pfx.Err(err)
	}

	return e, nil
}

func (e *Encoder) writeHeader() error {
	var sampleBlock []byte
	if e.samples != nil {
		sampleBlock = encodeSampleBlock(e.samples)
	}

	hdr := encodeBGENHeader(uint32(len(sampleBlock)), e.compression, e.samples != nil)
	if err := e.files.BGEN(hdr); err != nil {
		return pfx.Err(err)
	}
	e.bgenOffset = int64(len(hdr))

	if sampleBlock != nil {
		if err := e.files.BGEN(sampleBlock); err != nil {
			return pfx.Err(err)
		}
		e.bgenOffset += int64(len(sampleBlock))
	}

	e.state = stateHeaderWritten

	return nil
}

// ProcessInterval closes any open column and opens a new one for interval.
// Intervals arrive in strictly increasing coordinate order.
func (e *Encoder) ProcessInterval(interval GenomicInterval) error {
	if e.state == stateFinalized {
		return pfx.Err(fmt.Errorf("%w: interval after finalization", ErrConfiguration))
	}

	if e.state == stateColumnOpen {
		if err := e.closeColumn(); err != nil {
			return pfx.Err(err)
		}
	}

	e.nVariants++
	e.col = columnState{
		interval:  interval,
		id:        fmt.Sprintf("%s:%d", interval.Contig, interval.Start),
		minPloidy: 0xFF,
		maxPloidy: 0,
		lastRow:   e.rows.Low - 1,
	}
	e.state = stateColumnOpen

	if e.cfg.ProgressInterval > 0 && int(e.nVariants)%e.cfg.ProgressInterval == 0 {
		log.Printf("plinkbgen: %d variants processed (at %s)", e.nVariants, interval)
	}

	return nil
}

// ProcessCall delivers one (sample, variant) cell. Rows absent between the
// previous row index and this one are synthesized as missing so every column
// yields exactly the declared row-range cardinality.
func (e *Encoder) ProcessCall(sampleName string, coordinates [2]int64, interval GenomicInterval, fields []GenomicField) error {
	if e.state != stateColumnOpen {
		return pfx.Err(fmt.Errorf("%w: call delivered in state %s", ErrConfiguration, e.state))
	}

	row := coordinates[0]
	if row < e.rows.Low || row > e.rows.High {
		return pfx.Err(fmt.Errorf("%w: row %d outside declared range [%d,%d]", ErrValueRange, row, e.rows.Low, e.rows.High))
	}
	if row <= e.col.lastRow {
		return pfx.Err(fmt.Errorf("%w: row %d delivered after row %d", ErrConfiguration, row, e.col.lastRow))
	}

	if e.col.alleles == nil {
		alleles, err := parseAlleleLabels(fields)
		if err != nil {
			return pfx.Err(err)
		}
		e.col.alleles = alleles
	}

	call, err := parseGenotypeCall(fields, e.types)
	if err != nil {
		return pfx.Err(err)
	}
	if !e.col.sawCall {
		e.col.phased = call.Phased
		e.col.sawCall = true
	} else if call.Phased != e.col.phased {
		// Within one column every delivered call must agree on phasedness or
		// the slot layout is undefined.
		return pfx.Err(fmt.Errorf("%w: phasedness changed at row %d within one column", ErrConfiguration, row))
	}

	for r := e.col.lastRow + 1; r < row; r++ {
		if err := e.fillMissing(r); err != nil {
			return pfx.Err(err)
		}
	}

	if err := e.writeCall(row, sampleName, call); err != nil {
		return pfx.Err(err)
	}
	e.col.lastRow = row

	return nil
}

func (e *Encoder) writeCall(row int64, sampleName string, call GenotypeCall) error {
	idx := row - e.rows.Low
	if e.sampleNames[idx] == "" {
		e.sampleNames[idx] = sampleName
	}

	ploidy := uint8(call.Ploidy)
	if ploidy < e.col.minPloidy {
		e.col.minPloidy = ploidy
	}
	if ploidy > e.col.maxPloidy {
		e.col.maxPloidy = ploidy
	}

	ploidyByte := ploidy
	if call.Missing() {
		ploidyByte |= ploidyMissingBit
	}
	e.col.ploidyBytes = append(e.col.ploidyBytes, ploidyByte)
	e.col.probBytes = append(e.col.probBytes, call.probabilitySlots(len(e.col.alleles))...)
	e.col.tpedPairs = append(e.col.tpedPairs, e.tpedPair(call))

	if err := e.bed.WriteCode(call.Code()); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// fillMissing synthesizes the entry for a row the engine never delivered:
// the fixed missing code, a missing-flagged ploidy byte, and an all-zero
// probability block sized by the column's current ploidy/allele assumption.
func (e *Encoder) fillMissing(row int64) error {
	ploidy := int(e.col.minPloidy)
	if e.col.minPloidy == 0xFF {
		ploidy = defaultPloidy
	}
	nAlleles := len(e.col.alleles)
	if nAlleles < 2 {
		nAlleles = 2
	}

	nSlots := NumUnphasedSlots(ploidy, nAlleles)
	if e.col.phased {
		nSlots = NumPhasedSlots(ploidy, nAlleles)
	}

	e.col.ploidyBytes = append(e.col.ploidyBytes, uint8(ploidy)|ploidyMissingBit)
	e.col.probBytes = append(e.col.probBytes, make([]byte, nSlots)...)
	e.col.tpedPairs = append(e.col.tpedPairs, "0 0")

	if err := e.bed.WriteCode(GenotypeMissing); err != nil {
		return pfx.Err(err)
	}

	return nil
}

func (e *Encoder) tpedPair(call GenotypeCall) string {
	if call.Missing() {
		return "0 0"
	}

	labels := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		a := call.Alleles[0]
		if i < len(call.Alleles) {
			a = call.Alleles[i]
		}
		if a < 0 || a >= len(e.col.alleles) {
			labels = append(labels, "0")
			continue
		}
		labels = append(labels, e.col.alleles[a].String())
	}

	return strings.Join(labels, " ")
}

// closeColumn fills the trailing rows, flushes the packed-matrix partial
// byte, and writes the column's metadata record and framed probability
// payload.
func (e *Encoder) closeColumn() error {
	for r := e.col.lastRow + 1; r <= e.rows.High; r++ {
		if err := e.fillMissing(r); err != nil {
			return pfx.Err(err)
		}
	}

	if err := e.bed.Flush(); err != nil {
		return pfx.Err(err)
	}

	if e.col.alleles == nil {
		// Column with no delivered cells at all.
		e.col.alleles = []Allele{"0", "0"}
	}

	chrom := ChromosomeCode(e.col.interval.Contig)
	pos := e.col.interval.Start
	ref := e.col.alleles[0]
	alt := Allele("0")
	if len(e.col.alleles) > 1 {
		alt = e.col.alleles[1]
	}

	if err := e.files.Bim(fmt.Sprintf("%s\t%s\t0\t%d\t%s\t%s", chrom, e.col.id, pos, alt, ref)); err != nil {
		return pfx.Err(err)
	}
	if err := e.files.Tped(fmt.Sprintf("%s %s 0 %d %s", chrom, e.col.id, pos, strings.Join(e.col.tpedPairs, " "))); err != nil {
		return pfx.Err(err)
	}

	block, payloadVariant, err := e.encodeVariantBlock()
	if err != nil {
		return pfx.Err(err)
	}

	start := e.bgenOffset
	if err := e.files.BGEN(block); err != nil {
		return pfx.Err(err)
	}
	e.bgenOffset += int64(len(block))

	if e.cfg.WriteIndex {
		e.spans = append(e.spans, variantSpan{
			variant: payloadVariant,
			start:   start,
			size:    int64(len(block)),
		})
	}

	e.state = stateColumnClosed

	return nil
}

// encodeVariantBlock renders one variant's metadata record plus its framed
// probability payload. Offsets 6 and 7 of the payload hold the column's
// minimum and maximum observed ploidy.
func (e *Encoder) encodeVariantBlock() ([]byte, Variant, error) {
	minPloidy, maxPloidy := e.col.minPloidy, e.col.maxPloidy
	if minPloidy == 0xFF {
		// No call carried a usable ploidy; the fill assumption stands.
		minPloidy, maxPloidy = defaultPloidy, defaultPloidy
	}

	nSamples := uint32(e.rows.Count())
	nAlleles := uint16(len(e.col.alleles))

	payload := make([]byte, 8, 10+len(e.col.ploidyBytes)+len(e.col.probBytes))
	binary.LittleEndian.PutUint32(payload, nSamples)
	binary.LittleEndian.PutUint16(payload[4:], nAlleles)
	payload[6] = minPloidy
	payload[7] = maxPloidy
	payload = append(payload, e.col.ploidyBytes...)
	if e.col.phased {
		payload = append(payload, 1)
	} else {
		payload = append(payload, 0)
	}
	payload = append(payload, probabilityBits)
	payload = append(payload, e.col.probBytes...)

	framed, err := e.codec.Encode(payload)
	if err != nil {
		return nil, Variant{}, pfx.Err(err)
	}

	var block []byte
	block = appendString16(block, e.col.id)
	block = appendString16(block, e.col.id) // rsid mirrors the variant id
	block = appendString16(block, e.col.interval.Contig)
	block = binary.LittleEndian.AppendUint32(block, uint32(e.col.interval.Start))
	block = binary.LittleEndian.AppendUint16(block, nAlleles)
	for _, a := range e.col.alleles {
		block = binary.LittleEndian.AppendUint32(block, uint32(len(a)))
		block = append(block, a...)
	}
	block = append(block, framed...)

	v := Variant{
		ID:         e.col.id,
		RSID:       e.col.id,
		Chromosome: e.col.interval.Contig,
		Position:   uint32(e.col.interval.Start),
		NAlleles:   nAlleles,
		Alleles:    e.col.alleles,
	}

	return block, v, nil
}

func appendString16(dst []byte, s string) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(s)))

	return append(dst, s...)
}

// Finalize closes the last open column, writes the sample file, back-patches
// the header totals, and releases the output resources. It must only be
// called after the engine has delivered the whole stream; a pass that errors
// out should call Close instead, leaving the totals at zero.
func (e *Encoder) Finalize() error {
	if e.state == stateFinalized {
		return nil
	}
	if e.state == stateIdle {
		return pfx.Err(fmt.Errorf("%w: finalize before header", ErrConfiguration))
	}

	if e.state == stateColumnOpen {
		if err := e.closeColumn(); err != nil {
			e.files.Close()
			return pfx.Err(err)
		}
	}

	if err := e.writeFam(); err != nil {
		e.files.Close()
		return pfx.Err(err)
	}

	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], e.nVariants)
	if err := e.files.BGENWriteAt(scratch[:], offsetNumberVariants); err != nil {
		e.files.Close()
		return pfx.Err(err)
	}
	binary.LittleEndian.PutUint32(scratch[:], uint32(e.rows.Count()))
	if err := e.files.BGENWriteAt(scratch[:], offsetNumberSamples); err != nil {
		e.files.Close()
		return pfx.Err(err)
	}

	e.state = stateFinalized

	if err := e.files.Close(); err != nil {
		return pfx.Err(err)
	}

	if e.cfg.WriteIndex {
		if err := e.writeIndex(); err != nil {
			return pfx.Err(err)
		}
	}

	return nil
}

func (e *Encoder) writeFam() error {
	for i := int64(0); i < e.rows.Count(); i++ {
		name := ""
		if e.samples != nil {
			name = e.samples[i].SampleID
		} else if e.sampleNames[i] != "" {
			name = e.sampleNames[i]
		} else {
			name = fmt.Sprintf("sample_%d", e.rows.Low+i)
		}

		if err := e.files.Fam(fmt.Sprintf("%s\t%s\t0\t0\t0\t-9", name, name)); err != nil {
			return pfx.Err(err)
		}
	}

	return nil
}

// NumVariants reports how many columns were opened so far.
func (e *Encoder) NumVariants() uint32 {
	return e.nVariants
}

// Close releases the output files without back-patching the totals. It is
// the error-path counterpart of Finalize and is safe to call more than once,
// or after Finalize.
func (e *Encoder) Close() error {
	if e.state == stateFinalized || e.files == nil {
		return nil
	}

	return e.files.Close()
}
