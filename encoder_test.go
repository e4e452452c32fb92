package plinkbgen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carbocation/genomisc"
	"github.com/stretchr/testify/require"
)

func testFields(t *testing.T, gt, ref, alt string, pl []int32) []GenomicField {
	t.Helper()

	gtBuf, n, err := encodeGTField(gt)
	require.NoError(t, err)

	fields := []GenomicField{
		NewGenomicField(fieldGT, gtBuf, n),
		NewGenomicField(fieldRef, []byte(ref), 1),
		NewGenomicField(fieldAlt, []byte(alt), 1),
	}

	if pl != nil {
		buf := make([]byte, 4*len(pl))
		for i, v := range pl {
			buf[i*4] = byte(v)
			buf[i*4+1] = byte(v >> 8)
			buf[i*4+2] = byte(v >> 16)
			buf[i*4+3] = byte(v >> 24)
		}
		fields = append(fields, NewGenomicField(fieldPL, buf, len(pl)))
	}

	return fields
}

func newTestEncoder(t *testing.T, cfg ExportConfig, rows RowRange) *Encoder {
	t.Helper()

	if cfg.OutputPrefix == "" {
		cfg.OutputPrefix = filepath.Join(t.TempDir(), "export")
	}

	enc, err := NewEncoder(cfg, DefaultFieldTypes(), rows)
	require.NoError(t, err)
	t.Cleanup(func() { enc.Close() })

	return enc
}

func TestEncoderHeaderBackpatch(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "chr1")
	enc := newTestEncoder(t, ExportConfig{OutputPrefix: prefix}, RowRange{Low: 0, High: 2})

	iv1 := GenomicInterval{Contig: "1", Start: 100, End: 100}
	require.NoError(t, enc.ProcessInterval(iv1))
	require.NoError(t, enc.ProcessCall("HG001", [2]int64{0, 100}, iv1, testFields(t, "0/1", "A", "C", nil)))
	require.NoError(t, enc.ProcessCall("HG002", [2]int64{1, 100}, iv1, testFields(t, "0/0", "A", "C", nil)))
	require.NoError(t, enc.ProcessCall("HG003", [2]int64{2, 100}, iv1, testFields(t, "1/1", "A", "C", nil)))

	iv2 := GenomicInterval{Contig: "1", Start: 200, End: 200}
	require.NoError(t, enc.ProcessInterval(iv2))
	require.NoError(t, enc.ProcessCall("HG001", [2]int64{0, 200}, iv2, testFields(t, "1/1", "G", "T", nil)))

	require.NoError(t, enc.Finalize())

	b, err := Open(prefix + ".bgen")
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, uint32(2), b.NVariants)
	require.Equal(t, uint32(3), b.NSamples)
	require.Equal(t, uint32(CompressionDisabled), b.FlagCompression)
	require.Equal(t, uint32(0), b.FlagHasSampleIDs)

	vr := b.NewVariantReader()

	v1 := vr.Read()
	require.NoError(t, vr.Error())
	require.NotNil(t, v1)
	require.Equal(t, "1:100", v1.ID)
	require.Equal(t, "1", v1.Chromosome)
	require.Equal(t, uint32(100), v1.Position)
	require.Equal(t, []Allele{"A", "C"}, v1.Alleles)
	require.Equal(t, uint32(3), v1.Probabilities.NSamples)
	require.False(t, v1.Probabilities.Phased)
	require.Equal(t, []float64{0, 1}, v1.Probabilities.SampleProbabilities[0].Probabilities)
	require.Equal(t, []float64{1, 0}, v1.Probabilities.SampleProbabilities[1].Probabilities)
	require.Equal(t, []float64{0, 0}, v1.Probabilities.SampleProbabilities[2].Probabilities)

	v2 := vr.Read()
	require.NoError(t, vr.Error())
	require.NotNil(t, v2)
	require.Equal(t, "1:200", v2.ID)
	// Rows 1 and 2 were never delivered for the second column.
	require.True(t, v2.Probabilities.SampleProbabilities[1].Missing)
	require.True(t, v2.Probabilities.SampleProbabilities[2].Missing)

	require.Nil(t, vr.Read())
	require.NoError(t, vr.Error())
}

func TestEncoderAbortLeavesZeroTotals(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "aborted")
	enc := newTestEncoder(t, ExportConfig{OutputPrefix: prefix}, RowRange{Low: 0, High: 1})

	iv := GenomicInterval{Contig: "2", Start: 50, End: 50}
	require.NoError(t, enc.ProcessInterval(iv))
	require.NoError(t, enc.ProcessCall("HG001", [2]int64{0, 50}, iv, testFields(t, "0/1", "A", "C", nil)))

	// Simulated abort: release resources without finalizing.
	require.NoError(t, enc.Close())

	b, err := Open(prefix + ".bgen")
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, uint32(0), b.NVariants)
	require.Equal(t, uint32(0), b.NSamples)
}

func TestEncoderMissingCellFill(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "sparse")
	enc := newTestEncoder(t, ExportConfig{OutputPrefix: prefix}, RowRange{Low: 0, High: 4})

	iv := GenomicInterval{Contig: "1", Start: 100, End: 100}
	require.NoError(t, enc.ProcessInterval(iv))
	require.NoError(t, enc.ProcessCall("s0", [2]int64{0, 100}, iv, testFields(t, "0/1", "A", "C", nil)))
	require.NoError(t, enc.ProcessCall("s2", [2]int64{2, 100}, iv, testFields(t, "0/0", "A", "C", nil)))
	require.NoError(t, enc.ProcessCall("s4", [2]int64{4, 100}, iv, testFields(t, "1/1", "A", "C", nil)))
	require.NoError(t, enc.Finalize())

	// Packed matrix: magic, then ceil(5/4)=2 bytes for the single column.
	bed, err := os.ReadFile(prefix + ".bed")
	require.NoError(t, err)
	require.Equal(t, BEDMagic, bed[:3])
	require.Len(t, bed, 3+2)

	codes := unpackCodes(bed[3:], 5)
	require.Equal(t, []GenotypeCode{
		GenotypeHet, GenotypeMissing, GenotypeHomRef, GenotypeMissing, GenotypeHomAlt,
	}, codes)

	// Probabilistic file: filled rows carry the missing flag and an all-zero
	// slot block of the same width the delivered rows use.
	b, err := Open(prefix + ".bgen")
	require.NoError(t, err)
	defer b.Close()

	v := b.NewVariantReader().Read()
	require.NotNil(t, v)
	probs := v.Probabilities.SampleProbabilities
	require.Len(t, probs, 5)
	for _, i := range []int{1, 3} {
		require.True(t, probs[i].Missing)
		require.Equal(t, uint8(2), probs[i].Ploidy)
		require.Equal(t, []float64{0, 0}, probs[i].Probabilities)
	}
	require.False(t, probs[0].Missing)

	// Sample file: five rows, synthesized identifiers for the gaps.
	fam, err := os.ReadFile(prefix + ".fam")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(fam)), "\n")
	require.Len(t, lines, 5)
	require.Equal(t, "s0\ts0\t0\t0\t0\t-9", lines[0])
	require.Equal(t, "sample_1\tsample_1\t0\t0\t0\t-9", lines[1])
	require.Equal(t, "s4\ts4\t0\t0\t0\t-9", lines[4])

	// Variant file columns, in the conventional order.
	bim, err := os.ReadFile(prefix + ".bim")
	require.NoError(t, err)
	cols := strings.Fields(strings.TrimSpace(string(bim)))
	require.Len(t, cols, 6)
	require.Equal(t, "1", cols[genomisc.Chromosome])
	require.Equal(t, "1:100", cols[genomisc.VariantID])
	require.Equal(t, "0", cols[genomisc.Morgans])
	require.Equal(t, "100", cols[genomisc.Coordinate])
	require.Equal(t, "C", cols[genomisc.Allele1])
	require.Equal(t, "A", cols[genomisc.Allele2])

	tped, err := os.ReadFile(prefix + ".tped")
	require.NoError(t, err)
	require.Equal(t, "1 1:100 0 100 A C 0 0 A A 0 0 C C", strings.TrimSpace(string(tped)))
}

func TestEncoderColumnIsolation(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "ploidy")
	enc := newTestEncoder(t, ExportConfig{OutputPrefix: prefix}, RowRange{Low: 0, High: 1})

	iv1 := GenomicInterval{Contig: "X", Start: 10, End: 10}
	require.NoError(t, enc.ProcessInterval(iv1))
	require.NoError(t, enc.ProcessCall("s0", [2]int64{0, 10}, iv1, testFields(t, "1", "A", "C", nil)))
	require.NoError(t, enc.ProcessCall("s1", [2]int64{1, 10}, iv1, testFields(t, "0/1/1", "A", "C", nil)))

	iv2 := GenomicInterval{Contig: "X", Start: 20, End: 20}
	require.NoError(t, enc.ProcessInterval(iv2))
	require.NoError(t, enc.ProcessCall("s0", [2]int64{0, 20}, iv2, testFields(t, "0/1", "A", "C", nil)))
	require.NoError(t, enc.ProcessCall("s1", [2]int64{1, 20}, iv2, testFields(t, "1/1", "A", "C", nil)))

	require.NoError(t, enc.Finalize())

	b, err := Open(prefix + ".bgen")
	require.NoError(t, err)
	defer b.Close()

	vr := b.NewVariantReader()

	v1 := vr.Read()
	require.NotNil(t, v1)
	require.Equal(t, uint8(1), v1.Probabilities.MinimumPloidy)
	require.Equal(t, uint8(3), v1.Probabilities.MaximumPloidy)

	// The second column's trackers were reset and reflect only its calls.
	v2 := vr.Read()
	require.NotNil(t, v2)
	require.Equal(t, uint8(2), v2.Probabilities.MinimumPloidy)
	require.Equal(t, uint8(2), v2.Probabilities.MaximumPloidy)
}

func TestEncoderPhasedColumn(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "phased")
	enc := newTestEncoder(t, ExportConfig{OutputPrefix: prefix}, RowRange{Low: 0, High: 1})

	iv := GenomicInterval{Contig: "1", Start: 5, End: 5}
	require.NoError(t, enc.ProcessInterval(iv))
	require.NoError(t, enc.ProcessCall("s0", [2]int64{0, 5}, iv, testFields(t, "0|1", "A", "C", nil)))
	require.NoError(t, enc.ProcessCall("s1", [2]int64{1, 5}, iv, testFields(t, "1|0", "A", "C", nil)))
	require.NoError(t, enc.Finalize())

	b, err := Open(prefix + ".bgen")
	require.NoError(t, err)
	defer b.Close()

	v := b.NewVariantReader().Read()
	require.NotNil(t, v)
	require.True(t, v.Probabilities.Phased)
	require.Equal(t, []float64{1, 0}, v.Probabilities.SampleProbabilities[0].Probabilities)
	require.Equal(t, []float64{0, 1}, v.Probabilities.SampleProbabilities[1].Probabilities)
}

func TestEncoderPhaseChangeWithinColumn(t *testing.T) {
	enc := newTestEncoder(t, ExportConfig{}, RowRange{Low: 0, High: 1})

	iv := GenomicInterval{Contig: "1", Start: 5, End: 5}
	require.NoError(t, enc.ProcessInterval(iv))
	require.NoError(t, enc.ProcessCall("s0", [2]int64{0, 5}, iv, testFields(t, "0|1", "A", "C", nil)))

	err := enc.ProcessCall("s1", [2]int64{1, 5}, iv, testFields(t, "0/1", "A", "C", nil))
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestEncoderCompressedRoundTrip(t *testing.T) {
	for _, compression := range []string{"zlib", "zstd"} {
		prefix := filepath.Join(t.TempDir(), compression)
		enc := newTestEncoder(t, ExportConfig{OutputPrefix: prefix, Compression: compression}, RowRange{Low: 0, High: 2})

		iv := GenomicInterval{Contig: "7", Start: 1000, End: 1000}
		require.NoError(t, enc.ProcessInterval(iv))
		require.NoError(t, enc.ProcessCall("a", [2]int64{0, 1000}, iv, testFields(t, "0/0", "T", "TA", nil)))
		require.NoError(t, enc.ProcessCall("b", [2]int64{1, 1000}, iv, testFields(t, "0/1", "T", "TA", nil)))
		require.NoError(t, enc.ProcessCall("c", [2]int64{2, 1000}, iv, testFields(t, "1/1", "T", "TA", nil)))
		require.NoError(t, enc.Finalize())

		b, err := Open(prefix + ".bgen")
		require.NoError(t, err)

		wantCode, err := ParseCompression(compression)
		require.NoError(t, err)
		require.Equal(t, uint32(wantCode), b.FlagCompression)

		v := b.NewVariantReader().Read()
		require.NotNil(t, v)
		require.Equal(t, []Allele{"T", "TA"}, v.Alleles)
		require.Equal(t, []float64{1, 0}, v.Probabilities.SampleProbabilities[0].Probabilities)
		require.Equal(t, []float64{0, 1}, v.Probabilities.SampleProbabilities[1].Probabilities)
		require.Equal(t, []float64{0, 0}, v.Probabilities.SampleProbabilities[2].Probabilities)

		b.Close()
	}
}

func TestEncoderSampleList(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "samples.txt")
	require.NoError(t, os.WriteFile(listPath, []byte("# cohort\nHG001\nHG002\n"), 0o644))

	prefix := filepath.Join(dir, "withids")
	enc := newTestEncoder(t, ExportConfig{OutputPrefix: prefix, SampleList: listPath}, RowRange{Low: 0, High: 1})

	iv := GenomicInterval{Contig: "1", Start: 9, End: 9}
	require.NoError(t, enc.ProcessInterval(iv))
	require.NoError(t, enc.ProcessCall("HG001", [2]int64{0, 9}, iv, testFields(t, "0/1", "A", "G", nil)))
	require.NoError(t, enc.Finalize())

	b, err := Open(prefix + ".bgen")
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, uint32(1), b.FlagHasSampleIDs)

	samples, err := ReadSamples(b)
	require.NoError(t, err)
	require.Equal(t, []Sample{{SampleID: "HG001"}, {SampleID: "HG002"}}, samples)

	// The variant blocks still parse with the sample block in front.
	v := b.NewVariantReader().Read()
	require.NotNil(t, v)
	require.Equal(t, "1:9", v.ID)
}

func TestEncoderSampleListCardinalityMismatch(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "samples.txt")
	require.NoError(t, os.WriteFile(listPath, []byte("only_one\n"), 0o644))

	cfg := ExportConfig{OutputPrefix: filepath.Join(dir, "bad"), SampleList: listPath}
	_, err := NewEncoder(cfg, DefaultFieldTypes(), RowRange{Low: 0, High: 4})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestEncoderProtocolViolations(t *testing.T) {
	enc := newTestEncoder(t, ExportConfig{}, RowRange{Low: 0, High: 3})

	iv := GenomicInterval{Contig: "1", Start: 1, End: 1}

	// Call before any interval.
	err := enc.ProcessCall("s", [2]int64{0, 1}, iv, testFields(t, "0/1", "A", "C", nil))
	require.ErrorIs(t, err, ErrConfiguration)

	require.NoError(t, enc.ProcessInterval(iv))

	// Row outside the declared range.
	err = enc.ProcessCall("s", [2]int64{9, 1}, iv, testFields(t, "0/1", "A", "C", nil))
	require.ErrorIs(t, err, ErrValueRange)

	// Rows must increase within a column.
	require.NoError(t, enc.ProcessCall("s2", [2]int64{2, 1}, iv, testFields(t, "0/1", "A", "C", nil)))
	err = enc.ProcessCall("s1", [2]int64{1, 1}, iv, testFields(t, "0/1", "A", "C", nil))
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestEncoderEmptyRowRange(t *testing.T) {
	_, err := NewEncoder(ExportConfig{OutputPrefix: filepath.Join(t.TempDir(), "x")}, DefaultFieldTypes(), RowRange{Low: 3, High: 2})
	require.ErrorIs(t, err, ErrConfiguration)
}
