package plinkbgen

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingProcessor captures the callback sequence for assertions.
type recordingProcessor struct {
	intervals []GenomicInterval
	calls     []recordedCall
}

type recordedCall struct {
	sample string
	row    int64
	gt     GenotypeCall
	ref    string
	alt    string
}

func (p *recordingProcessor) ProcessInterval(interval GenomicInterval) error {
	p.intervals = append(p.intervals, interval)
	return nil
}

func (p *recordingProcessor) ProcessCall(sampleName string, coordinates [2]int64, interval GenomicInterval, fields []GenomicField) error {
	call, err := parseGenotypeCall(fields, DefaultFieldTypes())
	if err != nil {
		return err
	}

	rec := recordedCall{sample: sampleName, row: coordinates[0], gt: call}
	for _, f := range fields {
		switch f.Name {
		case fieldRef:
			rec.ref = f.StringValue()
		case fieldAlt:
			rec.alt = f.StringValue()
		}
	}
	p.calls = append(p.calls, rec)

	return nil
}

const replayStream = `# two variants, three samples
variant	1	100	100
call	0	HG001	0|1	A	C
call	1	HG002	1|1	A	C
call	2	HG003	0|0	A	C
variant	1	250	250
call	0	HG001	0/1	G	T	40,0,40
call	2	HG003	.	G	T
`

func TestReplaySourceDrivesProcessor(t *testing.T) {
	var p recordingProcessor
	require.NoError(t, NewReplaySource(strings.NewReader(replayStream)).Run(&p))

	require.Equal(t, []GenomicInterval{
		{Contig: "1", Start: 100, End: 100},
		{Contig: "1", Start: 250, End: 250},
	}, p.intervals)

	require.Len(t, p.calls, 5)
	require.Equal(t, "HG001", p.calls[0].sample)
	require.Equal(t, int64(0), p.calls[0].row)
	require.True(t, p.calls[0].gt.Phased)
	require.Equal(t, []int{0, 1}, p.calls[0].gt.Alleles)
	require.Equal(t, "A", p.calls[0].ref)
	require.Equal(t, "C", p.calls[0].alt)

	// PL travels with the call when present.
	require.Equal(t, []int32{40, 0, 40}, p.calls[3].gt.Likelihoods)
	require.False(t, p.calls[3].gt.Phased)

	// "." renders a missing diploid call.
	require.True(t, p.calls[4].gt.Missing())
}

func TestReplaySourceRowRangeFilter(t *testing.T) {
	var p recordingProcessor
	require.NoError(t, NewReplaySource(strings.NewReader(replayStream)).RunRange(&p, RowRange{Low: 1, High: 2}))

	// Intervals still arrive; only in-range calls do.
	require.Len(t, p.intervals, 2)
	require.Len(t, p.calls, 3)
	for _, c := range p.calls {
		require.GreaterOrEqual(t, c.row, int64(1))
		require.LessOrEqual(t, c.row, int64(2))
	}
}

func TestReplaySourceRejectsMalformedStream(t *testing.T) {
	cases := map[string]string{
		"call before variant": "call\t0\tHG001\t0/1\tA\tC\n",
		"unknown record":      "frobnicate\t1\t2\t3\n",
		"short variant":       "variant\t1\t100\n",
		"short call":          "variant\t1\t100\t100\ncall\t0\tHG001\n",
		"bad coordinate":      "variant\t1\tabc\t100\n",
	}

	for name, stream := range cases {
		t.Run(name, func(t *testing.T) {
			var p recordingProcessor
			require.Error(t, NewReplaySource(strings.NewReader(stream)).Run(&p))
		})
	}
}

func TestReplaySourceEndToEnd(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "replay")
	enc, err := NewEncoder(ExportConfig{OutputPrefix: prefix}, DefaultFieldTypes(), RowRange{Low: 0, High: 2})
	require.NoError(t, err)
	defer enc.Close()

	require.NoError(t, NewReplaySource(strings.NewReader(replayStream)).Run(enc))
	require.NoError(t, enc.Finalize())
	require.Equal(t, uint32(2), enc.NumVariants())

	b, err := Open(prefix + ".bgen")
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, uint32(2), b.NVariants)
	require.Equal(t, uint32(3), b.NSamples)

	vr := b.NewVariantReader()
	v1 := vr.Read()
	require.NotNil(t, v1)
	require.True(t, v1.Probabilities.Phased)

	v2 := vr.Read()
	require.NotNil(t, v2)
	require.False(t, v2.Probabilities.Phased)
	// Row 1 was never delivered for the second variant.
	require.True(t, v2.Probabilities.SampleProbabilities[1].Missing)
}
