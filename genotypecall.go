package plinkbgen

import (
	"fmt"
	"math"
	"strings"

	"github.com/carbocation/pfx"
)

// Field names the encoder consumes from each call.
const (
	fieldGT  = "GT"
	fieldRef = "REF"
	fieldAlt = "ALT"
	fieldPL  = "PL"
)

// altSeparator splits the ALT field into individual allele labels. The
// symbolic non-reference allele arrives as "&".
const altSeparator = "|"

// GenotypeCall is one sample's genotype at one variant column: ploidy,
// observed allele indices (-1 when unknown), the phased flag, and optional
// phred-scaled likelihoods used for the probability layout.
type GenotypeCall struct {
	Ploidy  int
	Alleles []int
	Phased  bool

	// Likelihoods holds the PL values covering every genotype combination in
	// emission order, or nil when the call carries none.
	Likelihoods []int32
}

// Missing reports whether the call carries no usable allele observation.
func (c GenotypeCall) Missing() bool {
	if c.Ploidy == 0 || len(c.Alleles) == 0 {
		return true
	}
	for _, a := range c.Alleles {
		if a < 0 {
			return true
		}
	}

	return false
}

// Code classifies the call into the fixed 2-bit genotype code.
func (c GenotypeCall) Code() GenotypeCode {
	if c.Missing() {
		return GenotypeMissing
	}

	allRef, allSameAlt := true, true
	for i, a := range c.Alleles {
		if a != 0 {
			allRef = false
		}
		if a == 0 || (i > 0 && a != c.Alleles[0]) {
			allSameAlt = false
		}
	}

	switch {
	case allRef:
		return GenotypeHomRef
	case allSameAlt:
		return GenotypeHomAlt
	}

	return GenotypeHet
}

// alleleCounts returns the per-allele multiplicity vector of length nAlleles.
func (c GenotypeCall) alleleCounts(nAlleles int) []int {
	counts := make([]int, nAlleles)
	for _, a := range c.Alleles {
		if a >= 0 && a < nAlleles {
			counts[a]++
		}
	}

	return counts
}

func fieldByName(fields []GenomicField, name string) (GenomicField, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}

	return GenomicField{}, false
}

// parseAlleleLabels resolves the column's allele labels from the REF and ALT
// fields of its first delivered call. The ALT label "&" stands for the
// symbolic non-reference allele.
func parseAlleleLabels(fields []GenomicField) ([]Allele, error) {
	ref, ok := fieldByName(fields, fieldRef)
	if !ok {
		return nil, pfx.Err(fmt.Errorf("%w: call carries no %s field", ErrConfiguration, fieldRef))
	}
	alt, ok := fieldByName(fields, fieldAlt)
	if !ok {
		return nil, pfx.Err(fmt.Errorf("%w: call carries no %s field", ErrConfiguration, fieldAlt))
	}

	alleles := []Allele{Allele(ref.StringValue())}
	for _, label := range strings.Split(alt.StringValue(), altSeparator) {
		if label == "&" {
			label = "<NON_REF>"
		}
		alleles = append(alleles, Allele(label))
	}

	return alleles, nil
}

// parseGenotypeCall decodes the GT field: allele indices at even offsets,
// phase indicators at odd offsets (nonzero meaning the adjacent haplotypes
// are phased). The GT type must be registered as phase-bearing; anything else
// is a configuration error.
func parseGenotypeCall(fields []GenomicField, types FieldTypeMap) (GenotypeCall, error) {
	gtType, err := types.Lookup(fieldGT)
	if err != nil {
		return GenotypeCall{}, pfx.Err(err)
	}
	if !gtType.Phased {
		return GenotypeCall{}, pfx.Err(fmt.Errorf("%w: field %s is not marked phase-bearing and cannot drive genotype encoding", ErrConfiguration, fieldGT))
	}

	gt, ok := fieldByName(fields, fieldGT)
	if !ok {
		// No GT delivered for this cell: treat as a missing diploid call.
		return GenotypeCall{Ploidy: 2, Alleles: []int{-1, -1}}, nil
	}

	n := gt.NumElements()
	if n == 0 {
		return GenotypeCall{Ploidy: 2, Alleles: []int{-1, -1}}, nil
	}

	call := GenotypeCall{Phased: n > 1}
	for i := 0; i < n; i++ {
		v, err := gt.IntAt(i)
		if err != nil {
			return GenotypeCall{}, pfx.Err(err)
		}
		if i%2 == 0 {
			call.Alleles = append(call.Alleles, int(v))
			continue
		}
		if v == 0 {
			call.Phased = false
		}
	}
	call.Ploidy = len(call.Alleles)

	if pl, ok := fieldByName(fields, fieldPL); ok {
		for i := 0; i < pl.NumElements(); i++ {
			v, err := pl.IntAt(i)
			if err != nil {
				return GenotypeCall{}, pfx.Err(err)
			}
			call.Likelihoods = append(call.Likelihoods, v)
		}
	}

	return call, nil
}

// probabilitySlots renders the call's 8-bit probability bytes in canonical
// slot order for the given allele count.
func (c GenotypeCall) probabilitySlots(nAlleles int) []byte {
	if c.Phased {
		slots := PhasedSlots(c.Ploidy, nAlleles)
		out := make([]byte, len(slots))
		if c.Missing() {
			return out
		}
		for i, s := range slots {
			if c.Alleles[s.Haplotype] == s.Allele {
				out[i] = math.MaxUint8
			}
		}

		return out
	}

	n := NumUnphasedSlots(c.Ploidy, nAlleles)
	out := make([]byte, n)
	if c.Missing() {
		return out
	}

	if len(c.Likelihoods) == n+1 {
		// Phred-scaled likelihoods covering every combination, last one
		// implied after normalization.
		linear := make([]float64, len(c.Likelihoods))
		var sum float64
		for i, pl := range c.Likelihoods {
			linear[i] = math.Pow(10, -float64(pl)/10)
			sum += linear[i]
		}
		for i := 0; i < n; i++ {
			out[i] = uint8(math.Round(linear[i] / sum * math.MaxUint8))
		}

		return out
	}

	counts := c.alleleCounts(nAlleles)
	for i, slot := range UnphasedSlots(c.Ploidy, nAlleles) {
		if equalCounts(slot, counts) {
			out[i] = math.MaxUint8
			break
		}
	}

	return out
}

func equalCounts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
