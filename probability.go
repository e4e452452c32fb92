package plinkbgen

type Probability struct {
	NSamples            uint32
	NAlleles            uint16
	MinimumPloidy       uint8
	MaximumPloidy       uint8
	Phased              bool
	NProbabilityBits    uint8 // nbits. The encoder always writes 8.
	SampleProbabilities []*SampleProbability
}

// SampleProbability represents the variant data for one specific individual
// at one specific locus, including information on whether this data is
// missing, what that individual's ploidy is, and then either (1) the
// probabilities for the phased haplotypes or (2) the probabilities for the
// genotypes.
type SampleProbability struct {
	Missing       bool
	Ploidy        uint8 // Limited to 0-63
	Probabilities []float64
}
