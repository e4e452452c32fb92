package plinkbgen

// Allele is one allele label, e.g. "A" or "TTG".
type Allele string

func (a Allele) String() string {
	return string(a)
}

// Variant is one column of the probabilistic output as read back by the
// VariantReader.
type Variant struct {
	ID            string
	RSID          string
	Chromosome    string
	Position      uint32
	NAlleles      uint16
	Alleles       []Allele
	Probabilities *Probability
}
