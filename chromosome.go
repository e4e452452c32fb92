package plinkbgen

import "strings"

// ChromosomeCode takes a contig name and returns the numeric chromosome code
// used in the text genotype-matrix files. Autosomes pass through, the sex and
// mitochondrial contigs map onto their conventional codes, and anything
// unrecognized becomes "0".
func ChromosomeCode(contig string) string {
	name := strings.TrimPrefix(contig, "chr")
	name = strings.TrimPrefix(name, "0")

	switch name {
	case "1", "2", "3", "4", "5", "6", "7", "8", "9",
		"10", "11", "12", "13", "14", "15", "16", "17", "18",
		"19", "20", "21", "22":
		return name
	case "X":
		return "23"
	case "Y":
		return "24"
	case "XY":
		return "25"
	case "M", "MT":
		return "26"
	}

	return "0"
}
