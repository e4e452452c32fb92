package plinkbgen

// Choose k from n items can be done in this many ways. Originally derived from
// github.com/limix/bgen /src/util/choose.c
func Choose(n, k int) int {
	if n == 3 && k == 1 {
		// Fastest path, since this is the usual result
		return 3
	} else if k == 1 {
		return n
	}

	ans := 1

	if k > n-k {
		k = n - k
	}

	for j := 1; j <= k; j++ {
		if n%j == 0 {
			ans *= n / j
		} else if ans%j == 0 {
			ans = ans / j * n
		} else {
			ans = (ans * n) / j
		}

		n--
	}

	return ans
}

// PhasedSlot is one probability slot of a phased genotype layout: the
// probability that the given haplotype carries the given allele.
type PhasedSlot struct {
	Haplotype int
	Allele    int
}

// PhasedSlots returns the canonical slot ordering for a phased genotype of
// the given ploidy and allele count: haplotypes outer, alleles 0..nAlleles-2
// inner. The final allele's probability is implied by normalization and has
// no slot. The result has exactly ploidy*(nAlleles-1) entries.
func PhasedSlots(ploidy, nAlleles int) []PhasedSlot {
	if ploidy < 1 || nAlleles < 2 {
		return nil
	}

	slots := make([]PhasedSlot, 0, ploidy*(nAlleles-1))
	for hap := 0; hap < ploidy; hap++ {
		for allele := 0; allele < nAlleles-1; allele++ {
			slots = append(slots, PhasedSlot{Haplotype: hap, Allele: allele})
		}
	}

	return slots
}

// UnphasedSlots returns the canonical slot ordering for an unphased genotype:
// every non-negative vector of per-allele counts of length nAlleles summing
// to ploidy, first component varying slowest from ploidy down to zero. The
// final vector of the enumeration (all copies of the last allele) is implied
// by normalization and omitted, leaving Choose(ploidy+nAlleles-1, nAlleles-1)-1
// entries.
func UnphasedSlots(ploidy, nAlleles int) [][]int {
	if ploidy < 1 || nAlleles < 2 {
		return nil
	}

	full := make([][]int, 0, Choose(ploidy+nAlleles-1, nAlleles-1))
	counts := make([]int, nAlleles)
	full = enumerateCounts(full, counts, 0, ploidy)

	// Drop the implied slot.
	return full[:len(full)-1]
}

// NumUnphasedSlots is the emitted slot count of UnphasedSlots without
// materializing the enumeration.
func NumUnphasedSlots(ploidy, nAlleles int) int {
	if ploidy < 1 || nAlleles < 2 {
		return 0
	}

	return Choose(ploidy+nAlleles-1, nAlleles-1) - 1
}

// NumPhasedSlots is the emitted slot count of PhasedSlots.
func NumPhasedSlots(ploidy, nAlleles int) int {
	if ploidy < 1 || nAlleles < 2 {
		return 0
	}

	return ploidy * (nAlleles - 1)
}

func enumerateCounts(acc [][]int, counts []int, dim, remaining int) [][]int {
	if dim == len(counts)-1 {
		counts[dim] = remaining
		out := make([]int, len(counts))
		copy(out, counts)

		return append(acc, out)
	}

	for c := remaining; c >= 0; c-- {
		counts[dim] = c
		acc = enumerateCounts(acc, counts, dim+1, remaining-c)
	}

	return acc
}
