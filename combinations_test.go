package plinkbgen

import (
	"reflect"
	"testing"
)

func TestChoose(t *testing.T) {
	cases := []struct{ n, k, want int }{
		{3, 1, 3},
		{4, 1, 4},
		{4, 2, 6},
		{5, 2, 10},
		{3, 2, 3},
		{6, 3, 20},
	}

	for _, c := range cases {
		if got := Choose(c.n, c.k); got != c.want {
			t.Errorf("Choose(%d,%d) = %d, expected %d", c.n, c.k, got, c.want)
		}
	}
}

func TestPhasedSlots(t *testing.T) {
	slots := PhasedSlots(2, 2)
	want := []PhasedSlot{{Haplotype: 0, Allele: 0}, {Haplotype: 1, Allele: 0}}
	if !reflect.DeepEqual(slots, want) {
		t.Errorf("Got %v, expected %v", slots, want)
	}

	for _, c := range []struct{ ploidy, nAlleles int }{
		{1, 2}, {2, 2}, {2, 3}, {3, 4}, {4, 2},
	} {
		got := len(PhasedSlots(c.ploidy, c.nAlleles))
		want := c.ploidy * (c.nAlleles - 1)
		if got != want {
			t.Errorf("PhasedSlots(%d,%d) yields %d entries, expected %d", c.ploidy, c.nAlleles, got, want)
		}
		if got != NumPhasedSlots(c.ploidy, c.nAlleles) {
			t.Errorf("NumPhasedSlots(%d,%d) disagrees with the enumeration", c.ploidy, c.nAlleles)
		}
	}
}

func TestUnphasedSlots(t *testing.T) {
	// Diploid biallelic: three combinations, last one implied.
	slots := UnphasedSlots(2, 2)
	want := [][]int{{2, 0}, {1, 1}}
	if !reflect.DeepEqual(slots, want) {
		t.Errorf("Got %v, expected %v", slots, want)
	}

	for _, c := range []struct{ ploidy, nAlleles int }{
		{1, 2}, {2, 2}, {2, 3}, {3, 3}, {4, 2},
	} {
		got := UnphasedSlots(c.ploidy, c.nAlleles)
		want := Choose(c.ploidy+c.nAlleles-1, c.nAlleles-1) - 1
		if len(got) != want {
			t.Errorf("UnphasedSlots(%d,%d) yields %d entries, expected %d", c.ploidy, c.nAlleles, len(got), want)
		}
		if len(got) != NumUnphasedSlots(c.ploidy, c.nAlleles) {
			t.Errorf("NumUnphasedSlots(%d,%d) disagrees with the enumeration", c.ploidy, c.nAlleles)
		}

		for _, vec := range got {
			sum := 0
			for _, v := range vec {
				sum += v
			}
			if sum != c.ploidy {
				t.Errorf("UnphasedSlots(%d,%d) produced vector %v not summing to ploidy", c.ploidy, c.nAlleles, vec)
			}
		}
	}
}

func TestUnphasedSlotsOrder(t *testing.T) {
	// First component varies slowest, descending; the all-last-allele vector
	// is the one omitted.
	slots := UnphasedSlots(2, 3)
	want := [][]int{{2, 0, 0}, {1, 1, 0}, {1, 0, 1}, {0, 2, 0}, {0, 1, 1}}
	if !reflect.DeepEqual(slots, want) {
		t.Errorf("Got %v, expected %v", slots, want)
	}
}

func TestEnumerationIsPure(t *testing.T) {
	a := UnphasedSlots(3, 3)
	b := UnphasedSlots(3, 3)
	if !reflect.DeepEqual(a, b) {
		t.Error("UnphasedSlots is not stable across calls")
	}

	p1 := PhasedSlots(3, 4)
	p2 := PhasedSlots(3, 4)
	if !reflect.DeepEqual(p1, p2) {
		t.Error("PhasedSlots is not stable across calls")
	}
}
