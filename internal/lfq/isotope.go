package lfq

import "strings"

// Per-residue atom counts (C, H, N, O, S), generalized from the monoisotopic
// molecular-weight tables used elsewhere in this codebase's ancestry for
// ProteinWeight (carbon/hydrogen/nitrogen/oxygen/sulfur per one-letter
// code). Values are residue contributions (i.e. already dehydrated); a
// terminal water (H2O) is added once per peptide in ElementComposition.
var residueC = map[byte]int{
	'A': 3, 'B': 4, 'C': 3, 'D': 4, 'E': 5, 'F': 9, 'G': 2, 'H': 6, 'I': 6,
	'J': 6, 'K': 6, 'L': 6, 'M': 5, 'N': 4, 'O': 12, 'P': 5, 'Q': 5, 'R': 6,
	'S': 3, 'T': 4, 'U': 3, 'V': 5, 'W': 11, 'X': 0, 'Y': 9, 'Z': 5,
}

var residueH = map[byte]int{
	'A': 5, 'B': 5, 'C': 5, 'D': 5, 'E': 7, 'F': 9, 'G': 3, 'H': 7, 'I': 11,
	'J': 11, 'K': 12, 'L': 11, 'M': 9, 'N': 6, 'O': 19, 'P': 7, 'Q': 8, 'R': 12,
	'S': 5, 'T': 7, 'U': 5, 'V': 9, 'W': 10, 'X': 0, 'Y': 9, 'Z': 7,
}

var residueN = map[byte]int{
	'A': 1, 'B': 1, 'C': 1, 'D': 1, 'E': 1, 'F': 1, 'G': 1, 'H': 3, 'I': 1,
	'J': 1, 'K': 2, 'L': 1, 'M': 1, 'N': 2, 'O': 3, 'P': 1, 'Q': 2, 'R': 4,
	'S': 1, 'T': 1, 'U': 1, 'V': 1, 'W': 2, 'X': 0, 'Y': 1, 'Z': 1,
}

var residueO = map[byte]int{
	'A': 1, 'B': 3, 'C': 1, 'D': 3, 'E': 3, 'F': 1, 'G': 1, 'H': 1, 'I': 1,
	'J': 1, 'K': 1, 'L': 1, 'M': 1, 'N': 2, 'O': 2, 'P': 1, 'Q': 2, 'R': 1,
	'S': 2, 'T': 2, 'U': 1, 'V': 1, 'W': 1, 'X': 0, 'Y': 2, 'Z': 3,
}

var residueS = map[byte]int{
	'A': 0, 'B': 0, 'C': 1, 'D': 0, 'E': 0, 'F': 0, 'G': 0, 'H': 0, 'I': 0,
	'J': 0, 'K': 0, 'L': 0, 'M': 1, 'N': 0, 'O': 0, 'P': 0, 'Q': 0, 'R': 0,
	'S': 0, 'T': 0, 'U': 0, 'V': 0, 'W': 0, 'X': 0, 'Y': 0, 'Z': 0,
}

// carbamidomethylCysteine is the fixed modification applied to every
// cysteine in the spec: +C2H3NO (alkylation by iodoacetamide).
const (
	carbamidomethylC = 2
	carbamidomethylH = 3
	carbamidomethylN = 1
	carbamidomethylO = 1
)

// ElementComposition is the atom counts of a peptide's neutral molecular
// formula, the input to the isotope-cluster calculator.
type ElementComposition struct {
	C, H, N, O, S int
}

// ComputeElementComposition derives a peptide's molecular formula from its
// base sequence plus a fixed carbamidomethyl-cysteine adjustment and a +O
// for every ]147]-tagged residue in modifications (oxidized methionine,
// annotated by its post-modification residue mass of 147 Da in the
// tide-search dialect's modification column).
func ComputeElementComposition(baseSequence, modifications string) ElementComposition {
	comp := ElementComposition{H: 2, O: 1} // terminal water
	for i := 0; i < len(baseSequence); i++ {
		aa := baseSequence[i]
		comp.C += residueC[aa]
		comp.H += residueH[aa]
		comp.N += residueN[aa]
		comp.O += residueO[aa]
		comp.S += residueS[aa]
		if aa == 'C' {
			comp.C += carbamidomethylC
			comp.H += carbamidomethylH
			comp.N += carbamidomethylN
			comp.O += carbamidomethylO
		}
	}
	comp.O += strings.Count(modifications, "147]")
	return comp
}

// perAtomIsotopeDistribution gives, for one atom of an element, the
// probability of it contributing 0, 1, 2, ... extra C13-C12-sized mass
// units, from natural isotopic abundances (IUPAC 2021 values).
var perAtomIsotopeDistribution = map[byte][]float64{
	'C': {0.9893, 0.0107},
	'H': {0.999885, 0.000115},
	'N': {0.99636, 0.00364},
	'O': {0.99757, 0.00038, 0.00205},
	'S': {0.9499, 0.0075, 0.0425},
}

const maxIsotopeShift = 8

// IsotopePattern is a theoretical isotope pair: its mass shift from the
// monoisotopic mass, and its abundance normalized so the most abundant
// isotope is 1.0.
type IsotopePattern struct {
	MassShift          float64
	NormalizedAbundance float64
}

// ComputeIsotopePattern convolves the isotope distributions of every atom in
// comp to approximate the peptide's isotopic envelope, then keeps pairs
// satisfying: the first numIsotopesRequired, or normalized abundance > 0.1.
// This is the "external chemistry routine" of spec.md §4.C made concrete.
func ComputeIsotopePattern(comp ElementComposition, numIsotopesRequired int) []IsotopePattern {
	dist := []float64{1}
	dist = convolveAtoms(dist, perAtomIsotopeDistribution['C'], comp.C)
	dist = convolveAtoms(dist, perAtomIsotopeDistribution['H'], comp.H)
	dist = convolveAtoms(dist, perAtomIsotopeDistribution['N'], comp.N)
	dist = convolveAtoms(dist, perAtomIsotopeDistribution['O'], comp.O)
	dist = convolveAtoms(dist, perAtomIsotopeDistribution['S'], comp.S)

	maxAbundance := 0.0
	for _, a := range dist {
		if a > maxAbundance {
			maxAbundance = a
		}
	}
	if maxAbundance == 0 {
		maxAbundance = 1
	}

	var kept []IsotopePattern
	for i, a := range dist {
		normalized := a / maxAbundance
		if i < numIsotopesRequired || normalized > 0.1 {
			kept = append(kept, IsotopePattern{
				MassShift:           float64(i) * C13MinusC12,
				NormalizedAbundance: normalized,
			})
		}
	}
	return kept
}

// convolveAtoms convolves dist with perAtom, count times, truncating to
// maxIsotopeShift+1 terms so the distribution stays bounded regardless of
// how many atoms of the element the peptide has.
func convolveAtoms(dist, perAtom []float64, count int) []float64 {
	if count <= 0 || len(perAtom) == 0 {
		return dist
	}
	for i := 0; i < count; i++ {
		n := len(dist) + len(perAtom) - 1
		if n > maxIsotopeShift+1 {
			n = maxIsotopeShift + 1
		}
		next := make([]float64, n)
		for a, da := range dist {
			if da == 0 {
				continue
			}
			for b, db := range perAtom {
				idx := a + b
				if idx >= n {
					continue
				}
				next[idx] += da * db
			}
		}
		dist = next
	}
	return dist
}

// PeakFindingMassShift returns the mass shift of the isotope whose
// normalized abundance is (numerically) 1 — the peak-finding isotope.
func PeakFindingMassShift(pattern []IsotopePattern) float64 {
	for _, p := range pattern {
		if p.NormalizedAbundance == 1 {
			return p.MassShift
		}
	}
	// degenerate (empty or no exact 1.0 entry after truncation): fall back
	// to the highest-abundance entry.
	best := IsotopePattern{}
	for _, p := range pattern {
		if p.NormalizedAbundance > best.NormalizedAbundance {
			best = p
		}
	}
	return best.MassShift
}

// IsotopeModel maps peptide sequence -> theoretical isotope pattern, and
// resolves every identification's PeakFindingMass in place.
type IsotopeModel struct {
	patterns map[string][]IsotopePattern
}

// ComputeIsotopeModel is component C: for each distinct (base sequence,
// modifications) pair among ids, compute its isotope pattern, then set
// PeakFindingMass on every identification.
func ComputeIsotopeModel(ids []Identification, numIsotopesRequired int) *IsotopeModel {
	model := &IsotopeModel{patterns: make(map[string][]IsotopePattern)}
	for i := range ids {
		key := ids[i].BaseSequence + "|" + ids[i].Modifications
		pattern, ok := model.patterns[key]
		if !ok {
			comp := ComputeElementComposition(ids[i].BaseSequence, ids[i].Modifications)
			pattern = ComputeIsotopePattern(comp, numIsotopesRequired)
			model.patterns[key] = pattern
		}
		ids[i].PeakFindingMass = ids[i].MonoisotopicMass + PeakFindingMassShift(pattern)
	}
	return model
}

// PatternFor returns the theoretical isotope pattern computed for an
// identification's (base sequence, modifications) pair.
func (m *IsotopeModel) PatternFor(id Identification) []IsotopePattern {
	return m.patterns[id.BaseSequence+"|"+id.Modifications]
}

// CreateChargeStates returns the inclusive range [minZ, maxZ] of precursor
// charges observed across ids.
func CreateChargeStates(ids []Identification) []int {
	if len(ids) == 0 {
		return nil
	}
	minZ, maxZ := ids[0].PrecursorCharge, ids[0].PrecursorCharge
	for _, id := range ids[1:] {
		if id.PrecursorCharge < minZ {
			minZ = id.PrecursorCharge
		}
		if id.PrecursorCharge > maxZ {
			maxZ = id.PrecursorCharge
		}
	}
	states := make([]int, 0, maxZ-minZ+1)
	for z := minZ; z <= maxZ; z++ {
		states = append(states, z)
	}
	return states
}
