package lfq

import "math"

// offByOneShifts is the set of off-by-one isotope shifts tested per
// spec.md §4.E: the intended series (0) and the two error checks (+-1).
var offByOneShifts = []int{-1, 0, 1}

// ladderIsotope is one matched rung of an isotope ladder attempt.
type ladderIsotope struct {
	isotopeIndex int
	observed     IndexedPeak
	theoretical  IsotopePattern
}

// BuildEnvelope attempts to validate one candidate peak in the XIC as the
// peak-finding isotope of a full theoretical ladder, trying isotopeTolPPM
// off-by-one shifts in {-1,0,+1} and accepting the shift-0 series if it
// passes the intensity-ratio ladder walk and the correlation check.
// Returns false if the peak should be rejected.
func BuildEnvelope(idx *PeakIndex, peak IndexedPeak, charge int, peakFindingMass float64, pattern []IsotopePattern, isotopeTolPPM float64, numIsotopesRequired int) (IsotopicEnvelope, bool) {
	if len(pattern) == 0 {
		return IsotopicEnvelope{}, false
	}

	peakFindingIndex := peakFindingIsotopeIndex(pattern)
	observedMassError := ToMass(peak.Mz, charge) - peakFindingMass
	tol := NewPpmTolerance(isotopeTolPPM)

	laddersByShift := map[int][]ladderIsotope{}
	for _, k := range offByOneShifts {
		ladder := walkLadder(idx, peak.ScanIndex, charge, peakFindingMass, pattern, peakFindingIndex, observedMassError, float64(k), tol)
		laddersByShift[k] = ladder
	}

	if len(laddersByShift[0]) < numIsotopesRequired {
		return IsotopicEnvelope{}, false
	}

	obs0, theor0, padded0 := buildCorrelationVectors(idx, laddersByShift[0], peak, charge)
	corr0 := pearson(obs0, theor0)
	if corr0 <= 0.7 {
		return IsotopicEnvelope{}, false
	}
	corrPadded0 := pearson(padded0.obs, padded0.theor)

	for _, k := range []int{-1, 1} {
		_, _, paddedK := buildCorrelationVectors(idx, laddersByShift[k], peak, charge)
		corrPaddedK := pearson(paddedK.obs, paddedK.theor)
		if corrPaddedK-corrPadded0 > 0.1 {
			return IsotopicEnvelope{}, false
		}
	}

	sum := 0.0
	for _, iso := range laddersByShift[0] {
		sum += iso.observed.Intensity
	}
	return NewIsotopicEnvelope(peak, charge, sum), true
}

// peakFindingIsotopeIndex returns the index into pattern of the isotope
// whose normalized abundance is 1 (the isotope the candidate peak is
// assumed to be), from which walkLadder walks outward. Returns 0 if no
// entry has abundance exactly 1.
func peakFindingIsotopeIndex(pattern []IsotopePattern) int {
	for i, p := range pattern {
		if p.NormalizedAbundance == 1 {
			return i
		}
	}
	return 0
}

// walkLadder places the full theoretical isotope ladder centered on the
// candidate peak for off-by-one shift k, walking outward from the
// peak-finding index: decreasing indices first, then increasing. The walk
// for a direction stops on the first failed placement.
func walkLadder(idx *PeakIndex, centerScanIndex, charge int, peakFindingMass float64, pattern []IsotopePattern, peakFindingIndex int, observedMassError, k float64, tol PpmTolerance) []ladderIsotope {
	var out []ladderIsotope
	var anchorIntensity float64

	place := func(i int) (ladderIsotope, bool) {
		theoretical := pattern[i]
		isotopeMass := peakFindingMass + observedMassError + (theoretical.MassShift - pattern[peakFindingIndex].MassShift) + k*C13MinusC12
		found, ok := idx.Find(isotopeMass, centerScanIndex, tol, charge)
		if !ok {
			return ladderIsotope{}, false
		}
		ref := anchorIntensity
		if i == peakFindingIndex {
			ref = found.Intensity
		}
		theorIntensity := theoreticalIntensityAnchor(ref, theoretical, pattern[peakFindingIndex])
		lo, hi := theorIntensity/4, theorIntensity*4
		if found.Intensity < lo || found.Intensity > hi {
			return ladderIsotope{}, false
		}
		return ladderIsotope{isotopeIndex: i, observed: found, theoretical: theoretical}, true
	}

	// the peak-finding isotope itself is the candidate peak: establish the
	// anchor so neighbouring ratios are checked against it, then walk down
	// then up.
	anchor, ok := place(peakFindingIndex)
	if !ok {
		return nil
	}
	anchorIntensity = anchor.observed.Intensity
	out = append(out, anchor)

	for i := peakFindingIndex - 1; i >= 0; i-- {
		iso, ok := place(i)
		if !ok {
			break
		}
		out = append(out, iso)
	}
	for i := peakFindingIndex + 1; i < len(pattern); i++ {
		iso, ok := place(i)
		if !ok {
			break
		}
		out = append(out, iso)
	}
	return out
}

// theoreticalIntensityAnchor scales the anchor (peak-finding) isotope's
// observed intensity by the ratio of theoretical abundances, giving the
// expected intensity of isotope `theoretical` relative to the anchor.
func theoreticalIntensityAnchor(anchorObservedIntensity float64, theoretical, anchor IsotopePattern) float64 {
	if anchor.NormalizedAbundance == 0 {
		return 0
	}
	return anchorObservedIntensity * theoretical.NormalizedAbundance / anchor.NormalizedAbundance
}

type correlationVectors struct {
	obs, theor []float64
}

// buildCorrelationVectors builds (observed, theoretical) intensity vectors
// for the found isotopes of ladder, then appends a padding point at
// mass-(C13-C12) below the series (one isotope below the lowest-index
// isotope found in the ladder) whose theoretical intensity is 0 and observed
// intensity is whatever the index holds there (0 if absent).
func buildCorrelationVectors(idx *PeakIndex, ladder []ladderIsotope, peak IndexedPeak, charge int) ([]float64, []float64, correlationVectors) {
	obs := make([]float64, 0, len(ladder))
	theor := make([]float64, 0, len(ladder))
	for _, iso := range ladder {
		obs = append(obs, iso.observed.Intensity)
		theor = append(theor, iso.theoretical.NormalizedAbundance)
	}

	paddingObs := 0.0
	if len(ladder) > 0 {
		lowest := ladder[0]
		for _, iso := range ladder[1:] {
			if iso.isotopeIndex < lowest.isotopeIndex {
				lowest = iso
			}
		}
		lowestMass := ToMass(lowest.observed.Mz, charge) - C13MinusC12
		if p, ok := idx.Find(lowestMass, peak.ScanIndex, NewPpmTolerance(20), charge); ok {
			paddingObs = p.Intensity
		}
	}

	paddedObs := append(append([]float64{}, obs...), paddingObs)
	paddedTheor := append(append([]float64{}, theor...), 0)

	return obs, theor, correlationVectors{obs: paddedObs, theor: paddedTheor}
}

// pearson returns the Pearson correlation coefficient of x and y. Returns 0
// if fewer than two points or either vector has zero variance.
func pearson(x, y []float64) float64 {
	n := len(x)
	if n < 2 || n != len(y) {
		return 0
	}
	var sx, sy float64
	for i := 0; i < n; i++ {
		sx += x[i]
		sy += y[i]
	}
	mx, my := sx/float64(n), sy/float64(n)

	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}
