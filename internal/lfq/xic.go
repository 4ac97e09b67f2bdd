package lfq

// BuildXIC walks the peak index forward and backward from precursorScanIndex
// looking for a peak near targetMass at the given charge, stopping each
// direction once more than missedScansAllowed consecutive scans miss.
// Returns the matched peaks ordered by retention time (scan index).
// Equivalent to BuildXICWithCapacity with capacityHint 0.
func BuildXIC(idx *PeakIndex, reg *ScanRegistry, targetMass float64, charge int, precursorScanIndex int, ppmTol PpmTolerance, missedScansAllowed int) []IndexedPeak {
	return BuildXICWithCapacity(idx, reg, targetMass, charge, precursorScanIndex, ppmTol, missedScansAllowed, 0)
}

// BuildXICWithCapacity behaves like BuildXIC but preallocates the result
// slice at capacityHint (config.Config.PeakBufferHint), the same
// host-memory-scaled buffer size the spectrum readers use for per-scan peak
// slices, so a long XIC doesn't repeatedly reallocate while being walked.
func BuildXICWithCapacity(idx *PeakIndex, reg *ScanRegistry, targetMass float64, charge int, precursorScanIndex int, ppmTol PpmTolerance, missedScansAllowed int, capacityHint int) []IndexedPeak {
	var xic []IndexedPeak
	if capacityHint > 0 {
		xic = make([]IndexedPeak, 0, capacityHint)
	}

	numScans := len(reg.Scans)

	// forward, including the precursor scan itself
	missed := 0
	for scanIndex := precursorScanIndex; scanIndex < numScans; scanIndex++ {
		peak, ok := idx.Find(targetMass, scanIndex, ppmTol, charge)
		if !ok {
			missed++
			if missed > missedScansAllowed {
				break
			}
			continue
		}
		xic = append(xic, peak)
		missed = 0
	}

	// backward, strictly before the precursor scan
	missed = 0
	for scanIndex := precursorScanIndex - 1; scanIndex >= 0; scanIndex-- {
		peak, ok := idx.Find(targetMass, scanIndex, ppmTol, charge)
		if !ok {
			missed++
			if missed > missedScansAllowed {
				break
			}
			continue
		}
		xic = append(xic, peak)
		missed = 0
	}

	sortPeaksByScan(xic)
	return xic
}

func sortPeaksByScan(peaks []IndexedPeak) {
	// insertion sort: XICs are short (a handful to a few hundred scans),
	// and peaks already arrive in two monotonic runs (forward, then
	// backward), so this is effectively linear in practice.
	for i := 1; i < len(peaks); i++ {
		j := i
		for j > 0 && peaks[j-1].ScanIndex > peaks[j].ScanIndex {
			peaks[j-1], peaks[j] = peaks[j], peaks[j-1]
			j--
		}
	}
}

// FilterByPrecursorTolerance drops any peak whose mass at the given charge
// falls outside ppmTol of peakFindingMass — the stricter, earlier filter
// spec.md §9 picks over the envelope builder's own tolerance check.
func FilterByPrecursorTolerance(peaks []IndexedPeak, peakFindingMass float64, charge int, ppmTol PpmTolerance) []IndexedPeak {
	out := peaks[:0:0]
	for _, p := range peaks {
		mass := ToMass(p.Mz, charge)
		if ppmTol.Within(mass, peakFindingMass) {
			out = append(out, p)
		}
	}
	return out
}
