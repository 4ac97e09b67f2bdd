package lfq

// ResolveConflicts is component H: after quantification, drop apex-less MBR
// peaks, order MSMS peaks before MBR peaks (stable), then merge or discard
// peaks that share an apex IndexedPeak.
func ResolveConflicts(peaks []*ChromatographicPeak, integrate bool) []*ChromatographicPeak {
	kept := make([]*ChromatographicPeak, 0, len(peaks))
	for _, p := range peaks {
		if _, ok := p.Apex(); !ok && p.IsMBR {
			continue
		}
		kept = append(kept, p)
	}

	stableSortMSMSFirst(kept)

	byApex := map[apexKey]*ChromatographicPeak{}
	var resolved []*ChromatographicPeak

	for _, p := range kept {
		apex, ok := p.Apex()
		if !ok {
			resolved = append(resolved, p)
			continue
		}
		key := apexKey{mz: apex.Peak.Mz, scanIndex: apex.Peak.ScanIndex}
		existing, found := byApex[key]
		if !found {
			byApex[key] = p
			resolved = append(resolved, p)
			continue
		}

		switch {
		case !existing.IsMBR && !p.IsMBR:
			// MSMS vs MSMS: merge.
			existing.Merge(p, integrate)
			ComputeMassError(existing)
		case !existing.IsMBR && p.IsMBR:
			// MBR discarded in favor of the MSMS peak already present.
		case existing.IsMBR && !p.IsMBR:
			// shouldn't occur after the MSMS-first sort, but handle
			// defensively by replacing the MBR entry.
			byApex[key] = p
			replaceInResolved(resolved, existing, p)
		default:
			// MBR vs MBR.
			if sameModifiedSequence(existing, p) {
				existing.Merge(p, integrate)
				ComputeMassError(existing)
			} else if mbrScore(p) > mbrScore(existing) {
				byApex[key] = p
				replaceInResolved(resolved, existing, p)
			}
		}
	}

	for _, p := range resolved {
		p.ResolveIDCounts()
	}
	return resolved
}

type apexKey struct {
	mz        float64
	scanIndex int
}

// stableSortMSMSFirst reorders peaks so every MSMS (non-MBR) peak precedes
// every MBR peak, preserving relative order within each group.
func stableSortMSMSFirst(peaks []*ChromatographicPeak) {
	msms := make([]*ChromatographicPeak, 0, len(peaks))
	mbr := make([]*ChromatographicPeak, 0, len(peaks))
	for _, p := range peaks {
		if p.IsMBR {
			mbr = append(mbr, p)
		} else {
			msms = append(msms, p)
		}
	}
	copy(peaks, msms)
	copy(peaks[len(msms):], mbr)
}

func sameModifiedSequence(a, b *ChromatographicPeak) bool {
	if len(a.Identifications) == 0 || len(b.Identifications) == 0 {
		return false
	}
	return a.Identifications[0].Sequence == b.Identifications[0].Sequence
}

// mbrScore is the ranking signal used to choose between two conflicting MBR
// peaks that name different modified sequences: the peak's own intensity,
// the only score available once the MBR search itself is not executed
// (spec.md §9 — the search producing a dedicated MBR confidence score is
// future work).
func mbrScore(p *ChromatographicPeak) float64 {
	return p.Intensity
}

func replaceInResolved(resolved []*ChromatographicPeak, old, new *ChromatographicPeak) {
	for i, p := range resolved {
		if p == old {
			resolved[i] = new
			return
		}
	}
}
