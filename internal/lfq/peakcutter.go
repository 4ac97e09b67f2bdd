package lfq

// CutPeak applies the peak-splitting heuristic of spec.md §4.F. If fewer
// than 5 envelopes share the apex's charge, it is a no-op. Otherwise it
// walks outward from the apex in both directions tracking the running
// valley (the minimum-intensity envelope seen so far); if the
// discrimination factor (drop from the preceding envelope to the valley,
// relative to that envelope) exceeds threshold and the next envelope's rise
// above the valley does too, the peak is cut at the valley and
// every envelope on the side away from idRetentionTimeSeconds is dropped.
// Recurses on the surviving half until no cut triggers. Mutates p in place.
func CutPeak(p *ChromatographicPeak, idRetentionTimeSeconds float64, discriminationFactor float64, integrate bool) {
	for {
		cutIndex, ok := findCut(p, discriminationFactor)
		if !ok {
			return
		}
		valley := p.Envelopes[cutIndex]
		p.SplitRT = valley.Peak.RetentionTime

		if idRetentionTimeSeconds > valley.Peak.RetentionTime {
			p.Envelopes = append([]IsotopicEnvelope{}, p.Envelopes[cutIndex:]...)
		} else {
			p.Envelopes = append([]IsotopicEnvelope{}, p.Envelopes[:cutIndex+1]...)
		}
		p.ResolveChargeStatesObserved()
		p.RecomputeIntensity(integrate)
	}
}

// findCut returns the index (within p.Envelopes, already scan-sorted) of the
// valley to cut at, if the discrimination test triggers twice walking
// outward from the apex in one direction.
func findCut(p *ChromatographicPeak, discriminationFactor float64) (int, bool) {
	apex, ok := p.Apex()
	if !ok {
		return 0, false
	}

	apexCharge := apex.Charge
	sameCharge := make([]int, 0, len(p.Envelopes))
	for i, e := range p.Envelopes {
		if e.Charge == apexCharge {
			sameCharge = append(sameCharge, i)
		}
	}
	if len(sameCharge) < 5 {
		return 0, false
	}

	apexPos := -1
	for pos, i := range sameCharge {
		if p.Envelopes[i].Equal(apex) {
			apexPos = pos
			break
		}
	}
	if apexPos < 0 {
		return 0, false
	}

	if cut, ok := scanDirection(p, sameCharge, apexPos, discriminationFactor, +1); ok {
		return cut, true
	}
	if cut, ok := scanDirection(p, sameCharge, apexPos, discriminationFactor, -1); ok {
		return cut, true
	}
	return 0, false
}

// scanDirection walks sameCharge positions away from apexPos in the given
// direction (+1 or -1), tracking the running valley (minimum intensity seen
// since the apex). At each step, d compares the previous sample in the walk
// against the running valley; if d exceeds threshold and the following
// sample also yields d > threshold against the same valley, the peak is cut
// at the valley.
func scanDirection(p *ChromatographicPeak, sameCharge []int, apexPos int, discriminationFactor float64, direction int) (int, bool) {
	apex := p.Envelopes[sameCharge[apexPos]]
	valleyIntensity := apex.Intensity
	valleyPos := apexPos
	prevIntensity := apex.Intensity

	pos := apexPos + direction
	for pos >= 0 && pos < len(sameCharge) {
		current := p.Envelopes[sameCharge[pos]]
		if current.Intensity < valleyIntensity {
			valleyIntensity = current.Intensity
			valleyPos = pos
		}

		d := 0.0
		if prevIntensity > 0 {
			d = (prevIntensity - valleyIntensity) / prevIntensity
		}

		if d > discriminationFactor {
			nextPos := pos + direction
			if nextPos >= 0 && nextPos < len(sameCharge) {
				next := p.Envelopes[sameCharge[nextPos]]
				d2 := 0.0
				if next.Intensity > 0 {
					d2 = (next.Intensity - valleyIntensity) / next.Intensity
				}
				if d2 > discriminationFactor {
					return sameCharge[valleyPos], true
				}
			}
		}

		prevIntensity = current.Intensity
		pos += direction
	}
	return 0, false
}
