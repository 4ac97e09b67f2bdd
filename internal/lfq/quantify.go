package lfq

import "sync"

// QuantifyConfig carries every tolerance/threshold §4.G needs, threaded in
// explicitly rather than read from package-level globals (spec.md §9).
type QuantifyConfig struct {
	PeakFindingPPMTolerance float64
	PPMTolerance            float64
	IsotopeTolerancePPM     float64
	MissedScansAllowed      int
	NumIsotopesRequired     int
	IDSpecificChargeState   bool
	Integrate               bool
	DiscriminationFactor    float64
	MaxThreads              int
	PeakBufferHint          int
}

// QuantifyIdentifications is component G: for every identification in one
// spectral file, build a ChromatographicPeak, attach isotopic envelopes
// across the relevant charge states, cut it, trim it to the precursor
// charge's contiguous scan range, and compute its mass error. Identifications
// are partitioned into cfg.MaxThreads contiguous slices, each processed by
// its own goroutine; results are appended to the shared output slice under
// a single mutex, mirroring the teacher's fan-out/single-mutex-merge
// goroutine pattern (internal/eutils/cache.go's stasher/fetcher/streamer
// functions).
func QuantifyIdentifications(idx *PeakIndex, reg *ScanRegistry, model *IsotopeModel, ids []Identification, allFileChargeStates []int, cfg QuantifyConfig) []*ChromatographicPeak {
	if len(ids) == 0 {
		return nil
	}

	threads := cfg.MaxThreads
	if threads < 1 {
		threads = 1
	}
	if threads > len(ids) {
		threads = len(ids)
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []*ChromatographicPeak
	)

	sliceSize := (len(ids) + threads - 1) / threads

	quantifySlice := func(wg *sync.WaitGroup, slice []Identification) {
		defer wg.Done()
		var local []*ChromatographicPeak
		for _, id := range slice {
			peak := quantifyOneIdentification(idx, reg, model, id, allFileChargeStates, cfg)
			if peak != nil {
				local = append(local, peak)
			}
		}
		mu.Lock()
		results = append(results, local...)
		mu.Unlock()
	}

	for start := 0; start < len(ids); start += sliceSize {
		end := start + sliceSize
		if end > len(ids) {
			end = len(ids)
		}
		wg.Add(1)
		go quantifySlice(&wg, ids[start:end])
	}
	wg.Wait()

	return results
}

// quantifyOneIdentification runs the full §4.G pipeline for one
// identification, returning nil if the resulting peak ends up with zero
// envelopes.
func quantifyOneIdentification(idx *PeakIndex, reg *ScanRegistry, model *IsotopeModel, id Identification, allFileChargeStates []int, cfg QuantifyConfig) *ChromatographicPeak {
	peak := NewChromatographicPeak(id.SpectralFile, id, false)

	chargeStates := allFileChargeStates
	if cfg.IDSpecificChargeState {
		chargeStates = []int{id.PrecursorCharge}
	}

	pattern := model.PatternFor(id)
	peakFindingTol := NewPpmTolerance(cfg.PeakFindingPPMTolerance)
	ppmTol := NewPpmTolerance(cfg.PPMTolerance)

	precursorScanIndex := reg.PrecursorScanIndex(id.Ms2RetentionTimeMin * 60)

	for _, z := range chargeStates {
		xic := BuildXICWithCapacity(idx, reg, id.PeakFindingMass, z, precursorScanIndex, peakFindingTol, cfg.MissedScansAllowed, cfg.PeakBufferHint)
		xic = FilterByPrecursorTolerance(xic, id.PeakFindingMass, z, ppmTol)
		for _, candidate := range xic {
			env, ok := BuildEnvelope(idx, candidate, z, id.PeakFindingMass, pattern, cfg.IsotopeTolerancePPM, cfg.NumIsotopesRequired)
			if ok {
				peak.Envelopes = append(peak.Envelopes, env)
			}
		}
	}

	if len(peak.Envelopes) == 0 {
		return nil
	}

	peak.SortEnvelopesByScan()
	peak.ResolveChargeStatesObserved()
	peak.RecomputeIntensity(cfg.Integrate)

	CutPeak(peak, id.Ms2RetentionTimeMin*60, cfg.DiscriminationFactor, cfg.Integrate)

	trimToPrecursorChargeRange(peak, id.PrecursorCharge)
	peak.RecomputeIntensity(cfg.Integrate)

	if len(peak.Envelopes) == 0 {
		return nil
	}

	ComputeMassError(peak)
	return peak
}

// trimToPrecursorChargeRange restricts peak's envelopes to the contiguous
// scan-index range [min,max] spanned by envelopes at the identification's
// precursor charge, per spec.md §4.G.
func trimToPrecursorChargeRange(peak *ChromatographicPeak, precursorCharge int) {
	minScan, maxScan := -1, -1
	for _, e := range peak.Envelopes {
		if e.Charge != precursorCharge {
			continue
		}
		if minScan == -1 || e.Peak.ScanIndex < minScan {
			minScan = e.Peak.ScanIndex
		}
		if maxScan == -1 || e.Peak.ScanIndex > maxScan {
			maxScan = e.Peak.ScanIndex
		}
	}
	if minScan == -1 {
		peak.Envelopes = nil
		return
	}
	trimmed := peak.Envelopes[:0:0]
	for _, e := range peak.Envelopes {
		if e.Peak.ScanIndex >= minScan && e.Peak.ScanIndex <= maxScan {
			trimmed = append(trimmed, e)
		}
	}
	peak.Envelopes = trimmed
	peak.ResolveChargeStatesObserved()
}

// ComputeMassError sets p.MassErrorPPM to the PPM difference between the
// apex's mass (toMass(mz,z)) and the closest identification's peak-finding
// mass.
func ComputeMassError(p *ChromatographicPeak) {
	apex, ok := p.Apex()
	if !ok || len(p.Identifications) == 0 {
		return
	}
	apexMass := ToMass(apex.Peak.Mz, apex.Charge)

	closest := p.Identifications[0]
	bestDiff := absFloat(apexMass - closest.PeakFindingMass)
	for _, id := range p.Identifications[1:] {
		diff := absFloat(apexMass - id.PeakFindingMass)
		if diff < bestDiff {
			bestDiff = diff
			closest = id
		}
	}
	p.MassErrorPPM = PPMDifference(apexMass, closest.PeakFindingMass)
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
