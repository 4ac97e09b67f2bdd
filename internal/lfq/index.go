package lfq

import "math"

// PeakIndex is a mapping from integer m/z bucket to a mapping from scan
// index to the IndexedPeak observed there. Building it also populates the
// parallel ScanRegistry (component B) in lockstep, since both are derived
// from one pass over a file's MS1 scans.
type PeakIndex struct {
	buckets map[int]map[int]IndexedPeak
}

// NewPeakIndex returns an empty index. Equivalent to
// NewPeakIndexWithCapacity(0).
func NewPeakIndex() *PeakIndex {
	return NewPeakIndexWithCapacity(0)
}

// NewPeakIndexWithCapacity returns an empty index whose bucket map is
// pre-sized at bucketCapacityHint (config.Config.PeakBufferHint), avoiding
// the rehashing an unsized map.Build would otherwise do while indexing a
// large file's first scans. bucketCapacityHint <= 0 behaves like
// NewPeakIndex.
func NewPeakIndexWithCapacity(bucketCapacityHint int) *PeakIndex {
	if bucketCapacityHint <= 0 {
		return &PeakIndex{buckets: make(map[int]map[int]IndexedPeak)}
	}
	return &PeakIndex{buckets: make(map[int]map[int]IndexedPeak, bucketCapacityHint)}
}

// MS1Scan is the minimal shape PeakIndex.Build needs from a parsed MS1
// spectrum: its retention time and its centroided peaks.
type MS1Scan struct {
	ScanNumber    int
	RetentionTime float64 // seconds
	Peaks         []struct {
		Mz        float64
		Intensity float64
	}
}

// Build walks ms1Scans in order, assigning each a zero-based scan index and
// inserting every peak at bucket round(mz*BINS_PER_DALTON) keyed by scan
// index. Returns the index and the scan registry built alongside it.
func (idx *PeakIndex) Build(ms1Scans []MS1Scan) *ScanRegistry {
	reg := &ScanRegistry{Scans: make([]ScanInfo, 0, len(ms1Scans))}
	for scanIndex, scan := range ms1Scans {
		reg.Scans = append(reg.Scans, ScanInfo{
			ScanNumber:    scan.ScanNumber,
			ScanIndex:     scanIndex,
			RetentionTime: scan.RetentionTime,
		})
		for _, pk := range scan.Peaks {
			bucket := MzBucket(pk.Mz)
			m, ok := idx.buckets[bucket]
			if !ok {
				m = make(map[int]IndexedPeak)
				idx.buckets[bucket] = m
			}
			m[scanIndex] = IndexedPeak{
				Mz:            pk.Mz,
				Intensity:     pk.Intensity,
				ScanIndex:     scanIndex,
				RetentionTime: scan.RetentionTime,
			}
		}
	}
	return reg
}

// Insert adds a single peak directly at its m/z bucket, keyed by its scan
// index, replacing any peak already stored there.
func (idx *PeakIndex) Insert(p IndexedPeak) {
	bucket := MzBucket(p.Mz)
	m, ok := idx.buckets[bucket]
	if !ok {
		m = make(map[int]IndexedPeak)
		idx.buckets[bucket] = m
	}
	m[p.ScanIndex] = p
}

// Buckets exposes the underlying map for serialization (internal/lfq/persist.go).
func (idx *PeakIndex) Buckets() map[int]map[int]IndexedPeak {
	return idx.buckets
}

// Find locates the peak nearest targetMass, at scanIndex, within ppmTol at
// the given charge. Scans bucket range [floor(minMz*100), ceil(maxMz*100)].
// Returns false if no peak in that scan falls within tolerance.
func (idx *PeakIndex) Find(targetMass float64, scanIndex int, ppmTol PpmTolerance, charge int) (IndexedPeak, bool) {
	minMz := ToMz(ppmTol.Min(targetMass), charge)
	maxMz := ToMz(ppmTol.Max(targetMass), charge)
	if minMz > maxMz {
		minMz, maxMz = maxMz, minMz
	}
	lo := int(math.Floor(minMz * BinsPerDalton))
	hi := int(math.Ceil(maxMz * BinsPerDalton))

	var best IndexedPeak
	found := false
	bestDiff := math.MaxFloat64

	for bucket := lo; bucket <= hi; bucket++ {
		m, ok := idx.buckets[bucket]
		if !ok {
			continue
		}
		peak, ok := m[scanIndex]
		if !ok {
			continue
		}
		mass := ToMass(peak.Mz, charge)
		if !ppmTol.Within(mass, targetMass) {
			continue
		}
		diff := math.Abs(mass - targetMass)
		if diff < bestDiff {
			bestDiff = diff
			best = peak
			found = true
		}
	}
	return best, found
}
