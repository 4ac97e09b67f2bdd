package lfq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMS1Scan(scanNumber int, rt float64, peaks ...[2]float64) MS1Scan {
	s := MS1Scan{ScanNumber: scanNumber, RetentionTime: rt}
	for _, p := range peaks {
		s.Peaks = append(s.Peaks, struct {
			Mz        float64
			Intensity float64
		}{Mz: p[0], Intensity: p[1]})
	}
	return s
}

func TestPeakIndexBuildAndFind(t *testing.T) {
	idx := NewPeakIndex()
	scans := []MS1Scan{
		newMS1Scan(1, 60, [2]float64{500.25, 1e6}),
		newMS1Scan(2, 61),
	}
	reg := idx.Build(scans)

	require.Len(t, reg.Scans, 2)
	assert.Equal(t, 0, reg.Scans[0].ScanIndex)
	assert.Equal(t, 60.0, reg.Scans[0].RetentionTime)

	mass := ToMass(500.25, 2)
	peak, ok := idx.Find(mass, 0, NewPpmTolerance(10), 2)
	require.True(t, ok)
	assert.Equal(t, 500.25, peak.Mz)
	assert.Equal(t, 0, peak.ScanIndex)
}

func TestPeakIndexFindOutsideTolerance(t *testing.T) {
	idx := NewPeakIndex()
	reg := idx.Build([]MS1Scan{newMS1Scan(1, 60, [2]float64{500.25, 1e6})})

	// a target mass far enough away that no bucket in range holds a peak.
	_, ok := idx.Find(ToMass(600.0, 2), 0, NewPpmTolerance(10), 2)
	assert.False(t, ok)
	_ = reg
}

func TestScanRegistryPrecursorScanIndex(t *testing.T) {
	idx := NewPeakIndex()
	reg := idx.Build([]MS1Scan{
		newMS1Scan(1, 60),
		newMS1Scan(2, 65),
		newMS1Scan(3, 70),
	})

	assert.Equal(t, 1, reg.PrecursorScanIndex(66))
	// MS2 time preceding every MS1 scan: first scan, XIC walks forward only.
	assert.Equal(t, 0, reg.PrecursorScanIndex(10))
}
