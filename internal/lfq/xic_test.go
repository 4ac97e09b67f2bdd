package lfq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildXICMissedScanTolerance(t *testing.T) {
	idx := NewPeakIndex()
	reg := idx.Build([]MS1Scan{
		newMS1Scan(1, 60, [2]float64{500.0, 1e5}),
		newMS1Scan(2, 61, [2]float64{500.0, 1e5}),
		newMS1Scan(3, 62), // scan 3 (index 2) missing
		newMS1Scan(4, 63, [2]float64{500.0, 1e5}),
		newMS1Scan(5, 64), // single miss at the tail
	})

	mass := ToMass(500.0, 1)
	tol := NewPpmTolerance(20)

	xic := BuildXIC(idx, reg, mass, 1, 0, tol, 1)
	scanIndexes := make([]int, len(xic))
	for i, p := range xic {
		scanIndexes[i] = p.ScanIndex
	}
	assert.Equal(t, []int{0, 1, 3}, scanIndexes)
}

func TestBuildXICStopsAfterTwoConsecutiveMisses(t *testing.T) {
	idx := NewPeakIndex()
	reg := idx.Build([]MS1Scan{
		newMS1Scan(1, 60, [2]float64{500.0, 1e5}),
		newMS1Scan(2, 61, [2]float64{500.0, 1e5}),
		newMS1Scan(3, 62),
		newMS1Scan(4, 63),
		newMS1Scan(5, 64, [2]float64{500.0, 1e5}), // unreachable: two misses exhausted tolerance first
	})

	mass := ToMass(500.0, 1)
	xic := BuildXIC(idx, reg, mass, 1, 0, NewPpmTolerance(20), 1)
	scanIndexes := make([]int, len(xic))
	for i, p := range xic {
		scanIndexes[i] = p.ScanIndex
	}
	assert.Equal(t, []int{0, 1}, scanIndexes)
}

func TestFilterByPrecursorTolerance(t *testing.T) {
	peaks := []IndexedPeak{
		{Mz: 500.0, ScanIndex: 0},
		{Mz: 550.0, ScanIndex: 1},
	}
	target := ToMass(500.0, 1)
	out := FilterByPrecursorTolerance(peaks, target, 1, NewPpmTolerance(10))
	assert.Len(t, out, 1)
	assert.Equal(t, 500.0, out[0].Mz)
}
