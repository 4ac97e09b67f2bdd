package lfq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantifyIdentificationsEndToEndSingleRun(t *testing.T) {
	id := Identification{
		Sequence:         "PEPTIDE",
		BaseSequence:     "PEPTIDE",
		PrecursorCharge:  2,
		SpectralFile:     "run1.mzML",
		ScanID:           100,
		Ms2RetentionTimeMin: 1.0, // 60s
	}
	model := ComputeIsotopeModel([]Identification{id}, 2)
	pattern := model.PatternFor(id)
	require.NotEmpty(t, pattern)

	charge := id.PrecursorCharge
	monoMz := ToMz(id.PeakFindingMass, charge)
	isotopeMz := monoMz + C13MinusC12/float64(charge)

	idx := NewPeakIndex()
	reg := idx.Build([]MS1Scan{
		newMS1Scan(1, 58, [2]float64{monoMz, 1e6}, [2]float64{isotopeMz, 5e5}),
		newMS1Scan(2, 59, [2]float64{monoMz, 1.2e6}, [2]float64{isotopeMz, 6e5}),
		newMS1Scan(3, 60, [2]float64{monoMz, 1.5e6}, [2]float64{isotopeMz, 7.5e5}),
		newMS1Scan(4, 61, [2]float64{monoMz, 1.1e6}, [2]float64{isotopeMz, 5.5e5}),
	})

	cfg := QuantifyConfig{
		PeakFindingPPMTolerance: 20,
		PPMTolerance:            10,
		IsotopeTolerancePPM:     10,
		MissedScansAllowed:      1,
		NumIsotopesRequired:     2,
		IDSpecificChargeState:   true,
		DiscriminationFactor:    0.6,
		MaxThreads:              2,
	}

	peaks := QuantifyIdentifications(idx, reg, model, []Identification{id}, []int{2}, cfg)
	require.Len(t, peaks, 1)

	p := peaks[0]
	assert.NotEmpty(t, p.Envelopes)
	assert.Greater(t, p.Intensity, 0.0)
	assert.InDelta(t, 0.0, p.MassErrorPPM, 50) // apex mass should be very close to PeakFindingMass
}

func TestQuantifyOneIdentificationReturnsNilWithoutMatchingPeak(t *testing.T) {
	id := Identification{
		Sequence:            "PEPTIDE",
		BaseSequence:        "PEPTIDE",
		PrecursorCharge:     2,
		SpectralFile:        "run1.mzML",
		Ms2RetentionTimeMin: 1.0,
	}
	model := ComputeIsotopeModel([]Identification{id}, 2)
	idx := NewPeakIndex()
	reg := idx.Build([]MS1Scan{newMS1Scan(1, 60)}) // empty scan, no peaks anywhere

	cfg := QuantifyConfig{
		PeakFindingPPMTolerance: 20,
		PPMTolerance:            10,
		IsotopeTolerancePPM:     10,
		MissedScansAllowed:      1,
		NumIsotopesRequired:     2,
		IDSpecificChargeState:   true,
		DiscriminationFactor:    0.6,
		MaxThreads:              1,
	}

	peaks := QuantifyIdentifications(idx, reg, model, []Identification{id}, []int{2}, cfg)
	assert.Empty(t, peaks)
}

func TestQuantifyIdentificationsEmptyInput(t *testing.T) {
	idx := NewPeakIndex()
	reg := idx.Build(nil)
	model := ComputeIsotopeModel(nil, 2)
	assert.Nil(t, QuantifyIdentifications(idx, reg, model, nil, []int{2}, QuantifyConfig{MaxThreads: 4}))
}
