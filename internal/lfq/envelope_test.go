package lfq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoIsotopePattern is a minimal theoretical pattern: monoisotopic (shift 0,
// abundance 1) and one C13 isotope at half abundance.
func twoIsotopePattern() []IsotopePattern {
	return []IsotopePattern{
		{MassShift: 0, NormalizedAbundance: 1},
		{MassShift: C13MinusC12, NormalizedAbundance: 0.5},
	}
}

func buildIndexWithPeaks(charge int, monoMz float64, monoIntensity, isotopeIntensity float64) *PeakIndex {
	idx := NewPeakIndex()
	isotopeMz := monoMz + C13MinusC12/float64(charge)
	idx.Build([]MS1Scan{
		newMS1Scan(1, 60, [2]float64{monoMz, monoIntensity}, [2]float64{isotopeMz, isotopeIntensity}),
	})
	return idx
}

func TestBuildEnvelopeAcceptsMatchingLadder(t *testing.T) {
	charge := 2
	monoMass := 998.49
	monoMz := ToMz(monoMass, charge)
	idx := buildIndexWithPeaks(charge, monoMz, 1e6, 5e5) // ratio matches abundance 0.5

	peak, ok := idx.Find(monoMass, 0, NewPpmTolerance(20), charge)
	require.True(t, ok)

	env, ok := BuildEnvelope(idx, peak, charge, monoMass, twoIsotopePattern(), 5, 2)
	require.True(t, ok)
	assert.Equal(t, charge, env.Charge)
	assert.Greater(t, env.Intensity, 0.0)
}

func TestBuildEnvelopeRejectsTooFewIsotopes(t *testing.T) {
	charge := 2
	monoMass := 998.49
	monoMz := ToMz(monoMass, charge)
	idx := NewPeakIndex()
	idx.Build([]MS1Scan{newMS1Scan(1, 60, [2]float64{monoMz, 1e6})}) // no second isotope present

	peak, ok := idx.Find(monoMass, 0, NewPpmTolerance(20), charge)
	require.True(t, ok)

	_, ok = BuildEnvelope(idx, peak, charge, monoMass, twoIsotopePattern(), 5, 2)
	assert.False(t, ok)
}

func TestBuildEnvelopeRejectsIntensityOutsideRatioWindow(t *testing.T) {
	charge := 2
	monoMass := 998.49
	monoMz := ToMz(monoMass, charge)
	// isotope intensity far outside [theoretical/4, theoretical*4] of the anchor.
	idx := buildIndexWithPeaks(charge, monoMz, 1e6, 1e6*0.5*10)

	peak, ok := idx.Find(monoMass, 0, NewPpmTolerance(20), charge)
	require.True(t, ok)

	_, ok = BuildEnvelope(idx, peak, charge, monoMass, twoIsotopePattern(), 5, 2)
	assert.False(t, ok)
}
