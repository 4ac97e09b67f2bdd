package lfq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelopeAt(scanIndex int, rt, intensity float64, charge int) IsotopicEnvelope {
	return IsotopicEnvelope{
		Peak:   IndexedPeak{Mz: 500.0, Intensity: intensity, ScanIndex: scanIndex, RetentionTime: rt},
		Charge: charge,
	}.withIntensity(intensity)
}

// withIntensity sets Intensity directly (NewIsotopicEnvelope divides by
// charge, which these tests don't want).
func (e IsotopicEnvelope) withIntensity(intensity float64) IsotopicEnvelope {
	e.Intensity = intensity
	return e
}

func TestCutPeakSplitsAtValley(t *testing.T) {
	// spec.md §8 scenario 4: intensities 100, 800, 1000, 200, 900, 300;
	// apex at index 2. d=(1000-200)/1000=0.8>0.6, next d=(900-200)/900~0.78>0.6
	// -> cut at index 3 (valley).
	p := &ChromatographicPeak{
		Identifications: []Identification{{Sequence: "PEPTIDE"}},
		Envelopes: []IsotopicEnvelope{
			envelopeAt(0, 0, 100, 2),
			envelopeAt(1, 1, 800, 2),
			envelopeAt(2, 2, 1000, 2),
			envelopeAt(3, 3, 200, 2),
			envelopeAt(4, 4, 900, 2),
			envelopeAt(5, 5, 300, 2),
		},
	}
	p.RecomputeIntensity(false)

	CutPeak(p, 4, 0.6, false) // id retention time after index-3's rt: keep right half

	require.NotEmpty(t, p.Envelopes)
	assert.Equal(t, 3.0, p.SplitRT)
	for _, e := range p.Envelopes {
		assert.GreaterOrEqual(t, e.Peak.ScanIndex, 3)
	}
}

func TestCutPeakNoOpBelowFiveEnvelopes(t *testing.T) {
	p := &ChromatographicPeak{
		Identifications: []Identification{{Sequence: "PEPTIDE"}},
		Envelopes: []IsotopicEnvelope{
			envelopeAt(0, 0, 100, 2),
			envelopeAt(1, 1, 1000, 2),
			envelopeAt(2, 2, 100, 2),
		},
	}
	p.RecomputeIntensity(false)
	before := len(p.Envelopes)

	CutPeak(p, 1, 0.6, false)

	assert.Len(t, p.Envelopes, before)
	assert.Equal(t, 0.0, p.SplitRT)
}
