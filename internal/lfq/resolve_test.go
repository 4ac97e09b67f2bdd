package lfq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func peakWithApex(seq string, mz float64, scanIndex int, intensity float64, isMBR bool) *ChromatographicPeak {
	p := NewChromatographicPeak("run1.mzML", Identification{Sequence: seq, BaseSequence: seq}, isMBR)
	p.Envelopes = []IsotopicEnvelope{{Peak: IndexedPeak{Mz: mz, ScanIndex: scanIndex, Intensity: intensity}, Charge: 2, Intensity: intensity}}
	p.RecomputeIntensity(false)
	return p
}

func TestResolveConflictsDropsApexlessMBRPeaks(t *testing.T) {
	mbrNoApex := NewChromatographicPeak("run1.mzML", Identification{Sequence: "PEPTIDE"}, true)
	kept := ResolveConflicts([]*ChromatographicPeak{mbrNoApex}, false)
	assert.Empty(t, kept)
}

func TestResolveConflictsMergesTwoMSMSPeaksSharingApex(t *testing.T) {
	a := peakWithApex("PEPTIDE", 500.25, 3, 1e6, false)
	b := peakWithApex("PEPTIDE", 500.25, 3, 1e6, false)
	b.Identifications[0].ScanID = 42 // distinct PSM, same apex

	resolved := ResolveConflicts([]*ChromatographicPeak{a, b}, false)
	require.Len(t, resolved, 1)
	assert.Len(t, resolved[0].Identifications, 2)
}

func TestResolveConflictsPrefersMSMSOverMBRAtSameApex(t *testing.T) {
	mbr := peakWithApex("PEPTIDE", 500.25, 3, 2e6, true)
	msms := peakWithApex("PEPTIDE", 500.25, 3, 1e6, false)

	resolved := ResolveConflicts([]*ChromatographicPeak{mbr, msms}, false)
	require.Len(t, resolved, 1)
	assert.False(t, resolved[0].IsMBR)
}

func TestResolveConflictsKeepsHigherScoringMBRWhenSequencesDiffer(t *testing.T) {
	weakMBR := peakWithApex("PEPTIDEA", 500.25, 3, 1e6, true)
	strongMBR := peakWithApex("PEPTIDEB", 500.25, 3, 5e6, true)

	resolved := ResolveConflicts([]*ChromatographicPeak{weakMBR, strongMBR}, false)
	require.Len(t, resolved, 1)
	assert.Equal(t, "PEPTIDEB", resolved[0].Identifications[0].Sequence)
}

func TestResolveConflictsSetsIDCounts(t *testing.T) {
	p := peakWithApex("PEPTIDE", 500.25, 3, 1e6, false)
	resolved := ResolveConflicts([]*ChromatographicPeak{p}, false)
	require.Len(t, resolved, 1)
	assert.Equal(t, 1, resolved[0].NumIDsByBaseSeq)
	assert.Equal(t, 1, resolved[0].NumIDsByFullSeq)
}
