package lfq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unambiguousPeak(seq string, intensity float64) *ChromatographicPeak {
	p := NewChromatographicPeak("f1.mzML", Identification{Sequence: seq, BaseSequence: seq}, false)
	p.Intensity = intensity
	p.NumIDsByFullSeq = 1
	return p
}

func ambiguousPeak(seqs []string, intensity float64) *ChromatographicPeak {
	var ids []Identification
	for _, s := range seqs {
		ids = append(ids, Identification{Sequence: s, BaseSequence: s})
	}
	p := &ChromatographicPeak{SpectralFile: "f1.mzML", Identifications: ids, Intensity: intensity}
	p.NumIDsByFullSeq = len(seqs)
	return p
}

func storeWithOneFile() *ResultsStore {
	return NewResultsStore([]SpectraFileInfo{{FullPath: "f1.mzML", Condition: "A", BiologicalReplicate: 0, Fraction: 0}})
}

func TestCalculatePeptideResultsUnambiguousPeak(t *testing.T) {
	r := storeWithOneFile()
	r.AddPeaks("f1.mzML", []*ChromatographicPeak{unambiguousPeak("PEPTIDE", 1e6)})
	r.RegisterPeptides(false)

	r.CalculatePeptideResults(false)

	row := r.Peptides["PEPTIDE"]
	require.NotNil(t, row)
	assert.Equal(t, 1e6, row.Intensities["f1.mzML"])
	assert.Equal(t, MSMS, row.DetectionTypes["f1.mzML"])
}

func TestCalculatePeptideResultsAmbiguousPeakWithoutQuantify(t *testing.T) {
	r := storeWithOneFile()
	r.AddPeaks("f1.mzML", []*ChromatographicPeak{ambiguousPeak([]string{"PEPTIDEA", "PEPTIDEB"}, 1e6)})
	r.RegisterPeptides(false)

	r.CalculatePeptideResults(false)

	for _, seq := range []string{"PEPTIDEA", "PEPTIDEB"} {
		row := r.Peptides[seq]
		require.NotNil(t, row)
		assert.Equal(t, 0.0, row.Intensities["f1.mzML"])
		assert.Equal(t, MSMSAmbiguousPeakfinding, row.DetectionTypes["f1.mzML"])
	}
}

func TestCalculatePeptideResultsAmbiguousPeakWithQuantify(t *testing.T) {
	r := storeWithOneFile()
	r.AddPeaks("f1.mzML", []*ChromatographicPeak{ambiguousPeak([]string{"PEPTIDEA", "PEPTIDEB"}, 1e6)})
	r.RegisterPeptides(false)

	r.CalculatePeptideResults(true)

	row := r.Peptides["PEPTIDEA"]
	require.NotNil(t, row)
	assert.Equal(t, 1e6, row.Intensities["f1.mzML"])
	assert.Equal(t, MSMSAmbiguousPeakfinding, row.DetectionTypes["f1.mzML"])
}

func TestRegisterPeptidesUnionsProteinGroupsAndMarksSharedUsage(t *testing.T) {
	r := storeWithOneFile()
	p1 := unambiguousPeak("PEPTIDE", 1e6)
	p1.Identifications[0].ProteinGroups = []string{"P1"}
	p2 := unambiguousPeak("PEPTIDE", 2e6)
	p2.Identifications[0].ProteinGroups = []string{"P2"}
	r.AddPeaks("f1.mzML", []*ChromatographicPeak{p1, p2})

	r.RegisterPeptides(false)

	row := r.Peptides["PEPTIDE"]
	require.NotNil(t, row)
	assert.Equal(t, []string{"P1", "P2"}, row.ProteinGroups)
	assert.False(t, row.UseForProteinQuant) // maps to 2 groups, useShared=false
}

func TestSortForOutputOrdersByIntensityDescending(t *testing.T) {
	r := storeWithOneFile()
	r.AddPeaks("f1.mzML", []*ChromatographicPeak{
		unambiguousPeak("LOW", 100),
		unambiguousPeak("HIGH", 900),
	})
	r.SortForOutput()
	assert.Equal(t, 900.0, r.PeaksByFile["f1.mzML"][0].Intensity)
}
