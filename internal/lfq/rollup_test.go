package lfq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollupProteinsDoublesColumnEffectAcrossConsistentPeptides(t *testing.T) {
	files := []SpectraFileInfo{
		{FullPath: "sampleA.mzML", Condition: "A", BiologicalReplicate: 0, Fraction: 0},
		{FullPath: "sampleB.mzML", Condition: "B", BiologicalReplicate: 0, Fraction: 0},
	}
	r := NewResultsStore(files)

	for _, seq := range []string{"PEP1", "PEP2"} {
		row := NewPeptideRow(seq, seq, []string{"PROT1"}, true)
		row.Intensities["sampleA.mzML"] = 256
		row.Intensities["sampleB.mzML"] = 512
		r.Peptides[seq] = row
	}

	RollupProteins(r, RollupConfig{})

	group, ok := r.ProteinGroups["PROT1"]
	require.True(t, ok)
	assert.InDelta(t, 512, group.Intensities["sampleA.mzML"], 0.01)
	assert.InDelta(t, 1024, group.Intensities["sampleB.mzML"], 0.01)
}

func TestRollupProteinsZeroesSamplesWithNoMeasurement(t *testing.T) {
	files := []SpectraFileInfo{
		{FullPath: "sampleA.mzML", Condition: "A", BiologicalReplicate: 0, Fraction: 0},
		{FullPath: "sampleB.mzML", Condition: "B", BiologicalReplicate: 0, Fraction: 0},
	}
	r := NewResultsStore(files)
	for _, seq := range []string{"PEP1", "PEP2"} {
		row := NewPeptideRow(seq, seq, []string{"PROT1"}, true)
		row.Intensities["sampleA.mzML"] = 256
		row.Intensities["sampleB.mzML"] = 0 // never observed in sample B
		r.Peptides[seq] = row
	}

	RollupProteins(r, RollupConfig{})

	group, ok := r.ProteinGroups["PROT1"]
	require.True(t, ok)
	assert.Equal(t, 0.0, group.Intensities["sampleB.mzML"])
}

func TestPeptidesByProteinExcludesNonSharedMultiGroupPeptidesByDefault(t *testing.T) {
	r := NewResultsStore(nil)
	row := NewPeptideRow("PEP1", "PEP1", []string{"PROT1", "PROT2"}, true)
	r.Peptides["PEP1"] = row

	byProtein := peptidesByProtein(r, RollupConfig{UseSharedPeptidesForProteinQuant: false})
	assert.Empty(t, byProtein)

	byProteinShared := peptidesByProtein(r, RollupConfig{UseSharedPeptidesForProteinQuant: true})
	assert.Len(t, byProteinShared["PROT1"], 1)
	assert.Len(t, byProteinShared["PROT2"], 1)
}

func TestWeightedMedianPolishConstantMatrixYieldsZeroColumnEffects(t *testing.T) {
	data := [][]float64{{5, 5}, {5, 5}}
	_, colEffects, overall := weightedMedianPolish(data)
	assert.Equal(t, 5.0, overall)
	for _, c := range colEffects {
		assert.Equal(t, 0.0, c)
	}
}
