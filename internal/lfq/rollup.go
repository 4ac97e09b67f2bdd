package lfq

import (
	"math"
	"sort"
)

// RollupConfig carries component J's configuration knobs.
type RollupConfig struct {
	UseSharedPeptidesForProteinQuant bool
}

// ProteinMatrix is one protein's log2(intensity) peptide x sample matrix,
// built for weighted median polish.
type ProteinMatrix struct {
	Peptides []string    // row labels (modified sequences)
	Samples  []SampleKey // column labels
	Data     [][]float64 // log2 intensities, NaN for missing
}

// RollupProteins is component J: for every protein, build a log2(intensity)
// peptide x sample matrix and resolve it with weighted median polish into a
// per-sample protein intensity.
func RollupProteins(r *ResultsStore, cfg RollupConfig) {
	samples := allSamples(r.SpectraFiles)
	byProtein := peptidesByProtein(r, cfg)

	for name, peptideSeqs := range byProtein {
		group, ok := r.ProteinGroups[name]
		if !ok {
			group = &ProteinGroup{Name: name, Intensities: map[string]float64{}}
			r.ProteinGroups[name] = group
		}

		matrix := buildProteinMatrix(r, peptideSeqs, samples)
		dropSparseRows(matrix)

		if allRowsNaN(matrix) {
			for _, sf := range r.SpectraFiles {
				group.Intensities[sf.FullPath] = 0
			}
			continue
		}

		_, colEffects, overall := weightedMedianPolish(matrix.Data)

		for si, sample := range matrix.Samples {
			hasData := false
			for pi := range matrix.Peptides {
				if !math.IsNaN(matrix.Data[pi][si]) {
					hasData = true
					break
				}
			}
			var intensity float64
			switch {
			case !hasData:
				intensity = 0
			case colEffects[si] == 0:
				// measured, but median polish assigned this column no
				// effect: unquantifiable rather than zero.
				intensity = math.NaN()
			default:
				intensity = math.Pow(2, colEffects[si]) * math.Pow(2, overall) * float64(len(matrix.Peptides))
			}
			for _, sf := range filesFor(r.SpectraFiles, sample.Condition, sample.BiologicalReplicate) {
				group.Intensities[sf.FullPath] = intensity
			}
		}
	}
}

func allSamples(files []SpectraFileInfo) []SampleKey {
	seen := map[SampleKey]bool{}
	var out []SampleKey
	for _, f := range files {
		k := SampleKey{Condition: f.Condition, BiologicalReplicate: f.BiologicalReplicate}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Condition != out[j].Condition {
			return out[i].Condition < out[j].Condition
		}
		return out[i].BiologicalReplicate < out[j].BiologicalReplicate
	})
	return out
}

// peptidesByProtein maps protein name -> peptide modified sequences
// eligible for its roll-up: UseForProteinQuant, and mapping to <=1 protein
// group unless cfg.UseSharedPeptidesForProteinQuant.
func peptidesByProtein(r *ResultsStore, cfg RollupConfig) map[string][]string {
	out := map[string][]string{}
	for seq, row := range r.Peptides {
		if !row.UseForProteinQuant {
			continue
		}
		if len(row.ProteinGroups) > 1 && !cfg.UseSharedPeptidesForProteinQuant {
			continue
		}
		for _, name := range row.ProteinGroups {
			out[name] = append(out[name], seq)
		}
	}
	for name := range out {
		sort.Strings(out[name])
	}
	return out
}

// buildProteinMatrix computes, for each (peptide,sample) cell, the maximum
// across fractions of the average across techreps, then log2-transforms it
// (NaN for zero/missing).
func buildProteinMatrix(r *ResultsStore, peptides []string, samples []SampleKey) *ProteinMatrix {
	m := &ProteinMatrix{Peptides: peptides, Samples: samples}
	m.Data = make([][]float64, len(peptides))

	for pi, seq := range peptides {
		row := r.Peptides[seq]
		m.Data[pi] = make([]float64, len(samples))
		for si, sample := range samples {
			value := sampleCellValue(r, row, sample)
			if value <= 0 {
				m.Data[pi][si] = math.NaN()
			} else {
				m.Data[pi][si] = math.Log2(value)
			}
		}
	}
	return m
}

func sampleCellValue(r *ResultsStore, row *PeptideRow, sample SampleKey) float64 {
	byFraction := map[int][]float64{}
	for _, sf := range r.SpectraFiles {
		if sf.Condition != sample.Condition || sf.BiologicalReplicate != sample.BiologicalReplicate {
			continue
		}
		v := row.Intensities[sf.FullPath]
		if v > 0 {
			byFraction[sf.Fraction] = append(byFraction[sf.Fraction], v)
		}
	}
	max := 0.0
	for _, techrepValues := range byFraction {
		sum := 0.0
		for _, v := range techrepValues {
			sum += v
		}
		avg := sum / float64(len(techrepValues))
		if avg > max {
			max = avg
		}
	}
	return max
}

// dropSparseRows sets a peptide row to all-NaN if it has fewer than two
// finite values, unless doing so would leave every row NaN.
func dropSparseRows(m *ProteinMatrix) {
	validCounts := make([]int, len(m.Peptides))
	for pi, row := range m.Data {
		for _, v := range row {
			if !math.IsNaN(v) {
				validCounts[pi]++
			}
		}
	}

	anyRowKeepsTwoOrMore := false
	for _, c := range validCounts {
		if c >= 2 {
			anyRowKeepsTwoOrMore = true
			break
		}
	}
	if !anyRowKeepsTwoOrMore {
		return // protein has only sparse peptides: leave as-is (all-NaN handled by caller)
	}

	for pi, c := range validCounts {
		if c < 2 {
			for si := range m.Data[pi] {
				m.Data[pi][si] = math.NaN()
			}
		}
	}
}

func allRowsNaN(m *ProteinMatrix) bool {
	for _, row := range m.Data {
		for _, v := range row {
			if !math.IsNaN(v) {
				return false
			}
		}
	}
	return true
}

// weightedMedianPolish runs up to 10 iterations of weighted median polish
// (spec.md §4.J), returning (rowEffects, colEffects, overallEffect).
// Early-stops when the sum of absolute residuals improves by < 0.0001
// fraction between iterations.
func weightedMedianPolish(data [][]float64) ([]float64, []float64, float64) {
	nRows := len(data)
	if nRows == 0 {
		return nil, nil, 0
	}
	nCols := len(data[0])

	residual := make([][]float64, nRows)
	for i := range residual {
		residual[i] = append([]float64{}, data[i]...)
	}
	rowEffect := make([]float64, nRows)
	colEffect := make([]float64, nCols)
	overall := 0.0

	overall += overallMedian(residual)
	subtractScalar(residual, overallMedian(residual))

	prevAbsSum := math.Inf(1)

	for iter := 0; iter < 10; iter++ {
		for i := 0; i < nRows; i++ {
			rEffect := weightedRowMean(residual[i])
			rowEffect[i] += rEffect
			for j := 0; j < nCols; j++ {
				if !math.IsNaN(residual[i][j]) {
					residual[i][j] -= rEffect
				}
			}
		}

		for j := 0; j < nCols; j++ {
			col := make([]float64, nRows)
			for i := 0; i < nRows; i++ {
				col[i] = residual[i][j]
			}
			cEffect := weightedRowMean(col)
			colEffect[j] += cEffect
			for i := 0; i < nRows; i++ {
				if !math.IsNaN(residual[i][j]) {
					residual[i][j] -= cEffect
				}
			}
		}

		absSum := 0.0
		for i := range residual {
			for _, v := range residual[i] {
				if !math.IsNaN(v) {
					absSum += math.Abs(v)
				}
			}
		}
		if prevAbsSum > 0 && !math.IsInf(prevAbsSum, 1) {
			improvement := (prevAbsSum - absSum) / prevAbsSum
			if improvement < 0.0001 {
				prevAbsSum = absSum
				break
			}
		}
		prevAbsSum = absSum
	}

	return rowEffect, colEffect, overall
}

func overallMedian(data [][]float64) float64 {
	var values []float64
	for _, row := range data {
		for _, v := range row {
			if !math.IsNaN(v) && v != 0 {
				values = append(values, v)
			}
		}
	}
	if len(values) == 0 {
		return 0
	}
	return median(values)
}

func subtractScalar(data [][]float64, scalar float64) {
	for i := range data {
		for j := range data[i] {
			if !math.IsNaN(data[i][j]) {
				data[i][j] -= scalar
			}
		}
	}
}

// weightedRowMean computes the weighted mean of finite entries with weights
// 1/max(0.0001, (value-median)^2), per spec.md §4.J step 2/3.
func weightedRowMean(values []float64) float64 {
	var finite []float64
	for _, v := range values {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0
	}
	rowMedian := median(finite)

	var weightedSum, weightSum float64
	for _, v := range finite {
		d := v - rowMedian
		w := 1.0 / math.Max(0.0001, d*d)
		weightedSum += w * v
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return weightedSum / weightSum
}
