package lfq

import (
	"math"
	"math/rand"
	"sort"
)

// NormalizeConfig carries the knobs the three normalization passes need.
type NormalizeConfig struct {
	Integrate bool
	Rand      *rand.Rand // for Nelder-Mead restarts; nil uses a fixed seed
}

// Normalize runs the three normalization passes of spec.md §4.I in order —
// fractions, then bioreps/conditions, then techreps — recomputing
// per-peptide intensities (component K) between each.
func Normalize(r *ResultsStore, quantifyAmbiguous bool, cfg NormalizeConfig) {
	r.CalculatePeptideResults(quantifyAmbiguous)
	NormalizeFractions(r, cfg)
	r.CalculatePeptideResults(quantifyAmbiguous)
	NormalizeBioreps(r, cfg)
	r.CalculatePeptideResults(quantifyAmbiguous)
	NormalizeTechreps(r, cfg)
	r.CalculatePeptideResults(quantifyAmbiguous)
}

// scaleFile multiplies every envelope intensity of every peak in file by
// factor and recomputes each peak's intensity. Spec.md §4.I: "multiplies
// each envelope's intensity by a per-(file-or-fraction) factor".
func scaleFile(r *ResultsStore, file string, factor float64, integrate bool) {
	for _, p := range r.PeaksByFile[file] {
		for i := range p.Envelopes {
			p.Envelopes[i] = p.Envelopes[i].Normalize(factor)
		}
		p.RecomputeIntensity(integrate)
	}
}

func sortedConditions(files []SpectraFileInfo) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range files {
		if !seen[f.Condition] {
			seen[f.Condition] = true
			out = append(out, f.Condition)
		}
	}
	sort.Strings(out)
	return out
}

func sortedBioreps(files []SpectraFileInfo, condition string) []int {
	seen := map[int]bool{}
	var out []int
	for _, f := range files {
		if f.Condition == condition && !seen[f.BiologicalReplicate] {
			seen[f.BiologicalReplicate] = true
			out = append(out, f.BiologicalReplicate)
		}
	}
	sort.Ints(out)
	return out
}

func filesFor(files []SpectraFileInfo, condition string, biorep int) []SpectraFileInfo {
	var out []SpectraFileInfo
	for _, f := range files {
		if f.Condition == condition && f.BiologicalReplicate == biorep {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// NormalizeFractions aligns multi-fraction samples to a reference sample
// (first condition, biorep 0, techrep 0) by finding per-fraction factors in
// [0.3,3] that minimize the squared log-fold-change between matched
// peptides' fraction-summed intensities, via a coarse per-fraction sweep
// followed by Nelder-Mead with restarts.
func NormalizeFractions(r *ResultsStore, cfg NormalizeConfig) {
	conditions := sortedConditions(r.SpectraFiles)
	if len(conditions) == 0 {
		return
	}
	refCondition := conditions[0]
	refFiles := filesAtTechrep(filesFor(r.SpectraFiles, refCondition, 0), 0)
	fractionCount := len(refFiles)
	if fractionCount == 0 {
		return
	}

	for _, condition := range conditions {
		for _, biorep := range sortedBioreps(r.SpectraFiles, condition) {
			if condition == refCondition && biorep == 0 {
				continue
			}
			sampleFiles := filesAtTechrep(filesFor(r.SpectraFiles, condition, biorep), 0)
			if len(sampleFiles) != fractionCount {
				continue
			}

			peptides := peptidesQuantifiedInBoth(r, refFiles, sampleFiles)
			if len(peptides) == 0 {
				continue
			}

			refMatrix := intensityMatrix(r, peptides, refFiles)
			sampleMatrix := intensityMatrix(r, peptides, sampleFiles)

			objective := fractionObjective(refMatrix, sampleMatrix)
			x0 := coarseSweep(objective, fractionCount)
			opts := DefaultNelderMeadOptions(cfg.Rand)
			factors := Minimize(objective, x0, opts)

			for i, sf := range sampleFiles {
				scaleFile(r, sf.FullPath, factors[i], cfg.Integrate)
			}
		}
	}
}

func filesAtTechrep(files []SpectraFileInfo, techrep int) []SpectraFileInfo {
	var out []SpectraFileInfo
	for _, f := range files {
		if f.TechnicalReplicate == techrep {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fraction < out[j].Fraction })
	return out
}

func peptidesQuantifiedInBoth(r *ResultsStore, a, b []SpectraFileInfo) []string {
	var out []string
	for seq, row := range r.Peptides {
		if anyNonZero(row, a) && anyNonZero(row, b) {
			out = append(out, seq)
		}
	}
	sort.Strings(out)
	return out
}

func anyNonZero(row *PeptideRow, files []SpectraFileInfo) bool {
	for _, f := range files {
		if row.Intensities[f.FullPath] > 0 {
			return true
		}
	}
	return false
}

func intensityMatrix(r *ResultsStore, peptides []string, files []SpectraFileInfo) [][]float64 {
	matrix := make([][]float64, len(peptides))
	for pi, seq := range peptides {
		row := r.Peptides[seq]
		matrix[pi] = make([]float64, len(files))
		for fi, f := range files {
			matrix[pi][fi] = row.Intensities[f.FullPath]
		}
	}
	return matrix
}

// fractionObjective builds Sum_p (log(Sum_f sample[p,f]*factor[f]) -
// log(Sum_f reference[p,f]))^2, the least-squares form of spec.md §4.I's
// fold-change alignment objective.
func fractionObjective(reference, sample [][]float64) ObjectiveFunc {
	refSums := make([]float64, len(reference))
	for p, row := range reference {
		sum := 0.0
		for _, v := range row {
			sum += v
		}
		refSums[p] = sum
	}
	return func(factors []float64) float64 {
		total := 0.0
		for p, row := range sample {
			sampleSum := 0.0
			for f, v := range row {
				sampleSum += v * factors[f]
			}
			if sampleSum <= 0 || refSums[p] <= 0 {
				continue
			}
			d := logSafe(sampleSum) - logSafe(refSums[p])
			total += d * d
		}
		return total
	}
}

// coarseSweep gets an initial guess by sweeping each fraction's factor
// independently over a coarse grid, holding the others at 1.0.
func coarseSweep(objective ObjectiveFunc, n int) []float64 {
	x0 := make([]float64, n)
	for i := range x0 {
		x0[i] = 1.0
	}
	grid := []float64{0.3, 0.5, 0.75, 1.0, 1.25, 1.5, 2.0, 2.5, 3.0}
	for f := 0; f < n; f++ {
		best := x0[f]
		bestVal := objective(x0)
		for _, g := range grid {
			trial := append([]float64{}, x0...)
			trial[f] = g
			if v := objective(trial); v < bestVal {
				bestVal = v
				best = g
			}
		}
		x0[f] = best
	}
	return x0
}

// NormalizeBioreps aligns each (condition,biorep) sample's total peptide
// intensity to the reference sample (first condition, first biorep) by a
// single factor = 1/median(per-peptide fold change).
func NormalizeBioreps(r *ResultsStore, cfg NormalizeConfig) {
	conditions := sortedConditions(r.SpectraFiles)
	if len(conditions) == 0 {
		return
	}
	refCondition := conditions[0]
	refBioreps := sortedBioreps(r.SpectraFiles, refCondition)
	if len(refBioreps) == 0 {
		return
	}
	refFiles := filesFor(r.SpectraFiles, refCondition, refBioreps[0])
	refSums := sumIntensitiesPerPeptide(r, refFiles)

	for _, condition := range conditions {
		for _, biorep := range sortedBioreps(r.SpectraFiles, condition) {
			if condition == refCondition && biorep == refBioreps[0] {
				continue
			}
			sampleFiles := filesFor(r.SpectraFiles, condition, biorep)
			sampleSums := sumIntensitiesPerPeptide(r, sampleFiles)

			var foldChanges []float64
			for seq, sampleSum := range sampleSums {
				refSum, ok := refSums[seq]
				if !ok || refSum <= 0 || sampleSum <= 0 {
					continue
				}
				foldChanges = append(foldChanges, sampleSum/refSum)
			}
			if len(foldChanges) == 0 {
				continue // spec.md §7 kind 6: abort this pass, leave intensities unchanged.
			}
			factor := 1.0 / median(foldChanges)
			for _, f := range sampleFiles {
				scaleFile(r, f.FullPath, factor, cfg.Integrate)
			}
		}
	}
}

func sumIntensitiesPerPeptide(r *ResultsStore, files []SpectraFileInfo) map[string]float64 {
	sums := make(map[string]float64)
	for seq, row := range r.Peptides {
		sum := 0.0
		for _, f := range files {
			sum += row.Intensities[f.FullPath]
		}
		sums[seq] = sum
	}
	return sums
}

// NormalizeTechreps aligns, within one (condition,biorep,fraction), every
// techrep beyond the first to techrep 0 by factor = 1/median(fold changes).
func NormalizeTechreps(r *ResultsStore, cfg NormalizeConfig) {
	type key struct {
		condition string
		biorep    int
		fraction  int
	}
	groups := map[key][]SpectraFileInfo{}
	for _, f := range r.SpectraFiles {
		k := key{f.Condition, f.BiologicalReplicate, f.Fraction}
		groups[k] = append(groups[k], f)
	}

	for _, files := range groups {
		sort.Slice(files, func(i, j int) bool { return files[i].TechnicalReplicate < files[j].TechnicalReplicate })
		var techrep0 *SpectraFileInfo
		for i := range files {
			if files[i].TechnicalReplicate == 0 {
				techrep0 = &files[i]
				break
			}
		}
		if techrep0 == nil {
			continue
		}
		for _, f := range files {
			if f.TechnicalReplicate == 0 {
				continue
			}
			var foldChanges []float64
			for _, row := range r.Peptides {
				ref := row.Intensities[techrep0.FullPath]
				cand := row.Intensities[f.FullPath]
				if ref <= 0 || cand <= 0 {
					continue
				}
				foldChanges = append(foldChanges, cand/ref)
			}
			if len(foldChanges) == 0 {
				continue
			}
			factor := 1.0 / median(foldChanges)
			scaleFile(r, f.FullPath, factor, cfg.Integrate)
		}
	}
}

func median(values []float64) float64 {
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 1
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func logSafe(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Log(v)
}
