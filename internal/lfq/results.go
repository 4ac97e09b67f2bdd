package lfq

import "sort"

// ResultsStore is component K: peaks by file, peptide rows keyed by
// modified sequence, and protein groups keyed by name.
type ResultsStore struct {
	PeaksByFile   map[string][]*ChromatographicPeak
	Peptides      map[string]*PeptideRow // modified sequence -> row
	ProteinGroups map[string]*ProteinGroup
	SpectraFiles  []SpectraFileInfo
}

// NewResultsStore builds an empty store for the given experimental design.
func NewResultsStore(files []SpectraFileInfo) *ResultsStore {
	sorted := append([]SpectraFileInfo{}, files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	return &ResultsStore{
		PeaksByFile:   make(map[string][]*ChromatographicPeak),
		Peptides:      make(map[string]*PeptideRow),
		ProteinGroups: make(map[string]*ProteinGroup),
		SpectraFiles:  sorted,
	}
}

// AddPeaks appends peaks produced for one spectral file. Output
// determinism across thread counts is restored later by SortForOutput, not
// here, per spec.md §5.
func (r *ResultsStore) AddPeaks(file string, peaks []*ChromatographicPeak) {
	r.PeaksByFile[file] = append(r.PeaksByFile[file], peaks...)
}

// SortForOutput orders every file's peaks by intensity descending, the
// determinism-restoring sort spec.md §5 requires before writing output.
func (r *ResultsStore) SortForOutput() {
	for _, peaks := range r.PeaksByFile {
		sort.Slice(peaks, func(i, j int) bool { return peaks[i].Intensity > peaks[j].Intensity })
	}
}

// RegisterPeptides scans every peak's identifications and ensures a
// PeptideRow exists for each distinct modified sequence, unioning protein
// group membership observed across files. useShared controls
// UseForProteinQuant when a peptide maps to more than one protein group.
func (r *ResultsStore) RegisterPeptides(useShared bool) {
	for _, peaks := range r.PeaksByFile {
		for _, p := range peaks {
			for _, id := range p.Identifications {
				row, ok := r.Peptides[id.Sequence]
				if !ok {
					row = NewPeptideRow(id.BaseSequence, id.Sequence, nil, false)
					r.Peptides[id.Sequence] = row
				}
				row.ProteinGroups = unionStrings(row.ProteinGroups, id.ProteinGroups)
			}
		}
	}
	for _, row := range r.Peptides {
		row.UseForProteinQuant = useShared || len(row.ProteinGroups) <= 1
	}
}

func unionStrings(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// CalculatePeptideResults is component K's calculate_peptide_results:
// resets every (peptide,file) cell, assigns unambiguous-peak intensities,
// then resolves ambiguous peaks per spec.md §4.K.
func (r *ResultsStore) CalculatePeptideResults(quantifyAmbiguous bool) {
	for _, row := range r.Peptides {
		for file := range row.Intensities {
			row.Intensities[file] = 0
			row.DetectionTypes[file] = NotDetected
		}
		for _, sf := range r.SpectraFiles {
			if row.Intensities == nil {
				row.Intensities = map[string]float64{}
			}
			if row.DetectionTypes == nil {
				row.DetectionTypes = map[string]DetectionType{}
			}
			if _, ok := row.Intensities[sf.FullPath]; !ok {
				row.Intensities[sf.FullPath] = 0
				row.DetectionTypes[sf.FullPath] = NotDetected
			}
		}
	}

	for _, sf := range r.SpectraFiles {
		file := sf.FullPath
		peaks := r.PeaksByFile[file]

		unambiguousBySeq := map[string]*ChromatographicPeak{}
		var ambiguous []*ChromatographicPeak

		for _, p := range peaks {
			if p.NumIDsByFullSeq == 1 {
				seq := p.Identifications[0].Sequence
				if existing, ok := unambiguousBySeq[seq]; !ok || p.Intensity > existing.Intensity {
					unambiguousBySeq[seq] = p
				}
			} else if p.NumIDsByFullSeq > 1 {
				ambiguous = append(ambiguous, p)
			}
		}

		for seq, p := range unambiguousBySeq {
			row := r.peptideRow(seq, p)
			row.Intensities[file] = p.Intensity
			if p.Intensity == 0 {
				row.DetectionTypes[file] = MSMSIdentifiedButNotQuantified
			} else if p.IsMBR {
				row.DetectionTypes[file] = MBR
			} else {
				row.DetectionTypes[file] = MSMS
			}
		}

		for _, p := range ambiguous {
			for _, id := range p.Identifications {
				row := r.peptideRow(id.Sequence, p)
				existing := row.Intensities[file]
				denom := existing + p.Intensity
				fractionAmbiguous := 0.0
				if denom != 0 {
					fractionAmbiguous = p.Intensity / denom
				}

				if quantifyAmbiguous && existing == 0 {
					row.Intensities[file] = p.Intensity
					row.DetectionTypes[file] = MSMSAmbiguousPeakfinding
				} else if fractionAmbiguous > 0.3 {
					row.DetectionTypes[file] = MSMSAmbiguousPeakfinding
					if !quantifyAmbiguous {
						row.Intensities[file] = 0
					}
				}
			}
		}
	}

	if !quantifyAmbiguous {
		r.applyFractionAmbiguityCleanup()
	}
}

func (r *ResultsStore) peptideRow(seq string, p *ChromatographicPeak) *PeptideRow {
	row, ok := r.Peptides[seq]
	if !ok {
		var base string
		var groups []string
		useQuant := false
		for _, id := range p.Identifications {
			if id.Sequence == seq {
				base = id.BaseSequence
				groups = id.ProteinGroups
				useQuant = id.UseForProteinQuant
				break
			}
		}
		row = NewPeptideRow(base, seq, groups, useQuant)
		r.Peptides[seq] = row
	}
	return row
}

// applyFractionAmbiguityCleanup: within a sample, if the highest-intensity
// fraction for a peptide is ambiguous, zero all its other fractions.
func (r *ResultsStore) applyFractionAmbiguityCleanup() {
	fileInfo := map[string]SpectraFileInfo{}
	for _, sf := range r.SpectraFiles {
		fileInfo[sf.FullPath] = sf
	}

	for _, row := range r.Peptides {
		bySample := map[SampleKey][]string{}
		for file := range row.Intensities {
			info, ok := fileInfo[file]
			if !ok {
				continue
			}
			key := SampleKey{Condition: info.Condition, BiologicalReplicate: info.BiologicalReplicate}
			bySample[key] = append(bySample[key], file)
		}

		for _, files := range bySample {
			if len(files) < 2 {
				continue
			}
			maxFile := files[0]
			for _, f := range files[1:] {
				if row.Intensities[f] > row.Intensities[maxFile] {
					maxFile = f
				}
			}
			if row.DetectionTypes[maxFile] == MSMSAmbiguousPeakfinding {
				for _, f := range files {
					if f != maxFile {
						row.Intensities[f] = 0
					}
				}
			}
		}
	}
}
