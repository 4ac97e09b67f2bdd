package lfq

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
)

var outputColumns = []string{
	"File Name",
	"Base Sequence",
	"Full Sequence",
	"Peptide Monoisotopic Mass",
	"MS2 Retention Time",
	"Precursor Charge",
	"Theoretical MZ",
	"Peak intensity",
	"Num Charge States Observed",
	"Peak Detection Type",
	"PSMs Mapped",
	"Peak Split Valley RT",
	"Peak Apex Mass Error (ppm)",
}

// WriteResults writes one tab-delimited row per ChromatographicPeak across
// every spectral file, per spec.md §6's output contract. Rows are written in
// r.SpectraFiles order, peaks within a file in their current (already
// SortForOutput'd) order.
func WriteResults(w io.Writer, r *ResultsStore, detectionTypeFor func(p *ChromatographicPeak) DetectionType) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	defer cw.Flush()

	if err := cw.Write(outputColumns); err != nil {
		return err
	}

	for _, sf := range r.SpectraFiles {
		peaks := r.PeaksByFile[sf.FullPath]
		for _, p := range peaks {
			row, err := peakRow(p, detectionTypeFor)
			if err != nil {
				return err
			}
			if row == nil {
				continue
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	return cw.Error()
}

func peakRow(p *ChromatographicPeak, detectionTypeFor func(p *ChromatographicPeak) DetectionType) ([]string, error) {
	if len(p.Identifications) == 0 {
		return nil, nil
	}
	id := p.Identifications[0]

	intensity := "NaN"
	if p.Intensity > 0 {
		intensity = strconv.FormatFloat(p.Intensity, 'g', -1, 64)
	}

	theoreticalMz := ToMz(id.PeakFindingMass, id.PrecursorCharge)

	detectionType := MSMS
	if detectionTypeFor != nil {
		detectionType = detectionTypeFor(p)
	}

	splitRT := "0"
	if p.SplitRT != 0 {
		splitRT = strconv.FormatFloat(p.SplitRT, 'g', -1, 64)
	}

	massError := "NaN"
	if !math.IsNaN(p.MassErrorPPM) {
		massError = strconv.FormatFloat(p.MassErrorPPM, 'g', -1, 64)
	}

	return []string{
		p.SpectralFile,
		id.BaseSequence,
		id.Sequence,
		strconv.FormatFloat(id.PeptideMass, 'g', -1, 64),
		strconv.FormatFloat(id.Ms2RetentionTimeMin, 'g', -1, 64),
		strconv.Itoa(id.PrecursorCharge),
		strconv.FormatFloat(theoreticalMz, 'g', -1, 64),
		intensity,
		strconv.Itoa(p.NumChargeStatesObserved),
		detectionType.String(),
		strconv.Itoa(len(p.Identifications)),
		splitRT,
		massError,
	}, nil
}
