// Command lfq-quant runs label-free MS1 quantification: PSMs plus raw
// spectrum files in, per-run peptide intensities and protein roll-ups out.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gedex/inflector"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/crux-toolkit/lfq-go/internal/lfq"
	"github.com/crux-toolkit/lfq-go/internal/lfq/config"
	"github.com/crux-toolkit/lfq-go/internal/lfq/psm"
	"github.com/crux-toolkit/lfq-go/internal/lfq/spectra"
)

var flags struct {
	psmFiles     []string
	dialect      string
	spectraFiles []string
	configFile   string
	output       string
	normalize    bool
	integrate    bool
	maxThreads   int
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lfq-quant",
		Short: "Label-free MS1 peptide and protein quantification",
		RunE:  runQuant,
	}
	cmd.Flags().StringSliceVar(&flags.psmFiles, "psm", nil, "PSM table file(s)")
	cmd.Flags().StringVar(&flags.dialect, "dialect", "tide-search", "PSM dialect: tide-search, assign-confidence, percolator")
	cmd.Flags().StringSliceVar(&flags.spectraFiles, "spectra", nil, "raw spectrum file(s), one per PSM file")
	cmd.Flags().StringVar(&flags.configFile, "config", "", "optional YAML config file")
	cmd.Flags().StringVar(&flags.output, "output", "lfq-quant.tsv", "output tab-delimited file")
	cmd.Flags().BoolVar(&flags.normalize, "normalize", false, "run cross-run normalization")
	cmd.Flags().BoolVar(&flags.integrate, "integrate", false, "sum envelope intensities instead of using the apex")
	cmd.Flags().IntVar(&flags.maxThreads, "max-threads", 0, "worker count for §4.G quantification (0 = host default)")
	return cmd
}

func runQuant(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg := config.Default()
	if flags.configFile != "" {
		cfg, err = config.LoadYAML(flags.configFile, cfg)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}
	if flags.normalize {
		cfg.Normalize = true
	}
	if flags.integrate {
		cfg.Integrate = true
	}
	if flags.maxThreads > 0 {
		cfg.MaxThreads = flags.maxThreads
	}

	if len(flags.psmFiles) == 0 || len(flags.spectraFiles) == 0 {
		return fmt.Errorf("lfq-quant: at least one --psm and matching --spectra file are required")
	}
	if len(flags.psmFiles) != len(flags.spectraFiles) {
		return fmt.Errorf("lfq-quant: --psm and --spectra counts must match (got %d and %d)", len(flags.psmFiles), len(flags.spectraFiles))
	}
	dialect, ok := psm.DialectFromName(flags.dialect)
	if !ok {
		return fmt.Errorf("lfq-quant: unknown dialect %q", flags.dialect)
	}

	run := lfq.NewRunMetadata(flags.spectraFiles)
	sugar.Infow("starting run", "run_id", run.RunID, "files", len(flags.spectraFiles))
	start := time.Now()

	files := buildSpectraFileInfo(flags.spectraFiles)
	store := lfq.NewResultsStore(files)

	allIdentifications, err := loadIdentifications(flags.psmFiles, flags.spectraFiles, dialect, sugar)
	if err != nil {
		return err
	}
	if len(allIdentifications) == 0 {
		return fmt.Errorf("lfq-quant: no identifications loaded")
	}

	model := lfq.ComputeIsotopeModel(allIdentifications, cfg.NumIsotopesRequired)
	chargeStates := lfq.CreateChargeStates(allIdentifications)

	byFile := map[string][]lfq.Identification{}
	for _, id := range allIdentifications {
		byFile[id.SpectralFile] = append(byFile[id.SpectralFile], id)
	}

	quantCfg := lfq.QuantifyConfig{
		PeakFindingPPMTolerance: cfg.PeakFindingPPMTolerance,
		PPMTolerance:            cfg.PPMTolerance,
		IsotopeTolerancePPM:     cfg.IsotopeTolerancePPM,
		MissedScansAllowed:      cfg.MissedScansAllowed,
		NumIsotopesRequired:     cfg.NumIsotopesRequired,
		IDSpecificChargeState:   cfg.IDSpecificChargeState,
		Integrate:               cfg.Integrate,
		DiscriminationFactor:    cfg.DiscriminationFactorToCut,
		MaxThreads:              cfg.MaxThreads,
		PeakBufferHint:          cfg.PeakBufferHint,
	}

	for _, sf := range files {
		ids := byFile[sf.FullPath]
		if len(ids) == 0 {
			continue
		}
		ms1Scans, ms2RetentionTimes, err := readSpectra(sf.FullPath, cfg.PeakBufferHint)
		if err != nil {
			sugar.Errorw("spectrum read failed", "file", sf.FullPath, "error", err)
			continue
		}
		for i := range ids {
			if rt, ok := ms2RetentionTimes[ids[i].ScanID]; ok {
				ids[i].Ms2RetentionTimeMin = rt / 60
			}
		}

		idx := lfq.NewPeakIndexWithCapacity(cfg.PeakBufferHint)
		registry := idx.Build(ms1Scans)

		peaks := lfq.QuantifyIdentifications(idx, registry, model, ids, chargeStates, quantCfg)
		resolved := lfq.ResolveConflicts(peaks, cfg.Integrate)
		store.AddPeaks(sf.FullPath, resolved)
	}

	store.SortForOutput()
	store.RegisterPeptides(cfg.UseSharedPeptidesForProtein)
	store.CalculatePeptideResults(cfg.QuantifyAmbiguousPeptides)

	if cfg.Normalize {
		lfq.Normalize(store, cfg.QuantifyAmbiguousPeptides, lfq.NormalizeConfig{Integrate: cfg.Integrate})
	}

	lfq.RollupProteins(store, lfq.RollupConfig{UseSharedPeptidesForProteinQuant: cfg.UseSharedPeptidesForProtein})

	out, err := os.Create(flags.output)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer out.Close()

	detectionTypeFor := func(p *lfq.ChromatographicPeak) lfq.DetectionType {
		if len(p.Identifications) == 0 {
			return lfq.NotDetected
		}
		if row, ok := store.Peptides[p.Identifications[0].Sequence]; ok {
			if dt, ok := row.DetectionTypes[p.SpectralFile]; ok {
				return dt
			}
		}
		if p.IsMBR {
			return lfq.MBR
		}
		return lfq.MSMS
	}
	if err := lfq.WriteResults(out, store, detectionTypeFor); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	printSummary(store, time.Since(start))
	return nil
}

func buildSpectraFileInfo(paths []string) []lfq.SpectraFileInfo {
	files := make([]lfq.SpectraFileInfo, 0, len(paths))
	for _, p := range paths {
		files = append(files, parseSpectraFileInfo(p))
	}
	return files
}

// parseSpectraFileInfo derives a file's experimental-design coordinates from
// a "condition_bioN_techN_fracN" naming convention in its base name,
// defaulting every coordinate not present to 0/the bare file stem.
func parseSpectraFileInfo(path string) lfq.SpectraFileInfo {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	info := lfq.SpectraFileInfo{FullPath: path, Condition: base}

	parts := strings.Split(base, "_")
	var nameParts []string
	for _, part := range parts {
		switch {
		case strings.HasPrefix(part, "bio") && setInt(&info.BiologicalReplicate, part[3:]):
		case strings.HasPrefix(part, "tech") && setInt(&info.TechnicalReplicate, part[4:]):
		case strings.HasPrefix(part, "frac") && setInt(&info.Fraction, part[4:]):
		default:
			nameParts = append(nameParts, part)
		}
	}
	if len(nameParts) > 0 {
		info.Condition = strings.Join(nameParts, "_")
	}
	return info
}

func setInt(dst *int, s string) bool {
	n, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	*dst = n
	return true
}

func loadIdentifications(psmFiles, spectraFiles []string, dialect psm.Dialect, sugar *zap.SugaredLogger) ([]lfq.Identification, error) {
	var out []lfq.Identification
	for i, path := range psmFiles {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening PSM file %s: %w", path, err)
		}
		records, err := psm.Parse(f, dialect, func(line int, reason string) {
			sugar.Warnw("skipping malformed PSM row", "file", path, "line", line, "reason", reason)
		})
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing PSM file %s: %w", path, err)
		}

		spectralFile := spectraFiles[i]
		scanNumbers := make([]int, 0, len(records))
		for scan := range records {
			scanNumbers = append(scanNumbers, scan)
		}
		sort.Ints(scanNumbers)

		for _, scan := range scanNumbers {
			rec := records[scan]
			monoMass := lfq.ToMass(rec.SpectrumPrecursorMz, rec.Charge)
			out = append(out, lfq.Identification{
				Sequence:            rec.Sequence,
				BaseSequence:        stripModifications(rec.Sequence),
				Modifications:       rec.Modifications,
				PrecursorCharge:     rec.Charge,
				MonoisotopicMass:    monoMass,
				PeptideMass:         rec.PeptideMass,
				SpectralFile:        spectralFile,
				ScanID:              scan,
				ProteinGroups:       nil,
				UseForProteinQuant:  true,
			})
		}
	}
	return out, nil
}

func stripModifications(sequence string) string {
	var b strings.Builder
	skip := false
	for _, r := range sequence {
		switch {
		case r == '[' || r == ']':
			skip = r == '['
		case !skip:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// readSpectra returns every MS1 scan (for indexing) and, separately, the
// retention time (seconds) of every MS2 scan keyed by its native scan
// number, the cross-reference spec.md §6 uses to resolve an identification's
// MS2 retention time. peakBufferHint sizes each scan's peak-slice capacity
// (config.Config.PeakBufferHint) so the mzML/mzXML/MGF/MS2 readers don't grow
// it one append at a time.
func readSpectra(path string, peakBufferHint int) ([]lfq.MS1Scan, map[int]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader, err := spectra.OpenWithHint(path, f, peakBufferHint)
	if err != nil {
		return nil, nil, err
	}

	var ms1Scans []lfq.MS1Scan
	ms2RetentionTimes := map[int]float64{}

	for {
		scan, err := reader.Next()
		if err != nil {
			break
		}
		if scan.MSLevel != 1 {
			ms2RetentionTimes[scan.ScanNumber] = scan.RetentionTime
			continue
		}
		out := lfq.MS1Scan{ScanNumber: scan.ScanNumber, RetentionTime: scan.RetentionTime}
		out.Peaks = make([]struct {
			Mz        float64
			Intensity float64
		}, len(scan.Peaks))
		for i, p := range scan.Peaks {
			out.Peaks[i].Mz = p.Mz
			out.Peaks[i].Intensity = p.Intensity
		}
		ms1Scans = append(ms1Scans, out)
	}
	return ms1Scans, ms2RetentionTimes, nil
}

// summaryPrinter formats the run-summary counts through golang.org/x/text/message
// so a seven-figure peptide count reads "1,234,567" instead of a bare digit run.
var summaryPrinter = message.NewPrinter(language.English)

func printSummary(store *lfq.ResultsStore, elapsed time.Duration) {
	peptideCount := len(store.Peptides)
	proteinCount := len(store.ProteinGroups)

	success := color.New(color.FgGreen, color.Bold)
	line := summaryPrinter.Sprintf("quantified %d %s and %d %s in %s\n",
		peptideCount, countNoun("peptide", peptideCount),
		proteinCount, countNoun("protein", proteinCount),
		elapsed.Round(time.Millisecond))
	success.Fprint(os.Stderr, line)
}

func countNoun(word string, count int) string {
	if count == 1 {
		return word
	}
	return inflector.Pluralize(word)
}
