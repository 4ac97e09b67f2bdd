// Package psm parses peptide-spectrum-match tables in the three
// tab-delimited dialects the pipeline accepts: tide-search, assign-confidence,
// and percolator.
package psm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Dialect names one of the three recognized PSM table formats. The three
// dialects share the same required columns; only the optional
// "modifications" column (tide-search only) differs.
type Dialect int

const (
	TideSearch Dialect = iota
	AssignConfidence
	Percolator
)

// Record is one PSM row, keyed by its MS2 scan number.
type Record struct {
	Scan                  int
	Charge                int
	SpectrumPrecursorMz   float64
	PeptideMass           float64
	Sequence              string
	Modifications         string
}

var foldCase = cases.Fold()

// required columns every dialect must supply; "modifications" is optional
// and only present in tide-search output.
var requiredColumns = []string{
	"scan", "charge", "spectrum precursor m/z", "peptide mass", "sequence",
}

// Parse streams a tab-delimited PSM table, matching header names
// case-insensitively and whitespace-tolerantly (golang.org/x/text/cases),
// and returns scan -> Record. Malformed rows are skipped and reported via
// onWarning rather than aborting the parse (spec.md §7 kind 2). Duplicate
// scan numbers overwrite, keeping order-of-last-wins per spec.md §6.
func Parse(r io.Reader, dialect Dialect, onWarning func(line int, reason string)) (map[int]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("psm: empty input")
	}
	header := strings.Split(scanner.Text(), "\t")
	columnIndex := indexHeader(header)

	for _, name := range requiredColumns {
		if _, ok := columnIndex[name]; !ok {
			return nil, fmt.Errorf("psm: missing required column %q", name)
		}
	}
	modIdx, hasModifications := columnIndex["modifications"]

	records := make(map[int]Record)
	lineNum := 1

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")

		rec, err := parseRow(fields, columnIndex, modIdx, hasModifications)
		if err != nil {
			if onWarning != nil {
				onWarning(lineNum, err.Error())
			}
			continue
		}
		records[rec.Scan] = rec
	}
	if err := scanner.Err(); err != nil {
		return records, err
	}
	return records, nil
}

func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := foldCase.String(strings.TrimSpace(h))
		idx[key] = i
	}
	return idx
}

func parseRow(fields []string, columnIndex map[string]int, modIdx int, hasModifications bool) (Record, error) {
	field := func(name string) (string, error) {
		i, ok := columnIndex[name]
		if !ok || i >= len(fields) {
			return "", fmt.Errorf("psm: row too short for column %q", name)
		}
		return strings.TrimSpace(fields[i]), nil
	}

	scanStr, err := field("scan")
	if err != nil {
		return Record{}, err
	}
	scan, err := strconv.Atoi(scanStr)
	if err != nil {
		return Record{}, fmt.Errorf("psm: bad scan %q: %w", scanStr, err)
	}

	chargeStr, err := field("charge")
	if err != nil {
		return Record{}, err
	}
	charge, err := strconv.Atoi(chargeStr)
	if err != nil {
		return Record{}, fmt.Errorf("psm: bad charge %q: %w", chargeStr, err)
	}

	mzStr, err := field("spectrum precursor m/z")
	if err != nil {
		return Record{}, err
	}
	mz, err := strconv.ParseFloat(mzStr, 64)
	if err != nil {
		return Record{}, fmt.Errorf("psm: bad precursor m/z %q: %w", mzStr, err)
	}

	massStr, err := field("peptide mass")
	if err != nil {
		return Record{}, err
	}
	mass, err := strconv.ParseFloat(massStr, 64)
	if err != nil {
		return Record{}, fmt.Errorf("psm: bad peptide mass %q: %w", massStr, err)
	}

	sequence, err := field("sequence")
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Scan:                scan,
		Charge:              charge,
		SpectrumPrecursorMz: mz,
		PeptideMass:         mass,
		Sequence:            sequence,
	}
	if hasModifications && modIdx < len(fields) {
		rec.Modifications = strings.TrimSpace(fields[modIdx])
	}
	return rec, nil
}

// DialectFromName maps a CLI/config dialect name to its Dialect value.
func DialectFromName(name string) (Dialect, bool) {
	switch foldCase.String(strings.TrimSpace(name)) {
	case "tide-search":
		return TideSearch, true
	case "assign-confidence":
		return AssignConfidence, true
	case "percolator":
		return Percolator, true
	default:
		return 0, false
	}
}
