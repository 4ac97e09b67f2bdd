package psm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTideSearchDialectWithModifications(t *testing.T) {
	input := "Scan\tCharge\tSpectrum Precursor m/z\tPeptide Mass\tSequence\tModifications\n" +
		"100\t2\t500.25\t998.49\tPEPTIDE\t\n" +
		"101\t3\t400.10\t1197.30\tPEPTIDE\t1M[147]\n"

	records, err := Parse(strings.NewReader(input), TideSearch, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "PEPTIDE", records[100].Sequence)
	assert.Equal(t, 2, records[100].Charge)
	assert.Equal(t, "1M[147]", records[101].Modifications)
}

func TestParseIsCaseInsensitiveAndWhitespaceTolerant(t *testing.T) {
	input := " scan \t CHARGE \tspectrum precursor m/z\tPeptide mass\tsequence\n" +
		"5\t2\t500.25\t998.49\tPEPTIDE\n"

	records, err := Parse(strings.NewReader(input), AssignConfidence, nil)
	require.NoError(t, err)
	require.Contains(t, records, 5)
}

func TestParseSkipsAndWarnsOnMalformedRows(t *testing.T) {
	input := "scan\tcharge\tspectrum precursor m/z\tpeptide mass\tsequence\n" +
		"abc\t2\t500.25\t998.49\tPEPTIDE\n" + // bad scan
		"6\t2\t500.25\t998.49\tPEPTIDE\n"

	var warnings []string
	records, err := Parse(strings.NewReader(input), Percolator, func(line int, reason string) {
		warnings = append(warnings, reason)
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, warnings, 1)
}

func TestParseDuplicateScanLastWins(t *testing.T) {
	input := "scan\tcharge\tspectrum precursor m/z\tpeptide mass\tsequence\n" +
		"7\t2\t500.25\t998.49\tFIRST\n" +
		"7\t2\t500.25\t998.49\tSECOND\n"

	records, err := Parse(strings.NewReader(input), TideSearch, nil)
	require.NoError(t, err)
	assert.Equal(t, "SECOND", records[7].Sequence)
}

func TestParseMissingRequiredColumnErrors(t *testing.T) {
	input := "scan\tcharge\n100\t2\n"
	_, err := Parse(strings.NewReader(input), TideSearch, nil)
	assert.Error(t, err)
}

func TestDialectFromName(t *testing.T) {
	d, ok := DialectFromName("Tide-Search")
	assert.True(t, ok)
	assert.Equal(t, TideSearch, d)

	_, ok = DialectFromName("unknown")
	assert.False(t, ok)
}
