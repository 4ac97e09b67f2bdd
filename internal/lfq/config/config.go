// Package config builds the immutable Config record threaded through every
// pipeline component, replacing the mutable global tolerance variables the
// source used (spec.md §9 "Globals").
package config

import (
	"os"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"
	"gopkg.in/yaml.v3"
)

// Config carries every option recognized by the pipeline (spec.md §6) plus
// the concurrency and buffer-sizing defaults derived from the host.
type Config struct {
	NumIsotopesRequired         int     `yaml:"num-isotopes-required"`
	PeakFindingPPMTolerance     float64 `yaml:"peak-finding-ppm-tolerance"`
	PPMTolerance                float64 `yaml:"ppm-tolerance"`
	IsotopeTolerancePPM         float64 `yaml:"isotope-tolerance-ppm"`
	IDSpecificChargeState       bool    `yaml:"id-specific-charge-state"`
	MissedScansAllowed          int     `yaml:"missed-scans-allowed"`
	Integrate                   bool    `yaml:"integrate"`
	DiscriminationFactorToCut   float64 `yaml:"discrimination-factor-to-cut-peak"`
	QuantifyAmbiguousPeptides   bool    `yaml:"quantify-ambiguous-peptides"`
	UseSharedPeptidesForProtein bool    `yaml:"use-shared-peptides-for-protein-quant"`
	Normalize                   bool    `yaml:"normalize"`

	// Reserved MBR fields: defaulted and loadable from YAML like the others,
	// but no code reads them and no MBR search runs.
	MatchBetweenRuns          bool    `yaml:"match-between-runs"`
	MatchBetweenRunsPPMTol    float64 `yaml:"match-between-runs-ppm-tolerance"`
	MaxMBRWindow              float64 `yaml:"max-mbr-window"`
	RequireMSMSIDInCondition  bool    `yaml:"require-msms-id-in-condition"`

	MaxThreads int `yaml:"max-threads"`

	// PeakBufferHint sizes initial slice capacity for per-scan peak buffers,
	// scaled from host memory the way eutils sizes its cache heap.
	PeakBufferHint int `yaml:"-"`
}

// Default returns the spec.md §6 defaults, with MaxThreads and
// PeakBufferHint derived from the host the way eutils/utils.go sizes its own
// worker pool and cache heap from cpuid/memory probing.
func Default() Config {
	return Config{
		NumIsotopesRequired:       2,
		PeakFindingPPMTolerance:   20.0,
		PPMTolerance:              10.0,
		IsotopeTolerancePPM:       5.0,
		IDSpecificChargeState:     false,
		MissedScansAllowed:        1,
		Integrate:                 false,
		DiscriminationFactorToCut: 0.6,
		QuantifyAmbiguousPeptides: false,
		UseSharedPeptidesForProtein: false,
		Normalize:                false,
		MatchBetweenRuns:         false,
		MatchBetweenRunsPPMTol:   10.0,
		MaxMBRWindow:             2.5,
		RequireMSMSIDInCondition: false,
		MaxThreads:               defaultMaxThreads(),
		PeakBufferHint:           defaultPeakBufferHint(),
	}
}

// defaultMaxThreads mirrors eutils/utils.go's cpuid-based worker sizing:
// logical cores divided by threads-per-core when hyperthreading is present,
// capped at 4 per spec.md §5's "default 4".
func defaultMaxThreads() int {
	n := cpuid.CPU.LogicalCores
	if cpuid.CPU.ThreadsPerCore > 1 {
		n = n / cpuid.CPU.ThreadsPerCore
	}
	if n < 1 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	return n
}

// defaultPeakBufferHint scales initial peak-slice capacity from total host
// memory, the way eutils' rchive command sizes its cache heap from
// pbnjay/memory, so constrained CI runners don't over-allocate.
func defaultPeakBufferHint() int {
	gib := memory.TotalMemory() / (1024 * 1024 * 1024)
	switch {
	case gib >= 32:
		return 1 << 16
	case gib >= 8:
		return 1 << 14
	default:
		return 1 << 12
	}
}

// LoadYAML reads a YAML config file and merges it onto a copy of base,
// field by field: only keys present in the file override base's values.
func LoadYAML(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, err
	}
	return cfg, nil
}
