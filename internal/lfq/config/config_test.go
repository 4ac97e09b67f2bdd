package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 2, cfg.NumIsotopesRequired)
	assert.Equal(t, 20.0, cfg.PeakFindingPPMTolerance)
	assert.Equal(t, 10.0, cfg.PPMTolerance)
	assert.Equal(t, 5.0, cfg.IsotopeTolerancePPM)
	assert.Equal(t, 1, cfg.MissedScansAllowed)
	assert.Equal(t, 0.6, cfg.DiscriminationFactorToCut)
	assert.False(t, cfg.Normalize)
	assert.LessOrEqual(t, cfg.MaxThreads, 4)
	assert.GreaterOrEqual(t, cfg.MaxThreads, 1)
	assert.Greater(t, cfg.PeakBufferHint, 0)
}

func TestLoadYAMLOverridesOnlyPresentKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ppm-tolerance: 15\nnormalize: true\n"), 0o644))

	base := Default()
	cfg, err := LoadYAML(path, base)
	require.NoError(t, err)

	assert.Equal(t, 15.0, cfg.PPMTolerance)
	assert.True(t, cfg.Normalize)
	assert.Equal(t, base.NumIsotopesRequired, cfg.NumIsotopesRequired)
	assert.Equal(t, base.MaxThreads, cfg.MaxThreads)
}

func TestLoadYAMLMissingFileReturnsBaseAndError(t *testing.T) {
	base := Default()
	cfg, err := LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"), base)
	assert.Error(t, err)
	assert.Equal(t, base, cfg)
}
