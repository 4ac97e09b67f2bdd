package lfq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPpmToleranceWithin(t *testing.T) {
	tol := NewPpmTolerance(10)
	assert.True(t, tol.Within(1000.00001, 1000.0))
	assert.False(t, tol.Within(1000.02, 1000.0))
}

func TestToMzToMassRoundTrip(t *testing.T) {
	mass := 998.49
	charge := 2
	mz := ToMz(mass, charge)
	assert.InDelta(t, mass, ToMass(mz, charge), 1e-9)
}

func TestPPMDifference(t *testing.T) {
	assert.InDelta(t, 10.0, PPMDifference(1000.01, 1000.0), 1e-6)
	assert.Equal(t, 0.0, PPMDifference(5, 0))
}

func TestMzBucket(t *testing.T) {
	assert.Equal(t, 50025, MzBucket(500.25))
	assert.Equal(t, 50025, MzBucket(500.2501)) // rounds to nearest integer bucket
}
