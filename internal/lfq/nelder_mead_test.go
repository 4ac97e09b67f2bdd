package lfq

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinimizeConvergesOnQuadraticBowl(t *testing.T) {
	target := []float64{1.2, 0.8}
	objective := func(x []float64) float64 {
		sum := 0.0
		for i, xi := range x {
			d := xi - target[i]
			sum += d * d
		}
		return sum
	}

	opts := DefaultNelderMeadOptions(rand.New(rand.NewSource(7)))
	got := Minimize(objective, []float64{1, 1}, opts)

	for i := range target {
		assert.InDelta(t, target[i], got[i], 0.05)
	}
}

func TestMinimizeClampsToBounds(t *testing.T) {
	objective := func(x []float64) float64 {
		return math.Abs(x[0] - 10) // unconstrained minimum lies outside [0.3,3]
	}
	opts := DefaultNelderMeadOptions(rand.New(rand.NewSource(3)))
	got := Minimize(objective, []float64{1}, opts)

	assert.LessOrEqual(t, got[0], opts.Upper)
	assert.GreaterOrEqual(t, got[0], opts.Lower)
}

func TestMinimizeEmptyInput(t *testing.T) {
	opts := DefaultNelderMeadOptions(rand.New(rand.NewSource(1)))
	got := Minimize(func(x []float64) float64 { return 0 }, nil, opts)
	assert.Empty(t, got)
}
