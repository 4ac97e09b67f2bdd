package lfq

import (
	"math/rand"
	"sort"
)

// ObjectiveFunc is the function Nelder-Mead minimizes.
type ObjectiveFunc func(x []float64) float64

// NelderMeadOptions configures the optimizer used by the fraction
// normalization pass (spec.md §4.I).
type NelderMeadOptions struct {
	MaxRestarts      int
	MaxIterations    int
	Lower, Upper     float64 // per-coordinate bounds, e.g. [0.3, 3]
	PerturbMinFrac   float64 // 0.02
	PerturbMaxFrac   float64 // 0.08
	Rand             *rand.Rand
}

// DefaultNelderMeadOptions matches spec.md §4.I: 10 restarts, simplex
// vertices perturbed 2-8% of the bound range per coordinate.
func DefaultNelderMeadOptions(r *rand.Rand) NelderMeadOptions {
	return NelderMeadOptions{
		MaxRestarts:    10,
		MaxIterations:  200,
		Lower:          0.3,
		Upper:          3.0,
		PerturbMinFrac: 0.02,
		PerturbMaxFrac: 0.08,
		Rand:           r,
	}
}

// Minimize runs Nelder-Mead from x0 with opts.MaxRestarts random restarts
// (each restart's simplex built by perturbing x0 per-coordinate by a
// uniform-random fraction of the bound range), clamping every trial point
// to [opts.Lower, opts.Upper], and returns the best point found across all
// restarts.
func Minimize(objective ObjectiveFunc, x0 []float64, opts NelderMeadOptions) []float64 {
	n := len(x0)
	if n == 0 {
		return x0
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	best := clamp(append([]float64{}, x0...), opts)
	bestVal := objective(best)

	for restart := 0; restart < opts.MaxRestarts; restart++ {
		simplex := buildSimplex(x0, opts, rng)
		x, val := nelderMeadRun(objective, simplex, opts)
		if val < bestVal {
			bestVal = val
			best = x
		}
	}
	return best
}

func buildSimplex(x0 []float64, opts NelderMeadOptions, rng *rand.Rand) [][]float64 {
	n := len(x0)
	simplex := make([][]float64, n+1)
	simplex[0] = clamp(append([]float64{}, x0...), opts)
	rangeSpan := opts.Upper - opts.Lower
	for i := 1; i <= n; i++ {
		v := append([]float64{}, x0...)
		frac := opts.PerturbMinFrac + rng.Float64()*(opts.PerturbMaxFrac-opts.PerturbMinFrac)
		delta := frac * rangeSpan
		if rng.Float64() < 0.5 {
			delta = -delta
		}
		v[i-1] += delta
		simplex[i] = clamp(v, opts)
	}
	return simplex
}

func clamp(x []float64, opts NelderMeadOptions) []float64 {
	for i := range x {
		if x[i] < opts.Lower {
			x[i] = opts.Lower
		}
		if x[i] > opts.Upper {
			x[i] = opts.Upper
		}
	}
	return x
}

// nelderMeadRun is the classic reflect/expand/contract/shrink loop.
func nelderMeadRun(objective ObjectiveFunc, simplex [][]float64, opts NelderMeadOptions) ([]float64, float64) {
	n := len(simplex) - 1
	values := make([]float64, n+1)
	for i, v := range simplex {
		values[i] = objective(v)
	}

	const (
		alpha = 1.0
		gamma = 2.0
		rho   = 0.5
		sigma = 0.5
	)

	for iter := 0; iter < opts.MaxIterations; iter++ {
		order := make([]int, n+1)
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(i, j int) bool { return values[order[i]] < values[order[j]] })
		sorted := make([][]float64, n+1)
		sortedVals := make([]float64, n+1)
		for i, o := range order {
			sorted[i] = simplex[o]
			sortedVals[i] = values[o]
		}
		simplex, values = sorted, sortedVals

		centroid := make([]float64, n)
		for i := 0; i < n; i++ {
			for d := 0; d < n; d++ {
				centroid[d] += simplex[i][d]
			}
		}
		for d := range centroid {
			centroid[d] /= float64(n)
		}

		worst := simplex[n]
		reflected := reflectPoint(centroid, worst, alpha, opts)
		reflectedVal := objective(reflected)

		switch {
		case reflectedVal < values[0]:
			expanded := reflectPoint(centroid, worst, gamma, opts)
			expandedVal := objective(expanded)
			if expandedVal < reflectedVal {
				simplex[n], values[n] = expanded, expandedVal
			} else {
				simplex[n], values[n] = reflected, reflectedVal
			}
		case reflectedVal < values[n-1]:
			simplex[n], values[n] = reflected, reflectedVal
		default:
			contracted := reflectPoint(centroid, worst, -rho, opts)
			contractedVal := objective(contracted)
			if contractedVal < values[n] {
				simplex[n], values[n] = contracted, contractedVal
			} else {
				for i := 1; i <= n; i++ {
					for d := range simplex[i] {
						simplex[i][d] = simplex[0][d] + sigma*(simplex[i][d]-simplex[0][d])
					}
					simplex[i] = clamp(simplex[i], opts)
					values[i] = objective(simplex[i])
				}
			}
		}
	}

	bestIdx := 0
	for i, v := range values {
		if v < values[bestIdx] {
			bestIdx = i
		}
	}
	return simplex[bestIdx], values[bestIdx]
}

func reflectPoint(centroid, worst []float64, coeff float64, opts NelderMeadOptions) []float64 {
	out := make([]float64, len(centroid))
	for d := range out {
		out[d] = centroid[d] + coeff*(centroid[d]-worst[d])
	}
	return clamp(out, opts)
}
