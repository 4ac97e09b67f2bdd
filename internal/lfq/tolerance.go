package lfq

import "math"

// PpmTolerance is a symmetric parts-per-million mass window, grounded on the
// original C++ source's PpmTolerance helper (src/app/crux-quant/PpmTolerance.{h,cpp}).
type PpmTolerance struct {
	ValuePPM float64
}

// NewPpmTolerance builds a tolerance of ppm parts per million.
func NewPpmTolerance(ppm float64) PpmTolerance {
	return PpmTolerance{ValuePPM: ppm}
}

// Min returns the lower bound of the window around mass.
func (t PpmTolerance) Min(mass float64) float64 {
	return mass - mass*t.ValuePPM/1e6
}

// Max returns the upper bound of the window around mass.
func (t PpmTolerance) Max(mass float64) float64 {
	return mass + mass*t.ValuePPM/1e6
}

// Within reports whether observed lies inside the tolerance window around
// theoretical.
func (t PpmTolerance) Within(observed, theoretical float64) bool {
	return observed >= t.Min(theoretical) && observed <= t.Max(theoretical)
}

// PPMDifference returns the signed parts-per-million difference between a
// and b, relative to b: (a-b)/b * 1e6.
func PPMDifference(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return (a - b) / b * 1e6
}

// ToMz converts a neutral monoisotopic mass at the given charge to m/z.
func ToMz(mass float64, charge int) float64 {
	z := float64(charge)
	if z == 0 {
		return mass
	}
	if z > 0 {
		return mass/z + Proton
	}
	return mass/-z - Proton
}

// ToMass converts an observed m/z at the given charge back to a neutral
// mass: |z|*mz - z*PROTON.
func ToMass(mz float64, charge int) float64 {
	z := float64(charge)
	return math.Abs(z)*mz - z*Proton
}

// MzBucket rounds mz*BINS_PER_DALTON to the nearest integer bucket.
func MzBucket(mz float64) int {
	return int(math.Round(mz * BinsPerDalton))
}
