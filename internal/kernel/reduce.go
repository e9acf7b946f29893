package kernel

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Epsilon guards the denominators of ratio metrics.
const Epsilon = 1e-12

// FWHMFactor converts a Gaussian sigma to its full width at half maximum.
const FWHMFactor = 2.3548

// L2Norm returns sqrt(Σx²).
func L2Norm(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Norm(x, 2)
}

// L2NormComplex returns sqrt(Σ|z|²).
func L2NormComplex(z []complex128) float64 {
	sum := 0.0
	for _, v := range z {
		a := cmplx.Abs(v)
		sum += a * a
	}
	return math.Sqrt(sum)
}

// Peak returns the maximum of x, or 0 for an empty slice.
func Peak(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Max(x)
}

// MSE returns mean((a-b)²). Mismatched lengths fail with a *ShapeError.
func MSE(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &ShapeError{Op: "MSE", Want: "equal lengths", Got: lengths(len(a), len(b))}
	}
	if len(a) == 0 {
		return 0, nil
	}
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum / float64(len(a)), nil
}

// Intensity returns |z|² element-wise.
func Intensity(z []complex128) []float64 {
	out := make([]float64, len(z))
	for i, v := range z {
		out[i] = real(v)*real(v) + imag(v)*imag(v)
	}
	return out
}

// Centroid returns the mass-weighted mean index of p. When the total mass is
// not positive it returns the center index n/2 instead of dividing by zero.
func Centroid(p []float64) float64 {
	if floats.Sum(p) <= 0 {
		return DefaultCenter(len(p))
	}
	return stat.Mean(indices(len(p)), p)
}

// SigmaWidth returns the mass-weighted population standard deviation of the
// index around the centroid. Zero mass yields 0.
func SigmaWidth(p []float64) float64 {
	if floats.Sum(p) <= 0 {
		return 0
	}
	return math.Sqrt(stat.PopVariance(indices(len(p)), p))
}

// FWHMWidth returns the Gaussian-equivalent full width at half maximum.
func FWHMWidth(p []float64) float64 {
	return FWHMFactor * SigmaWidth(p)
}

// WindowedWidth returns SigmaWidth restricted to the cells within ±half of
// the periodic argmax of p. Restricting to the window keeps the far-field
// noise floor out of the second moment.
func WindowedWidth(p []float64, half int) float64 {
	n := len(p)
	if n == 0 {
		return 0
	}
	if 2*half+1 > n {
		half = (n - 1) / 2
	}
	center := floats.MaxIdx(p)
	offsets := make([]float64, 0, 2*half+1)
	weights := make([]float64, 0, 2*half+1)
	for d := -half; d <= half; d++ {
		offsets = append(offsets, float64(d))
		weights = append(weights, p[wrap(center+d, n)])
	}
	if floats.Sum(weights) <= 0 {
		return 0
	}
	return math.Sqrt(stat.PopVariance(offsets, weights))
}

// Summary is the standard peak/width/norm digest of a run's time series.
type Summary struct {
	Peak0         float64 `json:"peak0"`
	PeakT         float64 `json:"peakT"`
	Width0        float64 `json:"width0"`
	WidthT        float64 `json:"widthT"`
	PeakRetention float64 `json:"peak_retention"`
	WidthDriftPct float64 `json:"width_drift_pct"`
	MaxNorm       float64 `json:"max_norm"`
}

// SummarizeSeries digests per-step peak, width and norm series. The first
// element of each series is the reference, the last the final value.
// Empty series produce a zero Summary.
func SummarizeSeries(peaks, widths, norms []float64) Summary {
	var s Summary
	if len(peaks) > 0 {
		s.Peak0 = peaks[0]
		s.PeakT = peaks[len(peaks)-1]
		s.PeakRetention = s.PeakT / (s.Peak0 + Epsilon)
	}
	if len(widths) > 0 {
		s.Width0 = widths[0]
		s.WidthT = widths[len(widths)-1]
		s.WidthDriftPct = math.Abs(s.WidthT-s.Width0) / math.Max(s.Width0, Epsilon) * 100
	}
	if len(norms) > 0 {
		s.MaxNorm = floats.Max(norms)
	}
	return s
}

// Clip bounds v to [lo, hi].
func Clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ClipSlice bounds every element of x to [-limit, limit] in place.
func ClipSlice(x []float64, limit float64) {
	for i, v := range x {
		x[i] = Clip(v, -limit, limit)
	}
}

// ClipMagnitude bounds |z| to limit in place, preserving phase.
func ClipMagnitude(z []complex128, limit float64) {
	for i, v := range z {
		if a := cmplx.Abs(v); a > limit {
			z[i] = v * complex(limit/a, 0)
		}
	}
}

// AllFinite reports whether x contains no NaN or Inf.
func AllFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// AllFiniteComplex is AllFinite for complex values.
func AllFiniteComplex(z []complex128) bool {
	for _, v := range z {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return false
		}
	}
	return true
}

func indices(n int) []float64 {
	idx := make([]float64, n)
	for i := range idx {
		idx[i] = float64(i)
	}
	return idx
}

func lengths(a, b int) string {
	return fmt.Sprintf("len %d vs %d", a, b)
}
