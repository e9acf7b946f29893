package kernel

import (
	"math"
	"math/cmplx"
)

// Gaussian2D returns amp·exp(-r²/(2σ²)) on an n×n grid centered at (cr, cc).
// Pass DefaultCenter(n) for the conventional (n/2, n/2) center.
func Gaussian2D(n int, sigma, amp, cr, cc float64) *Grid {
	g := NewGrid(n, n)
	inv := 1 / (2 * sigma * sigma)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			dr := float64(r) - cr
			dc := float64(c) - cc
			g.Data[r*n+c] = amp * math.Exp(-(dr*dr+dc*dc)*inv)
		}
	}
	return g
}

// DefaultCenter returns the integer center index n/2 as a float.
func DefaultCenter(n int) float64 {
	return float64(n / 2)
}

// GaussianPacket1D returns a complex wavepacket exp(-(x-center)²/(2σ²))
// modulated by exp(i·k0·(x-center)), normalized to unit L2 energy and then
// scaled by amp. Its energy is therefore amp².
func GaussianPacket1D(n int, sigma, amp, center, k0 float64) []complex128 {
	out := make([]complex128, n)
	energy := 0.0
	for i := range out {
		x := float64(i) - center
		g := math.Exp(-x * x / (2 * sigma * sigma))
		out[i] = complex(g, 0) * cmplx.Exp(complex(0, k0*x))
		energy += g * g
	}
	if energy == 0 {
		return out
	}
	scale := complex(amp/math.Sqrt(energy), 0)
	for i := range out {
		out[i] *= scale
	}
	return out
}
