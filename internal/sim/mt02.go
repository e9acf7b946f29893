package sim

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"

	"github.com/roach88/pfch/internal/config"
	"github.com/roach88/pfch/internal/control"
	"github.com/roach88/pfch/internal/kernel"
)

// RunMT02 drives the two-packet collision experiment. Two packets launched
// toward each other with momenta ±k0 pass through a focusing medium whose
// gain chi is the actuator:
//
//	ψ ← ψ + dt·(α·∇²ψ − λψ + χ|ψ|²ψ) + √dt·noise·(N + iN), |ψ| ≤ clip
func RunMT02(cfg config.MT02, ctrl control.CollisionController, seed int64, opts ...Option) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	res, err := newResult(cfg, ctrl.Name(), seed)
	if err != nil {
		return nil, err
	}
	logStart(o.logger, res, cfg.Steps)

	rng := kernel.NewRNG(seed)
	guard := newStability(cfg.TestID(), cfg.NormCap, o.logger)
	psi := collisionPacket(cfg)
	noiseStd := math.Sqrt(cfg.DT) * cfg.NoiseStd

	peak0 := kernel.Peak(kernel.Intensity(psi))
	peak := peak0
	symmetry := halfSymmetry(kernel.Intensity(psi))
	norm := kernel.L2NormComplex(psi)

	peaks := make([]float64, 0, cfg.Steps)
	syms := make([]float64, 0, cfg.Steps)
	norms := append(make([]float64, 0, cfg.Steps+1), norm)
	chis := make([]float64, 0, cfg.Steps)
	res.Metrics.Header = []string{"step", "peak", "symmetry", "norm"}

	chi := cfg.ChiBase
	next := make([]complex128, cfg.N)
	for t := 0; t < cfg.Steps; t++ {
		if !guard.frozen {
			chi = ctrl.Step(rng, control.CollisionInput{T: t, PeakRatio: peak / (peak0 + kernel.Epsilon)})
			lap := kernel.Laplacian1DComplex(psi)
			for i, z := range psi {
				mag2 := real(z)*real(z) + imag(z)*imag(z)
				drift := complex(cfg.Alpha, 0)*lap[i] - complex(cfg.Lam, 0)*z + complex(chi*mag2, 0)*z
				next[i] = z + complex(cfg.DT, 0)*drift + rng.NormalComplex(noiseStd)
			}
			kernel.ClipMagnitude(next, cfg.Clip)

			n := kernel.L2NormComplex(next)
			if guard.observe(t, kernel.AllFiniteComplex(next), n) {
				psi, next = next, psi
				intensity := kernel.Intensity(psi)
				peak, symmetry, norm = kernel.Peak(intensity), halfSymmetry(intensity), n
			}
		}

		chis = append(chis, chi)
		peaks = append(peaks, peak)
		syms = append(syms, symmetry)
		norms = append(norms, norm)
		res.Metrics.Rows = append(res.Metrics.Rows, []float64{float64(t), peak, symmetry, norm})
	}

	pr := peak / (peak0 + kernel.Epsilon)
	res.Scalars["peak0"] = peak0
	res.Scalars["peakT"] = peak
	res.Scalars["peak_retention"] = pr
	res.Scalars["peak_retention_error"] = math.Abs(1 - pr)
	res.Scalars["symmetry_error_final"] = symmetry
	res.Scalars["max_norm"] = floats.Max(norms)
	res.Scalars["chi_final"] = chi
	res.addSeries("peak", peaks)
	res.addSeries("symmetry", syms)
	res.addSeries("norm", norms[1:])
	res.addSeries("chi", chis)
	if o.fields {
		res.Fields = append(res.Fields, Field{Name: "psi_final", Shape: []int{cfg.N}, Complex: psi})
	}
	guard.apply(res)
	logDone(o.logger, res)
	return res, nil
}

// collisionPacket superposes two Gaussian packets at n/2 ∓ separation/2
// moving toward each other, then scales the sum so that max|ψ| = amp0.
func collisionPacket(cfg config.MT02) []complex128 {
	c := kernel.DefaultCenter(cfg.N)
	left := kernel.GaussianPacket1D(cfg.N, cfg.Sigma0, 1, c-cfg.Separation/2, cfg.K0)
	right := kernel.GaussianPacket1D(cfg.N, cfg.Sigma0, 1, c+cfg.Separation/2, -cfg.K0)

	psi := make([]complex128, cfg.N)
	top := 0.0
	for i := range psi {
		psi[i] = left[i] + right[i]
		top = math.Max(top, cmplx.Abs(psi[i]))
	}
	if top > 0 {
		scale := complex(cfg.Amp0/top, 0)
		for i := range psi {
			psi[i] *= scale
		}
	}
	return psi
}

// halfSymmetry returns |M_L − M_R| / (M_L + M_R) over the index halves
// [0, n/2) and [n/2, n). Zero total mass is perfectly symmetric.
func halfSymmetry(p []float64) float64 {
	h := len(p) / 2
	left, right := 0.0, 0.0
	for i, v := range p {
		if i < h {
			left += v
		} else {
			right += v
		}
	}
	if left+right <= 0 {
		return 0
	}
	return math.Abs(left-right) / (left + right)
}
