package sim

import (
	"github.com/roach88/pfch/internal/config"
	"github.com/roach88/pfch/internal/control"
	"github.com/roach88/pfch/internal/kernel"
)

// RunMT01 drives the 1D soliton experiment: a real field under diffusion,
// leakage and a cubic focusing term whose gain chi is the actuator.
//
//	u ← clip(u + dt·(α·∇²u − λu + χu³) + dt·noise·N, ±clip)
//
// The controller sees the peak and width measured after the previous step.
func RunMT01(cfg config.MT01, ctrl control.SolitonController, seed int64, opts ...Option) (*Result, error) {
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
	half := cfg.WidthHalfWindow()

	packet := kernel.GaussianPacket1D(cfg.N, cfg.Sigma0, cfg.Amp0, kernel.DefaultCenter(cfg.N), 0)
	u := make([]float64, cfg.N)
	for i, z := range packet {
		u[i] = real(z)
	}

	measure := func(u []float64) (peak, width, norm float64) {
		p := make([]float64, len(u))
		for i, v := range u {
			p[i] = v * v
		}
		return kernel.Peak(p), kernel.WindowedWidth(p, half), kernel.L2Norm(u)
	}

	peak, width, norm := measure(u)
	peaks := append(make([]float64, 0, cfg.Steps+1), peak)
	widths := append(make([]float64, 0, cfg.Steps+1), width)
	norms := append(make([]float64, 0, cfg.Steps+1), norm)
	chis := make([]float64, 0, cfg.Steps)
	res.Metrics.Header = []string{"step", "peak", "width", "norm"}

	chi := cfg.ChiBase
	next := make([]float64, cfg.N)
	for t := 0; t < cfg.Steps; t++ {
		if !guard.frozen {
			chi = ctrl.Step(rng, control.SolitonInput{T: t, Peak: peak, Width: width})
			lap := kernel.Laplacian1D(u)
			for i, v := range u {
				drift := cfg.Alpha*lap[i] - cfg.Lam*v + chi*v*v*v
				next[i] = kernel.Clip(v+cfg.DT*drift+cfg.DT*rng.Normal(0, cfg.NoiseStd), -cfg.Clip, cfg.Clip)
			}
			p, w, n := measure(next)
			if guard.observe(t, kernel.AllFinite(next), n) {
				u, next = next, u
				peak, width, norm = p, w, n
			}
		}

		chis = append(chis, chi)
		peaks = append(peaks, peak)
		widths = append(widths, width)
		norms = append(norms, norm)
		res.Metrics.Rows = append(res.Metrics.Rows, []float64{float64(t), peak, width, norm})
	}

	res.addSummary(kernel.SummarizeSeries(peaks, widths, norms))
	res.Scalars["chi_final"] = chi
	res.addSeries("peak", peaks[1:])
	res.addSeries("width", widths[1:])
	res.addSeries("norm", norms[1:])
	res.addSeries("chi", chis)
	if o.fields {
		res.Fields = append(res.Fields, Field{Name: "u_final", Shape: []int{cfg.N}, Real: u})
	}
	guard.apply(res)
	logDone(o.logger, res)
	return res, nil
}
