package sim

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/roach88/pfch/internal/config"
	"github.com/roach88/pfch/internal/control"
	"github.com/roach88/pfch/internal/kernel"
)

// Transmission returns the WKB tunnelling estimate through a rectangular
// barrier of height v0: exp(−2·width·√(2·max(v0−energy, 0))). At or below
// the particle energy the barrier is transparent.
func Transmission(v0, energy, width float64) float64 {
	return math.Exp(-2 * width * math.Sqrt(2*math.Max(v0-energy, 0)))
}

// RunTN drives the barrier-transmission lock: the controller sets the
// barrier height V0 so the measured transmission holds at t_target while
// V0 drifts.
func RunTN(cfg config.TN, ctrl control.BarrierController, seed int64, opts ...Option) (*Result, error) {
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
	guard := newStability(cfg.TestID(), 0, o.logger)
	transmission := func(v float64) float64 { return Transmission(v, cfg.Energy, cfg.Width) }

	v0 := cfg.V0Init
	coherence := 0.0
	window := make([]float64, 0, cfg.CoherenceWindow)
	errs := make([]float64, 0, cfg.Steps)
	v0s := make([]float64, 0, cfg.Steps)
	measured := make([]float64, 0, cfg.Steps)
	res.Metrics.Header = []string{"t", "v0", "T", "coherence"}

	for t := 0; t < cfg.Steps; t++ {
		tm := transmission(v0)
		if !guard.frozen {
			v0 = kernel.Clip(v0+rng.Normal(0, cfg.DriftSigma), cfg.V0Min, cfg.V0Max)
			tm = transmission(v0) + rng.Normal(0, cfg.NoiseStd)
			next := ctrl.Step(rng, control.BarrierInput{T: t, Steps: cfg.Steps, Transmission: tm, V0: v0})
			if guard.observe(t, !math.IsNaN(next) && !math.IsInf(next, 0), 0) {
				v0 = kernel.Clip(next, cfg.V0Min, cfg.V0Max)
			}

			if len(window) == cfg.CoherenceWindow {
				window = window[1:]
			}
			window = append(window, tm)
			coherence = windowCoherence(window)
		} else {
			tm = measured[len(measured)-1]
		}

		errs = append(errs, math.Abs(transmission(v0)-cfg.TTarget))
		v0s = append(v0s, v0)
		measured = append(measured, tm)
		res.Metrics.Rows = append(res.Metrics.Rows, []float64{float64(t), v0, tm, coherence})
	}

	tail := cfg.Steps / 4
	if tail < 1 {
		tail = 1
	}
	res.Scalars["err_final"] = errs[len(errs)-1]
	res.Scalars["err_tail"] = stat.Mean(errs[len(errs)-tail:], nil)
	res.Scalars["v0_final"] = v0
	res.Scalars["t_final"] = transmission(v0)
	res.Scalars["coherence_final"] = coherence
	res.addSeries("v0", v0s)
	res.addSeries("T", measured)
	res.addSeries("err", errs)
	guard.apply(res)
	logDone(o.logger, res)
	return res, nil
}

// windowCoherence is 1 − std/mean of the recent measurements, clipped to
// [0, 1]. A non-positive mean has no coherence.
func windowCoherence(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	mean := stat.Mean(window, nil)
	if mean <= 0 {
		return 0
	}
	std := math.Sqrt(stat.PopVariance(window, nil))
	return kernel.Clip(1-std/mean, 0, 1)
}
