package sim

import (
	"math"

	"github.com/roach88/pfch/internal/config"
	"github.com/roach88/pfch/internal/control"
	"github.com/roach88/pfch/internal/kernel"
)

// RunPI drives a noisy first-order velocity plant whose damping alpha is the
// actuator: v += dt·(drive − load − α·v) + noise·√dt·N(0,1).
func RunPI(cfg config.PI, ctrl control.PIController, seed int64, opts ...Option) (*Result, error) {
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
	sqrtDT := math.Sqrt(cfg.DT)

	v, alpha := cfg.V0, cfg.Alpha0
	alphas := make([]float64, 0, cfg.Steps)
	vs := make([]float64, 0, cfg.Steps)
	res.Metrics.Header = []string{"t", "alpha", "v", "a"}

	for t := 0; t < cfg.Steps; t++ {
		accel := 0.0
		if !guard.frozen {
			noise := rng.Normal(0, cfg.NoiseStd)
			next := v + cfg.DT*(cfg.Drive-cfg.Load-alpha*v) + noise*sqrtDT
			if guard.observe(t, !math.IsNaN(next) && !math.IsInf(next, 0), math.Abs(next)) {
				accel = (next - v) / cfg.DT
				v = next
			}
		}

		alphas = append(alphas, alpha)
		vs = append(vs, v)
		res.Metrics.Rows = append(res.Metrics.Rows, []float64{float64(t), alpha, v, accel})

		if !guard.frozen {
			alpha = kernel.Clip(ctrl.Step(rng, control.PIInput{T: t, V: v, Alpha: alpha}), cfg.AlphaMin, cfg.AlphaMax)
		}
	}

	res.Scalars["v_final"] = v
	res.Scalars["alpha_final"] = alpha
	res.Scalars["err_final"] = math.Abs(v - cfg.VTarget)
	res.Scalars["v_terminal"] = (cfg.Drive - cfg.Load) / alpha
	res.addSeries("alpha", alphas)
	res.addSeries("v", vs)
	guard.apply(res)
	logDone(o.logger, res)
	return res, nil
}
