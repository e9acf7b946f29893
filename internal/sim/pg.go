package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/roach88/pfch/internal/config"
	"github.com/roach88/pfch/internal/control"
	"github.com/roach88/pfch/internal/kernel"
)

// RunPG drives the Poisson-grid experiment: a controller shapes the potential
// S so that its discrete Laplacian matches the curvature of a Gaussian well.
func RunPG(cfg config.PG, ctrl control.PGController, seed int64, opts ...Option) (*Result, error) {
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
	target := control.CurvatureTarget(cfg)
	s := kernel.NewGrid(cfg.N, cfg.N)
	guard := newStability(cfg.TestID(), cfg.NormCap, o.logger)

	mseSeries := make([]float64, 0, cfg.Steps)
	norms := make([]float64, 0, cfg.Steps)
	res.Metrics.Header = []string{"step", "mse_R"}

	for t := 0; t < cfg.Steps; t++ {
		if !guard.frozen && cfg.DriftSigma > 0 {
			for i := range s.Data {
				s.Data[i] += rng.Normal(0, cfg.DriftSigma)
			}
		}

		mse := curvatureMSE(s, target)
		mseSeries = append(mseSeries, mse)
		res.Metrics.Rows = append(res.Metrics.Rows, []float64{float64(t), mse})

		if guard.frozen {
			norms = append(norms, norms[len(norms)-1])
			continue
		}
		next := ctrl.Step(rng, control.PGInput{T: t, S: s})
		if next == nil || !next.SameShape(s) {
			return nil, &kernel.ShapeError{Op: ctrl.Name() + ".Step", Want: "grid shaped like S", Got: shapeOf(next)}
		}
		kernel.ClipSlice(next.Data, cfg.Clip)
		norm := kernel.L2Norm(next.Data)
		if guard.observe(t, kernel.AllFinite(next.Data), norm) {
			s = next
		} else {
			norm = kernel.L2Norm(s.Data)
		}
		norms = append(norms, norm)
	}

	mseFinal := curvatureMSE(s, target)
	res.Scalars["mse_final"] = mseFinal
	res.Scalars["mse0"] = mseSeries[0]
	res.Scalars["mse_min"] = math.Min(floats.Min(mseSeries), mseFinal)
	res.Scalars["max_norm"] = floats.Max(norms)
	res.addSeries("mse_R", mseSeries)
	if o.fields {
		res.Fields = append(res.Fields,
			Field{Name: "S_final", Shape: s.Shape(), Real: s.Data},
			Field{Name: "R_target", Shape: target.Shape(), Real: target.Data},
		)
	}
	guard.apply(res)
	logDone(o.logger, res)
	return res, nil
}

func curvatureMSE(s, target *kernel.Grid) float64 {
	mse, err := kernel.MSE(kernel.Laplacian2D(s).Data, target.Data)
	if err != nil {
		// S and the target are allocated from the same config.
		panic(err)
	}
	return mse
}

func shapeOf(g *kernel.Grid) string {
	if g == nil {
		return "nil"
	}
	return fmt.Sprintf("%dx%d", g.Rows, g.Cols)
}
