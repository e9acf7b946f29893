package sim

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/pfch/internal/config"
	"github.com/roach88/pfch/internal/control"
	"github.com/roach88/pfch/internal/kernel"
)

// curlFloor keeps the coupling coefficient finite when the final curl is
// negligible.
const curlFloor = 1e-2

// idleWeight and effortWeight shape the coupling score so that a controller
// that never actuates, or actuates erratically, loses to a steady drive.
const (
	effortWeight = 2.5
	idleWeight   = 0.25
)

// RunBG01 drives the curl/curvature bridge. The controller injects a swirl
// phase exp(iκθ) about the packet center. The curl of the information flux
// J = Im(ψ*∇ψ) feeds back into the amplitude through β·curl·ψ, flattening
// the packet. The figure of merit is how much curvature of |ψ|² is removed
// per unit of final curl.
func RunBG01(cfg config.BG01, ctrl control.CurlController, seed int64, opts ...Option) (*Result, error) {
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
	psi, theta := bridgePacket(cfg)
	dt := complex(cfg.DT, 0)

	curlRMS0 := rms(fluxCurl(psi).Data)
	curv0 := curvature(psi)

	kappas := make([]float64, 0, cfg.Steps)
	curls := make([]float64, 0, cfg.Steps)
	curvs := make([]float64, 0, cfg.Steps)
	norms := make([]float64, 0, cfg.Steps)
	res.Metrics.Header = []string{"t", "kappa", "curl_rms", "curvature", "norm"}
	if o.frameStride > 0 {
		res.Frames = &Frames{Shape: []int{cfg.H, cfg.W}}
	}

	kappa, curlRMS, curv, norm := 0.0, curlRMS0, curv0, kernel.L2NormComplex(psi.Data)
	for t := 0; t < cfg.Steps; t++ {
		if !guard.frozen {
			curl := fluxCurl(psi)
			curlRMS = rms(curl.Data)
			kappa = kernel.Clip(ctrl.Step(rng, control.CurlInput{T: t, CurlRMS: curlRMS}), 0, cfg.KappaCap)

			lap := kernel.Laplacian2DComplex(psi)
			next := kernel.NewCGrid(cfg.H, cfg.W)
			for i, z := range psi.Data {
				drift := complex(cfg.Alpha, 0)*lap.Data[i] - complex(cfg.Lam, 0)*z + complex(cfg.Beta*curl.Data[i], 0)*z
				z += dt * drift
				z *= cmplx.Exp(complex(0, kappa*theta[i]))
				z += rng.NormalComplex(cfg.NoiseStd)
				next.Data[i] = z
			}
			kernel.ClipMagnitude(next.Data, cfg.Clip)

			n := kernel.L2NormComplex(next.Data)
			if guard.observe(t, kernel.AllFiniteComplex(next.Data), n) {
				psi = next
				curv, norm = curvature(psi), n
			}
		}

		kappas = append(kappas, kappa)
		curls = append(curls, curlRMS)
		curvs = append(curvs, curv)
		norms = append(norms, norm)
		res.Metrics.Rows = append(res.Metrics.Rows, []float64{float64(t), kappa, curlRMS, curv, norm})

		if o.telemetry {
			res.Telemetry = append(res.Telemetry, map[string]float64{
				"t":         float64(t),
				"kappa":     kappa,
				"curl_rms":  curlRMS,
				"curvature": curv,
				"norm":      norm,
			})
		}
		if res.Frames != nil && t%o.frameStride == 0 {
			res.Frames.Steps = append(res.Frames.Steps, t)
			res.Frames.Data = append(res.Frames.Data, psi.Data...)
		}
	}

	deltaCurv := curv - curv0
	coeff := -deltaCurv / math.Max(curlRMS, curlFloor)
	kappaMean := stat.Mean(kappas, nil)
	effort := 0.0
	if len(kappas) > 1 {
		effort = math.Sqrt(stat.PopVariance(kappas, nil))
	}
	idle := 0.0
	if half := 0.5 * cfg.KappaCap; half > 0 {
		idle = math.Max(0, half-kappaMean) / half
	}

	res.Scalars["curl_rms0"] = curlRMS0
	res.Scalars["curl_rmsT"] = curlRMS
	res.Scalars["curv0"] = curv0
	res.Scalars["curvT"] = curv
	res.Scalars["delta_curvature"] = deltaCurv
	res.Scalars["coupling_coeff"] = coeff
	res.Scalars["coupling_score"] = coeff - effortWeight*effort - idleWeight*idle
	res.Scalars["effort"] = effort
	res.Scalars["idle"] = idle
	res.Scalars["kappa_mean"] = kappaMean
	res.Scalars["max_norm"] = floats.Max(norms)
	res.addSeries("kappa", kappas)
	res.addSeries("curl_rms", curls)
	res.addSeries("curvature", curvs)
	res.addSeries("norm", norms)
	if o.fields {
		res.Fields = append(res.Fields, Field{Name: "psi_final", Shape: psi.Shape(), Complex: psi.Data})
	}
	guard.apply(res)
	logDone(o.logger, res)
	return res, nil
}

// bridgePacket returns the zero-phase Gaussian launch field centered at
// ((H−1)/2, (W−1)/2) and the azimuthal angle about that center.
func bridgePacket(cfg config.BG01) (*kernel.CGrid, []float64) {
	psi := kernel.NewCGrid(cfg.H, cfg.W)
	theta := make([]float64, cfg.H*cfg.W)
	cr := float64(cfg.H-1) / 2
	cc := float64(cfg.W-1) / 2
	inv := 1 / (2 * cfg.Sigma0 * cfg.Sigma0)
	for r := 0; r < cfg.H; r++ {
		for c := 0; c < cfg.W; c++ {
			dr, dc := float64(r)-cr, float64(c)-cc
			i := r*cfg.W + c
			psi.Data[i] = complex(cfg.Amp0*math.Exp(-(dr*dr+dc*dc)*inv), 0)
			theta[i] = math.Atan2(dr, dc)
		}
	}
	return psi, theta
}

// fluxCurl returns curl_z of J = Im(ψ*∇ψ): ∂_r J_c − ∂_c J_r.
func fluxCurl(psi *kernel.CGrid) *kernel.Grid {
	dr, dc := kernel.Gradient2D(psi)
	jr := kernel.NewGrid(psi.Rows, psi.Cols)
	jc := kernel.NewGrid(psi.Rows, psi.Cols)
	for i, z := range psi.Data {
		conj := cmplx.Conj(z)
		jr.Data[i] = imag(conj * dr.Data[i])
		jc.Data[i] = imag(conj * dc.Data[i])
	}
	dJcdr, _ := kernel.GradientReal2D(jc)
	_, dJrdc := kernel.GradientReal2D(jr)
	out := kernel.NewGrid(psi.Rows, psi.Cols)
	for i := range out.Data {
		out.Data[i] = dJcdr.Data[i] - dJrdc.Data[i]
	}
	return out
}

// curvature is mean|∇²|ψ|²|.
func curvature(psi *kernel.CGrid) float64 {
	p := &kernel.Grid{Rows: psi.Rows, Cols: psi.Cols, Data: kernel.Intensity(psi.Data)}
	lap := kernel.Laplacian2D(p)
	sum := 0.0
	for _, v := range lap.Data {
		sum += math.Abs(v)
	}
	return sum / float64(len(lap.Data))
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return kernel.L2Norm(x) / math.Sqrt(float64(len(x)))
}
