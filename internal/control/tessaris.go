package control

import (
	"fmt"
	"math"

	"github.com/roach88/pfch/internal/kernel"
)

// CurvatureHold steers S toward S* = Poisson(R_target) with a clipped
// proportional step: S + clip(lr·(S*−S), ±maxStep).
type CurvatureHold struct {
	LR      float64
	MaxStep float64

	target *kernel.Grid
}

// NewCurvatureHold solves for S* once. The returned controller is stateless.
func NewCurvatureHold(rTarget *kernel.Grid, lr, maxStep float64) (*CurvatureHold, error) {
	star, err := kernel.PoissonSolve(rTarget)
	if err != nil {
		return nil, fmt.Errorf("solving curvature target: %w", err)
	}
	return &CurvatureHold{LR: lr, MaxStep: maxStep, target: star}, nil
}

func (*CurvatureHold) Name() string { return KindCurvatureHold }

// Target returns the pre-solved S*.
func (c *CurvatureHold) Target() *kernel.Grid { return c.target }

func (c *CurvatureHold) Step(_ *kernel.RNG, in PGInput) *kernel.Grid {
	out := in.S.Clone()
	for i, s := range out.Data {
		out.Data[i] = s + kernel.Clip(c.LR*(c.target.Data[i]-s), -c.MaxStep, c.MaxStep)
	}
	return out
}

// AlphaHold raises damping when v overshoots the target and lowers it when
// v falls short.
type AlphaHold struct {
	VTarget  float64
	LR       float64
	MaxDelta float64
	Min, Max float64
}

func (AlphaHold) Name() string { return KindAlphaHold }

func (c AlphaHold) Step(_ *kernel.RNG, in PIInput) float64 {
	e := c.VTarget - in.V
	delta := kernel.Clip(c.LR*e, -c.MaxDelta, c.MaxDelta)
	return kernel.Clip(in.Alpha-delta, c.Min, c.Max)
}

// SolitonHold sets the nonlinear gain from width and peak errors relative to
// the launch packet.
type SolitonHold struct {
	BaseGain float64
	KpWidth  float64
	KpPeak   float64
	GainCap  float64
	ChiCap   float64
	Sigma0   float64
	Amp0     float64
}

func (SolitonHold) Name() string { return KindSolitonHold }

func (c SolitonHold) Step(_ *kernel.RNG, in SolitonInput) float64 {
	cw := kernel.Clip(c.KpWidth*(c.Sigma0-in.Width), -c.GainCap, c.GainCap)
	cp := kernel.Clip(c.KpPeak*(c.Amp0-in.Peak), -c.GainCap, c.GainCap)
	return kernel.Clip(c.BaseGain+cw+cp, -c.ChiCap, c.ChiCap)
}

// CollisionHold raises the focusing gain as the peak decays.
type CollisionHold struct {
	ChiBase float64
	Kp      float64
	ChiCap  float64
}

func (CollisionHold) Name() string { return KindCollisionHold }

func (c CollisionHold) Step(_ *kernel.RNG, in CollisionInput) float64 {
	return kernel.Clip(c.ChiBase+c.Kp*(1-in.PeakRatio), 0, c.ChiCap)
}

// CurlDrive integrates the curl error into a bounded twist rate kappa.
type CurlDrive struct {
	Kind   string
	Target float64
	Kp     float64
	Cap    float64

	kappa float64
}

// NewCurlDrive returns a drive with kappa starting at zero. kind is either
// KindCurlDrive or its legacy alias and is reported verbatim by Name.
func NewCurlDrive(kind string, target, kp, kappaCap float64) *CurlDrive {
	return &CurlDrive{Kind: kind, Target: target, Kp: kp, Cap: kappaCap}
}

func (c *CurlDrive) Name() string { return c.Kind }

func (c *CurlDrive) Step(_ *kernel.RNG, in CurlInput) float64 {
	c.kappa = kernel.Clip(c.kappa+c.Kp*(c.Target-in.CurlRMS), 0, c.Cap)
	return c.kappa
}

// TransmissionLock walks the barrier height toward the target transmission
// with a gain that ramps up over the run and a one-step smoothing.
type TransmissionLock struct {
	Target   float64
	Gain     float64
	Smooth   float64
	Min, Max float64
}

func (TransmissionLock) Name() string { return KindTransmissionLock }

func (c TransmissionLock) Step(_ *kernel.RNG, in BarrierInput) float64 {
	ramp := 1.0
	if in.Steps > 1 {
		ramp = 0.2 + 0.8*float64(in.T)/float64(in.Steps-1)
	}
	e := in.Transmission - c.Target
	next := in.V0 + c.Gain*ramp*e
	next = (1-c.Smooth)*next + c.Smooth*in.V0
	if math.IsNaN(next) {
		return in.V0
	}
	return kernel.Clip(next, c.Min, c.Max)
}
