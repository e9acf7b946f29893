package control

import (
	"math"
	"sort"

	"github.com/roach88/pfch/internal/config"
	"github.com/roach88/pfch/internal/kernel"
)

// Spec names a controller and its parameter overrides. It is the form in
// which controllers travel through scenario files and CLI flags.
type Spec struct {
	Kind   string             `json:"kind" yaml:"kind"`
	Params map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

var kindsByTest = map[string][]string{
	config.TestPG:   {KindOpenLoop, KindJitterS, KindCurvatureHold},
	config.TestPI:   {KindOpenLoop, KindJitterAlpha, KindAlphaHold},
	config.TestMT01: {KindOpenLoop, KindJitterGain, KindSolitonHold},
	config.TestMT02: {KindOpenLoop, KindJitterChi, KindCollisionHold},
	config.TestBG01: {KindOpenLoop, KindJitterKappa, KindCurlDrive, KindCurlDriveLegacy},
	config.TestTN:   {KindOpenLoop, KindJitterV0, KindTransmissionLock},
}

// Kinds lists the controller names accepted for testID.
func Kinds(testID string) []string {
	out := append([]string(nil), kindsByTest[testID]...)
	sort.Strings(out)
	return out
}

// DefaultKind returns the closed-loop controller for testID.
func DefaultKind(testID string) string {
	switch testID {
	case config.TestPG:
		return KindCurvatureHold
	case config.TestPI:
		return KindAlphaHold
	case config.TestMT01:
		return KindSolitonHold
	case config.TestMT02:
		return KindCollisionHold
	case config.TestBG01:
		return KindCurlDrive
	case config.TestTN:
		return KindTransmissionLock
	}
	return ""
}

// Baselines returns the open-loop and jitter specs for testID.
func Baselines(testID string) []Spec {
	kinds := kindsByTest[testID]
	if len(kinds) < 2 {
		return nil
	}
	return []Spec{{Kind: kinds[0]}, {Kind: kinds[1]}}
}

// CurvatureTarget returns R_target = Lap(Gaussian2D) for a PG config.
func CurvatureTarget(cfg config.PG) *kernel.Grid {
	c := kernel.DefaultCenter(cfg.N)
	return kernel.Laplacian2D(kernel.Gaussian2D(cfg.N, cfg.Sigma, cfg.WellAmp, c, c))
}

// BuildPG constructs a PG controller.
func BuildPG(spec Spec, cfg config.PG) (PGController, error) {
	p := newParams(spec)
	var ctrl PGController
	switch spec.Kind {
	case KindOpenLoop:
		ctrl = PGOpenLoop{}
	case KindJitterS:
		ctrl = PGJitter{Sigma: p.nonNegative("sigma", cfg.JitterSigma)}
	case KindCurvatureHold:
		lr := p.nonNegative("lr", cfg.LR)
		maxStep := p.nonNegative("max_step", cfg.MaxStep)
		if err := p.done(); err != nil {
			return nil, err
		}
		hold, err := NewCurvatureHold(CurvatureTarget(cfg), lr, maxStep)
		if err != nil {
			return nil, err
		}
		return hold, nil
	default:
		return nil, unknownKind(config.TestPG, spec.Kind)
	}
	return finish(p, ctrl)
}

// BuildPI constructs a PI controller.
func BuildPI(spec Spec, cfg config.PI) (PIController, error) {
	p := newParams(spec)
	var ctrl PIController
	switch spec.Kind {
	case KindOpenLoop:
		ctrl = OpenLoop[PIInput]{Value: p.get("value", cfg.Alpha0)}
	case KindJitterAlpha:
		ctrl = NewJitter[PIInput](KindJitterAlpha, cfg.Alpha0, p.nonNegative("sigma", cfg.JitterSigma), cfg.AlphaMin, cfg.AlphaMax)
	case KindAlphaHold:
		ctrl = AlphaHold{
			VTarget:  cfg.VTarget,
			LR:       p.nonNegative("lr", 0.02),
			MaxDelta: p.nonNegative("max_delta", 0.02),
			Min:      cfg.AlphaMin,
			Max:      cfg.AlphaMax,
		}
	default:
		return nil, unknownKind(config.TestPI, spec.Kind)
	}
	return finish(p, ctrl)
}

// BuildMT01 constructs an MT01 controller.
func BuildMT01(spec Spec, cfg config.MT01) (SolitonController, error) {
	p := newParams(spec)
	var ctrl SolitonController
	switch spec.Kind {
	case KindOpenLoop:
		ctrl = OpenLoop[SolitonInput]{Value: p.get("value", cfg.ChiBase)}
	case KindJitterGain:
		span := p.nonNegative("span", cfg.JitterSpan)
		ctrl = NewJitter[SolitonInput](KindJitterGain, cfg.ChiBase, p.nonNegative("sigma", cfg.JitterSigma), cfg.ChiBase-span, cfg.ChiBase+span)
	case KindSolitonHold:
		ctrl = SolitonHold{
			BaseGain: p.get("base_gain", 0.02),
			KpWidth:  p.get("kp_width", 0.004),
			KpPeak:   p.get("kp_peak", 0.004),
			GainCap:  p.nonNegative("gain_cap", 0.25),
			ChiCap:   p.nonNegative("chi_cap", 2.0),
			Sigma0:   cfg.Sigma0,
			Amp0:     cfg.Amp0,
		}
	default:
		return nil, unknownKind(config.TestMT01, spec.Kind)
	}
	return finish(p, ctrl)
}

// BuildMT02 constructs an MT02 controller.
func BuildMT02(spec Spec, cfg config.MT02) (CollisionController, error) {
	p := newParams(spec)
	var ctrl CollisionController
	switch spec.Kind {
	case KindOpenLoop:
		ctrl = OpenLoop[CollisionInput]{Value: p.get("value", cfg.ChiBase)}
	case KindJitterChi:
		ctrl = NewJitter[CollisionInput](KindJitterChi, cfg.ChiBase, p.nonNegative("sigma", cfg.JitterSigma), 0, cfg.ChiCap)
	case KindCollisionHold:
		ctrl = CollisionHold{
			ChiBase: cfg.ChiBase,
			Kp:      p.get("kp", 0.1),
			ChiCap:  p.nonNegative("chi_cap", cfg.ChiCap),
		}
	default:
		return nil, unknownKind(config.TestMT02, spec.Kind)
	}
	return finish(p, ctrl)
}

// BuildBG01 constructs a BG01 controller. Kappa is bounded to [0, kappa_cap]
// for every kind.
func BuildBG01(spec Spec, cfg config.BG01) (CurlController, error) {
	p := newParams(spec)
	var ctrl CurlController
	switch spec.Kind {
	case KindOpenLoop:
		ctrl = OpenLoop[CurlInput]{Value: kernel.Clip(p.get("value", 0), 0, cfg.KappaCap)}
	case KindJitterKappa:
		ctrl = NewAnchoredJitter[CurlInput](KindJitterKappa, p.get("kappa0", 0), p.nonNegative("sigma", cfg.JitterSigma), 0, cfg.KappaCap)
	case KindCurlDrive, KindCurlDriveLegacy:
		ctrl = NewCurlDrive(spec.Kind, cfg.CurlTarget, p.nonNegative("kp", 6.0), cfg.KappaCap)
	default:
		return nil, unknownKind(config.TestBG01, spec.Kind)
	}
	return finish(p, ctrl)
}

// BuildTN constructs a TN controller.
func BuildTN(spec Spec, cfg config.TN) (BarrierController, error) {
	p := newParams(spec)
	var ctrl BarrierController
	switch spec.Kind {
	case KindOpenLoop:
		ctrl = OpenLoop[BarrierInput]{Value: p.get("value", cfg.V0Init)}
	case KindJitterV0:
		ctrl = NewJitter[BarrierInput](KindJitterV0, cfg.V0Init, p.nonNegative("sigma", cfg.JitterSigma), cfg.V0Min, cfg.V0Max)
	case KindTransmissionLock:
		smooth := p.get("smooth", 0.5)
		if smooth < 0 || smooth >= 1 {
			p.fail("smooth must be within [0, 1), got %v", smooth)
		}
		ctrl = TransmissionLock{
			Target: cfg.TTarget,
			Gain:   p.nonNegative("gain", 0.5),
			Smooth: smooth,
			Min:    cfg.V0Min,
			Max:    cfg.V0Max,
		}
	default:
		return nil, unknownKind(config.TestTN, spec.Kind)
	}
	return finish(p, ctrl)
}

func finish[C any](p *params, ctrl C) (C, error) {
	if err := p.done(); err != nil {
		var zero C
		return zero, err
	}
	return ctrl, nil
}

// params tracks which overrides a builder consumed so leftovers can be
// reported as BAD_PARAM.
type params struct {
	kind string
	m    map[string]float64
	used map[string]bool
	err  *Error
}

func newParams(spec Spec) *params {
	return &params{kind: spec.Kind, m: spec.Params, used: map[string]bool{}}
}

func (p *params) get(name string, def float64) float64 {
	p.used[name] = true
	v, ok := p.m[name]
	if !ok {
		return def
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		p.fail("%s must be finite, got %v", name, v)
		return def
	}
	return v
}

func (p *params) nonNegative(name string, def float64) float64 {
	v := p.get(name, def)
	if v < 0 {
		p.fail("%s must be >= 0, got %v", name, v)
	}
	return v
}

func (p *params) fail(format string, args ...any) {
	if p.err == nil {
		p.err = badParam(p.kind, format, args...)
	}
}

func (p *params) done() error {
	if p.err != nil {
		return p.err
	}
	var unknown []string
	for k := range p.m {
		if !p.used[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return badParam(p.kind, "unknown parameters %v", unknown)
	}
	return nil
}
