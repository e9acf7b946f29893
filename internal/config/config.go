// Package config defines the immutable per-experiment configurations, their
// acceptance presets, and YAML loading validated against an embedded CUE
// schema.
package config

import "math"

// Experiment identifiers. They double as directory names under an artifact
// base dir and as CUE definition names in schema.cue.
const (
	TestPG   = "PG"
	TestPI   = "PI"
	TestMT01 = "MT01"
	TestMT02 = "MT02"
	TestBG01 = "BG01"
	TestTN   = "TN"
)

// TestIDs lists every supported experiment in presentation order.
var TestIDs = []string{TestPG, TestPI, TestMT01, TestMT02, TestBG01, TestTN}

// Config is implemented by every experiment config.
type Config interface {
	TestID() string
	Validate() error
}

// PG configures the Poisson-grid curvature experiment.
type PG struct {
	N           int     `json:"n" yaml:"n"`
	Steps       int     `json:"steps" yaml:"steps"`
	Sigma       float64 `json:"sigma" yaml:"sigma"`
	WellAmp     float64 `json:"well_amp" yaml:"well_amp"`
	DriftSigma  float64 `json:"drift_sigma" yaml:"drift_sigma"`
	JitterSigma float64 `json:"jitter_sigma" yaml:"jitter_sigma"`
	LR          float64 `json:"lr" yaml:"lr"`
	MaxStep     float64 `json:"max_step" yaml:"max_step"`
	Clip        float64 `json:"clip" yaml:"clip"`
	NormCap     float64 `json:"norm_cap" yaml:"norm_cap"`
}

// PI configures the velocity-tracking plant with tunable damping.
type PI struct {
	Steps       int     `json:"steps" yaml:"steps"`
	DT          float64 `json:"dt" yaml:"dt"`
	Drive       float64 `json:"drive" yaml:"drive"`
	Load        float64 `json:"load" yaml:"load"`
	Alpha0      float64 `json:"alpha0" yaml:"alpha0"`
	V0          float64 `json:"v0" yaml:"v0"`
	VTarget     float64 `json:"v_target" yaml:"v_target"`
	NoiseStd    float64 `json:"noise_std" yaml:"noise_std"`
	AlphaMin    float64 `json:"alpha_min" yaml:"alpha_min"`
	AlphaMax    float64 `json:"alpha_max" yaml:"alpha_max"`
	JitterSigma float64 `json:"jitter_sigma" yaml:"jitter_sigma"`
}

// MT01 configures the 1D soliton-hold experiment.
type MT01 struct {
	N           int     `json:"n" yaml:"n"`
	Steps       int     `json:"steps" yaml:"steps"`
	DT          float64 `json:"dt" yaml:"dt"`
	Alpha       float64 `json:"alpha" yaml:"alpha"`
	Lam         float64 `json:"lam" yaml:"lam"`
	NoiseStd    float64 `json:"noise_std" yaml:"noise_std"`
	Amp0        float64 `json:"amp0" yaml:"amp0"`
	Sigma0      float64 `json:"sigma0" yaml:"sigma0"`
	ChiBase     float64 `json:"chi_base" yaml:"chi_base"`
	Clip        float64 `json:"clip" yaml:"clip"`
	NormCap     float64 `json:"norm_cap" yaml:"norm_cap"`
	JitterSigma float64 `json:"jitter_sigma" yaml:"jitter_sigma"`
	JitterSpan  float64 `json:"jitter_span" yaml:"jitter_span"`
	WidthWindow float64 `json:"width_window" yaml:"width_window"`
}

// WidthHalfWindow returns the half window, in cells, used for width
// measurement: ceil(width_window·sigma0).
func (c MT01) WidthHalfWindow() int {
	return int(math.Ceil(c.WidthWindow * c.Sigma0))
}

// MT02 configures the two-packet collision experiment.
type MT02 struct {
	N           int     `json:"n" yaml:"n"`
	Steps       int     `json:"steps" yaml:"steps"`
	DT          float64 `json:"dt" yaml:"dt"`
	Alpha       float64 `json:"alpha" yaml:"alpha"`
	Lam         float64 `json:"lam" yaml:"lam"`
	NoiseStd    float64 `json:"noise_std" yaml:"noise_std"`
	Amp0        float64 `json:"amp0" yaml:"amp0"`
	Sigma0      float64 `json:"sigma0" yaml:"sigma0"`
	Separation  float64 `json:"separation" yaml:"separation"`
	K0          float64 `json:"k0" yaml:"k0"`
	ChiBase     float64 `json:"chi_base" yaml:"chi_base"`
	ChiCap      float64 `json:"chi_cap" yaml:"chi_cap"`
	Clip        float64 `json:"clip" yaml:"clip"`
	NormCap     float64 `json:"norm_cap" yaml:"norm_cap"`
	JitterSigma float64 `json:"jitter_sigma" yaml:"jitter_sigma"`
}

// BG01 configures the 2D curl/curvature bridge experiment.
type BG01 struct {
	H           int     `json:"h" yaml:"h"`
	W           int     `json:"w" yaml:"w"`
	Steps       int     `json:"steps" yaml:"steps"`
	DT          float64 `json:"dt" yaml:"dt"`
	Alpha       float64 `json:"alpha" yaml:"alpha"`
	Lam         float64 `json:"lam" yaml:"lam"`
	Beta        float64 `json:"beta" yaml:"beta"`
	Amp0        float64 `json:"amp0" yaml:"amp0"`
	Sigma0      float64 `json:"sigma0" yaml:"sigma0"`
	Clip        float64 `json:"clip" yaml:"clip"`
	CurlTarget  float64 `json:"curl_target" yaml:"curl_target"`
	KappaCap    float64 `json:"kappa_cap" yaml:"kappa_cap"`
	NoiseStd    float64 `json:"noise_std" yaml:"noise_std"`
	JitterSigma float64 `json:"jitter_sigma" yaml:"jitter_sigma"`
	NormCap     float64 `json:"norm_cap" yaml:"norm_cap"`
}

// TN configures the barrier-transmission lock experiment.
type TN struct {
	Steps           int     `json:"steps" yaml:"steps"`
	Energy          float64 `json:"energy" yaml:"energy"`
	Width           float64 `json:"width" yaml:"width"`
	V0Init          float64 `json:"v0_init" yaml:"v0_init"`
	V0Min           float64 `json:"v0_min" yaml:"v0_min"`
	V0Max           float64 `json:"v0_max" yaml:"v0_max"`
	TTarget         float64 `json:"t_target" yaml:"t_target"`
	NoiseStd        float64 `json:"noise_std" yaml:"noise_std"`
	DriftSigma      float64 `json:"drift_sigma" yaml:"drift_sigma"`
	JitterSigma     float64 `json:"jitter_sigma" yaml:"jitter_sigma"`
	CoherenceWindow int     `json:"coherence_window" yaml:"coherence_window"`
}

func (PG) TestID() string   { return TestPG }
func (PI) TestID() string   { return TestPI }
func (MT01) TestID() string { return TestMT01 }
func (MT02) TestID() string { return TestMT02 }
func (BG01) TestID() string { return TestBG01 }
func (TN) TestID() string   { return TestTN }

// Validate checks PG bounds.
func (c PG) Validate() error {
	var v check
	v.atLeastInt("n", c.N, 4)
	v.positiveInt("steps", c.Steps)
	v.positive("sigma", c.Sigma)
	v.nonNegative("drift_sigma", c.DriftSigma)
	v.nonNegative("jitter_sigma", c.JitterSigma)
	v.nonNegative("lr", c.LR)
	v.nonNegative("max_step", c.MaxStep)
	v.required("clip", c.Clip)
	v.positive("norm_cap", c.NormCap)
	return v.result()
}

// Validate checks PI bounds.
func (c PI) Validate() error {
	var v check
	v.positiveInt("steps", c.Steps)
	v.positive("dt", c.DT)
	v.nonNegative("noise_std", c.NoiseStd)
	v.positive("alpha_min", c.AlphaMin)
	v.ordered("alpha_min", c.AlphaMin, "alpha_max", c.AlphaMax)
	v.within("alpha0", c.Alpha0, c.AlphaMin, c.AlphaMax)
	v.nonNegative("jitter_sigma", c.JitterSigma)
	return v.result()
}

// Validate checks MT01 bounds.
func (c MT01) Validate() error {
	var v check
	v.atLeastInt("n", c.N, 8)
	v.positiveInt("steps", c.Steps)
	v.positive("dt", c.DT)
	v.nonNegative("alpha", c.Alpha)
	v.nonNegative("lam", c.Lam)
	v.nonNegative("noise_std", c.NoiseStd)
	v.positive("amp0", c.Amp0)
	v.positive("sigma0", c.Sigma0)
	v.required("clip", c.Clip)
	v.positive("norm_cap", c.NormCap)
	v.nonNegative("jitter_sigma", c.JitterSigma)
	v.nonNegative("jitter_span", c.JitterSpan)
	v.positive("width_window", c.WidthWindow)
	return v.result()
}

// Validate checks MT02 bounds.
func (c MT02) Validate() error {
	var v check
	v.atLeastInt("n", c.N, 8)
	v.positiveInt("steps", c.Steps)
	v.positive("dt", c.DT)
	v.nonNegative("alpha", c.Alpha)
	v.nonNegative("lam", c.Lam)
	v.nonNegative("noise_std", c.NoiseStd)
	v.positive("amp0", c.Amp0)
	v.positive("sigma0", c.Sigma0)
	v.positive("separation", c.Separation)
	v.nonNegative("chi_base", c.ChiBase)
	v.ordered("chi_base", c.ChiBase, "chi_cap", c.ChiCap)
	v.required("clip", c.Clip)
	v.positive("norm_cap", c.NormCap)
	v.nonNegative("jitter_sigma", c.JitterSigma)
	if v.err == nil && c.Separation >= float64(c.N) {
		v.err = invalid("separation", "must be smaller than n (%v >= %d)", c.Separation, c.N)
	}
	return v.result()
}

// Validate checks BG01 bounds.
func (c BG01) Validate() error {
	var v check
	v.atLeastInt("h", c.H, 4)
	v.atLeastInt("w", c.W, 4)
	v.positiveInt("steps", c.Steps)
	v.positive("dt", c.DT)
	v.nonNegative("alpha", c.Alpha)
	v.nonNegative("lam", c.Lam)
	v.positive("amp0", c.Amp0)
	v.positive("sigma0", c.Sigma0)
	v.required("clip", c.Clip)
	v.nonNegative("curl_target", c.CurlTarget)
	v.nonNegative("kappa_cap", c.KappaCap)
	v.nonNegative("noise_std", c.NoiseStd)
	v.nonNegative("jitter_sigma", c.JitterSigma)
	v.positive("norm_cap", c.NormCap)
	return v.result()
}

// Validate checks TN bounds.
func (c TN) Validate() error {
	var v check
	v.atLeastInt("steps", c.Steps, 2)
	v.positive("width", c.Width)
	v.ordered("v0_min", c.V0Min, "v0_max", c.V0Max)
	v.within("v0_init", c.V0Init, c.V0Min, c.V0Max)
	v.within("t_target", c.TTarget, 0, 1)
	v.nonNegative("noise_std", c.NoiseStd)
	v.nonNegative("drift_sigma", c.DriftSigma)
	v.nonNegative("jitter_sigma", c.JitterSigma)
	v.positiveInt("coherence_window", c.CoherenceWindow)
	return v.result()
}
