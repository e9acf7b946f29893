// Package control defines the per-experiment controller interfaces and the
// three controller families every experiment is judged with: open-loop,
// random-jitter baselines and the closed-loop Tessaris controllers.
//
// Controllers never own randomness. The driver passes its RNG into every
// Step call, so a run is reproducible from (config, controller, seed).
package control

import "github.com/roach88/pfch/internal/kernel"

// PGInput is the observation handed to a PG controller.
type PGInput struct {
	T int
	// S is the current potential. Controllers must not modify it.
	S *kernel.Grid
}

// PGController maps the current potential to the next one.
type PGController interface {
	Name() string
	Step(rng *kernel.RNG, in PGInput) *kernel.Grid
}

// PIInput is the observation handed to a PI controller.
type PIInput struct {
	T     int
	V     float64
	Alpha float64
}

// SolitonInput carries the MT01 peak and width measurements.
type SolitonInput struct {
	T     int
	Peak  float64
	Width float64
}

// CollisionInput carries the MT02 peak ratio peak/peak0.
type CollisionInput struct {
	T         int
	PeakRatio float64
}

// CurlInput carries the BG01 RMS curl of the information flux.
type CurlInput struct {
	T       int
	CurlRMS float64
}

// BarrierInput carries the TN transmission measurement.
type BarrierInput struct {
	T            int
	Steps        int
	Transmission float64
	V0           float64
}

// Scalar is a controller whose action is a single number.
type Scalar[In any] interface {
	Name() string
	Step(rng *kernel.RNG, in In) float64
}

// Scalar controller interfaces, one per experiment class.
type (
	PIController        = Scalar[PIInput]
	SolitonController   = Scalar[SolitonInput]
	CollisionController = Scalar[CollisionInput]
	CurlController      = Scalar[CurlInput]
	BarrierController   = Scalar[BarrierInput]
)

// Controller names as they appear in artifacts and run hashes.
const (
	KindOpenLoop         = "open_loop"
	KindJitterS          = "random_jitter_s"
	KindJitterAlpha      = "random_jitter_alpha"
	KindJitterGain       = "random_jitter_gain"
	KindJitterChi        = "random_jitter_chi"
	KindJitterKappa      = "random_jitter_kappa"
	KindJitterV0         = "random_jitter_v0"
	KindCurvatureHold    = "tessaris_curvature_hold"
	KindAlphaHold        = "tessaris_alpha_hold"
	KindSolitonHold      = "tessaris_soliton_hold"
	KindCollisionHold    = "tessaris_collision_hold"
	KindCurlDrive        = "tessaris_curl_drive"
	KindCurlDriveLegacy  = "tessaris_bg01_curl_drive"
	KindTransmissionLock = "tessaris_transmission_lock"
)
