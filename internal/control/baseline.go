package control

import "github.com/roach88/pfch/internal/kernel"

// OpenLoop returns the same action every step.
type OpenLoop[In any] struct {
	Value float64
}

func (OpenLoop[In]) Name() string { return KindOpenLoop }

func (c OpenLoop[In]) Step(*kernel.RNG, In) float64 { return c.Value }

// Jitter is the random-jitter baseline: a clipped random walk of the action.
// With Anchored set every step redraws around Start instead of walking.
type Jitter[In any] struct {
	Kind     string
	Start    float64
	Sigma    float64
	Lo, Hi   float64
	Anchored bool

	value   float64
	started bool
}

// NewJitter returns a random-walk jitter controller starting at start.
func NewJitter[In any](kind string, start, sigma, lo, hi float64) *Jitter[In] {
	return &Jitter[In]{Kind: kind, Start: start, Sigma: sigma, Lo: lo, Hi: hi}
}

// NewAnchoredJitter returns a jitter controller that draws each action
// independently as clip(center + N(0, sigma²)).
func NewAnchoredJitter[In any](kind string, center, sigma, lo, hi float64) *Jitter[In] {
	return &Jitter[In]{Kind: kind, Start: center, Sigma: sigma, Lo: lo, Hi: hi, Anchored: true}
}

func (j *Jitter[In]) Name() string { return j.Kind }

func (j *Jitter[In]) Step(rng *kernel.RNG, _ In) float64 {
	if j.Anchored {
		return kernel.Clip(rng.Normal(j.Start, j.Sigma), j.Lo, j.Hi)
	}
	if !j.started {
		j.value = j.Start
		j.started = true
	}
	j.value = kernel.Clip(rng.Normal(j.value, j.Sigma), j.Lo, j.Hi)
	return j.value
}

// PGOpenLoop leaves the potential untouched.
type PGOpenLoop struct{}

func (PGOpenLoop) Name() string { return KindOpenLoop }

func (PGOpenLoop) Step(_ *kernel.RNG, in PGInput) *kernel.Grid { return in.S.Clone() }

// PGJitter adds independent N(0, sigma²) noise to every cell of S.
type PGJitter struct {
	Sigma float64
}

func (PGJitter) Name() string { return KindJitterS }

func (c PGJitter) Step(rng *kernel.RNG, in PGInput) *kernel.Grid {
	out := in.S.Clone()
	for i := range out.Data {
		out.Data[i] += rng.Normal(0, c.Sigma)
	}
	return out
}
