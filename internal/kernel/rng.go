package kernel

import "math/rand/v2"

// RNG is the single source of randomness for one run. A driver constructs
// exactly one RNG from its seed and passes it to every controller call, so a
// run is reproducible from (config, controller, seed) alone.
//
// RNG is not safe for concurrent use. Runs never share one.
type RNG struct {
	r *rand.Rand
}

// pcgStream decorrelates the second PCG word from the seed.
const pcgStream = 0x9e3779b97f4a7c15

// NewRNG returns a PCG-backed generator seeded from seed.
func NewRNG(seed int64) *RNG {
	s := uint64(seed)
	return &RNG{r: rand.New(rand.NewPCG(s, s^pcgStream))}
}

// Normal draws from N(mu, sigma²). sigma == 0 still consumes one draw so the
// stream position does not depend on configuration values.
func (g *RNG) Normal(mu, sigma float64) float64 {
	return mu + sigma*g.r.NormFloat64()
}

// NormalSlice fills dst with N(0, sigma²) draws and returns it.
func (g *RNG) NormalSlice(dst []float64, sigma float64) []float64 {
	for i := range dst {
		dst[i] = sigma * g.r.NormFloat64()
	}
	return dst
}

// NormalComplex draws re and im independently from N(0, sigma²).
func (g *RNG) NormalComplex(sigma float64) complex128 {
	re := g.r.NormFloat64()
	im := g.r.NormFloat64()
	return complex(sigma*re, sigma*im)
}

// Float64 returns a uniform draw in [0, 1).
func (g *RNG) Float64() float64 {
	return g.r.Float64()
}
