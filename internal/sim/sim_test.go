package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pfch/internal/config"
	"github.com/roach88/pfch/internal/control"
	"github.com/roach88/pfch/internal/kernel"
)

// Locked acceptance seeds. MT02 and PI have their own.
const (
	acceptanceSeed = 1337
	mt02Seed       = 0
	piSeed         = 1
)

// runTrio runs the closed-loop controller and both baselines of cfg's
// experiment with the same seed.
func runTrio(t *testing.T, cfg config.Config, seed int64) (hold, open, jitter *Result) {
	t.Helper()
	id := cfg.TestID()
	results := make([]*Result, 0, 3)
	for _, spec := range append([]control.Spec{{Kind: control.DefaultKind(id)}}, control.Baselines(id)...) {
		res, err := Run(cfg, spec, seed)
		require.NoError(t, err, "%s/%s", id, spec.Kind)
		results = append(results, res)
	}
	return results[0], results[1], results[2]
}

func TestPGPoissonSanity(t *testing.T) {
	hold, open, jitter := runTrio(t, config.DefaultPG(), acceptanceSeed)

	assert.Less(t, hold.Scalars["mse_final"], 1e-10, "hold reaches the pre-solved potential")
	assert.Greater(t, open.Scalars["mse_final"], 1e-3, "open loop keeps S = 0")
	assert.Less(t, hold.Scalars["mse_final"], open.Scalars["mse_final"])
	assert.Less(t, hold.Scalars["mse_final"], jitter.Scalars["mse_final"])
	assert.LessOrEqual(t, hold.Scalars["max_norm"], 1e6)
	assert.False(t, hold.Unstable)

	mse := hold.SeriesByName("mse_R")
	require.Len(t, mse, 200)
	assert.Equal(t, open.Scalars["mse0"], mse[0], "every controller starts from S = 0")
}

func TestPIConvergence(t *testing.T) {
	cfg := config.DefaultPI()
	hold, open, jitter := runTrio(t, cfg, piSeed)

	assert.Less(t, hold.Scalars["err_final"], 0.05)
	assert.Less(t, hold.Scalars["err_final"], open.Scalars["err_final"])
	assert.Less(t, hold.Scalars["err_final"], jitter.Scalars["err_final"])
	assert.InDelta(t, 0.5, open.Scalars["err_final"], 0.05, "open loop settles at (drive−load)/alpha0")

	alpha := hold.Scalars["alpha_final"]
	assert.GreaterOrEqual(t, alpha, cfg.AlphaMin)
	assert.LessOrEqual(t, alpha, cfg.AlphaMax)
}

// With load = 0 the plant is dv/dt = drive − α·v and the open loop at
// alpha0 already settles on v_target.
func TestPIZeroLoadIsUnloadedPlant(t *testing.T) {
	cfg := config.DefaultPI()
	cfg.Load = 0

	open, err := Run(cfg, control.Spec{Kind: control.KindOpenLoop}, piSeed)
	require.NoError(t, err)
	assert.Equal(t, cfg.Drive/cfg.Alpha0, open.Scalars["v_terminal"])
	assert.Equal(t, cfg.VTarget, open.Scalars["v_terminal"])
	assert.Less(t, open.Scalars["err_final"], 0.05)
}

func TestMT01Acceptance(t *testing.T) {
	cfg := config.DefaultMT01()
	hold, open, jitter := runTrio(t, cfg, acceptanceSeed)

	pr := hold.Scalars["peak_retention"]
	assert.GreaterOrEqual(t, pr, 0.90)
	assert.LessOrEqual(t, hold.Scalars["width_drift_pct"], 2.0)
	assert.LessOrEqual(t, hold.Scalars["max_norm"], cfg.NormCap)
	assert.GreaterOrEqual(t, pr-open.Scalars["peak_retention"], 0.05, "beats open loop")
	assert.GreaterOrEqual(t, pr-jitter.Scalars["peak_retention"], 0.05, "beats jitter")
	assert.False(t, hold.Unstable, hold.Instability)
}

// With dt = 1 the driver reduces to the unscaled update
// u ← clip(u + α·∇²u − λu + χu³ + noise, ±clip).
func TestMT01UnitStepIsUnscaledUpdate(t *testing.T) {
	cfg := config.DefaultMT01()
	cfg.DT = 1
	cfg.Steps = 5
	const seed = 42
	ctrl := control.OpenLoop[control.SolitonInput]{Value: cfg.ChiBase}

	res, err := RunMT01(cfg, ctrl, seed)
	require.NoError(t, err)
	require.False(t, res.Unstable, res.Instability)

	rng := kernel.NewRNG(seed)
	u := make([]float64, cfg.N)
	for i, z := range kernel.GaussianPacket1D(cfg.N, cfg.Sigma0, cfg.Amp0, kernel.DefaultCenter(cfg.N), 0) {
		u[i] = real(z)
	}
	for step := 0; step < cfg.Steps; step++ {
		lap := kernel.Laplacian1D(u)
		next := make([]float64, cfg.N)
		for i, v := range u {
			next[i] = kernel.Clip(v+cfg.Alpha*lap[i]-cfg.Lam*v+cfg.ChiBase*v*v*v+rng.Normal(0, cfg.NoiseStd), -cfg.Clip, cfg.Clip)
		}
		u = next
	}

	require.Len(t, res.Fields, 1)
	assert.InDeltaSlice(t, u, res.Fields[0].Real, 1e-12)
}

func TestMT01UnitStepLosesThePacket(t *testing.T) {
	cfg := config.DefaultMT01()
	cfg.DT = 1
	hold, _, _ := runTrio(t, cfg, acceptanceSeed)
	assert.Less(t, hold.Scalars["peak_retention"], 0.90, "the acceptance gains need dt well below 1")
}

func TestMT02Acceptance(t *testing.T) {
	cfg := config.DefaultMT02()
	hold, open, jitter := runTrio(t, cfg, mt02Seed)

	pr := hold.Scalars["peak_retention"]
	assert.GreaterOrEqual(t, pr, 0.85)
	assert.LessOrEqual(t, pr, 1.20)
	assert.LessOrEqual(t, hold.Scalars["symmetry_error_final"], 0.15)
	assert.LessOrEqual(t, hold.Scalars["max_norm"], cfg.NormCap)

	holdErr := math.Abs(1 - pr)
	assert.GreaterOrEqual(t, math.Abs(1-open.Scalars["peak_retention"])-holdErr, 0.05, "beats open loop")
	assert.GreaterOrEqual(t, math.Abs(1-jitter.Scalars["peak_retention"])-holdErr, 0.05, "beats jitter")
	assert.Equal(t, holdErr, hold.Scalars["peak_retention_error"])
}

func TestBG01Acceptance(t *testing.T) {
	hold, open, jitter := runTrio(t, config.DefaultBG01(), acceptanceSeed)

	score := hold.Scalars["coupling_score"]
	assert.Greater(t, hold.Scalars["coupling_coeff"], 0.0)
	assert.GreaterOrEqual(t, score-open.Scalars["coupling_score"], 0.02, "beats open loop")
	assert.GreaterOrEqual(t, score-jitter.Scalars["coupling_score"], 0.02, "beats jitter")
	assert.LessOrEqual(t, hold.Scalars["max_norm"], 1e6)

	assert.Equal(t, 0.0, open.Scalars["kappa_mean"])
	assert.Equal(t, 1.0, open.Scalars["idle"], "open loop never actuates")
}

func TestTNTransmissionLock(t *testing.T) {
	cfg := config.DefaultTN()
	hold, open, jitter := runTrio(t, cfg, acceptanceSeed)

	assert.Less(t, hold.Scalars["err_tail"], open.Scalars["err_tail"])
	assert.Less(t, hold.Scalars["err_tail"], jitter.Scalars["err_tail"])
	assert.Less(t, hold.Scalars["err_tail"], 0.05)

	v0 := hold.Scalars["v0_final"]
	assert.GreaterOrEqual(t, v0, cfg.V0Min)
	assert.LessOrEqual(t, v0, cfg.V0Max)
	c := hold.Scalars["coherence_final"]
	assert.GreaterOrEqual(t, c, 0.0)
	assert.LessOrEqual(t, c, 1.0)
}

func TestTransmission(t *testing.T) {
	assert.Equal(t, 1.0, Transmission(0.5, 1, 1), "below the energy the barrier is transparent")
	assert.Equal(t, 1.0, Transmission(1, 1, 1))
	assert.InDelta(t, math.Exp(-2), Transmission(1.5, 1, 1), 1e-15)
	assert.Less(t, Transmission(3, 1, 1), Transmission(2, 1, 1))
}

func TestMetricsShape(t *testing.T) {
	headers := map[string][]string{
		config.TestPG:   {"step", "mse_R"},
		config.TestPI:   {"t", "alpha", "v", "a"},
		config.TestMT01: {"step", "peak", "width", "norm"},
		config.TestMT02: {"step", "peak", "symmetry", "norm"},
		config.TestBG01: {"t", "kappa", "curl_rms", "curvature", "norm"},
		config.TestTN:   {"t", "v0", "T", "coherence"},
	}
	for _, cfg := range smallConfigs() {
		t.Run(cfg.TestID(), func(t *testing.T) {
			res, err := Run(cfg, control.Spec{Kind: control.DefaultKind(cfg.TestID())}, 1)
			require.NoError(t, err)

			assert.Equal(t, headers[cfg.TestID()], res.Metrics.Header)
			assert.Len(t, res.Metrics.Rows, steps(cfg), "one row per step")
			for i, row := range res.Metrics.Rows {
				require.Len(t, row, len(res.Metrics.Header))
				assert.Equal(t, float64(i), row[0])
			}
			assert.Len(t, res.RunHash, 7)
			assert.Contains(t, res.Scalars, Headline(cfg.TestID()))
		})
	}
}

func TestReproducibility(t *testing.T) {
	for _, cfg := range smallConfigs() {
		t.Run(cfg.TestID(), func(t *testing.T) {
			for _, spec := range control.Baselines(cfg.TestID()) {
				a, err := Run(cfg, spec, 42)
				require.NoError(t, err)
				b, err := Run(cfg, spec, 42)
				require.NoError(t, err)
				c, err := Run(cfg, spec, 43)
				require.NoError(t, err)

				assert.Equal(t, a.RunHash, b.RunHash)
				assert.Equal(t, a.Metrics, b.Metrics, "%s is deterministic", spec.Kind)
				assert.Equal(t, a.Scalars, b.Scalars)
				assert.NotEqual(t, a.RunHash, c.RunHash, "seed is part of the hash")
			}
		})
	}
}

func TestInvalidConfigFailsBeforeRunning(t *testing.T) {
	cfg := config.DefaultMT01()
	cfg.Clip = 0
	ctrl, err := control.BuildMT01(control.Spec{Kind: control.KindOpenLoop}, config.DefaultMT01())
	require.NoError(t, err)

	_, err = RunMT01(cfg, ctrl, 1)
	require.Error(t, err)
	assert.True(t, config.IsConfigError(err))
}

func TestRunUnknownController(t *testing.T) {
	_, err := Run(config.DefaultTN(), control.Spec{Kind: "nope"}, 1)
	require.Error(t, err)
	assert.True(t, control.IsUnknownController(err))
}

func TestNormCapMarksUnstable(t *testing.T) {
	cfg := config.DefaultMT01()
	cfg.Steps = 50
	cfg.NormCap = 0.5

	res, err := Run(cfg, control.Spec{Kind: control.KindOpenLoop}, 1)
	require.NoError(t, err)
	assert.True(t, res.Unstable)
	assert.Contains(t, res.Instability, "norm_cap")
	assert.Len(t, res.Metrics.Rows, cfg.Steps, "the loop still completes")
}

// nanAfter is a PG controller that poisons the field at step n.
type nanAfter struct{ n int }

func (nanAfter) Name() string { return "nan_after" }

func (c nanAfter) Step(_ *kernel.RNG, in control.PGInput) *kernel.Grid {
	out := in.S.Clone()
	for i := range out.Data {
		out.Data[i] += 0.01
	}
	if in.T >= c.n {
		out.Data[0] = math.NaN()
	}
	return out
}

func TestNonFiniteFieldFreezes(t *testing.T) {
	cfg := config.DefaultPG()
	cfg.N = 8
	cfg.Steps = 20

	res, err := RunPG(cfg, nanAfter{n: 5}, 1)
	require.NoError(t, err)
	assert.True(t, res.Unstable)
	assert.Contains(t, res.Instability, "step 5")
	require.Len(t, res.Metrics.Rows, cfg.Steps)

	last := res.Metrics.Rows[6][1]
	for _, row := range res.Metrics.Rows[6:] {
		assert.Equal(t, last, row[1], "frozen rows repeat the last finite measurement")
	}
	assert.False(t, math.IsNaN(res.Scalars["mse_final"]))
}

// badShape returns a grid of the wrong size.
type badShape struct{}

func (badShape) Name() string { return "bad_shape" }

func (badShape) Step(*kernel.RNG, control.PGInput) *kernel.Grid { return kernel.NewGrid(2, 2) }

func TestPGRejectsMisshapenControllerOutput(t *testing.T) {
	cfg := config.DefaultPG()
	cfg.N = 8
	_, err := RunPG(cfg, badShape{}, 1)
	require.Error(t, err)
	assert.True(t, kernel.IsShapeError(err))
}

func TestBG01TelemetryAndFrames(t *testing.T) {
	cfg := smallBG01()
	res, err := Run(cfg, control.Spec{Kind: control.KindCurlDrive}, 1,
		WithTelemetry(true), WithFrameStride(DefaultFrameStride))
	require.NoError(t, err)

	require.Len(t, res.Telemetry, cfg.Steps)
	assert.Equal(t, 3.0, res.Telemetry[3]["t"])
	assert.Equal(t, res.Metrics.Rows[3][1], res.Telemetry[3]["kappa"])

	require.NotNil(t, res.Frames)
	assert.Equal(t, []int{0, 2, 4, 6, 8}, res.Frames.Steps)
	assert.Len(t, res.Frames.Data, 5*cfg.H*cfg.W)
	assert.Equal(t, []int{cfg.H, cfg.W}, res.Frames.Shape)
}

func TestBG01DefaultsOmitTelemetry(t *testing.T) {
	res, err := Run(smallBG01(), control.Spec{Kind: control.KindOpenLoop}, 1)
	require.NoError(t, err)
	assert.Nil(t, res.Telemetry)
	assert.Nil(t, res.Frames)
	require.Len(t, res.Fields, 1)
	assert.Equal(t, "psi_final", res.Fields[0].Name)
}

func TestWithFieldsDisabled(t *testing.T) {
	res, err := Run(smallPG(), control.Spec{Kind: control.KindCurvatureHold}, 1, WithFields(false))
	require.NoError(t, err)
	assert.Empty(t, res.Fields)
}

func TestLegacyCurlDriveName(t *testing.T) {
	cfg := smallBG01()
	legacy, err := Run(cfg, control.Spec{Kind: control.KindCurlDriveLegacy}, 1)
	require.NoError(t, err)
	current, err := Run(cfg, control.Spec{Kind: control.KindCurlDrive}, 1)
	require.NoError(t, err)

	assert.Equal(t, control.KindCurlDriveLegacy, legacy.Controller)
	assert.NotEqual(t, legacy.RunHash, current.RunHash, "the controller name is hashed verbatim")
	assert.Equal(t, current.Metrics, legacy.Metrics, "the alias behaves identically")
}

func smallPG() config.PG {
	c := config.DefaultPG()
	c.N = 16
	c.Steps = 12
	return c
}

func smallBG01() config.BG01 {
	c := config.DefaultBG01()
	c.H, c.W = 16, 16
	c.Sigma0 = 3
	c.Steps = 10
	return c
}

func smallConfigs() []config.Config {
	pi := config.DefaultPI()
	pi.Steps = 30
	mt01 := config.DefaultMT01()
	mt01.N, mt01.Steps = 64, 40
	mt02 := config.DefaultMT02()
	mt02.N, mt02.Steps, mt02.Separation = 64, 40, 20
	tn := config.DefaultTN()
	tn.Steps = 30
	return []config.Config{smallPG(), pi, mt01, mt02, smallBG01(), tn}
}

func steps(cfg config.Config) int {
	switch c := cfg.(type) {
	case config.PG:
		return c.Steps
	case config.PI:
		return c.Steps
	case config.MT01:
		return c.Steps
	case config.MT02:
		return c.Steps
	case config.BG01:
		return c.Steps
	case config.TN:
		return c.Steps
	}
	return 0
}
