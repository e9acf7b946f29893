package control

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pfch/internal/config"
	"github.com/roach88/pfch/internal/kernel"
)

func TestCurvatureHoldConvergesToTarget(t *testing.T) {
	cfg := config.DefaultPG()
	cfg.N = 16
	ctrl, err := BuildPG(Spec{Kind: KindCurvatureHold}, cfg)
	require.NoError(t, err)
	hold := ctrl.(*CurvatureHold)

	s := kernel.NewGrid(cfg.N, cfg.N)
	for step := 0; step < 200; step++ {
		s = hold.Step(nil, PGInput{T: step, S: s})
	}

	got, err := kernel.MSE(s.Data, hold.Target().Data)
	require.NoError(t, err)
	assert.Less(t, got, 1e-12)
}

func TestCurvatureHoldStepIsBounded(t *testing.T) {
	target := kernel.NewGrid(4, 4)
	target.Set(1, 1, -100)
	target.Set(2, 2, 100)
	hold, err := NewCurvatureHold(target, 10, 0.5)
	require.NoError(t, err)

	s := kernel.NewGrid(4, 4)
	next := hold.Step(nil, PGInput{S: s})
	for i, v := range next.Data {
		assert.LessOrEqual(t, math.Abs(v-s.Data[i]), 0.5+1e-15)
	}
	assert.Equal(t, 0.0, s.Data[5], "input grid is not modified")
}

func TestPGBaselines(t *testing.T) {
	s := kernel.NewGrid(3, 3)
	s.Data[4] = 1

	same := PGOpenLoop{}.Step(nil, PGInput{S: s})
	assert.Equal(t, s.Data, same.Data)

	rng := kernel.NewRNG(1)
	noisy := PGJitter{Sigma: 0.1}.Step(rng, PGInput{S: s})
	assert.NotEqual(t, s.Data, noisy.Data)
	assert.Equal(t, 1.0, s.Data[4], "input grid is not modified")
}

func TestAlphaHoldDirection(t *testing.T) {
	c := AlphaHold{VTarget: 2, LR: 0.02, MaxDelta: 0.02, Min: 0.05, Max: 2}

	assert.InDelta(t, 0.48, c.Step(nil, PIInput{V: 0, Alpha: 0.5}), 1e-12, "too slow lowers damping by at most max_delta")
	assert.InDelta(t, 0.51, c.Step(nil, PIInput{V: 2.5, Alpha: 0.5}), 1e-12, "too fast raises damping")
	assert.Equal(t, 0.05, c.Step(nil, PIInput{V: 0, Alpha: 0.05}), "clipped at alpha_min")
}

func TestSolitonHoldCaps(t *testing.T) {
	c := SolitonHold{BaseGain: 0.02, KpWidth: 0.004, KpPeak: 0.004, GainCap: 0.25, ChiCap: 2, Sigma0: 6, Amp0: 1}

	assert.InDelta(t, 0.02, c.Step(nil, SolitonInput{Peak: 1, Width: 6}), 1e-15)
	assert.InDelta(t, 0.02+0.004*2+0.004*0.5, c.Step(nil, SolitonInput{Peak: 0.5, Width: 4}), 1e-15)

	capped := c.Step(nil, SolitonInput{Peak: -1e6, Width: -1e6})
	assert.InDelta(t, 0.52, capped, 1e-15, "each correction is capped at gain_cap")

	tight := c
	tight.ChiCap = 0.1
	assert.Equal(t, 0.1, tight.Step(nil, SolitonInput{Peak: -1e6, Width: -1e6}))
}

func TestCollisionHold(t *testing.T) {
	c := CollisionHold{ChiBase: 0.012, Kp: 0.1, ChiCap: 0.06}
	assert.InDelta(t, 0.012, c.Step(nil, CollisionInput{PeakRatio: 1}), 1e-15)
	assert.InDelta(t, 0.042, c.Step(nil, CollisionInput{PeakRatio: 0.7}), 1e-15)
	assert.Equal(t, 0.06, c.Step(nil, CollisionInput{PeakRatio: 0}))
	assert.Equal(t, 0.0, c.Step(nil, CollisionInput{PeakRatio: 2}))
}

func TestCurlDriveIntegratesAndClips(t *testing.T) {
	c := NewCurlDrive(KindCurlDrive, 0.035, 6, 0.3)

	k1 := c.Step(nil, CurlInput{CurlRMS: 0})
	assert.InDelta(t, 0.21, k1, 1e-12)
	k2 := c.Step(nil, CurlInput{CurlRMS: 0})
	assert.Equal(t, 0.3, k2, "kappa saturates at the cap")
	k3 := c.Step(nil, CurlInput{CurlRMS: 10})
	assert.Equal(t, 0.0, k3, "kappa never goes negative")
}

func TestTransmissionLockSteersTowardTarget(t *testing.T) {
	c := TransmissionLock{Target: 0.25, Gain: 0.5, Smooth: 0.5, Min: 1, Max: 3}

	up := c.Step(nil, BarrierInput{T: 199, Steps: 200, Transmission: 0.4, V0: 1.5})
	assert.Greater(t, up, 1.5, "too much transmission raises the barrier")

	down := c.Step(nil, BarrierInput{T: 199, Steps: 200, Transmission: 0.1, V0: 1.5})
	assert.Less(t, down, 1.5)

	early := c.Step(nil, BarrierInput{T: 0, Steps: 200, Transmission: 0.4, V0: 1.5})
	assert.InDelta(t, 1.5+0.5*0.5*0.2*0.15, early, 1e-12, "ramp starts at 0.2")

	assert.Equal(t, 3.0, c.Step(nil, BarrierInput{T: 199, Steps: 200, Transmission: 100, V0: 2.9}))
}

func TestJitterIsSeededAndBounded(t *testing.T) {
	run := func(seed int64) []float64 {
		j := NewJitter[PIInput](KindJitterAlpha, 0.5, 0.3, 0.05, 2)
		rng := kernel.NewRNG(seed)
		out := make([]float64, 50)
		for i := range out {
			out[i] = j.Step(rng, PIInput{})
			assert.GreaterOrEqual(t, out[i], 0.05)
			assert.LessOrEqual(t, out[i], 2.0)
		}
		return out
	}

	assert.Equal(t, run(3), run(3))
	assert.NotEqual(t, run(3), run(4))
}

func TestAnchoredJitterDoesNotWalk(t *testing.T) {
	j := NewAnchoredJitter[CurlInput](KindJitterKappa, 0, 0.25, 0, 0.3)
	rng := kernel.NewRNG(7)
	zeros := 0
	for i := 0; i < 200; i++ {
		k := j.Step(rng, CurlInput{})
		require.GreaterOrEqual(t, k, 0.0)
		require.LessOrEqual(t, k, 0.3)
		if k == 0 {
			zeros++
		}
	}
	assert.Greater(t, zeros, 50, "about half the draws clip to zero around a zero anchor")
}

func TestBuildNames(t *testing.T) {
	for _, id := range config.TestIDs {
		for _, kind := range Kinds(id) {
			t.Run(id+"/"+kind, func(t *testing.T) {
				name, err := build(t, id, Spec{Kind: kind})
				require.NoError(t, err)
				assert.Equal(t, kind, name)
			})
		}
	}
}

func TestBuildUnknownController(t *testing.T) {
	for _, id := range config.TestIDs {
		_, err := build(t, id, Spec{Kind: "tessaris_teleport"})
		require.Error(t, err, id)
		assert.True(t, IsUnknownController(err), id)
	}

	_, err := BuildPI(Spec{Kind: KindCurlDrive}, config.DefaultPI())
	assert.True(t, IsUnknownController(err), "kinds do not cross experiments")
}

func TestBuildBadParams(t *testing.T) {
	tests := []struct {
		name string
		test string
		spec Spec
	}{
		{"unknown key", config.TestPI, Spec{Kind: KindAlphaHold, Params: map[string]float64{"lrr": 1}}},
		{"negative sigma", config.TestTN, Spec{Kind: KindJitterV0, Params: map[string]float64{"sigma": -1}}},
		{"non-finite gain", config.TestMT01, Spec{Kind: KindSolitonHold, Params: map[string]float64{"kp_peak": math.Inf(1)}}},
		{"smooth out of range", config.TestTN, Spec{Kind: KindTransmissionLock, Params: map[string]float64{"smooth": 1}}},
		{"pg hold unknown key", config.TestPG, Spec{Kind: KindCurvatureHold, Params: map[string]float64{"gain": 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := build(t, tt.test, tt.spec)
			require.Error(t, err)

			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, ErrCodeBadParam, ce.Code)
		})
	}
}

func TestParamOverridesApply(t *testing.T) {
	ctrl, err := BuildMT02(Spec{Kind: KindCollisionHold, Params: map[string]float64{"kp": 0.5}}, config.DefaultMT02())
	require.NoError(t, err)
	assert.Equal(t, 0.5, ctrl.(CollisionHold).Kp)

	ctrl2, err := BuildPI(Spec{Kind: KindOpenLoop, Params: map[string]float64{"value": 1.2}}, config.DefaultPI())
	require.NoError(t, err)
	assert.Equal(t, 1.2, ctrl2.Step(nil, PIInput{}))
}

func TestDefaultsAndBaselines(t *testing.T) {
	for _, id := range config.TestIDs {
		assert.Contains(t, Kinds(id), DefaultKind(id), id)
		b := Baselines(id)
		require.Len(t, b, 2, id)
		assert.Equal(t, KindOpenLoop, b[0].Kind)
	}
	assert.Equal(t, "", DefaultKind("XX"))
	assert.Nil(t, Baselines("XX"))
}

func build(t *testing.T, testID string, spec Spec) (string, error) {
	t.Helper()
	cfg, err := config.Default(testID)
	require.NoError(t, err)

	type named interface{ Name() string }
	var ctrl named
	switch c := cfg.(type) {
	case config.PG:
		c.N = 16
		ctrl, err = BuildPG(spec, c)
	case config.PI:
		ctrl, err = BuildPI(spec, c)
	case config.MT01:
		ctrl, err = BuildMT01(spec, c)
	case config.MT02:
		ctrl, err = BuildMT02(spec, c)
	case config.BG01:
		ctrl, err = BuildBG01(spec, c)
	case config.TN:
		ctrl, err = BuildTN(spec, c)
	}
	if err != nil {
		return "", err
	}
	return ctrl.Name(), nil
}
