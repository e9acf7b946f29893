package sim

import (
	"fmt"

	"github.com/roach88/pfch/internal/config"
	"github.com/roach88/pfch/internal/control"
)

// Run builds the controller named by spec for cfg's experiment and drives
// one run. It is the entry point for callers that only know the experiment
// at runtime.
func Run(cfg config.Config, spec control.Spec, seed int64, opts ...Option) (*Result, error) {
	switch c := cfg.(type) {
	case config.PG:
		ctrl, err := control.BuildPG(spec, c)
		if err != nil {
			return nil, err
		}
		return RunPG(c, ctrl, seed, opts...)
	case config.PI:
		ctrl, err := control.BuildPI(spec, c)
		if err != nil {
			return nil, err
		}
		return RunPI(c, ctrl, seed, opts...)
	case config.MT01:
		ctrl, err := control.BuildMT01(spec, c)
		if err != nil {
			return nil, err
		}
		return RunMT01(c, ctrl, seed, opts...)
	case config.MT02:
		ctrl, err := control.BuildMT02(spec, c)
		if err != nil {
			return nil, err
		}
		return RunMT02(c, ctrl, seed, opts...)
	case config.BG01:
		ctrl, err := control.BuildBG01(spec, c)
		if err != nil {
			return nil, err
		}
		return RunBG01(c, ctrl, seed, opts...)
	case config.TN:
		ctrl, err := control.BuildTN(spec, c)
		if err != nil {
			return nil, err
		}
		return RunTN(c, ctrl, seed, opts...)
	}
	return nil, fmt.Errorf("sim: unsupported config type %T", cfg)
}

// Headline returns the scalar that best summarizes a run of testID.
func Headline(testID string) string {
	switch testID {
	case config.TestPG:
		return "mse_final"
	case config.TestPI:
		return "err_final"
	case config.TestMT01, config.TestMT02:
		return "peak_retention"
	case config.TestBG01:
		return "coupling_score"
	case config.TestTN:
		return "err_tail"
	}
	return ""
}
