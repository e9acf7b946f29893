package config

// DefaultPG returns the PG acceptance preset.
func DefaultPG() PG {
	return PG{
		N:           64,
		Steps:       200,
		Sigma:       10,
		WellAmp:     20,
		DriftSigma:  0,
		JitterSigma: 0.01,
		LR:          0.25,
		MaxStep:     1.0,
		Clip:        100,
		NormCap:     1e6,
	}
}

// DefaultPI returns the PI acceptance preset.
func DefaultPI() PI {
	return PI{
		Steps:       200,
		DT:          0.05,
		Drive:       1.0,
		Load:        0.25,
		Alpha0:      0.5,
		V0:          0,
		VTarget:     2.0,
		NoiseStd:    0.005,
		AlphaMin:    0.05,
		AlphaMax:    2.0,
		JitterSigma: 0.05,
	}
}

// DefaultMT01 returns the MT01 acceptance preset.
func DefaultMT01() MT01 {
	return MT01{
		N:           256,
		Steps:       5000,
		DT:          0.004,
		Alpha:       0.06,
		Lam:         0.002,
		NoiseStd:    0.002,
		Amp0:        1.0,
		Sigma0:      6.0,
		ChiBase:     0.008,
		Clip:        6.0,
		NormCap:     80,
		JitterSigma: 2e-4,
		JitterSpan:  0.002,
		WidthWindow: 3.0,
	}
}

// DefaultMT02 returns the MT02 acceptance preset.
func DefaultMT02() MT02 {
	return MT02{
		N:           256,
		Steps:       1600,
		DT:          0.06,
		Alpha:       0.055,
		Lam:         0.002,
		NoiseStd:    0.0015,
		Amp0:        1.0,
		Sigma0:      6.0,
		Separation:  60,
		K0:          0.32,
		ChiBase:     0.012,
		ChiCap:      0.06,
		Clip:        6.0,
		NormCap:     80,
		JitterSigma: 0.002,
	}
}

// DefaultBG01 returns the BG01 acceptance preset.
func DefaultBG01() BG01 {
	return BG01{
		H:           64,
		W:           64,
		Steps:       160,
		DT:          0.05,
		Alpha:       0.18,
		Lam:         0.06,
		Beta:        0.12,
		Amp0:        1.0,
		Sigma0:      5.0,
		Clip:        5.0,
		CurlTarget:  0.035,
		KappaCap:    0.30,
		NoiseStd:    1e-4,
		JitterSigma: 0.25,
		NormCap:     1e6,
	}
}

// DefaultTN returns the TN acceptance preset.
func DefaultTN() TN {
	return TN{
		Steps:           200,
		Energy:          1.0,
		Width:           1.0,
		V0Init:          1.5,
		V0Min:           1.0,
		V0Max:           3.0,
		TTarget:         0.25,
		NoiseStd:        0.005,
		DriftSigma:      0.002,
		JitterSigma:     0.02,
		CoherenceWindow: 8,
	}
}

// Default returns the preset for testID.
func Default(testID string) (Config, error) {
	switch testID {
	case TestPG:
		return DefaultPG(), nil
	case TestPI:
		return DefaultPI(), nil
	case TestMT01:
		return DefaultMT01(), nil
	case TestMT02:
		return DefaultMT02(), nil
	case TestBG01:
		return DefaultBG01(), nil
	case TestTN:
		return DefaultTN(), nil
	}
	return nil, unknownTest(testID)
}

func unknownTest(testID string) *Error {
	return &Error{
		Code:    ErrCodeInvalid,
		Field:   "test_id",
		Message: "unknown experiment " + testID,
		Details: map[string]any{"known": TestIDs},
	}
}
