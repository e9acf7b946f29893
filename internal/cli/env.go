package cli

import (
	"github.com/roach88/pfch/internal/sim"
)

// Environment knobs. A knob is on unless set to something other than "1".
const (
	EnvWriteArtifacts = "PFCH_WRITE_ARTIFACTS"
	EnvEmitTelemetry  = "PFCH_EMIT_TELEMETRY"
	EnvEmitField      = "PFCH_EMIT_FIELD"
)

// Env is the resolved set of environment knobs.
type Env struct {
	WriteArtifacts bool
	EmitTelemetry  bool
	EmitField      bool
}

// LoadEnv reads the knobs through getenv. Telemetry and field snapshots are
// only emitted when artifacts are written.
func LoadEnv(getenv func(string) string) Env {
	on := func(key string) bool {
		v := getenv(key)
		return v == "" || v == "1"
	}
	write := on(EnvWriteArtifacts)
	return Env{
		WriteArtifacts: write,
		EmitTelemetry:  write && on(EnvEmitTelemetry),
		EmitField:      write && on(EnvEmitField),
	}
}

// SimOptions maps the knobs onto driver options.
func (e Env) SimOptions() []sim.Option {
	stride := 0
	if e.EmitField {
		stride = sim.DefaultFrameStride
	}
	return []sim.Option{
		sim.WithTelemetry(e.EmitTelemetry),
		sim.WithFrameStride(stride),
		sim.WithFields(e.EmitField),
	}
}
