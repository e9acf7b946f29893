// Package harness runs acceptance scenarios for the feedback-control
// experiments.
//
// A scenario pins one experiment, one seed and optional config overrides,
// then names a subject controller, the baselines it is compared against
// and the gates the subject must pass.
//
// # Scenario Format
//
//	name: pi_alpha_hold
//	description: "alpha hold drives the terminal velocity to target"
//	test_id: PI
//	seed: 1
//	config:
//	  steps: 400
//	subject:
//	  kind: tessaris_alpha_hold
//	baselines:
//	  - kind: open_loop
//	  - kind: random_jitter_alpha
//	gates:
//	  - metric: err_final
//	    max: 0.05
//	  - metric: err_final
//	    beats: 0
//	    direction: lower
//
// # Gate Types
//
//   - min: metric >= value
//   - max: metric <= value
//   - range: lo <= metric <= hi
//   - beats: the subject beats every baseline by at least the margin, in
//     direction higher, lower or closer_to (with a target)
//
// A gate on a missing or NaN metric fails.
//
// # Determinism
//
// The subject and baselines share the scenario seed, so an outcome is a
// pure function of the scenario. Golden snapshots record controllers and
// gate verdicts but not measured values.
package harness
