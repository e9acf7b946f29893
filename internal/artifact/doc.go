// Package artifact turns a sim.Result into a run directory and checks run
// directories against the artifact contract.
//
// Layout of one run:
//
//	<base>/<test_id>/<run_hash>/
//	  meta.json        test_id, run_hash, controller, seed, created_utc
//	  config.json      canonical Config
//	  run.json         scalars, config echo, identity keys
//	  metrics.csv      header + one row per step
//	  <name>.npy       optional series and final fields
//	  telemetry.jsonl  optional per-step records
//	  frames.npy       optional strided field snapshots
//
// Files are staged in a sibling ".tmp-" directory and renamed into place, so
// a reader never observes a half-written run.
package artifact
