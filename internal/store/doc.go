// Package store is the SQLite index of PFCH runs.
//
// The run directory on disk is the source of truth; the index only records
// where each run lives and its headline numbers so that runs can be listed
// and compared without walking the artifact tree.
//
// Tables:
//   - runs: one row per (test_id, run_hash), upserted on every write
//   - gate_results: acceptance gate outcomes, keyed to a run
//
// Ordering uses a seq column assigned on first insert, never timestamps, so
// listings are stable when the same runs are re-indexed.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
