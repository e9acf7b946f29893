// Package canonical provides the deterministic JSON encoding and the run-hash
// functions that give every PFCH run its content-addressed identity.
//
// This package imports nothing internal. The artifact writer, the run index
// and the drivers all depend on it, so a change here changes every run hash.
//
// Encoding rules:
//   - Object keys sorted by code point
//   - Compact separators (',' and ':'), no insignificant whitespace
//   - Strings NFC-normalized, non-ASCII escaped as \uXXXX
//   - Floats in shortest round-trip form (1.0, 0.05, 1e-05)
//   - NaN and Inf are rejected
package canonical
