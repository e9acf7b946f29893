package canonical

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// HashPrefixLen is the number of hex characters kept from a digest to form
// a run hash.
const HashPrefixLen = 7

// Algorithm selects the digest used for run hashes.
type Algorithm string

const (
	// SHA256 is the default for every driver.
	SHA256 Algorithm = "sha256"

	// SHA1 exists only for fixtures that pinned hashes produced by legacy
	// writers. New code must not select it.
	SHA1 Algorithm = "sha1"
)

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case SHA256, "":
		return sha256.New(), nil
	case SHA1:
		return sha1.New(), nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", string(a))
	}
}

// Digest returns the full hex digest of the canonical encoding of payload.
func Digest(alg Algorithm, payload any) (string, error) {
	data, err := Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("digest: failed to marshal: %w", err)
	}
	h, err := alg.newHash()
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashPayload is the object a run hash is computed over. The key set is part
// of the artifact contract and must not change.
func HashPayload(config any, controller string, seed int64) map[string]any {
	return map[string]any{
		"config":     config,
		"controller": controller,
		"seed":       seed,
	}
}

// RunHash computes the 7-character SHA-256 run hash of
// {config, controller, seed}. Identical inputs always yield the same hash,
// independent of map ordering inside config.
func RunHash(config any, controller string, seed int64) (string, error) {
	return runHash(SHA256, config, controller, seed)
}

// LegacyRunHash is RunHash with SHA-1, for fixtures locked to legacy prefixes.
func LegacyRunHash(config any, controller string, seed int64) (string, error) {
	return runHash(SHA1, config, controller, seed)
}

func runHash(alg Algorithm, config any, controller string, seed int64) (string, error) {
	sum, err := Digest(alg, HashPayload(config, controller, seed))
	if err != nil {
		return "", fmt.Errorf("RunHash: %w", err)
	}
	return sum[:HashPrefixLen], nil
}

// MustRunHash is like RunHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRunHash(config any, controller string, seed int64) string {
	h, err := RunHash(config, controller, seed)
	if err != nil {
		panic(err)
	}
	return h
}
