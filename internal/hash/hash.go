package hash

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// Package hash computes content digests used as blob storage keys.
// The algorithm is validated once at construction time so that an
// unsupported configuration fails at startup, not per call.

// ErrUnsupportedAlgorithm is returned by New for unknown algorithm names.
var ErrUnsupportedAlgorithm = fmt.Errorf("unsupported hash algorithm")

// Hasher computes deterministic, hex-encoded content digests.
// It is stateless and safe for concurrent use.
type Hasher struct {
	algorithm string
	factory   func() hash.Hash
}

// New creates a Hasher for the given algorithm ("sha256" or "sha512").
func New(algorithm string) (*Hasher, error) {
	var factory func() hash.Hash
	switch algorithm {
	case "sha256":
		factory = sha256.New
	case "sha512":
		factory = sha512.New
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
	return &Hasher{algorithm: algorithm, factory: factory}, nil
}

// Algorithm returns the configured algorithm name.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Sum reads r to EOF and returns the hex-encoded digest of its content
// together with the number of bytes read.
func (h *Hasher) Sum(r io.Reader) (string, int64, error) {
	d := h.factory()
	n, err := io.Copy(d, r)
	if err != nil {
		return "", 0, fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(d.Sum(nil)), n, nil
}

// SumBytes is a convenience wrapper over Sum for in-memory content.
func (h *Hasher) SumBytes(b []byte) string {
	d := h.factory()
	d.Write(b)
	return hex.EncodeToString(d.Sum(nil))
}
