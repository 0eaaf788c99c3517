/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// options.go: Configuration options for go-filecrypt codecs
package core

import (
	"fmt"
	"strings"
)

// Algorithm represents an AEAD cipher. Every supported algorithm uses a
// 12-byte nonce and a 16-byte tag, so containers share one layout.
type Algorithm uint8

const (
	// AlgorithmAESGCM is AES-256-GCM (default).
	AlgorithmAESGCM Algorithm = 1

	// AlgorithmChaCha20Poly1305 is ChaCha20-Poly1305 (RFC 8439).
	AlgorithmChaCha20Poly1305 Algorithm = 2
)

// String returns the algorithm name
func (a Algorithm) String() string {
	switch a {
	case AlgorithmAESGCM:
		return "AES-256-GCM"
	case AlgorithmChaCha20Poly1305:
		return "ChaCha20-Poly1305"
	default:
		return "Unknown"
	}
}

// IsSupported returns true if the algorithm is implemented.
func (a Algorithm) IsSupported() bool {
	return a == AlgorithmAESGCM || a == AlgorithmChaCha20Poly1305
}

// ParseAlgorithm maps a configuration value ("aes-gcm", "chacha20-poly1305")
// to an Algorithm. The empty string selects the default.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "aes-gcm", "aes-256-gcm":
		return AlgorithmAESGCM, nil
	case "chacha20-poly1305", "chacha20poly1305":
		return AlgorithmChaCha20Poly1305, nil
	default:
		return 0, fmt.Errorf("unknown cipher %q", name)
	}
}

type Config struct {
	Algorithm Algorithm
}

// Option defines functional options for a Codec.
type Option func(*Config)

// WithAlgorithm sets the AEAD algorithm (default: AES-256-GCM).
func WithAlgorithm(alg Algorithm) Option {
	return func(cfg *Config) {
		cfg.Algorithm = alg
	}
}
