/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// key.go: Key derivation and caching for go-filecrypt
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"

	"github.com/gitrgoliveira/go-filecrypt/internal/crypto"
)

const (
	// DefaultPBKDF2Iterations is the iteration count every existing
	// container was written with. Changing it changes the vault key.
	DefaultPBKDF2Iterations = 100000

	// MinPBKDF2Iterations is the minimum accepted iteration count.
	MinPBKDF2Iterations = 100000

	// SaltSize is the size of the KDF salt.
	SaltSize = 16

	// KeySize is the derived key size (32 bytes for AES-256).
	KeySize = 32

	// Argon2id parameters (OWASP 2023 recommendations for interactive logins)
	DefaultArgon2Time    = 3
	DefaultArgon2Memory  = 64 * 1024
	DefaultArgon2Threads = 4
	MinArgon2Memory      = 19 * 1024

	// DefaultKeyCacheSize bounds the number of derived keys held by a KeyCache.
	DefaultKeyCacheSize = 8
)

// ZeroSalt is the fixed salt used when none is supplied. With it, the vault
// key depends on the passphrase alone.
var ZeroSalt = make([]byte, SaltSize)

// KeyDeriver turns a passphrase into a KeySize-byte symmetric key. A nil
// salt selects ZeroSalt. Implementations are deterministic.
type KeyDeriver interface {
	DeriveKey(passphrase string, salt []byte) ([]byte, error)
	// ID identifies the scheme and parameters, for cache keys and logs.
	ID() string
}

// PBKDF2Deriver derives keys with PBKDF2-HMAC-SHA256.
type PBKDF2Deriver struct {
	Iterations int
}

// NewPBKDF2Deriver returns a PBKDF2Deriver; iterations <= 0 selects
// DefaultPBKDF2Iterations.
func NewPBKDF2Deriver(iterations int) *PBKDF2Deriver {
	if iterations <= 0 {
		iterations = DefaultPBKDF2Iterations
	}
	return &PBKDF2Deriver{Iterations: iterations}
}

func (d *PBKDF2Deriver) DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if salt == nil {
		salt = ZeroSalt
	}
	return DeriveKeyPBKDF2([]byte(passphrase), salt, d.Iterations, KeySize)
}

func (d *PBKDF2Deriver) ID() string {
	return fmt.Sprintf("pbkdf2-sha256:%d", d.Iterations)
}

// Argon2Deriver derives keys with Argon2id.
type Argon2Deriver struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// NewArgon2Deriver returns an Argon2Deriver with the default parameters.
func NewArgon2Deriver() *Argon2Deriver {
	return &Argon2Deriver{
		Time:    DefaultArgon2Time,
		Memory:  DefaultArgon2Memory,
		Threads: DefaultArgon2Threads,
	}
}

func (d *Argon2Deriver) DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if salt == nil {
		salt = ZeroSalt
	}
	return DeriveKeyArgon2([]byte(passphrase), salt, d.Time, d.Memory, d.Threads, KeySize)
}

func (d *Argon2Deriver) ID() string {
	return fmt.Sprintf("argon2id:%d:%d:%d", d.Time, d.Memory, d.Threads)
}

// NewKeyDeriver maps a configuration value ("pbkdf2", "argon2id") to a
// KeyDeriver.
func NewKeyDeriver(name string, iterations int) (KeyDeriver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "pbkdf2":
		if iterations != 0 && iterations < MinPBKDF2Iterations {
			return nil, fmt.Errorf("iterations must be at least %d, got %d", MinPBKDF2Iterations, iterations)
		}
		return NewPBKDF2Deriver(iterations), nil
	case "argon2id", "argon2":
		return NewArgon2Deriver(), nil
	default:
		return nil, fmt.Errorf("unknown key derivation function %q", name)
	}
}

// DeriveKeyPBKDF2 derives a key from a password using PBKDF2-HMAC-SHA256.
// The caller must securely zero the key after use.
func DeriveKeyPBKDF2(password, salt []byte, iterations, keyLen int) ([]byte, error) {
	if len(password) == 0 {
		return nil, crypto.ErrEmptyPassphrase
	}

	if len(salt) < SaltSize {
		return nil, fmt.Errorf("salt must be at least %d bytes, got %d", SaltSize, len(salt))
	}

	if iterations < MinPBKDF2Iterations {
		return nil, fmt.Errorf("iterations must be at least %d, got %d", MinPBKDF2Iterations, iterations)
	}

	if keyLen <= 0 || keyLen > 128 {
		return nil, fmt.Errorf("keyLen must be between 1 and 128 bytes, got %d", keyLen)
	}

	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New), nil
}

// DeriveKeyArgon2 derives a key from a password using Argon2id.
func DeriveKeyArgon2(password, salt []byte, time, memory uint32, threads uint8, keyLen uint32) ([]byte, error) {
	if len(password) == 0 {
		return nil, crypto.ErrEmptyPassphrase
	}

	if len(salt) < SaltSize {
		return nil, fmt.Errorf("salt must be at least %d bytes, got %d", SaltSize, len(salt))
	}

	if time < 1 {
		return nil, fmt.Errorf("time cost must be at least 1, got %d", time)
	}

	if memory < MinArgon2Memory {
		return nil, fmt.Errorf("memory cost must be at least %d KiB, got %d", MinArgon2Memory, memory)
	}

	if threads < 1 {
		return nil, fmt.Errorf("threads must be at least 1, got %d", threads)
	}

	if keyLen == 0 || keyLen > 128 {
		return nil, fmt.Errorf("keyLen must be between 1 and 128 bytes, got %d", keyLen)
	}

	return argon2.IDKey(password, salt, time, memory, threads, keyLen), nil
}

// KeyCache memoizes a KeyDeriver. Derivation is pure, so entries never need
// invalidation; the LRU bound only matters once more than one passphrase
// or salt is in use.
//
// Cached keys live in SecureBuffers for as long as the cache holds them and
// are zeroed on eviction or Purge.
type KeyCache struct {
	deriver KeyDeriver
	cache   *lru.Cache
}

// NewKeyCache wraps deriver with an LRU cache holding up to size keys.
func NewKeyCache(deriver KeyDeriver, size int) (*KeyCache, error) {
	if size <= 0 {
		size = DefaultKeyCacheSize
	}
	c, err := lru.NewWithEvict(size, func(_, value interface{}) {
		value.(*crypto.SecureBuffer).Destroy()
	})
	if err != nil {
		return nil, err
	}
	return &KeyCache{deriver: deriver, cache: c}, nil
}

// DeriveKey returns a fresh copy of the cached key, deriving it on first
// use. Callers may zero the returned slice.
func (k *KeyCache) DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if salt == nil {
		salt = ZeroSalt
	}
	id := k.cacheKey(passphrase, salt)
	if v, ok := k.cache.Get(id); ok {
		if key, ok := v.(*crypto.SecureBuffer).Clone(); ok {
			return key, nil
		}
	}

	key, err := k.deriver.DeriveKey(passphrase, salt)
	if err != nil {
		return nil, crypto.NewEncryptionError("derive", "", err)
	}
	buf, err := crypto.NewSecureBufferFromBytes(key)
	if err != nil {
		return nil, crypto.NewEncryptionError("derive", "", err)
	}
	if found, _ := k.cache.ContainsOrAdd(id, buf); found {
		buf.Destroy()
	}
	return key, nil
}

// Purge zeroes and drops every cached key.
func (k *KeyCache) Purge() {
	k.cache.Purge()
}

func (k *KeyCache) ID() string {
	return k.deriver.ID()
}

// Len returns the number of cached keys.
func (k *KeyCache) Len() int {
	return k.cache.Len()
}

// cacheKey avoids holding the passphrase itself as a map key.
func (k *KeyCache) cacheKey(passphrase string, salt []byte) string {
	h := sha256.New()
	h.Write([]byte(k.deriver.ID()))
	h.Write([]byte{0})
	h.Write(salt)
	h.Write([]byte{0})
	h.Write([]byte(passphrase))
	return hex.EncodeToString(h.Sum(nil))
}
