/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// codec.go: Whole-payload authenticated encryption for go-filecrypt
package core

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	crypto "github.com/gitrgoliveira/go-filecrypt/internal/crypto"
)

// Codec seals and opens containers under a single key. It is safe for
// concurrent use; every Encrypt draws a fresh random nonce.
type Codec struct {
	keyBuf    *crypto.SecureBuffer
	algorithm Algorithm
}

// NewCodec creates a Codec for a KeySize-byte key. The key is copied into a
// SecureBuffer; the caller may zero its own copy afterwards.
func NewCodec(key []byte, opts ...Option) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", crypto.ErrInvalidKey, KeySize, len(key))
	}
	cfg := &Config{
		Algorithm: AlgorithmAESGCM,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if !cfg.Algorithm.IsSupported() {
		return nil, fmt.Errorf("%w: %s", crypto.ErrUnsupportedAlgorithm, cfg.Algorithm)
	}
	keyBuf, err := crypto.NewSecureBufferFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create SecureBuffer for key: %w", err)
	}
	return &Codec{keyBuf: keyBuf, algorithm: cfg.Algorithm}, nil
}

// Algorithm returns the codec's AEAD algorithm.
func (c *Codec) Algorithm() Algorithm {
	return c.algorithm
}

func (c *Codec) aead() (cipher.AEAD, error) {
	if c.keyBuf.Destroyed() {
		return nil, fmt.Errorf("%w: codec destroyed", crypto.ErrInvalidKey)
	}
	key := c.keyBuf.Data()

	switch c.algorithm {
	case AlgorithmChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, crypto.WrapError("create ChaCha20-Poly1305", err)
		}
		return aead, nil
	default:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, crypto.WrapError("create cipher", err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, crypto.WrapError("create GCM", err)
		}
		return gcm, nil
	}
}

// Encrypt seals plaintext into a container laid out as
// nonce || tag || ciphertext. The ciphertext is exactly len(plaintext) bytes.
func (c *Codec) Encrypt(plaintext []byte) ([]byte, error) {
	aead, err := c.aead()
	if err != nil {
		return nil, err
	}

	out := make([]byte, HeaderSize+len(plaintext))
	nonce := out[:nonceEnd]
	if _, err := rand.Read(nonce); err != nil {
		return nil, crypto.WrapError("generate nonce", err)
	}

	// Seal appends the tag after the ciphertext; move it in front.
	sealed := aead.Seal(nil, nonce, plaintext, nil) // #nosec G407 -- nonce is random per call
	n := len(plaintext)
	copy(out[nonceEnd:tagEnd], sealed[n:])
	copy(out[tagEnd:], sealed[:n])
	return out, nil
}

// Decrypt opens a container produced by Encrypt. It fails with
// ErrMalformedContainer when the input is shorter than HeaderSize and with
// ErrAuthentication when the tag does not verify; no plaintext is returned
// in either case.
func (c *Codec) Decrypt(container []byte) ([]byte, error) {
	if len(container) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", crypto.ErrMalformedContainer, len(container), HeaderSize)
	}
	aead, err := c.aead()
	if err != nil {
		return nil, err
	}

	nonce := container[:nonceEnd]
	tag := container[nonceEnd:tagEnd]
	ciphertext := container[tagEnd:]

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(sealed[:0], nonce, sealed, nil)
	if err != nil {
		return nil, crypto.ErrAuthentication
	}
	return plaintext, nil
}

// Destroy zeroes key material and unlocks memory. The codec is unusable
// afterwards.
func (c *Codec) Destroy() {
	if c.keyBuf != nil {
		c.keyBuf.Destroy()
	}
}
