//go:build go1.25
// +build go1.25

/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/gitrgoliveira/go-filecrypt/internal/crypto"
)

func FuzzDecrypt(f *testing.F) {
	key := make([]byte, KeySize)
	_, _ = rand.Read(key)
	c, err := NewCodec(key)
	if err != nil {
		f.Fatalf("NewCodec failed: %v", err)
	}
	container, err := c.Encrypt([]byte("test data"))
	if err != nil {
		f.Fatalf("Encrypt failed: %v", err)
	}
	f.Add(container)
	f.Add([]byte{})
	f.Add(make([]byte, HeaderSize))
	f.Fuzz(func(t *testing.T, data []byte) {
		plaintext, err := c.Decrypt(data)
		if err == nil {
			// Only the seeded container can verify.
			if !bytes.Equal(data, container) {
				t.Fatalf("forged container accepted: %x", data)
			}
			return
		}
		if plaintext != nil {
			t.Fatal("plaintext returned alongside error")
		}
		if !errors.Is(err, crypto.ErrAuthentication) && !errors.Is(err, crypto.ErrMalformedContainer) {
			t.Fatalf("unexpected error kind: %v", err)
		}
	})
}

func FuzzRoundTrip(f *testing.F) {
	key := make([]byte, KeySize)
	_, _ = rand.Read(key)
	f.Add([]byte("test"))
	f.Add([]byte(""))
	f.Fuzz(func(t *testing.T, plaintext []byte) {
		c, err := NewCodec(key)
		if err != nil {
			t.Fatalf("NewCodec failed: %v", err)
		}
		container, err := c.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		got, err := c.Decrypt(container)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if !bytes.Equal(plaintext, got) {
			t.Fatal("plaintext mismatch after round-trip")
		}
	})
}
