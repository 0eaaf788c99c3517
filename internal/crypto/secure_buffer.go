/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package crypto

import (
	"sync"

	"github.com/gitrgoliveira/go-filecrypt/secure"
)

// SecureBuffer holds key material in a private, mlocked copy that is zeroed
// on Destroy.
type SecureBuffer struct {
	mu        sync.Mutex
	buf       []byte
	destroyed bool
	locked    bool
}

// NewSecureBufferFromBytes copies b into a new SecureBuffer. Locking the
// copy into RAM is best effort; an mlock failure is not an error.
func NewSecureBufferFromBytes(b []byte) (*SecureBuffer, error) {
	if len(b) == 0 {
		return nil, ErrInvalidKey
	}
	buf := make([]byte, len(b))
	copy(buf, b)

	return &SecureBuffer{
		buf:    buf,
		locked: secure.LockMemory(buf) == nil,
	}, nil
}

// Data returns the buffer contents. The slice aliases the buffer and is
// zeroed once Destroy is called.
func (s *SecureBuffer) Data() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf
}

// Clone returns a copy of the contents that the caller owns. It reports
// false once the buffer is destroyed.
func (s *SecureBuffer) Clone() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, false
	}
	return append([]byte(nil), s.buf...), true
}

// Destroyed reports whether Destroy has been called.
func (s *SecureBuffer) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Destroy zeroes the buffer and releases the memory lock. Safe to call
// more than once.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	secure.Zero(s.buf)
	if s.locked {
		_ = secure.UnlockMemory(s.buf)
	}
	s.destroyed = true
}
