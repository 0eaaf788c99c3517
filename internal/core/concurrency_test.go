/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

func TestCodec_ConcurrentUse(t *testing.T) {
	c, _ := newTestCodec(t)

	var wg sync.WaitGroup
	errs := make(chan error, 32)

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := []byte(fmt.Sprintf("upload number %d", i))
			container, err := c.Encrypt(p)
			if err != nil {
				errs <- err
				return
			}
			got, err := c.Decrypt(container)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(got, p) {
				errs <- fmt.Errorf("goroutine %d: plaintext mismatch", i)
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestKeyCache_ConcurrentUse(t *testing.T) {
	cache, err := NewKeyCache(NewPBKDF2Deriver(0), 0)
	if err != nil {
		t.Fatalf("NewKeyCache failed: %v", err)
	}

	var wg sync.WaitGroup
	keys := make([][]byte, 8)
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := cache.DeriveKey("shared passphrase", nil)
			if err != nil {
				t.Errorf("DeriveKey failed: %v", err)
				return
			}
			keys[i] = k
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(keys); i++ {
		if !bytes.Equal(keys[0], keys[i]) {
			t.Fatalf("goroutine %d derived a different key", i)
		}
	}
}
