/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package filecrypt_test

import (
	"path/filepath"
	"testing"

	"github.com/gitrgoliveira/go-filecrypt"
)

const testPassphrase = "correct horse battery staple"

// newTestVault opens a Vault over a fresh directory. The key is derived once
// per process and cached, so this is cheap after the first call.
func newTestVault(t *testing.T, mutate ...func(*filecrypt.Config)) *filecrypt.Vault {
	t.Helper()
	cfg := filecrypt.DefaultConfig()
	cfg.Passphrase = testPassphrase
	cfg.StorageDir = filepath.Join(t.TempDir(), "uploads")
	for _, m := range mutate {
		m(&cfg)
	}
	v, err := filecrypt.Open(cfg, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = v.Close() })
	return v
}
