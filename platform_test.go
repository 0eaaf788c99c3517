/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// platform_test.go: Cross-platform behavior tests
package filecrypt_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/gitrgoliveira/go-filecrypt"
	"github.com/gitrgoliveira/go-filecrypt/secure"
)

// TestCrossPlatform_MemoryLocking checks that memory locking works on Unix
// and is a no-op on Windows.
func TestCrossPlatform_MemoryLocking(t *testing.T) {
	data := []byte("test data for memory locking")

	err := secure.LockMemory(data)
	if err != nil {
		if runtime.GOOS == "windows" {
			t.Errorf("LockMemory failed on Windows (should be no-op): %v", err)
		} else {
			t.Logf("LockMemory failed on %s (may require elevated permissions): %v", runtime.GOOS, err)
		}
	}

	if err := secure.UnlockMemory(data); err != nil && runtime.GOOS == "windows" {
		t.Errorf("UnlockMemory failed on Windows (should be no-op): %v", err)
	}
}

// TestCrossPlatform_PurgeKeys checks that purging cached keys leaves open
// vaults usable and that a later Open derives the same key again.
func TestCrossPlatform_PurgeKeys(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	v1 := newTestVault(t, func(c *filecrypt.Config) { c.StorageDir = dir })

	filecrypt.PurgeKeys()

	f, err := v1.StoreUpload("a.txt", []byte("after purge"), "")
	if err != nil {
		t.Fatalf("StoreUpload after PurgeKeys failed: %v", err)
	}

	v2 := newTestVault(t, func(c *filecrypt.Config) { c.StorageDir = dir })
	p, err := v2.RetrievePlaintext(f.Filename)
	if err != nil {
		t.Fatalf("RetrievePlaintext with re-derived key failed: %v", err)
	}
	if string(p.Data) != "after purge" {
		t.Errorf("data = %q, want after purge", p.Data)
	}
}

// TestCrossPlatform_UnicodePayload round-trips non-ASCII text.
func TestCrossPlatform_UnicodePayload(t *testing.T) {
	v := newTestVault(t)
	plaintext := []byte("Cross-platform test data: 日本語 ✓ Emoji 🔐 العربية")

	f, err := v.StoreUpload("unicode.txt", plaintext, "text/plain")
	if err != nil {
		t.Fatalf("StoreUpload failed on %s: %v", runtime.GOOS, err)
	}
	p, err := v.RetrievePlaintext(f.Filename)
	if err != nil {
		t.Fatalf("RetrievePlaintext failed on %s: %v", runtime.GOOS, err)
	}
	if !bytes.Equal(plaintext, p.Data) {
		t.Errorf("Decrypted data does not match original on %s", runtime.GOOS)
	}

	preview, err := v.PreviewPlaintext(f.Filename)
	if err != nil {
		t.Fatalf("PreviewPlaintext failed: %v", err)
	}
	if preview.Data != string(plaintext) {
		t.Errorf("preview = %q", preview.Data)
	}
}

// TestCrossPlatform_FilePermissions checks containers are owner-only.
func TestCrossPlatform_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX permissions do not apply on Windows")
	}
	v := newTestVault(t)

	f, err := v.StoreUpload("private.txt", []byte("secret"), "")
	if err != nil {
		t.Fatalf("StoreUpload failed: %v", err)
	}
	info, err := os.Stat(filepath.Join(v.Dir(), f.Filename))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Errorf("container permissions = %v, want no group/other access", perm)
	}

	dirInfo, err := os.Stat(v.Dir())
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := dirInfo.Mode().Perm(); perm&0o077 != 0 {
		t.Errorf("storage dir permissions = %v, want no group/other access", perm)
	}
}

// TestCrossPlatform_PathHandling checks that names from other platforms are
// flattened into the storage directory.
func TestCrossPlatform_PathHandling(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "subdir1", "subdir2", "uploads")
	v := newTestVault(t, func(c *filecrypt.Config) { c.StorageDir = nested })

	tests := []struct {
		upload string
		stored string
	}{
		{`C:\Users\me\song.mp3`, "C_Users_me_song.ad3"},
		{"../../../etc/passwd.txt", "etc_passwd.crypt"},
		{"My Holiday Photo.jpg", "My_Holiday_Photo.sz"},
		{"crème brûlée.json", "creme_brulee.jsn"},
	}

	for _, tt := range tests {
		f, err := v.StoreUpload(tt.upload, []byte("x"), "")
		if err != nil {
			t.Fatalf("StoreUpload(%q) failed: %v", tt.upload, err)
		}
		if f.Filename != tt.stored {
			t.Errorf("StoreUpload(%q) stored as %q, want %q", tt.upload, f.Filename, tt.stored)
		}
		if _, err := os.Stat(filepath.Join(nested, tt.stored)); err != nil {
			t.Errorf("%s not in storage dir: %v", tt.stored, err)
		}
	}
}

// TestCrossPlatform_ConcurrentUploads stores the same name from several
// goroutines; every upload must get its own file.
func TestCrossPlatform_ConcurrentUploads(t *testing.T) {
	v := newTestVault(t)

	const numFiles = 8
	var wg sync.WaitGroup
	names := make([]string, numFiles)
	errs := make([]error, numFiles)

	for i := 0; i < numFiles; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			f, err := v.StoreUpload("same.png", []byte(fmt.Sprintf("payload %d", idx)), "image/png")
			names[idx], errs[idx] = f.Filename, err
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < numFiles; i++ {
		if errs[i] != nil {
			t.Fatalf("upload %d failed on %s: %v", i, runtime.GOOS, errs[i])
		}
		if seen[names[i]] {
			t.Fatalf("name %s handed out twice", names[i])
		}
		seen[names[i]] = true

		p, err := v.RetrievePlaintext(names[i])
		if err != nil {
			t.Fatalf("RetrievePlaintext(%s) failed: %v", names[i], err)
		}
		if string(p.Data) != fmt.Sprintf("payload %d", i) {
			t.Errorf("%s = %q, want payload %d", names[i], p.Data, i)
		}
	}
}
