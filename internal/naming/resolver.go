/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package naming picks on-disk names for uploads.
package naming

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/gitrgoliveira/go-filecrypt/internal/crypto"
)

// DefaultMaxAttempts caps the suffix counter so a hostile directory
// cannot make resolution loop forever.
const DefaultMaxAttempts = 10000

// Candidate returns the attempt-th name for stem and ext: attempt 0 is
// "stem.ext", attempt n > 0 is "stem_n.ext".
func Candidate(stem, ext string, attempt int) string {
	if attempt == 0 {
		return stem + "." + ext
	}
	return fmt.Sprintf("%s_%d.%s", stem, attempt, ext)
}

// Resolve returns the first candidate for stem and ext for which exists
// reports false. It fails with ErrNamesExhausted after maxAttempts
// candidates (DefaultMaxAttempts when maxAttempts <= 0).
//
// Resolve by itself does not prevent two writers from picking the same
// name; the store pairs it with an exclusive create.
func Resolve(stem, ext string, maxAttempts int, exists func(string) bool) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	for i := 0; i < maxAttempts; i++ {
		name := Candidate(stem, ext, i)
		if !exists(name) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %s.%s after %d attempts", crypto.ErrNamesExhausted, stem, ext, maxAttempts)
}

// ResolveIn is Resolve against a fixed set of names.
func ResolveIn(stem, ext string, existing map[string]bool) (string, error) {
	return Resolve(stem, ext, DefaultMaxAttempts, func(name string) bool {
		return existing[name]
	})
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

var windowsDeviceNames = map[string]bool{
	"CON": true, "AUX": true, "COM1": true, "COM2": true, "COM3": true,
	"COM4": true, "LPT1": true, "LPT2": true, "LPT3": true, "PRN": true, "NUL": true,
}

// SecureFilename reduces a user-supplied filename to a flat, ASCII-only
// name safe to join with the storage directory. Path separators become
// underscores, other unsafe characters are dropped, and leading or
// trailing dots and underscores are trimmed. The result may be empty.
//
//	SecureFilename("../../etc/passwd")   == "etc_passwd"
//	SecureFilename("My cool movie.mov") == "My_cool_movie.mov"
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range name {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	name = b.String()

	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	if name != "" && windowsDeviceNames[strings.ToUpper(strings.SplitN(name, ".", 2)[0])] {
		name = "_" + name
	}
	return name
}
