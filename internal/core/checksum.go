/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gitrgoliveira/go-filecrypt/secure"
)

// CalculateChecksum computes the SHA-256 checksum of a plaintext payload.
func CalculateChecksum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// CalculateChecksumHex computes the SHA-256 checksum of data as a hex string.
func CalculateChecksumHex(data []byte) string {
	return hex.EncodeToString(CalculateChecksum(data))
}

// VerifyChecksumHex checks data against a hex-encoded SHA-256 checksum.
func VerifyChecksumHex(data []byte, hexSum string) (bool, error) {
	sum, err := hex.DecodeString(hexSum)
	if err != nil {
		return false, fmt.Errorf("invalid hex checksum: %w", err)
	}
	return secure.SecureCompare(CalculateChecksum(data), sum), nil
}
