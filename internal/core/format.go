/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// format.go: Container layout constants for go-filecrypt
package core

const (
	// NonceSize is the size of the per-container random nonce.
	NonceSize = 12
	// TagSize is the size of the AEAD authentication tag.
	TagSize = 16
	// HeaderSize is the fixed prefix of every container.
	// Container format: [12 bytes nonce][16 bytes tag][ciphertext, same length as plaintext]
	HeaderSize = NonceSize + TagSize
)

// nonce, tag and ciphertext offsets within a container.
const (
	nonceEnd = NonceSize
	tagEnd   = NonceSize + TagSize
)
