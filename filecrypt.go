/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package filecrypt stores uploaded files encrypted at rest under disguised
// names, and gives them back decrypted for download or preview.
//
// Every stored file is a single container laid out as
//
//	nonce (12 bytes) || tag (16 bytes) || ciphertext
//
// sealed with AES-256-GCM (or ChaCha20-Poly1305) under a key derived once
// from a passphrase with PBKDF2-HMAC-SHA256. The stored name keeps the
// upload's stem and swaps its extension for a disguised one; extensions
// outside the disguise table all become "crypt".
//
// # Basic Usage
//
//	cfg := filecrypt.DefaultConfig()
//	cfg.Passphrase = os.Getenv("FILECRYPT_PASSPHRASE")
//
//	v, err := filecrypt.Open(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer v.Close()
//
//	f, err := v.StoreUpload("report.pdf", data, "application/pdf")
//	// f.Filename == "report.crypt"
//
//	p, err := v.RetrievePlaintext(f.Filename)
//	// p.Name == "report.pdf"
//
// # Security Considerations
//
//   - The passphrase is required and never has a default.
//   - The salt is fixed, so the same passphrase always yields the same key.
//     Anyone holding the passphrase can open every stored file.
//   - A container that fails authentication is reported with
//     ErrAuthentication and never returned as plaintext.
//   - Disguised extensions hide file types from a casual glance only.
package filecrypt

import (
	"github.com/gitrgoliveira/go-filecrypt/internal/core"
	"github.com/gitrgoliveira/go-filecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-filecrypt/internal/obfuscate"
	"github.com/gitrgoliveira/go-filecrypt/internal/store"
)

const (
	// DefaultStorageDir is the storage directory used when none is configured.
	DefaultStorageDir = "uploads"
	// DefaultMaxUploadSize is the largest accepted plaintext, 50 MiB.
	DefaultMaxUploadSize int64 = 50 << 20
	// HeaderSize is the fixed container overhead: nonce plus tag.
	HeaderSize = core.HeaderSize
	// FallbackExtension is the disguised extension of unmapped types.
	FallbackExtension = obfuscate.FallbackExtension
)

// StoredFile describes one stored container.
type StoredFile = store.StoredFile

// Category groups stored files for listing filters.
type Category = obfuscate.Category

const (
	CategoryAudio     = obfuscate.CategoryAudio
	CategoryImage     = obfuscate.CategoryImage
	CategoryJSON      = obfuscate.CategoryJSON
	CategoryEncrypted = obfuscate.CategoryEncrypted
	CategoryOther     = obfuscate.CategoryOther
)

// Error kinds (re-exported from internal/crypto).
var (
	ErrValidation             = crypto.ErrValidation
	ErrEmptyFilename          = crypto.ErrEmptyFilename
	ErrUnsupportedExtension   = crypto.ErrUnsupportedExtension
	ErrPayloadTooLarge        = crypto.ErrPayloadTooLarge
	ErrNotFound               = crypto.ErrNotFound
	ErrAuthentication         = crypto.ErrAuthentication
	ErrMalformedContainer     = crypto.ErrMalformedContainer
	ErrUnsupportedPreviewType = crypto.ErrUnsupportedPreviewType
	ErrNamesExhausted         = crypto.ErrNamesExhausted
	ErrEmptyPassphrase        = crypto.ErrEmptyPassphrase
)

type (
	ValidationError = crypto.ValidationError
	EncryptionError = crypto.EncryptionError
	IOError         = crypto.IOError
)

// SanitizeError maps err to a message safe to show end users.
var SanitizeError = crypto.SanitizeError

// Re-export checksum helpers so callers can verify exported plaintext.
var (
	CalculateChecksumHex = core.CalculateChecksumHex
	VerifyChecksumHex    = core.VerifyChecksumHex
)
