/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package filecrypt

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru"

	"github.com/gitrgoliveira/go-filecrypt/internal/core"
	"github.com/gitrgoliveira/go-filecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-filecrypt/internal/logger"
	"github.com/gitrgoliveira/go-filecrypt/internal/naming"
	"github.com/gitrgoliveira/go-filecrypt/internal/obfuscate"
	"github.com/gitrgoliveira/go-filecrypt/internal/store"
	"github.com/gitrgoliveira/go-filecrypt/secure"
)

// uploadMemorySize bounds how many upload-time real extensions a Vault
// remembers for names stored under FallbackExtension.
const uploadMemorySize = 4096

// upload is what a Vault remembers about a file it stored. Size and
// modification time identify the container on disk, so a record is only
// trusted while the file has not been replaced by another writer.
type upload struct {
	realExt string
	size    int64
	modTime time.Time
}

// Config configures a Vault.
type Config struct {
	// Passphrase the storage key is derived from. Required.
	Passphrase string
	// StorageDir is the flat directory holding containers.
	StorageDir string
	// MaxUploadSize is the largest accepted plaintext in bytes.
	MaxUploadSize int64
	// KDF is "pbkdf2" (default) or "argon2id".
	KDF string
	// KDFIterations applies to PBKDF2 only.
	KDFIterations int
	// Cipher is "aes-gcm" (default) or "chacha20-poly1305".
	Cipher string
	// MaxNameAttempts caps collision suffixes per upload.
	MaxNameAttempts int
}

// DefaultConfig returns a Config with every default applied except the
// passphrase.
func DefaultConfig() Config {
	return Config{
		StorageDir:      DefaultStorageDir,
		MaxUploadSize:   DefaultMaxUploadSize,
		KDF:             "pbkdf2",
		KDFIterations:   core.DefaultPBKDF2Iterations,
		Cipher:          "aes-gcm",
		MaxNameAttempts: naming.DefaultMaxAttempts,
	}
}

// Listing is the result of ListFiles.
type Listing struct {
	Files []StoredFile `json:"files"`
	Total int          `json:"total"`
}

// Plaintext is a decrypted stored file ready for download.
type Plaintext struct {
	Data     []byte
	Name     string // stem plus real extension
	MimeType string
}

// Vault ties key derivation, the codec, naming and the file store together.
// It is safe for concurrent use.
type Vault struct {
	cfg     Config
	codec   *core.Codec
	store   *store.FileStore
	log     logger.Logger
	uploads *lru.Cache
}

var (
	keyCachesMu sync.Mutex
	keyCaches   = map[string]*core.KeyCache{}
)

// sharedKeyCache returns the process-wide cache for deriver, so repeated
// Opens with the same passphrase derive the key only once.
func sharedKeyCache(d core.KeyDeriver) (*core.KeyCache, error) {
	keyCachesMu.Lock()
	defer keyCachesMu.Unlock()
	if c, ok := keyCaches[d.ID()]; ok {
		return c, nil
	}
	c, err := core.NewKeyCache(d, core.DefaultKeyCacheSize)
	if err != nil {
		return nil, err
	}
	keyCaches[d.ID()] = c
	return c, nil
}

// Open derives the storage key, opens the storage directory and returns a
// ready Vault. It fails fast with ErrEmptyPassphrase when no passphrase is
// configured. A nil logger discards output.
func Open(cfg Config, log logger.Logger) (*Vault, error) {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	def := DefaultConfig()
	if cfg.StorageDir == "" {
		cfg.StorageDir = def.StorageDir
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = def.MaxUploadSize
	}
	if cfg.MaxNameAttempts <= 0 {
		cfg.MaxNameAttempts = def.MaxNameAttempts
	}
	if cfg.Passphrase == "" {
		return nil, crypto.ErrEmptyPassphrase
	}

	alg, err := core.ParseAlgorithm(cfg.Cipher)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrUnsupportedAlgorithm, err)
	}
	deriver, err := core.NewKeyDeriver(cfg.KDF, cfg.KDFIterations)
	if err != nil {
		return nil, err
	}
	keys, err := sharedKeyCache(deriver)
	if err != nil {
		return nil, err
	}
	key, err := keys.DeriveKey(cfg.Passphrase, nil)
	if err != nil {
		return nil, err
	}
	defer secure.Zero(key)

	codec, err := core.NewCodec(key, core.WithAlgorithm(alg))
	if err != nil {
		return nil, err
	}
	fs, err := store.Open(cfg.StorageDir, log)
	if err != nil {
		codec.Destroy()
		return nil, err
	}
	uploads, err := lru.New(uploadMemorySize)
	if err != nil {
		codec.Destroy()
		return nil, err
	}

	log.Infof("vault ready: dir=%s cipher=%s kdf=%s max upload=%s",
		cfg.StorageDir, alg, deriver.ID(), humanize.IBytes(uint64(cfg.MaxUploadSize)))

	return &Vault{cfg: cfg, codec: codec, store: fs, log: log, uploads: uploads}, nil
}

// Close zeroes the Vault's copy of the key. The Vault is unusable
// afterwards. The derived key stays in the process-wide key cache, held in
// a SecureBuffer, until PurgeKeys is called.
func (v *Vault) Close() error {
	v.codec.Destroy()
	return nil
}

// PurgeKeys zeroes every derived key cached by this process. Open Vaults
// keep working; the next Open derives its key again.
func PurgeKeys() {
	keyCachesMu.Lock()
	defer keyCachesMu.Unlock()
	for id, c := range keyCaches {
		c.Purge()
		delete(keyCaches, id)
	}
}

// Dir returns the storage directory.
func (v *Vault) Dir() string {
	return v.store.Dir()
}

// MaxUploadSize returns the largest accepted plaintext in bytes.
func (v *Vault) MaxUploadSize() int64 {
	return v.cfg.MaxUploadSize
}

// ListFiles lists stored files, most recent first. An empty category or
// "all" lists everything; an unknown category matches nothing.
func (v *Vault) ListFiles(category string) (Listing, error) {
	files, err := v.store.List()
	if err != nil {
		return Listing{}, err
	}

	want, ok := obfuscate.ParseCategory(category)
	if !ok {
		return Listing{Files: []StoredFile{}}, nil
	}
	if want != "" {
		filtered := files[:0]
		for _, f := range files {
			if f.Category == want {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}
	return Listing{Files: files, Total: len(files)}, nil
}

// StoreUpload validates, encrypts and stores an upload. mimeType is the
// client-declared type and may be empty.
//
// Validation order is: empty filename, extension allow-list, size. The
// stored name is the sanitized stem plus the disguised extension, with a
// numeric suffix when taken; an existing file is never overwritten.
func (v *Vault) StoreUpload(filename string, data []byte, mimeType string) (StoredFile, error) {
	if strings.TrimSpace(filename) == "" {
		return StoredFile{}, crypto.NewValidationError("filename", nil, crypto.ErrEmptyFilename)
	}
	realExt := obfuscate.Ext(filename)
	if !obfuscate.IsAllowed(realExt) {
		return StoredFile{}, crypto.NewValidationError("filename", filename, crypto.ErrUnsupportedExtension)
	}
	if int64(len(data)) > v.cfg.MaxUploadSize {
		return StoredFile{}, crypto.NewValidationError("payload", humanize.IBytes(uint64(len(data))), crypto.ErrPayloadTooLarge)
	}

	safe := naming.SecureFilename(filename)
	stem := safe
	if obfuscate.Ext(safe) == realExt {
		stem = obfuscate.Stem(safe)
	}
	if stem == "" {
		return StoredFile{}, crypto.NewValidationError("filename", filename, crypto.ErrEmptyFilename)
	}

	container, err := v.codec.Encrypt(data)
	if err != nil {
		return StoredFile{}, crypto.NewEncryptionError("encrypt", safe, err)
	}
	name, err := v.store.WriteUnique(stem, obfuscate.Obfuscate(realExt), container, v.cfg.MaxNameAttempts)
	if err != nil {
		return StoredFile{}, err
	}
	if info, err := v.store.Stat(name); err == nil {
		v.uploads.Add(name, upload{realExt: realExt, size: info.Size, modTime: info.UploadedAt})
	}

	if mimeType == "" {
		mimeType = obfuscate.MIMEType(realExt)
	}
	f := store.Describe(name, int64(len(data)), time.Now())
	f.RealExtension = realExt
	f.MimeType = mimeType
	f.SHA256 = core.CalculateChecksumHex(data)

	v.log.Infof("stored %s as %s (%s)", safe, name, f.SizeFormatted)
	return f, nil
}

// RetrievePlaintext decrypts a stored file. It fails with ErrNotFound when
// the name does not exist and with ErrAuthentication or
// ErrMalformedContainer when the container is damaged.
func (v *Vault) RetrievePlaintext(storedName string) (Plaintext, error) {
	name, data, err := v.open(storedName)
	if err != nil {
		return Plaintext{}, err
	}
	realExt := v.realExtension(name, data)
	return Plaintext{
		Data:     data,
		Name:     obfuscate.Stem(name) + "." + realExt,
		MimeType: obfuscate.MIMEType(realExt),
	}, nil
}

// DeleteStored removes a stored file permanently.
func (v *Vault) DeleteStored(storedName string) error {
	name := naming.SecureFilename(storedName)
	if err := v.store.Delete(name); err != nil {
		return err
	}
	v.uploads.Remove(name)
	v.log.Infof("deleted %s", name)
	return nil
}

// open reads and decrypts a stored file, returning its sanitized name.
func (v *Vault) open(storedName string) (string, []byte, error) {
	name := naming.SecureFilename(storedName)
	container, err := v.store.Read(name)
	if err != nil {
		return name, nil, err
	}
	data, err := v.codec.Decrypt(container)
	if err != nil {
		v.log.Warnf("failed to decrypt %s: %v", name, err)
		return name, nil, crypto.NewEncryptionError("decrypt", name, err)
	}
	return name, data, nil
}

// realExtension recovers the extension a stored file was uploaded with.
// Mapped disguises are reversed through the table. For the fallback
// extension the upload-time record is used when this Vault stored the
// file and it is unchanged on disk, then content sniffing; otherwise the
// disguised extension stands.
func (v *Vault) realExtension(name string, plaintext []byte) string {
	ext := obfuscate.Ext(name)
	if ext == "" {
		return "unknown"
	}
	if obfuscate.IsMapped(ext) {
		return obfuscate.Reveal(ext)
	}
	if ext == obfuscate.FallbackExtension {
		if r, ok := v.remembered(name); ok {
			return r
		}
		if r, ok := obfuscate.SniffExtension(plaintext); ok {
			return r
		}
	}
	return obfuscate.Reveal(ext)
}

// remembered returns the upload-time real extension of name. Records whose
// file was since deleted or replaced are dropped.
func (v *Vault) remembered(name string) (string, bool) {
	r, ok := v.uploads.Get(name)
	if !ok {
		return "", false
	}
	u := r.(upload)
	info, err := v.store.Stat(name)
	if err != nil || info.Size != u.size || !info.UploadedAt.Equal(u.modTime) {
		v.uploads.Remove(name)
		return "", false
	}
	return u.realExt, true
}
