/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package store persists cipher containers in a single flat directory and
// projects listing metadata from the filesystem. There is no index: every
// listing is recomputed from directory entries.
package store

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gitrgoliveira/go-filecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-filecrypt/internal/logger"
	"github.com/gitrgoliveira/go-filecrypt/internal/naming"
	"github.com/gitrgoliveira/go-filecrypt/internal/obfuscate"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600

	// stagingPrefix marks in-flight writes. Staging files start with a dot
	// and are never listed.
	stagingPrefix = ".staging-"

	// unknownExtension is reported for stored names without an extension.
	unknownExtension = "unknown"
)

// StoredFile is the metadata projection of one stored container.
type StoredFile struct {
	ID            string             `json:"id"`
	Filename      string             `json:"filename"`
	OriginalName  string             `json:"originalName"`
	Extension     string             `json:"extension"`
	RealExtension string             `json:"realExtension"`
	Size          int64              `json:"size"`
	SizeFormatted string             `json:"sizeFormatted"`
	UploadedAt    time.Time          `json:"uploadedAt"`
	Category      obfuscate.Category `json:"category"`
	MimeType      string             `json:"mimeType"`
	SHA256        string             `json:"sha256,omitempty"`
}

// Describe builds the StoredFile for name from its size and modification
// time. The MIME type is derived from the real extension.
func Describe(name string, size int64, modTime time.Time) StoredFile {
	ext := obfuscate.Ext(name)
	if ext == "" {
		ext = unknownExtension
	}
	realExt := obfuscate.Reveal(ext)
	return StoredFile{
		ID:            name,
		Filename:      name,
		OriginalName:  obfuscate.Stem(name),
		Extension:     ext,
		RealExtension: realExt,
		Size:          size,
		SizeFormatted: humanize.IBytes(uint64(size)),
		UploadedAt:    modTime,
		Category:      obfuscate.Classify(name, ""),
		MimeType:      obfuscate.MIMEType(realExt),
	}
}

// FileStore is a flat directory of cipher containers.
type FileStore struct {
	dir string
	log logger.Logger
}

// Open returns a FileStore rooted at dir, creating the directory if needed.
func Open(dir string, log logger.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("storage directory is required")
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, &crypto.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return &FileStore{dir: dir, log: log}, nil
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// path joins a stored name with the directory. Names that are not a single
// visible path element are rejected as not found.
func (s *FileStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", errors.Wrapf(crypto.ErrNotFound, "%q", name)
	}
	return filepath.Join(s.dir, name), nil
}

// List enumerates regular files, most recently modified first. Symlinks,
// directories, and staging files are skipped.
func (s *FileStore) List() ([]StoredFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &crypto.IOError{Op: "list", Path: s.dir, Err: err}
	}

	files := make([]StoredFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Deleted between ReadDir and Info.
				continue
			}
			return nil, &crypto.IOError{Op: "stat", Path: filepath.Join(s.dir, e.Name()), Err: err}
		}
		files = append(files, Describe(e.Name(), info.Size(), info.ModTime()))
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].UploadedAt.After(files[j].UploadedAt)
	})
	return files, nil
}

// Stat describes one stored file.
func (s *FileStore) Stat(name string) (StoredFile, error) {
	p, err := s.path(name)
	if err != nil {
		return StoredFile{}, err
	}
	info, err := os.Lstat(p)
	if err != nil {
		return StoredFile{}, s.notFoundOr("stat", p, err)
	}
	if !info.Mode().IsRegular() {
		return StoredFile{}, errors.Wrapf(crypto.ErrNotFound, "%q is not a regular file", name)
	}
	return Describe(name, info.Size(), info.ModTime()), nil
}

// Exists reports whether name is taken, by any kind of directory entry.
func (s *FileStore) Exists(name string) bool {
	p, err := s.path(name)
	if err != nil {
		return false
	}
	_, err = os.Lstat(p)
	return err == nil
}

// Read returns the container stored under name.
func (s *FileStore) Read(name string) ([]byte, error) {
	if _, err := s.Stat(name); err != nil {
		return nil, err
	}
	p, _ := s.path(name)
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, s.notFoundOr("read", p, err)
	}
	return data, nil
}

// Write stores data under name, failing with os.ErrExist if the name is
// taken. The container is fully written and synced to a staging file first
// and then published with a hard link, so no partial file is ever visible
// under name and an existing file is never replaced.
func (s *FileStore) Write(name string, data []byte) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	staging, err := s.stage(data)
	if err != nil {
		return err
	}
	defer s.unstage(staging)

	if err := os.Link(staging, p); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return errors.Wrapf(fs.ErrExist, "%q", name)
		}
		return &crypto.IOError{Op: "write", Path: p, Err: err}
	}
	s.log.Debugf("stored %s (%d bytes)", name, len(data))
	return nil
}

// WriteUnique stores data under the first free name for stem and ext, as
// chosen by the naming resolver, and returns that name. A name taken by a
// concurrent writer between the check and the publish is skipped, so two
// writers never end up sharing a name.
func (s *FileStore) WriteUnique(stem, ext string, data []byte, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = naming.DefaultMaxAttempts
	}
	staging, err := s.stage(data)
	if err != nil {
		return "", err
	}
	defer s.unstage(staging)

	attempt := 0
	for attempt < maxAttempts {
		name, err := naming.Resolve(stem, ext, maxAttempts-attempt, func(candidate string) bool {
			attempt++
			return s.Exists(candidate)
		})
		if err != nil {
			return "", err
		}

		p := filepath.Join(s.dir, name)
		err = os.Link(staging, p)
		if err == nil {
			s.log.Debugf("stored %s (%d bytes)", name, len(data))
			return name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", &crypto.IOError{Op: "write", Path: p, Err: err}
		}
		s.log.Debugf("name %s taken concurrently, retrying", name)
	}
	return "", errors.Wrapf(crypto.ErrNamesExhausted, "%s.%s after %d attempts", stem, ext, maxAttempts)
}

// Delete removes name. It is not recoverable.
func (s *FileStore) Delete(name string) error {
	if _, err := s.Stat(name); err != nil {
		return err
	}
	p, _ := s.path(name)
	if err := os.Remove(p); err != nil {
		return s.notFoundOr("delete", p, err)
	}
	s.log.Debugf("deleted %s", name)
	return nil
}

// stage writes data to a new hidden file and syncs it.
func (s *FileStore) stage(data []byte) (string, error) {
	p := filepath.Join(s.dir, stagingPrefix+uuid.NewString()+".tmp")
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return "", &crypto.IOError{Op: "write", Path: p, Err: err}
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return "", &crypto.IOError{Op: "write", Path: p, Err: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return "", &crypto.IOError{Op: "sync", Path: p, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return "", &crypto.IOError{Op: "write", Path: p, Err: err}
	}
	return p, nil
}

func (s *FileStore) unstage(p string) {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warnf("failed to remove staging file %s: %v", p, err)
	}
}

func (s *FileStore) notFoundOr(op, p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(crypto.ErrNotFound, "%s", filepath.Base(p))
	}
	return &crypto.IOError{Op: op, Path: p, Err: err}
}
