/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package obfuscate maps real file extensions to disguised on-disk
// extensions and classifies files into display categories.
//
// The mapping is lossy for extensions outside the disguise table: all of
// them collapse to FallbackExtension, and their real extension cannot be
// recovered from the stored name.
package obfuscate

import (
	"mime"
	"net/http"
	"path"
	"strings"
)

// FallbackExtension is the disguised extension for every real extension
// missing from the disguise table.
const FallbackExtension = "crypt"

// Category groups files for listing filters and previews.
type Category string

const (
	CategoryAudio     Category = "audio"
	CategoryImage     Category = "image"
	CategoryJSON      Category = "json"
	CategoryEncrypted Category = "encrypted"
	CategoryOther     Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryAudio, CategoryImage, CategoryJSON, CategoryEncrypted, CategoryOther}

// ParseCategory validates a category name. The empty string and "all" are
// reported as ok with an empty Category, meaning no filter.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return "", true
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// disguises is the real -> disguised table. It must stay a bijection.
var disguises = map[string]string{
	"mp3":  "ad3",
	"mp4":  "vd4",
	"png":  "ph",
	"jpg":  "sz",
	"jpeg": "ssz",
	"json": "jsn",
	"js":   "sc",
	"css":  "sty",
	"html": "hyp",
}

var reveals = invert(disguises)

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if _, dup := out[v]; dup {
			panic("obfuscate: disguised extension " + v + " is not unique")
		}
		out[v] = k
	}
	return out
}

var categoryExtensions = map[Category][]string{
	CategoryAudio: {"mp3", "wav", "aac", "flac"},
	CategoryImage: {"png", "jpg", "jpeg", "gif", "webp", "bmp"},
	CategoryJSON:  {"json"},
	CategoryOther: {"txt", "pdf", "js", "css", "html", "xml", "csv"},
}

var extensionCategory = func() map[string]Category {
	out := make(map[string]Category)
	for c, exts := range categoryExtensions {
		for _, e := range exts {
			out[e] = c
		}
	}
	return out
}()

// allowed is the upload allow-list.
var allowed = map[string]bool{
	"mp3": true, "mp4": true, "png": true, "jpg": true, "jpeg": true,
	"json": true, "js": true, "css": true, "html": true, "txt": true,
	"pdf": true, "wav": true, "aac": true, "flac": true, "gif": true,
	"webp": true, "bmp": true, "xml": true, "csv": true,
}

// Ext returns the lower-cased extension of name without the dot, or "" if
// name has none.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// Stem returns name without its final extension.
func Stem(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// IsAllowed reports whether realExt may be uploaded.
func IsAllowed(realExt string) bool {
	return allowed[strings.ToLower(realExt)]
}

// Obfuscate returns the disguised extension for realExt, or
// FallbackExtension if realExt is not in the table.
func Obfuscate(realExt string) string {
	if d, ok := disguises[strings.ToLower(realExt)]; ok {
		return d
	}
	return FallbackExtension
}

// Reveal returns the real extension for a disguised one. Unmapped input is
// returned unchanged, so Reveal("crypt") == "crypt" and Reveal("pdf") == "pdf";
// callers cannot tell the two cases apart.
func Reveal(disguisedExt string) string {
	if r, ok := reveals[strings.ToLower(disguisedExt)]; ok {
		return r
	}
	return disguisedExt
}

// IsMapped reports whether ext is a disguised extension from the table.
// FallbackExtension is not mapped.
func IsMapped(disguisedExt string) bool {
	_, ok := reveals[strings.ToLower(disguisedExt)]
	return ok
}

// IsDisguised reports whether ext is a table extension or FallbackExtension.
func IsDisguised(ext string) bool {
	ext = strings.ToLower(ext)
	return ext == FallbackExtension || IsMapped(ext)
}

// Classify assigns name a category. First match wins: a disguised
// extension is encrypted; then the MIME hint (audio/*, image/*, *json*);
// then the extension table; otherwise other.
func Classify(name, mimeHint string) Category {
	ext := Ext(name)
	if IsDisguised(ext) {
		return CategoryEncrypted
	}

	if mimeHint != "" {
		switch {
		case strings.HasPrefix(mimeHint, "audio/"):
			return CategoryAudio
		case strings.HasPrefix(mimeHint, "image/"):
			return CategoryImage
		case strings.Contains(mimeHint, "json"):
			return CategoryJSON
		}
	}

	if c, ok := extensionCategory[ext]; ok {
		return c
	}
	return CategoryOther
}

// fallbackMIME covers extensions the host MIME database may not know.
var fallbackMIME = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"aac":  "audio/aac",
	"flac": "audio/flac",
	"mp4":  "video/mp4",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"json": "application/json",
	"js":   "text/javascript",
	"css":  "text/css",
	"html": "text/html",
	"txt":  "text/plain",
	"xml":  "text/xml",
	"csv":  "text/csv",
	"pdf":  "application/pdf",
}

// DefaultMIME is returned for unknown extensions.
const DefaultMIME = "application/octet-stream"

// MIMEType guesses a content type from a real extension, without
// parameters such as charset.
func MIMEType(realExt string) string {
	realExt = strings.ToLower(realExt)
	if t, ok := fallbackMIME[realExt]; ok {
		return t
	}
	if realExt != "" {
		if t := mime.TypeByExtension("." + realExt); t != "" {
			if mt, _, err := mime.ParseMediaType(t); err == nil {
				return mt
			}
		}
	}
	return DefaultMIME
}

// sniffed lists content types whose signature identifies one allowed
// extension without doubt. Plain text is deliberately absent: txt, csv and
// js all sniff the same.
var sniffed = map[string]string{
	"application/pdf": "pdf",
	"audio/wave":      "wav",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"image/bmp":       "bmp",
	"text/xml":        "xml",
}

// SniffExtension inspects decrypted content and reports the real extension
// when its signature is unambiguous.
//
// Only content is inspected, so a txt or csv upload whose text happens to
// begin with "%PDF-" or "<?xml" is reported as pdf or xml.
func SniffExtension(data []byte) (string, bool) {
	ct, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		return "", false
	}
	ext, ok := sniffed[ct]
	return ext, ok
}

// LooksLikeText reports whether data sniffs as plain text. It cannot tell
// txt, csv and js apart, only that the content is safe to show as text.
func LooksLikeText(data []byte) bool {
	ct, _, err := mime.ParseMediaType(http.DetectContentType(data))
	return err == nil && ct == "text/plain"
}
