/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package filecrypt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gitrgoliveira/go-filecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-filecrypt/internal/obfuscate"
)

// PreviewType tells clients how to render Preview.Data.
type PreviewType string

const (
	PreviewImage PreviewType = "image"
	PreviewAudio PreviewType = "audio"
	PreviewJSON  PreviewType = "json"
	PreviewText  PreviewType = "text"
)

// Preview is an inline rendering of a stored file.
//
// For image and audio, Data is a base64 data URI. For json it is the parsed
// document, or the raw text when parsing fails. For text it is the decoded
// string with invalid UTF-8 replaced by U+FFFD.
type Preview struct {
	Type PreviewType `json:"type"`
	Data any         `json:"data"`
}

var previewKinds = map[string]PreviewType{
	"png": PreviewImage, "jpg": PreviewImage, "jpeg": PreviewImage,
	"gif": PreviewImage, "webp": PreviewImage, "bmp": PreviewImage,
	"mp3": PreviewAudio, "wav": PreviewAudio, "aac": PreviewAudio, "flac": PreviewAudio,
	"json": PreviewJSON,
	"txt":  PreviewText, "js": PreviewText, "css": PreviewText,
	"html": PreviewText, "xml": PreviewText, "csv": PreviewText,
}

// PreviewPlaintext decrypts a stored file and renders it for inline display.
// It fails with ErrUnsupportedPreviewType when the real extension is not
// previewable. A crypt file whose real extension is unknown is shown as
// text when its content sniffs as plain text.
func (v *Vault) PreviewPlaintext(storedName string) (Preview, error) {
	name, data, err := v.open(storedName)
	if err != nil {
		return Preview{}, err
	}
	realExt := v.realExtension(name, data)

	kind, ok := previewKinds[realExt]
	if !ok && realExt == obfuscate.FallbackExtension && obfuscate.LooksLikeText(data) {
		kind, ok = PreviewText, true
	}
	if !ok {
		return Preview{}, fmt.Errorf("%w: %s", crypto.ErrUnsupportedPreviewType, realExt)
	}

	switch kind {
	case PreviewImage, PreviewAudio:
		return Preview{Type: kind, Data: dataURI(obfuscate.MIMEType(realExt), data)}, nil
	case PreviewJSON:
		text := decodeText(data)
		var doc any
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return Preview{Type: kind, Data: text}, nil
		}
		return Preview{Type: kind, Data: doc}, nil
	default:
		return Preview{Type: kind, Data: decodeText(data)}, nil
	}
}

func dataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func decodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "\uFFFD")
}
