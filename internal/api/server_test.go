/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitrgoliveira/go-filecrypt"
)

func newTestServer(t *testing.T) (*httptest.Server, *filecrypt.Vault) {
	t.Helper()
	cfg := filecrypt.DefaultConfig()
	cfg.Passphrase = "api test passphrase"
	cfg.StorageDir = filepath.Join(t.TempDir(), "uploads")
	cfg.MaxUploadSize = 4096
	v, err := filecrypt.Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })

	ts := httptest.NewServer(NewServer(v, nil).Handler())
	t.Cleanup(ts.Close)
	return ts, v
}

func upload(t *testing.T, ts *httptest.Server, field, filename string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/upload", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func do(t *testing.T, method, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestUploadListDecryptDelete(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := upload(t, ts, "file", "report.pdf", []byte("hello"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var up UploadResponse
	decode(t, resp, &up)
	require.True(t, up.Success)
	require.Equal(t, "report.crypt", up.File.Filename)
	require.Equal(t, "report.crypt", up.File.ID)
	require.Equal(t, "pdf", up.File.RealExtension)
	require.NotEmpty(t, up.File.SHA256)

	resp = do(t, "GET", ts.URL+"/api/files?category=all")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list ListResponse
	decode(t, resp, &list)
	require.True(t, list.Success)
	require.Equal(t, 1, list.Total)
	require.Equal(t, "report.crypt", list.Files[0].Filename)
	require.Equal(t, filecrypt.CategoryEncrypted, list.Files[0].Category)

	resp = do(t, "GET", ts.URL+"/api/decrypt/report.crypt")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), body)
	require.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	require.Equal(t, `attachment; filename=report.pdf`, resp.Header.Get("Content-Disposition"))

	resp = do(t, "DELETE", ts.URL+"/api/delete/report.crypt")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var del APIResponse
	decode(t, resp, &del)
	require.True(t, del.Success)

	resp = do(t, "DELETE", ts.URL+"/api/delete/report.crypt")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	decode(t, resp, &del)
	require.False(t, del.Success)
	require.Equal(t, "file not found", del.Error)
}

func TestUploadErrors(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name     string
		field    string
		filename string
		size     int
		status   int
		message  string
	}{
		{"missing field", "other", "a.txt", 1, http.StatusBadRequest, "no file uploaded"},
		{"disallowed type", "file", "run.exe", 1, http.StatusBadRequest, "file type not allowed"},
		{"too large", "file", "big.txt", 4097, http.StatusRequestEntityTooLarge, "file too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := upload(t, ts, tt.field, tt.filename, make([]byte, tt.size))
			require.Equal(t, tt.status, resp.StatusCode)
			var r APIResponse
			decode(t, resp, &r)
			require.False(t, r.Success)
			require.Equal(t, tt.message, r.Error)
		})
	}
}

func TestPreview(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := upload(t, ts, "file", "data.json", []byte(`{"k":"v"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, "GET", ts.URL+"/api/preview/data.jsn")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p PreviewResponse
	decode(t, resp, &p)
	require.True(t, p.Success)
	require.Equal(t, filecrypt.PreviewJSON, p.Type)
	require.Equal(t, map[string]interface{}{"k": "v"}, p.Data)

	resp = upload(t, ts, "file", "clip.mp4", []byte("video"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, "GET", ts.URL+"/api/preview/clip.vd4")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var r APIResponse
	decode(t, resp, &r)
	require.Equal(t, "file type not supported for preview", r.Error)
}

func TestDecryptTampered(t *testing.T) {
	ts, v := newTestServer(t)

	resp := upload(t, ts, "file", "a.png", []byte("png bytes"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	path := filepath.Join(v.Dir(), "a.ph")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))

	resp = do(t, "GET", ts.URL+"/api/decrypt/a.ph")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var r APIResponse
	decode(t, resp, &r)
	require.Equal(t, "corrupted encrypted file", r.Error)
}

func TestNotFoundAndMethods(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := do(t, "GET", ts.URL+"/api/decrypt/nothing.ph")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, "GET", ts.URL+"/api/preview/nothing.ph")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, "GET", ts.URL+"/api/delete/nothing.ph")
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}

type failingVault struct {
	Vault
}

func (failingVault) ListFiles(string) (filecrypt.Listing, error) {
	return filecrypt.Listing{}, &filecrypt.IOError{Op: "list", Path: "/secret/path", Err: errors.New("disk on fire")}
}

func TestInternalErrorsAreSanitized(t *testing.T) {
	ts := httptest.NewServer(NewServer(failingVault{}, nil).Handler())
	defer ts.Close()

	resp := do(t, "GET", ts.URL+"/api/files")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var r APIResponse
	decode(t, resp, &r)
	require.Equal(t, "operation failed", r.Error)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{filecrypt.ErrEmptyFilename, http.StatusBadRequest},
		{&filecrypt.ValidationError{Field: "filename", Err: filecrypt.ErrUnsupportedExtension}, http.StatusBadRequest},
		{&filecrypt.ValidationError{Field: "payload", Err: filecrypt.ErrPayloadTooLarge}, http.StatusRequestEntityTooLarge},
		{filecrypt.ErrUnsupportedPreviewType, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", filecrypt.ErrNotFound), http.StatusNotFound},
		{&filecrypt.EncryptionError{Op: "decrypt", Err: filecrypt.ErrAuthentication}, http.StatusUnprocessableEntity},
		{filecrypt.ErrMalformedContainer, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}
