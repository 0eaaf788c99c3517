/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package api exposes a Vault over HTTP. Every failure is answered with a
// JSON envelope {"success": false, "error": "..."} carrying a sanitized
// message and a status derived from the error kind.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gitrgoliveira/go-filecrypt"
	"github.com/gitrgoliveira/go-filecrypt/internal/logger"
)

// multipartOverhead is allowed on top of the upload limit for form framing.
const multipartOverhead = 1 << 20

// Vault is the subset of *filecrypt.Vault the server needs.
type Vault interface {
	ListFiles(category string) (filecrypt.Listing, error)
	StoreUpload(filename string, data []byte, mimeType string) (filecrypt.StoredFile, error)
	RetrievePlaintext(storedName string) (filecrypt.Plaintext, error)
	PreviewPlaintext(storedName string) (filecrypt.Preview, error)
	DeleteStored(storedName string) error
	MaxUploadSize() int64
}

// APIResponse is the envelope shared by every JSON reply.
type APIResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ListResponse answers GET /api/files.
type ListResponse struct {
	APIResponse
	Files []filecrypt.StoredFile `json:"files"`
	Total int                    `json:"total"`
}

// UploadResponse answers POST /api/upload.
type UploadResponse struct {
	APIResponse
	File filecrypt.StoredFile `json:"file"`
}

// PreviewResponse answers GET /api/preview/{filename}.
type PreviewResponse struct {
	APIResponse
	Type filecrypt.PreviewType `json:"type"`
	Data any                   `json:"data"`
}

// Server routes HTTP requests to a Vault.
type Server struct {
	vault Vault
	log   logger.Logger
}

// NewServer returns a Server for vault. A nil logger discards output.
func NewServer(vault Vault, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Server{vault: vault, log: log}
}

// Handler returns the router with every API route registered.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/files", s.handleList).Methods("GET")
	api.HandleFunc("/upload", s.handleUpload).Methods("POST")
	api.HandleFunc("/decrypt/{filename}", s.handleDecrypt).Methods("GET")
	api.HandleFunc("/preview/{filename}", s.handlePreview).Methods("GET")
	api.HandleFunc("/delete/{filename}", s.handleDelete).Methods("DELETE")
	return router
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	listing, err := s.vault.ListFiles(r.URL.Query().Get("category"))
	if err != nil {
		s.sendError(w, err)
		return
	}
	sendJSON(w, ListResponse{
		APIResponse: APIResponse{Success: true},
		Files:       listing.Files,
		Total:       listing.Total,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.vault.MaxUploadSize()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.sendError(w, filecrypt.ErrPayloadTooLarge)
			return
		}
		sendError(w, errors.New("no file uploaded"), http.StatusBadRequest)
		return
	}
	defer file.Close()

	// One byte past the limit is enough for the vault to reject it.
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		s.sendError(w, err)
		return
	}

	stored, err := s.vault.StoreUpload(header.Filename, data, header.Header.Get("Content-Type"))
	if err != nil {
		s.sendError(w, err)
		return
	}
	sendJSON(w, UploadResponse{
		APIResponse: APIResponse{Success: true, Message: "file encrypted and stored"},
		File:        stored,
	})
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	p, err := s.vault.RetrievePlaintext(mux.Vars(r)["filename"])
	if err != nil {
		s.sendError(w, err)
		return
	}

	w.Header().Set("Content-Type", p.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": p.Name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := w.Write(p.Data); err != nil {
		s.log.Debugf("download of %s interrupted: %v", p.Name, err)
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.vault.PreviewPlaintext(mux.Vars(r)["filename"])
	if err != nil {
		s.sendError(w, err)
		return
	}
	sendJSON(w, PreviewResponse{
		APIResponse: APIResponse{Success: true},
		Type:        p.Type,
		Data:        p.Data,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.vault.DeleteStored(mux.Vars(r)["filename"]); err != nil {
		s.sendError(w, err)
		return
	}
	sendJSON(w, APIResponse{Success: true, Message: "file deleted"})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, filecrypt.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, filecrypt.ErrValidation),
		errors.Is(err, filecrypt.ErrEmptyFilename),
		errors.Is(err, filecrypt.ErrUnsupportedExtension),
		errors.Is(err, filecrypt.ErrUnsupportedPreviewType):
		return http.StatusBadRequest
	case errors.Is(err, filecrypt.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, filecrypt.ErrAuthentication), errors.Is(err, filecrypt.ErrMalformedContainer):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// sendError logs server-side failures and replies with a sanitized message.
func (s *Server) sendError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Errorf("request failed: %v", err)
	}
	sendError(w, filecrypt.SanitizeError(err), status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debugf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

func sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}
