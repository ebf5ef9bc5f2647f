package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/pharmadist/internal/core"
	"github.com/JonMunkholm/pharmadist/internal/sheet"
)

// multipartOverhead is the slack allowed above the file size limit for the
// multipart envelope and form fields.
const multipartOverhead = 1 << 20

// handleImport reads an uploaded spreadsheet (form field "file"), normalizes
// it onto the kind in the URL and bulk inserts it. An optional "encoding"
// form field overrides the configured CSV encoding.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, r, fmt.Errorf("%w: %v", sheet.ErrTooLarge, err), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadBody, err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	encoding := r.FormValue("encoding")
	if encoding == "" {
		encoding = s.cfg.Import.Encoding
	}
	rows, err := sheet.Read(header.Filename, file, sheet.Options{MaxSize: maxSize, Encoding: encoding})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, sheet.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.respondError(w, r, err, status)
		return
	}

	result, err := s.service.ImportRows(r.Context(), kind, rows, nil)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.ImportLimiter().Status())
}
