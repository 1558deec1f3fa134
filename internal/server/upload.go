package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/book-expert/doc-gateway-service/internal/artifact"
	"github.com/book-expert/doc-gateway-service/internal/docx"
)

var (
	// ErrMissingInput is returned when a request carries no usable upload.
	ErrMissingInput = errors.New("no file uploaded")
	// ErrResponseInterrupted marks a failure after the status line was sent; no
	// error response can follow it.
	ErrResponseInterrupted = errors.New("response interrupted after headers were sent")
)

const (
	msgMissingInput      = "No file uploaded."
	msgUnsupportedFormat = "Unsupported document format."
)

// saveUpload stores the first present file field of r in scope. Multipart spill
// files are removed before it returns; form values stay readable.
func (s *Server) saveUpload(
	w http.ResponseWriter,
	r *http.Request,
	scope *artifact.Scope,
	fields ...string,
) (*artifact.Artifact, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	parseErr := r.ParseMultipartForm(multipartMemory)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: invalid multipart form: %w", ErrMissingInput, parseErr)
	}

	defer func() {
		if removeErr := r.MultipartForm.RemoveAll(); removeErr != nil {
			s.log.Warn("Failed to remove multipart spill files: %v", removeErr)
		}
	}()

	for _, field := range fields {
		file, header, formErr := r.FormFile(field)
		if errors.Is(formErr, http.ErrMissingFile) {
			continue
		}

		if formErr != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrMissingInput, field, formErr)
		}

		input, saveErr := scope.Save(header.Filename, file)

		if closeErr := file.Close(); closeErr != nil {
			s.log.Warn("Failed to close upload '%s': %v", header.Filename, closeErr)
		}

		if saveErr != nil {
			return nil, fmt.Errorf("failed to store upload: %w", saveErr)
		}

		return input, nil
	}

	return nil, ErrMissingInput
}

// firstFormValue returns the first non-empty value among fields.
func firstFormValue(r *http.Request, fields ...string) string {
	for _, field := range fields {
		if value := r.FormValue(field); value != "" {
			return value
		}
	}

	return ""
}

// writeError reports err as a single line. Invalid input is a 400; everything else
// is a 500 with the route's fallback message.
func (s *Server) writeError(w http.ResponseWriter, route string, err error, fallback string) {
	switch {
	case errors.Is(err, ErrMissingInput):
		s.log.Warn("%s: %v", route, err)
		http.Error(w, msgMissingInput, http.StatusBadRequest)
	case errors.Is(err, docx.ErrUnsupportedFormat):
		s.log.Warn("%s: %v", route, err)
		http.Error(w, msgUnsupportedFormat, http.StatusBadRequest)
	default:
		s.log.Error("%s: %v", route, err)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}
