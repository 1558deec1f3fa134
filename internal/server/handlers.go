package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/book-expert/doc-gateway-service/internal/artifact"
	"github.com/book-expert/doc-gateway-service/internal/docx"
	"github.com/book-expert/doc-gateway-service/internal/events"
	"github.com/book-expert/doc-gateway-service/internal/gateway"
	"github.com/book-expert/doc-gateway-service/internal/metadata"
)

const (
	msgConvertFailed  = "Error converting file"
	msgMetadataFailed = "Error extracting metadata"
	msgProtectFailed  = "Error processing file"
)

// handleConvert turns an uploaded Word document into a one-page PDF download.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	scope := s.deps.Workspace.NewScope()
	defer scope.Release()

	input, convertErr := s.convert(w, r, scope)
	s.publish(r.Context(), scope, events.OperationConvert, input, convertErr)

	if convertErr != nil && !errors.Is(convertErr, ErrResponseInterrupted) {
		s.writeError(w, "convert", convertErr, msgConvertFailed)
	}
}

func (s *Server) convert(w http.ResponseWriter, r *http.Request, scope *artifact.Scope) (*artifact.Artifact, error) {
	input, uploadErr := s.saveUpload(w, r, scope, "file")
	if uploadErr != nil {
		return nil, uploadErr
	}

	text, extractErr := docx.ExtractFile(input.Path())
	if extractErr != nil {
		return input, fmt.Errorf("extract text from '%s': %w", input.Name(), extractErr)
	}

	output, renderErr := s.deps.Renderer.RenderToArtifact(r.Context(), docx.Lines(text), scope, input.Name())
	if renderErr != nil {
		return input, fmt.Errorf("render '%s': %w", input.Name(), renderErr)
	}

	file, openErr := output.Open()
	if openErr != nil {
		return input, openErr
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			s.log.Warn("Failed to close '%s': %v", output.Path(), closeErr)
		}
	}()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", attachment(output.Name()))
	w.Header().Set("Content-Length", strconv.FormatInt(output.Size(), 10))
	w.WriteHeader(http.StatusOK)

	written, copyErr := io.Copy(w, file)
	if copyErr != nil {
		// The status line is gone; the client sees a short body.
		s.log.Error("convert: streaming '%s' stopped after %d bytes: %v", output.Name(), written, copyErr)

		return input, fmt.Errorf("%w: stream '%s': %w", ErrResponseInterrupted, output.Name(), copyErr)
	}

	s.log.Success("Converted '%s' to '%s' (%d bytes)", input.Name(), output.Name(), written)

	return input, nil
}

// handleMetadata reports name, size and creation time of an upload.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	scope := s.deps.Workspace.NewScope()
	defer scope.Release()

	input, uploadErr := s.saveUpload(w, r, scope, "file")
	if uploadErr != nil {
		s.publish(r.Context(), scope, events.OperationMetadata, nil, uploadErr)
		s.writeError(w, "metadata", uploadErr, msgMetadataFailed)

		return
	}

	info, extractErr := metadata.Extract(input)
	s.publish(r.Context(), scope, events.OperationMetadata, input, extractErr)

	if extractErr != nil {
		s.writeError(w, "metadata", extractErr, msgMetadataFailed)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	encodeErr := json.NewEncoder(w).Encode(info)
	if encodeErr != nil {
		s.log.Error("metadata: failed to write response: %v", encodeErr)
	}
}

// handleProtect forwards an uploaded PDF to the protection service and streams the
// result back.
func (s *Server) handleProtect(w http.ResponseWriter, r *http.Request) {
	scope := s.deps.Workspace.NewScope()
	defer scope.Release()

	input, uploadErr := s.saveUpload(w, r, scope, s.config.ProtectFileFields...)
	if uploadErr != nil {
		s.publish(r.Context(), scope, events.OperationProtect, nil, uploadErr)
		s.writeError(w, "protect", uploadErr, msgProtectFailed)

		return
	}

	protectErr := s.deps.Gateway.Protect(r.Context(), w, gateway.Request{
		Scope:  scope,
		Input:  input,
		Secret: firstFormValue(r, s.config.ProtectSecretFields...),
	})
	s.publish(r.Context(), scope, events.OperationProtect, input, protectErr)

	switch {
	case protectErr == nil:
		s.log.Success("Protected '%s'", input.Name())
	case errors.Is(protectErr, gateway.ErrRelayInterrupted):
		// Headers were already sent; the gateway has logged the failure.
	default:
		s.writeError(w, "protect", protectErr, msgProtectFailed)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"ok"}`+"\n")
}

func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
