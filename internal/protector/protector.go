// Package protector is the downstream service that password-protects PDFs.
package protector

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/book-expert/logger"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/book-expert/doc-gateway-service/internal/artifact"
	"github.com/book-expert/doc-gateway-service/internal/metrics"
)

const (
	defaultFileField   = "pdfFile"
	defaultSecretField = "password"
	defaultSecret      = "defaultPassword"
	defaultMaxUpload   = 32 << 20
	multipartMemory    = 8 << 20
	aesKeyLength       = 256
	outputPrefix       = "protected_"
	route              = "/upload"
)

var (
	// ErrEncrypt is returned when pdfcpu cannot encrypt the input.
	ErrEncrypt = errors.New("failed to encrypt PDF")
	// ErrMissingFile is returned when the upload has no file part.
	ErrMissingFile = errors.New("no file uploaded")
)

func init() {
	// Keep pdfcpu from creating a config directory under the user's home.
	api.DisableConfigDir()
}

// Options configures a Protector.
type Options struct {
	Metrics        metrics.Recorder
	FileField      string
	SecretField    string
	DefaultSecret  string
	MaxUploadBytes int64
}

// Protector encrypts uploaded PDFs.
type Protector struct {
	workspace *artifact.Workspace
	metrics   metrics.Recorder
	log       *logger.Logger
	config    Options
}

// New creates a Protector storing its temporary files in workspace.
func New(workspace *artifact.Workspace, opts Options, log *logger.Logger) *Protector {
	if opts.FileField == "" {
		opts.FileField = defaultFileField
	}

	if opts.SecretField == "" {
		opts.SecretField = defaultSecretField
	}

	if opts.DefaultSecret == "" {
		opts.DefaultSecret = defaultSecret
	}

	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}

	recorder := opts.Metrics
	if recorder == nil {
		recorder = metrics.Noop{}
	}

	return &Protector{workspace: workspace, metrics: recorder, log: log, config: opts}
}

// OutputName is the download name of the protected copy of name.
func OutputName(name string) string {
	return outputPrefix + name
}

// Encrypt writes an AES-256 encrypted copy of src to dst. The secret is both the user
// and the owner password.
func Encrypt(src io.ReadSeeker, dst io.Writer, secret string) error {
	conf := model.NewAESConfiguration(secret, secret, aesKeyLength)

	encryptErr := api.Encrypt(src, dst, conf)
	if encryptErr != nil {
		return fmt.Errorf("%w: %w", ErrEncrypt, encryptErr)
	}

	return nil
}

// Handler routes POST /upload and GET /health.
func (p *Protector) Handler(metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+route, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := p.handleUpload(w, r)
		p.metrics.ObserveRequest(r.Method, route, strconv.Itoa(status), time.Since(start).Seconds())
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok"}`+"\n")
	})

	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	return mux
}

// handleUpload protects one upload and returns the status it wrote.
func (p *Protector) handleUpload(w http.ResponseWriter, r *http.Request) int {
	scope := p.workspace.NewScope()
	defer scope.Release()

	input, uploadErr := p.saveUpload(w, r, scope)
	if uploadErr != nil {
		p.log.Warn("protect: %v", uploadErr)
		p.metrics.IncDocuments("encrypt", "failed")
		http.Error(w, "No file uploaded.", http.StatusBadRequest)

		return http.StatusBadRequest
	}

	secret := r.FormValue(p.config.SecretField)
	if secret == "" {
		secret = p.config.DefaultSecret
	}

	output, protectErr := p.protect(scope, input, secret)
	if protectErr != nil {
		p.log.Error("protect '%s': %v", input.Name(), protectErr)
		p.metrics.IncDocuments("encrypt", "failed")
		http.Error(w, "Error protecting PDF", http.StatusInternalServerError)

		return http.StatusInternalServerError
	}

	p.metrics.IncDocuments("encrypt", "succeeded")

	return p.send(w, output)
}

func (p *Protector) saveUpload(w http.ResponseWriter, r *http.Request, scope *artifact.Scope) (*artifact.Artifact, error) {
	r.Body = http.MaxBytesReader(w, r.Body, p.config.MaxUploadBytes)

	parseErr := r.ParseMultipartForm(multipartMemory)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingFile, parseErr)
	}

	defer func() {
		if removeErr := r.MultipartForm.RemoveAll(); removeErr != nil {
			p.log.Warn("Failed to remove multipart spill files: %v", removeErr)
		}
	}()

	file, header, formErr := r.FormFile(p.config.FileField)
	if formErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingFile, formErr)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			p.log.Warn("Failed to close upload '%s': %v", header.Filename, closeErr)
		}
	}()

	input, saveErr := scope.Save(header.Filename, file)
	if saveErr != nil {
		return nil, fmt.Errorf("failed to store upload: %w", saveErr)
	}

	return input, nil
}

func (p *Protector) protect(scope *artifact.Scope, input *artifact.Artifact, secret string) (*artifact.Artifact, error) {
	source, openErr := input.Open()
	if openErr != nil {
		return nil, openErr
	}

	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			p.log.Warn("Failed to close '%s': %v", input.Path(), closeErr)
		}
	}()

	output, writeErr := scope.Write(OutputName(input.Name()), func(w io.Writer) error {
		return Encrypt(source, w, secret)
	})
	if writeErr != nil {
		return nil, writeErr
	}

	return output, nil
}

func (p *Protector) send(w http.ResponseWriter, output *artifact.Artifact) int {
	file, openErr := output.Open()
	if openErr != nil {
		p.log.Error("protect: %v", openErr)
		http.Error(w, "Error protecting PDF", http.StatusInternalServerError)

		return http.StatusInternalServerError
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			p.log.Warn("Failed to close '%s': %v", output.Path(), closeErr)
		}
	}()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": output.Name()}))
	w.Header().Set("Content-Length", strconv.FormatInt(output.Size(), 10))
	w.WriteHeader(http.StatusOK)

	written, copyErr := io.Copy(w, file)
	if copyErr != nil {
		p.log.Error("protect: streaming '%s' stopped after %d bytes: %v", output.Name(), written, copyErr)

		return http.StatusOK
	}

	p.log.Success("Protected '%s' (%d bytes)", output.Name(), written)

	return http.StatusOK
}
