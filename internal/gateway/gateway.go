// Package gateway forwards an uploaded PDF to the downstream protection service and
// streams the protected document back to the caller.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/doc-gateway-service/internal/artifact"
	"github.com/book-expert/doc-gateway-service/internal/metrics"
)

const (
	defaultFileField   = "pdfFile"
	defaultSecretField = "password"
	defaultSecret      = "defaultPassword"
	defaultContentType = "application/pdf"
	// maxErrorBody caps how much of a downstream error body is kept.
	maxErrorBody = 4 << 10
	// protectedPrefix names the output the downstream produces for an input.
	protectedPrefix = "protected_"
)

var (
	// ErrDownstreamUnreachable is returned when the downstream service cannot be reached.
	ErrDownstreamUnreachable = errors.New("downstream protection service unreachable")
	// ErrDownstream is matched by every DownstreamError.
	ErrDownstream = errors.New("downstream protection service error")
	// ErrRelayInterrupted is returned when the stream fails after headers were sent.
	ErrRelayInterrupted = errors.New("protected document stream interrupted")
	// ErrInputRequired is returned when a request carries no input artifact.
	ErrInputRequired = errors.New("input artifact is required")

	errRequestFinished = errors.New("gateway request finished")
)

// DownstreamError reports a non-2xx reply from the downstream service.
type DownstreamError struct {
	Body   string
	Status int
}

func (e *DownstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("downstream returned status %d", e.Status)
	}

	return fmt.Sprintf("downstream returned status %d: %s", e.Status, e.Body)
}

// Is makes errors.Is(err, ErrDownstream) true for every DownstreamError.
func (e *DownstreamError) Is(target error) bool {
	return target == ErrDownstream
}

// Options configures a Gateway.
type Options struct {
	Client                *http.Client
	Metrics               metrics.Recorder
	DownstreamURL         string
	FileField             string
	SecretField           string
	DefaultSecret         string
	ResponseHeaderTimeout time.Duration
}

// Request is one protect call. Scope receives the reserved output artifact.
type Request struct {
	Scope  *artifact.Scope
	Input  *artifact.Artifact
	Secret string
}

// Gateway proxies protect requests.
type Gateway struct {
	client  *http.Client
	metrics metrics.Recorder
	log     *logger.Logger
	config  Options
}

// New creates a Gateway, filling unset options with defaults.
func New(opts Options, log *logger.Logger) *Gateway {
	opts.FileField = defaultStringEmpty(opts.FileField, defaultFileField)
	opts.SecretField = defaultStringEmpty(opts.SecretField, defaultSecretField)
	opts.DefaultSecret = defaultStringEmpty(opts.DefaultSecret, defaultSecret)

	client := opts.Client
	if client == nil {
		client = newClient(opts.ResponseHeaderTimeout)
	}

	var recorder metrics.Recorder = metrics.Noop{}
	if opts.Metrics != nil {
		recorder = opts.Metrics
	}

	return &Gateway{
		client:  client,
		metrics: recorder,
		log:     log,
		config:  opts,
	}
}

// newClient builds a client with no overall timeout. The header timeout bounds the
// wait for the downstream to answer but never an active stream.
func newClient(responseHeaderTimeout time.Duration) *http.Client {
	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Client{}
	}

	cloned := transport.Clone()
	cloned.ResponseHeaderTimeout = responseHeaderTimeout

	return &http.Client{Transport: cloned}
}

// ProtectedName returns the name the downstream gives a protected copy of name.
func ProtectedName(name string) string {
	return protectedPrefix + name
}

// Protect sends req.Input to the downstream service and relays the reply to w. The
// input and the reserved output are released exactly once when the relay reaches a
// terminal state, whether it ended, failed, or never started.
func (gw *Gateway) Protect(ctx context.Context, w http.ResponseWriter, req Request) error {
	if req.Input == nil {
		return ErrInputRequired
	}

	secret := req.Secret
	if secret == "" {
		secret = gw.config.DefaultSecret
	}

	releasable := []*artifact.Artifact{req.Input}
	if req.Scope != nil {
		releasable = append(releasable, req.Scope.Reserve(ProtectedName(req.Input.Name())))
	}

	bodyReader, bodyWriter := io.Pipe()
	form := multipart.NewWriter(bodyWriter)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)

		writeErr := gw.writeForm(form, req.Input, secret)
		bodyWriter.CloseWithError(writeErr)
	}()

	stream := newRelay(func() {
		// Unblock the form writer if the downstream stopped reading early.
		bodyReader.CloseWithError(errRequestFinished)
		<-writerDone

		for _, a := range releasable {
			a.Release()
		}
	})

	resp, doErr := gw.send(ctx, bodyReader, form.FormDataContentType())
	if doErr != nil {
		stream.finish(stateFailed)

		return fmt.Errorf("%w: %w", ErrDownstreamUnreachable, doErr)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && gw.log != nil {
			gw.log.Warn("Failed to close downstream response body: %v", closeErr)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil && gw.log != nil {
			gw.log.Warn("Failed to read downstream error body (status %d): %v", resp.StatusCode, readErr)
		}

		stream.finish(stateFailed)

		return &DownstreamError{Body: strings.TrimSpace(string(body)), Status: resp.StatusCode}
	}

	copyResponseHeaders(w.Header(), resp.Header, ProtectedName(req.Input.Name()))
	w.WriteHeader(resp.StatusCode)

	relayErr := stream.pump(w, resp.Body, gw.metrics.AddRelayedBytes)
	if relayErr != nil {
		if gw.log != nil {
			gw.log.Error("Relay of '%s' failed after %d bytes: %v", req.Input.Name(), stream.relayed, relayErr)
		}

		return fmt.Errorf("%w: %w", ErrRelayInterrupted, relayErr)
	}

	return nil
}

func (gw *Gateway) send(ctx context.Context, body io.Reader, contentType string) (*http.Response, error) {
	httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, gw.config.DownstreamURL, body)
	if reqErr != nil {
		return nil, fmt.Errorf("build downstream request: %w", reqErr)
	}

	httpReq.Header.Set("Content-Type", contentType)

	resp, doErr := gw.client.Do(httpReq)
	if doErr != nil {
		return nil, fmt.Errorf("post %s: %w", gw.config.DownstreamURL, doErr)
	}

	return resp, nil
}

// writeForm streams the file part and the secret field into form.
func (gw *Gateway) writeForm(form *multipart.Writer, input *artifact.Artifact, secret string) error {
	file, openErr := input.Open()
	if openErr != nil {
		return openErr
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && gw.log != nil {
			gw.log.Warn("Failed to close '%s': %v", input.Path(), closeErr)
		}
	}()

	part, partErr := form.CreateFormFile(gw.config.FileField, input.Name())
	if partErr != nil {
		return fmt.Errorf("create file part: %w", partErr)
	}

	_, copyErr := io.Copy(part, file)
	if copyErr != nil {
		return fmt.Errorf("copy file part: %w", copyErr)
	}

	fieldErr := form.WriteField(gw.config.SecretField, secret)
	if fieldErr != nil {
		return fmt.Errorf("write secret field: %w", fieldErr)
	}

	closeErr := form.Close()
	if closeErr != nil {
		return fmt.Errorf("close form: %w", closeErr)
	}

	return nil
}

func copyResponseHeaders(dst, src http.Header, fallbackName string) {
	contentType := src.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	dst.Set("Content-Type", contentType)

	disposition := src.Get("Content-Disposition")
	if disposition == "" {
		disposition = fmt.Sprintf("attachment; filename=%q", fallbackName)
	}

	dst.Set("Content-Disposition", disposition)
}

func defaultStringEmpty(v, def string) string {
	if v == "" {
		return def
	}

	return v
}
