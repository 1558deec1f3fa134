// This file runs the PDF protection service the gateway forwards protect requests to.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/book-expert/doc-gateway-service/internal/artifact"
	"github.com/book-expert/doc-gateway-service/internal/config"
	"github.com/book-expert/doc-gateway-service/internal/metrics"
	"github.com/book-expert/doc-gateway-service/internal/protector"
)

const (
	serviceName       = "pdf-protector"
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// flags represents the command-line arguments.
type flags struct {
	addr      string
	uploadDir string
}

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	runErr := run(ctx)
	if runErr != nil {
		log.Printf("Fatal application error: %v", runErr)
		os.Exit(1)
	}

	log.Println("Application shut down gracefully.")
}

func run(ctx context.Context) error {
	cfg, projectRoot, loadErr := config.FindAndLoad()
	if loadErr != nil {
		return loadErr
	}

	addr, uploadDir := mergeConfigAndFlags(&cfg, parseFlags())

	appLogger, loggerErr := config.SetupLogger(cfg.LogDir(projectRoot, serviceName))
	if loggerErr != nil {
		return fmt.Errorf("could not set up logger: %w", loggerErr)
	}

	defer func() {
		if closeErr := appLogger.Close(); closeErr != nil {
			log.Printf("Warning: failed to close app logger: %v", closeErr)
		}
	}()

	recorder := metrics.NewProm("pdf_protector", nil)

	workspace, wsErr := artifact.NewWorkspace(
		uploadDir,
		appLogger,
		artifact.WithReleaseHook(func(releaseErr error) {
			recorder.IncArtifactReleases(metrics.ReleaseOutcome(releaseErr))
		}),
	)
	if wsErr != nil {
		return fmt.Errorf("failed to prepare upload workspace: %w", wsErr)
	}

	service := protector.New(workspace, protector.Options{
		Metrics:        recorder,
		FileField:      cfg.Protect.FileField,
		SecretField:    cfg.Protect.SecretField,
		DefaultSecret:  cfg.Protect.DefaultSecret,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}, appLogger)

	srv := &http.Server{
		Addr:              addr,
		Handler:           service.Handler(recorder.Handler()),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	appLogger.Info("PDF protector listening on %s", addr)

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	shutdownErr := srv.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		return fmt.Errorf("http server shutdown: %w", shutdownErr)
	}

	return nil
}

// parseFlags defines and parses command-line flags.
func parseFlags() flags {
	var flagsVar flags
	flag.StringVar(&flagsVar.addr, "addr", "", "Listen address, e.g. :5000.")
	flag.StringVar(&flagsVar.uploadDir, "upload-dir", "", "Directory for temporary files.")
	flag.Parse()

	return flagsVar
}

// mergeConfigAndFlags returns the listen address and workspace directory. Flags take
// precedence; the workspace defaults to a sibling of the gateway's.
func mergeConfigAndFlags(cfg *config.Config, flgs flags) (string, string) {
	addr := cfg.Server.ProtectorAddr
	if flgs.addr != "" {
		addr = flgs.addr
	}

	uploadDir := filepath.Join(filepath.Dir(cfg.Server.UploadDir), serviceName)
	if flgs.uploadDir != "" {
		uploadDir = flgs.uploadDir
	}

	return addr, uploadDir
}
