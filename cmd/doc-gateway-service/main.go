// This file orchestrates the document gateway: configuration, logging, the temporary
// artifact workspace, optional event publishing and the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"

	"github.com/book-expert/doc-gateway-service/internal/artifact"
	"github.com/book-expert/doc-gateway-service/internal/config"
	"github.com/book-expert/doc-gateway-service/internal/events"
	"github.com/book-expert/doc-gateway-service/internal/gateway"
	"github.com/book-expert/doc-gateway-service/internal/metrics"
	"github.com/book-expert/doc-gateway-service/internal/pdfrender"
	"github.com/book-expert/doc-gateway-service/internal/server"
)

const serviceName = "doc-gateway-service"

// flags represents the command-line arguments.
type flags struct {
	addr          string
	uploadDir     string
	downstreamURL string
	natsURL       string
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

// run wires every component and serves until ctx is cancelled.
func run(ctx context.Context) error {
	cfg, projectRoot, loadErr := config.FindAndLoad()
	if loadErr != nil {
		return loadErr
	}

	mergeConfigAndFlags(&cfg, parseFlags())

	appLogger, loggerErr := config.SetupLogger(cfg.LogDir(projectRoot, serviceName))
	if loggerErr != nil {
		return fmt.Errorf("could not set up logger: %w", loggerErr)
	}

	defer func() {
		if closeErr := appLogger.Close(); closeErr != nil {
			log.Printf("Warning: failed to close app logger: %v", closeErr)
		}
	}()

	recorder := metrics.NewProm(cfg.Metrics.Namespace, nil)

	workspace, wsErr := artifact.NewWorkspace(
		cfg.Server.UploadDir,
		appLogger,
		artifact.WithReleaseHook(func(releaseErr error) {
			recorder.IncArtifactReleases(metrics.ReleaseOutcome(releaseErr))
		}),
	)
	if wsErr != nil {
		return fmt.Errorf("failed to prepare upload workspace: %w", wsErr)
	}

	publisher, closePublisher, pubErr := newPublisher(ctx, &cfg, appLogger)
	if pubErr != nil {
		return pubErr
	}
	defer closePublisher()

	srv := server.New(server.Dependencies{
		Workspace: workspace,
		Renderer: pdfrender.NewRenderer(pdfrender.Geometry{
			Width:    cfg.Render.PageWidth,
			Height:   cfg.Render.PageHeight,
			Margin:   cfg.Render.Margin,
			FontSize: cfg.Render.FontSize,
		}, appLogger),
		Gateway: gateway.New(gateway.Options{
			Client:                nil,
			Metrics:               recorder,
			DownstreamURL:         cfg.Protect.DownstreamURL,
			FileField:             cfg.Protect.FileField,
			SecretField:           cfg.Protect.SecretField,
			DefaultSecret:         cfg.Protect.DefaultSecret,
			ResponseHeaderTimeout: cfg.ResponseHeaderTimeout(),
		}, appLogger),
		Metrics:        recorder,
		MetricsHandler: recorder.Handler(),
		Publisher:      publisher,
	}, server.Options{
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		ProtectFileFields:   nil,
		ProtectSecretFields: nil,
		MaxUploadBytes:      cfg.MaxUploadBytes(),
	}, appLogger)

	appLogger.Info("Protect requests are forwarded to %s", cfg.Protect.DownstreamURL)

	return srv.Run(ctx, cfg.Server.Addr)
}

// newPublisher connects to NATS when a URL is configured and falls back to a no-op.
func newPublisher(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (events.Publisher, func(), error) {
	if cfg.NATS.URL == "" {
		appLogger.Info("NATS URL not configured; document events are disabled")

		return events.Noop{}, func() {}, nil
	}

	publisher, closeConn, connErr := events.Connect(ctx, cfg.NATS.URL, cfg.NATS.StreamName, cfg.NATS.ProcessedSubject)
	if connErr != nil {
		return nil, nil, fmt.Errorf("failed to set up event publishing: %w", connErr)
	}

	appLogger.Info("Publishing document events to '%s'", cfg.NATS.ProcessedSubject)

	return publisher, closeConn, nil
}

// parseFlags defines and parses command-line flags.
func parseFlags() flags {
	var flagsVar flags
	flag.StringVar(&flagsVar.addr, "addr", "", "Listen address, e.g. :8080.")
	flag.StringVar(&flagsVar.uploadDir, "upload-dir", "", "Directory for temporary uploads.")
	flag.StringVar(&flagsVar.downstreamURL, "downstream", "", "URL of the PDF protection service.")
	flag.StringVar(&flagsVar.natsURL, "nats", "", "NATS server URL; empty disables events.")
	flag.Parse()

	return flagsVar
}

// mergeConfigAndFlags applies command-line flags on top of the config file settings.
func mergeConfigAndFlags(cfg *config.Config, flgs flags) {
	if flgs.addr != "" {
		cfg.Server.Addr = flgs.addr
	}

	if flgs.uploadDir != "" {
		cfg.Server.UploadDir = flgs.uploadDir
	}

	if flgs.downstreamURL != "" {
		cfg.Protect.DownstreamURL = flgs.downstreamURL
	}

	if flgs.natsURL != "" {
		cfg.NATS.URL = flgs.natsURL
	}
}
