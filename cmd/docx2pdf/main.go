// Command docx2pdf converts every Word document in a directory into a one-page PDF.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/doc-gateway-service/internal/config"
	"github.com/book-expert/doc-gateway-service/internal/pdfrender"
)

const toolName = "docx2pdf"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The `run` function contains the core application logic.
	// We call it and then os.Exit to ensure deferred functions are run correctly.
	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main logic function, separated from main to allow for easier testing and
// clean exit handling.
func run(ctx context.Context) error {
	cfg, projectRoot, err := config.FindAndLoad()
	if err != nil {
		return err
	}

	flgs := parseFlags()
	options := mergeConfigAndFlags(&cfg, flgs)

	return processWithLogger(ctx, &options, cfg.LogDir(projectRoot, toolName))
}

// flags represents the command-line arguments.
type flags struct {
	inputPath  string
	outputPath string
	workers    int
}

// parseFlags defines and parses command-line flags.
func parseFlags() flags {
	var flagsVar flags
	flag.StringVar(
		&flagsVar.inputPath,
		"input",
		"",
		"Input directory for .docx files (required).",
	)
	flag.StringVar(
		&flagsVar.outputPath,
		"output",
		"",
		"Output directory for PDF files (required).",
	)
	flag.IntVar(&flagsVar.workers, "workers", 0, "Number of concurrent workers.")
	flag.Parse()

	return flagsVar
}

// mergeConfigAndFlags combines settings from the config file and command-line flags.
// Flags take precedence over the config file settings.
func mergeConfigAndFlags(cfg *config.Config, flgs flags) pdfrender.Options {
	opts := pdfrender.Options{
		ProgressBarOutput: nil,
		InputPath:         cfg.Paths.InputDir,
		OutputPath:        cfg.Paths.OutputDir,
		Geometry: pdfrender.Geometry{
			Width:    cfg.Render.PageWidth,
			Height:   cfg.Render.PageHeight,
			Margin:   cfg.Render.Margin,
			FontSize: cfg.Render.FontSize,
		},
		Workers: cfg.Render.Workers,
	}

	if flgs.inputPath != "" {
		opts.InputPath = flgs.inputPath
	}

	if flgs.outputPath != "" {
		opts.OutputPath = flgs.outputPath
	}

	if flgs.workers > 0 {
		opts.Workers = flgs.workers
	}

	return opts
}

// processWithLogger sets up the logger and runs the processor.
func processWithLogger(
	ctx context.Context,
	options *pdfrender.Options,
	logDir string,
) error {
	log, err := config.SetupLogger(logDir)
	if err != nil {
		return fmt.Errorf("could not set up logger: %w", err)
	}

	defer func() {
		cerr := log.Close()
		if cerr != nil {
			_, _ = fmt.Fprintf(
				os.Stderr,
				"failed to close logger: %v\n",
				cerr,
			)
		}
	}()

	processor := pdfrender.NewProcessor(options, log)

	summary, procErr := processor.Process(ctx)
	if procErr != nil {
		return fmt.Errorf("document conversion failed: %w", procErr)
	}

	log.Info("Converted %d document(s), %d failed.", summary.Converted, summary.Failed)

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d document(s) failed", summary.Failed, summary.Converted+summary.Failed)
	}

	return nil
}
