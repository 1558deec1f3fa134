// Package pdfrender renders extracted document text onto fixed-size PDF pages, both
// for single requests and for offline batches of Word documents.
package pdfrender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/book-expert/logger"
	"github.com/cheggaaa/pb/v3"

	"github.com/book-expert/doc-gateway-service/internal/docx"
)

var (
	// ErrInputPathRequired is returned when input path is not provided.
	ErrInputPathRequired = errors.New("input path is required")
	// ErrOutputPathRequired is returned when output path is not provided.
	ErrOutputPathRequired = errors.New("output path is required")
)

// TextExtractor turns a source document on disk into raw text.
// Tests substitute it to avoid building real Word packages.
type TextExtractor interface {
	ExtractFile(path string) (string, error)
}

// docxExtractor is the production TextExtractor backed by the docx package.
type docxExtractor struct{}

func (docxExtractor) ExtractFile(path string) (string, error) {
	return docx.ExtractFile(path)
}

// Options holds all configurable parameters for a Processor.
type Options struct {
	ProgressBarOutput io.Writer
	InputPath         string
	OutputPath        string
	Geometry          Geometry
	Workers           int
}

// Summary counts the outcome of a batch run.
type Summary struct {
	Converted int
	Failed    int
}

// Processor converts every Word document in a directory into a PDF.
type Processor struct {
	extractor TextExtractor
	log       *logger.Logger
	config    Options
}

// NewProcessor creates and initializes a new Processor with the given options and logger.
// It sets sensible defaults for any zero-value fields in the Options struct.
func NewProcessor(opts *Options, log *logger.Logger) *Processor {
	applyDefaultOptions(opts)

	return &Processor{
		config:    *opts,
		log:       log,
		extractor: docxExtractor{},
	}
}

// applyDefaultOptions fills zero-value fields in Options with sensible defaults.
func applyDefaultOptions(opts *Options) {
	opts.Workers = defaultIntNonPositive(opts.Workers, runtime.NumCPU())
	opts.Geometry = opts.Geometry.resolved()
	opts.ProgressBarOutput = defaultWriterNil(opts.ProgressBarOutput, os.Stdout)
}

func defaultIntNonPositive(v, def int) int {
	if v <= 0 {
		return def
	}

	return v
}

func defaultFloatNonPositive(v, def float64) float64 {
	if v <= 0 {
		return def
	}

	return v
}

func defaultWriterNil(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}

	return w
}

// Process is the main entry point for a batch conversion. It discovers Word documents
// and converts them concurrently. A failure on one document does not stop the others.
func (processor *Processor) Process(ctx context.Context) (Summary, error) {
	err := processor.validateConfig()
	if err != nil {
		return Summary{Converted: 0, Failed: 0}, err
	}

	sourcePaths, err := processor.discoverInputDocuments()
	if err != nil {
		return Summary{Converted: 0, Failed: 0}, err
	}

	outputDir, err := ensureOutputDirectory(processor.config.OutputPath)
	if err != nil {
		return Summary{Converted: 0, Failed: 0}, err
	}

	processor.log.Info("Found %d document(s) to convert.", len(sourcePaths))

	return processor.processAllDocuments(ctx, sourcePaths, outputDir), nil
}

// discoverInputDocuments discovers input documents and validates non-empty result.
func (processor *Processor) discoverInputDocuments() ([]string, error) {
	sourcePaths, discoveryErr := DiscoverDocuments(processor.config.InputPath)
	if discoveryErr != nil {
		return nil, fmt.Errorf("failed to discover documents: %w", discoveryErr)
	}

	if len(sourcePaths) == 0 {
		return nil, fmt.Errorf(
			"no .docx files found in %s: %w",
			processor.config.InputPath,
			os.ErrNotExist,
		)
	}

	return sourcePaths, nil
}

// validateConfig checks if the essential configuration options have been provided.
func (processor *Processor) validateConfig() error {
	if processor.config.InputPath == "" {
		return ErrInputPathRequired
	}

	if processor.config.OutputPath == "" {
		return ErrOutputPathRequired
	}

	return nil
}

// processAllDocuments fans the documents out to the worker pool behind a progress bar.
func (processor *Processor) processAllDocuments(
	ctx context.Context,
	sourcePaths []string,
	outputDir string,
) Summary {
	mainProgressBar := pb.New(len(sourcePaths)).
		SetTemplateString(`{{ bar . " " "━" "━" " " " "}} {{percent .}} {{rtime .}}`).
		SetWriter(processor.config.ProgressBarOutput).
		Start()
	defer mainProgressBar.Finish()

	pool := newDocumentPool(processor, outputDir, mainProgressBar)

	return pool.run(ctx, sourcePaths)
}

// processOneDocument converts a single Word document. The PDF is written to a
// temporary file first and renamed into place, so a failure never leaves a partial
// output behind.
func (processor *Processor) processOneDocument(sourcePath, outputPath string) error {
	text, extractErr := processor.extractor.ExtractFile(sourcePath)
	if extractErr != nil {
		return fmt.Errorf("could not extract text: %w", extractErr)
	}

	doc := Paginate(docx.Lines(text), processor.config.Geometry)
	if doc.Truncated {
		processor.log.Warn("%s exceeds one page and was truncated", filepath.Base(sourcePath))
	}

	tmpFile, createErr := os.CreateTemp(filepath.Dir(outputPath), ".docx2pdf-*.tmp")
	if createErr != nil {
		return fmt.Errorf("could not create temp output: %w", createErr)
	}

	tmpPath := tmpFile.Name()
	defer func() {
		if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			processor.log.Warn("Failed to remove temp output '%s': %v", tmpPath, removeErr)
		}
	}()

	serializeErr := Serialize(doc, tmpFile)
	closeErr := tmpFile.Close()

	if writeErr := errors.Join(serializeErr, closeErr); writeErr != nil {
		return fmt.Errorf("could not write %s: %w", filepath.Base(outputPath), writeErr)
	}

	renameErr := os.Rename(tmpPath, outputPath)
	if renameErr != nil {
		return fmt.Errorf("could not move output into place: %w", renameErr)
	}

	return nil
}
