package pdfrender

// Exported test-only accessors for unexported functions and fields.
// This file is compiled only during tests and does not affect the public API.

// ConfigForTest returns a copy of the processor configuration for assertions in tests.
func (processor *Processor) ConfigForTest() Options { return processor.config }

// Test-only helpers to access unexported methods for white-box tests from external
// package.
func (processor *Processor) ValidateConfigForTest() error { return processor.validateConfig() }

func (processor *Processor) DiscoverInputDocumentsForTest() ([]string, error) {
	return processor.discoverInputDocuments()
}

// Allow tests to inject a fake extractor.
func (processor *Processor) SetExtractorForTest(extractor TextExtractor) {
	processor.extractor = extractor
}

func (processor *Processor) ProcessOneDocumentForTest(sourcePath, outputPath string) error {
	return processor.processOneDocument(sourcePath, outputPath)
}

// ResolvedForTest exposes Geometry.resolved.
func ResolvedForTest(g Geometry) Geometry { return g.resolved() }
