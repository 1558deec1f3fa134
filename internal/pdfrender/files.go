package pdfrender

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// defaultDirMode is the default permissions for created directories.
	defaultDirMode = 0o750
	// sourceExtension is the extension of documents picked up by a batch run.
	sourceExtension = ".docx"
)

// DiscoverDocuments finds all Word documents in a given directory.
// It performs a case-insensitive search and does not recurse into subdirectories.
// Word lock files (~$name.docx) are skipped.
func DiscoverDocuments(dirPath string) ([]string, error) {
	dirEntries, readErr := os.ReadDir(dirPath)
	if readErr != nil {
		return nil, fmt.Errorf(
			"could not read directory %s: %w",
			dirPath,
			readErr,
		)
	}

	var sourcePaths []string

	for _, entry := range dirEntries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "~$") {
			continue
		}

		if strings.HasSuffix(strings.ToLower(name), sourceExtension) {
			sourcePaths = append(sourcePaths, filepath.Join(dirPath, name))
		}
	}

	return sourcePaths, nil
}

// ensureOutputDirectory creates the batch output directory.
func ensureOutputDirectory(outputPath string) (string, error) {
	mkdirErr := os.MkdirAll(outputPath, defaultDirMode)
	if mkdirErr != nil {
		return "", fmt.Errorf(
			"failed to create output directory %s: %w",
			outputPath,
			mkdirErr,
		)
	}

	return outputPath, nil
}

// outputPathFor maps 'in/mydoc.docx' to '<outputDir>/mydoc.pdf'.
func outputPathFor(outputDir, sourcePath string) string {
	return filepath.Join(outputDir, OutputName(filepath.Base(sourcePath)))
}
