package pdfrender

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/doc-gateway-service/internal/artifact"
)

// outputExtension replaces the source document's extension.
const outputExtension = ".pdf"

// Renderer turns extracted text into a PDF artifact for a single request.
type Renderer struct {
	log      *logger.Logger
	geometry Geometry
}

// NewRenderer creates a Renderer. Zero geometry fields fall back to the A4 defaults.
func NewRenderer(geometry Geometry, log *logger.Logger) *Renderer {
	return &Renderer{
		log:      log,
		geometry: geometry.resolved(),
	}
}

// Geometry returns the resolved page geometry.
func (renderer *Renderer) Geometry() Geometry { return renderer.geometry }

// RenderToArtifact lays out lines, serializes the page and stores the result as a new
// artifact in scope, named after originalName with a .pdf extension.
func (renderer *Renderer) RenderToArtifact(
	ctx context.Context,
	lines []string,
	scope *artifact.Scope,
	originalName string,
) (*artifact.Artifact, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("render cancelled: %w", ctxErr)
	}

	doc := Paginate(lines, renderer.geometry)
	if doc.Truncated && renderer.log != nil {
		renderer.log.Warn(
			"Document '%s' exceeds one page; truncated after %d of %d lines",
			originalName,
			len(doc.Pages[0].Texts)-1,
			len(lines),
		)
	}

	output, writeErr := scope.Write(OutputName(originalName), func(w io.Writer) error {
		return Serialize(doc, w)
	})
	if writeErr != nil {
		return nil, fmt.Errorf("failed to write rendered document: %w", writeErr)
	}

	return output, nil
}

// OutputName derives the download name: the original stem with a .pdf extension.
func OutputName(originalName string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(originalName), "\\", "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	if stem == "" || stem == "." || stem == "/" {
		stem = "document"
	}

	return stem + outputExtension
}
