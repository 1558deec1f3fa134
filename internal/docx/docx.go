// Package docx extracts raw text from Word (.docx) documents. Only the linear text of
// the main document part is read; styling, images and tables are flattened or dropped.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrUnsupportedFormat is returned when the input is not a readable Word document.
var ErrUnsupportedFormat = errors.New("unsupported document format")

const (
	documentPart = "word/document.xml"
	wordMLSpace  = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	// paragraphSeparator matches the raw-text convention of a blank line between
	// paragraphs.
	paragraphSeparator = "\n\n"

	// maxDocumentPartBytes caps the decompressed size of the main document part.
	maxDocumentPartBytes = 64 << 20
)

// ExtractFile extracts the raw text of the .docx file at path.
func ExtractFile(path string) (string, error) {
	file, openErr := os.Open(path)
	if openErr != nil {
		return "", fmt.Errorf("failed to open document: %w", openErr)
	}
	defer file.Close()

	info, statErr := file.Stat()
	if statErr != nil {
		return "", fmt.Errorf("failed to stat document: %w", statErr)
	}

	return Extract(file, info.Size())
}

// Extract reads a .docx package from r and returns its paragraphs separated by a
// blank line. Tabs and line breaks inside a paragraph are preserved.
func Extract(r io.ReaderAt, size int64) (string, error) {
	archive, zipErr := zip.NewReader(r, size)
	if zipErr != nil {
		return "", fmt.Errorf("%w: not a zip package: %w", ErrUnsupportedFormat, zipErr)
	}

	part, findErr := findPart(archive, documentPart)
	if findErr != nil {
		return "", findErr
	}

	body, openErr := part.Open()
	if openErr != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrUnsupportedFormat, documentPart, openErr)
	}
	defer body.Close()

	paragraphs, parseErr := parseParagraphs(io.LimitReader(body, maxDocumentPartBytes))
	if parseErr != nil {
		return "", parseErr
	}

	return strings.Join(paragraphs, paragraphSeparator), nil
}

// Lines splits extracted text into the lines handed to the renderer.
func Lines(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")

	return strings.Split(normalized, "\n")
}

func findPart(archive *zip.Reader, name string) (*zip.File, error) {
	for _, file := range archive.File {
		if file.Name == name {
			return file, nil
		}
	}

	return nil, fmt.Errorf("%w: missing %s", ErrUnsupportedFormat, name)
}

// parseParagraphs walks the WordprocessingML token stream and collects the text
// runs of every w:p element. Tabs and breaks count only inside a w:r; the
// w:tab elements under w:pPr/w:tabs define tab stops, not content.
func parseParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    bytes.Buffer
		inText     bool
		depth      int
		runDepth   int
	)

	for {
		token, tokenErr := decoder.Token()
		if errors.Is(tokenErr, io.EOF) {
			break
		}

		if tokenErr != nil {
			return nil, fmt.Errorf("%w: malformed document xml: %w", ErrUnsupportedFormat, tokenErr)
		}

		switch element := token.(type) {
		case xml.StartElement:
			if element.Name.Space != wordMLSpace {
				continue
			}

			switch element.Name.Local {
			case "p":
				if depth == 0 {
					current.Reset()
				}
				depth++
			case "r":
				runDepth++
			case "t":
				inText = true
			case "tab":
				if runDepth > 0 {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if runDepth > 0 {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if element.Name.Space != wordMLSpace {
				continue
			}

			switch element.Name.Local {
			case "r":
				runDepth--
			case "t":
				inText = false
			case "p":
				depth--
				if depth == 0 {
					paragraphs = append(paragraphs, current.String())
				}
			}
		case xml.CharData:
			if inText {
				current.Write(element)
			}
		}
	}

	return paragraphs, nil
}
