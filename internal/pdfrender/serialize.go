package pdfrender

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// ErrSerialization is returned when the PDF cannot be assembled or written.
var ErrSerialization = errors.New("pdf serialization failed")

const (
	fontFamily  = "Helvetica"
	tabAsSpaces = "    "
	creator     = "doc-gateway-service"
)

// Serialize writes doc to w as a PDF file. Text is set in the Helvetica core font in
// black; coordinates are taken as-is from the layout. Text the core font cannot
// encode fails the whole document instead of being substituted.
func Serialize(doc Document, w io.Writer) error {
	if len(doc.Pages) == 0 {
		return fmt.Errorf("%w: document has no pages", ErrSerialization)
	}

	encodeErr := checkEncodable(doc)
	if encodeErr != nil {
		return encodeErr
	}

	first := doc.Pages[0]
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		SizeStr:        "",
		Size:           fpdf.SizeType{Wd: first.Width, Ht: first.Height},
		FontDirStr:     "",
	})
	pdf.SetCreator(creator, true)
	pdf.SetCompression(true)
	pdf.SetAutoPageBreak(false, 0)

	translate := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range doc.Pages {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: page.Width, Ht: page.Height})
		pdf.SetTextColor(0, 0, 0)

		for _, text := range page.Texts {
			pdf.SetFont(fontFamily, "", text.Size)
			// fpdf measures y from the top edge; the layout measures from the bottom.
			pdf.Text(text.X, page.Height-text.Y, translate(expandTabs(text.Text)))
		}
	}

	if pdf.Err() {
		return fmt.Errorf("%w: %w", ErrSerialization, pdf.Error())
	}

	outputErr := pdf.Output(w)
	if outputErr != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, outputErr)
	}

	return nil
}

// checkEncodable reports the first line holding a rune outside WinAnsi
// (cp1252), the only encoding the core fonts carry.
func checkEncodable(doc Document) error {
	for pageIndex, page := range doc.Pages {
		for _, text := range page.Texts {
			for _, char := range text.Text {
				_, ok := charmap.Windows1252.EncodeRune(char)
				if !ok {
					return fmt.Errorf("%w: page %d: %q cannot be encoded in %s (character %U)",
						ErrSerialization, pageIndex+1, text.Text, fontFamily, char)
				}
			}
		}
	}

	return nil
}

func expandTabs(line string) string {
	return strings.ReplaceAll(line, "\t", tabAsSpaces)
}
