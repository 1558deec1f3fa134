package docx_test

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/doc-gateway-service/internal/docx"
)

const documentTemplate = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>%s</w:body>
</w:document>`

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()

	var buf bytes.Buffer

	writer := zip.NewWriter(&buf)

	contentTypes, ctErr := writer.Create("[Content_Types].xml")
	require.NoError(t, ctErr)
	_, writeErr := contentTypes.Write([]byte(`<Types/>`))
	require.NoError(t, writeErr)

	document, docErr := writer.Create("word/document.xml")
	require.NoError(t, docErr)
	_, writeErr = document.Write([]byte(replaceBody(body)))
	require.NoError(t, writeErr)

	require.NoError(t, writer.Close())

	return buf.Bytes()
}

func replaceBody(body string) string {
	return string(bytes.Replace([]byte(documentTemplate), []byte("%s"), []byte(body), 1))
}

func TestExtract_Paragraphs(t *testing.T) {
	t.Parallel()

	data := buildDocx(t,
		`<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>column</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Line</w:t><w:br/><w:t>break</w:t></w:r></w:p>`)

	text, extractErr := docx.Extract(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, extractErr)

	assert.Equal(t, "Hello world\n\nSecond\tcolumn\n\nLine\nbreak", text)
	assert.Equal(
		t,
		[]string{"Hello world", "", "Second\tcolumn", "", "Line", "break"},
		docx.Lines(text),
	)
}

func TestExtract_EmptyParagraphsAndDeletedText(t *testing.T) {
	t.Parallel()

	data := buildDocx(t,
		`<w:p/>`+
			`<w:p><w:r><w:delText>removed</w:delText></w:r><w:r><w:t>kept</w:t></w:r></w:p>`)

	text, extractErr := docx.Extract(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, extractErr)

	assert.Equal(t, "\n\nkept", text)
}

func TestExtract_IgnoresTabStopDefinitions(t *testing.T) {
	t.Parallel()

	data := buildDocx(t,
		`<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/><w:tab w:val="right" w:pos="9000"/></w:tabs></w:pPr>`+
			`<w:r><w:t>Heading</w:t></w:r></w:p>`+
			`<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr>`+
			`<w:r><w:rPr><w:b/></w:rPr><w:t>Name</w:t><w:tab/><w:t>Value</w:t></w:r></w:p>`)

	text, extractErr := docx.Extract(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, extractErr)

	assert.Equal(t, "Heading\n\nName\tValue", text)
}

func TestExtract_RejectsNonZip(t *testing.T) {
	t.Parallel()

	data := []byte("%PDF-1.4 not a word document")

	_, extractErr := docx.Extract(bytes.NewReader(data), int64(len(data)))
	require.ErrorIs(t, extractErr, docx.ErrUnsupportedFormat)
}

func TestExtract_RejectsZipWithoutDocument(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	writer := zip.NewWriter(&buf)
	_, createErr := writer.Create("readme.txt")
	require.NoError(t, createErr)
	require.NoError(t, writer.Close())

	_, extractErr := docx.Extract(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.ErrorIs(t, extractErr, docx.ErrUnsupportedFormat)
}

func TestExtract_RejectsMalformedXML(t *testing.T) {
	t.Parallel()

	data := buildDocx(t, `<w:p><w:r><w:t>unterminated`)

	_, extractErr := docx.Extract(bytes.NewReader(data), int64(len(data)))
	require.ErrorIs(t, extractErr, docx.ErrUnsupportedFormat)
}

func TestExtractFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "doc.docx")
	require.NoError(
		t,
		os.WriteFile(path, buildDocx(t, `<w:p><w:r><w:t>from disk</w:t></w:r></w:p>`), 0o600),
	)

	text, extractErr := docx.ExtractFile(path)
	require.NoError(t, extractErr)
	assert.Equal(t, "from disk", text)

	_, missingErr := docx.ExtractFile(filepath.Join(t.TempDir(), "missing.docx"))
	require.Error(t, missingErr)
}

func TestLines_NormalizesCRLF(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b"}, docx.Lines("a\r\nb"))
}
