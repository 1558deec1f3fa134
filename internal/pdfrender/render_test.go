package pdfrender_test

import (
	"bytes"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rpdf "rsc.io/pdf"

	"github.com/book-expert/doc-gateway-service/internal/pdfrender"
)

func numberedLines(count int) []string {
	lines := make([]string, count)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
	}

	return lines
}

func TestNewProcessor_Defaults(t *testing.T) {
	t.Parallel()

	log, loggerErr := logger.New(t.TempDir(), "test.log")
	require.NoError(t, loggerErr)

	t.Run("Zero values should default correctly", func(t *testing.T) {
		t.Parallel()

		processor := pdfrender.NewProcessor(&pdfrender.Options{
			ProgressBarOutput: nil,
			InputPath:         "",
			OutputPath:        "",
			Geometry:          pdfrender.Geometry{Width: 0, Height: 0, Margin: 0, FontSize: 0},
			Workers:           0,
		}, log)
		cfg := processor.ConfigForTest()
		assert.Equal(t, runtime.NumCPU(), cfg.Workers)
		assert.Equal(t, pdfrender.DefaultGeometry(), cfg.Geometry)
		assert.NotNil(t, cfg.ProgressBarOutput)
	})

	t.Run("Custom values should be preserved", func(t *testing.T) {
		t.Parallel()

		opts := pdfrender.Options{
			ProgressBarOutput: nil,
			InputPath:         "",
			OutputPath:        "",
			Geometry:          pdfrender.Geometry{Width: 612, Height: 792, Margin: 72, FontSize: 10},
			Workers:           4,
		}
		processor := pdfrender.NewProcessor(&opts, log)
		cfg := processor.ConfigForTest()
		assert.Equal(t, 4, cfg.Workers)
		assert.InDelta(t, 612.0, cfg.Geometry.Width, 0.001)
		assert.InDelta(t, 72.0, cfg.Geometry.Margin, 0.001)
	})
}

func TestGeometry_Defaults(t *testing.T) {
	t.Parallel()

	g := pdfrender.DefaultGeometry()
	assert.InDelta(t, 595.28, g.Width, 0.001)
	assert.InDelta(t, 841.89, g.Height, 0.001)
	assert.InDelta(t, 40.0, g.Margin, 0.001)
	assert.InDelta(t, 12.0, g.FontSize, 0.001)
	assert.InDelta(t, 16.0, g.LineHeight(), 0.001)

	partial := pdfrender.ResolvedForTest(pdfrender.Geometry{Width: 0, Height: 0, Margin: 20, FontSize: -1})
	assert.InDelta(t, 20.0, partial.Margin, 0.001)
	assert.InDelta(t, 12.0, partial.FontSize, 0.001)
}

func TestPaginate_ThreeLines(t *testing.T) {
	t.Parallel()

	g := pdfrender.DefaultGeometry()
	doc := pdfrender.Paginate([]string{"alpha", "beta", "gamma"}, g)

	require.Len(t, doc.Pages, 1)
	assert.False(t, doc.Truncated)

	texts := doc.Pages[0].Texts
	require.Len(t, texts, 3)

	for i, want := range []string{"alpha", "beta", "gamma"} {
		assert.Equal(t, want, texts[i].Text)
		assert.InDelta(t, g.Margin, texts[i].X, 0.001)
		assert.InDelta(t, g.Height-g.Margin-float64(i)*(g.FontSize+4), texts[i].Y, 0.001)
		assert.InDelta(t, g.FontSize, texts[i].Size, 0.001)
	}
}

func TestPaginate_BelowCapacityKeepsAllLines(t *testing.T) {
	t.Parallel()

	g := pdfrender.DefaultGeometry()
	capacity := g.Capacity()
	require.Positive(t, capacity)

	for _, count := range []int{0, 1, capacity / 2, capacity} {
		lines := numberedLines(count)
		doc := pdfrender.Paginate(lines, g)

		require.Len(t, doc.Pages, 1)
		assert.False(t, doc.Truncated, "count=%d", count)
		require.Len(t, doc.Pages[0].Texts, count)

		for i, text := range doc.Pages[0].Texts {
			assert.Equal(t, lines[i], text.Text)
			assert.NotEqual(t, pdfrender.TruncationMarker, text.Text)
		}
	}
}

func TestPaginate_OverflowTruncatesWithMarker(t *testing.T) {
	t.Parallel()

	g := pdfrender.DefaultGeometry()
	capacity := g.Capacity()
	lines := numberedLines(capacity + 25)

	doc := pdfrender.Paginate(lines, g)

	require.Len(t, doc.Pages, 1)
	assert.True(t, doc.Truncated)

	texts := doc.Pages[0].Texts
	require.Len(t, texts, capacity+1)

	last := texts[len(texts)-1]
	assert.Equal(t, pdfrender.TruncationMarker, last.Text)
	assert.Less(t, last.Y, g.Margin)

	for i, text := range texts[:capacity] {
		assert.Equal(t, lines[i], text.Text)
		assert.GreaterOrEqual(t, text.Y, g.Margin)
	}

	for _, text := range texts {
		assert.NotEqual(t, lines[capacity], text.Text)
	}
}

func TestPaginate_ExactlyOneOverCapacity(t *testing.T) {
	t.Parallel()

	g := pdfrender.Geometry{Width: 200, Height: 100, Margin: 10, FontSize: 12}
	// Baselines at 90, 74, 58, 42, 26, 10: six lines fit.
	require.Equal(t, 6, g.Capacity())

	doc := pdfrender.Paginate(numberedLines(7), g)
	require.True(t, doc.Truncated)
	require.Len(t, doc.Pages[0].Texts, 7)
	assert.Equal(t, pdfrender.TruncationMarker, doc.Pages[0].Texts[6].Text)
	assert.InDelta(t, -6.0, doc.Pages[0].Texts[6].Y, 0.001)
}

func TestOutputName(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"report.docx":         "report.pdf",
		"My Notes.v2.docx":    "My Notes.v2.pdf",
		"noext":               "noext.pdf",
		"../../etc/evil.docx": "evil.pdf",
		".docx":               "document.pdf",
		"":                    "document.pdf",
	}

	for input, want := range testCases {
		assert.Equal(t, want, pdfrender.OutputName(input), input)
	}
}

func TestSerialize_ProducesSinglePagePDF(t *testing.T) {
	t.Parallel()

	g := pdfrender.DefaultGeometry()
	doc := pdfrender.Paginate([]string{"first", "second\ttabbed", "third"}, g)

	var buf bytes.Buffer
	require.NoError(t, pdfrender.Serialize(doc, &buf))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	reader, readErr := rpdf.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, readErr)
	require.Equal(t, 1, reader.NumPage())

	lines := linesByBaseline(reader.Page(1).Content().Text)
	require.Len(t, lines, 3)
	assert.Equal(t, "first", lines[0].text)
	// The reader reports glyphs only, so the expanded tab leaves no trace.
	assert.Equal(t, "secondtabbed", lines[1].text)
	assert.Equal(t, "third", lines[2].text)
	assert.InDelta(t, g.Height-g.Margin, lines[0].y, 0.01)
	assert.InDelta(t, g.LineHeight(), lines[0].y-lines[1].y, 0.01)
	assert.InDelta(t, g.LineHeight(), lines[1].y-lines[2].y, 0.01)
}

func TestSerialize_RejectsEmptyDocument(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.ErrorIs(t, pdfrender.Serialize(pdfrender.Document{Pages: nil, Truncated: false}, &buf),
		pdfrender.ErrSerialization)
}

func TestSerialize_KeepsWinAnsiPunctuation(t *testing.T) {
	t.Parallel()

	doc := pdfrender.Paginate([]string{"café – “q”"}, pdfrender.DefaultGeometry())

	var buf bytes.Buffer
	require.NoError(t, pdfrender.Serialize(doc, &buf))

	reader, readErr := rpdf.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, readErr)

	lines := linesByBaseline(reader.Page(1).Content().Text)
	require.Len(t, lines, 1)
	assert.Equal(t, "café–“q”", lines[0].text)
}

func TestSerialize_RejectsTextOutsideCoreFont(t *testing.T) {
	t.Parallel()

	for _, line := range []string{"Привет", "日本", "café – “q” Ω"} {
		doc := pdfrender.Paginate([]string{"plain", line}, pdfrender.DefaultGeometry())

		var buf bytes.Buffer
		err := pdfrender.Serialize(doc, &buf)
		require.ErrorIs(t, err, pdfrender.ErrSerialization, line)
		assert.Contains(t, err.Error(), "page 1", line)
		assert.Zero(t, buf.Len(), line)
	}
}

type baselineText struct {
	text string
	y    float64
}

// linesByBaseline groups the glyphs of a page by baseline, top to bottom.
func linesByBaseline(glyphs []rpdf.Text) []baselineText {
	grouped := map[float64]*strings.Builder{}

	var baselines []float64

	for _, glyph := range glyphs {
		builder, ok := grouped[glyph.Y]
		if !ok {
			builder = &strings.Builder{}
			grouped[glyph.Y] = builder
			baselines = append(baselines, glyph.Y)
		}

		builder.WriteString(glyph.S)
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(baselines)))

	lines := make([]baselineText, 0, len(baselines))
	for _, y := range baselines {
		lines = append(lines, baselineText{text: grouped[y].String(), y: y})
	}

	return lines
}
