package pdfrender

// TruncationMarker is drawn in place of the first line that no longer fits on the page.
const TruncationMarker = "..."

const (
	// lineSpacing is added to the font size to obtain the line height.
	lineSpacing = 4

	// A4 in PDF points.
	defaultPageWidth  = 595.28
	defaultPageHeight = 841.89
	defaultMargin     = 40
	defaultFontSize   = 12
)

// Geometry describes a fixed page layout in PDF points.
type Geometry struct {
	Width    float64
	Height   float64
	Margin   float64
	FontSize float64
}

// DefaultGeometry returns an A4 page with a 40pt margin and 12pt text.
func DefaultGeometry() Geometry {
	return Geometry{
		Width:    defaultPageWidth,
		Height:   defaultPageHeight,
		Margin:   defaultMargin,
		FontSize: defaultFontSize,
	}
}

// LineHeight is the vertical distance between consecutive baselines.
func (g Geometry) LineHeight() float64 {
	return g.FontSize + lineSpacing
}

// resolved replaces non-positive fields with the defaults.
func (g Geometry) resolved() Geometry {
	def := DefaultGeometry()

	return Geometry{
		Width:    defaultFloatNonPositive(g.Width, def.Width),
		Height:   defaultFloatNonPositive(g.Height, def.Height),
		Margin:   defaultFloatNonPositive(g.Margin, def.Margin),
		FontSize: defaultFloatNonPositive(g.FontSize, def.FontSize),
	}
}

// DrawnText is one string placed on a page. X and Y are the baseline origin in PDF
// user space, measured from the bottom-left corner.
type DrawnText struct {
	Text string
	X    float64
	Y    float64
	Size float64
}

// Page is a fixed-size page and the text drawn on it, in drawing order.
type Page struct {
	Texts  []DrawnText
	Width  float64
	Height float64
}

// Document is an ordered set of pages.
type Document struct {
	Pages     []Page
	Truncated bool
}

// Paginate lays lines out top to bottom on a single page. Lines are never wrapped or
// moved to another page: once the cursor drops below the bottom margin the
// truncation marker is drawn and the remaining lines are discarded.
func Paginate(lines []string, geometry Geometry) Document {
	g := geometry.resolved()

	page := Page{
		Texts:  make([]DrawnText, 0, len(lines)),
		Width:  g.Width,
		Height: g.Height,
	}
	truncated := false
	cursor := g.Height - g.Margin

	for _, line := range lines {
		if cursor < g.Margin {
			page.Texts = append(page.Texts, DrawnText{
				Text: TruncationMarker,
				X:    g.Margin,
				Y:    cursor,
				Size: g.FontSize,
			})
			truncated = true

			break
		}

		page.Texts = append(page.Texts, DrawnText{
			Text: line,
			X:    g.Margin,
			Y:    cursor,
			Size: g.FontSize,
		})
		cursor -= g.LineHeight()
	}

	return Document{
		Pages:     []Page{page},
		Truncated: truncated,
	}
}

// Capacity returns how many lines fit on one page before truncation kicks in.
func (g Geometry) Capacity() int {
	r := g.resolved()
	count := 0

	for cursor := r.Height - r.Margin; cursor >= r.Margin; cursor -= r.LineHeight() {
		count++
	}

	return count
}
