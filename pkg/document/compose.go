package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"

	"github.com/gardar/pdfretouch/pkg/geometry"
)

// FontConfig contains font settings for the invisible text layer
type FontConfig struct {
	Name        string  `yaml:"name"`         // Font name (e.g., "Helvetica")
	Style       string  `yaml:"style"`        // Font style ("", "B", "I", "BI")
	Size        float64 `yaml:"size"`         // Default font size
	AscentRatio float64 `yaml:"ascent_ratio"` // Vertical positioning ratio
}

// DefaultFont is Helvetica, a core font that needs no embedding
var DefaultFont = FontConfig{
	Name:        "Helvetica",
	Style:       "",
	Size:        10,
	AscentRatio: 0.718,
}

// Word is a recognized word with its box in the pixel space of the image it was read from.
type Word struct {
	Text string
	Box  geometry.Rect
}

// TextLayer is searchable text drawn invisibly over an overlay image.
type TextLayer struct {
	Name   string        // Optional-content layer name
	Source geometry.Size // Pixel size of the image the word boxes refer to
	Words  []Word
}

// Overlay describes one raster to draw on top of a page.
type Overlay struct {
	PageIndex int           // 0-based page
	Rect      geometry.Rect // Placement in PDF points, bottom-left origin
	Image     []byte        // PNG, JPEG or GIF bytes
	Text      *TextLayer    // Optional
}

// Composer rebuilds a PDF with an overlay drawn on one of its pages.
type Composer struct {
	Font  FontConfig
	Debug bool // Show the text layer in red with word boxes instead of hiding it
}

// NewComposer returns a Composer with the default font.
func NewComposer() *Composer {
	return &Composer{Font: DefaultFont}
}

// Overlay imports every page of doc and draws o on top of the target page. The
// existing page content is kept underneath; the image is scaled to exactly o.Rect
// whatever its pixel size. The input Document is not modified.
func (c *Composer) Overlay(doc Document, info Info, o Overlay) (out Document, err error) {
	pageSize, err := info.PageSize(o.PageIndex)
	if err != nil {
		return Document{}, err
	}
	if o.Rect.Empty() {
		return Document{}, fmt.Errorf("overlay rectangle is empty")
	}
	imageType, err := detectImageType(o.Image)
	if err != nil {
		return Document{}, err
	}

	// gofpdi reports parse failures by panicking
	defer func() {
		if r := recover(); r != nil {
			out = Document{}
			err = fmt.Errorf("failed to import PDF pages: %v", r)
		}
	}()

	pdf := fpdf.New("P", "pt", "", "")
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(doc.reader())

	for i, size := range info.Pages {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: size.W, Ht: size.H})

		tpl := importer.ImportPageFromStream(pdf, &rs, i+1, "/MediaBox")
		importer.UseImportedTemplate(pdf, tpl, 0, 0, size.W, size.H)

		if i != o.PageIndex {
			continue
		}

		// fpdf measures from the top-left corner of the page
		x := o.Rect.X
		y := pageSize.H - o.Rect.Y - o.Rect.H

		imageName := fmt.Sprintf("retouch-p%d", i+1)
		opts := fpdf.ImageOptions{ReadDpi: false, ImageType: imageType}
		pdf.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(o.Image))
		pdf.ImageOptions(imageName, x, y, o.Rect.W, o.Rect.H, false, opts, 0, "")

		if o.Text != nil && len(o.Text.Words) > 0 && !o.Text.Source.Empty() {
			sx := o.Rect.W / o.Text.Source.W
			sy := o.Rect.H / o.Text.Source.H
			transform := func(px, py float64) (float64, float64) {
				return x + px*sx, y + py*sy
			}
			if err := c.drawTextLayer(pdf, o.Text, i+1, transform); err != nil {
				return Document{}, fmt.Errorf("failed to draw text layer on page %d: %w", i+1, err)
			}
		}
	}

	if pdf.Err() {
		return Document{}, fmt.Errorf("failed to compose PDF: %w", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Document{}, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return New(buf.Bytes()), nil
}

// detectImageType tries to figure out whether the data is PNG, JPEG, etc.
func detectImageType(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("overlay image is empty")
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image config: %w", err)
	}
	switch format {
	case "png", "jpeg", "gif":
		return strings.ToUpper(format), nil
	default:
		return "", fmt.Errorf("image format %q cannot be embedded, convert to PNG first", format)
	}
}
