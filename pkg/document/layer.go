package document

import (
	"fmt"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// drawTextLayer draws recognized words onto an optional-content layer.
// The pageNum parameter is used to create unique layer names for each page.
func (c *Composer) drawTextLayer(
	pdf *fpdf.Fpdf,
	text *TextLayer,
	pageNum int,
	transform func(x, y float64) (float64, float64),
) error {
	font := c.Font
	if font.Name == "" {
		font = DefaultFont
	}

	layerName := text.Name
	if layerName == "" {
		layerName = "Retouched Text"
	}
	layer := pdf.AddLayer(fmt.Sprintf("%s (Page %d)", layerName, pageNum), true)
	pdf.BeginLayer(layer)
	pdf.SetFont(font.Name, font.Style, font.Size)

	if c.Debug {
		pdf.SetTextColor(255, 0, 0) // highlight text in red
	} else {
		pdf.SetAlpha(0.0, "Normal") // hide text from normal view
	}

	encodingErrors := 0
	for _, word := range text.Words {
		if word.Text == "" || word.Box.Empty() {
			continue
		}
		c.drawWord(pdf, word, transform, font, &encodingErrors)
	}

	pdf.SetAlpha(1.0, "Normal")
	pdf.SetTextColor(0, 0, 0)
	pdf.EndLayer()

	if n := len(text.Words); n > 0 && encodingErrors > n/10 {
		return fmt.Errorf("character encoding issues in %d of %d words", encodingErrors, n)
	}
	return nil
}

// drawWord renders a single word, stretched to the width of its box
func (c *Composer) drawWord(pdf *fpdf.Fpdf, word Word, transform func(x, y float64) (float64, float64),
	font FontConfig, encodingErrors *int) {

	x, y := transform(word.Box.X, word.Box.Y)
	x2, y2 := transform(word.Box.X+word.Box.W, word.Box.Y+word.Box.H)
	wordWidth := x2 - x

	// The core fonts only cover ISO-8859-1
	latin1, err := charmap.ISO8859_1.NewEncoder().String(word.Text)
	if err != nil {
		*encodingErrors++
		latin1 = word.Text
	}

	strWidth := pdf.GetStringWidth(latin1)
	if strWidth > 0 {
		pdf.SetFontSize(font.Size * wordWidth / strWidth)
	}

	fontSize, _ := pdf.GetFontSize()
	pdf.Text(x, y+fontSize*font.AscentRatio, latin1)
	pdf.SetFontSize(font.Size)

	if c.Debug {
		pdf.Rect(x, y, wordWidth, y2-y, "D")
	}
}
