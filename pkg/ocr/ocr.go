// Package ocr reads words back out of a generated image so the replaced region of a
// page stays searchable.
//
// Recognizers return word boxes in the pixel space of the image they were given;
// the document composer maps them onto the page together with the image.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"strings"

	"github.com/gardar/pdfretouch/pkg/document"
	"github.com/gardar/pdfretouch/pkg/geometry"
)

// Result holds the words found in one image.
type Result struct {
	Width  int // Image width in pixels
	Height int // Image height in pixels
	Words  []document.Word
}

// Text joins the recognized words with spaces.
func (r Result) Text() string {
	parts := make([]string, 0, len(r.Words))
	for _, w := range r.Words {
		parts = append(parts, w.Text)
	}
	return strings.Join(parts, " ")
}

// Layer turns the result into a text layer for the composer.
func (r Result) Layer(name string) *document.TextLayer {
	return &document.TextLayer{
		Name:   name,
		Source: geometry.Size{W: float64(r.Width), H: float64(r.Height)},
		Words:  r.Words,
	}
}

// Recognizer finds words in a PNG image.
type Recognizer interface {
	Recognize(ctx context.Context, png []byte) (Result, error)
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(ctx context.Context, png []byte) (Result, error)

// Recognize calls f.
func (f RecognizerFunc) Recognize(ctx context.Context, png []byte) (Result, error) {
	return f(ctx, png)
}

// ImageSize returns the pixel size of an encoded image.
func ImageSize(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image size: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
