// Package render rasterizes PDF pages.
//
// Rendering internals are left to an external engine; this package only fixes the
// contract the viewer needs from it and ships one implementation backed by poppler's
// pdftoppm. Renders are cancelled through the context: when it is done, the engine is
// killed and its output discarded.
package render

import (
	"context"
	"image"

	"github.com/gardar/pdfretouch/pkg/document"
)

// Request asks for one page at an exact pixel size.
type Request struct {
	PageIndex int // 0-based
	Width     int // Output width in pixels
	Height    int // Output height in pixels
}

// Renderer rasterizes a page of a document.
type Renderer interface {
	Render(ctx context.Context, doc document.Document, req Request) (image.Image, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, doc document.Document, req Request) (image.Image, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, doc document.Document, req Request) (image.Image, error) {
	return f(ctx, doc, req)
}
