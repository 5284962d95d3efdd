package selection

import (
	"image"
	"image/color"
	"image/draw"
)

// Overlay colors
var (
	TargetColor = color.RGBA{R: 255, G: 64, B: 64, A: 255}
	SampleColor = color.RGBA{R: 32, G: 144, B: 255, A: 255}
)

// NewOverlay returns a transparent overlay layer the size of bounds.
func NewOverlay(bounds image.Rectangle) *image.RGBA {
	return image.NewRGBA(bounds)
}

// DrawOverlay paints the selection outlines onto dst. dst is meant to be a layer
// composited over the page surface, never the surface itself, so crops taken from
// the surface stay free of selection chrome.
func (s *Selector) DrawOverlay(dst draw.Image) {
	st := s.State()
	if st.Sample != nil {
		drawDashedRect(dst, st.Sample.Image(), SampleColor)
	}
	if st.Target != nil {
		r := st.Target.Image()
		fillTint(dst, r, color.NRGBA{R: TargetColor.R, G: TargetColor.G, B: TargetColor.B, A: 48})
		drawDashedRect(dst, r, TargetColor)
	}
}

// Composite returns a copy of surface with the overlay for s drawn over it.
func Composite(surface image.Image, s *Selector) *image.RGBA {
	b := surface.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, surface, b.Min, draw.Src)

	layer := NewOverlay(b)
	s.DrawOverlay(layer)
	draw.Draw(out, b, layer, b.Min, draw.Over)
	return out
}

// drawDashedRect draws a dashed outline (two pixels on, two off).
func drawDashedRect(dst draw.Image, r image.Rectangle, col color.Color) {
	bounds := dst.Bounds()
	x1, y1 := r.Min.X, r.Min.Y
	x2, y2 := r.Max.X-1, r.Max.Y-1
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}

	set := func(x, y int) {
		if (x+y)%4 < 2 && image.Pt(x, y).In(bounds) {
			dst.Set(x, y, col)
		}
	}
	// Top and bottom edges
	for x := x1; x <= x2; x++ {
		set(x, y1)
		set(x, y2)
	}
	// Left and right edges
	for y := y1; y <= y2; y++ {
		set(x1, y)
		set(x2, y)
	}
}

// fillTint blends a translucent color over r.
func fillTint(dst draw.Image, r image.Rectangle, col color.Color) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.NewUniform(col), image.Point{}, draw.Over)
}
