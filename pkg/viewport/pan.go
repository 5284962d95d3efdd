package viewport

import (
	"github.com/gardar/pdfretouch/pkg/geometry"
)

// Pan moves the surface by a display-pixel delta.
func (c *Controller) Pan(dx, dy float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pan = c.pan.Add(geometry.Pt(dx, dy))
}

// ResetPan puts the surface back at the container origin.
func (c *Controller) ResetPan() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pan = geometry.Point{}
}

// PanOffset returns the current pan offset in display pixels.
func (c *Controller) PanOffset() geometry.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pan
}

// DisplayToCanvas converts a pointer position in the container to canvas pixels.
// The surface is drawn 1:1, so only the pan offset separates the two spaces.
func (c *Controller) DisplayToCanvas(p geometry.Point) geometry.Point {
	return p.Sub(c.PanOffset())
}

// CanvasToPDF maps a canvas-pixel rectangle on the live surface to PDF points.
// It returns false when no surface is valid.
func (c *Controller) CanvasToPDF(r geometry.Rect) (geometry.Rect, bool) {
	s := c.Surface()
	if s == nil {
		return geometry.Rect{}, false
	}
	return geometry.CanvasToPDF(r, s.Size(), s.PageSize), true
}
