// Package viewport owns the rendered surface of the page being edited.
//
// The controller keeps the page index, user zoom, fit-to-container mode and pan
// offset, derives the effective scale from them and re-renders the page whenever
// that scale or the page changes:
//
//	effective scale = zoom × fitScale
//	fitScale        = min(containerW/pageW, containerH/pageH) in fit mode, else 1
//
// Fit scale is recomputed on page change, resize and fit toggling, never on a plain
// zoom change. Every render carries a version stamp; a newer render cancels the one in
// flight and the stale result is dropped instead of replacing the live surface.
package viewport

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	"github.com/gardar/pdfretouch/pkg/document"
	"github.com/gardar/pdfretouch/pkg/geometry"
	"github.com/gardar/pdfretouch/pkg/render"
)

var (
	// ErrRenderCancelled is returned by Render when a newer render superseded it.
	ErrRenderCancelled = errors.New("viewport: render superseded")
	// ErrNoDocument is returned when rendering before a document is set.
	ErrNoDocument = errors.New("viewport: no document loaded")
)

// Options bounds the zoom and picks the initial fit mode.
type Options struct {
	ZoomMin  float64 `yaml:"zoom_min"`
	ZoomMax  float64 `yaml:"zoom_max"`
	ZoomStep float64 `yaml:"zoom_step"`
	Fit      bool    `yaml:"fit"`
}

// DefaultOptions returns the zoom limits used by the viewer.
func DefaultOptions() Options {
	return Options{
		ZoomMin:  0.1,
		ZoomMax:  10.0,
		ZoomStep: 1.25,
		Fit:      true,
	}
}

// Surface is a committed rasterization of one page.
type Surface struct {
	Image    image.Image
	Page     int           // 0-based page index
	Scale    float64       // Effective scale the page was rendered at
	PageSize geometry.Size // Page size in PDF points
	Version  uint64
}

// Size returns the surface size in canvas pixels.
func (s *Surface) Size() geometry.Size {
	return geometry.SizeOf(s.Image.Bounds())
}

// ScaleChange is sent to subscribers whenever the effective scale or page changes.
type ScaleChange struct {
	Page     int
	Zoom     float64
	FitScale float64
	Scale    float64 // New effective scale
	Previous float64 // Effective scale before the change

	// Surface widths in canvas pixels, rounded as Render rounds them. Canvas
	// rectangles map to PDF points through the width, so they rescale by this ratio.
	Width         int
	PreviousWidth int
}

// Controller manages page, zoom, fit and pan state and the single live surface.
type Controller struct {
	mu       sync.Mutex
	renderer render.Renderer
	opts     Options
	log      logrus.FieldLogger

	doc       document.Document
	info      document.Info
	page      int
	zoom      float64
	fit       bool
	fitScale  float64
	container geometry.Size
	pan       geometry.Point

	version uint64
	cancel  context.CancelFunc
	surface *Surface

	subscribers map[int]func(ScaleChange)
	nextSub     int
}

// New returns a Controller with no document.
func New(renderer render.Renderer, opts Options, logger logrus.FieldLogger) *Controller {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	defaults := DefaultOptions()
	if opts.ZoomStep <= 1 {
		opts.ZoomStep = defaults.ZoomStep
	}
	if opts.ZoomMin <= 0 || opts.ZoomMax < opts.ZoomMin {
		opts.ZoomMin, opts.ZoomMax = defaults.ZoomMin, defaults.ZoomMax
	}
	return &Controller{
		renderer:    renderer,
		opts:        opts,
		log:         logger,
		zoom:        1.0,
		fit:         opts.Fit,
		fitScale:    1.0,
		subscribers: make(map[int]func(ScaleChange)),
	}
}

// Subscribe registers fn to be called after every scale or page change. The returned
// function removes the subscription.
func (c *Controller) Subscribe(fn func(ScaleChange)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// SetDocument replaces the document being viewed, keeping the current page when it
// still exists, and renders it.
func (c *Controller) SetDocument(ctx context.Context, doc document.Document, info document.Info) error {
	return c.update(ctx, func() bool {
		c.doc = doc
		c.info = info
		if c.page >= info.PageCount() {
			c.page = 0
		}
		return true
	})
}

// SetPage switches to a 0-based page index and renders it.
func (c *Controller) SetPage(ctx context.Context, n int) error {
	c.mu.Lock()
	count := c.info.PageCount()
	c.mu.Unlock()
	if n < 0 || n >= count {
		return fmt.Errorf("page index %d out of range [0, %d)", n, count)
	}
	return c.update(ctx, func() bool {
		if c.page != n {
			c.pan = geometry.Point{}
		}
		c.page = n
		return true
	})
}

// SetZoom sets the zoom factor, clamped to the configured limits, and re-renders.
// The fit scale is left alone: zoom multiplies on top of it.
func (c *Controller) SetZoom(ctx context.Context, zoom float64) error {
	return c.update(ctx, func() bool {
		c.zoom = math.Max(c.opts.ZoomMin, math.Min(c.opts.ZoomMax, zoom))
		return false
	})
}

// ZoomIn increases the zoom by one step.
func (c *Controller) ZoomIn(ctx context.Context) error {
	return c.SetZoom(ctx, c.Zoom()*c.opts.ZoomStep)
}

// ZoomOut decreases the zoom by one step.
func (c *Controller) ZoomOut(ctx context.Context) error {
	return c.SetZoom(ctx, c.Zoom()/c.opts.ZoomStep)
}

// SetFitMode enables or disables fitting the page to the container.
func (c *Controller) SetFitMode(ctx context.Context, enabled bool) error {
	return c.update(ctx, func() bool {
		c.fit = enabled
		return true
	})
}

// Resize tells the controller the size of the viewing container in display pixels.
func (c *Controller) Resize(ctx context.Context, container geometry.Size) error {
	return c.update(ctx, func() bool {
		c.container = container
		return true
	})
}

// update applies mutate under the lock, recomputes the fit scale when mutate asks
// for it, notifies subscribers and renders. Superseded renders are not errors here.
func (c *Controller) update(ctx context.Context, mutate func() (refit bool)) error {
	c.mu.Lock()
	before := c.effectiveScaleLocked()
	beforePage := c.page
	beforeWidth := c.surfaceWidthLocked()
	if mutate() {
		c.fitScale = c.computeFitScaleLocked()
	}
	change := ScaleChange{
		Page:     c.page,
		Zoom:     c.zoom,
		FitScale: c.fitScale,
		Scale:    c.effectiveScaleLocked(),
		Previous: before,

		Width:         c.surfaceWidthLocked(),
		PreviousWidth: beforeWidth,
	}
	var subs []func(ScaleChange)
	if change.Scale != before || change.Page != beforePage || change.Width != beforeWidth {
		for _, fn := range c.subscribers {
			subs = append(subs, fn)
		}
	}
	hasDoc := !c.doc.IsZero()
	c.mu.Unlock()

	for _, fn := range subs {
		fn(change)
	}

	c.log.WithFields(logrus.Fields{
		"page":  change.Page + 1,
		"zoom":  change.Zoom,
		"fit":   change.FitScale,
		"scale": change.Scale,
	}).Debug("Viewport updated")

	if !hasDoc {
		return nil
	}
	if _, err := c.Render(ctx); err != nil && !errors.Is(err, ErrRenderCancelled) {
		return err
	}
	return nil
}

func (c *Controller) computeFitScaleLocked() float64 {
	if !c.fit || c.container.Empty() || c.page >= c.info.PageCount() {
		return 1.0
	}
	page := c.info.Pages[c.page]
	return math.Min(c.container.W/page.W, c.container.H/page.H)
}

// surfaceWidthLocked is the pixel width Render would produce now, 0 without a page.
func (c *Controller) surfaceWidthLocked() int {
	if c.page >= c.info.PageCount() {
		return 0
	}
	w, _ := c.info.Pages[c.page].Scale(c.effectiveScaleLocked()).Pixels()
	return max(w, 1)
}

func (c *Controller) effectiveScaleLocked() float64 {
	return c.zoom * c.fitScale
}

// Render rasterizes the current page at the effective scale and commits it as the
// live surface. A render still in flight is cancelled; if this render is itself
// superseded before it finishes, it returns ErrRenderCancelled and commits nothing.
func (c *Controller) Render(ctx context.Context) (*Surface, error) {
	c.mu.Lock()
	if c.doc.IsZero() || c.page >= c.info.PageCount() {
		c.mu.Unlock()
		return nil, ErrNoDocument
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.version++
	version := c.version
	rctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.surface = nil

	doc := c.doc
	page := c.page
	pageSize := c.info.Pages[page]
	scale := c.effectiveScaleLocked()
	w, h := pageSize.Scale(scale).Pixels()
	c.mu.Unlock()
	defer cancel()

	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	img, err := c.renderer.Render(rctx, doc, render.Request{PageIndex: page, Width: w, Height: h})

	c.mu.Lock()
	defer c.mu.Unlock()
	if version != c.version {
		c.log.WithField("version", version).Debug("Discarding superseded render")
		return nil, ErrRenderCancelled
	}
	c.cancel = nil
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page+1, err)
	}

	// Keep the surface exactly page size × scale even if the engine rounded differently
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		img = dst
	}

	c.surface = &Surface{
		Image:    img,
		Page:     page,
		Scale:    scale,
		PageSize: pageSize,
		Version:  version,
	}
	return c.surface, nil
}

// Surface returns the live surface, or nil while none is valid (no document yet,
// or a render is in flight).
func (c *Controller) Surface() *Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface
}

// Document returns the document being viewed.
func (c *Controller) Document() document.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

// Page returns the 0-based page index.
func (c *Controller) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// PageCount returns the number of pages in the document.
func (c *Controller) PageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info.PageCount()
}

// PageSize returns the current page size in PDF points.
func (c *Controller) PageSize() geometry.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page >= c.info.PageCount() {
		return geometry.Size{}
	}
	return c.info.Pages[c.page]
}

// Zoom returns the user zoom factor.
func (c *Controller) Zoom() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

// FitMode reports whether fit-to-container is enabled.
func (c *Controller) FitMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fit
}

// FitScale returns the current fit scale.
func (c *Controller) FitScale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fitScale
}

// EffectiveScale returns zoom × fit scale.
func (c *Controller) EffectiveScale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectiveScaleLocked()
}
