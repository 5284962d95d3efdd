// Package editor replaces a rectangular region of a PDF page with an image produced
// by the external image service.
//
// An edit runs in order:
//
//  1. check the target selection against the minimum size (canvas pixels)
//  2. crop the target, and the optional style sample, from the clean page surface and upscale them
//  3. send the crops and a prompt to the image service
//  4. decode the returned image and embed it over the target's PDF rectangle
//  5. serialize the result into a new Document
//
// Apply is all-or-nothing: on any failure the caller gets an error and no document.
// The input document is never modified.
package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gardar/pdfretouch/pkg/document"
	"github.com/gardar/pdfretouch/pkg/geometry"
	"github.com/gardar/pdfretouch/pkg/imagegen"
	"github.com/gardar/pdfretouch/pkg/ocr"
	"github.com/gardar/pdfretouch/pkg/viewport"
)

var (
	// ErrSelectionTooSmall is returned before anything else happens when the target
	// is narrower or shorter than the minimum selection.
	ErrSelectionTooSmall = errors.New("selection too small")
	// ErrNoSurface is returned when there is no rendered page to crop from.
	ErrNoSurface = errors.New("no rendered page to crop from")
)

// Options tunes the pipeline.
type Options struct {
	MinSelection  float64 `yaml:"min_selection_px"` // Minimum target width and height in canvas pixels
	Upscale       float64 `yaml:"upscale"`          // Crop magnification sent to the service
	ReplacePrompt string  `yaml:"replace_prompt"`   // text/template; empty uses DefaultReplacePrompt
	ErasePrompt   string  `yaml:"erase_prompt"`     // text/template; empty uses DefaultErasePrompt
}

// DefaultOptions returns the standard pipeline settings.
func DefaultOptions() Options {
	return Options{
		MinSelection: 20,
		Upscale:      2,
	}
}

// Request describes one edit. Rectangles are in canvas pixels of Surface.
type Request struct {
	Surface         *viewport.Surface
	Target          geometry.Rect
	Sample          *geometry.Rect
	ReplacementText string // Empty erases the region
	Instruction     string // Extra free-form guidance appended to the prompt
}

// Result is a successful edit.
type Result struct {
	Document  document.Document
	PageIndex int
	Rect      geometry.Rect // Where the image landed, PDF points
	Words     int           // Words in the text layer, 0 without one
	Text      string        // Recognized text of the new region, empty without a text layer
}

// Pipeline runs edits. It holds no per-edit state.
type Pipeline struct {
	gen      imagegen.Generator
	composer *document.Composer
	opts     Options
	prompts  prompts
	log      logrus.FieldLogger

	recognizer ocr.Recognizer
	layerName  string
}

// New returns a pipeline that calls gen and draws with composer.
func New(gen imagegen.Generator, composer *document.Composer, opts Options, logger logrus.FieldLogger) (*Pipeline, error) {
	if gen == nil {
		return nil, fmt.Errorf("editor needs an image generator")
	}
	if composer == nil {
		composer = document.NewComposer()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	defaults := DefaultOptions()
	if opts.MinSelection <= 0 {
		opts.MinSelection = defaults.MinSelection
	}
	if opts.Upscale <= 0 {
		opts.Upscale = defaults.Upscale
	}
	p, err := parsePrompts(opts.ReplacePrompt, opts.ErasePrompt)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		gen:      gen,
		composer: composer,
		opts:     opts,
		prompts:  p,
		log:      logger,
	}, nil
}

// WithTextLayer makes the pipeline read the returned image with rec and draw the
// words as an invisible text layer named name. A recognizer failure does not fail
// the edit.
func (p *Pipeline) WithTextLayer(rec ocr.Recognizer, name string) *Pipeline {
	p.recognizer = rec
	p.layerName = name
	return p
}

// Options returns the effective options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Validate runs the local checks of an edit. It makes no external call.
func (p *Pipeline) Validate(req Request) error {
	if req.Surface == nil || req.Surface.Image == nil {
		return ErrNoSurface
	}
	target := req.Target.Normalize()
	minPx := p.opts.MinSelection
	if target.W < minPx || target.H < minPx {
		return fmt.Errorf("%w: %.0fx%.0f px, need at least %.0fx%.0f", ErrSelectionTooSmall, target.W, target.H, minPx, minPx)
	}
	visible := target.Intersect(geometry.Rect{W: req.Surface.Size().W, H: req.Surface.Size().H})
	if visible.W < minPx || visible.H < minPx {
		return fmt.Errorf("%w: only %.0fx%.0f px of the selection is on the page", ErrSelectionTooSmall, visible.W, visible.H)
	}
	return nil
}

// Apply runs the edit against doc and returns the new document.
func (p *Pipeline) Apply(ctx context.Context, doc document.Document, req Request) (Result, error) {
	if err := p.Validate(req); err != nil {
		return Result{}, err
	}
	surface := req.Surface
	canvas := geometry.Rect{W: surface.Size().W, H: surface.Size().H}
	target := req.Target.Normalize().Intersect(canvas)

	info, err := document.Inspect(doc)
	if err != nil {
		return Result{}, err
	}
	if surface.Page >= info.PageCount() {
		return Result{}, fmt.Errorf("surface page %d is not in the document", surface.Page+1)
	}

	pdfRect := geometry.CanvasToPDF(target, surface.Size(), surface.PageSize)
	log := p.log.WithFields(logrus.Fields{
		"page":   surface.Page + 1,
		"target": fmt.Sprintf("%.1f,%.1f %.1fx%.1f", pdfRect.X, pdfRect.Y, pdfRect.W, pdfRect.H),
		"mode":   mode(req.ReplacementText),
	})

	// Crops
	targetPNG, err := crop(surface.Image, target, p.opts.Upscale)
	if err != nil {
		return Result{}, fmt.Errorf("failed to crop target: %w", err)
	}
	images := []imagegen.Image{{MIME: "image/png", Data: targetPNG}}

	hasSample := false
	if req.Sample != nil {
		sample := req.Sample.Normalize().Intersect(canvas)
		if !sample.Empty() {
			samplePNG, err := crop(surface.Image, sample, p.opts.Upscale)
			if err != nil {
				return Result{}, fmt.Errorf("failed to crop sample: %w", err)
			}
			images = append(images, imagegen.Image{MIME: "image/png", Data: samplePNG})
			hasSample = true
		}
	}

	prompt, err := p.prompts.build(promptData{
		Text:        req.ReplacementText,
		Instruction: req.Instruction,
		HasSample:   hasSample,
	})
	if err != nil {
		return Result{}, err
	}

	log.WithField("images", len(images)).Info("Requesting region edit")
	resp, err := p.gen.Generate(ctx, imagegen.Request{Images: images, Instruction: prompt})
	if err != nil {
		if !errors.Is(err, imagegen.ErrNoImageReturned) && !errors.Is(err, imagegen.ErrServiceUnavailable) {
			err = fmt.Errorf("%w: %v", imagegen.ErrServiceUnavailable, err)
		}
		return Result{}, err
	}

	replacement, err := normalizeImage(resp.Image.Data)
	if err != nil {
		return Result{}, err
	}

	overlay := document.Overlay{
		PageIndex: surface.Page,
		Rect:      pdfRect,
		Image:     replacement,
	}
	words, text := 0, ""
	if p.recognizer != nil {
		res, err := p.recognizer.Recognize(ctx, replacement)
		if err != nil {
			log.WithError(err).Warn("Text recognition failed, embedding image without text layer")
		} else if len(res.Words) > 0 {
			overlay.Text = res.Layer(p.layerName)
			words = len(res.Words)
			text = res.Text()
		}
	}

	out, err := p.composer.Overlay(doc, info, overlay)
	if err != nil {
		return Result{}, fmt.Errorf("failed to embed edited region: %w", err)
	}
	log.WithFields(logrus.Fields{
		"words": words,
		"text":  text,
		"bytes": out.Len(),
	}).Info("Region edit applied")

	return Result{
		Document:  out,
		PageIndex: surface.Page,
		Rect:      pdfRect,
		Words:     words,
		Text:      text,
	}, nil
}

func mode(text string) string {
	if text == "" {
		return "erase"
	}
	return "replace"
}

// crop cuts r out of src and scales it uniformly by factor, PNG encoded.
func crop(src image.Image, r geometry.Rect, factor float64) ([]byte, error) {
	rect := r.Image().Add(src.Bounds().Min).Intersect(src.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("crop %v is outside the surface", rect)
	}
	w := int(math.Round(float64(rect.Dx()) * factor))
	h := int(math.Round(float64(rect.Dy()) * factor))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, rect, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalizeImage decodes whatever raster the service returned and re-encodes it as a
// plain non-interlaced PNG the composer can embed. Undecodable data counts as no image.
func normalizeImage(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, imagegen.ErrNoImageReturned
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: could not decode returned image: %v", imagegen.ErrNoImageReturned, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to re-encode returned %s image: %w", format, err)
	}
	return buf.Bytes(), nil
}
