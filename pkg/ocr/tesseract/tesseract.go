//go:build tesseract

// Package tesseract recognizes words with a local Tesseract installation.
//
// It needs the tesseract and leptonica development libraries at build time, which is
// why it lives apart from package ocr.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"

	"github.com/gardar/pdfretouch/pkg/document"
	"github.com/gardar/pdfretouch/pkg/geometry"
	"github.com/gardar/pdfretouch/pkg/ocr"
)

// Config selects the Tesseract languages.
type Config struct {
	Languages []string `yaml:"languages"` // e.g. ["eng", "isl"]
}

// Recognizer reads word boxes with gosseract. A new Tesseract client is created per
// call since clients are not safe for concurrent use.
type Recognizer struct {
	Config Config
	Logger logrus.FieldLogger
}

// New returns a recognizer for cfg, defaulting to English.
func New(cfg Config, logger logrus.FieldLogger) *Recognizer {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Recognizer{Config: cfg, Logger: logger}
}

// Recognize implements ocr.Recognizer.
func (r *Recognizer) Recognize(ctx context.Context, png []byte) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	w, h, err := ocr.ImageSize(png)
	if err != nil {
		return ocr.Result{}, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.Config.Languages...); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("failed to get boxes: %w", err)
	}

	res := ocr.Result{Width: w, Height: h}
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" || box.Box.Empty() {
			continue
		}
		res.Words = append(res.Words, document.Word{
			Text: text,
			Box: geometry.Rect{
				X: float64(box.Box.Min.X),
				Y: float64(box.Box.Min.Y),
				W: float64(box.Box.Dx()),
				H: float64(box.Box.Dy()),
			},
		})
	}
	r.Logger.WithFields(logrus.Fields{
		"words":     len(res.Words),
		"languages": strings.Join(r.Config.Languages, "+"),
	}).Debug("Tesseract recognized region")
	return res, nil
}
