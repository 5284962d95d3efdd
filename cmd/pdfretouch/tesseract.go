//go:build tesseract

package main

import (
	"github.com/sirupsen/logrus"

	"github.com/gardar/pdfretouch/pkg/config"
	"github.com/gardar/pdfretouch/pkg/ocr"
	"github.com/gardar/pdfretouch/pkg/ocr/tesseract"
)

func newTesseract(cfg config.TesseractConfig, logger logrus.FieldLogger) (ocr.Recognizer, error) {
	return tesseract.New(tesseract.Config{Languages: cfg.Languages}, logger), nil
}
