//go:build !tesseract

package main

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/gardar/pdfretouch/pkg/config"
	"github.com/gardar/pdfretouch/pkg/ocr"
)

func newTesseract(config.TesseractConfig, logrus.FieldLogger) (ocr.Recognizer, error) {
	return nil, errors.New("this binary was built without Tesseract support; rebuild with -tags tesseract")
}
