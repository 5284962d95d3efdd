// Package config loads the pdfretouch YAML configuration.
//
// A config file only needs the settings it changes; everything else keeps the value
// from Default. Example:
//
//	image_service:
//	  model: "gemini-2.5-flash-image"
//	  api_key_env: "GEMINI_API_KEY"
//	edit:
//	  min_selection_px: 20
//	  upscale: 2
//	text_layer:
//	  provider: "documentai"
//	  document_ai:
//	    project_id: "your-gcp-project-id"
//	    location: "eu"
//	    processor_id: "your-processor-id"
//	log:
//	  level: "debug"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/gardar/pdfretouch/pkg/document"
	"github.com/gardar/pdfretouch/pkg/editor"
	"github.com/gardar/pdfretouch/pkg/imagegen"
	"github.com/gardar/pdfretouch/pkg/ocr"
	"github.com/gardar/pdfretouch/pkg/viewport"
)

// Text layer providers
const (
	ProviderNone       = "none"
	ProviderDocumentAI = "documentai"
	ProviderTesseract  = "tesseract"
)

// Config is the whole configuration file.
type Config struct {
	ImageService imagegen.Config  `yaml:"image_service"`
	Edit         editor.Options   `yaml:"edit"`
	Viewport     viewport.Options `yaml:"viewport"`
	Render       RenderConfig     `yaml:"render"`
	TextLayer    TextLayerConfig  `yaml:"text_layer"`
	Log          LogConfig        `yaml:"log"`
}

// RenderConfig selects the page rasterizer.
type RenderConfig struct {
	Command string `yaml:"command"` // pdftoppm executable
	TempDir string `yaml:"temp_dir"`
}

// TextLayerConfig controls the searchable text drawn over edited regions.
type TextLayerConfig struct {
	Provider   string               `yaml:"provider"`   // none, documentai or tesseract
	LayerName  string               `yaml:"layer_name"` // Optional-content layer name
	Debug      bool                 `yaml:"debug"`      // Draw the text visibly in red
	DocumentAI ocr.DocumentAIConfig `yaml:"document_ai"`
	Tesseract  TesseractConfig      `yaml:"tesseract"`
	Font       document.FontConfig  `yaml:"font"`
}

// TesseractConfig mirrors tesseract.Config. This package must build without cgo.
type TesseractConfig struct {
	Languages []string `yaml:"languages"`
}

// LogConfig sets up logrus.
type LogConfig struct {
	Level  string `yaml:"level"`  // logrus level name
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ImageService: imagegen.DefaultConfig(),
		Edit:         editor.DefaultOptions(),
		Viewport:     viewport.DefaultOptions(),
		Render:       RenderConfig{Command: "pdftoppm"},
		TextLayer: TextLayerConfig{
			Provider:  ProviderNone,
			LayerName: "Retouched Text",
			Tesseract: TesseractConfig{Languages: []string{"eng"}},
			Font:      document.DefaultFont,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	cfg, err := Read(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Read decodes YAML from r over the defaults and validates the result.
func Read(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("invalid config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field rules.
func (c Config) Validate() error {
	var errs []error
	if c.Edit.Upscale < 1 || c.Edit.Upscale > 4 {
		errs = append(errs, fmt.Errorf("edit.upscale must be between 1 and 4, got %g", c.Edit.Upscale))
	}
	if c.Edit.MinSelection < 1 {
		errs = append(errs, fmt.Errorf("edit.min_selection_px must be at least 1, got %g", c.Edit.MinSelection))
	}
	if c.Viewport.ZoomMin <= 0 {
		errs = append(errs, fmt.Errorf("viewport.zoom_min must be positive, got %g", c.Viewport.ZoomMin))
	}
	if c.Viewport.ZoomMax < c.Viewport.ZoomMin {
		errs = append(errs, fmt.Errorf("viewport.zoom_max (%g) is below zoom_min (%g)", c.Viewport.ZoomMax, c.Viewport.ZoomMin))
	}
	if c.ImageService.Model == "" {
		errs = append(errs, errors.New("image_service.model is required"))
	}
	if c.ImageService.Timeout < 0 {
		errs = append(errs, errors.New("image_service.timeout must not be negative"))
	}

	switch strings.ToLower(c.TextLayer.Provider) {
	case "", ProviderNone, ProviderTesseract:
	case ProviderDocumentAI:
		if err := c.TextLayer.DocumentAI.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("text_layer.%w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("text_layer.provider %q is not one of none, documentai, tesseract", c.TextLayer.Provider))
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Logger builds a logrus logger from the log section.
func (c LogConfig) Logger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	if c.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
