package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gardar/pdfretouch/pkg/config"
	"github.com/gardar/pdfretouch/pkg/document"
	"github.com/gardar/pdfretouch/pkg/editor"
	"github.com/gardar/pdfretouch/pkg/imagegen"
	"github.com/gardar/pdfretouch/pkg/ocr"
	"github.com/gardar/pdfretouch/pkg/render"
	"github.com/gardar/pdfretouch/pkg/session"
	"github.com/gardar/pdfretouch/pkg/viewport"
)

// app carries what every command needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	ocrDump    string

	cfg     config.Config
	log     *logrus.Logger
	closers []io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "pdfretouch",
		Short:             "Retouch regions of PDF pages with a generative image service",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the config YAML file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level from the config")

	root.AddCommand(
		newInfoCmd(a),
		newRenderCmd(a),
		newEditCmd(a),
		newRunCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger, err := cfg.Log.Logger(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	a.cfg = cfg
	a.log = logger
	return nil
}

// close releases files opened while building the session.
func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close file")
		}
	}
	a.closers = nil
}

func (a *app) renderer() (*render.Pdftoppm, error) {
	r := &render.Pdftoppm{
		Command: a.cfg.Render.Command,
		TempDir: a.cfg.Render.TempDir,
		Logger:  a.log,
	}
	if !r.Available() {
		return nil, fmt.Errorf("%q not found in PATH; install poppler-utils or set render.command", a.cfg.Render.Command)
	}
	return r, nil
}

func (a *app) recognizer() (ocr.Recognizer, error) {
	tl := a.cfg.TextLayer
	switch strings.ToLower(tl.Provider) {
	case "", config.ProviderNone:
		return nil, nil
	case config.ProviderDocumentAI:
		d, err := ocr.NewDocumentAI(tl.DocumentAI, a.log)
		if err != nil {
			return nil, err
		}
		if a.ocrDump != "" {
			f, err := os.Create(a.ocrDump)
			if err != nil {
				return nil, fmt.Errorf("failed to create OCR dump file: %w", err)
			}
			a.closers = append(a.closers, f)
			d.Dump = f
		}
		return d, nil
	case config.ProviderTesseract:
		return newTesseract(tl.Tesseract, a.log)
	default:
		return nil, fmt.Errorf("unknown text layer provider %q", tl.Provider)
	}
}

func (a *app) pipeline(ctx context.Context) (*editor.Pipeline, error) {
	gen, err := imagegen.NewClient(ctx, a.cfg.ImageService, a.log)
	if err != nil {
		return nil, err
	}
	composer := &document.Composer{Font: a.cfg.TextLayer.Font, Debug: a.cfg.TextLayer.Debug}
	p, err := editor.New(gen, composer, a.cfg.Edit, a.log)
	if err != nil {
		return nil, err
	}
	rec, err := a.recognizer()
	if err != nil {
		return nil, err
	}
	if rec != nil {
		p.WithTextLayer(rec, a.cfg.TextLayer.LayerName)
	}
	return p, nil
}

func (a *app) session(ctx context.Context) (*session.Session, error) {
	r, err := a.renderer()
	if err != nil {
		return nil, err
	}
	p, err := a.pipeline(ctx)
	if err != nil {
		return nil, err
	}
	return session.New(viewport.New(r, a.cfg.Viewport, a.log), p, a.log), nil
}

// userError keeps the underlying error but leads with the message meant for people.
func userError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s (%w)", session.UserMessage(err), err)
}
