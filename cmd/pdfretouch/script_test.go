package main

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardar/pdfretouch/pkg/document"
	"github.com/gardar/pdfretouch/pkg/document/pdftest"
	"github.com/gardar/pdfretouch/pkg/editor"
	"github.com/gardar/pdfretouch/pkg/imagegen"
	"github.com/gardar/pdfretouch/pkg/render"
	"github.com/gardar/pdfretouch/pkg/session"
	"github.com/gardar/pdfretouch/pkg/viewport"
)

const validScript = `
input: in.pdf
output: out/result.pdf
steps:
  - resize: {width: 1000, height: 800}
  - fit: false
  - zoom: 2
  - page: 1
  - select: {role: target, rect: "200,200,400,100"}
  - select: {role: sample, rect: "0,0,50,50"}
  - clear: sample
  - apply: {text: "Paid", instruction: "Match the font."}
  - snapshot: after.png
  - undo: true
  - save: /tmp/abs.pdf
`

func TestReadScript(t *testing.T) {
	sc, err := ReadScript(strings.NewReader(validScript))
	require.NoError(t, err)
	require.Len(t, sc.Steps, 11)
	assert.Equal(t, 2.0, *sc.Steps[2].Zoom)
	assert.Equal(t, "Paid", sc.Steps[7].Apply.Text)

	sc.resolve("/work")
	assert.Equal(t, "/work/in.pdf", sc.Input)
	assert.Equal(t, "/work/out/result.pdf", sc.Output)
	assert.Equal(t, "/work/after.png", sc.Steps[8].Snapshot)
	assert.Equal(t, "/tmp/abs.pdf", sc.Steps[10].Save)
}

func TestReadScriptRejects(t *testing.T) {
	cases := map[string]struct {
		script string
		want   string
	}{
		"no input":      {"steps:\n  - zoom: 1\n", "input is required"},
		"no steps":      {"input: a.pdf\n", "no steps"},
		"two actions":   {"input: a.pdf\nsteps:\n  - {zoom: 1, undo: true}\n", "exactly one action"},
		"zoom in + out": {"input: a.pdf\nsteps:\n  - {zoom_in: true, zoom_out: true}\n", "exactly one action"},
		"empty step":    {"input: a.pdf\nsteps:\n  - {}\n", "exactly one action"},
		"bad zoom":      {"input: a.pdf\nsteps:\n  - zoom: 0\n", "zoom must be positive"},
		"bad page":      {"input: a.pdf\nsteps:\n  - page: 0\n", "start at 1"},
		"bad rect":      {"input: a.pdf\nsteps:\n  - select: {rect: \"1,2,3\"}\n", "x,y,w,h"},
		"bad role":      {"input: a.pdf\nsteps:\n  - select: {role: border, rect: \"1,2,3,4\"}\n", "unknown selection role"},
		"bad resize":    {"input: a.pdf\nsteps:\n  - resize: {width: 10}\n", "positive width and height"},
		"unknown field": {"input: a.pdf\nsteps:\n  - rotate: 90\n", "rotate"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadScript(strings.NewReader(tc.script))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRunScript(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	gen := imagegen.GeneratorFunc(func(context.Context, imagegen.Request) (imagegen.Response, error) {
		calls++
		return imagegen.Response{Image: imagegen.Image{MIME: "image/png", Data: pdftest.PNG(t, 400, 100, color.Black)}}, nil
	})
	s := newScriptSession(t, gen)
	original := s.Document()

	sc, err := ReadScript(strings.NewReader(`
input: in.pdf
output: final.pdf
steps:
  - fit: false
  - zoom: 2
  - select: {rect: "200,200,400,100"}
  - apply: {text: "Paid"}
  - save: edited.pdf
  - snapshot: edited.png
  - undo: true
`))
	require.NoError(t, err)
	sc.resolve(dir)

	require.NoError(t, runScript(context.Background(), s, sc, logrus.StandardLogger()))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, s.HistoryLen())

	edited, err := os.ReadFile(filepath.Join(dir, "edited.pdf"))
	require.NoError(t, err)
	assert.False(t, document.New(edited).Equal(original))

	final, err := os.ReadFile(filepath.Join(dir, "final.pdf"))
	require.NoError(t, err)
	assert.True(t, document.New(final).Equal(original), "undo restores the loaded document")

	f, err := os.Open(filepath.Join(dir, "edited.png"))
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 1190, cfg.Width)
}

func TestRunScriptStopsOnFailedEdit(t *testing.T) {
	dir := t.TempDir()
	gen := imagegen.GeneratorFunc(func(context.Context, imagegen.Request) (imagegen.Response, error) {
		return imagegen.Response{}, imagegen.ErrNoImageReturned
	})
	s := newScriptSession(t, gen)

	sc, err := ReadScript(strings.NewReader(`
input: in.pdf
output: final.pdf
steps:
  - select: {rect: "100,100,200,50"}
  - apply: {}
  - save: never.pdf
`))
	require.NoError(t, err)
	sc.resolve(dir)

	err = runScript(context.Background(), s, sc, logrus.StandardLogger())
	require.ErrorIs(t, err, imagegen.ErrNoImageReturned)
	assert.Contains(t, err.Error(), "step 2 (apply)")
	assert.NoFileExists(t, filepath.Join(dir, "never.pdf"))
	assert.NoFileExists(t, filepath.Join(dir, "final.pdf"))
}

func TestRunScriptPageOutOfRange(t *testing.T) {
	s := newScriptSession(t, imagegen.GeneratorFunc(func(context.Context, imagegen.Request) (imagegen.Response, error) {
		return imagegen.Response{}, nil
	}))
	sc, err := ReadScript(strings.NewReader("input: in.pdf\nsteps:\n  - page: 3\n"))
	require.NoError(t, err)

	err = runScript(context.Background(), s, sc, logrus.StandardLogger())
	assert.ErrorContains(t, err, "out of range")
}

func TestRunScriptZoomSteps(t *testing.T) {
	dir := t.TempDir()
	s := newScriptSession(t, imagegen.GeneratorFunc(func(context.Context, imagegen.Request) (imagegen.Response, error) {
		return imagegen.Response{}, nil
	}))
	sc, err := ReadScript(strings.NewReader(`
input: in.pdf
steps:
  - fit: false
  - zoom_in: true
  - zoom_in: true
  - zoom_out: true
  - snapshot: zoomed.png
`))
	require.NoError(t, err)
	sc.resolve(dir)

	require.NoError(t, runScript(context.Background(), s, sc, logrus.StandardLogger()))
	assert.InDelta(t, 1.25, s.Viewport().Zoom(), 1e-9)

	f, err := os.Open(filepath.Join(dir, "zoomed.png"))
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 744, cfg.Width)
}

func TestDefaultOutput(t *testing.T) {
	assert.Equal(t, "scans/invoice_retouched.pdf", defaultOutput("scans/invoice.pdf"))
	assert.Equal(t, "noext_retouched.pdf", defaultOutput("noext"))
}

func newScriptSession(t *testing.T, gen imagegen.Generator) *session.Session {
	t.Helper()
	white := render.RendererFunc(func(_ context.Context, _ document.Document, req render.Request) (image.Image, error) {
		return pdftest.Solid(req.Width, req.Height, color.White), nil
	})
	opts := viewport.DefaultOptions()
	opts.Fit = false
	pipeline, err := editor.New(gen, nil, editor.DefaultOptions(), nil)
	require.NoError(t, err)
	s := session.New(viewport.New(white, opts, nil), pipeline, nil)
	t.Cleanup(s.Close)
	require.NoError(t, s.Load(context.Background(), pdftest.PDF(t).Bytes()))
	return s
}
