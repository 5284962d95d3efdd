package session

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardar/pdfretouch/pkg/document"
	"github.com/gardar/pdfretouch/pkg/document/pdftest"
	"github.com/gardar/pdfretouch/pkg/editor"
	"github.com/gardar/pdfretouch/pkg/geometry"
	"github.com/gardar/pdfretouch/pkg/imagegen"
	"github.com/gardar/pdfretouch/pkg/render"
	"github.com/gardar/pdfretouch/pkg/selection"
	"github.com/gardar/pdfretouch/pkg/viewport"
)

var whitePages = render.RendererFunc(func(_ context.Context, _ document.Document, req render.Request) (image.Image, error) {
	return pdftest.Solid(req.Width, req.Height, color.White), nil
})

// countingGenerator returns a differently colored image on every call, or fails
// when fail is set.
type countingGenerator struct {
	mu    sync.Mutex
	calls int
	fail  error
	gate  chan struct{} // when set, Generate waits for it
	entry chan struct{}
}

func (g *countingGenerator) Generate(ctx context.Context, _ imagegen.Request) (imagegen.Response, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	fail, gate, entry := g.fail, g.gate, g.entry
	g.mu.Unlock()

	if entry != nil {
		close(entry)
	}
	if gate != nil {
		<-gate
	}
	if fail != nil {
		return imagegen.Response{}, fail
	}
	c := color.RGBA{R: uint8(40 * n), G: 10, B: 10, A: 255}
	return imagegen.Response{Image: imagegen.Image{MIME: "image/png", Data: pngBytes(c)}}, nil
}

func (g *countingGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func pngBytes(c color.Color) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, pdftest.Solid(40, 10, c)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func newTestSession(t *testing.T, gen imagegen.Generator) *Session {
	t.Helper()
	opts := viewport.DefaultOptions()
	opts.Fit = false
	view := viewport.New(whitePages, opts, nil)
	pipeline, err := editor.New(gen, nil, editor.DefaultOptions(), nil)
	require.NoError(t, err)

	s := New(view, pipeline, nil)
	t.Cleanup(s.Close)
	require.NoError(t, s.Load(context.Background(), pdftest.PDF(t).Bytes()))
	return s
}

func TestTwoEditsThenUndo(t *testing.T) {
	gen := &countingGenerator{}
	s := newTestSession(t, gen)
	ctx := context.Background()
	original := s.Document()

	require.True(t, s.Select(selection.RoleTarget, geometry.R(100, 100, 200, 50)))
	_, err := s.ApplyEdit(ctx, "first", "")
	require.NoError(t, err)
	afterFirst := s.Document()

	_, err = s.ApplyEdit(ctx, "second", "")
	require.NoError(t, err)
	afterSecond := s.Document()

	assert.Equal(t, 2, s.HistoryLen())
	assert.False(t, afterFirst.Equal(original))
	assert.False(t, afterSecond.Equal(afterFirst))

	ok, err := s.Undo(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, s.Document().Equal(afterFirst), "undo must restore the state after the first edit")
	assert.Equal(t, 1, s.HistoryLen())

	ok, err = s.Undo(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, s.Document().Equal(original))

	ok, err = s.Undo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, s.CanUndo())
}

func TestFailedEditRollsBack(t *testing.T) {
	for _, fail := range []error{imagegen.ErrNoImageReturned, imagegen.ErrServiceUnavailable} {
		t.Run(fail.Error(), func(t *testing.T) {
			gen := &countingGenerator{fail: fail}
			s := newTestSession(t, gen)
			before, err := s.Download()
			require.NoError(t, err)

			s.Select(selection.RoleTarget, geometry.R(100, 100, 200, 50))
			_, err = s.ApplyEdit(context.Background(), "", "")
			require.ErrorIs(t, err, fail)

			after, err := s.Download()
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Equal(t, 0, s.HistoryLen())
			assert.False(t, s.Busy())
			assert.NotEmpty(t, UserMessage(err))
		})
	}
}

func TestSmallSelectionLeavesHistoryAlone(t *testing.T) {
	gen := &countingGenerator{}
	s := newTestSession(t, gen)

	s.Select(selection.RoleTarget, geometry.R(100, 100, 10, 10))
	_, err := s.ApplyEdit(context.Background(), "x", "")
	require.ErrorIs(t, err, editor.ErrSelectionTooSmall)
	assert.Equal(t, 0, s.HistoryLen())
	assert.Equal(t, 0, gen.Calls())
	assert.Equal(t, "The selected area is too small. Drag a larger rectangle.", UserMessage(err))
}

func TestApplyWithoutTarget(t *testing.T) {
	s := newTestSession(t, &countingGenerator{})
	_, err := s.ApplyEdit(context.Background(), "x", "")
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestConcurrentEditIsRejected(t *testing.T) {
	gen := &countingGenerator{gate: make(chan struct{}), entry: make(chan struct{})}
	s := newTestSession(t, gen)
	s.Select(selection.RoleTarget, geometry.R(100, 100, 200, 50))

	done := make(chan error, 1)
	go func() {
		_, err := s.ApplyEdit(context.Background(), "slow", "")
		done <- err
	}()
	<-gen.entry
	assert.True(t, s.Busy())

	_, err := s.ApplyEdit(context.Background(), "fast", "")
	assert.ErrorIs(t, err, ErrEditInProgress)
	_, err = s.Undo(context.Background())
	assert.ErrorIs(t, err, ErrEditInProgress)

	close(gen.gate)
	require.NoError(t, <-done)
	assert.False(t, s.Busy())
	assert.Equal(t, 1, s.HistoryLen())
}

func TestPointerSelectionWithPan(t *testing.T) {
	s := newTestSession(t, &countingGenerator{})

	// Pan the page 10px right and 20px down
	s.SetTool(selection.ToolPan)
	s.PointerDown(geometry.Pt(0, 0))
	s.PointerMove(geometry.Pt(5, 10))
	s.PointerUp(geometry.Pt(10, 20))
	assert.Equal(t, geometry.Pt(10, 20), s.Viewport().PanOffset())
	assert.Nil(t, s.Selection().Target)

	s.SetTool(selection.ToolSelect)
	s.PointerDown(geometry.Pt(310, 170))
	s.PointerMove(geometry.Pt(200, 150))
	s.PointerUp(geometry.Pt(110, 120))

	st := s.Selection()
	require.NotNil(t, st.Target)
	assert.Equal(t, geometry.R(100, 100, 200, 50), *st.Target)
}

func TestSampleRoleViaPointer(t *testing.T) {
	s := newTestSession(t, &countingGenerator{})
	s.SetActiveRole(selection.RoleSample)
	s.PointerDown(geometry.Pt(0, 0))
	s.PointerUp(geometry.Pt(30, 30))

	st := s.Selection()
	require.NotNil(t, st.Sample)
	assert.Equal(t, selection.RoleTarget, st.ActiveRole)
}

func TestSelectionFollowsZoom(t *testing.T) {
	s := newTestSession(t, &countingGenerator{})
	s.Select(selection.RoleTarget, geometry.R(100, 100, 200, 50))

	require.NoError(t, s.Viewport().SetZoom(context.Background(), 2))
	assert.Equal(t, geometry.R(200, 200, 400, 100), *s.Selection().Target)

	// The mapped PDF rectangle is unchanged by the zoom
	r, ok := s.Viewport().CanvasToPDF(*s.Selection().Target)
	require.True(t, ok)
	assert.InDelta(t, 692, r.Y, 1e-9)
}

func TestPageChangeClearsSelection(t *testing.T) {
	opts := viewport.DefaultOptions()
	opts.Fit = false
	view := viewport.New(whitePages, opts, nil)
	pipeline, err := editor.New(&countingGenerator{}, nil, editor.DefaultOptions(), nil)
	require.NoError(t, err)
	s := New(view, pipeline, nil)
	defer s.Close()
	require.NoError(t, s.Load(context.Background(), pdftest.PDF(t, pdftest.A4, pdftest.A4).Bytes()))

	s.Select(selection.RoleTarget, geometry.R(100, 100, 200, 50))
	require.NoError(t, s.SetPage(context.Background(), 1))
	assert.Nil(t, s.Selection().Target)
}

func TestLoadRejectsGarbage(t *testing.T) {
	view := viewport.New(whitePages, viewport.DefaultOptions(), nil)
	pipeline, err := editor.New(&countingGenerator{}, nil, editor.DefaultOptions(), nil)
	require.NoError(t, err)
	s := New(view, pipeline, nil)
	defer s.Close()

	err = s.Load(context.Background(), []byte("not a pdf"))
	require.ErrorIs(t, err, document.ErrInvalidDocument)
	assert.Equal(t, "The file could not be opened as a PDF.", UserMessage(err))

	_, err = s.Download()
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestInvalidPageKeepsSelection(t *testing.T) {
	s := newTestSession(t, &countingGenerator{})
	s.Select(selection.RoleTarget, geometry.R(100, 100, 200, 50))

	err := s.SetPage(context.Background(), 5)
	require.Error(t, err)
	assert.Equal(t, 0, s.Viewport().Page())
	require.NotNil(t, s.Selection().Target)
	assert.Equal(t, geometry.R(100, 100, 200, 50), *s.Selection().Target)
}

func TestSelectionMapsStablyAcrossZooms(t *testing.T) {
	s := newTestSession(t, &countingGenerator{})
	ctx := context.Background()
	s.Select(selection.RoleTarget, geometry.R(100, 100, 200, 50))

	for _, zoom := range []float64{1.7, 1.3, 2.9, 0.77, 1.7, 3.33, 1} {
		require.NoError(t, s.Viewport().SetZoom(ctx, zoom))
		r, ok := s.Viewport().CanvasToPDF(*s.Selection().Target)
		require.True(t, ok)
		assert.InDelta(t, 100, r.X, 1e-6, "x at zoom %v", zoom)
		assert.InDelta(t, 692, r.Y, 1e-6, "y at zoom %v", zoom)
		assert.InDelta(t, 200, r.W, 1e-6, "w at zoom %v", zoom)
		assert.InDelta(t, 50, r.H, 1e-6, "h at zoom %v", zoom)
	}
}

func TestLoadDuringEditIsRejected(t *testing.T) {
	gen := &countingGenerator{gate: make(chan struct{}), entry: make(chan struct{})}
	s := newTestSession(t, gen)
	s.Select(selection.RoleTarget, geometry.R(100, 100, 200, 50))

	done := make(chan error, 1)
	go func() {
		_, err := s.ApplyEdit(context.Background(), "slow", "")
		done <- err
	}()
	<-gen.entry

	err := s.Load(context.Background(), pdftest.PDF(t, pdftest.A4, pdftest.A4).Bytes())
	assert.ErrorIs(t, err, ErrEditInProgress)

	close(gen.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, s.HistoryLen())
	assert.Equal(t, 1, s.Viewport().PageCount())
	assert.True(t, s.CanUndo())
}
