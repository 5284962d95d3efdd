// Package session ties the viewer, selector, history and edit pipeline into one
// editing session.
//
// A Session is the context object for everything that would otherwise be global UI
// state: the current tool, the selections, the undo stack and the busy flag. Pointer
// input arrives in display coordinates and is mapped to canvas pixels through the
// viewport's pan offset.
//
// Applying an edit pushes the pre-edit snapshot first and pops it again if the
// pipeline fails, so a failed edit leaves both the document and the history as they
// were. Only one edit may run at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gardar/pdfretouch/pkg/document"
	"github.com/gardar/pdfretouch/pkg/editor"
	"github.com/gardar/pdfretouch/pkg/geometry"
	"github.com/gardar/pdfretouch/pkg/history"
	"github.com/gardar/pdfretouch/pkg/selection"
	"github.com/gardar/pdfretouch/pkg/viewport"
)

var (
	// ErrEditInProgress is returned when an edit is requested while another runs.
	ErrEditInProgress = errors.New("an edit is already in progress")
	// ErrNoDocument is returned by operations that need a loaded document.
	ErrNoDocument = errors.New("no document loaded")
	// ErrNoTarget is returned by ApplyEdit when no target region was selected.
	ErrNoTarget = errors.New("no target region selected")
)

// Session is one editing session over a single document.
type Session struct {
	view     *viewport.Controller
	sel      *selection.Selector
	hist     *history.Store
	pipeline *editor.Pipeline
	log      logrus.FieldLogger

	mu        sync.Mutex
	busy      bool
	panAnchor *geometry.Point

	unsubscribe func()
}

// New creates a session. The session subscribes to view so selections follow scale
// changes; call Close to drop that subscription.
func New(view *viewport.Controller, pipeline *editor.Pipeline, logger logrus.FieldLogger) *Session {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Session{
		view:     view,
		sel:      selection.New(),
		hist:     history.New(),
		pipeline: pipeline,
		log:      logger,
	}
	s.unsubscribe = view.Subscribe(s.onScaleChange)
	return s
}

// Close detaches the session from its viewport.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *Session) onScaleChange(c viewport.ScaleChange) {
	if c.PreviousWidth > 0 && c.Width > 0 && c.Width != c.PreviousWidth {
		s.sel.Rescale(float64(c.Width) / float64(c.PreviousWidth))
	}
}

// Load opens data as the session's document, replacing any previous one and
// clearing history and selections. It is refused while an edit runs.
func (s *Session) Load(ctx context.Context, data []byte) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrEditInProgress
	}
	s.busy = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	doc := document.New(data)
	info, err := document.Inspect(doc)
	if err != nil {
		return err
	}
	s.hist.Reset()
	s.sel.Reset()
	s.view.ResetPan()
	if err := s.view.SetDocument(ctx, doc, info); err != nil {
		return fmt.Errorf("failed to render document: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"pages":  info.PageCount(),
		"bytes":  doc.Len(),
		"digest": doc.Digest()[:12],
	}).Info("Document loaded")
	return nil
}

// Document returns the current document.
func (s *Session) Document() document.Document {
	return s.view.Document()
}

// Viewport returns the session's viewport controller.
func (s *Session) Viewport() *viewport.Controller {
	return s.view
}

// Selection returns the current selection state.
func (s *Session) Selection() selection.State {
	return s.sel.State()
}

// Selector returns the session's selector, e.g. for drawing its overlay.
func (s *Session) Selector() *selection.Selector {
	return s.sel
}

// SetPage changes page and drops the selections, which belong to the old page. An
// invalid index leaves both page and selections alone.
func (s *Session) SetPage(ctx context.Context, n int) error {
	prev := s.view.Page()
	err := s.view.SetPage(ctx, n)
	if s.view.Page() != prev {
		s.sel.Reset()
	}
	return err
}

// SetTool switches between selecting and panning.
func (s *Session) SetTool(t selection.Tool) {
	s.sel.SetTool(t)
}

// SetActiveRole chooses whether the next drag defines the target or the sample.
func (s *Session) SetActiveRole(r selection.Role) {
	s.sel.SetActiveRole(r)
}

// Select sets the rectangle for role directly, in canvas pixels.
func (s *Session) Select(role selection.Role, r geometry.Rect) bool {
	r = r.Normalize()
	if !s.sel.Begin(role, r.Min()) {
		return false
	}
	s.sel.Update(r.Max())
	return s.sel.End()
}

// PointerDown starts a selection drag, or anchors a pan in pan mode.
func (s *Session) PointerDown(p geometry.Point) {
	if s.sel.Tool() == selection.ToolPan {
		s.panFrom(p)
		return
	}
	s.sel.BeginActive(s.view.DisplayToCanvas(p))
}

// PointerMove extends the selection or pans the page.
func (s *Session) PointerMove(p geometry.Point) {
	if s.sel.Tool() == selection.ToolPan {
		s.panTo(p)
		return
	}
	s.sel.Update(s.view.DisplayToCanvas(p))
}

// PointerUp commits the selection or ends the pan.
func (s *Session) PointerUp(p geometry.Point) {
	if s.sel.Tool() == selection.ToolPan {
		s.panTo(p)
		s.mu.Lock()
		s.panAnchor = nil
		s.mu.Unlock()
		return
	}
	s.sel.Update(s.view.DisplayToCanvas(p))
	s.sel.End()
}

func (s *Session) panFrom(p geometry.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panAnchor = &p
}

func (s *Session) panTo(p geometry.Point) {
	s.mu.Lock()
	anchor := s.panAnchor
	if anchor != nil {
		s.panAnchor = &p
	}
	s.mu.Unlock()
	if anchor == nil {
		return
	}
	d := p.Sub(*anchor)
	s.view.Pan(d.X, d.Y)
}

// Busy reports whether an edit is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// CanUndo reports whether there is an edit to undo.
func (s *Session) CanUndo() bool {
	_, ok := s.hist.Peek()
	return ok
}

// HistoryLen returns the number of undoable edits.
func (s *Session) HistoryLen() int {
	return s.hist.Len()
}

// Download returns the bytes of the current document.
func (s *Session) Download() ([]byte, error) {
	doc := s.view.Document()
	if doc.IsZero() {
		return nil, ErrNoDocument
	}
	return doc.Bytes(), nil
}
