package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gardar/pdfretouch/pkg/document"
	"github.com/gardar/pdfretouch/pkg/editor"
	"github.com/gardar/pdfretouch/pkg/imagegen"
	"github.com/gardar/pdfretouch/pkg/viewport"
)

// ApplyEdit runs the edit pipeline on the current target selection. An empty text
// erases the region; otherwise the region is redrawn with text. On success the new
// document becomes current and the previous one can be restored with Undo.
func (s *Session) ApplyEdit(ctx context.Context, text, instruction string) (editor.Result, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return editor.Result{}, ErrEditInProgress
	}
	s.busy = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	doc := s.view.Document()
	if doc.IsZero() {
		return editor.Result{}, ErrNoDocument
	}
	st := s.sel.State()
	if st.Target == nil {
		return editor.Result{}, ErrNoTarget
	}
	req := editor.Request{
		Surface:         s.view.Surface(),
		Target:          *st.Target,
		Sample:          st.Sample,
		ReplacementText: text,
		Instruction:     instruction,
	}
	if err := s.pipeline.Validate(req); err != nil {
		return editor.Result{}, err
	}

	s.hist.Push(doc)
	res, err := s.pipeline.Apply(ctx, doc, req)
	if err == nil {
		err = s.commit(ctx, res.Document)
	}
	if err != nil {
		if _, popErr := s.hist.Pop(); popErr != nil {
			s.log.WithError(popErr).Error("History lost the pre-edit snapshot")
		}
		s.log.WithError(err).Warn("Edit failed, document unchanged")
		return editor.Result{}, err
	}

	s.log.WithFields(logrus.Fields{
		"page":          res.PageIndex + 1,
		"history":       s.hist.Len(),
		"history_bytes": s.hist.Size(),
	}).Info("Edit committed")
	return res, nil
}

// commit makes doc current. A render failure after the document is in place is
// logged; the document itself is valid.
func (s *Session) commit(ctx context.Context, doc document.Document) error {
	info, err := document.Inspect(doc)
	if err != nil {
		return fmt.Errorf("edited document is unreadable: %w", err)
	}
	if err := s.view.SetDocument(ctx, doc, info); err != nil {
		s.log.WithError(err).Warn("Failed to render edited document")
	}
	return nil
}

// Undo restores the document from before the most recent edit. It returns false
// and changes nothing when there is nothing to undo.
func (s *Session) Undo(ctx context.Context) (bool, error) {
	if s.Busy() {
		return false, ErrEditInProgress
	}
	doc, ok := s.hist.Undo()
	if !ok {
		return false, nil
	}
	if err := s.commit(ctx, doc); err != nil {
		s.hist.Push(doc)
		return false, err
	}
	s.log.WithField("history", s.hist.Len()).Info("Edit undone")
	return true, nil
}

// UserMessage turns an error from the session into a message for the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, editor.ErrSelectionTooSmall):
		return "The selected area is too small. Drag a larger rectangle."
	case errors.Is(err, ErrNoTarget):
		return "Select the area to edit first."
	case errors.Is(err, document.ErrInvalidDocument):
		return "The file could not be opened as a PDF."
	case errors.Is(err, imagegen.ErrNoImageReturned):
		return "The image service did not return an image. Try again or adjust the instruction."
	case errors.Is(err, imagegen.ErrServiceUnavailable):
		return "The image service could not be reached. Check the connection and API key."
	case errors.Is(err, ErrEditInProgress):
		return "Please wait for the current edit to finish."
	case errors.Is(err, ErrNoDocument), errors.Is(err, viewport.ErrNoDocument):
		return "Open a PDF first."
	case errors.Is(err, editor.ErrNoSurface):
		return "The page is still rendering. Try again in a moment."
	default:
		return "The edit failed: " + err.Error()
	}
}
