// Package history keeps a linear undo stack of document snapshots.
//
// Each entry is a whole immutable Document. The stack is unbounded and there is no
// redo: once a snapshot is popped, the state that replaced it is gone.
package history

import (
	"errors"
	"sync"

	"github.com/gardar/pdfretouch/pkg/document"
)

// ErrNothingToUndo is returned by Pop when the stack is empty.
var ErrNothingToUndo = errors.New("history: nothing to undo")

// Store is a stack of snapshots. It is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	stack []document.Document
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Push appends a snapshot.
func (s *Store) Push(doc document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stack = append(s.stack, doc)
}

// Undo pops the most recent snapshot. On an empty stack it returns false and
// changes nothing.
func (s *Store) Undo() (document.Document, bool) {
	doc, err := s.Pop()
	return doc, err == nil
}

// Pop is Undo with an error for the empty case.
func (s *Store) Pop() (document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.stack)
	if n == 0 {
		return document.Document{}, ErrNothingToUndo
	}
	doc := s.stack[n-1]
	s.stack[n-1] = document.Document{}
	s.stack = s.stack[:n-1]
	return doc, nil
}

// Peek returns the most recent snapshot without removing it.
func (s *Store) Peek() (document.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) == 0 {
		return document.Document{}, false
	}
	return s.stack[len(s.stack)-1], true
}

// Len returns the number of snapshots.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

// Size returns the total bytes held by all snapshots.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, d := range s.stack {
		total += d.Len()
	}
	return total
}

// Reset drops every snapshot.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stack = nil
}
