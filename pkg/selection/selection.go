// Package selection records the target and sample rectangles drawn over a page.
//
// A Selector is a small state machine, Idle → Drawing(role) → Idle, driven by
// pointer positions in canvas pixels. Rectangles are kept normalized so that (X, Y)
// is the top-left corner whatever direction the user dragged in. Any size is
// accepted here, including zero; minimum sizes are checked by the edit pipeline.
package selection

import (
	"fmt"
	"sync"

	"github.com/gardar/pdfretouch/pkg/geometry"
)

// Role names which rectangle a drag defines.
type Role int

const (
	RoleTarget Role = iota // Region to be replaced or erased
	RoleSample             // Optional style reference
)

func (r Role) String() string {
	switch r {
	case RoleTarget:
		return "target"
	case RoleSample:
		return "sample"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Tool is the pointer mode of the editor. Only ToolSelect feeds the selector.
type Tool int

const (
	ToolSelect Tool = iota
	ToolPan
)

func (t Tool) String() string {
	switch t {
	case ToolSelect:
		return "select"
	case ToolPan:
		return "pan"
	default:
		return fmt.Sprintf("Tool(%d)", int(t))
	}
}

// State is a snapshot of the selector.
type State struct {
	Target     *geometry.Rect
	Sample     *geometry.Rect
	ActiveRole Role
}

// Selector tracks the two selection rectangles. It is safe for concurrent use.
type Selector struct {
	mu      sync.Mutex
	tool    Tool
	active  Role
	target  *geometry.Rect
	sample  *geometry.Rect
	drawing bool
	role    Role // role being drawn, valid while drawing
	anchor  geometry.Point
}

// New returns an idle selector in select mode with the target role active.
func New() *Selector {
	return &Selector{}
}

// SetTool switches the pointer mode. Switching away from ToolSelect abandons a
// drag in progress, keeping the rectangle drawn so far.
func (s *Selector) SetTool(t Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tool = t
	if t != ToolSelect {
		s.endLocked()
	}
}

// Tool returns the current pointer mode.
func (s *Selector) Tool() Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tool
}

// SetActiveRole picks the role used by BeginActive.
func (s *Selector) SetActiveRole(r Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = r
}

// Begin starts drawing the rectangle for role at p, resetting it to zero size.
// It reports whether the selector accepted the input.
func (s *Selector) Begin(role Role, p geometry.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tool != ToolSelect || s.drawing {
		return false
	}
	s.drawing = true
	s.role = role
	s.anchor = p
	r := geometry.Rect{X: p.X, Y: p.Y}
	s.setLocked(role, &r)
	return true
}

// BeginActive starts drawing with the active role.
func (s *Selector) BeginActive(p geometry.Point) bool {
	s.mu.Lock()
	role := s.active
	s.mu.Unlock()
	return s.Begin(role, p)
}

// Update stretches the rectangle being drawn to p. It is ignored while idle.
func (s *Selector) Update(p geometry.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tool != ToolSelect || !s.drawing {
		return false
	}
	r := geometry.RectFromPoints(s.anchor, p)
	s.setLocked(s.role, &r)
	return true
}

// End commits the rectangle being drawn. Finishing a sample rectangle makes the
// target role active again.
func (s *Selector) End() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.drawing {
		return false
	}
	s.endLocked()
	return true
}

func (s *Selector) endLocked() {
	if !s.drawing {
		return
	}
	s.drawing = false
	if s.role == RoleSample {
		s.active = RoleTarget
	}
}

// Clear removes the rectangle for role.
func (s *Selector) Clear(role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawing && s.role == role {
		s.drawing = false
	}
	s.setLocked(role, nil)
}

// Reset clears both rectangles and returns to the target role.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawing = false
	s.target, s.sample = nil, nil
	s.active = RoleTarget
}

// Drawing reports whether a drag is in progress.
func (s *Selector) Drawing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawing
}

// State returns copies of both rectangles and the active role.
func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Target:     clone(s.target),
		Sample:     clone(s.sample),
		ActiveRole: s.active,
	}
}

// Rescale multiplies the stored rectangles by factor so they stay over the same page
// content after the surface was re-rendered at a different scale.
func (s *Selector) Rescale(factor float64) {
	if factor <= 0 || factor == 1 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target != nil {
		r := s.target.Scale(factor)
		s.target = &r
	}
	if s.sample != nil {
		r := s.sample.Scale(factor)
		s.sample = &r
	}
	s.anchor = s.anchor.Scale(factor)
}

func (s *Selector) setLocked(role Role, r *geometry.Rect) {
	if role == RoleSample {
		s.sample = r
	} else {
		s.target = r
	}
}

func clone(r *geometry.Rect) *geometry.Rect {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
