package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/gardar/pdfretouch/pkg/editor"
	"github.com/gardar/pdfretouch/pkg/geometry"
	"github.com/gardar/pdfretouch/pkg/selection"
	"github.com/gardar/pdfretouch/pkg/session"
)

// Script is a recorded editing session. Paths are relative to the script file.
//
//	input: invoice.pdf
//	output: invoice_paid.pdf
//	steps:
//	  - resize: {width: 1000, height: 800}
//	  - zoom: 1.5
//	  - zoom_in: true
//	  - select: {role: target, rect: "150,150,300,75"}
//	  - apply: {text: "Paid in full"}
//	  - snapshot: after.png
//	  - undo: true
type Script struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Steps  []Step `yaml:"steps"`
}

// Step is one user action. Exactly one field is set.
type Step struct {
	Zoom     *float64    `yaml:"zoom,omitempty"`
	ZoomIn   bool        `yaml:"zoom_in,omitempty"`
	ZoomOut  bool        `yaml:"zoom_out,omitempty"`
	Fit      *bool       `yaml:"fit,omitempty"`
	Resize   *ResizeStep `yaml:"resize,omitempty"`
	Page     *int        `yaml:"page,omitempty"` // 1-based
	Select   *SelectStep `yaml:"select,omitempty"`
	Clear    string      `yaml:"clear,omitempty"` // Role to clear
	Apply    *ApplyStep  `yaml:"apply,omitempty"`
	Undo     bool        `yaml:"undo,omitempty"`
	Save     string      `yaml:"save,omitempty"`
	Snapshot string      `yaml:"snapshot,omitempty"`
}

// ResizeStep sets the viewer size used in fit mode.
type ResizeStep struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// SelectStep draws a selection rectangle in canvas pixels.
type SelectStep struct {
	Role string `yaml:"role"` // "target" (default) or "sample"
	Rect string `yaml:"rect"` // x,y,w,h
}

// ApplyStep runs an edit over the current selection.
type ApplyStep struct {
	Text        string `yaml:"text"`
	Instruction string `yaml:"instruction"`
}

// LoadScript reads and validates a script file, resolving its paths against the
// file's directory.
func LoadScript(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	sc, err := ReadScript(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.resolve(filepath.Dir(path))
	return sc, nil
}

// ReadScript decodes and validates a script.
func ReadScript(r io.Reader) (*Script, error) {
	var sc Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the input and every step.
func (sc *Script) Validate() error {
	var errs []error
	if sc.Input == "" {
		errs = append(errs, errors.New("input is required"))
	}
	if len(sc.Steps) == 0 {
		errs = append(errs, errors.New("no steps"))
	}
	for i, st := range sc.Steps {
		if err := st.validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

func (st Step) validate() error {
	set := st.actions()
	if len(set) != 1 {
		return fmt.Errorf("want exactly one action, got %d (%s)", len(set), strings.Join(set, ", "))
	}
	switch {
	case st.Zoom != nil && *st.Zoom <= 0:
		return fmt.Errorf("zoom must be positive")
	case st.Resize != nil && (st.Resize.Width <= 0 || st.Resize.Height <= 0):
		return fmt.Errorf("resize needs a positive width and height")
	case st.Page != nil && *st.Page < 1:
		return fmt.Errorf("page numbers start at 1")
	case st.Select != nil:
		if _, err := parseRole(st.Select.Role); err != nil {
			return err
		}
		if _, err := geometry.ParseRect(st.Select.Rect); err != nil {
			return err
		}
	case st.Clear != "":
		if _, err := parseRole(st.Clear); err != nil {
			return err
		}
	}
	return nil
}

func (st Step) actions() []string {
	var set []string
	add := func(ok bool, name string) {
		if ok {
			set = append(set, name)
		}
	}
	add(st.Zoom != nil, "zoom")
	add(st.ZoomIn, "zoom_in")
	add(st.ZoomOut, "zoom_out")
	add(st.Fit != nil, "fit")
	add(st.Resize != nil, "resize")
	add(st.Page != nil, "page")
	add(st.Select != nil, "select")
	add(st.Clear != "", "clear")
	add(st.Apply != nil, "apply")
	add(st.Undo, "undo")
	add(st.Save != "", "save")
	add(st.Snapshot != "", "snapshot")
	return set
}

func (sc *Script) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	sc.Input = abs(sc.Input)
	sc.Output = abs(sc.Output)
	for i := range sc.Steps {
		sc.Steps[i].Save = abs(sc.Steps[i].Save)
		sc.Steps[i].Snapshot = abs(sc.Steps[i].Snapshot)
	}
}

func parseRole(s string) (selection.Role, error) {
	switch strings.ToLower(s) {
	case "", "target":
		return selection.RoleTarget, nil
	case "sample":
		return selection.RoleSample, nil
	default:
		return 0, fmt.Errorf("unknown selection role %q", s)
	}
}

// runScript plays the steps against s, which must already hold the input document.
func runScript(ctx context.Context, s *session.Session, sc *Script, log logrus.FieldLogger) error {
	view := s.Viewport()
	for i, st := range sc.Steps {
		name := st.actions()[0]
		log := log.WithFields(logrus.Fields{"step": i + 1, "action": name})

		var err error
		switch {
		case st.Zoom != nil:
			err = view.SetZoom(ctx, *st.Zoom)
		case st.ZoomIn:
			err = view.ZoomIn(ctx)
		case st.ZoomOut:
			err = view.ZoomOut(ctx)
		case st.Fit != nil:
			err = view.SetFitMode(ctx, *st.Fit)
		case st.Resize != nil:
			err = view.Resize(ctx, geometry.Size{W: st.Resize.Width, H: st.Resize.Height})
		case st.Page != nil:
			if *st.Page > view.PageCount() {
				err = fmt.Errorf("page %d out of range (document has %d pages)", *st.Page, view.PageCount())
				break
			}
			err = s.SetPage(ctx, *st.Page-1)
		case st.Select != nil:
			role, _ := parseRole(st.Select.Role)
			r, _ := geometry.ParseRect(st.Select.Rect)
			if !s.Select(role, r) {
				err = fmt.Errorf("selection %s was not accepted", r)
			}
		case st.Clear != "":
			role, _ := parseRole(st.Clear)
			s.Selector().Clear(role)
		case st.Apply != nil:
			var res editor.Result
			res, err = s.ApplyEdit(ctx, st.Apply.Text, st.Apply.Instruction)
			if err == nil {
				log = log.WithFields(logrus.Fields{"rect": res.Rect.String(), "words": res.Words, "text": res.Text})
			} else {
				err = userError(err)
			}
		case st.Undo:
			var ok bool
			ok, err = s.Undo(ctx)
			if err == nil && !ok {
				log.Warn("Nothing to undo")
			}
		case st.Save != "":
			err = save(s, st.Save)
		case st.Snapshot != "":
			surface := view.Surface()
			if surface == nil {
				err = fmt.Errorf("no rendered page")
				break
			}
			err = writePNG(st.Snapshot, selection.Composite(surface.Image, s.Selector()))
		}
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}
		log.Debug("Step done")
	}

	if sc.Output != "" {
		return save(s, sc.Output)
	}
	return nil
}

func save(s *session.Session, path string) error {
	data, err := s.Download()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}
