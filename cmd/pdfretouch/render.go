package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gardar/pdfretouch/pkg/document"
	"github.com/gardar/pdfretouch/pkg/geometry"
	"github.com/gardar/pdfretouch/pkg/selection"
	"github.com/gardar/pdfretouch/pkg/viewport"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		view  viewFlags
		rects rectFlags
		out   string
	)
	cmd := &cobra.Command{
		Use:   "render <pdf>",
		Short: "Render a page as the viewer shows it, with selections drawn on top",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target, sample, err := rects.parse()
			if err != nil {
				return err
			}
			data, err := readPDF(args[0])
			if err != nil {
				return err
			}
			doc := document.New(data)
			info, err := document.Inspect(doc)
			if err != nil {
				return userError(err)
			}

			r, err := a.renderer()
			if err != nil {
				return err
			}
			ctrl := viewport.New(r, a.cfg.Viewport, a.log)
			if err := ctrl.SetDocument(ctx, doc, info); err != nil {
				return err
			}
			if err := view.apply(ctx, ctrl); err != nil {
				return err
			}
			surface := ctrl.Surface()
			if surface == nil {
				return fmt.Errorf("page was not rendered")
			}

			sel := selection.New()
			selectRect(sel, selection.RoleTarget, target)
			selectRect(sel, selection.RoleSample, sample)

			if out == "" {
				out = fmt.Sprintf("page-%d.png", surface.Page+1)
			}
			if err := writePNG(out, selection.Composite(surface.Image, sel)); err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"page":  surface.Page + 1,
				"scale": surface.Scale,
				"size":  fmt.Sprintf("%dx%d", surface.Image.Bounds().Dx(), surface.Image.Bounds().Dy()),
				"out":   out,
			}).Info("Page rendered")
			return nil
		},
	}
	view.register(cmd)
	rects.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output PNG path (default page-<n>.png)")
	return cmd
}

func selectRect(sel *selection.Selector, role selection.Role, r *geometry.Rect) {
	if r == nil {
		return
	}
	sel.Begin(role, r.Min())
	sel.Update(r.Max())
	sel.End()
}
