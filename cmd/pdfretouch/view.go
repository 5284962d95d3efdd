package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/gardar/pdfretouch/pkg/geometry"
	"github.com/gardar/pdfretouch/pkg/viewport"
)

// viewFlags put the viewer in the state the user selected regions in.
type viewFlags struct {
	page   int
	zoom   float64
	width  float64
	height float64
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.page, "page", "p", 1, "page number (1-based)")
	cmd.Flags().Float64VarP(&f.zoom, "zoom", "z", 1, "zoom factor on top of the fit scale")
	cmd.Flags().Float64Var(&f.width, "width", 0, "viewer width in pixels; with --height enables fit mode")
	cmd.Flags().Float64Var(&f.height, "height", 0, "viewer height in pixels; with --width enables fit mode")
}

func (f *viewFlags) apply(ctx context.Context, view *viewport.Controller) error {
	fit := f.width > 0 && f.height > 0
	if err := view.SetFitMode(ctx, fit); err != nil {
		return err
	}
	if fit {
		if err := view.Resize(ctx, geometry.Size{W: f.width, H: f.height}); err != nil {
			return err
		}
	}
	if f.page < 1 || f.page > view.PageCount() {
		return fmt.Errorf("page %d out of range (document has %d pages)", f.page, view.PageCount())
	}
	if err := view.SetPage(ctx, f.page-1); err != nil {
		return err
	}
	return view.SetZoom(ctx, f.zoom)
}

// rectFlags holds the target and sample rectangles given on the command line.
type rectFlags struct {
	target string
	sample string
}

func (f *rectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.target, "target", "t", "", "target region x,y,w,h in canvas pixels")
	cmd.Flags().StringVarP(&f.sample, "sample", "s", "", "optional style sample region x,y,w,h in canvas pixels")
}

func (f *rectFlags) parse() (target, sample *geometry.Rect, err error) {
	if f.target != "" {
		r, err := geometry.ParseRect(f.target)
		if err != nil {
			return nil, nil, fmt.Errorf("--target: %w", err)
		}
		target = &r
	}
	if f.sample != "" {
		r, err := geometry.ParseRect(f.sample)
		if err != nil {
			return nil, nil, fmt.Errorf("--sample: %w", err)
		}
		sample = &r
	}
	return target, sample, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return f.Close()
}

func readPDF(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF file: %w", err)
	}
	return data, nil
}
