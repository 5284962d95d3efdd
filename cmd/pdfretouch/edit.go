package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gardar/pdfretouch/pkg/selection"
)

func newEditCmd(a *app) *cobra.Command {
	var (
		view        viewFlags
		rects       rectFlags
		text        string
		instruction string
		out         string
	)
	cmd := &cobra.Command{
		Use:   "edit <pdf>",
		Short: "Replace or erase the text in a region of a page",
		Long: `Replace or erase the text in a region of a page.

With --text the region is redrawn with the new text in the style of the
original. Without it, the text is removed and the background filled in.
An optional --sample region shows the image service the font and
background to match.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target, sample, err := rects.parse()
			if err != nil {
				return err
			}
			if target == nil {
				return fmt.Errorf("--target is required")
			}
			data, err := readPDF(args[0])
			if err != nil {
				return err
			}

			s, err := a.session(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			defer a.close()
			if err := s.Load(ctx, data); err != nil {
				return userError(err)
			}
			if err := view.apply(ctx, s.Viewport()); err != nil {
				return err
			}
			s.Select(selection.RoleTarget, *target)
			if sample != nil {
				s.Select(selection.RoleSample, *sample)
			}

			res, err := s.ApplyEdit(ctx, text, instruction)
			if err != nil {
				return userError(err)
			}
			result, err := s.Download()
			if err != nil {
				return err
			}

			if out == "" {
				out = defaultOutput(args[0])
			}
			if err := os.WriteFile(out, result, 0o644); err != nil {
				return fmt.Errorf("failed to write output PDF: %w", err)
			}
			a.log.WithFields(logrus.Fields{
				"page":  res.PageIndex + 1,
				"rect":  res.Rect.String(),
				"words": res.Words,
				"text":  res.Text,
				"out":   out,
			}).Info("Edited PDF written")
			return nil
		},
	}
	view.register(cmd)
	rects.register(cmd)
	cmd.Flags().StringVar(&text, "text", "", "replacement text; empty erases the region")
	cmd.Flags().StringVar(&instruction, "instruction", "", "extra guidance for the image service")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output PDF path (default <input>_retouched.pdf)")
	cmd.Flags().StringVar(&a.ocrDump, "ocr-dump", "", "write the raw Document AI response to this file")
	return cmd
}

func defaultOutput(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_retouched.pdf"
}

