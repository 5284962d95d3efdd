package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script.yml>",
		Short: "Run a scripted editing session",
		Long: `Run a scripted editing session.

The script names an input PDF and a list of steps a user would take in the
viewer: resize, fit, zoom, zoom_in, zoom_out, page, select, clear, apply, undo, snapshot and
save. The final document is written to output when it is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sc, err := LoadScript(args[0])
			if err != nil {
				return err
			}
			data, err := readPDF(sc.Input)
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
			if err := runScript(ctx, s, sc, a.log); err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"steps":  len(sc.Steps),
				"edits":  s.HistoryLen(),
				"output": sc.Output,
			}).Info("Script finished")
			return nil
		},
	}
	cmd.Flags().StringVar(&a.ocrDump, "ocr-dump", "", "write the raw Document AI response to this file")
	return cmd
}
