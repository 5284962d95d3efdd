package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gardar/pdfretouch/pkg/document"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <pdf>",
		Short: "Print page count, page sizes, digest and layers of a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readPDF(args[0])
			if err != nil {
				return err
			}
			doc := document.New(data)
			info, err := document.Inspect(doc)
			if err != nil {
				return userError(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:   %s\n", args[0])
			fmt.Fprintf(out, "Bytes:  %d\n", doc.Len())
			fmt.Fprintf(out, "Digest: %s\n", doc.Digest())
			fmt.Fprintf(out, "Pages:  %d\n", info.PageCount())
			for i, size := range info.Pages {
				fmt.Fprintf(out, "  %3d  %.2f x %.2f pt\n", i+1, size.W, size.H)
			}
			layers := document.Layers(doc)
			if len(layers) == 0 {
				fmt.Fprintln(out, "Layers: none")
				return nil
			}
			fmt.Fprintf(out, "Layers: %d\n", len(layers))
			for _, l := range layers {
				fmt.Fprintf(out, "  %s\n", l)
			}
			return nil
		},
	}
}
