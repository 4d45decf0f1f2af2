package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ChannelBoard/internal/label"
)

func exportCmd(e *env) *cobra.Command {
	var (
		labels string
		alpha  bool
		output string
	)

	c := &cobra.Command{
		Use:   "export MANIFEST",
		Short: "Render only the layers carrying the given color labels to a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := label.ParseSelector(labels)
			if err != nil {
				return err
			}
			w, err := e.open(args[0], nil)
			if err != nil {
				return err
			}
			defer w.Close()

			if err := w.board.Exporter.ExportFiltered(cmd.Context(), w.doc, sel, alpha, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s %s to %s\n", w.doc.Name(), sel, output)
			return nil
		},
	}

	c.Flags().StringVarP(&labels, "labels", "l", "", "comma separated color labels to keep (required)")
	c.Flags().BoolVar(&alpha, "alpha", false, "keep transparency instead of filling with white")
	c.Flags().StringVarP(&output, "output", "o", "", "output PNG path (required)")
	_ = c.MarkFlagRequired("labels")
	_ = c.MarkFlagRequired("output")
	return c
}
