package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ChannelBoard/internal/state"
)

func transferCmd(e *env) *cobra.Command {
	var (
		channel string
		overlay string
		output  string
	)

	c := &cobra.Command{
		Use:   "transfer MANIFEST",
		Short: "Mask the layers of a channel's label against an overlay image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := state.ParseChannel(channel)
			if err != nil {
				return err
			}
			w, err := e.open(args[0], nil)
			if err != nil {
				return err
			}
			defer w.Close()

			ctx := cmd.Context()
			if _, err := w.board.Initialize(ctx, w.doc); err != nil {
				return err
			}
			if err := w.board.ImportOverlay(ctx, w.doc, ch, overlay); err != nil {
				return err
			}
			res, err := w.board.Transfer(ctx, w.doc, ch, true)
			if err != nil {
				return err
			}
			printMasks(cmd.OutOrStdout(), ch, res)

			if output != "" {
				if err := w.render(ctx, e.cfg.Settle, output); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "render written to %s\n", output)
			}
			return nil
		},
	}

	c.Flags().StringVarP(&channel, "channel", "c", "", "lineart, shadow or light (required)")
	c.Flags().StringVar(&overlay, "overlay", "", "overlay PNG at the document's size (required)")
	c.Flags().StringVarP(&output, "output", "o", "", "write the resulting document render to this PNG")
	_ = c.MarkFlagRequired("channel")
	_ = c.MarkFlagRequired("overlay")
	return c
}
