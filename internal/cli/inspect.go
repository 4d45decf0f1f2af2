package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ChannelBoard/internal/host"
	"ChannelBoard/internal/label"
)

func inspectCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect MANIFEST",
		Short: "Print the layer tree of a manifest with its color labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := e.open(args[0], nil)
			if err != nil {
				return err
			}
			defer w.Close()

			doc := w.doc
			cs := doc.ColorSpace()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %dx%d %s/%s\n", doc.Name(), doc.Width(), doc.Height(), cs.Model, cs.Depth)
			for _, c := range doc.RootNode().ChildNodes() {
				printTree(cmd.OutOrStdout(), c, 1)
			}
			return nil
		},
	}
}

func printTree(out io.Writer, n host.Node, depth int) {
	line := strings.Repeat("  ", depth) + n.Name() + " (" + n.Type().String() + ")"
	if l := n.ColorLabel(); l != label.None {
		line += " [" + l.String() + "]"
	}
	if !n.Visible() {
		line += " hidden"
	}
	fmt.Fprintln(out, line)
	for _, c := range n.ChildNodes() {
		printTree(out, c, depth+1)
	}
}
