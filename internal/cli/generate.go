package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ChannelBoard/internal/export"
	"ChannelBoard/internal/host"
	"ChannelBoard/internal/mask"
	"ChannelBoard/internal/state"
	"ChannelBoard/internal/tasks"
)

type generator struct {
	run      func(*tasks.Board, context.Context, host.Document) error
	channels []state.Channel
}

var generators = map[string]generator{
	"lineart": {(*tasks.Board).GenerateLineart, []state.Channel{state.ChannelLineart}},
	"detail":  {(*tasks.Board).GenerateDetail, []state.Channel{state.ChannelShadow, state.ChannelLight}},
}

func generateCmd(e *env) *cobra.Command {
	var (
		service  string
		transfer bool
		overlays string
		output   string
		sheet    string
	)

	c := &cobra.Command{
		Use:   "generate {lineart|detail} MANIFEST",
		Short: "Send channel exports to the generation service and apply the new overlays",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, ok := generators[args[0]]
			if !ok {
				return fmt.Errorf("unknown generator %q, want lineart or detail", args[0])
			}
			w, err := e.open(args[1], e.service(service))
			if err != nil {
				return err
			}
			defer w.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			s, err := w.board.Initialize(ctx, w.doc)
			if err != nil {
				return err
			}
			if err := gen.run(w.board, ctx, w.doc); err != nil {
				return err
			}
			fmt.Fprintf(out, "generated %s for %s\n", args[0], w.doc.Name())

			if transfer {
				for _, ch := range gen.channels {
					res, err := w.board.Transfer(ctx, w.doc, ch, true)
					if err != nil {
						return err
					}
					printMasks(out, ch, res)
				}
			}
			if overlays != "" {
				if err := copyOverlays(s, gen.channels, overlays); err != nil {
					return err
				}
				fmt.Fprintf(out, "overlays written to %s\n", overlays)
			}
			if output != "" {
				if err := w.render(ctx, e.cfg.Settle, output); err != nil {
					return err
				}
				fmt.Fprintf(out, "render written to %s\n", output)
			}
			if sheet != "" {
				if err := export.ContactSheet(sheet, w.doc.Name(), export.SessionTiles(s)); err != nil {
					return err
				}
				fmt.Fprintf(out, "contact sheet written to %s\n", sheet)
			}
			return nil
		},
	}

	c.Flags().StringVarP(&service, "service", "s", "", "generation service host:port (default from config, else mDNS)")
	c.Flags().BoolVar(&transfer, "transfer", false, "mask the labelled layers against the new overlays")
	c.Flags().StringVar(&overlays, "overlays", "", "copy the regenerated overlay PNGs into this directory")
	c.Flags().StringVarP(&output, "output", "o", "", "write the resulting document render to this PNG")
	c.Flags().StringVar(&sheet, "sheet", "", "write a PDF contact sheet of all overlays")
	return c
}

func copyOverlays(s *state.Session, channels []state.Channel, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, c := range channels {
		b, err := os.ReadFile(s.OverlayPath(c))
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, c.FileName()), b, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func printMasks(out io.Writer, c state.Channel, res mask.Result) {
	if len(res.Masks) == 0 {
		fmt.Fprintf(out, "%s: no %s layers to mask\n", c, c.Label())
		return
	}
	for _, m := range res.Masks {
		fmt.Fprintf(out, "%s: masked %s (opaque %d, transparent %d)\n", c, m.Layer, m.Stats.Opaque, m.Stats.Transparent)
	}
}
