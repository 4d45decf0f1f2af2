// Package cli implements channelctl, which runs board operations on
// document manifests without the desktop window.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ChannelBoard/internal/channel"
	"ChannelBoard/internal/config"
	"ChannelBoard/internal/host"
	"ChannelBoard/internal/host/memhost"
	"ChannelBoard/internal/logging"
	"ChannelBoard/internal/mask"
	"ChannelBoard/internal/net"
	"ChannelBoard/internal/state"
	"ChannelBoard/internal/tasks"
)

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// env carries the persistent flags and the loaded config to subcommands.
type env struct {
	configPath string
	workdir    string
	logDir     string
	debug      bool

	cfg     config.Config
	cleanup func() error
}

func NewRootCmd() *cobra.Command {
	e := &env{}

	cmd := &cobra.Command{
		Use:          "channelctl",
		Short:        "Run ChannelBoard operations on document manifests",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if e.cleanup != nil {
				return e.cleanup()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&e.configPath, "config", config.FileName, "config file (missing means defaults)")
	cmd.PersistentFlags().StringVar(&e.workdir, "workdir", "", "root of the session working directories (overrides the config)")
	cmd.PersistentFlags().StringVar(&e.logDir, "log-dir", "", "write a JSON log to this directory instead of stderr")
	cmd.PersistentFlags().BoolVar(&e.debug, "debug", false, "enable verbose logging")

	cmd.AddCommand(
		inspectCmd(e),
		exportCmd(e),
		generateCmd(e),
		transferCmd(e),
	)
	return cmd
}

func (e *env) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadOrDefault(e.configPath)
	if err != nil {
		return err
	}
	if e.workdir != "" {
		cfg.WorkdirRoot = e.workdir
	}
	e.cfg = cfg

	if e.logDir != "" {
		cleanup, err := logging.Setup(logging.Config{Dir: e.logDir, Debug: e.debug || cfg.Log.Debug})
		if err != nil {
			return err
		}
		e.cleanup = cleanup
		return nil
	}
	level := slog.LevelWarn
	if e.debug {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	e.cleanup = func() error {
		logging.SetLogger(nil)
		return nil
	}
	return nil
}

// workspace is one loaded manifest with a board around it.
type workspace struct {
	doc   *memhost.Document
	board *tasks.Board
}

// open loads the manifest at path. svc may be nil for commands that never
// call the service.
func (e *env) open(path string, svc net.Service) (*workspace, error) {
	h := memhost.New()
	doc, err := h.LoadManifest(path)
	if err != nil {
		return nil, err
	}
	board := tasks.NewBoard(
		state.NewRegistry(e.cfg.WorkdirRoot),
		state.NewOverlayManager(e.cfg.OverlayOpacity),
		channel.NewExporter(e.cfg.Settle),
		mask.NewSynthesizer(h, e.cfg.Settle, e.cfg.Binarize.Passes),
		svc,
	)
	return &workspace{doc: doc, board: board}, nil
}

func (e *env) service(addr string) net.Service {
	if addr == "" {
		addr = e.cfg.Service.Address
	}
	return &net.Locator{Address: addr, Timeout: e.cfg.Service.DiscoverTimeout}
}

// Close removes the session directory and closes the document.
func (w *workspace) Close() error {
	w.board.Wait()
	err := w.board.Registry.Close()
	w.doc.Close()
	return err
}

// render writes the settled document to path.
func (w *workspace) render(ctx context.Context, settle host.SettlePolicy, path string) error {
	if err := host.Render(ctx, w.doc, settle); err != nil {
		return err
	}
	return w.doc.ExportImage(path, host.DefaultExportOptions(true))
}
