// Command gensim serves the deterministic generation handler over websocket
// and announces it on the local network.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ChannelBoard/internal/gensim"
	"ChannelBoard/internal/logging"
	"ChannelBoard/internal/net"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr      string
		advertise bool
		threshold uint8
		logDir    string
		debug     bool
	)

	cmd := &cobra.Command{
		Use:          "gensim",
		Short:        "Serve a deterministic ChannelBoard generation service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if logDir != "" {
				cleanup, err := logging.Setup(logging.Config{Dir: logDir, Debug: debug})
				if err != nil {
					return err
				}
				defer func() { _ = cleanup() }()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if advertise {
				port, err := net.ListenPort(addr)
				if err != nil {
					return err
				}
				server, err := net.Advertise(port)
				if err != nil {
					return err
				}
				defer server.Shutdown()
				ip, _ := net.GetOutgoingIP()
				log.Printf("[MDNS] Announcing %s on %s:%d", net.ServiceType, ip, port)
			}

			h := gensim.New()
			h.Threshold = threshold
			return net.NewServer(h).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":7860", "listen address")
	cmd.Flags().BoolVar(&advertise, "advertise", true, "announce the service over mDNS")
	cmd.Flags().Uint8Var(&threshold, "threshold", gensim.New().Threshold, "luminance difference that counts as a stroke, shadow or light")
	cmd.Flags().StringVar(&logDir, "log-dir", "", "write a JSON log to this directory")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable verbose logging")
	return cmd
}
