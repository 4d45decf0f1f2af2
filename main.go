package main

import (
	"flag"
	"log"
	"log/slog"

	"fyne.io/fyne/v2/app"

	"ChannelBoard/internal/channel"
	"ChannelBoard/internal/config"
	"ChannelBoard/internal/host/memhost"
	"ChannelBoard/internal/logging"
	"ChannelBoard/internal/mask"
	"ChannelBoard/internal/net"
	"ChannelBoard/internal/state"
	"ChannelBoard/internal/tasks"
	"ChannelBoard/internal/ui"
)

const AppID = "io.channelboard.desktop"

func main() {
	configPath := flag.String("config", config.FileName, "config file (missing means defaults)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cleanup, err := logging.Setup(logging.Config{Dir: cfg.Log.Dir, Debug: cfg.Log.Debug})
	if err != nil {
		log.Printf("[MAIN] File logging disabled: %v", err)
	} else {
		defer cleanup()
	}

	h := memhost.New()
	reg := state.NewRegistry(cfg.WorkdirRoot)
	defer func() {
		if err := reg.Close(); err != nil {
			log.Printf("[MAIN] Failed to remove session directories: %v", err)
		}
	}()

	if cfg.Service.Address == "" {
		log.Printf("[MAIN] No service address configured, will look for %s on the network", net.ServiceType)
	} else {
		log.Printf("[MAIN] Using generation service at %s", cfg.Service.Address)
	}
	svc := &net.Locator{Address: cfg.Service.Address, Timeout: cfg.Service.DiscoverTimeout}

	board := tasks.NewBoard(
		reg,
		state.NewOverlayManager(cfg.OverlayOpacity),
		channel.NewExporter(cfg.Settle),
		mask.NewSynthesizer(h, cfg.Settle, cfg.Binarize.Passes),
		svc,
	)
	tracker := state.NewTracker(reg)
	board.Tracker = tracker

	a := ui.NewApp(app.NewWithID(AppID), h, board, tracker)
	logging.SetLogger(slog.New(logging.NewFuncHandler(slog.LevelInfo, a.Panel.LogSink(), logging.L().Handler())))

	for _, path := range flag.Args() {
		if err := a.Open(path); err != nil {
			log.Printf("[MAIN] Could not open %s: %v", path, err)
		}
	}
	if len(flag.Args()) == 0 {
		log.Println("[MAIN] Starting without a document, use File > Open Document")
	}

	a.ShowAndRun()
}
