package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
	"github.com/sudorandom/mobility-map/pkg/app"
	"github.com/sudorandom/mobility-map/pkg/config"
	"github.com/sudorandom/mobility-map/pkg/perf"
	"github.com/sudorandom/mobility-map/pkg/stream"
)

var cli struct {
	Config string `help:"YAML config file." default:"config.yml" type:"path"`
	Source string `help:"Initial source id, overrides the config."`
	Listen string `help:"HTTP listen address, overrides the config."`
}

// logSurface writes perf reports to the debug log.
type logSurface struct{}

func (logSurface) Report(s perf.Stats) {
	log.Debug().
		Float64("fps", s.FPS).
		Int("entities", s.Drawn).
		Float64("heap_mb", s.HeapMB).
		Interface("extras", s.Extras).
		Msg("Frame stats")
}

func main() {
	kong.Parse(&cli,
		kong.Name("mobility-streamer"),
		kong.Description("Serves interpolated mobility frames as GeoJSON over a websocket."),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		config.SetupLogging(config.LogConfig{})
		log.Fatal().Err(err).Str("path", cli.Config).Msg("Failed to load config")
	}
	config.SetupLogging(cfg.Log)
	if cli.Source != "" {
		cfg.DefaultSource = cli.Source
	}
	if cli.Listen != "" {
		cfg.Stream.Listen = cli.Listen
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("Error during shutdown")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start polling")
	}

	loop := a.NewLoop("Brussels Mobility stream", stream.LayerNames{}, nil, logSurface{})
	hub := stream.NewHub(loop, cfg.Stream.FrameInterval)
	go hub.Run(ctx)

	srv := stream.NewServer(cfg.Stream.Listen, hub, a.Scheduler, a.Catalog)
	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server failed")
	}
	log.Info().Msg("Streamer stopped")
}
