package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	_ "github.com/silbinarywolf/preferdiscretegpu"
	"github.com/sudorandom/mobility-map/pkg/app"
	"github.com/sudorandom/mobility-map/pkg/config"
	"github.com/sudorandom/mobility-map/pkg/mapengine"
)

var cli struct {
	Config      string `help:"YAML config file." default:"config.yml" type:"path"`
	Source      string `help:"Initial source id, overrides the config."`
	Headless    bool   `help:"Run without a local window."`
	Width       int    `help:"Internal rendering width, overrides the config."`
	Height      int    `help:"Internal rendering height, overrides the config."`
	Capture     string `help:"Directory for frame captures (press P), overrides the config." type:"path"`
	TileWorkers int    `help:"Concurrent tile downloads." default:"4"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("mobility-viewer"),
		kong.Description("Live animated map of Brussels mobility feeds."),
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
	if cli.Width > 0 {
		cfg.Render.Width = cli.Width
	}
	if cli.Height > 0 {
		cfg.Render.Height = cli.Height
	}
	if cli.Capture != "" {
		cfg.Render.CaptureDir = cli.Capture
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

	tiles := mapengine.NewTileLoader(cfg.Map.TileURL, a.Tiles, &http.Client{Timeout: cfg.Relay.Timeout})
	go tiles.Run(ctx, cli.TileWorkers)

	engine := mapengine.NewEngine(mapengine.Options{
		Width:      cfg.Render.Width,
		Height:     cfg.Render.Height,
		Center:     orb.Point{cfg.Map.Lon, cfg.Map.Lat},
		Zoom:       cfg.Map.Zoom,
		CaptureDir: cfg.Render.CaptureDir,
		Done:       ctx.Done(),
	}, tiles)
	loop := a.NewLoop("Brussels Mobility", engine, engine.Popup(), engine.HUD())
	engine.Attach(loop, a.Scheduler, a.Catalog)

	if err := a.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start polling")
	}

	ebiten.SetTPS(cfg.Render.TPS)
	if cli.Headless {
		log.Info().Msg("Running in HEADLESS mode (Rendering active).")
	} else {
		ebiten.SetWindowSize(cfg.Render.Width, cfg.Render.Height)
		ebiten.SetWindowTitle("Brussels Mobility Map")
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	}
	if err := ebiten.RunGame(engine); err != nil {
		log.Error().Err(err).Msg("Game loop ended with error")
	}
}
