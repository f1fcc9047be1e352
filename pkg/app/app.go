// Package app owns the lifetime of the long-lived collaborators. Commands
// build one App from a loaded config and pass it to whatever needs it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sudorandom/mobility-map/pkg/config"
	"github.com/sudorandom/mobility-map/pkg/interpolate"
	"github.com/sudorandom/mobility-map/pkg/perf"
	"github.com/sudorandom/mobility-map/pkg/poller"
	"github.com/sudorandom/mobility-map/pkg/render"
	"github.com/sudorandom/mobility-map/pkg/snapshot"
	"github.com/sudorandom/mobility-map/pkg/sources"
	"github.com/sudorandom/mobility-map/pkg/utils"
)

// stopTimeout bounds how long Close waits for an in-flight fetch.
const stopTimeout = 5 * time.Second

type App struct {
	Config    *config.Config
	Catalog   *sources.Catalog
	Client    *sources.Client
	Store     *snapshot.Store
	Scheduler *poller.Scheduler
	Interp    *interpolate.Interpolator
	Tiles     *utils.TileCache

	now func() time.Time
}

func New(cfg *config.Config) (*App, error) {
	catalog := sources.NewCatalog()
	initial, err := catalog.Lookup(cfg.DefaultSource)
	if err != nil {
		return nil, fmt.Errorf("default source: %w", err)
	}

	tiles, err := utils.OpenTileCache(cfg.Tiles.CachePath, cfg.Tiles.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("tile cache: %w", err)
	}

	client := sources.NewClient(cfg.Relay.BaseURL, cfg.Relay.Timeout)
	store := snapshot.NewStore()
	sched := poller.New(client, store, catalog, initial, poller.Options{
		Interval:    cfg.Polling.Interval,
		MinimumWait: cfg.Polling.MinimumWait,
		WarmupGrace: cfg.Polling.WarmupGrace,
	})

	return &App{
		Config:    cfg,
		Catalog:   catalog,
		Client:    client,
		Store:     store,
		Scheduler: sched,
		Interp:    interpolate.New(nil),
		Tiles:     tiles,
		now:       time.Now,
	}, nil
}

// Start probes the relay and starts polling. The probe never fails Start.
func (a *App) Start(ctx context.Context) error {
	rc, err := a.Client.RelayConfig(ctx)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("url", a.Client.URL(sources.RelayConfigPath)).Msg("Relay config probe failed")
	case !rc.HasMobilityToken:
		log.Warn().Msg("Relay has no mobility token; some feeds may be empty")
	default:
		log.Info().Str("relay", a.Client.BaseURL).Msg("Relay reachable")
	}
	return a.Scheduler.Start(ctx)
}

// NewLoop builds a render loop over the app's store. surface may be nil.
func (a *App) NewLoop(title string, factory render.LayerFactory, popup render.PopupSurface, surface perf.Surface) *render.Loop {
	return render.NewLoop(render.LoopDeps{
		Store:     a.Store,
		Selection: a.Scheduler,
		Interp:    a.Interp,
		Factory:   factory,
		Popup:     popup,
		Tracker:   perf.NewTracker(title, surface, a.now),
		Tiles:     render.DefaultTileSpec(a.Config.Map.TileURL),
	})
}

// Close stops the scheduler, waiting up to stopTimeout for an in-flight
// fetch, and releases the tile cache.
func (a *App) Close() error {
	select {
	case <-a.Scheduler.Stop():
	case <-time.After(stopTimeout):
		log.Warn().Msg("Scheduler did not stop in time")
	}
	return a.Tiles.Close()
}
