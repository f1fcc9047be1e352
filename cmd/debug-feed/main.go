package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/alecthomas/kong"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"github.com/sudorandom/mobility-map/pkg/config"
	"github.com/sudorandom/mobility-map/pkg/sources"
)

var cli struct {
	Source string `arg:"" optional:"" help:"Source id; defaults to the configured source."`
	Config string `help:"YAML config file." default:"config.yml" type:"path"`
	Limit  int    `help:"Number of entities to print." default:"5"`
	JSON   bool   `help:"Print entity properties as JSON."`
}

type counter map[string]int

func (c counter) print(title string) {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c[keys[i]] != c[keys[j]] {
			return c[keys[i]] > c[keys[j]]
		}
		return keys[i] < keys[j]
	})
	fmt.Printf("%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-12s %d\n", k, c[k])
	}
}

func main() {
	kong.Parse(&cli,
		kong.Name("debug-feed"),
		kong.Description("Fetches one source once and prints what the fuser made of it."),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		config.SetupLogging(config.LogConfig{})
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	config.SetupLogging(cfg.Log)

	id := cli.Source
	if id == "" {
		id = cfg.DefaultSource
	}
	src, err := sources.NewCatalog().Lookup(id)
	if err != nil {
		log.Fatal().Err(err).Msg("Unknown source")
	}

	client := sources.NewClient(cfg.Relay.BaseURL, cfg.Relay.Timeout)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Relay.Timeout+5*time.Second)
	defer cancel()

	start := time.Now()
	snap, err := client.Fetch(ctx, src)
	if err != nil {
		log.Fatal().Err(err).Str("source", src.ID).Msg("Fetch failed")
	}

	fmt.Printf("Source:   %s (%s)\n", src.Name, src.ID)
	fmt.Printf("Endpoint: %s\n", client.URL(src.Endpoint))
	if src.DualFeed() {
		fmt.Printf("Devices:  %s\n", client.URL(src.DevicesEndpoint))
	}
	fmt.Printf("Fetched:  %d entities in %v\n\n", snap.Len(), time.Since(start).Round(time.Millisecond))

	classes, modes := counter{}, counter{}
	zero := 0
	for _, id := range snap.IDs() {
		e, _ := snap.Get(id)
		classes[e.Class.String()]++
		modes[e.Mode]++
		if !e.IsLine() && e.Position.Equal(orb.Point{}) {
			zero++
		}
	}
	classes.print("Geometry")
	modes.print("Mode")
	if zero > 0 {
		fmt.Printf("\n%d point(s) fell back to [0,0]\n", zero)
	}

	fmt.Println()
	for i, id := range snap.IDs() {
		if i >= cli.Limit {
			break
		}
		e, _ := snap.Get(id)
		if e.IsLine() {
			fmt.Printf("%-20s %-5s %-8s %s\n", e.ID, e.Class, e.Mode, e.Geometry.GeoJSONType())
		} else {
			fmt.Printf("%-20s %-5s %-8s [%.5f, %.5f]\n", e.ID, e.Class, e.Mode, e.Position.Lon(), e.Position.Lat())
		}
		if cli.JSON {
			b, err := json.MarshalIndent(e.Properties, "  ", "  ")
			if err == nil {
				fmt.Printf("  %s\n", b)
			}
		}
	}
}
