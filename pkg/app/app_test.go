package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sudorandom/mobility-map/pkg/config"
	"github.com/sudorandom/mobility-map/pkg/sources"
)

func TestNewUnknownSource(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultSource = "trolleybus"
	if _, err := New(cfg); !errors.Is(err, sources.ErrUnknownSource) {
		t.Errorf("New() error = %v; want ErrUnknownSource", err)
	}
}

func TestAppLifecycle(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case sources.RelayConfigPath:
			w.Write([]byte(`{"hasMobilityToken": true}`))
		case sources.STIBVehiclePositionPath:
			w.Write([]byte(`{"type":"FeatureCollection","features":[
				{"type":"Feature","id":"v1","geometry":{"type":"Point","coordinates":[4.35,50.85]},"properties":{"mode":"tram"}}
			]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer relay.Close()

	cfg := config.Default()
	cfg.Relay.BaseURL = relay.URL
	cfg.Polling.Interval = time.Hour
	cfg.Polling.WarmupGrace = 10 * time.Millisecond

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sub := a.Scheduler.Subscribe()
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-sub.C:
	case <-time.After(5 * time.Second):
		t.Fatal("no update after warm-up")
	}

	p := a.Store.Load()
	if !p.Ready() || p.Current.Len() != 1 {
		t.Errorf("store after warm-up = %+v; want ready with 1 entity", p)
	}
	if got := a.Scheduler.Source().ID; got != "stib" {
		t.Errorf("Source() = %q; want stib", got)
	}

	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
