package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sudorandom/mobility-map/pkg/utils"
)

func newRelay(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientFetchSingleFeed(t *testing.T) {
	srv := newRelay(t, map[string]string{
		STIBVehiclePositionPath: `{"features":[{"type":"Feature","id":"a","geometry":{"type":"Point","coordinates":[1,2]}}]}`,
	})
	at := time.Unix(500, 0)
	c := NewClient(srv.URL+"/", time.Second)
	c.Now = func() time.Time { return at }

	src, _ := NewCatalog().Lookup("stib")
	snap, err := c.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if snap.Len() != 1 || !snap.Time.Equal(at) {
		t.Errorf("Fetch() = %d entities at %v; want 1 at %v", snap.Len(), snap.Time, at)
	}
}

func TestClientFetchErrors(t *testing.T) {
	srv := newRelay(t, map[string]string{
		TelraamPath:       `not json`,
		TunnelTrafficPath: `{"data":{}}`,
		// TunnelDevicesPath deliberately missing: the relay answers 500.
	})
	c := NewClient(srv.URL, time.Second)
	catalog := NewCatalog()

	tests := []struct {
		source string
		status int
	}{
		{"stib", http.StatusInternalServerError},
		{"telraam", 0},
		{"tunnels", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		src, err := catalog.Lookup(tt.source)
		if err != nil {
			t.Fatalf("Lookup(%s) failed: %v", tt.source, err)
		}
		snap, err := c.Fetch(context.Background(), src)
		if err == nil {
			t.Errorf("Fetch(%s) = %v, nil; want error", tt.source, snap)
			continue
		}
		var se *utils.StatusError
		if tt.status != 0 && (!errors.As(err, &se) || se.Code != tt.status) {
			t.Errorf("Fetch(%s) error = %v; want HTTP %d", tt.source, err, tt.status)
		}
	}
}

func TestClientFetchJoined(t *testing.T) {
	srv := newRelay(t, map[string]string{
		TunnelTrafficPath: tunnelTraffic,
		TunnelDevicesPath: tunnelDevices,
	})
	c := NewClient(srv.URL, time.Second)
	src, _ := NewCatalog().Lookup("tunnels")

	snap, err := c.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch(tunnels) failed: %v", err)
	}
	e, ok := snap.Get("T12")
	if !ok || e.Properties["hourlyCount"] != 12.0 {
		t.Errorf("T12 = %+v; want hourlyCount 12", e)
	}
}

func TestClientRelayConfig(t *testing.T) {
	srv := newRelay(t, map[string]string{
		RelayConfigPath: `{"mapboxToken":"","cesiumIonToken":"","hasMobilityToken":true}`,
	})
	cfg, err := NewClient(srv.URL, time.Second).RelayConfig(context.Background())
	if err != nil {
		t.Fatalf("RelayConfig failed: %v", err)
	}
	if !cfg.HasMobilityToken {
		t.Errorf("HasMobilityToken = false; want true")
	}
}

func TestCatalogLookup(t *testing.T) {
	c := NewCatalog()
	if c.Len() != 7 {
		t.Errorf("Len() = %d; want 7", c.Len())
	}
	if _, err := c.Lookup("nope"); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("Lookup(nope) error = %v; want ErrUnknownSource", err)
	}
	src, err := c.Lookup("tunnels")
	if err != nil || !src.DualFeed() || src.Layer != CountPointLayer {
		t.Errorf("Lookup(tunnels) = %+v, %v; want dual-feed count layer", src, err)
	}
}
