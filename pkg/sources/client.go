package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/sudorandom/mobility-map/pkg/entity"
	"github.com/sudorandom/mobility-map/pkg/utils"
)

// Client fetches source payloads from the relay and fuses them.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Now     func() time.Time
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Now:     time.Now,
	}
}

func (c *Client) URL(path string) string {
	return c.BaseURL + path
}

// Fetch runs one fetch-and-fuse cycle for src. Any transport, status or
// parse failure is returned and no snapshot is produced. The snapshot is
// stamped when the payloads have arrived.
func (c *Client) Fetch(ctx context.Context, src Source) (*entity.Snapshot, error) {
	if src.DualFeed() {
		return c.fetchJoined(ctx, src)
	}

	payload, err := utils.GetBytes(ctx, c.HTTP, c.URL(src.Endpoint), utils.AcceptJSON)
	if err != nil {
		return nil, err
	}
	return FuseFeatures(payload, c.now())
}

// fetchJoined fetches both feeds concurrently. Either failing fails the
// cycle; there is no partial join.
func (c *Client) fetchJoined(ctx context.Context, src Source) (*entity.Snapshot, error) {
	var traffic, devices []byte

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		b, err := utils.GetBytes(ctx, c.HTTP, c.URL(src.Endpoint), utils.AcceptJSON)
		traffic = b
		return err
	})
	p.Go(func(ctx context.Context) error {
		b, err := utils.GetBytes(ctx, c.HTTP, c.URL(src.DevicesEndpoint), utils.AcceptJSON)
		devices = b
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", src.ID, err)
	}
	return FuseTunnels(traffic, devices, c.now())
}

func (c *Client) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// RelayConfig is what the relay exposes about its own credentials.
type RelayConfig struct {
	MapboxToken      string `json:"mapboxToken"`
	CesiumIonToken   string `json:"cesiumIonToken"`
	HasMobilityToken bool   `json:"hasMobilityToken"`
}

func (c *Client) RelayConfig(ctx context.Context) (RelayConfig, error) {
	var cfg RelayConfig
	body, err := utils.GetBytes(ctx, c.HTTP, c.URL(RelayConfigPath), utils.AcceptJSON)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(body, &cfg); err != nil {
		return cfg, fmt.Errorf("malformed relay config: %w", err)
	}
	return cfg, nil
}
