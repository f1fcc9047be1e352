// Package sources knows which upstream feeds exist, how to fetch them from
// the relay and how to fuse their payloads into snapshots.
package sources

import (
	"errors"
	"fmt"
)

var ErrUnknownSource = errors.New("unknown source")

// LayerKind selects the thematic layer used to draw a source.
type LayerKind int

const (
	IconLayer LayerKind = iota
	FlowLineLayer
	CountPointLayer
	ValuePointLayer
)

func (k LayerKind) String() string {
	switch k {
	case IconLayer:
		return "icons"
	case FlowLineLayer:
		return "flow-lines"
	case CountPointLayer:
		return "count-points"
	case ValuePointLayer:
		return "value-points"
	}
	return "unknown"
}

type Source struct {
	ID       string
	Name     string
	Endpoint string
	// DevicesEndpoint is set for sources built by joining a device-position
	// feed onto the count feed at Endpoint.
	DevicesEndpoint string
	Layer           LayerKind
}

func (s Source) DualFeed() bool { return s.DevicesEndpoint != "" }

var DefaultSources = []Source{
	{ID: "stib", Name: "STIB Vehicle position", Endpoint: STIBVehiclePositionPath, Layer: IconLayer},
	{ID: "sncb", Name: "SNCB Vehicle position", Endpoint: SNCBVehiclePositionPath, Layer: IconLayer},
	{ID: "bolt", Name: "Bolt Vehicle position", Endpoint: BoltVehiclePositionPath, Layer: IconLayer},
	{ID: "dott", Name: "Dott Vehicle position", Endpoint: DottVehiclePositionPath, Layer: IconLayer},
	{ID: "telraam", Name: "Traffic: Telraam", Endpoint: TelraamPath, Layer: FlowLineLayer},
	{ID: "tunnels", Name: "Traffic: Tunnels (devices)", Endpoint: TunnelTrafficPath, DevicesEndpoint: TunnelDevicesPath, Layer: CountPointLayer},
	{ID: "air", Name: "Environment: Air quality", Endpoint: AirQualityPath, Layer: ValuePointLayer},
}

type Catalog struct {
	sources []Source
}

// NewCatalog builds a catalog from the given sources, or DefaultSources
// when none are given.
func NewCatalog(srcs ...Source) *Catalog {
	if len(srcs) == 0 {
		srcs = DefaultSources
	}
	return &Catalog{sources: append([]Source(nil), srcs...)}
}

func (c *Catalog) Lookup(id string) (Source, error) {
	for _, s := range c.sources {
		if s.ID == id {
			return s, nil
		}
	}
	return Source{}, fmt.Errorf("%w: %q", ErrUnknownSource, id)
}

func (c *Catalog) All() []Source {
	return append([]Source(nil), c.sources...)
}

// At returns the i-th source, used for number-key selection in the viewer.
func (c *Catalog) At(i int) (Source, bool) {
	if i < 0 || i >= len(c.sources) {
		return Source{}, false
	}
	return c.sources[i], true
}

func (c *Catalog) Len() int { return len(c.sources) }
