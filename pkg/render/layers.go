// Package render prepares per-frame layer sets from interpolated entities.
// Drawing itself is delegated to a LayerFactory.
package render

import (
	"image/color"

	"github.com/sudorandom/mobility-map/pkg/entity"
	"github.com/sudorandom/mobility-map/pkg/interpolate"
	"github.com/sudorandom/mobility-map/pkg/sources"
)

// Layer ids.
const (
	BaseTilesID     = "light-tiles"
	VehiclesID      = "vehicles"
	TrafficLinesID  = "telraam-lines"
	TunnelDevicesID = "tunnel-devices"
	AirQualityID    = "air-quality"
)

// Marker styles a point. Icon markers set Icon and Size; scatter markers
// set Color and Radius. Sizes are in screen pixels.
type Marker struct {
	Icon   string
	Size   float64
	Color  color.NRGBA
	Radius float64
}

type Stroke struct {
	Color color.NRGBA
	Width float64
}

type PointStyle func(interpolate.Rendered) Marker
type LineStyle func(interpolate.Rendered) Stroke

type TileSpec struct {
	URLTemplate      string
	MinZoom, MaxZoom int
	TileSize         int
}

func DefaultTileSpec(urlTemplate string) TileSpec {
	if urlTemplate == "" {
		urlTemplate = sources.DefaultTileURL
	}
	return TileSpec{URLTemplate: urlTemplate, MinZoom: 0, MaxZoom: 19, TileSize: 256}
}

// Drawable is an opaque layer produced by a LayerFactory.
type Drawable interface {
	LayerID() string
}

// LayerFactory is the rendering backend. It receives typed datasets and
// style functions and hands back something it knows how to draw.
type LayerFactory interface {
	Tiles(id string, spec TileSpec) Drawable
	Points(id string, data []interpolate.Rendered, style PointStyle) Drawable
	Lines(id string, data []interpolate.Rendered, style LineStyle) Drawable
}

// Partition splits a frame into point and line entities, keeping order.
func Partition(rs []interpolate.Rendered) (points, lines []interpolate.Rendered) {
	for _, r := range rs {
		if r.Class == entity.Line {
			lines = append(lines, r)
			continue
		}
		points = append(points, r)
	}
	return points, lines
}

// BuildLayers returns the base tile layer followed by at most one thematic
// layer for src. The thematic layer is left out when it would be empty.
func BuildLayers(f LayerFactory, src sources.Source, tiles TileSpec, points, lines []interpolate.Rendered) []Drawable {
	layers := []Drawable{f.Tiles(BaseTilesID, tiles)}

	switch src.Layer {
	case sources.FlowLineLayer:
		if len(lines) > 0 {
			layers = append(layers, f.Lines(TrafficLinesID, lines, FlowStyle))
		}
	case sources.CountPointLayer:
		if len(points) > 0 {
			layers = append(layers, f.Points(TunnelDevicesID, points, CountStyle))
		}
	case sources.ValuePointLayer:
		if len(points) > 0 {
			layers = append(layers, f.Points(AirQualityID, points, AirQualityStyle))
		}
	default:
		if len(points) > 0 {
			layers = append(layers, f.Points(VehiclesID, points, VehicleStyle))
		}
	}
	return layers
}

// Legend describes the color ramp of value-colored layers.
type Legend struct {
	Title string
	Scale func(float64) color.NRGBA
	Max   float64
}

func LegendFor(kind sources.LayerKind) (Legend, bool) {
	switch kind {
	case sources.FlowLineLayer, sources.CountPointLayer:
		return Legend{Title: "Hourly vehicles", Scale: ColorScale, Max: flowFullScale}, true
	case sources.ValuePointLayer:
		return Legend{Title: "Value", Scale: func(v float64) color.NRGBA { return ramp(v/valueFullScale, 200) }, Max: valueFullScale}, true
	}
	return Legend{}, false
}
