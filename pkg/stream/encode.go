// Package stream serves interpolated frames to websocket clients and lets
// them pick the active source over HTTP.
package stream

import (
	"encoding/json"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/sudorandom/mobility-map/pkg/interpolate"
	"github.com/sudorandom/mobility-map/pkg/render"
)

// Message is one websocket payload.
type Message struct {
	Type   string                     `json:"type"`
	Source string                     `json:"source"`
	Layer  string                     `json:"layer"`
	Layers []string                   `json:"layers"`
	At     *time.Time                 `json:"at,omitempty"`
	Data   *geojson.FeatureCollection `json:"data"`
}

// EncodeFrame renders a frame as a "frame" message whose data is a GeoJSON
// FeatureCollection, points first.
func EncodeFrame(f render.Frame) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, r := range f.Points {
		fc.AddFeature(feature(geojson.NewPointFeature([]float64{r.Position.Lon(), r.Position.Lat()}), r))
	}
	for _, r := range f.Lines {
		var feat *geojson.Feature
		switch g := r.Geometry.(type) {
		case orb.LineString:
			feat = geojson.NewLineStringFeature(coords(g))
		case orb.MultiLineString:
			lines := make([][][]float64, len(g))
			for i, ls := range g {
				lines[i] = coords(ls)
			}
			feat = geojson.NewMultiLineStringFeature(lines...)
		default:
			continue
		}
		fc.AddFeature(feature(feat, r))
	}

	msg := Message{
		Type:   "frame",
		Source: f.Source.ID,
		Layer:  f.Source.Layer.String(),
		Layers: make([]string, 0, len(f.Layers)),
		Data:   fc,
	}
	for _, l := range f.Layers {
		msg.Layers = append(msg.Layers, l.LayerID())
	}
	if !f.At.IsZero() {
		at := f.At
		msg.At = &at
	}
	return json.Marshal(msg)
}

func feature(feat *geojson.Feature, r interpolate.Rendered) *geojson.Feature {
	feat.ID = r.ID
	for k, v := range r.Properties {
		feat.SetProperty(k, v)
	}
	feat.SetProperty("mode", r.Mode)
	feat.SetProperty("interpolated", r.Interpolated)
	return feat
}

func coords(ls orb.LineString) [][]float64 {
	out := make([][]float64, len(ls))
	for i, p := range ls {
		out[i] = []float64{p.Lon(), p.Lat()}
	}
	return out
}

// layerName is the headless stand-in for a drawable: clients only learn
// which layers to draw.
type layerName string

func (l layerName) LayerID() string { return string(l) }

// LayerNames is a render.LayerFactory that keeps nothing but layer ids.
type LayerNames struct{}

func (LayerNames) Tiles(id string, _ render.TileSpec) render.Drawable { return layerName(id) }

func (LayerNames) Points(id string, _ []interpolate.Rendered, _ render.PointStyle) render.Drawable {
	return layerName(id)
}

func (LayerNames) Lines(id string, _ []interpolate.Rendered, _ render.LineStyle) render.Drawable {
	return layerName(id)
}
