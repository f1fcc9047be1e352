package render

import (
	"image/color"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/sudorandom/mobility-map/pkg/entity"
	"github.com/sudorandom/mobility-map/pkg/interpolate"
	"github.com/sudorandom/mobility-map/pkg/snapshot"
	"github.com/sudorandom/mobility-map/pkg/sources"
)

type fakeLayer struct {
	id   string
	kind string
	n    int
}

func (l fakeLayer) LayerID() string { return l.id }

type fakeFactory struct {
	markers []Marker
	strokes []Stroke
}

func (f *fakeFactory) Tiles(id string, spec TileSpec) Drawable {
	return fakeLayer{id: id, kind: "tiles"}
}

func (f *fakeFactory) Points(id string, data []interpolate.Rendered, style PointStyle) Drawable {
	for _, d := range data {
		f.markers = append(f.markers, style(d))
	}
	return fakeLayer{id: id, kind: "points", n: len(data)}
}

func (f *fakeFactory) Lines(id string, data []interpolate.Rendered, style LineStyle) Drawable {
	for _, d := range data {
		f.strokes = append(f.strokes, style(d))
	}
	return fakeLayer{id: id, kind: "lines", n: len(data)}
}

type fakePopup struct {
	shown  bool
	x, y   float64
	body   string
	hidden int
}

func (p *fakePopup) Show(x, y float64, body string) {
	p.shown, p.x, p.y, p.body = true, x, y, body
}

func (p *fakePopup) Hide() {
	p.shown = false
	p.hidden++
}

type staticPair snapshot.Pair

func (s staticPair) Load() snapshot.Pair { return snapshot.Pair(s) }

type staticSource sources.Source

func (s staticSource) Source() sources.Source { return sources.Source(s) }

func TestColorScale(t *testing.T) {
	tests := []struct {
		total float64
		want  color.NRGBA
	}{
		{0, color.NRGBA{0, 0, 255, 180}},
		{500, color.NRGBA{128, 215, 128, 180}},
		{1000, color.NRGBA{255, 0, 0, 180}},
		{5000, color.NRGBA{255, 0, 0, 180}},
		{-10, color.NRGBA{0, 0, 255, 180}},
		{250, color.NRGBA{64, 108, 191, 180}},
		{math.NaN(), color.NRGBA{0, 0, 255, 180}},
	}

	for _, tt := range tests {
		if got := ColorScale(tt.total); got != tt.want {
			t.Errorf("ColorScale(%v) = %v; want %v", tt.total, got, tt.want)
		}
	}

	// Straight alpha: a saturated red at alpha 180 premultiplies to 180/255.
	r, _, _, a := ColorScale(1000).RGBA()
	if r != 180*0x101 || a != 180*0x101 {
		t.Errorf("ColorScale(1000).RGBA() = (%d, %d); want premultiplied %d", r, a, 180*0x101)
	}
}

func TestIconFor(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{"tram", IconTram},
		{"Tramway", IconTram},
		{"METRO", IconMetro},
		{"bus", IconBus},
		{"3", IconBus},
		{"", IconBus},
	}
	for _, tt := range tests {
		if got := IconFor(tt.mode); got != tt.want {
			t.Errorf("IconFor(%q) = %q; want %q", tt.mode, got, tt.want)
		}
	}
}

func TestStyles(t *testing.T) {
	flow := FlowStyle(interpolate.Rendered{Properties: map[string]interface{}{
		"bike": 100.0, "car": 300.0, "heavy": 50.0, "pedestrian": 50.0, "speed": 999.0,
	}})
	if flow.Color != ColorScale(500) || flow.Width != LineWidth {
		t.Errorf("FlowStyle = %+v; want ColorScale(500), width %v", flow, LineWidth)
	}

	count := CountStyle(interpolate.Rendered{Properties: map[string]interface{}{"hourlyCount": 12.0}})
	if count.Color != ColorScale(12) || count.Radius != PointRadius {
		t.Errorf("CountStyle = %+v; want ColorScale(12)", count)
	}

	air := AirQualityStyle(interpolate.Rendered{Properties: map[string]interface{}{
		"lastValue": map[string]interface{}{"value": 100.0},
	}})
	if air.Color != (color.NRGBA{255, 0, 0, 200}) {
		t.Errorf("AirQualityStyle(100) = %v; want saturated red at alpha 200", air.Color)
	}
	airMissing := AirQualityStyle(interpolate.Rendered{Properties: map[string]interface{}{"lastValue": "n/a"}})
	if airMissing.Color != (color.NRGBA{0, 0, 255, 200}) {
		t.Errorf("AirQualityStyle(missing) = %v; want value 0", airMissing.Color)
	}

	if m := VehicleStyle(interpolate.Rendered{Mode: "metro"}); m.Icon != IconMetro || m.Size != IconSize {
		t.Errorf("VehicleStyle(metro) = %+v", m)
	}
}

func TestGetByPath(t *testing.T) {
	props := map[string]interface{}{"a": map[string]interface{}{"b": map[string]interface{}{"c": 3.0}}, "x": 1.0}
	tests := []struct {
		path string
		want interface{}
		ok   bool
	}{
		{"a.b.c", 3.0, true},
		{"x", 1.0, true},
		{"x.y", nil, false},
		{"a.z", nil, false},
	}
	for _, tt := range tests {
		got, ok := GetByPath(props, tt.path)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("GetByPath(%q) = (%v, %v); want (%v, %v)", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func renderedSet() []interpolate.Rendered {
	return []interpolate.Rendered{
		{ID: "p1", Class: entity.Point, Interpolated: true, Position: orb.Point{4.35, 50.85}, Mode: "tram"},
		{ID: "l1", Class: entity.Line, Geometry: orb.LineString{{4.3, 50.8}, {4.4, 50.9}}},
		{ID: "p2", Class: entity.Point, Interpolated: true, Position: orb.Point{4.36, 50.86}},
	}
}

func TestPartition(t *testing.T) {
	points, lines := Partition(renderedSet())
	if len(points) != 2 || points[0].ID != "p1" || points[1].ID != "p2" {
		t.Errorf("points = %v; want [p1 p2]", points)
	}
	if len(lines) != 1 || lines[0].ID != "l1" {
		t.Errorf("lines = %v; want [l1]", lines)
	}
}

func TestBuildLayers(t *testing.T) {
	catalog := sources.NewCatalog()
	points, lines := Partition(renderedSet())

	tests := []struct {
		source    string
		points    []interpolate.Rendered
		lines     []interpolate.Rendered
		wantIDs   []string
		wantCount int
	}{
		{"stib", points, lines, []string{BaseTilesID, VehiclesID}, 2},
		{"bolt", nil, lines, []string{BaseTilesID}, 0},
		{"telraam", points, lines, []string{BaseTilesID, TrafficLinesID}, 1},
		{"telraam", points, nil, []string{BaseTilesID}, 0},
		{"tunnels", points, lines, []string{BaseTilesID, TunnelDevicesID}, 2},
		{"air", points, lines, []string{BaseTilesID, AirQualityID}, 2},
		{"air", nil, nil, []string{BaseTilesID}, 0},
	}

	for _, tt := range tests {
		src, _ := catalog.Lookup(tt.source)
		layers := BuildLayers(&fakeFactory{}, src, DefaultTileSpec(""), tt.points, tt.lines)
		var ids []string
		for _, l := range layers {
			ids = append(ids, l.LayerID())
		}
		if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
			t.Errorf("BuildLayers(%s) = %v; want %v", tt.source, ids, tt.wantIDs)
			continue
		}
		if len(layers) > 1 {
			if n := layers[1].(fakeLayer).n; n != tt.wantCount {
				t.Errorf("BuildLayers(%s) thematic layer has %d items; want %d", tt.source, n, tt.wantCount)
			}
		}
	}
}

func TestLoopFrameAndPick(t *testing.T) {
	t0 := time.Unix(100, 0)
	prev := entity.NewSnapshot(t0, 1)
	prev.Add(entity.Entity{ID: "a", Class: entity.Point, Mode: "tram", Position: orb.Point{0, 0}, Properties: map[string]interface{}{"line": "81"}})
	cur := entity.NewSnapshot(t0.Add(10*time.Second), 1)
	cur.Add(entity.Entity{ID: "a", Class: entity.Point, Mode: "tram", Position: orb.Point{10, 10}, Properties: map[string]interface{}{"line": "81"}})

	src, _ := sources.NewCatalog().Lookup("stib")
	factory := &fakeFactory{}
	popup := &fakePopup{}
	loop := NewLoop(LoopDeps{
		Store:     staticPair(snapshot.Pair{Previous: prev, Current: cur, Rotations: 2}),
		Selection: staticSource(src),
		Interp:    interpolate.New(func() time.Time { return t0.Add(5 * time.Second) }),
		Factory:   factory,
		Popup:     popup,
	})

	f := loop.Frame()
	if f.Drawn() != 1 || len(f.Layers) != 2 {
		t.Fatalf("Frame() = %d drawn, %d layers; want 1 and 2", f.Drawn(), len(f.Layers))
	}
	if f.Points[0].Position != (orb.Point{5, 5}) {
		t.Errorf("Position = %v; want [5 5]", f.Points[0].Position)
	}
	if len(factory.markers) != 1 || factory.markers[0].Icon != IconTram {
		t.Errorf("markers = %+v; want one tram icon", factory.markers)
	}

	loop.Pick(&f.Points[0], 120, 80)
	if !popup.shown || popup.x != 120 || popup.y != 80 {
		t.Errorf("popup = %+v; want shown at (120, 80)", popup)
	}
	if !strings.Contains(popup.body, `"line": "81"`) {
		t.Errorf("popup body = %q; want indented properties", popup.body)
	}

	loop.Pick(nil, 0, 0)
	if popup.shown || popup.hidden != 1 {
		t.Errorf("Pick(nil) did not hide popup: %+v", popup)
	}
}

func TestLoopFrameNotReady(t *testing.T) {
	src, _ := sources.NewCatalog().Lookup("stib")
	loop := NewLoop(LoopDeps{
		Store:     staticPair(snapshot.Pair{}),
		Selection: staticSource(src),
		Factory:   &fakeFactory{},
	})
	f := loop.Frame()
	if f.Drawn() != 0 || len(f.Layers) != 1 || f.Layers[0].LayerID() != BaseTilesID {
		t.Errorf("Frame() on empty store = %+v; want only the base tiles", f)
	}
}
