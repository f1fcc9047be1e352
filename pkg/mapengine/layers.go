package mapengine

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/paulmach/orb"
	"github.com/sudorandom/mobility-map/pkg/interpolate"
	"github.com/sudorandom/mobility-map/pkg/render"
)

// pickSlack widens hit areas so thin lines and small dots stay clickable.
const pickSlack = 3.0

var iconColors = map[string]color.NRGBA{
	render.IconTram:  {220, 40, 50, 255},
	render.IconMetro: {0, 95, 170, 255},
	render.IconBus:   {245, 175, 0, 255},
}

var iconLetters = map[string]string{
	render.IconTram:  "T",
	render.IconMetro: "M",
	render.IconBus:   "B",
}

// layer is what the engine's LayerFactory methods hand back.
type layer interface {
	render.Drawable
	draw(screen *ebiten.Image, e *Engine)
	pick(vp Viewport, x, y float64) *interpolate.Rendered
}

type tileLayer struct {
	id   string
	spec render.TileSpec
}

func (l *tileLayer) LayerID() string { return l.id }

func (l *tileLayer) draw(screen *ebiten.Image, e *Engine) {
	e.drawTiles(screen, l.spec)
}

func (l *tileLayer) pick(Viewport, float64, float64) *interpolate.Rendered { return nil }

type pointLayer struct {
	id    string
	data  []interpolate.Rendered
	style render.PointStyle
}

func (l *pointLayer) LayerID() string { return l.id }

func (l *pointLayer) draw(screen *ebiten.Image, e *Engine) {
	view := padded(e.view.Bound(), 0.01)
	for _, r := range l.data {
		if !view.Contains(r.Position) {
			continue
		}
		x, y := e.view.Project(r.Position)
		m := l.style(r)
		if m.Icon != "" {
			e.drawIcon(screen, m, float32(x), float32(y))
			continue
		}
		vector.DrawFilledCircle(screen, float32(x), float32(y), float32(m.Radius), m.Color, true)
	}
}

// pick returns the topmost point under (x, y). Later points are drawn on
// top, so the search runs backwards.
func (l *pointLayer) pick(vp Viewport, x, y float64) *interpolate.Rendered {
	for i := len(l.data) - 1; i >= 0; i-- {
		m := l.style(l.data[i])
		radius := m.Radius
		if m.Icon != "" {
			radius = m.Size / 2
		}
		px, py := vp.Project(l.data[i].Position)
		if math.Hypot(px-x, py-y) <= radius+pickSlack {
			return &l.data[i]
		}
	}
	return nil
}

type lineLayer struct {
	id    string
	data  []interpolate.Rendered
	style render.LineStyle
}

func (l *lineLayer) LayerID() string { return l.id }

func (l *lineLayer) draw(screen *ebiten.Image, e *Engine) {
	view := e.view.Bound()
	for _, r := range l.data {
		if r.Geometry == nil || !r.Geometry.Bound().Intersects(view) {
			continue
		}
		s := l.style(r)
		for _, ls := range lineStrings(r.Geometry) {
			for i := 1; i < len(ls); i++ {
				x0, y0 := e.view.Project(ls[i-1])
				x1, y1 := e.view.Project(ls[i])
				vector.StrokeLine(screen, float32(x0), float32(y0), float32(x1), float32(y1), float32(s.Width), s.Color, true)
			}
		}
	}
}

func (l *lineLayer) pick(vp Viewport, x, y float64) *interpolate.Rendered {
	for i := len(l.data) - 1; i >= 0; i-- {
		tolerance := l.style(l.data[i]).Width/2 + pickSlack
		for _, ls := range lineStrings(l.data[i].Geometry) {
			for j := 1; j < len(ls); j++ {
				x0, y0 := vp.Project(ls[j-1])
				x1, y1 := vp.Project(ls[j])
				if segmentDistance(x, y, x0, y0, x1, y1) <= tolerance {
					return &l.data[i]
				}
			}
		}
	}
	return nil
}

func lineStrings(g orb.Geometry) []orb.LineString {
	switch g := g.(type) {
	case orb.LineString:
		return []orb.LineString{g}
	case orb.MultiLineString:
		return g
	}
	return nil
}

// segmentDistance is the distance from (px, py) to the segment a-b.
func segmentDistance(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := math.Max(0, math.Min(1, ((px-ax)*dx+(py-ay)*dy)/lenSq))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}

func padded(b orb.Bound, deg float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.Min.Lon() - deg, b.Min.Lat() - deg},
		Max: orb.Point{b.Max.Lon() + deg, b.Max.Lat() + deg},
	}
}

func (e *Engine) drawIcon(screen *ebiten.Image, m render.Marker, x, y float32) {
	r := float32(m.Size / 2)
	c, ok := iconColors[m.Icon]
	if !ok {
		c = iconColors[render.IconBus]
	}
	vector.DrawFilledCircle(screen, x, y, r, c, true)
	vector.StrokeCircle(screen, x, y, r, 1.5, color.White, true)

	if e.fontSource == nil {
		return
	}
	face := &text.GoTextFace{Source: e.fontSource, Size: m.Size * 0.6}
	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(x), float64(y))
	op.PrimaryAlign = text.AlignCenter
	op.SecondaryAlign = text.AlignCenter
	text.Draw(screen, iconLetters[m.Icon], face, op)
}

// Tiles, Points and Lines make the engine a render.LayerFactory.

func (e *Engine) Tiles(id string, spec render.TileSpec) render.Drawable {
	return &tileLayer{id: id, spec: spec}
}

func (e *Engine) Points(id string, data []interpolate.Rendered, style render.PointStyle) render.Drawable {
	return &pointLayer{id: id, data: data, style: style}
}

func (e *Engine) Lines(id string, data []interpolate.Rendered, style render.LineStyle) render.Drawable {
	return &lineLayer{id: id, data: data, style: style}
}
