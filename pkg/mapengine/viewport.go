package mapengine

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	MinZoom = 0
	MaxZoom = 19

	maxLatitude = 85.05112878
)

// Viewport is a Web Mercator camera over the map.
type Viewport struct {
	Center   orb.Point
	Zoom     float64
	Width    int
	Height   int
	TileSize int
}

func (v Viewport) worldSize() float64 {
	return float64(v.TileSize) * math.Exp2(v.Zoom)
}

// mercator maps lon/lat onto the unit square, y growing southwards.
func mercator(p orb.Point) (x, y float64) {
	lat := math.Max(-maxLatitude, math.Min(maxLatitude, p.Lat()))
	s := math.Sin(lat * math.Pi / 180)
	x = (p.Lon() + 180) / 360
	y = 0.5 - math.Log((1+s)/(1-s))/(4*math.Pi)
	return x, y
}

// Project returns the screen position of p.
func (v Viewport) Project(p orb.Point) (x, y float64) {
	ws := v.worldSize()
	px, py := mercator(p)
	cx, cy := mercator(v.Center)
	return (px-cx)*ws + float64(v.Width)/2, (py-cy)*ws + float64(v.Height)/2
}

func (v Viewport) Unproject(x, y float64) orb.Point {
	ws := v.worldSize()
	cx, cy := mercator(v.Center)
	nx := cx + (x-float64(v.Width)/2)/ws
	ny := cy + (y-float64(v.Height)/2)/ws
	lat := math.Atan(math.Sinh(math.Pi*(1-2*ny))) * 180 / math.Pi
	return orb.Point{nx*360 - 180, lat}
}

// Pan moves the map by a screen delta, so that dragging right shows what
// was to the left.
func (v *Viewport) Pan(dx, dy float64) {
	v.Center = normalize(v.Unproject(float64(v.Width)/2-dx, float64(v.Height)/2-dy))
}

// ZoomAt changes the zoom while keeping the point under (x, y) in place.
func (v *Viewport) ZoomAt(delta, x, y float64) {
	anchor := v.Unproject(x, y)
	v.Zoom = math.Max(MinZoom, math.Min(MaxZoom, v.Zoom+delta))
	ax, ay := v.Project(anchor)
	v.Center = normalize(v.Unproject(float64(v.Width)/2+(ax-x), float64(v.Height)/2+(ay-y)))
}

// normalize wraps the longitude into [-180, 180] and clamps the latitude to
// the Mercator limit.
func normalize(p orb.Point) orb.Point {
	lon := math.Mod(p.Lon()+180, 360)
	if lon < 0 {
		lon += 360
	}
	lat := math.Max(-maxLatitude, math.Min(maxLatitude, p.Lat()))
	return orb.Point{lon - 180, lat}
}

// Bound is the geographic area currently on screen.
func (v Viewport) Bound() orb.Bound {
	tl := v.Unproject(0, 0)
	br := v.Unproject(float64(v.Width), float64(v.Height))
	return orb.Bound{Min: orb.Point{tl.Lon(), br.Lat()}, Max: orb.Point{br.Lon(), tl.Lat()}}
}

func (v Viewport) TileZoom() maptile.Zoom {
	z := int(math.Floor(v.Zoom))
	return maptile.Zoom(max(MinZoom, min(MaxZoom, z)))
}

// VisibleTiles lists the tiles covering the screen, row by row.
func (v Viewport) VisibleTiles() []maptile.Tile {
	z := v.TileZoom()
	n := float64(uint32(1) << z)
	b := v.Bound()
	x0, y0 := mercator(orb.Point{b.Min.Lon(), b.Max.Lat()})
	x1, y1 := mercator(orb.Point{b.Max.Lon(), b.Min.Lat()})

	clamp := func(f float64) uint32 {
		return uint32(math.Max(0, math.Min(n-1, math.Floor(f*n))))
	}
	minX, maxX := clamp(x0), clamp(x1)
	minY, maxY := clamp(y0), clamp(y1)

	tiles := make([]maptile.Tile, 0, int(maxX-minX+1)*int(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			tiles = append(tiles, maptile.New(x, y, z))
		}
	}
	return tiles
}

// TilePlacement returns where a tile's top-left corner lands on screen and
// how much the tile image must be scaled.
func (v Viewport) TilePlacement(t maptile.Tile) (x, y, scale float64) {
	b := t.Bound()
	x, y = v.Project(orb.Point{b.Min.Lon(), b.Max.Lat()})
	return x, y, math.Exp2(v.Zoom - float64(t.Z))
}
