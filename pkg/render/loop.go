package render

import (
	"encoding/json"
	"time"

	"github.com/sudorandom/mobility-map/pkg/interpolate"
	"github.com/sudorandom/mobility-map/pkg/perf"
	"github.com/sudorandom/mobility-map/pkg/snapshot"
	"github.com/sudorandom/mobility-map/pkg/sources"
)

type PairLoader interface {
	Load() snapshot.Pair
}

type SourceProvider interface {
	Source() sources.Source
}

// PopupSurface shows the property dump of a picked entity.
type PopupSurface interface {
	Show(x, y float64, body string)
	Hide()
}

type Frame struct {
	Source sources.Source
	// At is the time of the newest snapshot, zero before warm-up.
	At     time.Time
	Points []interpolate.Rendered
	Lines  []interpolate.Rendered
	Layers []Drawable
}

func (f Frame) Drawn() int { return len(f.Points) + len(f.Lines) }

type LoopDeps struct {
	Store     PairLoader
	Selection SourceProvider
	Interp    *interpolate.Interpolator
	Factory   LayerFactory
	Popup     PopupSurface
	Tracker   *perf.Tracker
	Tiles     TileSpec
}

// Loop builds one layer set per animation frame. It only reads the store,
// so it never waits on the network.
type Loop struct {
	deps LoopDeps
}

func NewLoop(d LoopDeps) *Loop {
	if d.Interp == nil {
		d.Interp = interpolate.New(nil)
	}
	if d.Tiles.URLTemplate == "" {
		d.Tiles = DefaultTileSpec("")
	}
	return &Loop{deps: d}
}

func (l *Loop) Frame() Frame {
	if l.deps.Tracker != nil {
		l.deps.Tracker.TickStart()
	}

	src := l.deps.Selection.Source()
	pair := l.deps.Store.Load()
	points, lines := Partition(l.deps.Interp.Interpolate(pair))
	f := Frame{
		Source: src,
		Points: points,
		Lines:  lines,
		Layers: BuildLayers(l.deps.Factory, src, l.deps.Tiles, points, lines),
	}

	if pair.Current != nil {
		f.At = pair.Current.Time
	}

	if l.deps.Tracker != nil {
		l.deps.Tracker.TickEnd(f.Drawn())
	}
	return f
}

// Tracker returns the frame-time tracker, which may be nil.
func (l *Loop) Tracker() *perf.Tracker { return l.deps.Tracker }

// Pick handles a click. A nil hit means empty space and closes the popup.
func (l *Loop) Pick(hit *interpolate.Rendered, x, y float64) {
	if l.deps.Popup == nil {
		return
	}
	if hit == nil {
		l.deps.Popup.Hide()
		return
	}
	l.deps.Popup.Show(x, y, FormatProperties(hit.Properties))
}

// FormatProperties renders a property set as indented JSON.
func FormatProperties(props map[string]interface{}) string {
	if props == nil {
		props = map[string]interface{}{}
	}
	b, err := json.MarshalIndent(props, "", "  ")
	if err != nil {
		return "No properties"
	}
	return string(b)
}
