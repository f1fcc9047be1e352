// Package interpolate blends the stored snapshot pair into per-frame
// positions.
package interpolate

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/sudorandom/mobility-map/pkg/entity"
	"github.com/sudorandom/mobility-map/pkg/snapshot"
)

type Clock func() time.Time

// Rendered is one entity ready to draw. Line entities carry the newest
// geometry verbatim and have Interpolated set to false.
type Rendered struct {
	ID           string
	Class        entity.Class
	Interpolated bool
	Position     orb.Point
	Geometry     orb.Geometry
	Mode         string
	Properties   map[string]interface{}
}

type Interpolator struct {
	now Clock
}

func New(now Clock) *Interpolator {
	if now == nil {
		now = time.Now
	}
	return &Interpolator{now: now}
}

// Ratio is the normalized position of now between the two snapshot times,
// clamped to [0,1]. A zero-width window counts as one millisecond wide.
func Ratio(prev, cur, now time.Time) float64 {
	span := math.Max(float64(time.Millisecond), float64(cur.Sub(prev)))
	r := float64(now.Sub(prev)) / span
	return math.Max(0, math.Min(1, r))
}

// Interpolate returns every entity known in either snapshot, or nothing if
// the pair is not ready. An entity missing from one side is held at the
// position it has on the other.
func (i *Interpolator) Interpolate(p snapshot.Pair) []Rendered {
	if !p.Ready() {
		return nil
	}
	prev, cur := p.Previous, p.Current
	r := Ratio(prev.Time, cur.Time, i.now())

	out := make([]Rendered, 0, max(prev.Len(), cur.Len()))
	for _, id := range prev.IDs() {
		out = append(out, blend(id, prev, cur, r))
	}
	for _, id := range cur.IDs() {
		if _, seen := prev.Get(id); seen {
			continue
		}
		out = append(out, blend(id, prev, cur, r))
	}
	return out
}

func blend(id string, prev, cur *entity.Snapshot, r float64) Rendered {
	a, okA := prev.Get(id)
	b, okB := cur.Get(id)
	if !okA {
		a = b
	}
	if !okB {
		b = a
	}

	if a.IsLine() || b.IsLine() {
		return Rendered{
			ID:         id,
			Class:      b.Class,
			Position:   b.Position,
			Geometry:   b.Geometry,
			Mode:       pick(b.Mode, a.Mode),
			Properties: props(b, a),
		}
	}

	return Rendered{
		ID:           id,
		Class:        entity.Point,
		Interpolated: true,
		Position: orb.Point{
			a.Position.Lon() + (b.Position.Lon()-a.Position.Lon())*r,
			a.Position.Lat() + (b.Position.Lat()-a.Position.Lat())*r,
		},
		Mode:       pick(b.Mode, a.Mode),
		Properties: props(b, a),
	}
}

func pick(newer, older string) string {
	if newer != "" {
		return newer
	}
	return older
}

func props(newer, older entity.Entity) map[string]interface{} {
	if newer.Properties != nil {
		return newer.Properties
	}
	if older.Properties != nil {
		return older.Properties
	}
	return map[string]interface{}{}
}
