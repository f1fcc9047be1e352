package entity

import (
	"encoding/json"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
)

// Record is one upstream feature after defensive decoding. A record whose
// geometry is missing or malformed still keeps whatever id and properties
// could be read, and resolves to a Point at [0,0].
type Record struct {
	Index      int
	ID         interface{}
	Properties map[string]interface{}
	Class      Class
	Position   orb.Point
	Geometry   orb.Geometry
}

// Decode never fails: problems with a single record are absorbed into
// fallback values so they cannot abort the enclosing snapshot.
func Decode(raw json.RawMessage, index int) Record {
	f, err := geojson.UnmarshalFeature(raw)
	if err != nil || f == nil {
		return decodeLenient(raw, index)
	}

	rec := Record{Index: index, ID: f.ID, Properties: f.Properties}
	if rec.Properties == nil {
		rec.Properties = map[string]interface{}{}
	}
	rec.Class, rec.Position, rec.Geometry = classify(f.Geometry)
	return rec
}

// decodeLenient salvages id and properties from a feature that go.geojson
// refused, typically because of bad coordinates.
func decodeLenient(raw json.RawMessage, index int) Record {
	rec := Record{Index: index, Properties: map[string]interface{}{}}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return rec
	}
	if v, ok := fields["id"]; ok {
		var id interface{}
		if json.Unmarshal(v, &id) == nil {
			rec.ID = id
		}
	}
	if v, ok := fields["properties"]; ok {
		var props map[string]interface{}
		if json.Unmarshal(v, &props) == nil && props != nil {
			rec.Properties = props
		}
	}
	return rec
}

func classify(g *geojson.Geometry) (Class, orb.Point, orb.Geometry) {
	switch {
	case g == nil:
		return Point, orb.Point{}, nil
	case g.IsLineString():
		return Line, orb.Point{}, lineString(g.LineString)
	case g.IsMultiLineString():
		mls := make(orb.MultiLineString, 0, len(g.MultiLineString))
		for _, ls := range g.MultiLineString {
			mls = append(mls, lineString(ls))
		}
		return Line, orb.Point{}, mls
	case g.IsPoint() && len(g.Point) >= 2:
		p := orb.Point{g.Point[0], g.Point[1]}
		return Point, p, p
	}
	return Point, orb.Point{}, nil
}

func lineString(coords [][]float64) orb.LineString {
	ls := make(orb.LineString, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		ls = append(ls, orb.Point{c[0], c[1]})
	}
	return ls
}

// Entity builds the canonical single-feed entity for this record.
func (r Record) Entity() Entity {
	id, _ := Resolve(r, IDRules)
	mode, _ := Resolve(r, ModeRules)
	return Entity{
		ID:         id,
		Class:      r.Class,
		Mode:       mode,
		Position:   r.Position,
		Geometry:   r.Geometry,
		Properties: r.Properties,
	}
}

// Extract normalizes one raw upstream record into an Entity.
func Extract(raw json.RawMessage, index int) Entity {
	return Decode(raw, index).Entity()
}
