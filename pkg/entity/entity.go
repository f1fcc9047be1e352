// Package entity holds the canonical entity model shared by every feed and
// the extractor that normalizes raw upstream records into it.
package entity

import (
	"time"

	"github.com/paulmach/orb"
)

// DefaultMode is used when a record carries no usable mode hint.
const DefaultMode = "bus"

type Class int

const (
	Point Class = iota
	Line
)

func (c Class) String() string {
	switch c {
	case Point:
		return "point"
	case Line:
		return "line"
	}
	return "unknown"
}

// Entity is one tracked thing at one point in time. Point entities carry a
// Position; Line entities carry Geometry (an orb.LineString or
// orb.MultiLineString) and are never interpolated.
type Entity struct {
	ID         string
	Class      Class
	Mode       string
	Position   orb.Point
	Geometry   orb.Geometry
	Properties map[string]interface{}
}

func (e Entity) IsLine() bool { return e.Class == Line }

// Snapshot is the result of one fetch-and-fuse cycle. It must not be modified
// once handed to a store.
type Snapshot struct {
	Time     time.Time
	Entities map[string]Entity

	// order keeps first-seen id order so frames draw in a stable order.
	order []string
}

func NewSnapshot(at time.Time, sizeHint int) *Snapshot {
	return &Snapshot{
		Time:     at,
		Entities: make(map[string]Entity, sizeHint),
		order:    make([]string, 0, sizeHint),
	}
}

// Add stores e under its id. A later record with the same id replaces the
// earlier one but keeps its original position in IDs().
func (s *Snapshot) Add(e Entity) {
	if _, ok := s.Entities[e.ID]; !ok {
		s.order = append(s.order, e.ID)
	}
	s.Entities[e.ID] = e
}

func (s *Snapshot) Get(id string) (Entity, bool) {
	if s == nil {
		return Entity{}, false
	}
	e, ok := s.Entities[id]
	return e, ok
}

// IDs returns entity ids in first-seen order.
func (s *Snapshot) IDs() []string {
	if s == nil {
		return nil
	}
	return s.order
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entities)
}
