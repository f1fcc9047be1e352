// Package snapshot holds the previous/current snapshot pair shared between
// the poller and the render loop.
package snapshot

import (
	"sync/atomic"

	"github.com/sudorandom/mobility-map/pkg/entity"
)

// Pair is an immutable view of the store. Previous and Current are either
// both nil or both set, and Current.Time is never before Previous.Time.
type Pair struct {
	Previous *entity.Snapshot
	Current  *entity.Snapshot

	// Epoch increments on every Clear.
	Epoch uint64
	// Rotations counts snapshots stored since the last Clear.
	Rotations int
}

// Ready reports whether two fetches have landed since the store was last
// cleared. Before that the pair must not be interpolated.
func (p Pair) Ready() bool {
	return p.Previous != nil && p.Current != nil && p.Rotations >= 2
}

// Store swaps the whole pair atomically, so a reader never sees a Current
// without its matching Previous.
type Store struct {
	pair atomic.Pointer[Pair]
}

func NewStore() *Store {
	s := &Store{}
	s.pair.Store(&Pair{})
	return s
}

func (s *Store) Load() Pair {
	return *s.pair.Load()
}

func (s *Store) Epoch() uint64 {
	return s.pair.Load().Epoch
}

// Rotate shifts Current into Previous and stores snap as Current. The first
// snapshot after a Clear fills both slots. A rotation for an epoch that has
// since been cleared is dropped and Rotate returns false.
func (s *Store) Rotate(epoch uint64, snap *entity.Snapshot) bool {
	if snap == nil {
		return false
	}
	for {
		old := s.pair.Load()
		if old.Epoch != epoch {
			return false
		}
		next := &Pair{
			Previous:  old.Current,
			Current:   snap,
			Epoch:     epoch,
			Rotations: old.Rotations + 1,
		}
		if next.Previous == nil || next.Previous.Time.After(snap.Time) {
			next.Previous = snap
		}
		if s.pair.CompareAndSwap(old, next) {
			return true
		}
	}
}

// Clear drops both snapshots and starts a new epoch.
func (s *Store) Clear() {
	for {
		old := s.pair.Load()
		if s.pair.CompareAndSwap(old, &Pair{Epoch: old.Epoch + 1}) {
			return
		}
	}
}
