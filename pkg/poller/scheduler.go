// Package poller drives fetch-and-rotate cycles against the active source
// and tells subscribers when the snapshot store changed.
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sudorandom/mobility-map/pkg/entity"
	"github.com/sudorandom/mobility-map/pkg/snapshot"
	"github.com/sudorandom/mobility-map/pkg/sources"
)

var ErrAlreadyRunning = errors.New("scheduler already running")

type Fetcher interface {
	Fetch(ctx context.Context, src sources.Source) (*entity.Snapshot, error)
}

type Options struct {
	// Interval is the target time between the starts of two cycles.
	Interval time.Duration
	// MinimumWait is the floor on the sleep between cycles.
	MinimumWait time.Duration
	// WarmupGrace separates the two warm-up fetches so the first
	// interpolation window is not zero wide.
	WarmupGrace time.Duration
}

func DefaultOptions() Options {
	return Options{
		Interval:    20 * time.Second,
		MinimumWait: time.Second,
		WarmupGrace: 250 * time.Millisecond,
	}
}

// Update is sent to subscribers after the store may have changed.
type Update struct {
	Source string
	Epoch  uint64
	At     time.Time
}

// Subscription delivers updates on a channel with room for one pending
// update. A pending update stands for any number of newer ones, so slow
// readers simply re-read the store when they get to it.
type Subscription struct {
	C <-chan Update
	c chan Update
}

type Scheduler struct {
	fetcher Fetcher
	store   *snapshot.Store
	catalog *sources.Catalog
	opts    Options
	now     func() time.Time

	source atomic.Pointer[sources.Source]
	kick   chan struct{}

	subsMu sync.Mutex
	subs   map[*Subscription]struct{}

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	statusMu    sync.Mutex
	lastErr     error
	lastSuccess time.Time
}

func New(fetcher Fetcher, store *snapshot.Store, catalog *sources.Catalog, initial sources.Source, opts Options) *Scheduler {
	s := &Scheduler{
		fetcher: fetcher,
		store:   store,
		catalog: catalog,
		opts:    opts,
		now:     time.Now,
		kick:    make(chan struct{}, 1),
		subs:    make(map[*Subscription]struct{}),
	}
	s.source.Store(&initial)
	return s
}

// WaitTime is how long to sleep after a cycle that took elapsed: the rest
// of the interval, but never less than floor.
func WaitTime(interval, floor, elapsed time.Duration) time.Duration {
	return max(floor, interval-elapsed)
}

func (s *Scheduler) Source() sources.Source {
	return *s.source.Load()
}

// Start runs the warm-up sequence and then the polling cycle in the
// background until ctx is cancelled or Stop is called. A Scheduler can only
// be started once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.done != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	return nil
}

// Stop asks the cycle to halt and returns a channel that is closed once it
// has. An in-flight fetch is allowed to finish.
func (s *Scheduler) Stop() <-chan struct{} {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.done == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	s.cancel()
	return s.done
}

// SwitchSource makes id the active source. The store is cleared right away
// and the scheduler starts a fresh warm-up. Selecting the active source
// again does nothing.
func (s *Scheduler) SwitchSource(id string) error {
	src, err := s.catalog.Lookup(id)
	if err != nil {
		return err
	}
	if s.Source().ID == src.ID {
		return nil
	}

	// Selection first, then clear: a fetch that read the old selection also
	// read the old epoch, so its rotation is rejected.
	s.source.Store(&src)
	s.store.Clear()
	s.notify()
	select {
	case s.kick <- struct{}{}:
	default:
	}
	log.Info().Str("source", src.ID).Msg("Switched active source")
	return nil
}

func (s *Scheduler) Subscribe() *Subscription {
	c := make(chan Update, 1)
	sub := &Subscription{C: c, c: c}
	s.subsMu.Lock()
	s.subs[sub] = struct{}{}
	s.subsMu.Unlock()
	return sub
}

func (s *Scheduler) Unsubscribe(sub *Subscription) {
	s.subsMu.Lock()
	delete(s.subs, sub)
	s.subsMu.Unlock()
}

// Status describes the outcome of recent cycles. LastErr is cleared by the
// next successful rotation.
type Status struct {
	LastErr     error
	LastSuccess time.Time
}

func (s *Scheduler) Status() Status {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return Status{LastErr: s.lastErr, LastSuccess: s.lastSuccess}
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	// Fetches outlive Stop; only the sleeps are interruptible.
	fetchCtx := context.WithoutCancel(ctx)

	if !s.warmup(ctx, fetchCtx) {
		return
	}
	for {
		start := s.now()
		s.fetchAndRotate(fetchCtx)
		s.notify()

		if ctx.Err() != nil {
			return
		}
		timer := time.NewTimer(WaitTime(s.opts.Interval, s.opts.MinimumWait, s.now().Sub(start)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.kick:
			timer.Stop()
			if !s.warmup(ctx, fetchCtx) {
				return
			}
		case <-timer.C:
		}
	}
}

// warmup fetches twice, a grace period apart, then notifies. It reports
// false if the scheduler was stopped during the grace period.
func (s *Scheduler) warmup(ctx, fetchCtx context.Context) bool {
	s.fetchAndRotate(fetchCtx)

	timer := time.NewTimer(s.opts.WarmupGrace)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
	}

	s.fetchAndRotate(fetchCtx)
	s.notify()
	return ctx.Err() == nil
}

// fetchAndRotate leaves the store untouched on any failure.
func (s *Scheduler) fetchAndRotate(ctx context.Context) bool {
	epoch := s.store.Epoch()
	src := s.Source()
	start := s.now()

	snap, err := s.fetcher.Fetch(ctx, src)
	if err != nil {
		log.Warn().Err(err).Str("source", src.ID).Msg("Fetch failed, keeping previous snapshots")
		s.statusMu.Lock()
		s.lastErr = err
		s.statusMu.Unlock()
		return false
	}
	if !s.store.Rotate(epoch, snap) {
		log.Debug().Str("source", src.ID).Msg("Dropping snapshot fetched before a source switch")
		return false
	}

	s.statusMu.Lock()
	s.lastErr = nil
	s.lastSuccess = snap.Time
	s.statusMu.Unlock()
	log.Debug().
		Str("source", src.ID).
		Int("entities", snap.Len()).
		Dur("elapsed", s.now().Sub(start)).
		Msg("Rotated snapshot")
	return true
}

func (s *Scheduler) notify() {
	u := Update{Source: s.Source().ID, Epoch: s.store.Epoch(), At: s.now()}
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for sub := range s.subs {
		select {
		case sub.c <- u:
		default:
		}
	}
}
