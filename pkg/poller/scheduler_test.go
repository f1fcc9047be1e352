package poller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sudorandom/mobility-map/pkg/entity"
	"github.com/sudorandom/mobility-map/pkg/interpolate"
	"github.com/sudorandom/mobility-map/pkg/snapshot"
	"github.com/sudorandom/mobility-map/pkg/sources"
)

// fakeFetcher returns one snapshot per call, tagged with the source id.
type fakeFetcher struct {
	mu    sync.Mutex
	calls []string
	fail  func(n int) error
	block chan struct{}
	ctxs  []context.Context
}

func (f *fakeFetcher) Fetch(ctx context.Context, src sources.Source) (*entity.Snapshot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, src.ID)
	f.ctxs = append(f.ctxs, ctx)
	n := len(f.calls)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.fail != nil {
		if err := f.fail(n); err != nil {
			return nil, err
		}
	}
	snap := entity.NewSnapshot(time.Unix(int64(n), 0), 1)
	snap.Add(entity.Entity{ID: src.ID + "-vehicle", Properties: map[string]interface{}{"n": n}})
	return snap, nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func fastOptions() Options {
	return Options{Interval: time.Hour, MinimumWait: time.Millisecond, WarmupGrace: 10 * time.Millisecond}
}

func newTestScheduler(t *testing.T, f Fetcher, opts Options) (*Scheduler, *snapshot.Store) {
	t.Helper()
	catalog := sources.NewCatalog()
	stib, _ := catalog.Lookup("stib")
	store := snapshot.NewStore()
	return New(f, store, catalog, stib, opts), store
}

func waitUpdate(t *testing.T, sub *Subscription) Update {
	t.Helper()
	select {
	case u := <-sub.C:
		return u
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for update")
	}
	return Update{}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
}

func TestWaitTime(t *testing.T) {
	tests := []struct {
		interval, floor, elapsed time.Duration
		want                     time.Duration
	}{
		{20 * time.Second, time.Second, 0, 20 * time.Second},
		{20 * time.Second, time.Second, 3 * time.Second, 17 * time.Second},
		{20 * time.Second, time.Second, 19900 * time.Millisecond, time.Second},
		{20 * time.Second, time.Second, time.Minute, time.Second},
		{0, time.Second, 0, time.Second},
	}

	for _, tt := range tests {
		got := WaitTime(tt.interval, tt.floor, tt.elapsed)
		if got != tt.want {
			t.Errorf("WaitTime(%v, %v, %v) = %v; want %v", tt.interval, tt.floor, tt.elapsed, got, tt.want)
		}
		if got < tt.floor {
			t.Errorf("WaitTime(%v, %v, %v) = %v below floor", tt.interval, tt.floor, tt.elapsed, got)
		}
	}
}

func TestSchedulerWarmup(t *testing.T) {
	f := &fakeFetcher{}
	s, store := newTestScheduler(t, f, fastOptions())
	sub := s.Subscribe()
	defer s.Unsubscribe(sub)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { waitDone(t, s.Stop()) }()

	u := waitUpdate(t, sub)
	if u.Source != "stib" {
		t.Errorf("Update.Source = %q; want stib", u.Source)
	}
	if f.count() < 2 {
		t.Errorf("fetches before first update = %d; want at least 2", f.count())
	}
	p := store.Load()
	if !p.Ready() {
		t.Fatalf("store not ready after warm-up: %+v", p)
	}
	if !p.Current.Time.After(p.Previous.Time) {
		t.Errorf("warm-up window is zero wide: %v -> %v", p.Previous.Time, p.Current.Time)
	}

	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start error = %v; want ErrAlreadyRunning", err)
	}
}

func TestSchedulerHTTP500KeepsStore(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) > 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = fmt.Fprintf(w, `{"features":[{"type":"Feature","id":"a","geometry":{"type":"Point","coordinates":[%d,50]}}]}`, hits.Load())
	}))
	defer srv.Close()

	opts := Options{Interval: 20 * time.Millisecond, MinimumWait: 5 * time.Millisecond, WarmupGrace: 5 * time.Millisecond}
	s, store := newTestScheduler(t, sources.NewClient(srv.URL, time.Second), opts)
	sub := s.Subscribe()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitUpdate(t, sub)
	before := store.Load()

	// Let several failing cycles run.
	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() < 6 && time.Now().Before(deadline) {
		waitUpdate(t, sub)
	}
	waitDone(t, s.Stop())

	after := store.Load()
	if after.Previous != before.Previous || after.Current != before.Current {
		t.Errorf("store changed across HTTP 500 cycles: before %+v after %+v", before, after)
	}
	if st := s.Status(); st.LastErr == nil {
		t.Errorf("Status().LastErr = nil; want the 500 error")
	}
}

func TestSchedulerStopLetsFetchFinish(t *testing.T) {
	f := &fakeFetcher{}
	s, _ := newTestScheduler(t, f, fastOptions())
	sub := s.Subscribe()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitUpdate(t, sub)

	// Wait for the first regular cycle, then block the warm-up fetch that
	// the source switch triggers.
	deadline := time.Now().Add(2 * time.Second)
	for f.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	release := make(chan struct{})
	f.mu.Lock()
	f.block = release
	f.mu.Unlock()
	if err := s.SwitchSource("bolt"); err != nil {
		t.Fatalf("SwitchSource failed: %v", err)
	}
	for f.count() < 4 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	done := s.Stop()
	select {
	case <-done:
		t.Fatalf("Stop completed while a fetch was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	waitDone(t, done)

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, ctx := range f.ctxs {
		if ctx.Err() != nil {
			t.Errorf("fetch %d context cancelled by Stop: %v", i, ctx.Err())
		}
	}
}

func TestSchedulerSwitchSource(t *testing.T) {
	f := &fakeFetcher{}
	opts := fastOptions()
	opts.WarmupGrace = 50 * time.Millisecond
	s, store := newTestScheduler(t, f, opts)
	sub := s.Subscribe()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { waitDone(t, s.Stop()) }()
	waitUpdate(t, sub)

	interp := interpolate.New(time.Now)
	if len(interp.Interpolate(store.Load())) == 0 {
		t.Fatalf("no entities before switch")
	}

	if err := s.SwitchSource("nope"); !errors.Is(err, sources.ErrUnknownSource) {
		t.Errorf("SwitchSource(nope) error = %v; want ErrUnknownSource", err)
	}
	if err := s.SwitchSource("stib"); err != nil || store.Load().Current == nil {
		t.Errorf("SwitchSource(active) cleared the store or failed: %v", err)
	}

	if err := s.SwitchSource("dott"); err != nil {
		t.Fatalf("SwitchSource(dott) failed: %v", err)
	}
	if got := interp.Interpolate(store.Load()); len(got) != 0 {
		t.Errorf("Interpolate right after switch = %d entities; want 0", len(got))
	}

	deadline := time.Now().Add(2 * time.Second)
	for !store.Load().Ready() && time.Now().Before(deadline) {
		waitUpdate(t, sub)
	}
	got := interp.Interpolate(store.Load())
	if len(got) != 1 || got[0].ID != "dott-vehicle" {
		t.Errorf("after re-warm-up = %+v; want only dott entities", got)
	}
	if s.Source().ID != "dott" {
		t.Errorf("Source() = %q; want dott", s.Source().ID)
	}
}

func TestStopWithoutStart(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeFetcher{}, fastOptions())
	waitDone(t, s.Stop())
}
