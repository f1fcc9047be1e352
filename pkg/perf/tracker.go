// Package perf samples frame times and feeds a diagnostic overlay.
package perf

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	WindowSize     = 120
	ReportInterval = 500 * time.Millisecond
)

// Stats is what the overlay shows.
type Stats struct {
	Title  string
	FPS    float64
	Drawn  int
	HeapMB float64
	Extras map[string]string
}

func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nFPS: %.1f\nDrawn: %d\nMem: %.0f MB", s.Title, s.FPS, s.Drawn, s.HeapMB)
	keys := make([]string, 0, len(s.Extras))
	for k := range s.Extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, s.Extras[k])
	}
	return b.String()
}

// Surface receives reports. Implementations may be slow or fail; the
// tracker never lets that reach the frame.
type Surface interface {
	Report(Stats)
}

type Tracker struct {
	title   string
	surface Surface
	now     func() time.Time

	mu       sync.Mutex
	samples  []time.Duration
	next     int
	frameAt  time.Time
	drawn    int
	lastSent time.Time
	extras   map[string]string
}

func NewTracker(title string, surface Surface, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		title:   title,
		surface: surface,
		now:     now,
		samples: make([]time.Duration, 0, WindowSize),
		extras:  make(map[string]string),
	}
}

func (t *Tracker) TickStart() {
	t.mu.Lock()
	t.frameAt = t.now()
	t.mu.Unlock()
}

// TickEnd records the frame started by TickStart and reports to the surface
// if the last report is at least ReportInterval old.
func (t *Tracker) TickEnd(drawn int) {
	t.mu.Lock()
	now := t.now()
	dt := time.Duration(0)
	if !t.frameAt.IsZero() {
		dt = now.Sub(t.frameAt)
	}
	if len(t.samples) < WindowSize {
		t.samples = append(t.samples, dt)
	} else {
		t.samples[t.next] = dt
		t.next = (t.next + 1) % WindowSize
	}
	t.drawn = drawn

	var stats Stats
	due := now.Sub(t.lastSent) >= ReportInterval
	if due {
		t.lastSent = now
		stats = t.statsLocked()
	}
	t.mu.Unlock()

	if due {
		t.report(stats)
	}
}

// SetExtra adds or replaces an extra overlay line. An empty value removes it.
func (t *Tracker) SetExtra(key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if value == "" {
		delete(t.extras, key)
		return
	}
	t.extras[key] = value
}

// FPS is 1000 divided by the mean frame time in milliseconds over the
// window, or 0 before any non-zero sample.
func (t *Tracker) FPS() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fpsLocked()
}

func (t *Tracker) Samples() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples)
}

func (t *Tracker) fpsLocked() float64 {
	if len(t.samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range t.samples {
		total += s
	}
	avgMs := float64(total) / float64(len(t.samples)) / float64(time.Millisecond)
	if avgMs <= 0 {
		return 0
	}
	return 1000 / avgMs
}

func (t *Tracker) statsLocked() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	extras := make(map[string]string, len(t.extras))
	for k, v := range t.extras {
		extras[k] = v
	}
	return Stats{
		Title:  t.title,
		FPS:    t.fpsLocked(),
		Drawn:  t.drawn,
		HeapMB: float64(m.HeapAlloc) / (1 << 20),
		Extras: extras,
	}
}

func (t *Tracker) report(s Stats) {
	if t.surface == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("Diagnostic surface failed")
		}
	}()
	t.surface.Report(s)
}
