// Package mapengine draws the live mobility map with ebiten. It implements
// the render package's LayerFactory and turns input into viewport moves,
// picks and source switches.
package mapengine

import (
	"bytes"
	"image/color"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"github.com/sudorandom/mobility-map/pkg/interpolate"
	"github.com/sudorandom/mobility-map/pkg/poller"
	"github.com/sudorandom/mobility-map/pkg/render"
	"github.com/sudorandom/mobility-map/pkg/sources"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	maxTileImages = 256
	// clickTolerance separates a click from the start of a drag, in pixels.
	clickTolerance = 4
	keyPanStep     = 12.0
	wheelZoomStep  = 0.5
)

var backgroundColor = color.RGBA{232, 232, 228, 255}

var digitKeys = []ebiten.Key{
	ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3,
	ebiten.KeyDigit4, ebiten.KeyDigit5, ebiten.KeyDigit6,
	ebiten.KeyDigit7, ebiten.KeyDigit8, ebiten.KeyDigit9,
}

// Controller is the part of the scheduler the viewer drives.
type Controller interface {
	Source() sources.Source
	SwitchSource(id string) error
	Status() poller.Status
}

type Options struct {
	Width, Height int
	Center        orb.Point
	Zoom          float64
	TileSize      int
	CaptureDir    string

	// Done ends the game when closed.
	Done <-chan struct{}
}

type Engine struct {
	Width, Height   int
	FrameCaptureDir string

	view       Viewport
	tiles      *TileLoader
	tileImages map[string]*ebiten.Image

	loop    *render.Loop
	ctrl    Controller
	catalog *sources.Catalog
	frame   render.Frame

	hud        *HUD
	popup      *Popup
	fontSource *text.GoTextFaceSource
	monoSource *text.GoTextFaceSource

	done <-chan struct{}

	pressX, pressY   int
	cursorX, cursorY int
	dragging         bool
	captureNext      bool

	now func() time.Time
}

func NewEngine(opts Options, tiles *TileLoader) *Engine {
	s, _ := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	m, _ := text.NewGoTextFaceSource(bytes.NewReader(gomono.TTF))
	if opts.TileSize == 0 {
		opts.TileSize = 256
	}

	return &Engine{
		Width:           opts.Width,
		Height:          opts.Height,
		FrameCaptureDir: opts.CaptureDir,
		view: Viewport{
			Center:   opts.Center,
			Zoom:     opts.Zoom,
			Width:    opts.Width,
			Height:   opts.Height,
			TileSize: opts.TileSize,
		},
		done:       opts.Done,
		tiles:      tiles,
		tileImages: make(map[string]*ebiten.Image),
		hud:        &HUD{},
		popup:      &Popup{},
		fontSource: s,
		monoSource: m,
		now:        time.Now,
	}
}

func (e *Engine) HUD() *HUD       { return e.hud }
func (e *Engine) Popup() *Popup   { return e.popup }
func (e *Engine) View() *Viewport { return &e.view }

// Attach connects the engine to the render loop and the scheduler. It must
// be called before the game starts.
func (e *Engine) Attach(loop *render.Loop, ctrl Controller, catalog *sources.Catalog) {
	e.loop = loop
	e.ctrl = ctrl
	e.catalog = catalog
}

func (e *Engine) Update() error {
	select {
	case <-e.done:
		return ebiten.Termination
	default:
	}

	e.handleKeys()
	e.handleMouse()

	if e.loop != nil {
		e.frame = e.loop.Frame()
		e.updateExtras()
	}
	return nil
}

func (e *Engine) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)
	for _, d := range e.frame.Layers {
		if l, ok := d.(layer); ok {
			l.draw(screen, e)
		}
	}
	if lg, ok := render.LegendFor(e.frame.Source.Layer); ok {
		e.drawLegend(screen, lg)
	}
	e.drawHUD(screen)
	e.drawPopup(screen)

	if e.captureNext {
		e.captureNext = false
		e.captureFrame(screen, e.frame.Source.ID, e.now())
	}
}

func (e *Engine) Layout(w, h int) (int, int) { return e.Width, e.Height }

// PickAt returns the topmost entity under a screen position.
func (e *Engine) PickAt(x, y float64) *interpolate.Rendered {
	for i := len(e.frame.Layers) - 1; i >= 0; i-- {
		l, ok := e.frame.Layers[i].(layer)
		if !ok {
			continue
		}
		if hit := l.pick(e.view, x, y); hit != nil {
			return hit
		}
	}
	return nil
}

func (e *Engine) handleKeys() {
	if e.catalog != nil && e.ctrl != nil {
		for i, k := range digitKeys {
			if !inpututil.IsKeyJustPressed(k) {
				continue
			}
			src, ok := e.catalog.At(i)
			if !ok {
				break
			}
			if err := e.ctrl.SwitchSource(src.ID); err != nil {
				log.Error().Err(err).Str("source", src.ID).Msg("Failed to switch source")
			}
			e.popup.Hide()
		}
	}

	switch {
	case ebiten.IsKeyPressed(ebiten.KeyArrowLeft):
		e.view.Pan(keyPanStep, 0)
	case ebiten.IsKeyPressed(ebiten.KeyArrowRight):
		e.view.Pan(-keyPanStep, 0)
	}
	switch {
	case ebiten.IsKeyPressed(ebiten.KeyArrowUp):
		e.view.Pan(0, keyPanStep)
	case ebiten.IsKeyPressed(ebiten.KeyArrowDown):
		e.view.Pan(0, -keyPanStep)
	}
	cx, cy := float64(e.Width)/2, float64(e.Height)/2
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) {
		e.view.ZoomAt(1, cx, cy)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) {
		e.view.ZoomAt(-1, cx, cy)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		e.popup.Hide()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		e.captureNext = true
	}
}

func (e *Engine) handleMouse() {
	x, y := ebiten.CursorPosition()

	if _, dy := ebiten.Wheel(); dy != 0 {
		e.view.ZoomAt(math.Copysign(wheelZoomStep, dy), float64(x), float64(y))
	}

	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		e.pressX, e.pressY = x, y
		e.cursorX, e.cursorY = x, y
		e.dragging = false
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft):
		if abs(x-e.pressX) > clickTolerance || abs(y-e.pressY) > clickTolerance {
			e.dragging = true
		}
		if e.dragging {
			e.view.Pan(float64(x-e.cursorX), float64(y-e.cursorY))
		}
		e.cursorX, e.cursorY = x, y
	case inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
		if !e.dragging && e.loop != nil {
			e.loop.Pick(e.PickAt(float64(x), float64(y)), float64(x), float64(y))
		}
		e.dragging = false
	}
}

func (e *Engine) updateExtras() {
	tr := e.loop.Tracker()
	if tr == nil {
		return
	}
	tr.SetExtra("Source", e.frame.Source.Name)
	if e.frame.At.IsZero() {
		tr.SetExtra("Age", "warming up")
	} else {
		tr.SetExtra("Age", e.now().Sub(e.frame.At).Truncate(time.Second).String())
	}
	if e.ctrl != nil {
		if st := e.ctrl.Status(); st.LastErr != nil {
			tr.SetExtra("Error", st.LastErr.Error())
		} else {
			tr.SetExtra("Error", "")
		}
	}
	if e.catalog != nil {
		names := make([]string, 0, e.catalog.Len())
		for _, s := range e.catalog.All() {
			names = append(names, s.ID)
		}
		tr.SetExtra("Keys", sourceHelp(names))
	}
}

func (e *Engine) drawTiles(screen *ebiten.Image, spec render.TileSpec) {
	if e.tiles == nil {
		return
	}
	for _, t := range e.view.VisibleTiles() {
		key := tileKey(t)
		img := e.tileImages[key]
		if img == nil {
			src := e.tiles.Image(t)
			if src == nil {
				e.tiles.Request(t)
				continue
			}
			e.evictTileImages()
			img = ebiten.NewImageFromImage(src)
			e.tileImages[key] = img
		}

		x, y, scale := e.view.TilePlacement(t)
		if w := img.Bounds().Dx(); w > 0 {
			scale *= float64(spec.TileSize) / float64(w)
		}
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(scale, scale)
		op.GeoM.Translate(x, y)
		op.Filter = ebiten.FilterLinear
		screen.DrawImage(img, op)
	}
}

func (e *Engine) evictTileImages() {
	if len(e.tileImages) < maxTileImages {
		return
	}
	count := 0
	for k, img := range e.tileImages {
		img.Deallocate()
		delete(e.tileImages, k)
		count++
		if count > maxTileImages/4 {
			break
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
