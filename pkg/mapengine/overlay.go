package mapengine

import (
	"fmt"
	"image/color"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/sudorandom/mobility-map/pkg/perf"
	"github.com/sudorandom/mobility-map/pkg/render"
)

var (
	panelFill   = color.NRGBA{255, 255, 255, 220}
	panelBorder = color.RGBA{60, 64, 72, 255}
	panelAccent = color.RGBA{0, 95, 170, 255}
)

// HUD shows the latest perf report. It is fed from the tracker and drawn
// from the game loop.
type HUD struct {
	mu   sync.Mutex
	text string
}

func (h *HUD) Report(s perf.Stats) {
	h.mu.Lock()
	h.text = s.String()
	h.mu.Unlock()
}

func (h *HUD) Text() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.text
}

// Popup holds the property dump of the last picked entity.
type Popup struct {
	mu      sync.Mutex
	visible bool
	x, y    float64
	body    string
}

func (p *Popup) Show(x, y float64, body string) {
	p.mu.Lock()
	p.visible, p.x, p.y, p.body = true, x, y, body
	p.mu.Unlock()
}

func (p *Popup) Hide() {
	p.mu.Lock()
	p.visible = false
	p.mu.Unlock()
}

func (p *Popup) State() (visible bool, x, y float64, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible, p.x, p.y, p.body
}

var (
	_ perf.Surface        = (*HUD)(nil)
	_ render.PopupSurface = (*Popup)(nil)
)

func (e *Engine) fontSizes() (margin, fontSize float64) {
	if e.Width > 2000 {
		return 40, 28
	}
	return 20, 14
}

// panel draws a text box with its top-left corner at (x, y) and returns its
// size.
func (e *Engine) panel(screen *ebiten.Image, src *text.GoTextFaceSource, body string, x, y, fontSize float64) (w, h float64) {
	face := &text.GoTextFace{Source: src, Size: fontSize}
	lineSpacing := fontSize * 1.3
	tw, th := text.Measure(body, face, lineSpacing)
	pad := fontSize * 0.7
	w, h = tw+2*pad, th+2*pad

	vector.DrawFilledRect(screen, float32(x), float32(y), float32(w), float32(h), panelFill, false)
	vector.StrokeRect(screen, float32(x), float32(y), float32(w), float32(h), 1, panelBorder, false)
	vector.DrawFilledRect(screen, float32(x), float32(y), 4, float32(h), panelAccent, false)

	op := &text.DrawOptions{}
	op.GeoM.Translate(x+pad, y+pad)
	op.LineSpacing = lineSpacing
	op.ColorScale.ScaleWithColor(color.RGBA{20, 22, 28, 255})
	text.Draw(screen, body, face, op)
	return w, h
}

func (e *Engine) drawHUD(screen *ebiten.Image) {
	if e.fontSource == nil {
		return
	}
	body := e.hud.Text()
	if body == "" {
		return
	}
	margin, fontSize := e.fontSizes()
	e.panel(screen, e.monoSource, body, margin, margin, fontSize)
}

func (e *Engine) drawPopup(screen *ebiten.Image) {
	visible, x, y, body := e.popup.State()
	if !visible || e.monoSource == nil {
		return
	}
	_, fontSize := e.fontSizes()
	face := &text.GoTextFace{Source: e.monoSource, Size: fontSize}
	tw, th := text.Measure(body, face, fontSize*1.3)
	pad := fontSize * 0.7

	// Keep the box on screen.
	x += 12
	y += 12
	if x+tw+2*pad > float64(e.Width) {
		x = max(0, float64(e.Width)-tw-2*pad)
	}
	if y+th+2*pad > float64(e.Height) {
		y = max(0, float64(e.Height)-th-2*pad)
	}
	e.panel(screen, e.monoSource, body, x, y, fontSize)
}

// drawLegend draws a low-to-high gradient for value-colored layers.
func (e *Engine) drawLegend(screen *ebiten.Image, lg render.Legend) {
	if e.fontSource == nil {
		return
	}
	margin, fontSize := e.fontSizes()
	barW, barH := 12*fontSize, fontSize
	x := margin
	y := float64(e.Height) - margin - barH - fontSize*2.6

	face := &text.GoTextFace{Source: e.fontSource, Size: fontSize}
	vector.DrawFilledRect(screen, float32(x-8), float32(y-8), float32(barW+16), float32(barH+fontSize*2.6+16), panelFill, false)
	vector.StrokeRect(screen, float32(x-8), float32(y-8), float32(barW+16), float32(barH+fontSize*2.6+16), 1, panelBorder, false)

	title := &text.DrawOptions{}
	title.GeoM.Translate(x, y)
	title.ColorScale.ScaleWithColor(color.RGBA{20, 22, 28, 255})
	text.Draw(screen, lg.Title, face, title)

	barY := y + fontSize*1.3
	for i := 0; i < int(barW); i++ {
		c := lg.Scale(lg.Max * float64(i) / barW)
		c.A = 255
		vector.DrawFilledRect(screen, float32(x)+float32(i), float32(barY), 1, float32(barH), c, false)
	}

	labelY := barY + barH + 2
	low := &text.DrawOptions{}
	low.GeoM.Translate(x, labelY)
	low.ColorScale.ScaleWithColor(color.RGBA{20, 22, 28, 255})
	text.Draw(screen, "0", face, low)

	highLabel := fmt.Sprintf("%.0f+", lg.Max)
	tw, _ := text.Measure(highLabel, face, 0)
	high := &text.DrawOptions{}
	high.GeoM.Translate(x+barW-tw, labelY)
	high.ColorScale.ScaleWithColor(color.RGBA{20, 22, 28, 255})
	text.Draw(screen, highLabel, face, high)
}

// sourceHelp lists the number keys for the source menu line of the HUD.
func sourceHelp(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%d %s", i+1, n)
	}
	return strings.Join(parts, " | ")
}
