package mapengine

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog/log"
)

// CaptureName is the file name used for a frame captured at ts.
func CaptureName(sourceID string, ts time.Time) string {
	if sourceID == "" {
		sourceID = "map"
	}
	return fmt.Sprintf("mobility-%s-%s.png", sourceID, ts.Format("20060102-150405"))
}

func (e *Engine) captureFrame(img *ebiten.Image, sourceID string, ts time.Time) {
	if e.FrameCaptureDir == "" {
		return
	}
	if err := os.MkdirAll(e.FrameCaptureDir, 0o755); err != nil {
		log.Error().Err(err).Str("dir", e.FrameCaptureDir).Msg("Error creating capture directory")
		return
	}
	path := filepath.Join(e.FrameCaptureDir, CaptureName(sourceID, ts))

	// Copy the pixels now; the screen is reused by the next frame.
	rgba := image.NewRGBA(img.Bounds())
	img.ReadPixels(rgba.Pix)

	go func() {
		if err := writePNG(path, rgba); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Error writing capture")
			return
		}
		log.Info().Str("path", path).Msg("Captured frame")
	}()
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
