package mapengine

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/sudorandom/mobility-map/pkg/utils"
)

const (
	tileQueueSize  = 64
	maxDecodedTile = 512
)

// TileURL fills {z}, {x} and {y} in a slippy-map URL template.
func TileURL(template string, t maptile.Tile) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(int(t.Z)),
		"{x}", strconv.Itoa(int(t.X)),
		"{y}", strconv.Itoa(int(t.Y)),
	).Replace(template)
}

func tileKey(t maptile.Tile) string {
	return utils.TileKey(int(t.Z), int(t.X), int(t.Y))
}

// TileLoader downloads base-map tiles in the background. Raw tile bytes go
// through the tile cache; decoded images are kept for the draw loop.
type TileLoader struct {
	template string
	client   *http.Client
	cache    *utils.TileCache
	requests chan maptile.Tile

	mu      sync.Mutex
	pending map[string]bool
	decoded map[string]image.Image
}

func NewTileLoader(template string, cache *utils.TileCache, client *http.Client) *TileLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &TileLoader{
		template: template,
		client:   client,
		cache:    cache,
		requests: make(chan maptile.Tile, tileQueueSize),
		pending:  make(map[string]bool),
		decoded:  make(map[string]image.Image),
	}
}

// Run serves tile requests with the given number of workers until ctx is
// done.
func (l *TileLoader) Run(ctx context.Context, workers int) {
	p := pool.New().WithMaxGoroutines(max(1, workers))
	for i := 0; i < max(1, workers); i++ {
		p.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-l.requests:
					l.load(ctx, t)
				}
			}
		})
	}
	p.Wait()
}

// Request queues t unless it is already loaded or queued. A full queue
// drops the request; the next frame asks again.
func (l *TileLoader) Request(t maptile.Tile) {
	key := tileKey(t)
	l.mu.Lock()
	if l.pending[key] || l.decoded[key] != nil {
		l.mu.Unlock()
		return
	}
	l.pending[key] = true
	l.mu.Unlock()

	select {
	case l.requests <- t:
	default:
		l.done(key, nil)
	}
}

// Image returns the decoded tile, or nil if it has not arrived.
func (l *TileLoader) Image(t maptile.Tile) image.Image {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.decoded[tileKey(t)]
}

func (l *TileLoader) load(ctx context.Context, t maptile.Tile) {
	key := tileKey(t)
	data, err := l.cache.Get(key)
	if err != nil {
		log.Debug().Err(err).Str("tile", key).Msg("Tile cache read failed")
	}
	if data == nil {
		url := TileURL(l.template, t)
		data, err = utils.GetBytes(ctx, l.client, url, utils.AcceptImage)
		if err != nil {
			log.Debug().Err(err).Str("url", url).Msg("Tile fetch failed")
			l.done(key, nil)
			return
		}
		if err := l.cache.Put(key, data); err != nil {
			log.Debug().Err(err).Str("tile", key).Msg("Tile cache write failed")
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Str("tile", key).Msg("Tile decode failed")
		l.done(key, nil)
		return
	}
	l.done(key, img)
}

func (l *TileLoader) done(key string, img image.Image) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, key)
	if img == nil {
		return
	}
	if len(l.decoded) >= maxDecodedTile {
		count := 0
		for k := range l.decoded {
			delete(l.decoded, k)
			count++
			if count > maxDecodedTile/4 {
				break
			}
		}
	}
	l.decoded[key] = img
}
