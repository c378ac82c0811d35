package decoder

import (
	"context"
	"image"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Engine decodes a single RGBA frame.
type Engine interface {
	Decode(frame *image.RGBA) (string, bool)
}

// Loader produces the software engine. It runs at most once per successful load.
type Loader func(ctx context.Context) (Engine, error)

// EngineCache memoizes the software engine for the life of the process.
// Failed loads are not cached.
type EngineCache struct {
	load Loader

	mu     sync.Mutex
	engine Engine
	loads  int
}

// NewEngineCache wraps load.
func NewEngineCache(load Loader) *EngineCache {
	return &EngineCache{load: load}
}

var (
	defaultCacheOnce sync.Once
	defaultCache     *EngineCache
)

// DefaultEngineCache returns the process-wide cache backed by the gozxing engine.
func DefaultEngineCache() *EngineCache {
	defaultCacheOnce.Do(func() {
		defaultCache = NewEngineCache(LoadGozxing)
	})
	return defaultCache
}

// Get returns the cached engine, loading it on first use. Concurrent callers
// wait for a single load.
func (c *EngineCache) Get(ctx context.Context) (Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine != nil {
		return c.engine, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	c.loads++
	engine, err := c.load(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	if engine == nil {
		return nil, ErrDecoderUnavailable
	}
	c.engine = engine
	return engine, nil
}

// Loads reports how many load attempts the cache has made.
func (c *EngineCache) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

// Loaded reports whether an engine is cached.
func (c *EngineCache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine != nil
}

type gozxingEngine struct {
	mu      sync.Mutex
	readers []gozxing.Reader
	hints   map[gozxing.DecodeHintType]interface{}
}

// LoadGozxing builds the software engine from the gozxing 1D and QR readers.
func LoadGozxing(context.Context) (Engine, error) {
	return &gozxingEngine{
		readers: []gozxing.Reader{
			oned.NewEAN13Reader(),
			oned.NewEAN8Reader(),
			oned.NewUPCAReader(),
			oned.NewUPCEReader(),
			oned.NewCode128Reader(),
			oned.NewCode39Reader(),
			qrcode.NewQRCodeReader(),
		},
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
			gozxing.DecodeHintType_POSSIBLE_FORMATS: []gozxing.BarcodeFormat{
				gozxing.BarcodeFormat_EAN_13,
				gozxing.BarcodeFormat_EAN_8,
				gozxing.BarcodeFormat_UPC_A,
				gozxing.BarcodeFormat_UPC_E,
				gozxing.BarcodeFormat_CODE_128,
				gozxing.BarcodeFormat_CODE_39,
				gozxing.BarcodeFormat_QR_CODE,
			},
		},
	}, nil
}

// Decode tries each reader in turn and returns the first result.
func (e *gozxingEngine) Decode(frame *image.RGBA) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.readers {
		res, err := r.Decode(bmp, e.hints)
		if err == nil && res != nil && res.GetText() != "" {
			return res.GetText(), true
		}
	}
	return "", false
}
