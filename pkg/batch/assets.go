package batch

import (
	"context"
	"image"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/product-compositor/internal/logger"
	"github.com/menta2k/product-compositor/pkg/processing"
)

// AssetFetcher returns the raw bytes behind an asset reference.
type AssetFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// BackgroundRemover cuts the subject out of a photo.
type BackgroundRemover interface {
	Remove(ctx context.Context, data []byte) ([]byte, error)
}

// assetCache holds decoded assets for the duration of one run. Failed
// lookups are remembered so a missing asset is fetched only once.
type assetCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

func newAssetCache() *assetCache {
	return &assetCache{images: make(map[string]image.Image)}
}

// Image implements layout.Assets.
func (c *assetCache) Image(ref string) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[ref]
	return img, ok && img != nil
}

func (c *assetCache) has(ref string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.images[ref]
	return ok
}

func (c *assetCache) put(ref string, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[ref] = img
}

// prefetch loads refs into cache concurrently. Assets that cannot be loaded
// are logged and left missing; only a done context fails the prefetch.
func (r *Runner) prefetch(ctx context.Context, cache *assetCache, refs []string, item string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.PrefetchConcurrency)

	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if ref == "" || seen[ref] || cache.has(ref) {
			continue
		}
		seen[ref] = true

		g.Go(func() error {
			img, err := r.loadAsset(gctx, ref)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.WithFields(logrus.Fields{
					"item":  item,
					"asset": ref,
				}).WithError(err).Warn("failed to load asset")
			}
			cache.put(ref, img)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) loadAsset(ctx context.Context, ref string) (image.Image, error) {
	if r.fetcher == nil {
		return nil, errNoFetcher
	}
	data, err := r.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return decode(ctx, data)
}

var decodeBytes = processing.DecodeBytes

// decode decodes data off the calling goroutine so that a done context
// returns immediately.
func decode(ctx context.Context, data []byte) (image.Image, error) {
	type decoded struct {
		img image.Image
		err error
	}
	ch := make(chan decoded, 1)
	fn := decodeBytes
	go func() {
		img, err := fn(data)
		ch <- decoded{img, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case d := <-ch:
		return d.img, d.err
	}
}
