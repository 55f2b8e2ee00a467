// Package batch runs the render and compose pipeline over a selection of
// products, one item at a time.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/menta2k/product-compositor/internal/errors"
	"github.com/menta2k/product-compositor/internal/logger"
	"github.com/menta2k/product-compositor/pkg/bounds"
	"github.com/menta2k/product-compositor/pkg/catalog"
	"github.com/menta2k/product-compositor/pkg/compose"
	"github.com/menta2k/product-compositor/pkg/layout"
	"github.com/menta2k/product-compositor/pkg/render"
	"github.com/menta2k/product-compositor/pkg/types"
)

var errNoFetcher = errors.New("no asset fetcher configured")

// Config holds configuration for batch runs
type Config struct {
	// ItemTimeout bounds the time spent on a single item.
	ItemTimeout time.Duration
	// PrefetchConcurrency limits concurrent asset loads within one item.
	PrefetchConcurrency int
}

// DefaultConfig returns the default batch configuration
func DefaultConfig() Config {
	return Config{
		ItemTimeout:         30 * time.Second,
		PrefetchConcurrency: 4,
	}
}

// Dependencies are the collaborators a Runner works with. Nil renderer,
// compositor and handles are replaced by defaults.
type Dependencies struct {
	Renderer   *render.Renderer
	Compositor *compose.Compositor
	Fetcher    AssetFetcher
	Handles    HandleAllocator
	Remover    BackgroundRemover
}

// Runner executes batches
type Runner struct {
	config     Config
	catalog    *catalog.Catalog
	renderer   *render.Renderer
	compositor *compose.Compositor
	fetcher    AssetFetcher
	handles    HandleAllocator
	remover    BackgroundRemover
}

// New creates a runner over cat
func New(cat *catalog.Catalog, deps Dependencies, config Config) (*Runner, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if config.ItemTimeout <= 0 {
		config.ItemTimeout = DefaultConfig().ItemTimeout
	}
	if config.PrefetchConcurrency <= 0 {
		config.PrefetchConcurrency = DefaultConfig().PrefetchConcurrency
	}

	r := &Runner{
		config:     config,
		catalog:    cat,
		renderer:   deps.Renderer,
		compositor: deps.Compositor,
		fetcher:    deps.Fetcher,
		handles:    deps.Handles,
		remover:    deps.Remover,
	}
	if r.renderer == nil {
		r.renderer = render.New()
	}
	if r.compositor == nil {
		c, err := compose.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create compositor: %w", err)
		}
		r.compositor = c
	}
	if r.handles == nil {
		r.handles = NewMemoryHandles()
	}
	return r, nil
}

// Handles returns the allocator results are stored in
func (r *Runner) Handles() HandleAllocator {
	return r.handles
}

// Device holds the encoded device photos of a batch. Either may be empty.
type Device struct {
	Front []byte
	Back  []byte
}

// Request is the input of one catalog batch
type Request struct {
	Device     Device
	Selections *catalog.Selections
	SKU        string
}

// Result describes one finished item
type Result struct {
	SourceID        string    `json:"source_id"`
	ReferenceHandle string    `json:"reference_handle,omitempty"`
	CompositeHandle string    `json:"composite_handle"`
	Bounds          types.Box `json:"bounds"`
	Skipped         []string  `json:"skipped,omitempty"`
}

// Failure describes one failed item
type Failure struct {
	SourceID string              `json:"source_id"`
	Err      *apperrors.AppError `json:"error"`
}

// Report summarizes a batch
type Report struct {
	Results  []Result      `json:"results"`
	Failures []Failure     `json:"failures,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Listener receives progress events. Calls are made from the goroutine
// running the batch.
type Listener interface {
	ItemCompleted(Result)
	ItemFailed(sourceID string, err error)
	BatchCompleted(Report)
}

// NopListener ignores all events
type NopListener struct{}

func (NopListener) ItemCompleted(Result)     {}
func (NopListener) ItemFailed(string, error) {}
func (NopListener) BatchCompleted(Report)    {}

// photos are the decoded device photos of a run
type photos struct {
	front image.Image
	back  image.Image
}

func (p photos) side(s catalog.Side) image.Image {
	if s == catalog.SideBack {
		return p.back
	}
	return p.front
}

// run is the state of one Run or RunPairs call
type run struct {
	*Runner
	listener Listener
	report   Report
	acc      *bounds.Accumulator
	assets   *assetCache
	start    time.Time
}

func (r *Runner) begin(l Listener) *run {
	if l == nil {
		l = NopListener{}
	}
	r.handles.RevokeAll()
	return &run{
		Runner:   r,
		listener: l,
		acc:      bounds.NewAccumulator(),
		assets:   newAssetCache(),
		start:    time.Now(),
	}
}

func (b *run) complete(res Result) {
	b.report.Results = append(b.report.Results, res)
	b.listener.ItemCompleted(res)
}

func (b *run) fail(id string, err error) {
	appErr := classify(err).WithItem(id)
	logger.WithFields(logrus.Fields{
		"item": id,
		"type": appErr.Type,
	}).WithError(err).Warn("item failed")
	b.report.Failures = append(b.report.Failures, Failure{SourceID: id, Err: appErr})
	b.listener.ItemFailed(id, appErr)
}

// cancelRest fails ids because the batch context is done.
func (b *run) cancelRest(ctx context.Context, ids []string) {
	for _, id := range ids {
		b.fail(id, apperrors.FromContext(ctx.Err()))
	}
}

func (b *run) finish() Report {
	b.report.Duration = time.Since(b.start)
	logger.WithFields(logrus.Fields{
		"completed": len(b.report.Results),
		"failed":    len(b.report.Failures),
		"duration":  b.report.Duration.String(),
	}).Info("batch completed")
	b.listener.BatchCompleted(b.report)
	return b.report
}

// Run renders every selected product in selection order. Item failures are
// reported and never abort the batch. Handles from earlier runs are revoked.
func (r *Runner) Run(ctx context.Context, req Request, l Listener) Report {
	b := r.begin(l)

	var ids []string
	if req.Selections != nil {
		ids = req.Selections.IDs()
	}
	logger.WithFields(logrus.Fields{"items": len(ids), "sku": req.SKU}).Info("batch started")

	dev := b.decodeDevice(ctx, req.Device)

	for i, id := range ids {
		if ctx.Err() != nil {
			b.cancelRest(ctx, ids[i:])
			break
		}
		p, ok := r.catalog.Get(id)
		if !ok {
			b.fail(id, apperrors.NewValidationError("unknown product", nil))
			continue
		}

		res, err := b.item(ctx, id, func(ctx context.Context) (Result, error) {
			return b.product(ctx, p, req, dev)
		})
		if err != nil {
			b.fail(id, err)
			continue
		}
		b.complete(res)
	}
	return b.finish()
}

// item runs fn under the per-item timeout, turning a panic into a canvas
// error.
func (b *run) item(ctx context.Context, id string, fn func(context.Context) (Result, error)) (res Result, err error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.ItemTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			err = apperrors.NewCanvasError(fmt.Sprintf("drawing failed: %v", rec), nil)
		}
	}()

	started := time.Now()
	res, err = fn(ctx)
	if err == nil {
		logger.WithFields(logrus.Fields{
			"item":     id,
			"duration": time.Since(started).String(),
		}).Debug("item completed")
	}
	return res, err
}

func (b *run) decodeDevice(ctx context.Context, d Device) photos {
	var p photos
	for _, side := range []struct {
		name string
		data []byte
		dst  *image.Image
	}{
		{"front", d.Front, &p.front},
		{"back", d.Back, &p.back},
	} {
		if len(side.data) == 0 {
			continue
		}
		img, err := b.decodeSide(ctx, side.data)
		if err != nil {
			logger.WithField("side", side.name).WithError(err).Warn("failed to decode device photo, using blank panel")
			continue
		}
		*side.dst = img
	}
	return p
}

// decodeSide decodes one device photo within a single item's time budget.
func (b *run) decodeSide(ctx context.Context, data []byte) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.ItemTimeout)
	defer cancel()
	return decode(ctx, data)
}

// product renders and composes one catalog product.
func (b *run) product(ctx context.Context, p catalog.Product, req Request, dev photos) (Result, error) {
	spec := p.Spec()

	src, skipped, err := b.source(ctx, p, req.Selections, dev)
	if err != nil {
		return Result{}, err
	}
	ref := dev.side(p.Side())

	res, err := b.render(ctx, p.ID, spec, src, ref, req.SKU)
	if err != nil {
		return Result{}, err
	}
	res.Skipped = append(skipped, res.Skipped...)
	return res, nil
}

// source resolves the image drawn onto the base canvas: an uploaded
// accessory, then the catalog default part image, then the device photo for
// products that need no part image. A source that fails to decode is
// rendered as a blank panel.
func (b *run) source(ctx context.Context, p catalog.Product, sel *catalog.Selections, dev photos) (image.Image, []string, error) {
	if !p.NeedsPartImage {
		return dev.side(p.Side()), nil, nil
	}

	var data []byte
	if sel != nil {
		data, _ = sel.Accessory(p.ID)
	}
	if data == nil && p.DefaultPartImage != "" {
		if b.fetcher == nil {
			return nil, nil, apperrors.NewAssetMissingError("default part image "+p.DefaultPartImage, errNoFetcher)
		}
		fetched, err := b.fetcher.Fetch(ctx, p.DefaultPartImage)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			return nil, nil, apperrors.NewAssetMissingError("default part image "+p.DefaultPartImage, err)
		}
		data = fetched
	}
	if data == nil {
		return nil, nil, apperrors.NewAssetMissingError("part image required", nil)
	}

	img, err := decode(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		logger.WithField("item", p.ID).WithError(err).Warn("failed to decode part image, using blank panel")
		return nil, []string{"decode"}, nil
	}
	return img, nil, nil
}

// render runs the renderer and the compositor and stores both the reference
// and the composite.
func (b *run) render(ctx context.Context, id string, spec layout.Spec, src, ref image.Image, sku string) (Result, error) {
	if err := b.prefetch(ctx, b.assets, spec.Refs(), id); err != nil {
		return Result{}, err
	}

	base, err := b.renderer.RenderBase(ctx, src, spec, render.Options{
		Accumulator: b.acc,
		Assets:      b.assets,
		Item:        id,
	})
	if err != nil {
		return Result{}, err
	}

	composite, err := b.compositor.Compose(ctx, compose.Input{
		Spec:      spec,
		Base:      base.Canvas,
		Reference: ref,
		Bounds:    base.Bounds,
		SKU:       sku,
		Assets:    b.assets,
		Item:      id,
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{SourceID: id, Bounds: base.Bounds, Skipped: base.Skipped}
	if ref != nil {
		if res.ReferenceHandle, err = b.handles.Create(ref); err != nil {
			return Result{}, apperrors.NewCanvasError("failed to store reference", err)
		}
	}
	if res.CompositeHandle, err = b.handles.Create(composite); err != nil {
		if res.ReferenceHandle != "" {
			b.handles.Revoke(res.ReferenceHandle)
		}
		return Result{}, apperrors.NewCanvasError("failed to store composite", err)
	}
	return res, nil
}

// classify maps any item error onto the failure taxonomy.
func classify(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if ctxErr := apperrors.FromContext(err); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, bounds.ErrNotFound) {
		return apperrors.NewBoundsNotFoundError("no content found", err)
	}
	return apperrors.NewCanvasError("render failed", err)
}
