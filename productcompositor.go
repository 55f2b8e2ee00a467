// Package productcompositor builds square catalog images for repair and
// accessory products from device photos and product cutouts.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//		"os"
//
//		productcompositor "github.com/menta2k/product-compositor"
//		"github.com/menta2k/product-compositor/pkg/batch"
//		"github.com/menta2k/product-compositor/pkg/catalog"
//	)
//
//	func main() {
//		cat, err := catalog.Load("configs/catalog.yaml")
//		if err != nil {
//			log.Fatal(err)
//		}
//		engine, err := productcompositor.New(cat)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		front, _ := os.ReadFile("front.png")
//		report := engine.Run(context.Background(), batch.Request{
//			Device:     batch.Device{Front: front},
//			Selections: catalog.NewSelections("screen-replacement"),
//			SKU:        "XM15U-SCR",
//		}, nil)
//
//		for _, res := range report.Results {
//			if err := engine.Save(res.CompositeHandle, res.SourceID+".png"); err != nil {
//				log.Fatal(err)
//			}
//		}
//	}
//
// The pipeline consists of:
//
// 1. Bounds (pkg/bounds): content bounds detection and batch-wide merging
// 2. Render (pkg/render): base canvas, alpha refinement and overlays
// 3. Compose (pkg/compose): side-by-side and single-centered layouts
// 4. Batch (pkg/batch): sequential per-item orchestration
//
// Products and their layouts are declared in a YAML catalog (pkg/catalog).
package productcompositor

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/product-compositor/internal/config"
	"github.com/menta2k/product-compositor/pkg/batch"
	"github.com/menta2k/product-compositor/pkg/bounds"
	"github.com/menta2k/product-compositor/pkg/catalog"
	"github.com/menta2k/product-compositor/pkg/compose"
	"github.com/menta2k/product-compositor/pkg/layout"
	"github.com/menta2k/product-compositor/pkg/processing"
	"github.com/menta2k/product-compositor/pkg/render"
	"github.com/menta2k/product-compositor/pkg/types"
)

// Version of the product compositor library
const Version = "1.0.0"

// Engine provides a high-level interface over the composite pipeline
type Engine struct {
	config     *config.Config
	catalog    *catalog.Catalog
	processor  *processing.Processor
	renderer   *render.Renderer
	compositor *compose.Compositor
	handles    *batch.MemoryHandles
	runner     *batch.Runner
}

// New creates an engine over cat with default configuration
func New(cat *catalog.Catalog) (*Engine, error) {
	return NewWithConfig(config.Default(), cat, nil)
}

// NewWithConfig creates an engine with custom configuration. A nil remover
// falls back to the configured cutout server; without one, cutout requests
// keep the original photos.
func NewWithConfig(cfg *config.Config, cat *catalog.Catalog, remover batch.BackgroundRemover) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if remover == nil {
		if c := cfg.CutoutClient(); c != nil {
			remover = c
		}
	}

	compositor, err := compose.NewWithConfig(cfg.ComposeConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create compositor: %w", err)
	}

	e := &Engine{
		config:     cfg,
		catalog:    cat,
		processor:  processing.NewProcessorWithConfig(cfg.ProcessorConfig()),
		renderer:   render.NewWithConfig(cfg.RenderConfig()),
		compositor: compositor,
		handles:    batch.NewMemoryHandles(),
	}

	e.runner, err = batch.New(cat, batch.Dependencies{
		Renderer:   e.renderer,
		Compositor: e.compositor,
		Fetcher:    e.processor,
		Handles:    e.handles,
		Remover:    remover,
	}, cfg.BatchConfig())
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Load creates an engine from a JSON config file and the catalog it names
func Load(configPath string) (*Engine, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(cfg.Batch.CatalogPath)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, cat, nil)
}

// Config returns the engine configuration
func (e *Engine) Config() *config.Config {
	return e.config
}

// Catalog returns the product catalog
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Processor returns the image processor used for assets and output
func (e *Engine) Processor() *processing.Processor {
	return e.processor
}

// Run renders a catalog batch. Handles of the previous batch are revoked.
func (e *Engine) Run(ctx context.Context, req batch.Request, l batch.Listener) batch.Report {
	return e.runner.Run(ctx, req, l)
}

// RunPairs renders a free pairing batch.
func (e *Engine) RunPairs(ctx context.Context, pairs []batch.Pair, params batch.PairParams, l batch.Listener) batch.Report {
	return e.runner.RunPairs(ctx, pairs, params, l)
}

// Bytes returns the PNG data behind a result handle
func (e *Engine) Bytes(handle string) ([]byte, bool) {
	return e.handles.Get(handle)
}

// Image decodes the image behind a result handle
func (e *Engine) Image(handle string) (image.Image, error) {
	data, ok := e.handles.Get(handle)
	if !ok {
		return nil, fmt.Errorf("unknown or revoked handle %q", handle)
	}
	return processing.DecodeBytes(data)
}

// Save writes the image behind handle to path in the configured output format
func (e *Engine) Save(handle, path string) error {
	img, err := e.Image(handle)
	if err != nil {
		return err
	}
	out := e.config.Output
	return e.processor.SaveImage(img, path, out.DefaultFormat, out.Quality, out.Lossless)
}

// ComposeProduct renders a single product outside of a batch. Its bounds are
// not shared with any other item.
func (e *Engine) ComposeProduct(ctx context.Context, id string, src, reference image.Image, sku string) (*image.NRGBA, error) {
	p, ok := e.catalog.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown product %q", id)
	}
	spec := p.Spec()

	assets := make(layout.AssetMap)
	for _, ref := range spec.Refs() {
		if img, err := e.processor.FetchImage(ctx, ref); err == nil {
			assets[ref] = img
		}
	}

	base, err := e.renderer.RenderBase(ctx, src, spec, render.Options{
		Accumulator: bounds.NewAccumulator(),
		Assets:      assets,
		Item:        id,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render base: %w", err)
	}

	return e.compositor.Compose(ctx, compose.Input{
		Spec:      spec,
		Base:      base.Canvas,
		Reference: reference,
		Bounds:    base.Bounds,
		SKU:       sku,
		Assets:    assets,
		Item:      id,
	})
}

// DebugBase renders the base canvas of a product without its overlay and
// returns it together with a copy outlining the content bounds and the
// overlay area.
func (e *Engine) DebugBase(ctx context.Context, id string, src image.Image) (render.Result, image.Image, error) {
	p, ok := e.catalog.Get(id)
	if !ok {
		return render.Result{}, nil, fmt.Errorf("unknown product %q", id)
	}
	spec := p.Spec()
	spec.Overlay = nil

	res, err := e.renderer.RenderBase(ctx, src, spec, render.Options{Item: id})
	if err != nil {
		return render.Result{}, nil, err
	}

	var area types.Box
	if o := p.Overlay; o != nil {
		b := res.Bounds
		area = types.Box{
			X: b.X + o.Area.X*b.W,
			Y: b.Y + o.Area.Y*b.H,
			W: o.Area.W * b.W,
			H: o.Area.H * b.H,
		}
	}
	return res, e.processor.CreateDebugOverlay(res.Canvas, res.Bounds, area), nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
