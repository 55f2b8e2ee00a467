// Package render draws a product photo onto the square base canvas, repairs
// its cutout alpha, works out the content bounds shared across a batch and
// applies the product's overlay effect.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/product-compositor/internal/logger"
	"github.com/menta2k/product-compositor/pkg/bounds"
	"github.com/menta2k/product-compositor/pkg/layout"
	"github.com/menta2k/product-compositor/pkg/refine"
	"github.com/menta2k/product-compositor/pkg/surface"
	"github.com/menta2k/product-compositor/pkg/types"
)

// Config holds configuration for the base renderer
type Config struct {
	CanvasSize int
	// SourceBlur is the gaussian sigma applied while drawing the source.
	SourceBlur float64
	// OverlayBlur is used for decal and icon draws.
	OverlayBlur float64
	Refine      refine.Options
	Detect      bounds.Options
}

// DefaultConfig returns the default renderer configuration
func DefaultConfig() Config {
	return Config{
		CanvasSize:  800,
		SourceBlur:  0.2,
		OverlayBlur: 0.15,
		Refine:      refine.DefaultOptions(),
		Detect:      bounds.AlphaOptions(),
	}
}

// Renderer produces base canvases
type Renderer struct {
	config Config
}

// New creates a renderer with default configuration
func New() *Renderer {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a renderer with custom configuration
func NewWithConfig(config Config) *Renderer {
	if config.CanvasSize <= 0 {
		config.CanvasSize = DefaultConfig().CanvasSize
	}
	return &Renderer{config: config}
}

// Config returns the renderer configuration
func (r *Renderer) Config() Config {
	return r.config
}

// Options carries the per-call inputs of RenderBase
type Options struct {
	// Accumulator receives the bounds of non-accessory renders. May be nil.
	Accumulator *bounds.Accumulator
	// Bounds, when set, is used as the active bounds as is.
	Bounds *types.Box
	Assets layout.Assets
	// Item labels log entries.
	Item string
}

// Result is a finished base canvas
type Result struct {
	Canvas *image.NRGBA
	// Bounds are the active content bounds, normalized to the canvas.
	Bounds types.Box
	// Drawn is the canvas rectangle the source was drawn into.
	Drawn image.Rectangle
	// Published reports whether Bounds came from the batch accumulator.
	Published bool
	// Skipped lists the overlay steps that were left out.
	Skipped []string
}

// RenderBase draws src onto a transparent canvas and applies spec's overlay.
// A nil source yields a blank canvas whose bounds cover the whole canvas.
func (r *Renderer) RenderBase(ctx context.Context, src image.Image, spec layout.Spec, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	size := r.config.CanvasSize
	canvas := surface.New(size, size)
	log := logger.WithFields(logrus.Fields{"item": opts.Item, "component": "render"})

	if src == nil || src.Bounds().Empty() {
		log.Debug("no source image, rendering blank canvas")
		return Result{Canvas: canvas.Image(), Bounds: types.Full}, nil
	}

	frame := types.Rect{W: float64(size), H: float64(size)}
	sb := src.Bounds()
	dst := surface.FitRect(float64(sb.Dx()), float64(sb.Dy()), frame, surface.Contain)
	canvas.DrawScaled(src, sb, dst, surface.HighQuality(r.config.SourceBlur))

	drawn := surface.Outer(dst).Intersect(canvas.Bounds())
	region := canvas.ReadPixels(drawn)
	refine.Refine(region, region.Bounds(), r.config.Refine)
	canvas.WritePixels(region, drawn.Min)

	res := Result{Canvas: canvas.Image(), Drawn: drawn}

	active, published, err := r.activeBounds(ctx, canvas.Image(), drawn, spec, opts, log)
	if err != nil {
		return Result{}, err
	}
	res.Bounds = active
	res.Published = published

	if spec.Overlay != nil {
		res.Skipped = r.drawOverlay(canvas, *spec.Overlay, active, opts.Assets, log)
	}

	return res, nil
}

func (r *Renderer) activeBounds(ctx context.Context, img *image.NRGBA, drawn image.Rectangle, spec layout.Spec, opts Options, log *logrus.Entry) (types.Box, bool, error) {
	size := r.config.CanvasSize
	if opts.Bounds != nil {
		return *opts.Bounds, false, nil
	}

	detected, err := bounds.DetectContext(ctx, img, r.config.Detect)
	switch {
	case errors.Is(err, bounds.ErrNotFound):
		log.Debug("no content detected, using drawn rectangle")
		detected = types.Bounds{X: drawn.Min.X, Y: drawn.Min.Y, Width: drawn.Dx(), Height: drawn.Dy()}
	case err != nil:
		return types.Box{}, false, fmt.Errorf("failed to detect bounds: %w", err)
	}
	own := bounds.Normalize(detected, size, size)

	if spec.Accessory || opts.Accumulator == nil {
		return own, false, nil
	}
	return opts.Accumulator.Add(own), true, nil
}

// drawOverlay paints the overlay inside its area and returns the names of
// the steps it had to skip.
func (r *Renderer) drawOverlay(canvas *surface.Canvas, o layout.Overlay, active types.Box, assets layout.Assets, log *logrus.Entry) []string {
	var skipped []string
	skip := func(step, reason string) {
		skipped = append(skipped, step)
		log.WithField("step", step).Warn(reason)
	}

	size := float64(r.config.CanvasSize)
	activeRect := bounds.DenormalizeRect(active, size, size)
	area := surface.ToAbsolute(o.Area, activeRect)
	if area.W <= 0 || area.H <= 0 {
		skip("overlay", "overlay area is empty")
		return skipped
	}

	canvas.Save()
	defer canvas.Restore()
	canvas.ClipRect(area)

	if o.Icon != nil {
		icon, ok := lookup(assets, o.Icon.Image)
		if !ok {
			skip("icon", fmt.Sprintf("overlay asset %q missing", o.Icon.Image))
			return skipped
		}
		ib := icon.Bounds()
		w := area.W * o.Icon.Width()
		h := w * float64(ib.Dy()) / float64(ib.Dx())
		dst := types.Rect{X: area.CenterX() - w/2, Y: area.CenterY() - h/2, W: w, H: h}
		canvas.DrawScaled(icon, ib, dst, surface.HighQuality(r.config.OverlayBlur))
		return skipped
	}

	if o.FillColor != "" {
		c, err := surface.ParseHex(o.FillColor)
		if err != nil {
			skip("fill", err.Error())
		} else {
			canvas.Fill(area, c)
		}
	}

	if o.Decals == nil || len(o.Decals.Points) == 0 {
		return skipped
	}
	decal, ok := lookup(assets, o.Decals.Image)
	if !ok {
		skip("decals", fmt.Sprintf("overlay asset %q missing", o.Decals.Image))
		return skipped
	}
	db := decal.Bounds()
	for _, p := range o.Decals.Points {
		w := p.Size * area.W
		h := w * float64(db.Dy()) / float64(db.Dx())
		cx := area.X + p.X*area.W
		cy := area.Y + p.Y*area.H

		canvas.Save()
		canvas.ClipCircle(cx, cy, min(w, h)/2)
		canvas.DrawScaled(decal, db, types.Rect{X: cx - w/2, Y: cy - h/2, W: w, H: h}, surface.HighQuality(r.config.OverlayBlur))
		canvas.Restore()
	}
	return skipped
}

func lookup(assets layout.Assets, ref string) (image.Image, bool) {
	if assets == nil || ref == "" {
		return nil, false
	}
	img, ok := assets.Image(ref)
	if !ok || img == nil || img.Bounds().Empty() {
		return nil, false
	}
	return img, true
}
