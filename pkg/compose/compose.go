// Package compose lays the rendered base canvas and the reference photo out
// on the final square canvas.
package compose

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/menta2k/product-compositor/internal/logger"
	"github.com/menta2k/product-compositor/pkg/bounds"
	"github.com/menta2k/product-compositor/pkg/layout"
	"github.com/menta2k/product-compositor/pkg/surface"
	"github.com/menta2k/product-compositor/pkg/types"
)

// TextConfig controls the SKU label
type TextConfig struct {
	Color   string
	MaxSize float64
	MinSize float64
	// MarginRatio is the horizontal margin kept free on each side.
	MarginRatio float64
	// TopRatio is the distance from the top edge to the top of the text.
	TopRatio float64
}

// Config holds configuration for the compositor
type Config struct {
	CanvasSize   int
	Background   string
	DividerColor string
	// WhiteThreshold is used when a side-by-side layout asks for white crop.
	WhiteThreshold uint8
	// DrawBlur is the gaussian sigma applied to every image draw.
	DrawBlur float64
	// CenterBadgeGapRatio spaces the bottom badge row, in canvas widths.
	CenterBadgeGapRatio float64
	// EdgeMarginRatio is the distance of edge badges from the canvas edge.
	EdgeMarginRatio float64
	Text            TextConfig
}

// DefaultConfig returns the default compositor configuration
func DefaultConfig() Config {
	return Config{
		CanvasSize:          800,
		Background:          "#ffffff",
		DividerColor:        "#e5e5e5",
		WhiteThreshold:      bounds.DefaultWhiteThreshold,
		DrawBlur:            0.15,
		CenterBadgeGapRatio: 0.02,
		EdgeMarginRatio:     0.03,
		Text: TextConfig{
			Color:       "#111111",
			MaxSize:     36,
			MinSize:     12,
			MarginRatio: 0.05,
			TopRatio:    0.03,
		},
	}
}

// Compositor produces final composites
type Compositor struct {
	config     Config
	background color.NRGBA
	divider    color.NRGBA
	textColor  color.NRGBA
	regular    *opentype.Font
}

// New creates a compositor with default configuration
func New() (*Compositor, error) {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a compositor with custom configuration
func NewWithConfig(config Config) (*Compositor, error) {
	if config.CanvasSize <= 0 {
		return nil, fmt.Errorf("invalid canvas size %d", config.CanvasSize)
	}
	bg, err := surface.ParseHex(config.Background)
	if err != nil {
		return nil, fmt.Errorf("background: %w", err)
	}
	divider, err := surface.ParseHex(config.DividerColor)
	if err != nil {
		return nil, fmt.Errorf("divider: %w", err)
	}
	text, err := surface.ParseHex(config.Text.Color)
	if err != nil {
		return nil, fmt.Errorf("text: %w", err)
	}
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &Compositor{
		config:     config,
		background: bg,
		divider:    divider,
		textColor:  text,
		regular:    f,
	}, nil
}

// Config returns the compositor configuration
func (c *Compositor) Config() Config {
	return c.config
}

// Input is everything one composite is built from
type Input struct {
	Spec layout.Spec
	// Base is the rendered base canvas. May be nil.
	Base image.Image
	// Reference is shown in the right column of side-by-side layouts. May be nil.
	Reference image.Image
	// Bounds are the active content bounds, normalized to Base.
	Bounds types.Box
	SKU    string
	Assets layout.Assets
	Item   string
}

// Compose builds the final canvas. The result is always CanvasSize square.
func (c *Compositor) Compose(ctx context.Context, in Input) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if in.Bounds.W <= 0 || in.Bounds.H <= 0 {
		in.Bounds = types.Full
	}

	size := c.config.CanvasSize
	j := &job{
		Compositor: c,
		ctx:        ctx,
		in:         in,
		canvas:     surface.NewFilled(size, size, c.background),
		size:       float64(size),
		log:        logger.WithFields(logrus.Fields{"item": in.Item, "component": "compose"}),
	}

	var err error
	switch l := in.Spec.Layout; l.Kind {
	case layout.KindSideBySide:
		err = j.sideBySide(l.SideBySide.WithDefaults())
	case layout.KindSingleCentered:
		err = j.singleCentered(l.SingleCentered.WithDefaults())
	default:
		err = fmt.Errorf("unknown layout kind %q", l.Kind)
	}
	if err != nil {
		return nil, err
	}

	if in.SKU != "" {
		if err := j.drawSKU(in.SKU); err != nil {
			j.log.WithError(err).Warn("failed to draw SKU label")
		}
	}
	return j.canvas.Image(), nil
}

// job holds the state of one Compose call
type job struct {
	*Compositor
	ctx    context.Context
	in     Input
	canvas *surface.Canvas
	size   float64
	log    *logrus.Entry
}

func (j *job) draw(img image.Image, sr image.Rectangle, dst types.Rect) {
	j.canvas.DrawScaled(img, sr, dst, surface.HighQuality(j.config.DrawBlur))
}

// subject returns the part of the base canvas inside the active bounds.
func (j *job) subject() (image.Rectangle, bool) {
	base := j.in.Base
	if base == nil || base.Bounds().Empty() {
		return image.Rectangle{}, false
	}
	bb := base.Bounds()
	b := bounds.Denormalize(j.in.Bounds, bb.Dx(), bb.Dy())
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height).Add(bb.Min), true
}

// trim narrows img to its own content bounds, falling back to the full image.
func (j *job) trim(img image.Image, opts bounds.Options) (image.Rectangle, error) {
	ib := img.Bounds()
	b, err := bounds.DetectContext(j.ctx, img, opts)
	if errors.Is(err, bounds.ErrNotFound) {
		return ib, nil
	}
	if err != nil {
		return image.Rectangle{}, err
	}
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height).Add(ib.Min), nil
}

func (j *job) asset(ref string) (image.Image, bool) {
	if j.in.Assets == nil || ref == "" {
		j.log.WithField("asset", ref).Warn("badge asset missing")
		return nil, false
	}
	img, ok := j.in.Assets.Image(ref)
	if !ok || img == nil || img.Bounds().Empty() {
		j.log.WithField("asset", ref).Warn("badge asset missing")
		return nil, false
	}
	return img, true
}

// badgeRect sizes a badge image to widthRatio of the canvas width, centered
// vertically on yRatio.
func (j *job) badgeRect(img image.Image, widthRatio, yRatio float64) types.Rect {
	ib := img.Bounds()
	w := widthRatio * j.size
	h := w * float64(ib.Dy()) / float64(ib.Dx())
	return types.Rect{X: 0, Y: yRatio*j.size - h/2, W: w, H: h}
}

// scaleToHeight returns the size of sr scaled to height h.
func scaleToHeight(sr image.Rectangle, h float64) (float64, float64) {
	return h * float64(sr.Dx()) / float64(sr.Dy()), h
}

// scaleToWidth returns the size of sr scaled to width w.
func scaleToWidth(sr image.Rectangle, w float64) (float64, float64) {
	return w, w * float64(sr.Dy()) / float64(sr.Dx())
}
