// Package bounds finds the tight rectangle of meaningful pixels in an image
// and converts such rectangles between pixel and normalized coordinates.
package bounds

import (
	"context"
	"errors"
	"image"
	"image/color"

	"github.com/menta2k/product-compositor/pkg/types"
)

// ErrNotFound is returned when no pixel qualifies as content.
var ErrNotFound = errors.New("bounds: no content pixels found")

// Mode selects how a pixel is classified as content.
type Mode int

const (
	// ModeAlpha counts pixels whose alpha exceeds the threshold.
	ModeAlpha Mode = iota
	// ModeWhiteBackground counts pixels that are neither white nor fully transparent.
	ModeWhiteBackground
)

func (m Mode) String() string {
	switch m {
	case ModeAlpha:
		return "alpha"
	case ModeWhiteBackground:
		return "white-background"
	default:
		return "unknown"
	}
}

const (
	// DefaultAlphaThreshold suits general cutouts.
	DefaultAlphaThreshold uint8 = 10
	// BezelAlphaThreshold isolates an opaque bezel from translucent glass haze.
	BezelAlphaThreshold uint8 = 160
	// DefaultWhiteThreshold is the channel value from which a pixel reads as white.
	// Useful values are 240-248.
	DefaultWhiteThreshold uint8 = 248
)

// rows scanned between context checks
const cancelCheckRows = 64

// Options holds configuration for a detection pass
type Options struct {
	Mode      Mode
	Threshold uint8
	// Padding grows (positive) or shrinks (negative) the result per side.
	Padding int
}

// AlphaOptions returns the defaults used on background-removed cutouts.
func AlphaOptions() Options {
	return Options{Mode: ModeAlpha, Threshold: DefaultAlphaThreshold}
}

// WhiteOptions returns the defaults used on plain photos shot on white.
func WhiteOptions(padding int) Options {
	return Options{Mode: ModeWhiteBackground, Threshold: DefaultWhiteThreshold, Padding: padding}
}

// Detect returns the content bounds of img.
func Detect(img image.Image, opts Options) (types.Bounds, error) {
	return DetectContext(context.Background(), img, opts)
}

// DetectContext is Detect with cancellation checked while scanning.
func DetectContext(ctx context.Context, img image.Image, opts Options) (types.Bounds, error) {
	if img == nil {
		return types.Bounds{}, ErrNotFound
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width <= 0 || height <= 0 || width*height <= 1 {
		return types.Bounds{}, ErrNotFound
	}

	isContent := classifier(opts)
	pixel := pixelReader(img)

	minX, minY := width, height
	maxX, maxY := -1, -1

	for y := 0; y < height; y++ {
		if y%cancelCheckRows == 0 {
			if err := ctx.Err(); err != nil {
				return types.Bounds{}, err
			}
		}
		for x := 0; x < width; x++ {
			if !isContent(pixel(x+b.Min.X, y+b.Min.Y)) {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < 0 {
		return types.Bounds{}, ErrNotFound
	}

	x0, x1 := pad(minX, maxX+1, opts.Padding, width)
	y0, y1 := pad(minY, maxY+1, opts.Padding, height)

	return types.Bounds{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, nil
}

func classifier(opts Options) func(color.NRGBA) bool {
	t := opts.Threshold
	if opts.Mode == ModeWhiteBackground {
		return func(c color.NRGBA) bool {
			if c.A == 0 {
				return false
			}
			return !(c.R >= t && c.G >= t && c.B >= t)
		}
	}
	return func(c color.NRGBA) bool {
		return c.A > t
	}
}

// pixelReader returns a non-premultiplied accessor, with a fast path for
// the concrete types produced by the decoders and the canvas.
func pixelReader(img image.Image) func(x, y int) color.NRGBA {
	switch m := img.(type) {
	case *image.NRGBA:
		return func(x, y int) color.NRGBA {
			i := m.PixOffset(x, y)
			s := m.Pix[i : i+4 : i+4]
			return color.NRGBA{R: s[0], G: s[1], B: s[2], A: s[3]}
		}
	case *image.RGBA:
		return func(x, y int) color.NRGBA {
			i := m.PixOffset(x, y)
			s := m.Pix[i : i+4 : i+4]
			return color.NRGBAModel.Convert(color.RGBA{R: s[0], G: s[1], B: s[2], A: s[3]}).(color.NRGBA)
		}
	default:
		return func(x, y int) color.NRGBA {
			return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
		}
	}
}

// pad applies signed padding to the half-open span [lo, hi) within [0, limit).
func pad(lo, hi, padding, limit int) (int, int) {
	a, b := lo-padding, hi+padding
	if a < 0 {
		a = 0
	}
	if b > limit {
		b = limit
	}
	if b <= a {
		// shrunk past empty: keep one pixel at the original center
		c := (lo + hi - 1) / 2
		return c, c + 1
	}
	return a, b
}
