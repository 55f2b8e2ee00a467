// Package surface provides the small raster drawing interface the compositing
// steps are written against, and a software implementation over *image.NRGBA.
package surface

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/menta2k/product-compositor/pkg/types"
)

// Surface is an addressable RGBA raster that supports scaled drawing with
// clipping.
type Surface interface {
	Bounds() image.Rectangle
	// DrawScaled draws the sr part of src into dst, honouring the current clip.
	DrawScaled(src image.Image, sr image.Rectangle, dst types.Rect, opts DrawOptions)
	// ReadPixels returns a copy of r, with its origin at (0,0).
	ReadPixels(r image.Rectangle) *image.NRGBA
	// WritePixels replaces the pixels at the given point with src.
	WritePixels(src *image.NRGBA, at image.Point)
	// ClipRect narrows the clip region to r.
	ClipRect(r types.Rect)
	// ClipCircle narrows the clip region to a circle.
	ClipCircle(cx, cy, radius float64)
	// Fill paints r with c inside the current clip.
	Fill(r types.Rect, c color.Color)
	// Save pushes the clip state; Restore pops it.
	Save()
	Restore()
}

// DrawOptions controls resampling quality
type DrawOptions struct {
	// Smooth selects Catmull-Rom resampling instead of nearest neighbour.
	Smooth bool
	// Blur is a gaussian sigma in destination pixels applied to the drawn layer.
	Blur float64
}

// HighQuality is the draw setting used for every composite draw.
func HighQuality(blur float64) DrawOptions {
	return DrawOptions{Smooth: true, Blur: blur}
}

// Canvas is a Surface backed by an *image.NRGBA.
type Canvas struct {
	img   *image.NRGBA
	clips []image.Image
	saved []int
}

var _ Surface = (*Canvas)(nil)

// New creates a transparent canvas
func New(width, height int) *Canvas {
	return &Canvas{img: image.NewNRGBA(image.Rect(0, 0, width, height))}
}

// NewFilled creates a canvas filled with c
func NewFilled(width, height int, c color.Color) *Canvas {
	return &Canvas{img: imaging.New(width, height, c)}
}

// Wrap adopts img as the canvas backing store.
func Wrap(img *image.NRGBA) *Canvas {
	return &Canvas{img: img}
}

// Image returns the backing image.
func (c *Canvas) Image() *image.NRGBA {
	return c.img
}

// Bounds returns the canvas bounds
func (c *Canvas) Bounds() image.Rectangle {
	return c.img.Bounds()
}

// DrawScaled draws sr of src scaled into dst. The layer is resampled into a
// scratch buffer covering dst plus the blur margin, optionally blurred, and
// then composited over the canvas through the clip mask.
func (c *Canvas) DrawScaled(src image.Image, sr image.Rectangle, dst types.Rect, opts DrawOptions) {
	if src == nil || dst.W <= 0 || dst.H <= 0 {
		return
	}
	sr = sr.Intersect(src.Bounds())
	if sr.Empty() {
		return
	}

	margin := int(math.Ceil(3*opts.Blur)) + 1
	area := Outer(dst).Inset(-margin).Intersect(c.img.Bounds())
	if area.Empty() {
		return
	}

	scratch := image.NewNRGBA(image.Rect(0, 0, area.Dx(), area.Dy()))
	sx := dst.W / float64(sr.Dx())
	sy := dst.H / float64(sr.Dy())
	m := f64.Aff3{
		sx, 0, dst.X - float64(area.Min.X) - sx*float64(sr.Min.X),
		0, sy, dst.Y - float64(area.Min.Y) - sy*float64(sr.Min.Y),
	}

	var interp xdraw.Transformer = xdraw.NearestNeighbor
	if opts.Smooth {
		interp = xdraw.CatmullRom
	}
	interp.Transform(scratch, m, src, sr, xdraw.Src, nil)

	var layer image.Image = scratch
	if opts.Blur > 0 {
		layer = imaging.Blur(scratch, opts.Blur)
	}

	xdraw.DrawMask(c.img, area, layer, image.Point{}, c.mask(), area.Min, xdraw.Over)
}

// ReadPixels returns a copy of r
func (c *Canvas) ReadPixels(r image.Rectangle) *image.NRGBA {
	return imaging.Crop(c.img, r)
}

// WritePixels copies src onto the canvas at the given point, replacing the
// existing pixels. The clip is not applied.
func (c *Canvas) WritePixels(src *image.NRGBA, at image.Point) {
	r := image.Rectangle{Min: at, Max: at.Add(src.Bounds().Size())}
	xdraw.Draw(c.img, r, src, src.Bounds().Min, xdraw.Src)
}

// ClipRect narrows the clip to r, rounded to whole pixels
func (c *Canvas) ClipRect(r types.Rect) {
	c.clips = append(c.clips, Round(r))
}

// ClipCircle narrows the clip to the circle centred at (cx, cy)
func (c *Canvas) ClipCircle(cx, cy, radius float64) {
	c.clips = append(c.clips, &circle{cx: cx, cy: cy, r: radius})
}

// Fill paints r with col inside the current clip
func (c *Canvas) Fill(r types.Rect, col color.Color) {
	dr := Round(r).Intersect(c.img.Bounds())
	if dr.Empty() {
		return
	}
	xdraw.DrawMask(c.img, dr, image.NewUniform(col), image.Point{}, c.mask(), dr.Min, xdraw.Over)
}

// Save records the clip state
func (c *Canvas) Save() {
	c.saved = append(c.saved, len(c.clips))
}

// Restore returns to the last saved clip state
func (c *Canvas) Restore() {
	if len(c.saved) == 0 {
		c.clips = c.clips[:0]
		return
	}
	n := c.saved[len(c.saved)-1]
	c.saved = c.saved[:len(c.saved)-1]
	c.clips = c.clips[:n]
}

func (c *Canvas) mask() image.Image {
	switch len(c.clips) {
	case 0:
		return nil
	case 1:
		return c.clips[0]
	default:
		return intersection(c.clips)
	}
}

// Outer returns the smallest pixel rectangle covering r.
func Outer(r types.Rect) image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)), int(math.Floor(r.Y)),
		int(math.Ceil(r.Right())), int(math.Ceil(r.Bottom())),
	)
}

// Round returns r with every edge rounded to the nearest pixel.
func Round(r types.Rect) image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)), int(math.Round(r.Y)),
		int(math.Round(r.Right())), int(math.Round(r.Bottom())),
	)
}

type circle struct {
	cx, cy, r float64
}

func (c *circle) ColorModel() color.Model { return color.AlphaModel }

func (c *circle) Bounds() image.Rectangle {
	return Outer(types.Rect{X: c.cx - c.r, Y: c.cy - c.r, W: 2 * c.r, H: 2 * c.r})
}

func (c *circle) At(x, y int) color.Color {
	dx := float64(x) + 0.5 - c.cx
	dy := float64(y) + 0.5 - c.cy
	if dx*dx+dy*dy <= c.r*c.r {
		return color.Alpha{A: 255}
	}
	return color.Alpha{}
}

// intersection is a mask that is opaque where all of its masks are.
type intersection []image.Image

func (m intersection) ColorModel() color.Model { return color.AlphaModel }

func (m intersection) Bounds() image.Rectangle {
	b := m[0].Bounds()
	for _, mm := range m[1:] {
		b = b.Intersect(mm.Bounds())
	}
	return b
}

func (m intersection) At(x, y int) color.Color {
	var a uint32 = 0xffff
	for _, mm := range m {
		_, _, _, ma := mm.At(x, y).RGBA()
		if ma < a {
			a = ma
		}
	}
	return color.Alpha16{A: uint16(a)}
}
