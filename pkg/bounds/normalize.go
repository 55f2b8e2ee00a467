package bounds

import (
	"math"

	"github.com/menta2k/product-compositor/pkg/types"
)

// Normalize expresses pixel bounds as fractions of a width x height image.
func Normalize(b types.Bounds, width, height int) types.Box {
	if width <= 0 || height <= 0 {
		return types.Full
	}
	fw, fh := float64(width), float64(height)
	return clampBox(types.Box{
		X: float64(b.X) / fw,
		Y: float64(b.Y) / fh,
		W: float64(b.Width) / fw,
		H: float64(b.Height) / fh,
	})
}

// Denormalize maps a normalized box onto a width x height image, rounding to
// whole pixels. The image may differ in size from the one the box came from.
func Denormalize(box types.Box, width, height int) types.Bounds {
	if width <= 0 || height <= 0 {
		return types.Bounds{}
	}
	r := DenormalizeRect(box, float64(width), float64(height))
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	x1 := int(math.Round(r.Right()))
	y1 := int(math.Round(r.Bottom()))
	x0, x1 = clampSpan(x0, x1, width)
	y0, y1 = clampSpan(y0, y1, height)
	return types.Bounds{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// DenormalizeRect is Denormalize without rounding.
func DenormalizeRect(box types.Box, width, height float64) types.Rect {
	box = clampBox(box)
	return types.Rect{
		X: box.X * width,
		Y: box.Y * height,
		W: box.W * width,
		H: box.H * height,
	}
}

// Merge returns the smallest box enclosing both a and b.
func Merge(a, b types.Box) types.Box {
	x0 := math.Min(a.X, b.X)
	y0 := math.Min(a.Y, b.Y)
	x1 := math.Max(a.Right(), b.Right())
	y1 := math.Max(a.Bottom(), b.Bottom())
	return clampBox(types.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0})
}

// Accumulator holds the running union of the boxes published during one
// batch. It only ever widens; Reset starts a new batch.
type Accumulator struct {
	box types.Box
	ok  bool
}

// NewAccumulator returns an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Reset discards the accumulated box.
func (a *Accumulator) Reset() {
	a.box = types.Box{}
	a.ok = false
}

// Add merges box into the running union and returns the union.
func (a *Accumulator) Add(box types.Box) types.Box {
	if !a.ok {
		a.box = clampBox(box)
		a.ok = true
		return a.box
	}
	a.box = Merge(a.box, box)
	return a.box
}

// Current returns the running union, if anything was published yet.
func (a *Accumulator) Current() (types.Box, bool) {
	return a.box, a.ok
}

func clampBox(b types.Box) types.Box {
	x0 := clamp(b.X, 0, 1)
	y0 := clamp(b.Y, 0, 1)
	x1 := clamp(b.X+b.W, x0, 1)
	y1 := clamp(b.Y+b.H, y0, 1)
	return types.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func clampSpan(lo, hi, limit int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > limit {
		hi = limit
	}
	if hi <= lo {
		if lo >= limit {
			lo = limit - 1
		}
		hi = lo + 1
	}
	return lo, hi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
