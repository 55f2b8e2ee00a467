package surface

import (
	"math"

	"github.com/menta2k/product-compositor/pkg/types"
)

// Fit selects how FitRect scales content into a frame.
type Fit int

const (
	// Contain scales the content to lie entirely inside the frame.
	Contain Fit = iota
	// Cover scales the content to fill the frame, overflowing one axis.
	Cover
)

// FitRect returns the rectangle a srcW x srcH image occupies when scaled into
// frame and centered on it.
func FitRect(srcW, srcH float64, frame types.Rect, mode Fit) types.Rect {
	if srcW <= 0 || srcH <= 0 {
		return types.Rect{X: frame.CenterX(), Y: frame.CenterY()}
	}
	sx := frame.W / srcW
	sy := frame.H / srcH
	scale := math.Min(sx, sy)
	if mode == Cover {
		scale = math.Max(sx, sy)
	}
	w, h := srcW*scale, srcH*scale
	return types.Rect{
		X: frame.X + (frame.W-w)/2,
		Y: frame.Y + (frame.H-h)/2,
		W: w,
		H: h,
	}
}

// ToAbsolute maps a box given relative to frame into frame's coordinate space.
func ToAbsolute(box types.Box, frame types.Rect) types.Rect {
	return types.Rect{
		X: frame.X + box.X*frame.W,
		Y: frame.Y + box.Y*frame.H,
		W: box.W * frame.W,
		H: box.H * frame.H,
	}
}

// ToRelative is the inverse of ToAbsolute.
func ToRelative(r types.Rect, frame types.Rect) types.Box {
	if frame.W <= 0 || frame.H <= 0 {
		return types.Full
	}
	return types.Box{
		X: (r.X - frame.X) / frame.W,
		Y: (r.Y - frame.Y) / frame.H,
		W: r.W / frame.W,
		H: r.H / frame.H,
	}
}

// ClampRect intersects r with a w x h canvas. The result has non-negative size.
func ClampRect(r types.Rect, w, h float64) types.Rect {
	x0 := math.Max(0, r.X)
	y0 := math.Max(0, r.Y)
	x1 := math.Min(w, r.Right())
	y1 := math.Min(h, r.Bottom())
	return types.Rect{X: x0, Y: y0, W: math.Max(0, x1-x0), H: math.Max(0, y1-y0)}
}
