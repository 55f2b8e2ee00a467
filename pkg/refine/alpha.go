// Package refine repairs the alpha channel of background-removed cutouts.
//
// Automated cutouts often punch small holes into solid regions (inside a
// logo, along a thin bezel). A morphological closing on the alpha channel
// seals them while leaving the outer silhouette where it was; a plain
// dilation would fatten every edge instead.
package refine

import (
	"image"
	"math"
)

// Options holds configuration for alpha refinement
type Options struct {
	// Radius of the square structuring element, (2*Radius+1)^2 pixels.
	Radius int
	// Boost multiplies every alpha value after closing.
	Boost float64
}

// DefaultOptions returns the settings used by the base renderer
func DefaultOptions() Options {
	return Options{
		Radius: 1,
		Boost:  1.05,
	}
}

// Refine performs an alpha closing over region of img, in place.
// Pixels outside region are neither read nor written.
func Refine(img *image.NRGBA, region image.Rectangle, opts Options) {
	region = region.Intersect(img.Bounds())
	if region.Empty() {
		return
	}
	w, h := region.Dx(), region.Dy()

	alpha := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		row := img.PixOffset(region.Min.X, region.Min.Y+y)
		for x := 0; x < w; x++ {
			alpha[y*w+x] = img.Pix[row+x*4+3]
		}
	}

	if opts.Radius > 0 {
		scratch := make([]uint8, w*h)
		window := make([]int, 0, max(w, h))
		line := make([]uint8, max(w, h))

		// dilation then erosion, each separable into rows and columns
		filter(alpha, scratch, w, h, opts.Radius, greater, window, line)
		filter(alpha, scratch, w, h, opts.Radius, less, window, line)
	}

	boost := opts.Boost
	if boost <= 0 {
		boost = 1
	}
	for y := 0; y < h; y++ {
		row := img.PixOffset(region.Min.X, region.Min.Y+y)
		for x := 0; x < w; x++ {
			v := float64(alpha[y*w+x]) * boost
			img.Pix[row+x*4+3] = uint8(math.Min(255, math.Round(v)))
		}
	}
}

func greater(a, b uint8) bool { return a >= b }
func less(a, b uint8) bool    { return a <= b }

// filter replaces buf with the windowed extremum selected by keep over a
// (2r+1)x(2r+1) neighbourhood clipped to the w x h grid.
func filter(buf, scratch []uint8, w, h, r int, keep func(a, b uint8) bool, window []int, line []uint8) {
	// rows: buf -> scratch
	for y := 0; y < h; y++ {
		slide(buf[y*w:(y+1)*w], scratch[y*w:(y+1)*w], r, keep, window)
	}
	// columns: scratch -> buf
	col := line[:h]
	out := make([]uint8, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = scratch[y*w+x]
		}
		slide(col, out, r, keep, window)
		for y := 0; y < h; y++ {
			buf[y*w+x] = out[y]
		}
	}
}

// slide computes a running extremum over [i-r, i+r] using a monotonic
// deque of indices, so each element is pushed and popped at most once.
func slide(in, out []uint8, r int, keep func(a, b uint8) bool, deque []int) {
	n := len(in)
	deque = deque[:0]
	head := 0
	next := 0

	for i := 0; i < n; i++ {
		hi := i + r
		if hi > n-1 {
			hi = n - 1
		}
		for ; next <= hi; next++ {
			for len(deque) > head && keep(in[next], in[deque[len(deque)-1]]) {
				deque = deque[:len(deque)-1]
			}
			deque = append(deque, next)
		}
		for deque[head] < i-r {
			head++
		}
		out[i] = in[deque[head]]
	}
}
