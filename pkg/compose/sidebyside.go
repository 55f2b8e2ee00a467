package compose

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/product-compositor/pkg/bounds"
	"github.com/menta2k/product-compositor/pkg/layout"
	"github.com/menta2k/product-compositor/pkg/surface"
	"github.com/menta2k/product-compositor/pkg/types"
)

func (j *job) sideBySide(s layout.SideBySide) error {
	col := j.size / 2

	if s.DividerWidthRatio > 0 {
		c := j.divider
		if s.DividerColor != "" {
			if parsed, err := surface.ParseHex(s.DividerColor); err == nil {
				c = parsed
			} else {
				j.log.WithError(err).Warn("invalid divider color, using default")
			}
		}
		w := s.DividerWidthRatio * j.size
		j.canvas.Fill(types.Rect{X: col - w/2, Y: 0, W: w, H: j.size}, c)
	}

	if err := j.leftPanel(s, col); err != nil {
		return err
	}
	if err := j.rightPanel(s, col); err != nil {
		return err
	}

	for _, b := range s.Badges {
		img, ok := j.asset(b.Src)
		if !ok {
			continue
		}
		r := j.badgeRect(img, b.WidthRatio, b.YRatio)
		r.X = col - r.W/2
		j.draw(img, img.Bounds(), r)
	}
	j.centerBadges(s.CenterBadges)
	return nil
}

// leftPlacement returns where a subject of the given source size goes in the
// left column.
func leftPlacement(s layout.SideBySide, sr image.Rectangle, canvas, col float64) types.Rect {
	var w, h float64
	switch {
	case s.AbsoluteLeft():
		w, h = scaleToWidth(sr, s.LeftWidthCanvasRatio*canvas)
		return types.Rect{X: s.LeftCanvasOffsetRatioX * canvas, Y: (canvas - h) / 2, W: w, H: h}
	case s.LeftScaleMode == layout.ScaleWidth:
		w, h = scaleToWidth(sr, s.LeftWidthRatio*col)
	default:
		w, h = scaleToHeight(sr, s.LeftHeightRatio*canvas)
		if w > col {
			w, h = scaleToWidth(sr, col)
		}
	}
	return types.Rect{X: (col - w) / 2, Y: (canvas - h) / 2, W: w, H: h}
}

func (j *job) leftPanel(s layout.SideBySide, col float64) error {
	sr, ok := j.subject()
	if !ok {
		return nil
	}

	if s.WhiteCrop {
		cropped, err := j.trimWithin(j.in.Base, sr, j.whiteOptions(s.WhiteCropPadding))
		if err != nil {
			return err
		}
		sr = cropped
	}

	dst := leftPlacement(s, sr, j.size, col)

	j.canvas.Save()
	defer j.canvas.Restore()
	if !s.AbsoluteLeft() {
		j.canvas.ClipRect(types.Rect{X: 0, Y: 0, W: col, H: j.size})
	}
	j.draw(j.in.Base, sr, dst)
	return nil
}

// rightPanel draws the reference trimmed to its own alpha bounds. Overflow is
// cut off symmetrically by centering in the column and clipping to it.
func (j *job) rightPanel(s layout.SideBySide, col float64) error {
	ref := j.in.Reference
	if ref == nil || ref.Bounds().Empty() {
		return nil
	}
	sr, err := j.trim(ref, bounds.AlphaOptions())
	if err != nil {
		return err
	}

	w, h := scaleToHeight(sr, s.RightHeightRatio*j.size)
	column := types.Rect{X: col, Y: 0, W: col, H: j.size}
	dst := types.Rect{X: column.CenterX() - w/2, Y: column.CenterY() - h/2, W: w, H: h}

	j.canvas.Save()
	defer j.canvas.Restore()
	j.canvas.ClipRect(column)
	j.draw(ref, sr, dst)
	return nil
}

// centerBadges draws a horizontally centered row of badges.
func (j *job) centerBadges(badges []layout.Badge) {
	type placed struct {
		img image.Image
		r   types.Rect
	}
	var row []placed
	total := 0.0
	for _, b := range badges {
		img, ok := j.asset(b.Src)
		if !ok {
			continue
		}
		r := j.badgeRect(img, b.WidthRatio, b.YRatio)
		row = append(row, placed{img, r})
		total += r.W
	}
	if len(row) == 0 {
		return
	}

	gap := j.config.CenterBadgeGapRatio * j.size
	total += gap * float64(len(row)-1)
	x := (j.size - total) / 2
	for _, p := range row {
		p.r.X = x
		j.draw(p.img, p.img.Bounds(), p.r)
		x += p.r.W + gap
	}
}

func (j *job) whiteOptions(padding int) bounds.Options {
	opts := bounds.WhiteOptions(padding)
	if j.config.WhiteThreshold > 0 {
		opts.Threshold = j.config.WhiteThreshold
	}
	return opts
}

type subImager interface {
	SubImage(image.Rectangle) image.Image
}

// trimWithin is trim restricted to the r part of img.
func (j *job) trimWithin(img image.Image, r image.Rectangle, opts bounds.Options) (image.Rectangle, error) {
	if s, ok := img.(subImager); ok {
		return j.trim(s.SubImage(r), opts)
	}
	got, err := j.trim(imaging.Crop(img, r), opts)
	return got.Add(r.Min), err
}
