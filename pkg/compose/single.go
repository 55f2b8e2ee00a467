package compose

import (
	"image"
	"math"

	"github.com/menta2k/product-compositor/pkg/bounds"
	"github.com/menta2k/product-compositor/pkg/layout"
	"github.com/menta2k/product-compositor/pkg/types"
)

func (j *job) singleCentered(s layout.SingleCentered) error {
	if sr, ok := j.subject(); ok {
		w, h := scaleToHeight(sr, s.TargetHeightRatio*j.size)
		// overflow is cropped by the canvas edge, not shrunk
		subject := types.Rect{
			X: (j.size-w)/2 + s.CenterOffsetRatioX*j.size,
			Y: (j.size - h) / 2,
			W: w,
			H: h,
		}

		if s.Film != nil {
			if err := j.filmPair(*s.Film, sr, subject, s.CenterOffsetRatioX); err != nil {
				return err
			}
		} else {
			j.draw(j.in.Base, sr, subject)
		}
	}

	margin := j.config.EdgeMarginRatio * j.size
	for _, b := range s.EdgeBadges {
		img, ok := j.asset(b.Src)
		if !ok {
			continue
		}
		r := j.badgeRect(img, b.WidthRatio, b.YRatio)
		if b.Side == layout.SideRight {
			r.X = j.size - margin - r.W
		} else {
			r.X = margin
		}
		j.draw(img, img.Bounds(), r)
	}
	return nil
}

// filmPair draws the subject together with a protective film asset.
func (j *job) filmPair(f layout.FilmPairing, sr image.Rectangle, subject types.Rect, offset float64) error {
	film, ok := j.asset(f.Asset)
	if !ok {
		j.draw(j.in.Base, sr, subject)
		return nil
	}
	fr, err := j.trim(film, bounds.Options{Mode: bounds.ModeAlpha, Threshold: f.AlphaThreshold})
	if err != nil {
		return err
	}

	fw, fh := scaleToHeight(fr, subject.H*f.HeightRatio)
	filmRect := types.Rect{Y: (j.size - fh) / 2, W: fw, H: fh}
	subject, filmRect = pairFilm(subject, filmRect, f.Side, float64(f.OverlapPx), offset, j.size)

	j.draw(j.in.Base, sr, subject)
	j.draw(film, fr, filmRect)
	return nil
}

// pairFilm positions subject and film horizontally. When the pair fits the
// canvas it is centered as one unit, shifted by offset and kept on canvas;
// otherwise the subject stays where it is and the film is moved against it.
// The two always overlap by overlap pixels.
func pairFilm(subject, film types.Rect, side layout.Side, overlap, offset, canvas float64) (types.Rect, types.Rect) {
	combined := subject.W + film.W - overlap

	if combined <= canvas {
		start := (canvas-combined)/2 + offset*canvas
		start = math.Max(0, math.Min(start, canvas-combined))
		if side == layout.SideRight {
			subject.X = start
			film.X = start + subject.W - overlap
		} else {
			film.X = start
			subject.X = start + film.W - overlap
		}
		return subject, film
	}

	if side == layout.SideRight {
		film.X = subject.Right() - overlap
	} else {
		film.X = subject.X - film.W + overlap
	}
	return subject, film
}
