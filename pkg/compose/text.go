package compose

import (
	"image"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// drawSKU draws text top-center, shrinking the font until it fits between
// the side margins.
func (j *job) drawSKU(text string) error {
	maxWidth := j.size * (1 - 2*j.config.Text.MarginRatio)
	face, _, width, err := j.fitFace(text, maxWidth)
	if err != nil {
		return err
	}
	defer face.Close()

	top := j.config.Text.TopRatio * j.size
	d := &font.Drawer{
		Dst:  j.canvas.Image(),
		Src:  image.NewUniform(j.textColor),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(math.Round((j.size - width) / 2 * 64)),
			Y: fixed.I(int(math.Round(top))) + face.Metrics().Ascent,
		},
	}
	d.DrawString(text)
	return nil
}

// fitFace returns the largest face between MinSize and MaxSize, in steps of
// one point, in which text is at most maxWidth wide. Text that does not fit
// at MinSize is returned at MinSize.
func (c *Compositor) fitFace(text string, maxWidth float64) (font.Face, float64, float64, error) {
	t := c.config.Text
	minSize := t.MinSize
	if minSize <= 0 {
		minSize = 1
	}
	size := math.Max(t.MaxSize, minSize)

	for {
		face, err := opentype.NewFace(c.regular, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, 0, 0, err
		}
		width := float64(font.MeasureString(face, text)) / 64
		if width <= maxWidth || size <= minSize {
			return face, size, width, nil
		}
		face.Close()
		size = math.Max(minSize, size-1)
	}
}
